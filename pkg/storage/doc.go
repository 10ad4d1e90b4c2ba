// Package storage defines the Backend contract shared by the storage
// adapters (memory, sqlite, postgres). Each adapter implements both
// history.Store and tasks.Store; the narrower interfaces live with their
// consumers in pkg/history and pkg/tasks.
package storage
