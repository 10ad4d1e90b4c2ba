// Package auth resolves the caller of a chat request.
//
// Authentication uses a chain of authenticators with three-outcome voting:
// each returns Yes (identity found), No (credentials invalid), or Abstain
// (cannot handle the credentials). A default decision applies when every
// authenticator abstains.
//
// The HTTP middleware stores the resulting Identity in the request context.
// Its Subject is the user id that every history and task operation is
// scoped to.
package auth
