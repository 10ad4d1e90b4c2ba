// Package noop accepts every request as a single configured user. It serves
// local development and single-user deployments.
package noop

import (
	"context"
	"net/http"

	"github.com/rhuss/todoflow/pkg/auth"
)

// Authenticator always votes Yes for Subject ("anonymous" when empty).
type Authenticator struct {
	Subject string
}

// New returns an authenticator for the given default user.
func New(subject string) *Authenticator {
	return &Authenticator{Subject: subject}
}

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.AuthResult {
	subject := a.Subject
	if subject == "" {
		subject = "anonymous"
	}
	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{Subject: subject, ServiceTier: "default"},
	}
}
