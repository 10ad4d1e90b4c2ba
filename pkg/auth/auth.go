package auth

import (
	"context"
	"errors"
	"net/http"
)

// AuthDecision is the vote an authenticator casts for a request.
type AuthDecision int

const (
	// Yes accepts the request. The chain stops and the identity is used.
	Yes AuthDecision = iota

	// No rejects the request. The chain stops.
	No

	// Abstain passes the request on to the next authenticator.
	Abstain
)

// AuthResult carries the outcome of an authentication attempt.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity // set only when Decision == Yes
	Err      error     // set only when Decision == No
}

// Identity is an authenticated caller. Subject doubles as the user id that
// scopes chat history and tasks.
type Identity struct {
	Subject     string
	ServiceTier string
	Scopes      []string
	Metadata    map[string]string
}

// UserID returns the subject, or empty for a nil identity.
func (id *Identity) UserID() string {
	if id == nil {
		return ""
	}
	return id.Subject
}

// Authenticator examines request credentials and returns a three-outcome vote.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// AuthChain evaluates authenticators in order.
type AuthChain struct {
	Authenticators []Authenticator

	// DefaultDecision applies when every authenticator abstains.
	DefaultDecision AuthDecision

	// DefaultIdentity is returned for a default Yes. Nil means "anonymous".
	DefaultIdentity *Identity
}

// Authenticate runs the chain and stops on the first Yes or No.
func (c *AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, r)
		if result.Decision != Abstain {
			return result
		}
	}

	if c.DefaultDecision == Yes {
		id := Identity{Subject: "anonymous", ServiceTier: "default"}
		if c.DefaultIdentity != nil {
			id = *c.DefaultIdentity
		}
		return AuthResult{Decision: Yes, Identity: &id}
	}

	return AuthResult{Decision: No, Err: ErrUnauthenticated}
}
