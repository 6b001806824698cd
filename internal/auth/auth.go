// Package auth verifies that a call carries proof of authority from a
// principal. Verification happens at the edge (JWT bearer tokens); the engine
// only asks whether the verified caller is the principal it needs.
package auth

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means the call carries no verified principal.
	ErrUnauthenticated = errors.New("no authenticated principal")

	// ErrForbidden means the call is authenticated as a different principal.
	ErrForbidden = errors.New("principal not authorized")
)

// Authorizer confirms the current call is authorized by principal. It must
// fail closed: any doubt is an error.
type Authorizer interface {
	Require(ctx context.Context, principal string) error
}

type principalKey struct{}

// WithPrincipal returns a context carrying a verified principal.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFrom returns the verified principal attached to ctx.
func PrincipalFrom(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(principalKey{}).(string)
	if !ok || p == "" {
		return "", false
	}
	return p, true
}

// ContextAuthorizer authorizes a call when the principal attached to its
// context equals the required principal.
type ContextAuthorizer struct{}

// Require implements Authorizer.
func (ContextAuthorizer) Require(ctx context.Context, principal string) error {
	if principal == "" {
		return fmt.Errorf("%w: empty required principal", ErrForbidden)
	}
	caller, ok := PrincipalFrom(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if caller != principal {
		return fmt.Errorf("%w: caller %q", ErrForbidden, caller)
	}
	return nil
}
