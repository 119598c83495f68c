// Package access decides who may do what. The shop has exactly one
// administrator, identified by the configured email address.
package access

import (
	"context"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/threshingfloor/roastery-backend/pkg/errors"
)

// Identity is the signed-in principal for one request.
type Identity struct {
	UserID  uuid.UUID `json:"id"`
	Email   string    `json:"email"`
	Name    string    `json:"name"`
	IsAdmin bool      `json:"is_admin"`
}

// Policy owns the admin check. Nothing else compares emails.
type Policy struct {
	adminEmail string
}

func NewPolicy(adminEmail string) *Policy {
	return &Policy{adminEmail: NormalizeEmail(adminEmail)}
}

// IsAdmin reports whether email belongs to the shop administrator.
func (p *Policy) IsAdmin(email string) bool {
	if p == nil || p.adminEmail == "" {
		return false
	}
	return NormalizeEmail(email) == p.adminEmail
}

// Resolve builds the Identity for a user, deriving the admin flag.
func (p *Policy) Resolve(userID uuid.UUID, email, name string) Identity {
	return Identity{
		UserID:  userID,
		Email:   NormalizeEmail(email),
		Name:    strings.TrimSpace(name),
		IsAdmin: p.IsAdmin(email),
	}
}

// RequireAdmin fails with 401 when nobody is signed in and 403 when the
// caller is not the administrator. The flag on the identity is re-derived
// so a hand-built Identity cannot grant itself access.
func (p *Policy) RequireAdmin(id *Identity) error {
	if id == nil || id.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	if !p.IsAdmin(id.Email) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin access required")
	}
	return nil
}

// RequireUser fails with 401 when nobody is signed in.
func RequireUser(id *Identity) error {
	if id == nil || id.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	return nil
}

// NormalizeEmail is the canonical form emails are stored and compared in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type identityKey struct{}

// WithIdentity stores the resolved identity on the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by the auth middleware, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok {
		return nil, false
	}
	return &id, true
}
