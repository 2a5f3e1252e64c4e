package domain

import "time"

// Identity is the principal a browser session acts as: either an anonymous guest or an
// authenticated user. Exactly one is active per browser session.
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Anonymous bool   `json:"is_anonymous"`
}

// AnonymousIdentity builds a guest identity.
func AnonymousIdentity(id string) *Identity {
	return &Identity{ID: id, Anonymous: true}
}

// AuthenticatedIdentity builds a credentialed identity.
func AuthenticatedIdentity(id, email string) *Identity {
	return &Identity{ID: id, Email: email}
}

func (i *Identity) IsAnonymous() bool {
	return i != nil && i.Anonymous
}

func (i *Identity) IsAuthenticated() bool {
	return i != nil && !i.Anonymous
}

// SameIdentity reports whether a and b refer to the same principal. Two nils are the same.
func SameIdentity(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID && a.Anonymous == b.Anonymous
}

// Session is the credential bundle the auth provider issues for an identity.
type Session struct {
	Identity     Identity  `json:"user"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// Clone returns a copy that does not share the identity value.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}
