// Package session persists browser sessions so a restart does not log
// every browser out.
package session

import (
	"context"
	"time"
)

// Record is the persisted part of a browser session.
type Record struct {
	ID           string     `json:"id"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	IdentityID   string     `json:"identity_id"`
	Email        string     `json:"email"`
	Anonymous    bool       `json:"is_anonymous"`
	MergeSource  string     `json:"merge_source"`
	ThemeID      string     `json:"theme_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasIdentity reports whether the record carries a signed-in or guest identity.
func (r Record) HasIdentity() bool {
	return r.IdentityID != "" && r.AccessToken != ""
}

// Repository stores records for ttl after their last save. Get returns
// domain.ErrNotFound for unknown or expired ids.
type Repository interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	// Purge drops expired records and returns how many were removed.
	Purge(ctx context.Context) (int64, error)
}
