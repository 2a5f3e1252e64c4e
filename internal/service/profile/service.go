// Package profile reads and edits the account details of a signed-in user.
package profile

import (
	"context"

	"pixel-storefront/internal/domain"
)

type Backend interface {
	Profile(ctx context.Context, token string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, token string, in domain.ProfileInput) (*domain.Profile, error)
}

type Service struct {
	backend Backend
}

func New(backend Backend) *Service {
	return &Service{backend: backend}
}

func (s *Service) Get(ctx context.Context, token string) (*domain.Profile, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.backend.Profile(ctx, token)
}

// Update validates in after normalizing it and replaces the editable fields.
func (s *Service) Update(ctx context.Context, token string, in domain.ProfileInput) (*domain.Profile, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.backend.UpdateProfile(ctx, token, in)
}
