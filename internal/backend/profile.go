package backend

import (
	"context"
	"fmt"
	"net/http"

	"pixel-storefront/internal/domain"
)

const profilePath = "/api/users/me"

func (c *Client) Profile(ctx context.Context, token string) (*domain.Profile, error) {
	p, err := data[domain.Profile](ctx, c, http.MethodGet, profilePath, nil, token, nil)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (c *Client) UpdateProfile(ctx context.Context, token string, in domain.ProfileInput) (*domain.Profile, error) {
	p, err := data[domain.Profile](ctx, c, http.MethodPut, profilePath, nil, token, in)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &p, nil
}
