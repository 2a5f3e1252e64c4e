package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"pixel-storefront/internal/domain"
)

const addressesPath = "/api/users/me/addresses"

func (c *Client) ListAddresses(ctx context.Context, token string) ([]domain.Address, error) {
	list, err := data[[]domain.Address](ctx, c, http.MethodGet, addressesPath, nil, token, nil)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return list, nil
}

func (c *Client) CreateAddress(ctx context.Context, token string, in domain.AddressInput) (*domain.Address, error) {
	a, err := data[domain.Address](ctx, c, http.MethodPost, addressesPath, nil, token, in)
	if err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}
	return &a, nil
}

func (c *Client) UpdateAddress(ctx context.Context, token, id string, in domain.AddressInput) (*domain.Address, error) {
	a, err := data[domain.Address](ctx, c, http.MethodPut, addressesPath+"/"+url.PathEscape(id), nil, token, in)
	if err != nil {
		return nil, fmt.Errorf("update address %s: %w", id, err)
	}
	return &a, nil
}

func (c *Client) DeleteAddress(ctx context.Context, token, id string) error {
	if err := c.call(ctx, http.MethodDelete, addressesPath+"/"+url.PathEscape(id), nil, token, nil, nil); err != nil {
		return fmt.Errorf("delete address %s: %w", id, err)
	}
	return nil
}
