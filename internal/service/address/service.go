package address

import (
	"context"
	"strings"

	"pixel-storefront/internal/domain"
)

type Backend interface {
	ListAddresses(ctx context.Context, token string) ([]domain.Address, error)
	CreateAddress(ctx context.Context, token string, in domain.AddressInput) (*domain.Address, error)
	UpdateAddress(ctx context.Context, token, id string, in domain.AddressInput) (*domain.Address, error)
	DeleteAddress(ctx context.Context, token, id string) error
}

type Service struct {
	backend Backend
}

func New(backend Backend) *Service {
	return &Service{backend: backend}
}

func (s *Service) List(ctx context.Context, token string) ([]domain.Address, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	addrs, err := s.backend.ListAddresses(ctx, token)
	if err != nil {
		return nil, err
	}
	if addrs == nil {
		addrs = []domain.Address{}
	}
	return addrs, nil
}

func (s *Service) Create(ctx context.Context, token string, in domain.AddressInput) (*domain.Address, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.backend.CreateAddress(ctx, token, in)
}

func (s *Service) Update(ctx context.Context, token, id string, in domain.AddressInput) (*domain.Address, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrNotFound
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.backend.UpdateAddress(ctx, token, id, in)
}

func (s *Service) Delete(ctx context.Context, token, id string) error {
	if token == "" {
		return domain.ErrUnauthorized
	}
	if strings.TrimSpace(id) == "" {
		return domain.ErrNotFound
	}
	return s.backend.DeleteAddress(ctx, token, id)
}

// Default picks the address marked default, else the first one.
func Default(addrs []domain.Address) *domain.Address {
	for i := range addrs {
		if addrs[i].IsDefault {
			return &addrs[i]
		}
	}
	if len(addrs) > 0 {
		return &addrs[0]
	}
	return nil
}
