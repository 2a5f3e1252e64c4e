package profile

import (
	"context"
	"errors"
	"testing"

	"pixel-storefront/internal/domain"
)

type stubBackend struct {
	updates []domain.ProfileInput
}

func (b *stubBackend) Profile(ctx context.Context, token string) (*domain.Profile, error) {
	return &domain.Profile{ID: "u1", Email: "ada@example.com"}, nil
}

func (b *stubBackend) UpdateProfile(ctx context.Context, token string, in domain.ProfileInput) (*domain.Profile, error) {
	b.updates = append(b.updates, in)
	return &domain.Profile{ID: "u1", Email: in.Email, FirstName: in.FirstName, LastName: in.LastName, Phone: in.Phone}, nil
}

func TestRequiresToken(t *testing.T) {
	s := New(&stubBackend{})
	if _, err := s.Get(context.Background(), ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := s.Update(context.Background(), "", domain.ProfileInput{Email: "a@b.c"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestUpdateNormalizesBeforeSending(t *testing.T) {
	b := &stubBackend{}
	s := New(b)

	p, err := s.Update(context.Background(), "tok", domain.ProfileInput{
		FirstName: "  Ada ",
		LastName:  "Lovelace",
		Email:     " Ada@Example.COM ",
		Phone:     " 555-0100",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want := domain.ProfileInput{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Phone: "555-0100"}
	if len(b.updates) != 1 || b.updates[0] != want {
		t.Fatalf("unexpected backend input %+v", b.updates)
	}
	if p.Email != "ada@example.com" {
		t.Fatalf("unexpected profile %+v", p)
	}
}

func TestUpdateRejectsBadEmail(t *testing.T) {
	for _, email := range []string{"", "   ", "ada", "@example.com", "ada@", "ada @example.com"} {
		b := &stubBackend{}
		_, err := New(b).Update(context.Background(), "tok", domain.ProfileInput{FirstName: "Ada", Email: email})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("email %q: expected ErrInvalidInput, got %v", email, err)
		}
		if len(b.updates) != 0 {
			t.Fatalf("email %q: invalid input must not reach the backend", email)
		}
	}
}
