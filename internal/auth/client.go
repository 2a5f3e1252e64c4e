package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pixel-storefront/internal/domain"
	"pixel-storefront/internal/httpclient"
)

const upstreamName = "auth"

// ErrNoSession is returned by SignUp when the provider created the user but
// requires email confirmation before issuing a session.
var ErrNoSession = errors.New("auth provider returned no session")

// Client is a GoTrue-compatible HTTP client for the auth provider.
type Client struct {
	baseURL  string
	anonKey  string
	doer     httpclient.Doer
	verifier *Verifier
	now      func() time.Time
}

func NewClient(baseURL, anonKey string, doer httpclient.Doer, verifier *Verifier) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		anonKey:  anonKey,
		doer:     doer,
		verifier: verifier,
		now:      time.Now,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID          string `json:"id"`
		Email       string `json:"email"`
		IsAnonymous bool   `json:"is_anonymous"`
	} `json:"user"`
}

func (c *Client) post(ctx context.Context, path string, query url.Values, token string, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	header := http.Header{}
	if c.anonKey != "" {
		header.Set("apikey", c.anonKey)
	}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return httpclient.DoJSON(ctx, c.doer, upstreamName, httpclient.Request{
		Method: http.MethodPost,
		URL:    u,
		Header: header,
		Body:   body,
	}, out)
}

func (c *Client) session(resp tokenResponse) (*domain.Session, error) {
	if resp.AccessToken == "" {
		return nil, ErrNoSession
	}
	s := &domain.Session{
		Identity: domain.Identity{
			ID:        resp.User.ID,
			Email:     resp.User.Email,
			Anonymous: resp.User.IsAnonymous,
		},
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	switch {
	case resp.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(resp.ExpiresAt, 0)
	case resp.ExpiresIn > 0:
		s.ExpiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	if c.verifier != nil {
		claims, err := c.verifier.Verify(resp.AccessToken)
		if err != nil {
			return nil, err
		}
		if claims.Subject != s.Identity.ID {
			return nil, fmt.Errorf("%w: token subject does not match user", domain.ErrUnauthorized)
		}
	}
	return s, nil
}

// SignInAnonymously creates a fresh guest identity.
func (c *Client) SignInAnonymously(ctx context.Context) (*domain.Session, error) {
	var resp tokenResponse
	if err := c.post(ctx, "/auth/v1/signup", nil, "", struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("anonymous sign-in: %w", err)
	}
	return c.session(resp)
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	body := map[string]string{"email": email, "password": password}
	var resp tokenResponse
	if err := c.post(ctx, "/auth/v1/token", url.Values{"grant_type": {"password"}}, "", body, &resp); err != nil {
		return nil, fmt.Errorf("password sign-in: %w", err)
	}
	return c.session(resp)
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	body := map[string]string{"email": email, "password": password}
	var resp tokenResponse
	if err := c.post(ctx, "/auth/v1/signup", nil, "", body, &resp); err != nil {
		return nil, fmt.Errorf("sign-up: %w", err)
	}
	return c.session(resp)
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var resp tokenResponse
	if err := c.post(ctx, "/auth/v1/token", url.Values{"grant_type": {"refresh_token"}}, "", body, &resp); err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	return c.session(resp)
}

// SignOut revokes the refresh tokens of the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if err := c.post(ctx, "/auth/v1/logout", nil, accessToken, nil, nil); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}
