package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"pixel-storefront/internal/httpclient"
)

const upstreamName = "backend"

// Client talks to the storefront REST API. Every call that acts for an identity
// takes that identity's bearer token.
type Client struct {
	baseURL string
	doer    httpclient.Doer
}

func New(baseURL string, doer httpclient.Doer) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), doer: doer}
}

type envelope[T any] struct {
	Data   T      `json:"data"`
	Status string `json:"status,omitempty"`
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, token string, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return httpclient.DoJSON(ctx, c.doer, upstreamName, httpclient.Request{
		Method: method,
		URL:    u,
		Header: header,
		Body:   body,
	}, out)
}

// data performs a call whose response is wrapped in {"data": ...}.
func data[T any](ctx context.Context, c *Client, method, path string, query url.Values, token string, body any) (T, error) {
	var env envelope[T]
	if err := c.call(ctx, method, path, query, token, body, &env); err != nil {
		var zero T
		return zero, err
	}
	return env.Data, nil
}
