package httpserver

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixel-storefront/internal/domain"
)

func TestProfileRequiresSignedInUser(t *testing.T) {
	ts := newTestServer(t)
	b := ts.browser(t)

	rec := b.do(http.MethodGet, "/profile", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[errorPayload](t, rec).Error.Code)

	rec = b.do(http.MethodPut, "/profile", gin.H{"email": "guest@example.com"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, ts.profiles.token, "guest token must not reach the profile service")
}

func TestProfileReadAndUpdate(t *testing.T) {
	ts := newTestServer(t)
	b := ts.browser(t)
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/auth/login", gin.H{"email": "ada@example.com", "password": "hunter2"}).Code)

	rec := b.do(http.MethodGet, "/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada", decode[domain.Profile](t, rec).FirstName)
	assert.Equal(t, "tok-user-1", ts.profiles.token)

	rec = b.do(http.MethodPut, "/profile", gin.H{"first_name": "Ada", "last_name": "Lovelace", "email": "not-an-email", "phone": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = b.do(http.MethodPut, "/profile", gin.H{"first_name": "Ada", "last_name": "Lovelace", "email": " ADA@example.com", "phone": "555-0100"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[domain.Profile](t, rec)
	assert.Equal(t, "Lovelace", p.LastName)
	assert.Equal(t, "ada@example.com", p.Email)

	rec = b.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, b.do(http.MethodGet, "/profile", nil).Code)
}
