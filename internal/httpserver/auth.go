package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"pixel-storefront/internal/auth"
	"pixel-storefront/internal/domain"
	"pixel-storefront/internal/service/theme"
)

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type themeRequest struct {
	ID string `json:"id" binding:"required"`
}

type themeResponse struct {
	Theme  theme.Theme   `json:"theme"`
	Style  string        `json:"style"`
	Themes []theme.Theme `json:"themes"`
}

func invalidBody(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}

func (h *handlers) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, browserSession(c).Status())
}

func (h *handlers) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, invalidBody(err))
		return
	}
	s := browserSession(c)
	if _, err := s.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Status())
}

func (h *handlers) signUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, invalidBody(err))
		return
	}
	s := browserSession(c)
	_, err := s.SignUp(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrNoSession):
		// The account exists but has to be confirmed by email first.
		c.JSON(http.StatusAccepted, gin.H{"status": "confirmation_required"})
	case err != nil:
		writeError(c, err)
	default:
		c.JSON(http.StatusCreated, s.Status())
	}
}

func (h *handlers) logout(c *gin.Context) {
	s := browserSession(c)
	if _, err := s.Logout(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Status())
}

func (h *handlers) getTheme(c *gin.Context) {
	t := browserSession(c).Theme()
	c.JSON(http.StatusOK, themeResponse{Theme: t, Style: t.Style(), Themes: theme.All()})
}

func (h *handlers) setTheme(c *gin.Context) {
	var req themeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, invalidBody(err))
		return
	}
	t, err := browserSession(c).SetTheme(c.Request.Context(), req.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	http.SetCookie(c.Writer, theme.Cookie(t.ID, h.deps.CookieSecure))
	c.JSON(http.StatusOK, themeResponse{Theme: t, Style: t.Style(), Themes: theme.All()})
}
