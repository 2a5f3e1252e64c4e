package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pixel-storefront/internal/domain"
)

// memberBearer is bearer for routes that guests cannot use.
func memberBearer(c *gin.Context) (string, bool) {
	if !browserSession(c).Identity.Session().IsAuthenticated() {
		writeError(c, domain.ErrUnauthorized)
		return "", false
	}
	return bearer(c)
}

func (h *handlers) getProfile(c *gin.Context) {
	token, ok := memberBearer(c)
	if !ok {
		return
	}
	p, err := h.deps.Profiles.Get(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) updateProfile(c *gin.Context) {
	var in domain.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, invalidBody(err))
		return
	}
	token, ok := memberBearer(c)
	if !ok {
		return
	}
	p, err := h.deps.Profiles.Update(c.Request.Context(), token, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
