package httpserver

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pixel-storefront/internal/service/theme"
	"pixel-storefront/internal/storefront"
)

const sessionKey = "storefront.session"

// sessionMiddleware resolves the browser session from its cookie. A missing,
// unknown or expired cookie gets a new session and a new cookie; a theme
// preference cookie set before the session existed is carried over.
func sessionMiddleware(sessions Sessions, secure bool, ttl time.Duration, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(storefront.CookieName)
		s, err := sessions.Open(c.Request.Context(), id)
		if err != nil {
			logger.Error().Err(err).Msg("open browser session")
			writeError(c, err)
			c.Abort()
			return
		}
		if s.ID != id {
			http.SetCookie(c.Writer, sessionCookie(s.ID, secure, ttl))
			if pref, err := c.Request.Cookie(theme.CookieName); err == nil {
				if _, err := s.SetTheme(c.Request.Context(), pref.Value); err != nil {
					logger.Debug().Str("theme", pref.Value).Msg("ignoring unknown theme preference")
				}
			}
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

func sessionCookie(id string, secure bool, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     storefront.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func browserSession(c *gin.Context) *storefront.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*storefront.Session)
	return s
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		evt := logger.Info()
		switch {
		case status >= http.StatusInternalServerError:
			evt = logger.Error()
		case status >= http.StatusBadRequest:
			evt = logger.Warn()
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		evt = evt.Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start))
		if s := browserSession(c); s != nil && len(s.ID) >= 8 {
			evt = evt.Str("browser_session", s.ID[:8])
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}
		evt.Msg("request")
	}
}

func recovery(logger zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorPayload{Error: errorBody{Code: "internal", Message: "internal error"}})
	})
}
