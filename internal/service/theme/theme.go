// Package theme holds the UI theme registry and the theme-preference cookie.
package theme

import (
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	CookieName   = "theme-preference"
	CookieMaxAge = 365 * 24 * time.Hour

	TypeModern = "modern"
	TypePixel  = "pixel"

	DefaultID = "default"
)

type Theme struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Type    string            `json:"type"`
	CSSVars map[string]string `json:"cssVars"`
}

func (t Theme) IsPixel() bool {
	return t.Type == TypePixel
}

// Style renders the CSS variables as an inline style attribute value, in a
// stable order.
func (t Theme) Style() string {
	keys := make([]string, 0, len(t.CSSVars))
	for k := range t.CSSVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+t.CSSVars[k])
	}
	return strings.Join(parts, "; ")
}

var registry = []Theme{
	{
		ID:   DefaultID,
		Name: "Default",
		Type: TypeModern,
		CSSVars: map[string]string{
			"--background":         "#ffffff",
			"--foreground":         "#0f172a",
			"--primary":            "#0f172a",
			"--primary-foreground": "#f8fafc",
			"--destructive":        "#ef4444",
			"--success":            "#22c55e",
			"--warning":            "#eab308",
			"--secondary":          "#f1f5f9",
			"--accent":             "#f1f5f9",
			"--border":             "#e2e8f0",
			"--ring":               "#94a3b8",
			"--radius":             "0.5rem",
		},
	},
	{
		ID:   "nes",
		Name: "NES",
		Type: TypePixel,
		CSSVars: map[string]string{
			"--background":         "#fcfcfc",
			"--foreground":         "#000000",
			"--primary":            "#e40058",
			"--primary-foreground": "#fcfcfc",
			"--destructive":        "#a80020",
			"--success":            "#00a800",
			"--warning":            "#f8b800",
			"--secondary":          "#bcbcbc",
			"--accent":             "#0078f8",
			"--border":             "#000000",
			"--ring":               "#000000",
			"--radius":             "0",
			"--font-family":        "'Press Start 2P', monospace",
		},
	},
	{
		ID:   "snes",
		Name: "SNES",
		Type: TypePixel,
		CSSVars: map[string]string{
			"--background":         "#d8d8e0",
			"--foreground":         "#2c2c3c",
			"--primary":            "#5a4ea0",
			"--primary-foreground": "#ffffff",
			"--destructive":        "#d03c3c",
			"--success":            "#3ca050",
			"--warning":            "#e0b030",
			"--secondary":          "#a8a8b8",
			"--accent":             "#7d6fd0",
			"--border":             "#2c2c3c",
			"--ring":               "#5a4ea0",
			"--radius":             "2px",
			"--font-family":        "'Press Start 2P', monospace",
		},
	},
}

// All returns the registered themes in display order.
func All() []Theme {
	return append([]Theme(nil), registry...)
}

// Lookup returns the theme with id, falling back to the default theme.
func Lookup(id string) Theme {
	t, _ := Find(id)
	return t
}

// Find is Lookup that also reports whether id was known.
func Find(id string) (Theme, bool) {
	for _, t := range registry {
		if t.ID == id {
			return t, true
		}
	}
	return registry[0], false
}

// FromRequest reads the theme preference cookie.
func FromRequest(r *http.Request) Theme {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return Lookup(DefaultID)
	}
	return Lookup(c.Value)
}

// Cookie persists the preference for a year.
func Cookie(id string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    Lookup(id).ID,
		Path:     "/",
		MaxAge:   int(CookieMaxAge.Seconds()),
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	}
}
