package theme

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLookupFallsBackToDefault(t *testing.T) {
	if got := Lookup("gameboy"); got.ID != DefaultID {
		t.Fatalf("expected default theme, got %s", got.ID)
	}
	if _, ok := Find("gameboy"); ok {
		t.Fatal("unknown theme reported as found")
	}
	for _, id := range []string{"nes", "snes"} {
		th, ok := Find(id)
		if !ok || !th.IsPixel() {
			t.Fatalf("%s should be a known pixel theme", id)
		}
	}
	if Lookup(DefaultID).IsPixel() {
		t.Fatal("default theme is not a pixel theme")
	}
}

func TestCookie(t *testing.T) {
	c := Cookie("snes", true)
	if c.Name != CookieName || c.Value != "snes" || c.Path != "/" {
		t.Fatalf("unexpected cookie %+v", c)
	}
	if c.MaxAge != 31536000 || c.SameSite != http.SameSiteLaxMode || !c.Secure || c.HttpOnly {
		t.Fatalf("unexpected cookie attributes %+v", c)
	}
	if Cookie("bogus", false).Value != DefaultID {
		t.Fatal("unknown theme must be stored as default")
	}
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if FromRequest(r).ID != DefaultID {
		t.Fatal("no cookie should yield the default theme")
	}
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "nes"})
	if FromRequest(r).ID != "nes" {
		t.Fatal("cookie preference ignored")
	}
}

func TestStyleIsSorted(t *testing.T) {
	th := Theme{CSSVars: map[string]string{"--b": "2", "--a": "1"}}
	if got := th.Style(); got != "--a: 1; --b: 2" {
		t.Fatalf("unexpected style %q", got)
	}
	if !strings.Contains(Lookup("nes").Style(), "--radius: 0") {
		t.Fatal("nes theme should render square corners")
	}
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	all[0].ID = "mutated"
	if Lookup(DefaultID).ID != DefaultID {
		t.Fatal("registry was mutated through All")
	}
}
