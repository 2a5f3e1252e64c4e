package storefront

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pixel-storefront/internal/auth"
	"pixel-storefront/internal/domain"
	"pixel-storefront/internal/repository/session"
	"pixel-storefront/internal/service/cart"
	"pixel-storefront/internal/service/checkout"
	"pixel-storefront/internal/service/identity"
	"pixel-storefront/internal/service/merge"
	"pixel-storefront/internal/service/theme"
)

// Session is everything the storefront holds for one browser.
type Session struct {
	ID string

	Identity *identity.Store
	Cart     *cart.Cache

	provider *auth.Provider
	merge    *merge.Coordinator
	manager  *Manager
	logger   zerolog.Logger
	unsub    []func()

	mu       sync.Mutex
	checkout *checkout.Session
	themeID  string
	lastSeen time.Time
	closed   bool
}

// Status summarizes what the UI needs to decide whether to show a loading
// state or allow cart changes.
type Status struct {
	Identity *domain.Identity `json:"user"`
	State    string           `json:"state"`
	Ready    bool             `json:"ready"`
	Loading  bool             `json:"loading"`
	Merging  bool             `json:"merging"`
	Theme    theme.Theme      `json:"theme"`
}

func (s *Session) Status() Status {
	st := Status{
		Identity: s.Identity.Session(),
		State:    s.Identity.State().String(),
		Ready:    s.Identity.Ready(),
		Merging:  s.merge.Merging(),
		Theme:    s.Theme(),
	}
	st.Loading = !st.Ready || st.Merging
	if id := st.Identity; id != nil && !st.Loading {
		if v, err := s.Cart.Get(id.ID); err == nil && v.Loading {
			st.Loading = true
		}
	}
	return st
}

// Token returns a bearer token for the active identity.
func (s *Session) Token(ctx context.Context) (string, error) {
	id := s.Identity.Session()
	if id == nil {
		return "", domain.ErrIdentityNotReady
	}
	return s.Identity.AccessToken(ctx, id.ID)
}

// CurrentIdentity returns the identity cart operations must be keyed by. It
// fails while the identity is still resolving.
func (s *Session) CurrentIdentity() (*domain.Identity, error) {
	if !s.Identity.Ready() {
		return nil, domain.ErrIdentityNotReady
	}
	id := s.Identity.Session()
	if id == nil {
		return nil, domain.ErrIdentityNotReady
	}
	return id, nil
}

// ensureIdentity signs in a fresh guest when the browser has no identity left,
// after a failed anonymous sign-in or a refresh that signed it out.
func (s *Session) ensureIdentity(ctx context.Context) {
	if s.Identity.State() != identity.Ready || s.Identity.Session() != nil {
		return
	}
	if err := s.Identity.EnsureUser(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("identity still unavailable")
	}
}

// CartView returns the cart of the active identity.
func (s *Session) CartView() (cart.View, error) {
	id := s.Identity.Session()
	if id == nil {
		return cart.View{Loading: true}, nil
	}
	return s.Cart.Get(id.ID)
}

// Checkout returns the running checkout, starting a fresh one when none is
// running or the last one completed.
func (s *Session) Checkout() *checkout.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkout == nil || s.checkout.Step() == checkout.StepComplete {
		s.checkout = checkout.New(s.manager.backend, s.manager.verifier, s.logger)
	}
	return s.checkout
}

// AbandonCheckout drops the running checkout. Late responses to its
// requests are discarded.
func (s *Session) AbandonCheckout() {
	s.mu.Lock()
	co := s.checkout
	s.checkout = nil
	s.mu.Unlock()
	if co != nil {
		co.Abandon()
	}
}

func (s *Session) Theme() theme.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return theme.Lookup(s.themeID)
}

func (s *Session) SetTheme(ctx context.Context, id string) (theme.Theme, error) {
	t, ok := theme.Find(id)
	if !ok {
		return t, fmt.Errorf("%w: unknown theme %q", domain.ErrInvalidInput, id)
	}
	s.mu.Lock()
	s.themeID = t.ID
	s.mu.Unlock()
	s.manager.persist(ctx, s)
	return t, nil
}

// Login signs in with credentials. The guest cart merge runs in the
// background; Login does not wait for it.
func (s *Session) Login(ctx context.Context, email, password string) (*domain.Identity, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}
	if _, err := s.provider.SignInWithPassword(ctx, email, password); err != nil {
		return nil, err
	}
	return s.Identity.Session(), nil
}

func (s *Session) SignUp(ctx context.Context, email, password string) (*domain.Identity, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}
	if _, err := s.provider.SignUp(ctx, email, password); err != nil {
		return nil, err
	}
	return s.Identity.Session(), nil
}

// Logout signs out and starts a fresh guest identity. The signed-out
// account's cart is dropped and never merged anywhere.
func (s *Session) Logout(ctx context.Context) (*domain.Identity, error) {
	s.AbandonCheckout()
	if err := s.provider.SignOut(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("revoke session upstream")
	}
	if err := s.Identity.EnsureUser(ctx); err != nil {
		return nil, err
	}
	return s.Identity.Session(), nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) record() session.Record {
	sess, mergeSource := s.Identity.Snapshot()
	if current := s.provider.Current(); current != nil {
		sess = current
	}
	s.mu.Lock()
	rec := session.Record{ID: s.ID, MergeSource: mergeSource, ThemeID: s.themeID}
	s.mu.Unlock()
	if rec.ThemeID == "" {
		rec.ThemeID = theme.DefaultID
	}
	if sess != nil {
		rec.AccessToken = sess.AccessToken
		rec.RefreshToken = sess.RefreshToken
		rec.IdentityID = sess.Identity.ID
		rec.Email = sess.Identity.Email
		rec.Anonymous = sess.Identity.Anonymous
		if !sess.ExpiresAt.IsZero() {
			exp := sess.ExpiresAt
			rec.ExpiresAt = &exp
		}
	}
	return rec
}

func restoredSession(rec *session.Record) *domain.Session {
	if rec == nil || !rec.HasIdentity() {
		return nil
	}
	s := &domain.Session{
		Identity: domain.Identity{
			ID:        rec.IdentityID,
			Email:     rec.Email,
			Anonymous: rec.Anonymous,
		},
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
	}
	if rec.ExpiresAt != nil {
		s.ExpiresAt = *rec.ExpiresAt
	}
	return s
}

// close stops background work. The persisted record is kept.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	co := s.checkout
	s.checkout = nil
	s.mu.Unlock()

	if co != nil {
		co.Abandon()
	}
	for _, u := range s.unsub {
		u()
	}
	s.merge.Close()
	s.Cart.Close()
}
