// Package storefront keeps the per-browser state of the storefront: identity,
// cart cache, merge coordinator, checkout and theme, addressed by a session
// cookie.
package storefront

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"pixel-storefront/internal/auth"
	"pixel-storefront/internal/domain"
	"pixel-storefront/internal/metrics"
	"pixel-storefront/internal/repository/session"
	"pixel-storefront/internal/service/cart"
	"pixel-storefront/internal/service/checkout"
	"pixel-storefront/internal/service/identity"
	"pixel-storefront/internal/service/merge"
	"pixel-storefront/internal/service/payment"
)

const (
	CookieName = "sf_session"

	persistTimeout = 5 * time.Second
)

// Backend is the backend API surface the per-browser services need.
type Backend interface {
	cart.Backend
	merge.Merger
	checkout.Backend
}

type Options struct {
	IdleTimeout time.Duration
	Cart        cart.Options
}

// Manager owns the live browser sessions. Sessions idle longer than
// IdleTimeout are dropped from memory; their records stay in the repository
// and are restored on the next request.
type Manager struct {
	gateway  auth.Gateway
	backend  Backend
	verifier payment.Verifier
	repo     session.Repository
	logger   zerolog.Logger
	metrics  *metrics.Storefront
	opts     Options
	now      func() time.Time

	flight   singleflight.Group
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(gateway auth.Gateway, backend Backend, verifier payment.Verifier, repo session.Repository, logger zerolog.Logger, m *metrics.Storefront, opts Options) *Manager {
	return &Manager{
		gateway:  gateway,
		backend:  backend,
		verifier: verifier,
		repo:     repo,
		logger:   logger.With().Str("component", "storefront").Logger(),
		metrics:  m,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Open returns the browser session for id, restoring it from the repository
// when it is not in memory. Unknown or malformed ids get a new session with a
// new id; callers must set the cookie to the returned session's ID.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	if validSessionID(id) {
		if s := m.lookup(id); s != nil {
			s.ensureIdentity(ctx)
			return s, nil
		}
		v, err, _ := m.flight.Do(id, func() (any, error) {
			if s := m.lookup(id); s != nil {
				s.ensureIdentity(ctx)
				return s, nil
			}
			rec, err := m.repo.Get(ctx, id)
			switch {
			case err == nil:
				return m.start(ctx, id, rec)
			case errors.Is(err, domain.ErrNotFound):
				return nil, nil
			default:
				return nil, err
			}
		})
		if err != nil {
			return nil, err
		}
		if s, ok := v.(*Session); ok && s != nil {
			return s, nil
		}
	}

	newID, err := newSessionID()
	if err != nil {
		return nil, err
	}
	return m.start(ctx, newID, nil)
}

func (m *Manager) lookup(id string) *Session {
	m.mu.RLock()
	s := m.sessions[id]
	m.mu.RUnlock()
	if s != nil {
		s.touch(m.now())
	}
	return s
}

// start wires the services of one browser session and resolves its identity.
func (m *Manager) start(ctx context.Context, id string, rec *session.Record) (*Session, error) {
	logger := m.logger.With().Str("browser_session", shortID(id)).Logger()
	restored := restoredSession(rec)

	provider := auth.NewProvider(m.gateway, restored)
	store := identity.New(provider, logger)
	cache := cart.New(m.backend, store, logger, m.metrics, m.opts.Cart)
	coord := merge.New(m.backend, store, cache, logger, m.metrics)

	// The cache must drop the previous identity's entry before the
	// coordinator or anything else reacts to a change.
	store.SetSnapshotter(cache)
	store.Subscribe(cache)
	store.Subscribe(coord)

	s := &Session{
		ID:       id,
		Identity: store,
		Cart:     cache,
		provider: provider,
		merge:    coord,
		manager:  m,
		logger:   logger,
		lastSeen: m.now(),
	}
	if rec != nil {
		s.themeID = rec.ThemeID
		if rec.MergeSource != "" {
			logger.Info().Str("merge_source", rec.MergeSource).Msg("dropping merge interrupted by restart")
		}
	}

	s.unsub = append(s.unsub,
		provider.OnAuthStateChange(ctx, store.HandleAuthEvent),
		provider.OnAuthStateChange(ctx, func(ctx context.Context, event auth.Event, _ *domain.Session) {
			if event != auth.EventInitialSession {
				m.persist(ctx, s)
			}
		}),
	)

	if err := store.Initialize(ctx); err != nil {
		logger.Warn().Err(err).Msg("identity unavailable, continuing without one")
	}
	m.persist(ctx, s)

	m.mu.Lock()
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()
	m.metrics.SetLiveSessions(n)

	logger.Debug().Bool("restored", rec != nil).Msg("browser session opened")
	return s, nil
}

func (m *Manager) persist(ctx context.Context, s *Session) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := m.repo.Save(ctx, s.record()); err != nil {
		s.logger.Warn().Err(err).Msg("persist browser session")
	}
}

// Len returns the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops sessions idle longer than the idle timeout and purges expired
// records from the repository.
func (m *Manager) Sweep(ctx context.Context) {
	cutoff := m.now().Add(-m.opts.IdleTimeout)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range idle {
		m.persist(ctx, s)
		s.close()
	}
	m.metrics.SetLiveSessions(n)

	purged, err := m.repo.Purge(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("purge expired browser sessions")
	}
	if len(idle) > 0 || purged > 0 {
		m.logger.Debug().Int("evicted", len(idle)).Int64("purged", purged).Msg("swept browser sessions")
	}
}

// Run sweeps periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.opts.IdleTimeout / 2
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep(ctx)
		}
	}
}

// Close persists and stops every live session.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		m.persist(ctx, s)
		s.close()
	}
	m.metrics.SetLiveSessions(0)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
