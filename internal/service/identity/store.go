package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"pixel-storefront/internal/auth"
	"pixel-storefront/internal/domain"
)

// State is the lifecycle of a Store. It never returns to Uninitialized.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// AuthProvider is the slice of the auth collaborator the store drives.
type AuthProvider interface {
	GetSession(ctx context.Context) (*domain.Session, error)
	SignInAnonymously(ctx context.Context) (*domain.Session, error)
}

// Snapshotter captures the cart held for an identity. It is consulted before
// an anonymous identity is swapped out, while token still belongs to it, so
// the guest cart survives the swap.
type Snapshotter interface {
	Snapshot(ctx context.Context, identityID, token string) (*domain.Cart, error)
}

// Store holds the single active identity of a browser session.
type Store struct {
	auth   AuthProvider
	logger zerolog.Logger

	// swapMu serializes identity replacement together with listener delivery,
	// so listeners observe changes in the order they happened.
	swapMu sync.Mutex

	mu          sync.RWMutex
	state       State
	loading     bool
	session     *domain.Session
	mergeSource string
	snapshotter Snapshotter
	listeners   []Listener

	flight singleflight.Group
}

func New(provider AuthProvider, logger zerolog.Logger) *Store {
	return &Store{
		auth:    provider,
		logger:  logger.With().Str("component", "identity").Logger(),
		loading: true,
	}
}

// SetSnapshotter installs the cart snapshot source.
func (s *Store) SetSnapshotter(sn Snapshotter) {
	s.mu.Lock()
	s.snapshotter = sn
	s.mu.Unlock()
}

// Subscribe registers l. Listeners are called synchronously in registration order.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Session returns the active identity, or nil before initialization completes.
func (s *Store) Session() *domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	id := s.session.Identity
	return &id
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Ready reports a fully resolved identity: initialized, not loading, identity present.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == Ready && !s.loading && s.session != nil
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// MergeSource is the anonymous id awaiting a merge, or "".
func (s *Store) MergeSource() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mergeSource
}

// ClearMergeSource drops the pending merge source if it is still id.
func (s *Store) ClearMergeSource(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mergeSource == id {
		s.mergeSource = ""
	}
}

// Token returns the access token of the active identity without refreshing it.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.AccessToken
}

// Snapshot returns a copy of the active session for persistence.
func (s *Store) Snapshot() (*domain.Session, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Clone(), s.mergeSource
}

// AccessToken returns a usable token for identityID. It fails with
// domain.ErrStaleIdentity once identityID is no longer the active identity.
func (s *Store) AccessToken(ctx context.Context, identityID string) (string, error) {
	s.mu.RLock()
	current := s.session.Clone()
	s.mu.RUnlock()

	if current == nil || current.Identity.ID != identityID {
		return "", domain.ErrStaleIdentity
	}
	if !current.Expired(time.Now()) {
		return current.AccessToken, nil
	}

	refreshed, err := s.auth.GetSession(ctx)
	if err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	if refreshed == nil || refreshed.Identity.ID != identityID {
		return "", domain.ErrStaleIdentity
	}
	s.SetSession(ctx, refreshed)
	return refreshed.AccessToken, nil
}

// SetSession replaces the current session.
//
// An anonymous identity replaced by a different authenticated one is recorded
// as the pending merge source, and its cart is captured before the swap. An
// authenticated identity replaced by nil clears any pending merge source.
func (s *Store) SetSession(ctx context.Context, next *domain.Session) {
	s.swapMu.Lock()
	defer s.swapMu.Unlock()

	s.mu.RLock()
	var (
		prev      *domain.Identity
		prevToken string
	)
	if s.session != nil {
		id := s.session.Identity
		prev = &id
		prevToken = s.session.AccessToken
	}
	snapshotter := s.snapshotter
	s.mu.RUnlock()

	var nextID *domain.Identity
	if next != nil {
		id := next.Identity
		nextID = &id
	}

	change := Change{Prev: prev, Next: nextID}
	if prev.IsAnonymous() && nextID.IsAuthenticated() && prev.ID != nextID.ID {
		change.MergeSource = prev.ID
		if snapshotter != nil {
			change.Snapshot, change.SnapshotErr = snapshotter.Snapshot(ctx, prev.ID, prevToken)
		}
	}

	s.mu.Lock()
	switch {
	case change.MergeSource != "":
		s.mergeSource = change.MergeSource
	case prev.IsAuthenticated() && next == nil:
		s.mergeSource = ""
	}
	s.session = next.Clone()
	s.loading = false
	s.state = Ready
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	if domain.SameIdentity(prev, nextID) {
		return
	}

	ev := s.logger.Info().Str("next", identityLabel(nextID)).Str("prev", identityLabel(prev))
	if change.MergeSource != "" {
		ev = ev.Str("merge_source", change.MergeSource).Int("snapshot_items", len(change.Snapshot.MergeLines()))
		if change.SnapshotErr != nil {
			ev = ev.AnErr("snapshot_err", change.SnapshotErr)
		}
	}
	ev.Msg("identity changed")

	for _, l := range listeners {
		l.IdentityChanged(ctx, change)
	}
}

// EnsureUser creates an anonymous identity when none exists. Concurrent
// callers share one in-flight request to the auth provider.
func (s *Store) EnsureUser(ctx context.Context) error {
	if s.Session() != nil {
		return nil
	}
	_, err, _ := s.flight.Do("anonymous", func() (any, error) {
		if s.Session() != nil {
			return nil, nil
		}
		sess, err := s.auth.SignInAnonymously(ctx)
		if err != nil {
			s.mu.Lock()
			s.loading = false
			s.mu.Unlock()
			return nil, fmt.Errorf("create anonymous identity: %w", err)
		}
		s.SetSession(ctx, sess)
		return nil, nil
	})
	return err
}

// Initialize reads any existing session from the auth provider and signs in
// anonymously only when there is none. Later calls are no-ops.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Uninitialized {
		s.mu.Unlock()
		return nil
	}
	s.state = Initializing
	s.loading = true
	s.mu.Unlock()

	existing, err := s.auth.GetSession(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("read existing session")
	}
	if existing != nil {
		s.SetSession(ctx, existing)
		return nil
	}
	if err := s.EnsureUser(ctx); err != nil {
		s.mu.Lock()
		s.state = Ready
		s.loading = false
		s.mu.Unlock()
		return err
	}
	return nil
}

// HandleAuthEvent applies an auth state change to the store.
func (s *Store) HandleAuthEvent(ctx context.Context, event auth.Event, session *domain.Session) {
	switch event {
	case auth.EventInitialSession:
		if session == nil {
			return
		}
		s.SetSession(ctx, session)
	case auth.EventSignedIn, auth.EventTokenRefreshed, auth.EventUserUpdated:
		s.SetSession(ctx, session)
	case auth.EventSignedOut:
		s.SetSession(ctx, nil)
		s.mu.Lock()
		s.mergeSource = ""
		s.mu.Unlock()
	default:
		s.logger.Warn().Str("event", string(event)).Msg("unknown auth event")
	}
}

func identityLabel(id *domain.Identity) string {
	switch {
	case id == nil:
		return "none"
	case id.Anonymous:
		return "anonymous:" + id.ID
	default:
		return "user:" + id.ID
	}
}
