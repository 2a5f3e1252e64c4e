package auth

import (
	"context"
	"sync"
	"time"

	"pixel-storefront/internal/domain"
)

// Event is an auth state change kind.
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// refreshLeeway refreshes tokens slightly before they expire.
const refreshLeeway = 30 * time.Second

// Listener receives auth state changes. session is nil for EventSignedOut.
type Listener func(ctx context.Context, event Event, session *domain.Session)

// Gateway is the auth provider API a Provider drives.
type Gateway interface {
	SignInAnonymously(ctx context.Context) (*domain.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, email, password string) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Provider holds one browser's auth session and emits state changes to
// subscribers, synchronously and in subscription order.
type Provider struct {
	gateway Gateway
	now     func() time.Time

	mu        sync.Mutex
	session   *domain.Session
	listeners map[int]Listener
	order     []int
	nextID    int

	// refreshMu serializes refreshes so one expired token is refreshed once.
	refreshMu sync.Mutex
}

// NewProvider builds a provider, optionally restoring a persisted session.
func NewProvider(gateway Gateway, restored *domain.Session) *Provider {
	return &Provider{
		gateway:   gateway,
		now:       time.Now,
		session:   restored.Clone(),
		listeners: make(map[int]Listener),
	}
}

// OnAuthStateChange subscribes l and immediately delivers EventInitialSession
// with the current session. The returned func unsubscribes.
func (p *Provider) OnAuthStateChange(ctx context.Context, l Listener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = l
	p.order = append(p.order, id)
	current := p.session.Clone()
	p.mu.Unlock()

	l(ctx, EventInitialSession, current)

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
		for i, v := range p.order {
			if v == id {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
	}
}

func (p *Provider) emit(ctx context.Context, event Event, session *domain.Session) {
	p.mu.Lock()
	ls := make([]Listener, 0, len(p.order))
	for _, id := range p.order {
		ls = append(ls, p.listeners[id])
	}
	p.mu.Unlock()

	for _, l := range ls {
		l(ctx, event, session.Clone())
	}
}

func (p *Provider) set(ctx context.Context, event Event, session *domain.Session) *domain.Session {
	p.mu.Lock()
	p.session = session.Clone()
	p.mu.Unlock()
	p.emit(ctx, event, session)
	return session.Clone()
}

// GetSession returns the current session, refreshing it first when the access
// token is about to expire. A failed refresh signs the browser out.
func (p *Provider) GetSession(ctx context.Context) (*domain.Session, error) {
	p.mu.Lock()
	current := p.session.Clone()
	p.mu.Unlock()

	if current == nil || current.ExpiresAt.IsZero() || !current.Expired(p.now().Add(refreshLeeway)) {
		return current, nil
	}
	return p.refresh(ctx, current)
}

func (p *Provider) refresh(ctx context.Context, stale *domain.Session) (*domain.Session, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	p.mu.Lock()
	current := p.session.Clone()
	p.mu.Unlock()
	if current == nil || current.AccessToken != stale.AccessToken {
		return current, nil
	}

	if current.RefreshToken == "" {
		p.set(ctx, EventSignedOut, nil)
		return nil, nil
	}
	fresh, err := p.gateway.Refresh(ctx, current.RefreshToken)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		p.set(ctx, EventSignedOut, nil)
		return nil, err
	}
	return p.set(ctx, EventTokenRefreshed, fresh), nil
}

func (p *Provider) SignInAnonymously(ctx context.Context) (*domain.Session, error) {
	s, err := p.gateway.SignInAnonymously(ctx)
	if err != nil {
		return nil, err
	}
	return p.set(ctx, EventSignedIn, s), nil
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	s, err := p.gateway.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return p.set(ctx, EventSignedIn, s), nil
}

// SignUp registers a credentialed user. When the provider issues a session
// straight away the browser is signed in as that user.
func (p *Provider) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	s, err := p.gateway.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return p.set(ctx, EventSignedIn, s), nil
}

// SignOut clears the local session even when revoking it upstream fails.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	current := p.session.Clone()
	p.mu.Unlock()
	if current == nil {
		return nil
	}

	err := p.gateway.SignOut(ctx, current.AccessToken)
	p.set(ctx, EventSignedOut, nil)
	return err
}

// Current returns the session without refreshing it.
func (p *Provider) Current() *domain.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.Clone()
}
