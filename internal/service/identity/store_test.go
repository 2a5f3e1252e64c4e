package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pixel-storefront/internal/auth"
	"pixel-storefront/internal/domain"
)

type stubAuth struct {
	existing  *domain.Session
	anonCalls atomic.Int32
	release   chan struct{}
	anonErr   error
	getErr    error
}

func (a *stubAuth) GetSession(ctx context.Context) (*domain.Session, error) {
	return a.existing.Clone(), a.getErr
}

func (a *stubAuth) SignInAnonymously(ctx context.Context) (*domain.Session, error) {
	a.anonCalls.Add(1)
	if a.release != nil {
		<-a.release
	}
	if a.anonErr != nil {
		return nil, a.anonErr
	}
	return anonSession("guest-1"), nil
}

type stubSnapshotter struct {
	carts  map[string]*domain.Cart
	err    error
	calls  []string
	tokens []string
}

func (s *stubSnapshotter) Snapshot(ctx context.Context, id, token string) (*domain.Cart, error) {
	s.calls = append(s.calls, id)
	s.tokens = append(s.tokens, token)
	if s.err != nil {
		return nil, s.err
	}
	return s.carts[id].Clone(), nil
}

func anonSession(id string) *domain.Session {
	return &domain.Session{Identity: *domain.AnonymousIdentity(id), AccessToken: "tok-" + id}
}

func userSession(id string) *domain.Session {
	return &domain.Session{Identity: *domain.AuthenticatedIdentity(id, id+"@example.com"), AccessToken: "tok-" + id}
}

func newTestStore(a AuthProvider) *Store {
	return New(a, zerolog.Nop())
}

func TestSessionNilBeforeInitialization(t *testing.T) {
	store := newTestStore(&stubAuth{})
	if store.Session() != nil {
		t.Fatal("expected nil identity before initialization")
	}
	if store.State() != Uninitialized || store.Ready() {
		t.Fatalf("unexpected state %s", store.State())
	}
}

func TestLoginRecordsMergeSourceOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(&stubAuth{})

	var changes []Change
	store.Subscribe(ListenerFunc(func(ctx context.Context, c Change) { changes = append(changes, c) }))

	store.SetSession(ctx, anonSession("anon-1"))
	store.SetSession(ctx, userSession("user-1"))

	if got := store.MergeSource(); got != "anon-1" {
		t.Fatalf("expected merge source anon-1, got %q", got)
	}
	recorded := 0
	for _, c := range changes {
		if c.MergeSource != "" {
			recorded++
		}
	}
	if recorded != 1 {
		t.Fatalf("expected merge source recorded exactly once, got %d", recorded)
	}

	// A replay of the same sign-in is not a new transition.
	store.SetSession(ctx, userSession("user-1"))
	if len(changes) != 2 {
		t.Fatalf("expected replay to be ignored, got %d changes", len(changes))
	}

	store.ClearMergeSource("anon-1")
	if store.MergeSource() != "" {
		t.Fatal("expected merge source cleared")
	}
}

func TestSameIDDoesNotRecordMergeSource(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(&stubAuth{})

	store.SetSession(ctx, anonSession("same"))
	store.SetSession(ctx, userSession("same"))

	if store.MergeSource() != "" {
		t.Fatalf("linking an anonymous identity in place must not merge, got %q", store.MergeSource())
	}
}

func TestLogoutClearsMergeSource(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(&stubAuth{})

	var changes []Change
	store.Subscribe(ListenerFunc(func(ctx context.Context, c Change) { changes = append(changes, c) }))

	store.SetSession(ctx, anonSession("anon-1"))
	store.SetSession(ctx, userSession("user-1"))
	store.SetSession(ctx, nil)

	if store.MergeSource() != "" {
		t.Fatalf("expected logout to clear merge source, got %q", store.MergeSource())
	}
	last := changes[len(changes)-1]
	if !last.IsLogout() || last.NeedsMerge() || last.MergeSource != "" {
		t.Fatalf("logout change must not request a merge: %+v", last)
	}
}

func TestSnapshotCapturedBeforeSwap(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(&stubAuth{})
	snap := &stubSnapshotter{carts: map[string]*domain.Cart{
		"anon-1": {ID: "c-anon", Items: []domain.CartItem{{ID: "l1", ProductID: "x", Quantity: 2}}},
	}}
	store.SetSnapshotter(snap)

	var sawIdentity *domain.Identity
	var got Change
	store.Subscribe(ListenerFunc(func(ctx context.Context, c Change) {
		got = c
		sawIdentity = store.Session()
	}))

	store.SetSession(ctx, anonSession("anon-1"))
	store.SetSession(ctx, userSession("user-1"))

	if len(snap.calls) != 1 || snap.calls[0] != "anon-1" {
		t.Fatalf("expected one snapshot of anon-1, got %v", snap.calls)
	}
	if snap.tokens[0] != "tok-anon-1" {
		t.Fatalf("snapshot must use the guest token, got %q", snap.tokens[0])
	}
	if !got.NeedsMerge() || got.Snapshot.Items[0].Quantity != 2 {
		t.Fatalf("expected change to carry the guest cart, got %+v", got)
	}
	if sawIdentity == nil || sawIdentity.ID != "user-1" {
		t.Fatalf("listeners must observe the new identity, got %+v", sawIdentity)
	}
}

func TestUnreadableGuestCartStillNeedsMerge(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(&stubAuth{})
	store.SetSnapshotter(&stubSnapshotter{err: fmt.Errorf("load guest cart: %w", domain.ErrUnavailable)})

	var got Change
	store.Subscribe(ListenerFunc(func(ctx context.Context, c Change) { got = c }))

	store.SetSession(ctx, anonSession("anon-1"))
	store.SetSession(ctx, userSession("user-1"))

	if got.Snapshot != nil || !errors.Is(got.SnapshotErr, domain.ErrUnavailable) {
		t.Fatalf("expected the snapshot error to be carried, got %+v", got)
	}
	if !got.NeedsMerge() {
		t.Fatal("a guest cart that could not be read must not be treated as empty")
	}
	if store.MergeSource() != "anon-1" {
		t.Fatalf("merge source = %q", store.MergeSource())
	}
}

func TestListenersRunInRegistrationOrder(t *testing.T) {
	store := newTestStore(&stubAuth{})
	var order []string
	store.Subscribe(ListenerFunc(func(context.Context, Change) { order = append(order, "cache") }))
	store.Subscribe(ListenerFunc(func(context.Context, Change) { order = append(order, "merge") }))

	store.SetSession(context.Background(), anonSession("a"))

	if len(order) != 2 || order[0] != "cache" || order[1] != "merge" {
		t.Fatalf("unexpected delivery order %v", order)
	}
}

func TestEnsureUserSingleFlight(t *testing.T) {
	a := &stubAuth{release: make(chan struct{})}
	store := newTestStore(a)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.EnsureUser(context.Background())
		}()
	}

	// Let both callers enter before the first request completes.
	deadline := time.Now().Add(time.Second)
	for a.anonCalls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(a.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("EnsureUser: %v", err)
		}
	}
	if got := a.anonCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one anonymous sign-in, got %d", got)
	}
	if store.Session() == nil || !store.Session().Anonymous {
		t.Fatal("expected an anonymous identity")
	}

	if err := store.EnsureUser(context.Background()); err != nil || a.anonCalls.Load() != 1 {
		t.Fatalf("EnsureUser with an identity must be a no-op")
	}
}

func TestInitializeUsesExistingSession(t *testing.T) {
	a := &stubAuth{existing: userSession("user-1")}
	store := newTestStore(a)

	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if a.anonCalls.Load() != 0 {
		t.Fatal("must not sign in anonymously when a session exists")
	}
	if !store.Ready() || store.Session().ID != "user-1" {
		t.Fatalf("expected ready with user-1, got %s %+v", store.State(), store.Session())
	}
}

func TestInitializeSignsInAnonymouslyWithoutSession(t *testing.T) {
	a := &stubAuth{}
	store := newTestStore(a)

	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if a.anonCalls.Load() != 1 {
		t.Fatalf("expected one anonymous sign-in, got %d", a.anonCalls.Load())
	}
	if store.State() != Ready {
		t.Fatalf("expected ready, got %s", store.State())
	}
}

func TestInitializeFailureLeavesStoreReadyWithoutIdentity(t *testing.T) {
	a := &stubAuth{anonErr: errors.New("auth down")}
	store := newTestStore(a)

	if err := store.Initialize(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if store.State() != Ready || store.Ready() || store.Loading() {
		t.Fatalf("unexpected state %s ready=%v", store.State(), store.Ready())
	}
}

func TestHandleAuthEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(&stubAuth{})

	store.HandleAuthEvent(ctx, auth.EventInitialSession, nil)
	if store.Session() != nil {
		t.Fatal("empty initial session must not set an identity")
	}
	store.HandleAuthEvent(ctx, auth.EventSignedIn, anonSession("anon-1"))
	store.HandleAuthEvent(ctx, auth.EventSignedIn, userSession("user-1"))
	if store.MergeSource() != "anon-1" {
		t.Fatalf("expected merge source from SIGNED_IN, got %q", store.MergeSource())
	}

	refreshed := userSession("user-1")
	refreshed.AccessToken = "rotated"
	store.HandleAuthEvent(ctx, auth.EventTokenRefreshed, refreshed)
	if store.Token() != "rotated" {
		t.Fatalf("expected rotated token, got %q", store.Token())
	}

	store.HandleAuthEvent(ctx, auth.EventSignedOut, nil)
	if store.Session() != nil || store.MergeSource() != "" {
		t.Fatal("SIGNED_OUT must clear identity and merge tracking")
	}
}

func TestAccessTokenRejectsStaleIdentity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(&stubAuth{})
	store.SetSession(ctx, anonSession("anon-1"))

	tok, err := store.AccessToken(ctx, "anon-1")
	if err != nil || tok != "tok-anon-1" {
		t.Fatalf("unexpected token %q err %v", tok, err)
	}

	store.SetSession(ctx, userSession("user-1"))
	if _, err := store.AccessToken(ctx, "anon-1"); !errors.Is(err, domain.ErrStaleIdentity) {
		t.Fatalf("expected stale identity, got %v", err)
	}
}

func TestAccessTokenRefreshesExpired(t *testing.T) {
	ctx := context.Background()
	fresh := userSession("user-1")
	fresh.AccessToken = "fresh"
	store := newTestStore(&stubAuth{existing: fresh})

	expired := userSession("user-1")
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	store.SetSession(ctx, expired)

	tok, err := store.AccessToken(ctx, "user-1")
	if err != nil || tok != "fresh" {
		t.Fatalf("expected refreshed token, got %q %v", tok, err)
	}
}
