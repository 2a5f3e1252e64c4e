// Package merge folds a guest cart into the cart of the account the guest
// just signed in to.
package merge

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pixel-storefront/internal/domain"
	"pixel-storefront/internal/metrics"
	"pixel-storefront/internal/service/identity"
)

// Merger calls the backend merge endpoints with the bearer token of the
// authenticated identity. MergeGuestCart lets the backend read the guest cart
// itself and is used when the storefront could not.
type Merger interface {
	MergeCart(ctx context.Context, token string, lines []domain.MergeLine) error
	MergeGuestCart(ctx context.Context, token, guestID string) error
}

// Sources tracks the pending merge source. identity.Store implements it.
type Sources interface {
	MergeSource() string
	ClearMergeSource(id string)
	AccessToken(ctx context.Context, identityID string) (string, error)
}

// Invalidator forces a refetch of an identity's cart.
type Invalidator interface {
	Invalidate(identityID string)
}

const defaultTimeout = 20 * time.Second

// Coordinator reacts to logins. Each merge source is merged at most once:
// the source is cleared before the backend call, and a failed merge is never
// retried.
type Coordinator struct {
	merger  Merger
	sources Sources
	carts   Invalidator
	logger  zerolog.Logger
	metrics *metrics.Storefront
	timeout time.Duration

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(merger Merger, sources Sources, carts Invalidator, logger zerolog.Logger, m *metrics.Storefront) *Coordinator {
	base, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		merger:   merger,
		sources:  sources,
		carts:    carts,
		logger:   logger.With().Str("component", "merge").Logger(),
		metrics:  m,
		timeout:  defaultTimeout,
		base:     base,
		cancel:   cancel,
		inflight: make(map[string]struct{}),
	}
}

// IdentityChanged starts a merge for a login that carries a guest cart. It
// never blocks the identity change on the merge.
func (c *Coordinator) IdentityChanged(ctx context.Context, change identity.Change) {
	if change.MergeSource == "" || !change.IsLogin() {
		return
	}
	source := change.MergeSource
	if c.sources.MergeSource() != source {
		c.logger.Debug().Str("merge_source", source).Msg("merge source already consumed")
		return
	}

	if !change.NeedsMerge() {
		c.sources.ClearMergeSource(source)
		c.metrics.IncMerge(metrics.MergeSkipped)
		c.logger.Debug().Str("merge_source", source).Msg("guest cart empty, nothing to merge")
		return
	}

	c.mu.Lock()
	if _, ok := c.inflight[source]; ok {
		c.mu.Unlock()
		return
	}
	c.inflight[source] = struct{}{}
	c.mu.Unlock()

	c.sources.ClearMergeSource(source)

	req := request{source: source, target: change.Next.ID}
	if change.SnapshotErr != nil {
		req.byID = true
		c.logger.Warn().Err(change.SnapshotErr).Str("merge_source", source).Msg("guest cart unreadable, backend will merge it by id")
	} else {
		req.lines = change.Snapshot.MergeLines()
	}

	c.wg.Add(1)
	go c.merge(req)
}

type request struct {
	source string
	target string
	lines  []domain.MergeLine
	// byID asks the backend to read the guest cart itself.
	byID bool
}

func (c *Coordinator) merge(req request) {
	defer c.wg.Done()
	start := time.Now()
	source, target := req.source, req.target

	ctx, cancel := context.WithTimeout(c.base, c.timeout)
	defer cancel()

	err := c.send(ctx, req)

	c.carts.Invalidate(target)

	c.mu.Lock()
	delete(c.inflight, source)
	c.mu.Unlock()

	log := c.logger.With().
		Str("merge_source", source).
		Str("identity_id", target).
		Int("lines", len(req.lines)).
		Bool("by_id", req.byID).
		Dur("took", time.Since(start)).
		Logger()
	if err != nil {
		c.metrics.IncMerge(metrics.MergeFailed)
		log.Error().Err(err).Msg("guest cart merge failed, cart is lost")
		return
	}
	c.metrics.IncMerge(metrics.MergeSucceeded)
	log.Info().Msg("guest cart merged")
}

func (c *Coordinator) send(ctx context.Context, req request) error {
	token, err := c.sources.AccessToken(ctx, req.target)
	if err != nil {
		return err
	}
	if req.byID {
		return c.merger.MergeGuestCart(ctx, token, req.source)
	}
	return c.merger.MergeCart(ctx, token, req.lines)
}

// Merging reports whether a merge is in flight.
func (c *Coordinator) Merging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight) > 0
}

// Wait blocks until every merge started so far has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close abandons in-flight merges and waits for them to exit.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}
