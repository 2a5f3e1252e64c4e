package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pixel-storefront/internal/domain"
	"pixel-storefront/internal/metrics"
	"pixel-storefront/internal/service/identity"
)

const (
	tempLinePrefix = "pending-"
	// snapshotTimeout bounds the guest cart read done during a login swap.
	snapshotTimeout = 5 * time.Second
)

// Backend is the cart API of the storefront backend.
type Backend interface {
	GetCart(ctx context.Context, token string) (*domain.Cart, error)
	AddCartItem(ctx context.Context, token, productID string, quantity int) (*domain.Cart, error)
	UpdateCartItem(ctx context.Context, token, itemID string, quantity int) (*domain.Cart, error)
	RemoveCartItem(ctx context.Context, token, itemID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, token string) (*domain.Cart, error)
}

// TokenSource hands out bearer tokens for an identity. It must fail with
// domain.ErrStaleIdentity once the identity has been replaced.
type TokenSource interface {
	AccessToken(ctx context.Context, identityID string) (string, error)
}

type Options struct {
	// StaleAfter is how long a fetched cart is served without a background refetch.
	StaleAfter time.Duration
	// NotFoundRetries bounds refetches while the backend still reports "cart not found".
	NotFoundRetries int
	RetryWait       time.Duration
	// QueueSize bounds the mutations waiting to be sent for one identity.
	QueueSize int
}

func DefaultOptions() Options {
	return Options{
		StaleAfter:      30 * time.Second,
		NotFoundRetries: 2,
		RetryWait:       300 * time.Millisecond,
		QueueSize:       32,
	}
}

// View is what the cache shows for an identity: the committed snapshot with
// all pending mutations applied on top.
type View struct {
	IdentityID string
	Cart       *domain.Cart
	Summary    domain.CartSummary
	Loading    bool
	Stale      bool
	Pending    int
	Err        error
}

type entry struct {
	identityID string
	ctx        context.Context
	cancel     context.CancelFunc

	committed *domain.Cart
	fetchedAt time.Time
	stale     bool
	fetching  bool
	fetchGen  uint64
	version   uint64
	held      bool
	lastErr   error

	pending []*Tx
	aliases map[string]string
	queue   chan *Tx
}

func (e *entry) resolve(lineID string) string {
	if real, ok := e.aliases[lineID]; ok {
		return real
	}
	return lineID
}

// Cache keeps the cart of the active identity of one browser session.
//
// Only the active identity has an entry. Mutations are applied optimistically
// and sent to the backend one at a time, in the order they were issued.
type Cache struct {
	backend Backend
	tokens  TokenSource
	logger  zerolog.Logger
	metrics *metrics.Storefront
	opts    Options
	now     func() time.Time

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	current string
	entries map[string]*entry
	nextTx  uint64
}

func New(backend Backend, tokens TokenSource, logger zerolog.Logger, m *metrics.Storefront, opts Options) *Cache {
	base, cancel := context.WithCancel(context.Background())
	return &Cache{
		backend: backend,
		tokens:  tokens,
		logger:  logger.With().Str("component", "cart").Logger(),
		metrics: m,
		opts:    opts,
		now:     time.Now,
		base:    base,
		cancel:  cancel,
		entries: make(map[string]*entry),
	}
}

// Close stops all background work and waits for it to exit.
func (c *Cache) Close() {
	c.mu.Lock()
	for id := range c.entries {
		c.evictLocked(id)
	}
	c.current = ""
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

// Has reports whether an entry exists for identityID.
func (c *Cache) Has(identityID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[identityID]
	return ok
}

// Get returns the cart view for identityID, starting a background fetch when
// the entry is absent or stale. It never serves another identity's cart.
func (c *Cache) Get(identityID string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.currentEntryLocked(identityID)
	if err != nil {
		return View{}, err
	}
	if e.held {
		return View{IdentityID: identityID, Loading: true}, nil
	}

	stale := e.committed == nil || e.stale || c.now().Sub(e.fetchedAt) > c.opts.StaleAfter
	if stale && !e.fetching {
		c.fetchLocked(e)
	}
	return c.viewLocked(e, stale && e.committed != nil), nil
}

// Snapshot returns the cart currently shown for identityID. When nothing has
// been fetched for it yet the cart is loaded with token, which must still
// belong to identityID, and any pending lines are laid over it.
func (c *Cache) Snapshot(ctx context.Context, identityID, token string) (*domain.Cart, error) {
	c.mu.Lock()
	e, ok := c.entries[identityID]
	if ok && e.committed != nil {
		defer c.mu.Unlock()
		return c.overlayLocked(e), nil
	}
	c.mu.Unlock()

	var base *domain.Cart
	if token != "" {
		ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
		defer cancel()
		cart, err := c.backend.GetCart(ctx, token)
		switch {
		case errors.Is(err, domain.ErrCartNotFound):
		case err != nil:
			return nil, fmt.Errorf("load guest cart: %w", err)
		default:
			base = cart
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok = c.entries[identityID]
	if !ok {
		return base, nil
	}
	if e.committed != nil {
		return c.overlayLocked(e), nil
	}
	return overlay(base, e), nil
}

// Invalidate forces a refetch for identityID and releases a merge hold.
// Fetches already in flight are discarded.
func (c *Cache) Invalidate(identityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if identityID == "" || identityID != c.current {
		return
	}
	e, ok := c.entries[identityID]
	if !ok {
		e = c.newEntryLocked(identityID)
	}
	e.held = false
	e.stale = true
	c.fetchLocked(e)
}

// IdentityChanged drops every entry that does not belong to the new identity
// before anything can be read for it, then prefetches the new identity's cart.
// When a guest cart is about to be merged the new entry is held in the
// loading state until Invalidate is called.
func (c *Cache) IdentityChanged(ctx context.Context, change identity.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range c.entries {
		if change.Next == nil || id != change.Next.ID {
			c.evictLocked(id)
		}
	}
	c.current = ""
	if change.Next == nil {
		return
	}

	c.current = change.Next.ID
	e, ok := c.entries[c.current]
	if !ok {
		e = c.newEntryLocked(c.current)
	}
	if change.NeedsMerge() {
		e.held = true
		return
	}
	if !e.fetching {
		c.fetchLocked(e)
	}
}

func (c *Cache) currentEntryLocked(identityID string) (*entry, error) {
	if c.current == "" {
		return nil, domain.ErrIdentityNotReady
	}
	if identityID != c.current {
		return nil, domain.ErrStaleIdentity
	}
	e, ok := c.entries[identityID]
	if !ok {
		e = c.newEntryLocked(identityID)
		c.fetchLocked(e)
	}
	return e, nil
}

func (c *Cache) newEntryLocked(identityID string) *entry {
	ctx, cancel := context.WithCancel(c.base)
	e := &entry{
		identityID: identityID,
		ctx:        ctx,
		cancel:     cancel,
		aliases:    make(map[string]string),
		queue:      make(chan *Tx, c.opts.QueueSize),
	}
	c.entries[identityID] = e
	c.wg.Add(1)
	go c.run(e)
	return e
}

func (c *Cache) evictLocked(identityID string) {
	e, ok := c.entries[identityID]
	if !ok {
		return
	}
	delete(c.entries, identityID)
	e.cancel()
	for _, tx := range e.pending {
		tx.resolve(TxRolledBack, nil, domain.ErrStaleIdentity)
	}
	e.pending = nil
}

func (c *Cache) viewLocked(e *entry, stale bool) View {
	v := View{
		IdentityID: e.identityID,
		Loading:    e.committed == nil && e.fetching,
		Stale:      stale,
		Pending:    len(e.pending),
		Err:        e.lastErr,
	}
	if e.committed != nil || len(e.pending) > 0 {
		v.Cart = c.overlayLocked(e)
		v.Summary = v.Cart.Summary()
	}
	return v
}

func (c *Cache) overlayLocked(e *entry) *domain.Cart {
	return overlay(e.committed, e)
}

// overlay lays e's pending transactions over a copy of base.
func overlay(base *domain.Cart, e *entry) *domain.Cart {
	view := base.Clone()
	if view == nil {
		view = &domain.Cart{Items: []domain.CartItem{}}
	}
	for _, tx := range e.pending {
		apply(view, tx, e.resolve)
	}
	return view
}

func apply(view *domain.Cart, tx *Tx, resolve func(string) string) {
	switch tx.kind {
	case txAdd:
		idx := view.IndexOf(resolve(tx.lineID))
		if idx < 0 {
			idx = view.IndexOfProduct(tx.productID)
		}
		if idx >= 0 {
			view.Items[idx].Quantity += tx.quantity
			return
		}
		view.Items = append(view.Items, domain.CartItem{
			ID:        tx.lineID,
			ProductID: tx.productID,
			Quantity:  tx.quantity,
			Product:   tx.product,
		})
	case txUpdate:
		if idx := view.IndexOf(resolve(tx.lineID)); idx >= 0 {
			view.Items[idx].Quantity = tx.quantity
		}
	case txRemove:
		if idx := view.IndexOf(resolve(tx.lineID)); idx >= 0 {
			view.Items = append(view.Items[:idx], view.Items[idx+1:]...)
		}
	case txClear:
		view.Items = view.Items[:0]
	}
}

func (c *Cache) fetchLocked(e *entry) {
	e.fetching = true
	e.fetchGen++
	gen, version := e.fetchGen, e.version
	c.wg.Add(1)
	go c.fetch(e, gen, version)
}

func (c *Cache) fetch(e *entry, gen, version uint64) {
	defer c.wg.Done()

	cart, err := c.load(e)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries[e.identityID] != e || e.fetchGen != gen {
		c.metrics.IncCartFetch("dropped")
		return
	}
	e.fetching = false
	if err != nil {
		e.lastErr = err
		c.metrics.IncCartFetch("error")
		c.logger.Warn().Err(err).Str("identity_id", e.identityID).Msg("fetch cart")
		return
	}
	// A mutation answered since the fetch began, or is about to; its
	// response is at least as fresh as this one.
	if e.version != version || len(e.pending) > 0 {
		c.metrics.IncCartFetch("dropped")
		return
	}
	e.committed = cart
	e.fetchedAt = c.now()
	e.stale = false
	e.lastErr = nil
	c.metrics.IncCartFetch("ok")
}

// load fetches the cart, retrying a bounded number of times while the backend
// has not yet provisioned a cart for a fresh identity.
func (c *Cache) load(e *entry) (*domain.Cart, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.tokens.AccessToken(e.ctx, e.identityID)
		if err != nil {
			return nil, err
		}
		cart, err := c.backend.GetCart(e.ctx, token)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, domain.ErrCartNotFound) || attempt >= c.opts.NotFoundRetries {
			return nil, err
		}
		select {
		case <-time.After(c.opts.RetryWait):
		case <-e.ctx.Done():
			return nil, e.ctx.Err()
		}
	}
}

// AddItem adds quantity units of productID. product carries display data and
// inventory for the optimistic line; nil skips the inventory guard.
func (c *Cache) AddItem(identityID, productID string, product *domain.CartProduct, quantity int) (*Tx, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: product id is required", domain.ErrInvalidInput)
	}
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", domain.ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.mutableEntryLocked(identityID)
	if err != nil {
		return nil, err
	}
	view := c.overlayLocked(e)
	idx := view.IndexOfProduct(productID)

	if product != nil {
		inCart := 0
		if idx >= 0 {
			inCart = view.Items[idx].Quantity
		}
		if product.Inventory <= 0 {
			return nil, fmt.Errorf("%w: product is out of stock", domain.ErrInvalidInput)
		}
		if inCart+quantity > product.Inventory {
			return nil, fmt.Errorf("%w: only %d available", domain.ErrInvalidInput, product.Inventory)
		}
	}

	tx := c.newTxLocked(txAdd)
	tx.productID = productID
	tx.quantity = quantity
	if product != nil {
		tx.product = *product
	}
	if idx >= 0 {
		tx.lineID = view.Items[idx].ID
	} else {
		tx.lineID = tempLinePrefix + uuid.NewString()
	}
	return c.enqueueLocked(e, tx)
}

// UpdateItem sets the quantity of a line. lineID may be the temporary id of a
// line whose add is still pending.
func (c *Cache) UpdateItem(identityID, lineID string, quantity int) (*Tx, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", domain.ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.mutableEntryLocked(identityID)
	if err != nil {
		return nil, err
	}
	view := c.overlayLocked(e)
	idx := view.IndexOf(e.resolve(lineID))
	if idx < 0 {
		return nil, fmt.Errorf("cart line %s: %w", lineID, domain.ErrNotFound)
	}
	if inv := view.Items[idx].Product.Inventory; inv > 0 && quantity > inv {
		return nil, fmt.Errorf("%w: only %d available", domain.ErrInvalidInput, inv)
	}

	tx := c.newTxLocked(txUpdate)
	tx.lineID = lineID
	tx.quantity = quantity
	return c.enqueueLocked(e, tx)
}

func (c *Cache) RemoveItem(identityID, lineID string) (*Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.mutableEntryLocked(identityID)
	if err != nil {
		return nil, err
	}
	if c.overlayLocked(e).IndexOf(e.resolve(lineID)) < 0 {
		return nil, fmt.Errorf("cart line %s: %w", lineID, domain.ErrNotFound)
	}

	tx := c.newTxLocked(txRemove)
	tx.lineID = lineID
	return c.enqueueLocked(e, tx)
}

func (c *Cache) Clear(identityID string) (*Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.mutableEntryLocked(identityID)
	if err != nil {
		return nil, err
	}
	return c.enqueueLocked(e, c.newTxLocked(txClear))
}

func (c *Cache) mutableEntryLocked(identityID string) (*entry, error) {
	e, err := c.currentEntryLocked(identityID)
	if err != nil {
		return nil, err
	}
	if e.held {
		return nil, domain.ErrIdentityNotReady
	}
	return e, nil
}

func (c *Cache) newTxLocked(kind txKind) *Tx {
	c.nextTx++
	return newTx(c.nextTx, kind)
}

func (c *Cache) enqueueLocked(e *entry, tx *Tx) (*Tx, error) {
	select {
	case e.queue <- tx:
		e.pending = append(e.pending, tx)
		return tx, nil
	default:
		return nil, fmt.Errorf("%w: too many pending cart changes", domain.ErrUnavailable)
	}
}

// run sends the mutations of one entry to the backend, strictly one at a time.
func (c *Cache) run(e *entry) {
	defer c.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			for {
				select {
				case tx := <-e.queue:
					tx.resolve(TxRolledBack, nil, domain.ErrStaleIdentity)
				default:
					return
				}
			}
		case tx := <-e.queue:
			c.dispatch(e, tx)
		}
	}
}

func (c *Cache) dispatch(e *entry, tx *Tx) {
	c.mu.Lock()
	if c.entries[e.identityID] != e {
		c.mu.Unlock()
		tx.resolve(TxRolledBack, nil, domain.ErrStaleIdentity)
		return
	}
	target := e.resolve(tx.lineID)
	c.mu.Unlock()

	// A temporary id that never resolved belongs to an add that was rolled back.
	if strings.HasPrefix(target, tempLinePrefix) && tx.kind != txAdd {
		if tx.kind == txRemove {
			c.finish(e, tx, nil, nil)
			return
		}
		c.finish(e, tx, nil, fmt.Errorf("cart line %s: %w", tx.lineID, domain.ErrNotFound))
		return
	}

	token, err := c.tokens.AccessToken(e.ctx, e.identityID)
	if err != nil {
		c.finish(e, tx, nil, err)
		return
	}

	var cart *domain.Cart
	switch tx.kind {
	case txAdd:
		cart, err = c.backend.AddCartItem(e.ctx, token, tx.productID, tx.quantity)
	case txUpdate:
		cart, err = c.backend.UpdateCartItem(e.ctx, token, target, tx.quantity)
	case txRemove:
		cart, err = c.backend.RemoveCartItem(e.ctx, token, target)
	case txClear:
		cart, err = c.backend.ClearCart(e.ctx, token)
	}
	c.finish(e, tx, cart, err)
}

// finish commits or rolls back tx. Rolling back only drops the overlay: the
// committed snapshot was never touched by the optimistic change.
func (c *Cache) finish(e *entry, tx *Tx, cart *domain.Cart, err error) {
	c.mu.Lock()
	if c.entries[e.identityID] != e {
		c.mu.Unlock()
		tx.resolve(TxRolledBack, nil, domain.ErrStaleIdentity)
		return
	}
	for i, p := range e.pending {
		if p == tx {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			break
		}
	}

	if err != nil {
		c.mu.Unlock()
		c.metrics.IncCartRollback()
		c.logger.Warn().Err(err).
			Str("identity_id", e.identityID).
			Str("op", tx.kind.String()).
			Msg("cart mutation rolled back")
		tx.resolve(TxRolledBack, nil, err)
		return
	}

	if cart != nil {
		if tx.kind == txAdd {
			if idx := cart.IndexOfProduct(tx.productID); idx >= 0 && cart.Items[idx].ID != tx.lineID {
				e.aliases[tx.lineID] = cart.Items[idx].ID
			}
		}
		e.committed = cart
		e.version++
		e.fetchedAt = c.now()
		e.stale = false
		e.lastErr = nil
	}
	result := c.overlayLocked(e)
	c.mu.Unlock()

	tx.resolve(TxCommitted, result, nil)
}
