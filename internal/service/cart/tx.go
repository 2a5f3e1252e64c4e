package cart

import (
	"context"
	"sync"

	"pixel-storefront/internal/domain"
)

// TxState is the lifecycle of an optimistic mutation.
type TxState int

const (
	TxPending TxState = iota
	TxCommitted
	TxRolledBack
)

func (s TxState) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled_back"
	}
	return "unknown"
}

type txKind int

const (
	txAdd txKind = iota
	txUpdate
	txRemove
	txClear
)

func (k txKind) String() string {
	switch k {
	case txAdd:
		return "add"
	case txUpdate:
		return "update"
	case txRemove:
		return "remove"
	case txClear:
		return "clear"
	}
	return "unknown"
}

// Tx is one optimistic cart mutation. It is applied to the cached view while
// pending and resolved when the server answers.
type Tx struct {
	id        uint64
	kind      txKind
	lineID    string
	productID string
	quantity  int
	product   domain.CartProduct

	mu     sync.Mutex
	state  TxState
	result *domain.Cart
	err    error
	done   chan struct{}
}

func newTx(id uint64, kind txKind) *Tx {
	return &Tx{id: id, kind: kind, done: make(chan struct{})}
}

// LineID is the line the mutation targets. For an add it is a temporary id
// until the server assigns one; later mutations may keep using it.
func (t *Tx) LineID() string {
	return t.lineID
}

func (t *Tx) State() TxState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Wait blocks until the server has answered or ctx is done.
func (t *Tx) Wait(ctx context.Context) (*domain.Cart, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result.Clone(), t.err
}

func (t *Tx) resolve(state TxState, result *domain.Cart, err error) {
	t.mu.Lock()
	if t.state != TxPending {
		t.mu.Unlock()
		return
	}
	t.state = state
	t.result = result.Clone()
	t.err = err
	t.mu.Unlock()
	close(t.done)
}
