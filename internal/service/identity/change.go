package identity

import (
	"context"

	"pixel-storefront/internal/domain"
)

// Change describes one identity replacement.
type Change struct {
	Prev *domain.Identity
	Next *domain.Identity
	// MergeSource is the anonymous id recorded by this change, if any.
	MergeSource string
	// Snapshot is the guest cart captured before the swap.
	Snapshot *domain.Cart
	// SnapshotErr is set when the guest cart could not be read. Its contents
	// are unknown, not empty.
	SnapshotErr error
}

// IsLogin reports an anonymous to authenticated transition.
func (c Change) IsLogin() bool {
	return c.Prev.IsAnonymous() && c.Next.IsAuthenticated()
}

// IsLogout reports an authenticated identity being dropped.
func (c Change) IsLogout() bool {
	return c.Prev.IsAuthenticated() && c.Next == nil
}

// NeedsMerge reports whether a guest cart has to be merged into Next. Only a
// guest cart known to be empty is skipped.
func (c Change) NeedsMerge() bool {
	if c.MergeSource == "" || !c.Next.IsAuthenticated() {
		return false
	}
	return c.SnapshotErr != nil || !c.Snapshot.IsEmpty()
}

// Listener observes identity changes.
type Listener interface {
	IdentityChanged(ctx context.Context, change Change)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, change Change)

func (f ListenerFunc) IdentityChanged(ctx context.Context, change Change) {
	f(ctx, change)
}
