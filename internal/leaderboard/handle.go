package leaderboard

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/playperu/cityfinder/internal/cityfinder"
	"github.com/playperu/cityfinder/internal/round"
)

// Handle is a Store bound to the identity it submits for. Reads need no
// identity; submissions without a signed-in identity are refused before the
// store is contacted.
type Handle struct {
	store    Store
	identity *cityfinder.Identity
	closed   atomic.Bool
}

func NewHandle(store Store, id *cityfinder.Identity) *Handle {
	return &Handle{store: store, identity: id}
}

func (h *Handle) Identity() *cityfinder.Identity { return h.identity }

func (h *Handle) Query(ctx context.Context, f Filter, page, pageSize int) (Page, error) {
	return h.store.Query(ctx, f, page, pageSize)
}

func (h *Handle) Submit(ctx context.Context, sub Submission) (Entry, error) {
	if h.closed.Load() {
		return Entry{}, ErrHandleClosed
	}
	if !h.identity.SignedIn() {
		return Entry{}, cityfinder.ErrAuthorizationRequired
	}
	return h.store.Insert(ctx, sub, h.identity)
}

// SubmitRound submits the summary of a completed round.
func (h *Handle) SubmitRound(ctx context.Context, s round.Summary) (Entry, error) {
	return h.Submit(ctx, NewSubmission(s))
}

// Close discards the handle; later submissions fail with ErrHandleClosed.
func (h *Handle) Close() { h.closed.Store(true) }

// Handles hands out the handle for the current identity, replacing it when
// the identity's token changes.
type Handles struct {
	store Store

	mu      sync.Mutex
	current *Handle
}

func NewHandles(store Store) *Handles {
	return &Handles{store: store}
}

func (hs *Handles) For(id *cityfinder.Identity) *Handle {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if hs.current != nil && sameCredential(hs.current.identity, id) {
		return hs.current
	}
	if hs.current != nil {
		hs.current.Close()
	}
	hs.current = NewHandle(hs.store, id)
	return hs.current
}

func sameCredential(a, b *cityfinder.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Token == b.Token && a.UserID == b.UserID
}
