package leaderboard

import (
	"context"
	"slices"
	"sync"
)

// Pager accumulates pages of one partition for "load more" views.
type Pager struct {
	q        Querier
	filter   Filter
	pageSize int

	mu      sync.Mutex
	loading bool
	gen     uint64
	next    int
	total   int
	entries []Entry
}

func NewPager(q Querier, f Filter, pageSize int) *Pager {
	_, pageSize = normalizePage(1, pageSize)
	return &Pager{q: q, filter: f, pageSize: pageSize, next: 1}
}

// LoadMore fetches the next page and appends it. A call made while another
// load is outstanding returns ErrLoadInProgress without fetching. Once every
// entry is loaded further calls are no-ops.
func (p *Pager) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	if p.loading {
		p.mu.Unlock()
		return ErrLoadInProgress
	}
	if p.next > 1 && p.total <= len(p.entries) {
		p.mu.Unlock()
		return nil
	}
	p.loading = true
	page, gen := p.next, p.gen
	p.mu.Unlock()

	res, err := p.q.Query(ctx, p.filter, page, p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		// Reset while loading; the result belongs to the discarded list.
		return err
	}
	p.loading = false
	if err != nil {
		return err
	}
	p.entries = append(p.entries, res.Entries...)
	p.total = res.Total
	p.next++
	return nil
}

// Reset drops loaded entries. A load in flight is discarded when it returns.
func (p *Pager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.loading = false
	p.next = 1
	p.total = 0
	p.entries = nil
}

// Reload resets the pager and fetches the first page.
func (p *Pager) Reload(ctx context.Context) error {
	p.Reset()
	return p.LoadMore(ctx)
}

func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total > len(p.entries)
}

func (p *Pager) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

func (p *Pager) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

func (p *Pager) Entries() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.entries)
}

// Rank returns the 1-based position of entryID in partition f. It pages
// through at most limit entries; ok is false when the entry is not among them.
func Rank(ctx context.Context, q Querier, f Filter, entryID string, limit int) (rank int, ok bool, err error) {
	p := NewPager(q, f, MaxPageSize)
	seen := 0
	for seen < limit {
		if err := p.LoadMore(ctx); err != nil {
			return 0, false, err
		}
		entries := p.Entries()
		for i := seen; i < len(entries) && i < limit; i++ {
			if entries[i].EntryID == entryID {
				return i + 1, true, nil
			}
		}
		if len(entries) == seen || !p.HasMore() {
			break
		}
		seen = len(entries)
	}
	return 0, false, nil
}
