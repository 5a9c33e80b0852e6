package imgcache

import (
	"context"
	"log/slog"
	"sync"
)

// Populator dispatches cache-population work for a keyword on a background
// goroutine so the triggering request can return immediately; a later
// request for the same keyword observes a Phase-1 hit once the task
// finishes. The keyword is the task's idempotency key.
//
// By default concurrent identical keywords are NOT deduplicated: two
// simultaneous misses both fetch and the last writer wins, matching the
// uncoordinated shared-directory model of the stores. SingleFlight opts in
// to at most one in-flight task per keyword.
//
// A struct literal with Service set is ready to use; NewPopulator is a
// convenience.
type Populator struct {
	Service      *Service
	SingleFlight bool

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// NewPopulator wraps svc in a background population dispatcher.
func NewPopulator(svc *Service) *Populator {
	return &Populator{
		Service:  svc,
		inflight: make(map[string]struct{}),
	}
}

// Enqueue starts background population for keyword and returns immediately.
// Reports false when SingleFlight is on and an identical task is already
// running. The task uses a detached context: it outlives the request that
// triggered it.
func (p *Populator) Enqueue(keyword string, count int) bool {
	key := SanitizeKeyword(keyword)

	if p.SingleFlight {
		p.mu.Lock()
		if p.inflight == nil {
			// Populator is usable as a struct literal, not just via
			// NewPopulator.
			p.inflight = make(map[string]struct{})
		}
		if _, running := p.inflight[key]; running {
			p.mu.Unlock()
			slog.Debug("imgcache: population already in flight", "keyword_base", key)
			return false
		}
		p.inflight[key] = struct{}{}
		p.mu.Unlock()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if p.SingleFlight {
				p.mu.Lock()
				delete(p.inflight, key)
				p.mu.Unlock()
			}
		}()

		slog.Info("imgcache: background download start", "keyword", keyword)
		results := p.Service.Search(context.Background(), keyword, count)
		slog.Info("imgcache: background download complete",
			"keyword", keyword, "images", len(results))
	}()
	return true
}

// Wait blocks until every task enqueued so far has finished. Intended for
// shutdown paths and tests.
func (p *Populator) Wait() {
	p.wg.Wait()
}
