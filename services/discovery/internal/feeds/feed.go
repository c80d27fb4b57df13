// Package feeds loads movie lists from the recommendation backend and enriches
// every item with catalog data. A Feed re-fetches whenever its params change and
// never lets a superseded fetch overwrite a newer result.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/example/movie-discovery/services/discovery/internal/metrics"
	"github.com/example/movie-discovery/services/discovery/internal/movie"
	"github.com/example/movie-discovery/services/discovery/internal/recommender"
)

var ErrClosed = errors.New("feeds: feed closed")

const defaultConcurrency = 8

// Enricher turns one backend item into a view model. It must not fail.
type Enricher interface {
	Enrich(ctx context.Context, item movie.CatalogItem) movie.Enriched
}

// State is a snapshot of a feed.
type State struct {
	Movies  []movie.Enriched
	Loading bool
	Params  Params
}

type Feed struct {
	kind        Kind
	fetch       fetchFunc
	backend     recommender.Provider
	enricher    Enricher
	log         *zap.Logger
	concurrency int

	mu      sync.Mutex
	state   State
	started bool
	closed  bool
	gen     uint64
	cancel  context.CancelFunc
	subs    map[chan State]struct{}
	wg      sync.WaitGroup
}

// Option configures a Feed.
type Option func(*Feed)

func WithLogger(log *zap.Logger) Option {
	return func(f *Feed) { f.log = log }
}

// WithConcurrency bounds the number of parallel enrichment lookups per fetch.
func WithConcurrency(n int) Option {
	return func(f *Feed) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

func New(kind Kind, backend recommender.Provider, enricher Enricher, opts ...Option) (*Feed, error) {
	fetch := fetchFor(kind)
	if fetch == nil {
		return nil, fmt.Errorf("feeds: unknown kind %q", kind)
	}
	f := &Feed{
		kind:        kind,
		fetch:       fetch,
		backend:     backend,
		enricher:    enricher,
		log:         zap.NewNop(),
		concurrency: defaultConcurrency,
		state:       State{Movies: []movie.Enriched{}},
		subs:        make(map[chan State]struct{}),
	}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

func (f *Feed) Kind() Kind { return f.kind }

// SetParams starts a fetch cycle when p differs from the current params (or on
// the first call). It reports whether a backend request was issued. Params
// that select nothing clear the list immediately without a request.
func (f *Feed) SetParams(ctx context.Context, p Params) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	if f.started && p == f.state.Params {
		return false
	}
	f.started = true
	f.gen++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.state.Params = p

	if skipFor(f.kind, p) {
		f.state.Movies = []movie.Enriched{}
		f.state.Loading = false
		metrics.FeedFetches.WithLabelValues(string(f.kind), metrics.OutcomeSkipped).Inc()
		f.notifyLocked()
		return false
	}

	f.state.Loading = true
	f.notifyLocked()

	fctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	gen := f.gen
	f.wg.Add(1)
	go f.run(fctx, gen, p)
	return true
}

// run performs one fetch cycle. A cycle that was superseded or cancelled leaves
// the state untouched.
func (f *Feed) run(ctx context.Context, gen uint64, p Params) {
	defer f.wg.Done()

	items, err := f.fetch(ctx, f.backend, p)
	if err != nil {
		f.mu.Lock()
		defer f.mu.Unlock()
		if gen != f.gen || ctx.Err() != nil {
			metrics.FeedFetches.WithLabelValues(string(f.kind), metrics.OutcomeStale).Inc()
			return
		}
		f.log.Error("backend fetch failed", zap.String("feed", string(f.kind)), zap.Error(err))
		metrics.FeedFetches.WithLabelValues(string(f.kind), metrics.OutcomeError).Inc()
		f.state.Movies = []movie.Enriched{}
		f.state.Loading = false
		f.releaseLocked(gen)
		f.notifyLocked()
		return
	}

	enriched := f.enrichAll(ctx, items)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen || ctx.Err() != nil {
		metrics.FeedFetches.WithLabelValues(string(f.kind), metrics.OutcomeStale).Inc()
		return
	}
	metrics.FeedFetches.WithLabelValues(string(f.kind), metrics.OutcomeOK).Inc()
	f.state.Movies = enriched
	f.state.Loading = false
	f.releaseLocked(gen)
	f.notifyLocked()
}

// enrichAll looks up every item concurrently and waits for all of them.
// Order follows the backend response.
func (f *Feed) enrichAll(ctx context.Context, items []movie.CatalogItem) []movie.Enriched {
	out := make([]movie.Enriched, len(items))
	p := pool.New().WithMaxGoroutines(f.concurrency)
	for i, item := range items {
		p.Go(func() {
			out[i] = f.enricher.Enrich(ctx, item)
		})
	}
	p.Wait()
	return out
}

// releaseLocked drops the cancel func of a settled current fetch.
func (f *Feed) releaseLocked(gen uint64) {
	if gen == f.gen && f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

// State returns a copy of the current state.
func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Feed) snapshotLocked() State {
	s := f.state
	s.Movies = append([]movie.Enriched(nil), f.state.Movies...)
	if s.Movies == nil {
		s.Movies = []movie.Enriched{}
	}
	return s
}

// Subscribe returns a channel receiving the latest state after every change.
// Slow readers only see the most recent state. The channel is closed by the
// returned cancel func or by Close.
func (f *Feed) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if _, ok := f.subs[ch]; ok {
				delete(f.subs, ch)
				close(ch)
			}
		})
	}
}

func (f *Feed) notifyLocked() {
	if len(f.subs) == 0 {
		return
	}
	s := f.snapshotLocked()
	for ch := range f.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Wait blocks until every in-flight fetch has settled.
func (f *Feed) Wait() {
	f.wg.Wait()
}

// WaitContext is Wait bounded by ctx.
func (f *Feed) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any in-flight fetch, discards its result and closes subscriptions.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.gen++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	for ch := range f.subs {
		delete(f.subs, ch)
		close(ch)
	}
	f.mu.Unlock()
	f.wg.Wait()
}

// Load runs a single fetch cycle on a throwaway feed and returns its settled state.
func Load(ctx context.Context, kind Kind, backend recommender.Provider, enricher Enricher, p Params, opts ...Option) (State, error) {
	f, err := New(kind, backend, enricher, opts...)
	if err != nil {
		return State{}, err
	}
	defer f.Close()
	f.SetParams(ctx, p)
	if err := f.WaitContext(ctx); err != nil {
		return f.State(), err
	}
	return f.State(), nil
}
