// Package poller refreshes a remote view on a fixed interval and on demand.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is the refresh period of the driver dashboard.
const DefaultInterval = 15 * time.Second

// FetchFunc loads one snapshot. It must honour ctx cancellation.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Poller runs fetch every interval and whenever Trigger is called. Starting a
// cycle cancels the one in flight, and a result belonging to a superseded
// cycle is dropped, so a slow old response never replaces a newer one.
type Poller[T any] struct {
	fetch    FetchFunc[T]
	interval time.Duration
	onResult func(T)
	onError  func(error)
	logger   *zap.Logger

	trigger chan struct{}

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	latest     T
	hasLatest  bool
	discarded  uint64
	wg         sync.WaitGroup
}

// Option customises a Poller.
type Option[T any] func(*Poller[T])

// WithInterval overrides DefaultInterval.
func WithInterval[T any](d time.Duration) Option[T] {
	return func(p *Poller[T]) {
		if d > 0 {
			p.interval = d
		}
	}
}

// OnResult registers the consumer of fresh snapshots. Callbacks run while the
// poller holds its lock and must not call Latest or Discarded.
func OnResult[T any](fn func(T)) Option[T] {
	return func(p *Poller[T]) { p.onResult = fn }
}

// OnError registers the consumer of fetch failures.
func OnError[T any](fn func(error)) Option[T] {
	return func(p *Poller[T]) { p.onError = fn }
}

// WithLogger sets the logger.
func WithLogger[T any](l *zap.Logger) Option[T] {
	return func(p *Poller[T]) {
		if l != nil {
			p.logger = l
		}
	}
}

// New builds a Poller around fetch.
func New[T any](fetch FetchFunc[T], opts ...Option[T]) *Poller[T] {
	p := &Poller[T]{
		fetch:    fetch,
		interval: DefaultInterval,
		logger:   zap.NewNop(),
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Trigger asks for an immediate refresh, typically after a mutating action.
// Calls made while a request is already queued collapse into it.
func (p *Poller[T]) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Latest returns the most recent accepted snapshot.
func (p *Poller[T]) Latest() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.hasLatest
}

// Discarded counts results dropped because a newer cycle had started.
func (p *Poller[T]) Discarded() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.discarded
}

// Run blocks until ctx is done. The first cycle starts immediately.
func (p *Poller[T]) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.wg.Wait()
	defer p.stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.cycle(ctx)
		case <-p.trigger:
			ticker.Reset(p.interval)
			p.cycle(ctx)
		}
	}
}

func (p *Poller[T]) cycle(parent context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.generation++
	gen := p.generation
	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()

		result, err := p.fetch(ctx)

		p.mu.Lock()
		defer p.mu.Unlock()
		if gen != p.generation {
			p.discarded++
			p.logger.Debug("discarding superseded poll result", zap.Uint64("generation", gen))
			return
		}
		p.cancel = nil
		if err != nil {
			if ctx.Err() != nil && parent.Err() != nil {
				return
			}
			p.logger.Warn("poll failed", zap.Error(err))
			if p.onError != nil {
				p.onError(err)
			}
			return
		}
		p.latest = result
		p.hasLatest = true
		if p.onResult != nil {
			p.onResult(result)
		}
	}()
}

func (p *Poller[T]) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.generation++
}
