// Package refresh keeps a graph view current by re-running the resolver on
// an interval. The caller owns the loop through Start and Stop.
package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/msalah0e/kgraph/internal/ctxlog"
	"github.com/msalah0e/kgraph/internal/graph"
	"github.com/msalah0e/kgraph/internal/resolver"
	"github.com/pkg/errors"
)

// DefaultInterval is how often the graph is re-resolved.
const DefaultInterval = 60 * time.Second

var (
	// ErrInFlight is returned by Refresh when another cycle is still running.
	ErrInFlight = errors.New("refresh already in flight")
	// ErrStopped is returned once the poller has been stopped.
	ErrStopped = errors.New("poller stopped")
	// ErrStarted is returned by Start on a running poller.
	ErrStarted = errors.New("poller already started")
)

// Resolver produces one result per call. *resolver.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context) resolver.Result
}

// View is what consumers display. A View is never modified after it is
// published; each applied cycle publishes a new one.
type View struct {
	Loading   bool            `json:"loading"`
	Snapshot  *graph.Snapshot `json:"snapshot"`
	State     resolver.State  `json:"state,omitempty"`
	Notice    string          `json:"notice"`
	Error     string          `json:"error"`
	UpdatedAt time.Time       `json:"updated_at"`
	Cycle     string          `json:"cycle,omitempty"`
}

// Cycle describes one finished resolution, passed to observers.
type Cycle struct {
	ID      string
	Result  resolver.Result
	Elapsed time.Duration
}

// Option configures a Poller.
type Option func(*Poller)

// WithInitial seeds the view with a snapshot, e.g. the cached one, while the
// first cycle is running.
func WithInitial(s *graph.Snapshot) Option {
	return func(p *Poller) {
		if s != nil {
			p.view.Snapshot = s
		}
	}
}

// WithObserver registers fn to run after every cycle, before the view is
// updated. Observers see failed cycles too.
func WithObserver(fn func(ctx context.Context, c Cycle)) Option {
	return func(p *Poller) {
		p.observers = append(p.observers, fn)
	}
}

// Poller re-resolves the graph on a fixed interval.
type Poller struct {
	resolver  Resolver
	interval  time.Duration
	observers []func(ctx context.Context, c Cycle)
	now       func() time.Time

	inFlight atomic.Bool

	mu        sync.RWMutex
	view      View
	listeners map[int]func(View)
	nextID    int
	started   bool
	stopped   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a poller. Non-positive intervals use DefaultInterval.
func New(r Resolver, interval time.Duration, opts ...Option) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	p := &Poller{
		resolver:  r,
		interval:  interval,
		now:       time.Now,
		view:      View{Loading: true, Snapshot: graph.Empty("")},
		listeners: make(map[int]func(View)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the tick period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// View returns the current view.
func (p *Poller) View() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.view
}

// Subscribe registers fn to receive every published view. The returned
// function removes it.
func (p *Poller) Subscribe(fn func(View)) (cancel func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// Start runs the first cycle synchronously, then keeps refreshing in the
// background until ctx is done or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	if p.started {
		p.mu.Unlock()
		return ErrStarted
	}
	p.started = true
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.mu.Unlock()

	if _, err := p.Refresh(loopCtx); err != nil && !errors.Is(err, ErrInFlight) {
		cancel()
		close(p.done)
		return err
	}

	go p.loop(loopCtx)
	return nil
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Refresh(ctx); errors.Is(err, ErrInFlight) {
				ctxlog.FromContext(ctx).Debug("skipping tick, previous refresh still running")
			}
		}
	}
}

// Stop ends the loop, waits for it to exit and blocks further view updates.
// It is safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Refresh runs one cycle now and returns the resulting view. It returns
// ErrInFlight without resolving when another cycle is running.
func (p *Poller) Refresh(ctx context.Context) (View, error) {
	if p.isStopped() {
		return p.View(), ErrStopped
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		return p.View(), ErrInFlight
	}
	defer p.inFlight.Store(false)

	id := uuid.NewString()
	logger := ctxlog.FromContext(ctx).With("cycle", id)
	ctx = ctxlog.WithLogger(ctx, logger)

	start := p.now()
	res := p.resolver.Resolve(ctx)
	elapsed := p.now().Sub(start)

	logger.Info("refresh cycle finished", "state", res.State, "elapsed", elapsed)

	for _, fn := range p.observers {
		fn(ctx, Cycle{ID: id, Result: res, Elapsed: elapsed})
	}

	view, listeners, ok := p.apply(id, res)
	if !ok {
		return view, ErrStopped
	}
	for _, fn := range listeners {
		fn(view)
	}
	return view, nil
}

// apply folds a result into the view. Failed cycles keep the last snapshot.
func (p *Poller) apply(id string, res resolver.Result) (View, []func(View), bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return p.view, nil, false
	}

	next := p.view
	next.Loading = false
	next.State = res.State
	next.UpdatedAt = p.now()
	next.Cycle = id

	switch res.State {
	case resolver.StateFailed:
		next.Error = res.Error
	default:
		next.Snapshot = res.Snapshot
		next.Notice = res.Notice
		next.Error = ""
	}
	p.view = next

	listeners := make([]func(View), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	return next, listeners, true
}

func (p *Poller) isStopped() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stopped
}
