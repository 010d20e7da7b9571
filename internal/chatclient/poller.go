package chatclient

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is the wall-clock spacing of scheduled fetches
const DefaultPollInterval = 3 * time.Second

// FetchFunc performs one incremental fetch after the since cursor
type FetchFunc func(ctx context.Context, since string) (*Page, error)

// PollerOptions tunes a Poller
type PollerOptions struct {
	Interval time.Duration
	OnError  func(error)
	// OnDrop runs when a finished fetch is discarded because Stop or the
	// parent context ended the loop while it was in flight
	OnDrop func()
}

// Poller fetches on a fixed interval, carrying the server cursor between
// fetches. A tick that comes due while a fetch is in flight is skipped, so
// fetches never overlap.
type Poller struct {
	fetch    FetchFunc
	onData   func(*Page)
	onError  func(error)
	onDrop   func()
	interval time.Duration

	mu      sync.Mutex
	since   string
	running bool
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewPoller(fetch FetchFunc, onData func(*Page), opts PollerOptions) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	return &Poller{
		fetch:    fetch,
		onData:   onData,
		onError:  opts.OnError,
		onDrop:   opts.OnDrop,
		interval: opts.Interval,
	}
}

// Start fetches once right away and then on every tick until Stop or ctx
// is done. Calling Start on a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.gen++

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(runCtx, p.gen, p.done)
}

// Stop cancels the schedule and any in-flight fetch. It does not wait for
// the loop to exit, so it is safe to call from the callbacks.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false
	p.gen++
	p.cancel()
}

// Wait blocks until the most recent loop has exited.
// Must not be called from the callbacks.
func (p *Poller) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Since returns the cursor sent with the next fetch
func (p *Poller) Since() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.since
}

// SetSince moves the cursor forward; older or unparsable values are ignored
func (p *Poller) SetSince(ts string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if laterCursor(ts, p.since) {
		p.since = ts
	}
}

// Reset clears the cursor so the next fetch returns the full history
func (p *Poller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.since = ""
}

func (p *Poller) loop(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	defer p.exit(gen)

	p.tick(ctx, gen)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, gen)
			// drop the tick that came due during the fetch
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

// exit marks the poller stopped when the parent context ended the loop
func (p *Poller) exit(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen == gen && p.running {
		p.running = false
		p.cancel()
	}
}

func (p *Poller) tick(ctx context.Context, gen uint64) {
	page, err := p.fetch(ctx, p.Since())

	p.mu.Lock()
	if p.gen != gen || ctx.Err() != nil {
		p.mu.Unlock()
		if p.onDrop != nil {
			p.onDrop()
		}
		return
	}
	if err == nil && page != nil && laterCursor(page.Meta.ServerTimestamp, p.since) {
		p.since = page.Meta.ServerTimestamp
	}
	p.mu.Unlock()

	switch {
	case err != nil:
		if p.onError != nil {
			p.onError(err)
		}
	case page != nil:
		p.onData(page)
	}
}
