// Package browserpool implements the render orchestration engine's bounded,
// self-healing pool of headless-browser instances (component C3): a
// counting semaphore for capacity, an idle FIFO queue, a tracking map of
// every live instance, and a background reaper that closes idle instances
// past a floor. Grounded on the teacher's chromedp allocator setup
// (internal/infrastructure/printing/chromedp.go) and the worker-pool
// semaphore idiom seen across the retrieval pack.
package browserpool

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/openrender/pdfrender/internal/domain/rendering"
)

// Config recognises the options of spec §4.2.
type Config struct {
	MinSize               int
	MaxSize               int
	AcquireTimeout        time.Duration
	IdleTimeout           time.Duration // 0 means the 5-minute default; a negative value disables the reaper
	MaxRendersPerInstance int
	RemoteURL             string // optional: connect to an existing Chrome instead of launching
}

func (c *Config) applyDefaults() {
	if c.MinSize == 0 {
		c.MinSize = 1
	}
	if c.MaxSize == 0 {
		c.MaxSize = 4
	}
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.MaxRendersPerInstance == 0 {
		c.MaxRendersPerInstance = 100
	}
}

// PooledBrowser is a single headless-browser process, owned exclusively by
// the pool. renderCount and lastReturnedAt are mutated only by the pool.
type PooledBrowser struct {
	id             int64
	allocCtx       context.Context
	allocCancel    context.CancelFunc
	browserCtx     context.Context
	browserCancel  context.CancelFunc
	renderCount    int
	lastReturnedAt time.Time
	disconnected   bool
}

// Context returns the chromedp-usable context for this browser; the PDF
// renderer opens its ephemeral page against this.
func (b *PooledBrowser) Context() context.Context { return b.browserCtx }

// Lease is a non-owning, exactly-once-terminated grant of a PooledBrowser.
type Lease struct {
	pool    *Pool
	browser *PooledBrowser
	once    sync.Once
}

func (l *Lease) Browser() *PooledBrowser { return l.browser }

// Release returns the browser to the pool (the default path).
func (l *Lease) Release() {
	l.once.Do(func() { l.pool.returnBrowser(l.browser) })
}

// Invalidate marks the browser unfit; the pool discards it instead of
// returning it to the idle queue.
func (l *Lease) Invalidate() {
	l.once.Do(func() { l.pool.invalidateBrowser(l.browser) })
}

// Pool is a bounded lease-based pool of headless-browser instances.
type Pool struct {
	cfg    Config
	logger *zap.Logger

	sem chan struct{} // maxSize permits; held iff a lease is outstanding

	mu       sync.Mutex
	idle     *list.List // FIFO of *PooledBrowser
	tracked  map[int64]*PooledBrowser
	active   int
	disposed bool
	nextID   int64

	reaperCancel context.CancelFunc
	reaperDone   chan struct{}
}

// New constructs a pool and starts its idle reaper (unless IdleTimeout is
// explicitly disabled by passing a negative duration).
func New(cfg Config, logger *zap.Logger) *Pool {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		cfg:     cfg,
		logger:  logger,
		sem:     make(chan struct{}, cfg.MaxSize),
		idle:    list.New(),
		tracked: make(map[int64]*PooledBrowser),
	}
	if cfg.IdleTimeout > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		p.reaperCancel = cancel
		p.reaperDone = make(chan struct{})
		go p.reapLoop(ctx)
	}
	return p
}

// Acquire implements the §4.2 acquire algorithm.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return nil, rendering.NewError(rendering.KindPoolDisposed, "pool is shut down", nil)
	}
	p.mu.Unlock()

	timeoutCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	select {
	case p.sem <- struct{}{}:
		// permit acquired
	case <-ctx.Done():
		return nil, rendering.NewError(rendering.KindCancelled, "acquire cancelled by caller", ctx.Err())
	case <-timeoutCtx.Done():
		// timeoutCtx is a child of ctx, so caller-cancellation closes both
		// channels at once; select would otherwise pick between them
		// uniformly at random. Check the parent first so a genuine
		// caller-cancel is never misreported as POOL_TIMEOUT.
		if ctx.Err() != nil {
			return nil, rendering.NewError(rendering.KindCancelled, "acquire cancelled by caller", ctx.Err())
		}
		return nil, rendering.NewError(rendering.KindPoolTimeout, "timed out waiting for a browser lease", timeoutCtx.Err())
	}

	browser, err := p.dequeueOrLaunch()
	if err != nil {
		<-p.sem // release the permit: step 5 of the acquire algorithm
		return nil, err
	}

	p.mu.Lock()
	p.active++
	p.mu.Unlock()

	return &Lease{pool: p, browser: browser}, nil
}

// dequeueOrLaunch drains disconnected idle entries, returns the first
// live one, or launches a fresh browser if the idle queue empties.
func (p *Pool) dequeueOrLaunch() (*PooledBrowser, error) {
	for {
		p.mu.Lock()
		if p.disposed {
			p.mu.Unlock()
			return nil, rendering.NewError(rendering.KindPoolDisposed, "pool is shut down", nil)
		}
		front := p.idle.Front()
		if front == nil {
			p.mu.Unlock()
			break
		}
		p.idle.Remove(front)
		b := front.Value.(*PooledBrowser)
		p.mu.Unlock()

		if b.disconnected {
			p.discard(b)
			continue
		}
		return b, nil
	}

	return p.launch()
}

func (p *Pool) launch() (*PooledBrowser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("mute-audio", true),
	)

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if p.cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), p.cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	// Launch the underlying process eagerly so a dead binary surfaces here,
	// not on the first render.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, rendering.NewError(rendering.KindRenderLoad, "failed to launch headless browser", err)
	}

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.mu.Unlock()

	b := &PooledBrowser{
		id:            id,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}

	// Non-owning disconnect observer: removes the tracking-map entry when
	// the browser process goes away on its own. The pool still owns the
	// browser; this callback never outlives the map entry it clears.
	chromedp.ListenBrowser(browserCtx, func(ev interface{}) {
		if _, ok := ev.(*inspector.EventDetached); ok {
			p.markDisconnected(id)
		}
	})

	p.mu.Lock()
	p.tracked[id] = b
	p.mu.Unlock()

	return b, nil
}

func (p *Pool) markDisconnected(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.tracked[id]; ok {
		b.disconnected = true
		delete(p.tracked, id)
	}
}

// returnBrowser implements the §4.2 return algorithm.
func (p *Pool) returnBrowser(b *PooledBrowser) {
	b.renderCount++
	b.lastReturnedAt = time.Now()

	p.mu.Lock()
	p.active--
	recycle := p.cfg.MaxRendersPerInstance > 0 && b.renderCount >= p.cfg.MaxRendersPerInstance
	if !recycle {
		p.idle.PushBack(b)
	}
	p.mu.Unlock()

	if recycle {
		p.discard(b)
	}
	<-p.sem
}

// invalidateBrowser implements the §4.2 invalidation algorithm.
func (p *Pool) invalidateBrowser(b *PooledBrowser) {
	p.mu.Lock()
	p.active--
	p.mu.Unlock()
	p.discard(b)
	<-p.sem
}

func (p *Pool) discard(b *PooledBrowser) {
	p.mu.Lock()
	delete(p.tracked, b.id)
	p.mu.Unlock()
	b.browserCancel()
	b.allocCancel()
}

// PoolSize returns the number of tracked instances (idle + leased).
func (p *Pool) PoolSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tracked)
}

// ActiveCount returns the number of outstanding leases.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Shutdown closes the reaper, drains all tracked browsers best-effort, and
// marks the pool disposed so no new lease succeeds.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.disposed = true
	var all []*PooledBrowser
	for _, b := range p.tracked {
		all = append(all, b)
	}
	p.tracked = make(map[int64]*PooledBrowser)
	p.idle.Init()
	p.mu.Unlock()

	if p.reaperCancel != nil {
		p.reaperCancel()
		<-p.reaperDone
	}

	for _, b := range all {
		b.browserCancel()
		b.allocCancel()
	}
}

func (p *Pool) reapInterval() time.Duration {
	if d := p.cfg.IdleTimeout / 2; d > 30*time.Second {
		return d
	}
	return 30 * time.Second
}

// reapLoop implements the §4.2 idle reaper: wakes periodically, drains the
// idle queue, discards entries older than idleTimeout while the tracked
// count would stay above minSize, and re-enqueues survivors newest-first.
func (p *Pool) reapLoop(ctx context.Context) {
	defer close(p.reaperDone)
	ticker := time.NewTicker(p.reapInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.reapOnce()
		}
	}
}

func (p *Pool) reapOnce() {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	var snapshot []*PooledBrowser
	for e := p.idle.Front(); e != nil; e = e.Next() {
		snapshot = append(snapshot, e.Value.(*PooledBrowser))
	}
	p.idle.Init()
	trackedCount := len(p.tracked)
	p.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].lastReturnedAt.After(snapshot[j].lastReturnedAt)
	})

	cutoff := time.Now().Add(-p.cfg.IdleTimeout)
	var survivors []*PooledBrowser
	var discarded []*PooledBrowser
	// Walk oldest-first (reverse of the newest-first snapshot) deciding
	// reaps, but keep the re-enqueue order newest-first.
	eligible := make([]bool, len(snapshot))
	for i := len(snapshot) - 1; i >= 0; i-- {
		b := snapshot[i]
		if b.lastReturnedAt.Before(cutoff) && trackedCount > p.cfg.MinSize {
			eligible[i] = true
			trackedCount--
		}
	}
	for i, b := range snapshot {
		if eligible[i] {
			discarded = append(discarded, b)
		} else {
			survivors = append(survivors, b)
		}
	}

	p.mu.Lock()
	for _, b := range survivors {
		p.idle.PushBack(b)
	}
	p.mu.Unlock()

	for _, b := range discarded {
		p.discard(b)
	}
}
