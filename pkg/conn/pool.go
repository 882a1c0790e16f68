package conn

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/cocosip/fastdfs-go/internal/logger"
	"github.com/cocosip/fastdfs-go/internal/ratelimiter"
	"github.com/cocosip/fastdfs-go/pkg/metrics"
)

// PoolOptions configures a per-endpoint connection pool.
type PoolOptions struct {
	// MaxPerEndpoint bounds idle + active connections; the capacity gate
	// is sized to it
	MaxPerEndpoint int

	// MinPerEndpoint is the pre-warm target the eviction cycle restores
	MinPerEndpoint int

	// IdleTimeout invalidates connections idle longer than this
	IdleTimeout time.Duration

	// MaxLifetime invalidates connections older than this regardless of use
	MaxLifetime time.Duration

	// EvictionInterval is how often the background cycle runs
	EvictionInterval time.Duration

	// DialsPerSecond optionally damps reconnect storms when the pool
	// re-warms; zero means unlimited
	DialsPerSecond uint

	// DialBurst is the dial limiter burst; defaults to DialsPerSecond
	DialBurst uint

	// Conn bounds the socket operations of each pooled connection
	Conn Options
}

// Pool owns a bounded set of Connections for one endpoint.
//
// Connections are created lazily on pool miss, validated on every acquire
// and release, and evicted by a background cycle that also re-warms the
// pool back up to MinPerEndpoint. The invariant idle + active ≤
// MaxPerEndpoint holds at all times: every live connection owns one slot
// of the capacity gate.
//
// The hot acquire/release path is lock-free: the idle queue and the
// capacity gate are channels, the counters are atomics, and no lock is
// held across an I/O wait.
type Pool struct {
	addr string
	opts PoolOptions
	clk  clock.Clock

	idle    chan *Connection
	slots   chan struct{}
	active  atomic.Int64
	closed  atomic.Bool
	limiter *ratelimiter.DialLimiter
	pm      metrics.PoolMetrics

	stop      chan struct{}
	evictDone chan struct{}
}

// NewPool creates the pool for addr and starts its background eviction
// cycle. If MinPerEndpoint is set the pool pre-warms asynchronously.
func NewPool(addr string, opts PoolOptions) *Pool {
	return newPool(addr, opts, clock.New())
}

func newPool(addr string, opts PoolOptions, clk clock.Clock) *Pool {
	if opts.MaxPerEndpoint <= 0 {
		opts.MaxPerEndpoint = 1
	}
	if opts.EvictionInterval <= 0 {
		opts.EvictionInterval = 30 * time.Second
	}

	p := &Pool{
		addr:      addr,
		opts:      opts,
		clk:       clk,
		idle:      make(chan *Connection, opts.MaxPerEndpoint),
		slots:     make(chan struct{}, opts.MaxPerEndpoint),
		pm:        metrics.NewPoolMetrics(),
		stop:      make(chan struct{}),
		evictDone: make(chan struct{}),
	}

	if opts.DialsPerSecond > 0 {
		p.limiter = ratelimiter.New(opts.DialsPerSecond, opts.DialBurst)
	}

	go p.evictLoop()
	if opts.MinPerEndpoint > 0 {
		go p.prewarm(opts.MinPerEndpoint)
	}

	return p
}

// Addr returns the endpoint this pool serves.
func (p *Pool) Addr() string { return p.addr }

// Idle returns the current number of idle connections.
func (p *Pool) Idle() int { return len(p.idle) }

// Active returns the current number of checked-out connections.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Total returns idle plus active connections.
func (p *Pool) Total() int { return len(p.slots) }

// Acquire returns a validated connection, dequeuing an idle one when
// possible and dialing a new one otherwise.
//
// When the pool is at capacity, Acquire blocks on the capacity gate up to
// the connect timeout; expiry fails with a PoolExhaustedError. Invalid
// idle connections found along the way are discarded and their slot
// released before the next candidate is tried.
func (p *Pool) Acquire(ctx context.Context) (*Connection, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	if c := p.tryIdle(); c != nil {
		p.checkout(c)
		return c, nil
	}

	if err := p.acquireSlot(ctx); err != nil {
		return nil, err
	}

	// A release may have requeued a connection while we waited for the
	// slot; prefer it over dialing.
	if c := p.tryIdle(); c != nil {
		<-p.slots
		p.checkout(c)
		return c, nil
	}

	c, err := p.dial(ctx)
	if err != nil {
		<-p.slots
		return nil, err
	}

	p.checkout(c)
	return c, nil
}

// tryIdle dequeues until it finds a valid idle connection or the queue is
// empty.
func (p *Pool) tryIdle() *Connection {
	for {
		select {
		case c := <-p.idle:
			if p.validate(c) {
				return c
			}
			p.destroy(c)
		default:
			return nil
		}
	}
}

func (p *Pool) acquireSlot(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return p.slotWon()
	default:
	}

	wait := p.opts.Conn.ConnectTimeout
	if wait <= 0 {
		select {
		case p.slots <- struct{}{}:
			return p.slotWon()
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stop:
			return ErrPoolClosed
		}
	}

	timer := p.clk.Timer(wait)
	defer timer.Stop()

	select {
	case p.slots <- struct{}{}:
		return p.slotWon()
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stop:
		return ErrPoolClosed
	case <-timer.C:
		return &PoolExhaustedError{Endpoint: p.addr, Wait: wait}
	}
}

// slotWon re-checks for a concurrent Close after winning a capacity
// slot, so a closing pool never starts a new dial.
func (p *Pool) slotWon() error {
	if p.closed.Load() {
		<-p.slots
		return ErrPoolClosed
	}
	return nil
}

// dial creates and connects a new connection. The caller owns a capacity
// slot and releases it if dial fails.
func (p *Pool) dial(ctx context.Context) (*Connection, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	c := newConnection(p.addr, p.opts.Conn, p.clk)
	err := c.Connect(ctx)
	p.pm.RecordDial(p.addr, err)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (p *Pool) checkout(c *Connection) {
	p.active.Add(1)
	p.publishGauges()
}

// Release returns a connection to the pool. Valid connections are
// requeued as idle; anything else is disposed and its capacity slot
// freed. Release never fails, even for an already-faulted connection.
func (p *Pool) Release(c *Connection) {
	p.active.Add(-1)

	if p.closed.Load() || !p.validate(c) {
		p.destroy(c)
		return
	}

	select {
	case p.idle <- c:
	default:
		// Cannot happen while the slot invariant holds; dispose rather
		// than block.
		p.destroy(c)
	}
	p.publishGauges()
}

// validate applies the reuse rules: connected, within lifetime, within
// idle age, and passing the best-effort liveness probe.
func (p *Pool) validate(c *Connection) bool {
	if c.State() != StateConnected {
		return false
	}

	now := p.clk.Now()
	if p.opts.MaxLifetime > 0 && now.Sub(c.CreatedAt()) >= p.opts.MaxLifetime {
		return false
	}
	if p.opts.IdleTimeout > 0 && now.Sub(c.LastUsed()) >= p.opts.IdleTimeout {
		return false
	}

	return c.IsAlive()
}

// destroy closes a connection and frees its capacity slot.
func (p *Pool) destroy(c *Connection) {
	_ = c.Close()

	select {
	case <-p.slots:
	default:
	}

	p.pm.RecordEviction(p.addr)
	p.publishGauges()
}

func (p *Pool) publishGauges() {
	p.pm.SetIdle(p.addr, len(p.idle))
	p.pm.SetActive(p.addr, int(p.active.Load()))
}

func (p *Pool) evictLoop() {
	defer close(p.evictDone)

	ticker := p.clk.Ticker(p.opts.EvictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.evictOnce()
		}
	}
}

// evictOnce revalidates every idle connection, drops the invalid ones and
// re-warms the pool back to MinPerEndpoint if the total fell below it.
func (p *Pool) evictOnce() {
	var keep []*Connection

drain:
	for {
		select {
		case c := <-p.idle:
			if p.validate(c) {
				keep = append(keep, c)
			} else {
				logger.Debug("pool %s: evicting conn %s", p.addr, c.ID())
				p.destroy(c)
			}
		default:
			break drain
		}
	}

	for _, c := range keep {
		select {
		case p.idle <- c:
		default:
			p.destroy(c)
		}
	}

	if min := p.opts.MinPerEndpoint; min > 0 {
		if deficit := min - p.Total(); deficit > 0 {
			go p.prewarm(deficit)
		}
	}

	p.publishGauges()
}

// prewarm dials up to n idle connections without exceeding the maximum
// and without blocking pool callers. Dial failures stop the attempt; the
// next eviction cycle retries.
func (p *Pool) prewarm(n int) {
	for i := 0; i < n; i++ {
		if p.closed.Load() {
			return
		}

		select {
		case p.slots <- struct{}{}:
		default:
			return
		}

		timeout := p.opts.Conn.ConnectTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		c, err := p.dial(ctx)
		cancel()

		if err != nil {
			<-p.slots
			logger.Warn("pool %s: pre-warm dial failed: %v", p.addr, err)
			return
		}

		select {
		case p.idle <- c:
		default:
			p.destroy(c)
			return
		}

		// Close may have finished draining the idle queue before the
		// push landed; dispose anything left behind.
		if p.closed.Load() {
			for {
				select {
				case cc := <-p.idle:
					p.destroy(cc)
				default:
					return
				}
			}
		}
	}

	p.publishGauges()
}

// Close stops the eviction cycle and disposes every idle connection.
// Idempotent; connections still checked out are disposed when released,
// and subsequent Acquire calls fail with ErrPoolClosed rather than hang.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	close(p.stop)
	<-p.evictDone

	for {
		select {
		case c := <-p.idle:
			p.destroy(c)
		default:
			p.publishGauges()
			return
		}
	}
}
