package conn

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// holdServer accepts connections and holds them open without reading, so
// pooled connections stay alive until the test closes them.
type holdServer struct {
	ln net.Listener

	mu    sync.Mutex
	conns []net.Conn
}

func startHoldServer(t *testing.T) *holdServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &holdServer{ln: ln}
	t.Cleanup(func() { ln.Close(); s.closeAll() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.conns = append(s.conns, c)
			s.mu.Unlock()
		}
	}()

	return s
}

func (s *holdServer) addr() string { return s.ln.Addr().String() }

func (s *holdServer) accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *holdServer) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func testPoolOptions(max int) PoolOptions {
	return PoolOptions{
		MaxPerEndpoint: max,
		Conn:           testOptions,
	}
}

func TestPoolAcquireReusesIdle(t *testing.T) {
	s := startHoldServer(t)
	p := NewPool(s.addr(), testPoolOptions(2))
	defer p.Close()

	c1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, p.Active())

	p.Release(c1)
	assert.Equal(t, 0, p.Active())
	assert.Equal(t, 1, p.Idle())

	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, c1, c2, "idle connection should be reused")
	p.Release(c2)
}

func TestPoolCapacityBound(t *testing.T) {
	s := startHoldServer(t)
	p := NewPool(s.addr(), testPoolOptions(3))
	defer p.Close()

	ctx := context.Background()
	var held []*Connection
	for i := 0; i < 3; i++ {
		c, err := p.Acquire(ctx)
		require.NoError(t, err)
		held = append(held, c)
	}
	assert.Equal(t, 3, p.Active())
	assert.Equal(t, 3, p.Total())

	// The 4th acquire must block until a release.
	got := make(chan *Connection, 1)
	go func() {
		c, err := p.Acquire(ctx)
		if err == nil {
			got <- c
		}
	}()

	select {
	case <-got:
		t.Fatal("acquire beyond capacity should block")
	case <-time.After(100 * time.Millisecond):
	}

	p.Release(held[0])

	select {
	case c := <-got:
		p.Release(c)
	case <-time.After(time.Second):
		t.Fatal("blocked acquire did not resume after release")
	}

	assert.LessOrEqual(t, p.Total(), 3)
	p.Release(held[1])
	p.Release(held[2])
}

func TestPoolExhaustedTimeout(t *testing.T) {
	s := startHoldServer(t)
	opts := testPoolOptions(1)
	opts.Conn.ConnectTimeout = 100 * time.Millisecond
	p := NewPool(s.addr(), opts)
	defer p.Close()

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(c)

	_, err = p.Acquire(context.Background())
	require.Error(t, err)

	var exhausted *PoolExhaustedError
	require.True(t, errors.As(err, &exhausted), "want PoolExhaustedError, got %v", err)
	assert.Equal(t, s.addr(), exhausted.Endpoint)
	assert.True(t, IsTransient(err))
}

func TestPoolConcurrentAcquireNeverExceedsMax(t *testing.T) {
	s := startHoldServer(t)
	const max = 4
	p := NewPool(s.addr(), testPoolOptions(max))
	defer p.Close()

	var inUse, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				c, err := p.Acquire(context.Background())
				if err != nil {
					continue
				}

				cur := inUse.Add(1)
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inUse.Add(-1)
				p.Release(c)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(max))
	assert.LessOrEqual(t, p.Total(), max)
}

func TestPoolIdleTimeoutInvalidatesConnection(t *testing.T) {
	s := startHoldServer(t)
	mock := clock.NewMock()

	opts := testPoolOptions(2)
	opts.IdleTimeout = 5 * time.Second
	p := newPool(s.addr(), opts, mock)
	defer p.Close()

	c1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(c1)

	mock.Add(6 * time.Second)

	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(c2)

	assert.NotSame(t, c1, c2, "idle-expired connection must never be returned")
	assert.NotEqual(t, StateConnected, c1.State())
	assert.Equal(t, 1, p.Total())
}

func TestPoolMaxLifetimeInvalidatesConnection(t *testing.T) {
	s := startHoldServer(t)
	mock := clock.NewMock()

	opts := testPoolOptions(2)
	opts.MaxLifetime = time.Minute
	p := newPool(s.addr(), opts, mock)
	defer p.Close()

	c1, err := p.Acquire(context.Background())
	require.NoError(t, err)

	// Stay within the idle bound but beyond the lifetime bound.
	mock.Add(61 * time.Second)
	p.Release(c1)

	assert.Equal(t, 0, p.Idle(), "released over-age connection must be disposed")
	assert.NotEqual(t, StateConnected, c1.State())
}

func TestPoolPrewarmAndRestoreMinimum(t *testing.T) {
	s := startHoldServer(t)
	mock := clock.NewMock()

	opts := testPoolOptions(4)
	opts.MinPerEndpoint = 2
	opts.EvictionInterval = 10 * time.Second
	p := newPool(s.addr(), opts, mock)
	defer p.Close()

	require.Eventually(t, func() bool { return p.Idle() == 2 }, 2*time.Second, 10*time.Millisecond,
		"pool should pre-warm to the minimum")
	assert.Equal(t, 2, p.Total())

	// Kill every pooled connection server-side, then run an eviction
	// cycle: the dead ones are dropped and the minimum restored.
	s.closeAll()
	mock.Add(10 * time.Second)

	require.Eventually(t, func() bool {
		return p.Idle() == 2 && s.accepted() == 2
	}, 2*time.Second, 10*time.Millisecond, "eviction should replace dead connections up to the minimum")
	assert.LessOrEqual(t, p.Total(), 4)
}

func TestPoolReleaseFaultedConnection(t *testing.T) {
	s := startHoldServer(t)
	p := NewPool(s.addr(), testPoolOptions(2))
	defer p.Close()

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)

	c.fault()
	p.Release(c)

	assert.Equal(t, 0, p.Idle(), "faulted connection must not be requeued")
	assert.Equal(t, 0, p.Total())
}

func TestPoolCloseUnblocksGateWaiter(t *testing.T) {
	s := startHoldServer(t)
	opts := testPoolOptions(1)
	// Without a connect timeout the gate wait is unbounded, so only a
	// close can release a blocked acquirer.
	opts.Conn.ConnectTimeout = 0
	p := NewPool(s.addr(), opts)

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background())
		errc <- err
	}()

	select {
	case err := <-errc:
		t.Fatalf("acquire at capacity should block, got %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	p.Close()

	select {
	case err := <-errc:
		require.ErrorIs(t, err, ErrPoolClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked acquire was not released by Close")
	}

	p.Release(held)
	assert.Equal(t, 0, p.Total())
}

func TestPoolCloseDuringPrewarmLeaksNothing(t *testing.T) {
	s := startHoldServer(t)
	p := NewPool(s.addr(), testPoolOptions(4))

	done := make(chan struct{})
	go func() {
		p.prewarm(4)
		close(done)
	}()
	time.Sleep(time.Millisecond)
	p.Close()
	<-done

	assert.Equal(t, 0, p.Idle())
	assert.Equal(t, 0, p.Total())
}

func TestPoolCloseIdempotentAndFailsAcquire(t *testing.T) {
	s := startHoldServer(t)
	p := NewPool(s.addr(), testPoolOptions(2))

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)

	p.Close()
	p.Close()

	_, err = p.Acquire(context.Background())
	require.ErrorIs(t, err, ErrPoolClosed)

	// Outstanding connections are disposed on release, not leaked.
	p.Release(c)
	assert.Equal(t, 0, p.Total())
	assert.NotEqual(t, StateConnected, c.State())
}
