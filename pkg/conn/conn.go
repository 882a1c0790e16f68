// Package conn implements the transport layer of the client: a single
// request/response TCP connection and a bounded, self-healing pool of
// them per endpoint.
package conn

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/cocosip/fastdfs-go/internal/logger"
	"github.com/cocosip/fastdfs-go/pkg/protocol"
)

// Options bound the individual socket operations of one connection.
type Options struct {
	// ConnectTimeout bounds address resolution plus TCP connect
	ConnectTimeout time.Duration

	// SendTimeout bounds writing one full request
	SendTimeout time.Duration

	// ReceiveTimeout bounds reading one full response
	ReceiveTimeout time.Duration
}

// State is the connection lifecycle state.
type State int32

const (
	StateUnconnected State = iota
	StateConnected
	StateClosed
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Socket buffer sizing for bulk file transfer.
const socketBufferSize = 256 << 10

// Connection owns one TCP socket to one endpoint and performs one
// request/response exchange at a time.
//
// A Connection is exclusively owned by a single caller between Acquire
// and Release; callers guarantee at most one in-flight Exchange. Once a
// connection has observed a fault (including a canceled exchange) it is
// never reused: the pool discards it on release.
type Connection struct {
	id   string
	addr string
	opts Options
	clk  clock.Clock

	sock      net.Conn
	state     atomic.Int32
	createdAt time.Time
	lastUsed  time.Time

	closeOnce sync.Once
}

// New creates an unconnected Connection for addr. Call Connect before
// Exchange.
func New(addr string, opts Options) *Connection {
	return newConnection(addr, opts, clock.New())
}

func newConnection(addr string, opts Options, clk clock.Clock) *Connection {
	return &Connection{
		id:   uuid.NewString()[:8],
		addr: addr,
		opts: opts,
		clk:  clk,
	}
}

// ID returns a short identifier used in logs.
func (c *Connection) ID() string { return c.id }

// Addr returns the "host:port" endpoint this connection targets.
func (c *Connection) Addr() string { return c.addr }

// State returns the current lifecycle state.
func (c *Connection) State() State { return State(c.state.Load()) }

// CreatedAt returns when the socket was established.
func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// LastUsed returns when the connection last completed an exchange.
func (c *Connection) LastUsed() time.Time { return c.lastUsed }

// Connect resolves the address and opens the socket, disabling send
// coalescing and sizing the socket buffers for bulk transfer. Any
// failure releases partially-created socket state and is wrapped as a
// NetworkError naming the endpoint.
func (c *Connection) Connect(ctx context.Context) error {
	if c.State() != StateUnconnected {
		return &NetworkError{Endpoint: c.addr, Op: "connect", Err: errors.New("connection already used")}
	}

	dialer := net.Dialer{Timeout: c.opts.ConnectTimeout}
	sock, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return &NetworkError{Endpoint: c.addr, Op: "connect", Err: err}
	}

	if tcp, ok := sock.(*net.TCPConn); ok {
		if err := c.tuneSocket(tcp); err != nil {
			sock.Close()
			return &NetworkError{Endpoint: c.addr, Op: "connect", Err: err}
		}
	}

	now := c.clk.Now()
	c.sock = sock
	c.createdAt = now
	c.lastUsed = now
	c.state.Store(int32(StateConnected))

	logger.Debug("conn %s: connected to %s", c.id, c.addr)
	return nil
}

func (c *Connection) tuneSocket(tcp *net.TCPConn) error {
	if err := tcp.SetNoDelay(true); err != nil {
		return err
	}
	if err := tcp.SetReadBuffer(socketBufferSize); err != nil {
		return err
	}
	return tcp.SetWriteBuffer(socketBufferSize)
}

// Exchange performs one request/response round trip: write the full
// encoded request, read exactly the header, then exactly the declared
// body, and decode into resp.
//
// A nonzero response status surfaces as a ProtocolError; the connection
// stays usable since the stream is still framed. Any I/O fault, framing
// violation or cancellation marks the connection Faulted so the pool
// discards it.
func (c *Connection) Exchange(ctx context.Context, req protocol.Request, resp protocol.Response) error {
	if c.State() != StateConnected {
		return &NetworkError{Endpoint: c.addr, Op: "exchange", Err: errors.New("connection is " + c.State().String())}
	}

	// Encoding failures (bad arguments, oversized fields) never touch the
	// socket, so the connection stays usable.
	packet, err := protocol.EncodePacket(req)
	if err != nil {
		return err
	}

	stop := c.watchCancel(ctx)
	defer stop()

	if err := c.send(packet); err != nil {
		c.fault()
		return c.classifyIO(ctx, "send", err)
	}

	header, body, err := c.receive()
	if err != nil {
		c.fault()
		var protoErr *protocol.ProtocolError
		if errors.As(err, &protoErr) {
			// Framing is broken; the stream position is unknown.
			return err
		}
		return c.classifyIO(ctx, "receive", err)
	}

	c.lastUsed = c.clk.Now()
	return protocol.DecodePacket(header, body, resp)
}

// watchCancel unblocks in-flight socket I/O when ctx is canceled by
// expiring the socket deadline. The connection is faulted first so it can
// never return to the idle queue.
func (c *Connection) watchCancel(ctx context.Context) func() {
	if ctx.Done() == nil {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.fault()
			c.sock.SetDeadline(time.Unix(1, 0))
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (c *Connection) send(packet []byte) error {
	if c.opts.SendTimeout > 0 {
		if err := c.sock.SetWriteDeadline(time.Now().Add(c.opts.SendTimeout)); err != nil {
			return err
		}
	}

	// One write call need not flush everything.
	for off := 0; off < len(packet); {
		n, err := c.sock.Write(packet[off:])
		if err != nil {
			return err
		}
		off += n
	}
	return nil
}

func (c *Connection) receive() (protocol.Header, []byte, error) {
	if c.opts.ReceiveTimeout > 0 {
		if err := c.sock.SetReadDeadline(time.Now().Add(c.opts.ReceiveTimeout)); err != nil {
			return protocol.Header{}, nil, err
		}
	}

	var hbuf [protocol.HeaderSize]byte
	if _, err := io.ReadFull(c.sock, hbuf[:]); err != nil {
		return protocol.Header{}, nil, err
	}

	header, err := protocol.ParseHeader(hbuf[:])
	if err != nil {
		return protocol.Header{}, nil, err
	}

	if header.BodyLength == 0 {
		return header, nil, nil
	}

	body := make([]byte, header.BodyLength)
	if _, err := io.ReadFull(c.sock, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return protocol.Header{}, nil, ErrTruncated
		}
		return protocol.Header{}, nil, err
	}

	return header, body, nil
}

// classifyIO maps an I/O failure to the error the caller should see:
// the context error when the exchange was canceled, a NetworkError
// otherwise.
func (c *Connection) classifyIO(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &NetworkError{Endpoint: c.addr, Op: op, Err: err}
}

// IsAlive reports whether the connection looks usable: connected, with no
// already-pending EOF or stray bytes on the socket. This is a bounded
// pre-use probe, not a guarantee against mid-exchange failure.
func (c *Connection) IsAlive() bool {
	if c.State() != StateConnected {
		return false
	}

	if err := c.sock.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		c.fault()
		return false
	}

	var probe [1]byte
	n, err := c.sock.Read(probe[:])
	c.sock.SetReadDeadline(time.Time{})

	if n > 0 {
		// Bytes outside an exchange mean the stream framing is lost.
		c.fault()
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	c.fault()
	return false
}

func (c *Connection) fault() {
	if c.state.CompareAndSwap(int32(StateConnected), int32(StateFaulted)) {
		logger.Debug("conn %s: faulted", c.id)
	}
}

// Close shuts the connection down gracefully. It is idempotent and safe
// to call repeatedly; secondary errors during shutdown are suppressed.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		if c.State() == StateConnected {
			c.state.Store(int32(StateClosed))
		}
		if c.sock != nil {
			if tcp, ok := c.sock.(*net.TCPConn); ok {
				_ = tcp.CloseWrite()
			}
			_ = c.sock.Close()
		}
	})
	return nil
}
