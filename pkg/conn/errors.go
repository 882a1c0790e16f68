package conn

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// NetworkError is a transport failure naming the endpoint it happened
// against: DNS failure, refused connection, timeout, reset, premature
// close. Only the tracker failover layer retries these.
type NetworkError struct {
	Endpoint string
	Op       string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ErrTruncated marks a stream closed mid-response: the header promised
// more bytes than arrived before EOF. It is surfaced distinctly from a
// protocol rejection so failover code can treat it as transient.
var ErrTruncated = errors.New("truncated stream: connection closed mid-response")

// ErrPoolClosed is returned by Acquire after the pool has been closed.
var ErrPoolClosed = errors.New("connection pool is closed")

// PoolExhaustedError reports that no connection slot freed up within the
// configured wait. The pool never expands beyond its maximum to satisfy a
// waiter.
type PoolExhaustedError struct {
	Endpoint string
	Wait     time.Duration
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("pool for %s exhausted: no connection available within %s", e.Endpoint, e.Wait)
}

// IsTransient reports whether err is a transport-level failure worth
// retrying against a different endpoint: a NetworkError, a net timeout,
// or a pool-acquire timeout. Semantic rejections never classify as
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}

	var exhausted *PoolExhaustedError
	if errors.As(err, &exhausted) {
		return true
	}

	var timeout net.Error
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}

	return false
}
