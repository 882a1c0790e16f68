// Package tracker implements the directory-service client: tracker
// queries with round-robin failover across the configured endpoints.
package tracker

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/cocosip/fastdfs-go/internal/logger"
	"github.com/cocosip/fastdfs-go/pkg/conn"
	"github.com/cocosip/fastdfs-go/pkg/protocol"
)

// Client holds one connection pool per configured tracker endpoint plus a
// shared cursor remembering the last tracker that answered.
//
// Every query walks the endpoints circularly starting at the cursor, up
// to one attempt per tracker. Only transport failures advance to the next
// tracker; a reachable tracker's rejection propagates immediately, since
// switching trackers cannot fix a semantic answer. On success the cursor
// moves to the answering tracker, so later queries prefer the
// last-known-good one. A stale cursor read under races only costs
// affinity, never correctness.
type Client struct {
	endpoints []string
	pools     []*conn.Pool
	cursor    atomic.Int64
}

// New validates the endpoint list and creates one pool per tracker.
// Endpoints must be non-empty "host:port" strings.
func New(endpoints []string, opts conn.PoolOptions) (*Client, error) {
	if len(endpoints) == 0 {
		return nil, protocol.NewInvalidArgument("tracker endpoint list is empty")
	}

	for _, ep := range endpoints {
		if _, _, err := net.SplitHostPort(ep); err != nil {
			return nil, protocol.NewInvalidArgument("malformed tracker endpoint %q: %v", ep, err)
		}
	}

	c := &Client{endpoints: endpoints}
	for _, ep := range endpoints {
		c.pools = append(c.pools, conn.NewPool(ep, opts))
	}
	return c, nil
}

// Endpoints returns the configured tracker endpoints in order.
func (c *Client) Endpoints() []string { return c.endpoints }

// LastGood returns the index of the tracker that served the most recent
// successful query.
func (c *Client) LastGood() int { return int(c.cursor.Load()) }

// QueryStoreOne asks for one storage server to upload to, optionally
// constrained to a group.
func (c *Client) QueryStoreOne(ctx context.Context, group string) (protocol.StorageDescriptor, error) {
	var resp protocol.QueryStoreResponse
	err := c.Exchange(ctx, &protocol.QueryStoreRequest{Group: group}, &resp)
	return resp.Descriptor, err
}

// QueryStoreAll asks for every storage server an upload could target,
// optionally constrained to a group, for client-side selection.
func (c *Client) QueryStoreAll(ctx context.Context, group string) ([]protocol.StorageDescriptor, error) {
	var resp protocol.QueryStoreAllResponse
	err := c.Exchange(ctx, &protocol.QueryStoreAllRequest{Group: group}, &resp)
	return resp.Descriptors, err
}

// QueryFetchOne asks which storage server holds an existing file.
func (c *Client) QueryFetchOne(ctx context.Context, group, path string) (protocol.StorageDescriptor, error) {
	if err := checkLocation(group, path); err != nil {
		return protocol.StorageDescriptor{}, err
	}

	var resp protocol.QueryLocateResponse
	err := c.Exchange(ctx, &protocol.QueryLocateRequest{Kind: protocol.QueryFetch, Group: group, Path: path}, &resp)
	return resp.Descriptor, err
}

// QueryUpdate asks which storage server is authoritative for mutating an
// existing file. The mutation target may differ from a read target.
func (c *Client) QueryUpdate(ctx context.Context, group, path string) (protocol.StorageDescriptor, error) {
	if err := checkLocation(group, path); err != nil {
		return protocol.StorageDescriptor{}, err
	}

	var resp protocol.QueryLocateResponse
	err := c.Exchange(ctx, &protocol.QueryLocateRequest{Kind: protocol.QueryUpdate, Group: group, Path: path}, &resp)
	return resp.Descriptor, err
}

// QueryFetchAll asks for every storage server holding a file, for
// client-side selection.
func (c *Client) QueryFetchAll(ctx context.Context, group, path string) ([]protocol.StorageDescriptor, error) {
	if err := checkLocation(group, path); err != nil {
		return nil, err
	}

	var resp protocol.QueryFetchAllResponse
	err := c.Exchange(ctx, &protocol.QueryFetchAllRequest{Group: group, Path: path}, &resp)
	return resp.Descriptors, err
}

// checkLocation rejects malformed file coordinates before any I/O.
func checkLocation(group, path string) error {
	if group == "" {
		return protocol.NewInvalidArgument("group name is empty")
	}
	if path == "" {
		return protocol.NewInvalidArgument("file path is empty")
	}
	return nil
}

// Exchange runs one tracker request with failover. Transport failures and
// timeouts rotate to the next tracker; anything else propagates on first
// occurrence. After all trackers fail transiently, the aggregate error
// wraps the last underlying cause.
func (c *Client) Exchange(ctx context.Context, req protocol.Request, resp protocol.Response) error {
	n := len(c.pools)
	start := int(c.cursor.Load()) % n

	var lastErr error
	for i := 0; i < n; i++ {
		idx := (start + i) % n

		err := c.exchangeOne(ctx, c.pools[idx], req, resp)
		if err == nil {
			c.cursor.Store(int64(idx))
			return nil
		}

		if !conn.IsTransient(err) {
			return err
		}

		logger.Warn("tracker %s unreachable, rotating: %v", c.endpoints[idx], err)
		lastErr = err
	}

	return fmt.Errorf("all %d trackers failed: %w", n, lastErr)
}

func (c *Client) exchangeOne(ctx context.Context, pool *conn.Pool, req protocol.Request, resp protocol.Response) error {
	cn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer pool.Release(cn)

	return cn.Exchange(ctx, req, resp)
}

// Ping probes the last-known-good tracker with an active test.
func (c *Client) Ping(ctx context.Context) error {
	var resp protocol.EmptyResponse
	return c.Exchange(ctx, &protocol.ActiveTestRequest{}, &resp)
}

// Close disposes every tracker pool.
func (c *Client) Close() {
	for _, p := range c.pools {
		p.Close()
	}
}
