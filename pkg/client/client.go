// Package client is the facade of the storage cluster client. For every
// file operation it asks the tracker layer for the right storage
// descriptor, borrows a pooled connection to that server, runs the
// exchange and maps the result.
//
// The facade adds no retry logic of its own: a failed single-server
// exchange is reported to the caller, who may rerun the whole operation
// and land on a different server via a fresh tracker query.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/cocosip/fastdfs-go/internal/logger"
	"github.com/cocosip/fastdfs-go/pkg/conn"
	"github.com/cocosip/fastdfs-go/pkg/metrics"
	"github.com/cocosip/fastdfs-go/pkg/protocol"
	"github.com/cocosip/fastdfs-go/pkg/selector"
	"github.com/cocosip/fastdfs-go/pkg/tracker"
)

// Options configures the client facade.
type Options struct {
	// Trackers are the directory-service endpoints, "host:port"
	Trackers []string

	// DefaultGroup resolves bare-path file identifiers
	DefaultGroup string

	// Selector picks among storage candidates; TrackerSelection when nil
	Selector selector.Selector

	// Pool configures every per-endpoint connection pool
	Pool conn.PoolOptions
}

// Client orchestrates tracker queries, storage pools and the wire
// protocol behind a typed file API. Safe for concurrent use.
type Client struct {
	trackers *tracker.Client
	sel      selector.Selector
	poolOpts conn.PoolOptions
	defGroup string
	om       metrics.OperationMetrics

	mu    sync.Mutex
	pools map[string]*conn.Pool
}

// New validates the options and builds the facade. Tracker pools are
// created immediately; storage pools lazily, keyed by the physical
// "ip:port" endpoint (one endpoint may serve multiple groups).
func New(opts Options) (*Client, error) {
	trackers, err := tracker.New(opts.Trackers, opts.Pool)
	if err != nil {
		return nil, err
	}

	sel := opts.Selector
	if sel == nil {
		sel = selector.TrackerSelection{}
	}

	return &Client{
		trackers: trackers,
		sel:      sel,
		poolOpts: opts.Pool,
		defGroup: opts.DefaultGroup,
		om:       metrics.NewOperationMetrics(),
		pools:    make(map[string]*conn.Pool),
	}, nil
}

// Trackers exposes the underlying tracker client.
func (c *Client) Trackers() *tracker.Client { return c.trackers }

// storagePool returns the pool for a descriptor's endpoint, creating it
// on first use.
func (c *Client) storagePool(addr string) *conn.Pool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pools[addr]; ok {
		return p
	}

	logger.Debug("creating storage pool for %s", addr)
	p := conn.NewPool(addr, c.poolOpts)
	c.pools[addr] = p
	return p
}

// exchangeStorage runs one request against the descriptor's storage
// server, releasing the borrowed connection on every exit path.
func (c *Client) exchangeStorage(ctx context.Context, desc protocol.StorageDescriptor, req protocol.Request, resp protocol.Response) error {
	pool := c.storagePool(desc.Addr())

	cn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer pool.Release(cn)

	start := time.Now()
	err = cn.Exchange(ctx, req, resp)
	c.om.RecordExchange(req.Cmd(), time.Since(start), err)
	return err
}

// storageCall pairs a request with its response type and runs it against
// the chosen storage server.
func storageCall[R any, PR interface {
	*R
	protocol.Response
}](ctx context.Context, c *Client, desc protocol.StorageDescriptor, req protocol.Request) (*R, error) {
	var resp R
	if err := c.exchangeStorage(ctx, desc, req, PR(&resp)); err != nil {
		return nil, err
	}
	return &resp, nil
}

// locateFetch resolves the storage server for a read. With the default
// TrackerSelection policy a single-result query is issued; other policies
// fetch all replicas and choose client-side.
func (c *Client) locateFetch(ctx context.Context, id FileID) (protocol.StorageDescriptor, error) {
	if _, ok := c.sel.(selector.TrackerSelection); ok {
		return c.trackers.QueryFetchOne(ctx, id.Group, id.Path)
	}

	all, err := c.trackers.QueryFetchAll(ctx, id.Group, id.Path)
	if err != nil {
		return protocol.StorageDescriptor{}, err
	}
	return c.sel.Select(all)
}

// UploadBuffer stores data as a new file and returns its identifier.
// extName is the bare extension without the dot, e.g. "jpg".
func (c *Client) UploadBuffer(ctx context.Context, data []byte, extName, group string) (id FileID, err error) {
	defer c.observe("upload", time.Now(), &err)

	desc, err := c.trackers.QueryStoreOne(ctx, group)
	if err != nil {
		return FileID{}, err
	}

	req := &protocol.UploadRequest{StorePathIndex: desc.StorePathIndex, ExtName: extName, Data: data}
	resp, err := storageCall[protocol.UploadResponse](ctx, c, desc, req)
	if err != nil {
		return FileID{}, err
	}
	return FileID{Group: resp.Group, Path: resp.Path}, nil
}

// UploadAppenderBuffer stores data as an appender file, which can later
// grow through AppendBuffer.
func (c *Client) UploadAppenderBuffer(ctx context.Context, data []byte, extName, group string) (id FileID, err error) {
	defer c.observe("upload_appender", time.Now(), &err)

	desc, err := c.trackers.QueryStoreOne(ctx, group)
	if err != nil {
		return FileID{}, err
	}

	req := &protocol.UploadRequest{StorePathIndex: desc.StorePathIndex, ExtName: extName, Data: data, Appender: true}
	resp, err := storageCall[protocol.UploadResponse](ctx, c, desc, req)
	if err != nil {
		return FileID{}, err
	}
	return FileID{Group: resp.Group, Path: resp.Path}, nil
}

// UploadSlaveBuffer stores data as a slave file tied to an existing
// master file; the slave's name derives from the master path plus prefix
// and extension. The storage server is the master's mutation target, so
// both land in the same store path.
func (c *Client) UploadSlaveBuffer(ctx context.Context, masterFileID, prefix, extName string, data []byte) (id FileID, err error) {
	defer c.observe("upload_slave", time.Now(), &err)

	master, err := ParseFileID(masterFileID, c.defGroup)
	if err != nil {
		return FileID{}, err
	}

	desc, err := c.trackers.QueryUpdate(ctx, master.Group, master.Path)
	if err != nil {
		return FileID{}, err
	}

	req := &protocol.UploadSlaveRequest{MasterPath: master.Path, Prefix: prefix, ExtName: extName, Data: data}
	resp, err := storageCall[protocol.UploadResponse](ctx, c, desc, req)
	if err != nil {
		return FileID{}, err
	}
	return FileID{Group: resp.Group, Path: resp.Path}, nil
}

// DownloadBuffer fetches a whole file.
func (c *Client) DownloadBuffer(ctx context.Context, fileID string) ([]byte, error) {
	return c.DownloadRange(ctx, fileID, 0, 0)
}

// DownloadRange fetches length bytes starting at offset; length 0 means
// to the end of the file.
func (c *Client) DownloadRange(ctx context.Context, fileID string, offset, length int64) (data []byte, err error) {
	defer c.observe("download", time.Now(), &err)

	id, err := ParseFileID(fileID, c.defGroup)
	if err != nil {
		return nil, err
	}

	desc, err := c.locateFetch(ctx, id)
	if err != nil {
		return nil, err
	}

	req := &protocol.DownloadRequest{Offset: offset, Length: length, Group: id.Group, Path: id.Path}
	resp, err := storageCall[protocol.DownloadResponse](ctx, c, desc, req)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// AppendBuffer appends data to an appender file.
func (c *Client) AppendBuffer(ctx context.Context, fileID string, data []byte) (err error) {
	defer c.observe("append", time.Now(), &err)

	id, err := ParseFileID(fileID, c.defGroup)
	if err != nil {
		return err
	}

	desc, err := c.trackers.QueryUpdate(ctx, id.Group, id.Path)
	if err != nil {
		return err
	}

	_, err = storageCall[protocol.EmptyResponse](ctx, c, desc, &protocol.AppendRequest{Path: id.Path, Data: data})
	return err
}

// ModifyBuffer overwrites bytes of an appender file starting at offset.
func (c *Client) ModifyBuffer(ctx context.Context, fileID string, offset int64, data []byte) (err error) {
	defer c.observe("modify", time.Now(), &err)

	id, err := ParseFileID(fileID, c.defGroup)
	if err != nil {
		return err
	}

	desc, err := c.trackers.QueryUpdate(ctx, id.Group, id.Path)
	if err != nil {
		return err
	}

	_, err = storageCall[protocol.EmptyResponse](ctx, c, desc, &protocol.ModifyRequest{Path: id.Path, Offset: offset, Data: data})
	return err
}

// Truncate cuts an appender file down to size bytes.
func (c *Client) Truncate(ctx context.Context, fileID string, size int64) (err error) {
	defer c.observe("truncate", time.Now(), &err)

	id, err := ParseFileID(fileID, c.defGroup)
	if err != nil {
		return err
	}

	desc, err := c.trackers.QueryUpdate(ctx, id.Group, id.Path)
	if err != nil {
		return err
	}

	_, err = storageCall[protocol.EmptyResponse](ctx, c, desc, &protocol.TruncateRequest{Path: id.Path, Size: size})
	return err
}

// DeleteFile removes a file from its group.
func (c *Client) DeleteFile(ctx context.Context, fileID string) (err error) {
	defer c.observe("delete", time.Now(), &err)

	id, err := ParseFileID(fileID, c.defGroup)
	if err != nil {
		return err
	}

	desc, err := c.trackers.QueryUpdate(ctx, id.Group, id.Path)
	if err != nil {
		return err
	}

	_, err = storageCall[protocol.EmptyResponse](ctx, c, desc, &protocol.DeleteRequest{Group: id.Group, Path: id.Path})
	return err
}

// SetMetadata overwrites a file's metadata pairs.
func (c *Client) SetMetadata(ctx context.Context, fileID string, meta map[string]string) error {
	return c.setMetadata(ctx, fileID, meta, protocol.MetadataOverwrite)
}

// MergeMetadata merges pairs into a file's existing metadata.
func (c *Client) MergeMetadata(ctx context.Context, fileID string, meta map[string]string) error {
	return c.setMetadata(ctx, fileID, meta, protocol.MetadataMerge)
}

func (c *Client) setMetadata(ctx context.Context, fileID string, meta map[string]string, flag byte) (err error) {
	defer c.observe("set_metadata", time.Now(), &err)

	id, err := ParseFileID(fileID, c.defGroup)
	if err != nil {
		return err
	}

	desc, err := c.trackers.QueryUpdate(ctx, id.Group, id.Path)
	if err != nil {
		return err
	}

	req := &protocol.SetMetadataRequest{Group: id.Group, Path: id.Path, Metadata: meta, OpFlag: flag}
	_, err = storageCall[protocol.EmptyResponse](ctx, c, desc, req)
	return err
}

// GetMetadata reads a file's metadata pairs.
func (c *Client) GetMetadata(ctx context.Context, fileID string) (meta map[string]string, err error) {
	defer c.observe("get_metadata", time.Now(), &err)

	id, err := ParseFileID(fileID, c.defGroup)
	if err != nil {
		return nil, err
	}

	desc, err := c.locateFetch(ctx, id)
	if err != nil {
		return nil, err
	}

	resp, err := storageCall[protocol.GetMetadataResponse](ctx, c, desc, &protocol.GetMetadataRequest{Group: id.Group, Path: id.Path})
	if err != nil {
		return nil, err
	}
	return resp.Metadata, nil
}

// FileInfo describes a stored file.
type FileInfo struct {
	FileSize   int64
	CreateTime time.Time
	CRC32      uint32
	SourceIP   string
}

// Stat queries a file's size, creation time, checksum and origin server.
func (c *Client) Stat(ctx context.Context, fileID string) (info FileInfo, err error) {
	defer c.observe("stat", time.Now(), &err)

	id, err := ParseFileID(fileID, c.defGroup)
	if err != nil {
		return FileInfo{}, err
	}

	desc, err := c.locateFetch(ctx, id)
	if err != nil {
		return FileInfo{}, err
	}

	resp, err := storageCall[protocol.QueryFileInfoResponse](ctx, c, desc, &protocol.QueryFileInfoRequest{Group: id.Group, Path: id.Path})
	if err != nil {
		return FileInfo{}, err
	}

	return FileInfo{
		FileSize:   resp.FileSize,
		CreateTime: resp.CreateTime,
		CRC32:      resp.CRC32,
		SourceIP:   resp.SourceIP,
	}, nil
}

func (c *Client) observe(op string, start time.Time, err *error) {
	c.om.RecordOperation(op, time.Since(start), *err)
}

// Close disposes the tracker client and every storage pool.
func (c *Client) Close() {
	c.trackers.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pools {
		p.Close()
	}
	c.pools = make(map[string]*conn.Pool)
}
