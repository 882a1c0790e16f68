package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
)

// StorageDescriptor is a tracker's answer identifying which storage
// server (and store path on it) an operation should use.
//
// Descriptors are ephemeral: cluster placement is dynamic, so a
// descriptor is consumed within the operation that obtained it and never
// cached.
type StorageDescriptor struct {
	Group          string
	IPAddr         string
	Port           int
	StorePathIndex byte
}

// Addr returns the descriptor's "ip:port" endpoint, the key pools are
// looked up by.
func (d StorageDescriptor) Addr() string {
	return net.JoinHostPort(d.IPAddr, strconv.Itoa(d.Port))
}

const (
	// ip(15) + port(8)
	storageLocationLen = IPAddrLen + 8

	// group(16) + ip(15) + port(8)
	fetchDescriptorLen = GroupNameLen + storageLocationLen

	// group(16) + ip(15) + port(8) + storePathIndex(1)
	storeDescriptorLen = fetchDescriptorLen + 1
)

// QueryKind distinguishes the three tracker question shapes: where to
// store a new file, where to fetch an existing one, and which server is
// authoritative for mutating one.
type QueryKind int

const (
	QueryStore QueryKind = iota
	QueryFetch
	QueryUpdate
)

func (k QueryKind) String() string {
	switch k {
	case QueryStore:
		return "store"
	case QueryFetch:
		return "fetch"
	case QueryUpdate:
		return "update"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// QueryStoreRequest asks a tracker for one storage server to upload to,
// optionally constrained to a group.
type QueryStoreRequest struct {
	Group string
}

func (r *QueryStoreRequest) Cmd() byte {
	if r.Group == "" {
		return TrackerCmdQueryStoreWithoutGroup
	}
	return TrackerCmdQueryStoreWithGroup
}

func (r *QueryStoreRequest) EncodeBody() ([]byte, error) {
	if r.Group == "" {
		return nil, nil
	}

	var buf bytes.Buffer
	if err := writeFixedString(&buf, r.Group, GroupNameLen); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// QueryStoreResponse carries the storage server plus the store path index
// the upload must target.
type QueryStoreResponse struct {
	Descriptor StorageDescriptor
}

func (r *QueryStoreResponse) DecodeBody(body []byte) error {
	if len(body) != storeDescriptorLen {
		return NewFramingError("query store response: want %d bytes, have %d", storeDescriptorLen, len(body))
	}

	r.Descriptor = StorageDescriptor{
		Group:          trimFixedString(body[:GroupNameLen]),
		IPAddr:         trimFixedString(body[GroupNameLen : GroupNameLen+IPAddrLen]),
		Port:           int(binary.BigEndian.Uint64(body[GroupNameLen+IPAddrLen : fetchDescriptorLen])),
		StorePathIndex: body[fetchDescriptorLen],
	}
	return nil
}

// QueryStoreAllRequest asks a tracker for every storage server an upload
// could target, optionally constrained to a group.
type QueryStoreAllRequest struct {
	Group string
}

func (r *QueryStoreAllRequest) Cmd() byte {
	if r.Group == "" {
		return TrackerCmdQueryStoreAllWithoutGrp
	}
	return TrackerCmdQueryStoreAllWithGroup
}

func (r *QueryStoreAllRequest) EncodeBody() ([]byte, error) {
	one := QueryStoreRequest{Group: r.Group}
	return one.EncodeBody()
}

// QueryStoreAllResponse carries one descriptor per upload candidate. The
// group and store path index are shared; the body repeats ip+port blocks
// between them.
type QueryStoreAllResponse struct {
	Descriptors []StorageDescriptor
}

func (r *QueryStoreAllResponse) DecodeBody(body []byte) error {
	if len(body) < storeDescriptorLen || (len(body)-GroupNameLen-1)%storageLocationLen != 0 {
		return NewFramingError("query store all response: bad length %d", len(body))
	}

	group := trimFixedString(body[:GroupNameLen])
	index := body[len(body)-1]
	rest := body[GroupNameLen : len(body)-1]

	r.Descriptors = r.Descriptors[:0]
	for len(rest) > 0 {
		r.Descriptors = append(r.Descriptors, StorageDescriptor{
			Group:          group,
			IPAddr:         trimFixedString(rest[:IPAddrLen]),
			Port:           int(binary.BigEndian.Uint64(rest[IPAddrLen:storageLocationLen])),
			StorePathIndex: index,
		})
		rest = rest[storageLocationLen:]
	}
	return nil
}

// QueryLocateRequest asks a tracker which storage server holds (fetch) or
// is authoritative for mutating (update) an existing file.
type QueryLocateRequest struct {
	Kind  QueryKind
	Group string
	Path  string
}

func (r *QueryLocateRequest) Cmd() byte {
	if r.Kind == QueryUpdate {
		return TrackerCmdQueryUpdate
	}
	return TrackerCmdQueryFetchOne
}

func (r *QueryLocateRequest) EncodeBody() ([]byte, error) {
	if r.Group == "" {
		return nil, NewInvalidArgument("group name is empty")
	}
	if r.Path == "" {
		return nil, NewInvalidArgument("file path is empty")
	}

	var buf bytes.Buffer
	if err := writeFixedString(&buf, r.Group, GroupNameLen); err != nil {
		return nil, err
	}
	buf.WriteString(r.Path)
	return buf.Bytes(), nil
}

// QueryLocateResponse carries the single server a fetch or update should
// talk to.
type QueryLocateResponse struct {
	Descriptor StorageDescriptor
}

func (r *QueryLocateResponse) DecodeBody(body []byte) error {
	if len(body) != fetchDescriptorLen {
		return NewFramingError("query locate response: want %d bytes, have %d", fetchDescriptorLen, len(body))
	}

	r.Descriptor = StorageDescriptor{
		Group:  trimFixedString(body[:GroupNameLen]),
		IPAddr: trimFixedString(body[GroupNameLen : GroupNameLen+IPAddrLen]),
		Port:   int(binary.BigEndian.Uint64(body[GroupNameLen+IPAddrLen : fetchDescriptorLen])),
	}
	return nil
}

// QueryFetchAllRequest asks a tracker for every storage server holding a
// file, for client-side selection.
type QueryFetchAllRequest struct {
	Group string
	Path  string
}

func (r *QueryFetchAllRequest) Cmd() byte { return TrackerCmdQueryFetchAll }

func (r *QueryFetchAllRequest) EncodeBody() ([]byte, error) {
	locate := QueryLocateRequest{Kind: QueryFetch, Group: r.Group, Path: r.Path}
	return locate.EncodeBody()
}

// QueryFetchAllResponse carries one descriptor per replica. The group is
// shared; the body repeats ip+port blocks after it.
type QueryFetchAllResponse struct {
	Descriptors []StorageDescriptor
}

func (r *QueryFetchAllResponse) DecodeBody(body []byte) error {
	if len(body) < fetchDescriptorLen || (len(body)-GroupNameLen)%storageLocationLen != 0 {
		return NewFramingError("query fetch all response: bad length %d", len(body))
	}

	group := trimFixedString(body[:GroupNameLen])
	rest := body[GroupNameLen:]

	r.Descriptors = r.Descriptors[:0]
	for len(rest) > 0 {
		r.Descriptors = append(r.Descriptors, StorageDescriptor{
			Group:  group,
			IPAddr: trimFixedString(rest[:IPAddrLen]),
			Port:   int(binary.BigEndian.Uint64(rest[IPAddrLen:storageLocationLen])),
		})
		rest = rest[storageLocationLen:]
	}
	return nil
}
