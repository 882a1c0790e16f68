package protocol

import (
	"bytes"
	"encoding/binary"
	"time"
)

// UploadRequest stores a new file on the selected storage server.
//
// Body: storePathIndex(1) + fileSize(8 BE) + extName(6, NUL padded) + data.
// The store path index comes from the tracker's QueryStoreResponse and
// tells the storage server which of its store paths to place the file on.
type UploadRequest struct {
	StorePathIndex byte
	ExtName        string
	Data           []byte

	// Appender selects the appender-file variant, which may later grow
	// through AppendRequest
	Appender bool
}

func (r *UploadRequest) Cmd() byte {
	if r.Appender {
		return StorageCmdUploadAppenderFile
	}
	return StorageCmdUploadFile
}

func (r *UploadRequest) EncodeBody() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(1 + 8 + ExtNameLen + len(r.Data))

	buf.WriteByte(r.StorePathIndex)

	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(r.Data)))
	buf.Write(size[:])

	if err := writeFixedString(&buf, r.ExtName, ExtNameLen); err != nil {
		return nil, err
	}

	buf.Write(r.Data)
	return buf.Bytes(), nil
}

// UploadResponse carries the server-assigned location of the stored file.
type UploadResponse struct {
	Group string
	Path  string
}

func (r *UploadResponse) DecodeBody(body []byte) error {
	if len(body) <= GroupNameLen {
		return NewFramingError("upload response: want more than %d bytes, have %d", GroupNameLen, len(body))
	}

	r.Group = trimFixedString(body[:GroupNameLen])
	r.Path = string(body[GroupNameLen:])
	return nil
}

// DownloadRequest reads a file, or a slice of it, from a storage server.
//
// Body: offset(8 BE) + length(8 BE) + group(16) + path. Length 0 means
// "to end of file".
type DownloadRequest struct {
	Offset int64
	Length int64
	Group  string
	Path   string
}

func (r *DownloadRequest) Cmd() byte { return StorageCmdDownloadFile }

func (r *DownloadRequest) EncodeBody() ([]byte, error) {
	if r.Offset < 0 || r.Length < 0 {
		return nil, NewInvalidArgument("negative download offset or length")
	}

	var buf bytes.Buffer
	var n [8]byte

	binary.BigEndian.PutUint64(n[:], uint64(r.Offset))
	buf.Write(n[:])
	binary.BigEndian.PutUint64(n[:], uint64(r.Length))
	buf.Write(n[:])

	if err := writeFixedString(&buf, r.Group, GroupNameLen); err != nil {
		return nil, err
	}
	buf.WriteString(r.Path)
	return buf.Bytes(), nil
}

// DownloadResponse is the raw file content.
type DownloadResponse struct {
	Data []byte
}

func (r *DownloadResponse) DecodeBody(body []byte) error {
	r.Data = body
	return nil
}

// DeleteRequest removes a file. Body: group(16) + path; the success
// response carries no body.
type DeleteRequest struct {
	Group string
	Path  string
}

func (r *DeleteRequest) Cmd() byte { return StorageCmdDeleteFile }

func (r *DeleteRequest) EncodeBody() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeFixedString(&buf, r.Group, GroupNameLen); err != nil {
		return nil, err
	}
	buf.WriteString(r.Path)
	return buf.Bytes(), nil
}

// EmptyResponse accepts the body-less success replies delete, append and
// set-metadata produce.
type EmptyResponse struct{}

func (r *EmptyResponse) DecodeBody(body []byte) error {
	if len(body) != 0 {
		return NewFramingError("unexpected %d-byte body on empty response", len(body))
	}
	return nil
}

// AppendRequest appends data to an appender file.
//
// Body: pathLen(8 BE) + dataLen(8 BE) + path + data. The target server
// comes from a query-update, so the group travels in the tracker query,
// not in this body.
type AppendRequest struct {
	Path string
	Data []byte
}

func (r *AppendRequest) Cmd() byte { return StorageCmdAppendFile }

func (r *AppendRequest) EncodeBody() ([]byte, error) {
	if r.Path == "" {
		return nil, NewInvalidArgument("append path is empty")
	}

	var buf bytes.Buffer
	buf.Grow(16 + len(r.Path) + len(r.Data))

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(r.Path)))
	buf.Write(n[:])
	binary.BigEndian.PutUint64(n[:], uint64(len(r.Data)))
	buf.Write(n[:])

	buf.WriteString(r.Path)
	buf.Write(r.Data)
	return buf.Bytes(), nil
}

// UploadSlaveRequest stores data as a slave file whose name derives from
// an existing master file plus a prefix, e.g. a thumbnail next to the
// original image.
//
// Body: masterPathLen(8 BE) + fileSize(8 BE) + prefix(16) + ext(6) +
// masterPath + data.
type UploadSlaveRequest struct {
	MasterPath string
	Prefix     string
	ExtName    string
	Data       []byte
}

func (r *UploadSlaveRequest) Cmd() byte { return StorageCmdUploadSlaveFile }

func (r *UploadSlaveRequest) EncodeBody() ([]byte, error) {
	if r.MasterPath == "" {
		return nil, NewInvalidArgument("master path is empty")
	}
	if r.Prefix == "" {
		return nil, NewInvalidArgument("slave prefix is empty")
	}

	var buf bytes.Buffer
	buf.Grow(16 + PrefixNameLen + ExtNameLen + len(r.MasterPath) + len(r.Data))

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(r.MasterPath)))
	buf.Write(n[:])
	binary.BigEndian.PutUint64(n[:], uint64(len(r.Data)))
	buf.Write(n[:])

	if err := writeFixedString(&buf, r.Prefix, PrefixNameLen); err != nil {
		return nil, err
	}
	if err := writeFixedString(&buf, r.ExtName, ExtNameLen); err != nil {
		return nil, err
	}

	buf.WriteString(r.MasterPath)
	buf.Write(r.Data)
	return buf.Bytes(), nil
}

// ModifyRequest overwrites a byte range of an appender file in place.
//
// Body: pathLen(8 BE) + offset(8 BE) + dataLen(8 BE) + path + data.
type ModifyRequest struct {
	Path   string
	Offset int64
	Data   []byte
}

func (r *ModifyRequest) Cmd() byte { return StorageCmdModifyFile }

func (r *ModifyRequest) EncodeBody() ([]byte, error) {
	if r.Path == "" {
		return nil, NewInvalidArgument("modify path is empty")
	}
	if r.Offset < 0 {
		return nil, NewInvalidArgument("negative modify offset")
	}

	var buf bytes.Buffer
	buf.Grow(24 + len(r.Path) + len(r.Data))

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(r.Path)))
	buf.Write(n[:])
	binary.BigEndian.PutUint64(n[:], uint64(r.Offset))
	buf.Write(n[:])
	binary.BigEndian.PutUint64(n[:], uint64(len(r.Data)))
	buf.Write(n[:])

	buf.WriteString(r.Path)
	buf.Write(r.Data)
	return buf.Bytes(), nil
}

// TruncateRequest truncates an appender file to a given size.
//
// Body: pathLen(8 BE) + truncatedSize(8 BE) + path.
type TruncateRequest struct {
	Path string
	Size int64
}

func (r *TruncateRequest) Cmd() byte { return StorageCmdTruncateFile }

func (r *TruncateRequest) EncodeBody() ([]byte, error) {
	if r.Path == "" {
		return nil, NewInvalidArgument("truncate path is empty")
	}
	if r.Size < 0 {
		return nil, NewInvalidArgument("negative truncate size")
	}

	var buf bytes.Buffer
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(r.Path)))
	buf.Write(n[:])
	binary.BigEndian.PutUint64(n[:], uint64(r.Size))
	buf.Write(n[:])
	buf.WriteString(r.Path)
	return buf.Bytes(), nil
}

// SetMetadataRequest attaches key/value metadata to a file.
//
// Body: pathLen(8 BE) + metaLen(8 BE) + opFlag(1) + group(16) + path +
// serialized pairs. The op flag is MetadataOverwrite or MetadataMerge.
type SetMetadataRequest struct {
	Group    string
	Path     string
	Metadata map[string]string
	OpFlag   byte
}

func (r *SetMetadataRequest) Cmd() byte { return StorageCmdSetMetadata }

func (r *SetMetadataRequest) EncodeBody() ([]byte, error) {
	if r.OpFlag != MetadataOverwrite && r.OpFlag != MetadataMerge {
		return nil, NewInvalidArgument("metadata op flag %q is not overwrite or merge", r.OpFlag)
	}

	meta := EncodeMetadata(r.Metadata)

	var buf bytes.Buffer
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(r.Path)))
	buf.Write(n[:])
	binary.BigEndian.PutUint64(n[:], uint64(len(meta)))
	buf.Write(n[:])

	buf.WriteByte(r.OpFlag)

	if err := writeFixedString(&buf, r.Group, GroupNameLen); err != nil {
		return nil, err
	}
	buf.WriteString(r.Path)
	buf.Write(meta)
	return buf.Bytes(), nil
}

// GetMetadataRequest reads a file's metadata pairs.
type GetMetadataRequest struct {
	Group string
	Path  string
}

func (r *GetMetadataRequest) Cmd() byte { return StorageCmdGetMetadata }

func (r *GetMetadataRequest) EncodeBody() ([]byte, error) {
	del := DeleteRequest{Group: r.Group, Path: r.Path}
	return del.EncodeBody()
}

// GetMetadataResponse carries the decoded metadata pairs.
type GetMetadataResponse struct {
	Metadata map[string]string
}

func (r *GetMetadataResponse) DecodeBody(body []byte) error {
	r.Metadata = DecodeMetadata(body)
	return nil
}

// QueryFileInfoRequest asks a storage server for a file's attributes.
type QueryFileInfoRequest struct {
	Group string
	Path  string
}

func (r *QueryFileInfoRequest) Cmd() byte { return StorageCmdQueryFileInfo }

func (r *QueryFileInfoRequest) EncodeBody() ([]byte, error) {
	del := DeleteRequest{Group: r.Group, Path: r.Path}
	return del.EncodeBody()
}

// fileSize(8) + createTime(8) + crc32(8) + sourceIP(16)
const fileInfoBodyLen = 8 + 8 + 8 + 16

// QueryFileInfoResponse carries file size, creation time, checksum and
// the address of the server the file was originally uploaded to.
type QueryFileInfoResponse struct {
	FileSize   int64
	CreateTime time.Time
	CRC32      uint32
	SourceIP   string
}

func (r *QueryFileInfoResponse) DecodeBody(body []byte) error {
	if len(body) != fileInfoBodyLen {
		return NewFramingError("file info response: want %d bytes, have %d", fileInfoBodyLen, len(body))
	}

	r.FileSize = int64(binary.BigEndian.Uint64(body[0:8]))
	r.CreateTime = time.Unix(int64(binary.BigEndian.Uint64(body[8:16])), 0)
	r.CRC32 = uint32(binary.BigEndian.Uint64(body[16:24]))
	r.SourceIP = trimFixedString(body[24:fileInfoBodyLen])
	return nil
}

// ActiveTestRequest is the liveness probe. Empty body; the reply is an
// empty success packet.
type ActiveTestRequest struct{}

func (r *ActiveTestRequest) Cmd() byte { return CmdActiveTest }

func (r *ActiveTestRequest) EncodeBody() ([]byte, error) { return nil, nil }
