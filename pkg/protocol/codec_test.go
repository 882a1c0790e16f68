package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadRequestBodyLayout(t *testing.T) {
	req := &DownloadRequest{Offset: 100, Length: 50, Group: "group1", Path: "M00/00/00/abc.jpg"}

	body, err := req.EncodeBody()
	require.NoError(t, err)

	assert.Equal(t, uint64(100), binary.BigEndian.Uint64(body[0:8]))
	assert.Equal(t, uint64(50), binary.BigEndian.Uint64(body[8:16]))
	assert.Equal(t, "group1", trimFixedString(body[16:16+GroupNameLen]))
	assert.Equal(t, "M00/00/00/abc.jpg", string(body[16+GroupNameLen:]))
}

func TestDownloadRequestNegativeOffset(t *testing.T) {
	req := &DownloadRequest{Offset: -1, Group: "g", Path: "p"}
	_, err := req.EncodeBody()
	assert.IsType(t, &InvalidArgumentError{}, err)
}

func TestUploadRequestBodyLayout(t *testing.T) {
	data := []byte("hello world")
	req := &UploadRequest{StorePathIndex: 2, ExtName: "jpg", Data: data}

	body, err := req.EncodeBody()
	require.NoError(t, err)

	assert.Equal(t, byte(2), body[0])
	assert.Equal(t, uint64(len(data)), binary.BigEndian.Uint64(body[1:9]))
	assert.Equal(t, "jpg", trimFixedString(body[9:9+ExtNameLen]))
	assert.Equal(t, data, body[9+ExtNameLen:])
	assert.Equal(t, byte(StorageCmdUploadFile), req.Cmd())

	req.Appender = true
	assert.Equal(t, byte(StorageCmdUploadAppenderFile), req.Cmd())
}

func TestUploadResponseDecode(t *testing.T) {
	var body bytes.Buffer
	require.NoError(t, writeFixedString(&body, "group1", GroupNameLen))
	body.WriteString("M00/00/00/abc.jpg")

	var resp UploadResponse
	require.NoError(t, resp.DecodeBody(body.Bytes()))
	assert.Equal(t, "group1", resp.Group)
	assert.Equal(t, "M00/00/00/abc.jpg", resp.Path)
}

func TestQueryStoreResponseDecode(t *testing.T) {
	var body bytes.Buffer
	require.NoError(t, writeFixedString(&body, "group1", GroupNameLen))
	require.NoError(t, writeFixedString(&body, "10.0.0.7", IPAddrLen))
	var port [8]byte
	binary.BigEndian.PutUint64(port[:], 23000)
	body.Write(port[:])
	body.WriteByte(3)

	var resp QueryStoreResponse
	require.NoError(t, resp.DecodeBody(body.Bytes()))
	assert.Equal(t, StorageDescriptor{
		Group:          "group1",
		IPAddr:         "10.0.0.7",
		Port:           23000,
		StorePathIndex: 3,
	}, resp.Descriptor)
	assert.Equal(t, "10.0.0.7:23000", resp.Descriptor.Addr())
}

func TestQueryStoreResponseBadLength(t *testing.T) {
	var resp QueryStoreResponse
	err := resp.DecodeBody(make([]byte, 12))
	assert.IsType(t, &ProtocolError{}, err)
}

func TestQueryFetchAllResponseDecode(t *testing.T) {
	var body bytes.Buffer
	require.NoError(t, writeFixedString(&body, "group2", GroupNameLen))
	var port [8]byte
	for i, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		require.NoError(t, writeFixedString(&body, ip, IPAddrLen))
		binary.BigEndian.PutUint64(port[:], uint64(23000+i))
		body.Write(port[:])
	}

	var resp QueryFetchAllResponse
	require.NoError(t, resp.DecodeBody(body.Bytes()))
	require.Len(t, resp.Descriptors, 3)
	assert.Equal(t, "group2", resp.Descriptors[0].Group)
	assert.Equal(t, "10.0.0.2", resp.Descriptors[1].IPAddr)
	assert.Equal(t, 23002, resp.Descriptors[2].Port)
}

func TestQueryStoreAllResponseDecode(t *testing.T) {
	var body bytes.Buffer
	require.NoError(t, writeFixedString(&body, "group1", GroupNameLen))
	var port [8]byte
	for i, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		require.NoError(t, writeFixedString(&body, ip, IPAddrLen))
		binary.BigEndian.PutUint64(port[:], uint64(23000+i))
		body.Write(port[:])
	}
	body.WriteByte(2)

	var resp QueryStoreAllResponse
	require.NoError(t, resp.DecodeBody(body.Bytes()))
	require.Len(t, resp.Descriptors, 2)
	assert.Equal(t, "group1", resp.Descriptors[0].Group)
	assert.Equal(t, "10.0.0.2", resp.Descriptors[1].IPAddr)
	assert.Equal(t, 23001, resp.Descriptors[1].Port)
	assert.Equal(t, byte(2), resp.Descriptors[0].StorePathIndex,
		"the trailing store path index is shared by every candidate")
	assert.Equal(t, byte(2), resp.Descriptors[1].StorePathIndex)
}

func TestQueryStoreAllRequestCommands(t *testing.T) {
	without := &QueryStoreAllRequest{}
	assert.Equal(t, byte(TrackerCmdQueryStoreAllWithoutGrp), without.Cmd())

	with := &QueryStoreAllRequest{Group: "group1"}
	assert.Equal(t, byte(TrackerCmdQueryStoreAllWithGroup), with.Cmd())
	body, err := with.EncodeBody()
	require.NoError(t, err)
	require.Len(t, body, GroupNameLen)
}

func TestQueryStoreRequestGroupVariants(t *testing.T) {
	without := &QueryStoreRequest{}
	assert.Equal(t, byte(TrackerCmdQueryStoreWithoutGroup), without.Cmd())
	body, err := without.EncodeBody()
	require.NoError(t, err)
	assert.Empty(t, body)

	with := &QueryStoreRequest{Group: "group1"}
	assert.Equal(t, byte(TrackerCmdQueryStoreWithGroup), with.Cmd())
	body, err = with.EncodeBody()
	require.NoError(t, err)
	require.Len(t, body, GroupNameLen)
	assert.Equal(t, "group1", trimFixedString(body))
}

func TestFixedStringTooLong(t *testing.T) {
	var buf bytes.Buffer
	err := writeFixedString(&buf, "a-group-name-way-beyond-sixteen", GroupNameLen)
	assert.IsType(t, &InvalidArgumentError{}, err)
	assert.Zero(t, buf.Len(), "nothing is written on rejection")
}

func TestMetadataRoundTrip(t *testing.T) {
	meta := map[string]string{
		"width":  "1024",
		"height": "768",
		"author": "someone",
	}

	encoded := EncodeMetadata(meta)
	assert.Equal(t, "author\x02someone\x01height\x02768\x01width\x021024", string(encoded))

	decoded := DecodeMetadata(encoded)
	assert.Equal(t, meta, decoded)
}

func TestMetadataEmpty(t *testing.T) {
	assert.Nil(t, EncodeMetadata(nil))
	assert.Empty(t, DecodeMetadata(nil))
}

func TestSetMetadataRequestLayout(t *testing.T) {
	req := &SetMetadataRequest{
		Group:    "group1",
		Path:     "M00/00/00/abc.jpg",
		Metadata: map[string]string{"k": "v"},
		OpFlag:   MetadataOverwrite,
	}

	body, err := req.EncodeBody()
	require.NoError(t, err)

	meta := EncodeMetadata(req.Metadata)
	assert.Equal(t, uint64(len(req.Path)), binary.BigEndian.Uint64(body[0:8]))
	assert.Equal(t, uint64(len(meta)), binary.BigEndian.Uint64(body[8:16]))
	assert.Equal(t, byte('O'), body[16])
	assert.Equal(t, "group1", trimFixedString(body[17:17+GroupNameLen]))
	assert.Equal(t, req.Path, string(body[17+GroupNameLen:17+GroupNameLen+len(req.Path)]))
	assert.Equal(t, meta, body[17+GroupNameLen+len(req.Path):])
}

func TestSetMetadataRequestBadFlag(t *testing.T) {
	req := &SetMetadataRequest{Group: "g", Path: "p", OpFlag: 'X'}
	_, err := req.EncodeBody()
	assert.IsType(t, &InvalidArgumentError{}, err)
}

func TestQueryFileInfoResponseDecode(t *testing.T) {
	var body bytes.Buffer
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], 4096)
	body.Write(n[:])
	binary.BigEndian.PutUint64(n[:], 1700000000)
	body.Write(n[:])
	binary.BigEndian.PutUint64(n[:], 0xdeadbeef)
	body.Write(n[:])
	require.NoError(t, writeFixedString(&body, "10.0.0.7", 16))

	var resp QueryFileInfoResponse
	require.NoError(t, resp.DecodeBody(body.Bytes()))
	assert.Equal(t, int64(4096), resp.FileSize)
	assert.Equal(t, int64(1700000000), resp.CreateTime.Unix())
	assert.Equal(t, uint32(0xdeadbeef), resp.CRC32)
	assert.Equal(t, "10.0.0.7", resp.SourceIP)
}

func TestEncodePacketFramesHeader(t *testing.T) {
	req := &DeleteRequest{Group: "group1", Path: "M00/00/00/abc.jpg"}

	packet, err := EncodePacket(req)
	require.NoError(t, err)

	header, err := ParseHeader(packet[:HeaderSize])
	require.NoError(t, err)
	assert.Equal(t, byte(StorageCmdDeleteFile), header.Command)
	assert.Equal(t, int64(len(packet)-HeaderSize), header.BodyLength)
	assert.True(t, header.OK())
}

func TestAppendRequestLayout(t *testing.T) {
	req := &AppendRequest{Path: "M00/00/00/abc.jpg", Data: []byte("more")}

	body, err := req.EncodeBody()
	require.NoError(t, err)

	assert.Equal(t, uint64(len(req.Path)), binary.BigEndian.Uint64(body[0:8]))
	assert.Equal(t, uint64(4), binary.BigEndian.Uint64(body[8:16]))
	assert.Equal(t, req.Path+"more", string(body[16:]))
}

func TestUploadSlaveRequestLayout(t *testing.T) {
	req := &UploadSlaveRequest{
		MasterPath: "M00/00/00/abc.jpg",
		Prefix:     "_thumb",
		ExtName:    "jpg",
		Data:       []byte("small"),
	}

	body, err := req.EncodeBody()
	require.NoError(t, err)

	assert.Equal(t, uint64(len(req.MasterPath)), binary.BigEndian.Uint64(body[0:8]))
	assert.Equal(t, uint64(5), binary.BigEndian.Uint64(body[8:16]))
	assert.Equal(t, "_thumb", trimFixedString(body[16:16+PrefixNameLen]))
	assert.Equal(t, "jpg", trimFixedString(body[16+PrefixNameLen:16+PrefixNameLen+ExtNameLen]))
	rest := body[16+PrefixNameLen+ExtNameLen:]
	assert.Equal(t, req.MasterPath+"small", string(rest))
	assert.Equal(t, byte(StorageCmdUploadSlaveFile), req.Cmd())

	_, err = (&UploadSlaveRequest{MasterPath: "p", ExtName: "jpg"}).EncodeBody()
	assert.IsType(t, &InvalidArgumentError{}, err, "an empty prefix cannot name a slave")
}

func TestModifyRequestLayout(t *testing.T) {
	req := &ModifyRequest{Path: "M00/00/00/abc.jpg", Offset: 128, Data: []byte("patch")}

	body, err := req.EncodeBody()
	require.NoError(t, err)

	assert.Equal(t, uint64(len(req.Path)), binary.BigEndian.Uint64(body[0:8]))
	assert.Equal(t, uint64(128), binary.BigEndian.Uint64(body[8:16]))
	assert.Equal(t, uint64(5), binary.BigEndian.Uint64(body[16:24]))
	assert.Equal(t, req.Path+"patch", string(body[24:]))

	_, err = (&ModifyRequest{Path: "p", Offset: -1}).EncodeBody()
	assert.IsType(t, &InvalidArgumentError{}, err)
}

func TestTruncateRequestLayout(t *testing.T) {
	req := &TruncateRequest{Path: "M00/00/00/abc.jpg", Size: 1024}

	body, err := req.EncodeBody()
	require.NoError(t, err)

	assert.Equal(t, uint64(len(req.Path)), binary.BigEndian.Uint64(body[0:8]))
	assert.Equal(t, uint64(1024), binary.BigEndian.Uint64(body[8:16]))
	assert.Equal(t, req.Path, string(body[16:]))

	_, err = (&TruncateRequest{Path: "p", Size: -1}).EncodeBody()
	assert.IsType(t, &InvalidArgumentError{}, err)
}
