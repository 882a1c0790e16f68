package protocol

import "encoding/binary"

// Header is the fixed 10-byte packet header framing every request and
// response on the wire:
//
//	bytes 0-7  body length, 8-byte big-endian integer
//	byte  8    command
//	byte  9    status (0 = success, nonzero = server error code)
type Header struct {
	BodyLength int64
	Command    byte
	Status     byte
}

// OK reports whether the header carries a success status.
func (h Header) OK() bool {
	return h.Status == StatusOK
}

// Encode serializes the header into its wire form.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(h.BodyLength))
	buf[8] = h.Command
	buf[9] = h.Status
	return buf
}

// ParseHeader decodes a header from buf.
//
// A buffer shorter than HeaderSize fails with a distinct "short buffer"
// framing error. A declared body length that is negative or exceeds
// MaxBodySize fails fast instead of letting a later read attempt the
// allocation.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, NewFramingError("short buffer: need %d header bytes, have %d", HeaderSize, len(buf))
	}

	h := Header{
		BodyLength: int64(binary.BigEndian.Uint64(buf[0:8])),
		Command:    buf[8],
		Status:     buf[9],
	}

	if h.BodyLength < 0 || h.BodyLength > MaxBodySize {
		return Header{}, NewFramingError("declared body length %d out of range (max %d)", h.BodyLength, int64(MaxBodySize))
	}

	return h, nil
}
