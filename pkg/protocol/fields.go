package protocol

import (
	"bytes"
	"sort"
	"strings"
)

// writeFixedString writes s into a fixed-width field, NUL padded on the
// right. A value longer than width is a caller mistake and fails before
// anything is written, rather than being silently truncated.
func writeFixedString(buf *bytes.Buffer, s string, width int) error {
	if len(s) > width {
		return NewInvalidArgument("field %q exceeds fixed width %d", s, width)
	}

	buf.WriteString(s)
	for i := len(s); i < width; i++ {
		buf.WriteByte(0)
	}
	return nil
}

// trimFixedString extracts a fixed-width field, stopping at the first NUL.
// The full width is never assumed to be used.
func trimFixedString(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		return string(buf[:i])
	}
	return string(buf)
}

// EncodeMetadata serializes metadata pairs into the wire form
// key\x02value\x01key\x02value. Keys are sorted so the encoding is
// deterministic.
func EncodeMetadata(meta map[string]string) []byte {
	if len(meta) == 0 {
		return nil
	}

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(recordSeparator)
		}
		buf.WriteString(k)
		buf.WriteByte(fieldSeparator)
		buf.WriteString(meta[k])
	}
	return buf.Bytes()
}

// DecodeMetadata parses the wire form produced by EncodeMetadata. Records
// without a field separator are skipped rather than failing the whole
// response.
func DecodeMetadata(data []byte) map[string]string {
	meta := make(map[string]string)
	if len(data) == 0 {
		return meta
	}

	for _, record := range strings.Split(string(data), string(rune(recordSeparator))) {
		key, value, found := strings.Cut(record, string(rune(fieldSeparator)))
		if !found || key == "" {
			continue
		}
		meta[key] = value
	}
	return meta
}
