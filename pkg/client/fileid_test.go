package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocosip/fastdfs-go/pkg/protocol"
)

func TestParseFileID(t *testing.T) {
	tests := []struct {
		name         string
		id           string
		defaultGroup string
		want         FileID
	}{
		{
			name: "combined identifier",
			id:   "group1/M00/00/00/abc.jpg",
			want: FileID{Group: "group1", Path: "M00/00/00/abc.jpg"},
		},
		{
			name:         "bare path with default group",
			id:           "M00/00/00/abc.jpg",
			defaultGroup: "group2",
			want:         FileID{Group: "group2", Path: "M00/00/00/abc.jpg"},
		},
		{
			name:         "data-prefixed leading segment is a path",
			id:           "data0/00/abc.jpg",
			defaultGroup: "group3",
			want:         FileID{Group: "group3", Path: "data0/00/abc.jpg"},
		},
		{
			name: "M with non-digits is a group",
			id:   "Main/M00/00/abc.jpg",
			want: FileID{Group: "Main", Path: "M00/00/abc.jpg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFileID(tt.id, tt.defaultGroup)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFileIDRoundTrip(t *testing.T) {
	id := FileID{Group: "group1", Path: "M00/00/00/abc.jpg"}
	assert.Equal(t, "group1/M00/00/00/abc.jpg", id.String())

	parsed, err := ParseFileID(id.String(), "")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseFileIDFailures(t *testing.T) {
	tests := []struct {
		name         string
		id           string
		defaultGroup string
	}{
		{"empty identifier", "", "group1"},
		{"bare path without default group", "M00/00/00/abc.jpg", ""},
		{"store-dir head without default group", "data0/abc.jpg", ""},
		{"group longer than the wire field", "a-very-long-group-name-over-16/abc.jpg", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFileID(tt.id, tt.defaultGroup)
			assert.IsType(t, &protocol.InvalidArgumentError{}, err)
		})
	}
}
