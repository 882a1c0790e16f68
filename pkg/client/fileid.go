package client

import (
	"strings"

	"github.com/cocosip/fastdfs-go/pkg/protocol"
)

// FileID identifies a stored file: the group it belongs to plus its
// server-assigned path within the group.
type FileID struct {
	Group string
	Path  string
}

// String returns the combined "group/path" identifier.
func (id FileID) String() string {
	return id.Group + "/" + id.Path
}

// ParseFileID splits a file identifier into group and path.
//
// The identifier is either a combined "group/path" string or a bare path
// whose group comes from defaultGroup. Telling the two apart is a
// best-effort heuristic: a leading segment shaped like a store directory
// (`M` followed by digits, or `data...`) is treated as part of a path,
// not as a group name. A group that happens to be named that way is
// misclassified; callers can always pass the group explicitly via
// defaultGroup and a bare path when in doubt.
func ParseFileID(id, defaultGroup string) (FileID, error) {
	if id == "" {
		return FileID{}, protocol.NewInvalidArgument("file identifier is empty")
	}

	head, rest, found := strings.Cut(id, "/")
	if found && rest != "" && looksLikeGroup(head) {
		return FileID{Group: head, Path: rest}, nil
	}

	if defaultGroup == "" {
		return FileID{}, protocol.NewInvalidArgument("identifier %q carries no group and no default group is set", id)
	}
	return FileID{Group: defaultGroup, Path: id}, nil
}

// looksLikeGroup rejects segments shaped like storage path components.
func looksLikeGroup(seg string) bool {
	if seg == "" || len(seg) > protocol.GroupNameLen {
		return false
	}

	if strings.HasPrefix(seg, "data") {
		return false
	}

	if seg[0] == 'M' && len(seg) > 1 {
		digitsOnly := true
		for _, r := range seg[1:] {
			if r < '0' || r > '9' {
				digitsOnly = false
				break
			}
		}
		if digitsOnly {
			return false
		}
	}

	return true
}
