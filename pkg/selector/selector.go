// Package selector provides the pluggable policies choosing one storage
// server among the candidates a tracker returns.
package selector

import (
	"math/rand"
	"sync/atomic"

	"github.com/cocosip/fastdfs-go/pkg/protocol"
)

// Selector chooses exactly one descriptor from a non-empty candidate
// list. An empty list fails with an invalid-argument error, never a
// zero-value descriptor.
type Selector interface {
	Select(candidates []protocol.StorageDescriptor) (protocol.StorageDescriptor, error)
}

// FirstAvailable picks index 0, trusting the ordering the tracker
// returned.
type FirstAvailable struct{}

func (FirstAvailable) Select(candidates []protocol.StorageDescriptor) (protocol.StorageDescriptor, error) {
	if len(candidates) == 0 {
		return protocol.StorageDescriptor{}, protocol.NewInvalidArgument("no storage candidates")
	}
	return candidates[0], nil
}

// Random picks uniformly. Not cryptographic; load spreading only.
type Random struct{}

func (Random) Select(candidates []protocol.StorageDescriptor) (protocol.StorageDescriptor, error) {
	if len(candidates) == 0 {
		return protocol.StorageDescriptor{}, protocol.NewInvalidArgument("no storage candidates")
	}
	return candidates[rand.Intn(len(candidates))], nil
}

// RoundRobin cycles through candidates with a shared monotonically
// increasing counter, fair under sustained traffic rather than sticky per
// call. Safe for concurrent use.
type RoundRobin struct {
	counter atomic.Uint64
}

func (r *RoundRobin) Select(candidates []protocol.StorageDescriptor) (protocol.StorageDescriptor, error) {
	if len(candidates) == 0 {
		return protocol.StorageDescriptor{}, protocol.NewInvalidArgument("no storage candidates")
	}
	n := r.counter.Add(1) - 1
	return candidates[n%uint64(len(candidates))], nil
}

// TrackerSelection skips client-side choice entirely: the facade issues a
// single-result tracker query and trusts its answer, avoiding the extra
// round trip a fetch-all needs. This is the default policy.
type TrackerSelection struct{}

func (TrackerSelection) Select(candidates []protocol.StorageDescriptor) (protocol.StorageDescriptor, error) {
	if len(candidates) == 0 {
		return protocol.StorageDescriptor{}, protocol.NewInvalidArgument("no storage candidates")
	}
	return candidates[0], nil
}

// ForName maps a config name to its policy. Recognized names: "tracker"
// (default), "first", "random", "roundrobin".
func ForName(name string) (Selector, error) {
	switch name {
	case "", "tracker":
		return TrackerSelection{}, nil
	case "first":
		return FirstAvailable{}, nil
	case "random":
		return Random{}, nil
	case "roundrobin":
		return &RoundRobin{}, nil
	default:
		return nil, protocol.NewInvalidArgument("unknown selector %q", name)
	}
}
