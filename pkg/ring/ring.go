// Package ring defines the contracts of a node-chunked ring list used as a
// single-producer, single-consumer handoff for fixed-size objects.
//
// A ring is a fixed number of nodes, each holding a whole number of objects.
// The writer fills the node under its cursor and rolls to the next node when
// it is full; the reader drains only full nodes. The node currently being
// written is invisible to ordinary pulls and is recovered at shutdown with
// BeginDrain followed by PullFinal.
package ring

import "github.com/jittakal/ringstore/pkg/record"

// State is the lifecycle state of a ring.
type State int

const (
	// StateActive permits both push and pull.
	StateActive State = iota
	// StateDraining forbids push permanently and permits the final partial read.
	StateDraining
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// LapPolicy decides what happens when the writer laps the reader.
type LapPolicy string

const (
	// LapStop reports a short count and leaves the ring active.
	LapStop LapPolicy = "stop"
	// LapFreeze reports a short count and rejects further pushes until the
	// reader pulls at least one object.
	LapFreeze LapPolicy = "freeze"
)

// Capacity is a transfer budget in objects. First is the part available in
// the boundary node (the current read or write node), Burst the number of
// whole extra nodes.
type Capacity struct {
	Total int
	First int
	Burst int
}

// DrainSnapshot is returned by BeginDrain.
type DrainSnapshot struct {
	// InProgress is the object count sitting in the node being written.
	InProgress int
	// Pullable is what ordinary pulls can still read.
	Pullable Capacity
}

// Stats is a point-in-time view of ring counters.
type Stats struct {
	Name           string
	NodeCount      int
	ObjectsPerNode int
	ObjectSize     int
	State          State
	Frozen         bool
	PendingNodes   int
	PushedObjects  uint64
	PulledObjects  uint64
	FinalObjects   uint64
	ShortWrites    uint64
	Laps           uint64
}

// Ring is a fixed-capacity ring list. Exactly one goroutine may push and
// exactly one may pull at the same time. None of the methods block.
type Ring interface {
	// PushableObjects reports how many objects can be written now.
	PushableObjects() Capacity

	// PullableObjects reports how many objects can be read now.
	PullableObjects() Capacity

	// Push copies packed objects from src and returns the number written.
	// A count below len(src)/ObjectSize is a short write: the ring is
	// saturated and the caller decides whether to retry or drop.
	Push(src []byte) (int, error)

	// PushOne copies a single object. It returns 0 when the ring is full.
	PushOne(obj []byte) (int, error)

	// Pull copies packed objects into dst and returns the number read.
	Pull(dst []byte) (int, error)

	// PullOne copies a single object. It returns 0 when nothing is pending.
	PullOne(dst []byte) (int, error)

	// BeginDrain closes the ring for writes.
	BeginDrain() DrainSnapshot

	// PullFinal copies the partially written node. Call it once, after
	// pulls have drained every pending node.
	PullFinal(dst []byte) (int, error)

	// ObjectSize returns the size of one object in bytes.
	ObjectSize() int

	// Stats returns current ring counters.
	Stats() Stats

	// Close releases node storage.
	Close() error
}

// Manager creates and holds one ring per stream.
type Manager interface {
	// GetOrCreate returns the ring for the given stream,
	// creating one if it doesn't exist.
	GetOrCreate(stream record.StreamID) (Ring, error)
}
