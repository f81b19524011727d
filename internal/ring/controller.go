package ring

import (
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/jittakal/ringstore/internal/errors"
	"github.com/jittakal/ringstore/pkg/ring"
)

// Ensure implementation satisfies interface at compile time.
var _ ring.Ring = (*Controller)(nil)

// DefaultMaxBytes caps the node storage of a single ring.
const DefaultMaxBytes int64 = 1 << 30

// Config describes the geometry and behaviour of a ring.
type Config struct {
	Name           string
	NodeCount      int
	ObjectsPerNode int
	ObjectSize     int
	LapPolicy      ring.LapPolicy
	// MaxBytes bounds NodeCount*ObjectsPerNode*ObjectSize. Zero means DefaultMaxBytes.
	MaxBytes int64
}

// Validate checks the geometry and lap policy.
func (c Config) Validate() error {
	if c.NodeCount < 2 {
		return fmt.Errorf("%w: node count %d, need at least 2", errors.ErrInvalidGeometry, c.NodeCount)
	}
	if c.ObjectsPerNode < 1 {
		return fmt.Errorf("%w: objects per node %d, need at least 1", errors.ErrInvalidGeometry, c.ObjectsPerNode)
	}
	if c.ObjectSize < 1 {
		return fmt.Errorf("%w: object size %d, need at least 1", errors.ErrInvalidGeometry, c.ObjectSize)
	}
	switch c.LapPolicy {
	case "", ring.LapStop, ring.LapFreeze:
	default:
		return fmt.Errorf("%w: %q", errors.ErrInvalidPolicy, c.LapPolicy)
	}
	if c.MaxBytes < 0 {
		return fmt.Errorf("%w: negative max bytes", errors.ErrInvalidGeometry)
	}
	return nil
}

// storageBytes returns the node capacity and the total storage in bytes.
func (c Config) storageBytes() (int, int, error) {
	limit := c.MaxBytes
	if limit == 0 {
		limit = DefaultMaxBytes
	}

	perNode, objSize, nodes := int64(c.ObjectsPerNode), int64(c.ObjectSize), int64(c.NodeCount)
	if perNode > math.MaxInt64/objSize {
		return 0, 0, fmt.Errorf("%w: node size overflows", errors.ErrAllocation)
	}
	nodeCap := perNode * objSize
	if nodeCap > math.MaxInt64/nodes {
		return 0, 0, fmt.Errorf("%w: ring size overflows", errors.ErrAllocation)
	}
	total := nodeCap * nodes
	if total > limit || total > math.MaxInt {
		return 0, 0, fmt.Errorf("%w: %d bytes exceeds limit of %d", errors.ErrAllocation, total, limit)
	}
	return int(nodeCap), int(total), nil
}

// node is one fixed-capacity chunk of the ring. While it is being written,
// occupied counts the bytes written. While it is being read, occupied counts
// the bytes not read yet, so the read offset is len(buf)-occupied.
type node struct {
	buf      []byte
	occupied int
}

func (n *node) remaining() int { return len(n.buf) - n.occupied }

func (n *node) full() bool { return n.occupied == len(n.buf) }

// write appends at most remaining() bytes of src.
func (n *node) write(src []byte) int {
	k := copy(n.buf[n.occupied:], src)
	n.occupied += k
	return k
}

// read consumes at most occupied bytes into dst.
func (n *node) read(dst []byte) int {
	k := copy(dst, n.buf[len(n.buf)-n.occupied:])
	n.occupied -= k
	return k
}

// takeAll copies the bytes written so far from the start of the node and
// empties it.
func (n *node) takeAll(dst []byte) int {
	k := copy(dst, n.buf[:n.occupied])
	clear(n.buf[:k])
	n.occupied = 0
	return k
}

// counters are updated by the writer and the reader from different
// goroutines, so each side gets its own cache line.
type counters struct {
	pushed      atomic.Uint64
	shortWrites atomic.Uint64
	laps        atomic.Uint64
	_           cpu.CacheLinePad
	pulled      atomic.Uint64
	final       atomic.Uint64
	_           cpu.CacheLinePad
}

// Controller is a node-chunked ring list for fixed-size objects.
// One goroutine may push while another pulls. Every node-level copy runs
// under mu together with its cursor and pending update.
type Controller struct {
	name      string
	nodes     []node
	nodeCount int
	perNode   int
	objSize   int
	nodeCap   int
	policy    ring.LapPolicy
	counters  counters

	mu      sync.Mutex
	w, r    int
	pending int
	state   ring.State
	frozen  bool
	closed  bool
}

// New allocates a ring with all nodes empty and both cursors on the first node.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	nodeCap, total, err := cfg.storageBytes()
	if err != nil {
		return nil, err
	}

	slab := make([]byte, total)
	nodes := make([]node, cfg.NodeCount)
	for i := range nodes {
		off := i * nodeCap
		nodes[i].buf = slab[off : off+nodeCap : off+nodeCap]
	}

	policy := cfg.LapPolicy
	if policy == "" {
		policy = ring.LapStop
	}

	return &Controller{
		name:      cfg.Name,
		nodes:     nodes,
		nodeCount: cfg.NodeCount,
		perNode:   cfg.ObjectsPerNode,
		objSize:   cfg.ObjectSize,
		nodeCap:   nodeCap,
		policy:    policy,
		state:     ring.StateActive,
	}, nil
}

// Name returns the ring name.
func (c *Controller) Name() string { return c.name }

// ObjectSize returns the size of one object in bytes.
func (c *Controller) ObjectSize() int { return c.objSize }

// ObjectsPerNode returns how many objects fit in one node.
func (c *Controller) ObjectsPerNode() int { return c.perNode }

// LapPolicy returns the configured lap policy.
func (c *Controller) LapPolicy() ring.LapPolicy { return c.policy }

// State returns the lifecycle state.
func (c *Controller) State() ring.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) next(i int) int {
	return (i + 1) % c.nodeCount
}

// PushableObjects reports how many objects can be written now.
func (c *Controller) PushableObjects() ring.Capacity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pushableLocked()
}

func (c *Controller) pushableLocked() ring.Capacity {
	if c.closed || c.pending == c.nodeCount {
		return ring.Capacity{}
	}

	var first int
	burst := c.nodeCount - c.pending
	if w := &c.nodes[c.w]; w.remaining() > 0 {
		first = w.remaining() / c.objSize
		burst--
	}
	return ring.Capacity{Total: first + burst*c.perNode, First: first, Burst: burst}
}

// PullableObjects reports how many objects can be read now. The node being
// written is never included.
func (c *Controller) PullableObjects() ring.Capacity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pullableLocked()
}

func (c *Controller) pullableLocked() ring.Capacity {
	if c.closed || c.pending == 0 {
		return ring.Capacity{}
	}

	first := c.nodes[c.r].occupied / c.objSize
	burst := c.pending
	switch {
	case first == c.perNode:
		first = 0
	case first > 0:
		burst--
	}
	return ring.Capacity{Total: first + burst*c.perNode, First: first, Burst: burst}
}

// objects converts a byte length into an object count.
func (c *Controller) objects(length int) (int, error) {
	if length%c.objSize != 0 {
		return 0, fmt.Errorf("%w: %d bytes with object size %d", errors.ErrUnalignedLength, length, c.objSize)
	}
	return length / c.objSize, nil
}

// writableLocked reports why a push cannot start, if it cannot.
func (c *Controller) writableLocked() error {
	switch {
	case c.closed:
		return errors.ErrRingClosed
	case c.state == ring.StateDraining:
		return errors.ErrWritesClosed
	case c.frozen:
		return errors.ErrRingFrozen
	}
	return nil
}

// Push copies packed objects from src and returns the number written.
// A short count means the writer caught up with the reader.
func (c *Controller) Push(src []byte) (int, error) {
	n, err := c.objects(len(src))
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	if err := c.writableLocked(); err != nil {
		c.mu.Unlock()
		return 0, err
	}
	capacity := c.pushableLocked()
	c.mu.Unlock()

	if n == 0 {
		return 0, nil
	}

	done := c.transfer(n, capacity, func(k int, off int) int {
		return c.writeObjects(src[off*c.objSize:], k)
	})
	c.afterPush(n, done)
	return done, nil
}

// PushOne copies a single object. It returns 0 when the ring is full.
func (c *Controller) PushOne(obj []byte) (int, error) {
	if len(obj) != c.objSize {
		return 0, fmt.Errorf("%w: %d bytes with object size %d", errors.ErrUnalignedLength, len(obj), c.objSize)
	}

	c.mu.Lock()
	if err := c.writableLocked(); err != nil {
		c.mu.Unlock()
		return 0, err
	}
	capacity := c.pushableLocked()
	c.mu.Unlock()

	done := 0
	if capacity.Total > 0 {
		done = c.writeObjects(obj, 1)
	}
	c.afterPush(1, done)
	return done, nil
}

// transfer splits n objects over the boundary node, whole nodes and a final
// partial node, never moving more than capacity allows. copyFn moves k
// objects starting at object offset off and returns how many it moved.
func (c *Controller) transfer(n int, capacity ring.Capacity, copyFn func(k, off int) int) int {
	target := min(n, capacity.Total)
	if target < capacity.First {
		return copyFn(target, 0)
	}

	done := 0
	if capacity.First > 0 {
		if done = copyFn(capacity.First, 0); done < capacity.First {
			return done
		}
	}
	for range (target - done) / c.perNode {
		k := copyFn(c.perNode, done)
		done += k
		if k < c.perNode {
			return done
		}
	}
	if rest := target - done; rest > 0 {
		done += copyFn(rest, done)
	}
	return done
}

// writeObjects copies k objects into the write node and rolls the cursor
// when the node fills up. k never exceeds the node's free space.
func (c *Controller) writeObjects(src []byte, k int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A push that passed its gate before BeginDrain stops at the next node.
	if c.closed || c.state == ring.StateDraining || c.pending == c.nodeCount {
		return 0
	}
	w := &c.nodes[c.w]
	written := w.write(src[:k*c.objSize]) / c.objSize
	if w.full() {
		c.w = c.next(c.w)
		c.pending++
	}
	return written
}

func (c *Controller) afterPush(requested, done int) {
	c.counters.pushed.Add(uint64(done))
	if done == requested {
		return
	}

	c.counters.shortWrites.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == c.nodeCount {
		c.counters.laps.Add(1)
		if c.policy == ring.LapFreeze {
			c.frozen = true
		}
	}
}

// Pull copies packed objects into dst and returns the number read. It keeps
// working after BeginDrain so pending nodes can be emptied.
func (c *Controller) Pull(dst []byte) (int, error) {
	n, err := c.objects(len(dst))
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, errors.ErrRingClosed
	}
	capacity := c.pullableLocked()
	c.mu.Unlock()

	if n == 0 {
		return 0, nil
	}

	done := c.transfer(n, capacity, func(k int, off int) int {
		return c.readObjects(dst[off*c.objSize:], k)
	})
	c.afterPull(done)
	return done, nil
}

// PullOne copies a single object. It returns 0 when nothing is pending.
func (c *Controller) PullOne(dst []byte) (int, error) {
	if len(dst) != c.objSize {
		return 0, fmt.Errorf("%w: %d bytes with object size %d", errors.ErrUnalignedLength, len(dst), c.objSize)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, errors.ErrRingClosed
	}
	capacity := c.pullableLocked()
	c.mu.Unlock()

	done := 0
	if capacity.Total > 0 {
		done = c.readObjects(dst, 1)
	}
	c.afterPull(done)
	return done, nil
}

// readObjects copies k objects out of the read node and rolls the cursor
// when the node runs empty. k never exceeds the node's unread objects.
func (c *Controller) readObjects(dst []byte, k int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.pending == 0 {
		return 0
	}
	r := &c.nodes[c.r]
	read := r.read(dst[:k*c.objSize]) / c.objSize
	if r.occupied == 0 {
		c.r = c.next(c.r)
		c.pending--
	}
	return read
}

func (c *Controller) afterPull(done int) {
	if done == 0 {
		return
	}
	c.counters.pulled.Add(uint64(done))

	c.mu.Lock()
	c.frozen = false
	c.mu.Unlock()
}

// inProgressLocked returns the bytes sitting in the node being written. When
// the ring is full the write cursor sits on the reader's node and nothing is
// in progress.
func (c *Controller) inProgressLocked() int {
	if c.closed || c.pending == c.nodeCount {
		return 0
	}
	return c.nodes[c.w].occupied
}

// BeginDrain closes the ring for writes and returns what is left to read.
// Calling it again returns a fresh snapshot.
func (c *Controller) BeginDrain() ring.DrainSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = ring.StateDraining
	return ring.DrainSnapshot{
		InProgress: c.inProgressLocked() / c.objSize,
		Pullable:   c.pullableLocked(),
	}
}

// PullFinal copies the partially written node into dst and empties it.
// It must follow BeginDrain and the pulls that empty every pending node.
// dst must hold at least DrainSnapshot.InProgress objects; otherwise
// io.ErrShortBuffer is returned and nothing changes.
func (c *Controller) PullFinal(dst []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, errors.ErrRingClosed
	}
	if c.state != ring.StateDraining {
		return 0, errors.ErrNotClosed
	}

	size := c.inProgressLocked()
	if size == 0 {
		return 0, nil
	}
	if len(dst) < size {
		return 0, fmt.Errorf("final read of %d bytes into %d: %w", size, len(dst), io.ErrShortBuffer)
	}

	done := c.nodes[c.w].takeAll(dst) / c.objSize
	c.counters.final.Add(uint64(done))
	return done, nil
}

// Stats returns current ring counters.
func (c *Controller) Stats() ring.Stats {
	c.mu.Lock()
	state, frozen, pending := c.state, c.frozen, c.pending
	c.mu.Unlock()

	return ring.Stats{
		Name:           c.name,
		NodeCount:      c.nodeCount,
		ObjectsPerNode: c.perNode,
		ObjectSize:     c.objSize,
		State:          state,
		Frozen:         frozen,
		PendingNodes:   pending,
		PushedObjects:  c.counters.pushed.Load(),
		PulledObjects:  c.counters.pulled.Load(),
		FinalObjects:   c.counters.final.Load(),
		ShortWrites:    c.counters.shortWrites.Load(),
		Laps:           c.counters.laps.Load(),
	}
}

// Close releases node storage. Later transfers return ErrRingClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.nodes = nil
	return nil
}
