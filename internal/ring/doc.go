// Package ring implements the node-chunked ring list.
//
// A Controller owns a fixed array of nodes. Each node holds ObjectsPerNode
// objects of ObjectSize bytes. The writer fills the node under the write
// cursor and moves on when it is full; the reader only sees full nodes.
//
//	c, err := ring.New(ring.Config{
//	    Name:           "samples-0",
//	    NodeCount:      8,
//	    ObjectsPerNode: 6,
//	    ObjectSize:     32,
//	})
//
// # Capacity
//
// PushableObjects and PullableObjects split the budget into First, the
// objects left in the boundary node, and Burst, the number of whole nodes
// beyond it:
//
//	pullable := c.PullableObjects()
//	total := pullable.First + pullable.Burst*c.ObjectsPerNode()
//
// # Backpressure
//
// Push never blocks. When the writer catches up with the reader it stops
// and returns fewer objects than requested:
//
//	n, err := c.Push(batch)
//	if err == nil && n < len(batch)/c.ObjectSize() {
//	    // retry the tail later or drop it
//	}
//
// With LapFreeze the ring additionally refuses pushes with ErrRingFrozen
// until the reader pulls something.
//
// # Draining
//
// The node being written is never pending, so the last partial node is
// recovered in two steps:
//
//	snap := c.BeginDrain()        // pushes now fail with ErrWritesClosed
//	for c.PullableObjects().Total > 0 {
//	    c.Pull(buf)
//	}
//	n, err := c.PullFinal(final)  // snap.InProgress objects
//
// # Thread Safety
//
// One writer goroutine and one reader goroutine may use a Controller at
// the same time. Manager.GetOrCreate uses double-checked locking.
package ring
