// Package record defines the objects carried through rings and the metadata
// attached to them on either side of a ring.
//
// # Layouts
//
// A ring only knows an object size. The Layout agreed on by producer and
// consumer gives those bytes meaning:
//
//	layout, err := record.LookupLayout("file_access")
//	obj := make([]byte, layout.Size())
//	record.FileAccess{Ino: 42, Pos: 4096, Sec: 1700000000}.Put(obj)
//	values, err := layout.Decode(obj) // [42 4096 1700000000 0]
//
// Both built-in layouts are 32 bytes, little-endian and padding-free.
//
// # Messages and Records
//
// A Message is what a source delivers: a payload of packed objects plus the
// stream and offset it came from. A Record is a single object after it has
// been pulled from a ring:
//
//	records, err := record.Split(stream, layout, pulled, seq, time.Now())
//
// # Stream Identification
//
// StreamID identifies one producer stream. Each stream owns one ring:
//
//	stream := record.StreamID{Topic: "file-access", Partition: 5}
//	fmt.Println(stream) // file-access-5
package record
