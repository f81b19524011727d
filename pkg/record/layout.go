package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// ErrObjectSize is returned when a byte slice does not match a layout's object size.
var ErrObjectSize = errors.New("object size mismatch")

// Layout describes a fixed-size, padding-free object agreed on by producer and consumer.
type Layout interface {
	// Name returns the registry name of the layout.
	Name() string

	// Size returns the object size in bytes.
	Size() int

	// Columns returns the decoded field names in Decode order.
	Columns() []string

	// Decode unpacks a single object into column values.
	Decode(obj []byte) ([]any, error)
}

const (
	// SampleSize is the size of a benchmark sample object.
	SampleSize = 32
	// SamplePaddingSize pads a sample to SampleSize.
	SamplePaddingSize = SampleSize - 8

	// FileAccessSize is the size of a file access object.
	FileAccessSize = 32

	// MigrationSize is the size of a task migration object.
	MigrationSize = 32
)

// Sample is the benchmark object: a sequence number and fixed padding.
type Sample struct {
	ID      uint64
	Padding [SamplePaddingSize]byte
}

// Put packs the sample into dst, which must be at least SampleSize bytes.
func (s Sample) Put(dst []byte) {
	_ = dst[SampleSize-1]
	binary.LittleEndian.PutUint64(dst[0:8], s.ID)
	copy(dst[8:SampleSize], s.Padding[:])
}

// ParseSample unpacks a sample object.
func ParseSample(src []byte) (Sample, error) {
	if len(src) != SampleSize {
		return Sample{}, fmt.Errorf("%w: sample needs %d bytes, got %d", ErrObjectSize, SampleSize, len(src))
	}
	var s Sample
	s.ID = binary.LittleEndian.Uint64(src[0:8])
	copy(s.Padding[:], src[8:SampleSize])
	return s, nil
}

// FileAccess records one file position access observed by a tracer.
type FileAccess struct {
	Ino  uint64
	Pos  int64
	Sec  int64
	Usec int64
}

// Put packs the access into dst, which must be at least FileAccessSize bytes.
func (a FileAccess) Put(dst []byte) {
	_ = dst[FileAccessSize-1]
	binary.LittleEndian.PutUint64(dst[0:8], a.Ino)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(a.Pos))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(a.Sec))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(a.Usec))
}

// ParseFileAccess unpacks a file access object.
func ParseFileAccess(src []byte) (FileAccess, error) {
	if len(src) != FileAccessSize {
		return FileAccess{}, fmt.Errorf("%w: file_access needs %d bytes, got %d", ErrObjectSize, FileAccessSize, len(src))
	}
	return FileAccess{
		Ino:  binary.LittleEndian.Uint64(src[0:8]),
		Pos:  int64(binary.LittleEndian.Uint64(src[8:16])),
		Sec:  int64(binary.LittleEndian.Uint64(src[16:24])),
		Usec: int64(binary.LittleEndian.Uint64(src[24:32])),
	}, nil
}

// Migration records one task moving between CPUs.
type Migration struct {
	PID    int32
	SrcCPU int32
	DstCPU int32
	Sec    int64
	Usec   int64
}

// Put packs the migration into dst, which must be at least MigrationSize bytes.
// Bytes 4..8 are padding and written as zero.
func (m Migration) Put(dst []byte) {
	_ = dst[MigrationSize-1]
	binary.LittleEndian.PutUint32(dst[0:4], uint32(m.PID))
	binary.LittleEndian.PutUint32(dst[4:8], 0)
	binary.LittleEndian.PutUint32(dst[8:12], uint32(m.SrcCPU))
	binary.LittleEndian.PutUint32(dst[12:16], uint32(m.DstCPU))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(m.Sec))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(m.Usec))
}

// ParseMigration unpacks a task migration object.
func ParseMigration(src []byte) (Migration, error) {
	if len(src) != MigrationSize {
		return Migration{}, fmt.Errorf("%w: migration needs %d bytes, got %d", ErrObjectSize, MigrationSize, len(src))
	}
	return Migration{
		PID:    int32(binary.LittleEndian.Uint32(src[0:4])),
		SrcCPU: int32(binary.LittleEndian.Uint32(src[8:12])),
		DstCPU: int32(binary.LittleEndian.Uint32(src[12:16])),
		Sec:    int64(binary.LittleEndian.Uint64(src[16:24])),
		Usec:   int64(binary.LittleEndian.Uint64(src[24:32])),
	}, nil
}

type sampleLayout struct{}

func (sampleLayout) Name() string      { return "sample" }
func (sampleLayout) Size() int         { return SampleSize }
func (sampleLayout) Columns() []string { return []string{"id", "padding"} }

func (sampleLayout) Decode(obj []byte) ([]any, error) {
	s, err := ParseSample(obj)
	if err != nil {
		return nil, err
	}
	return []any{s.ID, string(bytes.TrimRight(s.Padding[:], "\x00"))}, nil
}

type fileAccessLayout struct{}

func (fileAccessLayout) Name() string      { return "file_access" }
func (fileAccessLayout) Size() int         { return FileAccessSize }
func (fileAccessLayout) Columns() []string { return []string{"ino", "pos", "sec", "usec"} }

func (fileAccessLayout) Decode(obj []byte) ([]any, error) {
	a, err := ParseFileAccess(obj)
	if err != nil {
		return nil, err
	}
	return []any{a.Ino, a.Pos, a.Sec, a.Usec}, nil
}

type migrationLayout struct{}

func (migrationLayout) Name() string      { return "migration" }
func (migrationLayout) Size() int         { return MigrationSize }
func (migrationLayout) Columns() []string { return []string{"pid", "src_cpu", "dst_cpu", "sec", "usec"} }

func (migrationLayout) Decode(obj []byte) ([]any, error) {
	m, err := ParseMigration(obj)
	if err != nil {
		return nil, err
	}
	return []any{m.PID, m.SrcCPU, m.DstCPU, m.Sec, m.Usec}, nil
}

// Built-in layouts.
var (
	SampleLayout     Layout = sampleLayout{}
	FileAccessLayout Layout = fileAccessLayout{}
	MigrationLayout  Layout = migrationLayout{}
)

var layouts = map[string]Layout{
	SampleLayout.Name():     SampleLayout,
	FileAccessLayout.Name(): FileAccessLayout,
	MigrationLayout.Name():  MigrationLayout,
}

// LookupLayout returns the built-in layout registered under name.
func LookupLayout(name string) (Layout, error) {
	l, ok := layouts[name]
	if !ok {
		return nil, fmt.Errorf("unknown record layout: %s (supported: %v)", name, LayoutNames())
	}
	return l, nil
}

// LayoutNames returns the names of all built-in layouts, sorted.
func LayoutNames() []string {
	names := make([]string, 0, len(layouts))
	for name := range layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
