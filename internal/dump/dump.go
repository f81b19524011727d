// Package dump converts raw object dumps, as written by the raw encoder, into
// CSV, Avro or Parquet files.
package dump

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/jittakal/ringstore/internal/encoder"
	"github.com/jittakal/ringstore/pkg/record"
)

// Options configures a conversion.
type Options struct {
	Layout      record.Layout
	Format      record.FileFormat
	Compression string
	// Stream labels the records. It does not change the output of the
	// built-in encoders.
	Stream record.StreamID
}

// Result describes a finished conversion.
type Result struct {
	Objects int
	// TrailingBytes counts bytes after the last whole object. They are
	// ignored.
	TrailingBytes int
	OutputPath    string
	Stats         *record.FileStats
}

// Read splits a raw stream into records of the given layout. A trailing
// partial object is not returned; its length is reported instead.
func Read(r io.Reader, layout record.Layout, stream record.StreamID) ([]record.Record, int, error) {
	size := layout.Size()
	br := bufio.NewReader(r)
	now := time.Now()

	var records []record.Record
	for seq := int64(0); ; seq++ {
		obj := make([]byte, size)
		n, err := io.ReadFull(br, obj)
		switch {
		case err == nil:
			records = append(records, record.Record{
				Stream:   stream,
				Sequence: seq,
				Layout:   layout.Name(),
				Payload:  obj,
				PulledAt: now,
			})
		case stderrors.Is(err, io.EOF):
			return records, 0, nil
		case stderrors.Is(err, io.ErrUnexpectedEOF):
			return records, n, nil
		default:
			return nil, 0, fmt.Errorf("read object %d: %w", seq, err)
		}
	}
}

// Open opens a raw dump, decompressing .gz and .zst files.
func Open(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}

	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("open gzip dump: %w", err)
		}
		return readCloser{Reader: gz, closers: []io.Closer{gz, file}}, nil
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("open zstd dump: %w", err)
		}
		return readCloser{Reader: zr, closers: []io.Closer{zstdCloser{zr}, file}}, nil
	default:
		return file, nil
	}
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r readCloser) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return stderrors.Join(errs...)
}

// zstdCloser adapts zstd.Decoder, whose Close returns nothing.
type zstdCloser struct{ d *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}

// OutputPath derives the output file name from a dump path by replacing its
// raw extension.
func OutputPath(input, ext string) string {
	base := input
	for _, suffix := range []string{".gz", ".zst", ".raw"} {
		base = strings.TrimSuffix(base, suffix)
	}
	return base + ext
}

// Convert reads the dump at input and writes it to output in opts.Format.
// An empty output derives the name from input.
func Convert(input, output string, opts Options) (*Result, error) {
	if opts.Layout == nil {
		return nil, fmt.Errorf("layout is required")
	}
	if opts.Format == record.FormatRaw {
		return nil, fmt.Errorf("dump is already raw")
	}

	compression := opts.Compression
	if compression == "" {
		compression = encoder.DefaultCompression(opts.Format)
	}
	enc, err := encoder.NewFactory(opts.Format, compression).CreateEncoder()
	if err != nil {
		return nil, err
	}
	if output == "" {
		output = OutputPath(input, enc.FileExtension())
	}

	in, err := Open(input)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	records, trailing, err := Read(in, opts.Layout, opts.Stream)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no %s objects in %s", opts.Layout.Name(), input)
	}

	stats, err := enc.Encode(output, records)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", opts.Format, err)
	}

	return &Result{
		Objects:       len(records),
		TrailingBytes: trailing,
		OutputPath:    output,
		Stats:         stats,
	}, nil
}
