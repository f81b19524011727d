package encoder

import (
	"time"

	"github.com/jittakal/ringstore/pkg/record"
)

// sampleRecords returns n sample records with IDs 0..n-1.
func sampleRecords(n int) []record.Record {
	stream := record.StreamID{Topic: "samples", Partition: 2}
	packed := make([]byte, n*record.SampleSize)
	for i := range n {
		s := record.Sample{ID: uint64(i)}
		copy(s.Padding[:], "pad")
		s.Put(packed[i*record.SampleSize:])
	}
	records, err := record.Split(stream, record.SampleLayout, packed, 0, time.Now())
	if err != nil {
		panic(err)
	}
	return records
}
