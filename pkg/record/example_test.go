package record_test

import (
	"fmt"
	"time"

	"github.com/jittakal/ringstore/pkg/record"
)

func Example_split() {
	stream := record.StreamID{Topic: "file-access", Partition: 0}

	packed := make([]byte, 2*record.FileAccessSize)
	record.FileAccess{Ino: 11, Pos: 0, Sec: 1}.Put(packed)
	record.FileAccess{Ino: 11, Pos: 4096, Sec: 2}.Put(packed[record.FileAccessSize:])

	records, err := record.Split(stream, record.FileAccessLayout, packed, 0, time.Now())
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	for _, rec := range records {
		values, _ := record.FileAccessLayout.Decode(rec.Payload)
		fmt.Println(rec.Stream, rec.Sequence, values)
	}

	// Output:
	// file-access-0 0 [11 0 1 0]
	// file-access-0 1 [11 4096 2 0]
}
