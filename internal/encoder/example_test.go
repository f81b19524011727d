package encoder_test

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jittakal/ringstore/internal/encoder"
	"github.com/jittakal/ringstore/pkg/record"
)

func ExampleFactory() {
	factory := encoder.NewFactory(record.FormatCSV, "uncompressed")
	enc, err := factory.CreateEncoder()
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	packed := make([]byte, 2*record.FileAccessSize)
	record.FileAccess{Ino: 7, Pos: 0, Sec: 100}.Put(packed)
	record.FileAccess{Ino: 7, Pos: 512, Sec: 101, Usec: 20}.Put(packed[record.FileAccessSize:])

	stream := record.StreamID{Topic: "file-access", Partition: 0}
	records, _ := record.Split(stream, record.FileAccessLayout, packed, 0, time.Now())

	dir, _ := os.MkdirTemp("", "encoder-example")
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "objects"+enc.FileExtension())
	if _, err := enc.Encode(path, records); err != nil {
		fmt.Println("Error:", err)
		return
	}

	data, _ := os.ReadFile(path)
	fmt.Print(string(data))

	// Output:
	// sequence,ino,pos,sec,usec
	// 0,7,0,100,0
	// 1,7,512,101,20
}
