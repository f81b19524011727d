// Package encoder provides record encoding to various file formats.
//
// Records leave a ring as fixed-size objects. Encoders turn a batch of them
// into a file, optionally decoding each object through its layout.
//
// # Supported Formats
//
//   - Raw: payloads back to back, readable again in layout-size chunks
//   - CSV: one line per object with the layout's columns
//   - Parquet: columnar, decoded fields stored as JSON next to the payload
//   - Avro: OCF rows with the same columns as Parquet
//
// # Encoder Factory
//
//	factory := encoder.NewFactory(record.FormatParquet, "snappy")
//	enc, err := factory.CreateEncoder()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stats, err := enc.Encode(filePath, records)
//
// # Compression Options
//
//	Raw:     "uncompressed", "gzip", "zstd"
//	CSV:     "uncompressed"
//	Parquet: "snappy", "gzip", "lz4", "zstd", "uncompressed"
//	Avro:    "gzip", "uncompressed"
//
// # File Extensions
//
//	rawEnc.FileExtension()      // ".raw", ".raw.gz" or ".raw.zst"
//	parquetEnc.FileExtension()  // ".parquet"
//	avroEnc.FileExtension()     // ".avro.gz" (with gzip)
//
// # Thread Safety
//
// Encoder instances are safe for concurrent use. Factory.CreateEncoder()
// creates independent encoder instances.
package encoder
