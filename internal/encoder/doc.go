// Package encoder encodes drained log segments into object formats.
//
// Object sinks (S3, GCS, Azure) store each drained chunk as one object.
// The encoder decides how that object looks.
//
// # Supported Formats
//
//   - Raw: the chunk bytes unchanged, ".log"
//   - Avro: an OCF container holding one LogSegment record
//   - Parquet: a file holding one row of the SegmentParquet schema
//
// Segment data is opaque. A chunk may start or end in the middle of a
// record, so the structured formats keep the bytes in a single binary
// column and never split them into records.
//
// # Encoder Factory
//
//	factory := encoder.NewFactory(pkgencoder.FormatParquet, "snappy")
//	enc, err := factory.CreateEncoder()
//	if err != nil {
//	    return err
//	}
//	n, err := enc.Encode(w, segment)
//
// # Compression Options
//
//	Parquet: "snappy", "gzip", "lz4", "zstd", "uncompressed"
//	Avro:    "null", "deflate", "snappy" (OCF block codecs), "gzip" (whole file)
//
// # Thread Safety
//
// Encoders hold no per-call state and are safe for concurrent use.
package encoder
