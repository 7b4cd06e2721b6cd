// Package encoder defines interfaces for encoding drained log segments
// into object formats.
package encoder

import (
	"io"
	"time"
)

// Format identifies a segment object format.
type Format string

const (
	FormatRaw     Format = "raw"
	FormatAvro    Format = "avro"
	FormatParquet Format = "parquet"
)

// Segment is one chunk of the record stream as drained from the buffer.
// Data is opaque: it may begin or end in the middle of a record.
type Segment struct {
	Stream    string
	Sequence  int64
	CreatedAt time.Time
	Data      []byte
}

// Encoder encodes a segment into an object body.
type Encoder interface {
	// Encode writes seg to w and returns the number of encoded bytes.
	Encode(w io.Writer, seg Segment) (int64, error)

	// Format returns the format this encoder produces.
	Format() Format

	// FileExtension returns the object extension (e.g., ".log", ".parquet").
	FileExtension() string

	// ContentType returns the MIME type of encoded objects.
	ContentType() string
}
