// Package encoder implements segment format encoders.
package encoder

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jittakal/fifolog/pkg/encoder"
	"github.com/linkedin/goavro/v2"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*AvroEncoder)(nil)

// AvroEncoder implements encoder.Encoder for Avro OCF (Object Container File).
// Each segment becomes a single-record container. Block compression uses the
// OCF codec ("deflate", "snappy"); "gzip" wraps the whole container instead.
type AvroEncoder struct {
	codec       *goavro.Codec
	compression string
}

// NewAvroEncoder creates a new Avro encoder with specified compression.
func NewAvroEncoder(compression string) (*AvroEncoder, error) {
	codec, err := goavro.NewCodec(avroSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	return &AvroEncoder{
		codec:       codec,
		compression: strings.ToLower(compression),
	}, nil
}

// avroSchema returns the Avro schema for log segments.
func avroSchema() string {
	return `{
		"type": "record",
		"name": "LogSegment",
		"namespace": "io.fifolog",
		"fields": [
			{"name": "stream", "type": "string"},
			{"name": "sequence", "type": "long"},
			{"name": "created_at", "type": {"type": "long", "logicalType": "timestamp-micros"}},
			{"name": "size", "type": "int"},
			{"name": "data", "type": "bytes"}
		]
	}`
}

// ocfCompression maps a compression name to a goavro OCF codec name.
func (e *AvroEncoder) ocfCompression() string {
	switch e.compression {
	case "deflate":
		return goavro.CompressionDeflateLabel
	case "snappy":
		return goavro.CompressionSnappyLabel
	default:
		return goavro.CompressionNullLabel
	}
}

// Encode writes the segment as an Avro container to w.
func (e *AvroEncoder) Encode(w io.Writer, seg encoder.Segment) (int64, error) {
	counter := &countingWriter{w: w}
	var out io.Writer = counter

	var gzipWriter *gzip.Writer
	if e.compression == "gzip" {
		gzipWriter = gzip.NewWriter(counter)
		out = gzipWriter
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               out,
		Codec:           e.codec,
		CompressionName: e.ocfCompression(),
	})
	if err != nil {
		return counter.n, fmt.Errorf("failed to create OCF writer: %w", err)
	}

	record := map[string]interface{}{
		"stream":     seg.Stream,
		"sequence":   seg.Sequence,
		"created_at": seg.CreatedAt.UTC(),
		"size":       int32(len(seg.Data)),
		"data":       seg.Data,
	}
	if err := ocfWriter.Append([]interface{}{record}); err != nil {
		return counter.n, fmt.Errorf("failed to write segment: %w", err)
	}

	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return counter.n, fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}

	return counter.n, nil
}

// DecodeAvroSegments reads every segment from an Avro container.
func DecodeAvroSegments(r io.Reader) ([]encoder.Segment, error) {
	ocfReader, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCF reader: %w", err)
	}

	var segments []encoder.Segment
	for ocfReader.Scan() {
		datum, err := ocfReader.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to read segment: %w", err)
		}
		m, ok := datum.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected datum type %T", datum)
		}
		seg := encoder.Segment{}
		seg.Stream, _ = m["stream"].(string)
		seg.Sequence, _ = m["sequence"].(int64)
		seg.Data, _ = m["data"].([]byte)
		if ts, ok := m["created_at"].(time.Time); ok {
			seg.CreatedAt = ts
		}
		segments = append(segments, seg)
	}
	if err := ocfReader.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan container: %w", err)
	}
	return segments, nil
}

// Format returns the segment format.
func (e *AvroEncoder) Format() encoder.Format {
	return encoder.FormatAvro
}

// FileExtension returns the file extension.
func (e *AvroEncoder) FileExtension() string {
	if e.compression == "gzip" {
		return ".avro.gz"
	}
	return ".avro"
}

// ContentType returns the MIME type.
func (e *AvroEncoder) ContentType() string {
	return "application/avro"
}

// countingWriter counts bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
