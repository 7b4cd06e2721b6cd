package encoder

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/jittakal/fifolog/pkg/encoder"
	"github.com/parquet-go/parquet-go"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ParquetEncoder)(nil)

// SegmentParquet represents the Parquet schema for a log segment.
type SegmentParquet struct {
	Stream    string    `parquet:"stream,dict"`
	Sequence  int64     `parquet:"sequence"`
	CreatedAt time.Time `parquet:"created_at,timestamp(microsecond)"`
	Size      int32     `parquet:"size"`
	Data      []byte    `parquet:"data"`
}

// ParquetEncoder implements encoder.Encoder for Apache Parquet.
// Each segment becomes a file holding one row.
// Supports SNAPPY (default), GZIP, LZ4, ZSTD and uncompressed.
type ParquetEncoder struct {
	compressionName string
}

// NewParquetEncoder creates a new Parquet encoder with specified compression.
func NewParquetEncoder(compression string) *ParquetEncoder {
	return &ParquetEncoder{
		compressionName: compression,
	}
}

// compressionCodec converts string compression name to parquet WriterOption.
func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// Encode writes the segment as a Parquet file to w.
func (e *ParquetEncoder) Encode(w io.Writer, seg encoder.Segment) (int64, error) {
	counter := &countingWriter{w: w}

	writer := parquet.NewGenericWriter[SegmentParquet](
		counter,
		parquet.SchemaOf(new(SegmentParquet)),
		compressionCodec(e.compressionName),
		parquet.CreatedBy("fifolog", "1.0", "0"),
	)

	row := SegmentParquet{
		Stream:    seg.Stream,
		Sequence:  seg.Sequence,
		CreatedAt: seg.CreatedAt.UTC(),
		Size:      int32(len(seg.Data)),
		Data:      seg.Data,
	}
	if _, err := writer.Write([]SegmentParquet{row}); err != nil {
		writer.Close()
		return counter.n, fmt.Errorf("failed to write segment: %w", err)
	}

	if err := writer.Close(); err != nil {
		return counter.n, fmt.Errorf("failed to close writer: %w", err)
	}

	return counter.n, nil
}

// DecodeParquetSegments reads every segment row from a Parquet file.
func DecodeParquetSegments(data []byte) ([]encoder.Segment, error) {
	rows, err := parquet.Read[SegmentParquet](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet: %w", err)
	}

	segments := make([]encoder.Segment, len(rows))
	for i, row := range rows {
		segments[i] = encoder.Segment{
			Stream:    row.Stream,
			Sequence:  row.Sequence,
			CreatedAt: row.CreatedAt,
			Data:      row.Data,
		}
	}
	return segments, nil
}

// Format returns the segment format.
func (e *ParquetEncoder) Format() encoder.Format {
	return encoder.FormatParquet
}

// FileExtension returns the file extension.
func (e *ParquetEncoder) FileExtension() string {
	return ".parquet"
}

// ContentType returns the MIME type.
func (e *ParquetEncoder) ContentType() string {
	return "application/vnd.apache.parquet"
}
