package encoder

import (
	"fmt"
	"io"

	"github.com/jittakal/fifolog/pkg/encoder"
)

var _ encoder.Encoder = (*RawEncoder)(nil)

// RawEncoder writes segment bytes unchanged.
type RawEncoder struct{}

// NewRawEncoder creates a raw encoder.
func NewRawEncoder() *RawEncoder {
	return &RawEncoder{}
}

// Encode copies the segment data to w.
func (e *RawEncoder) Encode(w io.Writer, seg encoder.Segment) (int64, error) {
	n, err := w.Write(seg.Data)
	if err != nil {
		return int64(n), fmt.Errorf("failed to write segment: %w", err)
	}
	return int64(n), nil
}

// Format returns the segment format.
func (e *RawEncoder) Format() encoder.Format {
	return encoder.FormatRaw
}

// FileExtension returns the file extension.
func (e *RawEncoder) FileExtension() string {
	return ".log"
}

// ContentType returns the MIME type.
func (e *RawEncoder) ContentType() string {
	return "text/plain; charset=utf-8"
}
