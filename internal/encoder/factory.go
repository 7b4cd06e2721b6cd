// Package encoder implements encoder factory for creating segment encoders.
package encoder

import (
	"fmt"

	"github.com/jittakal/fifolog/pkg/encoder"
)

// Factory creates encoders based on format and configuration.
type Factory struct {
	format      encoder.Format
	compression string
}

// NewFactory creates a new encoder factory.
func NewFactory(format encoder.Format, compression string) *Factory {
	return &Factory{
		format:      format,
		compression: compression,
	}
}

// CreateEncoder creates an encoder based on the configured format.
func (f *Factory) CreateEncoder() (encoder.Encoder, error) {
	switch f.format {
	case encoder.FormatRaw, "":
		return NewRawEncoder(), nil
	case encoder.FormatParquet:
		return NewParquetEncoder(f.compression), nil
	case encoder.FormatAvro:
		return NewAvroEncoder(f.compression)
	default:
		return nil, fmt.Errorf("unsupported segment format: %s", f.format)
	}
}

// SupportedFormats returns a list of supported segment formats.
func SupportedFormats() []encoder.Format {
	return []encoder.Format{
		encoder.FormatRaw,
		encoder.FormatParquet,
		encoder.FormatAvro,
	}
}

// SupportedCompressions returns supported compression codecs for a given format.
func SupportedCompressions(format encoder.Format) []string {
	switch format {
	case encoder.FormatParquet:
		return []string{"uncompressed", "snappy", "gzip", "lz4", "zstd"}
	case encoder.FormatAvro:
		return []string{"null", "deflate", "snappy", "gzip"}
	case encoder.FormatRaw:
		return []string{"uncompressed"}
	default:
		return []string{}
	}
}

// DefaultCompression returns the default compression for a format.
func DefaultCompression(format encoder.Format) string {
	switch format {
	case encoder.FormatParquet, encoder.FormatAvro:
		return "snappy"
	default:
		return "uncompressed"
	}
}
