package encoder

import (
	"bytes"
	"compress/gzip"
	"testing"
	"time"

	"github.com/jittakal/fifolog/pkg/encoder"
)

func testSegment() encoder.Segment {
	return encoder.Segment{
		Stream:    "app",
		Sequence:  7,
		CreatedAt: time.Date(2024, 3, 1, 12, 30, 45, 123456000, time.UTC),
		Data:      []byte("first line\nsecond li"),
	}
}

func TestNewFactory(t *testing.T) {
	tests := []struct {
		name        string
		format      encoder.Format
		compression string
	}{
		{"raw", encoder.FormatRaw, ""},
		{"parquet with snappy", encoder.FormatParquet, "snappy"},
		{"avro with deflate", encoder.FormatAvro, "deflate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewFactory(tt.format, tt.compression)
			if factory.format != tt.format {
				t.Errorf("format = %v, want %v", factory.format, tt.format)
			}
			if factory.compression != tt.compression {
				t.Errorf("compression = %v, want %v", factory.compression, tt.compression)
			}
		})
	}
}

func TestFactory_CreateEncoder(t *testing.T) {
	tests := []struct {
		name    string
		format  encoder.Format
		wantExt string
		wantErr bool
	}{
		{"raw", encoder.FormatRaw, ".log", false},
		{"empty defaults to raw", "", ".log", false},
		{"parquet", encoder.FormatParquet, ".parquet", false},
		{"avro", encoder.FormatAvro, ".avro", false},
		{"unsupported", "csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewFactory(tt.format, "snappy").CreateEncoder()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateEncoder() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if enc.FileExtension() != tt.wantExt {
				t.Errorf("FileExtension() = %s, want %s", enc.FileExtension(), tt.wantExt)
			}
			if enc.ContentType() == "" {
				t.Error("ContentType() is empty")
			}
		})
	}
}

func TestSupportedFormatsAndCompressions(t *testing.T) {
	if got := len(SupportedFormats()); got != 3 {
		t.Errorf("SupportedFormats() = %d formats, want 3", got)
	}
	for _, f := range SupportedFormats() {
		def := DefaultCompression(f)
		found := false
		for _, c := range SupportedCompressions(f) {
			if c == def {
				found = true
			}
		}
		if !found {
			t.Errorf("default compression %q not supported for %s", def, f)
		}
	}
	if len(SupportedCompressions("csv")) != 0 {
		t.Error("unknown format should have no compressions")
	}
}

func TestRawEncoder_Encode(t *testing.T) {
	var buf bytes.Buffer
	seg := testSegment()

	n, err := NewRawEncoder().Encode(&buf, seg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if n != int64(len(seg.Data)) {
		t.Errorf("Encode() = %d bytes, want %d", n, len(seg.Data))
	}
	if !bytes.Equal(buf.Bytes(), seg.Data) {
		t.Errorf("encoded = %q, want %q", buf.Bytes(), seg.Data)
	}
}

func TestAvroEncoder_RoundTrip(t *testing.T) {
	for _, compression := range []string{"null", "deflate", "snappy"} {
		t.Run(compression, func(t *testing.T) {
			enc, err := NewAvroEncoder(compression)
			if err != nil {
				t.Fatalf("NewAvroEncoder() error = %v", err)
			}

			var buf bytes.Buffer
			seg := testSegment()
			n, err := enc.Encode(&buf, seg)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if n != int64(buf.Len()) {
				t.Errorf("Encode() reported %d bytes, buffer has %d", n, buf.Len())
			}

			got, err := DecodeAvroSegments(&buf)
			if err != nil {
				t.Fatalf("DecodeAvroSegments() error = %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("decoded %d segments, want 1", len(got))
			}
			if got[0].Stream != seg.Stream || got[0].Sequence != seg.Sequence {
				t.Errorf("decoded = %+v", got[0])
			}
			if !bytes.Equal(got[0].Data, seg.Data) {
				t.Errorf("data = %q, want %q", got[0].Data, seg.Data)
			}
			if !got[0].CreatedAt.Equal(seg.CreatedAt) {
				t.Errorf("created_at = %v, want %v", got[0].CreatedAt, seg.CreatedAt)
			}
		})
	}
}

func TestAvroEncoder_Gzip(t *testing.T) {
	enc, err := NewAvroEncoder("GZIP")
	if err != nil {
		t.Fatalf("NewAvroEncoder() error = %v", err)
	}
	if enc.FileExtension() != ".avro.gz" {
		t.Errorf("FileExtension() = %s, want .avro.gz", enc.FileExtension())
	}

	var buf bytes.Buffer
	if _, err := enc.Encode(&buf, testSegment()); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	zr, err := gzip.NewReader(&buf)
	if err != nil {
		t.Fatalf("gzip.NewReader() error = %v", err)
	}
	got, err := DecodeAvroSegments(zr)
	if err != nil {
		t.Fatalf("DecodeAvroSegments() error = %v", err)
	}
	if len(got) != 1 || string(got[0].Data) != "first line\nsecond li" {
		t.Errorf("decoded = %+v", got)
	}
}

func TestParquetEncoder_RoundTrip(t *testing.T) {
	for _, compression := range []string{"snappy", "gzip", "zstd", "none"} {
		t.Run(compression, func(t *testing.T) {
			enc := NewParquetEncoder(compression)

			var buf bytes.Buffer
			seg := testSegment()
			n, err := enc.Encode(&buf, seg)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if n != int64(buf.Len()) {
				t.Errorf("Encode() reported %d bytes, buffer has %d", n, buf.Len())
			}

			got, err := DecodeParquetSegments(buf.Bytes())
			if err != nil {
				t.Fatalf("DecodeParquetSegments() error = %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("decoded %d rows, want 1", len(got))
			}
			if got[0].Sequence != 7 || got[0].Stream != "app" {
				t.Errorf("decoded = %+v", got[0])
			}
			if !bytes.Equal(got[0].Data, seg.Data) {
				t.Errorf("data = %q, want %q", got[0].Data, seg.Data)
			}
		})
	}
}

func TestEncoders_EmptySegment(t *testing.T) {
	encoders := []encoder.Encoder{NewRawEncoder(), NewParquetEncoder("snappy")}
	if avro, err := NewAvroEncoder("null"); err == nil {
		encoders = append(encoders, avro)
	}

	for _, enc := range encoders {
		t.Run(string(enc.Format()), func(t *testing.T) {
			var buf bytes.Buffer
			if _, err := enc.Encode(&buf, encoder.Segment{Stream: "empty"}); err != nil {
				t.Errorf("Encode() error = %v", err)
			}
		})
	}
}

func BenchmarkParquetEncoder_Encode(b *testing.B) {
	enc := NewParquetEncoder("snappy")
	seg := testSegment()
	seg.Data = bytes.Repeat([]byte("x"), 4096)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		_, _ = enc.Encode(&buf, seg)
	}
}

func BenchmarkAvroEncoder_Encode(b *testing.B) {
	enc, _ := NewAvroEncoder("snappy")
	seg := testSegment()
	seg.Data = bytes.Repeat([]byte("x"), 4096)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		_, _ = enc.Encode(&buf, seg)
	}
}
