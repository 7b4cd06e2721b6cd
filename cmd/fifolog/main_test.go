package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jittakal/fifolog/internal/config/dto"
	"github.com/jittakal/fifolog/internal/observability"
	"github.com/jittakal/fifolog/internal/storage"
	pkgencoder "github.com/jittakal/fifolog/pkg/encoder"
)

func testMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

func TestNewSink_File(t *testing.T) {
	cfg := &dto.ApplicationConfig{
		Application: dto.ApplicationInfo{Name: "fifolog"},
		Sink: dto.SinkConfig{
			Backend: "file",
			File:    dto.FileConfig{Path: filepath.Join(t.TempDir(), "app.log")},
		},
	}

	s, err := newSink(context.Background(), cfg, zap.NewNop(), testMetrics())
	if err != nil {
		t.Fatalf("newSink() error = %v", err)
	}
	defer s.Close()

	if _, ok := s.(*storage.FileSink); !ok {
		t.Errorf("newSink() = %T, want *storage.FileSink", s)
	}
}

func TestNewSink_UnsupportedBackend(t *testing.T) {
	cfg := &dto.ApplicationConfig{Sink: dto.SinkConfig{Backend: "tape"}}
	if _, err := newSink(context.Background(), cfg, zap.NewNop(), testMetrics()); err == nil {
		t.Error("newSink() accepted an unknown backend")
	}
}

func TestNewEncoder(t *testing.T) {
	tests := []struct {
		name    string
		cfg     dto.ApplicationConfig
		want    pkgencoder.Format
		wantErr bool
	}{
		{name: "default raw", cfg: dto.ApplicationConfig{}, want: pkgencoder.FormatRaw},
		{
			name: "avro codec",
			cfg:  dto.ApplicationConfig{Sink: dto.SinkConfig{Format: "avro"}, Avro: dto.AvroConfig{Codec: "deflate"}},
			want: pkgencoder.FormatAvro,
		},
		{
			name: "parquet default compression",
			cfg:  dto.ApplicationConfig{Sink: dto.SinkConfig{Format: "parquet"}},
			want: pkgencoder.FormatParquet,
		},
		{name: "unknown", cfg: dto.ApplicationConfig{Sink: dto.SinkConfig{Format: "csv"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := newEncoder(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newEncoder() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && enc.Format() != tt.want {
				t.Errorf("Format() = %s, want %s", enc.Format(), tt.want)
			}
		})
	}
}

func TestNewSource(t *testing.T) {
	tests := []struct {
		typ      string
		wantName string
		wantErr  bool
	}{
		{typ: "", wantName: "stdin"},
		{typ: "stdin", wantName: "stdin"},
		{typ: "generator", wantName: "generator"},
		{typ: "kafka", wantErr: true}, // no group ID
		{typ: "syslog", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			cfg := &dto.ApplicationConfig{
				Buffer: dto.BufferConfig{CapacityBytes: 1024},
				Source: dto.SourceConfig{Type: tt.typ},
			}
			src, closeFn, err := newSource(cfg, zap.NewNop(), testMetrics())
			if (err != nil) != tt.wantErr {
				t.Fatalf("newSource() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if src.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", src.Name(), tt.wantName)
			}
			if closeFn != nil {
				t.Error("close function set for a source without resources")
			}
		})
	}
}

func TestSecurityConfig(t *testing.T) {
	sec := securityConfig(dto.KafkaConfig{
		BootstrapServers: []string{"b1:9092"},
		SecurityProtocol: "SASL_SSL",
		SASLMechanism:    "SCRAM-SHA-512",
		ClientID:         "fifolog",
	})
	if err := sec.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if sec.ClientID != "fifolog" || sec.SASLMechanism != "SCRAM-SHA-512" {
		t.Errorf("securityConfig() = %+v", sec)
	}
}
