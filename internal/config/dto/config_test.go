package dto

import (
	"testing"
	"time"
)

func TestBufferConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  BufferConfig
		wantErr bool
	}{
		{
			name:   "defaults",
			config: BufferConfig{CapacityBytes: 8192, ChunkSizeBytes: 4096, Terminator: "\n", OverrunPolicy: "drop"},
		},
		{
			name:   "empty terminator",
			config: BufferConfig{CapacityBytes: 16, ChunkSizeBytes: 4, OverrunPolicy: "flush"},
		},
		{
			name:    "negative capacity",
			config:  BufferConfig{CapacityBytes: -1, ChunkSizeBytes: 4, OverrunPolicy: "drop"},
			wantErr: true,
		},
		{
			name:    "zero chunk",
			config:  BufferConfig{CapacityBytes: 16, OverrunPolicy: "drop"},
			wantErr: true,
		},
		{
			name:    "negative interval",
			config:  BufferConfig{CapacityBytes: 16, ChunkSizeBytes: 4, OverrunPolicy: "drop", FlushIntervalMS: -5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBufferConfig_Helpers(t *testing.T) {
	c := BufferConfig{FlushIntervalMS: 1500, Terminator: "|"}
	if c.FlushInterval() != 1500*time.Millisecond {
		t.Errorf("FlushInterval() = %v", c.FlushInterval())
	}
	if c.TerminatorByte() != '|' {
		t.Errorf("TerminatorByte() = %q, want '|'", c.TerminatorByte())
	}
	if (BufferConfig{}).TerminatorByte() != '\n' {
		t.Error("empty terminator should default to newline")
	}
}

func TestSinkConfigs_Validate(t *testing.T) {
	tests := []struct {
		name    string
		v       interface{ Validate() error }
		wantErr bool
	}{
		{"file ok", &FileConfig{Path: "/tmp/x.log"}, false},
		{"file missing path", &FileConfig{}, true},
		{"s3 ok", &S3Config{Bucket: "b", Region: "us-east-1"}, false},
		{"s3 missing region", &S3Config{Bucket: "b"}, true},
		{"azure ok", &AzureConfig{AccountName: "a", Container: "c"}, false},
		{"azure missing account", &AzureConfig{Container: "c"}, true},
		{"gcs ok", &GCSConfig{Bucket: "b"}, false},
		{"gcs missing bucket", &GCSConfig{}, true},
		{"kafka ok", &KafkaSinkConfig{Topic: "logs"}, false},
		{"kafka missing topic", &KafkaSinkConfig{}, true},
		{"redis ok", &RedisConfig{Addr: "localhost:6379", Stream: "logs"}, false},
		{"redis missing stream", &RedisConfig{Addr: "localhost:6379"}, true},
		{"kafka source ok", &KafkaSourceConfig{GroupID: "g", Topics: []string{"t"}}, false},
		{"kafka source missing topics", &KafkaSourceConfig{GroupID: "g"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplicationConfig_Validate(t *testing.T) {
	valid := ApplicationConfig{
		Application: ApplicationInfo{Name: "fifolog"},
		Buffer:      BufferConfig{CapacityBytes: 16, ChunkSizeBytes: 4, OverrunPolicy: "drop"},
		Sink:        SinkConfig{Backend: "file"},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	noName := valid
	noName.Application.Name = ""
	if err := noName.Validate(); err == nil {
		t.Error("expected error for missing application name")
	}

	noBackend := valid
	noBackend.Sink.Backend = ""
	if err := noBackend.Validate(); err == nil {
		t.Error("expected error for missing sink backend")
	}
}

func TestShutdownConfig_Durations(t *testing.T) {
	c := ShutdownConfig{GracePeriodSeconds: 30, ForceTimeoutSeconds: 60}
	if c.GracePeriod() != 30*time.Second {
		t.Errorf("GracePeriod() = %v", c.GracePeriod())
	}
	if c.ForceTimeout() != time.Minute {
		t.Errorf("ForceTimeout() = %v", c.ForceTimeout())
	}
}
