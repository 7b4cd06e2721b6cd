package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrRingFull", ErrRingFull},
		{"ErrRingUnderrun", ErrRingUnderrun},
		{"ErrRecordTooLarge", ErrRecordTooLarge},
		{"ErrShortWrite", ErrShortWrite},
		{"ErrSinkClosed", ErrSinkClosed},
		{"ErrAppenderClosed", ErrAppenderClosed},
		{"ErrConnectionLost", ErrConnectionLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatalf("%s should not be nil", tt.name)
			}
			if tt.err.Error() == "" {
				t.Errorf("%s should have an error message", tt.name)
			}
		})
	}
}

func TestFlushError(t *testing.T) {
	flushErr := &FlushError{
		Stage: StageWrite,
		Chunk: 4096,
		Lost:  4096,
		Err:   ErrShortWrite,
	}

	if flushErr.Error() == "" {
		t.Error("FlushError should have an error message")
	}
	if !errors.Is(flushErr, ErrShortWrite) {
		t.Error("FlushError should wrap ErrShortWrite")
	}

	wrapped := fmt.Errorf("append: %w", flushErr)
	var target *FlushError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should find FlushError through wrapping")
	}
	if target.Lost != 4096 {
		t.Errorf("Lost = %d, want 4096", target.Lost)
	}
}

func TestFlushError_IsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  *FlushError
		want bool
	}{
		{
			name: "read underrun is not retryable",
			err:  &FlushError{Stage: StageRead, Err: ErrRingUnderrun},
			want: false,
		},
		{
			name: "short write is retryable",
			err:  &FlushError{Stage: StageWrite, Err: ErrShortWrite},
			want: true,
		},
		{
			name: "retryable storage error",
			err: &FlushError{Stage: StageWrite, Err: &StorageError{
				Backend: "s3", Operation: "upload", Err: errors.New("timeout"),
			}},
			want: true,
		},
		{
			name: "closed sink is not retryable",
			err:  &FlushError{Stage: StageWrite, Err: ErrSinkClosed},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.IsRetryable(); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(err) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStorageError(t *testing.T) {
	baseErr := errors.New("disk full")
	storageErr := &StorageError{
		Backend:   "file",
		Operation: "write",
		Path:      "/var/log/app.log",
		Err:       baseErr,
	}

	if storageErr.Error() == "" {
		t.Error("StorageError should have an error message")
	}
	if !errors.Is(storageErr, baseErr) {
		t.Error("StorageError should wrap base error")
	}
}

func TestStorageError_IsRetryable(t *testing.T) {
	tests := []struct {
		operation string
		want      bool
	}{
		{"write", true},
		{"upload", true},
		{"send", true},
		{"xadd", true},
		{"rotate", true},
		{"open", false},
		{"encode", false},
		{"close", false},
	}

	for _, tt := range tests {
		t.Run(tt.operation, func(t *testing.T) {
			err := &StorageError{Operation: tt.operation, Err: errors.New("x")}
			if got := err.IsRetryable(); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"connection lost", ErrConnectionLost, true},
		{"wrapped connection lost", fmt.Errorf("send: %w", ErrConnectionLost), true},
		{"ring full", ErrRingFull, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
