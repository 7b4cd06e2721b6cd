package storage

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jittakal/fifolog/internal/encoder"
	fferrors "github.com/jittakal/fifolog/internal/errors"
)

type uploadedObject struct {
	key         string
	contentType string
	body        []byte
}

type fakeUploader struct {
	mu      sync.Mutex
	objects []uploadedObject
	err     error
	closed  bool
}

func (u *fakeUploader) Upload(_ context.Context, key, contentType string, body []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return u.err
	}
	u.objects = append(u.objects, uploadedObject{key: key, contentType: contentType, body: append([]byte(nil), body...)})
	return nil
}

func (u *fakeUploader) Close() error {
	u.closed = true
	return nil
}

func fixedClock() func() time.Time {
	ts := time.Date(2025, 12, 18, 10, 30, 45, 0, time.UTC)
	return func() time.Time { return ts }
}

func TestObjectSink_WriteRaw(t *testing.T) {
	uploader := &fakeUploader{}
	metrics := newMockMetrics()
	s := NewObjectSink("s3", "app", NewRouter("s3", "bucket", "logs"), encoder.NewRawEncoder(), uploader, nil, metrics)
	s.now = fixedClock()

	ctx := context.Background()
	for _, chunk := range []string{"HELL", "OWOR", "LD\n"} {
		n, err := s.Write(ctx, []byte(chunk))
		if err != nil {
			t.Fatalf("Write(%q) error = %v", chunk, err)
		}
		if n != len(chunk) {
			t.Errorf("Write(%q) = %d, want %d", chunk, n, len(chunk))
		}
	}

	wantKeys := []string{
		"logs/app/dt=2025-12-18/segment_20251218_103045_001.log",
		"logs/app/dt=2025-12-18/segment_20251218_103045_002.log",
		"logs/app/dt=2025-12-18/segment_20251218_103045_003.log",
	}
	if len(uploader.objects) != len(wantKeys) {
		t.Fatalf("uploaded %d objects, want %d", len(uploader.objects), len(wantKeys))
	}

	var joined bytes.Buffer
	for i, obj := range uploader.objects {
		if obj.key != wantKeys[i] {
			t.Errorf("object %d key = %q, want %q", i, obj.key, wantKeys[i])
		}
		if obj.contentType != "text/plain; charset=utf-8" {
			t.Errorf("object %d content type = %q", i, obj.contentType)
		}
		joined.Write(obj.body)
	}
	if joined.String() != "HELLOWORLD\n" {
		t.Errorf("concatenated objects = %q", joined.String())
	}

	if s.Segments() != 3 {
		t.Errorf("Segments() = %d, want 3", s.Segments())
	}
	if metrics.segments["s3/raw/success"] != 3 {
		t.Errorf("segments metric = %v", metrics.segments)
	}
}

func TestObjectSink_WriteAvro(t *testing.T) {
	enc, err := encoder.NewAvroEncoder("snappy")
	if err != nil {
		t.Fatalf("NewAvroEncoder() error = %v", err)
	}
	uploader := &fakeUploader{}
	s := NewObjectSink("gcs", "app", NewRouter("gs", "bucket", ""), enc, uploader, nil, nil)
	s.now = fixedClock()

	if _, err := s.Write(context.Background(), []byte("one\ntwo\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	obj := uploader.objects[0]
	if !strings.HasPrefix(obj.key, "app/dt=2025-12-18/segment_") || !strings.HasSuffix(obj.key, enc.FileExtension()) {
		t.Errorf("key = %q", obj.key)
	}

	segs, err := encoder.DecodeAvroSegments(bytes.NewReader(obj.body))
	if err != nil {
		t.Fatalf("DecodeAvroSegments() error = %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("decoded %d segments, want 1", len(segs))
	}
	if string(segs[0].Data) != "one\ntwo\n" || segs[0].Stream != "app" || segs[0].Sequence != 1 {
		t.Errorf("segment = %+v", segs[0])
	}
}

func TestObjectSink_WriteParquet(t *testing.T) {
	uploader := &fakeUploader{}
	s := NewObjectSink("azure", "app", NewRouter("wasbs", "container", "base"), encoder.NewParquetEncoder("zstd"), uploader, nil, nil)
	s.now = fixedClock()

	if _, err := s.Write(context.Background(), []byte("row\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	segs, err := encoder.DecodeParquetSegments(uploader.objects[0].body)
	if err != nil {
		t.Fatalf("DecodeParquetSegments() error = %v", err)
	}
	if len(segs) != 1 || string(segs[0].Data) != "row\n" {
		t.Errorf("segments = %+v", segs)
	}
}

func TestObjectSink_UploadFailure(t *testing.T) {
	uploader := &fakeUploader{err: errors.New("throttled")}
	metrics := newMockMetrics()
	s := NewObjectSink("s3", "app", NewRouter("s3", "bucket", ""), encoder.NewRawEncoder(), uploader, nil, metrics)

	n, err := s.Write(context.Background(), []byte("chunk"))
	if n != 0 {
		t.Errorf("Write() = %d, want 0", n)
	}

	var storageErr *fferrors.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("Write() error = %v, want StorageError", err)
	}
	if storageErr.Operation != "upload" || !strings.HasPrefix(storageErr.Path, "app/dt=") {
		t.Errorf("StorageError = %+v", storageErr)
	}
	if !storageErr.IsRetryable() {
		t.Error("upload failures should be retryable")
	}
	if s.Segments() != 0 {
		t.Errorf("Segments() = %d after failure, want 0", s.Segments())
	}
	if metrics.lastErrorBackend != "s3" || metrics.segments["s3/raw/failure"] != 1 {
		t.Errorf("metrics = %+v", metrics)
	}
}

func TestObjectSink_SequenceResetsEachSecond(t *testing.T) {
	uploader := &fakeUploader{}
	s := NewObjectSink("s3", "app", NewRouter("s3", "bucket", ""), encoder.NewRawEncoder(), uploader, nil, nil)

	ts := time.Date(2025, 12, 18, 10, 30, 45, 0, time.UTC)
	s.now = func() time.Time { return ts }

	ctx := context.Background()
	s.Write(ctx, []byte("a"))
	s.Write(ctx, []byte("b"))
	ts = ts.Add(time.Second)
	s.Write(ctx, []byte("c"))

	last := uploader.objects[2].key
	if !strings.HasSuffix(last, "segment_20251218_103046_001.log") {
		t.Errorf("key after second change = %q", last)
	}
}

func TestObjectSink_Close(t *testing.T) {
	uploader := &fakeUploader{}
	s := NewObjectSink("s3", "app", NewRouter("s3", "bucket", ""), encoder.NewRawEncoder(), uploader, nil, nil)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !uploader.closed {
		t.Error("uploader not closed")
	}
	if _, err := s.Write(context.Background(), []byte("x")); !errors.Is(err, fferrors.ErrSinkClosed) {
		t.Errorf("Write() after Close error = %v, want ErrSinkClosed", err)
	}
	if s.Backend() != "s3" {
		t.Errorf("Backend() = %q", s.Backend())
	}
}
