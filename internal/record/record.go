// Package record formats records before they are appended.
//
// A formatter turns the payload produced by a source into the bytes
// stored in the ring. Formatted records must not contain the record
// terminator.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/jittakal/fifolog/pkg/source"
)

// Record formats.
const (
	FormatRaw         = "raw"
	FormatCloudEvents = "cloudevents"
)

// Default CloudEvents attributes.
const (
	DefaultEventType   = "io.fifolog.record"
	DefaultEventSource = "fifolog"
)

// Formatter converts a source payload into a stored record.
type Formatter interface {
	Format(payload []byte) ([]byte, error)
}

// Raw passes payloads through unchanged.
type Raw struct{}

// Format returns payload as is.
func (Raw) Format(payload []byte) ([]byte, error) {
	return payload, nil
}

// CloudEvents wraps each payload in a CloudEvents 1.0 JSON envelope.
// JSON payloads are embedded as data with content type application/json;
// anything else is carried as a text/plain string.
type CloudEvents struct {
	eventType string
	source    string
	now       func() time.Time
	newID     func() string
}

// NewCloudEvents creates a CloudEvents formatter. Empty attributes fall
// back to the defaults.
func NewCloudEvents(eventType, eventSource string) *CloudEvents {
	if eventType == "" {
		eventType = DefaultEventType
	}
	if eventSource == "" {
		eventSource = DefaultEventSource
	}
	return &CloudEvents{
		eventType: eventType,
		source:    eventSource,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Format encodes payload as a single-line JSON event.
func (c *CloudEvents) Format(payload []byte) ([]byte, error) {
	event := cloudevents.NewEvent()
	event.SetSpecVersion(cloudevents.VersionV1)
	event.SetID(c.newID())
	event.SetType(c.eventType)
	event.SetSource(c.source)
	event.SetTime(c.now())

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		var compact bytes.Buffer
		if err := json.Compact(&compact, trimmed); err != nil {
			return nil, fmt.Errorf("failed to compact json payload: %w", err)
		}
		if err := event.SetData(cloudevents.ApplicationJSON, json.RawMessage(compact.Bytes())); err != nil {
			return nil, fmt.Errorf("failed to set event data: %w", err)
		}
	} else {
		if err := event.SetData(cloudevents.TextPlain, string(payload)); err != nil {
			return nil, fmt.Errorf("failed to set event data: %w", err)
		}
	}

	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cloud event: %w", err)
	}

	out, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cloud event: %w", err)
	}
	return out, nil
}

// NewFormatter returns the formatter for format.
func NewFormatter(format, eventType, eventSource string) (Formatter, error) {
	switch format {
	case "", FormatRaw:
		return Raw{}, nil
	case FormatCloudEvents:
		return NewCloudEvents(eventType, eventSource), nil
	}
	return nil, fmt.Errorf("unsupported record format: %s", format)
}

// Emit returns an emit function that formats each payload before
// passing it to next. Formatting failures are returned to the source.
func Emit(f Formatter, next source.EmitFunc) source.EmitFunc {
	if _, ok := f.(Raw); ok {
		return next
	}
	return func(payload []byte) error {
		record, err := f.Format(payload)
		if err != nil {
			return err
		}
		return next(record)
	}
}
