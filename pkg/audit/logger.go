package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Logger records audit events. Implementations must not fail the guarded
// operation: logging errors are swallowed after best-effort reporting.
type Logger interface {
	Log(ctx context.Context, event *Event) error
	Close() error
}

// NopLogger discards every event. Useful in tests.
type NopLogger struct{}

func (NopLogger) Log(context.Context, *Event) error { return nil }
func (NopLogger) Close() error                      { return nil }

// LogrusLogger writes audit events to a structured application log. This is
// the fallback when no database logger is configured.
type LogrusLogger struct {
	log *logrus.Logger
}

// NewLogrusLogger creates a logger-backed audit sink.
func NewLogrusLogger(log *logrus.Logger) *LogrusLogger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogrusLogger{log: log}
}

func (l *LogrusLogger) Log(_ context.Context, event *Event) error {
	fields := logrus.Fields{
		"audit":      true,
		"event_type": event.EventType,
		"status":     event.Status,
	}
	if event.UserID != nil {
		fields["user_id"] = *event.UserID
	}
	if event.WorkspaceID != nil {
		fields["workspace_id"] = *event.WorkspaceID
	}
	if event.Action != "" {
		fields["action"] = event.Action
	}
	if event.ResourceType != "" {
		fields["resource_type"] = event.ResourceType
		fields["resource_id"] = event.ResourceID
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}

	entry := l.log.WithFields(fields)
	switch event.Status {
	case StatusDenied, StatusFailure:
		entry.Warn(event.Message)
	default:
		entry.Info(event.Message)
	}
	return nil
}

func (l *LogrusLogger) Close() error { return nil }

// NewEvent builds an event with timestamp and request id populated.
func NewEvent(eventType EventType, status EventStatus) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: uuid.NewString(),
	}
}
