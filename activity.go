package account

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess   ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure   ActivityEventType = "auth.login.failure"
	ActivityEventRefreshSuccess ActivityEventType = "auth.refresh.success"
	ActivityEventRefreshFailure ActivityEventType = "auth.refresh.failure"
	ActivityEventTokenRejected  ActivityEventType = "auth.token.rejected"
	ActivityEventUserRegistered ActivityEventType = "user.registered"
	ActivityEventUserUpdated    ActivityEventType = "user.updated"
	ActivityEventUserRemoved    ActivityEventType = "user.removed"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Identity   string
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiActivitySink fans events out to every sink, in order.
type MultiActivitySink []ActivitySink

// Record implements ActivitySink. The first error is returned after all
// sinks ran.
func (m MultiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

func emitActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("activity sink record error: %v", err)
	}
}
