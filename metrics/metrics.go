// Package metrics exposes account activity as Prometheus counters.
package metrics

import (
	"context"
	"errors"

	"github.com/goliatone/go-account"
	"github.com/prometheus/client_golang/prometheus"
)

// Sink counts activity events by type. It implements account.ActivitySink.
type Sink struct {
	events *prometheus.CounterVec
}

var _ account.ActivitySink = (*Sink)(nil)

// NewSink registers the activity counter with reg and returns a Sink. A
// counter already registered by another Sink is reused.
func NewSink(reg prometheus.Registerer) (*Sink, error) {
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_activity_events_total",
			Help: "Total number of account activity events",
		},
		[]string{"event"},
	)

	if err := reg.Register(events); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		events = existing
	}

	return &Sink{events: events}, nil
}

// Record implements account.ActivitySink
func (s *Sink) Record(_ context.Context, event account.ActivityEvent) error {
	s.events.WithLabelValues(string(event.EventType)).Inc()
	return nil
}
