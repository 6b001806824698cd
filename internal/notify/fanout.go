package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/timelock/internal/model"
)

var publishFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "timelock_notification_failures_total",
		Help: "Notifications a sink failed to accept.",
	},
	[]string{"sink"},
)

func init() {
	prometheus.MustRegister(publishFailures)
}

// Sink is a named Publisher.
type Sink struct {
	Name      string
	Publisher Publisher
}

// Fanout publishes every notification to each sink in order. A failing sink
// does not stop delivery to the others.
type Fanout struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewFanout creates a fanout over sinks. Sinks with a nil Publisher are
// skipped.
func NewFanout(logger *slog.Logger, sinks ...Sink) *Fanout {
	f := &Fanout{logger: logger}
	for _, s := range sinks {
		if s.Publisher == nil {
			continue
		}
		f.sinks = append(f.sinks, s)
		publishFailures.WithLabelValues(s.Name)
	}
	return f
}

// Sinks returns the names of the configured sinks.
func (f *Fanout) Sinks() []string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name
	}
	return names
}

// Publish implements Publisher. It returns the joined errors of every sink
// that failed.
func (f *Fanout) Publish(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publisher.Publish(ctx, n); err != nil {
			publishFailures.WithLabelValues(s.Name).Inc()
			if f.logger != nil {
				f.logger.Warn("notification delivery failed",
					"sink", s.Name,
					"notification_id", n.ID,
					"action", n.Action(),
					"operation_id", n.OperationID,
					"error", err,
				)
			}
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
