// Package storage delivers committed settlement events to external systems.
package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/events"
)

// FanOut publishes every batch to each of its sinks in order. A failing sink
// does not stop delivery to the others.
type FanOut struct {
	sinks  []events.Sink
	logger *zap.Logger
}

// NewFanOut creates a sink writing to sinks.
func NewFanOut(logger *zap.Logger, sinks ...events.Sink) *FanOut {
	return &FanOut{sinks: sinks, logger: logger}
}

// Add registers another sink.
func (f *FanOut) Add(sink events.Sink) {
	f.sinks = append(f.sinks, sink)
}

// Publish implements events.Sink.
func (f *FanOut) Publish(ctx context.Context, evs []events.Event) error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Publish(ctx, evs); err != nil {
			f.logger.Warn("sink-publish-failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (f *FanOut) Close() error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ events.Sink = (*FanOut)(nil)
	_ events.Sink = (*ConsoleSink)(nil)
	_ events.Sink = (*PostgresSink)(nil)
	_ events.Sink = (*NATSPublisher)(nil)
)
