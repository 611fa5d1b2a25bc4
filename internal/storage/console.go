package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/events"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// ConsoleSink pretty-prints committed events.
type ConsoleSink struct {
	out    io.Writer
	logger *zap.Logger
}

// NewConsoleSink creates a sink printing to stdout.
func NewConsoleSink(logger *zap.Logger) *ConsoleSink {
	return NewConsoleSinkTo(os.Stdout, logger)
}

// NewConsoleSinkTo creates a sink printing to out.
func NewConsoleSinkTo(out io.Writer, logger *zap.Logger) *ConsoleSink {
	logger.Info("console-sink-initialized")
	return &ConsoleSink{out: out, logger: logger}
}

// Publish prints one block per unit of work.
func (c *ConsoleSink) Publish(_ context.Context, evs []events.Event) error {
	if len(evs) == 0 {
		return nil
	}

	fmt.Fprintln(c.out, "\n"+rule)
	fmt.Fprintf(c.out, "SETTLED %s (%d events) at %s\n",
		evs[0].Operation, len(evs), evs[0].CommittedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(c.out, rule)
	for _, e := range evs {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			SinkEventsTotal.WithLabelValues("console", "failed").Add(float64(len(evs)))
			return fmt.Errorf("encode %s payload: %w", e.Type, err)
		}
		fmt.Fprintf(c.out, "  #%d %-24s %s\n", e.Index, e.Type, payload)
	}
	fmt.Fprintln(c.out, rule)

	SinkEventsTotal.WithLabelValues("console", "ok").Add(float64(len(evs)))
	return nil
}

// Close is a no-op for the console sink.
func (c *ConsoleSink) Close() error {
	c.logger.Info("closing-console-sink")
	return nil
}
