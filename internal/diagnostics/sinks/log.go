package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/dwellist/internal/diagnostics"
)

// LogSink reports events through the structured logger without keeping the
// body. Useful when no durable location is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Record logs the event metadata.
func (s *LogSink) Record(_ context.Context, evt diagnostics.Event) error {
	s.logger.Warn("diagnostic event",
		zap.String("run_id", evt.RunID),
		zap.String("kind", string(evt.Kind)),
		zap.Stringer("record_id", evt.RecordID),
		zap.String("url", evt.URL),
		zap.String("reason", evt.Reason),
		zap.Int("body_bytes", len(evt.Body)),
	)
	return nil
}
