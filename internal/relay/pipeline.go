package relay

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	eventpkg "github.com/visiona/vlmrelay/internal/relay/event"
	jsoncodec "github.com/visiona/vlmrelay/internal/relay/jsoncodec"
	loggingpkg "github.com/visiona/vlmrelay/internal/relay/logging"
	streampkg "github.com/visiona/vlmrelay/internal/relay/stream"
)

// handleEntry is the pipeline body run by the cursor reader for every
// upstream entry, strictly in log order: normalize, encode once, fan out. It
// never fails; malformed records fall back to defaults and delivery failures
// only drop the affected subscriber.
func (s *Service) handleEntry(ctx context.Context, entry streampkg.Entry) {
	tracer := otel.Tracer("vlmrelay-pipeline-tracer")
	_, span := tracer.Start(ctx, "ProcessEntry")
	defer span.End()

	if issues := eventpkg.ParseIssues(entry.Fields); len(issues) > 0 {
		s.Logger.Warn("record fields fell back to defaults", loggingpkg.LogFields{
			"message_id": entry.ID,
			"fields":     entry.Fields,
			"issues":     issues,
		})
	}

	result := eventpkg.Normalize(entry.Fields, entry.ID)
	span.SetAttributes(
		attribute.String("entry.message_id", result.MessageID),
		attribute.Int("entry.frame_number", result.FrameNumber),
		attribute.Int("entry.source_id", result.SourceID),
	)

	payload, err := jsoncodec.MarshalString(eventpkg.NewFrame(result))
	if err != nil {
		// Unreachable for a fully populated result; counted as processed so
		// the cursor still advances past the entry.
		s.Logger.Error("failed to encode event", err, loggingpkg.LogFields{"message_id": entry.ID})
		s.processed.Add(1)
		s.metrics.RecordEvent(0, 0)
		return
	}

	delivered, dropped := s.registry.Broadcast(payload)
	s.processed.Add(1)
	s.metrics.RecordEvent(delivered, dropped)
	span.SetAttributes(attribute.Int("broadcast.delivered", delivered))

	s.Logger.Debug("processed VLM result", loggingpkg.LogFields{
		"message_id": result.MessageID,
		"frame":      result.FrameNumber,
		"source":     result.SourceID,
		"delivered":  delivered,
	})
}
