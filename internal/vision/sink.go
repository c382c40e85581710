package vision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/visitord/internal/models"
	"github.com/your-org/visitord/internal/queue"
	"github.com/your-org/visitord/internal/session"
	"github.com/your-org/visitord/internal/storage"
)

// VisitSink persists visit events and fans them out: snapshot to MinIO,
// durable row to Postgres, live notice to NATS. It implements
// session.EventSink for one stream.
//
// The Postgres row is the source of truth. A snapshot upload failure degrades
// the event (empty snapshot key); a publish failure only loses the live
// notice. Only a failed row insert fails Record.
type VisitSink struct {
	streamID uuid.UUID
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	producer *queue.Producer
}

func NewVisitSink(streamID uuid.UUID, db *storage.PostgresStore, minio *storage.MinIOStore, producer *queue.Producer) *VisitSink {
	return &VisitSink{
		streamID: streamID,
		db:       db,
		minio:    minio,
		producer: producer,
	}
}

// Record stores one entry/exit event.
func (s *VisitSink) Record(ctx context.Context, ev session.Event) error {
	var snapshotKey string
	if ev.Crop != nil {
		data := encodeJPEG(ev.Crop, 85)
		key, err := s.minio.SaveSnapshot(ctx, data, ev.Visitor, string(ev.Kind), ev.Timestamp)
		if err != nil {
			slog.Warn("save visit snapshot",
				"stream_id", s.streamID, "visitor_id", ev.Visitor, "error", err)
		} else {
			snapshotKey = key
		}
	}

	record := &models.VisitEvent{
		ID:          uuid.New(),
		VisitorID:   ev.Visitor,
		StreamID:    s.streamID,
		Kind:        models.EventKind(ev.Kind),
		Timestamp:   ev.Timestamp,
		SnapshotKey: snapshotKey,
	}
	if err := s.db.AppendVisitEvent(ctx, record); err != nil {
		return fmt.Errorf("append visit event: %w", err)
	}

	notice := models.VisitNotice{
		EventID:     record.ID,
		VisitorID:   record.VisitorID,
		StreamID:    record.StreamID,
		Kind:        record.Kind,
		Timestamp:   record.Timestamp,
		SnapshotKey: record.SnapshotKey,
	}
	if err := s.producer.PublishVisit(ctx, s.streamID.String(), notice); err != nil {
		slog.Warn("publish visit notice",
			"stream_id", s.streamID, "event_id", record.ID, "error", err)
	}

	slog.Info("visit event recorded",
		"stream_id", s.streamID, "visitor_id", ev.Visitor, "kind", ev.Kind)
	return nil
}
