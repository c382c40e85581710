package models

import (
	"time"

	"github.com/google/uuid"
)

// EventKind is the visit boundary a VisitEvent marks.
type EventKind string

const (
	EventKindEntry EventKind = "entry"
	EventKindExit  EventKind = "exit"
)

// VisitEvent is one recorded entry or exit. Rows are append-only; they are
// never mutated or deleted by the core.
type VisitEvent struct {
	ID          uuid.UUID `json:"id" db:"id"`
	VisitorID   uuid.UUID `json:"visitor_id" db:"visitor_id"`
	StreamID    uuid.UUID `json:"stream_id" db:"stream_id"`
	Kind        EventKind `json:"kind" db:"kind"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
	SnapshotKey string    `json:"snapshot_key" db:"snapshot_key"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// FrameTask is the message published to NATS for worker processing.
type FrameTask struct {
	StreamID  uuid.UUID `json:"stream_id"`
	FrameID   uuid.UUID `json:"frame_id"`
	Timestamp time.Time `json:"timestamp"`
	FrameRef  string    `json:"frame_ref"` // MinIO object key
	Width     int       `json:"width"`
	Height    int       `json:"height"`
}

// VisitNotice is published by the worker for each emitted entry/exit event,
// for live delivery to API clients. The durable record is the VisitEvent row.
type VisitNotice struct {
	EventID     uuid.UUID `json:"event_id"`
	VisitorID   uuid.UUID `json:"visitor_id"`
	StreamID    uuid.UUID `json:"stream_id"`
	Kind        EventKind `json:"kind"`
	Timestamp   time.Time `json:"timestamp"`
	SnapshotKey string    `json:"snapshot_key"`
}
