package dto

import "github.com/google/uuid"

type VisitEventResponse struct {
	ID          uuid.UUID `json:"id"`
	VisitorID   uuid.UUID `json:"visitor_id"`
	StreamID    uuid.UUID `json:"stream_id"`
	Kind        string    `json:"kind"` // entry, exit
	Timestamp   string    `json:"timestamp"`
	SnapshotURL string    `json:"snapshot_url,omitempty"`
	CreatedAt   string    `json:"created_at"`
}

type VisitEventListResponse struct {
	Events []VisitEventResponse `json:"events"`
	Total  int                  `json:"total"`
}

// WSEvent is a WebSocket message for real-time visit delivery.
type WSEvent struct {
	Type     string             `json:"type"` // visit_entry, visit_exit, stream_status
	StreamID uuid.UUID          `json:"stream_id"`
	Data     VisitEventResponse `json:"data,omitempty"`
	Status   string             `json:"status,omitempty"`
}
