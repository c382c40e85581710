package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/visitord/internal/models"
	"github.com/your-org/visitord/internal/storage"
	"github.com/your-org/visitord/pkg/dto"
)

type EventHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
}

func NewEventHandler(db *storage.PostgresStore, minio *storage.MinIOStore) *EventHandler {
	return &EventHandler{db: db, minio: minio}
}

// List returns visit events, newest first, filtered by stream, visitor, kind
// and time range.
func (h *EventHandler) List(c *gin.Context) {
	var filter storage.VisitEventFilter

	if sidStr := c.Query("stream_id"); sidStr != "" {
		id, err := uuid.Parse(sidStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stream_id"})
			return
		}
		filter.StreamID = &id
	}
	if vidStr := c.Query("visitor_id"); vidStr != "" {
		id, err := uuid.Parse(vidStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visitor_id"})
			return
		}
		filter.VisitorID = &id
	}
	if kindStr := c.Query("kind"); kindStr != "" {
		kind := models.EventKind(kindStr)
		if kind != models.EventKindEntry && kind != models.EventKindExit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be entry or exit"})
			return
		}
		filter.Kind = &kind
	}
	if fromStr := c.Query("from"); fromStr != "" {
		if t, err := time.Parse(time.RFC3339, fromStr); err == nil {
			filter.From = &t
		}
	}
	if toStr := c.Query("to"); toStr != "" {
		if t, err := time.Parse(time.RFC3339, toStr); err == nil {
			filter.To = &t
		}
	}

	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, total, err := h.db.QueryVisitEvents(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.VisitEventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, EventToResponse(&ev))
	}

	c.JSON(http.StatusOK, dto.VisitEventListResponse{Events: resp, Total: total})
}

// ListForStream returns visit events for one stream.
func (h *EventHandler) ListForStream(c *gin.Context) {
	streamID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid stream id"})
		return
	}

	filter := storage.VisitEventFilter{StreamID: &streamID}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, total, err := h.db.QueryVisitEvents(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.VisitEventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, EventToResponse(&ev))
	}

	c.JSON(http.StatusOK, dto.VisitEventListResponse{Events: resp, Total: total})
}

// Snapshot proxies the face snapshot image from MinIO.
func (h *EventHandler) Snapshot(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	ev, err := h.db.GetVisitEvent(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	if ev.SnapshotKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "event has no snapshot"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), ev.SnapshotKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

// EventToResponse converts a stored event to its API shape.
func EventToResponse(ev *models.VisitEvent) dto.VisitEventResponse {
	r := dto.VisitEventResponse{
		ID:        ev.ID,
		VisitorID: ev.VisitorID,
		StreamID:  ev.StreamID,
		Kind:      string(ev.Kind),
		Timestamp: ev.Timestamp.Format(time.RFC3339),
		CreatedAt: ev.CreatedAt.Format(time.RFC3339),
	}
	if ev.SnapshotKey != "" {
		r.SnapshotURL = "/v1/events/" + ev.ID.String() + "/snapshot"
	}
	return r
}
