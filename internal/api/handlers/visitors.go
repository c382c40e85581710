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

type VisitorHandler struct {
	db *storage.PostgresStore
}

func NewVisitorHandler(db *storage.PostgresStore) *VisitorHandler {
	return &VisitorHandler{db: db}
}

func (h *VisitorHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	visitors, total, err := h.db.ListVisitors(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.VisitorResponse, 0, len(visitors))
	for _, v := range visitors {
		resp = append(resp, visitorToResponse(&v))
	}

	c.JSON(http.StatusOK, dto.VisitorListResponse{Visitors: resp, Total: total})
}

func (h *VisitorHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visitor id"})
		return
	}

	v, err := h.db.GetVisitor(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if v == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "visitor not found"})
		return
	}

	c.JSON(http.StatusOK, visitorToResponse(v))
}

// Delete removes a visitor and, via cascade, their visit history.
func (h *VisitorHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visitor id"})
		return
	}

	if err := h.db.DeleteVisitor(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func visitorToResponse(v *models.Visitor) dto.VisitorResponse {
	return dto.VisitorResponse{
		ID:         v.ID,
		FirstSeen:  v.FirstSeen.Format(time.RFC3339),
		LastSeen:   v.LastSeen.Format(time.RFC3339),
		VisitCount: v.VisitCount,
	}
}
