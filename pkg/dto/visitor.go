package dto

import "github.com/google/uuid"

type VisitorResponse struct {
	ID         uuid.UUID `json:"id"`
	FirstSeen  string    `json:"first_seen"`
	LastSeen   string    `json:"last_seen"`
	VisitCount int       `json:"visit_count"`
}

type VisitorListResponse struct {
	Visitors []VisitorResponse `json:"visitors"`
	Total    int               `json:"total"`
}
