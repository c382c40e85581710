package models

import (
	"time"

	"github.com/google/uuid"
)

// Visitor is a persistent identity issued on first sighting. The identity is
// immutable once issued and never reused for a different person.
type Visitor struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Embedding  []float32 `json:"-" db:"embedding"`
	FirstSeen  time.Time `json:"first_seen" db:"first_seen"`
	LastSeen   time.Time `json:"last_seen" db:"last_seen"`
	VisitCount int       `json:"visit_count" db:"visit_count"`
}
