package session

import (
	"image"
	"time"

	"github.com/google/uuid"
)

// pendingExit holds the exit deadline and the crop to attach to the exit
// event if the deadline passes.
type pendingExit struct {
	deadline time.Time
	lastCrop image.Image
}

// DebounceBuffer holds visitors whose last track binding disappeared. Each
// entry carries a deadline; if the visitor does not reappear before it, the
// entry is promoted to an exit event by SweepExpired. Not safe for concurrent
// use — the owning Tracker serializes access.
type DebounceBuffer struct {
	pending map[uuid.UUID]pendingExit
}

func NewDebounceBuffer() *DebounceBuffer {
	return &DebounceBuffer{pending: make(map[uuid.UUID]pendingExit)}
}

// MarkPending creates or overwrites the visitor's pending exit with deadline
// now+timeout. The crop becomes the exit-time snapshot.
func (b *DebounceBuffer) MarkPending(visitor uuid.UUID, crop image.Image, now time.Time, timeout time.Duration) {
	b.pending[visitor] = pendingExit{
		deadline: now.Add(timeout),
		lastCrop: crop,
	}
}

// Cancel removes the visitor's pending exit. Reports whether an entry was
// present; calling it for an absent visitor is a no-op.
func (b *DebounceBuffer) Cancel(visitor uuid.UUID) bool {
	if _, ok := b.pending[visitor]; !ok {
		return false
	}
	delete(b.pending, visitor)
	return true
}

// Contains reports whether the visitor has a pending exit.
func (b *DebounceBuffer) Contains(visitor uuid.UUID) bool {
	_, ok := b.pending[visitor]
	return ok
}

// ExpiredExit is one pending exit whose deadline has passed.
type ExpiredExit struct {
	Visitor  uuid.UUID
	LastCrop image.Image
	Deadline time.Time
}

// SweepExpired removes and returns every pending exit with deadline <= now.
// Order across visitors is unspecified; each pending period yields exactly
// one expiry.
func (b *DebounceBuffer) SweepExpired(now time.Time) []ExpiredExit {
	var expired []ExpiredExit
	for visitor, p := range b.pending {
		if p.deadline.After(now) {
			continue
		}
		expired = append(expired, ExpiredExit{
			Visitor:  visitor,
			LastCrop: p.lastCrop,
			Deadline: p.deadline,
		})
		delete(b.pending, visitor)
	}
	return expired
}

// Len returns the number of visitors awaiting exit confirmation.
func (b *DebounceBuffer) Len() int {
	return len(b.pending)
}
