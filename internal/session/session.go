// Package session binds the ephemeral track identifiers produced by a
// short-term face tracker to persistent visitor identities, and turns the
// noisy per-frame signal into exactly one entry and one exit event per
// continuous visit. Tracker ID churn, missed detections, and brief occlusions
// are absorbed by re-identification plus an exit grace period that cancels
// when the visitor reappears.
package session

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/visitord/internal/observability"
)

// EventKind distinguishes entry from exit events.
type EventKind string

const (
	EventEntry EventKind = "entry"
	EventExit  EventKind = "exit"
)

// Event is one visit boundary crossing. Append-only once recorded.
type Event struct {
	Visitor   uuid.UUID
	Kind      EventKind
	Timestamp time.Time
	Crop      image.Image
}

// EventSink receives entry/exit events. Delivery is at-most-once: a failed
// Record is logged and dropped, never retried, and the tracker's visit state
// advances as if it succeeded.
type EventSink interface {
	Record(ctx context.Context, ev Event) error
}

// Observation is one (binding, crop) pair reported by the upstream
// detector/tracker for the current frame.
type Observation struct {
	TrackID int64
	Crop    image.Image
}

// Tracker is the per-stream visit session state machine. All per-frame state
// (track registry, debounce buffer, entered set) is owned exclusively by the
// Tracker and mutated only inside ProcessFrame, under a single-writer mutex:
// frame updates for one stream never interleave.
type Tracker struct {
	mu       sync.Mutex
	streamID uuid.UUID

	registry *Registry
	pending  *DebounceBuffer
	// visitors with an open (entered, not yet exited) visit
	entered map[uuid.UUID]struct{}

	sink        EventSink
	exitTimeout time.Duration
	now         func() time.Time
}

// NewTracker creates a session tracker for one video stream. exitTimeout is
// how long a visitor must stay out of frame before an exit is logged.
func NewTracker(streamID uuid.UUID, resolver Resolver, sink EventSink, exitTimeout time.Duration) *Tracker {
	return &Tracker{
		streamID:    streamID,
		registry:    NewRegistry(resolver),
		pending:     NewDebounceBuffer(),
		entered:     make(map[uuid.UUID]struct{}),
		sink:        sink,
		exitTimeout: exitTimeout,
		now:         time.Now,
	}
}

// ProcessFrame applies one frame's full set of observations. The frame may be
// empty — disappearances and exit expiries are still processed. Entry and
// cancel handling runs before churn reconciliation and the expiry sweep, so a
// visitor whose binding changes across consecutive frames never produces a
// spurious exit/re-entry pair.
func (t *Tracker) ProcessFrame(ctx context.Context, observations []Observation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()

	// 1. Resolve the current frame. Bindings without a usable crop, or whose
	// resolution fails, are treated as absent for this frame and retried the
	// next time the tracker reports them.
	current := make(map[int64]struct{}, len(observations))
	visible := make(map[uuid.UUID]struct{}, len(observations))
	for _, obs := range observations {
		if obs.Crop == nil {
			continue
		}
		visitor, err := t.registry.Resolve(ctx, obs.TrackID, obs.Crop)
		if err != nil {
			if !errors.Is(err, ErrNoUsableFace) {
				slog.Warn("resolve track binding",
					"stream_id", t.streamID, "track_id", obs.TrackID, "error", err)
			}
			continue
		}
		current[obs.TrackID] = struct{}{}
		visible[visitor] = struct{}{}
	}

	// 2. Entry dedup. Reappearance voids a pending departure; a first
	// sighting this visit logs exactly one entry.
	for visitor := range visible {
		if t.pending.Cancel(visitor) {
			slog.Debug("pending exit cancelled", "stream_id", t.streamID, "visitor_id", visitor)
		}
		if _, open := t.entered[visitor]; open {
			continue
		}
		crop, _ := t.registry.CropFor(visitor)
		t.emit(ctx, Event{Visitor: visitor, Kind: EventEntry, Timestamp: now, Crop: crop})
		t.entered[visitor] = struct{}{}
	}

	// 3. Track churn reconciliation. A lost binding starts the exit timer
	// only when no other binding still backs the same visitor.
	for _, binding := range t.registry.Bindings() {
		if _, present := current[binding]; present {
			continue
		}
		visitor, lastCrop, ok := t.registry.Remove(binding)
		if !ok {
			continue
		}
		if _, stillVisible := visible[visitor]; stillVisible {
			continue
		}
		t.pending.MarkPending(visitor, lastCrop, now, t.exitTimeout)
		slog.Debug("visitor left frame, exit pending",
			"stream_id", t.streamID, "visitor_id", visitor, "timeout", t.exitTimeout)
	}

	// 4. Exit expiry sweep. Closing the visit permits a fresh entry on the
	// next sighting.
	for _, expired := range t.pending.SweepExpired(now) {
		t.emit(ctx, Event{Visitor: expired.Visitor, Kind: EventExit, Timestamp: now, Crop: expired.LastCrop})
		delete(t.entered, expired.Visitor)
	}

	stream := t.streamID.String()
	observability.ActiveTracks.WithLabelValues(stream).Set(float64(t.registry.Len()))
	observability.PendingExits.WithLabelValues(stream).Set(float64(t.pending.Len()))
}

// VisibleCount returns the number of currently bound tracks.
func (t *Tracker) VisibleCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registry.Len()
}

func (t *Tracker) emit(ctx context.Context, ev Event) {
	if err := t.sink.Record(ctx, ev); err != nil {
		// at-most-once: dropped, not retried, state already advanced
		slog.Error("record visit event",
			"stream_id", t.streamID, "visitor_id", ev.Visitor, "kind", ev.Kind, "error", err)
		return
	}
	switch ev.Kind {
	case EventEntry:
		observability.VisitEntries.WithLabelValues(t.streamID.String()).Inc()
	case EventExit:
		observability.VisitExits.WithLabelValues(t.streamID.String()).Inc()
	}
}
