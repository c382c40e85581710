package session

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faceCrop is a test crop that carries the identity it should resolve to.
// A Nil identity means the crop is unusable.
type faceCrop struct {
	image.Image
	id uuid.UUID
}

func cropOf(id uuid.UUID) faceCrop {
	return faceCrop{Image: image.NewRGBA(image.Rect(0, 0, 8, 8)), id: id}
}

// identityResolver reads the identity straight off the test crop.
type identityResolver struct {
	calls int
}

func (r *identityResolver) Identify(_ context.Context, crop image.Image) (uuid.UUID, error) {
	r.calls++
	fc, ok := crop.(faceCrop)
	if !ok || fc.id == uuid.Nil {
		return uuid.Nil, ErrNoUsableFace
	}
	return fc.id, nil
}

// captureSink records emitted events and can be told to fail.
type captureSink struct {
	events []Event
	err    error
}

func (s *captureSink) Record(_ context.Context, ev Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) kinds(visitor uuid.UUID) []EventKind {
	var kinds []EventKind
	for _, ev := range s.events {
		if ev.Visitor == visitor {
			kinds = append(kinds, ev.Kind)
		}
	}
	return kinds
}

// testClock drives the tracker's time source frame by frame.
type testClock struct {
	now time.Time
}

func (c *testClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestTracker(timeout time.Duration) (*Tracker, *captureSink, *testClock, *identityResolver) {
	resolver := &identityResolver{}
	sink := &captureSink{}
	tr := NewTracker(uuid.New(), resolver, sink, timeout)
	clock := &testClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	tr.now = func() time.Time { return clock.now }
	return tr, sink, clock, resolver
}

// One visitor walks in, stays for two seconds of frames, leaves, and the exit
// is logged once the grace period passes. A later sighting opens a new visit.
func TestTrackerVisitLifecycle(t *testing.T) {
	const frameInterval = 100 * time.Millisecond
	tr, sink, clock, _ := newTestTracker(3 * time.Second)
	visitor := uuid.New()
	ctx := context.Background()

	// Visible for frames 0..20.
	for i := 0; i <= 20; i++ {
		tr.ProcessFrame(ctx, []Observation{{TrackID: 1, Crop: cropOf(visitor)}})
		clock.advance(frameInterval)
	}
	require.Equal(t, []EventKind{EventEntry}, sink.kinds(visitor), "exactly one entry while continuously visible")

	// Absent from frame 21 on. The grace deadline is 3s after the first
	// absent frame; 30 more frames stay strictly before it.
	for i := 0; i < 30; i++ {
		tr.ProcessFrame(ctx, nil)
		clock.advance(frameInterval)
	}
	require.Equal(t, []EventKind{EventEntry}, sink.kinds(visitor), "no exit before the grace period elapses")

	// This frame lands exactly on the deadline.
	tr.ProcessFrame(ctx, nil)

	kinds := sink.kinds(visitor)
	require.Equal(t, []EventKind{EventEntry, EventExit}, kinds)
	assert.True(t, sink.events[1].Timestamp.After(sink.events[0].Timestamp), "entry precedes exit")

	// A fresh sighting under a new binding opens a second visit.
	tr.ProcessFrame(ctx, []Observation{{TrackID: 2, Crop: cropOf(visitor)}})
	assert.Equal(t, []EventKind{EventEntry, EventExit, EventEntry}, sink.kinds(visitor))
}

func TestTrackerReappearanceCancelsPendingExit(t *testing.T) {
	tr, sink, clock, _ := newTestTracker(3 * time.Second)
	visitor := uuid.New()
	ctx := context.Background()

	tr.ProcessFrame(ctx, []Observation{{TrackID: 1, Crop: cropOf(visitor)}})
	clock.advance(100 * time.Millisecond)

	// Gone for one second of frames, then back under a new binding.
	for i := 0; i < 10; i++ {
		tr.ProcessFrame(ctx, nil)
		clock.advance(100 * time.Millisecond)
	}
	tr.ProcessFrame(ctx, []Observation{{TrackID: 2, Crop: cropOf(visitor)}})

	// Long quiet period afterwards with the visitor visible: no exit may fire
	// from the cancelled pending entry.
	for i := 0; i < 50; i++ {
		clock.advance(100 * time.Millisecond)
		tr.ProcessFrame(ctx, []Observation{{TrackID: 2, Crop: cropOf(visitor)}})
	}

	assert.Equal(t, []EventKind{EventEntry}, sink.kinds(visitor),
		"reappearance within the grace period must void the exit and not re-enter")
}

// The short-term tracker swaps bindings for the same face between consecutive
// frames. The visit must stay open with no exit/entry pair.
func TestTrackerBindingChurnIsTransparent(t *testing.T) {
	tr, sink, clock, _ := newTestTracker(3 * time.Second)
	visitor := uuid.New()
	ctx := context.Background()

	tr.ProcessFrame(ctx, []Observation{{TrackID: 1, Crop: cropOf(visitor)}})
	clock.advance(100 * time.Millisecond)

	// Same frame: old binding gone, new binding resolves to the same visitor.
	tr.ProcessFrame(ctx, []Observation{{TrackID: 2, Crop: cropOf(visitor)}})
	clock.advance(100 * time.Millisecond)
	tr.ProcessFrame(ctx, []Observation{{TrackID: 2, Crop: cropOf(visitor)}})

	assert.Equal(t, []EventKind{EventEntry}, sink.kinds(visitor))
	assert.Equal(t, 1, tr.VisibleCount())
}

func TestTrackerDoubleTrackedFace(t *testing.T) {
	tr, sink, clock, _ := newTestTracker(3 * time.Second)
	visitor := uuid.New()
	ctx := context.Background()

	// Two bindings over the same face in one frame.
	tr.ProcessFrame(ctx, []Observation{
		{TrackID: 1, Crop: cropOf(visitor)},
		{TrackID: 2, Crop: cropOf(visitor)},
	})
	clock.advance(100 * time.Millisecond)

	// One binding drops while the other persists: no exit timer may start.
	tr.ProcessFrame(ctx, []Observation{{TrackID: 2, Crop: cropOf(visitor)}})
	for i := 0; i < 50; i++ {
		clock.advance(100 * time.Millisecond)
		tr.ProcessFrame(ctx, []Observation{{TrackID: 2, Crop: cropOf(visitor)}})
	}

	assert.Equal(t, []EventKind{EventEntry}, sink.kinds(visitor))
}

func TestTrackerMultipleVisitorsIndependent(t *testing.T) {
	tr, sink, clock, _ := newTestTracker(1 * time.Second)
	alice := uuid.New()
	bob := uuid.New()
	ctx := context.Background()

	tr.ProcessFrame(ctx, []Observation{
		{TrackID: 1, Crop: cropOf(alice)},
		{TrackID: 2, Crop: cropOf(bob)},
	})
	clock.advance(100 * time.Millisecond)

	// Bob leaves; Alice stays.
	for i := 0; i < 15; i++ {
		tr.ProcessFrame(ctx, []Observation{{TrackID: 1, Crop: cropOf(alice)}})
		clock.advance(100 * time.Millisecond)
	}

	assert.Equal(t, []EventKind{EventEntry}, sink.kinds(alice))
	assert.Equal(t, []EventKind{EventEntry, EventExit}, sink.kinds(bob))
}

// A crop the embedder cannot use makes the binding count as absent for that
// frame only; it must not open a visit or break an ongoing one permanently.
func TestTrackerUnusableCrop(t *testing.T) {
	tr, sink, clock, resolver := newTestTracker(3 * time.Second)
	visitor := uuid.New()
	ctx := context.Background()

	// First sighting has no usable face: nothing happens.
	tr.ProcessFrame(ctx, []Observation{{TrackID: 1, Crop: cropOf(uuid.Nil)}})
	assert.Empty(t, sink.events)
	assert.Equal(t, 0, tr.VisibleCount())
	clock.advance(100 * time.Millisecond)

	// Next frame the face is usable.
	tr.ProcessFrame(ctx, []Observation{{TrackID: 1, Crop: cropOf(visitor)}})
	assert.Equal(t, []EventKind{EventEntry}, sink.kinds(visitor))

	// A nil crop is skipped entirely, without a resolver call.
	calls := resolver.calls
	clock.advance(100 * time.Millisecond)
	tr.ProcessFrame(ctx, []Observation{{TrackID: 5, Crop: nil}})
	assert.Equal(t, calls, resolver.calls)
}

// Delivery is at-most-once: a sink failure is dropped and the visit state
// advances as if the event had been recorded.
func TestTrackerSinkFailureAdvancesState(t *testing.T) {
	tr, sink, clock, _ := newTestTracker(3 * time.Second)
	visitor := uuid.New()
	ctx := context.Background()

	sink.err = errors.New("database down")
	tr.ProcessFrame(ctx, []Observation{{TrackID: 1, Crop: cropOf(visitor)}})
	assert.Empty(t, sink.events)

	// Sink recovers, visitor still visible: the entry is NOT replayed.
	sink.err = nil
	clock.advance(100 * time.Millisecond)
	tr.ProcessFrame(ctx, []Observation{{TrackID: 1, Crop: cropOf(visitor)}})
	assert.Empty(t, sink.events)

	// The visit still closes normally.
	clock.advance(100 * time.Millisecond)
	for i := 0; i < 40; i++ {
		tr.ProcessFrame(ctx, nil)
		clock.advance(100 * time.Millisecond)
	}
	assert.Equal(t, []EventKind{EventExit}, sink.kinds(visitor))
}

func TestTrackerEntryEventCarriesCrop(t *testing.T) {
	tr, sink, _, _ := newTestTracker(3 * time.Second)
	visitor := uuid.New()

	crop := cropOf(visitor)
	tr.ProcessFrame(context.Background(), []Observation{{TrackID: 1, Crop: crop}})

	require.Len(t, sink.events, 1)
	assert.Equal(t, EventEntry, sink.events[0].Kind)
	assert.NotNil(t, sink.events[0].Crop)
}

func TestTrackerExitEventCarriesLastCrop(t *testing.T) {
	tr, sink, clock, _ := newTestTracker(1 * time.Second)
	visitor := uuid.New()
	ctx := context.Background()

	first := cropOf(visitor)
	last := cropOf(visitor)
	tr.ProcessFrame(ctx, []Observation{{TrackID: 1, Crop: first}})
	clock.advance(100 * time.Millisecond)
	tr.ProcessFrame(ctx, []Observation{{TrackID: 1, Crop: last}})
	clock.advance(100 * time.Millisecond)

	for i := 0; i < 15; i++ {
		tr.ProcessFrame(ctx, nil)
		clock.advance(100 * time.Millisecond)
	}

	kinds := sink.kinds(visitor)
	require.Equal(t, []EventKind{EventEntry, EventExit}, kinds)
	exit := sink.events[1]
	assert.Equal(t, last, exit.Crop.(faceCrop), "exit snapshot is the freshest crop seen before disappearance")
}
