package session

import (
	"image"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebounceBufferMarkAndCancel(t *testing.T) {
	b := NewDebounceBuffer()
	visitor := uuid.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, b.Contains(visitor))
	assert.False(t, b.Cancel(visitor), "cancel of absent visitor must be a no-op")

	b.MarkPending(visitor, nil, now, 3*time.Second)
	assert.True(t, b.Contains(visitor))
	assert.Equal(t, 1, b.Len())

	assert.True(t, b.Cancel(visitor))
	assert.False(t, b.Contains(visitor))
	assert.False(t, b.Cancel(visitor), "second cancel must report nothing removed")
}

func TestDebounceBufferSweepExpired(t *testing.T) {
	b := NewDebounceBuffer()
	early := uuid.New()
	late := uuid.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	crop := image.NewRGBA(image.Rect(0, 0, 4, 4))

	b.MarkPending(early, crop, now, 1*time.Second)
	b.MarkPending(late, nil, now, 10*time.Second)

	// Before any deadline nothing expires.
	assert.Empty(t, b.SweepExpired(now))

	// Deadline is inclusive: exactly now+timeout expires.
	expired := b.SweepExpired(now.Add(1 * time.Second))
	require.Len(t, expired, 1)
	assert.Equal(t, early, expired[0].Visitor)
	assert.Same(t, crop, expired[0].LastCrop.(*image.RGBA))
	assert.Equal(t, now.Add(1*time.Second), expired[0].Deadline)

	// Each pending period yields exactly one expiry.
	assert.Empty(t, b.SweepExpired(now.Add(2*time.Second)))
	assert.Equal(t, 1, b.Len())

	expired = b.SweepExpired(now.Add(10 * time.Second))
	require.Len(t, expired, 1)
	assert.Equal(t, late, expired[0].Visitor)
	assert.Equal(t, 0, b.Len())
}

func TestDebounceBufferRemarkOverwritesDeadline(t *testing.T) {
	b := NewDebounceBuffer()
	visitor := uuid.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	b.MarkPending(visitor, nil, now, 1*time.Second)
	b.MarkPending(visitor, nil, now.Add(500*time.Millisecond), 1*time.Second)

	// The old deadline no longer applies.
	assert.Empty(t, b.SweepExpired(now.Add(1*time.Second)))

	expired := b.SweepExpired(now.Add(1500 * time.Millisecond))
	require.Len(t, expired, 1)
	assert.Equal(t, visitor, expired[0].Visitor)
}
