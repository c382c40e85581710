package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func det(x1, y1, x2, y2 float32) Detection {
	return Detection{BBox: [4]float32{x1, y1, x2, y2}, Confidence: 0.9}
}

func TestTrackerAssignsNewIDs(t *testing.T) {
	tr := NewTracker(1, 0.3)

	faces := tr.Update([]Detection{
		det(0, 0, 100, 100),
		det(300, 300, 400, 400),
	})

	require.Len(t, faces, 2)
	assert.NotEqual(t, faces[0].ID, faces[1].ID)
	assert.Equal(t, 2, tr.Len())
}

func TestTrackerContinuesOverlappingTrack(t *testing.T) {
	tr := NewTracker(1, 0.3)

	first := tr.Update([]Detection{det(0, 0, 100, 100)})
	require.Len(t, first, 1)

	// Slightly shifted box keeps the same binding.
	second := tr.Update([]Detection{det(5, 5, 105, 105)})
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, [4]float32{5, 5, 105, 105}, second[0].BBox)
}

func TestTrackerNewIDAfterGap(t *testing.T) {
	tr := NewTracker(1, 0.3)

	first := tr.Update([]Detection{det(0, 0, 100, 100)})
	require.Len(t, first, 1)

	// Track coasts one frame (maxAge=1), then is dropped.
	assert.Empty(t, tr.Update(nil))
	assert.Equal(t, 1, tr.Len())
	assert.Empty(t, tr.Update(nil))
	assert.Equal(t, 0, tr.Len())

	// A detection at the same spot now opens a fresh binding.
	reappeared := tr.Update([]Detection{det(0, 0, 100, 100)})
	require.Len(t, reappeared, 1)
	assert.NotEqual(t, first[0].ID, reappeared[0].ID)
}

func TestTrackerCoastingTrackRecovers(t *testing.T) {
	tr := NewTracker(2, 0.3)

	first := tr.Update([]Detection{det(0, 0, 100, 100)})
	require.Len(t, first, 1)

	// Missed for one frame, back on the next: binding survives.
	assert.Empty(t, tr.Update(nil))
	recovered := tr.Update([]Detection{det(2, 2, 102, 102)})
	require.Len(t, recovered, 1)
	assert.Equal(t, first[0].ID, recovered[0].ID)
}

func TestTrackerDistinctFacesKeepDistinctTracks(t *testing.T) {
	tr := NewTracker(1, 0.3)

	first := tr.Update([]Detection{
		det(0, 0, 100, 100),
		det(300, 300, 400, 400),
	})
	require.Len(t, first, 2)

	second := tr.Update([]Detection{
		det(302, 298, 402, 398),
		det(3, 1, 103, 101),
	})
	require.Len(t, second, 2)

	byID := map[int64][4]float32{}
	for _, f := range second {
		byID[f.ID] = f.BBox
	}
	assert.Equal(t, [4]float32{3, 1, 103, 101}, byID[first[0].ID])
	assert.Equal(t, [4]float32{302, 298, 402, 398}, byID[first[1].ID])
}

func TestTrackerNoMatchBelowIoUThreshold(t *testing.T) {
	tr := NewTracker(1, 0.3)

	first := tr.Update([]Detection{det(0, 0, 100, 100)})
	require.Len(t, first, 1)

	// Far away box overlaps nothing: new binding.
	second := tr.Update([]Detection{det(200, 200, 300, 300)})
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)
}

func TestIoU(t *testing.T) {
	a := [4]float32{0, 0, 100, 100}

	assert.InDelta(t, 1.0, iou(a, a), 1e-6)
	assert.InDelta(t, 0.0, iou(a, [4]float32{200, 200, 300, 300}), 1e-6)

	// Half overlap: intersection 50x100, union 150x100.
	b := [4]float32{50, 0, 150, 100}
	assert.InDelta(t, 1.0/3.0, iou(a, b), 1e-4)
}
