package vision

// TrackedFace is one detection matched to (or opening) a track binding.
type TrackedFace struct {
	// ID is the ephemeral track binding. Stable while the face stays
	// continuously visible; a face that leaves and returns gets a new ID.
	ID         int64
	BBox       [4]float32
	Confidence float32
}

type track struct {
	id              int64
	bbox            [4]float32
	timeSinceUpdate int
}

// Tracker is a greedy IoU tracker: it associates the current frame's
// detections with the previous frame's boxes and issues monotonically
// increasing int64 bindings for detections that match nothing. It makes no
// attempt at re-identification — downstream session tracking absorbs binding
// churn.
type Tracker struct {
	tracks       map[int64]*track
	nextID       int64
	maxAge       int // frames a track may coast unmatched before removal
	iouThreshold float32
}

// NewTracker creates a tracker. maxAge is how many frames an unmatched track
// survives (it is not reported while coasting); iouThreshold is the minimum
// overlap for a detection to continue an existing track.
func NewTracker(maxAge int, iouThreshold float32) *Tracker {
	return &Tracker{
		tracks:       make(map[int64]*track),
		maxAge:       maxAge,
		iouThreshold: iouThreshold,
	}
}

// Update matches detections against existing tracks and returns the matched
// set for this frame. Unmatched detections open new tracks; tracks unmatched
// for more than maxAge frames are dropped.
func (t *Tracker) Update(detections []Detection) []TrackedFace {
	for _, tr := range t.tracks {
		tr.timeSinceUpdate++
	}

	faces := make([]TrackedFace, 0, len(detections))
	claimed := make(map[int64]bool, len(t.tracks))

	for _, det := range detections {
		bestIoU := t.iouThreshold
		var bestID int64 = -1

		for id, tr := range t.tracks {
			if claimed[id] {
				continue
			}
			if v := iou(det.BBox, tr.bbox); v > bestIoU {
				bestIoU = v
				bestID = id
			}
		}

		if bestID >= 0 {
			tr := t.tracks[bestID]
			tr.bbox = det.BBox
			tr.timeSinceUpdate = 0
			claimed[bestID] = true
			faces = append(faces, TrackedFace{ID: bestID, BBox: det.BBox, Confidence: det.Confidence})
			continue
		}

		t.nextID++
		t.tracks[t.nextID] = &track{id: t.nextID, bbox: det.BBox}
		faces = append(faces, TrackedFace{ID: t.nextID, BBox: det.BBox, Confidence: det.Confidence})
	}

	for id, tr := range t.tracks {
		if tr.timeSinceUpdate > t.maxAge {
			delete(t.tracks, id)
		}
	}

	return faces
}

// Len returns the number of live tracks, including coasting ones.
func (t *Tracker) Len() int {
	return len(t.tracks)
}
