package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/visitord/internal/config"
	"github.com/your-org/visitord/internal/models"
	"github.com/your-org/visitord/internal/observability"
	"github.com/your-org/visitord/internal/queue"
	"github.com/your-org/visitord/internal/session"
	"github.com/your-org/visitord/internal/storage"
)

// streamState is the per-stream processing state: the short-term IoU tracker
// that issues ephemeral bindings, and the session tracker that turns them
// into visit entry/exit events. Frames of one stream pass through both under
// the session tracker's single-writer lock.
type streamState struct {
	mu       sync.Mutex
	faces    *Tracker
	sessions *session.Tracker
}

// Pipeline orchestrates per-frame processing:
// detect → track → resolve identity → session update.
type Pipeline struct {
	detector *Detector
	embedder *Embedder
	resolver *session.ReIDResolver

	mu      sync.Mutex
	streams map[uuid.UUID]*streamState

	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	producer *queue.Producer
	trackCfg config.TrackingConfig
	sessCfg  config.SessionConfig
}

// NewPipeline initialises the ONNX models and returns a ready pipeline.
func NewPipeline(
	cfg config.VisionConfig,
	trackCfg config.TrackingConfig,
	sessCfg config.SessionConfig,
	db *storage.PostgresStore,
	minio *storage.MinIOStore,
	producer *queue.Producer,
) (*Pipeline, error) {

	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "w600k_r50.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold))
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	if dim := emb.EmbeddingDim(); dim != storage.EmbeddingDim {
		det.Close()
		emb.Close()
		return nil, fmt.Errorf("embedder produces %d-d vectors, visitor store expects %d", dim, storage.EmbeddingDim)
	}

	slog.Info("vision pipeline ready",
		"similarity_threshold", sessCfg.SimilarityThreshold,
		"exit_timeout", sessCfg.ExitTimeout)

	return &Pipeline{
		detector: det,
		embedder: emb,
		resolver: session.NewReIDResolver(emb, db, sessCfg.SimilarityThreshold),
		streams:  make(map[uuid.UUID]*streamState),
		db:       db,
		minio:    minio,
		producer: producer,
		trackCfg: trackCfg,
		sessCfg:  sessCfg,
	}, nil
}

// ProcessFrame handles one frame task. A frame with zero faces still runs the
// session update: disappearances and pending-exit expiries depend on empty
// frames being applied.
func (p *Pipeline) ProcessFrame(ctx context.Context, task models.FrameTask) error {
	frameData, err := p.minio.GetObject(ctx, task.FrameRef)
	if err != nil {
		return fmt.Errorf("load frame: %w", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(frameData))
	if err != nil {
		return fmt.Errorf("decode jpeg: %w", err)
	}

	bounds := img.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	start := time.Now()
	detInput := preprocessForDetection(img, p.detector.inputW, p.detector.inputH)
	observability.InferenceDuration.WithLabelValues("preprocess").Observe(time.Since(start).Seconds())

	start = time.Now()
	detections, err := p.detector.Detect(detInput, origW, origH)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	streamLabel := task.StreamID.String()
	observability.FramesProcessed.WithLabelValues(streamLabel).Inc()
	if len(detections) > 0 {
		observability.FacesDetected.WithLabelValues(streamLabel).Add(float64(len(detections)))
	}

	st := p.getStream(task.StreamID)
	st.mu.Lock()
	defer st.mu.Unlock()

	tracked := st.faces.Update(detections)

	observations := make([]session.Observation, 0, len(tracked))
	for _, face := range tracked {
		observations = append(observations, session.Observation{
			TrackID: face.ID,
			Crop:    cropFace(img, face.BBox),
		})
	}

	start = time.Now()
	st.sessions.ProcessFrame(ctx, observations)
	observability.InferenceDuration.WithLabelValues("session").Observe(time.Since(start).Seconds())

	return nil
}

func (p *Pipeline) getStream(streamID uuid.UUID) *streamState {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st, ok := p.streams[streamID]; ok {
		return st
	}

	sink := NewVisitSink(streamID, p.db, p.minio, p.producer)
	st := &streamState{
		faces:    NewTracker(p.trackCfg.MaxAge, float32(p.trackCfg.IoUThreshold)),
		sessions: session.NewTracker(streamID, p.resolver, sink, p.sessCfg.ExitTimeout),
	}
	p.streams[streamID] = st
	return st
}

// Close releases all ONNX sessions.
func (p *Pipeline) Close() {
	if p.detector != nil {
		p.detector.Close()
	}
	if p.embedder != nil {
		p.embedder.Close()
	}
}

// --- Image preprocessing helpers ---

func preprocessForDetection(img image.Image, targetW, targetH int) []float32 {
	return imageToFloat32CHW(img, targetW, targetH, [3]float32{127.5, 127.5, 127.5}, [3]float32{128.0, 128.0, 128.0})
}

func preprocessForEmbedding(img image.Image, targetW, targetH int) []float32 {
	return imageToFloat32CHW(img, targetW, targetH, [3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})
}

// imageToFloat32CHW converts an image to CHW float32 format with normalization:
//
//	pixel = (pixel - mean) / std
func imageToFloat32CHW(img image.Image, targetW, targetH int, mean, std [3]float32) []float32 {
	resized := resizeImage(img, targetW, targetH)
	bounds := resized.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	data := make([]float32, 3*h*w)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := resized.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			// Convert from 16-bit to 8-bit
			rf := float32(r >> 8)
			gf := float32(g >> 8)
			bf := float32(b >> 8)

			// CHW layout: [C][H][W]
			idx := y*w + x
			data[0*h*w+idx] = (rf - mean[0]) / std[0] // R
			data[1*h*w+idx] = (gf - mean[1]) / std[1] // G
			data[2*h*w+idx] = (bf - mean[2]) / std[2] // B
		}
	}

	return data
}

// resizeImage performs nearest-neighbour resize (fast, good enough for ML input).
func resizeImage(img image.Image, targetW, targetH int) image.Image {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))

	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			srcX := bounds.Min.X + x*srcW/targetW
			srcY := bounds.Min.Y + y*srcH/targetH
			dst.Set(x, y, img.At(srcX, srcY))
		}
	}

	return dst
}

// cropFace extracts a face region from the image given a bounding box,
// padded by 10% per side.
func cropFace(img image.Image, bbox [4]float32) image.Image {
	bounds := img.Bounds()

	x1 := int(bbox[0])
	y1 := int(bbox[1])
	x2 := int(bbox[2])
	y2 := int(bbox[3])

	if x1 < bounds.Min.X {
		x1 = bounds.Min.X
	}
	if y1 < bounds.Min.Y {
		y1 = bounds.Min.Y
	}
	if x2 > bounds.Max.X {
		x2 = bounds.Max.X
	}
	if y2 > bounds.Max.Y {
		y2 = bounds.Max.Y
	}

	w := x2 - x1
	h := y2 - y1
	if w <= 0 || h <= 0 {
		return nil
	}

	padW := int(float32(w) * 0.1)
	padH := int(float32(h) * 0.1)
	x1 -= padW
	y1 -= padH
	x2 += padW
	y2 += padH

	if x1 < bounds.Min.X {
		x1 = bounds.Min.X
	}
	if y1 < bounds.Min.Y {
		y1 = bounds.Min.Y
	}
	if x2 > bounds.Max.X {
		x2 = bounds.Max.X
	}
	if y2 > bounds.Max.Y {
		y2 = bounds.Max.Y
	}

	crop := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
	for cy := y1; cy < y2; cy++ {
		for cx := x1; cx < x2; cx++ {
			crop.Set(cx-x1, cy-y1, img.At(cx, cy))
		}
	}

	return crop
}

// encodeJPEG encodes an image as JPEG with the given quality.
func encodeJPEG(img image.Image, quality int) []byte {
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	return buf.Bytes()
}
