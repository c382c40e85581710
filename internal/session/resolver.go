package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/your-org/visitord/internal/observability"
)

// ErrNoUsableFace is returned by an Embedder when a crop contains no face it
// can produce an embedding for. The affected binding is skipped for the
// current frame only.
var ErrNoUsableFace = errors.New("no usable face in crop")

// Embedder produces a fixed-length face embedding from a crop, or
// ErrNoUsableFace.
type Embedder interface {
	Embed(ctx context.Context, crop image.Image) ([]float32, error)
}

// VisitorStore is the persistent registry of visitor identities keyed by
// face embedding.
type VisitorStore interface {
	// FindSimilarVisitor returns the best stored match with cosine
	// similarity >= threshold, or ok=false when nothing clears it.
	FindSimilarVisitor(ctx context.Context, embedding []float32, threshold float64) (id uuid.UUID, similarity float32, ok bool, err error)
	// RegisterVisitor stores the embedding under a fresh identity.
	RegisterVisitor(ctx context.Context, embedding []float32) (uuid.UUID, error)
}

// Resolver turns a face crop into a persistent visitor identity.
type Resolver interface {
	Identify(ctx context.Context, crop image.Image) (uuid.UUID, error)
}

// ReIDResolver identifies crops by nearest-neighbour search over stored
// embeddings, auto-registering faces that match nothing. This is a
// classification policy, not an identity proof: merged or fragmented
// identities are accepted failure modes tuned by the threshold.
type ReIDResolver struct {
	embedder  Embedder
	store     VisitorStore
	threshold float64

	// mu serializes find-then-register so two concurrent resolutions of the
	// same unseen face cannot both register it
	mu sync.Mutex
}

func NewReIDResolver(embedder Embedder, store VisitorStore, threshold float64) *ReIDResolver {
	return &ReIDResolver{
		embedder:  embedder,
		store:     store,
		threshold: threshold,
	}
}

// Identify embeds the crop and returns the matching visitor identity,
// registering a new one when no stored embedding clears the threshold.
// ErrNoUsableFace from the embedder passes through untouched.
func (r *ReIDResolver) Identify(ctx context.Context, crop image.Image) (uuid.UUID, error) {
	embedding, err := r.embedder.Embed(ctx, crop)
	if err != nil {
		if errors.Is(err, ErrNoUsableFace) {
			return uuid.Nil, err
		}
		return uuid.Nil, fmt.Errorf("embed crop: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, similarity, ok, err := r.store.FindSimilarVisitor(ctx, embedding, r.threshold)
	if err != nil {
		return uuid.Nil, fmt.Errorf("find visitor: %w", err)
	}
	if ok {
		slog.Debug("recognized returning visitor", "visitor_id", id, "similarity", similarity)
		observability.VisitorsRecognized.Inc()
		return id, nil
	}

	id, err = r.store.RegisterVisitor(ctx, embedding)
	if err != nil {
		return uuid.Nil, fmt.Errorf("register visitor: %w", err)
	}
	slog.Info("registered new visitor", "visitor_id", id)
	observability.VisitorsRegistered.Inc()
	return id, nil
}
