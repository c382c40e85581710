package session

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubResolver returns a fixed identity per distinct crop and counts calls.
type stubResolver struct {
	identities map[image.Image]uuid.UUID
	err        error
	calls      int
}

func (s *stubResolver) Identify(_ context.Context, crop image.Image) (uuid.UUID, error) {
	s.calls++
	if s.err != nil {
		return uuid.Nil, s.err
	}
	id, ok := s.identities[crop]
	if !ok {
		id = uuid.New()
		if s.identities == nil {
			s.identities = make(map[image.Image]uuid.UUID)
		}
		s.identities[crop] = id
	}
	return id, nil
}

func newCrop() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 8, 8))
}

func TestRegistryResolveCachesBinding(t *testing.T) {
	resolver := &stubResolver{}
	r := NewRegistry(resolver)
	crop := newCrop()

	v1, err := r.Resolve(context.Background(), 7, crop)
	require.NoError(t, err)

	// Known binding: no second resolver call, same identity.
	v2, err := r.Resolve(context.Background(), 7, newCrop())
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryResolveFailureLeavesNoEntry(t *testing.T) {
	resolver := &stubResolver{err: ErrNoUsableFace}
	r := NewRegistry(resolver)

	_, err := r.Resolve(context.Background(), 1, newCrop())
	require.ErrorIs(t, err, ErrNoUsableFace)
	assert.Equal(t, 0, r.Len())

	// The binding is retried once resolution can succeed.
	resolver.err = nil
	_, err = r.Resolve(context.Background(), 1, newCrop())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryRemoveReturnsLastCrop(t *testing.T) {
	resolver := &stubResolver{}
	r := NewRegistry(resolver)
	first := newCrop()
	second := newCrop()

	visitor, err := r.Resolve(context.Background(), 3, first)
	require.NoError(t, err)

	// A later frame refreshes the stored crop.
	_, err = r.Resolve(context.Background(), 3, second)
	require.NoError(t, err)

	got, crop, ok := r.Remove(3)
	require.True(t, ok)
	assert.Equal(t, visitor, got)
	assert.Same(t, second, crop.(*image.RGBA))

	_, _, ok = r.Remove(3)
	assert.False(t, ok)
}

func TestRegistryDoubleTrackedVisitor(t *testing.T) {
	crop := newCrop()
	shared := uuid.New()
	resolver := &stubResolver{identities: map[image.Image]uuid.UUID{crop: shared}}
	r := NewRegistry(resolver)

	// Two bindings resolve to the same visitor (tracker double-tracked a face).
	_, err := r.Resolve(context.Background(), 1, crop)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), 2, crop)
	require.NoError(t, err)

	_, ok := r.CropFor(shared)
	assert.True(t, ok)

	// Dropping one binding keeps the visitor reachable through the other.
	_, _, ok = r.Remove(1)
	require.True(t, ok)
	_, ok = r.CropFor(shared)
	assert.True(t, ok)

	_, _, ok = r.Remove(2)
	require.True(t, ok)
	_, ok = r.CropFor(shared)
	assert.False(t, ok)
}

func TestRegistryBindings(t *testing.T) {
	resolver := &stubResolver{}
	r := NewRegistry(resolver)

	_, err := r.Resolve(context.Background(), 10, newCrop())
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), 20, newCrop())
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{10, 20}, r.Bindings())
}

func TestRegistryResolvePropagatesErrors(t *testing.T) {
	wantErr := errors.New("store unavailable")
	resolver := &stubResolver{err: wantErr}
	r := NewRegistry(resolver)

	_, err := r.Resolve(context.Background(), 5, newCrop())
	assert.ErrorIs(t, err, wantErr)
}
