package session

import (
	"context"
	"image"

	"github.com/google/uuid"
)

// trackEntry is the per-binding state: the visitor the binding resolved to and
// the most recent crop seen under it.
type trackEntry struct {
	visitor  uuid.UUID
	lastCrop image.Image
}

// Registry maps ephemeral tracker bindings to persistent visitor identities.
// A binding holds at most one entry at a time; a visitor may back several
// bindings at once when the upstream tracker momentarily double-tracks one
// face. Not safe for concurrent use — the owning Tracker serializes access.
type Registry struct {
	resolver Resolver
	entries  map[int64]*trackEntry
	// reverse index, so "is this visitor still visible" and "freshest crop
	// for this visitor" stay O(visible tracks) instead of scanning history
	byVisitor map[uuid.UUID]map[int64]struct{}
}

// NewRegistry creates an empty registry that identifies new bindings through
// the given resolver.
func NewRegistry(resolver Resolver) *Registry {
	return &Registry{
		resolver:  resolver,
		entries:   make(map[int64]*trackEntry),
		byVisitor: make(map[uuid.UUID]map[int64]struct{}),
	}
}

// Resolve returns the visitor identity for a binding. Known bindings return
// their stored identity and refresh the stored crop without touching the
// resolver. Unknown bindings are identified from the crop; ErrNoUsableFace
// (or a resolver failure) leaves no entry behind, so the binding is simply
// retried on the next frame it appears.
func (r *Registry) Resolve(ctx context.Context, binding int64, crop image.Image) (uuid.UUID, error) {
	if e, ok := r.entries[binding]; ok {
		e.lastCrop = crop
		return e.visitor, nil
	}

	visitor, err := r.resolver.Identify(ctx, crop)
	if err != nil {
		return uuid.Nil, err
	}

	r.entries[binding] = &trackEntry{visitor: visitor, lastCrop: crop}
	set, ok := r.byVisitor[visitor]
	if !ok {
		set = make(map[int64]struct{})
		r.byVisitor[visitor] = set
	}
	set[binding] = struct{}{}
	return visitor, nil
}

// Remove drops a binding and returns the visitor and last crop it held.
func (r *Registry) Remove(binding int64) (uuid.UUID, image.Image, bool) {
	e, ok := r.entries[binding]
	if !ok {
		return uuid.Nil, nil, false
	}
	delete(r.entries, binding)

	if set, ok := r.byVisitor[e.visitor]; ok {
		delete(set, binding)
		if len(set) == 0 {
			delete(r.byVisitor, e.visitor)
		}
	}
	return e.visitor, e.lastCrop, true
}

// Bindings returns the currently bound track identifiers.
func (r *Registry) Bindings() []int64 {
	ids := make([]int64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// CropFor returns a crop currently backing the visitor, if any binding does.
func (r *Registry) CropFor(visitor uuid.UUID) (image.Image, bool) {
	for binding := range r.byVisitor[visitor] {
		if e, ok := r.entries[binding]; ok {
			return e.lastCrop, true
		}
	}
	return nil, false
}

// Len returns the number of active bindings.
func (r *Registry) Len() int {
	return len(r.entries)
}
