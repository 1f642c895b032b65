package storageSlot

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// WatchedKeys is the set of mapping-key slots a caller has opted into
// decoding. Membership is tracked by canonical slot id; insertion order is
// preserved for stable iteration, though the set is semantically unordered.
//
// The set carries no internal locking; concurrent watch and unwatch calls
// against the same instance must be serialized by the caller.
type WatchedKeys struct {
	slots []*Slot
	index mapset.Set[string]
}

func NewWatchedKeys() *WatchedKeys {
	return &WatchedKeys{
		index: mapset.NewThreadUnsafeSet[string](),
	}
}

// Add inserts the slot and every mapping-key ancestor along its path chain,
// skipping slots already present. Walking the whole chain, rather than
// stopping at the first ancestor already in the set, is what guarantees the
// ancestor-closure invariant holds no matter what order keys were watched
// and unwatched in.
func (w *WatchedKeys) Add(slot *Slot) {
	for s := slot; s != nil; s = s.Path {
		if s.Key == nil {
			continue
		}
		if w.index.Add(s.ID()) {
			w.slots = append(w.slots, s)
		}
	}
}

// Remove deletes the slot and every currently-watched slot whose ancestor
// chain passes through it.
func (w *WatchedKeys) Remove(slot *Slot) {
	kept := w.slots[:0]
	for _, s := range w.slots {
		if s.Equal(slot) || s.HasAncestor(slot) {
			w.index.Remove(s.ID())
			continue
		}
		kept = append(kept, s)
	}
	w.slots = kept
}

// Has reports membership of the exact slot.
func (w *WatchedKeys) Has(slot *Slot) bool {
	return w.index.Contains(slot.ID())
}

// Slots returns the watched slots in insertion order. The returned slice is
// shared; callers must not mutate it.
func (w *WatchedKeys) Slots() []*Slot {
	return w.slots
}

// Len returns the number of watched slots.
func (w *WatchedKeys) Len() int {
	return len(w.slots)
}

// ForMapping returns the watched keys whose immediate parent chain equals
// the given mapping slot, i.e. the keys watched directly under it.
func (w *WatchedKeys) ForMapping(mapping *Slot) []*Slot {
	var out []*Slot
	for _, s := range w.slots {
		if s.Key != nil && s.Path.Equal(mapping) {
			out = append(out, s)
		}
	}
	return out
}
