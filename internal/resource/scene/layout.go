package scene

import (
	"hash/fnv"
	"slices"
	"sort"
)

// HashFunc hashes a component type name.
type HashFunc func(typeName string) int32

// TypeHash is the 32-bit FNV-1a hash of a component type name.
func TypeHash(typeName string) int32 {
	h := fnv.New32a()
	h.Write([]byte(typeName))
	return int32(h.Sum32())
}

// Layout is the canonical set of component types of an entity: types are
// ordered by hash, ties by name, and Hash is the OR of every type hash.
type Layout struct {
	Hash  int32
	Types []string
}

// Canonical builds the layout of types using hash.
func Canonical(types []string, hash HashFunc) Layout {
	sorted := slices.Clone(types)
	hashes := make(map[string]int32, len(sorted))
	for _, t := range sorted {
		hashes[t] = hash(t)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		hi, hj := hashes[sorted[i]], hashes[sorted[j]]
		if hi != hj {
			return hi < hj
		}
		return sorted[i] < sorted[j]
	})

	var combined int32
	for _, t := range sorted {
		combined |= hashes[t]
	}
	return Layout{Hash: combined, Types: sorted}
}

// LayoutRegistry deduplicates entity layouts. Two layouts are the same
// only when both the combined hash and the canonical type list match, so
// type sets whose hashes OR to the same value stay distinct.
type LayoutRegistry struct {
	hash    HashFunc
	layouts []Layout
}

// NewLayoutRegistry returns a registry using hash, or TypeHash when nil.
func NewLayoutRegistry(hash HashFunc) *LayoutRegistry {
	if hash == nil {
		hash = TypeHash
	}
	return &LayoutRegistry{hash: hash}
}

// Add canonicalizes types and returns the index of the matching layout,
// registering it first when it is new.
func (r *LayoutRegistry) Add(types []string) int32 {
	l := Canonical(types, r.hash)
	for i, existing := range r.layouts {
		if existing.Hash == l.Hash && slices.Equal(existing.Types, l.Types) {
			return int32(i)
		}
	}
	r.layouts = append(r.layouts, l)
	return int32(len(r.layouts) - 1)
}

// Layouts returns the registered layouts in index order.
func (r *LayoutRegistry) Layouts() []Layout {
	return r.layouts
}
