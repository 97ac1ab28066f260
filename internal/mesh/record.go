// Package mesh holds the per-mesh deformation state owned by a character.
package mesh

import (
	"errors"
	"fmt"

	"github.com/Faultbox/bellysculpt/internal/params"
	pm "github.com/Faultbox/bellysculpt/pkg/math"
)

var ErrVertexCountMismatch = errors.New("vertex count does not match cached record")

// Key identifies a mesh within one character. Same-named meshes with a
// different vertex count are distinct.
type Key struct {
	Name        string
	VertexCount int
}

func (k Key) String() string {
	return fmt.Sprintf("%s[%d]", k.Name, k.VertexCount)
}

// Record is the cached deformation state of one mesh. It is only mutated on
// the foreground context.
type Record struct {
	Key Key

	Original []pm.Vec3 // reference pose positions
	Inflated []pm.Vec3 // shaped targets at full intensity
	Region   []bool    // belly region membership
	Altered  []bool    // vertices whose normals need recomputing

	// ClothOffsets is set for clothing meshes only.
	ClothOffsets []float32

	// ToBuffer maps reference positions back into the mesh's vertex buffer
	// space, one matrix per vertex.
	ToBuffer []pm.Mat4

	// Base geometry captured on first sight, used to restore and to blend.
	BaseVertices []pm.Vec3
	BaseNormals  []pm.Vec3
	BaseTangents []pm.Vec4

	VerticalCorrection float32
	IsClothing         bool
	FirstPass          bool

	// Shape is the snapshot Inflated was computed with.
	Shape    params.Shape
	HasShape bool
}

// NewRecord creates an empty record awaiting its bind pose pass.
func NewRecord(key Key) *Record {
	return &Record{Key: key, FirstPass: true}
}

// Validate checks the length invariant. Arrays that have not been computed
// yet are allowed to be nil.
func (r *Record) Validate() error {
	n := r.Key.VertexCount
	for _, c := range []struct {
		what string
		l    int
		set  bool
	}{
		{"original", len(r.Original), r.Original != nil},
		{"inflated", len(r.Inflated), r.Inflated != nil},
		{"region", len(r.Region), r.Region != nil},
		{"altered", len(r.Altered), r.Altered != nil},
		{"cloth offsets", len(r.ClothOffsets), r.ClothOffsets != nil},
		{"buffer transforms", len(r.ToBuffer), r.ToBuffer != nil},
		{"base vertices", len(r.BaseVertices), r.BaseVertices != nil},
		{"base normals", len(r.BaseNormals), r.BaseNormals != nil},
		{"base tangents", len(r.BaseTangents), r.BaseTangents != nil},
	} {
		if c.set && c.l != n {
			return fmt.Errorf("%s: %s has %d entries, want %d: %w", r.Key, c.what, c.l, n, ErrVertexCountMismatch)
		}
	}
	return nil
}

// Ready reports whether the record holds a complete shaped result.
func (r *Record) Ready() bool {
	return !r.FirstPass && r.Original != nil && r.Inflated != nil && r.Region != nil
}

// RegionCount returns how many vertices are in the belly region.
func (r *Record) RegionCount() int {
	n := 0
	for _, in := range r.Region {
		if in {
			n++
		}
	}
	return n
}

// Store maps keys to records for one character.
type Store struct {
	records map[Key]*Record
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{records: make(map[Key]*Record)}
}

// Get returns the record for key.
func (s *Store) Get(key Key) (*Record, bool) {
	r, ok := s.records[key]
	return r, ok
}

// GetOrCreate returns the record for key, creating it on first sight.
func (s *Store) GetOrCreate(key Key) (rec *Record, created bool) {
	if r, ok := s.records[key]; ok {
		return r, false
	}
	r := NewRecord(key)
	s.records[key] = r
	return r, true
}

// ByName returns the record stored under name with any vertex count.
func (s *Store) ByName(name string) (*Record, bool) {
	for k, r := range s.records {
		if k.Name == name {
			return r, true
		}
	}
	return nil, false
}

// Delete forgets a record.
func (s *Store) Delete(key Key) {
	delete(s.records, key)
}

// Clear forgets every record.
func (s *Store) Clear() {
	s.records = make(map[Key]*Record)
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Each calls fn for every record.
func (s *Store) Each(fn func(*Record)) {
	for _, r := range s.records {
		fn(r)
	}
}
