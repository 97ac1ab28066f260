package blendshape

import (
	"github.com/Faultbox/bellysculpt/internal/mesh"
	"github.com/Faultbox/bellysculpt/pkg/formats"
	pm "github.com/Faultbox/bellysculpt/pkg/math"
)

type entry struct {
	shape   *Shape
	persist bool
}

// Store holds the morph targets of one character in insertion order. It is
// only used on the foreground.
type Store struct {
	entries []entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) find(key mesh.Key, name string) int {
	for i, e := range s.entries {
		if e.shape.Key == key && e.shape.Name == name {
			return i
		}
	}
	return -1
}

// Put stores shape. A shape with the same name on the same mesh is
// replaced rather than duplicated; added is false in that case. Temporary
// shapes are not encoded.
func (s *Store) Put(shape *Shape, persist bool) (added bool) {
	if i := s.find(shape.Key, shape.Name); i >= 0 {
		s.entries[i] = entry{shape: shape, persist: persist}
		return false
	}
	s.entries = append(s.entries, entry{shape: shape, persist: persist})
	return true
}

// Get returns the shape with name on the mesh identified by key.
func (s *Store) Get(key mesh.Key, name string) (*Shape, bool) {
	if i := s.find(key, name); i >= 0 {
		return s.entries[i].shape, true
	}
	return nil, false
}

// ForMesh returns every shape stored for key.
func (s *Store) ForMesh(key mesh.Key) []*Shape {
	var out []*Shape
	for _, e := range s.entries {
		if e.shape.Key == key {
			out = append(out, e.shape)
		}
	}
	return out
}

// Keys returns the meshes that have at least one shape, in insertion order.
func (s *Store) Keys() []mesh.Key {
	seen := make(map[mesh.Key]bool)
	var out []mesh.Key
	for _, e := range s.entries {
		if !seen[e.shape.Key] {
			seen[e.shape.Key] = true
			out = append(out, e.shape.Key)
		}
	}
	return out
}

// Len returns the number of stored shapes.
func (s *Store) Len() int {
	return len(s.entries)
}

// Clear removes every shape.
func (s *Store) Clear() {
	s.entries = nil
}

// Encode returns the persisted shapes as a BSHP blob.
func (s *Store) Encode() ([]byte, error) {
	b := &formats.BSHP{Version: formats.BSHPCurrentVersion}
	for _, e := range s.entries {
		if e.persist {
			b.Records = append(b.Records, toRecord(e.shape))
		}
	}
	return b.Bytes()
}

// Load decodes a BSHP blob and stores every record that matches a live mesh
// by name and vertex count. Records already present are skipped. It
// returns how many shapes were added.
func (s *Store) Load(data []byte, live []mesh.Key) (int, error) {
	b, err := formats.ParseBSHP(data)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, key := range live {
		for _, rec := range b.Find(key.Name, key.VertexCount) {
			if s.find(key, rec.Name) >= 0 {
				continue
			}
			s.Put(fromRecord(key, rec), true)
			added++
		}
	}
	return added, nil
}

func toRecord(shape *Shape) formats.BSHPRecord {
	rec := formats.BSHPRecord{
		Name:          shape.Name,
		MeshName:      shape.Key.Name,
		VertexCount:   uint32(shape.Key.VertexCount),
		DeltaVertices: make([][3]float32, len(shape.DeltaVertices)),
		DeltaNormals:  make([][3]float32, len(shape.DeltaNormals)),
	}
	for i, v := range shape.DeltaVertices {
		rec.DeltaVertices[i] = [3]float32{v.X, v.Y, v.Z}
	}
	for i, n := range shape.DeltaNormals {
		rec.DeltaNormals[i] = [3]float32{n.X, n.Y, n.Z}
	}
	return rec
}

func fromRecord(key mesh.Key, rec *formats.BSHPRecord) *Shape {
	shape := &Shape{
		Name:          rec.Name,
		Key:           key,
		DeltaVertices: make([]pm.Vec3, len(rec.DeltaVertices)),
		DeltaNormals:  make([]pm.Vec3, len(rec.DeltaNormals)),
	}
	for i, v := range rec.DeltaVertices {
		shape.DeltaVertices[i] = pm.Vec3{X: v[0], Y: v[1], Z: v[2]}
	}
	for i, n := range rec.DeltaNormals {
		shape.DeltaNormals[i] = pm.Vec3{X: n[0], Y: n[1], Z: n[2]}
	}
	return shape
}
