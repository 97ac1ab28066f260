package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// BSHP format errors.
var (
	ErrInvalidBlendShapeMagic       = errors.New("invalid BSHP magic: expected 'BSHP'")
	ErrUnsupportedBlendShapeVersion = errors.New("unsupported BSHP version")
	ErrTruncatedBlendShapeData      = errors.New("truncated BSHP data")
	ErrInvalidBlendShapeRecord      = errors.New("invalid BSHP record")
)

const (
	bshpMagic = "BSHP"
	// maxBlendShapeVertices bounds a record so a corrupt count cannot make
	// the parser allocate gigabytes.
	maxBlendShapeVertices = 1 << 22
	maxBlendShapeName     = math.MaxUint16
)

// BSHPVersion represents the BSHP blob version.
type BSHPVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v BSHPVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// BSHPCurrentVersion is the version written by Bytes.
var BSHPCurrentVersion = BSHPVersion{Major: 1, Minor: 0}

// BSHPRecord is one morph target for one mesh.
type BSHPRecord struct {
	Name        string
	MeshName    string
	VertexCount uint32
	// DeltaVertices and DeltaNormals hold VertexCount entries each.
	DeltaVertices [][3]float32
	DeltaNormals  [][3]float32
}

// Validate checks that the delta arrays match the vertex count.
func (r *BSHPRecord) Validate() error {
	switch {
	case r.Name == "" || r.MeshName == "":
		return fmt.Errorf("%w: empty name", ErrInvalidBlendShapeRecord)
	case len(r.Name) > maxBlendShapeName || len(r.MeshName) > maxBlendShapeName:
		return fmt.Errorf("%w: name too long", ErrInvalidBlendShapeRecord)
	case r.VertexCount > maxBlendShapeVertices:
		return fmt.Errorf("%w: %d vertices", ErrInvalidBlendShapeRecord, r.VertexCount)
	case len(r.DeltaVertices) != int(r.VertexCount) || len(r.DeltaNormals) != int(r.VertexCount):
		return fmt.Errorf("%w: %s has %d/%d deltas for %d vertices", ErrInvalidBlendShapeRecord,
			r.Name, len(r.DeltaVertices), len(r.DeltaNormals), r.VertexCount)
	}
	return nil
}

// BSHP is a persisted set of blend shapes for one character.
//
// Layout (little endian):
//
//	magic   [4]byte "BSHP"
//	version [2]byte minor, major
//	count   uint32
//	records:
//	  name      uint16 length + bytes
//	  mesh name uint16 length + bytes
//	  vertices  uint32
//	  deltas    vertices * 3 float32
//	  normals   vertices * 3 float32
type BSHP struct {
	Version BSHPVersion
	Records []BSHPRecord
}

// ParseBSHP parses a BSHP blob from raw bytes.
func ParseBSHP(data []byte) (*BSHP, error) {
	if len(data) < 10 {
		return nil, ErrTruncatedBlendShapeData
	}

	if string(data[0:4]) != bshpMagic {
		return nil, ErrInvalidBlendShapeMagic
	}

	// Version is stored as [minor, major]
	version := BSHPVersion{
		Major: data[5],
		Minor: data[4],
	}
	if version.Major != BSHPCurrentVersion.Major {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBlendShapeVersion, version)
	}

	r := bytes.NewReader(data[6:])

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: reading record count", ErrTruncatedBlendShapeData)
	}

	b := &BSHP{Version: version}
	for i := uint32(0); i < count; i++ {
		rec, err := parseBSHPRecord(r)
		if err != nil {
			return nil, fmt.Errorf("parsing record %d: %w", i, err)
		}
		b.Records = append(b.Records, rec)
	}

	return b, nil
}

func parseBSHPRecord(r *bytes.Reader) (BSHPRecord, error) {
	var rec BSHPRecord
	var err error

	if rec.Name, err = readLengthString(r); err != nil {
		return BSHPRecord{}, fmt.Errorf("%w: reading name", err)
	}
	if rec.MeshName, err = readLengthString(r); err != nil {
		return BSHPRecord{}, fmt.Errorf("%w: reading mesh name", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &rec.VertexCount); err != nil {
		return BSHPRecord{}, fmt.Errorf("%w: reading vertex count", ErrTruncatedBlendShapeData)
	}
	if rec.VertexCount > maxBlendShapeVertices {
		return BSHPRecord{}, fmt.Errorf("%w: %d vertices", ErrInvalidBlendShapeRecord, rec.VertexCount)
	}

	// Two float32 triples per vertex
	if need := int64(rec.VertexCount) * 24; int64(r.Len()) < need {
		return BSHPRecord{}, fmt.Errorf("%w: %s needs %d bytes, %d left", ErrTruncatedBlendShapeData, rec.Name, need, r.Len())
	}

	rec.DeltaVertices = make([][3]float32, rec.VertexCount)
	rec.DeltaNormals = make([][3]float32, rec.VertexCount)
	if err := binary.Read(r, binary.LittleEndian, rec.DeltaVertices); err != nil {
		return BSHPRecord{}, fmt.Errorf("%w: reading deltas", ErrTruncatedBlendShapeData)
	}
	if err := binary.Read(r, binary.LittleEndian, rec.DeltaNormals); err != nil {
		return BSHPRecord{}, fmt.Errorf("%w: reading normals", ErrTruncatedBlendShapeData)
	}

	return rec, nil
}

// readLengthString reads a uint16 length prefixed string.
func readLengthString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", ErrTruncatedBlendShapeData
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", ErrTruncatedBlendShapeData
	}
	return string(buf), nil
}

// ParseBSHPFile parses a BSHP blob from disk.
func ParseBSHPFile(path string) (*BSHP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading BSHP file: %w", err)
	}
	return ParseBSHP(data)
}

// Bytes encodes the blob in the current version.
func (b *BSHP) Bytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteString(bshpMagic)
	buf.WriteByte(BSHPCurrentVersion.Minor)
	buf.WriteByte(BSHPCurrentVersion.Major)

	binary.Write(buf, binary.LittleEndian, uint32(len(b.Records)))
	for i := range b.Records {
		rec := &b.Records[i]
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		writeLengthString(buf, rec.Name)
		writeLengthString(buf, rec.MeshName)
		binary.Write(buf, binary.LittleEndian, rec.VertexCount)
		binary.Write(buf, binary.LittleEndian, rec.DeltaVertices)
		binary.Write(buf, binary.LittleEndian, rec.DeltaNormals)
	}
	return buf.Bytes(), nil
}

// WriteBSHPFile encodes b and writes it to path.
func WriteBSHPFile(path string, b *BSHP) error {
	data, err := b.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing BSHP file: %w", err)
	}
	return nil
}

func writeLengthString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}

// Find returns the records for the mesh with the given name and vertex
// count.
func (b *BSHP) Find(meshName string, vertexCount int) []*BSHPRecord {
	var out []*BSHPRecord
	for i := range b.Records {
		rec := &b.Records[i]
		if rec.MeshName == meshName && int(rec.VertexCount) == vertexCount {
			out = append(out, rec)
		}
	}
	return out
}
