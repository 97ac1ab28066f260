package logger

import (
	"sync"

	"go.uber.org/zap"
)

// Code identifies a recoverable deformation problem in diagnostics.
type Code string

const (
	CodeBadMeasurement           Code = "BadMeasurement"
	CodeMeshNotReadable          Code = "MeshNotReadable"
	CodeVertexCountMismatch      Code = "VertexCountMismatch"
	CodeNoRegionVertices         Code = "NoRegionVertices"
	CodeMissingSkeleton          Code = "MissingSkeleton"
	CodeMissingMeshRoot          Code = "MissingMeshRoot"
	CodeBodyMeshDisguisedAsCloth Code = "BodyMeshDisguisedAsCloth"
)

// quiet codes describe expected outcomes rather than faults; they are
// counted but only logged at debug level.
var quiet = map[Code]bool{
	CodeNoRegionVertices: true,
}

type diagKey struct {
	character string
	mesh      string
	code      Code
}

// Diagnostics emits one-line per-character diagnostics. The first report of
// a (character, mesh, code) triple is a warning; repeats drop to debug so a
// mesh that fails every pass does not flood the log. Quiet codes such as
// NoRegionVertices are always debug.
type Diagnostics struct {
	mu   sync.Mutex
	seen map[diagKey]int
}

// NewDiagnostics creates an empty reporter.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{seen: make(map[diagKey]int)}
}

// Report logs a diagnostic and returns how many times it has been seen.
func (d *Diagnostics) Report(character, mesh string, code Code, msg string, fields ...zap.Field) int {
	d.mu.Lock()
	k := diagKey{character, mesh, code}
	d.seen[k]++
	n := d.seen[k]
	d.mu.Unlock()

	fields = append(fields,
		zap.String("character", character),
		zap.String("mesh", mesh),
		zap.String("code", string(code)),
	)
	if n == 1 && !quiet[code] {
		Log.Warn(msg, fields...)
	} else {
		Log.Debug(msg, append(fields, zap.Int("repeat", n))...)
	}
	return n
}

// Count returns how many times the triple has been reported.
func (d *Diagnostics) Count(character, mesh string, code Code) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[diagKey{character, mesh, code}]
}

// Reset forgets every reported diagnostic.
func (d *Diagnostics) Reset() {
	d.mu.Lock()
	d.seen = make(map[diagKey]int)
	d.mu.Unlock()
}
