// Package formats provides the binary blob formats written and read by the
// deformation engine.
package formats

// Note: BSHP (persisted blend shapes) is fully implemented in bshp.go
