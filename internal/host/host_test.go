package host

import (
	"errors"
	"testing"

	pm "github.com/Faultbox/bellysculpt/pkg/math"
)

func TestBoneWeightDominant(t *testing.T) {
	tests := []struct {
		name   string
		w      BoneWeight
		want   int
		wantOK bool
	}{
		{"single", BoneWeight{Bones: [4]int{7}, Weights: [4]float32{1}}, 7, true},
		{"second wins", BoneWeight{Bones: [4]int{1, 2}, Weights: [4]float32{0.3, 0.7}}, 2, true},
		{"tie keeps first", BoneWeight{Bones: [4]int{4, 5}, Weights: [4]float32{0.5, 0.5}}, 4, true},
		{"empty", BoneWeight{}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.w.Dominant()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Dominant() = %d, %v; want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLookupProfile(t *testing.T) {
	for _, name := range []string{"kk", "hs2", "ai"} {
		p, err := LookupProfile(name)
		if err != nil {
			t.Fatalf("LookupProfile(%q): %v", name, err)
		}
		if p.Name != name {
			t.Errorf("profile name = %q, want %q", p.Name, name)
		}
		if len(p.RegionJoints) != 3 {
			t.Errorf("%s: %d region joints, want 3", name, len(p.RegionJoints))
		}
	}
	if _, err := LookupProfile("unknown"); err == nil {
		t.Error("expected error for unknown profile")
	}

	// Lookups hand out copies
	p, _ := LookupProfile("ai")
	p.BellyButtonBias = 9
	if HS2.BellyButtonBias == 9 {
		t.Error("LookupProfile leaked the shared profile")
	}
}

func TestProfileNames(t *testing.T) {
	if !KK.IsBodyMesh("o_body_a") || KK.IsBodyMesh("o_top_a") {
		t.Error("KK body mesh classification wrong")
	}
	if !HS2.IsBodyMesh("o_body_cm") {
		t.Error("HS2 male body should be a body mesh")
	}
	if !KK.IsInnerLayer("o_panst_garter1") || HS2.IsInnerLayer("o_panst_garter1") {
		t.Error("inner layer tables wrong")
	}
	if !KK.IsIgnoredSlot("shoes_outer") || KK.IsIgnoredSlot("top") {
		t.Error("ignored slot table wrong")
	}
}

type lockedMesh struct {
	Mesh
	readable, sticks bool
	toggles          int
}

func (m *lockedMesh) Name() string   { return "o_locked" }
func (m *lockedMesh) Readable() bool { return m.readable }
func (m *lockedMesh) SetReadable(v bool) {
	m.toggles++
	if m.sticks {
		m.readable = v
	}
}

func TestWithReadable(t *testing.T) {
	t.Run("override restores", func(t *testing.T) {
		m := &lockedMesh{sticks: true}
		called := false
		if err := WithReadable(m, func() error { called = true; return nil }); err != nil {
			t.Fatalf("WithReadable: %v", err)
		}
		if !called || m.readable || m.toggles != 2 {
			t.Errorf("called=%v readable=%v toggles=%d", called, m.readable, m.toggles)
		}
	})
	t.Run("override fails", func(t *testing.T) {
		m := &lockedMesh{}
		err := WithReadable(m, func() error { t.Error("fn must not run"); return nil })
		if !errors.Is(err, ErrMeshNotReadable) {
			t.Errorf("err = %v, want ErrMeshNotReadable", err)
		}
	})
}

func TestBoundsCenter(t *testing.T) {
	b := Bounds{Min: pm.Vec3{X: -1, Y: 0, Z: -2}, Max: pm.Vec3{X: 1, Y: 4, Z: 2}}
	if b.Center() != (pm.Vec3{X: 0, Y: 2, Z: 0}) {
		t.Errorf("Center() = %v", b.Center())
	}
}
