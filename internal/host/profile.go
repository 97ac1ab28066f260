package host

import (
	"fmt"
	"slices"
)

// Profile captures everything that differs between supported host games:
// joint names, mesh names and the belly button placement.
type Profile struct {
	Name string

	// RegionJoints span lower spine to pelvis. A vertex whose dominant bone
	// is one of these belongs to the belly.
	RegionJoints []string

	// FootJoint and WaistJoint bound the chain whose straightened length is
	// the belly button height.
	FootJoint  string
	WaistJoint string

	ThighLeft  string
	ThighRight string
	RibJoint   string // bust root, bounds the rib area
	ScaleJoint string // overall character height scale

	BodyMeshes      []string
	InnerLayers     []string // clothing drawn closest to the skin
	IgnoredSlots    []string // slots that never touch the belly
	BellyButtonBias float32  // fraction of belly button height added above it
}

// IsBodyMesh reports whether name is one of the profile's skin meshes.
func (p *Profile) IsBodyMesh(name string) bool {
	return slices.Contains(p.BodyMeshes, name)
}

// IsInnerLayer reports whether a clothing mesh sits directly on the skin.
func (p *Profile) IsInnerLayer(name string) bool {
	return slices.Contains(p.InnerLayers, name)
}

// IsIgnoredSlot reports whether clothing changes in slot can be ignored.
func (p *Profile) IsIgnoredSlot(slot string) bool {
	return slices.Contains(p.IgnoredSlots, slot)
}

// KK is the Koikatsu profile.
var KK = Profile{
	Name:         "kk",
	RegionJoints: []string{"cf_s_spine02", "cf_s_waist01", "cf_s_waist02"},
	FootJoint:    "cf_j_foot_L",
	WaistJoint:   "cf_j_waist01",
	ThighLeft:    "cf_j_thigh00_L",
	ThighRight:   "cf_j_thigh00_R",
	RibJoint:     "cf_d_bust00",
	ScaleJoint:   "cf_n_height",
	BodyMeshes:   []string{"o_body_a"},
	InnerLayers: []string{
		"o_bra_a", "o_bra_b", "o_shorts_a", "o_shorts_b",
		"o_panst_garter1", "o_panst_a", "o_panst_b",
	},
	IgnoredSlots:    []string{"gloves", "socks", "shoes_inner", "shoes_outer"},
	BellyButtonBias: 0.155,
}

// HS2 is the HoneySelect2 profile. AI Shoujo shares its skeleton.
var HS2 = Profile{
	Name:            "hs2",
	RegionJoints:    []string{"cf_J_Spine02_s", "cf_J_Kosi01_s", "cf_J_Kosi02_s"},
	FootJoint:       "cf_J_Toes01_L",
	WaistJoint:      "cf_J_Kosi01",
	ThighLeft:       "cf_J_LegUp00_L",
	ThighRight:      "cf_J_LegUp00_R",
	RibJoint:        "cf_J_Mune00",
	ScaleJoint:      "cf_N_height",
	BodyMeshes:      []string{"o_body_cf", "o_body_cm"},
	InnerLayers:     []string{"o_bra_a", "o_bra_b", "o_shorts_a", "o_shorts_b", "o_panst_a", "o_panst_b"},
	IgnoredSlots:    []string{"gloves", "socks", "shoes"},
	BellyButtonBias: 0.155,
}

// LookupProfile returns the profile registered under name.
func LookupProfile(name string) (*Profile, error) {
	switch name {
	case "kk":
		p := KK
		return &p, nil
	case "hs2":
		p := HS2
		return &p, nil
	case "ai":
		p := HS2
		p.Name = "ai"
		return &p, nil
	}
	return nil, fmt.Errorf("unknown host profile %q", name)
}
