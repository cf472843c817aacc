package core

import (
	"bytes"
	"fmt"

	"github.com/bytedance/sonic"
)

// BodyPart identifies one tracked region of the inference result.
type BodyPart int

const (
	Face BodyPart = iota
	LeftHand
	RightHand
	Pose
	PoseWorld

	BodyPartCount int = iota
)

type bodyPartGeometry struct {
	name       string
	points     int
	components int
}

// Components is the stride of the flat wire array: x, y, z and, for the pose
// parts, visibility.
var geometry = [BodyPartCount]bodyPartGeometry{
	Face:      {name: "face", points: 478, components: 3},
	LeftHand:  {name: "left_hand", points: 21, components: 3},
	RightHand: {name: "right_hand", points: 21, components: 3},
	Pose:      {name: "pose", points: 33, components: 4},
	PoseWorld: {name: "pose_world", points: 33, components: 4},
}

// BodyParts returns every body part in wire order.
func BodyParts() []BodyPart {
	return []BodyPart{Face, LeftHand, RightHand, Pose, PoseWorld}
}

// ParseBodyPart maps a wire key to its BodyPart.
func ParseBodyPart(name string) (BodyPart, bool) {
	for i, g := range geometry {
		if g.name == name {
			return BodyPart(i), true
		}
	}
	return 0, false
}

func (p BodyPart) Valid() bool {
	return p >= 0 && int(p) < BodyPartCount
}

// Name returns the wire key of the body part.
func (p BodyPart) Name() string {
	if !p.Valid() {
		return fmt.Sprintf("BodyPart(%d)", int(p))
	}
	return geometry[p].name
}

func (p BodyPart) String() string {
	return p.Name()
}

// PointCount is the fixed number of landmarks the part carries.
func (p BodyPart) PointCount() int {
	return geometry[p].points
}

// Components is 4 for pose and pose_world, 3 otherwise.
func (p BodyPart) Components() int {
	return geometry[p].components
}

// HasVisibility reports whether points of this part carry a visibility score.
func (p BodyPart) HasVisibility() bool {
	return geometry[p].components == 4
}

// WireLength is PointCount * Components.
func (p BodyPart) WireLength() int {
	return geometry[p].points * geometry[p].components
}

// LandmarkPoint is one decoded landmark. Visibility is nil for parts without it.
type LandmarkPoint struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          float64  `json:"z"`
	Visibility *float64 `json:"visibility,omitempty"`
}

// QuantizedFrame holds the flat integer arrays of one inference result.
// A nil slice means the part was not tracked in this frame.
type QuantizedFrame struct {
	parts [BodyPartCount][]int32
}

// QuantizedFrameFromMap builds a frame from wire-keyed arrays. Unknown keys
// are ignored.
func QuantizedFrameFromMap(m map[string][]int32) QuantizedFrame {
	var f QuantizedFrame
	for name, values := range m {
		if part, ok := ParseBodyPart(name); ok {
			f.Set(part, values)
		}
	}
	return f
}

// Set stores the array for part. A nil values slice is stored as empty but present.
func (f *QuantizedFrame) Set(part BodyPart, values []int32) {
	if values == nil {
		values = []int32{}
	}
	f.parts[part] = values
}

// Clear marks part as absent.
func (f *QuantizedFrame) Clear(part BodyPart) {
	f.parts[part] = nil
}

func (f *QuantizedFrame) Get(part BodyPart) ([]int32, bool) {
	v := f.parts[part]
	return v, v != nil
}

// Has reports whether part is present.
func (f *QuantizedFrame) Has(part BodyPart) bool {
	return f.parts[part] != nil
}

// LandmarkSet is the decoded result handed to renderers.
type LandmarkSet struct {
	parts [BodyPartCount][]LandmarkPoint
}

func (s *LandmarkSet) Set(part BodyPart, points []LandmarkPoint) {
	if points == nil {
		points = []LandmarkPoint{}
	}
	s.parts[part] = points
}

func (s *LandmarkSet) Get(part BodyPart) ([]LandmarkPoint, bool) {
	v := s.parts[part]
	return v, v != nil
}

func (s *LandmarkSet) Has(part BodyPart) bool {
	return s.parts[part] != nil
}

// Len returns the number of present parts.
func (s *LandmarkSet) Len() int {
	n := 0
	for _, p := range s.parts {
		if p != nil {
			n++
		}
	}
	return n
}

// MarshalJSON writes an object keyed by body part name with absent parts omitted.
func (s LandmarkSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for i, points := range s.parts {
		if points == nil {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := sonic.ConfigStd.Marshal(BodyPart(i).Name())
		if err != nil {
			return nil, err
		}
		data, err := sonic.ConfigStd.Marshal(points)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
