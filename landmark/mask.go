package landmark

import "marionette/core"

// IndexRange is an inclusive range of landmark indices.
type IndexRange struct {
	From int
	To   int
}

func (r IndexRange) contains(i int) bool {
	return i >= r.From && i <= r.To
}

// PoseDisplayRanges keeps the arms (11-16) and the hips and legs (23-32) of
// a pose, hiding the face and finger landmarks.
var PoseDisplayRanges = []IndexRange{{From: 11, To: 16}, {From: 23, To: 32}}

// Mask returns a copy of points where every index outside the keep ranges is
// zeroed (x, y, z and, when present, visibility). The length never changes so
// connection tables indexed by landmark still line up.
func Mask(points []core.LandmarkPoint, keep ...IndexRange) []core.LandmarkPoint {
	out := clonePoints(points)
	for i := range out {
		if inAny(keep, i) {
			continue
		}
		out[i] = core.LandmarkPoint{}
		if points[i].Visibility != nil {
			zero := 0.0
			out[i].Visibility = &zero
		}
	}
	return out
}

func inAny(ranges []IndexRange, i int) bool {
	for _, r := range ranges {
		if r.contains(i) {
			return true
		}
	}
	return false
}
