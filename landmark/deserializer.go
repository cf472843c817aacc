// Package landmark turns the quantized per-body-part arrays of an inference
// result into typed 3-D points, optionally smoothing every coordinate.
package landmark

import (
	"errors"
	"fmt"

	"marionette/codec"
	"marionette/core"
	"marionette/filter"
)

// ErrDecode is wrapped by every error caused by a malformed frame.
var ErrDecode = errors.New("landmark: decode error")

// Deserializer decodes frames of one streaming session. In filtered mode it
// owns the session's filter bank, so frames must be fed in arrival order and
// a Deserializer must not be shared between sessions or goroutines.
type Deserializer struct {
	config Config
	bank   *filter.Bank

	// last settled output of each part seen so far (filtered mode only)
	settled [core.BodyPartCount][]core.LandmarkPoint
}

func NewDeserializer(config Config) (*Deserializer, error) {
	d := &Deserializer{config: config}
	if config.Filtered {
		bank, err := filter.NewBank(config.Filter)
		if err != nil {
			return nil, fmt.Errorf("landmark: %w", err)
		}
		d.bank = bank
	}
	return d, nil
}

// Filtered reports the mode chosen at construction.
func (d *Deserializer) Filtered() bool {
	return d.bank != nil
}

// Deserialize decodes frame. timestamp (seconds) is used only in filtered
// mode with UseFrameTimestamps set.
//
// Unfiltered mode omits absent parts. Filtered mode resets the filters of an
// absent part and, once a part has been seen, keeps returning its last
// settled points while it is absent.
//
// Every present part is validated before any filter is touched; on error the
// session state is unchanged and the frame can simply be skipped.
func (d *Deserializer) Deserialize(frame core.QuantizedFrame, timestamp float64) (core.LandmarkSet, error) {
	var out core.LandmarkSet
	for _, part := range core.BodyParts() {
		values, ok := frame.Get(part)
		if !ok {
			continue
		}
		if err := validate(part, values); err != nil {
			return out, err
		}
	}

	for _, part := range core.BodyParts() {
		values, ok := frame.Get(part)
		switch {
		case ok:
			points := d.decodePart(part, values, timestamp)
			if d.bank != nil {
				d.settled[part] = clonePoints(points)
			}
			out.Set(part, points)
		case d.bank != nil:
			d.bank.ResetPart(part)
			if held := d.settled[part]; held != nil {
				out.Set(part, clonePoints(held))
			}
		}
	}
	return out, nil
}

// Reset drops all smoothing history, as if the session had just started.
func (d *Deserializer) Reset() {
	if d.bank == nil {
		return
	}
	d.bank.Reset()
	d.settled = [core.BodyPartCount][]core.LandmarkPoint{}
}

func validate(part core.BodyPart, values []int32) error {
	stride := part.Components()
	if len(values)%stride != 0 {
		return fmt.Errorf("%w: %s has %d values, not a multiple of %d components",
			ErrDecode, part, len(values), stride)
	}
	if len(values) != part.WireLength() {
		return fmt.Errorf("%w: %s has %d points, expected %d",
			ErrDecode, part, len(values)/stride, part.PointCount())
	}
	return nil
}

func (d *Deserializer) decodePart(part core.BodyPart, values []int32, timestamp float64) []core.LandmarkPoint {
	stride := part.Components()
	points := make([]core.LandmarkPoint, len(values)/stride)
	var coords [4]float64
	for i := range points {
		chunk := values[i*stride : (i+1)*stride]
		for axis, q := range chunk {
			coords[axis] = d.smooth(part, i, axis, codec.Decode(q), timestamp)
		}
		points[i] = core.LandmarkPoint{X: coords[0], Y: coords[1], Z: coords[2]}
		if stride == 4 {
			visibility := coords[3]
			points[i].Visibility = &visibility
		}
	}
	return points
}

func (d *Deserializer) smooth(part core.BodyPart, point, axis int, value, timestamp float64) float64 {
	if d.bank == nil {
		return value
	}
	key := filter.Key{Part: part, Point: point, Axis: axis}
	if d.config.UseFrameTimestamps {
		return d.bank.FilterAt(key, value, timestamp)
	}
	return d.bank.Filter(key, value)
}

func clonePoints(points []core.LandmarkPoint) []core.LandmarkPoint {
	out := make([]core.LandmarkPoint, len(points))
	for i, p := range points {
		out[i] = p
		if p.Visibility != nil {
			v := *p.Visibility
			out[i].Visibility = &v
		}
	}
	return out
}
