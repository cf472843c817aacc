package filter

import "marionette/core"

// Key addresses one coordinate stream: a component (axis) of one point of
// one body part.
type Key struct {
	Part  core.BodyPart
	Point int
	Axis  int
}

// Bank owns one OneEuro per coordinate stream of every body part. It is
// allocated once per streaming session and reset in place, never shared.
type Bank struct {
	config  Config
	filters [core.BodyPartCount][]OneEuro
}

// NewBank allocates filters for every point and component of every body part.
func NewBank(config Config) (*Bank, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	b := &Bank{config: config}
	for _, part := range core.BodyParts() {
		filters := make([]OneEuro, part.WireLength())
		for i := range filters {
			filters[i] = OneEuro{config: config, freq: config.DefaultFrequency}
		}
		b.filters[part] = filters
	}
	return b, nil
}

// Len is the total number of filter instances.
func (b *Bank) Len() int {
	n := 0
	for _, f := range b.filters {
		n += len(f)
	}
	return n
}

// At returns the filter for k. It panics if k is out of range, like a slice index.
func (b *Bank) At(k Key) *OneEuro {
	return &b.filters[k.Part][k.Point*k.Part.Components()+k.Axis]
}

// Filter smooths value on the stream addressed by k at its current frequency.
func (b *Bank) Filter(k Key, value float64) float64 {
	return b.At(k).Filter(value)
}

// FilterAt smooths value on the stream addressed by k, sampled at timestamp seconds.
func (b *Bank) FilterAt(k Key, value, timestamp float64) float64 {
	return b.At(k).FilterAt(value, timestamp)
}

// ResetPart clears the history of every stream of part.
func (b *Bank) ResetPart(part core.BodyPart) {
	filters := b.filters[part]
	for i := range filters {
		filters[i].Reset()
	}
}

// Reset clears every stream.
func (b *Bank) Reset() {
	for _, part := range core.BodyParts() {
		b.ResetPart(part)
	}
}
