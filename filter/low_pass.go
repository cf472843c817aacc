package filter

// lowPass is a first-order exponential smoother. The first sample after
// construction or reset is returned unchanged.
type lowPass struct {
	raw         float64
	smoothed    float64
	initialized bool
}

func (f *lowPass) filterWithAlpha(value, alpha float64) float64 {
	result := value
	if f.initialized {
		result = alpha*value + (1-alpha)*f.smoothed
	}
	f.initialized = true
	f.raw = value
	f.smoothed = result
	return result
}

// lastRaw is only meaningful when initialized is true.
func (f *lowPass) lastRaw() float64 {
	return f.raw
}

func (f *lowPass) reset() {
	*f = lowPass{}
}
