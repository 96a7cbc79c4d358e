package firm

// Series is a per-period value history. Reads outside the recorded range
// return zero, so period t-1 at t=0 is naturally empty.
type Series[T int | float64] []T

// At returns the value recorded for period t.
func (s Series[T]) At(t int) T {
	if t < 0 || t >= len(s) {
		var zero T
		return zero
	}
	return s[t]
}

// Add accumulates v into period t, growing the series as needed.
func (s *Series[T]) Add(t int, v T) {
	if t < 0 {
		return
	}
	for len(*s) <= t {
		*s = append(*s, 0)
	}
	(*s)[t] += v
}

// Set overwrites period t.
func (s *Series[T]) Set(t int, v T) {
	if t < 0 {
		return
	}
	for len(*s) <= t {
		*s = append(*s, 0)
	}
	(*s)[t] = v
}
