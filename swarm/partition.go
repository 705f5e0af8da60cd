package swarm

import "math"

// Span is a half-open index range [Start, End) of the particle slice owned by
// one worker.
type Span struct {
	Start, End int
}

// Len returns the number of particles in the span.
func (s Span) Len() int { return s.End - s.Start }

// Partition splits total particles into one contiguous span per worker.
// Each span holds round(total/workers) particles, the last span absorbs the
// remainder, and spans are clamped to total, so trailing spans may be empty.
// It returns nil for workers < 1.
func Partition(total, workers int) []Span {
	if workers < 1 || total < 0 {
		return nil
	}
	per := int(math.Round(float64(total) / float64(workers)))

	spans := make([]Span, workers)
	for i := range spans {
		start := min(i*per, total)
		end := min(start+per, total)
		if i == workers-1 {
			end = total
		}
		spans[i] = Span{Start: start, End: end}
	}
	return spans
}

// Split partitions items into per-worker subslices sharing the backing array.
func Split[T any](items []T, workers int) [][]T {
	spans := Partition(len(items), workers)
	out := make([][]T, len(spans))
	for i, s := range spans {
		out[i] = items[s.Start:s.End:s.End]
	}
	return out
}
