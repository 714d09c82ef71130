package analysis

import "sort"

// medianWindow keeps the last size values and their sorted order so the
// median is available after every push without re-sorting.
type medianWindow struct {
	ring   []float64
	sorted []float64
	pos    int
	count  int
}

func newMedianWindow(size int) *medianWindow {
	if size < 1 {
		size = 1
	}
	return &medianWindow{
		ring:   make([]float64, size),
		sorted: make([]float64, 0, size),
	}
}

func (w *medianWindow) push(v float64) {
	if w.count == len(w.ring) {
		w.remove(w.ring[w.pos])
	} else {
		w.count++
	}
	w.ring[w.pos] = v
	w.pos = (w.pos + 1) % len(w.ring)
	w.insert(v)
}

func (w *medianWindow) insert(v float64) {
	idx := sort.SearchFloat64s(w.sorted, v)
	w.sorted = append(w.sorted, 0)
	copy(w.sorted[idx+1:], w.sorted[idx:])
	w.sorted[idx] = v
}

func (w *medianWindow) remove(v float64) {
	idx := sort.SearchFloat64s(w.sorted, v)
	if idx >= len(w.sorted) || w.sorted[idx] != v {
		return
	}
	w.sorted = append(w.sorted[:idx], w.sorted[idx+1:]...)
}

func (w *medianWindow) median() (float64, bool) {
	n := len(w.sorted)
	if n == 0 {
		return 0, false
	}
	if n%2 == 1 {
		return w.sorted[n/2], true
	}
	return (w.sorted[n/2-1] + w.sorted[n/2]) / 2, true
}
