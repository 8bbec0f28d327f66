package console

import "sync"

// DefaultRingCapacity is the buffer size used when the configuration does
// not override it. Matches roughly a minute of chatty vanilla console
// output, which is plenty for a 5-7s correlation window.
const DefaultRingCapacity = 500

// Ring is a fixed-capacity FIFO buffer of raw console lines. Appending at
// capacity evicts the oldest line. The ingest loop is the only writer;
// correlators and chat handlers read through Snapshot, which returns a
// point-in-time copy so a scan never observes a buffer mutating under it.
type Ring struct {
	mu    sync.Mutex
	lines []string
	start int // index of the oldest line
	count int
}

// NewRing returns an empty ring holding at most capacity lines.
// Non-positive capacities fall back to DefaultRingCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Ring{lines: make([]string, capacity)}
}

// Append adds line as the newest entry, evicting the oldest when full.
func (r *Ring) Append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := (r.start + r.count) % len(r.lines)
	r.lines[idx] = line
	if r.count < len(r.lines) {
		r.count++
		return
	}
	r.start = (r.start + 1) % len(r.lines)
}

// Snapshot returns a copy of the buffered lines in arrival order, oldest
// first. The returned slice is owned by the caller.
func (r *Ring) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.lines[(r.start+i)%len(r.lines)]
	}
	return out
}

// Last returns the newest n lines in arrival order. If fewer than n lines
// are buffered, all of them are returned.
func (r *Ring) Last(n int) []string {
	if n < 1 {
		return nil
	}
	snap := r.Snapshot()
	if len(snap) > n {
		snap = snap[len(snap)-n:]
	}
	return snap
}

// Len returns the number of buffered lines.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the fixed capacity.
func (r *Ring) Cap() int {
	return len(r.lines)
}
