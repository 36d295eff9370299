package sensor

import (
	"fmt"
	"sync"
)

// DefaultHistorySize is the number of readings retained for display and
// manual re-upload.
const DefaultHistorySize = 10

// HistoryBuffer keeps the most recent readings, newest first. Once the
// capacity is exceeded the oldest entry is dropped, not persisted.
type HistoryBuffer struct {
	mu   sync.Mutex
	max  int
	data []Reading
}

// NewHistoryBuffer returns a buffer bounded to max entries. A max of
// zero or below falls back to DefaultHistorySize.
func NewHistoryBuffer(max int) *HistoryBuffer {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &HistoryBuffer{max: max, data: make([]Reading, 0, max)}
}

// Push inserts r at the front, evicting the oldest entry when the
// buffer is full.
func (b *HistoryBuffer) Push(r Reading) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append([]Reading{r}, b.data...)
	if len(b.data) > b.max {
		b.data = b.data[:b.max]
	}
}

// Get returns the reading at position i, where 0 is the newest.
func (b *HistoryBuffer) Get(i int) (Reading, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= len(b.data) {
		return Reading{}, fmt.Errorf("history index %d out of range [0,%d)", i, len(b.data))
	}
	return b.data[i], nil
}

// Latest returns the newest reading, if any.
func (b *HistoryBuffer) Latest() (Reading, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) == 0 {
		return Reading{}, false
	}
	return b.data[0], true
}

// Snapshot returns a copy of the buffer contents, newest first.
func (b *HistoryBuffer) Snapshot() []Reading {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Reading, len(b.data))
	copy(out, b.data)
	return out
}

// Len reports the number of buffered readings.
func (b *HistoryBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}
