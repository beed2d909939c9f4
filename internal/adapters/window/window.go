package window

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
)

// ErrInvalidCapacity is returned when a window is created with capacity <= 0.
var ErrInvalidCapacity = errors.New("window: capacity must be positive")

// Window is a bounded FIFO of the most recent records. Any number of
// goroutines may push while a reader snapshots. Storage is a ring so both
// append and eviction are O(1).
//
// Sequence numbers keep counting across Clear.
type Window struct {
	mu      sync.Mutex
	data    []domain.Record
	head    int // index of the oldest record once data is full
	cap     int
	seq     uint64
	pushed  uint64
	evicted uint64
	cleared uint64
	now     func() time.Time
}

func New(capacity int) (*Window, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Window{
		data: make([]domain.Record, 0, min(capacity, 1024)),
		cap:  capacity,
		now:  time.Now,
	}, nil
}

func MustNew(capacity int) *Window {
	w, err := New(capacity)
	if err != nil {
		panic(err)
	}
	return w
}

// Push stamps r with the next sequence number, stores it and evicts the
// oldest record if the window is full. The stored record is returned.
func (w *Window) Push(r domain.Record) domain.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pushLocked(r)
}

// PushBatch stores rs in order under a single lock acquisition.
func (w *Window) PushBatch(rs ...domain.Record) []domain.Record {
	if len(rs) == 0 {
		return nil
	}
	out := make([]domain.Record, len(rs))
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, r := range rs {
		out[i] = w.pushLocked(r)
	}
	return out
}

func (w *Window) pushLocked(r domain.Record) domain.Record {
	w.seq++
	r.Seq = w.seq
	if r.Received.IsZero() {
		r.Received = w.now()
	}
	w.pushed++

	if len(w.data) < w.cap {
		w.data = append(w.data, r)
		return r
	}
	w.data[w.head] = r
	w.head++
	if w.head == w.cap {
		w.head = 0
	}
	w.evicted++
	return r
}

// Snapshot copies the most recent n records in arrival order. n <= 0
// returns the whole window. Each copy shares its Fields backing array
// with the buffer, so callers must treat Fields as read-only.
func (w *Window) Snapshot(n int) []domain.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	size := len(w.data)
	if n <= 0 || n > size {
		n = size
	}
	if n == 0 {
		return []domain.Record{}
	}
	out := make([]domain.Record, n)
	w.copyTailLocked(out)
	return out
}

// Since returns every record with a sequence number greater than seq.
// Fields are shared with the buffer as in Snapshot.
func (w *Window) Since(seq uint64) []domain.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	size := len(w.data)
	if size == 0 || seq >= w.seq {
		return []domain.Record{}
	}
	// Sequence numbers inside the window are contiguous, so the count of
	// newer records falls out of the last one.
	n := int(w.seq - seq)
	if n > size {
		n = size
	}
	out := make([]domain.Record, n)
	w.copyTailLocked(out)
	return out
}

func (w *Window) copyTailLocked(out []domain.Record) {
	size := len(w.data)
	n := len(out)
	start := w.head + size - n
	if start >= size {
		start -= size
	}
	copied := copy(out, w.data[start:])
	if copied < n {
		copy(out[copied:], w.data[:n-copied])
	}
}

func (w *Window) Latest() (domain.Record, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.data) == 0 {
		return domain.Record{}, false
	}
	last := w.head - 1
	if last < 0 {
		last = len(w.data) - 1
	}
	return w.data[last], true
}

// Clear drops every record. The sequence counter is not reset.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	clear(w.data)
	w.data = w.data[:0]
	w.head = 0
	w.cleared++
}

func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.data)
}

func (w *Window) Cap() int { return w.cap }

func (w *Window) Stats() ports.WindowStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ports.WindowStats{
		Len:     len(w.data),
		Cap:     w.cap,
		Pushed:  w.pushed,
		Evicted: w.evicted,
		Cleared: w.cleared,
		LastSeq: w.seq,
	}
}

var _ ports.Window = (*Window)(nil)
