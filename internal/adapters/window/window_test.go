package window

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ghalamif/sensorboard/internal/domain"
)

func rec(name string) domain.Record {
	return domain.NewRecord("name", name)
}

func names(rs []domain.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		v, _ := r.Get("name")
		out[i], _ = v.(string)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		if _, err := New(c); !errors.Is(err, ErrInvalidCapacity) {
			t.Fatalf("New(%d): expected ErrInvalidCapacity, got %v", c, err)
		}
	}
}

func TestWindowSlidesOldestFirst(t *testing.T) {
	w := MustNew(3)
	for _, n := range []string{"A", "B", "C", "D"} {
		w.Push(rec(n))
	}
	if got := names(w.Snapshot(0)); !equal(got, []string{"B", "C", "D"}) {
		t.Fatalf("expected [B C D], got %v", got)
	}

	w.Push(rec("E"))
	if got := names(w.Snapshot(0)); !equal(got, []string{"C", "D", "E"}) {
		t.Fatalf("expected [C D E], got %v", got)
	}
}

func TestWindowBoundedAfterEveryPush(t *testing.T) {
	for _, c := range []int{1, 2, 50, 200} {
		w := MustNew(c)
		for i := 0; i < c*3+1; i++ {
			w.Push(rec(fmt.Sprint(i)))
			if w.Len() > c {
				t.Fatalf("capacity %d: len %d after push %d", c, w.Len(), i)
			}
		}
		if w.Len() != c {
			t.Fatalf("capacity %d: expected full window, got %d", c, w.Len())
		}
	}
}

func TestWindowEvictsFirstOfCPlusOne(t *testing.T) {
	const c = 5
	w := MustNew(c)
	var want []string
	for i := 0; i <= c; i++ {
		w.Push(rec(fmt.Sprint(i)))
		if i > 0 {
			want = append(want, fmt.Sprint(i))
		}
	}
	if got := names(w.Snapshot(0)); !equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if st := w.Stats(); st.Evicted != 1 || st.Pushed != c+1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestSnapshotTail(t *testing.T) {
	w := MustNew(4)
	for _, n := range []string{"a", "b", "c", "d", "e", "f"} {
		w.Push(rec(n))
	}
	if got := names(w.Snapshot(2)); !equal(got, []string{"e", "f"}) {
		t.Fatalf("expected [e f], got %v", got)
	}
	if got := names(w.Snapshot(10)); !equal(got, []string{"c", "d", "e", "f"}) {
		t.Fatalf("expected whole window, got %v", got)
	}

	snap := w.Snapshot(0)
	w.Push(rec("g"))
	if got := names(snap); !equal(got, []string{"c", "d", "e", "f"}) {
		t.Fatalf("snapshot changed after push: %v", got)
	}
}

func TestSequenceNumbersIncrease(t *testing.T) {
	w := MustNew(3)
	for i := 0; i < 7; i++ {
		w.Push(rec(fmt.Sprint(i)))
	}
	snap := w.Snapshot(0)
	for i := 1; i < len(snap); i++ {
		if snap[i].Seq <= snap[i-1].Seq {
			t.Fatalf("sequence not increasing: %d then %d", snap[i-1].Seq, snap[i].Seq)
		}
	}
	if snap[len(snap)-1].Seq != 7 {
		t.Fatalf("expected last seq 7, got %d", snap[len(snap)-1].Seq)
	}
	if snap[0].Received.IsZero() {
		t.Fatalf("expected received time to be stamped")
	}
}

func TestSince(t *testing.T) {
	w := MustNew(3)
	for _, n := range []string{"a", "b", "c", "d"} {
		w.Push(rec(n))
	}
	if got := names(w.Since(2)); !equal(got, []string{"c", "d"}) {
		t.Fatalf("expected [c d], got %v", got)
	}
	if got := names(w.Since(0)); !equal(got, []string{"b", "c", "d"}) {
		t.Fatalf("expected whole window, got %v", got)
	}
	if got := w.Since(4); len(got) != 0 {
		t.Fatalf("expected nothing newer than last seq, got %v", names(got))
	}
}

func TestLatest(t *testing.T) {
	w := MustNew(2)
	if _, ok := w.Latest(); ok {
		t.Fatalf("expected no latest record on empty window")
	}
	for _, n := range []string{"a", "b", "c"} {
		w.Push(rec(n))
		latest, ok := w.Latest()
		if !ok || names([]domain.Record{latest})[0] != n {
			t.Fatalf("expected latest %s, got %+v", n, latest)
		}
	}
}

func TestClearContinuesSequence(t *testing.T) {
	w := MustNew(3)
	w.Push(rec("a"))
	w.Push(rec("b"))
	w.Clear()

	if w.Len() != 0 {
		t.Fatalf("expected empty window after clear, got %d", w.Len())
	}
	if snap := w.Snapshot(0); len(snap) != 0 {
		t.Fatalf("expected empty snapshot after clear, got %d", len(snap))
	}

	got := w.Push(rec("c"))
	if got.Seq != 3 {
		t.Fatalf("expected sequence to continue at 3, got %d", got.Seq)
	}
	if snap := names(w.Snapshot(0)); !equal(snap, []string{"c"}) {
		t.Fatalf("expected [c] after clear+push, got %v", snap)
	}
	if got := names(w.Since(2)); !equal(got, []string{"c"}) {
		t.Fatalf("expected since to see post-clear push, got %v", got)
	}
	if st := w.Stats(); st.Cleared != 1 || st.LastSeq != 3 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestClearOnFullWindow(t *testing.T) {
	w := MustNew(2)
	for _, n := range []string{"a", "b", "c"} {
		w.Push(rec(n))
	}
	w.Clear()
	for _, n := range []string{"d", "e", "f"} {
		w.Push(rec(n))
	}
	if got := names(w.Snapshot(0)); !equal(got, []string{"e", "f"}) {
		t.Fatalf("expected [e f], got %v", got)
	}
}

func TestPushBatchKeepsOrder(t *testing.T) {
	w := MustNew(3)
	stored := w.PushBatch(rec("a"), rec("b"), rec("c"), rec("d"))
	if len(stored) != 4 || stored[3].Seq != 4 {
		t.Fatalf("unexpected stored batch: %+v", stored)
	}
	if got := names(w.Snapshot(0)); !equal(got, []string{"b", "c", "d"}) {
		t.Fatalf("expected [b c d], got %v", got)
	}
	if w.PushBatch() != nil {
		t.Fatalf("expected nil for empty batch")
	}
}

func TestConcurrentProducersLoseNothing(t *testing.T) {
	const (
		producers = 8
		perEach   = 500
	)
	w := MustNew(producers * perEach)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perEach; i++ {
				w.Push(domain.NewRecord("producer", int64(p), "i", int64(i)))
			}
		}(p)
	}
	wg.Wait()

	snap := w.Snapshot(0)
	if len(snap) != producers*perEach {
		t.Fatalf("expected %d records, got %d", producers*perEach, len(snap))
	}

	seen := make(map[[2]int64]bool, len(snap))
	last := make(map[int64]int64)
	for i, r := range snap {
		p, _ := r.Get("producer")
		n, _ := r.Get("i")
		key := [2]int64{p.(int64), n.(int64)}
		if seen[key] {
			t.Fatalf("duplicate record %v", key)
		}
		seen[key] = true
		if i > 0 && r.Seq <= snap[i-1].Seq {
			t.Fatalf("snapshot out of order at %d", i)
		}
		// Each producer's own pushes must appear in the order it made them.
		if prev, ok := last[key[0]]; ok && key[1] <= prev {
			t.Fatalf("producer %d reordered: %d after %d", key[0], key[1], prev)
		}
		last[key[0]] = key[1]
	}
}

func TestSnapshotDuringPushNeverExceedsCapacity(t *testing.T) {
	const c = 16
	w := MustNew(c)
	done := make(chan struct{})

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				w.Push(domain.NewRecord("temperature", float64(i), "humidity", float64(i)))
			}
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		snap := w.Snapshot(0)
		if len(snap) > c {
			t.Fatalf("snapshot length %d exceeds capacity %d", len(snap), c)
		}
		for i, r := range snap {
			if r.Seq == 0 || r.Len() != 2 {
				t.Fatalf("partial record observed: %+v", r)
			}
			if i > 0 && r.Seq <= snap[i-1].Seq {
				t.Fatalf("snapshot out of order")
			}
		}
		select {
		case <-done:
			return
		default:
		}
	}
}

func TestSnapshotIsPointInTime(t *testing.T) {
	w := MustNew(3)
	for _, n := range []string{"a", "b", "c"} {
		w.Push(rec(n))
	}
	snap := w.Snapshot(0)

	w.Push(rec("d"))
	snap[0] = rec("x")
	if got := names(snap[1:]); !equal(got, []string{"b", "c"}) {
		t.Fatalf("snapshot changed after push: %v", got)
	}
	if got := names(w.Snapshot(0)); !equal(got, []string{"b", "c", "d"}) {
		t.Fatalf("window changed by snapshot write: %v", got)
	}

	w.Clear()
	if len(snap) != 3 || names(snap)[2] != "c" {
		t.Fatalf("snapshot changed after clear: %v", names(snap))
	}
}
