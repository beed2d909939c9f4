package sensorboard

import (
	"errors"
	"testing"
)

func TestNewWindowRejectsBadCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		if _, err := NewWindow(c); !errors.Is(err, ErrInvalidCapacity) {
			t.Fatalf("capacity %d: expected ErrInvalidCapacity, got %v", c, err)
		}
	}
}

func TestWindowAndDecoderTogether(t *testing.T) {
	w, err := NewWindow(2)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	w.Push(Decode([]byte(`{"temperature": 20}`)))
	w.Push(Decode([]byte(`garbage`)))
	w.Push(FailureRecord(errors.New("timeout")))

	snap := w.Snapshot(0)
	if len(snap) != 2 {
		t.Fatalf("expected 2 records, got %d", len(snap))
	}
	if v, _ := snap[0].Get("payload"); v != "garbage" {
		t.Fatalf("expected payload fallback, got %#v", v)
	}
	if v, _ := snap[1].Get("error"); v != "timeout" {
		t.Fatalf("expected error record, got %#v", v)
	}
	if snap[0].Seq != 2 || snap[1].Seq != 3 {
		t.Fatalf("unexpected seqs %d %d", snap[0].Seq, snap[1].Seq)
	}
}

func TestDecodeValueAndAll(t *testing.T) {
	r := DecodeValue(map[string]any{"b": 2, "a": 1})
	if keys := r.Keys(); len(keys) != 2 || keys[0] != "a" {
		t.Fatalf("expected sorted keys, got %v", keys)
	}
	rs := DecodeAll([]byte(`[{"t":1},{"t":2}]`))
	if len(rs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(rs))
	}
}
