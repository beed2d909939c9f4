package sensorboard

import (
	"github.com/ghalamif/sensorboard/internal/adapters/decoder"
	"github.com/ghalamif/sensorboard/internal/adapters/window"
	"github.com/ghalamif/sensorboard/internal/view"
)

// ErrInvalidCapacity is returned by NewWindow for capacity <= 0.
var ErrInvalidCapacity = window.ErrInvalidCapacity

// NewWindow creates a standalone sliding window for callers that only need
// the buffer.
func NewWindow(capacity int) (Window, error) {
	w, err := window.New(capacity)
	if err != nil {
		return nil, err
	}
	return w, nil
}

var dec = decoder.New()

// Decode turns a raw JSON or MessagePack payload into a Record. It never
// fails: unparseable input comes back as {"payload": text}.
func Decode(raw []byte) Record {
	r, _ := dec.Decode(raw)
	return r
}

// DecodeString is Decode for text payloads.
func DecodeString(s string) Record {
	r, _ := dec.DecodeString(s)
	return r
}

// DecodeValue accepts an already structured value (map, field list, record).
func DecodeValue(v any) Record {
	r, _ := dec.DecodeValue(v)
	return r
}

// DecodeAll splits a JSON array of objects into one Record per element.
func DecodeAll(raw []byte) []Record {
	return dec.DecodeAll(raw)
}

// FailureRecord wraps a transport error as {"error": message}.
func FailureRecord(err error) Record {
	return decoder.Failure(err)
}

// BuildView summarises records (oldest first) for drawing.
func BuildView(records []Record, tableRows int) View {
	return view.Build(records, view.Options{TableRows: tableRows})
}
