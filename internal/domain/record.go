package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// Field is a single named value inside a Record. Value holds one of
// float64, int64, string, bool or nil.
type Field struct {
	Key   string
	Value any
}

// Record is one decoded reading. Fields keep the order they arrived in.
// Seq and Received are stamped by the window on push; a Record is never
// modified after that. Copies handed out by the window share Fields with
// the stored record, so readers must not write to them.
type Record struct {
	Seq      uint64
	Received time.Time
	Source   string
	Fields   []Field
}

// NewRecord builds a Record from alternating key/value pairs.
func NewRecord(kv ...any) Record {
	fields := make([]Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, Field{Key: key, Value: kv[i+1]})
	}
	return Record{Fields: fields}
}

func (r Record) Get(key string) (any, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func (r Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Number returns the numeric view of key. Absent, null and non-numeric
// values report false.
func (r Record) Number(key string) (float64, bool) {
	v, ok := r.Get(key)
	if !ok {
		return 0, false
	}
	return AsNumber(v)
}

func (r Record) Len() int { return len(r.Fields) }

func (r Record) Keys() []string {
	keys := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		keys[i] = f.Key
	}
	return keys
}

// Map flattens the fields into a map. Field order is lost.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.Fields))
	for _, f := range r.Fields {
		m[f.Key] = f.Value
	}
	return m
}

// IsError reports whether the record carries a transport failure.
func (r Record) IsError() bool { return r.Has(KeyError) }

// WithSource returns a copy of r tagged with the producer name.
func (r Record) WithSource(source string) Record {
	r.Source = source
	return r
}

// MarshalJSON keeps field order, which encoding/json cannot do for maps.
func (r Record) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(`{"seq":`)
	seq, _ := json.Marshal(r.Seq)
	b.Write(seq)
	if !r.Received.IsZero() {
		b.WriteString(`,"received":`)
		ts, err := json.Marshal(r.Received)
		if err != nil {
			return nil, err
		}
		b.Write(ts)
	}
	if r.Source != "" {
		b.WriteString(`,"source":`)
		src, _ := json.Marshal(r.Source)
		b.Write(src)
	}
	b.WriteString(`,"fields":`)
	fields, err := Fields(r.Fields).MarshalJSON()
	if err != nil {
		return nil, err
	}
	b.Write(fields)
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Fields is an ordered field list that encodes as a JSON object.
type Fields []Field

func (fs Fields) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, f := range fs {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(JSONValue(f.Value))
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// JSONValue returns v, except that float NaN and infinities, which JSON
// cannot carry, come back as nil.
func JSONValue(v any) any {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			return nil
		}
	}
	return v
}

// AsNumber converts the numeric scalar kinds a Record may hold.
func AsNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Well-known field names produced by the decoder.
const (
	KeyPayload = "payload"
	KeyError   = "error"
	KeyInfo    = "info"
)
