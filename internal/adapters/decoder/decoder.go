// Package decoder turns raw feed payloads into records. It never fails:
// anything it cannot parse is surfaced as a {"payload": text} record and
// transport errors become {"error": message} records.
package decoder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
)

type Decoder struct{}

func New() *Decoder { return &Decoder{} }

// FromMessage decodes one delivery. A transport error wins over any payload
// carried alongside it.
func (d *Decoder) FromMessage(msg domain.Message) (domain.Record, domain.Kind) {
	var (
		r    domain.Record
		kind domain.Kind
	)
	switch {
	case msg.Err != nil:
		r, kind = Failure(msg.Err), domain.KindError
	case len(msg.Fields) > 0:
		r = domain.Record{Fields: cloneFields(msg.Fields)}
		kind = domain.KindStructured
		if len(r.Fields) == 1 && r.Fields[0].Key == domain.KeyInfo {
			kind = domain.KindInfo
		}
	default:
		r, kind = d.Decode(msg.Payload)
	}
	r.Source = msg.Source
	r.Received = msg.Received
	return r, kind
}

// Decode parses a JSON or MessagePack key/value document. Everything else
// comes back wrapped as a payload record.
func (d *Decoder) Decode(raw []byte) (domain.Record, domain.Kind) {
	trimmed := bytes.TrimSpace(raw)
	if fields, ok := decodeJSONObject(trimmed); ok {
		return domain.Record{Fields: fields}, domain.KindStructured
	}
	if isMsgpackMap(raw) {
		if fields, ok := decodeMsgpackMap(raw); ok {
			return domain.Record{Fields: fields}, domain.KindStructured
		}
	}
	return Payload(string(raw)), domain.KindPayload
}

// DecodeAll splits a top-level JSON array of objects into one record per
// element. Arrays holding anything else, and non-array input, behave like
// Decode.
func (d *Decoder) DecodeAll(raw []byte) []domain.Record {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err == nil {
			out := make([]domain.Record, 0, len(items))
			for _, item := range items {
				fields, ok := decodeJSONObject(bytes.TrimSpace(item))
				if !ok {
					out = out[:0]
					break
				}
				out = append(out, domain.Record{Fields: fields})
			}
			if len(items) > 0 && len(out) == len(items) {
				return out
			}
		}
	}
	r, _ := d.Decode(raw)
	return []domain.Record{r}
}

func (d *Decoder) DecodeString(s string) (domain.Record, domain.Kind) {
	return d.Decode([]byte(s))
}

// DecodeValue accepts input that may already be structured.
func (d *Decoder) DecodeValue(v any) (domain.Record, domain.Kind) {
	switch val := v.(type) {
	case nil:
		return Payload(""), domain.KindPayload
	case []byte:
		return d.Decode(val)
	case string:
		return d.DecodeString(val)
	case error:
		return Failure(val), domain.KindError
	case domain.Record:
		return domain.Record{Fields: cloneFields(val.Fields)}, domain.KindStructured
	case []domain.Field:
		return domain.Record{Fields: cloneFields(val)}, domain.KindStructured
	case map[string]any:
		return domain.Record{Fields: fieldsFromMap(val)}, domain.KindStructured
	case domain.Message:
		return d.FromMessage(val)
	default:
		return Payload(fmt.Sprint(val)), domain.KindPayload
	}
}

// Payload wraps text that could not be parsed.
func Payload(text string) domain.Record {
	return domain.Record{Fields: []domain.Field{{Key: domain.KeyPayload, Value: text}}}
}

// Failure turns a transport error into a record the reader will see inline.
func Failure(err error) domain.Record {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return domain.Record{Fields: []domain.Field{{Key: domain.KeyError, Value: msg}}}
}

func Info(text string) domain.Record {
	return domain.Record{Fields: []domain.Field{{Key: domain.KeyInfo, Value: text}}}
}

func decodeJSONObject(raw []byte) ([]domain.Field, bool) {
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	if _, err := dec.Token(); err != nil {
		return nil, false
	}
	var (
		fields []domain.Field
		index  = make(map[string]int)
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := tok.(string)
		if !ok {
			return nil, false
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, false
		}
		v, err := scalarFromJSON(val)
		if err != nil {
			return nil, false
		}
		// Repeated keys keep their first position and the last value.
		if i, dup := index[key]; dup {
			fields[i].Value = v
			continue
		}
		index[key] = len(fields)
		fields = append(fields, domain.Field{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	if fields == nil {
		fields = []domain.Field{}
	}
	return fields, true
}

func scalarFromJSON(raw json.RawMessage) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty value")
	}
	switch raw[0] {
	case '{', '[':
		var b bytes.Buffer
		if err := json.Compact(&b, raw); err != nil {
			return nil, err
		}
		return b.String(), nil
	case 'n':
		return nil, nil
	case 't':
		return true, nil
	case 'f':
		return false, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return parseNumber(string(raw))
	}
}

func parseNumber(s string) (any, error) {
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
	}
	return strconv.ParseFloat(s, 64)
}

func fieldsFromMap(m map[string]any) []domain.Field {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]domain.Field, len(keys))
	for i, k := range keys {
		fields[i] = domain.Field{Key: k, Value: normalize(m[k])}
	}
	return fields
}

// normalize folds Go values into the scalar kinds a record holds.
func normalize(v any) any {
	switch val := v.(type) {
	case nil, int64, string, bool:
		return val
	case float64:
		return domain.JSONValue(val)
	case json.Number:
		n, err := parseNumber(val.String())
		if err != nil {
			return val.String()
		}
		return n
	case float32:
		return domain.JSONValue(float64(val))
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return unsignedToScalar(uint64(val))
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return unsignedToScalar(val)
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

func unsignedToScalar(u uint64) any {
	if u > 1<<63-1 {
		return float64(u)
	}
	return int64(u)
}

func cloneFields(fs []domain.Field) []domain.Field {
	out := make([]domain.Field, len(fs))
	for i, f := range fs {
		out[i] = domain.Field{Key: f.Key, Value: normalize(f.Value)}
	}
	return out
}

var _ ports.Decoder = (*Decoder)(nil)
