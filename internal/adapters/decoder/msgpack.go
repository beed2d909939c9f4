package decoder

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/ghalamif/sensorboard/internal/domain"
)

// isMsgpackMap reports whether raw starts with a MessagePack map header.
// Fixmap bytes are UTF-8 continuation bytes, but the map16/map32 markers
// (0xde, 0xdf) are valid two-byte lead bytes, so some text reaches
// decodeMsgpackMap and falls back to a payload record there.
func isMsgpackMap(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	c := raw[0]
	return msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32
}

func decodeMsgpackMap(raw []byte) ([]domain.Field, bool) {
	r := bytes.NewReader(raw)
	dec := msgpack.NewDecoder(r)

	n, err := dec.DecodeMapLen()
	if err != nil || n < 0 {
		return nil, false
	}
	// Every entry takes at least two bytes; a larger count is a lie.
	if n > r.Len()/2 {
		return nil, false
	}
	fields := make([]domain.Field, 0, n)
	index := make(map[string]int, n)
	for i := 0; i < n; i++ {
		k, err := dec.DecodeInterface()
		if err != nil {
			return nil, false
		}
		key, ok := k.(string)
		if !ok {
			key = fmt.Sprint(k)
		}
		v, err := dec.DecodeInterface()
		if err != nil {
			return nil, false
		}
		if j, dup := index[key]; dup {
			fields[j].Value = normalize(v)
			continue
		}
		index[key] = len(fields)
		fields = append(fields, domain.Field{Key: key, Value: normalize(v)})
	}
	if r.Len() != 0 {
		return nil, false
	}
	return fields, true
}
