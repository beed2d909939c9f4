package ports

import "github.com/ghalamif/sensorboard/internal/domain"

type Decoder interface {
	FromMessage(msg domain.Message) (domain.Record, domain.Kind)
	Decode(raw []byte) (domain.Record, domain.Kind)
	DecodeAll(raw []byte) []domain.Record
}
