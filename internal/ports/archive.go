package ports

import "github.com/ghalamif/sensorboard/internal/domain"

// Archive stores copies of pushed records outside the live window.
type Archive interface {
	WriteBatch(records []domain.Record) error
	Name() string
}

// Recorder captures pushed records for later replay.
type Recorder interface {
	Append(r domain.Record) error
	Close() error
}
