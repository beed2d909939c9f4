package ports

import "github.com/ghalamif/sensorboard/internal/domain"

// Window is the bounded sliding window of recent records. Records returned
// by Snapshot, Since and Latest share their Fields with the buffer and
// must be treated as read-only.
type Window interface {
	Push(r domain.Record) domain.Record
	PushBatch(rs ...domain.Record) []domain.Record
	Snapshot(n int) []domain.Record
	Since(seq uint64) []domain.Record
	Latest() (domain.Record, bool)
	Clear()
	Len() int
	Cap() int
	Stats() WindowStats
}

type WindowStats struct {
	Len     int    `json:"len"`
	Cap     int    `json:"cap"`
	Pushed  uint64 `json:"pushed"`
	Evicted uint64 `json:"evicted"`
	Cleared uint64 `json:"cleared"`
	LastSeq uint64 `json:"last_seq"`
}
