package ports

import "time"

type Policy struct {
	Capacity       int           `yaml:"capacity"`
	RedrawInterval time.Duration `yaml:"redraw_interval"`
	ViewRows       int           `yaml:"view_rows"`
	TableRows      int           `yaml:"table_rows"`

	ArchiveQueueLen  int           `yaml:"archive_queue_len"`
	ArchiveBatchSize int           `yaml:"archive_batch_size"`
	IdleSleep        time.Duration `yaml:"idle_sleep"`
}
