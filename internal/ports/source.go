package ports

import (
	"context"

	"github.com/ghalamif/sensorboard/internal/domain"
)

// Deliver hands one inbound message to the ingest side. It is safe to call
// from any goroutine.
type Deliver func(domain.Message)

// Source is a live feed. Run blocks until ctx is done, reconnecting on its
// own and reporting transport failures through deliver.
type Source interface {
	Name() string
	Run(ctx context.Context, deliver Deliver) error
}

// Poller is a Source that can also be asked for a single reading on demand.
type Poller interface {
	Source
	PollOnce(ctx context.Context, deliver Deliver) error
}
