package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
)

// ErrSourceStopped is reported when a source returns while its context is
// still live.
var ErrSourceStopped = errors.New("source stopped")

// RunSources runs every source in its own goroutine until ctx is done. A
// source that gives up early is reported through deliver as an error
// record; the others keep running.
func RunSources(ctx context.Context, sources []ports.Source, deliver ports.Deliver, obs ports.Observability) error {
	var g errgroup.Group
	for _, src := range sources {
		g.Go(func() error {
			obs.LogInfo("source_started", ports.Field{Key: "source", Value: src.Name()})
			err := src.Run(ctx, deliver)
			if ctx.Err() != nil {
				if err != nil && !errors.Is(err, context.Canceled) {
					obs.LogError("source_stop_failed", err, ports.Field{Key: "source", Value: src.Name()})
				}
				return nil
			}
			if err == nil {
				err = ErrSourceStopped
			} else {
				err = fmt.Errorf("%w: %w", ErrSourceStopped, err)
			}
			deliver(domain.FailureMessage(src.Name(), err))
			return nil
		})
	}
	return g.Wait()
}
