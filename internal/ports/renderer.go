package ports

import (
	"context"

	"github.com/ghalamif/sensorboard/internal/view"
)

// Renderer draws one frame of the dashboard. Exactly one goroutine calls it.
type Renderer interface {
	Render(ctx context.Context, v view.View) error
	Name() string
}
