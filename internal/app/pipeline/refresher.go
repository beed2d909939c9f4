package pipeline

import (
	"context"

	"github.com/coder/quartz"

	"github.com/ghalamif/sensorboard/internal/ports"
	"github.com/ghalamif/sensorboard/internal/view"
)

// Refresher is the single reader of the window. It redraws on every tick
// and on demand.
type Refresher struct {
	window   ports.Window
	renderer ports.Renderer
	pol      ports.Policy
	obs      ports.Observability
	clock    quartz.Clock

	trigger     chan struct{}
	lastEvicted uint64
}

func NewRefresher(w ports.Window, r ports.Renderer, pol ports.Policy, obs ports.Observability, clock quartz.Clock) *Refresher {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Refresher{
		window:   w,
		renderer: r,
		pol:      pol,
		obs:      obs,
		clock:    clock,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger asks for a redraw outside the regular cadence. Requests made
// while one is already pending are folded into it.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run draws once, then on every RedrawInterval tick and Trigger until ctx
// is done.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.pol.RedrawInterval, "refresher")
	defer ticker.Stop()

	r.redraw(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-r.trigger:
		}
		r.redraw(ctx)
	}
}

func (r *Refresher) redraw(ctx context.Context) {
	start := r.clock.Now()
	v := view.Build(r.window.Snapshot(r.pol.ViewRows), view.Options{TableRows: r.pol.TableRows})
	v.Generated = start

	if err := r.renderer.Render(ctx, v); err != nil {
		if ctx.Err() == nil {
			r.obs.LogError("render_failed", err, ports.Field{Key: "renderer", Value: r.renderer.Name()})
		}
	} else {
		r.obs.IncCounter(ports.MetricRedraws, 1)
	}
	r.obs.ObserveLatency(ports.MetricRenderLatency, r.clock.Since(start).Seconds())
	r.reportStats()
}

func (r *Refresher) reportStats() {
	st := r.window.Stats()
	r.obs.SetGauge(ports.MetricWindowLength, float64(st.Len))
	if st.Evicted > r.lastEvicted {
		r.obs.IncCounter(ports.MetricRecordsEvicted, float64(st.Evicted-r.lastEvicted))
	}
	r.lastEvicted = st.Evicted
}
