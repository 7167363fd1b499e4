package chart

import (
	"log/slog"

	"github.com/dgnsrekt/chartsync/internal/bus"
)

// Bridge connects one chart to the bus. Inbound events addressed to the
// chart's key replace its selection or refresh it; local mutations leave as
// ElementChanged events published through the bridge's own subscription, so
// the bus never hands them back to this chart.
type Bridge struct {
	key   string
	chart Chart
	sub   *bus.Subscription
}

// Connect subscribes c to its identity key on b.
func Connect(b *bus.Bus, c Chart) *Bridge {
	br := &Bridge{key: c.Key(), chart: c}
	br.sub = b.Subscribe(bus.Filter{
		Key:   br.key,
		Kinds: []bus.Kind{bus.UpdateDS, bus.UpdateElement, bus.ElementChanged, bus.GainedFocus},
	}, br)
	c.attach(br)
	return br
}

// Key returns the identity key the bridge is bound to.
func (br *Bridge) Key() string { return br.key }

// HandleEvent implements bus.Handler.
func (br *Bridge) HandleEvent(e bus.Event) {
	switch e.Kind {
	case bus.UpdateDS:
		v, ok := e.DataSource[br.key]
		if !ok {
			return
		}
		br.replace(e.Kind, v)
	case bus.UpdateElement, bus.ElementChanged:
		if e.Element == nil || e.Element.Name != br.key {
			return
		}
		br.replace(e.Kind, e.Element.Value)
	case bus.GainedFocus:
		if e.Key != "" && e.Key != br.key {
			return
		}
		if err := br.chart.GainedFocus(); err != nil {
			slog.Warn("chart focus failed", "key", br.key, "error", err)
		}
	}
}

func (br *Bridge) replace(kind bus.Kind, v bus.Value) {
	if err := br.chart.Replace(v); err != nil {
		slog.Warn("chart replace failed", "key", br.key, "event", kind, "error", err)
		return
	}
	slog.Debug("chart replaced", "key", br.key, "event", kind)
}

// Emit publishes the chart's full selection.
func (br *Bridge) Emit(v bus.Value) {
	br.sub.Publish(bus.NewElementChanged(br.key, v))
}

// Close stops inbound delivery.
func (br *Bridge) Close() {
	br.sub.Unsubscribe()
}
