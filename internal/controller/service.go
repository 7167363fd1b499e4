package controller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/chartsync/internal/bus"
	"github.com/dgnsrekt/chartsync/internal/chart"
	"github.com/dgnsrekt/chartsync/internal/dataset"
	"github.com/dgnsrekt/chartsync/internal/export"
	"github.com/dgnsrekt/chartsync/internal/rangesel"
	"github.com/dgnsrekt/chartsync/internal/render"
	"github.com/dgnsrekt/chartsync/internal/snapshot"
)

// ChartInfo describes a mounted chart instance.
type ChartInfo struct {
	ChartID   string     `json:"chart_id"`
	ConceptID string     `json:"concept_id"`
	MountedAt time.Time  `json:"mounted_at"`
	View      chart.View `json:"view"`
}

// Health summarizes the running service.
type Health struct {
	Charts      int    `json:"charts"`
	Subscribers int    `json:"subscribers"`
	Pending     int    `json:"pending"`
	Backend     string `json:"backend"`
	Connected   bool   `json:"connected"`
}

type entry struct {
	id        string
	conceptID string
	mountedAt time.Time
	chart     chart.Chart
}

func (e *entry) info() ChartInfo {
	return ChartInfo{ChartID: e.id, ConceptID: e.conceptID, MountedAt: e.mountedAt, View: e.chart.View()}
}

// Service owns the mounted charts. Every chart access is funneled through
// the bus loop, so callers may use it from any goroutine.
type Service struct {
	loop        *bus.Loop
	bus         *bus.Bus
	backend     render.Backend
	backendName string
	opts        chart.Options
	snaps       *snapshot.Store
	shooter     Screenshotter

	// Only touched on the loop.
	charts map[string]*entry
	order  []string
}

// NewService wires a service. snaps may be nil, which disables snapshots.
func NewService(b *bus.Bus, backend render.Backend, backendName string, opts chart.Options, snaps *snapshot.Store) *Service {
	return &Service{
		loop:        b.Loop(),
		bus:         b,
		backend:     backend,
		backendName: backendName,
		opts:        opts.WithDefaults(),
		snaps:       snaps,
		charts:      make(map[string]*entry),
	}
}

// Screenshotter rasterizes an exported page.
type Screenshotter interface {
	PNG(ctx context.Context, html []byte) ([]byte, error)
}

// SetScreenshotter enables PNG snapshots. It must be called before the
// service is shared.
func (s *Service) SetScreenshotter(sh Screenshotter) { s.shooter = sh }

// Bus is the bus charts are connected to.
func (s *Service) Bus() *bus.Bus { return s.bus }

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &CodedError{Code: CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

// call runs fn on the loop and classifies whatever it returns.
func (s *Service) call(ctx context.Context, msg string, fn func() error) error {
	return classify(msg, s.loop.Call(ctx, fn))
}

// lookup must run on the loop.
func (s *Service) lookup(chartID string) (*entry, error) {
	e, ok := s.charts[strings.TrimSpace(chartID)]
	if !ok {
		return nil, &CodedError{Code: CodeChartNotFound, Message: fmt.Sprintf("chart %q not found", chartID)}
	}
	return e, nil
}

func (s *Service) Health(ctx context.Context) (Health, error) {
	h := Health{Backend: s.backendName, Connected: true}
	if c, ok := s.backend.(interface{ Connected() bool }); ok {
		h.Connected = c.Connected()
	}
	err := s.call(ctx, "health", func() error {
		h.Charts = len(s.charts)
		h.Subscribers = s.bus.Subscribers()
		h.Pending = s.loop.Pending()
		return nil
	})
	return h, err
}

// --- Chart registry ---

// Mount normalizes view into a dataset, builds the adapter for kind and
// connects it to the bus.
func (s *Service) Mount(ctx context.Context, conceptID, kind string, view dataset.View) (ChartInfo, error) {
	if err := s.requireNonEmpty(conceptID, "concept_id"); err != nil {
		return ChartInfo{}, err
	}
	if err := s.requireNonEmpty(string(view.PK), "view.pk"); err != nil {
		return ChartInfo{}, err
	}
	k, err := render.ParseKind(strings.ToLower(strings.TrimSpace(kind)))
	if err != nil {
		return ChartInfo{}, newError(CodeValidation, "kind must be pie, bar or line", err)
	}

	var info ChartInfo
	err = s.call(ctx, "mount chart", func() error {
		ds := dataset.New(strings.TrimSpace(conceptID), view)
		c, err := chart.New(k, ds, s.backend, s.opts)
		if err != nil {
			return err
		}
		chart.Connect(s.bus, c)
		e := &entry{id: uuid.NewString(), conceptID: ds.ConceptID, mountedAt: time.Now().UTC(), chart: c}
		s.charts[e.id] = e
		s.order = append(s.order, e.id)
		slog.Info("chart mounted", "chart_id", e.id, "key", ds.Key, "kind", k, "points", len(ds.Points))
		info = e.info()
		return nil
	})
	return info, err
}

// Unmount closes the chart and drops it from the registry.
func (s *Service) Unmount(ctx context.Context, chartID string) error {
	if err := s.requireNonEmpty(chartID, "chart_id"); err != nil {
		return err
	}
	return s.call(ctx, "unmount chart", func() error {
		e, err := s.lookup(chartID)
		if err != nil {
			return err
		}
		s.remove(e.id)
		if err := e.chart.Close(); err != nil {
			slog.Warn("chart close failed", "chart_id", e.id, "error", err)
		}
		slog.Info("chart unmounted", "chart_id", e.id, "key", e.chart.Key())
		return nil
	})
}

func (s *Service) remove(id string) {
	delete(s.charts, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// List returns the mounted charts in mount order.
func (s *Service) List(ctx context.Context) ([]ChartInfo, error) {
	var out []ChartInfo
	err := s.call(ctx, "list charts", func() error {
		out = make([]ChartInfo, 0, len(s.order))
		for _, id := range s.order {
			out = append(out, s.charts[id].info())
		}
		return nil
	})
	return out, err
}

func (s *Service) Get(ctx context.Context, chartID string) (ChartInfo, error) {
	return s.withChart(ctx, "get chart", chartID, func(*entry) error { return nil })
}

// withChart runs fn against one chart on the loop and returns its state
// afterwards.
func (s *Service) withChart(ctx context.Context, msg, chartID string, fn func(*entry) error) (ChartInfo, error) {
	if err := s.requireNonEmpty(chartID, "chart_id"); err != nil {
		return ChartInfo{}, err
	}
	var info ChartInfo
	err := s.call(ctx, msg, func() error {
		e, err := s.lookup(chartID)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
		info = e.info()
		return nil
	})
	return info, err
}

// Close unmounts every chart.
func (s *Service) Close(ctx context.Context) error {
	return s.call(ctx, "close charts", func() error {
		for _, id := range s.order {
			if err := s.charts[id].chart.Close(); err != nil {
				slog.Warn("chart close failed", "chart_id", id, "error", err)
			}
		}
		s.charts = make(map[string]*entry)
		s.order = nil
		return nil
	})
}

// --- Interactions ---

func categorical(e *entry) (*chart.Categorical, error) {
	c, ok := e.chart.(*chart.Categorical)
	if !ok {
		return nil, &CodedError{Code: CodeValidation, Message: fmt.Sprintf("chart %s is a %s chart; want pie or bar", e.id, e.chart.Kind())}
	}
	return c, nil
}

func line(e *entry) (*chart.Line, error) {
	l, ok := e.chart.(*chart.Line)
	if !ok {
		return nil, &CodedError{Code: CodeValidation, Message: fmt.Sprintf("chart %s is a %s chart; want line", e.id, e.chart.Kind())}
	}
	return l, nil
}

// Click toggles an element of a pie or bar chart, as a user click would.
// A non-empty category is toggled by name and may have no element.
func (s *Service) Click(ctx context.Context, chartID string, index int, category string) (ChartInfo, error) {
	return s.withChart(ctx, "click", chartID, func(e *entry) error {
		c, err := categorical(e)
		if err != nil {
			return err
		}
		if category != "" {
			_, err := c.Toggle(dataset.Normalize(category))
			return err
		}
		return c.Click(index)
	})
}

// Hover moves the hover point; a negative index clears it.
func (s *Service) Hover(ctx context.Context, chartID string, index int) (ChartInfo, error) {
	return s.withChart(ctx, "hover", chartID, func(e *entry) error {
		h, ok := e.chart.(render.InteractionHandler)
		if !ok {
			return newError(CodeInternal, "chart does not take interactions", nil)
		}
		if index >= e.chart.Surface().Len() {
			return newError(CodeValidation, fmt.Sprintf("index %d out of range", index), render.ErrIndex)
		}
		in := render.Interaction{Kind: render.HoverIn, Index: index}
		if index < 0 {
			in = render.Interaction{Kind: render.HoverOut, Index: -1}
		}
		h.HandleInteraction(in)
		return nil
	})
}

// Drag applies an x-axis drag selection to a line chart.
func (s *Service) Drag(ctx context.Context, chartID string, lo, hi float64) (ChartInfo, error) {
	return s.withChart(ctx, "drag select", chartID, func(e *entry) error {
		l, err := line(e)
		if err != nil {
			return err
		}
		return l.DragSelect(lo, hi)
	})
}

// EditRange types into the companion inputs of a line chart and commits
// the edit once. An empty mode keeps the current one.
func (s *Service) EditRange(ctx context.Context, chartID, lo, hi, mode string) (ChartInfo, error) {
	return s.withChart(ctx, "edit range", chartID, func(e *entry) error {
		l, err := line(e)
		if err != nil {
			return err
		}
		form := l.Form()
		form.SetMin(strings.TrimSpace(lo))
		form.SetMax(strings.TrimSpace(hi))
		if strings.TrimSpace(mode) != "" {
			form.SetMode(rangesel.ParseMode(mode))
		}
		return l.ManualEdit()
	})
}

// Focus runs the focus repaint of one chart.
func (s *Service) Focus(ctx context.Context, chartID string) (ChartInfo, error) {
	return s.withChart(ctx, "focus", chartID, func(e *entry) error {
		return e.chart.GainedFocus()
	})
}

// --- Bus events ---

// publish queues e and waits until it has been dispatched.
func (s *Service) publish(ctx context.Context, msg string, e bus.Event) error {
	s.bus.Publish(e)
	return s.call(ctx, msg, func() error { return nil })
}

// PushDataSource broadcasts an UpdateDS event.
func (s *Service) PushDataSource(ctx context.Context, ds map[string]bus.Value) error {
	if len(ds) == 0 {
		return newError(CodeValidation, "data_source is required", nil)
	}
	return s.publish(ctx, "update data source", bus.NewUpdateDS(ds))
}

// PushElement sends an UpdateElement event to the charts named name.
func (s *Service) PushElement(ctx context.Context, name string, value bus.Value) error {
	if err := s.requireNonEmpty(name, "name"); err != nil {
		return err
	}
	return s.publish(ctx, "update element", bus.NewUpdateElement(strings.TrimSpace(name), value))
}

// GainedFocus sends a GainedFocus event. An empty key reaches every chart.
func (s *Service) GainedFocus(ctx context.Context, key string) error {
	return s.publish(ctx, "gained focus", bus.NewGainedFocus(strings.TrimSpace(key)))
}

// --- Export and snapshots ---

// Export renders the chart as a standalone HTML page.
func (s *Service) Export(ctx context.Context, chartID string) ([]byte, ChartInfo, error) {
	info, err := s.Get(ctx, chartID)
	if err != nil {
		return nil, ChartInfo{}, err
	}
	page, err := export.HTML(info.View)
	if err != nil {
		return nil, ChartInfo{}, newError(CodeInternal, "export chart", err)
	}
	return page, info, nil
}

func (s *Service) requireSnapshots() error {
	if s.snaps == nil {
		return newError(CodeInternal, "snapshots are disabled", nil)
	}
	return nil
}

// TakeSnapshot exports the chart and stores the page as html (the default)
// or png.
func (s *Service) TakeSnapshot(ctx context.Context, chartID, format, notes string) (snapshot.Meta, error) {
	if err := s.requireSnapshots(); err != nil {
		return snapshot.Meta{}, err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", snapshot.FormatHTML:
		format = snapshot.FormatHTML
	case snapshot.FormatPNG:
		if s.shooter == nil {
			return snapshot.Meta{}, newError(CodeValidation, "png snapshots are disabled", nil)
		}
	default:
		return snapshot.Meta{}, newError(CodeValidation, fmt.Sprintf("unknown snapshot format %q", format), nil)
	}
	page, info, err := s.Export(ctx, chartID)
	if err != nil {
		return snapshot.Meta{}, err
	}
	if format == snapshot.FormatPNG {
		if page, err = s.shooter.PNG(ctx, page); err != nil {
			return snapshot.Meta{}, classify("screenshot chart", err)
		}
	}
	meta, err := s.snaps.Save(snapshot.Meta{
		ChartID:   info.ChartID,
		Key:       info.View.Key,
		Kind:      info.View.Kind,
		Title:     info.View.Title,
		Format:    format,
		Selection: info.View.Selection,
		Notes:     strings.TrimSpace(notes),
	}, page)
	if err != nil {
		return snapshot.Meta{}, newError(CodeInternal, "save snapshot", err)
	}
	return meta, nil
}

func (s *Service) ListSnapshots(ctx context.Context) ([]snapshot.Meta, error) {
	if err := s.requireSnapshots(); err != nil {
		return nil, err
	}
	metas, err := s.snaps.List()
	return metas, classify("list snapshots", err)
}

func (s *Service) GetSnapshot(ctx context.Context, id string) (snapshot.Meta, error) {
	if err := s.requireNonEmpty(id, "snapshot_id"); err != nil {
		return snapshot.Meta{}, err
	}
	if err := s.requireSnapshots(); err != nil {
		return snapshot.Meta{}, err
	}
	meta, err := s.snaps.Get(strings.TrimSpace(id))
	return meta, classify("get snapshot", err)
}

func (s *Service) ReadSnapshot(ctx context.Context, id string) ([]byte, snapshot.Meta, error) {
	if err := s.requireNonEmpty(id, "snapshot_id"); err != nil {
		return nil, snapshot.Meta{}, err
	}
	if err := s.requireSnapshots(); err != nil {
		return nil, snapshot.Meta{}, err
	}
	page, meta, err := s.snaps.Read(strings.TrimSpace(id))
	return page, meta, classify("read snapshot", err)
}

func (s *Service) DeleteSnapshot(ctx context.Context, id string) error {
	if err := s.requireNonEmpty(id, "snapshot_id"); err != nil {
		return err
	}
	if err := s.requireSnapshots(); err != nil {
		return err
	}
	return classify("delete snapshot", s.snaps.Delete(strings.TrimSpace(id)))
}
