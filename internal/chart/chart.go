// Package chart holds the renderer adapters that bind a dataset and its
// selection to a render surface, and the bridge that keeps them in sync with
// the event bus. Every method must run on the bus loop goroutine.
package chart

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgnsrekt/chartsync/internal/bus"
	"github.com/dgnsrekt/chartsync/internal/dataset"
	"github.com/dgnsrekt/chartsync/internal/rangesel"
	"github.com/dgnsrekt/chartsync/internal/render"
)

// ErrValueKind is returned when a chart is handed a selection of the wrong
// shape, e.g. a range for a pie chart.
var ErrValueKind = errors.New("chart: selection value does not fit chart kind")

// Chart is a mounted adapter.
type Chart interface {
	Key() string
	Kind() render.Kind
	Dataset() *dataset.Dataset
	Surface() render.Surface
	// Selection returns the full current selection as carried on the bus.
	Selection() bus.Value
	// Repaint makes the surface match the selection. Idempotent.
	Repaint() error
	// GainedFocus forces a full repaint after the chart becomes visible.
	GainedFocus() error
	// Replace takes an external selection wholesale. It never emits.
	Replace(bus.Value) error
	Tooltip(index int) (string, error)
	View() View
	Close() error

	attach(*Bridge)
}

// View is a read-only picture of a chart, used for API responses and exports.
type View struct {
	Key        string             `json:"key"`
	Kind       render.Kind        `json:"kind"`
	Title      string             `json:"title"`
	XAxis      string             `json:"xaxis"`
	YAxis      string             `json:"yaxis"`
	Categories []string           `json:"categories"`
	Values     []float64          `json:"values"`
	Display    []float64          `json:"display_values"`
	Colors     []string           `json:"colors"`
	Tooltips   []string           `json:"tooltips,omitempty"`
	Points     [][2]float64       `json:"points,omitempty"`
	Selection  bus.Value          `json:"selection"`
	Band       *render.PlotBand   `json:"band,omitempty"`
	Inputs     *FormState         `json:"inputs,omitempty"`
	Extremes   *rangesel.Extremes `json:"extremes,omitempty"`
}

// FormState is the content of a line chart's companion inputs.
type FormState struct {
	Min  string        `json:"min"`
	Max  string        `json:"max"`
	Mode rangesel.Mode `json:"mode"`
}

// New builds the adapter for kind. Line charts get a fresh rangesel.Form.
func New(kind render.Kind, ds *dataset.Dataset, backend render.Backend, opts Options) (Chart, error) {
	switch kind {
	case render.Pie:
		return NewPie(ds, backend, opts)
	case render.Bar:
		return NewBar(ds, backend, opts)
	case render.Line:
		return NewLine(ds, backend, rangesel.NewForm(), opts)
	}
	return nil, fmt.Errorf("chart: unknown kind %q", kind)
}

// base carries what every adapter shares: the dataset, the surface it owns
// and the bridge it emits through.
type base struct {
	kind       render.Kind
	ds         *dataset.Dataset
	opts       Options
	surface    render.Surface
	unregister func()
	bridge     *Bridge
}

func (b *base) Key() string               { return b.ds.Key }
func (b *base) Kind() render.Kind         { return b.kind }
func (b *base) Dataset() *dataset.Dataset { return b.ds }
func (b *base) Surface() render.Surface   { return b.surface }

func (b *base) attach(br *Bridge) { b.bridge = br }

func (b *base) emit(v bus.Value) {
	if b.bridge == nil {
		return
	}
	b.bridge.Emit(v)
}

// focusCycle walks the hover point over every element, clears it, marks the
// whole chart dirty and redraws. Some engines lose rotated axis labels and
// hover tracking while hidden; this restores both.
func (b *base) focusCycle() error {
	for i := 0; i < b.surface.Len(); i++ {
		if err := b.surface.SetHover(i); err != nil {
			return fmt.Errorf("chart: focus hover %d: %w", i, err)
		}
	}
	if err := b.surface.SetHover(-1); err != nil {
		return fmt.Errorf("chart: focus hover reset: %w", err)
	}
	b.surface.MarkDirty(render.DirtyChart, render.DirtyXAxis, render.DirtyYAxis, render.DirtySeries)
	if err := b.surface.Redraw(); err != nil {
		return fmt.Errorf("chart: focus redraw: %w", err)
	}
	return nil
}

func (b *base) hover(i render.Interaction) {
	index := i.Index
	if i.Kind == render.HoverOut {
		index = -1
	}
	if err := b.surface.SetHover(index); err != nil {
		slog.Warn("chart hover failed", "key", b.ds.Key, "index", index, "error", err)
	}
}

func (b *base) close() error {
	if b.unregister != nil {
		b.unregister()
		b.unregister = nil
	}
	if b.bridge != nil {
		b.bridge.Close()
		b.bridge = nil
	}
	return b.surface.Close()
}

func (b *base) baseView() View {
	v := View{
		Key:        b.ds.Key,
		Kind:       b.kind,
		Title:      b.ds.Title,
		XAxis:      b.ds.XAxis,
		YAxis:      b.ds.YAxis,
		Categories: make([]string, len(b.ds.Points)),
		Values:     make([]float64, len(b.ds.Points)),
		Display:    make([]float64, len(b.ds.Points)),
	}
	for i, p := range b.ds.Points {
		v.Categories[i] = string(p.Category)
		v.Values[i] = p.Value
		v.Display[i] = p.DisplayValue()
	}
	return v
}

func (b *base) checkIndex(index int) error {
	if index < 0 || index >= len(b.ds.Points) {
		return fmt.Errorf("chart: element %d of %d: %w", index, len(b.ds.Points), render.ErrIndex)
	}
	return nil
}
