package chart

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dgnsrekt/chartsync/internal/bus"
	"github.com/dgnsrekt/chartsync/internal/dataset"
	"github.com/dgnsrekt/chartsync/internal/rangesel"
	"github.com/dgnsrekt/chartsync/internal/render"
)

// Line is the range-line adapter. Its selection is a numeric x range shown as
// a plot band and mirrored in a companion input form.
type Line struct {
	base
	form      rangesel.Inputs
	unregForm func()
	rng       rangesel.Range
	hasRange  bool
	points    [][2]float64
}

// NewLine builds a line chart and selects the middle third of the x axis.
// The initial range is not emitted.
func NewLine(ds *dataset.Dataset, backend render.Backend, form rangesel.Inputs, opts Options) (*Line, error) {
	opts = opts.WithDefaults()
	l := &Line{form: form, points: linePoints(ds)}
	spec := render.Spec{
		Kind:       render.Line,
		Title:      ds.Title,
		XAxisTitle: ds.XAxis,
		YAxisTitle: ds.YAxis,
		Points:     l.points,
		Color:      opts.UnselectedColor,
		ZoomX:      true,
	}
	surface, err := backend.Build(spec)
	if err != nil {
		return nil, fmt.Errorf("chart: build line %s: %w", ds.Key, err)
	}
	l.base = base{kind: render.Line, ds: ds, opts: opts, surface: surface}
	l.unregister = surface.Register(l)
	l.unregForm = form.OnChange(l)

	ext, err := surface.XExtremes()
	if err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("chart: line %s extremes: %w", ds.Key, err)
	}
	r := rangesel.DefaultRange(ext)
	r.Mode = form.Mode()
	l.writeForm(r)
	if err := l.applyBand(r); err != nil {
		_ = l.Close()
		return nil, err
	}
	slog.Debug("chart mounted", "key", ds.Key, "kind", render.Line, "points", len(l.points), "min", r.Min, "max", r.Max)
	return l, nil
}

// linePoints reads each category as the x value. Labels that are not numbers
// fall back to their position.
func linePoints(ds *dataset.Dataset) [][2]float64 {
	out := make([][2]float64, len(ds.Points))
	for i, p := range ds.Points {
		x, err := strconv.ParseFloat(string(p.Category), 64)
		if err != nil {
			x = float64(i)
		}
		out[i] = [2]float64{x, p.Value}
	}
	return out
}

// Form returns the companion inputs.
func (l *Line) Form() rangesel.Inputs { return l.form }

// Range returns the applied range and whether one is set.
func (l *Line) Range() (rangesel.Range, bool) { return l.rng, l.hasRange }

// HandleInteraction implements render.InteractionHandler.
func (l *Line) HandleInteraction(i render.Interaction) {
	switch i.Kind {
	case render.RangeSelect:
		if err := l.DragSelect(i.Min, i.Max); err != nil {
			slog.Warn("chart drag select failed", "key", l.ds.Key, "min", i.Min, "max", i.Max, "error", err)
		}
	case render.HoverIn, render.HoverOut:
		l.hover(i)
	}
}

// HandleChange implements rangesel.ChangeHandler.
func (l *Line) HandleChange(c rangesel.Change) {
	if err := l.ManualEdit(); err != nil {
		slog.Warn("chart range edit failed", "key", l.ds.Key, "field", c.Field, "error", err)
	}
}

// DragSelect clamps a drag selection to the x extremes, writes it into the
// form, redraws the band and emits.
func (l *Line) DragSelect(lo, hi float64) error {
	ext, err := l.surface.XExtremes()
	if err != nil {
		return fmt.Errorf("chart: extremes: %w", err)
	}
	r := rangesel.Clamp(rangesel.Range{Min: lo, Max: hi, Mode: l.form.Mode()}, ext)
	l.writeForm(r)
	if err := l.applyBand(r); err != nil {
		return err
	}
	l.emit(bus.RangeValue(r))
	return nil
}

// ManualEdit reads the form. Incomplete input changes nothing.
func (l *Line) ManualEdit() error {
	return l.recompute(true)
}

func (l *Line) recompute(emit bool) error {
	r, err := rangesel.Parse(l.form.Min(), l.form.Max(), l.form.Mode())
	if err != nil {
		slog.Debug("chart range ignored", "key", l.ds.Key, "error", err)
		return nil
	}
	ext, err := l.surface.XExtremes()
	if err != nil {
		return fmt.Errorf("chart: extremes: %w", err)
	}
	r = rangesel.Clamp(r, ext)
	if err := l.applyBand(r); err != nil {
		return err
	}
	if emit {
		l.emit(bus.RangeValue(r))
	}
	return nil
}

func (l *Line) writeForm(r rangesel.Range) {
	l.form.SetMin(rangesel.Format(r.Min))
	l.form.SetMax(rangesel.Format(r.Max))
	l.form.SetMode(r.Mode)
}

// applyBand replaces the plot band with r. Bands never stack.
func (l *Line) applyBand(r rangesel.Range) error {
	if err := l.surface.RemovePlotBands(); err != nil {
		return fmt.Errorf("chart: remove band: %w", err)
	}
	if err := l.surface.AddPlotBand(l.band(r)); err != nil {
		return fmt.Errorf("chart: add band: %w", err)
	}
	if err := l.surface.Redraw(); err != nil {
		return fmt.Errorf("chart: redraw: %w", err)
	}
	l.rng = r
	l.hasRange = true
	return nil
}

func (l *Line) clear() error {
	l.form.SetMin("")
	l.form.SetMax("")
	if err := l.surface.RemovePlotBands(); err != nil {
		return fmt.Errorf("chart: remove band: %w", err)
	}
	l.rng = rangesel.Range{}
	l.hasRange = false
	if err := l.surface.Redraw(); err != nil {
		return fmt.Errorf("chart: redraw: %w", err)
	}
	return nil
}

func (l *Line) band(r rangesel.Range) render.PlotBand {
	color := l.opts.IncludeColor
	if r.Mode == rangesel.Exclude {
		color = l.opts.ExcludeColor
	}
	return render.PlotBand{From: r.Min, To: r.Max, Color: color}
}

func (l *Line) Selection() bus.Value {
	if !l.hasRange {
		return bus.Categories()
	}
	return bus.RangeValue(l.rng)
}

func (l *Line) Repaint() error {
	if l.hasRange {
		return l.applyBand(l.rng)
	}
	if err := l.surface.Redraw(); err != nil {
		return fmt.Errorf("chart: redraw: %w", err)
	}
	return nil
}

func (l *Line) GainedFocus() error {
	if err := l.Repaint(); err != nil {
		return err
	}
	return l.focusCycle()
}

// Replace writes an external range into the form and replays the manual edit
// path without emitting. An empty selection clears the inputs and the band.
func (l *Line) Replace(v bus.Value) error {
	if !v.IsRange() {
		if len(v.Categories) > 0 {
			return fmt.Errorf("chart: %s replace with categories: %w", l.ds.Key, ErrValueKind)
		}
		return l.clear()
	}
	r := rangesel.Normalize(*v.Range)
	l.writeForm(r)
	return l.recompute(false)
}

func (l *Line) Tooltip(index int) (string, error) {
	if err := l.checkIndex(index); err != nil {
		return "", err
	}
	return formatNumber(l.points[index][1]), nil
}

func (l *Line) View() View {
	v := l.baseView()
	v.Selection = l.Selection()
	v.Points = l.points
	v.Colors = make([]string, len(l.points))
	for i := range v.Colors {
		v.Colors[i] = l.opts.UnselectedColor
	}
	if l.hasRange {
		b := l.band(l.rng)
		v.Band = &b
	}
	v.Inputs = &FormState{Min: l.form.Min(), Max: l.form.Max(), Mode: l.form.Mode()}
	if ext, err := l.surface.XExtremes(); err == nil {
		v.Extremes = &ext
	}
	return v
}

func (l *Line) Close() error {
	if l.unregForm != nil {
		l.unregForm()
		l.unregForm = nil
	}
	return l.close()
}
