package chart

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dgnsrekt/chartsync/internal/bus"
	"github.com/dgnsrekt/chartsync/internal/dataset"
	"github.com/dgnsrekt/chartsync/internal/render"
	"github.com/dgnsrekt/chartsync/internal/selection"
)

// Categorical is the pie and bar adapter: every element is one category and
// clicking it toggles that category in the selection.
type Categorical struct {
	base
	state *selection.State

	// styleLabels makes data labels follow their element's color.
	styleLabels bool
	tooltip     func(p dataset.DataPoint) string
}

// NewPie builds a pie chart. Slices below the minimum fraction are raised
// before the surface is built.
func NewPie(ds *dataset.Dataset, backend render.Backend, opts Options) (*Categorical, error) {
	opts = opts.WithDefaults()
	ds.AdjustSlices(opts.MinimumSlice)
	c := &Categorical{
		state: selection.New(),
		tooltip: func(p dataset.DataPoint) string {
			return formatNumber(p.DisplayValue())
		},
	}
	if err := c.mount(render.Pie, ds, backend, opts); err != nil {
		return nil, err
	}
	return c, nil
}

// NewBar builds a bar chart whose data labels are clickable and colored like
// their bars.
func NewBar(ds *dataset.Dataset, backend render.Backend, opts Options) (*Categorical, error) {
	opts = opts.WithDefaults()
	c := &Categorical{
		state:       selection.New(),
		styleLabels: true,
		tooltip: func(p dataset.DataPoint) string {
			return string(p.Category) + ", " + formatNumber(p.DisplayValue())
		},
	}
	if err := c.mount(render.Bar, ds, backend, opts); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Categorical) mount(kind render.Kind, ds *dataset.Dataset, backend render.Backend, opts Options) error {
	spec := render.Spec{
		Kind:       kind,
		Title:      ds.Title,
		XAxisTitle: ds.XAxis,
		YAxisTitle: ds.YAxis,
		Categories: make([]string, len(ds.Points)),
		Values:     make([]float64, len(ds.Points)),
		Color:      opts.UnselectedColor,
		DataLabels: kind == render.Bar,
		Tooltips:   make([]string, len(ds.Points)),
	}
	for i, p := range ds.Points {
		spec.Categories[i] = string(p.Category)
		spec.Values[i] = p.Value
		spec.Tooltips[i] = c.tooltip(p)
	}
	surface, err := backend.Build(spec)
	if err != nil {
		return fmt.Errorf("chart: build %s %s: %w", kind, ds.Key, err)
	}
	c.base = base{kind: kind, ds: ds, opts: opts, surface: surface}
	c.unregister = surface.Register(c)
	slog.Debug("chart mounted", "key", ds.Key, "kind", kind, "points", len(ds.Points))
	return nil
}

// HandleInteraction implements render.InteractionHandler.
func (c *Categorical) HandleInteraction(i render.Interaction) {
	switch i.Kind {
	case render.Click, render.LabelClick:
		if err := c.Click(i.Index); err != nil {
			slog.Warn("chart click failed", "key", c.ds.Key, "index", i.Index, "error", err)
		}
	case render.HoverIn, render.HoverOut:
		c.hover(i)
	}
}

// Click toggles the category of element index, restyles it, moves the hover
// point onto it and emits the new selection.
func (c *Categorical) Click(index int) error {
	if err := c.checkIndex(index); err != nil {
		return err
	}
	cat := c.ds.Points[index].Category
	selected := c.state.Toggle(cat)
	slog.Debug("chart toggle", "key", c.ds.Key, "category", cat, "selected", selected)

	if err := c.paint(index, selected); err != nil {
		return err
	}
	if err := c.surface.SetHover(index); err != nil {
		return fmt.Errorf("chart: hover %d: %w", index, err)
	}
	if err := c.surface.Redraw(); err != nil {
		return fmt.Errorf("chart: redraw: %w", err)
	}
	c.emit(c.Selection())
	return nil
}

// Toggle flips cat in the selection, repaints and emits. Categories with no
// element still change the selection.
func (c *Categorical) Toggle(cat dataset.Category) (bool, error) {
	if i := c.ds.Index(cat); i >= 0 {
		if err := c.Click(i); err != nil {
			return false, err
		}
		return c.state.Contains(cat), nil
	}
	selected := c.state.Toggle(cat)
	c.emit(c.Selection())
	return selected, nil
}

// Selected reports whether cat is in the selection.
func (c *Categorical) Selected(cat dataset.Category) bool {
	return c.state.Contains(cat)
}

func (c *Categorical) Selection() bus.Value {
	return bus.Categories(c.state.Strings()...)
}

func (c *Categorical) Repaint() error {
	for i, p := range c.ds.Points {
		if err := c.paint(i, c.state.Contains(p.Category)); err != nil {
			return err
		}
	}
	if err := c.surface.Redraw(); err != nil {
		return fmt.Errorf("chart: redraw: %w", err)
	}
	return nil
}

func (c *Categorical) paint(index int, selected bool) error {
	st := render.Style{Color: c.color(selected)}
	if err := c.surface.SetStyle(index, st); err != nil {
		return fmt.Errorf("chart: style %d: %w", index, err)
	}
	if c.styleLabels {
		if err := c.surface.SetLabelStyle(index, st); err != nil {
			return fmt.Errorf("chart: label style %d: %w", index, err)
		}
	}
	return nil
}

func (c *Categorical) color(selected bool) string {
	if selected {
		return c.opts.SelectedColor
	}
	return c.opts.UnselectedColor
}

func (c *Categorical) GainedFocus() error {
	if err := c.Repaint(); err != nil {
		return err
	}
	return c.focusCycle()
}

// Replace swaps the selection for v and repaints. A null entry selects the
// No Data category.
func (c *Categorical) Replace(v bus.Value) error {
	if v.IsRange() {
		return fmt.Errorf("chart: %s replace with range: %w", c.ds.Key, ErrValueKind)
	}
	cats := make([]dataset.Category, len(v.Categories))
	for i, s := range v.Categories {
		cats[i] = dataset.Normalize(s)
	}
	c.state.Replace(cats)
	return c.Repaint()
}

func (c *Categorical) Tooltip(index int) (string, error) {
	if err := c.checkIndex(index); err != nil {
		return "", err
	}
	return c.tooltip(c.ds.Points[index]), nil
}

func (c *Categorical) View() View {
	v := c.baseView()
	v.Selection = c.Selection()
	v.Colors = make([]string, len(c.ds.Points))
	v.Tooltips = make([]string, len(c.ds.Points))
	for i, p := range c.ds.Points {
		v.Colors[i] = c.color(c.state.Contains(p.Category))
		v.Tooltips[i] = c.tooltip(p)
	}
	return v
}

func (c *Categorical) Close() error {
	return c.close()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
