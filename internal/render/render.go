// Package render defines the contract between chart adapters and the engine
// that actually draws them.
package render

import (
	"errors"

	"github.com/dgnsrekt/chartsync/internal/rangesel"
)

// Kind is the chart type a surface draws.
type Kind string

const (
	Pie  Kind = "pie"
	Bar  Kind = "bar"
	Line Kind = "line"
)

// ParseKind validates a chart kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Pie, Bar, Line:
		return Kind(s), nil
	}
	return "", errors.New("render: unknown chart kind: " + s)
}

// Spec describes a chart to build. Categorical charts fill Categories and
// Values; line charts fill Points with [x, y] pairs.
type Spec struct {
	Kind       Kind
	Title      string
	XAxisTitle string
	YAxisTitle string
	Categories []string
	Values     []float64
	Points     [][2]float64
	Color      string
	DataLabels bool
	ZoomX      bool
	// Tooltips holds the hover text of each element. Empty leaves the
	// backend's default tooltip.
	Tooltips []string
}

// TooltipAt returns the hover text of element i, or "" when unset.
func (s Spec) TooltipAt(i int) string {
	if i < 0 || i >= len(s.Tooltips) {
		return ""
	}
	return s.Tooltips[i]
}

// Len returns the number of elements the spec draws.
func (s Spec) Len() int {
	if s.Kind == Line {
		return len(s.Points)
	}
	return len(s.Categories)
}

// Style is the visual state applied to one element.
type Style struct {
	Color string
}

// PlotBand is a shaded x-axis interval.
type PlotBand struct {
	From  float64
	To    float64
	Color string
}

// Dirty names a part of the chart the backend must re-layout on Redraw.
type Dirty string

const (
	DirtyChart  Dirty = "chart"
	DirtyXAxis  Dirty = "x_axis"
	DirtyYAxis  Dirty = "y_axis"
	DirtySeries Dirty = "series"
)

// InteractionKind names a user action reported by a surface.
type InteractionKind string

const (
	Click       InteractionKind = "click"
	LabelClick  InteractionKind = "label_click"
	HoverIn     InteractionKind = "hover_in"
	HoverOut    InteractionKind = "hover_out"
	RangeSelect InteractionKind = "range_select"
)

// Interaction is a user action on a rendered element. Index addresses the
// element for element actions; Min and Max carry a RangeSelect in axis
// coordinates.
type Interaction struct {
	Kind  InteractionKind `json:"kind"`
	Index int             `json:"index"`
	Min   float64         `json:"min,omitempty"`
	Max   float64         `json:"max,omitempty"`
}

// InteractionHandler receives user actions. Surfaces invoke it on the event
// loop goroutine.
type InteractionHandler interface {
	HandleInteraction(Interaction)
}

// InteractionFunc adapts a function to InteractionHandler.
type InteractionFunc func(Interaction)

func (f InteractionFunc) HandleInteraction(i Interaction) { f(i) }

// Surface is one built chart. It is owned by exactly one adapter.
type Surface interface {
	// Register adds an interaction handler and returns its unregister func.
	Register(InteractionHandler) (unregister func())
	// Len is the number of rendered elements.
	Len() int
	SetStyle(index int, st Style) error
	// SetLabelStyle styles the data label drawn for an element.
	SetLabelStyle(index int, st Style) error
	// SetHover moves the hover point; a negative index clears it.
	SetHover(index int) error
	XExtremes() (rangesel.Extremes, error)
	AddPlotBand(PlotBand) error
	RemovePlotBands() error
	MarkDirty(parts ...Dirty)
	Redraw() error
	Close() error
}

// Backend builds surfaces.
type Backend interface {
	Build(Spec) (Surface, error)
}

var (
	// ErrIndex is returned for element indexes outside the surface.
	ErrIndex = errors.New("render: element index out of range")
	// ErrUnavailable is wrapped by backends that cannot reach their engine.
	ErrUnavailable = errors.New("render: backend unavailable")
)
