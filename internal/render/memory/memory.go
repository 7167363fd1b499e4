// Package memory is a headless render backend. It keeps the visual state a
// real engine would show so it can be inspected and exported.
package memory

import (
	"fmt"
	"math"
	"sync"

	"github.com/dgnsrekt/chartsync/internal/rangesel"
	"github.com/dgnsrekt/chartsync/internal/render"
)

// Backend builds memory surfaces.
type Backend struct{}

// New returns a memory backend.
func New() *Backend { return &Backend{} }

func (b *Backend) Build(spec render.Spec) (render.Surface, error) {
	return NewSurface(spec), nil
}

// Surface records every call made against it.
type Surface struct {
	mu       sync.Mutex
	spec     render.Spec
	styles   []render.Style
	labels   []render.Style
	hover    int
	bands    []render.PlotBand
	dirty    map[render.Dirty]bool
	redraws  int
	flushed  []render.Dirty
	closed   bool
	seq      int64
	handlers []handlerEntry
}

type handlerEntry struct {
	id int64
	h  render.InteractionHandler
}

// NewSurface builds a surface with every element in the spec's base color.
func NewSurface(spec render.Spec) *Surface {
	n := spec.Len()
	s := &Surface{
		spec:   spec,
		styles: make([]render.Style, n),
		labels: make([]render.Style, n),
		hover:  -1,
		dirty:  make(map[render.Dirty]bool),
	}
	for i := range s.styles {
		s.styles[i] = render.Style{Color: spec.Color}
		s.labels[i] = render.Style{Color: spec.Color}
	}
	return s
}

func (s *Surface) Register(h render.InteractionHandler) func() {
	s.mu.Lock()
	s.seq++
	id := s.seq
	s.handlers = append(s.handlers, handlerEntry{id: id, h: h})
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, e := range s.handlers {
			if e.id == id {
				s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
				return
			}
		}
	}
}

// Fire delivers an interaction to every registered handler on the calling
// goroutine, as a browser would on its UI thread.
func (s *Surface) Fire(i render.Interaction) {
	s.mu.Lock()
	handlers := make([]handlerEntry, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()
	for _, e := range handlers {
		e.h.HandleInteraction(i)
	}
}

func (s *Surface) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.styles)
}

func (s *Surface) SetStyle(index int, st render.Style) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.styles) {
		return fmt.Errorf("memory: style %d: %w", index, render.ErrIndex)
	}
	s.styles[index] = st
	return nil
}

func (s *Surface) SetLabelStyle(index int, st render.Style) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.labels) {
		return fmt.Errorf("memory: label style %d: %w", index, render.ErrIndex)
	}
	s.labels[index] = st
	return nil
}

func (s *Surface) SetHover(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index >= len(s.styles) {
		return fmt.Errorf("memory: hover %d: %w", index, render.ErrIndex)
	}
	if index < 0 {
		index = -1
	}
	s.hover = index
	return nil
}

// XExtremes returns the x data range for line charts and the category index
// range for categorical charts.
func (s *Surface) XExtremes() (rangesel.Extremes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spec.Kind != render.Line {
		n := s.spec.Len()
		if n == 0 {
			return rangesel.Extremes{}, nil
		}
		return rangesel.Extremes{Min: 0, Max: float64(n - 1)}, nil
	}
	if len(s.spec.Points) == 0 {
		return rangesel.Extremes{}, nil
	}
	// The line x axis is pinned to start at 0.
	ext := rangesel.Extremes{Min: 0, Max: 0}
	for _, p := range s.spec.Points {
		ext.Max = math.Max(ext.Max, p[0])
	}
	return ext, nil
}

func (s *Surface) AddPlotBand(b render.PlotBand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bands = append(s.bands, b)
	return nil
}

func (s *Surface) RemovePlotBands() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bands = nil
	return nil
}

func (s *Surface) MarkDirty(parts ...render.Dirty) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range parts {
		s.dirty[p] = true
	}
}

// Redraw clears the dirty flags, remembering which were set.
func (s *Surface) Redraw() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("memory: redraw on closed surface")
	}
	s.redraws++
	s.flushed = s.dirtyLocked()
	s.dirty = make(map[render.Dirty]bool)
	return nil
}

func (s *Surface) dirtyLocked() []render.Dirty {
	var out []render.Dirty
	for _, d := range []render.Dirty{render.DirtyChart, render.DirtyXAxis, render.DirtyYAxis, render.DirtySeries} {
		if s.dirty[d] {
			out = append(out, d)
		}
	}
	return out
}

func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.handlers = nil
	return nil
}

// State is a copy of what the surface currently shows.
type State struct {
	Spec     render.Spec
	Styles   []render.Style
	Labels   []render.Style
	Hover    int
	Bands    []render.PlotBand
	Dirty    []render.Dirty
	Flushed  []render.Dirty // dirty parts consumed by the last Redraw
	Redraws  int
	Handlers int
	Closed   bool
}

// State returns a snapshot of the surface.
func (s *Surface) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Spec:     s.spec,
		Styles:   append([]render.Style(nil), s.styles...),
		Labels:   append([]render.Style(nil), s.labels...),
		Hover:    s.hover,
		Bands:    append([]render.PlotBand(nil), s.bands...),
		Dirty:    s.dirtyLocked(),
		Flushed:  append([]render.Dirty(nil), s.flushed...),
		Redraws:  s.redraws,
		Handlers: len(s.handlers),
		Closed:   s.closed,
	}
	return st
}
