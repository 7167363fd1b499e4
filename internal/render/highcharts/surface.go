package highcharts

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgnsrekt/chartsync/internal/rangesel"
	"github.com/dgnsrekt/chartsync/internal/render"
)

// Surface is one Highcharts chart in the tab. Style and band calls update
// the chart without redrawing; Redraw flushes them together with the dirty
// flags collected since the last one.
type Surface struct {
	id      string
	backend *Backend
	spec    render.Spec
	n       int

	mu       sync.Mutex
	dirty    []render.Dirty
	seq      int64
	handlers []handlerEntry
}

type handlerEntry struct {
	id int64
	h  render.InteractionHandler
}

// ID is the key of the chart in the page's registry.
func (s *Surface) ID() string { return s.id }

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

func (s *Surface) fire(i render.Interaction) {
	s.mu.Lock()
	handlers := make([]handlerEntry, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()
	for _, e := range handlers {
		e.h.HandleInteraction(i)
	}
}

func (s *Surface) Len() int { return s.n }

func (s *Surface) checkIndex(index int) error {
	if index < 0 || index >= s.n {
		return fmt.Errorf("highcharts: element %d: %w", index, render.ErrIndex)
	}
	return nil
}

func (s *Surface) SetStyle(index int, st render.Style) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	_, err := s.backend.eval(jsSetPointColor(s.id, index, st.Color))
	return err
}

func (s *Surface) SetLabelStyle(index int, st render.Style) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	_, err := s.backend.eval(jsSetLabelColor(s.id, index, st.Color))
	return err
}

func (s *Surface) SetHover(index int) error {
	if index >= s.n {
		return fmt.Errorf("highcharts: hover %d: %w", index, render.ErrIndex)
	}
	if index < 0 {
		index = -1
	}
	_, err := s.backend.eval(jsSetHover(s.id, index))
	return err
}

func (s *Surface) XExtremes() (rangesel.Extremes, error) {
	data, err := s.backend.eval(jsXExtremes(s.id))
	if err != nil {
		return rangesel.Extremes{}, err
	}
	var ext rangesel.Extremes
	if err := json.Unmarshal(data, &ext); err != nil {
		return rangesel.Extremes{}, fmt.Errorf("highcharts: extremes: %w", err)
	}
	return ext, nil
}

func (s *Surface) AddPlotBand(b render.PlotBand) error {
	_, err := s.backend.eval(jsAddPlotBand(s.id, b))
	return err
}

func (s *Surface) RemovePlotBands() error {
	_, err := s.backend.eval(jsRemovePlotBands(s.id))
	return err
}

func (s *Surface) MarkDirty(parts ...render.Dirty) {
	s.mu.Lock()
	s.dirty = append(s.dirty, parts...)
	s.mu.Unlock()
}

func (s *Surface) Redraw() error {
	s.mu.Lock()
	parts := s.dirty
	s.dirty = nil
	s.mu.Unlock()
	_, err := s.backend.eval(jsRedraw(s.id, parts))
	return err
}

func (s *Surface) Close() error {
	s.mu.Lock()
	s.handlers = nil
	s.mu.Unlock()
	s.backend.forget(s.id)
	_, err := s.backend.eval(jsDestroy(s.id))
	return err
}
