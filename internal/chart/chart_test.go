package chart

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/dgnsrekt/chartsync/internal/bus"
	"github.com/dgnsrekt/chartsync/internal/dataset"
	"github.com/dgnsrekt/chartsync/internal/rangesel"
	"github.com/dgnsrekt/chartsync/internal/render"
	"github.com/dgnsrekt/chartsync/internal/render/memory"
)

type harness struct {
	loop    *bus.Loop
	bus     *bus.Bus
	emitted []bus.Event
}

func newHarness() *harness {
	h := &harness{loop: bus.NewLoop()}
	h.bus = bus.New(h.loop)
	h.bus.Subscribe(bus.Filter{Kinds: []bus.Kind{bus.ElementChanged}}, bus.HandlerFunc(func(e bus.Event) {
		h.emitted = append(h.emitted, e)
	}))
	return h
}

func view(coords ...dataset.Coord) dataset.View {
	return dataset.View{PK: "12", Title: "Gender", XAxis: "x", YAxis: "count", Coords: coords}
}

func surfaceOf(t *testing.T, c Chart) *memory.Surface {
	t.Helper()
	s, ok := c.Surface().(*memory.Surface)
	if !ok {
		t.Fatalf("surface is %T; want *memory.Surface", c.Surface())
	}
	return s
}

func TestPieRaisesSmallSlicesAndKeepsTooltips(t *testing.T) {
	ds := dataset.New("3", view(
		dataset.Coord{Label: "A", Value: 1},
		dataset.Coord{Label: "B", Value: 1},
		dataset.Coord{Label: "C", Value: 98},
	))
	c, err := NewPie(ds, memory.New(), Options{})
	if err != nil {
		t.Fatalf("NewPie() error = %v", err)
	}
	st := surfaceOf(t, c).State()
	floor := 100 * dataset.DefaultMinimumSlice
	for i, want := range []float64{7, 7, 98} {
		got := st.Spec.Values[i]
		if math.Abs(got-want) > 1e-9 || got < floor {
			t.Fatalf("rendered value %d = %v; want %v and at least %v", i, got, want, floor)
		}
	}
	tip, err := c.Tooltip(0)
	if err != nil {
		t.Fatalf("Tooltip() error = %v", err)
	}
	if tip != "1" {
		t.Fatalf("Tooltip(0) = %q; want %q", tip, "1")
	}
	if want := []string{"1", "1", "98"}; !reflect.DeepEqual(st.Spec.Tooltips, want) {
		t.Fatalf("rendered tooltips = %v; want %v", st.Spec.Tooltips, want)
	}
	if got := c.View().Tooltips; !reflect.DeepEqual(got, []string{"1", "1", "98"}) {
		t.Fatalf("View().Tooltips = %v", got)
	}
}

func TestNullLabelBecomesNoData(t *testing.T) {
	ds := dataset.New("3", view(
		dataset.Coord{Label: nil, Value: 5},
		dataset.Coord{Label: "X", Value: 10},
	))
	c, err := NewBar(ds, memory.New(), Options{})
	if err != nil {
		t.Fatalf("NewBar() error = %v", err)
	}
	if got, want := surfaceOf(t, c).State().Spec.Categories, []string{"No Data", "X"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("categories = %v; want %v", got, want)
	}
	tip, _ := c.Tooltip(1)
	if tip != "X, 10" {
		t.Fatalf("Tooltip(1) = %q; want %q", tip, "X, 10")
	}
	if got := surfaceOf(t, c).State().Spec.TooltipAt(0); got != "No Data, 5" {
		t.Fatalf("rendered tooltip 0 = %q; want %q", got, "No Data, 5")
	}
}

func TestReplaceMatchesNumericLabelsFromWire(t *testing.T) {
	ds := dataset.New("3", view(
		dataset.Coord{Label: float64(1000000), Value: 4},
		dataset.Coord{Label: 1.5, Value: 2},
		dataset.Coord{Label: nil, Value: 1},
	))
	c, err := NewBar(ds, memory.New(), Options{})
	if err != nil {
		t.Fatalf("NewBar() error = %v", err)
	}
	var v bus.Value
	if err := json.Unmarshal([]byte(`[1e6, 1.5, null]`), &v); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if err := c.Replace(v); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if got, want := c.Selection().Categories, []string{"1000000", "1.5", "No Data"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Selection() = %v; want %v", got, want)
	}
}

func TestClickTogglesAndEmitsFullSelection(t *testing.T) {
	h := newHarness()
	ds := dataset.New("3", view(
		dataset.Coord{Label: "W", Value: 2},
		dataset.Coord{Label: "X", Value: 3},
	))
	c, err := NewBar(ds, memory.New(), Options{})
	if err != nil {
		t.Fatalf("NewBar() error = %v", err)
	}
	Connect(h.bus, c)
	s := surfaceOf(t, c)

	s.Fire(render.Interaction{Kind: render.Click, Index: 1})
	h.loop.Drain()
	if len(h.emitted) != 1 {
		t.Fatalf("emitted %d events; want 1", len(h.emitted))
	}
	e := h.emitted[0]
	if e.Element.Name != "3_12" || !reflect.DeepEqual(e.Element.Value.Categories, []string{"X"}) {
		t.Fatalf("emitted %+v; want {3_12 [X]}", e.Element)
	}
	st := s.State()
	if st.Styles[1].Color != DefaultSelectedColor || st.Styles[0].Color != DefaultUnselectedColor {
		t.Fatalf("styles = %v", st.Styles)
	}
	if st.Hover != 1 {
		t.Fatalf("hover = %d; want 1", st.Hover)
	}

	s.Fire(render.Interaction{Kind: render.Click, Index: 1})
	h.loop.Drain()
	if len(h.emitted) != 2 {
		t.Fatalf("emitted %d events; want 2", len(h.emitted))
	}
	if got := h.emitted[1].Element.Value.Categories; len(got) != 0 || got == nil {
		t.Fatalf("second selection = %#v; want empty non-nil", got)
	}
	if got := s.State().Styles[1].Color; got != DefaultUnselectedColor {
		t.Fatalf("style after second click = %q; want %q", got, DefaultUnselectedColor)
	}
}

func TestBarLabelClickMatchesBarClick(t *testing.T) {
	h := newHarness()
	ds := dataset.New("3", view(dataset.Coord{Label: "A", Value: 1}, dataset.Coord{Label: "B", Value: 2}))
	c, _ := NewBar(ds, memory.New(), Options{SelectedColor: "#000000"})
	Connect(h.bus, c)
	s := surfaceOf(t, c)

	s.Fire(render.Interaction{Kind: render.LabelClick, Index: 0})
	h.loop.Drain()
	if !c.Selected("A") {
		t.Fatal("label click did not select A")
	}
	st := s.State()
	if st.Labels[0].Color != "#000000" || st.Styles[0].Color != "#000000" {
		t.Fatalf("label = %q bar = %q; want both #000000", st.Labels[0].Color, st.Styles[0].Color)
	}
	if len(h.emitted) != 1 {
		t.Fatalf("emitted %d events; want 1", len(h.emitted))
	}
}

func TestReplaceIsWholesaleAndSilent(t *testing.T) {
	h := newHarness()
	ds := dataset.New("3", view(
		dataset.Coord{Label: "A", Value: 1},
		dataset.Coord{Label: "B", Value: 1},
		dataset.Coord{Label: nil, Value: 1},
	))
	c, _ := NewPie(ds, memory.New(), Options{})
	Connect(h.bus, c)
	if _, err := c.Toggle("A"); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	h.loop.Drain()
	h.emitted = nil

	h.bus.Publish(bus.NewUpdateDS(map[string]bus.Value{
		"3_12": bus.Categories("B", "null"),
		"3_13": bus.Categories("A"),
	}))
	h.loop.Drain()

	if got, want := c.Selection().Categories, []string{"B", "No Data"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("selection = %v; want %v", got, want)
	}
	if len(h.emitted) != 0 {
		t.Fatalf("replace emitted %d events; want 0", len(h.emitted))
	}
	st := surfaceOf(t, c).State()
	want := []string{DefaultUnselectedColor, DefaultSelectedColor, DefaultSelectedColor}
	for i, s := range st.Styles {
		if s.Color != want[i] {
			t.Fatalf("style[%d] = %q; want %q", i, s.Color, want[i])
		}
	}
}

func TestReplaceIgnoresOtherKeys(t *testing.T) {
	h := newHarness()
	ds := dataset.New("3", view(dataset.Coord{Label: "A", Value: 1}))
	c, _ := NewBar(ds, memory.New(), Options{})
	Connect(h.bus, c)

	h.bus.Publish(bus.NewUpdateElement("3_99", bus.Categories("A")))
	h.loop.Drain()
	if c.Selection().Categories == nil || len(c.Selection().Categories) != 0 {
		t.Fatalf("selection = %v; want empty", c.Selection().Categories)
	}
}

func TestReplaceRejectsRangeForCategorical(t *testing.T) {
	ds := dataset.New("3", view(dataset.Coord{Label: "A", Value: 1}))
	c, _ := NewBar(ds, memory.New(), Options{})
	err := c.Replace(bus.RangeValue(rangesel.Range{Min: 1, Max: 2}))
	if !errors.Is(err, ErrValueKind) {
		t.Fatalf("Replace() error = %v; want ErrValueKind", err)
	}
}

func TestPeersConvergeWithoutFeedback(t *testing.T) {
	h := newHarness()
	coords := []dataset.Coord{{Label: "A", Value: 1}, {Label: "B", Value: 2}}
	a, _ := NewBar(dataset.New("3", view(coords...)), memory.New(), Options{})
	b, _ := NewPie(dataset.New("3", view(coords...)), memory.New(), Options{})
	Connect(h.bus, a)
	Connect(h.bus, b)

	surfaceOf(t, a).Fire(render.Interaction{Kind: render.Click, Index: 1})
	h.loop.Drain()

	if got := b.Selection().Categories; !reflect.DeepEqual(got, []string{"B"}) {
		t.Fatalf("peer selection = %v; want [B]", got)
	}
	if len(h.emitted) != 1 {
		t.Fatalf("emitted %d events; want exactly 1", len(h.emitted))
	}
	if h.loop.Pending() != 0 {
		t.Fatalf("loop still has %d pending tasks", h.loop.Pending())
	}

	// re-asserting held state must not bounce back
	a.Replace(a.Selection())
	h.loop.Drain()
	if len(h.emitted) != 1 {
		t.Fatalf("re-assert emitted; total %d", len(h.emitted))
	}
}

func TestRepaintIsIdempotent(t *testing.T) {
	ds := dataset.New("3", view(dataset.Coord{Label: "A", Value: 1}, dataset.Coord{Label: "B", Value: 2}))
	c, _ := NewBar(ds, memory.New(), Options{})
	c.Replace(bus.Categories("A"))
	first := surfaceOf(t, c).State()
	for i := 0; i < 3; i++ {
		if err := c.Repaint(); err != nil {
			t.Fatalf("Repaint() error = %v", err)
		}
	}
	again := surfaceOf(t, c).State()
	if !reflect.DeepEqual(first.Styles, again.Styles) || !reflect.DeepEqual(first.Labels, again.Labels) {
		t.Fatalf("repaint changed styles: %v -> %v", first.Styles, again.Styles)
	}
}

func TestGainedFocusForcesFullRedraw(t *testing.T) {
	h := newHarness()
	ds := dataset.New("3", view(dataset.Coord{Label: "A", Value: 1}, dataset.Coord{Label: "B", Value: 2}))
	c, _ := NewBar(ds, memory.New(), Options{})
	Connect(h.bus, c)
	s := surfaceOf(t, c)
	before := s.State().Redraws

	h.bus.Publish(bus.NewGainedFocus("3_12"))
	h.loop.Drain()

	st := s.State()
	want := []render.Dirty{render.DirtyChart, render.DirtyXAxis, render.DirtyYAxis, render.DirtySeries}
	if !reflect.DeepEqual(st.Flushed, want) {
		t.Fatalf("flushed = %v; want %v", st.Flushed, want)
	}
	if st.Hover != -1 {
		t.Fatalf("hover = %d; want -1", st.Hover)
	}
	if st.Redraws <= before {
		t.Fatalf("redraws = %d; want more than %d", st.Redraws, before)
	}
	if len(h.emitted) != 0 {
		t.Fatalf("focus emitted %d events", len(h.emitted))
	}
}

func TestHoverInteractions(t *testing.T) {
	ds := dataset.New("3", view(dataset.Coord{Label: "A", Value: 1}, dataset.Coord{Label: "B", Value: 2}))
	c, _ := NewPie(ds, memory.New(), Options{})
	s := surfaceOf(t, c)
	s.Fire(render.Interaction{Kind: render.HoverIn, Index: 1})
	if got := s.State().Hover; got != 1 {
		t.Fatalf("hover = %d; want 1", got)
	}
	s.Fire(render.Interaction{Kind: render.HoverOut, Index: 1})
	if got := s.State().Hover; got != -1 {
		t.Fatalf("hover = %d; want -1", got)
	}
}

func TestCloseReleasesSurfaceAndSubscription(t *testing.T) {
	h := newHarness()
	ds := dataset.New("3", view(dataset.Coord{Label: "A", Value: 1}))
	c, _ := NewBar(ds, memory.New(), Options{})
	Connect(h.bus, c)
	subs := h.bus.Subscribers()

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := h.bus.Subscribers(); got != subs-1 {
		t.Fatalf("Subscribers() = %d; want %d", got, subs-1)
	}
	st := surfaceOf(t, c).State()
	if !st.Closed || st.Handlers != 0 {
		t.Fatalf("surface closed=%v handlers=%d", st.Closed, st.Handlers)
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	ds := dataset.New("3", view())
	if _, err := New("radar", ds, memory.New(), Options{}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
