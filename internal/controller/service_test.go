package controller

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/dgnsrekt/chartsync/internal/bus"
	"github.com/dgnsrekt/chartsync/internal/chart"
	"github.com/dgnsrekt/chartsync/internal/dataset"
	"github.com/dgnsrekt/chartsync/internal/rangesel"
	"github.com/dgnsrekt/chartsync/internal/render"
	"github.com/dgnsrekt/chartsync/internal/render/memory"
	"github.com/dgnsrekt/chartsync/internal/snapshot"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	loop := bus.NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	snaps, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("snapshot.NewStore() error = %v", err)
	}
	return NewService(bus.New(loop), memory.New(), "memory", chart.Options{}, snaps)
}

func genderView() dataset.View {
	return dataset.View{
		PK:    "12",
		Title: "Gender",
		Coords: []dataset.Coord{
			{Label: "M", Value: 10},
			{Label: "F", Value: 12},
			{Label: nil, Value: 1},
		},
	}
}

func ageView() dataset.View {
	return dataset.View{
		PK:    "1",
		Title: "Age",
		Coords: []dataset.Coord{
			{Label: "0.0", Value: 1},
			{Label: "12.0", Value: 4},
			{Label: "30.0", Value: 2},
		},
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var got *CodedError
	if !errors.As(err, &got) {
		t.Fatalf("error = %v (%T); want *CodedError %s", err, err, code)
	}
	if got.Code != code {
		t.Fatalf("code = %q; want %q (%v)", got.Code, code, err)
	}
}

func TestRequireNonEmpty(t *testing.T) {
	s := &Service{}
	if err := s.requireNonEmpty("3", "concept_id"); err != nil {
		t.Fatalf("requireNonEmpty() = %v; want nil", err)
	}
	err := s.requireNonEmpty("   ", "concept_id")
	requireCode(t, err, CodeValidation)
	if got := err.(*CodedError).Message; got != "concept_id is required" {
		t.Fatalf("requireNonEmpty() message = %q; want %q", got, "concept_id is required")
	}
}

func TestMountValidation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Mount(ctx, " ", "pie", genderView())
	requireCode(t, err, CodeValidation)

	_, err = s.Mount(ctx, "3", "radar", genderView())
	requireCode(t, err, CodeValidation)

	v := genderView()
	v.PK = ""
	_, err = s.Mount(ctx, "3", "pie", v)
	requireCode(t, err, CodeValidation)
}

func TestMountedPeersConverge(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	pie, err := s.Mount(ctx, "3", "pie", genderView())
	if err != nil {
		t.Fatalf("Mount(pie) error = %v", err)
	}
	bar, err := s.Mount(ctx, "3", "BAR", genderView())
	if err != nil {
		t.Fatalf("Mount(bar) error = %v", err)
	}
	if pie.View.Key != "3_12" || bar.View.Key != "3_12" {
		t.Fatalf("keys = %q, %q; want 3_12", pie.View.Key, bar.View.Key)
	}
	if pie.View.Categories[2] != string(dataset.NoData) {
		t.Fatalf("categories = %v; want No Data last", pie.View.Categories)
	}

	got, err := s.Click(ctx, pie.ChartID, 1, "")
	if err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	if !reflect.DeepEqual(got.View.Selection.Categories, []string{"F"}) {
		t.Fatalf("pie selection = %v; want [F]", got.View.Selection.Categories)
	}

	peer, err := s.Get(ctx, bar.ChartID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !reflect.DeepEqual(peer.View.Selection.Categories, []string{"F"}) {
		t.Fatalf("bar selection = %v; want [F]", peer.View.Selection.Categories)
	}
	if peer.View.Colors[1] != chart.DefaultSelectedColor || peer.View.Colors[0] != chart.DefaultUnselectedColor {
		t.Fatalf("bar colors = %v", peer.View.Colors)
	}

	got, err = s.Click(ctx, bar.ChartID, 0, "No Data")
	if err != nil {
		t.Fatalf("Click(category) error = %v", err)
	}
	if !reflect.DeepEqual(got.View.Selection.Categories, []string{"F", "No Data"}) {
		t.Fatalf("bar selection = %v; want [F No Data]", got.View.Selection.Categories)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].ChartID != pie.ChartID || list[1].ChartID != bar.ChartID {
		t.Fatalf("List() = %+v", list)
	}
}

func TestKindSpecificOperations(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	pie, err := s.Mount(ctx, "3", "pie", genderView())
	if err != nil {
		t.Fatalf("Mount(pie) error = %v", err)
	}
	age, err := s.Mount(ctx, "7", "line", ageView())
	if err != nil {
		t.Fatalf("Mount(line) error = %v", err)
	}

	_, err = s.Drag(ctx, pie.ChartID, 1, 2)
	requireCode(t, err, CodeValidation)
	_, err = s.Click(ctx, age.ChartID, 0, "")
	requireCode(t, err, CodeValidation)
	_, err = s.Click(ctx, pie.ChartID, 9, "")
	requireCode(t, err, CodeValidation)
	_, err = s.Hover(ctx, pie.ChartID, 3)
	requireCode(t, err, CodeValidation)
	_, err = s.Get(ctx, "missing")
	requireCode(t, err, CodeChartNotFound)

	got, err := s.Drag(ctx, age.ChartID, -5, 40)
	if err != nil {
		t.Fatalf("Drag() error = %v", err)
	}
	if r := got.View.Selection.Range; r == nil || r.Min != 0 || r.Max != 30 {
		t.Fatalf("drag range = %+v; want [0, 30]", got.View.Selection.Range)
	}

	got, err = s.EditRange(ctx, age.ChartID, "4", "25.04", "exclude:range")
	if err != nil {
		t.Fatalf("EditRange() error = %v", err)
	}
	want := rangesel.Range{Min: 4, Max: 25, Mode: rangesel.Exclude}
	if r := got.View.Selection.Range; r == nil || *r != want {
		t.Fatalf("edited range = %+v; want %+v", got.View.Selection.Range, want)
	}
	if got.View.Band == nil || got.View.Band.Color != chart.DefaultExcludeColor {
		t.Fatalf("band = %+v; want exclude color", got.View.Band)
	}

	if _, err := s.Hover(ctx, pie.ChartID, -1); err != nil {
		t.Fatalf("Hover(-1) error = %v", err)
	}
	if _, err := s.Focus(ctx, age.ChartID); err != nil {
		t.Fatalf("Focus() error = %v", err)
	}
}

func TestPushEventsReplaceSelection(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	pie, err := s.Mount(ctx, "3", "pie", genderView())
	if err != nil {
		t.Fatalf("Mount(pie) error = %v", err)
	}
	age, err := s.Mount(ctx, "7", "line", ageView())
	if err != nil {
		t.Fatalf("Mount(line) error = %v", err)
	}

	if err := s.PushElement(ctx, "3_12", bus.Categories("M", "null")); err != nil {
		t.Fatalf("PushElement() error = %v", err)
	}
	got, err := s.Get(ctx, pie.ChartID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !reflect.DeepEqual(got.View.Selection.Categories, []string{"M", "No Data"}) {
		t.Fatalf("selection = %v; want [M No Data]", got.View.Selection.Categories)
	}

	err = s.PushDataSource(ctx, map[string]bus.Value{
		"3_12": bus.Categories(),
		"7_1":  bus.RangeValue(rangesel.Range{Min: 2, Max: 8, Mode: rangesel.Include}),
	})
	if err != nil {
		t.Fatalf("PushDataSource() error = %v", err)
	}
	got, _ = s.Get(ctx, pie.ChartID)
	if len(got.View.Selection.Categories) != 0 {
		t.Fatalf("selection = %v; want empty", got.View.Selection.Categories)
	}
	line, _ := s.Get(ctx, age.ChartID)
	if line.View.Inputs == nil || line.View.Inputs.Min != "2.0" || line.View.Inputs.Max != "8.0" {
		t.Fatalf("inputs = %+v; want 2.0/8.0", line.View.Inputs)
	}

	requireCode(t, s.PushDataSource(ctx, nil), CodeValidation)
	requireCode(t, s.PushElement(ctx, "", bus.Categories()), CodeValidation)
	if err := s.GainedFocus(ctx, ""); err != nil {
		t.Fatalf("GainedFocus() error = %v", err)
	}
}

func TestExportAndSnapshots(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	pie, err := s.Mount(ctx, "3", "pie", genderView())
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	page, _, err := s.Export(ctx, pie.ChartID)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(string(page), "Gender") {
		t.Fatal("export page missing title")
	}

	meta, err := s.TakeSnapshot(ctx, pie.ChartID, "", " first ")
	if err != nil {
		t.Fatalf("TakeSnapshot() error = %v", err)
	}
	if meta.Key != "3_12" || meta.Notes != "first" {
		t.Fatalf("snapshot meta = %+v", meta)
	}
	stored, _, err := s.ReadSnapshot(ctx, meta.ID)
	if err != nil {
		t.Fatalf("ReadSnapshot() error = %v", err)
	}
	// Each render gets a fresh element id, so pages are compared by content.
	if meta.SizeBytes != len(stored) {
		t.Fatalf("snapshot size = %d; want %d", meta.SizeBytes, len(stored))
	}
	for _, want := range []string{"Gender", `"type":"pie"`} {
		if !strings.Contains(string(stored), want) {
			t.Fatalf("stored page missing %q", want)
		}
	}
	metas, err := s.ListSnapshots(ctx)
	if err != nil || len(metas) != 1 {
		t.Fatalf("ListSnapshots() = %d, %v; want 1", len(metas), err)
	}
	if err := s.DeleteSnapshot(ctx, meta.ID); err != nil {
		t.Fatalf("DeleteSnapshot() error = %v", err)
	}
	_, err = s.GetSnapshot(ctx, meta.ID)
	requireCode(t, err, CodeSnapshotNotFound)
	_, err = s.GetSnapshot(ctx, "not-a-uuid")
	requireCode(t, err, CodeValidation)
}

func TestUnmountReleasesSubscriptions(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	before := s.Bus().Subscribers()
	info, err := s.Mount(ctx, "3", "bar", genderView())
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	if got := s.Bus().Subscribers(); got != before+1 {
		t.Fatalf("Subscribers() = %d; want %d", got, before+1)
	}
	if err := s.Unmount(ctx, info.ChartID); err != nil {
		t.Fatalf("Unmount() error = %v", err)
	}
	if got := s.Bus().Subscribers(); got != before {
		t.Fatalf("Subscribers() = %d after unmount; want %d", got, before)
	}
	requireCode(t, s.Unmount(ctx, info.ChartID), CodeChartNotFound)

	h, err := s.Health(ctx)
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if h.Charts != 0 || h.Backend != "memory" || !h.Connected {
		t.Fatalf("Health() = %+v", h)
	}
}

type fakeShooter struct {
	got []byte
	err error
}

func (f *fakeShooter) PNG(ctx context.Context, html []byte) ([]byte, error) {
	f.got = html
	if f.err != nil {
		return nil, f.err
	}
	return []byte("\x89PNG"), nil
}

func TestPNGSnapshots(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	bar, err := s.Mount(ctx, "3", "bar", genderView())
	if err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	_, err = s.TakeSnapshot(ctx, bar.ChartID, "png", "")
	requireCode(t, err, CodeValidation)
	_, err = s.TakeSnapshot(ctx, bar.ChartID, "gif", "")
	requireCode(t, err, CodeValidation)

	shooter := &fakeShooter{}
	s.SetScreenshotter(shooter)
	meta, err := s.TakeSnapshot(ctx, bar.ChartID, "PNG", "")
	if err != nil {
		t.Fatalf("TakeSnapshot(png) error = %v", err)
	}
	if meta.Format != snapshot.FormatPNG || meta.ContentType() != "image/png" {
		t.Fatalf("meta = %+v", meta)
	}
	if !strings.Contains(string(shooter.got), "Gender") {
		t.Fatal("screenshotter did not receive the exported page")
	}
	page, _, err := s.ReadSnapshot(ctx, meta.ID)
	if err != nil || string(page) != "\x89PNG" {
		t.Fatalf("ReadSnapshot() = %q, %v", page, err)
	}

	shooter.err = fmt.Errorf("%w: tab crashed", render.ErrUnavailable)
	_, err = s.TakeSnapshot(ctx, bar.ChartID, "png", "")
	requireCode(t, err, CodeBackendUnavailable)
}
