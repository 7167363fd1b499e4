package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgnsrekt/chartsync/internal/bus"
	"github.com/dgnsrekt/chartsync/internal/rangesel"
)

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("os.Open() failed: %v", err)
	}
	defer f.Close()
	var out []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("invalid journal line %q: %v", sc.Text(), err)
		}
		out = append(out, rec)
	}
	return out
}

func TestAttachRecordsEveryEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.jsonl")
	w, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	loop := bus.NewLoop()
	b := bus.New(loop)
	w.Attach(b)

	b.Publish(bus.NewUpdateElement("3_12", bus.Categories("M")))
	b.Publish(bus.NewElementChanged("7_1", bus.RangeValue(rangesel.Range{Min: 1, Max: 2, Mode: rangesel.Exclude})))
	b.Publish(bus.NewGainedFocus(""))
	loop.Drain()

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	recs := readRecords(t, path)
	if len(recs) != 3 {
		t.Fatalf("records = %d; want 3", len(recs))
	}
	if recs[0].Event != bus.UpdateElement || recs[0].Key != "3_12" || !recs[0].TS.Equal(fixed) {
		t.Fatalf("first record = %+v", recs[0])
	}
	if r := recs[1].Element.Value.Range; r == nil || r.Mode != rangesel.Exclude || r.Max != 2 {
		t.Fatalf("range record = %+v", recs[1].Element)
	}
	if recs[2].Event != bus.GainedFocus {
		t.Fatalf("last event = %s; want %s", recs[2].Event, bus.GainedFocus)
	}
	if b.Subscribers() != 0 {
		t.Fatalf("Subscribers() = %d after Close; want 0", b.Subscribers())
	}
}

func TestAppendAfterClose(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "events.jsonl"), Options{BufferSize: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Append(bus.NewGainedFocus("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("Append() error = %v; want ErrClosed", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open("", Options{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}
