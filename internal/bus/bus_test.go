package bus

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/dgnsrekt/chartsync/internal/rangesel"
)

func TestLoopRunsTasksInPostOrder(t *testing.T) {
	l := NewLoop()
	var order []int
	l.Post(func() {
		order = append(order, 1)
		l.Post(func() { order = append(order, 3) })
	})
	l.Post(func() { order = append(order, 2) })

	if n := l.Drain(); n != 3 {
		t.Fatalf("Drain() = %d; want 3", n)
	}
	if want := []int{1, 2, 3}; !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v; want %v", order, want)
	}
}

func TestLoopSurvivesPanickingTask(t *testing.T) {
	l := NewLoop()
	ran := false
	l.Post(func() { panic("boom") })
	l.Post(func() { ran = true })
	l.Drain()
	if !ran {
		t.Fatal("task after panic did not run")
	}
}

func TestLoopCall(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	want := errors.New("from loop")
	if err := l.Call(context.Background(), func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("Call() = %v; want %v", err, want)
	}
}

func TestLoopCallRespectsContext(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Call(ctx, func() error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Call() = %v; want deadline exceeded", err)
	}
}

func TestBusScopesByKey(t *testing.T) {
	l := NewLoop()
	b := New(l)

	var a, other, all []Event
	b.Subscribe(Filter{Key: "1_10"}, HandlerFunc(func(e Event) { a = append(a, e) }))
	b.Subscribe(Filter{Key: "1_11"}, HandlerFunc(func(e Event) { other = append(other, e) }))
	b.Subscribe(Filter{}, HandlerFunc(func(e Event) { all = append(all, e) }))

	b.Publish(NewUpdateElement("1_10", Categories("X")))
	b.Publish(NewUpdateDS(map[string]Value{"1_11": Categories()}))
	b.Publish(NewGainedFocus("1_11"))
	l.Drain()

	if len(a) != 2 {
		t.Fatalf("key 1_10 received %d events; want 2 (element + broadcast ds)", len(a))
	}
	if len(other) != 2 {
		t.Fatalf("key 1_11 received %d events; want 2 (ds + focus)", len(other))
	}
	if len(all) != 3 {
		t.Fatalf("wildcard received %d events; want 3", len(all))
	}
}

func TestBusFiltersKinds(t *testing.T) {
	l := NewLoop()
	b := New(l)
	var got []Kind
	b.Subscribe(Filter{Kinds: []Kind{ElementChanged}}, HandlerFunc(func(e Event) { got = append(got, e.Kind) }))
	b.Publish(NewUpdateElement("k", Categories()))
	b.Publish(NewElementChanged("k", Categories()))
	l.Drain()
	if want := []Kind{ElementChanged}; !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds = %v; want %v", got, want)
	}
}

func TestBusNeverEchoesToSource(t *testing.T) {
	l := NewLoop()
	b := New(l)

	var selfCount, peerCount int
	self := b.Subscribe(Filter{Key: "k"}, HandlerFunc(func(Event) { selfCount++ }))
	b.Subscribe(Filter{Key: "k"}, HandlerFunc(func(Event) { peerCount++ }))

	self.Publish(NewElementChanged("k", Categories("A")))
	l.Drain()

	if selfCount != 0 {
		t.Fatalf("source received its own event %d times", selfCount)
	}
	if peerCount != 1 {
		t.Fatalf("peer received %d events; want 1", peerCount)
	}
}

func TestUnsubscribeDropsQueuedDelivery(t *testing.T) {
	l := NewLoop()
	b := New(l)
	n := 0
	s := b.Subscribe(Filter{}, HandlerFunc(func(Event) { n++ }))
	b.Publish(NewGainedFocus("k"))
	s.Unsubscribe()
	s.Unsubscribe()
	l.Drain()
	if n != 0 {
		t.Fatalf("handler ran %d times after unsubscribe", n)
	}
	if b.Subscribers() != 0 {
		t.Fatalf("Subscribers() = %d; want 0", b.Subscribers())
	}
}

func TestValueJSON(t *testing.T) {
	data, err := json.Marshal(Element{Name: "3_12", Value: Categories()})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if got, want := string(data), `{"name":"3_12","value":[]}`; got != want {
		t.Fatalf("json = %s; want %s", got, want)
	}

	var v Value
	if err := json.Unmarshal([]byte(`["A", null, 3]`), &v); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if want := []string{"A", "null", "3"}; !reflect.DeepEqual(v.Categories, want) {
		t.Fatalf("Categories = %v; want %v", v.Categories, want)
	}

	for _, tc := range []struct {
		in   string
		want string
	}{
		{`[1e6]`, "1000000"},
		{`[1000000]`, "1000000"},
		{`[1.5]`, "1.5"},
		{`[true]`, "true"},
		{`[null]`, "null"},
		{`["12"]`, "12"},
	} {
		var item Value
		if err := json.Unmarshal([]byte(tc.in), &item); err != nil {
			t.Fatalf("json.Unmarshal(%s) error = %v", tc.in, err)
		}
		if len(item.Categories) != 1 || item.Categories[0] != tc.want {
			t.Fatalf("json.Unmarshal(%s) = %q; want [%q]", tc.in, item.Categories, tc.want)
		}
	}

	if err := json.Unmarshal([]byte(`{"min":1,"max":4.5,"operator":"exclude:range"}`), &v); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if !v.IsRange() || *v.Range != (rangesel.Range{Min: 1, Max: 4.5, Mode: rangesel.Exclude}) {
		t.Fatalf("Range = %+v", v.Range)
	}

	if err := json.Unmarshal([]byte(`{"min":1}`), &v); err == nil {
		t.Fatal("expected error for range without max")
	}
}
