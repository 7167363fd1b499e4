package bus

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

// Kind names a notification.
type Kind string

const (
	// UpdateElement pushes an authoritative selection for one identity key.
	UpdateElement Kind = "UpdateElementEvent"
	// UpdateDS pushes a data source: identity key → selection.
	UpdateDS Kind = "UpdateDSEvent"
	// GainedFocus tells a chart it became visible. No payload.
	GainedFocus Kind = "GainedFocusEvent"
	// ElementChanged is emitted by a chart after a local mutation.
	ElementChanged Kind = "ElementChangedEvent"
)

// Element is the {name, value} payload of UpdateElement and ElementChanged.
type Element struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Event is one notification. Key scopes delivery: subscribers bound to a key
// receive events with that key and events with an empty key.
type Event struct {
	Kind       Kind             `json:"event"`
	Key        string           `json:"key,omitempty"`
	Element    *Element         `json:"element,omitempty"`
	DataSource map[string]Value `json:"data_source,omitempty"`

	// Source is the subscription that published the event. The bus never
	// hands an event back to its source.
	Source int64 `json:"-"`
}

// NewUpdateElement addresses value to the chart(s) named name.
func NewUpdateElement(name string, value Value) Event {
	return Event{Kind: UpdateElement, Key: name, Element: &Element{Name: name, Value: value}}
}

// NewElementChanged is the outbound notification of a chart.
func NewElementChanged(name string, value Value) Event {
	return Event{Kind: ElementChanged, Key: name, Element: &Element{Name: name, Value: value}}
}

// NewUpdateDS broadcasts a data source to every chart.
func NewUpdateDS(ds map[string]Value) Event {
	return Event{Kind: UpdateDS, DataSource: ds}
}

// NewGainedFocus addresses a focus notification to key.
func NewGainedFocus(key string) Event {
	return Event{Kind: GainedFocus, Key: key}
}

// Handler receives events on the loop goroutine.
type Handler interface {
	HandleEvent(Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Event)

func (f HandlerFunc) HandleEvent(e Event) { f(e) }

// Filter selects the events a subscription receives. An empty Key receives
// every key; empty Kinds receives every kind.
type Filter struct {
	Key   string
	Kinds []Kind
}

func (f Filter) match(e Event) bool {
	if f.Key != "" && e.Key != "" && e.Key != f.Key {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if k == e.Kind {
			return true
		}
	}
	return false
}

// Bus is the process-wide publish/subscribe channel. Anyone may publish;
// delivery happens on the Loop, one event at a time.
type Bus struct {
	loop *Loop

	mu     sync.RWMutex
	subs   map[int64]*Subscription
	nextID atomic.Int64
}

// New creates a bus dispatching on loop.
func New(loop *Loop) *Bus {
	return &Bus{loop: loop, subs: make(map[int64]*Subscription)}
}

// Loop returns the loop events are dispatched on.
func (b *Bus) Loop() *Loop { return b.loop }

// Subscription is a registered handler.
type Subscription struct {
	id      int64
	bus     *Bus
	filter  Filter
	handler Handler
	active  atomic.Bool
}

// Subscribe registers h for events matching f.
func (b *Bus) Subscribe(f Filter, h Handler) *Subscription {
	s := &Subscription{id: b.nextID.Add(1), bus: b, filter: f, handler: h}
	s.active.Store(true)
	b.mu.Lock()
	b.subs[s.id] = s
	b.mu.Unlock()
	return s
}

// ID identifies the subscription as an event source.
func (s *Subscription) ID() int64 { return s.id }

// Publish sends e with this subscription as its source.
func (s *Subscription) Publish(e Event) {
	e.Source = s.id
	s.bus.Publish(e)
}

// Unsubscribe stops delivery, including for events already queued.
func (s *Subscription) Unsubscribe() {
	if !s.active.Swap(false) {
		return
	}
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
}

// Publish queues e for delivery.
func (b *Bus) Publish(e Event) {
	b.loop.Post(func() { b.dispatch(e) })
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.id == e.Source || !s.filter.match(e) {
			continue
		}
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })
	slog.Debug("bus dispatch", "event", e.Kind, "key", e.Key, "targets", len(targets))
	for _, s := range targets {
		if !s.active.Load() {
			continue
		}
		s.handler.HandleEvent(e)
	}
}
