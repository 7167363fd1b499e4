package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/dgnsrekt/chartsync/internal/bus"
)

// streamBuffer is the per-client queue length. Events for a client whose
// queue is full are dropped.
const streamBuffer = 256

// streamClient is one external bus participant: a subscription that copies
// matching events into a bounded queue drained by a network writer.
type streamClient struct {
	sub     *bus.Subscription
	ch      chan bus.Event
	keys    map[string]bool
	dropped atomic.Int64
}

func parseKeys(r *http.Request) map[string]bool {
	q := r.URL.Query().Get("keys")
	if q == "" {
		return nil
	}
	keys := make(map[string]bool)
	for _, k := range strings.Split(q, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys[k] = true
		}
	}
	return keys
}

func subscribeStream(b *bus.Bus, keys map[string]bool) *streamClient {
	c := &streamClient{ch: make(chan bus.Event, streamBuffer), keys: keys}
	c.sub = b.Subscribe(bus.Filter{}, bus.HandlerFunc(c.deliver))
	return c
}

// deliver runs on the loop goroutine and never blocks it.
func (c *streamClient) deliver(e bus.Event) {
	if c.keys != nil && e.Key != "" && !c.keys[e.Key] {
		return
	}
	select {
	case c.ch <- e:
	default:
		if n := c.dropped.Add(1); n == 1 || n%100 == 0 {
			slog.Warn("stream client queue full, dropping events", "subscription", c.sub.ID(), "dropped", n)
		}
	}
}

func (c *streamClient) close() {
	c.sub.Unsubscribe()
}

// publish validates an inbound client event and puts it on the bus. The
// client's own subscription is the source, so the event is not echoed back.
func (c *streamClient) publish(data []byte) error {
	var e bus.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	switch e.Kind {
	case bus.UpdateElement:
		if e.Element == nil || strings.TrimSpace(e.Element.Name) == "" {
			return fmt.Errorf("%s requires element.name", e.Kind)
		}
		e = bus.NewUpdateElement(e.Element.Name, e.Element.Value)
	case bus.UpdateDS:
		if len(e.DataSource) == 0 {
			return fmt.Errorf("%s requires data_source", e.Kind)
		}
		e = bus.NewUpdateDS(e.DataSource)
	case bus.GainedFocus:
		e = bus.NewGainedFocus(e.Key)
	default:
		return fmt.Errorf("unsupported event %q", e.Kind)
	}
	c.sub.Publish(e)
	return nil
}

// streamWS upgrades to a WebSocket. Outbound frames are JSON bus events;
// inbound text frames are UpdateElement, UpdateDS or GainedFocus events.
// Clients may filter keys via ?keys=k1,k2; events without a key always pass.
func streamWS(b *bus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys := parseKeys(r)
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
			return
		}
		client := subscribeStream(b, keys)
		slog.Info("stream client connected", "transport", "ws", "subscription", client.sub.ID(), "remote", r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		var writeMu sync.Mutex
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case e := <-client.ch:
					data, err := json.Marshal(e)
					if err != nil {
						slog.Warn("stream event encode failed", "error", err)
						continue
					}
					writeMu.Lock()
					err = wsutil.WriteServerText(conn, data)
					writeMu.Unlock()
					if err != nil {
						slog.Debug("websocket write failed", "error", err)
						cancel()
						return
					}
				}
			}
		}()

		for {
			data, op, err := wsutil.ReadClientData(conn)
			if err != nil {
				break
			}
			if op != ws.OpText {
				continue
			}
			if err := client.publish(data); err != nil {
				slog.Warn("stream client event rejected", "error", err, "subscription", client.sub.ID())
				msg, _ := json.Marshal(map[string]string{"error": err.Error()})
				writeMu.Lock()
				_ = wsutil.WriteServerText(conn, msg)
				writeMu.Unlock()
			}
		}

		cancel()
		client.close()
		wg.Wait()
		slog.Info("stream client disconnected", "transport", "ws", "subscription", client.sub.ID(), "dropped", client.dropped.Load())
	}
}

// streamSSE is the read-only variant of streamWS for clients that cannot
// speak WebSocket.
func streamSSE(b *bus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		client := subscribeStream(b, parseKeys(r))
		defer client.close()

		for {
			select {
			case <-r.Context().Done():
				return
			case e := <-client.ch:
				data, err := json.Marshal(e)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data)
				flusher.Flush()
			}
		}
	}
}
