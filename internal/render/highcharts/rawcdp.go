package highcharts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

const eventBindingCalled = "Runtime.bindingCalled"

var errCDPClosed = errors.New("rawcdp: connection closed")

// rawCDP speaks CDP over the browser-level WebSocket with flattened
// sessions. It covers target listing, attach/detach, Runtime.evaluate and
// Runtime.addBinding; nothing else.
type rawCDP struct {
	httpBase string

	writeMu sync.Mutex
	conn    net.Conn
	nextID  atomic.Int64

	waitMu  sync.Mutex
	waiters map[int64]chan cdpMessage

	listenMu  sync.RWMutex
	listeners map[string][]cdpListener
}

// cdpMessage is any frame the browser sends: a command response (ID set)
// or an event (Method set).
type cdpMessage struct {
	ID        int64           `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *struct {
		Code    int64  `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type cdpListener struct {
	id int64
	fn func(sessionID string, params json.RawMessage)
}

func newRawCDP(httpBase string) *rawCDP {
	return &rawCDP{
		httpBase:  strings.TrimRight(httpBase, "/"),
		waiters:   make(map[int64]chan cdpMessage),
		listeners: make(map[string][]cdpListener),
	}
}

func (r *rawCDP) connect(ctx context.Context) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if r.conn != nil {
		return nil
	}

	wsURL, err := r.browserWSURL(ctx)
	if err != nil {
		return err
	}

	slog.Debug("rawcdp connecting", "ws_url", wsURL)
	conn, _, _, err := ws.Dial(ctx, wsURL)
	if err != nil {
		return fmt.Errorf("rawcdp: dial: %w", err)
	}
	r.conn = conn
	go r.readLoop(conn)
	return nil
}

// browserWSURL reads the browser-level debugger socket from /json/version.
func (r *rawCDP) browserWSURL(ctx context.Context) (string, error) {
	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := r.getJSON(ctx, "/json/version", &version); err != nil {
		return "", fmt.Errorf("rawcdp: browser ws url: %w", err)
	}
	if version.WebSocketDebuggerURL == "" {
		return "", errors.New("rawcdp: browser ws url: empty webSocketDebuggerUrl")
	}
	return version.WebSocketDebuggerURL, nil
}

func (r *rawCDP) close() {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if r.conn != nil {
		_ = r.conn.Close()
		r.conn = nil
	}
}

func (r *rawCDP) readLoop(conn net.Conn) {
	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			slog.Debug("rawcdp read loop exit", "error", err)
			r.failWaiters()
			return
		}
		r.handleMessage(data)
	}
}

func (r *rawCDP) handleMessage(data []byte) {
	var msg cdpMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Debug("rawcdp undecodable frame", "error", err)
		return
	}
	switch {
	case msg.ID > 0:
		r.waitMu.Lock()
		ch, ok := r.waiters[msg.ID]
		delete(r.waiters, msg.ID)
		r.waitMu.Unlock()
		if ok {
			ch <- msg
		}
	case msg.Method != "":
		r.listenMu.RLock()
		ls := append([]cdpListener(nil), r.listeners[msg.Method]...)
		r.listenMu.RUnlock()
		for _, l := range ls {
			l.fn(msg.SessionID, msg.Params)
		}
	}
}

func (r *rawCDP) failWaiters() {
	r.waitMu.Lock()
	defer r.waitMu.Unlock()
	for id, ch := range r.waiters {
		close(ch)
		delete(r.waiters, id)
	}
}

// call sends method on sessionID (empty for the browser session) and
// decodes the result into out when out is non-nil.
func (r *rawCDP) call(ctx context.Context, sessionID, method string, params, out any) error {
	id := r.nextID.Add(1)
	frame, err := json.Marshal(struct {
		ID        int64  `json:"id"`
		Method    string `json:"method"`
		SessionID string `json:"sessionId,omitempty"`
		Params    any    `json:"params,omitempty"`
	}{id, method, sessionID, params})
	if err != nil {
		return fmt.Errorf("rawcdp: %s: marshal: %w", method, err)
	}

	ch := make(chan cdpMessage, 1)
	r.waitMu.Lock()
	r.waiters[id] = ch
	r.waitMu.Unlock()
	forget := func() {
		r.waitMu.Lock()
		delete(r.waiters, id)
		r.waitMu.Unlock()
	}

	r.writeMu.Lock()
	if r.conn == nil {
		r.writeMu.Unlock()
		forget()
		return fmt.Errorf("rawcdp: %s: not connected", method)
	}
	err = wsutil.WriteClientText(r.conn, frame)
	r.writeMu.Unlock()
	if err != nil {
		forget()
		return fmt.Errorf("rawcdp: %s: send: %w", method, err)
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return fmt.Errorf("rawcdp: %s: %w", method, errCDPClosed)
		}
		if msg.Error != nil {
			return fmt.Errorf("rawcdp: %s: %s", method, msg.Error.Message)
		}
		if out == nil || len(msg.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(msg.Result, out); err != nil {
			return fmt.Errorf("rawcdp: %s: decode result: %w", method, err)
		}
		return nil
	case <-ctx.Done():
		forget()
		return ctx.Err()
	}
}

func (r *rawCDP) attachToTarget(ctx context.Context, targetID string) (string, error) {
	var res target.AttachToTargetReturns
	params := target.AttachToTarget(target.ID(targetID)).WithFlatten(true)
	if err := r.call(ctx, "", target.CommandAttachToTarget, params, &res); err != nil {
		return "", err
	}
	return string(res.SessionID), nil
}

func (r *rawCDP) detachFromTarget(ctx context.Context, sessionID string) error {
	params := target.DetachFromTarget().WithSessionID(target.SessionID(sessionID))
	return r.call(ctx, "", target.CommandDetachFromTarget, params, nil)
}

// evaluate runs js on the session, awaiting promises, and returns the
// result as a string.
func (r *rawCDP) evaluate(ctx context.Context, sessionID, js string) (string, error) {
	params := runtime.Evaluate(js).WithReturnByValue(true).WithAwaitPromise(true)
	var raw json.RawMessage
	if err := r.call(ctx, sessionID, runtime.CommandEvaluate, params, &raw); err != nil {
		return "", err
	}
	return decodeEvalResult(raw)
}

func decodeEvalResult(raw json.RawMessage) (string, error) {
	var res struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", fmt.Errorf("rawcdp: decode eval: %w", err)
	}
	if res.ExceptionDetails != nil {
		return "", fmt.Errorf("rawcdp: eval exception: %s", res.ExceptionDetails.Text)
	}
	var s string
	if err := json.Unmarshal(res.Result.Value, &s); err != nil {
		return string(res.Result.Value), nil
	}
	return s, nil
}

// addBinding exposes window[name] on the session. Calls to it arrive as
// Runtime.bindingCalled events.
func (r *rawCDP) addBinding(ctx context.Context, sessionID, name string) error {
	return r.call(ctx, sessionID, runtime.CommandAddBinding, runtime.AddBinding(name), nil)
}

// listTargets reads /json/list.
func (r *rawCDP) listTargets(ctx context.Context) ([]*target.Info, error) {
	var entries []struct {
		ID    string `json:"id"`
		Type  string `json:"type"`
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	if err := r.getJSON(ctx, "/json/list", &entries); err != nil {
		return nil, fmt.Errorf("rawcdp: list targets: %w", err)
	}
	out := make([]*target.Info, 0, len(entries))
	for _, e := range entries {
		out = append(out, &target.Info{TargetID: target.ID(e.ID), Type: e.Type, Title: e.Title, URL: e.URL})
	}
	return out, nil
}

// registerEventHandler subscribes fn to a CDP event and returns its
// unregister func.
func (r *rawCDP) registerEventHandler(method string, fn func(sessionID string, params json.RawMessage)) func() {
	id := r.nextID.Add(1)
	r.listenMu.Lock()
	r.listeners[method] = append(r.listeners[method], cdpListener{id: id, fn: fn})
	r.listenMu.Unlock()
	return func() {
		r.listenMu.Lock()
		defer r.listenMu.Unlock()
		ls := r.listeners[method]
		for i, l := range ls {
			if l.id == id {
				r.listeners[method] = append(ls[:i], ls[i+1:]...)
				return
			}
		}
	}
}

func (r *rawCDP) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.httpBase+path, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: HTTP %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
