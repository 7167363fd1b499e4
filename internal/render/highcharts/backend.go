// Package highcharts draws charts with Highcharts inside an already-open
// browser tab, driven over the Chrome DevTools Protocol. Browser-side clicks,
// hovers and zoom selections come back through a Runtime binding and are
// posted onto the caller's event loop.
package highcharts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/google/uuid"

	"github.com/dgnsrekt/chartsync/internal/render"
)

// BindingName is the window function browser-side handlers report through.
const BindingName = "__chartsyncEmit"

// ErrUnavailable wraps every failure to reach the browser. It matches
// render.ErrUnavailable.
var ErrUnavailable = fmt.Errorf("highcharts: browser unavailable: %w", render.ErrUnavailable)

// Poster runs fn on the event loop. bus.Loop.Post satisfies it.
type Poster func(fn func())

type Backend struct {
	cdpURL      string
	tabFilter   string
	evalTimeout time.Duration
	post        Poster

	mu         sync.Mutex
	cdp        *rawCDP
	sessionID  string
	targetID   string
	unregister func()
	surfaces   map[string]*Surface
}

// New returns a backend that is not yet connected.
func New(cdpURL, tabFilter string, evalTimeout time.Duration, post Poster) *Backend {
	return &Backend{
		cdpURL:      strings.TrimSpace(cdpURL),
		tabFilter:   strings.ToLower(strings.TrimSpace(tabFilter)),
		evalTimeout: evalTimeout,
		post:        post,
		surfaces:    make(map[string]*Surface),
	}
}

// Connect attaches to the first page whose URL contains the tab filter and
// installs the interaction binding. The lock is not held across CDP round
// trips because binding events need it on the read goroutine.
func (b *Backend) Connect(ctx context.Context) error {
	b.mu.Lock()
	connected := b.cdp != nil
	b.mu.Unlock()
	if connected {
		return nil
	}
	if b.cdpURL == "" {
		return fmt.Errorf("%w: missing CDP URL", ErrUnavailable)
	}

	slog.Info("highcharts connect start", "cdp_url", b.cdpURL, "tab_filter", b.tabFilter)
	cdp := newRawCDP(b.cdpURL)
	if err := cdp.connect(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	targetID, err := b.pickTarget(ctx, cdp)
	if err != nil {
		cdp.close()
		return err
	}
	sessionID, err := cdp.attachToTarget(ctx, targetID)
	if err != nil {
		cdp.close()
		return fmt.Errorf("%w: attach: %v", ErrUnavailable, err)
	}
	unregister := cdp.registerEventHandler(eventBindingCalled, b.onBinding)
	if err := cdp.addBinding(ctx, sessionID, BindingName); err != nil {
		unregister()
		cdp.close()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := cdp.evaluate(ctx, sessionID, jsInstall()); err != nil {
		unregister()
		cdp.close()
		return fmt.Errorf("%w: install: %v", ErrUnavailable, err)
	}

	b.mu.Lock()
	b.cdp = cdp
	b.sessionID = sessionID
	b.targetID = targetID
	b.unregister = unregister
	b.mu.Unlock()
	slog.Info("highcharts connect ok", "target_id", targetID)
	return nil
}

func (b *Backend) pickTarget(ctx context.Context, cdp *rawCDP) (string, error) {
	targets, err := cdp.listTargets(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: list targets: %v", ErrUnavailable, err)
	}
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if b.tabFilter != "" && !strings.Contains(strings.ToLower(t.URL), b.tabFilter) {
			continue
		}
		return string(t.TargetID), nil
	}
	return "", fmt.Errorf("%w: no page matches %q", ErrUnavailable, b.tabFilter)
}

// Connected reports whether Connect succeeded and Close has not run.
func (b *Backend) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cdp != nil
}

// Close detaches from the tab. Surfaces built earlier stop working.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cdp == nil {
		return nil
	}
	if b.unregister != nil {
		b.unregister()
		b.unregister = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	_ = b.cdp.detachFromTarget(ctx, b.sessionID)
	cancel()
	b.cdp.close()
	b.cdp = nil
	b.sessionID = ""
	b.surfaces = make(map[string]*Surface)
	return nil
}

func (b *Backend) Build(spec render.Spec) (render.Surface, error) {
	id := uuid.NewString()
	s := &Surface{id: id, backend: b, spec: spec, n: spec.Len()}
	if _, err := b.eval(jsBuild(id, spec)); err != nil {
		return nil, fmt.Errorf("highcharts: build %s: %w", spec.Kind, err)
	}
	b.mu.Lock()
	b.surfaces[id] = s
	b.mu.Unlock()
	slog.Debug("highcharts surface built", "surface_id", id, "kind", spec.Kind, "points", s.n)
	return s, nil
}

// eval runs one snippet and decodes the {ok, data, error_message} envelope.
func (b *Backend) eval(js string) (json.RawMessage, error) {
	b.mu.Lock()
	cdp, sessionID := b.cdp, b.sessionID
	b.mu.Unlock()
	if cdp == nil {
		return nil, fmt.Errorf("%w: not connected", ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.evalTimeout)
	defer cancel()
	raw, err := cdp.evaluate(ctx, sessionID, js)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: evaluation timed out: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("highcharts: evaluate: %w", err)
	}
	return decodeEnvelope(raw)
}

type evalEnvelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

func decodeEnvelope(raw string) (json.RawMessage, error) {
	var env evalEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("highcharts: invalid evaluation envelope: %w", err)
	}
	if !env.OK {
		return nil, fmt.Errorf("highcharts: %s", env.ErrorMessage)
	}
	return env.Data, nil
}

// onBinding runs on the CDP read goroutine. It only decodes and posts.
func (b *Backend) onBinding(sessionID string, params json.RawMessage) {
	var ev runtime.EventBindingCalled
	if err := json.Unmarshal(params, &ev); err != nil || ev.Name != BindingName {
		return
	}
	surfaceID, in, err := parseBinding(ev.Payload)
	if err != nil {
		slog.Warn("highcharts binding payload rejected", "error", err)
		return
	}
	b.mu.Lock()
	s := b.surfaces[surfaceID]
	b.mu.Unlock()
	if s == nil {
		slog.Debug("highcharts binding for unknown surface", "surface_id", surfaceID)
		return
	}
	b.post(func() { s.fire(in) })
}

type bindingPayload struct {
	Surface string  `json:"surface"`
	Kind    string  `json:"kind"`
	Index   int     `json:"index"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

func parseBinding(payload string) (string, render.Interaction, error) {
	var p bindingPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", render.Interaction{}, fmt.Errorf("highcharts: binding payload: %w", err)
	}
	if p.Surface == "" {
		return "", render.Interaction{}, fmt.Errorf("highcharts: binding payload without surface")
	}
	kind := render.InteractionKind(p.Kind)
	switch kind {
	case render.Click, render.LabelClick, render.HoverIn, render.HoverOut, render.RangeSelect:
	default:
		return "", render.Interaction{}, fmt.Errorf("highcharts: unknown interaction %q", p.Kind)
	}
	return p.Surface, render.Interaction{Kind: kind, Index: p.Index, Min: p.Min, Max: p.Max}, nil
}

func (b *Backend) forget(id string) {
	b.mu.Lock()
	delete(b.surfaces, id)
	b.mu.Unlock()
}
