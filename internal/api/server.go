package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/chartsync/internal/bus"
	"github.com/dgnsrekt/chartsync/internal/controller"
	"github.com/dgnsrekt/chartsync/internal/dataset"
	"github.com/dgnsrekt/chartsync/internal/snapshot"
)

type Service interface {
	Health(ctx context.Context) (controller.Health, error)
	Mount(ctx context.Context, conceptID, kind string, view dataset.View) (controller.ChartInfo, error)
	Unmount(ctx context.Context, chartID string) error
	List(ctx context.Context) ([]controller.ChartInfo, error)
	Get(ctx context.Context, chartID string) (controller.ChartInfo, error)
	Click(ctx context.Context, chartID string, index int, category string) (controller.ChartInfo, error)
	Hover(ctx context.Context, chartID string, index int) (controller.ChartInfo, error)
	Drag(ctx context.Context, chartID string, lo, hi float64) (controller.ChartInfo, error)
	EditRange(ctx context.Context, chartID, lo, hi, mode string) (controller.ChartInfo, error)
	Focus(ctx context.Context, chartID string) (controller.ChartInfo, error)
	PushDataSource(ctx context.Context, ds map[string]bus.Value) error
	PushElement(ctx context.Context, name string, value bus.Value) error
	GainedFocus(ctx context.Context, key string) error
	Export(ctx context.Context, chartID string) ([]byte, controller.ChartInfo, error)
	TakeSnapshot(ctx context.Context, chartID, format, notes string) (snapshot.Meta, error)
	ListSnapshots(ctx context.Context) ([]snapshot.Meta, error)
	GetSnapshot(ctx context.Context, id string) (snapshot.Meta, error)
	ReadSnapshot(ctx context.Context, id string) ([]byte, snapshot.Meta, error)
	DeleteSnapshot(ctx context.Context, id string) error
	Bus() *bus.Bus
}

// Options toggles optional surfaces of the server.
type Options struct {
	DocsEnabled bool
}

type chartIDInput struct {
	ChartID string `path:"chart_id"`
}

type chartOutput struct {
	Body controller.ChartInfo
}

type statusOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func newStatus(status string) *statusOutput {
	out := &statusOutput{}
	out.Body.Status = status
	return out
}

func NewServer(svc Service, opts Options) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("ChartSync API", "1.0.0")
	cfg.DocsPath = ""
	if !opts.DocsEnabled {
		cfg.OpenAPIPath = ""
	}
	api := humachi.New(router, cfg)

	if opts.DocsEnabled {
		mountDocs(router, cfg.OpenAPIPath)
	}

	registerMiscHandlers(api, svc)
	registerChartHandlers(api, svc)
	registerEventHandlers(api, svc)
	registerSnapshotHandlers(api, svc)

	router.Get("/api/v1/events/ws", streamWS(svc.Bus()))
	router.Get("/api/v1/events/sse", streamSSE(svc.Bus()))

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *controller.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case controller.CodeValidation:
			return huma.Error400BadRequest(coded.Message, coded)
		case controller.CodeChartNotFound, controller.CodeSnapshotNotFound:
			return huma.Error404NotFound(coded.Message)
		case controller.CodeBackendUnavailable:
			return huma.Error502BadGateway(coded.Message, coded)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}

// toValue converts a generically decoded selection (an array of labels or a
// {min, max, mode} object) into a bus.Value.
func toValue(v any) (bus.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return bus.Value{}, err
	}
	var out bus.Value
	if err := json.Unmarshal(raw, &out); err != nil {
		return bus.Value{}, err
	}
	return out, nil
}
