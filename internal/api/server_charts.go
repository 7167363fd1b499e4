package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/chartsync/internal/controller"
	"github.com/dgnsrekt/chartsync/internal/dataset"
)

type healthOutput struct {
	Body controller.Health
}

type listChartsOutput struct {
	Body struct {
		Charts []controller.ChartInfo `json:"charts"`
	}
}

type mountInput struct {
	Body struct {
		ConceptID string `json:"concept_id" doc:"Concept the chart belongs to"`
		Kind      string `json:"kind" enum:"pie,bar,line" doc:"Chart kind"`
		View      struct {
			PK     any     `json:"pk" doc:"Record primary key (number or string)"`
			Title  string  `json:"title,omitempty"`
			XAxis  string  `json:"xaxis,omitempty"`
			YAxis  string  `json:"yaxis,omitempty"`
			Coords [][]any `json:"coords" doc:"[label, value] pairs"`
		} `json:"view"`
	}
}

type clickInput struct {
	ChartID string `path:"chart_id"`
	Body    struct {
		Index    int    `json:"index,omitempty" doc:"Element index; ignored when category is set"`
		Category string `json:"category,omitempty" doc:"Legend label to toggle"`
	}
}

type hoverInput struct {
	ChartID string `path:"chart_id"`
	Body    struct {
		Index int `json:"index" doc:"Element index; negative clears the hover"`
	}
}

type dragInput struct {
	ChartID string `path:"chart_id"`
	Body    struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	}
}

type rangeInput struct {
	ChartID string `path:"chart_id"`
	Body    struct {
		Min  string `json:"min" doc:"Lower bound as typed into the form"`
		Max  string `json:"max" doc:"Upper bound as typed into the form"`
		Mode string `json:"mode,omitempty" doc:"include or exclude; operator spellings are accepted"`
	}
}

type exportOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type snapshotInput struct {
	ChartID string `path:"chart_id"`
	Body    struct {
		Format string `json:"format,omitempty" enum:"html,png" doc:"Stored page format; html when empty"`
		Notes  string `json:"notes,omitempty"`
	}
}

func registerMiscHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/api/v1/health",
		Summary:     "Service health",
		Tags:        []string{"Health"},
	}, func(ctx context.Context, input *struct{}) (*healthOutput, error) {
		h, err := svc.Health(ctx)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &healthOutput{}
		out.Body = h
		return out, nil
	})
}

func registerChartHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-charts",
		Method:      http.MethodGet,
		Path:        "/api/v1/charts",
		Summary:     "List mounted charts",
		Tags:        []string{"Charts"},
	}, func(ctx context.Context, input *struct{}) (*listChartsOutput, error) {
		charts, err := svc.List(ctx)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &listChartsOutput{}
		out.Body.Charts = charts
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "mount-chart",
		Method:        http.MethodPost,
		Path:          "/api/v1/charts",
		Summary:       "Mount a chart from a concept view",
		Tags:          []string{"Charts"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *mountInput) (*chartOutput, error) {
		coords, err := dataset.CoordsOf(input.Body.View.Coords)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid view coords", err)
		}
		view := dataset.View{
			PK:     dataset.IDOf(input.Body.View.PK),
			Title:  input.Body.View.Title,
			XAxis:  input.Body.View.XAxis,
			YAxis:  input.Body.View.YAxis,
			Coords: coords,
		}
		info, err := svc.Mount(ctx, input.Body.ConceptID, input.Body.Kind, view)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &chartOutput{}
		out.Body = info
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-chart",
		Method:      http.MethodGet,
		Path:        "/api/v1/charts/{chart_id}",
		Summary:     "Get a chart's rendered state",
		Tags:        []string{"Charts"},
	}, func(ctx context.Context, input *chartIDInput) (*chartOutput, error) {
		info, err := svc.Get(ctx, input.ChartID)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &chartOutput{}
		out.Body = info
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unmount-chart",
		Method:      http.MethodDelete,
		Path:        "/api/v1/charts/{chart_id}",
		Summary:     "Unmount a chart",
		Tags:        []string{"Charts"},
	}, func(ctx context.Context, input *chartIDInput) (*statusOutput, error) {
		if err := svc.Unmount(ctx, input.ChartID); err != nil {
			return nil, mapErr(err)
		}
		return newStatus("unmounted"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "click-chart",
		Method:      http.MethodPost,
		Path:        "/api/v1/charts/{chart_id}/click",
		Summary:     "Click a slice, bar or legend entry",
		Tags:        []string{"Interactions"},
	}, func(ctx context.Context, input *clickInput) (*chartOutput, error) {
		info, err := svc.Click(ctx, input.ChartID, input.Body.Index, input.Body.Category)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &chartOutput{}
		out.Body = info
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "hover-chart",
		Method:      http.MethodPost,
		Path:        "/api/v1/charts/{chart_id}/hover",
		Summary:     "Move the hover point",
		Tags:        []string{"Interactions"},
	}, func(ctx context.Context, input *hoverInput) (*chartOutput, error) {
		info, err := svc.Hover(ctx, input.ChartID, input.Body.Index)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &chartOutput{}
		out.Body = info
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "drag-chart",
		Method:      http.MethodPost,
		Path:        "/api/v1/charts/{chart_id}/drag",
		Summary:     "Drag-select an x interval on a line chart",
		Tags:        []string{"Interactions"},
	}, func(ctx context.Context, input *dragInput) (*chartOutput, error) {
		info, err := svc.Drag(ctx, input.ChartID, input.Body.Min, input.Body.Max)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &chartOutput{}
		out.Body = info
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "edit-chart-range",
		Method:      http.MethodPost,
		Path:        "/api/v1/charts/{chart_id}/range",
		Summary:     "Edit the range form of a line chart",
		Tags:        []string{"Interactions"},
	}, func(ctx context.Context, input *rangeInput) (*chartOutput, error) {
		info, err := svc.EditRange(ctx, input.ChartID, input.Body.Min, input.Body.Max, input.Body.Mode)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &chartOutput{}
		out.Body = info
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "focus-chart",
		Method:      http.MethodPost,
		Path:        "/api/v1/charts/{chart_id}/focus",
		Summary:     "Re-layout a chart after it became visible",
		Tags:        []string{"Interactions"},
	}, func(ctx context.Context, input *chartIDInput) (*chartOutput, error) {
		info, err := svc.Focus(ctx, input.ChartID)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &chartOutput{}
		out.Body = info
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-chart",
		Method:      http.MethodGet,
		Path:        "/api/v1/charts/{chart_id}/export",
		Summary:     "Export a chart as a standalone HTML page",
		Tags:        []string{"Charts"},
	}, func(ctx context.Context, input *chartIDInput) (*exportOutput, error) {
		page, _, err := svc.Export(ctx, input.ChartID)
		if err != nil {
			return nil, mapErr(err)
		}
		return &exportOutput{ContentType: "text/html; charset=utf-8", Body: page}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "snapshot-chart",
		Method:        http.MethodPost,
		Path:          "/api/v1/charts/{chart_id}/snapshot",
		Summary:       "Store the exported page of a chart",
		Tags:          []string{"Snapshots"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *snapshotInput) (*snapshotOutput, error) {
		meta, err := svc.TakeSnapshot(ctx, input.ChartID, input.Body.Format, input.Body.Notes)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &snapshotOutput{}
		out.Body = meta
		return out, nil
	})
}
