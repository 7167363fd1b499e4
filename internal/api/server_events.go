package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/chartsync/internal/bus"
)

type updateDSInput struct {
	Body struct {
		DataSource map[string]any `json:"data_source" doc:"Identity key to selection ([labels] or {min, max, mode})"`
	}
}

type updateElementInput struct {
	Body struct {
		Name  string `json:"name" doc:"Identity key of the target chart(s)"`
		Value any    `json:"value" doc:"[labels] or {min, max, mode}"`
	}
}

type focusInput struct {
	Body struct {
		Key string `json:"key,omitempty" doc:"Identity key; empty focuses every chart"`
	}
}

func registerEventHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{
		OperationID: "push-data-source",
		Method:      http.MethodPost,
		Path:        "/api/v1/events/update-ds",
		Summary:     "Broadcast a data source to every chart",
		Tags:        []string{"Events"},
	}, func(ctx context.Context, input *updateDSInput) (*statusOutput, error) {
		ds := make(map[string]bus.Value, len(input.Body.DataSource))
		for key, raw := range input.Body.DataSource {
			v, err := toValue(raw)
			if err != nil {
				return nil, huma.Error400BadRequest("invalid selection for "+key, err)
			}
			ds[key] = v
		}
		if err := svc.PushDataSource(ctx, ds); err != nil {
			return nil, mapErr(err)
		}
		return newStatus("published"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "push-element",
		Method:      http.MethodPost,
		Path:        "/api/v1/events/update-element",
		Summary:     "Replace the selection of the charts bound to one key",
		Tags:        []string{"Events"},
	}, func(ctx context.Context, input *updateElementInput) (*statusOutput, error) {
		v, err := toValue(input.Body.Value)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid selection", err)
		}
		if err := svc.PushElement(ctx, input.Body.Name, v); err != nil {
			return nil, mapErr(err)
		}
		return newStatus("published"), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "push-focus",
		Method:      http.MethodPost,
		Path:        "/api/v1/events/focus",
		Summary:     "Tell charts they became visible",
		Tags:        []string{"Events"},
	}, func(ctx context.Context, input *focusInput) (*statusOutput, error) {
		if err := svc.GainedFocus(ctx, input.Body.Key); err != nil {
			return nil, mapErr(err)
		}
		return newStatus("published"), nil
	})
}
