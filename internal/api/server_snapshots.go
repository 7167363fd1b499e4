package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/chartsync/internal/snapshot"
)

type snapshotIDInput struct {
	SnapshotID string `path:"snapshot_id"`
}

type snapshotOutput struct {
	Body snapshot.Meta
}

type listSnapshotsOutput struct {
	Body struct {
		Snapshots []snapshot.Meta `json:"snapshots"`
	}
}

func registerSnapshotHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-snapshots",
		Method:      http.MethodGet,
		Path:        "/api/v1/snapshots",
		Summary:     "List stored snapshots, newest first",
		Tags:        []string{"Snapshots"},
	}, func(ctx context.Context, input *struct{}) (*listSnapshotsOutput, error) {
		metas, err := svc.ListSnapshots(ctx)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &listSnapshotsOutput{}
		out.Body.Snapshots = metas
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-snapshot",
		Method:      http.MethodGet,
		Path:        "/api/v1/snapshots/{snapshot_id}",
		Summary:     "Get snapshot metadata",
		Tags:        []string{"Snapshots"},
	}, func(ctx context.Context, input *snapshotIDInput) (*snapshotOutput, error) {
		meta, err := svc.GetSnapshot(ctx, input.SnapshotID)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &snapshotOutput{}
		out.Body = meta
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-snapshot-page",
		Method:      http.MethodGet,
		Path:        "/api/v1/snapshots/{snapshot_id}/page",
		Summary:     "Get the stored page of a snapshot (HTML or PNG)",
		Tags:        []string{"Snapshots"},
	}, func(ctx context.Context, input *snapshotIDInput) (*exportOutput, error) {
		page, meta, err := svc.ReadSnapshot(ctx, input.SnapshotID)
		if err != nil {
			return nil, mapErr(err)
		}
		return &exportOutput{ContentType: meta.ContentType(), Body: page}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-snapshot",
		Method:      http.MethodDelete,
		Path:        "/api/v1/snapshots/{snapshot_id}",
		Summary:     "Delete a snapshot",
		Tags:        []string{"Snapshots"},
	}, func(ctx context.Context, input *snapshotIDInput) (*statusOutput, error) {
		if err := svc.DeleteSnapshot(ctx, input.SnapshotID); err != nil {
			return nil, mapErr(err)
		}
		return newStatus("deleted"), nil
	})
}
