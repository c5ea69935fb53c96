package app

import (
	"context"
	"fmt"

	"contentcal/api/internal/history"
	"contentcal/api/internal/metrics"
	"contentcal/api/internal/reconcile"
	"contentcal/api/internal/search"
)

// HistoryHook snapshots every remote save into the tenant's plan history.
func HistoryHook(rec *history.Recorder) reconcile.Hook {
	return func(_ context.Context, event reconcile.SaveEvent) error {
		if event.Destination != reconcile.DestinationRemote {
			return nil
		}
		message := fmt.Sprintf("Approve plan (%s, %d items)", event.Resolution, event.Written)
		_, err := rec.Snapshot(event.Tenant, event.Plan, event.Tenant.UserID, message)
		return err
	}
}

// SearchHook mirrors the saved plan into the search index.
func SearchHook(svc *search.Service) reconcile.Hook {
	return func(ctx context.Context, event reconcile.SaveEvent) error {
		if event.Destination != reconcile.DestinationRemote {
			return nil
		}
		return svc.IndexPlan(ctx, event.Tenant, event.Plan)
	}
}

func MetricsHook(m *metrics.Metrics) reconcile.Hook {
	return func(_ context.Context, event reconcile.SaveEvent) error {
		m.ObservePlanSave(string(event.Destination), string(event.Resolution), event.Written)
		return nil
	}
}
