package backfill

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// RunPeriodically runs a backfill for all tenants every interval until ctx is done.
func RunPeriodically(ctx context.Context, service Service, interval time.Duration) {
	if interval <= 0 {
		return
	}
	log.Infof("Periodic backfill every %s", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Periodic backfill stopped")
			return
		case <-ticker.C:
			report, err := service.RunBackfill(ctx, nil)
			if err != nil {
				log.Errorf("Periodic backfill failed: %v", err)
				continue
			}
			log.WithFields(log.Fields{
				"tenants":        len(report.TenantIds),
				"processed":      len(report.Processed),
				"skipped":        len(report.Skipped),
				"errors":         len(report.Errors),
				"tenants_failed": len(report.TenantErrors),
			}).Info("Periodic backfill complete")
		}
	}
}
