package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"contract-engine/service"
)

// StartCronJob runs the notification reconciliation pass on the given cron
// spec. The pass is idempotent, so overlapping or redundant runs are
// harmless.
func StartCronJob(spec string, notify *service.NotificationService) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx := context.Background()
		result, err := notify.Reconcile(ctx, time.Now())
		if err != nil {
			slog.Error("scheduled reconciliation failed", "error", err)
			return
		}
		slog.Info("scheduled reconciliation done",
			"transitions", result.Transitions,
			"tasks_created", result.TasksCreated,
			"tasks_superseded", result.TasksSuperseded,
		)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
