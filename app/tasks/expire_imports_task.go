package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adamjohnlea/discogs-helper/app/database"
)

// ExpireImportsTask removes pending imports that have seen no batch activity
// for longer than the configured TTL. Abandoned browser tabs otherwise leave
// imports stuck at pending forever.
type ExpireImportsTask struct {
	Task
	importRepo database.ImportRepository
	ttl        time.Duration
}

func NewExpireImportsTask(importRepo database.ImportRepository, ttl time.Duration) *ExpireImportsTask {
	return &ExpireImportsTask{
		Task:       NewTask(TaskTypeExpireImports, ""),
		importRepo: importRepo,
		ttl:        ttl,
	}
}

func (t *ExpireImportsTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	cutoff := time.Now().UTC().Add(-t.ttl)

	removed, err := t.importRepo.DeleteIdlePending(cutoff)
	if err != nil {
		return fmt.Errorf("failed to expire idle imports: %w", err)
	}

	if removed > 0 {
		slog.Info("Task completed",
			"type", "ExpireImports",
			"duration", t.GetDuration(),
			"removed", removed,
			"cutoff", cutoff.Format(time.RFC3339))
	}

	return nil
}
