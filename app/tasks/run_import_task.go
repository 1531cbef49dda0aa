package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adamjohnlea/discogs-helper/app/catalog"
	"github.com/adamjohnlea/discogs-helper/app/importer"
)

// budget keeps one execution well inside the worker task timeout; the task
// re-enqueues itself to continue a long import.
const runImportBudget = 4 * time.Minute

// RunImportTask drives a pending import from the server side, page by page,
// as an alternative to the client polling the batch endpoint. The
// conditional state update in the store protects against a client driving
// the same import concurrently.
type RunImportTask struct {
	Task
	user         catalog.User
	orchestrator *importer.Orchestrator
	scheduler    TaskSchedulerInterface
}

func NewRunImportTask(user catalog.User, orchestrator *importer.Orchestrator,
	scheduler TaskSchedulerInterface) *RunImportTask {
	return &RunImportTask{
		Task:         NewTask(TaskTypeRunImport, user.Username),
		user:         user,
		orchestrator: orchestrator,
		scheduler:    scheduler,
	}
}

func (t *RunImportTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	deadline := time.Now().Add(runImportBudget)
	pages := 0

	for {
		result, err := t.orchestrator.ProcessBatch(ctx, t.user)
		if err != nil {
			if errors.Is(err, importer.ErrNoPendingImport) {
				// Completed or restarted out from under us; nothing to do.
				return nil
			}
			return fmt.Errorf("background import batch failed: %w", err)
		}
		pages++

		if result.Status == importer.BatchStatusCompleted {
			slog.Info("Task completed",
				"type", "RunImport",
				"user", t.user.Username,
				"duration", t.GetDuration(),
				"pages", pages,
				"processed", result.ProcessedItems)
			return nil
		}

		if time.Now().After(deadline) {
			slog.Debug("Import budget spent, re-enqueueing",
				"user", t.user.Username, "next_page", result.NextPage, "pages", pages)
			next := NewRunImportTask(t.user, t.orchestrator, t.scheduler)
			if err := t.scheduler.EnqueueTask(next); err != nil {
				return fmt.Errorf("failed to re-enqueue import continuation: %w", err)
			}
			return nil
		}
	}
}
