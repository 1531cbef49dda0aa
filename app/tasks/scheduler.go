package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adamjohnlea/discogs-helper/app/cfg"
	"github.com/adamjohnlea/discogs-helper/app/database"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type TaskSchedulerInterface interface {
	EnqueueTask(task TaskInterface) error
}

// Scheduler runs background maintenance on a worker pool: periodic expiry
// of abandoned pending imports, plus any ad-hoc tasks enqueued by the API
// layer (server-driven imports).
type Scheduler struct {
	importRepo  database.ImportRepository
	interval    time.Duration
	importTTL   time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(importRepo database.ImportRepository) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	c := cfg.Get()

	return &Scheduler{
		importRepo:  importRepo,
		interval:    time.Duration(c.SchedulerInterval) * time.Second,
		importTTL:   time.Duration(c.ImportTTLHours) * time.Hour,
		workerCount: c.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 100),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueTasks() {
	expireTask := NewExpireImportsTask(s.importRepo, s.importTTL)
	if err := s.EnqueueTask(expireTask); err != nil {
		slog.Warn("Failed to enqueue ExpireImportsTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "user", task.GetUser(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			// Tracked by the WaitGroup so Stop cannot close the queue
			// while a retry is still pending.
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				select {
				case <-time.After(retryDelay):
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				}
				if retryErr := s.EnqueueTask(task); retryErr != nil {
					slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
