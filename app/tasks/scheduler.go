package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler runs a worker pool fed by a cron schedule and by explicit
// requests. Each cycle queues every enabled source and, once all of them have
// finished, the day's snapshot.
type Scheduler struct {
	pipeline    *Pipeline
	cron        *cron.Cron
	schedule    cron.Schedule
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
	now         func() time.Time
}

func NewScheduler(pipeline *Pipeline, schedule string, workerCount int) (*Scheduler, error) {
	parsed, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	if workerCount < 1 {
		workerCount = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		pipeline:    pipeline,
		cron:        cron.New(),
		schedule:    parsed,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
		now:         time.Now,
	}, nil
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.cron.Schedule(s.schedule, cron.FuncJob(s.enqueueCycle))
	s.cron.Start()

	slog.Info("Scheduler started", "workers", s.workerCount, "next_run", s.schedule.Next(s.now()))

	s.enqueueCycle()
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()

	// Queued tasks never run now; complete them so cycle waiters return.
	for {
		select {
		case task := <-s.taskQueue:
			slog.Debug("Dropping queued task on stop", "type", string(task.GetType()), "id", task.GetID())
			task.Complete()
		default:
			return
		}
	}
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// EnqueueSource queues a run of the named source and returns the task id.
func (s *Scheduler) EnqueueSource(name string) (string, error) {
	task, err := s.pipeline.ProcessSourceTask(name)
	if err != nil {
		return "", err
	}
	if err := s.EnqueueTask(task); err != nil {
		return "", err
	}
	return task.GetID(), nil
}

func (s *Scheduler) EnqueueSnapshot(date time.Time) (string, error) {
	task := s.pipeline.SnapshotTask(date)
	if err := s.EnqueueTask(task); err != nil {
		return "", err
	}
	return task.GetID(), nil
}

// enqueueCycle queues every enabled source, then the snapshot once the last
// source task has completed.
func (s *Scheduler) enqueueCycle() {
	names := s.pipeline.EnabledSources()
	if len(names) == 0 {
		slog.Debug("No enabled source configurations found")
		return
	}

	slog.Debug("Scheduling source runs", "count", len(names))

	var pending sync.WaitGroup
	for _, name := range names {
		task, err := s.pipeline.ProcessSourceTask(name)
		if err != nil {
			slog.Warn("Failed to create ProcessSourceTask", "source", name, "error", err)
			continue
		}

		pending.Add(1)
		task.OnComplete(pending.Done)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue ProcessSourceTask", "source", name, "error", err)
			pending.Done()
		}
	}

	go func() {
		pending.Wait()
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		if _, err := s.EnqueueSnapshot(s.now()); err != nil {
			slog.Warn("Failed to enqueue SnapshotTask", "error", err)
		}
	}()
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

	taskCtx, cancel := context.WithTimeout(s.ctx, 10*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		task.Complete()
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		task.Complete()
		return
	}

	task.IncrementRetryCount()
	retryDelay := retryBackoff(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSource(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		select {
		case <-time.After(retryDelay):
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			task.Complete()
			return
		}
		if retryErr := s.EnqueueTask(task); retryErr != nil {
			slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			task.Complete()
		}
	}()
}

// retryBackoff doubles from one second and caps at 30 seconds.
func retryBackoff(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	delay := time.Duration(1<<uint(retry-1)) * time.Second
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}
