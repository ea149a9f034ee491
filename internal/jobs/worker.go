// Package jobs runs the engine's background loops: the cache sweeper
// and the ingestion event consumer.
package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sand004/enterprise-rag-system/internal/telemetry"
)

// Task is one unit of periodic background work.
type Task interface {
	// Name identifies the task in logs.
	Name() string
	// Run performs one iteration. Errors are logged, not fatal; the
	// next tick runs regardless.
	Run(ctx context.Context) error
}

// Worker drives a Task on a fixed interval until stopped.
type Worker struct {
	task         Task
	pollInterval time.Duration
	logger       *logrus.Logger
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a worker for the given task.
func NewWorker(task Task, pollInterval time.Duration, logger *logrus.Logger) *Worker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Worker{
		task:         task,
		pollInterval: pollInterval,
		logger:       logger,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start begins the polling loop. It blocks until the context is
// cancelled or Stop is called; run it in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	w.logger.WithFields(logrus.Fields{
		"task":     w.task.Name(),
		"interval": w.pollInterval,
	}).Info("worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.WithField("task", w.task.Name()).Info("worker stopped: context cancelled")
			return
		case <-w.stopChan:
			w.logger.WithField("task", w.task.Name()).Info("worker stopped")
			return
		case <-ticker.C:
			if err := w.task.Run(ctx); err != nil {
				w.logger.WithField("task", w.task.Name()).WithError(err).Error("task iteration failed")
				telemetry.CaptureError(ctx, err)
			}
		}
	}
}

// Stop signals the loop to exit and waits for it to drain.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
}
