package ingestion

import (
	"context"

	"github.com/Sand004/enterprise-rag-system/internal/cache"
)

// SweepTask evicts expired cache entries on the worker interval.
type SweepTask struct {
	manager *cache.Manager
}

func NewSweepTask(manager *cache.Manager) *SweepTask {
	return &SweepTask{manager: manager}
}

func (t *SweepTask) Name() string { return "cache-sweep" }

func (t *SweepTask) Run(ctx context.Context) error {
	return t.manager.Sweep(ctx)
}
