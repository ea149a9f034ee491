package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
	"github.com/Sand004/enterprise-rag-system/internal/index"
)

// ChunkStreamer walks the full chunk store in batches.
type ChunkStreamer interface {
	ForEach(ctx context.Context, batchSize int, fn func(domain.Chunk) error) error
}

// Warm loads every stored chunk into the keyword index. Runs once at
// startup before the event consumer takes over.
func Warm(ctx context.Context, chunks ChunkStreamer, keyword *index.Keyword, logger *logrus.Logger) error {
	start := time.Now()
	if err := chunks.ForEach(ctx, 500, func(c domain.Chunk) error {
		keyword.Add(c)
		return nil
	}); err != nil {
		return fmt.Errorf("warm keyword index: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"chunks":   keyword.Size(),
		"duration": time.Since(start).String(),
	}).Info("keyword index warmed")
	return nil
}
