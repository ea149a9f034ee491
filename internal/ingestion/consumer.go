package ingestion

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
	"github.com/Sand004/enterprise-rag-system/internal/index"
)

// EventFeed is the document event source the consumer polls.
type EventFeed interface {
	PollAfter(ctx context.Context, afterID int64, limit int) ([]domain.DocumentEvent, error)
	LatestID(ctx context.Context) (int64, error)
}

// ChunkLister loads the current chunks of a document so an updated
// document can be re-indexed.
type ChunkLister interface {
	ListByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error)
}

// Invalidator evicts cached search results that reference a document.
type Invalidator interface {
	InvalidateDocument(ctx context.Context, documentID string) int
}

// Consumer applies the document event feed to the in-memory keyword
// index and the result cache. It implements jobs.Task and is driven by
// a worker on a poll interval.
type Consumer struct {
	feed    EventFeed
	chunks  ChunkLister
	keyword *index.Keyword
	cache   Invalidator
	cursor  int64
	batch   int
	logger  *logrus.Logger
}

func NewConsumer(feed EventFeed, chunks ChunkLister, keyword *index.Keyword, cache Invalidator, logger *logrus.Logger) *Consumer {
	return &Consumer{
		feed:    feed,
		chunks:  chunks,
		keyword: keyword,
		cache:   cache,
		batch:   100,
		logger:  logger,
	}
}

func (c *Consumer) Name() string { return "ingestion-consumer" }

// SeedCursor positions the consumer past the current tail of the feed.
// Call it after a full index warm-up so history is not replayed.
func (c *Consumer) SeedCursor(ctx context.Context) error {
	id, err := c.feed.LatestID(ctx)
	if err != nil {
		return fmt.Errorf("seed event cursor: %w", err)
	}
	c.cursor = id
	return nil
}

// Run drains the feed until it is empty, applying each event in order.
// A failing event stops the batch and leaves the cursor on the last
// applied event, so the next poll retries from there.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		events, err := c.feed.PollAfter(ctx, c.cursor, c.batch)
		if err != nil {
			return fmt.Errorf("poll document events: %w", err)
		}
		if len(events) == 0 {
			return nil
		}
		for _, ev := range events {
			if err := c.apply(ctx, ev); err != nil {
				return err
			}
			c.cursor = ev.ID
		}
	}
}

func (c *Consumer) apply(ctx context.Context, ev domain.DocumentEvent) error {
	switch ev.Type {
	case domain.DocumentUpdated:
		chunks, err := c.chunks.ListByDocument(ctx, ev.DocumentID)
		if err != nil {
			return fmt.Errorf("reload document %s: %w", ev.DocumentID, err)
		}
		c.keyword.RemoveDocument(ev.DocumentID)
		for _, chunk := range chunks {
			c.keyword.Add(chunk)
		}
		c.logger.WithFields(logrus.Fields{
			"document_id": ev.DocumentID,
			"chunks":      len(chunks),
		}).Info("document reindexed")
	case domain.DocumentDeleted:
		removed := c.keyword.RemoveDocument(ev.DocumentID)
		c.logger.WithFields(logrus.Fields{
			"document_id": ev.DocumentID,
			"chunks":      removed,
		}).Info("document removed from index")
	default:
		c.logger.WithField("event_type", string(ev.Type)).Warn("unknown document event ignored")
		return nil
	}

	evicted := c.cache.InvalidateDocument(ctx, ev.DocumentID)
	if evicted > 0 {
		c.logger.WithFields(logrus.Fields{
			"document_id": ev.DocumentID,
			"entries":     evicted,
		}).Debug("cached results invalidated")
	}
	return nil
}
