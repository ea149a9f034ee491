package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
	"github.com/Sand004/enterprise-rag-system/internal/index"
)

type stubFeed struct {
	events []domain.DocumentEvent
	err    error
}

func (f *stubFeed) PollAfter(_ context.Context, afterID int64, limit int) ([]domain.DocumentEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.DocumentEvent
	for _, ev := range f.events {
		if ev.ID > afterID {
			out = append(out, ev)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *stubFeed) LatestID(context.Context) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if len(f.events) == 0 {
		return 0, nil
	}
	return f.events[len(f.events)-1].ID, nil
}

type stubChunks struct {
	byDoc map[string][]domain.Chunk
	err   error
}

func (s *stubChunks) ListByDocument(_ context.Context, documentID string) ([]domain.Chunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byDoc[documentID], nil
}

type stubCache struct {
	invalidated []string
}

func (s *stubCache) InvalidateDocument(_ context.Context, documentID string) int {
	s.invalidated = append(s.invalidated, documentID)
	return 1
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestConsumer_UpdateReindexesDocument(t *testing.T) {
	keyword := index.NewKeyword(0, 0)
	keyword.Add(domain.Chunk{ID: "c1", DocumentID: "doc-a", Text: "old draft about caching"})

	feed := &stubFeed{events: []domain.DocumentEvent{
		{ID: 1, DocumentID: "doc-a", Type: domain.DocumentUpdated},
	}}
	chunks := &stubChunks{byDoc: map[string][]domain.Chunk{
		"doc-a": {
			{ID: "c1", DocumentID: "doc-a", Text: "revised chapter about caching strategies"},
			{ID: "c2", DocumentID: "doc-a", Text: "appendix listing cache invalidation rules"},
		},
	}}
	cache := &stubCache{}

	c := NewConsumer(feed, chunks, keyword, cache, testLogger())
	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, 2, keyword.Size())
	assert.Equal(t, []string{"doc-a"}, cache.invalidated)

	hits := keyword.Search(index.Tokenize("revised chapter"), 10, nil)
	require.NotEmpty(t, hits)
	assert.Equal(t, "c1", hits[0].ChunkID)
}

func TestConsumer_DeleteRemovesDocument(t *testing.T) {
	keyword := index.NewKeyword(0, 0)
	keyword.Add(domain.Chunk{ID: "c1", DocumentID: "doc-a", Text: "stale content"})
	keyword.Add(domain.Chunk{ID: "c2", DocumentID: "doc-b", Text: "unrelated content"})

	feed := &stubFeed{events: []domain.DocumentEvent{
		{ID: 1, DocumentID: "doc-a", Type: domain.DocumentDeleted},
	}}
	cache := &stubCache{}

	c := NewConsumer(feed, &stubChunks{}, keyword, cache, testLogger())
	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, 1, keyword.Size())
	assert.Equal(t, []string{"doc-a"}, cache.invalidated)
}

func TestConsumer_CursorAdvancesAcrossRuns(t *testing.T) {
	keyword := index.NewKeyword(0, 0)
	feed := &stubFeed{events: []domain.DocumentEvent{
		{ID: 1, DocumentID: "doc-a", Type: domain.DocumentDeleted},
	}}
	cache := &stubCache{}

	c := NewConsumer(feed, &stubChunks{}, keyword, cache, testLogger())
	require.NoError(t, c.Run(context.Background()))
	require.NoError(t, c.Run(context.Background()))

	// Second run found nothing new, so the event was applied once.
	assert.Equal(t, []string{"doc-a"}, cache.invalidated)

	feed.events = append(feed.events, domain.DocumentEvent{ID: 2, DocumentID: "doc-b", Type: domain.DocumentDeleted})
	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []string{"doc-a", "doc-b"}, cache.invalidated)
}

func TestConsumer_SeedCursorSkipsHistory(t *testing.T) {
	keyword := index.NewKeyword(0, 0)
	feed := &stubFeed{events: []domain.DocumentEvent{
		{ID: 1, DocumentID: "doc-a", Type: domain.DocumentDeleted},
		{ID: 2, DocumentID: "doc-b", Type: domain.DocumentDeleted},
	}}
	cache := &stubCache{}

	c := NewConsumer(feed, &stubChunks{}, keyword, cache, testLogger())
	require.NoError(t, c.SeedCursor(context.Background()))
	require.NoError(t, c.Run(context.Background()))

	assert.Empty(t, cache.invalidated)
}

func TestConsumer_ReloadFailureLeavesCursorForRetry(t *testing.T) {
	keyword := index.NewKeyword(0, 0)
	keyword.Add(domain.Chunk{ID: "c1", DocumentID: "doc-a", Text: "original text"})

	feed := &stubFeed{events: []domain.DocumentEvent{
		{ID: 1, DocumentID: "doc-a", Type: domain.DocumentUpdated},
	}}
	chunks := &stubChunks{err: errors.New("db down")}
	cache := &stubCache{}

	c := NewConsumer(feed, chunks, keyword, cache, testLogger())
	require.Error(t, c.Run(context.Background()))

	// The index was not touched and the event stays pending.
	assert.Equal(t, 1, keyword.Size())
	assert.Empty(t, cache.invalidated)

	chunks.err = nil
	chunks.byDoc = map[string][]domain.Chunk{"doc-a": {{ID: "c1", DocumentID: "doc-a", Text: "patched text"}}}
	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []string{"doc-a"}, cache.invalidated)
}

func TestConsumer_UnknownEventTypeIgnored(t *testing.T) {
	keyword := index.NewKeyword(0, 0)
	feed := &stubFeed{events: []domain.DocumentEvent{
		{ID: 1, DocumentID: "doc-a", Type: "archived"},
	}}
	cache := &stubCache{}

	c := NewConsumer(feed, &stubChunks{}, keyword, cache, testLogger())
	require.NoError(t, c.Run(context.Background()))
	assert.Empty(t, cache.invalidated)
}

type staticStreamer struct {
	chunks []domain.Chunk
}

func (s *staticStreamer) ForEach(_ context.Context, _ int, fn func(domain.Chunk) error) error {
	for _, c := range s.chunks {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

func TestWarm_LoadsAllChunks(t *testing.T) {
	keyword := index.NewKeyword(0, 0)
	streamer := &staticStreamer{chunks: []domain.Chunk{
		{ID: "c1", DocumentID: "doc-a", Text: "hybrid retrieval"},
		{ID: "c2", DocumentID: "doc-b", Text: "keyword ranking"},
	}}

	require.NoError(t, Warm(context.Background(), streamer, keyword, testLogger()))
	assert.Equal(t, 2, keyword.Size())
}
