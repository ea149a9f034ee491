package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sand004/enterprise-rag-system/internal/domain"
)

type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) Record(ctx context.Context, documentID string, typ domain.DocumentEventType) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO document_events (document_id, event_type) VALUES ($1, $2) RETURNING id`,
		documentID, string(typ),
	).Scan(&id)
	return id, err
}

// PollAfter returns up to limit events with an id greater than afterID,
// oldest first. Consumers keep their own cursor and advance it past the
// last event they processed.
func (r *EventRepository) PollAfter(ctx context.Context, afterID int64, limit int) ([]domain.DocumentEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, document_id, event_type, created_at
		 FROM document_events WHERE id > $1 ORDER BY id ASC LIMIT $2`,
		afterID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.DocumentEvent
	for rows.Next() {
		var ev domain.DocumentEvent
		var typ string
		if err := rows.Scan(&ev.ID, &ev.DocumentID, &typ, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Type = domain.DocumentEventType(typ)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// LatestID returns the id of the newest event, or 0 when the feed is
// empty. Startup consumers seed their cursor from it so a warm index
// does not replay history.
func (r *EventRepository) LatestID(ctx context.Context) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM document_events`).Scan(&id)
	return id, err
}
