package domain

import "time"

// DocumentEventType distinguishes ingestion update and delete signals.
type DocumentEventType string

const (
	DocumentUpdated DocumentEventType = "updated"
	DocumentDeleted DocumentEventType = "deleted"
)

// DocumentEvent is one entry of the ingestion event feed. The engine
// consumes the feed to invalidate cache entries and refresh the
// keyword index; it never writes events.
type DocumentEvent struct {
	ID         int64
	DocumentID string
	Type       DocumentEventType
	CreatedAt  time.Time
}
