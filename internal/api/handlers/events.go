package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Sand004/enterprise-rag-system/internal/api"
	"github.com/Sand004/enterprise-rag-system/internal/domain"
)

type EventRecorder interface {
	Record(ctx context.Context, documentID string, typ domain.DocumentEventType) (int64, error)
}

// EventsHandler accepts document change notifications from ingestion
// pipelines. Events land in the feed; the background consumer applies
// them to the keyword index and the result cache.
type EventsHandler struct {
	recorder EventRecorder
}

func NewEventsHandler(recorder EventRecorder) *EventsHandler {
	return &EventsHandler{recorder: recorder}
}

type EventRequest struct {
	DocumentID string `json:"document_id"`
	Type       string `json:"type"`
}

type EventResponse struct {
	EventID int64 `json:"event_id"`
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.DocumentID = strings.TrimSpace(req.DocumentID)
	if req.DocumentID == "" {
		api.Error(w, http.StatusBadRequest, "document_id is required")
		return
	}

	typ := domain.DocumentEventType(req.Type)
	switch typ {
	case domain.DocumentUpdated, domain.DocumentDeleted:
	default:
		api.Error(w, http.StatusBadRequest, "type must be updated or deleted")
		return
	}

	id, err := h.recorder.Record(r.Context(), req.DocumentID, typ)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, EventResponse{EventID: id})
}
