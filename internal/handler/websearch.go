package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/young1lin/chatbridge/internal/models"
	"github.com/young1lin/chatbridge/internal/websearch"
)

// SSE event names for POST /v1/search
const (
	eventSearchStatus    = "websearch.status"
	eventSearchCompleted = "websearch.completed"
	eventSearchFailed    = "websearch.failed"
)

// handleSearch streams status snapshots of a web search, then the results
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	if h.deps.Search == nil || !h.deps.Search.IsEnabled() {
		h.handleError(w, http.StatusServiceUnavailable, "unavailable", "Web search is not available", log)
		return
	}
	var req models.SearchRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request: "+err.Error(), log)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		h.handleError(w, http.StatusBadRequest, "invalid_request", "Query is required", log)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.handleError(w, http.StatusInternalServerError, "streaming_unsupported", "Streaming not supported", log)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	statuses := make(chan websearch.Status)
	type outcome struct {
		result *models.SearchProviderResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer close(statuses)
		result, err := h.deps.Search.Search(ctx, req.Query, statuses)
		done <- outcome{result: result, err: err}
	}()

	updates := 0
	for status := range statuses {
		sendSSE(w, flusher, eventSearchStatus, status)
		updates++
	}
	out := <-done
	if out.err != nil {
		log.Error("web search failed", zap.Error(out.err))
		sendSSE(w, flusher, eventSearchFailed, models.ErrorResponse{
			Error: models.ErrorDetail{Type: "search_failed", Message: out.err.Error()},
		})
		return
	}

	log.Info("web search streamed",
		zap.String("query", req.Query),
		zap.Int("updates", updates),
		zap.Int("result_count", len(out.result.Results)),
	)
	sendSSE(w, flusher, eventSearchCompleted, out.result)
}

// sendSSE writes one server-sent event
func sendSSE(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	dataBytes, err := json.Marshal(data)
	if err == nil {
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(dataBytes))
	} else {
		fmt.Fprintf(w, "event: %s\ndata: {}\n\n", event)
	}
	flusher.Flush()
}
