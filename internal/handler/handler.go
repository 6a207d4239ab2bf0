package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/young1lin/chatbridge/internal/inference"
	"github.com/young1lin/chatbridge/internal/models"
	"github.com/young1lin/chatbridge/internal/postaction"
	"github.com/young1lin/chatbridge/internal/session"
	"github.com/young1lin/chatbridge/internal/storage"
	"github.com/young1lin/chatbridge/internal/tools"
	"github.com/young1lin/chatbridge/internal/websearch"
	"github.com/young1lin/chatbridge/pkg/logger"
)

const maxBodyBytes = 4 << 20

// Deps are the collaborators served over HTTP. Runner, Renamer and Search
// may be nil; their routes then answer 503.
type Deps struct {
	Registry *tools.Registry
	Store    *storage.ConversationStore
	Runner   *session.Runner
	Renamer  *postaction.Renamer
	Search   *websearch.Tool
}

// Handler serves the tool, conversation and search API
type Handler struct {
	deps   Deps
	router chi.Router
}

// New creates a new handler
func New(deps Deps) *Handler {
	h := &Handler{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.NotFound(h.withLog(func(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
		h.handleError(w, http.StatusNotFound, "not_found", "Endpoint not found", log)
	}))
	r.MethodNotAllowed(h.withLog(func(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
		h.handleError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", log)
	}))

	r.Get("/health", h.withLog(h.handleHealth))
	r.Route("/v1", func(r chi.Router) {
		r.Get("/tools", h.withLog(h.handleListTools))
		r.Post("/tools/call", h.withLog(h.handleCallTool))
		r.Post("/search", h.withLog(h.handleSearch))
		r.Route("/conversations/{id}", func(r chi.Router) {
			r.Get("/", h.withConversation(h.handleGetConversation))
			r.Post("/messages", h.withConversation(h.handleMessage))
			r.Post("/rename", h.withConversation(h.handleRename))
		})
	})
	h.router = r
	return h
}

// ServeHTTP handles all HTTP requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Extract or generate trace ID
	traceID := extractTraceID(r)
	if traceID == "" {
		traceID = generateTraceID()
	}
	r = r.WithContext(logger.ContextWithTraceID(r.Context(), traceID))

	log := logger.WithTraceID(traceID)
	log.Info("request received",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
	)

	w.Header().Set("X-Trace-ID", traceID)
	h.router.ServeHTTP(w, r)

	log.Info("request completed",
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}

type routeFunc func(w http.ResponseWriter, r *http.Request, log *zap.Logger)

// withLog hands fn the request's trace-tagged logger
func (h *Handler) withLog(fn routeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, logger.FromContext(r.Context()))
	}
}

type conversationFunc func(w http.ResponseWriter, r *http.Request, id string, log *zap.Logger)

// withConversation resolves the {id} route parameter
func (h *Handler) withConversation(fn conversationFunc) http.HandlerFunc {
	return h.withLog(func(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			h.handleError(w, http.StatusNotFound, "not_found", "Endpoint not found", log)
			return
		}
		fn(w, r, id, log.With(zap.String("conversation", id)))
	})
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

// handleListTools lists the function definitions offered to the model
func (h *Handler) handleListTools(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	defs := h.deps.Registry.Definitions(r.Context())
	resp := models.ToolListResponse{Tools: make([]models.ToolInfo, 0, len(defs))}
	for _, d := range defs {
		if d.Function == nil {
			continue
		}
		resp.Tools = append(resp.Tools, models.ToolInfo{
			Name:        d.Function.Name,
			Description: d.Function.Description,
			Parameters:  d.Function.Parameters,
			Strict:      d.Function.Strict,
		})
	}
	log.Debug("tools listed", zap.Int("count", len(resp.Tools)))
	writeJSON(w, http.StatusOK, resp)
}

// handleCallTool runs one tool call
func (h *Handler) handleCallTool(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	var req models.ToolCallRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request: "+err.Error(), log)
		return
	}
	if req.Name == "" {
		h.handleError(w, http.StatusBadRequest, "invalid_request", "Tool name is required", log)
		return
	}

	tool, ok := h.deps.Registry.Find(r.Context(), req.Name)
	if !ok {
		h.handleError(w, http.StatusNotFound, "tool_not_found", "Tool not found: "+req.Name, log)
		return
	}

	log.Info("calling tool", zap.String("function", tool.FunctionName()))
	out, err := h.deps.Registry.Perform(r.Context(), tool, req.Arguments)
	if err != nil {
		h.handleToolError(w, err, log)
		return
	}

	writeJSON(w, http.StatusOK, models.ToolCallResponse{
		Name:   tool.FunctionName(),
		Output: out.Text,
		Images: len(out.ImageAttachments),
		Audios: len(out.AudioAttachments),
	})
}

// handleToolError maps tool failures to typed error responses
func (h *Handler) handleToolError(w http.ResponseWriter, err error, log *zap.Logger) {
	var (
		execErr   *tools.ExecutionError
		invokeErr *tools.InvocationError
	)
	switch {
	case errors.Is(err, tools.ErrCancelled):
		h.handleError(w, http.StatusConflict, "tool_cancelled", err.Error(), log)
	case errors.As(err, &execErr):
		h.handleError(w, http.StatusUnprocessableEntity, "tool_error", err.Error(), log)
	case errors.As(err, &invokeErr):
		h.handleError(w, http.StatusBadGateway, "tool_dispatch_error", err.Error(), log)
	case errors.Is(err, websearch.ErrInvalidParameters):
		h.handleError(w, http.StatusBadRequest, "invalid_arguments", err.Error(), log)
	default:
		h.handleError(w, http.StatusInternalServerError, "tool_failed", err.Error(), log)
	}
}

// handleGetConversation returns stored conversation metadata
func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request, id string, log *zap.Logger) {
	conv, ok := h.deps.Store.Get(id)
	if !ok {
		h.handleError(w, http.StatusNotFound, "not_found", "Conversation not found", log)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// handleMessage runs one turn of a conversation, creating it when needed,
// and renames it afterwards while auto-rename is still pending.
func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request, id string, log *zap.Logger) {
	if h.deps.Runner == nil {
		h.handleError(w, http.StatusServiceUnavailable, "unavailable", "Inference is not configured", log)
		return
	}
	var req models.MessageRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request: "+err.Error(), log)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		h.handleError(w, http.StatusBadRequest, "invalid_request", "Message content is required", log)
		return
	}

	var earlier []models.ConversationMessage
	if conv, ok := h.deps.Store.Get(id); ok {
		earlier = conv.Messages
	}

	history := make([]openai.ChatCompletionMessage, 0, len(earlier)+1)
	for _, m := range earlier {
		history = append(history, openai.ChatCompletionMessage{Role: m.Role, Content: m.Document})
	}
	history = append(history, openai.ChatCompletionMessage{Role: inference.RoleUser, Content: req.Content})

	result, err := h.deps.Runner.Run(r.Context(), history)
	if err != nil {
		h.handleError(w, http.StatusBadGateway, "inference_error", err.Error(), log)
		return
	}

	// Append re-reads the record so concurrent messages are all kept.
	conv, err := h.deps.Store.Append(id,
		models.ConversationMessage{Role: inference.RoleUser, Document: req.Content},
		models.ConversationMessage{Role: inference.RoleAssistant, Document: result.Reply()},
	)
	if err != nil {
		h.handleError(w, http.StatusInternalServerError, "storage_error", err.Error(), log)
		return
	}

	if conv.ShouldAutoRename && h.deps.Renamer != nil {
		if renamed, err := h.deps.Renamer.UpdateTitleAndIcon(r.Context(), id); err != nil {
			log.Warn("auto rename failed", zap.Error(err))
		} else {
			conv = renamed
		}
	}

	resp := models.MessageResponse{
		ID:    id,
		Reply: result.Reply(),
		Title: conv.Title,
		Icon:  conv.Icon,
	}
	for _, c := range result.Calls {
		resp.Calls = append(resp.Calls, models.ToolCallTrace{ID: c.ID, Name: c.Name, Status: c.Status})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRename derives a new title and icon for a conversation
func (h *Handler) handleRename(w http.ResponseWriter, r *http.Request, id string, log *zap.Logger) {
	if h.deps.Renamer == nil {
		h.handleError(w, http.StatusServiceUnavailable, "unavailable", "Inference is not configured", log)
		return
	}
	conv, err := h.deps.Renamer.UpdateTitleAndIcon(r.Context(), id)
	if errors.Is(err, postaction.ErrConversationNotFound) {
		h.handleError(w, http.StatusNotFound, "not_found", "Conversation not found", log)
		return
	}
	if err != nil {
		h.handleError(w, http.StatusInternalServerError, "rename_failed", err.Error(), log)
		return
	}
	log.Info("conversation renamed", zap.String("title", conv.Title), zap.String("icon", conv.Icon))
	writeJSON(w, http.StatusOK, models.RenameResponse{ID: conv.ID, Title: conv.Title, Icon: conv.Icon})
}

// handleError writes a typed error response
func (h *Handler) handleError(w http.ResponseWriter, status int, errType, message string, log *zap.Logger) {
	log.Error("request error",
		zap.String("error_type", errType),
		zap.String("message", message),
		zap.Int("status", status),
	)
	writeJSON(w, status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Type:    errType,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// extractTraceID reads a client-supplied trace ID
func extractTraceID(r *http.Request) string {
	// Check common trace ID headers in order of preference
	headers := []string{
		"X-Trace-ID",
		"X-Request-ID",
		"X-Correlation-ID",
		"Trace-ID",
		"Request-ID",
	}

	for _, header := range headers {
		if id := r.Header.Get(header); id != "" {
			return id
		}
	}

	return ""
}

// generateTraceID generates a new trace ID
func generateTraceID() string {
	return uuid.NewString()[:16]
}

