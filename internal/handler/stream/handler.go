package stream

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/trailblazer/backend/internal/handler/apierr"
	chatHandler "github.com/zhouzirui/trailblazer/backend/internal/handler/chat"
	chatService "github.com/zhouzirui/trailblazer/backend/internal/service/chat"
	"github.com/zhouzirui/trailblazer/backend/pkg/utils"
)

// Handler streams chat replies via Server-Sent Events.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the streaming chat endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/stream", h.handleStream)
}

// Event payloads. The event name travels in the SSE "event:" field.
type (
	StartEvent struct {
		SessionID string `json:"session_id"`
	}
	DeltaEvent struct {
		Content string `json:"content"`
	}
	EndEvent struct {
		SessionID string `json:"session_id"`
		Finished  bool   `json:"finished"`
	}
	ErrorEvent struct {
		Error string `json:"error"`
	}
)

// sseWriter defers the 200 status and SSE headers until the first event so
// that validation failures can still be answered with a plain JSON error.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (s *sseWriter) send(event string, data any) error {
	if !s.started {
		utils.SetupSSEHeaders(s.w)
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	return utils.SendSSEEvent(s.w, s.flusher, event, data)
}

// handleStream processes one streamed chat exchange.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var payload chatHandler.ChatRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, apierr.MsgInvalidBody)
		return
	}

	out := &sseWriter{w: w, flusher: flusher}
	res, err := h.chatSvc.StreamChat(r.Context(), payload.ToService(), func(delta string) error {
		if !out.started {
			if err := out.send("start", StartEvent{SessionID: payload.SessionID}); err != nil {
				return err
			}
		}
		return out.send("delta", DeltaEvent{Content: delta})
	})
	if err != nil {
		status, msg := apierr.Classify(err)
		if status >= http.StatusInternalServerError {
			log.Printf("[stream] session=%s failed: %v", payload.SessionID, err)
		}
		if !out.started {
			utils.RespondError(w, status, msg)
			return
		}
		_ = out.send("error", ErrorEvent{Error: msg})
		return
	}

	if err := out.send("message", chatHandler.NewChatResponse(res)); err != nil {
		log.Printf("[stream] session=%s write failed: %v", payload.SessionID, err)
		return
	}
	_ = out.send("end", EndEvent{SessionID: payload.SessionID, Finished: true})
	log.Printf("[stream] completed response for session=%s, persona=%s", payload.SessionID, res.Persona.Key)
}
