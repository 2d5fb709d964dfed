package chat

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/trailblazer/backend/internal/handler/apierr"
	"github.com/zhouzirui/trailblazer/backend/internal/model/chat"
	chatService "github.com/zhouzirui/trailblazer/backend/internal/service/chat"
	"github.com/zhouzirui/trailblazer/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/start", h.handleStart)
	r.Post("/chat", h.handleChat)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
}

// StartRequest is the body of POST /start.
type StartRequest struct {
	Character string `json:"character"`
}

// StartResponse is returned by POST /start.
type StartResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatRequest is the body of POST /chat and POST /chat/stream.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Character string `json:"character,omitempty"`
}

// ToService converts the wire request.
func (r ChatRequest) ToService() chatService.ChatRequest {
	return chatService.ChatRequest{
		SessionID:  r.SessionID,
		Message:    r.Message,
		PersonaKey: r.Character,
	}
}

// ChatResponse is returned by POST /chat.
type ChatResponse struct {
	Character string `json:"character"`
	Message   string `json:"message"`
	Note      string `json:"note,omitempty"`
}

// NewChatResponse converts a service result to its wire form.
func NewChatResponse(res chatService.ChatResult) ChatResponse {
	return ChatResponse{
		Character: res.Persona.Display,
		Message:   res.Message,
		Note:      res.Note,
	}
}

// SessionResponse is returned by GET /sessions/{sessionID}.
type SessionResponse struct {
	SessionID string         `json:"session_id"`
	Character string         `json:"character"`
	Display   string         `json:"display"`
	History   []chat.Message `json:"history"`
}

// handleStart 创建会话并返回开场白
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var payload StartRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, apierr.MsgInvalidBody)
		return
	}

	res, err := h.chatSvc.Start(r.Context(), payload.Character)
	if err != nil {
		respondServiceError(w, "start", err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, StartResponse{SessionID: res.SessionID, Message: res.Message})
}

// handleChat 处理一轮对话
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload ChatRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, apierr.MsgInvalidBody)
		return
	}

	res, err := h.chatSvc.Chat(r.Context(), payload.ToService())
	if err != nil {
		respondServiceError(w, "chat", err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, NewChatResponse(res))
}

// handleGetSession 返回会话的当前角色与历史
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, p, err := h.chatSvc.History(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		status, msg := apierr.Classify(err)
		if status == http.StatusBadRequest && msg == apierr.MsgInvalidSession {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, msg)
		return
	}

	utils.RespondJSON(w, http.StatusOK, SessionResponse{
		SessionID: sess.ID,
		Character: p.Key,
		Display:   p.Display,
		History:   sess.History,
	})
}

func respondServiceError(w http.ResponseWriter, op string, err error) {
	status, msg := apierr.Classify(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[chat] %s failed: %v", op, err)
	}
	utils.RespondError(w, status, msg)
}
