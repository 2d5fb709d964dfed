package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/trailblazer/backend/internal/handler/apierr"
	chatHandler "github.com/zhouzirui/trailblazer/backend/internal/handler/chat"
	chatService "github.com/zhouzirui/trailblazer/backend/internal/service/chat"
	"github.com/zhouzirui/trailblazer/backend/pkg/utils"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10
)

// Message types.
const (
	TypeReady = "ready"
	TypeChat  = "chat"
	TypeReply = "reply"
	TypePing  = "ping"
	TypePong  = "pong"
	TypeError = "error"
)

// WebSocketHandler carries chat exchanges for one session over a WebSocket.
type WebSocketHandler struct {
	chatSvc  *chatService.Service
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc *chatService.Service) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

// InboundMessage is a client frame.
type InboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// ChatMessage is the data of a "chat" frame.
type ChatMessage struct {
	Message   string `json:"message"`
	Character string `json:"character,omitempty"`
}

// OutgoingMessage is a server frame.
type OutgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ReadyData greets a freshly connected client.
type ReadyData struct {
	Character string `json:"character"`
	Display   string `json:"display"`
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	_, p, err := h.chatSvc.History(r.Context(), sessionID)
	if err != nil {
		status, msg := apierr.Classify(err)
		if msg == apierr.MsgInvalidSession {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, msg)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for session=%s: %v", sessionID, err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	log.Printf("[ws] connected session=%s", sessionID)
	if err := h.write(conn, sessionID, TypeReady, ReadyData{Character: p.Key, Display: p.Display}); err != nil {
		return
	}

	for {
		var in InboundMessage
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[ws] read failed for session=%s: %v", sessionID, err)
			}
			return
		}

		if err := h.dispatch(r, conn, sessionID, in); err != nil {
			log.Printf("[ws] write failed for session=%s: %v", sessionID, err)
			return
		}
	}
}

func (h *WebSocketHandler) dispatch(r *http.Request, conn *websocket.Conn, sessionID string, in InboundMessage) error {
	switch in.Type {
	case TypePing:
		return h.write(conn, sessionID, TypePong, nil)
	case TypeChat:
		var msg ChatMessage
		if err := json.Unmarshal(in.Data, &msg); err != nil {
			return h.writeError(conn, sessionID, apierr.MsgInvalidBody)
		}

		res, err := h.chatSvc.Chat(r.Context(), chatService.ChatRequest{
			SessionID:  sessionID,
			Message:    msg.Message,
			PersonaKey: msg.Character,
		})
		if err != nil {
			status, text := apierr.Classify(err)
			if status >= http.StatusInternalServerError {
				log.Printf("[ws] chat failed for session=%s: %v", sessionID, err)
			}
			return h.writeError(conn, sessionID, text)
		}
		return h.write(conn, sessionID, TypeReply, chatHandler.NewChatResponse(res))
	default:
		return h.writeError(conn, sessionID, "unsupported message type")
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, sessionID, typ string, data interface{}) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	err := conn.WriteJSON(OutgoingMessage{
		Type:      typ,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

func (h *WebSocketHandler) writeError(conn *websocket.Conn, sessionID, msg string) error {
	return h.write(conn, sessionID, TypeError, utils.ErrorBody{Error: msg})
}
