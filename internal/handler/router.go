package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/trailblazer/backend/internal/handler/chat"
	"github.com/zhouzirui/trailblazer/backend/internal/handler/persona"
	"github.com/zhouzirui/trailblazer/backend/internal/handler/stream"
	"github.com/zhouzirui/trailblazer/backend/internal/handler/ws"
	"github.com/zhouzirui/trailblazer/backend/internal/metrics"
	middlewarePkg "github.com/zhouzirui/trailblazer/backend/internal/middleware"
	personaModel "github.com/zhouzirui/trailblazer/backend/internal/model/persona"
	chatService "github.com/zhouzirui/trailblazer/backend/internal/service/chat"
	"github.com/zhouzirui/trailblazer/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. m may be nil.
func NewRouter(personas personaModel.Store, chatSvc *chatService.Service, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	persona.New(personas).RegisterRoutes(r)
	chat.New(chatSvc).RegisterRoutes(r)
	stream.New(chatSvc).RegisterRoutes(r)
	ws.NewWebSocketHandler(chatSvc).RegisterRoutes(r)

	return r
}
