package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router standard library http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"status": "ok"}))
	})
	return r
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterEventRoutes POST /api/v1/events/{entity}/{event}
func (r *Router) RegisterEventRoutes(h *EventHandler) {
	r.HandleHandler("/api/v1/events/", h)
}

func (r *Router) RegisterNotificationRoutes(h *NotificationHandler) {
	r.HandleHandler("/api/v1/notifications", h)
	r.HandleHandler("/api/v1/notifications/", h)
}

func (r *Router) RegisterActivityLogRoutes(h *ActivityLogHandler) {
	r.HandleHandler("/api/v1/activity-logs", h)
	r.HandleHandler("/api/v1/activity-logs/", h)
}
