package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/aumugisha-umu/seido-sub001/internal/repository"
	"github.com/aumugisha-umu/seido-sub001/internal/service"

	"go.uber.org/zap"
)

// NotificationHandler inbox of the calling user (X-User-Id).
type NotificationHandler struct {
	notifications service.NotificationService
	logger        *zap.Logger
}

func NewNotificationHandler(notifications service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// ServeHTTP
// GET /api/v1/notifications
// GET /api/v1/notifications/unread-count
// PUT /api/v1/notifications/read-all
// PUT /api/v1/notifications/{id}/read
func (h *NotificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, Fail("X-User-Id is required"))
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/notifications"), "/")

	switch {
	case rest == "":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.List(w, r, userID)
	case rest == "unread-count":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.UnreadCount(w, r, userID)
	case rest == "read-all":
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.MarkAllRead(w, r, userID)
	case strings.HasSuffix(rest, "/read"):
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimSuffix(rest, "/read")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.MarkRead(w, r, userID, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request, userID string) {
	q := r.URL.Query()
	filters := repository.NotificationFilters{
		TeamID:     headerOrQuery(r, "X-Team-Id", "team_id"),
		Type:       q.Get("type"),
		UnreadOnly: q.Get("unread") == "true",
	}
	if v := q.Get("is_personal"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filters.IsPersonal = &b
		}
	}
	page := parseInt(q.Get("page"), 1)
	size := parseInt(q.Get("size"), 20)
	if size > 100 {
		size = 100
	}

	items, total, err := h.notifications.ListNotifications(r.Context(), userID, filters, page, size)
	if err != nil {
		h.logger.Error("Failed to list notifications", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to list notifications"))
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, n := range items {
		out = append(out, n.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": out,
		"total": total,
		"page":  page,
		"size":  size,
	}))
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request, userID string) {
	n, err := h.notifications.CountUnread(r.Context(), userID, headerOrQuery(r, "X-Team-Id", "team_id"))
	if err != nil {
		h.logger.Error("Failed to count unread notifications", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to count unread notifications"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"count": n}))
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request, userID, id string) {
	err := h.notifications.MarkRead(r.Context(), userID, id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, Fail("notification not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to mark notification read",
			zap.String("user_id", userID),
			zap.String("notification_id", id),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail("failed to mark notification read"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"id": id, "is_read": true}))
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request, userID string) {
	n, err := h.notifications.MarkAllRead(r.Context(), userID, headerOrQuery(r, "X-Team-Id", "team_id"))
	if err != nil {
		h.logger.Error("Failed to mark all notifications read", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to mark notifications read"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"updated": n}))
}
