package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aumugisha-umu/seido-sub001/internal/repository"
	"github.com/aumugisha-umu/seido-sub001/internal/service"

	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ActivityLogHandler read side of the audit trail, scoped to one team.
type ActivityLogHandler struct {
	activity service.ActivityLogger
	logger   *zap.Logger
}

func NewActivityLogHandler(activity service.ActivityLogger, logger *zap.Logger) *ActivityLogHandler {
	return &ActivityLogHandler{activity: activity, logger: logger}
}

// ServeHTTP
// GET /api/v1/activity-logs
// GET /api/v1/activity-logs/stats
// GET /api/v1/activity-logs/export
func (h *ActivityLogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	teamID := headerOrQuery(r, "X-Team-Id", "team_id")
	if teamID == "" {
		writeJSON(w, http.StatusOK, Fail("team_id is required"))
		return
	}

	switch strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/activity-logs"), "/") {
	case "":
		h.List(w, r, teamID)
	case "stats":
		h.Stats(w, r, teamID)
	case "export":
		h.Export(w, r, teamID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func filtersFromQuery(r *http.Request, teamID string) (repository.ActivityLogFilters, error) {
	q := r.URL.Query()
	f := repository.ActivityLogFilters{
		TeamID:      teamID,
		UserID:      q.Get("user_id"),
		EntityType:  q.Get("entity_type"),
		EntityID:    q.Get("entity_id"),
		ActionTypes: splitList(q.Get("action_type")),
		Status:      q.Get("status"),
	}
	from, ok := parseTime(q.Get("from"))
	if !ok {
		return f, fmt.Errorf("invalid from: %q", q.Get("from"))
	}
	to, ok := parseTime(q.Get("to"))
	if !ok {
		return f, fmt.Errorf("invalid to: %q", q.Get("to"))
	}
	f.From, f.To = from, to
	return f, nil
}

func (h *ActivityLogHandler) List(w http.ResponseWriter, r *http.Request, teamID string) {
	filters, err := filtersFromQuery(r, teamID)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	page := parseInt(r.URL.Query().Get("page"), 1)
	size := parseInt(r.URL.Query().Get("size"), 50)
	if size > 200 {
		size = 200
	}

	items, total, err := h.activity.GetActivityLogs(r.Context(), filters, page, size)
	if err != nil {
		h.logger.Error("Failed to list activity logs", zap.String("team_id", teamID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to list activity logs"))
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, l := range items {
		out = append(out, l.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": out,
		"total": total,
		"page":  page,
		"size":  size,
	}))
}

func (h *ActivityLogHandler) Stats(w http.ResponseWriter, r *http.Request, teamID string) {
	stats, err := h.activity.GetActivityStats(r.Context(), teamID, r.URL.Query().Get("period"))
	if err != nil {
		if service.IsValidationError(err) {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		h.logger.Error("Failed to compute activity stats", zap.String("team_id", teamID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to compute activity stats"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(stats))
}

func (h *ActivityLogHandler) Export(w http.ResponseWriter, r *http.Request, teamID string) {
	filters, err := filtersFromQuery(r, teamID)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	data, err := h.activity.ExportActivityLogs(r.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to export activity logs", zap.String("team_id", teamID), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to export activity logs"))
		return
	}
	filename := fmt.Sprintf("activity_logs_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
