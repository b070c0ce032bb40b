package repository

import (
	"context"
	"time"

	"github.com/aumugisha-umu/seido-sub001/internal/domain"
)

// ActivityLogsRepository append-only activity_logs table.
type ActivityLogsRepository interface {
	CreateActivityLog(ctx context.Context, l *domain.ActivityLog) (string, error)
	ListActivityLogs(ctx context.Context, filters ActivityLogFilters, page, size int) ([]*domain.ActivityLog, int, error)
	// CountActivityLogsByGroup counts rows of a team since a time, grouped by
	// (action_type, entity_type, status).
	CountActivityLogsByGroup(ctx context.Context, teamID string, since time.Time) ([]ActivityGroupCount, error)
}

// ActivityLogFilters every field is optional; empty means no filter.
type ActivityLogFilters struct {
	TeamID      string
	UserID      string
	EntityType  string
	EntityID    string
	ActionTypes []string
	Status      string
	From        *time.Time
	To          *time.Time
}

type ActivityGroupCount struct {
	ActionType string
	EntityType string
	Status     string
	Count      int
}
