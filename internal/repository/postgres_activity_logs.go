package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aumugisha-umu/seido-sub001/internal/domain"

	"github.com/lib/pq"
)

// PostgresActivityLogsRepository ActivityLogsRepository over lib/pq.
type PostgresActivityLogsRepository struct {
	db *sql.DB
}

func NewPostgresActivityLogsRepository(db *sql.DB) *PostgresActivityLogsRepository {
	return &PostgresActivityLogsRepository{db: db}
}

var _ ActivityLogsRepository = (*PostgresActivityLogsRepository)(nil)

func (r *PostgresActivityLogsRepository) CreateActivityLog(ctx context.Context, l *domain.ActivityLog) (string, error) {
	if err := domain.RequireContext(l.TeamID, l.UserID); err != nil {
		return "", err
	}
	status := l.Status
	if status == "" {
		status = domain.ActivitySuccess
	}
	var metadata any
	if len(l.Metadata) > 0 {
		metadata = string(l.Metadata)
	}

	query := `
		INSERT INTO activity_logs (
			team_id, user_id, action_type, entity_type, entity_id, entity_name,
			description, status, metadata, error_message, ip_address, user_agent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9::jsonb, '{}'::jsonb), $10, $11, $12)
		RETURNING id::text
	`
	var id string
	err := r.db.QueryRowContext(ctx, query,
		l.TeamID,
		l.UserID,
		string(l.ActionType),
		string(l.EntityType),
		l.EntityID,
		l.EntityName,
		l.Description,
		string(status),
		metadata,
		l.ErrorMessage,
		l.IPAddress,
		l.UserAgent,
	).Scan(&id)
	if err != nil {
		return "", dataAccess("insert", "activity_logs", err)
	}
	return id, nil
}

func buildActivityWhere(f ActivityLogFilters) (string, []any) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.TeamID != "" {
		add("team_id = $%d", f.TeamID)
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if len(f.ActionTypes) > 0 {
		add("action_type = ANY($%d)", pq.Array(f.ActionTypes))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at < $%d", *f.To)
	}
	if len(where) == 0 {
		return "TRUE", args
	}
	return strings.Join(where, " AND "), args
}

func (r *PostgresActivityLogsRepository) ListActivityLogs(ctx context.Context, filters ActivityLogFilters, page, size int) ([]*domain.ActivityLog, int, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	whereSQL, args := buildActivityWhere(filters)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activity_logs WHERE "+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, dataAccess("count", "activity_logs", err)
	}

	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf(`
		SELECT
			id::text,
			team_id::text,
			user_id::text,
			action_type,
			entity_type,
			entity_id::text,
			entity_name,
			COALESCE(description, ''),
			status,
			metadata::text,
			error_message,
			ip_address,
			user_agent,
			created_at
		FROM activity_logs
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, whereSQL, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, dataAccess("list", "activity_logs", err)
	}
	defer rows.Close()

	var items []*domain.ActivityLog
	for rows.Next() {
		var l domain.ActivityLog
		var action, entity, status string
		var metadata sql.NullString
		if err := rows.Scan(
			&l.ActivityLogID,
			&l.TeamID,
			&l.UserID,
			&action,
			&entity,
			&l.EntityID,
			&l.EntityName,
			&l.Description,
			&status,
			&metadata,
			&l.ErrorMessage,
			&l.IPAddress,
			&l.UserAgent,
			&l.CreatedAt,
		); err != nil {
			return nil, 0, dataAccess("scan", "activity_logs", err)
		}
		l.ActionType = domain.ActionType(action)
		l.EntityType = domain.EntityType(entity)
		l.Status = domain.ActivityStatus(status)
		if metadata.Valid {
			l.Metadata = []byte(metadata.String)
		}
		items = append(items, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dataAccess("list", "activity_logs", err)
	}
	return items, total, nil
}

func (r *PostgresActivityLogsRepository) CountActivityLogsByGroup(ctx context.Context, teamID string, since time.Time) ([]ActivityGroupCount, error) {
	query := `
		SELECT action_type, entity_type, status, COUNT(*)
		FROM activity_logs
		WHERE team_id = $1 AND created_at >= $2
		GROUP BY action_type, entity_type, status
		ORDER BY action_type, entity_type, status
	`
	rows, err := r.db.QueryContext(ctx, query, teamID, since)
	if err != nil {
		return nil, dataAccess("group count", "activity_logs", err)
	}
	defer rows.Close()

	var out []ActivityGroupCount
	for rows.Next() {
		var g ActivityGroupCount
		if err := rows.Scan(&g.ActionType, &g.EntityType, &g.Status, &g.Count); err != nil {
			return nil, dataAccess("scan group count", "activity_logs", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, dataAccess("group count", "activity_logs", err)
	}
	return out, nil
}
