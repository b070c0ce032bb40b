package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aumugisha-umu/seido-sub001/internal/domain"
)

// PostgresNotificationsRepository NotificationsRepository over lib/pq.
type PostgresNotificationsRepository struct {
	db *sql.DB
}

func NewPostgresNotificationsRepository(db *sql.DB) *PostgresNotificationsRepository {
	return &PostgresNotificationsRepository{db: db}
}

var _ NotificationsRepository = (*PostgresNotificationsRepository)(nil)

// CreateNotification inserts n and fills id / created_at. Rows without team or
// user are refused with a *domain.ValidationError and never reach the database.
func (r *PostgresNotificationsRepository) CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	metadata, err := domain.EncodeMetadata(n.Metadata)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO notifications (
			user_id, team_id, created_by, type, priority, title, message,
			is_personal, metadata, related_entity_type, related_entity_id, is_read
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, false)
		RETURNING id::text, created_at
	`
	out := *n
	err = r.db.QueryRowContext(ctx, query,
		n.UserID,
		n.TeamID,
		n.CreatedBy,
		string(n.Type),
		string(n.Priority),
		n.Title,
		n.Message,
		n.IsPersonal,
		string(metadata),
		n.RelatedEntityType,
		n.RelatedEntityID,
	).Scan(&out.NotificationID, &out.CreatedAt)
	if err != nil {
		return nil, dataAccess("insert", "notifications", err)
	}
	out.IsRead = false
	return &out, nil
}

func (r *PostgresNotificationsRepository) ListNotifications(ctx context.Context, userID string, filters NotificationFilters, page, size int) ([]*domain.Notification, int, error) {
	if userID == "" {
		return nil, 0, nil
	}
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}

	where := []string{"user_id = $1"}
	args := []any{userID}
	if filters.TeamID != "" {
		args = append(args, filters.TeamID)
		where = append(where, fmt.Sprintf("team_id = $%d", len(args)))
	}
	if filters.Type != "" {
		args = append(args, filters.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if filters.UnreadOnly {
		where = append(where, "is_read = false")
	}
	if filters.IsPersonal != nil {
		args = append(args, *filters.IsPersonal)
		where = append(where, fmt.Sprintf("is_personal = $%d", len(args)))
	}
	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notifications WHERE "+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, dataAccess("count", "notifications", err)
	}

	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf(`
		SELECT
			id::text,
			user_id::text,
			team_id::text,
			created_by::text,
			type,
			priority,
			title,
			COALESCE(message, ''),
			is_personal,
			metadata::text,
			related_entity_type,
			related_entity_id::text,
			is_read,
			read_at,
			created_at
		FROM notifications
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, whereSQL, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, dataAccess("list", "notifications", err)
	}
	defer rows.Close()

	var items []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		var typ, priority string
		var metadata sql.NullString
		if err := rows.Scan(
			&n.NotificationID,
			&n.UserID,
			&n.TeamID,
			&n.CreatedBy,
			&typ,
			&priority,
			&n.Title,
			&n.Message,
			&n.IsPersonal,
			&metadata,
			&n.RelatedEntityType,
			&n.RelatedEntityID,
			&n.IsRead,
			&n.ReadAt,
			&n.CreatedAt,
		); err != nil {
			return nil, 0, dataAccess("scan", "notifications", err)
		}
		n.Type = domain.NotificationType(typ)
		n.Priority = domain.Priority(priority)
		if metadata.Valid {
			// unreadable metadata must not hide the notification itself
			if m, err := domain.DecodeMetadata([]byte(metadata.String)); err == nil {
				n.Metadata = m
			}
		}
		items = append(items, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dataAccess("list", "notifications", err)
	}
	return items, total, nil
}

func (r *PostgresNotificationsRepository) CountUnread(ctx context.Context, userID, teamID string) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`
	args := []any{userID}
	if teamID != "" {
		query += ` AND team_id = $2`
		args = append(args, teamID)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, dataAccess("count unread", "notifications", err)
	}
	return n, nil
}

// MarkRead only touches rows owned by userID; ErrNotFound otherwise.
func (r *PostgresNotificationsRepository) MarkRead(ctx context.Context, userID, notificationID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = true, read_at = COALESCE(read_at, now())
		 WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return dataAccess("mark read", "notifications", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return dataAccess("mark read", "notifications", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresNotificationsRepository) MarkAllRead(ctx context.Context, userID, teamID string) (int, error) {
	query := `UPDATE notifications SET is_read = true, read_at = now() WHERE user_id = $1 AND is_read = false`
	args := []any{userID}
	if teamID != "" {
		query += ` AND team_id = $2`
		args = append(args, teamID)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, dataAccess("mark all read", "notifications", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, dataAccess("mark all read", "notifications", err)
	}
	return int(affected), nil
}
