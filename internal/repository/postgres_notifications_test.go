package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/aumugisha-umu/seido-sub001/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockNotificationsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresNotificationsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresNotificationsRepository(db)
}

func TestCreateNotification_Success(t *testing.T) {
	db, mock, repo := setupMockNotificationsDB(t)
	defer db.Close()

	created := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	n := &domain.Notification{
		UserID:     "u-1",
		TeamID:     "team-1",
		Type:       domain.NotificationTypeIntervention,
		Priority:   domain.PriorityHigh,
		Title:      "Nouvelle intervention",
		Message:    "INT-1 created",
		IsPersonal: true,
		Metadata:   &domain.InterventionMetadata{InterventionID: "i-1"},
	}

	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs("u-1", "team-1", sqlmock.AnyArg(), "intervention", "high", "Nouvelle intervention",
			"INT-1 created", true, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("n-1", created))

	out, err := repo.CreateNotification(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, "n-1", out.NotificationID)
	assert.Equal(t, created, out.CreatedAt)
	assert.False(t, out.IsRead)
	// input untouched
	assert.Empty(t, n.NotificationID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateNotification_MissingTeamNeverReachesDB(t *testing.T) {
	db, mock, repo := setupMockNotificationsDB(t)
	defer db.Close()

	_, err := repo.CreateNotification(context.Background(), &domain.Notification{UserID: "u-1", Title: "x"})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "team_id", ve.Field)

	_, err = repo.CreateNotification(context.Background(), &domain.Notification{TeamID: "t", Title: "x"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "user_id", ve.Field)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateNotification_DBError(t *testing.T) {
	db, mock, repo := setupMockNotificationsDB(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO notifications`).WillReturnError(errors.New("permission denied"))

	_, err := repo.CreateNotification(context.Background(), &domain.Notification{UserID: "u", TeamID: "t", Title: "x"})
	require.Error(t, err)
	assert.True(t, IsDataAccess(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListNotifications_FiltersAndPaging(t *testing.T) {
	db, mock, repo := setupMockNotificationsDB(t)
	defer db.Close()

	personal := true
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications WHERE user_id = \$1 AND team_id = \$2 AND is_read = false AND is_personal = \$3`).
		WithArgs("u-1", "team-1", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "team_id", "created_by", "type", "priority", "title", "message",
		"is_personal", "metadata", "related_entity_type", "related_entity_id", "is_read", "read_at", "created_at",
	}).AddRow(
		"n-3", "u-1", "team-1", "actor", "status_change", "high", "Statut", "m",
		true, `{"kind":"status_change","old_status":"requested","new_status":"approved","ticket":"T-9"}`,
		"intervention", "i-1", false, nil, now,
	).AddRow(
		"n-2", "u-1", "team-1", nil, "system", "low", "Info", "",
		true, `not json`, nil, nil, false, nil, now.Add(-time.Minute),
	)
	mock.ExpectQuery(`LIMIT \$4 OFFSET \$5`).
		WithArgs("u-1", "team-1", true, 2, 2).
		WillReturnRows(rows)

	items, total, err := repo.ListNotifications(context.Background(), "u-1",
		NotificationFilters{TeamID: "team-1", UnreadOnly: true, IsPersonal: &personal}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)

	sc, ok := items[0].Metadata.(*domain.StatusChangeMetadata)
	require.True(t, ok)
	assert.Equal(t, "approved", sc.NewStatus)
	assert.Equal(t, "T-9", sc.Extra["ticket"])
	assert.Equal(t, "actor", items[0].CreatedBy.String)

	// unreadable metadata drops the metadata, not the row
	assert.Nil(t, items[1].Metadata)
	assert.False(t, items[1].CreatedBy.Valid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListNotifications_EmptyUser(t *testing.T) {
	db, mock, repo := setupMockNotificationsDB(t)
	defer db.Close()

	items, total, err := repo.ListNotifications(context.Background(), "", NotificationFilters{}, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountUnread(t *testing.T) {
	db, mock, repo := setupMockNotificationsDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs("u-1", "team-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.CountUnread(context.Background(), "u-1", "team-1")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRead(t *testing.T) {
	db, mock, repo := setupMockNotificationsDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE notifications SET is_read = true`).
		WithArgs("n-1", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE notifications SET is_read = true`).
		WithArgs("n-1", "intruder").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkRead(context.Background(), "u-1", "n-1"))
	assert.ErrorIs(t, repo.MarkRead(context.Background(), "intruder", "n-1"), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAllRead(t *testing.T) {
	db, mock, repo := setupMockNotificationsDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE notifications SET is_read = true, read_at = now\(\) WHERE user_id = \$1 AND is_read = false$`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.MarkAllRead(context.Background(), "u-1", "")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
