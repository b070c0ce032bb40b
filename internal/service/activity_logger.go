package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aumugisha-umu/seido-sub001/internal/domain"
	"github.com/aumugisha-umu/seido-sub001/internal/repository"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// exportMaxRows caps one XLSX export.
const exportMaxRows = 10000

// LogParams one audit entry. TeamID and UserID are mandatory.
type LogParams struct {
	TeamID       string
	UserID       string
	Action       domain.ActionType
	EntityType   domain.EntityType
	EntityID     string
	EntityName   string
	Description  string
	Status       domain.ActivityStatus
	Metadata     map[string]any
	ErrorMessage string
	IPAddress    string
	UserAgent    string
}

// ActivityLogger append-only audit trail, independent of notifications.
// Writes never return errors: a failed write yields ok=false.
type ActivityLogger interface {
	DataQualityReporter
	Log(ctx context.Context, p LogParams) (string, bool)
	LogError(ctx context.Context, p LogParams, cause error) (string, bool)
	GetActivityLogs(ctx context.Context, filters repository.ActivityLogFilters, page, size int) ([]*domain.ActivityLog, int, error)
	GetActivityStats(ctx context.Context, teamID, period string) (*domain.ActivityStats, error)
	ExportActivityLogs(ctx context.Context, filters repository.ActivityLogFilters) ([]byte, error)
}

type activityLogger struct {
	repo   repository.ActivityLogsRepository
	now    func() time.Time
	logger *zap.Logger
}

func NewActivityLogger(repo repository.ActivityLogsRepository, logger *zap.Logger) ActivityLogger {
	return &activityLogger{repo: repo, now: time.Now, logger: logger}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (l *activityLogger) Log(ctx context.Context, p LogParams) (id string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("activity log panicked", zap.Any("panic", r))
			id, ok = "", false
		}
	}()

	if err := domain.RequireContext(p.TeamID, p.UserID); err != nil {
		l.logger.Warn("activity log skipped",
			zap.String("action", string(p.Action)),
			zap.String("entity_type", string(p.EntityType)),
			zap.String("entity_id", p.EntityID),
			zap.Error(err),
		)
		return "", false
	}

	entry := &domain.ActivityLog{
		TeamID:       p.TeamID,
		UserID:       p.UserID,
		ActionType:   p.Action,
		EntityType:   p.EntityType,
		EntityID:     nullString(p.EntityID),
		EntityName:   nullString(p.EntityName),
		Description:  p.Description,
		Status:       p.Status,
		ErrorMessage: nullString(p.ErrorMessage),
		IPAddress:    nullString(p.IPAddress),
		UserAgent:    nullString(p.UserAgent),
	}
	if entry.Status == "" {
		entry.Status = domain.ActivitySuccess
	}
	if len(p.Metadata) > 0 {
		raw, err := json.Marshal(p.Metadata)
		if err != nil {
			l.logger.Warn("activity log metadata dropped", zap.Error(err))
		} else {
			entry.Metadata = raw
		}
	}

	id, err := l.repo.CreateActivityLog(ctx, entry)
	if err != nil {
		l.logger.Error("failed to write activity log",
			zap.String("team_id", p.TeamID),
			zap.String("action", string(p.Action)),
			zap.String("entity_type", string(p.EntityType)),
			zap.String("entity_id", p.EntityID),
			zap.Error(err),
		)
		return "", false
	}
	return id, true
}

// LogError records a failed mutation attempt.
func (l *activityLogger) LogError(ctx context.Context, p LogParams, cause error) (string, bool) {
	p.Status = domain.ActivityFailed
	if cause != nil && p.ErrorMessage == "" {
		p.ErrorMessage = cause.Error()
	}
	return l.Log(ctx, p)
}

// ReportDuplicatePrimary writes a data_quality row naming the winner and the
// other active primaries of the entity.
func (l *activityLogger) ReportDuplicatePrimary(ctx context.Context, teamID, actorID string, dup PrimaryResult) {
	entityType := domain.EntityBuilding
	if dup.Table == repository.LotContacts {
		entityType = domain.EntityLot
	}
	l.logger.Warn("duplicate primary manager links",
		zap.String("table", string(dup.Table)),
		zap.String("entity_id", dup.EntityID),
		zap.String("winner", dup.UserID),
		zap.Strings("duplicates", dup.Duplicates),
	)
	l.Log(ctx, LogParams{
		TeamID:      teamID,
		UserID:      actorID,
		Action:      domain.ActionDataQuality,
		EntityType:  entityType,
		EntityID:    dup.EntityID,
		Description: fmt.Sprintf("%d extra active primary manager link(s) on %s", len(dup.Duplicates), dup.Table),
		Metadata: map[string]any{
			"issue":      "duplicate_primary",
			"table":      string(dup.Table),
			"winner":     dup.UserID,
			"duplicates": dup.Duplicates,
		},
	})
}

func (l *activityLogger) GetActivityLogs(ctx context.Context, filters repository.ActivityLogFilters, page, size int) ([]*domain.ActivityLog, int, error) {
	items, total, err := l.repo.ListActivityLogs(ctx, filters, page, size)
	if err != nil {
		return nil, 0, fmt.Errorf("list activity logs: %w", err)
	}
	return items, total, nil
}

// periodWindows rolling windows accepted by GetActivityStats.
var periodWindows = map[string]time.Duration{
	"day":   24 * time.Hour,
	"week":  7 * 24 * time.Hour,
	"month": 30 * 24 * time.Hour,
	"year":  365 * 24 * time.Hour,
}

// GetActivityStats counts a team's rows over the period (day, week, month,
// year; empty means week). SuccessRate is a percentage, 0 without rows.
func (l *activityLogger) GetActivityStats(ctx context.Context, teamID, period string) (*domain.ActivityStats, error) {
	if teamID == "" {
		return nil, &domain.ValidationError{Field: "team_id", Message: "is required"}
	}
	if period == "" {
		period = "week"
	}
	window, ok := periodWindows[period]
	if !ok {
		return nil, &domain.ValidationError{Field: "period", Message: "must be one of day, week, month, year"}
	}
	since := l.now().Add(-window)

	groups, err := l.repo.CountActivityLogsByGroup(ctx, teamID, since)
	if err != nil {
		return nil, fmt.Errorf("count activity logs: %w", err)
	}

	stats := &domain.ActivityStats{
		TeamID:   teamID,
		Period:   period,
		Since:    since,
		ByAction: map[string]int{},
		ByEntity: map[string]int{},
		ByStatus: map[string]int{},
	}
	for _, g := range groups {
		stats.Total += g.Count
		stats.ByAction[g.ActionType] += g.Count
		stats.ByEntity[g.EntityType] += g.Count
		stats.ByStatus[g.Status] += g.Count
	}
	if stats.Total > 0 {
		rate := float64(stats.ByStatus[string(domain.ActivitySuccess)]) * 100 / float64(stats.Total)
		stats.SuccessRate = math.Round(rate*100) / 100
	}
	return stats, nil
}

var exportHeaders = []string{
	"Date", "User", "Action", "Entity Type", "Entity ID", "Entity Name",
	"Description", "Status", "Error",
}

// ExportActivityLogs renders the filtered log (newest first) as an XLSX workbook.
func (l *activityLogger) ExportActivityLogs(ctx context.Context, filters repository.ActivityLogFilters) ([]byte, error) {
	const pageSize = 500
	var rows []*domain.ActivityLog
	for page := 1; len(rows) < exportMaxRows; page++ {
		items, total, err := l.repo.ListActivityLogs(ctx, filters, page, pageSize)
		if err != nil {
			return nil, fmt.Errorf("list activity logs: %w", err)
		}
		rows = append(rows, items...)
		if len(items) < pageSize || len(rows) >= total {
			break
		}
	}
	if len(rows) > exportMaxRows {
		rows = rows[:exportMaxRows]
	}
	return renderActivityWorkbook(rows)
}

func renderActivityWorkbook(rows []*domain.ActivityLog) ([]byte, error) {
	f := excelize.NewFile()

	sheet := "Activity"
	index, err := f.NewSheet(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]any, len(exportHeaders))
	for i, h := range exportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		values := []any{
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.UserID,
			string(r.ActionType),
			string(r.EntityType),
			r.EntityID.String,
			r.EntityName.String,
			r.Description,
			string(r.Status),
			r.ErrorMessage.String,
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// IsValidationError reports whether err is a caller-side validation failure.
func IsValidationError(err error) bool {
	var ve *domain.ValidationError
	return errors.As(err, &ve)
}
