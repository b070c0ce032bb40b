package domain

import (
	"database/sql"
	"encoding/json"
	"time"
)

// ActionType activity_logs.action_type values.
type ActionType string

const (
	ActionCreate       ActionType = "create"
	ActionUpdate       ActionType = "update"
	ActionDelete       ActionType = "delete"
	ActionStatusChange ActionType = "status_change"
	ActionNotify       ActionType = "notify"
	ActionDataQuality  ActionType = "data_quality"
	ActionLogin        ActionType = "login"
	ActionInvite       ActionType = "invite"
)

// ActivityStatus activity_logs.status
type ActivityStatus string

const (
	ActivitySuccess ActivityStatus = "success"
	ActivityFailed  ActivityStatus = "failed"
)

// ActivityLog append-only audit row (activity_logs table).
type ActivityLog struct {
	ActivityLogID string          `db:"id" json:"id"`
	TeamID        string          `db:"team_id" json:"team_id"`
	UserID        string          `db:"user_id" json:"user_id"`
	ActionType    ActionType      `db:"action_type" json:"action_type"`
	EntityType    EntityType      `db:"entity_type" json:"entity_type"`
	EntityID      sql.NullString  `db:"entity_id" json:"-"`
	EntityName    sql.NullString  `db:"entity_name" json:"-"`
	Description   string          `db:"description" json:"description"`
	Status        ActivityStatus  `db:"status" json:"status"`
	Metadata      json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	ErrorMessage  sql.NullString  `db:"error_message" json:"-"`
	IPAddress     sql.NullString  `db:"ip_address" json:"-"`
	UserAgent     sql.NullString  `db:"user_agent" json:"-"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

func (a *ActivityLog) ToJSON() map[string]any {
	m := map[string]any{
		"id":          a.ActivityLogID,
		"team_id":     a.TeamID,
		"user_id":     a.UserID,
		"action_type": a.ActionType,
		"entity_type": a.EntityType,
		"description": a.Description,
		"status":      a.Status,
		"created_at":  a.CreatedAt,
	}
	if a.EntityID.Valid {
		m["entity_id"] = a.EntityID.String
	}
	if a.EntityName.Valid {
		m["entity_name"] = a.EntityName.String
	}
	if len(a.Metadata) > 0 {
		m["metadata"] = a.Metadata
	}
	if a.ErrorMessage.Valid {
		m["error_message"] = a.ErrorMessage.String
	}
	return m
}

// ActivityStats aggregate returned by the stats endpoint.
type ActivityStats struct {
	TeamID      string         `json:"team_id"`
	Period      string         `json:"period"`
	Since       time.Time      `json:"since"`
	Total       int            `json:"total"`
	ByAction    map[string]int `json:"by_action"`
	ByEntity    map[string]int `json:"by_entity"`
	ByStatus    map[string]int `json:"by_status"`
	SuccessRate float64        `json:"success_rate"`
}
