package domain

import (
	"database/sql"
	"time"
)

// NotificationType notifications.type enum
type NotificationType string

const (
	NotificationTypeIntervention NotificationType = "intervention"
	NotificationTypeStatusChange NotificationType = "status_change"
	NotificationTypeAssignment   NotificationType = "assignment"
	NotificationTypeDocument     NotificationType = "document"
	NotificationTypeChat         NotificationType = "chat"
	NotificationTypeReminder     NotificationType = "reminder"
	NotificationTypeTeamInvite   NotificationType = "team_invite"
	NotificationTypeSystem       NotificationType = "system"
)

// Priority notifications.priority enum, ordered low < normal < high < urgent.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityRank = map[Priority]int{
	PriorityLow:    0,
	PriorityNormal: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

var priorityByRank = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}

// Bump raises the priority by n levels, saturating at urgent.
func (p Priority) Bump(n int) Priority {
	r, ok := priorityRank[p]
	if !ok {
		r = priorityRank[PriorityNormal]
	}
	r += n
	if r >= len(priorityByRank) {
		r = len(priorityByRank) - 1
	}
	if r < 0 {
		r = 0
	}
	return priorityByRank[r]
}

// AtLeast returns the higher of p and min.
func (p Priority) AtLeast(min Priority) Priority {
	if priorityRank[p] < priorityRank[min] {
		return min
	}
	return p
}

// EntityType related_entity_type / activity_logs.entity_type values.
type EntityType string

const (
	EntityBuilding     EntityType = "building"
	EntityLot          EntityType = "lot"
	EntityContact      EntityType = "contact"
	EntityIntervention EntityType = "intervention"
	EntityUser         EntityType = "user"
	EntityTeam         EntityType = "team"
	EntityNotification EntityType = "notification"
)

// Notification one row per recipient (notifications table). Only IsRead and
// ReadAt change after creation.
type Notification struct {
	NotificationID    string               `db:"id" json:"id"`
	UserID            string               `db:"user_id" json:"user_id"`
	TeamID            string               `db:"team_id" json:"team_id"`
	CreatedBy         sql.NullString       `db:"created_by" json:"-"`
	Type              NotificationType     `db:"type" json:"type"`
	Priority          Priority             `db:"priority" json:"priority"`
	Title             string               `db:"title" json:"title"`
	Message           string               `db:"message" json:"message"`
	IsPersonal        bool                 `db:"is_personal" json:"is_personal"`
	Metadata          NotificationMetadata `db:"metadata" json:"-"`
	RelatedEntityType sql.NullString       `db:"related_entity_type" json:"-"`
	RelatedEntityID   sql.NullString       `db:"related_entity_id" json:"-"`
	IsRead            bool                 `db:"is_read" json:"is_read"`
	ReadAt            sql.NullTime         `db:"read_at" json:"-"`
	CreatedAt         time.Time            `db:"created_at" json:"created_at"`
}

// Validate enforces the non-null team/user invariant before persistence.
func (n *Notification) Validate() error {
	if err := RequireContext(n.TeamID, n.UserID); err != nil {
		return err
	}
	if n.Title == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}
	return nil
}

// ToJSON API representation (nullable columns flattened).
func (n *Notification) ToJSON() map[string]any {
	m := map[string]any{
		"id":          n.NotificationID,
		"user_id":     n.UserID,
		"team_id":     n.TeamID,
		"type":        n.Type,
		"priority":    n.Priority,
		"title":       n.Title,
		"message":     n.Message,
		"is_personal": n.IsPersonal,
		"is_read":     n.IsRead,
		"created_at":  n.CreatedAt,
	}
	if n.CreatedBy.Valid {
		m["created_by"] = n.CreatedBy.String
	}
	if n.RelatedEntityType.Valid {
		m["related_entity_type"] = n.RelatedEntityType.String
	}
	if n.RelatedEntityID.Valid {
		m["related_entity_id"] = n.RelatedEntityID.String
	}
	if n.ReadAt.Valid {
		m["read_at"] = n.ReadAt.Time
	}
	if n.Metadata != nil {
		if flat, err := metadataToMap(n.Metadata); err == nil {
			m["metadata"] = flat
		}
	}
	return m
}
