package domain

import (
	"database/sql"
	"time"
)

// Team owns buildings, lots, contacts and users (teams table).
type Team struct {
	TeamID    string    `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// User application account (users table).
type User struct {
	UserID string         `db:"id"`
	TeamID sql.NullString `db:"team_id"` // providers/tenants may belong to no team
	Name   string         `db:"name"`
	Email  sql.NullString `db:"email"`
	Role   Role           `db:"role"`
}

// TeamMember an active membership row joined with the user's role.
type TeamMember struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}
