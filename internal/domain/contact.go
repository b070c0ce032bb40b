package domain

import "database/sql"

// Contact a person known to the team, optionally linked to an application
// account once the invitation is accepted (contacts table).
type Contact struct {
	ContactID   string         `db:"id" json:"id"`
	TeamID      string         `db:"team_id" json:"team_id"`
	UserID      sql.NullString `db:"user_id" json:"-"`
	ContactType ContactType    `db:"contact_type" json:"contact_type"`
	Name        string         `db:"name" json:"name"`
	Email       sql.NullString `db:"email" json:"-"`
	Company     sql.NullString `db:"company" json:"-"`
}

// LinkedUserID is the account the contact resolves to in link tables.
// Contacts without an account fall back to their own id.
func (c *Contact) LinkedUserID() string {
	if c.UserID.Valid && c.UserID.String != "" {
		return c.UserID.String
	}
	return c.ContactID
}

func (c *Contact) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Email.Valid {
		return c.Email.String
	}
	return c.ContactID
}
