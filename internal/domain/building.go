package domain

import "database/sql"

// Building (buildings table)
type Building struct {
	BuildingID string         `db:"id" json:"id"`
	TeamID     string         `db:"team_id" json:"team_id"`
	Name       string         `db:"name" json:"name"`
	Address    sql.NullString `db:"address" json:"-"`
	City       sql.NullString `db:"city" json:"-"`
}

// DisplayName falls back to the id when the building has no name.
func (b *Building) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return b.BuildingID
}
