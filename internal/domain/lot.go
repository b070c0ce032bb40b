package domain

import "database/sql"

// Lot a rentable unit, optionally inside a building (lots table).
type Lot struct {
	LotID      string         `db:"id" json:"id"`
	TeamID     string         `db:"team_id" json:"team_id"`
	BuildingID sql.NullString `db:"building_id" json:"-"`
	Reference  string         `db:"reference" json:"reference"`
	Category   sql.NullString `db:"category" json:"-"`
	Floor      sql.NullInt64  `db:"floor" json:"-"`
}

func (l *Lot) DisplayName() string {
	if l.Reference != "" {
		return l.Reference
	}
	return l.LotID
}
