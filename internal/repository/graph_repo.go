package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aumugisha-umu/seido-sub001/internal/domain"
)

// LinkTable direct-assignment tables of the ownership graph.
type LinkTable string

const (
	BuildingContacts     LinkTable = "building_contacts"
	LotContacts          LinkTable = "lot_contacts"
	InterventionContacts LinkTable = "intervention_contacts"
)

type linkTableSpec struct {
	entityColumn string
	typeExpr     string // SQL expression for the link's contact type
	primaryExpr  string // SQL expression for is_primary
}

var linkTables = map[LinkTable]linkTableSpec{
	BuildingContacts:     {entityColumn: "building_id", typeExpr: "''", primaryExpr: "COALESCE(l.is_primary, false)"},
	LotContacts:          {entityColumn: "lot_id", typeExpr: "COALESCE(l.contact_type, '')", primaryExpr: "COALESCE(l.is_primary, false)"},
	InterventionContacts: {entityColumn: "intervention_id", typeExpr: "COALESCE(l.role, '')", primaryExpr: "false"},
}

// EntityColumn is the foreign key naming the linked entity.
func (t LinkTable) EntityColumn() string {
	return linkTables[t].entityColumn
}

// checkLinkQuery whitelists table and filter column; both end up in SQL text.
func checkLinkQuery(table LinkTable, filterColumn string) (linkTableSpec, error) {
	spec, ok := linkTables[table]
	if !ok {
		return linkTableSpec{}, fmt.Errorf("unknown link table %q", table)
	}
	if filterColumn != spec.entityColumn && filterColumn != "user_id" {
		return linkTableSpec{}, fmt.Errorf("column %q cannot filter %s", filterColumn, table)
	}
	return spec, nil
}

// LinkRow one row of a *_contacts table joined with the linked user's role.
type LinkRow struct {
	LinkID      string             `json:"id"`
	Table       LinkTable          `json:"table"`
	EntityID    string             `json:"entity_id"`
	UserID      string             `json:"user_id"`
	UserRole    domain.Role        `json:"user_role"`
	ContactType domain.ContactType `json:"contact_type"`
	IsPrimary   bool               `json:"is_primary"`
	EndDate     sql.NullTime       `json:"-"`
	CreatedAt   time.Time          `json:"created_at"`
}

// ActiveAt: no end date, or an end date after t.
func (l LinkRow) ActiveAt(t time.Time) bool {
	return !l.EndDate.Valid || l.EndDate.Time.After(t)
}

// GraphRepository read side of the ownership graph
// (team -> building -> lot -> contact -> intervention).
type GraphRepository interface {
	// QueryActiveLinks rows of table whose filterColumn equals filterValue and
	// whose end_date is null or in the future, oldest first.
	QueryActiveLinks(ctx context.Context, table LinkTable, filterColumn, filterValue string) ([]LinkRow, error)
	// GetTeamMembers active members of a team with their role.
	GetTeamMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error)
	GetLot(ctx context.Context, lotID string) (*domain.Lot, error)
	GetIntervention(ctx context.Context, interventionID string) (*domain.Intervention, error)
}
