package domain

import (
	"database/sql"
	"strings"
)

// Intervention work order on a lot or a building (interventions table).
type Intervention struct {
	InterventionID    string             `db:"id" json:"id"`
	TeamID            string             `db:"team_id" json:"team_id"`
	LotID             sql.NullString     `db:"lot_id" json:"-"`
	BuildingID        sql.NullString     `db:"building_id" json:"-"`
	Reference         string             `db:"reference" json:"reference"`
	Title             string             `db:"title" json:"title"`
	Status            InterventionStatus `db:"status" json:"status"`
	Urgency           Urgency            `db:"urgency" json:"urgency"`
	ManagerID         sql.NullString     `db:"manager_id" json:"-"`
	AssignedContactID sql.NullString     `db:"assigned_contact_id" json:"-"`
	TenantID          sql.NullString     `db:"tenant_id" json:"-"`
}

func (i *Intervention) DisplayName() string {
	switch {
	case i.Title != "" && i.Reference != "":
		return i.Reference + " - " + i.Title
	case i.Title != "":
		return i.Title
	case i.Reference != "":
		return i.Reference
	}
	return i.InterventionID
}

// Urgency 4-level urgency of an intervention.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

var urgencyAliases = map[string]Urgency{
	"low":     UrgencyLow,
	"basse":   UrgencyLow,
	"normal":  UrgencyNormal,
	"normale": UrgencyNormal,
	"high":    UrgencyHigh,
	"haute":   UrgencyHigh,
	"urgent":  UrgencyUrgent,
	"urgente": UrgencyUrgent,
}

// ParseUrgency maps stored literals; unknown values are treated as normal.
func ParseUrgency(s string) Urgency {
	if u, ok := urgencyAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return u
	}
	return UrgencyNormal
}
