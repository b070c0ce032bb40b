package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aumugisha-umu/seido-sub001/internal/domain"
)

// PostgresGraphRepository GraphRepository over database/sql + lib/pq.
type PostgresGraphRepository struct {
	db *sql.DB
}

func NewPostgresGraphRepository(db *sql.DB) *PostgresGraphRepository {
	return &PostgresGraphRepository{db: db}
}

var _ GraphRepository = (*PostgresGraphRepository)(nil)

func (r *PostgresGraphRepository) QueryActiveLinks(ctx context.Context, table LinkTable, filterColumn, filterValue string) ([]LinkRow, error) {
	spec, err := checkLinkQuery(table, filterColumn)
	if err != nil {
		return nil, dataAccess("query links", string(table), err)
	}
	if filterValue == "" {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT
			l.id::text,
			l.%s::text,
			l.user_id::text,
			COALESCE(u.role, ''),
			%s,
			%s,
			l.end_date,
			l.created_at
		FROM %s l
		JOIN users u ON u.id = l.user_id
		WHERE l.%s = $1
		  AND (l.end_date IS NULL OR l.end_date > now())
		ORDER BY l.created_at ASC, l.id ASC
	`, spec.entityColumn, spec.typeExpr, spec.primaryExpr, string(table), filterColumn)

	rows, err := r.db.QueryContext(ctx, query, filterValue)
	if err != nil {
		return nil, dataAccess("query links", string(table), err)
	}
	defer rows.Close()

	var out []LinkRow
	for rows.Next() {
		var link LinkRow
		var role, contactType string
		if err := rows.Scan(
			&link.LinkID,
			&link.EntityID,
			&link.UserID,
			&role,
			&contactType,
			&link.IsPrimary,
			&link.EndDate,
			&link.CreatedAt,
		); err != nil {
			return nil, dataAccess("scan link", string(table), err)
		}
		link.Table = table
		link.UserRole = parseStoredRole(role)
		link.ContactType = domain.ParseContactType(contactType)
		out = append(out, link)
	}
	if err := rows.Err(); err != nil {
		return nil, dataAccess("query links", string(table), err)
	}
	return out, nil
}

func (r *PostgresGraphRepository) GetTeamMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	if teamID == "" {
		return nil, nil
	}
	query := `
		SELECT tm.user_id::text, COALESCE(u.role, '')
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = $1
		  AND tm.left_at IS NULL
		ORDER BY tm.joined_at ASC, tm.user_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, dataAccess("list members", "team_members", err)
	}
	defer rows.Close()

	var members []domain.TeamMember
	for rows.Next() {
		var m domain.TeamMember
		var role string
		if err := rows.Scan(&m.UserID, &role); err != nil {
			return nil, dataAccess("scan member", "team_members", err)
		}
		m.Role = parseStoredRole(role)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dataAccess("list members", "team_members", err)
	}
	return members, nil
}

func (r *PostgresGraphRepository) GetLot(ctx context.Context, lotID string) (*domain.Lot, error) {
	if lotID == "" {
		return nil, ErrNotFound
	}
	query := `
		SELECT id::text, team_id::text, building_id::text, COALESCE(reference, ''), category, floor
		FROM lots
		WHERE id = $1
	`
	var lot domain.Lot
	err := r.db.QueryRowContext(ctx, query, lotID).Scan(
		&lot.LotID,
		&lot.TeamID,
		&lot.BuildingID,
		&lot.Reference,
		&lot.Category,
		&lot.Floor,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dataAccess("get lot", "lots", err)
	}
	return &lot, nil
}

// GetIntervention resolves building_id through the lot when the intervention
// only references a lot.
func (r *PostgresGraphRepository) GetIntervention(ctx context.Context, interventionID string) (*domain.Intervention, error) {
	if interventionID == "" {
		return nil, ErrNotFound
	}
	query := `
		SELECT
			i.id::text,
			i.team_id::text,
			i.lot_id::text,
			COALESCE(i.building_id, l.building_id)::text,
			COALESCE(i.reference, ''),
			COALESCE(i.title, ''),
			i.status,
			COALESCE(i.urgency, ''),
			i.manager_id::text,
			i.assigned_contact_id::text,
			i.tenant_id::text
		FROM interventions i
		LEFT JOIN lots l ON l.id = i.lot_id
		WHERE i.id = $1
	`
	var it domain.Intervention
	var status, urgency string
	err := r.db.QueryRowContext(ctx, query, interventionID).Scan(
		&it.InterventionID,
		&it.TeamID,
		&it.LotID,
		&it.BuildingID,
		&it.Reference,
		&it.Title,
		&status,
		&urgency,
		&it.ManagerID,
		&it.AssignedContactID,
		&it.TenantID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dataAccess("get intervention", "interventions", err)
	}
	it.Status, _ = domain.ParseInterventionStatus(status)
	it.Urgency = domain.ParseUrgency(urgency)
	return &it, nil
}

// parseStoredRole keeps unknown literals so callers can still see them.
func parseStoredRole(s string) domain.Role {
	if r, ok := domain.ParseRole(s); ok {
		return r
	}
	return domain.Role(s)
}
