package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aumugisha-umu/seido-sub001/internal/domain"
	"github.com/aumugisha-umu/seido-sub001/internal/repository"
	"github.com/aumugisha-umu/seido-sub001/internal/store"

	"go.uber.org/zap"
)

const teamMembersKeyPrefix = "seido:team_members:"

func teamMembersKey(teamID string) string { return teamMembersKeyPrefix + teamID }

// PrimaryResult is the resolved principal manager of one building or lot.
// Duplicates lists the other active primaries found for the same entity,
// which the data model allows but should not contain.
type PrimaryResult struct {
	Table      repository.LinkTable `json:"table"`
	EntityID   string               `json:"entity_id"`
	UserID     string               `json:"user_id,omitempty"`
	Duplicates []string             `json:"duplicates,omitempty"`
}

func (p PrimaryResult) Found() bool { return p.UserID != "" }

// OwnershipReader answers "who is linked to this entity" over the ownership
// graph. Every answer only uses active links and never contains the excluded
// user.
type OwnershipReader struct {
	graph    repository.GraphRepository
	cache    store.Cache
	cacheTTL time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewOwnershipReader cache may be nil, in which case team membership is always
// read from the graph.
func NewOwnershipReader(graph repository.GraphRepository, cache store.Cache, cacheTTL time.Duration, logger *zap.Logger) *OwnershipReader {
	return &OwnershipReader{
		graph:    graph,
		cache:    cache,
		cacheTTL: cacheTTL,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the time source of the active-link filter.
func (r *OwnershipReader) SetClock(now func() time.Time) { r.now = now }

func (r *OwnershipReader) activeLinks(ctx context.Context, table repository.LinkTable, column, value string) ([]repository.LinkRow, error) {
	links, err := r.graph.QueryActiveLinks(ctx, table, column, value)
	if err != nil {
		return nil, err
	}
	now := r.now()
	active := links[:0]
	for _, l := range links {
		if l.ActiveAt(now) {
			active = append(active, l)
		}
	}
	return active, nil
}

func (r *OwnershipReader) activeManagers(ctx context.Context, table repository.LinkTable, entityID, excluding string) ([]string, error) {
	if entityID == "" {
		return nil, nil
	}
	links, err := r.activeLinks(ctx, table, table.EntityColumn(), entityID)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []string
	for _, l := range links {
		if !l.UserRole.IsManager() || l.UserID == excluding {
			continue
		}
		if _, dup := seen[l.UserID]; dup {
			continue
		}
		seen[l.UserID] = struct{}{}
		out = append(out, l.UserID)
	}
	return out, nil
}

// ActiveBuildingManagers managers with an active building_contacts link.
func (r *OwnershipReader) ActiveBuildingManagers(ctx context.Context, buildingID, excluding string) ([]string, error) {
	return r.activeManagers(ctx, repository.BuildingContacts, buildingID, excluding)
}

// ActiveLotManagers managers with an active lot_contacts link.
func (r *OwnershipReader) ActiveLotManagers(ctx context.Context, lotID, excluding string) ([]string, error) {
	return r.activeManagers(ctx, repository.LotContacts, lotID, excluding)
}

// primary picks the earliest active primary manager link (created_at, then
// link id). The winner is chosen before exclusion so that the acting user
// being the principal never promotes a duplicate.
func (r *OwnershipReader) primary(ctx context.Context, table repository.LinkTable, entityID, excluding string) (PrimaryResult, error) {
	res := PrimaryResult{Table: table, EntityID: entityID}
	if entityID == "" {
		return res, nil
	}
	links, err := r.activeLinks(ctx, table, table.EntityColumn(), entityID)
	if err != nil {
		return res, err
	}
	var primaries []repository.LinkRow
	for _, l := range links {
		if l.IsPrimary && l.UserRole.IsManager() {
			primaries = append(primaries, l)
		}
	}
	if len(primaries) == 0 {
		return res, nil
	}
	sort.SliceStable(primaries, func(i, j int) bool {
		a, b := primaries[i], primaries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.LinkID < b.LinkID
	})
	winner := primaries[0].UserID
	for _, l := range primaries[1:] {
		if l.UserID != winner {
			res.Duplicates = append(res.Duplicates, l.UserID)
		}
	}
	if winner != excluding {
		res.UserID = winner
	}
	return res, nil
}

func (r *OwnershipReader) PrimaryBuildingManager(ctx context.Context, buildingID, excluding string) (PrimaryResult, error) {
	return r.primary(ctx, repository.BuildingContacts, buildingID, excluding)
}

func (r *OwnershipReader) PrimaryLotManager(ctx context.Context, lotID, excluding string) (PrimaryResult, error) {
	return r.primary(ctx, repository.LotContacts, lotID, excluding)
}

// LotBuildingID parent building of a lot; "" for a standalone or unknown lot.
func (r *OwnershipReader) LotBuildingID(ctx context.Context, lotID string) (string, error) {
	if lotID == "" {
		return "", nil
	}
	lot, err := r.graph.GetLot(ctx, lotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return lot.BuildingID.String, nil
}

// TeamManagers active team members with the manager role, minus excluding,
// in membership order.
func (r *OwnershipReader) TeamManagers(ctx context.Context, teamID, excluding string) ([]domain.TeamMember, error) {
	members, err := r.teamMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	var out []domain.TeamMember
	for _, m := range members {
		if m.Role.IsManager() && m.UserID != excluding {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *OwnershipReader) teamMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	if teamID == "" {
		return nil, nil
	}
	var strategies []Strategy[[]domain.TeamMember]
	if r.cache != nil {
		strategies = append(strategies, Strategy[[]domain.TeamMember]{
			Name: "cache",
			Run: func(ctx context.Context) ([]domain.TeamMember, error) {
				raw, err := r.cache.Get(ctx, teamMembersKey(teamID))
				if err != nil {
					return nil, err
				}
				var members []domain.TeamMember
				if err := json.Unmarshal([]byte(raw), &members); err != nil {
					return nil, fmt.Errorf("decode cached members: %w", err)
				}
				return members, nil
			},
		})
	}
	strategies = append(strategies, Strategy[[]domain.TeamMember]{
		Name: "store",
		Run: func(ctx context.Context) ([]domain.TeamMember, error) {
			members, err := r.graph.GetTeamMembers(ctx, teamID)
			if err != nil {
				return nil, err
			}
			r.cacheMembers(ctx, teamID, members)
			return members, nil
		},
	})

	members, source, err := NewStrategyChain(strategies...).Run(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("team members resolved",
		zap.String("team_id", teamID),
		zap.String("source", source),
		zap.Int("count", len(members)),
	)
	return members, nil
}

func (r *OwnershipReader) cacheMembers(ctx context.Context, teamID string, members []domain.TeamMember) {
	if r.cache == nil {
		return
	}
	if members == nil {
		members = []domain.TeamMember{}
	}
	b, err := json.Marshal(members)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, teamMembersKey(teamID), string(b), r.cacheTTL); err != nil {
		r.logger.Warn("failed to cache team members", zap.String("team_id", teamID), zap.Error(err))
	}
}

// InvalidateTeam drops the cached membership of a team.
func (r *OwnershipReader) InvalidateTeam(ctx context.Context, teamID string) {
	if r.cache == nil || teamID == "" {
		return
	}
	if err := r.cache.Delete(ctx, teamMembersKey(teamID)); err != nil {
		r.logger.Warn("failed to invalidate team cache", zap.String("team_id", teamID), zap.Error(err))
	}
}

// ContactDirectResponsibles follows the contact's own links (building, lot and
// intervention) up to their building and returns that building's principal
// manager, one result per distinct building in discovery order. Results whose
// principal is the excluded user come back with an empty UserID so duplicates
// can still be reported.
func (r *OwnershipReader) ContactDirectResponsibles(ctx context.Context, contactUserID, excluding string) ([]PrimaryResult, error) {
	if contactUserID == "" {
		return nil, nil
	}
	var buildings []string
	seen := map[string]struct{}{}
	addBuilding := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		buildings = append(buildings, id)
	}

	links, err := r.activeLinks(ctx, repository.BuildingContacts, "user_id", contactUserID)
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		addBuilding(l.EntityID)
	}

	links, err = r.activeLinks(ctx, repository.LotContacts, "user_id", contactUserID)
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		buildingID, err := r.LotBuildingID(ctx, l.EntityID)
		if err != nil {
			return nil, err
		}
		addBuilding(buildingID)
	}

	links, err = r.activeLinks(ctx, repository.InterventionContacts, "user_id", contactUserID)
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		it, err := r.graph.GetIntervention(ctx, l.EntityID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, err
		}
		addBuilding(it.BuildingID.String)
	}

	out := make([]PrimaryResult, 0, len(buildings))
	for _, b := range buildings {
		p, err := r.PrimaryBuildingManager(ctx, b, excluding)
		if err != nil {
			return nil, err
		}
		if p.Found() || len(p.Duplicates) > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

// PrimaryUserIDs distinct non-empty principals of results, in order.
func PrimaryUserIDs(results []PrimaryResult) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range results {
		if !p.Found() {
			continue
		}
		if _, ok := seen[p.UserID]; ok {
			continue
		}
		seen[p.UserID] = struct{}{}
		out = append(out, p.UserID)
	}
	return out
}
