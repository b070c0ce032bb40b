package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aumugisha-umu/seido-sub001/internal/domain"

	"github.com/google/uuid"
)

// MemoryStore backs all three repositories in one process when no database is
// configured (DB_ENABLED=false) and in tests.
// - IDs use uuid
// - link rows keep insertion order, which stands in for created_at ordering
// - no foreign key checks
type MemoryStore struct {
	mu sync.RWMutex

	now func() time.Time

	members       map[string][]domain.TeamMember // teamID -> members
	roles         map[string]domain.Role         // userID -> role
	links         map[LinkTable][]LinkRow
	lots          map[string]domain.Lot
	interventions map[string]domain.Intervention
	notifications []*domain.Notification
	activityLogs  []*domain.ActivityLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:           time.Now,
		members:       map[string][]domain.TeamMember{},
		roles:         map[string]domain.Role{},
		links:         map[LinkTable][]LinkRow{},
		lots:          map[string]domain.Lot{},
		interventions: map[string]domain.Intervention{},
	}
}

var (
	_ GraphRepository         = (*MemoryStore)(nil)
	_ NotificationsRepository = (*MemoryStore)(nil)
	_ ActivityLogsRepository  = (*MemoryStore)(nil)
)

// SetClock replaces the time source used for end_date filtering and created_at.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ---- seeding ----

// AddUser records a user's global role; links and members pick it up.
func (s *MemoryStore) AddUser(userID string, role domain.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[userID] = role
}

func (s *MemoryStore) AddTeamMember(teamID, userID string, role domain.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[userID] = role
	s.members[teamID] = append(s.members[teamID], domain.TeamMember{UserID: userID, Role: role})
}

// AddLink appends a link row. LinkID and CreatedAt are filled when empty; the
// user's role is taken from AddUser/AddTeamMember when UserRole is empty.
func (s *MemoryStore) AddLink(link LinkRow) LinkRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	if link.LinkID == "" {
		link.LinkID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = s.now()
	}
	s.links[link.Table] = append(s.links[link.Table], link)
	return link
}

func (s *MemoryStore) AddLot(lot domain.Lot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lots[lot.LotID] = lot
}

func (s *MemoryStore) AddIntervention(it domain.Intervention) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interventions[it.InterventionID] = it
}

// RemoveTeamMember marks a member as gone (left_at set).
func (s *MemoryStore) RemoveTeamMember(teamID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.members[teamID][:0]
	for _, m := range s.members[teamID] {
		if m.UserID != userID {
			members = append(members, m)
		}
	}
	s.members[teamID] = members
}

// ---- GraphRepository ----

func (s *MemoryStore) QueryActiveLinks(_ context.Context, table LinkTable, filterColumn, filterValue string) ([]LinkRow, error) {
	spec, err := checkLinkQuery(table, filterColumn)
	if err != nil {
		return nil, dataAccess("query links", string(table), err)
	}
	if filterValue == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()

	var out []LinkRow
	for _, l := range s.links[table] {
		match := l.UserID == filterValue
		if filterColumn == spec.entityColumn {
			match = l.EntityID == filterValue
		}
		if !match || !l.ActiveAt(now) {
			continue
		}
		if l.UserRole == "" {
			l.UserRole = s.roles[l.UserID]
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) GetTeamMembers(_ context.Context, teamID string) ([]domain.TeamMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if teamID == "" {
		return nil, nil
	}
	out := make([]domain.TeamMember, len(s.members[teamID]))
	copy(out, s.members[teamID])
	return out, nil
}

func (s *MemoryStore) GetLot(_ context.Context, lotID string) (*domain.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lot, ok := s.lots[lotID]
	if !ok {
		return nil, ErrNotFound
	}
	return &lot, nil
}

func (s *MemoryStore) GetIntervention(_ context.Context, interventionID string) (*domain.Intervention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.interventions[interventionID]
	if !ok {
		return nil, ErrNotFound
	}
	if !it.BuildingID.Valid && it.LotID.Valid {
		if lot, ok := s.lots[it.LotID.String]; ok {
			it.BuildingID = lot.BuildingID
		}
	}
	return &it, nil
}

// ---- NotificationsRepository ----

func (s *MemoryStore) CreateNotification(_ context.Context, n *domain.Notification) (*domain.Notification, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := *n
	out.NotificationID = uuid.NewString()
	out.CreatedAt = s.now()
	out.IsRead = false
	out.ReadAt = sql.NullTime{}
	stored := out
	s.notifications = append(s.notifications, &stored)
	return &out, nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, userID string, filters NotificationFilters, page, size int) ([]*domain.Notification, int, error) {
	if userID == "" {
		return nil, 0, nil
	}
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.Notification
	// newest first
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if n.UserID != userID {
			continue
		}
		if filters.TeamID != "" && n.TeamID != filters.TeamID {
			continue
		}
		if filters.Type != "" && string(n.Type) != filters.Type {
			continue
		}
		if filters.UnreadOnly && n.IsRead {
			continue
		}
		if filters.IsPersonal != nil && n.IsPersonal != *filters.IsPersonal {
			continue
		}
		cp := *n
		matched = append(matched, &cp)
	}
	total := len(matched)
	start := (page - 1) * size
	if start >= total {
		return []*domain.Notification{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *MemoryStore) CountUnread(_ context.Context, userID, teamID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead && (teamID == "" || n.TeamID == teamID) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, userID, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.NotificationID == notificationID && n.UserID == userID {
			if !n.IsRead {
				n.IsRead = true
				n.ReadAt = sql.NullTime{Time: s.now(), Valid: true}
			}
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) MarkAllRead(_ context.Context, userID, teamID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead && (teamID == "" || n.TeamID == teamID) {
			n.IsRead = true
			n.ReadAt = sql.NullTime{Time: now, Valid: true}
			count++
		}
	}
	return count, nil
}

// ---- ActivityLogsRepository ----

func (s *MemoryStore) CreateActivityLog(_ context.Context, l *domain.ActivityLog) (string, error) {
	if err := domain.RequireContext(l.TeamID, l.UserID); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *l
	cp.ActivityLogID = uuid.NewString()
	cp.CreatedAt = s.now()
	if cp.Status == "" {
		cp.Status = domain.ActivitySuccess
	}
	s.activityLogs = append(s.activityLogs, &cp)
	return cp.ActivityLogID, nil
}

func (f ActivityLogFilters) match(l *domain.ActivityLog) bool {
	if f.TeamID != "" && l.TeamID != f.TeamID {
		return false
	}
	if f.UserID != "" && l.UserID != f.UserID {
		return false
	}
	if f.EntityType != "" && string(l.EntityType) != f.EntityType {
		return false
	}
	if f.EntityID != "" && l.EntityID.String != f.EntityID {
		return false
	}
	if len(f.ActionTypes) > 0 {
		found := false
		for _, a := range f.ActionTypes {
			if strings.EqualFold(a, string(l.ActionType)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Status != "" && string(l.Status) != f.Status {
		return false
	}
	if f.From != nil && l.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !l.CreatedAt.Before(*f.To) {
		return false
	}
	return true
}

func (s *MemoryStore) ListActivityLogs(_ context.Context, filters ActivityLogFilters, page, size int) ([]*domain.ActivityLog, int, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.ActivityLog
	for i := len(s.activityLogs) - 1; i >= 0; i-- {
		if filters.match(s.activityLogs[i]) {
			cp := *s.activityLogs[i]
			matched = append(matched, &cp)
		}
	}
	total := len(matched)
	start := (page - 1) * size
	if start >= total {
		return []*domain.ActivityLog{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *MemoryStore) CountActivityLogsByGroup(_ context.Context, teamID string, since time.Time) ([]ActivityGroupCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[[3]string]int{}
	for _, l := range s.activityLogs {
		if l.TeamID != teamID || l.CreatedAt.Before(since) {
			continue
		}
		counts[[3]string{string(l.ActionType), string(l.EntityType), string(l.Status)}]++
	}
	out := make([]ActivityGroupCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, ActivityGroupCount{ActionType: k[0], EntityType: k[1], Status: k[2], Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ActionType != b.ActionType {
			return a.ActionType < b.ActionType
		}
		if a.EntityType != b.EntityType {
			return a.EntityType < b.EntityType
		}
		return a.Status < b.Status
	})
	return out, nil
}
