package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/aumugisha-umu/seido-sub001/internal/domain"
	"github.com/aumugisha-umu/seido-sub001/internal/repository"
	"github.com/aumugisha-umu/seido-sub001/internal/store"

	"go.uber.org/zap"
)

// team "t-1": managers m-1, m-2, m-3, tenant tn-1, provider p-1.
// building b-1 (primary m-1) holds lot l-1 (primary m-2, tenant tn-1).
const (
	testTeam     = "t-1"
	testBuilding = "b-1"
	testLot      = "l-1"
)

type fixture struct {
	now      time.Time
	mem      *repository.MemoryStore
	cache    *store.MemoryKV
	reader   *OwnershipReader
	activity ActivityLogger
	svc      NotificationService
	pub      *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLogger(t, zap.NewNop())
}

func newFixtureWithLogger(t *testing.T, logger *zap.Logger) *fixture {
	t.Helper()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	mem := repository.NewMemoryStore()
	mem.SetClock(clock)
	mem.AddTeamMember(testTeam, "m-1", domain.RoleManager)
	mem.AddTeamMember(testTeam, "m-2", domain.RoleManager)
	mem.AddTeamMember(testTeam, "m-3", domain.RoleManager)
	mem.AddTeamMember(testTeam, "tn-1", domain.RoleTenant)
	mem.AddTeamMember(testTeam, "p-1", domain.RoleProvider)

	mem.AddLot(domain.Lot{LotID: testLot, TeamID: testTeam, BuildingID: sql.NullString{String: testBuilding, Valid: true}, Reference: "A-101"})
	mem.AddLink(repository.LinkRow{Table: repository.BuildingContacts, EntityID: testBuilding, UserID: "m-1", IsPrimary: true})
	mem.AddLink(repository.LinkRow{Table: repository.LotContacts, EntityID: testLot, UserID: "m-2", IsPrimary: true, ContactType: domain.ContactTypeManager})
	mem.AddLink(repository.LinkRow{Table: repository.LotContacts, EntityID: testLot, UserID: "tn-1", ContactType: domain.ContactTypeTenant})

	cache := store.NewMemoryKV()
	reader := NewOwnershipReader(mem, cache, time.Minute, logger)
	reader.SetClock(clock)
	activity := NewActivityLogger(mem, logger)
	pub := &recordingPublisher{}

	return &fixture{
		now:      now,
		mem:      mem,
		cache:    cache,
		reader:   reader,
		activity: activity,
		svc:      NewNotificationService(mem, reader, activity, pub, 4, logger),
		pub:      pub,
	}
}

func (f *fixture) intervention() *domain.Intervention {
	return &domain.Intervention{
		InterventionID: "i-1",
		TeamID:         testTeam,
		LotID:          sql.NullString{String: testLot, Valid: true},
		BuildingID:     sql.NullString{String: testBuilding, Valid: true},
		Reference:      "INT-001",
		Title:          "Leaking tap",
		Status:         domain.StatusRequested,
		Urgency:        domain.UrgencyNormal,
		TenantID:       sql.NullString{String: "tn-1", Valid: true},
	}
}

func byUser(ns []*domain.Notification) map[string]*domain.Notification {
	out := make(map[string]*domain.Notification, len(ns))
	for _, n := range ns {
		out[n.UserID] = n
	}
	return out
}

func recipientsByUser(rs []Recipient) map[string]Recipient {
	out := make(map[string]Recipient, len(rs))
	for _, r := range rs {
		out[r.UserID] = r
	}
	return out
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []*domain.Notification
}

func (p *recordingPublisher) Publish(_ context.Context, n *domain.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}
