package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/aumugisha-umu/seido-sub001/internal/domain"
	"github.com/aumugisha-umu/seido-sub001/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockGraphRepository GraphRepository backed by testify/mock.
type MockGraphRepository struct {
	mock.Mock
}

func (m *MockGraphRepository) QueryActiveLinks(ctx context.Context, table repository.LinkTable, column, value string) ([]repository.LinkRow, error) {
	args := m.Called(ctx, table, column, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.LinkRow), args.Error(1)
}

func (m *MockGraphRepository) GetTeamMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TeamMember), args.Error(1)
}

func (m *MockGraphRepository) GetLot(ctx context.Context, lotID string) (*domain.Lot, error) {
	args := m.Called(ctx, lotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lot), args.Error(1)
}

func (m *MockGraphRepository) GetIntervention(ctx context.Context, interventionID string) (*domain.Intervention, error) {
	args := m.Called(ctx, interventionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Intervention), args.Error(1)
}

// MockNotificationsRepository NotificationsRepository backed by testify/mock.
type MockNotificationsRepository struct {
	mock.Mock
}

func (m *MockNotificationsRepository) CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockNotificationsRepository) ListNotifications(ctx context.Context, userID string, filters repository.NotificationFilters, page, size int) ([]*domain.Notification, int, error) {
	args := m.Called(ctx, userID, filters, page, size)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.Notification), args.Int(1), args.Error(2)
}

func (m *MockNotificationsRepository) CountUnread(ctx context.Context, userID, teamID string) (int, error) {
	args := m.Called(ctx, userID, teamID)
	return args.Int(0), args.Error(1)
}

func (m *MockNotificationsRepository) MarkRead(ctx context.Context, userID, notificationID string) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

func (m *MockNotificationsRepository) MarkAllRead(ctx context.Context, userID, teamID string) (int, error) {
	args := m.Called(ctx, userID, teamID)
	return args.Int(0), args.Error(1)
}

func ec(actor string) EventContext {
	return EventContext{ActingUserID: actor, TeamID: testTeam}
}

// tenant creates an intervention on a lot: building and lot principals get
// personal notifications, the third manager a team one.
func TestNotifyInterventionCreated_TenantOnLot(t *testing.T) {
	f := newFixture(t)
	created := f.svc.NotifyInterventionCreated(context.Background(), f.intervention(), ec("tn-1"))

	require.Len(t, created, 3)
	got := byUser(created)
	for _, id := range []string{"m-1", "m-2"} {
		n := got[id]
		require.NotNil(t, n, id)
		assert.True(t, n.IsPersonal, id)
		assert.Equal(t, domain.PriorityHigh, n.Priority)
		assert.Equal(t, "New intervention assigned to you", n.Title)
	}
	assert.False(t, got["m-3"].IsPersonal)
	assert.Equal(t, domain.PriorityNormal, got["m-3"].Priority)
	assert.Equal(t, "New intervention", got["m-3"].Title)
	_, tenantNotified := got["tn-1"]
	assert.False(t, tenantNotified)

	n := got["m-2"]
	assert.Equal(t, testTeam, n.TeamID)
	assert.Equal(t, "tn-1", n.CreatedBy.String)
	assert.Equal(t, domain.NotificationTypeIntervention, n.Type)
	assert.Equal(t, "intervention", n.RelatedEntityType.String)
	assert.Equal(t, "i-1", n.RelatedEntityID.String)
	assert.Contains(t, n.Message, "principal")
	meta, ok := n.Metadata.(*domain.InterventionMetadata)
	require.True(t, ok)
	assert.Equal(t, string(ReasonLotPrincipal), meta.Reason)
	assert.Equal(t, "INT-001", meta.Reference)

	assert.Equal(t, 3, f.pub.count())
	unread, err := f.svc.CountUnread(context.Background(), "m-1", testTeam)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestNotifyInterventionCreated_Urgency(t *testing.T) {
	cases := []struct {
		urgency  domain.Urgency
		personal domain.Priority
		team     domain.Priority
	}{
		{domain.UrgencyLow, domain.PriorityHigh, domain.PriorityNormal},
		{domain.UrgencyHigh, domain.PriorityUrgent, domain.PriorityHigh},
		{domain.UrgencyUrgent, domain.PriorityUrgent, domain.PriorityUrgent},
	}
	for _, tc := range cases {
		t.Run(string(tc.urgency), func(t *testing.T) {
			f := newFixture(t)
			it := f.intervention()
			it.Urgency = tc.urgency
			got := byUser(f.svc.NotifyInterventionCreated(context.Background(), it, ec("tn-1")))
			assert.Equal(t, tc.personal, got["m-1"].Priority)
			assert.Equal(t, tc.team, got["m-3"].Priority)
		})
	}
}

func TestNotifyInterventionCreated_ExplicitManager(t *testing.T) {
	f := newFixture(t)
	it := f.intervention()
	it.ManagerID = sql.NullString{String: "m-3", Valid: true}

	got := byUser(f.svc.NotifyInterventionCreated(context.Background(), it, ec("tn-1")))
	require.Len(t, got, 3)
	assert.True(t, got["m-3"].IsPersonal)
	assert.Equal(t, string(ReasonExplicit), got["m-3"].Metadata.(*domain.InterventionMetadata).Reason)
}

// status change made by the tenant: managers only, the tenant branch does not
// notify the actor.
func TestNotifyInterventionStatusChange_ClosedByTenant(t *testing.T) {
	f := newFixture(t)
	it := f.intervention()
	it.Status = domain.StatusClosedByTenant

	created := f.svc.NotifyInterventionStatusChange(context.Background(), it, domain.StatusInProgress, ec("tn-1"))
	require.Len(t, created, 3)
	got := byUser(created)
	assert.True(t, got["m-1"].IsPersonal)
	assert.True(t, got["m-2"].IsPersonal)
	assert.False(t, got["m-3"].IsPersonal)
	for _, n := range created {
		assert.Equal(t, domain.PriorityHigh, n.Priority, n.UserID)
		assert.Equal(t, "Intervention closed", n.Title)
		assert.Equal(t, domain.NotificationTypeStatusChange, n.Type)
		meta := n.Metadata.(*domain.StatusChangeMetadata)
		assert.Equal(t, "in_progress", meta.OldStatus)
		assert.Equal(t, "closed_by_tenant", meta.NewStatus)
	}
	assert.Contains(t, got["m-3"].Message, `"In progress"`)
	assert.Contains(t, got["m-3"].Message, `"Closed by tenant"`)
}

func TestNotifyInterventionStatusChange_TenantBranch(t *testing.T) {
	f := newFixture(t)
	it := f.intervention()
	it.Status = domain.StatusScheduled

	created := f.svc.NotifyInterventionStatusChange(context.Background(), it, domain.StatusPlanning, ec("m-3"))
	got := byUser(created)
	require.Len(t, got, 3)
	_, actorNotified := got["m-3"]
	assert.False(t, actorNotified)

	tenant := got["tn-1"]
	require.NotNil(t, tenant)
	assert.True(t, tenant.IsPersonal)
	assert.Equal(t, "Your request was updated", tenant.Title)
	assert.Contains(t, tenant.Message, `"Scheduled"`)
	assert.Equal(t, domain.PriorityNormal, tenant.Priority)

	assert.Equal(t, domain.PriorityNormal, got["m-1"].Priority)
	assert.Equal(t, "Intervention updated", got["m-1"].Title)
}

func TestNotifyInterventionStatusChange_UnknownStatus(t *testing.T) {
	f := newFixture(t)
	it := f.intervention()
	it.Status = domain.InterventionStatus("on_hold")

	created := f.svc.NotifyInterventionStatusChange(context.Background(), it, domain.StatusScheduled, ec("tn-1"))
	require.Len(t, created, 3)
	for _, n := range created {
		assert.Equal(t, "Intervention status changed", n.Title)
	}
}

func TestNotifyInterventionStatusChange_Approval(t *testing.T) {
	f := newFixture(t)
	it := f.intervention()
	it.Status = domain.StatusApproved

	got := byUser(f.svc.NotifyInterventionStatusChange(context.Background(), it, domain.StatusRequested, ec("m-1")))
	assert.Equal(t, domain.PriorityHigh, got["m-3"].Priority)
	assert.Equal(t, "Intervention approved", got["m-2"].Title)
	assert.Equal(t, domain.PriorityHigh, got["tn-1"].Priority)
}

// the only manager deletes their own building: nobody to notify.
func TestNotifyBuildingDeleted_BySoleManager(t *testing.T) {
	f := newFixture(t)
	f.mem.AddTeamMember("t-solo", "m-solo", domain.RoleManager)
	f.mem.AddLink(repository.LinkRow{Table: repository.BuildingContacts, EntityID: "b-solo", UserID: "m-solo", IsPrimary: true})

	created := f.svc.NotifyBuildingDeleted(context.Background(),
		&domain.Building{BuildingID: "b-solo", TeamID: "t-solo", Name: "Solo"},
		EventContext{ActingUserID: "m-solo", TeamID: "t-solo"})
	assert.NotNil(t, created)
	assert.Empty(t, created)
	assert.Zero(t, f.pub.count())
}

func TestNotifyBuilding_Events(t *testing.T) {
	f := newFixture(t)
	b := &domain.Building{BuildingID: testBuilding, TeamID: testTeam, Name: "Les Tilleuls"}
	ctx := context.Background()

	got := byUser(f.svc.NotifyBuildingCreated(ctx, b, ec("m-3")))
	require.Len(t, got, 2)
	assert.True(t, got["m-1"].IsPersonal)
	assert.Equal(t, domain.PriorityNormal, got["m-1"].Priority)
	assert.Equal(t, domain.PriorityLow, got["m-2"].Priority)
	assert.Equal(t, "Building created", got["m-1"].Title)
	assert.Equal(t, domain.NotificationTypeSystem, got["m-1"].Type)

	got = byUser(f.svc.NotifyBuildingUpdated(ctx, b, ec("m-3")))
	assert.Equal(t, "Building updated", got["m-2"].Title)

	got = byUser(f.svc.NotifyBuildingDeleted(ctx, b, ec("m-3")))
	assert.Equal(t, domain.PriorityHigh, got["m-1"].Priority)
	assert.Equal(t, domain.PriorityNormal, got["m-2"].Priority)
	meta := got["m-1"].Metadata.(*domain.BuildingMetadata)
	assert.Equal(t, "deleted", meta.Action)
	assert.Equal(t, string(ReasonBuildingManager), meta.Reason)
}

func TestNotifyLot_Events(t *testing.T) {
	f := newFixture(t)
	f.mem.AddLink(repository.LinkRow{Table: repository.LotContacts, EntityID: testLot, UserID: "m-3", ContactType: domain.ContactTypeManager})
	l := &domain.Lot{LotID: testLot, TeamID: testTeam, BuildingID: sql.NullString{String: testBuilding, Valid: true}, Reference: "A-101"}
	ctx := context.Background()

	got := byUser(f.svc.NotifyLotUpdated(ctx, l, ec("tn-1")))
	require.Len(t, got, 3)
	assert.Contains(t, got["m-1"].Message, "building you manage")
	assert.Contains(t, got["m-2"].Message, "principal manager")
	assert.Contains(t, got["m-3"].Message, "co-manage")

	assert.Len(t, f.svc.NotifyLotCreated(ctx, l, ec("tn-1")), 3)
	deleted := byUser(f.svc.NotifyLotDeleted(ctx, l, ec("m-1")))
	require.Len(t, deleted, 2)
	assert.Equal(t, domain.PriorityHigh, deleted["m-2"].Priority)
	assert.Equal(t, "Lot deleted", deleted["m-2"].Title)
}

// contact linked to a lot: the lot's building principal is personal, other
// managers get team notifications.
func TestNotifyContactUpdated_ThroughLot(t *testing.T) {
	f := newFixture(t)
	f.mem.AddUser("c-user", domain.RoleTenant)
	f.mem.AddLink(repository.LinkRow{Table: repository.LotContacts, EntityID: testLot, UserID: "c-user", ContactType: domain.ContactTypeTenant})
	c := &domain.Contact{ContactID: "c-1", TeamID: testTeam, UserID: sql.NullString{String: "c-user", Valid: true},
		ContactType: domain.ContactTypeTenant, Name: "Jane Roe"}

	created := f.svc.NotifyContactUpdated(context.Background(), c, ec("u-x"))
	require.Len(t, created, 3)
	got := byUser(created)
	assert.True(t, got["m-1"].IsPersonal)
	assert.Equal(t, string(ReasonBuildingManager), got["m-1"].Metadata.(*domain.ContactMetadata).Reason)
	assert.False(t, got["m-2"].IsPersonal)
	assert.False(t, got["m-3"].IsPersonal)
	assert.Contains(t, got["m-1"].Message, "Jane Roe")
}

func TestNotifyContact_CreateInvalidatesTeamCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := &domain.Contact{ContactID: "c-2", TeamID: testTeam, Name: "New Manager"}

	assert.Len(t, f.svc.NotifyContactUpdated(ctx, c, ec("m-1")), 2)
	f.mem.AddTeamMember(testTeam, "m-4", domain.RoleManager)
	// updates keep the cached membership
	assert.Len(t, f.svc.NotifyContactUpdated(ctx, c, ec("m-1")), 2)
	assert.Len(t, f.svc.NotifyContactCreated(ctx, c, ec("m-1")), 3)
	assert.Len(t, f.svc.NotifyContactDeleted(ctx, c, ec("m-1")), 3)
}

func TestNotifyContact_DuplicateBuildingPrimaryReported(t *testing.T) {
	f := newFixture(t)
	f.mem.AddLink(repository.LinkRow{Table: repository.BuildingContacts, EntityID: testBuilding, UserID: "m-3", IsPrimary: true,
		CreatedAt: f.now.Add(1)})
	f.mem.AddLink(repository.LinkRow{Table: repository.BuildingContacts, EntityID: testBuilding, UserID: "c-user"})
	c := &domain.Contact{ContactID: "c-1", TeamID: testTeam, UserID: sql.NullString{String: "c-user", Valid: true}}

	got := byUser(f.svc.NotifyContactUpdated(context.Background(), c, ec("u-x")))
	assert.True(t, got["m-1"].IsPersonal)
	assert.False(t, got["m-3"].IsPersonal)

	logs, total, err := f.activity.GetActivityLogs(context.Background(),
		repository.ActivityLogFilters{TeamID: testTeam, ActionTypes: []string{"data_quality"}}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, domain.EntityBuilding, logs[0].EntityType)
	assert.Equal(t, "u-x", logs[0].UserID)
}

func TestFanOut_MissingTeamIsSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newFixtureWithLogger(t, zap.New(core))

	created := f.svc.NotifyInterventionCreated(context.Background(), f.intervention(), EventContext{ActingUserID: "tn-1"})
	assert.NotNil(t, created)
	assert.Empty(t, created)

	skipped := logs.FilterMessage("notification fan-out skipped").All()
	require.Len(t, skipped, 1)
	assert.Contains(t, skipped[0].ContextMap()["error"], "team_id")
}

func TestFanOut_NilEntities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.Empty(t, f.svc.NotifyInterventionCreated(ctx, nil, ec("m-1")))
	assert.Empty(t, f.svc.NotifyInterventionStatusChange(ctx, nil, domain.StatusRequested, ec("m-1")))
	assert.Empty(t, f.svc.NotifyBuildingCreated(ctx, nil, ec("m-1")))
	assert.Empty(t, f.svc.NotifyLotCreated(ctx, nil, ec("m-1")))
	assert.Empty(t, f.svc.NotifyContactCreated(ctx, nil, ec("m-1")))
}

// every notify method survives a data layer that always fails.
func TestFanOut_NeverFailsWhenStoreIsDown(t *testing.T) {
	down := errors.New("connection refused")
	graph := new(MockGraphRepository)
	graph.On("QueryActiveLinks", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, down)
	graph.On("GetTeamMembers", mock.Anything, mock.Anything).Return(nil, down)
	graph.On("GetLot", mock.Anything, mock.Anything).Return(nil, down)
	graph.On("GetIntervention", mock.Anything, mock.Anything).Return(nil, down)
	notifications := new(MockNotificationsRepository)
	notifications.On("CreateNotification", mock.Anything, mock.Anything).Return(nil, down)

	reader := NewOwnershipReader(graph, nil, 0, zap.NewNop())
	svc := NewNotificationService(notifications, reader, nil, nil, 0, zap.NewNop())

	ctx := context.Background()
	it := &domain.Intervention{InterventionID: "i-1", TeamID: testTeam, Status: domain.StatusApproved,
		LotID: sql.NullString{String: testLot, Valid: true}, TenantID: sql.NullString{String: "tn-1", Valid: true}}
	b := &domain.Building{BuildingID: testBuilding, TeamID: testTeam}
	l := &domain.Lot{LotID: testLot, TeamID: testTeam}
	c := &domain.Contact{ContactID: "c-1", TeamID: testTeam}
	e := ec("m-1")

	results := [][]*domain.Notification{
		svc.NotifyInterventionCreated(ctx, it, e),
		svc.NotifyInterventionStatusChange(ctx, it, domain.StatusRequested, e),
		svc.NotifyBuildingCreated(ctx, b, e),
		svc.NotifyBuildingUpdated(ctx, b, e),
		svc.NotifyBuildingDeleted(ctx, b, e),
		svc.NotifyLotCreated(ctx, l, e),
		svc.NotifyLotUpdated(ctx, l, e),
		svc.NotifyLotDeleted(ctx, l, e),
		svc.NotifyContactCreated(ctx, c, e),
		svc.NotifyContactUpdated(ctx, c, e),
		svc.NotifyContactDeleted(ctx, c, e),
	}
	for i, r := range results {
		assert.NotNil(t, r, "call %d", i)
		assert.Empty(t, r, "call %d", i)
	}
	// only the tenant branch reaches the insert, which fails too
	notifications.AssertNumberOfCalls(t, "CreateNotification", 1)
}

func TestFanOut_FailedWritesAreSkipped(t *testing.T) {
	f := newFixture(t)
	notifications := new(MockNotificationsRepository)
	notifications.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.UserID == "m-2"
	})).Return(nil, errors.New("insert failed"))
	notifications.On("CreateNotification", mock.Anything, mock.Anything).Return(&domain.Notification{NotificationID: "n-ok", UserID: "ok"}, nil)

	svc := NewNotificationService(notifications, f.reader, nil, nil, 2, zap.NewNop())
	created := svc.NotifyInterventionCreated(context.Background(), f.intervention(), ec("tn-1"))

	assert.Len(t, created, 2)
	notifications.AssertNumberOfCalls(t, "CreateNotification", 3)
}

// panicPublisher blows up on every publish.
type panicPublisher struct{}

func (panicPublisher) Publish(context.Context, *domain.Notification) error { panic("boom") }
func (panicPublisher) Close() error                                        { return nil }

func TestFanOut_PanicInWriteIsContained(t *testing.T) {
	f := newFixture(t)
	svc := NewNotificationService(f.mem, f.reader, nil, panicPublisher{}, 0, zap.NewNop())

	created := svc.NotifyInterventionCreated(context.Background(), f.intervention(), ec("tn-1"))
	assert.NotNil(t, created)
	// rows were persisted before the publisher panicked
	unread, err := svc.CountUnread(context.Background(), "m-3", testTeam)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestFanOut_PublishErrorDoesNotDropRow(t *testing.T) {
	f := newFixture(t)
	pub := &failingPublisher{}
	svc := NewNotificationService(f.mem, f.reader, nil, pub, 0, zap.NewNop())

	assert.Len(t, svc.NotifyInterventionCreated(context.Background(), f.intervention(), ec("tn-1")), 3)
}

type failingPublisher struct{}

func (*failingPublisher) Publish(context.Context, *domain.Notification) error {
	return errors.New("broker unavailable")
}
func (*failingPublisher) Close() error { return nil }

func TestInbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.NotifyInterventionCreated(ctx, f.intervention(), ec("tn-1"))
	f.svc.NotifyBuildingUpdated(ctx, &domain.Building{BuildingID: testBuilding, TeamID: testTeam}, ec("tn-1"))

	items, total, err := f.svc.ListNotifications(ctx, "m-1", repository.NotificationFilters{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "Building updated", items[0].Title)

	require.NoError(t, f.svc.MarkRead(ctx, "m-1", items[0].NotificationID))
	err = f.svc.MarkRead(ctx, "m-2", items[0].NotificationID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	n, err := f.svc.MarkAllRead(ctx, "m-1", testTeam)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	unread, err := f.svc.CountUnread(ctx, "m-1", "")
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestInbox_ErrorsAreWrapped(t *testing.T) {
	notifications := new(MockNotificationsRepository)
	down := errors.New("down")
	notifications.On("CountUnread", mock.Anything, "u", "").Return(0, down)
	notifications.On("ListNotifications", mock.Anything, "u", mock.Anything, 1, 20).Return(nil, 0, down)

	svc := NewNotificationService(notifications, NewOwnershipReader(repository.NewMemoryStore(), nil, 0, zap.NewNop()), nil, nil, 0, zap.NewNop())
	_, err := svc.CountUnread(context.Background(), "u", "")
	assert.ErrorIs(t, err, down)
	_, _, err = svc.ListNotifications(context.Background(), "u", repository.NotificationFilters{}, 1, 20)
	assert.ErrorIs(t, err, down)
	notifications.AssertExpectations(t)
}
