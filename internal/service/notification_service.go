package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aumugisha-umu/seido-sub001/internal/domain"
	"github.com/aumugisha-umu/seido-sub001/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// EventContext who triggered an event, and in which team.
type EventContext struct {
	ActingUserID string `json:"acting_user_id"`
	TeamID       string `json:"team_id"`
}

// NotificationService fan-out engine: one method per domain event. Methods
// never return errors and never panic; a failure yields fewer (or zero)
// notifications and a log line.
type NotificationService interface {
	NotifyInterventionCreated(ctx context.Context, it *domain.Intervention, ec EventContext) []*domain.Notification
	NotifyInterventionStatusChange(ctx context.Context, it *domain.Intervention, oldStatus domain.InterventionStatus, ec EventContext) []*domain.Notification

	NotifyBuildingCreated(ctx context.Context, b *domain.Building, ec EventContext) []*domain.Notification
	NotifyBuildingUpdated(ctx context.Context, b *domain.Building, ec EventContext) []*domain.Notification
	NotifyBuildingDeleted(ctx context.Context, b *domain.Building, ec EventContext) []*domain.Notification

	NotifyLotCreated(ctx context.Context, lot *domain.Lot, ec EventContext) []*domain.Notification
	NotifyLotUpdated(ctx context.Context, lot *domain.Lot, ec EventContext) []*domain.Notification
	NotifyLotDeleted(ctx context.Context, lot *domain.Lot, ec EventContext) []*domain.Notification

	NotifyContactCreated(ctx context.Context, c *domain.Contact, ec EventContext) []*domain.Notification
	NotifyContactUpdated(ctx context.Context, c *domain.Contact, ec EventContext) []*domain.Notification
	NotifyContactDeleted(ctx context.Context, c *domain.Contact, ec EventContext) []*domain.Notification

	// inbox
	ListNotifications(ctx context.Context, userID string, filters repository.NotificationFilters, page, size int) ([]*domain.Notification, int, error)
	CountUnread(ctx context.Context, userID, teamID string) (int, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID, teamID string) (int, error)
}

type notificationService struct {
	notifications repository.NotificationsRepository
	reader        *OwnershipReader
	classifier    *ResponsibilityClassifier
	reporter      DataQualityReporter
	publisher     Publisher
	concurrency   int
	logger        *zap.Logger
}

// NewNotificationService publisher and reporter may be nil.
func NewNotificationService(
	notifications repository.NotificationsRepository,
	reader *OwnershipReader,
	reporter DataQualityReporter,
	publisher Publisher,
	concurrency int,
	logger *zap.Logger,
) NotificationService {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	return &notificationService{
		notifications: notifications,
		reader:        reader,
		classifier:    NewResponsibilityClassifier(reader, reporter, logger),
		reporter:      reporter,
		publisher:     publisher,
		concurrency:   concurrency,
		logger:        logger,
	}
}

// draft a notification before the recipient is filled in.
type draft func(r Recipient) *domain.Notification

// fanOut classifies recipients and writes one notification each. extra
// recipients (the tenant branch) are appended after the managers.
func (s *notificationService) fanOut(ctx context.Context, kind EventKind, entityID string, ec EventContext,
	in ClassifyInput, build draft, extra ...Recipient,
) (out []*domain.Notification) {
	log := s.logger.With(
		zap.String("event", string(kind)),
		zap.String("entity_id", entityID),
		zap.String("team_id", ec.TeamID),
		zap.String("actor", ec.ActingUserID),
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error("notification fan-out panicked", zap.Any("panic", r))
			out = []*domain.Notification{}
		}
	}()

	if ec.TeamID == "" {
		log.Warn("notification fan-out skipped", zap.Error(&domain.ValidationError{Field: "team_id", Message: "is required"}))
		return []*domain.Notification{}
	}

	in.TeamID = ec.TeamID
	in.ActorID = ec.ActingUserID
	recipients, err := s.classifier.Classify(ctx, in)
	if err != nil {
		log.Error("failed to resolve recipients", zap.Error(err))
		recipients = nil
	}
	for _, r := range extra {
		if r.UserID == "" || r.UserID == ec.ActingUserID || containsRecipient(recipients, r.UserID) {
			continue
		}
		recipients = append(recipients, r)
	}
	if len(recipients) == 0 {
		log.Debug("no recipients")
		return []*domain.Notification{}
	}

	created := make([]*domain.Notification, len(recipients))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, r := range recipients {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					log.Error("notification write panicked", zap.String("user_id", r.UserID), zap.Any("panic", p))
				}
			}()
			n := build(r)
			n.UserID = r.UserID
			n.TeamID = ec.TeamID
			n.IsPersonal = r.IsPersonal
			if ec.ActingUserID != "" {
				n.CreatedBy = sql.NullString{String: ec.ActingUserID, Valid: true}
			}
			row, err := s.notifications.CreateNotification(ctx, n)
			if err != nil {
				log.Warn("failed to create notification", zap.String("user_id", r.UserID), zap.Error(err))
				return nil
			}
			created[i] = row
			if err := s.publisher.Publish(ctx, row); err != nil {
				log.Warn("failed to publish notification",
					zap.String("notification_id", row.NotificationID),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	out = make([]*domain.Notification, 0, len(created))
	for _, n := range created {
		if n != nil {
			out = append(out, n)
		}
	}
	log.Info("notifications created",
		zap.Int("recipients", len(recipients)),
		zap.Int("created", len(out)),
	)
	return out
}

func containsRecipient(rs []Recipient, userID string) bool {
	for _, r := range rs {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

func related(t domain.EntityType, id string) (sql.NullString, sql.NullString) {
	return sql.NullString{String: string(t), Valid: true}, sql.NullString{String: id, Valid: id != ""}
}

// ---- interventions ----

func (s *notificationService) NotifyInterventionCreated(ctx context.Context, it *domain.Intervention, ec EventContext) []*domain.Notification {
	if it == nil {
		return []*domain.Notification{}
	}
	in := ClassifyInput{
		EntityType: domain.EntityIntervention,
		EntityID:   it.InterventionID,
		BuildingID: it.BuildingID.String,
		LotID:      it.LotID.String,
		Explicit: []ExplicitResponsible{
			{UserID: it.ManagerID.String},
			{UserID: it.AssignedContactID.String},
		},
	}
	return s.fanOut(ctx, EventInterventionCreated, it.InterventionID, ec, in, func(r Recipient) *domain.Notification {
		msg := interventionCreatedMessage(it, r)
		relType, relID := related(domain.EntityIntervention, it.InterventionID)
		return &domain.Notification{
			Type:     domain.NotificationTypeIntervention,
			Priority: interventionCreatedPriority(it.Urgency, r.IsPersonal),
			Title:    msg.Title,
			Message:  msg.Message,
			Metadata: &domain.InterventionMetadata{
				InterventionID: it.InterventionID,
				Reference:      it.Reference,
				Status:         string(it.Status),
				Urgency:        it.Urgency,
				LotID:          it.LotID.String,
				BuildingID:     it.BuildingID.String,
				Reason:         string(r.Reason),
			},
			RelatedEntityType: relType,
			RelatedEntityID:   relID,
		}
	})
}

// NotifyInterventionStatusChange does not check that the transition is legal.
// The intervention's tenant gets a personal notification of its own unless
// they made the change.
func (s *notificationService) NotifyInterventionStatusChange(ctx context.Context, it *domain.Intervention, oldStatus domain.InterventionStatus, ec EventContext) []*domain.Notification {
	if it == nil {
		return []*domain.Notification{}
	}
	from, to := oldStatus, it.Status
	in := ClassifyInput{
		EntityType: domain.EntityIntervention,
		EntityID:   it.InterventionID,
		BuildingID: it.BuildingID.String,
		LotID:      it.LotID.String,
		Explicit: []ExplicitResponsible{
			{UserID: it.ManagerID.String},
			{UserID: it.AssignedContactID.String},
		},
	}

	var extra []Recipient
	tenantID := it.TenantID.String
	if tenantID != "" {
		extra = append(extra, Recipient{UserID: tenantID, Role: domain.RoleTenant, IsPersonal: true})
	}

	return s.fanOut(ctx, EventInterventionStatusChanged, it.InterventionID, ec, in, func(r Recipient) *domain.Notification {
		msg := statusChangeMessage(it, from, to, r)
		if r.UserID == tenantID && r.Role == domain.RoleTenant {
			msg = tenantStatusMessage(it, from, to)
		}
		relType, relID := related(domain.EntityIntervention, it.InterventionID)
		return &domain.Notification{
			Type:     domain.NotificationTypeStatusChange,
			Priority: statusChangePriority(to, r.IsPersonal),
			Title:    msg.Title,
			Message:  msg.Message,
			Metadata: &domain.StatusChangeMetadata{
				InterventionID: it.InterventionID,
				Reference:      it.Reference,
				OldStatus:      string(from),
				NewStatus:      string(to),
				Reason:         string(r.Reason),
			},
			RelatedEntityType: relType,
			RelatedEntityID:   relID,
		}
	}, extra...)
}

// ---- buildings ----

func (s *notificationService) notifyBuilding(ctx context.Context, kind EventKind, action entityAction, b *domain.Building, ec EventContext) []*domain.Notification {
	if b == nil {
		return []*domain.Notification{}
	}
	in := ClassifyInput{
		EntityType: domain.EntityBuilding,
		EntityID:   b.BuildingID,
		BuildingID: b.BuildingID,
	}
	return s.fanOut(ctx, kind, b.BuildingID, ec, in, func(r Recipient) *domain.Notification {
		msg := buildingMessage(action, b, r)
		relType, relID := related(domain.EntityBuilding, b.BuildingID)
		return &domain.Notification{
			Type:     domain.NotificationTypeSystem,
			Priority: entityPriority(action, r.IsPersonal),
			Title:    msg.Title,
			Message:  msg.Message,
			Metadata: &domain.BuildingMetadata{
				BuildingID:   b.BuildingID,
				BuildingName: b.Name,
				Action:       string(action),
				Reason:       string(r.Reason),
			},
			RelatedEntityType: relType,
			RelatedEntityID:   relID,
		}
	})
}

func (s *notificationService) NotifyBuildingCreated(ctx context.Context, b *domain.Building, ec EventContext) []*domain.Notification {
	return s.notifyBuilding(ctx, EventBuildingCreated, actionCreated, b, ec)
}

func (s *notificationService) NotifyBuildingUpdated(ctx context.Context, b *domain.Building, ec EventContext) []*domain.Notification {
	return s.notifyBuilding(ctx, EventBuildingUpdated, actionUpdated, b, ec)
}

func (s *notificationService) NotifyBuildingDeleted(ctx context.Context, b *domain.Building, ec EventContext) []*domain.Notification {
	return s.notifyBuilding(ctx, EventBuildingDeleted, actionDeleted, b, ec)
}

// ---- lots ----

func (s *notificationService) notifyLot(ctx context.Context, kind EventKind, action entityAction, lot *domain.Lot, ec EventContext) []*domain.Notification {
	if lot == nil {
		return []*domain.Notification{}
	}
	in := ClassifyInput{
		EntityType: domain.EntityLot,
		EntityID:   lot.LotID,
		BuildingID: lot.BuildingID.String,
		LotID:      lot.LotID,
	}
	return s.fanOut(ctx, kind, lot.LotID, ec, in, func(r Recipient) *domain.Notification {
		msg := lotMessage(action, lot, r)
		relType, relID := related(domain.EntityLot, lot.LotID)
		return &domain.Notification{
			Type:     domain.NotificationTypeSystem,
			Priority: entityPriority(action, r.IsPersonal),
			Title:    msg.Title,
			Message:  msg.Message,
			Metadata: &domain.LotMetadata{
				LotID:      lot.LotID,
				Reference:  lot.Reference,
				BuildingID: lot.BuildingID.String,
				Action:     string(action),
				Reason:     string(r.Reason),
			},
			RelatedEntityType: relType,
			RelatedEntityID:   relID,
		}
	})
}

func (s *notificationService) NotifyLotCreated(ctx context.Context, lot *domain.Lot, ec EventContext) []*domain.Notification {
	return s.notifyLot(ctx, EventLotCreated, actionCreated, lot, ec)
}

func (s *notificationService) NotifyLotUpdated(ctx context.Context, lot *domain.Lot, ec EventContext) []*domain.Notification {
	return s.notifyLot(ctx, EventLotUpdated, actionUpdated, lot, ec)
}

func (s *notificationService) NotifyLotDeleted(ctx context.Context, lot *domain.Lot, ec EventContext) []*domain.Notification {
	return s.notifyLot(ctx, EventLotDeleted, actionDeleted, lot, ec)
}

// ---- contacts ----

func (s *notificationService) notifyContact(ctx context.Context, kind EventKind, action entityAction, c *domain.Contact, ec EventContext) (out []*domain.Notification) {
	if c == nil {
		return []*domain.Notification{}
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("contact fan-out panicked", zap.String("contact_id", c.ContactID), zap.Any("panic", r))
			out = []*domain.Notification{}
		}
	}()

	if action != actionUpdated {
		s.reader.InvalidateTeam(ctx, ec.TeamID)
	}

	var explicit []ExplicitResponsible
	primaries, err := s.reader.ContactDirectResponsibles(ctx, c.LinkedUserID(), ec.ActingUserID)
	if err != nil {
		s.logger.Error("failed to resolve contact responsibles",
			zap.String("event", string(kind)),
			zap.String("contact_id", c.ContactID),
			zap.Error(fmt.Errorf("contact direct responsibles: %w", err)),
		)
		return []*domain.Notification{}
	}
	for _, p := range primaries {
		if s.reporter != nil && len(p.Duplicates) > 0 && ec.TeamID != "" {
			s.reporter.ReportDuplicatePrimary(ctx, ec.TeamID, ec.ActingUserID, p)
		}
	}
	for _, id := range PrimaryUserIDs(primaries) {
		explicit = append(explicit, ExplicitResponsible{UserID: id, Reason: ReasonBuildingManager})
	}

	in := ClassifyInput{
		EntityType: domain.EntityContact,
		EntityID:   c.ContactID,
		Explicit:   explicit,
	}
	return s.fanOut(ctx, kind, c.ContactID, ec, in, func(r Recipient) *domain.Notification {
		msg := contactMessage(action, c, r)
		relType, relID := related(domain.EntityContact, c.ContactID)
		return &domain.Notification{
			Type:     domain.NotificationTypeSystem,
			Priority: entityPriority(action, r.IsPersonal),
			Title:    msg.Title,
			Message:  msg.Message,
			Metadata: &domain.ContactMetadata{
				ContactID:   c.ContactID,
				ContactName: c.Name,
				ContactType: c.ContactType,
				Action:      string(action),
				Reason:      string(r.Reason),
			},
			RelatedEntityType: relType,
			RelatedEntityID:   relID,
		}
	})
}

func (s *notificationService) NotifyContactCreated(ctx context.Context, c *domain.Contact, ec EventContext) []*domain.Notification {
	return s.notifyContact(ctx, EventContactCreated, actionCreated, c, ec)
}

func (s *notificationService) NotifyContactUpdated(ctx context.Context, c *domain.Contact, ec EventContext) []*domain.Notification {
	return s.notifyContact(ctx, EventContactUpdated, actionUpdated, c, ec)
}

func (s *notificationService) NotifyContactDeleted(ctx context.Context, c *domain.Contact, ec EventContext) []*domain.Notification {
	return s.notifyContact(ctx, EventContactDeleted, actionDeleted, c, ec)
}

// ---- inbox ----

func (s *notificationService) ListNotifications(ctx context.Context, userID string, filters repository.NotificationFilters, page, size int) ([]*domain.Notification, int, error) {
	items, total, err := s.notifications.ListNotifications(ctx, userID, filters, page, size)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return items, total, nil
}

func (s *notificationService) CountUnread(ctx context.Context, userID, teamID string) (int, error) {
	n, err := s.notifications.CountUnread(ctx, userID, teamID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	if err := s.notifications.MarkRead(ctx, userID, notificationID); err != nil {
		return fmt.Errorf("mark notification %s read: %w", notificationID, err)
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID, teamID string) (int, error) {
	n, err := s.notifications.MarkAllRead(ctx, userID, teamID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return n, nil
}
