package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aumugisha-umu/seido-sub001/internal/domain"
	"github.com/aumugisha-umu/seido-sub001/internal/repository"
	"github.com/aumugisha-umu/seido-sub001/internal/service"

	"go.uber.org/zap"
)

// EventHandler intake of domain events emitted after a mutation succeeded.
// POST /api/v1/events/{interventions|buildings|lots|contacts}/{event}
type EventHandler struct {
	notifications service.NotificationService
	activity      service.ActivityLogger
	graph         repository.GraphRepository // optional: loads entities sent by id only
	logger        *zap.Logger
}

func NewEventHandler(
	notifications service.NotificationService,
	activity service.ActivityLogger,
	graph repository.GraphRepository,
	logger *zap.Logger,
) *EventHandler {
	return &EventHandler{
		notifications: notifications,
		activity:      activity,
		graph:         graph,
		logger:        logger,
	}
}

func ns(s string) sql.NullString { return sql.NullString{String: s, Valid: s != ""} }

type interventionPayload struct {
	ID                string `json:"id"`
	TeamID            string `json:"team_id"`
	LotID             string `json:"lot_id"`
	BuildingID        string `json:"building_id"`
	Reference         string `json:"reference"`
	Title             string `json:"title"`
	Status            string `json:"status"`
	Urgency           string `json:"urgency"`
	ManagerID         string `json:"manager_id"`
	AssignedContactID string `json:"assigned_contact_id"`
	TenantID          string `json:"tenant_id"`
}

func (p interventionPayload) toDomain() *domain.Intervention {
	status, _ := domain.ParseInterventionStatus(p.Status)
	return &domain.Intervention{
		InterventionID:    p.ID,
		TeamID:            p.TeamID,
		LotID:             ns(p.LotID),
		BuildingID:        ns(p.BuildingID),
		Reference:         p.Reference,
		Title:             p.Title,
		Status:            status,
		Urgency:           domain.ParseUrgency(p.Urgency),
		ManagerID:         ns(p.ManagerID),
		AssignedContactID: ns(p.AssignedContactID),
		TenantID:          ns(p.TenantID),
	}
}

type buildingPayload struct {
	ID      string `json:"id"`
	TeamID  string `json:"team_id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
}

type lotPayload struct {
	ID         string `json:"id"`
	TeamID     string `json:"team_id"`
	BuildingID string `json:"building_id"`
	Reference  string `json:"reference"`
	Category   string `json:"category"`
}

type contactPayload struct {
	ID          string `json:"id"`
	TeamID      string `json:"team_id"`
	UserID      string `json:"user_id"`
	ContactType string `json:"contact_type"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Company     string `json:"company"`
}

type eventRequest struct {
	Intervention *interventionPayload `json:"intervention"`
	OldStatus    string               `json:"old_status"`
	Building     *buildingPayload     `json:"building"`
	Lot          *lotPayload          `json:"lot"`
	Contact      *contactPayload      `json:"contact"`
}

// eventSubject what the activity row describes.
type eventSubject struct {
	entityType domain.EntityType
	entityID   string
	entityName string
	teamID     string
}

func (h *EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/events/"), "/"), "/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	entity, event := parts[0], parts[1]

	var req eventRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid json body"))
		return
	}

	ctx := r.Context()
	var (
		kind    service.EventKind
		subject eventSubject
		created []*domain.Notification
		err     error
	)
	switch entity {
	case "interventions":
		kind, subject, created, err = h.handleIntervention(ctx, r, event, req)
	case "buildings":
		kind, subject, created, err = h.handleBuilding(ctx, r, event, req)
	case "lots":
		kind, subject, created, err = h.handleLot(ctx, r, event, req)
	case "contacts":
		kind, subject, created, err = h.handleContact(ctx, r, event, req)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if errors.Is(err, errUnknownEvent) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Warn("event rejected",
			zap.String("entity", entity),
			zap.String("event", event),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	ec := eventContextFromReq(r, subject.teamID)
	h.activity.Log(ctx, service.LogParams{
		TeamID:      ec.TeamID,
		UserID:      ec.ActingUserID,
		Action:      domain.ActionNotify,
		EntityType:  subject.entityType,
		EntityID:    subject.entityID,
		EntityName:  subject.entityName,
		Description: fmt.Sprintf("%s: %d notification(s) sent", kind, len(created)),
		Metadata: map[string]any{
			"event":         string(kind),
			"notifications": len(created),
		},
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})

	items := make([]map[string]any, 0, len(created))
	for _, n := range created {
		items = append(items, n.ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"event":         string(kind),
		"count":         len(created),
		"notifications": items,
	}))
}

var errUnknownEvent = errors.New("unknown event")

func (h *EventHandler) handleIntervention(ctx context.Context, r *http.Request, event string, req eventRequest) (service.EventKind, eventSubject, []*domain.Notification, error) {
	if event != "created" && event != "status-changed" {
		return "", eventSubject{}, nil, errUnknownEvent
	}
	if req.Intervention == nil || req.Intervention.ID == "" {
		return "", eventSubject{}, nil, errors.New("intervention.id is required")
	}
	it := req.Intervention.toDomain()
	if req.Intervention.TeamID == "" && h.graph != nil {
		stored, err := h.graph.GetIntervention(ctx, req.Intervention.ID)
		if err != nil {
			return "", eventSubject{}, nil, fmt.Errorf("load intervention: %w", err)
		}
		if req.Intervention.Status != "" {
			stored.Status = it.Status
		}
		it = stored
	}
	subject := eventSubject{
		entityType: domain.EntityIntervention,
		entityID:   it.InterventionID,
		entityName: it.DisplayName(),
		teamID:     it.TeamID,
	}
	ec := eventContextFromReq(r, it.TeamID)

	if event == "created" {
		return service.EventInterventionCreated, subject, h.notifications.NotifyInterventionCreated(ctx, it, ec), nil
	}
	if req.OldStatus == "" {
		return "", eventSubject{}, nil, errors.New("old_status is required")
	}
	old, _ := domain.ParseInterventionStatus(req.OldStatus)
	return service.EventInterventionStatusChanged, subject, h.notifications.NotifyInterventionStatusChange(ctx, it, old, ec), nil
}

func (h *EventHandler) handleBuilding(ctx context.Context, r *http.Request, event string, req eventRequest) (service.EventKind, eventSubject, []*domain.Notification, error) {
	if req.Building == nil || req.Building.ID == "" {
		if !isCRUDEvent(event) {
			return "", eventSubject{}, nil, errUnknownEvent
		}
		return "", eventSubject{}, nil, errors.New("building.id is required")
	}
	b := &domain.Building{
		BuildingID: req.Building.ID,
		TeamID:     req.Building.TeamID,
		Name:       req.Building.Name,
		Address:    ns(req.Building.Address),
		City:       ns(req.Building.City),
	}
	subject := eventSubject{entityType: domain.EntityBuilding, entityID: b.BuildingID, entityName: b.DisplayName(), teamID: b.TeamID}
	ec := eventContextFromReq(r, b.TeamID)
	switch event {
	case "created":
		return service.EventBuildingCreated, subject, h.notifications.NotifyBuildingCreated(ctx, b, ec), nil
	case "updated":
		return service.EventBuildingUpdated, subject, h.notifications.NotifyBuildingUpdated(ctx, b, ec), nil
	case "deleted":
		return service.EventBuildingDeleted, subject, h.notifications.NotifyBuildingDeleted(ctx, b, ec), nil
	}
	return "", eventSubject{}, nil, errUnknownEvent
}

func (h *EventHandler) handleLot(ctx context.Context, r *http.Request, event string, req eventRequest) (service.EventKind, eventSubject, []*domain.Notification, error) {
	if req.Lot == nil || req.Lot.ID == "" {
		if !isCRUDEvent(event) {
			return "", eventSubject{}, nil, errUnknownEvent
		}
		return "", eventSubject{}, nil, errors.New("lot.id is required")
	}
	lot := &domain.Lot{
		LotID:      req.Lot.ID,
		TeamID:     req.Lot.TeamID,
		BuildingID: ns(req.Lot.BuildingID),
		Reference:  req.Lot.Reference,
		Category:   ns(req.Lot.Category),
	}
	if req.Lot.TeamID == "" && h.graph != nil && event != "deleted" {
		stored, err := h.graph.GetLot(ctx, req.Lot.ID)
		if err != nil {
			return "", eventSubject{}, nil, fmt.Errorf("load lot: %w", err)
		}
		lot = stored
	}
	subject := eventSubject{entityType: domain.EntityLot, entityID: lot.LotID, entityName: lot.DisplayName(), teamID: lot.TeamID}
	ec := eventContextFromReq(r, lot.TeamID)
	switch event {
	case "created":
		return service.EventLotCreated, subject, h.notifications.NotifyLotCreated(ctx, lot, ec), nil
	case "updated":
		return service.EventLotUpdated, subject, h.notifications.NotifyLotUpdated(ctx, lot, ec), nil
	case "deleted":
		return service.EventLotDeleted, subject, h.notifications.NotifyLotDeleted(ctx, lot, ec), nil
	}
	return "", eventSubject{}, nil, errUnknownEvent
}

func (h *EventHandler) handleContact(ctx context.Context, r *http.Request, event string, req eventRequest) (service.EventKind, eventSubject, []*domain.Notification, error) {
	if req.Contact == nil || req.Contact.ID == "" {
		if !isCRUDEvent(event) {
			return "", eventSubject{}, nil, errUnknownEvent
		}
		return "", eventSubject{}, nil, errors.New("contact.id is required")
	}
	c := &domain.Contact{
		ContactID:   req.Contact.ID,
		TeamID:      req.Contact.TeamID,
		UserID:      ns(req.Contact.UserID),
		ContactType: domain.ParseContactType(req.Contact.ContactType),
		Name:        req.Contact.Name,
		Email:       ns(req.Contact.Email),
		Company:     ns(req.Contact.Company),
	}
	subject := eventSubject{entityType: domain.EntityContact, entityID: c.ContactID, entityName: c.DisplayName(), teamID: c.TeamID}
	ec := eventContextFromReq(r, c.TeamID)
	switch event {
	case "created":
		return service.EventContactCreated, subject, h.notifications.NotifyContactCreated(ctx, c, ec), nil
	case "updated":
		return service.EventContactUpdated, subject, h.notifications.NotifyContactUpdated(ctx, c, ec), nil
	case "deleted":
		return service.EventContactDeleted, subject, h.notifications.NotifyContactDeleted(ctx, c, ec), nil
	}
	return "", eventSubject{}, nil, errUnknownEvent
}

func isCRUDEvent(event string) bool {
	return event == "created" || event == "updated" || event == "deleted"
}
