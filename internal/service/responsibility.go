package service

import (
	"context"
	"fmt"

	"github.com/aumugisha-umu/seido-sub001/internal/domain"

	"go.uber.org/zap"
)

// ReasonTag records which rule made a manager directly responsible.
type ReasonTag string

const (
	ReasonLotPrincipal    ReasonTag = "lot_principal"
	ReasonLotAdditional   ReasonTag = "lot_additional"
	ReasonBuildingManager ReasonTag = "building_manager"
	ReasonExplicit        ReasonTag = "explicit"
)

// higher wins when several rules match the same user
var reasonRank = map[ReasonTag]int{
	ReasonExplicit:        1,
	ReasonBuildingManager: 2,
	ReasonLotAdditional:   3,
	ReasonLotPrincipal:    4,
}

// ExplicitResponsible a user the caller already knows is responsible
// (intervention manager, assigned contact, contact's building principal).
type ExplicitResponsible struct {
	UserID string
	Reason ReasonTag // defaults to explicit
}

// ClassifyInput the entity an event is about, with its parents.
type ClassifyInput struct {
	TeamID     string
	ActorID    string
	EntityType domain.EntityType
	EntityID   string
	BuildingID string
	LotID      string
	Explicit   []ExplicitResponsible
}

// Recipient one team manager and how they are addressed for an event.
type Recipient struct {
	UserID     string      `json:"user_id"`
	Role       domain.Role `json:"role"`
	IsPersonal bool        `json:"is_personal"`
	Reason     ReasonTag   `json:"reason,omitempty"`
}

// DataQualityReporter receives integrity problems found while resolving
// recipients. The activity logger implements it.
type DataQualityReporter interface {
	ReportDuplicatePrimary(ctx context.Context, teamID, actorID string, dup PrimaryResult)
}

// lotManagers result of the lot manager lookup chain.
type lotManagers struct {
	primary       PrimaryResult
	additional    []string
	principalTag  ReasonTag
	additionalTag ReasonTag
}

// ResponsibilityClassifier splits a team's managers into personal and team
// recipients for one event.
type ResponsibilityClassifier struct {
	reader   *OwnershipReader
	reporter DataQualityReporter
	logger   *zap.Logger
}

// NewResponsibilityClassifier reporter may be nil.
func NewResponsibilityClassifier(reader *OwnershipReader, reporter DataQualityReporter, logger *zap.Logger) *ResponsibilityClassifier {
	return &ResponsibilityClassifier{reader: reader, reporter: reporter, logger: logger}
}

func (c *ResponsibilityClassifier) report(ctx context.Context, in ClassifyInput, p PrimaryResult) {
	if c.reporter == nil || len(p.Duplicates) == 0 {
		return
	}
	c.reporter.ReportDuplicatePrimary(ctx, in.TeamID, in.ActorID, p)
}

// Classify returns every team manager except the actor, in membership order,
// each marked personal when directly responsible for the entity. A store
// failure is returned as is; an empty team is not an error.
func (c *ResponsibilityClassifier) Classify(ctx context.Context, in ClassifyInput) ([]Recipient, error) {
	direct := map[string]ReasonTag{}
	mark := func(userID string, reason ReasonTag) {
		if userID == "" || userID == in.ActorID {
			return
		}
		if cur, ok := direct[userID]; ok && reasonRank[cur] >= reasonRank[reason] {
			return
		}
		direct[userID] = reason
	}

	for _, e := range in.Explicit {
		reason := e.Reason
		if reason == "" {
			reason = ReasonExplicit
		}
		mark(e.UserID, reason)
	}

	buildingID := in.BuildingID
	if buildingID == "" && in.LotID != "" {
		b, err := c.reader.LotBuildingID(ctx, in.LotID)
		if err != nil {
			return nil, fmt.Errorf("resolve lot building: %w", err)
		}
		buildingID = b
	}

	if buildingID != "" {
		p, err := c.reader.PrimaryBuildingManager(ctx, buildingID, in.ActorID)
		if err != nil {
			return nil, fmt.Errorf("primary building manager: %w", err)
		}
		c.report(ctx, in, p)
		mark(p.UserID, ReasonBuildingManager)
	}

	if in.LotID != "" {
		lm, err := c.lotManagers(ctx, in.LotID, buildingID, in.ActorID)
		if err != nil {
			return nil, err
		}
		if lm.principalTag == ReasonLotPrincipal {
			c.report(ctx, in, lm.primary)
		}
		mark(lm.primary.UserID, lm.principalTag)
		for _, id := range lm.additional {
			mark(id, lm.additionalTag)
		}
	}

	managers, err := c.reader.TeamManagers(ctx, in.TeamID, in.ActorID)
	if err != nil {
		return nil, fmt.Errorf("team managers: %w", err)
	}

	out := make([]Recipient, 0, len(managers))
	for _, m := range managers {
		r := Recipient{UserID: m.UserID, Role: m.Role}
		if reason, ok := direct[m.UserID]; ok {
			r.IsPersonal = true
			r.Reason = reason
		}
		out = append(out, r)
	}
	return out, nil
}

// lotManagers reads lot_contacts and falls back to the parent building's
// contacts when the lot lookup fails.
func (c *ResponsibilityClassifier) lotManagers(ctx context.Context, lotID, buildingID, actorID string) (lotManagers, error) {
	fromLinks := func(primary func(context.Context, string, string) (PrimaryResult, error),
		active func(context.Context, string, string) ([]string, error),
		entityID string, principalTag, additionalTag ReasonTag,
	) func(context.Context) (lotManagers, error) {
		return func(ctx context.Context) (lotManagers, error) {
			p, err := primary(ctx, entityID, actorID)
			if err != nil {
				return lotManagers{}, err
			}
			all, err := active(ctx, entityID, actorID)
			if err != nil {
				return lotManagers{}, err
			}
			lm := lotManagers{primary: p, principalTag: principalTag, additionalTag: additionalTag}
			for _, id := range all {
				if id != p.UserID {
					lm.additional = append(lm.additional, id)
				}
			}
			return lm, nil
		}
	}

	strategies := []Strategy[lotManagers]{{
		Name: "lot_contacts",
		Run: fromLinks(c.reader.PrimaryLotManager, c.reader.ActiveLotManagers,
			lotID, ReasonLotPrincipal, ReasonLotAdditional),
	}}
	if buildingID != "" {
		strategies = append(strategies, Strategy[lotManagers]{
			Name: "building_contacts",
			Run: fromLinks(c.reader.PrimaryBuildingManager, c.reader.ActiveBuildingManagers,
				buildingID, ReasonBuildingManager, ReasonBuildingManager),
		})
	}

	lm, source, err := NewStrategyChain(strategies...).Run(ctx)
	if err != nil {
		return lotManagers{}, fmt.Errorf("lot managers: %w", err)
	}
	if source != "lot_contacts" {
		c.logger.Warn("lot managers resolved through fallback",
			zap.String("lot_id", lotID),
			zap.String("strategy", source),
		)
	}
	return lm, nil
}
