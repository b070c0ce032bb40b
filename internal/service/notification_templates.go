package service

import (
	"fmt"

	"github.com/aumugisha-umu/seido-sub001/internal/domain"
)

// EventKind identifies a domain event handled by the fan-out engine.
type EventKind string

const (
	EventInterventionCreated       EventKind = "intervention.created"
	EventInterventionStatusChanged EventKind = "intervention.status_changed"
	EventBuildingCreated           EventKind = "building.created"
	EventBuildingUpdated           EventKind = "building.updated"
	EventBuildingDeleted           EventKind = "building.deleted"
	EventLotCreated                EventKind = "lot.created"
	EventLotUpdated                EventKind = "lot.updated"
	EventLotDeleted                EventKind = "lot.deleted"
	EventContactCreated            EventKind = "contact.created"
	EventContactUpdated            EventKind = "contact.updated"
	EventContactDeleted            EventKind = "contact.deleted"
)

// entityAction verb of a building/lot/contact event.
type entityAction string

const (
	actionCreated entityAction = "created"
	actionUpdated entityAction = "updated"
	actionDeleted entityAction = "deleted"
)

// entityPriority create/update: personal normal, team low.
// delete: personal high, team normal.
func entityPriority(action entityAction, personal bool) domain.Priority {
	p := domain.PriorityLow
	if personal {
		p = domain.PriorityNormal
	}
	if action == actionDeleted {
		p = p.Bump(1)
	}
	return p
}

// interventionCreatedPriority personal high, team normal; urgency high adds a
// level, urgent forces urgent.
func interventionCreatedPriority(urgency domain.Urgency, personal bool) domain.Priority {
	p := domain.PriorityNormal
	if personal {
		p = domain.PriorityHigh
	}
	switch urgency {
	case domain.UrgencyUrgent:
		return domain.PriorityUrgent
	case domain.UrgencyHigh:
		return p.Bump(1)
	}
	return p
}

// statusChangePriority personal normal, team low; decisions and closures are
// high for everyone.
func statusChangePriority(to domain.InterventionStatus, personal bool) domain.Priority {
	p := domain.PriorityLow
	if personal {
		p = domain.PriorityNormal
	}
	if to.IsDecision() {
		p = p.AtLeast(domain.PriorityHigh)
	}
	return p
}

type renderedMessage struct {
	Title   string
	Message string
}

func interventionCreatedMessage(it *domain.Intervention, r Recipient) renderedMessage {
	name := it.DisplayName()
	if !r.IsPersonal {
		return renderedMessage{
			Title:   "New intervention",
			Message: fmt.Sprintf("Intervention %s was created in your team.", name),
		}
	}
	msg := fmt.Sprintf("Intervention %s was created and needs your attention.", name)
	switch r.Reason {
	case ReasonLotPrincipal:
		msg = fmt.Sprintf("Intervention %s was created on a lot you manage as principal.", name)
	case ReasonLotAdditional:
		msg = fmt.Sprintf("Intervention %s was created on a lot you co-manage.", name)
	case ReasonBuildingManager:
		msg = fmt.Sprintf("Intervention %s was created in a building you manage.", name)
	}
	if it.Urgency == domain.UrgencyUrgent {
		return renderedMessage{Title: "Urgent intervention", Message: msg}
	}
	return renderedMessage{Title: "New intervention assigned to you", Message: msg}
}

func statusChangeMessage(it *domain.Intervention, from, to domain.InterventionStatus, r Recipient) renderedMessage {
	name := it.DisplayName()
	if !from.Known() || !to.Known() {
		return renderedMessage{
			Title:   "Intervention status changed",
			Message: fmt.Sprintf("The status of intervention %s changed.", name),
		}
	}
	title := "Intervention updated"
	switch {
	case to == domain.StatusApproved:
		title = "Intervention approved"
	case to == domain.StatusRejected:
		title = "Intervention rejected"
	case to == domain.StatusCancelled:
		title = "Intervention cancelled"
	case to.Phase() == domain.PhaseClosure:
		title = "Intervention closed"
	}
	msg := fmt.Sprintf("Intervention %s moved from %q to %q.", name, from.Label(), to.Label())
	if r.IsPersonal && r.Reason != ReasonExplicit && r.Reason != "" {
		msg += " You are responsible for this property."
	}
	return renderedMessage{Title: title, Message: msg}
}

func tenantStatusMessage(it *domain.Intervention, from, to domain.InterventionStatus) renderedMessage {
	name := it.DisplayName()
	if !from.Known() || !to.Known() {
		return renderedMessage{
			Title:   "Your request was updated",
			Message: fmt.Sprintf("The status of your request %s changed.", name),
		}
	}
	return renderedMessage{
		Title:   "Your request was updated",
		Message: fmt.Sprintf("Your request %s is now %q.", name, to.Label()),
	}
}

func buildingMessage(action entityAction, b *domain.Building, r Recipient) renderedMessage {
	name := b.DisplayName()
	title := fmt.Sprintf("Building %s", action)
	if r.IsPersonal {
		return renderedMessage{
			Title:   title,
			Message: fmt.Sprintf("Building %s that you manage was %s.", name, action),
		}
	}
	return renderedMessage{
		Title:   title,
		Message: fmt.Sprintf("Building %s was %s in your team.", name, action),
	}
}

func lotMessage(action entityAction, lot *domain.Lot, r Recipient) renderedMessage {
	name := lot.DisplayName()
	title := fmt.Sprintf("Lot %s", action)
	if !r.IsPersonal {
		return renderedMessage{
			Title:   title,
			Message: fmt.Sprintf("Lot %s was %s in your team.", name, action),
		}
	}
	switch r.Reason {
	case ReasonLotPrincipal:
		return renderedMessage{Title: title, Message: fmt.Sprintf("Lot %s, of which you are the principal manager, was %s.", name, action)}
	case ReasonLotAdditional:
		return renderedMessage{Title: title, Message: fmt.Sprintf("Lot %s, which you co-manage, was %s.", name, action)}
	case ReasonBuildingManager:
		return renderedMessage{Title: title, Message: fmt.Sprintf("Lot %s in a building you manage was %s.", name, action)}
	}
	return renderedMessage{Title: title, Message: fmt.Sprintf("Lot %s was %s.", name, action)}
}

func contactMessage(action entityAction, c *domain.Contact, r Recipient) renderedMessage {
	name := c.DisplayName()
	title := fmt.Sprintf("Contact %s", action)
	if r.IsPersonal {
		return renderedMessage{
			Title:   title,
			Message: fmt.Sprintf("Contact %s, linked to a property you manage, was %s.", name, action),
		}
	}
	return renderedMessage{
		Title:   title,
		Message: fmt.Sprintf("Contact %s was %s in your team.", name, action),
	}
}
