package domain

import "strings"

// InterventionStatus lifecycle state of an intervention.
type InterventionStatus string

const (
	// request phase
	StatusRequested InterventionStatus = "requested"
	StatusRejected  InterventionStatus = "rejected"
	StatusApproved  InterventionStatus = "approved"

	// planning / execution phase
	StatusQuoteRequested InterventionStatus = "quote_requested"
	StatusPlanning       InterventionStatus = "planning"
	StatusScheduled      InterventionStatus = "scheduled"
	StatusInProgress     InterventionStatus = "in_progress"

	// closure phase
	StatusClosedByProvider InterventionStatus = "closed_by_provider"
	StatusClosedByTenant   InterventionStatus = "closed_by_tenant"
	StatusClosedByManager  InterventionStatus = "closed_by_manager"

	StatusCancelled InterventionStatus = "cancelled"
)

// InterventionPhase groups statuses for display and priority rules.
type InterventionPhase string

const (
	PhaseRequest   InterventionPhase = "request"
	PhaseExecution InterventionPhase = "execution"
	PhaseClosure   InterventionPhase = "closure"
	PhaseUnknown   InterventionPhase = "unknown"
)

type statusInfo struct {
	label string
	phase InterventionPhase
	next  []InterventionStatus
}

var statusTable = map[InterventionStatus]statusInfo{
	StatusRequested:        {"Requested", PhaseRequest, []InterventionStatus{StatusRejected, StatusApproved}},
	StatusRejected:         {"Rejected", PhaseRequest, nil},
	StatusApproved:         {"Approved", PhaseRequest, []InterventionStatus{StatusQuoteRequested}},
	StatusQuoteRequested:   {"Quote requested", PhaseExecution, []InterventionStatus{StatusPlanning}},
	StatusPlanning:         {"Planning", PhaseExecution, []InterventionStatus{StatusScheduled}},
	StatusScheduled:        {"Scheduled", PhaseExecution, []InterventionStatus{StatusInProgress}},
	StatusInProgress:       {"In progress", PhaseExecution, []InterventionStatus{StatusClosedByProvider, StatusClosedByTenant, StatusClosedByManager}},
	StatusClosedByProvider: {"Closed by provider", PhaseClosure, nil},
	StatusClosedByTenant:   {"Closed by tenant", PhaseClosure, nil},
	StatusClosedByManager:  {"Closed by manager", PhaseClosure, nil},
	StatusCancelled:        {"Cancelled", PhaseClosure, nil},
}

var statusAliases = map[string]InterventionStatus{
	"demande":                   StatusRequested,
	"rejetee":                   StatusRejected,
	"approuvee":                 StatusApproved,
	"demande_de_devis":          StatusQuoteRequested,
	"planification":             StatusPlanning,
	"planifiee":                 StatusScheduled,
	"en_cours":                  StatusInProgress,
	"cloturee_par_prestataire":  StatusClosedByProvider,
	"cloturee_par_locataire":    StatusClosedByTenant,
	"cloturee_par_gestionnaire": StatusClosedByManager,
	"annulee":                   StatusCancelled,
}

// ParseInterventionStatus accepts canonical and legacy literals. Unknown values
// are returned as-is with ok=false so callers can still display them.
func ParseInterventionStatus(s string) (InterventionStatus, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if _, ok := statusTable[InterventionStatus(norm)]; ok {
		return InterventionStatus(norm), true
	}
	if st, ok := statusAliases[norm]; ok {
		return st, true
	}
	return InterventionStatus(s), false
}

// Known reports whether s is part of the state machine.
func (s InterventionStatus) Known() bool {
	_, ok := statusTable[s]
	return ok
}

func (s InterventionStatus) Label() string {
	if info, ok := statusTable[s]; ok {
		return info.label
	}
	return string(s)
}

func (s InterventionStatus) Phase() InterventionPhase {
	if info, ok := statusTable[s]; ok {
		return info.phase
	}
	return PhaseUnknown
}

// IsTerminal: no transition leaves a terminal state.
func (s InterventionStatus) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusClosedByProvider, StatusClosedByTenant, StatusClosedByManager:
		return true
	}
	return false
}

// IsDecision marks states that settle a request or close the work: approval,
// rejection and the three closures.
func (s InterventionStatus) IsDecision() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusClosedByProvider, StatusClosedByTenant, StatusClosedByManager:
		return true
	}
	return false
}

// CanTransition validates from -> to. Any known non-terminal state may be cancelled.
func CanTransition(from, to InterventionStatus) bool {
	info, ok := statusTable[from]
	if !ok || from.IsTerminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	for _, n := range info.next {
		if n == to {
			return true
		}
	}
	return false
}
