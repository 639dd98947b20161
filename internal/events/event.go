// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"crm_backend/platform/events"
	"crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Publisher   = events.Publisher
	Subscriber  = events.Subscriber
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// InMemoryBus is the process-local bus used by the API binary and tests.
type InMemoryBus = events.InMemoryBus

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates a bus that logs handler failures to log.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Pipeline Domain Events
// =============================================================================

// OpportunityStageChanged is published after an opportunity actually moved stage.
type OpportunityStageChanged struct {
	BaseEvent
	OpportunityID uuid.UUID  `json:"opportunityId"`
	FromStage     string     `json:"fromStage"`
	ToStage       string     `json:"toStage"`
	Probability   int        `json:"probability"`
	TasksCreated  int        `json:"tasksCreated"`
	ActorID       uuid.UUID  `json:"actorId"`
	LeadID        *uuid.UUID `json:"leadId,omitempty"`
}

func (e OpportunityStageChanged) EventName() string { return "pipeline.opportunity.stage_changed" }

// LeadPromoted is published when a lead has been converted into an opportunity.
type LeadPromoted struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	OpportunityID uuid.UUID `json:"opportunityId"`
	Stage         string    `json:"stage"`
	TasksCreated  int       `json:"tasksCreated"`
	ActorID       uuid.UUID `json:"actorId"`
}

func (e LeadPromoted) EventName() string { return "pipeline.lead.promoted" }

// OpportunityWon is published when an opportunity has been converted into a client.
type OpportunityWon struct {
	BaseEvent
	OpportunityID uuid.UUID  `json:"opportunityId"`
	ClientID      uuid.UUID  `json:"clientId"`
	CompanyID     *uuid.UUID `json:"companyId,omitempty"`
	LeadID        *uuid.UUID `json:"leadId,omitempty"`
	ActorID       uuid.UUID  `json:"actorId"`
}

func (e OpportunityWon) EventName() string { return "pipeline.opportunity.won" }

// ConversationsRelinked is published after a bulk relink of conversation history.
type ConversationsRelinked struct {
	BaseEvent
	FromLeadID        *uuid.UUID `json:"fromLeadId,omitempty"`
	FromOpportunityID *uuid.UUID `json:"fromOpportunityId,omitempty"`
	ToOpportunityID   *uuid.UUID `json:"toOpportunityId,omitempty"`
	ToClientID        *uuid.UUID `json:"toClientId,omitempty"`
	ToCompanyID       *uuid.UUID `json:"toCompanyId,omitempty"`
	Updated           int64      `json:"updated"`
}

func (e ConversationsRelinked) EventName() string { return "pipeline.conversations.relinked" }
