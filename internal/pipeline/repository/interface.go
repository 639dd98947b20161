package repository

import (
	"context"

	"crm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

// OpportunityStore persists opportunities.
type OpportunityStore interface {
	GetOpportunity(ctx context.Context, id uuid.UUID) (Opportunity, error)
	CreateOpportunity(ctx context.Context, params CreateOpportunityParams) (Opportunity, error)
	UpdateOpportunity(ctx context.Context, id uuid.UUID, params UpdateOpportunityParams) (Opportunity, error)
}

// TaskReader lists tasks by parent entity.
type TaskReader interface {
	GetTask(ctx context.Context, id uuid.UUID) (Task, error)
	ListTasksByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]Task, error)
	ListTasksByLead(ctx context.Context, leadID uuid.UUID) ([]Task, error)
}

// TaskWriter creates tasks and moves them through their status.
type TaskWriter interface {
	CreateTask(ctx context.Context, params CreateTaskParams) (Task, error)
	CreateTasks(ctx context.Context, params []CreateTaskParams) ([]Task, error)
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) (Task, error)
}

// TaskStore is the full task repository.
type TaskStore interface {
	TaskReader
	TaskWriter
}

// ConversationReader reads the activity log.
type ConversationReader interface {
	GetConversation(ctx context.Context, id uuid.UUID) (ConversationRecord, error)
	ListConversations(ctx context.Context, selector ConversationSelector) ([]ConversationRecord, error)
}

// ConversationWriter appends records and edits their content.
type ConversationWriter interface {
	CreateConversation(ctx context.Context, params CreateConversationParams) (ConversationRecord, error)
	UpdateConversationContent(ctx context.Context, id uuid.UUID, edits ConversationContentEdits) (ConversationRecord, error)
}

// ConversationLinker rewrites conversation references. It is the only path
// that changes which entities a record points at.
type ConversationLinker interface {
	RelinkConversation(ctx context.Context, id uuid.UUID, links ConversationLinks) (ConversationRecord, error)
	BulkRelinkConversations(ctx context.Context, selector ConversationSelector, links ConversationLinks) (int64, error)
}

// ConversationStore is the full conversation repository.
type ConversationStore interface {
	ConversationReader
	ConversationWriter
	ConversationLinker
}

// LeadStore persists leads.
type LeadStore interface {
	GetLead(ctx context.Context, id uuid.UUID) (Lead, error)
	CreateLead(ctx context.Context, params CreateLeadParams) (Lead, error)
	UpdateLead(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error)
}

// ClientStore persists clients.
type ClientStore interface {
	GetClient(ctx context.Context, id uuid.UUID) (Client, error)
	CreateClient(ctx context.Context, params CreateClientParams) (Client, error)
}

// CompanyStore persists companies.
type CompanyStore interface {
	GetCompany(ctx context.Context, id uuid.UUID) (Company, error)
	CreateCompany(ctx context.Context, name string) (Company, error)
}

// WorkflowStore applies the multi-row writes of a transition or a conversion
// as one unit.
type WorkflowStore interface {
	ApplyStageChange(ctx context.Context, change StageChange) (StageChangeResult, error)
	ConvertToClient(ctx context.Context, conv ClientConversion) (ClientConversionResult, error)
}

// PipelineRepository is everything the pipeline module needs from storage.
type PipelineRepository interface {
	OpportunityStore
	TaskStore
	ConversationStore
	LeadStore
	ClientStore
	CompanyStore
	WorkflowStore
}

var (
	_ PipelineRepository = (*Repository)(nil)
	_ PipelineRepository = (*MemoryStore)(nil)
)
