package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type CreateLeadRequest struct {
	FirstName   string     `json:"firstName" validate:"required,min=1,max=100"`
	LastName    string     `json:"lastName,omitempty" validate:"max=100"`
	Email       string     `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string     `json:"phone,omitempty" validate:"omitempty,min=5,max=32"`
	CompanyName string     `json:"companyName,omitempty" validate:"max=200"`
	Source      string     `json:"source,omitempty" validate:"max=100"`
	OwnerID     *uuid.UUID `json:"ownerId,omitempty"`
}

type UpdateLeadRequest struct {
	FirstName   *string    `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName    *string    `json:"lastName,omitempty" validate:"omitempty,max=100"`
	Email       *string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string    `json:"phone,omitempty" validate:"omitempty,min=5,max=32"`
	CompanyName *string    `json:"companyName,omitempty" validate:"omitempty,max=200"`
	Source      *string    `json:"source,omitempty" validate:"omitempty,max=100"`
	Status      *string    `json:"status,omitempty" validate:"omitempty,oneof=new contacted qualified unqualified won lost"`
	OwnerID     *uuid.UUID `json:"ownerId,omitempty"`
}

type PromoteLeadRequest struct {
	Stage        string     `json:"stage,omitempty" validate:"max=64"`
	ScheduleDate *time.Time `json:"scheduleDate,omitempty"`
	Title        string     `json:"title,omitempty" validate:"max=200"`
	ValueCents   int64      `json:"valueCents,omitempty" validate:"min=0"`
	Currency     string     `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
	// Relink moves the lead's conversation history onto the new opportunity.
	Relink bool `json:"relink,omitempty"`
}

type CreateOpportunityRequest struct {
	Title             string     `json:"title" validate:"required,min=1,max=200"`
	Stage             string     `json:"stage,omitempty" validate:"max=64"`
	Probability       *int       `json:"probability,omitempty" validate:"omitempty,min=0,max=100"`
	ValueCents        int64      `json:"valueCents,omitempty" validate:"min=0"`
	Currency          string     `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
	LeadID            *uuid.UUID `json:"leadId,omitempty"`
	OwnerID           *uuid.UUID `json:"ownerId,omitempty"`
	ContactName       string     `json:"contactName,omitempty" validate:"max=200"`
	ContactEmail      string     `json:"contactEmail,omitempty" validate:"omitempty,email"`
	ContactPhone      string     `json:"contactPhone,omitempty" validate:"omitempty,min=5,max=32"`
	CompanyName       string     `json:"companyName,omitempty" validate:"max=200"`
	ExpectedCloseDate *time.Time `json:"expectedCloseDate,omitempty"`
	BaseDate          *time.Time `json:"baseDate,omitempty"`
}

// OpportunityFields are the directly editable opportunity columns.
type OpportunityFields struct {
	Title             *string    `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	ValueCents        *int64     `json:"valueCents,omitempty" validate:"omitempty,min=0"`
	Currency          *string    `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
	OwnerID           *uuid.UUID `json:"ownerId,omitempty"`
	ContactName       *string    `json:"contactName,omitempty" validate:"omitempty,max=200"`
	ContactEmail      *string    `json:"contactEmail,omitempty" validate:"omitempty,email"`
	ContactPhone      *string    `json:"contactPhone,omitempty" validate:"omitempty,min=5,max=32"`
	CompanyName       *string    `json:"companyName,omitempty" validate:"omitempty,max=200"`
	ExpectedCloseDate *time.Time `json:"expectedCloseDate,omitempty"`
}

// UpdateOpportunityRequest edits fields. A stage or probability routes the
// update through the stage transition path.
type UpdateOpportunityRequest struct {
	OpportunityFields
	Stage         *string    `json:"stage,omitempty" validate:"omitempty,min=1,max=64"`
	Probability   *int       `json:"probability,omitempty" validate:"omitempty,min=0,max=100"`
	GenerateTasks *bool      `json:"generateTasks,omitempty"`
	BaseDate      *time.Time `json:"baseDate,omitempty"`
}

type TransitionRequest struct {
	Stage         string     `json:"stage" validate:"required,max=64"`
	Probability   *int       `json:"probability,omitempty" validate:"omitempty,min=0,max=100"`
	GenerateTasks *bool      `json:"generateTasks,omitempty"`
	BaseDate      *time.Time `json:"baseDate,omitempty"`
}

type ConvertOpportunityRequest struct {
	// Relink moves the opportunity's and its lead's conversation history onto
	// the new client. Records that reference both are updated by each pass.
	Relink bool `json:"relink,omitempty"`
}

type CreateTaskRequest struct {
	OpportunityID *uuid.UUID `json:"opportunityId,omitempty" validate:"required_without=LeadID"`
	LeadID        *uuid.UUID `json:"leadId,omitempty" validate:"required_without=OpportunityID"`
	Title         string     `json:"title" validate:"required,min=1,max=200"`
	Description   string     `json:"description,omitempty" validate:"max=2000"`
	Priority      string     `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	DueDate       time.Time  `json:"dueDate" validate:"required"`
	OwnerID       *uuid.UUID `json:"ownerId,omitempty"`
}

type UpdateTaskStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending in_progress completed cancelled"`
}

type CreateConversationRequest struct {
	LeadID        *uuid.UUID `json:"leadId,omitempty"`
	OpportunityID *uuid.UUID `json:"opportunityId,omitempty"`
	ClientID      *uuid.UUID `json:"clientId,omitempty"`
	CompanyID     *uuid.UUID `json:"companyId,omitempty"`
	Kind          string     `json:"kind,omitempty" validate:"omitempty,oneof=note call email meeting proposal follow_up other"`
	Content       string     `json:"content" validate:"required,min=1,max=10000"`
	Outcome       *string    `json:"outcome,omitempty" validate:"omitempty,max=2000"`
	NextStep      *string    `json:"nextStep,omitempty" validate:"omitempty,max=2000"`
	FollowUpDate  *time.Time `json:"followUpDate,omitempty"`
}

type ListConversationsRequest struct {
	LeadID        string `form:"leadId" validate:"omitempty,uuid"`
	OpportunityID string `form:"opportunityId" validate:"omitempty,uuid"`
	ClientID      string `form:"clientId" validate:"omitempty,uuid"`
	CompanyID     string `form:"companyId" validate:"omitempty,uuid"`
}

type UpdateConversationRequest struct {
	Content      *string    `json:"content,omitempty" validate:"omitempty,min=1,max=10000"`
	Outcome      *string    `json:"outcome,omitempty" validate:"omitempty,max=2000"`
	NextStep     *string    `json:"nextStep,omitempty" validate:"omitempty,max=2000"`
	FollowUpDate *time.Time `json:"followUpDate,omitempty"`
}

type RelinkOneRequest struct {
	OpportunityID *uuid.UUID `json:"opportunityId,omitempty"`
	ClientID      *uuid.UUID `json:"clientId,omitempty"`
	CompanyID     *uuid.UUID `json:"companyId,omitempty"`
}

type RelinkAllRequest struct {
	FromLeadID        *uuid.UUID `json:"fromLeadId,omitempty"`
	FromOpportunityID *uuid.UUID `json:"fromOpportunityId,omitempty"`
	ToOpportunityID   *uuid.UUID `json:"toOpportunityId,omitempty"`
	ToClientID        *uuid.UUID `json:"toClientId,omitempty"`
	ToCompanyID       *uuid.UUID `json:"toCompanyId,omitempty"`
}

// Response DTOs

type TaskTemplateResponse struct {
	Title     string `json:"title"`
	Priority  string `json:"priority"`
	DayOffset int    `json:"dayOffset"`
}

type StageResponse struct {
	Key         string                 `json:"key"`
	Label       string                 `json:"label"`
	Probability int                    `json:"probability"`
	Closed      bool                   `json:"closed"`
	Legacy      bool                   `json:"legacy"`
	Tasks       []TaskTemplateResponse `json:"tasks"`
}

type LeadResponse struct {
	ID          uuid.UUID  `json:"id"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Email       *string    `json:"email,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	CompanyName *string    `json:"companyName,omitempty"`
	Source      *string    `json:"source,omitempty"`
	Status      string     `json:"status"`
	OwnerID     *uuid.UUID `json:"ownerId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type OpportunityResponse struct {
	ID                uuid.UUID  `json:"id"`
	Title             string     `json:"title"`
	Stage             string     `json:"stage"`
	StageLabel        string     `json:"stageLabel"`
	Probability       int        `json:"probability"`
	ValueCents        int64      `json:"valueCents"`
	Currency          string     `json:"currency"`
	LeadID            *uuid.UUID `json:"leadId,omitempty"`
	ClientID          *uuid.UUID `json:"clientId,omitempty"`
	OwnerID           *uuid.UUID `json:"ownerId,omitempty"`
	ContactName       string     `json:"contactName"`
	ContactEmail      string     `json:"contactEmail"`
	ContactPhone      string     `json:"contactPhone"`
	CompanyName       string     `json:"companyName"`
	ExpectedCloseDate *time.Time `json:"expectedCloseDate,omitempty"`
	Version           int        `json:"version"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

type TaskResponse struct {
	ID            uuid.UUID  `json:"id"`
	OpportunityID *uuid.UUID `json:"opportunityId,omitempty"`
	LeadID        *uuid.UUID `json:"leadId,omitempty"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Priority      string     `json:"priority"`
	DueDate       time.Time  `json:"dueDate"`
	Status        string     `json:"status"`
	OwnerID       uuid.UUID  `json:"ownerId"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type ConversationResponse struct {
	ID            uuid.UUID  `json:"id"`
	LeadID        *uuid.UUID `json:"leadId,omitempty"`
	OpportunityID *uuid.UUID `json:"opportunityId,omitempty"`
	ClientID      *uuid.UUID `json:"clientId,omitempty"`
	CompanyID     *uuid.UUID `json:"companyId,omitempty"`
	Kind          string     `json:"kind"`
	Content       string     `json:"content"`
	Outcome       *string    `json:"outcome,omitempty"`
	NextStep      *string    `json:"nextStep,omitempty"`
	FollowUpDate  *time.Time `json:"followUpDate,omitempty"`
	AuthorID      uuid.UUID  `json:"authorId"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type ClientResponse struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Email         *string    `json:"email,omitempty"`
	Phone         *string    `json:"phone,omitempty"`
	CompanyID     *uuid.UUID `json:"companyId,omitempty"`
	OpportunityID *uuid.UUID `json:"opportunityId,omitempty"`
	OwnerID       *uuid.UUID `json:"ownerId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type CompanyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type TransitionResponse struct {
	Opportunity  OpportunityResponse   `json:"opportunity"`
	CreatedTasks []TaskResponse        `json:"createdTasks"`
	Conversation *ConversationResponse `json:"conversation,omitempty"`
	Changed      bool                  `json:"changed"`
}

type OpportunityDetailResponse struct {
	Opportunity   OpportunityResponse    `json:"opportunity"`
	Tasks         []TaskResponse         `json:"tasks"`
	Conversations []ConversationResponse `json:"conversations"`
}

type PromoteLeadResponse struct {
	Lead         LeadResponse         `json:"lead"`
	Opportunity  OpportunityResponse  `json:"opportunity"`
	Tasks        []TaskResponse       `json:"tasks"`
	Conversation ConversationResponse `json:"conversation"`
	Relinked     *int64               `json:"relinked,omitempty"`
}

type ConvertOpportunityResponse struct {
	Opportunity  OpportunityResponse  `json:"opportunity"`
	Client       ClientResponse       `json:"client"`
	Company      *CompanyResponse     `json:"company,omitempty"`
	Lead         *LeadResponse        `json:"lead,omitempty"`
	Conversation ConversationResponse `json:"conversation"`
	Relinked     *int64               `json:"relinked,omitempty"`
}

type RelinkAllResponse struct {
	Updated int64 `json:"updated"`
}

type TaskListResponse struct {
	Items []TaskResponse `json:"items"`
}

type ConversationListResponse struct {
	Items []ConversationResponse `json:"items"`
}

type StageListResponse struct {
	Items []StageResponse `json:"items"`
}
