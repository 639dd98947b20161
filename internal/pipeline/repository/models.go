package repository

import (
	"time"

	"crm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

type Opportunity struct {
	ID                uuid.UUID
	Title             string
	Stage             domain.Stage
	Probability       int
	ValueCents        int64
	Currency          string
	LeadID            *uuid.UUID
	ClientID          *uuid.UUID
	OwnerID           *uuid.UUID
	ContactName       string
	ContactEmail      string
	ContactPhone      string
	CompanyName       string
	ExpectedCloseDate *time.Time
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type CreateOpportunityParams struct {
	Title             string
	Stage             domain.Stage
	Probability       int
	ValueCents        int64
	Currency          string
	LeadID            *uuid.UUID
	OwnerID           *uuid.UUID
	ContactName       string
	ContactEmail      string
	ContactPhone      string
	CompanyName       string
	ExpectedCloseDate *time.Time
}

// OpportunityFieldEdits carries the user-editable opportunity columns.
// A nil pointer leaves the column untouched.
type OpportunityFieldEdits struct {
	Title             *string
	ValueCents        *int64
	Currency          *string
	OwnerID           *uuid.UUID
	ContactName       *string
	ContactEmail      *string
	ContactPhone      *string
	CompanyName       *string
	ExpectedCloseDate *time.Time
}

// IsEmpty reports whether no field is set.
func (e OpportunityFieldEdits) IsEmpty() bool {
	return e.Title == nil && e.ValueCents == nil && e.Currency == nil && e.OwnerID == nil &&
		e.ContactName == nil && e.ContactEmail == nil && e.ContactPhone == nil &&
		e.CompanyName == nil && e.ExpectedCloseDate == nil
}

// UpdateOpportunityParams is a partial update. Stage and Probability are only
// written by the transition path; ClientID only by conversion.
// ExpectedVersion, when set, makes the write fail with a conflict if the row
// has been modified since it was read.
type UpdateOpportunityParams struct {
	Fields          OpportunityFieldEdits
	Stage           *domain.Stage
	Probability     *int
	ClientID        *uuid.UUID
	ExpectedVersion *int
}

func (p UpdateOpportunityParams) isEmpty() bool {
	return p.Fields.IsEmpty() && p.Stage == nil && p.Probability == nil && p.ClientID == nil
}

type Task struct {
	ID            uuid.UUID
	OpportunityID *uuid.UUID
	LeadID        *uuid.UUID
	Title         string
	Description   string
	Priority      domain.Priority
	DueDate       time.Time
	Status        domain.TaskStatus
	OwnerID       uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CreateTaskParams struct {
	OpportunityID *uuid.UUID
	LeadID        *uuid.UUID
	Title         string
	Description   string
	Priority      domain.Priority
	DueDate       time.Time
	OwnerID       uuid.UUID
}

type ConversationRecord struct {
	ID            uuid.UUID
	LeadID        *uuid.UUID
	OpportunityID *uuid.UUID
	ClientID      *uuid.UUID
	CompanyID     *uuid.UUID
	Kind          domain.ConversationKind
	Content       string
	Outcome       *string
	NextStep      *string
	FollowUpDate  *time.Time
	AuthorID      uuid.UUID
	CreatedAt     time.Time
}

type CreateConversationParams struct {
	LeadID        *uuid.UUID
	OpportunityID *uuid.UUID
	ClientID      *uuid.UUID
	CompanyID     *uuid.UUID
	Kind          domain.ConversationKind
	Content       string
	Outcome       *string
	NextStep      *string
	FollowUpDate  *time.Time
	AuthorID      uuid.UUID
}

// HasReference reports whether at least one entity reference is set.
func (p CreateConversationParams) HasReference() bool {
	return p.LeadID != nil || p.OpportunityID != nil || p.ClientID != nil || p.CompanyID != nil
}

// ConversationContentEdits are the only fields of a conversation record that
// may change outside relinking.
type ConversationContentEdits struct {
	Content      *string
	Outcome      *string
	NextStep     *string
	FollowUpDate *time.Time
}

func (e ConversationContentEdits) IsEmpty() bool {
	return e.Content == nil && e.Outcome == nil && e.NextStep == nil && e.FollowUpDate == nil
}

// ConversationSelector matches records whose references equal every set field.
type ConversationSelector struct {
	LeadID        *uuid.UUID
	OpportunityID *uuid.UUID
	ClientID      *uuid.UUID
	CompanyID     *uuid.UUID
}

func (s ConversationSelector) IsEmpty() bool {
	return s.LeadID == nil && s.OpportunityID == nil && s.ClientID == nil && s.CompanyID == nil
}

// Matches reports whether rec satisfies the selector.
func (s ConversationSelector) Matches(rec ConversationRecord) bool {
	return matchRef(s.LeadID, rec.LeadID) &&
		matchRef(s.OpportunityID, rec.OpportunityID) &&
		matchRef(s.ClientID, rec.ClientID) &&
		matchRef(s.CompanyID, rec.CompanyID)
}

func matchRef(want, got *uuid.UUID) bool {
	if want == nil {
		return true
	}
	return got != nil && *got == *want
}

// ConversationLinks are the reference columns a relink may overwrite.
// Unset fields keep their current value.
type ConversationLinks struct {
	OpportunityID *uuid.UUID
	ClientID      *uuid.UUID
	CompanyID     *uuid.UUID
}

func (l ConversationLinks) IsEmpty() bool {
	return l.OpportunityID == nil && l.ClientID == nil && l.CompanyID == nil
}

type Lead struct {
	ID          uuid.UUID
	FirstName   string
	LastName    string
	Email       *string
	Phone       *string
	CompanyName *string
	Source      *string
	Status      domain.LeadStatus
	OwnerID     *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FullName joins first and last name.
func (l Lead) FullName() string {
	if l.LastName == "" {
		return l.FirstName
	}
	return l.FirstName + " " + l.LastName
}

type CreateLeadParams struct {
	FirstName   string
	LastName    string
	Email       *string
	Phone       *string
	CompanyName *string
	Source      *string
	OwnerID     *uuid.UUID
}

type UpdateLeadParams struct {
	FirstName   *string
	LastName    *string
	Email       *string
	Phone       *string
	CompanyName *string
	Source      *string
	Status      *domain.LeadStatus
	OwnerID     *uuid.UUID
}

func (p UpdateLeadParams) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil && p.Phone == nil &&
		p.CompanyName == nil && p.Source == nil && p.Status == nil && p.OwnerID == nil
}

type Client struct {
	ID            uuid.UUID
	Name          string
	Email         *string
	Phone         *string
	CompanyID     *uuid.UUID
	OpportunityID *uuid.UUID
	OwnerID       *uuid.UUID
	CreatedAt     time.Time
}

type CreateClientParams struct {
	Name          string
	Email         *string
	Phone         *string
	CompanyID     *uuid.UUID
	OpportunityID *uuid.UUID
	OwnerID       *uuid.UUID
}

type Company struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}
