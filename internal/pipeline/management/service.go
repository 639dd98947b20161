// Package management handles direct CRUD over the pipeline entities.
// Stage and probability edits are never written here; they are handed to the
// transition orchestrator.
package management

import (
	"context"
	"strconv"
	"strings"

	"crm_backend/internal/pipeline/domain"
	"crm_backend/internal/pipeline/repository"
	"crm_backend/internal/pipeline/transition"
	"crm_backend/internal/pipeline/transport"
	"crm_backend/platform/apperr"
	"crm_backend/platform/phone"
	"crm_backend/platform/sanitize"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Repository defines the data access interface needed by the management service.
// This is a consumer-driven interface - only what management needs.
type Repository interface {
	repository.OpportunityStore
	repository.TaskStore
	repository.ConversationReader
	repository.ConversationWriter
	repository.LeadStore
	repository.ClientStore
}

// Transitioner moves an opportunity to a stage or edits it in place.
type Transitioner interface {
	Transition(ctx context.Context, opportunityID uuid.UUID, target domain.Stage, opts transition.Options) (transition.Result, error)
	Edit(ctx context.Context, opportunityID uuid.UUID, opts transition.Options) (transition.Result, error)
}

// Service handles pipeline CRUD operations.
type Service struct {
	repo         Repository
	transitioner Transitioner
	identity     transition.IdentityProvider
	phones       phone.Normalizer
}

// New creates a new management service.
func New(repo Repository, transitioner Transitioner, identity transition.IdentityProvider, phones phone.Normalizer) *Service {
	return &Service{
		repo:         repo,
		transitioner: transitioner,
		identity:     identity,
		phones:       phones,
	}
}

// ListStages returns the stage catalog with each stage's task template.
func (s *Service) ListStages() transport.StageListResponse {
	catalog := domain.Catalog()
	items := make([]transport.StageResponse, len(catalog))
	for i, def := range catalog {
		items[i] = ToStageResponse(def)
	}
	return transport.StageListResponse{Items: items}
}

// Leads

// CreateLead creates a new lead in status new.
func (s *Service) CreateLead(ctx context.Context, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	params := repository.CreateLeadParams{
		FirstName:   sanitize.Line(req.FirstName),
		LastName:    sanitize.Line(req.LastName),
		Email:       optional(req.Email),
		Phone:       optional(s.phones.E164(req.Phone)),
		CompanyName: optional(sanitize.Line(req.CompanyName)),
		Source:      optional(req.Source),
		OwnerID:     req.OwnerID,
	}

	lead, err := s.repo.CreateLead(ctx, params)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return ToLeadResponse(lead), nil
}

// GetLead retrieves a lead by ID.
func (s *Service) GetLead(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetLead(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return ToLeadResponse(lead), nil
}

// UpdateLead applies the supplied fields. An empty request returns the lead unchanged.
func (s *Service) UpdateLead(ctx context.Context, id uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	params := repository.UpdateLeadParams{
		FirstName:   sanitize.LinePtr(req.FirstName),
		LastName:    sanitize.LinePtr(req.LastName),
		Email:       req.Email,
		Phone:       s.phones.E164Ptr(req.Phone),
		CompanyName: sanitize.LinePtr(req.CompanyName),
		Source:      req.Source,
		OwnerID:     req.OwnerID,
	}
	if req.Status != nil {
		status := domain.LeadStatus(*req.Status)
		if !status.Valid() {
			return transport.LeadResponse{}, apperr.InvalidArgument("invalid lead status")
		}
		params.Status = &status
	}

	if params.IsEmpty() {
		return s.GetLead(ctx, id)
	}
	lead, err := s.repo.UpdateLead(ctx, id, params)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return ToLeadResponse(lead), nil
}

// ListLeadTasks lists the tasks attached to a lead, soonest first.
func (s *Service) ListLeadTasks(ctx context.Context, leadID uuid.UUID) (transport.TaskListResponse, error) {
	if _, err := s.repo.GetLead(ctx, leadID); err != nil {
		return transport.TaskListResponse{}, err
	}
	tasks, err := s.repo.ListTasksByLead(ctx, leadID)
	if err != nil {
		return transport.TaskListResponse{}, err
	}
	return transport.TaskListResponse{Items: ToTaskResponses(tasks)}, nil
}

// Opportunities

// CreateOpportunity creates an opportunity and enters it into the pipeline
// through a regular transition, so it receives the stage's probability and
// tasks. The stage defaults to gift_sent.
func (s *Service) CreateOpportunity(ctx context.Context, req transport.CreateOpportunityRequest) (transport.TransitionResponse, error) {
	stage := domain.StageGiftSent
	if strings.TrimSpace(req.Stage) != "" {
		var err error
		if stage, err = parseStage(req.Stage); err != nil {
			return transport.TransitionResponse{}, err
		}
	}

	if req.LeadID != nil {
		if _, err := s.repo.GetLead(ctx, *req.LeadID); err != nil {
			return transport.TransitionResponse{}, err
		}
	}

	opp, err := s.repo.CreateOpportunity(ctx, repository.CreateOpportunityParams{
		Title:             sanitize.Line(req.Title),
		Stage:             domain.StageNone,
		ValueCents:        req.ValueCents,
		Currency:          req.Currency,
		LeadID:            req.LeadID,
		OwnerID:           req.OwnerID,
		ContactName:       sanitize.Line(req.ContactName),
		ContactEmail:      req.ContactEmail,
		ContactPhone:      s.phones.E164(req.ContactPhone),
		CompanyName:       sanitize.Line(req.CompanyName),
		ExpectedCloseDate: req.ExpectedCloseDate,
	})
	if err != nil {
		return transport.TransitionResponse{}, err
	}

	res, err := s.transitioner.Transition(ctx, opp.ID, stage, transition.Options{
		Probability: req.Probability,
		BaseDate:    req.BaseDate,
	})
	if err != nil {
		return transport.TransitionResponse{}, err
	}
	return toTransitionResponse(res), nil
}

// GetOpportunity retrieves an opportunity by ID.
func (s *Service) GetOpportunity(ctx context.Context, id uuid.UUID) (transport.OpportunityResponse, error) {
	opp, err := s.repo.GetOpportunity(ctx, id)
	if err != nil {
		return transport.OpportunityResponse{}, err
	}
	return ToOpportunityResponse(opp), nil
}

// OpportunityDetail loads an opportunity with its tasks and conversation
// history. The three reads run concurrently.
func (s *Service) OpportunityDetail(ctx context.Context, id uuid.UUID) (transport.OpportunityDetailResponse, error) {
	var (
		opp   repository.Opportunity
		tasks []repository.Task
		convs []repository.ConversationRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		opp, err = s.repo.GetOpportunity(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		tasks, err = s.repo.ListTasksByOpportunity(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		convs, err = s.repo.ListConversations(gctx, repository.ConversationSelector{OpportunityID: &id})
		return err
	})
	if err := g.Wait(); err != nil {
		return transport.OpportunityDetailResponse{}, err
	}

	return transport.OpportunityDetailResponse{
		Opportunity:   ToOpportunityResponse(opp),
		Tasks:         ToTaskResponses(tasks),
		Conversations: ToConversationResponses(convs),
	}, nil
}

// UpdateOpportunity applies field edits. A request with a stage goes through
// a transition; anything else is an in-place edit of the current stage.
func (s *Service) UpdateOpportunity(ctx context.Context, id uuid.UUID, req transport.UpdateOpportunityRequest) (transport.TransitionResponse, error) {
	opts := transition.Options{
		Probability:   req.Probability,
		BaseDate:      req.BaseDate,
		GenerateTasks: req.GenerateTasks,
		Fields:        s.fieldEdits(req.OpportunityFields),
	}

	if req.Stage == nil {
		res, err := s.transitioner.Edit(ctx, id, opts)
		if err != nil {
			return transport.TransitionResponse{}, err
		}
		return toTransitionResponse(res), nil
	}

	target, err := parseStage(*req.Stage)
	if err != nil {
		return transport.TransitionResponse{}, err
	}
	res, err := s.transitioner.Transition(ctx, id, target, opts)
	if err != nil {
		return transport.TransitionResponse{}, err
	}
	return toTransitionResponse(res), nil
}

// Transition moves an opportunity to the requested stage.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, req transport.TransitionRequest) (transport.TransitionResponse, error) {
	target, err := parseStage(req.Stage)
	if err != nil {
		return transport.TransitionResponse{}, err
	}
	res, err := s.transitioner.Transition(ctx, id, target, transition.Options{
		Probability:   req.Probability,
		BaseDate:      req.BaseDate,
		GenerateTasks: req.GenerateTasks,
	})
	if err != nil {
		return transport.TransitionResponse{}, err
	}
	return toTransitionResponse(res), nil
}

// ListOpportunityTasks lists an opportunity's tasks, soonest first.
func (s *Service) ListOpportunityTasks(ctx context.Context, opportunityID uuid.UUID) (transport.TaskListResponse, error) {
	if _, err := s.repo.GetOpportunity(ctx, opportunityID); err != nil {
		return transport.TaskListResponse{}, err
	}
	tasks, err := s.repo.ListTasksByOpportunity(ctx, opportunityID)
	if err != nil {
		return transport.TaskListResponse{}, err
	}
	return transport.TaskListResponse{Items: ToTaskResponses(tasks)}, nil
}

// Tasks

// CreateTask creates a manual task. The owner defaults to the acting user.
func (s *Service) CreateTask(ctx context.Context, req transport.CreateTaskRequest) (transport.TaskResponse, error) {
	if req.OpportunityID == nil && req.LeadID == nil {
		return transport.TaskResponse{}, apperr.InvalidArgument("task must belong to an opportunity or a lead")
	}

	priority := domain.PriorityMedium
	if req.Priority != "" {
		priority = domain.Priority(req.Priority)
		if !priority.Valid() {
			return transport.TaskResponse{}, apperr.InvalidArgument("invalid task priority")
		}
	}

	owner, err := s.ownerOrActor(ctx, req.OwnerID)
	if err != nil {
		return transport.TaskResponse{}, err
	}

	if req.OpportunityID != nil {
		if _, err := s.repo.GetOpportunity(ctx, *req.OpportunityID); err != nil {
			return transport.TaskResponse{}, err
		}
	}
	if req.LeadID != nil {
		if _, err := s.repo.GetLead(ctx, *req.LeadID); err != nil {
			return transport.TaskResponse{}, err
		}
	}

	task, err := s.repo.CreateTask(ctx, repository.CreateTaskParams{
		OpportunityID: req.OpportunityID,
		LeadID:        req.LeadID,
		Title:         sanitize.Line(req.Title),
		Description:   sanitize.Text(req.Description),
		Priority:      priority,
		DueDate:       req.DueDate,
		OwnerID:       owner,
	})
	if err != nil {
		return transport.TaskResponse{}, err
	}
	return ToTaskResponse(task), nil
}

// UpdateTaskStatus moves a task to a new status.
func (s *Service) UpdateTaskStatus(ctx context.Context, id uuid.UUID, req transport.UpdateTaskStatusRequest) (transport.TaskResponse, error) {
	status := domain.TaskStatus(req.Status)
	if !status.Valid() {
		return transport.TaskResponse{}, apperr.InvalidArgument("invalid task status")
	}
	task, err := s.repo.UpdateTaskStatus(ctx, id, status)
	if err != nil {
		return transport.TaskResponse{}, err
	}
	return ToTaskResponse(task), nil
}

// Conversations

// CreateConversation appends a record to the activity log, authored by the acting user.
func (s *Service) CreateConversation(ctx context.Context, req transport.CreateConversationRequest) (transport.ConversationResponse, error) {
	params := repository.CreateConversationParams{
		LeadID:        req.LeadID,
		OpportunityID: req.OpportunityID,
		ClientID:      req.ClientID,
		CompanyID:     req.CompanyID,
		Kind:          domain.ConversationNote,
		Content:       sanitize.Text(req.Content),
		Outcome:       sanitize.TextPtr(req.Outcome),
		NextStep:      sanitize.TextPtr(req.NextStep),
		FollowUpDate:  req.FollowUpDate,
	}
	if params.Content == "" {
		return transport.ConversationResponse{}, apperr.InvalidArgument("conversation content is empty")
	}
	if !params.HasReference() {
		return transport.ConversationResponse{}, apperr.InvalidArgument("conversation must reference a lead, opportunity, client or company")
	}
	if req.Kind != "" {
		params.Kind = domain.ConversationKind(req.Kind)
		if !params.Kind.Valid() {
			return transport.ConversationResponse{}, apperr.InvalidArgument("invalid conversation kind")
		}
	}

	author, err := s.actor(ctx)
	if err != nil {
		return transport.ConversationResponse{}, err
	}
	params.AuthorID = author

	rec, err := s.repo.CreateConversation(ctx, params)
	if err != nil {
		return transport.ConversationResponse{}, err
	}
	return ToConversationResponse(rec), nil
}

// ListConversations returns the records matching every supplied reference, newest first.
func (s *Service) ListConversations(ctx context.Context, req transport.ListConversationsRequest) (transport.ConversationListResponse, error) {
	var (
		selector repository.ConversationSelector
		err      error
	)
	if selector.LeadID, err = parseOptionalID(req.LeadID, "leadId"); err != nil {
		return transport.ConversationListResponse{}, err
	}
	if selector.OpportunityID, err = parseOptionalID(req.OpportunityID, "opportunityId"); err != nil {
		return transport.ConversationListResponse{}, err
	}
	if selector.ClientID, err = parseOptionalID(req.ClientID, "clientId"); err != nil {
		return transport.ConversationListResponse{}, err
	}
	if selector.CompanyID, err = parseOptionalID(req.CompanyID, "companyId"); err != nil {
		return transport.ConversationListResponse{}, err
	}
	if selector.IsEmpty() {
		return transport.ConversationListResponse{}, apperr.InvalidArgument("at least one of leadId, opportunityId, clientId or companyId is required")
	}

	recs, err := s.repo.ListConversations(ctx, selector)
	if err != nil {
		return transport.ConversationListResponse{}, err
	}
	return transport.ConversationListResponse{Items: ToConversationResponses(recs)}, nil
}

// UpdateConversation edits the content fields of a record. References are
// changed only through relinking.
func (s *Service) UpdateConversation(ctx context.Context, id uuid.UUID, req transport.UpdateConversationRequest) (transport.ConversationResponse, error) {
	edits := repository.ConversationContentEdits{
		Content:      sanitize.TextPtr(req.Content),
		Outcome:      sanitize.TextPtr(req.Outcome),
		NextStep:     sanitize.TextPtr(req.NextStep),
		FollowUpDate: req.FollowUpDate,
	}
	if edits.Content != nil && *edits.Content == "" {
		return transport.ConversationResponse{}, apperr.InvalidArgument("conversation content is empty")
	}

	var (
		rec repository.ConversationRecord
		err error
	)
	if edits.IsEmpty() {
		rec, err = s.repo.GetConversation(ctx, id)
	} else {
		rec, err = s.repo.UpdateConversationContent(ctx, id, edits)
	}
	if err != nil {
		return transport.ConversationResponse{}, err
	}
	return ToConversationResponse(rec), nil
}

// Clients

// GetClient retrieves a client by ID.
func (s *Service) GetClient(ctx context.Context, id uuid.UUID) (transport.ClientResponse, error) {
	client, err := s.repo.GetClient(ctx, id)
	if err != nil {
		return transport.ClientResponse{}, err
	}
	return ToClientResponse(client), nil
}

func (s *Service) fieldEdits(f transport.OpportunityFields) repository.OpportunityFieldEdits {
	edits := repository.OpportunityFieldEdits{
		Title:             sanitize.LinePtr(f.Title),
		ValueCents:        f.ValueCents,
		Currency:          f.Currency,
		OwnerID:           f.OwnerID,
		ContactName:       sanitize.LinePtr(f.ContactName),
		ContactEmail:      f.ContactEmail,
		ContactPhone:      s.phones.E164Ptr(f.ContactPhone),
		CompanyName:       sanitize.LinePtr(f.CompanyName),
		ExpectedCloseDate: f.ExpectedCloseDate,
	}
	return edits
}

func (s *Service) actor(ctx context.Context) (uuid.UUID, error) {
	if s.identity == nil {
		return uuid.Nil, apperr.Unauthorized("acting user is unknown")
	}
	return s.identity.ActorID(ctx)
}

func (s *Service) ownerOrActor(ctx context.Context, owner *uuid.UUID) (uuid.UUID, error) {
	if owner != nil && *owner != uuid.Nil {
		return *owner, nil
	}
	return s.actor(ctx)
}

func toTransitionResponse(res transition.Result) transport.TransitionResponse {
	resp := transport.TransitionResponse{
		Opportunity:  ToOpportunityResponse(res.Opportunity),
		CreatedTasks: ToTaskResponses(res.CreatedTasks),
		Changed:      res.Changed,
	}
	if res.Conversation != nil {
		conv := ToConversationResponse(*res.Conversation)
		resp.Conversation = &conv
	}
	return resp
}

// parseStage accepts catalog stages only. The engine itself tolerates
// unknown keys; the API does not create them.
func parseStage(raw string) (domain.Stage, error) {
	stage, ok := domain.ParseStage(raw)
	if !ok {
		return "", apperr.InvalidArgument("unknown stage " + strconv.Quote(strings.TrimSpace(raw)))
	}
	return stage, nil
}

func parseOptionalID(raw, field string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.InvalidArgument("invalid " + field)
	}
	return &id, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
