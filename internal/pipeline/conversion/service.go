// Package conversion promotes leads into opportunities and opportunities into
// clients. Neither workflow relinks conversation history; callers use the
// lineage package for that.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crm_backend/internal/events"
	"crm_backend/internal/pipeline/domain"
	"crm_backend/internal/pipeline/repository"
	"crm_backend/internal/pipeline/transition"
	"crm_backend/platform/apperr"
	"crm_backend/platform/clock"
	"crm_backend/platform/lock"
	"crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Repository defines the data access interface needed by the conversion service.
type Repository interface {
	repository.OpportunityStore
	repository.LeadStore
	CreateConversation(ctx context.Context, params repository.CreateConversationParams) (repository.ConversationRecord, error)
	ConvertToClient(ctx context.Context, conv repository.ClientConversion) (repository.ClientConversionResult, error)
}

// Transitioner moves an opportunity to a stage.
type Transitioner interface {
	Transition(ctx context.Context, opportunityID uuid.UUID, target domain.Stage, opts transition.Options) (transition.Result, error)
}

// PromoteLeadInput configures a Lead to Opportunity conversion.
type PromoteLeadInput struct {
	// Stage defaults to gift_sent.
	Stage domain.Stage
	// ScheduleDate anchors the seeded tasks. Defaults to now.
	ScheduleDate *time.Time
	// Title defaults to the lead's company name, or its full name.
	Title      string
	ValueCents int64
	Currency   string
}

// PromoteLeadResult is the outcome of PromoteLead.
type PromoteLeadResult struct {
	Lead         repository.Lead
	Opportunity  repository.Opportunity
	Tasks        []repository.Task
	Conversation repository.ConversationRecord
}

// PromoteOpportunityResult is the outcome of PromoteOpportunity.
type PromoteOpportunityResult struct {
	Opportunity  repository.Opportunity
	Client       repository.Client
	Company      *repository.Company
	Lead         *repository.Lead
	Conversation repository.ConversationRecord
}

// Service runs the conversion workflows.
type Service struct {
	repo         Repository
	transitioner Transitioner
	locker       lock.Locker
	identity     transition.IdentityProvider
	clock        clock.Clock
	eventBus     events.Publisher
	log          *logger.Logger
}

// New creates a conversion service.
func New(repo Repository, transitioner Transitioner, locker lock.Locker, identity transition.IdentityProvider, clk clock.Clock, eventBus events.Publisher, log *logger.Logger) *Service {
	if locker == nil {
		locker = lock.NewKeyedMutex(0)
	}
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		repo:         repo,
		transitioner: transitioner,
		locker:       locker,
		identity:     identity,
		clock:        clk,
		eventBus:     eventBus,
		log:          log,
	}
}

// PromoteLead creates an opportunity from a lead, seeds the stage's tasks,
// marks the lead qualified and records the promotion.
func (s *Service) PromoteLead(ctx context.Context, leadID uuid.UUID, input PromoteLeadInput) (PromoteLeadResult, error) {
	const op = "promote lead"

	stage := input.Stage
	if stage == domain.StageNone {
		stage = domain.StageGiftSent
	}
	if !stage.Known() {
		return PromoteLeadResult{}, apperr.InvalidArgument(fmt.Sprintf("unknown stage %q", stage)).WithOp(op)
	}

	actorID, err := s.actor(ctx)
	if err != nil {
		return PromoteLeadResult{}, err
	}

	lead, err := s.repo.GetLead(ctx, leadID)
	if err != nil {
		return PromoteLeadResult{}, err
	}

	opp, err := s.repo.CreateOpportunity(ctx, opportunityFromLead(lead, input))
	if err != nil {
		return PromoteLeadResult{}, err
	}

	generate := true
	res, err := s.transitioner.Transition(ctx, opp.ID, stage, transition.Options{
		BaseDate:      input.ScheduleDate,
		GenerateTasks: &generate,
		AttachLeadID:  &lead.ID,
	})
	if err != nil {
		return PromoteLeadResult{}, err
	}

	qualified := domain.LeadStatusQualified
	lead, err = s.repo.UpdateLead(ctx, lead.ID, repository.UpdateLeadParams{Status: &qualified})
	if err != nil {
		return PromoteLeadResult{}, err
	}

	note, err := s.repo.CreateConversation(ctx, repository.CreateConversationParams{
		LeadID:        &lead.ID,
		OpportunityID: &res.Opportunity.ID,
		Kind:          domain.ConversationNote,
		Content: fmt.Sprintf("Lead %s promoted to opportunity %q at stage %s with %d follow-up task(s).",
			lead.FullName(), res.Opportunity.Title, stage, len(res.CreatedTasks)),
		AuthorID: actorID,
	})
	if err != nil {
		return PromoteLeadResult{}, err
	}

	s.log.WithContext(ctx).Info("lead_promoted",
		"lead_id", lead.ID.String(),
		"opportunity_id", res.Opportunity.ID.String(),
		"stage", string(stage),
		"tasks_created", len(res.CreatedTasks),
	)
	if s.eventBus != nil {
		s.eventBus.Publish(ctx, events.LeadPromoted{
			BaseEvent:     events.NewBaseEvent(s.clock.Now()),
			LeadID:        lead.ID,
			OpportunityID: res.Opportunity.ID,
			Stage:         string(stage),
			TasksCreated:  len(res.CreatedTasks),
			ActorID:       actorID,
		})
	}

	return PromoteLeadResult{
		Lead:         lead,
		Opportunity:  res.Opportunity,
		Tasks:        res.CreatedTasks,
		Conversation: note,
	}, nil
}

// ConversionLockKey guards the opportunity-to-client conversion of one opportunity.
func ConversionLockKey(opportunityID uuid.UUID) string {
	return "conversion:" + transition.LockKey(opportunityID)
}

// PromoteOpportunity converts an opportunity into a client, closes it as won
// and marks the originating lead as won.
func (s *Service) PromoteOpportunity(ctx context.Context, opportunityID uuid.UUID) (PromoteOpportunityResult, error) {
	const op = "promote opportunity"

	actorID, err := s.actor(ctx)
	if err != nil {
		return PromoteOpportunityResult{}, err
	}

	unlock, err := s.locker.Acquire(ctx, ConversionLockKey(opportunityID))
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return PromoteOpportunityResult{}, apperr.Wrap(apperr.KindConflict, "opportunity is already being converted", err).WithOp(op)
		}
		return PromoteOpportunityResult{}, fmt.Errorf("%s: acquire lock: %w", op, err)
	}
	defer unlock()

	opp, err := s.repo.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return PromoteOpportunityResult{}, err
	}
	if opp.ClientID != nil {
		return PromoteOpportunityResult{}, apperr.Conflict("opportunity has already been converted to a client").WithOp(op)
	}

	// Close first. A retry after a failed client write finds closed_won and
	// only writes the client.
	generate := false
	if _, err := s.transitioner.Transition(ctx, opp.ID, domain.StageClosedWon, transition.Options{GenerateTasks: &generate}); err != nil {
		return PromoteOpportunityResult{}, err
	}

	client := clientFromOpportunity(opp)
	converted, err := s.repo.ConvertToClient(ctx, repository.ClientConversion{
		OpportunityID: opp.ID,
		CompanyName:   opp.CompanyName,
		Client:        client,
		LeadID:        opp.LeadID,
		Note: repository.CreateConversationParams{
			OpportunityID: &opp.ID,
			Kind:          domain.ConversationNote,
			Content:       fmt.Sprintf("Opportunity %q won and converted to client %s.", opp.Title, client.Name),
			AuthorID:      actorID,
		},
	})
	if err != nil {
		return PromoteOpportunityResult{}, err
	}
	opp = converted.Opportunity
	if opp.LeadID != nil && converted.Lead == nil {
		s.log.WithContext(ctx).Warn("originating lead missing during conversion", "lead_id", opp.LeadID.String())
	}

	s.log.WithContext(ctx).Info("opportunity_won",
		"opportunity_id", opp.ID.String(),
		"client_id", converted.Client.ID.String(),
	)
	if s.eventBus != nil {
		won := events.OpportunityWon{
			BaseEvent:     events.NewBaseEvent(s.clock.Now()),
			OpportunityID: opp.ID,
			ClientID:      converted.Client.ID,
			LeadID:        opp.LeadID,
			ActorID:       actorID,
		}
		if converted.Company != nil {
			won.CompanyID = &converted.Company.ID
		}
		s.eventBus.Publish(ctx, won)
	}

	return PromoteOpportunityResult{
		Opportunity:  opp,
		Client:       converted.Client,
		Company:      converted.Company,
		Lead:         converted.Lead,
		Conversation: converted.Note,
	}, nil
}

func (s *Service) actor(ctx context.Context) (uuid.UUID, error) {
	if s.identity == nil {
		return uuid.Nil, apperr.Unauthorized("acting user is unknown")
	}
	return s.identity.ActorID(ctx)
}

func opportunityFromLead(lead repository.Lead, input PromoteLeadInput) repository.CreateOpportunityParams {
	title := strings.TrimSpace(input.Title)
	if title == "" && lead.CompanyName != nil {
		title = strings.TrimSpace(*lead.CompanyName)
	}
	if title == "" {
		title = lead.FullName()
	}

	return repository.CreateOpportunityParams{
		Title:        title,
		Stage:        domain.StageNone,
		Probability:  0,
		ValueCents:   input.ValueCents,
		Currency:     input.Currency,
		LeadID:       &lead.ID,
		OwnerID:      lead.OwnerID,
		ContactName:  lead.FullName(),
		ContactEmail: deref(lead.Email),
		ContactPhone: deref(lead.Phone),
		CompanyName:  deref(lead.CompanyName),
	}
}

func clientFromOpportunity(opp repository.Opportunity) repository.CreateClientParams {
	name := strings.TrimSpace(opp.ContactName)
	if name == "" {
		name = opp.Title
	}
	return repository.CreateClientParams{
		Name:          name,
		Email:         nonEmpty(opp.ContactEmail),
		Phone:         nonEmpty(opp.ContactPhone),
		OpportunityID: &opp.ID,
		OwnerID:       opp.OwnerID,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
