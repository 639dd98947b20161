// Package transition moves opportunities between pipeline stages.
// It is the only writer of an opportunity's stage and probability.
package transition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm_backend/internal/events"
	"crm_backend/internal/pipeline/domain"
	"crm_backend/internal/pipeline/repository"
	"crm_backend/platform/apperr"
	"crm_backend/platform/clock"
	"crm_backend/platform/lock"
	"crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Repository is the storage the orchestrator writes through.
type Repository interface {
	GetOpportunity(ctx context.Context, id uuid.UUID) (repository.Opportunity, error)
	UpdateOpportunity(ctx context.Context, id uuid.UUID, params repository.UpdateOpportunityParams) (repository.Opportunity, error)
	ApplyStageChange(ctx context.Context, change repository.StageChange) (repository.StageChangeResult, error)
}

// IdentityProvider resolves the acting user for a request.
type IdentityProvider interface {
	ActorID(ctx context.Context) (uuid.UUID, error)
}

// IdentityFunc adapts a function to IdentityProvider.
type IdentityFunc func(ctx context.Context) (uuid.UUID, error)

func (f IdentityFunc) ActorID(ctx context.Context) (uuid.UUID, error) { return f(ctx) }

// StaticIdentity always reports the same actor.
type StaticIdentity uuid.UUID

func (s StaticIdentity) ActorID(context.Context) (uuid.UUID, error) { return uuid.UUID(s), nil }

// Options tune a single transition.
type Options struct {
	// Probability overrides the stage default when non-nil, including zero.
	Probability *int
	// BaseDate anchors generated task due dates. Defaults to now.
	BaseDate *time.Time
	// GenerateTasks defaults to true when nil.
	GenerateTasks *bool
	// Fields are applied together with the stage change, or alone when the
	// stage does not change.
	Fields repository.OpportunityFieldEdits
	// AttachLeadID links generated tasks to a lead in addition to the opportunity.
	AttachLeadID *uuid.UUID
}

// Result is the outcome of a transition.
type Result struct {
	Opportunity  repository.Opportunity
	CreatedTasks []repository.Task
	Conversation *repository.ConversationRecord
	Changed      bool
}

// Orchestrator applies stage transitions, seeding template tasks and logging
// one activity note per real stage change. Transitions of the same
// opportunity are serialised through the Locker.
type Orchestrator struct {
	repo     Repository
	locker   lock.Locker
	clock    clock.Clock
	identity IdentityProvider
	eventBus events.Publisher
	log      *logger.Logger
}

// New creates an orchestrator. A nil locker falls back to an in-process
// KeyedMutex, a nil clock uses the system clock and a nil bus disables events.
func New(repo Repository, locker lock.Locker, clk clock.Clock, identity IdentityProvider, eventBus events.Publisher, log *logger.Logger) *Orchestrator {
	if locker == nil {
		locker = lock.NewKeyedMutex(0)
	}
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = logger.Discard()
	}
	if identity == nil {
		identity = IdentityFunc(func(context.Context) (uuid.UUID, error) {
			return uuid.Nil, apperr.Unauthorized("acting user is unknown")
		})
	}
	return &Orchestrator{
		repo:     repo,
		locker:   locker,
		clock:    clk,
		identity: identity,
		eventBus: eventBus,
		log:      log,
	}
}

// LockKey is the lock key guarding one opportunity.
func LockKey(opportunityID uuid.UUID) string {
	return "opportunity:" + opportunityID.String()
}

// Transition moves an opportunity to target.
func (o *Orchestrator) Transition(ctx context.Context, opportunityID uuid.UUID, target domain.Stage, opts Options) (Result, error) {
	const op = "transition"

	if target == domain.StageNone {
		return Result{}, apperr.InvalidArgument("target stage is required").WithOp(op)
	}
	generate := opts.GenerateTasks == nil || *opts.GenerateTasks
	if opts.GenerateTasks != nil && *opts.GenerateTasks && !target.Known() {
		return Result{}, apperr.InvalidArgument(fmt.Sprintf("unknown stage %q cannot generate tasks", target)).WithOp(op)
	}
	if err := validateProbability(opts.Probability, op); err != nil {
		return Result{}, err
	}

	actorID, err := o.identity.ActorID(ctx)
	if err != nil {
		return Result{}, err
	}

	unlock, err := o.acquire(ctx, opportunityID, op)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	current, err := o.repo.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return Result{}, err
	}

	if current.Stage == target {
		return o.resave(ctx, current, opts)
	}

	probability := domain.ProbabilityFor(target)
	if opts.Probability != nil {
		probability = *opts.Probability
	}

	var tasks []repository.CreateTaskParams
	if generate && !domain.IsClosed(target) {
		tasks = o.planTasks(current, target, actorID, opts)
	}

	version := current.Version
	applied, err := o.repo.ApplyStageChange(ctx, repository.StageChange{
		OpportunityID: opportunityID,
		Update: repository.UpdateOpportunityParams{
			Fields:          opts.Fields,
			Stage:           &target,
			Probability:     &probability,
			ExpectedVersion: &version,
		},
		Tasks: tasks,
		Note: repository.CreateConversationParams{
			OpportunityID: &current.ID,
			Kind:          domain.ConversationNote,
			Content:       Summary(current.Stage, target, probability, len(tasks)),
			AuthorID:      actorID,
		},
	})
	if err != nil {
		return Result{}, err
	}
	updated := applied.Opportunity

	o.log.WithContext(ctx).StageTransition(updated.ID.String(), string(current.Stage), string(target), updated.Probability, len(applied.Tasks))
	if o.eventBus != nil {
		o.eventBus.Publish(ctx, events.OpportunityStageChanged{
			BaseEvent:     events.NewBaseEvent(o.clock.Now()),
			OpportunityID: updated.ID,
			FromStage:     string(current.Stage),
			ToStage:       string(target),
			Probability:   updated.Probability,
			TasksCreated:  len(applied.Tasks),
			ActorID:       actorID,
			LeadID:        updated.LeadID,
		})
	}

	return Result{
		Opportunity:  updated,
		CreatedTasks: applied.Tasks,
		Conversation: &applied.Note,
		Changed:      true,
	}, nil
}

// Edit saves field and probability edits on whatever stage the opportunity is
// at when the lock is held. It never changes the stage.
func (o *Orchestrator) Edit(ctx context.Context, opportunityID uuid.UUID, opts Options) (Result, error) {
	const op = "edit opportunity"

	if err := validateProbability(opts.Probability, op); err != nil {
		return Result{}, err
	}

	unlock, err := o.acquire(ctx, opportunityID, op)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	current, err := o.repo.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return Result{}, err
	}
	return o.resave(ctx, current, opts)
}

func (o *Orchestrator) acquire(ctx context.Context, opportunityID uuid.UUID, op string) (lock.Unlock, error) {
	unlock, err := o.locker.Acquire(ctx, LockKey(opportunityID))
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, apperr.Wrap(apperr.KindConflict, "opportunity is being updated by another request", err).WithOp(op)
		}
		return nil, fmt.Errorf("%s: acquire lock: %w", op, err)
	}
	return unlock, nil
}

func validateProbability(p *int, op string) error {
	if p != nil && !domain.ValidProbability(*p) {
		return apperr.InvalidArgument("probability must be between 0 and 100").WithOp(op)
	}
	return nil
}

// resave persists field edits on an unchanged stage. An explicit probability
// counts as a field edit here. Nothing else happens.
func (o *Orchestrator) resave(ctx context.Context, current repository.Opportunity, opts Options) (Result, error) {
	result := Result{Opportunity: current, CreatedTasks: []repository.Task{}}
	if opts.Fields.IsEmpty() && (opts.Probability == nil || *opts.Probability == current.Probability) {
		return result, nil
	}

	version := current.Version
	updated, err := o.repo.UpdateOpportunity(ctx, current.ID, repository.UpdateOpportunityParams{
		Fields:          opts.Fields,
		Probability:     opts.Probability,
		ExpectedVersion: &version,
	})
	if err != nil {
		return Result{}, err
	}
	result.Opportunity = updated
	return result, nil
}

// planTasks builds the template tasks for target. The owner follows an owner
// edit made in the same transition.
func (o *Orchestrator) planTasks(opp repository.Opportunity, target domain.Stage, actorID uuid.UUID, opts Options) []repository.CreateTaskParams {
	specs := domain.TasksFor(target)
	if len(specs) == 0 {
		return nil
	}

	base := o.clock.Now()
	if opts.BaseDate != nil {
		base = *opts.BaseDate
	}
	owner := actorID
	switch {
	case opts.Fields.OwnerID != nil:
		owner = *opts.Fields.OwnerID
	case opp.OwnerID != nil:
		owner = *opp.OwnerID
	}
	leadID := opp.LeadID
	if opts.AttachLeadID != nil {
		leadID = opts.AttachLeadID
	}

	scheduled := domain.ExpandTasks(specs, base)
	params := make([]repository.CreateTaskParams, 0, len(scheduled))
	for _, s := range scheduled {
		params = append(params, repository.CreateTaskParams{
			OpportunityID: &opp.ID,
			LeadID:        leadID,
			Title:         s.Title,
			Description:   s.Description,
			Priority:      s.Priority,
			DueDate:       s.DueDate,
			OwnerID:       owner,
		})
	}
	return params
}

// Summary is the activity note written for a stage change.
func Summary(from, to domain.Stage, probability, tasksCreated int) string {
	fromKey := string(from)
	if from == domain.StageNone {
		fromKey = "none"
	}
	return fmt.Sprintf("Stage changed from %s to %s (probability %d%%). %d follow-up task(s) created.",
		fromKey, to, probability, tasksCreated)
}
