// Package lineage rewrites conversation references so activity history
// follows a contact from lead to opportunity to client.
package lineage

import (
	"context"

	"crm_backend/internal/events"
	"crm_backend/internal/pipeline/repository"
	"crm_backend/platform/apperr"
	"crm_backend/platform/clock"
	"crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Targets are the references to write. Nil fields keep their current value.
type Targets struct {
	OpportunityID *uuid.UUID
	ClientID      *uuid.UUID
	CompanyID     *uuid.UUID
}

func (t Targets) links() repository.ConversationLinks {
	return repository.ConversationLinks{
		OpportunityID: t.OpportunityID,
		ClientID:      t.ClientID,
		CompanyID:     t.CompanyID,
	}
}

// Source selects the records a bulk relink rewrites. Exactly one field must be set.
type Source struct {
	FromLeadID        *uuid.UUID
	FromOpportunityID *uuid.UUID
}

// Linker is the only component that changes conversation references.
type Linker struct {
	repo     repository.ConversationLinker
	eventBus events.Publisher
	clock    clock.Clock
	log      *logger.Logger
}

// New creates a linker. eventBus may be nil.
func New(repo repository.ConversationLinker, eventBus events.Publisher, clk clock.Clock, log *logger.Logger) *Linker {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Linker{repo: repo, eventBus: eventBus, clock: clk, log: log}
}

// RelinkOne sets the supplied references on a single record.
func (l *Linker) RelinkOne(ctx context.Context, conversationID uuid.UUID, targets Targets) (repository.ConversationRecord, error) {
	links := targets.links()
	if links.IsEmpty() {
		return repository.ConversationRecord{}, apperr.InvalidArgument("at least one relink target is required").WithOp("relink one")
	}
	return l.repo.RelinkConversation(ctx, conversationID, links)
}

// RelinkAll overwrites the supplied references on every record pointing at
// the source and returns how many records were updated. Matching records are
// rewritten unconditionally in one set-based update.
func (l *Linker) RelinkAll(ctx context.Context, source Source, targets Targets) (int64, error) {
	const op = "relink all"

	selector, kind, id, err := source.selector()
	if err != nil {
		return 0, err.WithOp(op)
	}
	links := targets.links()
	if links.IsEmpty() {
		return 0, apperr.InvalidArgument("at least one relink target is required").WithOp(op)
	}

	updated, rerr := l.repo.BulkRelinkConversations(ctx, selector, links)
	if rerr != nil {
		return 0, rerr
	}

	l.log.WithContext(ctx).Relinked(kind, id.String(), updated)
	if l.eventBus != nil {
		l.eventBus.Publish(ctx, events.ConversationsRelinked{
			BaseEvent:         events.NewBaseEvent(l.clock.Now()),
			FromLeadID:        source.FromLeadID,
			FromOpportunityID: source.FromOpportunityID,
			ToOpportunityID:   targets.OpportunityID,
			ToClientID:        targets.ClientID,
			ToCompanyID:       targets.CompanyID,
			Updated:           updated,
		})
	}
	return updated, nil
}

func (s Source) selector() (repository.ConversationSelector, string, uuid.UUID, *apperr.Error) {
	switch {
	case s.FromLeadID != nil && s.FromOpportunityID != nil:
		return repository.ConversationSelector{}, "", uuid.Nil, apperr.InvalidArgument("specify either a source lead or a source opportunity, not both")
	case s.FromLeadID != nil:
		return repository.ConversationSelector{LeadID: s.FromLeadID}, "lead", *s.FromLeadID, nil
	case s.FromOpportunityID != nil:
		return repository.ConversationSelector{OpportunityID: s.FromOpportunityID}, "opportunity", *s.FromOpportunityID, nil
	default:
		return repository.ConversationSelector{}, "", uuid.Nil, apperr.InvalidArgument("a source lead or source opportunity is required")
	}
}
