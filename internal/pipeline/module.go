// Package pipeline provides the opportunity lifecycle bounded context module.
// This file wires storage, the transition and conversion engines and the
// HTTP handlers together.
package pipeline

import (
	"context"

	"crm_backend/internal/events"
	apphttp "crm_backend/internal/http"
	"crm_backend/internal/pipeline/conversion"
	"crm_backend/internal/pipeline/handler"
	"crm_backend/internal/pipeline/lineage"
	"crm_backend/internal/pipeline/management"
	"crm_backend/internal/pipeline/repository"
	"crm_backend/internal/pipeline/transition"
	"crm_backend/platform/clock"
	"crm_backend/platform/httpkit"
	"crm_backend/platform/lock"
	"crm_backend/platform/logger"
	"crm_backend/platform/phone"
	"crm_backend/platform/validator"
)

// Deps are the collaborators the module is built from.
type Deps struct {
	Repo      repository.PipelineRepository
	Locker    lock.Locker
	EventBus  events.Bus
	Validator *validator.Validator
	Phones    phone.Normalizer
	Clock     clock.Clock
	Logger    *logger.Logger
}

// Module is the pipeline bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates and initializes the pipeline module. The acting user of
// every operation is the authenticated request user.
func NewModule(deps Deps) *Module {
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.System{}
	}
	identity := transition.IdentityFunc(httpkit.ActorFromContext)

	orch := transition.New(deps.Repo, deps.Locker, clk, identity, deps.EventBus, log)
	linker := lineage.New(deps.Repo, deps.EventBus, clk, log)
	conv := conversion.New(deps.Repo, orch, deps.Locker, identity, clk, deps.EventBus, log)
	mgmt := management.New(deps.Repo, orch, identity, deps.Phones)

	if deps.EventBus != nil {
		subscribeAudit(deps.EventBus, log)
	}

	return &Module{handler: handler.New(mgmt, conv, linker, deps.Validator)}
}

// subscribeAudit records every pipeline event in the application log.
func subscribeAudit(bus events.Subscriber, log *logger.Logger) {
	audit := events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		log.WithContext(ctx).Info("pipeline event",
			"event", event.EventName(),
			"occurred_at", event.OccurredAt(),
			"payload", event,
		)
		return nil
	})
	for _, name := range []string{
		events.OpportunityStageChanged{}.EventName(),
		events.LeadPromoted{}.EventName(),
		events.OpportunityWon{}.EventName(),
		events.ConversationsRelinked{}.EventName(),
	} {
		bus.Subscribe(name, audit)
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "pipeline"
}

// RegisterRoutes mounts pipeline routes on the provided router context.
// All pipeline routes require authentication.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
