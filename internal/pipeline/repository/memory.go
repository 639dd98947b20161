package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"crm_backend/internal/pipeline/domain"
	"crm_backend/platform/apperr"
	"crm_backend/platform/clock"

	"github.com/google/uuid"
)

func errNoReference() error {
	return apperr.InvalidArgument("conversation must reference a lead, opportunity, client or company")
}

// MemoryStore is an in-process PipelineRepository used by tests and local runs
// without a database. It mirrors the Postgres semantics: partial updates,
// version checks, and set-based relinking.
type MemoryStore struct {
	mu    sync.RWMutex
	clock clock.Clock
	seq   int64

	opportunities map[uuid.UUID]Opportunity
	tasks         map[uuid.UUID]memTask
	conversations map[uuid.UUID]memConversation
	leads         map[uuid.UUID]Lead
	clients       map[uuid.UUID]Client
	companies     map[uuid.UUID]Company
}

type memTask struct {
	Task
	seq int64
}

type memConversation struct {
	ConversationRecord
	seq int64
}

// NewMemoryStore creates an empty store. A nil clock uses the system clock.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.System{}
	}
	return &MemoryStore{
		clock:         c,
		opportunities: make(map[uuid.UUID]Opportunity),
		tasks:         make(map[uuid.UUID]memTask),
		conversations: make(map[uuid.UUID]memConversation),
		leads:         make(map[uuid.UUID]Lead),
		clients:       make(map[uuid.UUID]Client),
		companies:     make(map[uuid.UUID]Company),
	}
}

func (m *MemoryStore) next() int64 {
	m.seq++
	return m.seq
}

// TaskCount returns the number of stored tasks.
func (m *MemoryStore) TaskCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}

// ConversationCount returns the number of stored conversation records.
func (m *MemoryStore) ConversationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conversations)
}

// ClientCount returns the number of stored clients.
func (m *MemoryStore) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Opportunities

func (m *MemoryStore) GetOpportunity(_ context.Context, id uuid.UUID) (Opportunity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	opp, ok := m.opportunities[id]
	if !ok {
		return Opportunity{}, apperr.NotFound("opportunity not found").WithOp("get opportunity")
	}
	return opp, nil
}

func (m *MemoryStore) CreateOpportunity(_ context.Context, params CreateOpportunityParams) (Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	opp := Opportunity{
		ID:                uuid.New(),
		Title:             params.Title,
		Stage:             params.Stage,
		Probability:       domain.ClampProbability(params.Probability),
		ValueCents:        params.ValueCents,
		Currency:          currencyOrDefault(params.Currency),
		LeadID:            clonePtr(params.LeadID),
		OwnerID:           clonePtr(params.OwnerID),
		ContactName:       params.ContactName,
		ContactEmail:      params.ContactEmail,
		ContactPhone:      params.ContactPhone,
		CompanyName:       params.CompanyName,
		ExpectedCloseDate: clonePtr(params.ExpectedCloseDate),
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	m.opportunities[opp.ID] = opp
	return opp, nil
}

func (m *MemoryStore) UpdateOpportunity(_ context.Context, id uuid.UUID, params UpdateOpportunityParams) (Opportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateOpportunity(id, params)
}

// updateOpportunity validates before it writes, so a failure leaves the row untouched.
func (m *MemoryStore) updateOpportunity(id uuid.UUID, params UpdateOpportunityParams) (Opportunity, error) {
	opp, ok := m.opportunities[id]
	if !ok {
		return Opportunity{}, apperr.NotFound("opportunity not found").WithOp("update opportunity")
	}
	if params.isEmpty() {
		return opp, nil
	}
	if params.ExpectedVersion != nil && *params.ExpectedVersion != opp.Version {
		return Opportunity{}, apperr.Conflict("opportunity was modified concurrently").WithOp("update opportunity")
	}

	f := params.Fields
	setIf(&opp.Title, f.Title)
	setIf(&opp.ValueCents, f.ValueCents)
	setIf(&opp.Currency, f.Currency)
	setPtrIf(&opp.OwnerID, f.OwnerID)
	setIf(&opp.ContactName, f.ContactName)
	setIf(&opp.ContactEmail, f.ContactEmail)
	setIf(&opp.ContactPhone, f.ContactPhone)
	setIf(&opp.CompanyName, f.CompanyName)
	setPtrIf(&opp.ExpectedCloseDate, f.ExpectedCloseDate)
	setIf(&opp.Stage, params.Stage)
	if params.Probability != nil {
		opp.Probability = domain.ClampProbability(*params.Probability)
	}
	setPtrIf(&opp.ClientID, params.ClientID)
	opp.Version++
	opp.UpdatedAt = m.clock.Now()

	m.opportunities[id] = opp
	return opp, nil
}

// Tasks

func (m *MemoryStore) CreateTask(_ context.Context, params CreateTaskParams) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertTask(params), nil
}

func (m *MemoryStore) CreateTasks(_ context.Context, params []CreateTaskParams) ([]Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, 0, len(params))
	for _, p := range params {
		out = append(out, m.insertTask(p))
	}
	return out, nil
}

func (m *MemoryStore) insertTask(p CreateTaskParams) Task {
	now := m.clock.Now()
	priority := p.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	task := Task{
		ID:            uuid.New(),
		OpportunityID: clonePtr(p.OpportunityID),
		LeadID:        clonePtr(p.LeadID),
		Title:         p.Title,
		Description:   p.Description,
		Priority:      priority,
		DueDate:       p.DueDate,
		Status:        domain.TaskStatusPending,
		OwnerID:       p.OwnerID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.tasks[task.ID] = memTask{Task: task, seq: m.next()}
	return task
}

func (m *MemoryStore) GetTask(_ context.Context, id uuid.UUID) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, apperr.NotFound("task not found").WithOp("get task")
	}
	return t.Task, nil
}

func (m *MemoryStore) ListTasksByOpportunity(_ context.Context, opportunityID uuid.UUID) ([]Task, error) {
	return m.listTasks(func(t Task) bool { return matchRef(&opportunityID, t.OpportunityID) }), nil
}

func (m *MemoryStore) ListTasksByLead(_ context.Context, leadID uuid.UUID) ([]Task, error) {
	return m.listTasks(func(t Task) bool { return matchRef(&leadID, t.LeadID) }), nil
}

func (m *MemoryStore) listTasks(keep func(Task) bool) []Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]memTask, 0)
	for _, t := range m.tasks {
		if keep(t.Task) {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].DueDate.Equal(matched[j].DueDate) {
			return matched[i].DueDate.Before(matched[j].DueDate)
		}
		return matched[i].seq < matched[j].seq
	})
	out := make([]Task, len(matched))
	for i, t := range matched {
		out[i] = t.Task
	}
	return out
}

func (m *MemoryStore) UpdateTaskStatus(_ context.Context, id uuid.UUID, status domain.TaskStatus) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, apperr.NotFound("task not found").WithOp("update task status")
	}
	t.Status = status
	t.UpdatedAt = m.clock.Now()
	m.tasks[id] = t
	return t.Task, nil
}

// Conversations

func (m *MemoryStore) CreateConversation(_ context.Context, params CreateConversationParams) (ConversationRecord, error) {
	if !params.HasReference() {
		return ConversationRecord{}, errNoReference()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertConversation(params), nil
}

func (m *MemoryStore) insertConversation(params CreateConversationParams) ConversationRecord {
	kind := params.Kind
	if kind == "" {
		kind = domain.ConversationNote
	}
	rec := ConversationRecord{
		ID:            uuid.New(),
		LeadID:        clonePtr(params.LeadID),
		OpportunityID: clonePtr(params.OpportunityID),
		ClientID:      clonePtr(params.ClientID),
		CompanyID:     clonePtr(params.CompanyID),
		Kind:          kind,
		Content:       params.Content,
		Outcome:       clonePtr(params.Outcome),
		NextStep:      clonePtr(params.NextStep),
		FollowUpDate:  clonePtr(params.FollowUpDate),
		AuthorID:      params.AuthorID,
		CreatedAt:     m.clock.Now(),
	}
	m.conversations[rec.ID] = memConversation{ConversationRecord: rec, seq: m.next()}
	return rec
}

func (m *MemoryStore) GetConversation(_ context.Context, id uuid.UUID) (ConversationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[id]
	if !ok {
		return ConversationRecord{}, apperr.NotFound("conversation not found").WithOp("get conversation")
	}
	return c.ConversationRecord, nil
}

func (m *MemoryStore) ListConversations(_ context.Context, selector ConversationSelector) ([]ConversationRecord, error) {
	if selector.IsEmpty() {
		return nil, apperr.InvalidArgument("conversation selector is empty")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]memConversation, 0)
	for _, c := range m.conversations {
		if selector.Matches(c.ConversationRecord) {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].seq > matched[j].seq
	})
	out := make([]ConversationRecord, len(matched))
	for i, c := range matched {
		out[i] = c.ConversationRecord
	}
	return out, nil
}

func (m *MemoryStore) UpdateConversationContent(_ context.Context, id uuid.UUID, edits ConversationContentEdits) (ConversationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return ConversationRecord{}, apperr.NotFound("conversation not found").WithOp("update conversation")
	}
	setIf(&c.Content, edits.Content)
	setPtrIf(&c.Outcome, edits.Outcome)
	setPtrIf(&c.NextStep, edits.NextStep)
	setPtrIf(&c.FollowUpDate, edits.FollowUpDate)
	m.conversations[id] = c
	return c.ConversationRecord, nil
}

func (m *MemoryStore) RelinkConversation(_ context.Context, id uuid.UUID, links ConversationLinks) (ConversationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return ConversationRecord{}, apperr.NotFound("conversation not found").WithOp("relink conversation")
	}
	applyLinks(&c.ConversationRecord, links)
	m.conversations[id] = c
	return c.ConversationRecord, nil
}

func (m *MemoryStore) BulkRelinkConversations(_ context.Context, selector ConversationSelector, links ConversationLinks) (int64, error) {
	if selector.IsEmpty() {
		return 0, apperr.InvalidArgument("relink selector is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, c := range m.conversations {
		if !selector.Matches(c.ConversationRecord) {
			continue
		}
		applyLinks(&c.ConversationRecord, links)
		m.conversations[id] = c
		n++
	}
	return n, nil
}

func applyLinks(rec *ConversationRecord, links ConversationLinks) {
	setPtrIf(&rec.OpportunityID, links.OpportunityID)
	setPtrIf(&rec.ClientID, links.ClientID)
	setPtrIf(&rec.CompanyID, links.CompanyID)
}

// Leads

func (m *MemoryStore) GetLead(_ context.Context, id uuid.UUID) (Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lead, ok := m.leads[id]
	if !ok {
		return Lead{}, apperr.NotFound("lead not found").WithOp("get lead")
	}
	return lead, nil
}

func (m *MemoryStore) CreateLead(_ context.Context, params CreateLeadParams) (Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	lead := Lead{
		ID:          uuid.New(),
		FirstName:   params.FirstName,
		LastName:    params.LastName,
		Email:       clonePtr(params.Email),
		Phone:       clonePtr(params.Phone),
		CompanyName: clonePtr(params.CompanyName),
		Source:      clonePtr(params.Source),
		Status:      domain.LeadStatusNew,
		OwnerID:     clonePtr(params.OwnerID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.leads[lead.ID] = lead
	return lead, nil
}

func (m *MemoryStore) UpdateLead(_ context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[id]
	if !ok {
		return Lead{}, apperr.NotFound("lead not found").WithOp("update lead")
	}
	if params.IsEmpty() {
		return lead, nil
	}
	setIf(&lead.FirstName, params.FirstName)
	setIf(&lead.LastName, params.LastName)
	setPtrIf(&lead.Email, params.Email)
	setPtrIf(&lead.Phone, params.Phone)
	setPtrIf(&lead.CompanyName, params.CompanyName)
	setPtrIf(&lead.Source, params.Source)
	setIf(&lead.Status, params.Status)
	setPtrIf(&lead.OwnerID, params.OwnerID)
	lead.UpdatedAt = m.clock.Now()
	m.leads[id] = lead
	return lead, nil
}

// Clients and companies

func (m *MemoryStore) GetClient(_ context.Context, id uuid.UUID) (Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	if !ok {
		return Client{}, apperr.NotFound("client not found").WithOp("get client")
	}
	return c, nil
}

func (m *MemoryStore) CreateClient(_ context.Context, params CreateClientParams) (Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertClient(params), nil
}

func (m *MemoryStore) insertClient(params CreateClientParams) Client {
	c := Client{
		ID:            uuid.New(),
		Name:          params.Name,
		Email:         clonePtr(params.Email),
		Phone:         clonePtr(params.Phone),
		CompanyID:     clonePtr(params.CompanyID),
		OpportunityID: clonePtr(params.OpportunityID),
		OwnerID:       clonePtr(params.OwnerID),
		CreatedAt:     m.clock.Now(),
	}
	m.clients[c.ID] = c
	return c
}

func (m *MemoryStore) GetCompany(_ context.Context, id uuid.UUID) (Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.companies[id]
	if !ok {
		return Company{}, apperr.NotFound("company not found").WithOp("get company")
	}
	return c, nil
}

func (m *MemoryStore) CreateCompany(_ context.Context, name string) (Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertCompany(name), nil
}

func (m *MemoryStore) insertCompany(name string) Company {
	c := Company{ID: uuid.New(), Name: name, CreatedAt: m.clock.Now()}
	m.companies[c.ID] = c
	return c
}

// Workflows

func (m *MemoryStore) ApplyStageChange(_ context.Context, change StageChange) (StageChangeResult, error) {
	if !change.Note.HasReference() {
		return StageChangeResult{}, errNoReference()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	opp, err := m.updateOpportunity(change.OpportunityID, change.Update)
	if err != nil {
		return StageChangeResult{}, err
	}
	tasks := make([]Task, 0, len(change.Tasks))
	for _, p := range change.Tasks {
		tasks = append(tasks, m.insertTask(p))
	}
	return StageChangeResult{
		Opportunity: opp,
		Tasks:       tasks,
		Note:        m.insertConversation(change.Note),
	}, nil
}

func (m *MemoryStore) ConvertToClient(_ context.Context, conv ClientConversion) (ClientConversionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	opp, ok := m.opportunities[conv.OpportunityID]
	if !ok {
		return ClientConversionResult{}, apperr.NotFound("opportunity not found").WithOp("link client")
	}
	if opp.ClientID != nil {
		return ClientConversionResult{}, apperr.Conflict("opportunity has already been converted to a client").WithOp("link client")
	}

	var result ClientConversionResult
	if name := strings.TrimSpace(conv.CompanyName); name != "" {
		company := m.insertCompany(name)
		result.Company = &company
		conv.Client.CompanyID = &company.ID
		conv.Note.CompanyID = &company.ID
	}
	result.Client = m.insertClient(conv.Client)
	conv.Note.ClientID = &result.Client.ID

	opp.ClientID = clonePtr(&result.Client.ID)
	opp.Version++
	opp.UpdatedAt = m.clock.Now()
	m.opportunities[opp.ID] = opp
	result.Opportunity = opp

	if conv.LeadID != nil {
		if lead, ok := m.leads[*conv.LeadID]; ok {
			lead.Status = domain.LeadStatusWon
			lead.UpdatedAt = m.clock.Now()
			m.leads[lead.ID] = lead
			result.Lead = &lead
		}
	}

	result.Note = m.insertConversation(conv.Note)
	return result, nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func setPtrIf[T any](dst **T, v *T) {
	if v != nil {
		cp := *v
		*dst = &cp
	}
}
