package repository

import (
	"context"
	"testing"
	"time"

	"crm_backend/internal/pipeline/domain"
	"crm_backend/platform/apperr"
	"crm_backend/platform/clock"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestMemoryStoreUpdateOpportunityVersionCheck(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(clock.Fixed(testNow))

	opp, err := store.CreateOpportunity(ctx, CreateOpportunityParams{Title: "Acme", Probability: 140})
	require.NoError(t, err)
	assert.Equal(t, 100, opp.Probability)
	assert.Equal(t, 1, opp.Version)
	assert.Equal(t, "USD", opp.Currency)

	stage := domain.StageMeeting
	updated, err := store.UpdateOpportunity(ctx, opp.ID, UpdateOpportunityParams{
		Stage:           &stage,
		Probability:     ptr(60),
		ExpectedVersion: ptr(1),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StageMeeting, updated.Stage)
	assert.Equal(t, 2, updated.Version)

	_, err = store.UpdateOpportunity(ctx, opp.ID, UpdateOpportunityParams{
		Stage:           &stage,
		ExpectedVersion: ptr(1),
	})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = store.UpdateOpportunity(ctx, uuid.New(), UpdateOpportunityParams{Stage: &stage})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestMemoryStoreEmptyUpdateDoesNotTouchTimestamp(t *testing.T) {
	ctx := context.Background()
	now := testNow
	store := NewMemoryStore(clock.Func(func() time.Time { return now }))

	opp, err := store.CreateOpportunity(ctx, CreateOpportunityParams{Title: "Acme"})
	require.NoError(t, err)

	now = now.Add(time.Hour)
	same, err := store.UpdateOpportunity(ctx, opp.ID, UpdateOpportunityParams{})
	require.NoError(t, err)
	assert.Equal(t, opp.UpdatedAt, same.UpdatedAt)
	assert.Equal(t, opp.Version, same.Version)
}

func TestMemoryStoreBulkRelinkKeepsUnsuppliedLinks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(clock.Fixed(testNow))
	leadID := uuid.New()
	companyID := uuid.New()
	author := uuid.New()

	_, err := store.CreateConversation(ctx, CreateConversationParams{LeadID: &leadID, Content: "call", AuthorID: author})
	require.NoError(t, err)
	_, err = store.CreateConversation(ctx, CreateConversationParams{LeadID: &leadID, CompanyID: &companyID, Content: "mail", AuthorID: author})
	require.NoError(t, err)
	_, err = store.CreateConversation(ctx, CreateConversationParams{CompanyID: &companyID, Content: "other", AuthorID: author})
	require.NoError(t, err)

	oppID := uuid.New()
	n, err := store.BulkRelinkConversations(ctx, ConversationSelector{LeadID: &leadID}, ConversationLinks{OpportunityID: &oppID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	recs, err := store.ListConversations(ctx, ConversationSelector{OpportunityID: &oppID})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		require.NotNil(t, rec.LeadID)
		assert.Equal(t, leadID, *rec.LeadID)
	}
	assert.Equal(t, "mail", recs[0].Content, "newest first")
	require.NotNil(t, recs[0].CompanyID)
	assert.Equal(t, companyID, *recs[0].CompanyID)
}

func TestMemoryStoreRejectsEmptySelectors(t *testing.T) {
	store := NewMemoryStore(nil)
	_, err := store.BulkRelinkConversations(context.Background(), ConversationSelector{}, ConversationLinks{})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	_, err = store.CreateConversation(context.Background(), CreateConversationParams{Content: "orphan"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestMemoryStoreListTasksOrderedByDueDate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(clock.Fixed(testNow))
	oppID := uuid.New()
	owner := uuid.New()

	_, err := store.CreateTasks(ctx, []CreateTaskParams{
		{OpportunityID: &oppID, Title: "later", DueDate: testNow.AddDate(0, 0, 3), OwnerID: owner},
		{OpportunityID: &oppID, Title: "first", DueDate: testNow, OwnerID: owner},
		{OpportunityID: &oppID, Title: "second", DueDate: testNow, OwnerID: owner},
	})
	require.NoError(t, err)

	tasks, err := store.ListTasksByOpportunity(ctx, oppID)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{"first", "second", "later"}, []string{tasks[0].Title, tasks[1].Title, tasks[2].Title})
	assert.Equal(t, domain.TaskStatusPending, tasks[0].Status)
	assert.Equal(t, domain.PriorityMedium, tasks[0].Priority)
}

func TestMemoryStoreCopiesCallerPointersOnCreate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(clock.Fixed(testNow))

	email := "ana@example.com"
	lead, err := store.CreateLead(ctx, CreateLeadParams{FirstName: "Ana", Email: &email})
	require.NoError(t, err)

	outcome := "interested"
	leadID := lead.ID
	note, err := store.CreateConversation(ctx, CreateConversationParams{
		LeadID:   &leadID,
		Kind:     domain.ConversationNote,
		Content:  "intro call",
		Outcome:  &outcome,
		AuthorID: uuid.New(),
	})
	require.NoError(t, err)

	email = "changed@example.com"
	outcome = "changed"
	leadID = uuid.New()

	storedLead, err := store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, storedLead.Email)
	assert.Equal(t, "ana@example.com", *storedLead.Email)

	storedNote, err := store.GetConversation(ctx, note.ID)
	require.NoError(t, err)
	require.NotNil(t, storedNote.Outcome)
	assert.Equal(t, "interested", *storedNote.Outcome)
	require.NotNil(t, storedNote.LeadID)
	assert.Equal(t, lead.ID, *storedNote.LeadID)
}

func TestMemoryStoreApplyStageChangeIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(clock.Fixed(testNow))

	opp, err := store.CreateOpportunity(ctx, CreateOpportunityParams{Title: "Acme"})
	require.NoError(t, err)

	stage := domain.StageMeeting
	_, err = store.ApplyStageChange(ctx, StageChange{
		OpportunityID: opp.ID,
		Update:        UpdateOpportunityParams{Stage: &stage},
		Tasks:         []CreateTaskParams{{OpportunityID: &opp.ID, Title: "Prepare agenda", OwnerID: uuid.New()}},
		Note:          CreateConversationParams{Kind: domain.ConversationNote, Content: "moved"},
	})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	_, err = store.ApplyStageChange(ctx, StageChange{
		OpportunityID: opp.ID,
		Update:        UpdateOpportunityParams{Stage: &stage, ExpectedVersion: ptr(7)},
		Tasks:         []CreateTaskParams{{OpportunityID: &opp.ID, Title: "Prepare agenda", OwnerID: uuid.New()}},
		Note:          CreateConversationParams{OpportunityID: &opp.ID, Kind: domain.ConversationNote, Content: "moved"},
	})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	current, err := store.GetOpportunity(ctx, opp.ID)
	require.NoError(t, err)
	assert.Equal(t, opp.Stage, current.Stage)
	assert.Equal(t, 0, store.TaskCount())
	assert.Equal(t, 0, store.ConversationCount())
}

func TestMemoryStoreConvertToClientOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(clock.Fixed(testNow))

	lead, err := store.CreateLead(ctx, CreateLeadParams{FirstName: "Ana"})
	require.NoError(t, err)
	opp, err := store.CreateOpportunity(ctx, CreateOpportunityParams{Title: "Acme", LeadID: &lead.ID})
	require.NoError(t, err)

	conv := ClientConversion{
		OpportunityID: opp.ID,
		CompanyName:   " Acme BV ",
		Client:        CreateClientParams{Name: "Ana", OpportunityID: &opp.ID},
		LeadID:        &lead.ID,
		Note:          CreateConversationParams{OpportunityID: &opp.ID, Kind: domain.ConversationNote, Content: "converted"},
	}
	res, err := store.ConvertToClient(ctx, conv)
	require.NoError(t, err)
	require.NotNil(t, res.Company)
	assert.Equal(t, "Acme BV", res.Company.Name)
	require.NotNil(t, res.Opportunity.ClientID)
	assert.Equal(t, res.Client.ID, *res.Opportunity.ClientID)
	assert.Equal(t, opp.Version+1, res.Opportunity.Version)
	require.NotNil(t, res.Lead)
	assert.Equal(t, domain.LeadStatusWon, res.Lead.Status)
	require.NotNil(t, res.Note.ClientID)
	assert.Equal(t, res.Client.ID, *res.Note.ClientID)

	_, err = store.ConvertToClient(ctx, conv)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, 1, store.ClientCount())
	assert.Equal(t, 1, store.ConversationCount())

	_, err = store.ConvertToClient(ctx, ClientConversion{OpportunityID: uuid.New()})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
