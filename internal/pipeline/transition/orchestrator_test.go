package transition

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crm_backend/internal/events"
	"crm_backend/internal/pipeline/domain"
	"crm_backend/internal/pipeline/repository"
	"crm_backend/platform/apperr"
	"crm_backend/platform/clock"
	"crm_backend/platform/lock"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow  = time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
	testUser = uuid.MustParse("7d1b3c9e-1f4e-4c1a-9a55-0b8f6f0d2a11")
)

type fixture struct {
	store *repository.MemoryStore
	bus   *events.InMemoryBus
	orch  *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore(clock.Fixed(testNow))
	bus := events.NewInMemoryBus(nil)
	orch := New(store, lock.NewKeyedMutex(0), clock.Fixed(testNow), StaticIdentity(testUser), bus, nil)
	return &fixture{store: store, bus: bus, orch: orch}
}

func (f *fixture) seed(t *testing.T, stage domain.Stage) repository.Opportunity {
	t.Helper()
	opp, err := f.store.CreateOpportunity(context.Background(), repository.CreateOpportunityParams{
		Title:       "Acme renewal",
		Stage:       stage,
		Probability: domain.ProbabilityFor(stage),
	})
	require.NoError(t, err)
	return opp
}

func (f *fixture) notes(t *testing.T, oppID uuid.UUID) []repository.ConversationRecord {
	t.Helper()
	recs, err := f.store.ListConversations(context.Background(), repository.ConversationSelector{OpportunityID: &oppID})
	require.NoError(t, err)
	return recs
}

func ptr[T any](v T) *T { return &v }

func TestTransitionGiftSentToResponded(t *testing.T) {
	f := newFixture(t)
	opp := f.seed(t, domain.StageGiftSent)
	base := time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)

	res, err := f.orch.Transition(context.Background(), opp.ID, domain.StageResponded, Options{
		GenerateTasks: ptr(true),
		BaseDate:      &base,
	})
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.Equal(t, domain.StageResponded, res.Opportunity.Stage)
	assert.Equal(t, 40, res.Opportunity.Probability)

	require.Len(t, res.CreatedTasks, 3)
	assert.Equal(t, base, res.CreatedTasks[0].DueDate)
	assert.Equal(t, base.AddDate(0, 0, 1), res.CreatedTasks[1].DueDate)
	assert.Equal(t, base.AddDate(0, 0, 1), res.CreatedTasks[2].DueDate)
	for _, task := range res.CreatedTasks {
		require.NotNil(t, task.OpportunityID)
		assert.Equal(t, opp.ID, *task.OpportunityID)
		assert.Equal(t, testUser, task.OwnerID)
	}

	notes := f.notes(t, opp.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.ConversationNote, notes[0].Kind)
	assert.Equal(t, testUser, notes[0].AuthorID)
	assert.Contains(t, notes[0].Content, "from gift_sent to responded")
	assert.Contains(t, notes[0].Content, "3 follow-up task(s)")
	require.NotNil(t, res.Conversation)
	assert.Equal(t, notes[0].ID, res.Conversation.ID)
}

func TestTransitionClosingToClosedWon(t *testing.T) {
	f := newFixture(t)
	opp := f.seed(t, domain.StageClosing)

	res, err := f.orch.Transition(context.Background(), opp.ID, domain.StageClosedWon, Options{})
	require.NoError(t, err)

	assert.Equal(t, domain.StageClosedWon, res.Opportunity.Stage)
	assert.Equal(t, 100, res.Opportunity.Probability)
	assert.Empty(t, res.CreatedTasks)
	assert.Equal(t, 0, f.store.TaskCount())
	assert.Len(t, f.notes(t, opp.ID), 1)
}

func TestTransitionToClosedStageNeverCreatesTasks(t *testing.T) {
	for _, target := range []domain.Stage{domain.StageClosedWon, domain.StageClosedLost} {
		t.Run(string(target), func(t *testing.T) {
			f := newFixture(t)
			opp := f.seed(t, domain.StageMeeting)

			res, err := f.orch.Transition(context.Background(), opp.ID, target, Options{GenerateTasks: ptr(true)})
			require.NoError(t, err)
			assert.Empty(t, res.CreatedTasks)
			assert.Equal(t, 0, f.store.TaskCount())
		})
	}
}

func TestTransitionToSameStageIsNoop(t *testing.T) {
	f := newFixture(t)
	opp := f.seed(t, domain.StageMeeting)

	res, err := f.orch.Transition(context.Background(), opp.ID, domain.StageMeeting, Options{GenerateTasks: ptr(true)})
	require.NoError(t, err)

	assert.False(t, res.Changed)
	assert.Nil(t, res.Conversation)
	assert.Empty(t, res.CreatedTasks)
	assert.Equal(t, 0, f.store.TaskCount())
	assert.Equal(t, 0, f.store.ConversationCount())
	assert.Equal(t, opp.UpdatedAt, res.Opportunity.UpdatedAt)
	assert.Equal(t, opp.Version, res.Opportunity.Version)
}

func TestTransitionToSameStagePersistsFieldEditsOnly(t *testing.T) {
	ctx := context.Background()
	now := testNow
	store := repository.NewMemoryStore(clock.Func(func() time.Time { return now }))
	orch := New(store, nil, clock.Fixed(testNow), StaticIdentity(testUser), nil, nil)

	opp, err := store.CreateOpportunity(ctx, repository.CreateOpportunityParams{Title: "Old", Stage: domain.StageMeeting, Probability: 60})
	require.NoError(t, err)

	now = now.Add(time.Hour)
	res, err := orch.Transition(ctx, opp.ID, domain.StageMeeting, Options{
		Fields: repository.OpportunityFieldEdits{Title: ptr("New")},
	})
	require.NoError(t, err)

	assert.False(t, res.Changed)
	assert.Equal(t, "New", res.Opportunity.Title)
	assert.Equal(t, 60, res.Opportunity.Probability)
	assert.Equal(t, now, res.Opportunity.UpdatedAt)
	assert.Equal(t, 0, store.TaskCount())
	assert.Equal(t, 0, store.ConversationCount())
}

func TestTransitionHonorsExplicitZeroProbability(t *testing.T) {
	f := newFixture(t)
	opp := f.seed(t, domain.StageGiftSent)

	res, err := f.orch.Transition(context.Background(), opp.ID, domain.StageClosing, Options{Probability: ptr(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Opportunity.Probability)
	assert.Len(t, res.CreatedTasks, 3)
}

func TestTransitionExplicitProbabilityOnSameStage(t *testing.T) {
	f := newFixture(t)
	opp := f.seed(t, domain.StageMeeting)

	res, err := f.orch.Transition(context.Background(), opp.ID, domain.StageMeeting, Options{Probability: ptr(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Opportunity.Probability)
	assert.Equal(t, 0, f.store.ConversationCount())
}

func TestTransitionValidation(t *testing.T) {
	f := newFixture(t)
	opp := f.seed(t, domain.StageGiftSent)
	ctx := context.Background()

	cases := []struct {
		name   string
		target domain.Stage
		opts   Options
	}{
		{"empty target", domain.StageNone, Options{}},
		{"negative probability", domain.StageMeeting, Options{Probability: ptr(-1)}},
		{"probability above 100", domain.StageMeeting, Options{Probability: ptr(101)}},
		{"unknown stage with explicit generation", "prospecting", Options{GenerateTasks: ptr(true)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.orch.Transition(ctx, opp.ID, tc.target, tc.opts)
			assert.True(t, apperr.Is(err, apperr.KindInvalidArgument), "got %v", err)
		})
	}

	current, err := f.store.GetOpportunity(ctx, opp.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageGiftSent, current.Stage)
	assert.Equal(t, 0, f.store.ConversationCount())
}

func TestTransitionUnknownStageDefaultsTo20(t *testing.T) {
	f := newFixture(t)
	opp := f.seed(t, domain.StageResponded)

	res, err := f.orch.Transition(context.Background(), opp.ID, "prospecting", Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.Stage("prospecting"), res.Opportunity.Stage)
	assert.Equal(t, 20, res.Opportunity.Probability)
	assert.Empty(t, res.CreatedTasks)
	assert.Len(t, f.notes(t, opp.ID), 1)
}

func TestTransitionMissingOpportunity(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Transition(context.Background(), uuid.New(), domain.StageMeeting, Options{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestTransitionTasksOwnedByOpportunityOwner(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	opp, err := f.store.CreateOpportunity(context.Background(), repository.CreateOpportunityParams{
		Title:   "Owned",
		Stage:   domain.StageGiftSent,
		OwnerID: &owner,
	})
	require.NoError(t, err)

	res, err := f.orch.Transition(context.Background(), opp.ID, domain.StageMeeting, Options{})
	require.NoError(t, err)
	require.Len(t, res.CreatedTasks, 3)
	for _, task := range res.CreatedTasks {
		assert.Equal(t, owner, task.OwnerID)
	}
}

func TestTransitionSkipsTasksWhenDisabled(t *testing.T) {
	f := newFixture(t)
	opp := f.seed(t, domain.StageGiftSent)

	res, err := f.orch.Transition(context.Background(), opp.ID, domain.StageClosing, Options{GenerateTasks: ptr(false)})
	require.NoError(t, err)
	assert.Empty(t, res.CreatedTasks)
	assert.Len(t, f.notes(t, opp.ID), 1)
	assert.Contains(t, f.notes(t, opp.ID)[0].Content, "0 follow-up task(s)")
}

func TestTransitionOutOfClosedStageIsAllowed(t *testing.T) {
	f := newFixture(t)
	opp := f.seed(t, domain.StageClosedWon)

	res, err := f.orch.Transition(context.Background(), opp.ID, domain.StageMeeting, Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.StageMeeting, res.Opportunity.Stage)
	assert.Len(t, res.CreatedTasks, 3)
}

func TestTransitionProbabilityAlwaysInRange(t *testing.T) {
	stages := []domain.Stage{"", "unknown"}
	for _, def := range domain.Catalog() {
		stages = append(stages, def.Stage)
	}

	for _, from := range stages {
		for _, to := range stages {
			if to == domain.StageNone {
				continue
			}
			f := newFixture(t)
			opp := f.seed(t, from)
			res, err := f.orch.Transition(context.Background(), opp.ID, to, Options{})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, res.Opportunity.Probability, 0)
			assert.LessOrEqual(t, res.Opportunity.Probability, 100)
		}
	}
}

func TestConcurrentTransitionsSeedTasksOnce(t *testing.T) {
	f := newFixture(t)
	opp := f.seed(t, domain.StageGiftSent)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.orch.Transition(context.Background(), opp.ID, domain.StageResponded, Options{})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.store.TaskCount())
	assert.Len(t, f.notes(t, opp.ID), 1)
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string) (lock.Unlock, error) {
	return nil, lock.ErrNotAcquired
}

func TestTransitionLockContentionIsConflict(t *testing.T) {
	store := repository.NewMemoryStore(clock.Fixed(testNow))
	orch := New(store, busyLocker{}, clock.Fixed(testNow), StaticIdentity(testUser), nil, nil)
	opp, err := store.CreateOpportunity(context.Background(), repository.CreateOpportunityParams{Title: "Busy", Stage: domain.StageGiftSent})
	require.NoError(t, err)

	_, err = orch.Transition(context.Background(), opp.ID, domain.StageResponded, Options{})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, 0, store.TaskCount())
}

func TestTransitionWithoutIdentityIsUnauthorized(t *testing.T) {
	store := repository.NewMemoryStore(clock.Fixed(testNow))
	orch := New(store, nil, nil, nil, nil, nil)
	opp, err := store.CreateOpportunity(context.Background(), repository.CreateOpportunityParams{Title: "Anon"})
	require.NoError(t, err)

	_, err = orch.Transition(context.Background(), opp.ID, domain.StageMeeting, Options{})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestTransitionPublishesStageChanged(t *testing.T) {
	f := newFixture(t)
	opp := f.seed(t, domain.StageMeeting)

	var mu sync.Mutex
	var got []events.OpportunityStageChanged
	f.bus.Subscribe(events.OpportunityStageChanged{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(events.OpportunityStageChanged))
		return nil
	}))

	_, err := f.orch.Transition(context.Background(), opp.ID, domain.StageClosing, Options{})
	require.NoError(t, err)
	_, err = f.orch.Transition(context.Background(), opp.ID, domain.StageClosing, Options{})
	require.NoError(t, err)
	f.bus.Wait()

	require.Len(t, got, 1)
	assert.Equal(t, "meeting", got[0].FromStage)
	assert.Equal(t, "closing", got[0].ToStage)
	assert.Equal(t, 3, got[0].TasksCreated)
	assert.Equal(t, testNow, got[0].OccurredAt())
}

func TestSummaryFromNone(t *testing.T) {
	assert.Equal(t,
		"Stage changed from none to gift_sent (probability 20%). 2 follow-up task(s) created.",
		Summary(domain.StageNone, domain.StageGiftSent, 20, 2))
}

// flakyStore fails the next n stage changes before delegating.
type flakyStore struct {
	*repository.MemoryStore
	failures int
}

func (s *flakyStore) ApplyStageChange(ctx context.Context, change repository.StageChange) (repository.StageChangeResult, error) {
	if s.failures > 0 {
		s.failures--
		return repository.StageChangeResult{}, errors.New("connection reset by peer")
	}
	return s.MemoryStore.ApplyStageChange(ctx, change)
}

func TestTransitionRetryAfterFailedWriteSeedsTasks(t *testing.T) {
	store := &flakyStore{MemoryStore: repository.NewMemoryStore(clock.Fixed(testNow)), failures: 1}
	orch := New(store, lock.NewKeyedMutex(0), clock.Fixed(testNow), StaticIdentity(testUser), nil, nil)
	opp, err := store.CreateOpportunity(context.Background(), repository.CreateOpportunityParams{
		Title: "Harbor fitout", Stage: domain.StageGiftSent, Probability: 20,
	})
	require.NoError(t, err)

	_, err = orch.Transition(context.Background(), opp.ID, domain.StageResponded, Options{})
	require.Error(t, err)

	after, err := store.GetOpportunity(context.Background(), opp.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageGiftSent, after.Stage)
	assert.Equal(t, 0, store.TaskCount())
	assert.Equal(t, 0, store.ConversationCount())

	res, err := orch.Transition(context.Background(), opp.ID, domain.StageResponded, Options{})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, domain.StageResponded, res.Opportunity.Stage)
	assert.Len(t, res.CreatedTasks, 3)
	assert.Equal(t, 3, store.TaskCount())
	assert.Equal(t, 1, store.ConversationCount())
}

func TestTransitionTasksFollowOwnerEdit(t *testing.T) {
	f := newFixture(t)
	opp := f.seed(t, domain.StageGiftSent)
	newOwner := uuid.New()

	res, err := f.orch.Transition(context.Background(), opp.ID, domain.StageMeeting, Options{
		Fields: repository.OpportunityFieldEdits{OwnerID: &newOwner},
	})
	require.NoError(t, err)
	require.Len(t, res.CreatedTasks, 3)
	for _, task := range res.CreatedTasks {
		assert.Equal(t, newOwner, task.OwnerID)
	}
}

func TestEditKeepsCurrentStage(t *testing.T) {
	f := newFixture(t)
	opp := f.seed(t, domain.StageResponded)

	_, err := f.orch.Transition(context.Background(), opp.ID, domain.StageMeeting, Options{})
	require.NoError(t, err)
	tasksBefore := f.store.TaskCount()

	res, err := f.orch.Edit(context.Background(), opp.ID, Options{
		Probability: ptr(55),
		Fields:      repository.OpportunityFieldEdits{Title: ptr("Acme renewal (3y)")},
	})
	require.NoError(t, err)

	assert.False(t, res.Changed)
	assert.Equal(t, domain.StageMeeting, res.Opportunity.Stage)
	assert.Equal(t, 55, res.Opportunity.Probability)
	assert.Equal(t, "Acme renewal (3y)", res.Opportunity.Title)
	assert.Empty(t, res.CreatedTasks)
	assert.Nil(t, res.Conversation)
	assert.Equal(t, tasksBefore, f.store.TaskCount())
	assert.Len(t, f.notes(t, opp.ID), 1)
}

func TestEditErrors(t *testing.T) {
	f := newFixture(t)
	opp := f.seed(t, domain.StageMeeting)

	_, err := f.orch.Edit(context.Background(), opp.ID, Options{Probability: ptr(120)})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	_, err = f.orch.Edit(context.Background(), uuid.New(), Options{Probability: ptr(10)})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	busy := New(f.store, busyLocker{}, clock.Fixed(testNow), StaticIdentity(testUser), nil, nil)
	_, err = busy.Edit(context.Background(), opp.ID, Options{Probability: ptr(10)})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}
