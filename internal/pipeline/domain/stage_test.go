package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The probability table is shared with the web client; keys and values are fixed.
func TestProbabilityForMatchesPublishedTable(t *testing.T) {
	want := map[Stage]int{
		"gift_sent":     20,
		"responded":     40,
		"meeting":       60,
		"closing":       80,
		"closed_won":    100,
		"closed_lost":   0,
		"qualification": 20,
		"proposal":      60,
		"negotiation":   80,
	}

	for stage, p := range want {
		assert.Equal(t, p, ProbabilityFor(stage), string(stage))
		assert.True(t, stage.Known(), string(stage))
	}
}

func TestProbabilityForUnknownStageDefaultsTo20(t *testing.T) {
	for _, raw := range []string{"", "prospecting", "CLOSED_WON ", "won"} {
		assert.Equal(t, 20, ProbabilityFor(Stage(raw)), raw)
	}
}

func TestCatalogAgreesWithPolicy(t *testing.T) {
	defs := Catalog()
	require.Len(t, defs, 9)
	for _, def := range defs {
		assert.Equal(t, ProbabilityFor(def.Stage), def.Probability, string(def.Stage))
		assert.Equal(t, IsClosed(def.Stage), def.Closed, string(def.Stage))
	}

	defs[0].Probability = 99
	assert.Equal(t, 20, Catalog()[0].Probability, "Catalog must hand out copies")
}

func TestParseStageNormalises(t *testing.T) {
	stage, known := ParseStage("  Closed_Won ")
	assert.Equal(t, StageClosedWon, stage)
	assert.True(t, known)

	stage, known = ParseStage("prospecting")
	assert.Equal(t, Stage("prospecting"), stage)
	assert.False(t, known)
}

func TestTasksForTemplatedStages(t *testing.T) {
	cases := []struct {
		stage   Stage
		offsets []int
	}{
		{StageGiftSent, []int{0, 3}},
		{StageResponded, []int{0, 1, 1}},
		{StageMeeting, []int{0, 1, 5}},
		{StageClosing, []int{0, 2, 7}},
	}

	for _, tc := range cases {
		specs := TasksFor(tc.stage)
		offsets := make([]int, len(specs))
		for i, spec := range specs {
			offsets[i] = spec.DayOffset
			assert.NotEmpty(t, spec.Title)
			assert.True(t, spec.Priority.Valid())
		}
		assert.Equal(t, tc.offsets, offsets, string(tc.stage))
	}
}

func TestTasksForUntemplatedStagesIsEmpty(t *testing.T) {
	for _, stage := range []Stage{StageClosedWon, StageClosedLost, StageQualification, StageProposal, StageNegotiation, StageNone, "mystery"} {
		specs := TasksFor(stage)
		assert.NotNil(t, specs)
		assert.Empty(t, specs, string(stage))
	}
}

func TestExpandTasksAddsDayOffsets(t *testing.T) {
	base := time.Date(2026, 3, 30, 9, 0, 0, 0, time.UTC)
	scheduled := ExpandTasks(TasksFor(StageMeeting), base)

	require.Len(t, scheduled, 3)
	assert.Equal(t, base, scheduled[0].DueDate)
	assert.Equal(t, base.AddDate(0, 0, 1), scheduled[1].DueDate)
	assert.Equal(t, time.Date(2026, 4, 4, 9, 0, 0, 0, time.UTC), scheduled[2].DueDate)
}

func TestClampProbability(t *testing.T) {
	assert.Equal(t, 0, ClampProbability(-5))
	assert.Equal(t, 100, ClampProbability(140))
	assert.Equal(t, 55, ClampProbability(55))
	assert.True(t, ValidProbability(0))
	assert.False(t, ValidProbability(101))
}

func TestPriorityRankOrder(t *testing.T) {
	assert.Less(t, PriorityLow.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityUrgent.Rank())
}
