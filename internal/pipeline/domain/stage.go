// Package domain holds the pure business rules of the opportunity pipeline:
// the stage catalog, the stage-to-probability policy and the task templates.
// Nothing in this package performs I/O.
package domain

import "strings"

// Stage is a pipeline stage key. Values outside the catalog are tolerated and
// handled by the default arm of every switch in this package.
type Stage string

const (
	// StageNone is the stage of an opportunity that has not entered the pipeline yet.
	StageNone Stage = ""

	StageGiftSent   Stage = "gift_sent"
	StageResponded  Stage = "responded"
	StageMeeting    Stage = "meeting"
	StageClosing    Stage = "closing"
	StageClosedWon  Stage = "closed_won"
	StageClosedLost Stage = "closed_lost"

	// Legacy aliases still found on older records.
	StageQualification Stage = "qualification"
	StageProposal      Stage = "proposal"
	StageNegotiation   Stage = "negotiation"
)

// DefaultProbability applies to stage keys the policy does not recognise.
const DefaultProbability = 20

// StageDefinition describes one entry of the static stage catalog.
type StageDefinition struct {
	Stage       Stage
	Label       string
	Probability int
	Closed      bool
	Legacy      bool
}

var catalog = []StageDefinition{
	{Stage: StageGiftSent, Label: "Gift Sent", Probability: 20},
	{Stage: StageResponded, Label: "Responded", Probability: 40},
	{Stage: StageMeeting, Label: "Meeting", Probability: 60},
	{Stage: StageClosing, Label: "Closing", Probability: 80},
	{Stage: StageClosedWon, Label: "Closed Won", Probability: 100, Closed: true},
	{Stage: StageClosedLost, Label: "Closed Lost", Probability: 0, Closed: true},
	{Stage: StageQualification, Label: "Qualification", Probability: 20, Legacy: true},
	{Stage: StageProposal, Label: "Proposal", Probability: 60, Legacy: true},
	{Stage: StageNegotiation, Label: "Negotiation", Probability: 80, Legacy: true},
}

// Catalog returns the stage catalog in pipeline order, legacy aliases last.
func Catalog() []StageDefinition {
	out := make([]StageDefinition, len(catalog))
	copy(out, catalog)
	return out
}

// ParseStage trims and lower-cases raw and reports whether it is a known stage.
// Unknown keys are still returned so callers can persist them as-is.
func ParseStage(raw string) (Stage, bool) {
	stage := Stage(strings.ToLower(strings.TrimSpace(raw)))
	return stage, stage.Known()
}

// Known reports whether s is part of the catalog.
func (s Stage) Known() bool {
	switch s {
	case StageGiftSent, StageResponded, StageMeeting, StageClosing,
		StageClosedWon, StageClosedLost,
		StageQualification, StageProposal, StageNegotiation:
		return true
	default:
		return false
	}
}

// ProbabilityFor returns the default win probability for a stage.
func ProbabilityFor(s Stage) int {
	switch s {
	case StageGiftSent, StageQualification:
		return 20
	case StageResponded:
		return 40
	case StageMeeting, StageProposal:
		return 60
	case StageClosing, StageNegotiation:
		return 80
	case StageClosedWon:
		return 100
	case StageClosedLost:
		return 0
	default:
		return DefaultProbability
	}
}

// IsClosed reports whether s is one of the two terminal outcomes.
// Closing is advisory: nothing prevents a later transition out of a closed stage.
func IsClosed(s Stage) bool {
	return s == StageClosedWon || s == StageClosedLost
}

// Label returns the human label of a stage, or the raw key if unknown.
func Label(s Stage) string {
	for _, def := range catalog {
		if def.Stage == s {
			return def.Label
		}
	}
	if s == StageNone {
		return "None"
	}
	return string(s)
}

// ClampProbability forces p into [0,100].
func ClampProbability(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ValidProbability reports whether p is within [0,100].
func ValidProbability(p int) bool {
	return p >= 0 && p <= 100
}
