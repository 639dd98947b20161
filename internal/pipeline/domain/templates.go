package domain

import "time"

// TaskSpec is one follow-up task a stage template produces.
type TaskSpec struct {
	Title       string
	Description string
	Priority    Priority
	DayOffset   int
}

// ScheduledTask is a TaskSpec resolved against a base date.
type ScheduledTask struct {
	TaskSpec
	DueDate time.Time
}

var (
	giftSentTasks = []TaskSpec{
		{Title: "Confirm gift delivery", Description: "Check with the courier that the gift reached the prospect.", Priority: PriorityHigh, DayOffset: 0},
		{Title: "Follow up on gift", Description: "Reach out to ask whether the prospect enjoyed the gift and open a conversation.", Priority: PriorityMedium, DayOffset: 3},
	}
	respondedTasks = []TaskSpec{
		{Title: "Reply to prospect", Description: "Answer the prospect's response while interest is fresh.", Priority: PriorityHigh, DayOffset: 0},
		{Title: "Schedule discovery meeting", Description: "Propose times for an introductory meeting.", Priority: PriorityHigh, DayOffset: 1},
		{Title: "Research prospect needs", Description: "Review the prospect's business and prepare discovery questions.", Priority: PriorityMedium, DayOffset: 1},
	}
	meetingTasks = []TaskSpec{
		{Title: "Prepare meeting agenda", Description: "Draft the agenda and share it with attendees.", Priority: PriorityHigh, DayOffset: 0},
		{Title: "Send meeting recap", Description: "Summarise decisions and next steps for the prospect.", Priority: PriorityMedium, DayOffset: 1},
		{Title: "Draft proposal", Description: "Turn the meeting outcome into a written proposal.", Priority: PriorityHigh, DayOffset: 5},
	}
	closingTasks = []TaskSpec{
		{Title: "Send contract", Description: "Send the final contract for signature.", Priority: PriorityUrgent, DayOffset: 0},
		{Title: "Follow up on contract", Description: "Check whether the prospect has questions about the contract.", Priority: PriorityHigh, DayOffset: 2},
		{Title: "Confirm signature and kickoff", Description: "Confirm the signed contract and plan the kickoff.", Priority: PriorityMedium, DayOffset: 7},
	}
)

// TasksFor returns the ordered task template for a stage. Only gift_sent,
// responded, meeting and closing carry templates; every other key, known or
// not, yields an empty list.
func TasksFor(s Stage) []TaskSpec {
	var specs []TaskSpec
	switch s {
	case StageGiftSent:
		specs = giftSentTasks
	case StageResponded:
		specs = respondedTasks
	case StageMeeting:
		specs = meetingTasks
	case StageClosing:
		specs = closingTasks
	default:
		return []TaskSpec{}
	}
	out := make([]TaskSpec, len(specs))
	copy(out, specs)
	return out
}

// ExpandTasks resolves specs against base, each due at base + DayOffset days.
func ExpandTasks(specs []TaskSpec, base time.Time) []ScheduledTask {
	out := make([]ScheduledTask, 0, len(specs))
	for _, spec := range specs {
		out = append(out, ScheduledTask{
			TaskSpec: spec,
			DueDate:  base.AddDate(0, 0, spec.DayOffset),
		})
	}
	return out
}
