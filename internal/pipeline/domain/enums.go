package domain

// Priority is the ordered urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities from low (0) to urgent (3). Unknown values rank as medium.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	default:
		return 1
	}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// TaskStatus is the progress state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

// ConversationKind classifies an activity-log entry.
type ConversationKind string

const (
	ConversationNote     ConversationKind = "note"
	ConversationCall     ConversationKind = "call"
	ConversationEmail    ConversationKind = "email"
	ConversationMeeting  ConversationKind = "meeting"
	ConversationProposal ConversationKind = "proposal"
	ConversationFollowUp ConversationKind = "follow_up"
	ConversationOther    ConversationKind = "other"
)

// Valid reports whether k is a known conversation kind.
func (k ConversationKind) Valid() bool {
	switch k {
	case ConversationNote, ConversationCall, ConversationEmail, ConversationMeeting,
		ConversationProposal, ConversationFollowUp, ConversationOther:
		return true
	}
	return false
}

// LeadStatus tracks a lead through qualification.
type LeadStatus string

const (
	LeadStatusNew         LeadStatus = "new"
	LeadStatusContacted   LeadStatus = "contacted"
	LeadStatusQualified   LeadStatus = "qualified"
	LeadStatusUnqualified LeadStatus = "unqualified"
	LeadStatusWon         LeadStatus = "won"
	LeadStatusLost        LeadStatus = "lost"
)

// Valid reports whether s is a known lead status.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified,
		LeadStatusUnqualified, LeadStatusWon, LeadStatusLost:
		return true
	}
	return false
}
