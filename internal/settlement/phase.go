package settlement

// Phase is where a level stands in the completion flow.
type Phase string

const (
	PhaseLocked      Phase = "locked"
	PhaseInProgress  Phase = "in_progress"
	PhaseQuizPending Phase = "quiz_pending"
	PhaseQuizPassed  Phase = "quiz_passed"
	PhaseQuizFailed  Phase = "quiz_failed"
	PhaseSettling    Phase = "settling"
	PhaseCompleted   Phase = "completed"
)

// Label returns a short human-readable label.
func (p Phase) Label() string {
	switch p {
	case PhaseLocked:
		return "Locked"
	case PhaseInProgress:
		return "In progress"
	case PhaseQuizPending:
		return "Quiz ready"
	case PhaseQuizPassed:
		return "Quiz passed"
	case PhaseQuizFailed:
		return "Quiz failed"
	case PhaseSettling:
		return "Claiming reward"
	case PhaseCompleted:
		return "Completed"
	default:
		return string(p)
	}
}
