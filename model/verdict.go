package model

// InterventionLevel is one rung of the five-level escalation ladder
// (spec.md §4.7).
type InterventionLevel int

const (
	Observe InterventionLevel = iota
	Inform
	Warn
	Recommend
	RequestConfirmation
)

func (l InterventionLevel) String() string {
	switch l {
	case Observe:
		return "OBSERVE"
	case Inform:
		return "INFORM"
	case Warn:
		return "WARN"
	case Recommend:
		return "RECOMMEND"
	case RequestConfirmation:
		return "REQUEST_CONFIRMATION"
	default:
		return "UNKNOWN"
	}
}

// Verdict is an externalized anomaly report with scoring context and a
// recommended intervention level (spec.md §6 "Snapshot egress").
type Verdict struct {
	Process        string            `json:"process"`
	PID            int               `json:"pid"`
	Score          float64           `json:"score"`
	Level          InterventionLevel `json:"level"`
	AnomalyType    AnomalyType       `json:"anomaly_type"`
	Actual         string            `json:"actual"`
	Baseline       string            `json:"baseline"`
	Confidence     float64           `json:"confidence"`
	Recommendation string            `json:"recommendation,omitempty"`
}

// ConfirmationRequest is the record handed to the external user-facing
// collaborator when a process escalates to RequestConfirmation (spec.md §6
// "Confirmation request").
type ConfirmationRequest struct {
	CommandID   string `json:"command_id"`
	CommandName string `json:"command_name"`
	Details     string `json:"details"`
}
