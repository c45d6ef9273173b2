package model

import "time"

// Snapshot is the immutable, externally-readable "latest state" published
// by C12 after every tick (spec.md §4.12, §6 "Snapshot egress").
type Snapshot struct {
	GuardianState GlobalState `json:"guardian_state"`
	Verdicts      []Verdict   `json:"verdicts"`
	SamplesCount  int         `json:"samples_count"`
	LastUpdate    time.Time   `json:"last_update"`
}
