package model

import "time"

// Baseline is the long-lived, per-program-name statistics record (spec.md
// §3 "Baseline"). Keyed by name in the baseline store, because PIDs recycle
// while behaviors persist per program.
type Baseline struct {
	AvgCPU         float64   `json:"avg_cpu"`
	AvgRAM         float64   `json:"avg_ram"`
	AvgChildren    float64   `json:"avg_children"`
	AvgNetSent     float64   `json:"avg_net_sent"`
	AvgNetReceived float64   `json:"avg_net_received"`
	Samples        int       `json:"samples"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	Trusted        bool      `json:"trusted"`
}
