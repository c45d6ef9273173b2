package model

// Sample is one per-process telemetry observation, as emitted by the
// external telemetry producer for a single tick (spec.md §3 "Sample").
type Sample struct {
	PID            int     `json:"pid"`
	ParentPID      int     `json:"parent_pid"`
	Name           string  `json:"name"`
	ExePath        string  `json:"exe_path"`
	CPUPercent     float64 `json:"cpu_percent"`
	RAMMB          float64 `json:"ram_mb"`
	Children       []int   `json:"children"`
	DiskReadKB     float64 `json:"disk_read_kb"`
	DiskWrittenKB  float64 `json:"disk_written_kb"`
	NetSentKBps    float64 `json:"net_sent_kbps"`
	NetRecvKBps    float64 `json:"net_received_kbps"`
}

// ChildCount returns the number of children reported in this sample.
func (s Sample) ChildCount() int { return len(s.Children) }

// PersistenceEntry describes a single OS persistence/autostart record (e.g.
// a registry Run key, a cron line, a systemd unit) passed alongside a
// telemetry message, used by STARTUP_PERSISTENCE detection (spec.md §4.3
// rule 7).
type PersistenceEntry struct {
	Command string `json:"command"`
}

// TelemetryMessage is one line of the newline-delimited JSON ingress stream
// (spec.md §6 "Telemetry ingress"). Unknown fields are ignored by the
// decoder; this struct only names the fields the core actually consumes.
type TelemetryMessage struct {
	Timestamp int64 `json:"timestamp"`
	System    struct {
		Processes struct {
			TopRAM []Sample `json:"top_ram"`
		} `json:"processes"`
	} `json:"system"`
	Persistence []PersistenceEntry `json:"persistence"`
}
