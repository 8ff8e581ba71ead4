package models

import "time"

// ServerStatsResponse contains server runtime statistics.
type ServerStatsResponse struct {
	Uptime         string        `json:"uptime"`
	UptimeSeconds  int64         `json:"uptime_seconds"`
	StartTime      time.Time     `json:"start_time"`
	GoRoutines     int           `json:"goroutines"`
	MemoryAllocMB  float64       `json:"memory_alloc_mb"`
	CPU            CPUStats      `json:"cpu"`
	Memory         MemoryStats   `json:"memory"`
	Process        *ProcessStats `json:"process,omitempty"`
	ActiveSessions int           `json:"active_sessions"`
	Backend        string        `json:"backend"`
}

// CPUStats describes host CPU usage.
type CPUStats struct {
	NumCPU      int     `json:"num_cpu"`
	UsedPercent float64 `json:"used_percent"`
	IdlePercent float64 `json:"idle_percent"`
}

// MemoryStats describes host memory usage.
type MemoryStats struct {
	TotalMB     float64 `json:"total_mb"`
	FreeMB      float64 `json:"free_mb"`
	UsedMB      float64 `json:"used_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// ProcessStats describes the dnsdash process itself.
type ProcessStats struct {
	PID        int32   `json:"pid"`
	RSSMB      float64 `json:"rss_mb"`
	CPUPercent float64 `json:"cpu_percent"`
	NumThreads int32   `json:"num_threads"`
}
