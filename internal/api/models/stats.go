package models

// SystemStats reports host resource usage, sampled at request time.
type SystemStats struct {
	NumCPU         int     `json:"num_cpu"`
	CPUUsedPercent float64 `json:"cpu_used_percent"`
	MemTotalMB     float64 `json:"mem_total_mb"`
	MemUsedMB      float64 `json:"mem_used_mb"`
	MemUsedPercent float64 `json:"mem_used_percent"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status     string      `json:"status"`
	UptimeSecs int64       `json:"uptime_seconds"`
	System     SystemStats `json:"system"`
}
