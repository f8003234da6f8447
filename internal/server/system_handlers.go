package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/cession/internal/database"
	"github.com/aristath/cession/internal/scheduler"
)

// SystemHandlers serves host and service status
type SystemHandlers struct {
	log       zerolog.Logger
	runsDB    *database.DB
	scheduler *scheduler.Scheduler
	startedAt time.Time
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, runsDB *database.DB, sched *scheduler.Scheduler) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		runsDB:    runsDB,
		scheduler: sched,
		startedAt: time.Now(),
	}
}

// SystemStatusResponse represents the service status
type SystemStatusResponse struct {
	Status        string          `json:"status"` // "healthy" or "degraded"
	UptimeSeconds int64           `json:"uptime_seconds"`
	CPUPercent    float64         `json:"cpu_percent"`
	MemoryPercent float64         `json:"memory_percent"`
	Goroutines    int             `json:"goroutines"`
	ScheduledJobs int             `json:"scheduled_jobs"`
	RunsDB        *database.Stats `json:"runs_db,omitempty"`
}

// Snapshot collects the current status. Failures to read host or database
// statistics degrade the status but still return what was collected.
func (h *SystemHandlers) Snapshot() SystemStatusResponse {
	cpuPercent, memPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
	}

	if h.scheduler != nil {
		response.ScheduledJobs = h.scheduler.Jobs()
	}

	if h.runsDB != nil {
		stats, err := h.runsDB.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to get runs database stats")
			response.Status = "degraded"
		} else {
			response.RunsDB = stats
		}
	}

	return response
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.Snapshot()); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// getSystemStats returns CPU and RAM usage percentages.
// The CPU sample window is kept short so the endpoint answers quickly.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
