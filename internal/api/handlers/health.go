package handlers

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/jroosing/dnsdash/internal/api/models"
)

const bytesPerMB = 1024 * 1024

// Health godoc
// @Summary Health check
// @Description Returns server health status, including the preference database
// @Tags system
// @Produce json
// @Success 200 {object} models.StatusResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			h.logger.Warn("health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "database unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}

// Stats godoc
// @Summary Server statistics
// @Description Returns runtime statistics: uptime, goroutines, host CPU and memory, process usage and active sessions
// @Tags system
// @Produce json
// @Success 200 {object} models.ServerStatsResponse
// @Security ApiKeyAuth
// @Router /stats [get]
func (h *Handler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(h.startTime)

	resp := models.ServerStatsResponse{
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		StartTime:     h.startTime,
		GoRoutines:    runtime.NumGoroutine(),
		MemoryAllocMB: float64(m.Alloc) / bytesPerMB,
		CPU:           models.CPUStats{NumCPU: runtime.NumCPU()},
	}
	if h.sessions != nil {
		resp.ActiveSessions = h.sessions.Len()
	}
	if h.cfg != nil {
		resp.Backend = h.cfg.Backend.URL
	}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		resp.CPU.UsedPercent = pct[0]
		resp.CPU.IdlePercent = 100 - pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		resp.Memory = models.MemoryStats{
			TotalMB:     float64(vm.Total) / bytesPerMB,
			FreeMB:      float64(vm.Available) / bytesPerMB,
			UsedMB:      float64(vm.Used) / bytesPerMB,
			UsedPercent: vm.UsedPercent,
		}
	}
	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		ps := &models.ProcessStats{PID: p.Pid}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil {
			ps.RSSMB = float64(mi.RSS) / bytesPerMB
		}
		if pct, err := p.CPUPercentWithContext(ctx); err == nil {
			ps.CPUPercent = pct
		}
		if n, err := p.NumThreadsWithContext(ctx); err == nil {
			ps.NumThreads = n
		}
		resp.Process = ps
	}

	c.JSON(http.StatusOK, resp)
}
