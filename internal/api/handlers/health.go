package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nsavage/wardendns/internal/api/models"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Health reports liveness plus a snapshot of host resource usage.
func (h *Handler) Health(c *gin.Context) {
	sys := models.SystemStats{NumCPU: runtime.NumCPU()}

	if vm, err := mem.VirtualMemory(); err == nil {
		sys.MemTotalMB = float64(vm.Total) / 1024 / 1024
		sys.MemUsedMB = float64(vm.Used) / 1024 / 1024
		sys.MemUsedPercent = vm.UsedPercent
	}
	if pct, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(pct) > 0 {
		sys.CPUUsedPercent = pct[0]
	}

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:     "ok",
		UptimeSecs: int64(time.Since(h.startTime).Seconds()),
		System:     sys,
	})
}
