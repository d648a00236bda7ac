package httpapi

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

var startedAt = time.Now()

// health reports liveness plus basic process and host figures.
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(startedAt).Seconds()),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		payload["memory"] = map[string]any{
			"total_mb":     vm.Total / (1024 * 1024),
			"used_percent": vm.UsedPercent,
		}
	}
	if up, err := host.Uptime(); err == nil {
		payload["host_uptime_seconds"] = up
	}

	writeJSON(w, http.StatusOK, payload)
}
