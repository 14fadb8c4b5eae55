package health

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var startTime time.Time

func init() {
	startTime = time.Now()
}

// StateFunc reports the engine's current cycle state for the health payload
type StateFunc func() string

type HealthResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	CycleState    string `json:"cycle_state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     int64  `json:"timestamp"`

	CPUUsagePercent    float64 `json:"cpu_usage_percent"`
	MemoryUsagePercent float64 `json:"memory_usage_percent"`
}

// StartHealthCheckServer serves /health on the given port in the background.
func StartHealthCheckServer(port string, state StateFunc) {
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		healthHandler(w, r, state)
	})

	log.Printf("Health check listening on : %s", port)

	go func() {
		if err := http.ListenAndServe(":"+port, nil); err != nil {
			log.Fatalf("Health server failed: %v", err)
		}
	}()
}

func healthHandler(w http.ResponseWriter, r *http.Request, state StateFunc) {
	response := &HealthResponse{
		Status:        "healthy",
		Service:       "assurance-engine",
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		Timestamp:     time.Now().Unix(),
	}

	if state != nil {
		response.CycleState = state()
	}

	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		response.CPUUsagePercent = cpuPercent[0]
	}
	if memStats, err := mem.VirtualMemory(); err == nil {
		response.MemoryUsagePercent = memStats.UsedPercent
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
