package gateway

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// SystemStats holds process resource usage pushed to dashboards.
type SystemStats struct {
	CPULoad1     float64 `json:"cpu_load_1"`
	CPUCores     int     `json:"cpu_cores"`
	HeapAllocMB  float64 `json:"heap_alloc_mb"`
	SysMB        float64 `json:"sys_mb"`
	GCRuns       uint32  `json:"gc_runs"`
	Goroutines   int     `json:"goroutines"`
	UptimeSec    int64   `json:"uptime_sec"`
	WSClients    int     `json:"ws_clients"`
	CacheEntries int     `json:"cache_entries"`
	CacheHitRate float64 `json:"cache_hit_rate"`
	TS           string  `json:"ts"`
}

// CollectSystemStats gathers runtime figures plus hub and cache counts.
// The load average is read from /proc and stays zero where unavailable.
func CollectSystemStats(start time.Time, hub *Hub, c CacheInspector) SystemStats {
	m := SystemStats{
		CPUCores:   runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
		UptimeSec:  int64(time.Since(start).Seconds()),
		TS:         time.Now().UTC().Format(time.RFC3339Nano),
	}
	if hub != nil {
		m.WSClients = hub.ClientCount()
	}
	if c != nil {
		st := c.Stats()
		m.CacheEntries, m.CacheHitRate = st.Entries, st.HitRate
	}

	if f, err := os.Open("/proc/loadavg"); err == nil {
		scanner := bufio.NewScanner(f)
		if scanner.Scan() {
			if fields := strings.Fields(scanner.Text()); len(fields) > 0 {
				if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
					m.CPULoad1 = v
				}
			}
		}
		f.Close()
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.HeapAllocMB = float64(ms.HeapAlloc) / 1024 / 1024
	m.SysMB = float64(ms.Sys) / 1024 / 1024
	m.GCRuns = ms.NumGC
	return m
}
