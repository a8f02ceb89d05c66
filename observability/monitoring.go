package observability

import (
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// MonitoringStats is the snapshot served on /debug/stats
type MonitoringStats struct {
	// --- PRESENCE ---
	Joined  uint64 `json:"joined"`
	Expired uint64 `json:"expired"`

	// --- MESSAGE LOG ---
	Posted              uint64 `json:"posted"`
	FailedAnnouncements uint64 `json:"failed_announcements"`

	// --- SWEEPER ---
	Sweeps       uint64 `json:"sweeps"`
	FailedSweeps uint64 `json:"failed_sweeps"`
	LastSweep    string `json:"last_sweep,omitempty"`

	// --- SYSTEM METRICS ---
	AllocMemMb    uint64 `json:"alloc_mem_mb"`
	NumGC         uint32 `json:"num_gc"`
	NumGoroutines int    `json:"num_goroutines"`

	// --- PROCESS ---
	Pid        int32   `json:"pid"`
	PidStatus  string  `json:"pid_status,omitempty"`
	CpuPercent float64 `json:"cpu_percent"`
	RamBytes   uint64  `json:"ram_bytes"`
}

// MonitoringManager counts presence and log events. Every counter is atomic,
// it is safe to share between request handlers and the sweeper.
type MonitoringManager struct {
	log  *slog.Logger
	self *process.Process // nil when the process handle could not be opened

	joined              atomic.Uint64
	expired             atomic.Uint64
	posted              atomic.Uint64
	failedAnnouncements atomic.Uint64
	sweeps              atomic.Uint64
	failedSweeps        atomic.Uint64
	lastSweep           atomic.Int64 // unix nanoseconds, 0 before the first sweep
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process stats unavailable", "err", err)
		self = nil
	}
	return &MonitoringManager{log: log, self: self}
}

func (mm *MonitoringManager) IncrJoined() {
	mm.joined.Add(1)
}

func (mm *MonitoringManager) IncrExpired(n int) {
	mm.expired.Add(uint64(n))
}

func (mm *MonitoringManager) IncrPosted() {
	mm.posted.Add(1)
}

func (mm *MonitoringManager) IncrFailedAnnouncements() {
	mm.failedAnnouncements.Add(1)
}

// RecordSweep counts a sweep tick, failed or not.
func (mm *MonitoringManager) RecordSweep(at time.Time, err error) {
	mm.sweeps.Add(1)
	mm.lastSweep.Store(at.UnixNano())
	if err != nil {
		mm.failedSweeps.Add(1)
	}
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	stats := MonitoringStats{
		Joined:              mm.joined.Load(),
		Expired:             mm.expired.Load(),
		Posted:              mm.posted.Load(),
		FailedAnnouncements: mm.failedAnnouncements.Load(),
		Sweeps:              mm.sweeps.Load(),
		FailedSweeps:        mm.failedSweeps.Load(),
		NumGoroutines:       runtime.NumGoroutine(),
	}
	if last := mm.lastSweep.Load(); last != 0 {
		stats.LastSweep = time.Unix(0, last).UTC().Format(time.RFC3339)
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats.AllocMemMb = m.Alloc / 1024 / 1024
	stats.NumGC = m.NumGC

	if mm.self != nil {
		stats.Pid = mm.self.Pid
		rss, cpu, status, err := getSelfStats(mm.self)
		if err != nil {
			mm.log.Warn("Failed to collect self stats", "err", err)
		} else {
			stats.RamBytes, stats.CpuPercent, stats.PidStatus = rss, cpu, status
		}
	}

	mm.log.Debug("Stats snapshot",
		"joined", stats.Joined,
		"expired", stats.Expired,
		"posted", stats.Posted,
		"failed_sweeps", stats.FailedSweeps,
	)
	return stats
}

// getSelfStats samples resident memory, CPU usage since start and OS status.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
