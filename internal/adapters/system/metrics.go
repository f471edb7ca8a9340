// Package system reads host resource usage for the watchdog and the admin API
package system

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const gib = 1024 * 1024 * 1024

// Disk warning levels
const (
	LevelSafe     = "safe"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// Snapshot is one reading of host resources. Fields whose probe failed stay zero.
type Snapshot struct {
	CPUPercent        float64 `json:"cpu_percent"`
	RAMUsedGB         float64 `json:"ram_used_gb"`
	RAMTotalGB        float64 `json:"ram_total_gb"`
	RAMPercent        float64 `json:"ram_percent"`
	DiskUsedGB        float64 `json:"disk_used_gb"`
	DiskTotalGB       float64 `json:"disk_total_gb"`
	DiskPercent       float64 `json:"disk_percent"`
	GoroutinesCount   int     `json:"goroutines_count"`
	WatchdogActive    bool    `json:"watchdog_active"`
	WatchdogThreshold float64 `json:"watchdog_threshold"`
	DiskWarningLevel  string  `json:"disk_warning_level"`
}

// Collect samples CPU over one second, memory and the disk holding path
func Collect(ctx context.Context, path string, threshold float64) Snapshot {
	var s Snapshot

	if percents, err := cpu.PercentWithContext(ctx, time.Second, false); err == nil && len(percents) > 0 {
		s.CPUPercent = round2(percents[0])
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.RAMUsedGB = round2(float64(vm.Used) / gib)
		s.RAMTotalGB = round2(float64(vm.Total) / gib)
		s.RAMPercent = round2(vm.UsedPercent)
	}

	if du, err := disk.UsageWithContext(ctx, path); err == nil {
		s.DiskUsedGB = round2(float64(du.Used) / gib)
		s.DiskTotalGB = round2(float64(du.Total) / gib)
		s.DiskPercent = round2(du.UsedPercent)
	}

	s.GoroutinesCount = runtime.NumGoroutine()
	s.WatchdogThreshold = threshold
	s.WatchdogActive = s.DiskPercent >= threshold
	s.DiskWarningLevel = WarningLevel(s.DiskPercent, threshold)
	return s
}

// WarningLevel grades disk usage against the watchdog threshold
func WarningLevel(percent, threshold float64) string {
	switch {
	case percent < threshold:
		return LevelSafe
	case percent < threshold+10:
		return LevelWarning
	default:
		return LevelCritical
	}
}

// DiskUsage returns a probe reporting used percent of the disk holding path
func DiskUsage(path string) func() (float64, error) {
	return func() (float64, error) {
		du, err := disk.Usage(path)
		if err != nil {
			return 0, err
		}
		return du.UsedPercent, nil
	}
}

func round2(v float64) float64 {
	return float64(int(v*100)) / 100
}
