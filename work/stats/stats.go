// Package stats collects host health numbers for the admin dashboard.
package stats

import (
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	gonet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/sensors"

	"nvr-kiosk/work/logger"
)

// Snapshot is one reading of the host's vitals.
type Snapshot struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemPercent    float64 `json:"memPercent"`
	DiskPercent   float64 `json:"diskPercent"`
	TemperatureC  float64 `json:"temperatureC"`
	UptimeSeconds uint64  `json:"uptimeSeconds"`
	BytesRecv     uint64  `json:"bytesRecv"`
	Timestamp     int64   `json:"timestamp"`
}

// Collect gathers a snapshot. Individual sensor failures are logged and
// leave their field zero; a kiosk without a thermal sensor is normal.
func Collect() Snapshot {
	s := Snapshot{Timestamp: time.Now().Unix()}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	} else if err != nil {
		logger.Debug("CPU stats unavailable: %v", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemPercent = vm.UsedPercent
	} else {
		logger.Debug("Memory stats unavailable: %v", err)
	}

	if du, err := disk.Usage("/"); err == nil {
		s.DiskPercent = du.UsedPercent
	} else {
		logger.Debug("Disk stats unavailable: %v", err)
	}

	if up, err := host.Uptime(); err == nil {
		s.UptimeSeconds = up
	}

	if temps, err := sensors.SensorsTemperatures(); err == nil {
		for _, t := range temps {
			if t.Temperature > s.TemperatureC {
				s.TemperatureC = t.Temperature
			}
		}
	}

	if counters, err := gonet.IOCounters(false); err == nil && len(counters) > 0 {
		s.BytesRecv = counters[0].BytesRecv
	}

	return s
}
