// Package sysinfo describes the host a solve ran on.
package sysinfo

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

// Info is the host fingerprint attached to debug output and benchmark comparisons.
type Info struct {
	Platform string `json:"platform"`
	CPU      string `json:"cpu"`
	Cores    int    `json:"cores"`
	Memory   string `json:"memory"`
}

// Collect queries the host. Fields the platform cannot report are left as "unknown".
func Collect() Info {
	info := Info{Platform: "unknown", CPU: "unknown", Cores: runtime.NumCPU(), Memory: "unknown"}
	if hostStat, err := host.Info(); err == nil && hostStat != nil {
		info.Platform = fmt.Sprintf("%s %s (%s/%s)", hostStat.Platform, hostStat.PlatformVersion, hostStat.OS, runtime.GOARCH)
	}
	if cpuStat, err := cpu.Info(); err == nil && len(cpuStat) > 0 {
		info.CPU = cpuStat[0].ModelName
	}
	if vmStat, err := mem.VirtualMemory(); err == nil && vmStat != nil {
		info.Memory = fmt.Sprintf("%d GB", vmStat.Total/1024/1024/1024)
	}
	return info
}

func (i Info) String() string {
	return fmt.Sprintf("%s, %s x%d, %s", i.Platform, i.CPU, i.Cores, i.Memory)
}
