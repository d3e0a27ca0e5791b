// Package hoststats reports host facts and resource usage through gopsutil.
package hoststats

import (
	"context"
	"fmt"
	"net/netip"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/ports"
)

var _ ports.HostStats = (*Collector)(nil)

type Collector struct {
	// DiskPath is the mount point whose usage is reported.
	DiskPath string
	// Sample is the window over which CPU usage is measured.
	Sample time.Duration
}

func New() *Collector {
	return &Collector{DiskPath: "/", Sample: 500 * time.Millisecond}
}

func (c *Collector) Info(ctx context.Context) (domain.HostInfo, error) {
	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		return domain.HostInfo{}, fmt.Errorf("failed to read host info: %w", err)
	}
	info := domain.HostInfo{
		Hostname: hi.Hostname,
		Platform: strings.TrimSpace(hi.Platform + " " + hi.PlatformVersion),
		OS:       hi.OS,
		Arch:     hi.KernelArch,
		Uptime:   hi.Uptime,
		CPUs:     runtime.NumCPU(),
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		info.Load = []float64{avg.Load1, avg.Load5, avg.Load15}
	}
	if ifaces, err := psnet.InterfacesWithContext(ctx); err == nil {
		info.IP = primaryIPv4(ifaces)
	}
	return info, nil
}

// primaryIPv4 returns the first IPv4 address of a non-loopback interface.
func primaryIPv4(ifaces psnet.InterfaceStatList) string {
	for _, iface := range ifaces {
		if slices.Contains(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			prefix, err := netip.ParsePrefix(a.Addr)
			if err != nil {
				continue
			}
			if addr := prefix.Addr(); addr.Is4() && !addr.IsLoopback() {
				return addr.String()
			}
		}
	}
	return ""
}

func (c *Collector) Stats(ctx context.Context) (domain.HostStats, error) {
	var st domain.HostStats

	percents, err := cpu.PercentWithContext(ctx, c.Sample, false)
	if err != nil {
		return st, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	if len(percents) > 0 {
		st.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return st, fmt.Errorf("failed to read memory usage: %w", err)
	}
	st.Memory = domain.UsageStat{Total: vm.Total, Used: vm.Used, Free: vm.Available, UsedPercent: vm.UsedPercent}

	du, err := disk.UsageWithContext(ctx, c.DiskPath)
	if err != nil {
		return st, fmt.Errorf("failed to read disk usage: %w", err)
	}
	st.Disk = domain.UsageStat{Total: du.Total, Used: du.Used, Free: du.Free, UsedPercent: du.UsedPercent}
	return st, nil
}
