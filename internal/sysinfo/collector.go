// 本文件用于采集服务进程自身的资源占用 供健康检查接口展示

package sysinfo

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"ticket-template/internal/models"
)

const defaultCacheTTL = 1 * time.Second

// Options 用于配置采集器的默认行为
type Options struct {
	CacheTTL time.Duration
}

// Collector 负责采集进程资源快照 结果按 CacheTTL 缓存
type Collector struct {
	mu       sync.Mutex
	cacheTTL time.Duration
	proc     *process.Process
	started  time.Time

	last   models.ProcessStats
	lastAt time.Time
}

func NewCollector(opts Options) (*Collector, error) {
	cacheTTL := opts.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("open current process failed: %w", err)
	}
	started := time.Now()
	if ms, err := proc.CreateTime(); err == nil && ms > 0 {
		started = time.UnixMilli(ms)
	}
	return &Collector{cacheTTL: cacheTTL, proc: proc, started: started}, nil
}

// Snapshot 返回当前进程的资源占用
func (c *Collector) Snapshot() (models.ProcessStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if !c.lastAt.IsZero() && now.Sub(c.lastAt) < c.cacheTTL {
		return c.last, nil
	}
	mem, err := c.proc.MemoryInfo()
	if err != nil {
		return models.ProcessStats{}, fmt.Errorf("read process memory failed: %w", err)
	}
	cpuPct, err := c.proc.CPUPercent()
	if err != nil {
		cpuPct = 0
	}
	stats := models.ProcessStats{
		PID:        c.proc.Pid,
		RSSBytes:   mem.RSS,
		RSS:        formatBytes(float64(mem.RSS)),
		CPUPercent: clampPct(cpuPct),
		Uptime:     formatDurationCN(now.Sub(c.started)),
		Goroutines: runtime.NumGoroutine(),
	}
	c.last = stats
	c.lastAt = now
	return stats, nil
}
