// Package stats periodically samples a child PID's CPU and memory usage
// alongside the host's load averages, producing the one-line summaries
// the attach TUI's stats strip displays (spec §4.8).
package stats

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/process"
)

// Interval is the fixed period between samples.
const Interval = 2 * time.Second

// Sample is one point-in-time reading.
type Sample struct {
	CPUPercent  float64
	MemPercent  float32
	MemRSSBytes uint64
	Load1       float64
	Load5       float64
	Load15      float64
}

// String renders the exact stats-strip line format from spec §4.8.
func (s Sample) String() string {
	return fmt.Sprintf(
		"cpu: %.2f%% | mem: %.2f%% (%d Mb) | system load: %.2f, %.2f, %.2f",
		s.CPUPercent, s.MemPercent, s.MemRSSBytes/(1024*1024),
		s.Load1, s.Load5, s.Load15,
	)
}

// Sampler reads usage for a single PID.
type Sampler struct {
	proc *process.Process
}

// New returns a Sampler bound to pid. It fails if the process cannot be
// inspected at all.
func New(pid int) (*Sampler, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, err
	}
	return &Sampler{proc: proc}, nil
}

// Sample takes one reading. CPU% is the process's CPU time divided by the
// host's core count; mem% is RSS divided by total memory; load is the
// host's 1/5/15-minute averages.
func (s *Sampler) Sample() (Sample, error) {
	cpuPct, err := s.proc.Percent(0)
	if err != nil {
		return Sample{}, err
	}
	memPct, err := s.proc.MemoryPercent()
	if err != nil {
		return Sample{}, err
	}
	memInfo, err := s.proc.MemoryInfo()
	if err != nil {
		return Sample{}, err
	}
	avg, err := load.Avg()
	if err != nil {
		return Sample{}, err
	}

	cores := runtime.NumCPU()
	if cores < 1 {
		cores = 1
	}

	return Sample{
		CPUPercent:  cpuPct / float64(cores),
		MemPercent:  memPct,
		MemRSSBytes: memInfo.RSS,
		Load1:       avg.Load1,
		Load5:       avg.Load5,
		Load15:      avg.Load15,
	}, nil
}

// Run ticks every Interval, sending one rendered line to out per sample.
// Ticks never overlap: a slow sample delays the next tick rather than
// queuing one. If the process is no longer found, Run sends a single
// error line and returns (spec §4.8, "stop the sampler").
func Run(ctx context.Context, s *Sampler, out chan<- string) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample, err := s.Sample()
			if err != nil {
				select {
				case out <- fmt.Sprintf("Error: %v", err):
				case <-ctx.Done():
				}
				return
			}
			select {
			case out <- sample.String():
			case <-ctx.Done():
				return
			}
		}
	}
}
