// Package engine launches and supervises the external map generator
// process. One Launcher is shared; each preview session starts its own
// short-lived worker through it.
package engine

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/mapforge/previewd/internal/config"
)

// Worker is one running generator process. It is owned by a single
// preview session and lives for exactly one handshake.
type Worker interface {
	// PID returns the process id, or 0 if the worker never started.
	PID() int
	// Wait blocks until the process exits and returns its exit error.
	Wait() error
	// Stop kills the process. Safe to call after exit.
	Stop()
}

// Launcher starts workers. Implemented by the real process launcher and
// by the in-process mock.
type Launcher interface {
	Start(ctx context.Context) (Worker, error)
}

// ProcessLauncher spawns the configured engine binary with the fixed
// positional arguments: the handshake port literal and the mode string.
type ProcessLauncher struct {
	cfg config.EngineConfig

	mu   sync.Mutex
	last int // pid of the most recently started worker
}

func NewProcessLauncher(cfg config.EngineConfig) *ProcessLauncher {
	return &ProcessLauncher{cfg: cfg}
}

func (l *ProcessLauncher) Start(ctx context.Context) (Worker, error) {
	bin, err := exec.LookPath(l.cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("engine binary not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin, strconv.Itoa(l.cfg.Port), l.cfg.Mode)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting engine: %w", err)
	}

	l.mu.Lock()
	l.last = cmd.Process.Pid
	l.mu.Unlock()

	w := &procWorker{cmd: cmd}
	go w.Wait() // reap even if the session never asks for the exit status
	return w, nil
}

type procWorker struct {
	cmd      *exec.Cmd
	waitOnce sync.Once
	waitErr  error
}

func (w *procWorker) PID() int {
	if w.cmd.Process == nil {
		return 0
	}
	return w.cmd.Process.Pid
}

func (w *procWorker) Wait() error {
	w.waitOnce.Do(func() {
		w.waitErr = w.cmd.Wait()
	})
	return w.waitErr
}

func (w *procWorker) Stop() {
	if w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
}

// Stats describes the most recently started worker process. Zero value
// means no worker has run or the process is gone.
type Stats struct {
	PID        int     `json:"pid,omitempty"`
	Running    bool    `json:"running"`
	RSSBytes   uint64  `json:"rssBytes,omitempty"`
	CPUPercent float64 `json:"cpuPercent,omitempty"`
}

// Stats reports best-effort process stats for the last worker. Errors
// from the process layer (worker already exited) yield a zero report.
func (l *ProcessLauncher) Stats() Stats {
	l.mu.Lock()
	pid := l.last
	l.mu.Unlock()

	if pid == 0 {
		return Stats{}
	}

	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return Stats{PID: pid}
	}
	running, err := p.IsRunning()
	if err != nil || !running {
		return Stats{PID: pid}
	}

	st := Stats{PID: pid, Running: true}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		st.RSSBytes = mem.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		st.CPUPercent = cpu
	}
	return st
}
