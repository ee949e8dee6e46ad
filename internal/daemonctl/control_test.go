package daemonctl

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"comicdl/internal/api"
	"comicdl/internal/testsupport"
)

func TestHelperProcess(t *testing.T) {
	if os.Getenv("COMICDL_HELPER_PROCESS") != "1" {
		return
	}
	time.Sleep(time.Minute)
	os.Exit(0)
}

func TestForceKillProcessKillsPIDFromFile(t *testing.T) {
	cmd := exec.Command(os.Args[0], "-test.run=TestHelperProcess")
	cmd.Env = append(os.Environ(), "COMICDL_HELPER_PROCESS=1")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start helper: %v", err)
	}
	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	dir := t.TempDir()
	pidPath := filepath.Join(dir, "comicdl.pid")
	lockPath := filepath.Join(dir, "comicdl.lock")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(cmd.Process.Pid)+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if err := os.WriteFile(lockPath, nil, 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}

	pid, err := ForceKillProcess(pidPath, lockPath, 0)
	if err != nil {
		t.Fatalf("ForceKillProcess: %v", err)
	}
	if pid != cmd.Process.Pid {
		t.Fatalf("killed pid %d, want %d", pid, cmd.Process.Pid)
	}
	select {
	case <-waitErr:
	case <-time.After(5 * time.Second):
		t.Fatal("helper process still running")
	}
	for _, path := range []string{pidPath, lockPath} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("%s should be removed, stat err %v", path, err)
		}
	}
}

func TestForceKillProcessRefusesSelf(t *testing.T) {
	dir := t.TempDir()
	if _, err := ForceKillProcess(filepath.Join(dir, "missing.pid"), "", os.Getpid()); err == nil {
		t.Fatal("expected refusal to kill current process")
	}
	if _, err := ForceKillProcess(filepath.Join(dir, "missing.pid"), "", 0); err == nil {
		t.Fatal("expected error without pid")
	}
}

func TestStopReportsNotRunningWithoutSocket(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := StopAndTerminate(cfg, 100*time.Millisecond); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	alive, pid, err := ProcessInfo(cfg.SocketPath())
	if err != nil || alive || pid != 0 {
		t.Fatalf("ProcessInfo = %v %d %v", alive, pid, err)
	}
	if err := WaitForShutdown(cfg.SocketPath(), 100*time.Millisecond); err != nil {
		t.Fatalf("WaitForShutdown: %v", err)
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.Enqueue(t, store, 5001, "Comic", "Ep 1")

	snapshot, err := BuildStatusSnapshot(context.Background(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snapshot.Daemon.Running {
		t.Fatal("daemon should be reported offline")
	}
	if snapshot.QueueStats["pending"] != 1 {
		t.Fatalf("offline queue stats = %v", snapshot.QueueStats)
	}
	if snapshot.SystemChecks[0].Severity != "warn" {
		t.Fatalf("expected not-running warning, got %+v", snapshot.SystemChecks[0])
	}
	for _, line := range snapshot.Directories {
		if line.Severity != "ok" {
			t.Fatalf("directory check failed: %+v", line)
		}
	}
	if snapshot.Daemon.QueueDBPath != cfg.DatabasePath() {
		t.Fatalf("db path = %q", snapshot.Daemon.QueueDBPath)
	}
}

func TestBuildDependencySummary(t *testing.T) {
	tests := []struct {
		name     string
		deps     []api.DependencyStatus
		severity string
		detail   string
	}{
		{name: "none", severity: "info", detail: "No dependency checks configured"},
		{
			name:     "all available",
			deps:     []api.DependencyStatus{{Name: "a", Available: true}},
			severity: "ok",
			detail:   "1/1 available",
		},
		{
			name:     "optional missing",
			deps:     []api.DependencyStatus{{Name: "a", Available: true}, {Name: "b", Optional: true}},
			severity: "warn",
			detail:   "1/2 available (missing: 0 required, 1 optional)",
		},
		{
			name:     "required missing",
			deps:     []api.DependencyStatus{{Name: "a"}, {Name: "b", Optional: true}},
			severity: "error",
			detail:   "0/2 available (missing: 1 required, 1 optional)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildDependencySummary(tt.deps)
			if got.Severity != tt.severity || got.Detail != tt.detail {
				t.Fatalf("summary = %+v", got)
			}
		})
	}
}
