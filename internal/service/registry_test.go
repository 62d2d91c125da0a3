package service

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/turtacn/puppetizer/pkg/consts"
)

type fakeExec struct {
	nextPID  int
	started  []string
	signaled []int
	failNext bool
}

func (f *fakeExec) Start(path string, args ...string) (int, error) {
	if f.failNext {
		f.failNext = false
		return 0, os.ErrNotExist
	}
	f.started = append(f.started, filepath.Base(path))
	f.nextPID++
	return 1000 + f.nextPID, nil
}

func (f *fakeExec) Signal(pid int, sig syscall.Signal) error {
	f.signaled = append(f.signaled, pid)
	return nil
}

func writeScript(t *testing.T, dir, name string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func newTestRegistry(t *testing.T) (*Registry, *fakeExec) {
	t.Helper()
	dir := t.TempDir()
	writeScript(t, dir, "nginx.start")
	writeScript(t, dir, "nginx.stop")
	writeScript(t, dir, "cron.start")
	writeScript(t, dir, "notes.txt") // not a service

	exec := &fakeExec{}
	reg := NewRegistry(exec)
	if err := reg.Discover(dir); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	return reg, exec
}

func TestRegistry_Discover(t *testing.T) {
	reg, _ := newTestRegistry(t)

	names := reg.Names()
	if len(names) != 2 || names[0] != "cron" || names[1] != "nginx" {
		t.Fatalf("Expected [cron nginx], got %v", names)
	}

	if svc := reg.FindByName("nginx"); svc == nil || reg.State(svc) != consts.StateDown {
		t.Error("Expected nginx registered and DOWN")
	}
	if reg.FindByName("notes") != nil {
		t.Error("Non-script file must not register a service")
	}
}

func TestRegistry_DiscoverMissingDir(t *testing.T) {
	reg := NewRegistry(&fakeExec{})
	if err := reg.Discover("/nonexistent/services"); err == nil {
		t.Fatal("Expected error for missing services dir")
	}
}

func TestRegistry_StartStopLifecycle(t *testing.T) {
	reg, exec := newTestRegistry(t)
	svc := reg.FindByName("nginx")

	if !reg.Start(svc) {
		t.Fatal("Start should succeed")
	}
	if reg.State(svc) != consts.StateUp {
		t.Errorf("Expected UP, got %v", reg.State(svc))
	}
	pid := reg.PID(svc)
	if pid == 0 {
		t.Fatal("Expected PID recorded")
	}
	if reg.FindByPID(pid) != svc {
		t.Error("FindByPID should resolve the started service")
	}

	// Double start is refused.
	if reg.Start(svc) {
		t.Error("Start of a running service should fail")
	}

	if !reg.Stop(svc) {
		t.Fatal("Stop should succeed")
	}
	if reg.State(svc) != consts.StatePendingDown {
		t.Errorf("Expected PENDING_DOWN, got %v", reg.State(svc))
	}
	if exec.started[len(exec.started)-1] != "nginx.stop" {
		t.Errorf("Expected stop hook spawned, got %v", exec.started)
	}

	// Stop of a non-UP service is refused.
	if reg.Stop(svc) {
		t.Error("Stop of a pending-down service should fail")
	}

	reg.SetDown(svc)
	if reg.State(svc) != consts.StateDown || reg.PID(svc) != 0 {
		t.Error("SetDown should clear state and PID")
	}
	if reg.FindByPID(pid) != nil {
		t.Error("FindByPID must not resolve a reaped service")
	}
}

func TestRegistry_StopWithoutHookSignals(t *testing.T) {
	reg, exec := newTestRegistry(t)
	svc := reg.FindByName("cron") // no cron.stop

	reg.Start(svc)
	pid := reg.PID(svc)
	if !reg.Stop(svc) {
		t.Fatal("Stop should succeed via SIGTERM fallback")
	}
	if len(exec.signaled) != 1 || exec.signaled[0] != pid {
		t.Errorf("Expected SIGTERM to pid %d, got %v", pid, exec.signaled)
	}
}

func TestRegistry_StartFailure(t *testing.T) {
	reg, exec := newTestRegistry(t)
	svc := reg.FindByName("nginx")

	exec.failNext = true
	if reg.Start(svc) {
		t.Fatal("Start should report spawn failure")
	}
	if reg.State(svc) != consts.StateDown {
		t.Error("Failed start must leave the service DOWN")
	}
}

func TestRegistry_StopAllAndCounts(t *testing.T) {
	reg, _ := newTestRegistry(t)
	nginx := reg.FindByName("nginx")
	cron := reg.FindByName("cron")

	reg.Start(nginx)
	reg.Start(cron)
	reg.Stop(cron) // already pending down before the sweep

	if got := reg.CountByState(consts.StateDown, true); got != 2 {
		t.Errorf("Expected 2 non-DOWN services, got %d", got)
	}

	outstanding := reg.StopAll()
	if outstanding != 2 {
		t.Errorf("Expected 2 outstanding services, got %d", outstanding)
	}
	if reg.State(nginx) != consts.StatePendingDown {
		t.Error("StopAll should move UP services to PENDING_DOWN")
	}

	reg.SetDown(nginx)
	reg.SetDown(cron)
	if got := reg.CountByState(consts.StateDown, true); got != 0 {
		t.Errorf("Expected 0 non-DOWN services, got %d", got)
	}
	if reg.StopAll() != 0 {
		t.Error("StopAll on a drained registry should report 0")
	}
}
