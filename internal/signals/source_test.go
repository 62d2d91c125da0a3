package signals

import (
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func waitEvent(t *testing.T, s *Source, want Kind) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-s.Events():
			if ev.Kind == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for event kind %v", want)
		}
	}
}

func TestSource_LaunchDeliversExitCode(t *testing.T) {
	s := NewSource()
	defer s.Close()

	pid, done, err := s.Launch([]string{"/bin/sh", "-c", "exit 7"})
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}

	select {
	case code := <-done:
		if code != 7 {
			t.Errorf("Expected exit code 7, got %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for exit code")
	}

	ev := waitEvent(t, s, ChildExited)
	if ev.PID != pid || ev.ExitCode != 7 {
		t.Errorf("Expected ChildExited{pid=%d code=7}, got %+v", pid, ev)
	}
}

func TestSource_ChildExitedEvent(t *testing.T) {
	s := NewSource()
	defer s.Close()

	pid, _, err := s.Launch([]string{"/bin/true"})
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}

	ev := waitEvent(t, s, ChildExited)
	if ev.PID != pid {
		t.Errorf("Expected pid %d, got %d", pid, ev.PID)
	}
	if ev.ExitCode != 0 {
		t.Errorf("Expected exit code 0, got %d", ev.ExitCode)
	}
}

func TestSource_TerminateEvent(t *testing.T) {
	s := NewSource()
	defer s.Close()

	if err := unix.Kill(os.Getpid(), unix.SIGTERM); err != nil {
		t.Fatalf("Kill failed: %v", err)
	}
	waitEvent(t, s, Terminate)
}

func TestSource_ReconvergeEvent(t *testing.T) {
	s := NewSource()
	defer s.Close()

	if err := unix.Kill(os.Getpid(), unix.SIGHUP); err != nil {
		t.Fatalf("Kill failed: %v", err)
	}
	waitEvent(t, s, Reconverge)
}
