package signals

import (
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/turtacn/puppetizer/internal/spawn"
	"github.com/turtacn/puppetizer/pkg/logger"
)

// Kind discriminates the structured events produced by the Source.
type Kind int

const (
	// ChildExited reports one reaped child (PID and exit code).
	ChildExited Kind = iota
	// Terminate is emitted for SIGTERM and SIGINT.
	Terminate
	// Reconverge is emitted for SIGHUP.
	Reconverge
)

// Event is one discrete signal occurrence, consumed by the supervisor loop.
type Event struct {
	Kind     Kind
	PID      int
	ExitCode int
}

// Source converts SIGCHLD, SIGTERM, SIGINT and SIGHUP into a stream of typed
// events. It owns every wait4 call in the process: children are reaped here
// and nowhere else, so a SIGCHLD can never race two waiters. One SIGCHLD
// notification may cover several exited children (signals coalesce), so each
// notification drains all waitable children.
type Source struct {
	sigCh  chan os.Signal
	events chan Event

	mu      sync.Mutex
	waiters map[int]chan int
}

// NewSource installs the signal handlers and starts the pump goroutine. The
// four supervised signals stop reaching their default disposition from here
// on; they are only observable through Events.
func NewSource() *Source {
	s := &Source{
		sigCh:   make(chan os.Signal, 16),
		events:  make(chan Event, 64),
		waiters: make(map[int]chan int),
	}
	signal.Notify(s.sigCh, unix.SIGCHLD, unix.SIGTERM, unix.SIGINT, unix.SIGHUP)
	go s.pump()
	return s
}

// Events returns the stream the supervisor loop multiplexes over.
func (s *Source) Events() <-chan Event {
	return s.events
}

// Launch spawns command (with args appended) and registers a waiter for its
// exit code in the same critical section, so the exit cannot be lost to the
// reaper even when the child dies immediately. The child's exit is still
// reported through Events as well.
func (s *Source) Launch(command []string, args ...string) (int, <-chan int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pid, err := spawn.Start(command, args...)
	if err != nil {
		return 0, nil, err
	}
	done := make(chan int, 1)
	s.waiters[pid] = done
	return pid, done, nil
}

// Close uninstalls the signal handlers. Pending events already queued remain
// readable; no further events are produced.
func (s *Source) Close() {
	signal.Stop(s.sigCh)
	close(s.sigCh)
}

func (s *Source) pump() {
	for sig := range s.sigCh {
		switch sig {
		case unix.SIGCHLD:
			s.reapAll()
		case unix.SIGTERM, unix.SIGINT:
			s.events <- Event{Kind: Terminate}
		case unix.SIGHUP:
			s.events <- Event{Kind: Reconverge}
		}
	}
}

// reapAll collects every waitable child without blocking.
func (s *Source) reapAll() {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		switch {
		case pid > 0:
			s.deliver(pid, spawn.ExitCode(ws))
		case err == unix.EINTR:
			// retry
		case pid == 0 || err == unix.ECHILD:
			return
		default:
			logger.Log.Warn("wait4 failed", "err", err)
			return
		}
	}
}

func (s *Source) deliver(pid, code int) {
	s.mu.Lock()
	done, ok := s.waiters[pid]
	if ok {
		delete(s.waiters, pid)
	}
	s.mu.Unlock()

	if ok {
		done <- code
	}
	s.events <- Event{Kind: ChildExited, PID: pid, ExitCode: code}
}
