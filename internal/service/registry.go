package service

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/turtacn/puppetizer/pkg/consts"
	errs "github.com/turtacn/puppetizer/pkg/errors"
	"github.com/turtacn/puppetizer/pkg/logger"
)

// Exec abstracts process operations so the registry can be exercised without
// spawning real children.
type Exec interface {
	// Start runs a script asynchronously and returns its PID.
	Start(path string, args ...string) (int, error)
	// Signal delivers sig to pid.
	Signal(pid int, sig syscall.Signal) error
}

// Service is one supervised service. Name and the script paths are immutable
// after discovery; state and pid are guarded by the owning Registry's mutex.
type Service struct {
	Name string

	startPath string
	stopPath  string // empty when the service has no stop hook

	state consts.ServiceState
	pid   int
}

// Registry is the in-memory table of supervised services. It serializes all
// state access internally: the supervisor loop and the halt worker both call
// into it concurrently.
type Registry struct {
	mu     sync.RWMutex
	exec   Exec
	byName map[string]*Service
}

func NewRegistry(exec Exec) *Registry {
	return &Registry{
		exec:   exec,
		byName: make(map[string]*Service),
	}
}

// Discover populates the registry from the service directory: every
// executable "<name>.start" script defines a service, its "<name>.stop"
// sibling (when present) becomes the stop hook. All services start DOWN.
func (r *Registry) Discover(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errs.New(errs.ErrCodeConfigInvalid, "Discover", "cannot read services dir "+dir, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), consts.StartScriptSuffix) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), consts.StartScriptSuffix)

		stopPath := filepath.Join(dir, name+consts.StopScriptSuffix)
		if _, err := os.Stat(stopPath); err != nil {
			stopPath = ""
		}

		r.byName[name] = &Service{
			Name:      name,
			startPath: filepath.Join(dir, entry.Name()),
			stopPath:  stopPath,
			state:     consts.StateDown,
		}
	}

	logger.Log.Info("Services registered", "count", len(r.byName))
	return nil
}

// FindByName returns the named service, or nil.
func (r *Registry) FindByName(name string) *Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// FindByPID returns the service currently tracked under pid, or nil.
func (r *Registry) FindByPID(pid int) *Service {
	if pid == 0 {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, svc := range r.byName {
		if svc.pid == pid {
			return svc
		}
	}
	return nil
}

// State returns svc's current state.
func (r *Registry) State(svc *Service) consts.ServiceState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return svc.state
}

// PID returns svc's current PID (0 when down).
func (r *Registry) PID(svc *Service) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return svc.pid
}

// Start spawns svc's run script and marks it UP. Returns false when the
// service is not DOWN or the spawn fails.
func (r *Registry) Start(svc *Service) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if svc.state != consts.StateDown {
		logger.Log.Warn("Service is not down, refusing start", "service", svc.Name, "state", svc.state.String())
		return false
	}

	pid, err := r.exec.Start(svc.startPath)
	if err != nil {
		logger.Log.Error("Service start failed", "service", svc.Name, "err", err)
		return false
	}

	svc.pid = pid
	svc.state = consts.StateUp
	logger.Log.Info("Service started", "service", svc.Name, "pid", pid)
	return true
}

// Stop requests svc's shutdown and marks it PENDING_DOWN. The request is
// fire-and-forget; the exit is observed later through SIGCHLD.
func (r *Registry) Stop(svc *Service) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked(svc)
}

func (r *Registry) stopLocked(svc *Service) bool {
	if svc.state != consts.StateUp {
		logger.Log.Warn("Service is not up, refusing stop", "service", svc.Name, "state", svc.state.String())
		return false
	}

	if svc.stopPath != "" {
		if _, err := r.exec.Start(svc.stopPath, strconv.Itoa(svc.pid)); err != nil {
			logger.Log.Error("Service stop hook failed", "service", svc.Name, "err", err)
			return false
		}
	} else {
		if err := r.exec.Signal(svc.pid, syscall.SIGTERM); err != nil {
			logger.Log.Error("Service signal failed", "service", svc.Name, "err", err)
			return false
		}
	}

	svc.state = consts.StatePendingDown
	logger.Log.Info("Service stop requested", "service", svc.Name, "pid", svc.pid)
	return true
}

// StopAll issues a stop for every running service and returns the number of
// services that were not yet DOWN when the sweep ran.
func (r *Registry) StopAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	outstanding := 0
	for _, name := range r.sortedNamesLocked() {
		svc := r.byName[name]
		if svc.state == consts.StateDown {
			continue
		}
		outstanding++
		if svc.state == consts.StateUp {
			r.stopLocked(svc)
		}
	}
	return outstanding
}

// SetDown records svc's observed exit: state DOWN, PID cleared.
func (r *Registry) SetDown(svc *Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc.state = consts.StateDown
	svc.pid = 0
}

// CountByState counts services in state, or not in state when negate is set.
func (r *Registry) CountByState(state consts.ServiceState, negate bool) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, svc := range r.byName {
		if (svc.state == state) != negate {
			n++
		}
	}
	return n
}

// Names returns all service names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNamesLocked()
}

func (r *Registry) sortedNamesLocked() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
