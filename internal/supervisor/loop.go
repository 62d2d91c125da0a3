package supervisor

import (
	"errors"
	"io"
	"time"

	"github.com/turtacn/puppetizer/internal/control"
	"github.com/turtacn/puppetizer/internal/monitor"
	"github.com/turtacn/puppetizer/internal/service"
	"github.com/turtacn/puppetizer/internal/signals"
	"github.com/turtacn/puppetizer/internal/spawn"
	"github.com/turtacn/puppetizer/pkg/consts"
	errs "github.com/turtacn/puppetizer/pkg/errors"
	"github.com/turtacn/puppetizer/pkg/fsm"
	"github.com/turtacn/puppetizer/pkg/logger"
)

// Lifecycle states and events of the supervisor loop.
const (
	StateBooting    fsm.State = "BOOTING"
	StateRunning    fsm.State = "RUNNING"
	StateHalting    fsm.State = "HALTING"
	StateTerminated fsm.State = "TERMINATED"

	EventBootOK   fsm.Event = "boot-ok"
	EventBootFail fsm.Event = "boot-fail"
	EventHalt     fsm.Event = "halt"
	EventDrained  fsm.Event = "drained"
	EventFatal    fsm.Event = "fatal"
)

// Loop is the supervisor's central event multiplexer. One goroutine drives
// it; the only other execution context it ever creates is the halt worker.
// It multiplexes the signal event stream and the control request stream,
// owns the boot/run/halt state machine, and decides its own termination.
type Loop struct {
	applyCommand []string
	reg          *service.Registry
	halt         *HaltState
	disp         *Dispatcher
	machine      *fsm.StateMachine

	events   <-chan signals.Event
	requests <-chan control.Request

	// launch spawns fire-and-forget children (boot, reconverge);
	// launchWait additionally reports the child's exit code (halt action).
	launch     func(command []string, args ...string) (int, error)
	launchWait func(command []string, args ...string) (int, <-chan int, error)

	// closeControl shuts the listener down and unlinks the socket path.
	closeControl func()

	pollInterval time.Duration

	bootPID  int
	exitCode errs.ErrorCode
}

func NewLoop(applyCommand []string, reg *service.Registry, src *signals.Source, srv *control.Server) *Loop {
	l := &Loop{
		applyCommand: applyCommand,
		reg:          reg,
		halt:         NewHaltState(),
		machine:      newLifecycle(),
		events:       src.Events(),
		requests:     srv.Requests(),
		launch:       spawn.Start,
		launchWait:   src.Launch,
		closeControl: srv.Close,
		pollInterval: consts.LoopPollInterval,
	}
	l.disp = NewDispatcher(reg, l.halt)
	return l
}

func newLifecycle() *fsm.StateMachine {
	m := fsm.New(StateBooting)
	m.AddTransition(StateBooting, StateRunning, EventBootOK, nil)
	m.AddTransition(StateBooting, StateTerminated, EventBootFail, nil)
	m.AddTransition(StateBooting, StateHalting, EventHalt, nil)
	m.AddTransition(StateBooting, StateTerminated, EventFatal, nil)
	m.AddTransition(StateRunning, StateHalting, EventHalt, nil)
	m.AddTransition(StateRunning, StateTerminated, EventFatal, nil)
	m.AddTransition(StateHalting, StateTerminated, EventDrained, nil)
	m.AddTransition(StateHalting, StateTerminated, EventBootFail, nil)
	m.AddTransition(StateHalting, StateTerminated, EventFatal, nil)
	return m
}

// StartBoot launches the convergence action and records its PID as the
// tracked bootstrap process. Spawn failure here is fatal for startup.
func (l *Loop) StartBoot() error {
	pid, err := l.launch(l.applyCommand)
	if err != nil {
		return errs.New(errs.ErrCodeSpawnFailed, "Boot", "could not start boot script", err)
	}
	l.bootPID = pid
	logger.Log.Info("Bootstrap started", "pid", pid)
	return nil
}

// Run drives the loop until the lifecycle reaches TERMINATED and returns the
// process exit code. The wait is bounded by pollInterval so halt completion
// is noticed even with no incoming events.
func (l *Loop) Run() int {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for !l.machine.Is(StateTerminated) {
		select {
		case ev := <-l.events:
			l.handleSignal(ev)
		case req := <-l.requests:
			l.handleRequest(req)
		case <-ticker.C:
		}

		monitor.ServicesUp.Set(float64(l.reg.CountByState(consts.StateUp, false)))

		if l.halt.Halting() && !l.machine.Is(StateTerminated) {
			if l.reg.CountByState(consts.StateDown, true) == 0 {
				logger.Log.Info("No more services running, exiting")
				l.machine.Fire(EventDrained)
			}
		}
	}

	if l.closeControl != nil {
		l.closeControl()
	}
	l.halt.Join()

	logger.Log.Info("Supervisor exiting", "code", int(l.exitCode))
	return int(l.exitCode)
}

func (l *Loop) handleSignal(ev signals.Event) {
	switch ev.Kind {
	case signals.ChildExited:
		l.handleChildExit(ev.PID, ev.ExitCode)

	case signals.Terminate:
		if l.halt.Halting() {
			logger.Log.Warn("Ignoring halting request")
			return
		}
		logger.Log.Debug("Halting")
		l.triggerHalt("signal")

	case signals.Reconverge:
		if l.halt.Halting() {
			logger.Log.Warn("Ignoring convergence request")
			return
		}
		logger.Log.Debug("Running convergence action")
		if _, err := l.launch(l.applyCommand); err != nil {
			logger.Log.Error("Failed to start convergence action", "err", err)
			l.fatal(errs.ErrCodeSpawnFailed)
		}
	}
}

// handleChildExit applies the reaping rule: bootstrap PID first, then the
// registry, everything else is a zombie already collected by the source.
func (l *Loop) handleChildExit(pid, code int) {
	if pid != 0 && pid == l.bootPID {
		// Tracked only until its termination is observed.
		l.bootPID = 0
		monitor.ReapedTotal.WithLabelValues("bootstrap").Inc()
		if code == 0 {
			logger.Log.Info("Booting completed")
			if l.machine.Is(StateBooting) {
				l.machine.Fire(EventBootOK)
			}
		} else {
			logger.Log.Error("Boot script failed", "code", code)
			l.exitCode = errs.ErrCodeBootFailed
			l.machine.Fire(EventBootFail)
		}
		return
	}

	svc := l.reg.FindByPID(pid)
	if svc == nil {
		logger.Log.Info("Reaped zombie", "pid", pid)
		monitor.ReapedTotal.WithLabelValues("zombie").Inc()
		return
	}

	preState := l.reg.State(svc)
	l.reg.SetDown(svc)
	monitor.ReapedTotal.WithLabelValues("service").Inc()
	logger.Log.Error("Service exited", "service", svc.Name, "code", code)

	// Unexpected death: not asked to stop, or failed while stopping.
	if preState != consts.StatePendingDown || code != 0 {
		logger.Log.Debug("Unexpected service exit, halting",
			"service", svc.Name, "code", code, "state", preState.String())
		l.triggerHalt("service-exit")
	}
}

func (l *Loop) handleRequest(req control.Request) {
	if req.Conn == nil {
		logger.Log.Error("Control listener failed", "err", req.Err)
		l.fatal(errs.Code(req.Err))
		return
	}
	if req.Err != nil {
		if !errors.Is(req.Err, io.EOF) {
			logger.Log.Warn("Failed to read client message", "err", req.Err)
		}
		req.Conn.Close()
		return
	}

	resp := l.disp.Dispatch(req.Cmd)
	if err := control.WriteResponse(req.Conn, resp); err != nil {
		logger.Log.Warn("Failed to handle client message", "err", err)
		req.Conn.Close()
		req.Finish(false)
		return
	}
	req.Finish(true)
}

// triggerHalt spawns the halt worker. Safe to call from any halt trigger
// path; only the first call has any effect.
func (l *Loop) triggerHalt(reason string) {
	if !l.halt.Trigger(l.runHalt) {
		return
	}
	monitor.HaltsTotal.WithLabelValues(reason).Inc()
	if l.machine.Can(EventHalt) {
		l.machine.Fire(EventHalt)
	}
}

// runHalt is the halt worker body. It runs off the loop goroutine because
// the convergence action and the stop sweep can block for seconds, and the
// loop must keep reaping children and answering status queries meanwhile.
func (l *Loop) runHalt() {
	logger.Log.Debug("Running halt action")
	if _, done, err := l.launchWait(l.applyCommand, consts.HaltDirective); err != nil {
		logger.Log.Error("Failed to start halt convergence", "err", err)
	} else if code := <-done; code != 0 {
		logger.Log.Error("Convergence halt failed", "code", code)
	}

	if n := l.reg.StopAll(); n > 0 {
		logger.Log.Warn("Stopping outstanding services", "count", n)
	}
}

func (l *Loop) fatal(code errs.ErrorCode) {
	if l.exitCode == errs.ExitOK {
		if code == errs.ExitOK || code == errs.ErrCodeUnknown {
			code = errs.ErrCodeMuxWait
		}
		l.exitCode = code
	}
	if l.machine.Can(EventFatal) {
		l.machine.Fire(EventFatal)
	}
}
