package supervisor

import "sync/atomic"

// HaltState is the process-wide halt coordination shared between the
// supervisor loop and the halt worker: a set-once flag, an at-most-once
// spawn guard, and a joinable handle. It is passed by reference into the
// loop and the dispatcher instead of living as package globals.
type HaltState struct {
	flag atomic.Bool
	done chan struct{}
}

func NewHaltState() *HaltState {
	return &HaltState{done: make(chan struct{})}
}

// Halting reports whether the halt transition has begun. The flag is
// monotonic: once true it never reverts.
func (h *HaltState) Halting() bool {
	return h.flag.Load()
}

// Trigger flips the halt flag and runs proc on its own goroutine, the halt
// worker. The transition happens at most once per process lifetime; later
// calls are no-ops and return false.
func (h *HaltState) Trigger(proc func()) bool {
	if !h.flag.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer close(h.done)
		proc()
	}()
	return true
}

// Join blocks until the halt worker has finished. It returns immediately
// when no worker was ever spawned.
func (h *HaltState) Join() {
	if !h.flag.Load() {
		return
	}
	<-h.done
}
