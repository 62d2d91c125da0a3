package consts

import "time"

// ServiceState is the lifecycle state of a supervised service. Values must
// fit in four bits: STATUS responses carry the state in the high nibble of
// the response byte.
type ServiceState uint8

const (
	StateDown        ServiceState = 0 // Not running
	StateUp          ServiceState = 1 // Running under supervision
	StatePendingDown ServiceState = 2 // Stop requested, exit not yet observed
)

// String returns the state name used in logs and client output.
func (s ServiceState) String() string {
	switch s {
	case StateDown:
		return "down"
	case StateUp:
		return "up"
	case StatePendingDown:
		return "pending-down"
	}
	return "unknown"
}

// Supervisor defaults.
const (
	DefaultControlSocket = "/run/puppetizer.sock"
	DefaultServicesDir   = "/opt/puppetizer/services"

	// LoopPollInterval bounds the supervisor loop's wait so halt completion
	// is polled even when no signal or client activity arrives.
	LoopPollInterval = 500 * time.Millisecond

	// HaltDirective is passed to the convergence command during shutdown.
	HaltDirective = "halt"

	// StartScriptSuffix marks the per-service run script inside the service
	// directory; the optional stop hook uses StopScriptSuffix.
	StartScriptSuffix = ".start"
	StopScriptSuffix  = ".stop"
)
