package supervisor

import (
	"github.com/turtacn/puppetizer/internal/control"
	"github.com/turtacn/puppetizer/internal/monitor"
	"github.com/turtacn/puppetizer/internal/service"
	"github.com/turtacn/puppetizer/pkg/logger"
)

// Dispatcher maps one parsed control command onto a registry operation and a
// response byte, honoring the halt gate: no service is started or stopped
// once halting has begun, while status queries keep being answered.
type Dispatcher struct {
	reg  *service.Registry
	halt *HaltState
}

func NewDispatcher(reg *service.Registry, halt *HaltState) *Dispatcher {
	return &Dispatcher{reg: reg, halt: halt}
}

// Dispatch never surfaces a raw error to the client; every outcome is one of
// the defined response tags.
func (d *Dispatcher) Dispatch(cmd control.Command) control.Response {
	resp := d.dispatch(cmd)
	monitor.CommandsTotal.WithLabelValues(cmd.Type.String(), resp.Tag().String()).Inc()
	return resp
}

func (d *Dispatcher) dispatch(cmd control.Command) control.Response {
	svc := d.reg.FindByName(cmd.Name)
	if svc == nil {
		logger.Log.Warn("Service was not found", "service", cmd.Name)
		return control.EncodeResponse(control.RespFailedLookup, 0)
	}

	switch cmd.Type {
	case control.CmdStart:
		if d.halt.Halting() {
			logger.Log.Warn("Ignoring service start request", "service", cmd.Name)
			return control.EncodeResponse(control.RespError, 0)
		}
		if d.reg.Start(svc) {
			return control.EncodeResponse(control.RespOK, 0)
		}
		return control.EncodeResponse(control.RespFailed, 0)

	case control.CmdStop:
		if d.halt.Halting() {
			logger.Log.Warn("Ignoring service stop request", "service", cmd.Name)
			return control.EncodeResponse(control.RespError, 0)
		}
		if d.reg.Stop(svc) {
			return control.EncodeResponse(control.RespOK, 0)
		}
		return control.EncodeResponse(control.RespFailed, 0)

	case control.CmdStatus:
		// Answered even while halting.
		return control.EncodeResponse(control.RespState, d.reg.State(svc))
	}

	return control.EncodeResponse(control.RespError, 0)
}
