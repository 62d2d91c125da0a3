// Package client implements the command side of the control socket. It
// performs exactly one request/response exchange per invocation, mirroring
// the supervisor's one-outstanding-command-per-connection contract.
package client

import (
	"fmt"
	"io"
	"net"
	"os"

	"github.com/turtacn/puppetizer/internal/control"
	errs "github.com/turtacn/puppetizer/pkg/errors"
)

// Run connects to the supervisor's control socket, sends one command and
// reports the outcome on out/errOut. The return value is the process exit
// code: 0 for OK and STATE responses, non-zero otherwise.
func Run(socketPath string, typ control.CommandType, name string, out, errOut io.Writer) int {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		fmt.Fprintf(errOut, "cannot connect to supervisor at %s: %v\n", socketPath, err)
		return int(errs.ErrCodeSocketFailed)
	}
	defer conn.Close()

	if err := control.WriteCommand(conn, control.Command{Type: typ, Name: name}); err != nil {
		fmt.Fprintf(errOut, "cannot send %s command: %v\n", typ, err)
		return int(errs.ErrCodeUnknown)
	}

	resp, err := control.ReadResponse(conn)
	if err != nil {
		fmt.Fprintf(errOut, "no response from supervisor: %v\n", err)
		return int(errs.ErrCodeUnknown)
	}

	switch resp.Tag() {
	case control.RespOK:
		fmt.Fprintf(out, "%s: ok\n", name)
		return 0
	case control.RespState:
		fmt.Fprintf(out, "%s: %s\n", name, resp.State())
		return 0
	case control.RespFailed:
		fmt.Fprintf(errOut, "%s: command failed\n", name)
	case control.RespError:
		fmt.Fprintf(errOut, "%s: command rejected, supervisor is halting\n", name)
	case control.RespFailedLookup:
		fmt.Fprintf(errOut, "%s: no such service\n", name)
	default:
		fmt.Fprintf(errOut, "%s: unexpected response %#02x\n", name, byte(resp))
	}
	return int(errs.ErrCodeUnknown)
}

// RunStdio is Run wired to the process's standard streams.
func RunStdio(socketPath string, typ control.CommandType, name string) int {
	return Run(socketPath, typ, name, os.Stdout, os.Stderr)
}
