package control

import (
	"bytes"
	"errors"
	"io"

	"github.com/turtacn/puppetizer/pkg/consts"
)

// Wire format: one fixed-size request frame per exchange, answered by a
// single response byte. Short reads and short writes are protocol errors,
// never silently tolerated.
const (
	FrameSize = 32
	NameSize  = FrameSize - 1
)

type CommandType uint8

const (
	CmdStart CommandType = iota + 1
	CmdStop
	CmdStatus
)

func (t CommandType) String() string {
	switch t {
	case CmdStart:
		return "start"
	case CmdStop:
		return "stop"
	case CmdStatus:
		return "status"
	}
	return "unknown"
}

// Command is one parsed client request.
type Command struct {
	Type CommandType
	Name string
}

// ResponseTag occupies the low nibble of the response byte.
type ResponseTag uint8

const (
	RespOK ResponseTag = iota + 1
	RespFailed
	RespError
	RespFailedLookup
	RespState
)

func (t ResponseTag) String() string {
	switch t {
	case RespOK:
		return "ok"
	case RespFailed:
		return "failed"
	case RespError:
		return "error"
	case RespFailedLookup:
		return "not-found"
	case RespState:
		return "state"
	}
	return "unknown"
}

// Response is the single-byte reply: tag in the low nibble, the service
// state in the high nibble when the tag is RespState.
type Response uint8

func EncodeResponse(tag ResponseTag, state consts.ServiceState) Response {
	return Response(state)<<4 | Response(tag)&0x0f
}

func (r Response) Tag() ResponseTag {
	return ResponseTag(r & 0x0f)
}

func (r Response) State() consts.ServiceState {
	return consts.ServiceState(r >> 4)
}

var (
	ErrBadFrame   = errors.New("control: malformed command frame")
	ErrShortWrite = errors.New("control: short write")
)

// ReadCommand reads exactly one command frame. io.EOF is returned only for
// an orderly close on a frame boundary; a partial frame is ErrBadFrame.
func ReadCommand(r io.Reader) (Command, error) {
	var buf [FrameSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.EOF {
			return Command{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Command{}, ErrBadFrame
		}
		return Command{}, err
	}

	typ := CommandType(buf[0])
	if typ < CmdStart || typ > CmdStatus {
		return Command{}, ErrBadFrame
	}

	name := buf[1:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		// Everything past the terminator must be padding.
		for _, b := range name[i:] {
			if b != 0 {
				return Command{}, ErrBadFrame
			}
		}
		name = name[:i]
	}
	if len(name) == 0 {
		return Command{}, ErrBadFrame
	}

	return Command{Type: typ, Name: string(name)}, nil
}

// WriteCommand emits one command frame, NUL-padding the name.
func WriteCommand(w io.Writer, c Command) error {
	if c.Type < CmdStart || c.Type > CmdStatus {
		return ErrBadFrame
	}
	if len(c.Name) == 0 || len(c.Name) > NameSize {
		return ErrBadFrame
	}

	var buf [FrameSize]byte
	buf[0] = byte(c.Type)
	copy(buf[1:], c.Name)

	n, err := w.Write(buf[:])
	if err != nil {
		return err
	}
	if n != FrameSize {
		return ErrShortWrite
	}
	return nil
}

// WriteResponse emits the single response byte.
func WriteResponse(w io.Writer, resp Response) error {
	n, err := w.Write([]byte{byte(resp)})
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrShortWrite
	}
	return nil
}

// ReadResponse reads the single response byte.
func ReadResponse(r io.Reader) (Response, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return Response(buf[0]), nil
}
