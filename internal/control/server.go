package control

import (
	"net"
	"os"
	"sync"

	errs "github.com/turtacn/puppetizer/pkg/errors"
	"github.com/turtacn/puppetizer/pkg/logger"
)

// Request is one decoded client exchange handed to the supervisor loop.
// Err carries io.EOF on orderly close, ErrBadFrame on a malformed frame, or
// the raw read error; when Err is set the connection is already finished and
// the loop only has to close it. A Request with a nil Conn reports a fatal
// listener failure.
type Request struct {
	Conn net.Conn
	Cmd  Command
	Err  error

	resume chan bool
}

// Finish releases the connection's reader after the loop wrote the response.
// ok=false tears the connection down instead of reading the next frame.
func (r *Request) Finish(ok bool) {
	if r.resume != nil {
		r.resume <- ok
	}
}

// Server owns the control listener and the per-connection readers feeding
// the supervisor loop's request channel. Each connection is serviced one
// frame at a time: its reader does not pick up the next frame until the loop
// has finished the previous response, so requests reach the loop in arrival
// order with at most one outstanding exchange per connection.
type Server struct {
	path     string
	ln       net.Listener
	requests chan Request
	done     chan struct{}

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// Listen binds the unix-domain control socket, replacing a stale socket file
// left behind by a previous run, and starts accepting clients.
func Listen(path string) (*Server, error) {
	if _, err := os.Stat(path); err == nil {
		os.Remove(path)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, errs.New(errs.ErrCodeSocketFailed, "Listen", "cannot bind control socket "+path, err)
	}
	// Local control channel: owner-only access.
	os.Chmod(path, 0o700)

	s := &Server{
		path:     path,
		ln:       ln,
		requests: make(chan Request),
		done:     make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
	}
	go s.acceptLoop()

	logger.Log.Info("Control socket listening", "path", path)
	return s, nil
}

// Requests returns the channel the supervisor loop multiplexes over.
func (s *Server) Requests() <-chan Request {
	return s.requests
}

// Path returns the socket's filesystem path.
func (s *Server) Path() string {
	return s.path
}

// Close shuts down the listener, closes every open client connection and
// unlinks the socket path.
func (s *Server) Close() {
	close(s.done)
	s.ln.Close()

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = make(map[net.Conn]struct{})
	s.mu.Unlock()

	os.Remove(s.path)
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			// An accept failure outside shutdown means the listener is
			// broken; surface it to the loop as a fatal condition.
			fatal := errs.New(errs.ErrCodeMuxFailed, "Accept", "control accept failed", err)
			select {
			case s.requests <- Request{Err: fatal}:
			case <-s.done:
			}
			return
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	logger.Log.Debug("Control client connected")
	for {
		cmd, err := ReadCommand(conn)
		req := Request{Conn: conn, Cmd: cmd, Err: err}
		if err == nil {
			req.resume = make(chan bool, 1)
		}

		select {
		case s.requests <- req:
		case <-s.done:
			conn.Close()
			return
		}
		if err != nil {
			// The loop closes the connection.
			return
		}

		select {
		case ok := <-req.resume:
			if !ok {
				return
			}
		case <-s.done:
			conn.Close()
			return
		}
	}
}
