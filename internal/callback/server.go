package callback

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nrfconnect/auto-pts/internal/pts"
	"github.com/nrfconnect/auto-pts/internal/ptscontrol"
)

// Server accepts callback connections and dispatches each request to a
// local Receiver. Receiver calls are serialised across connections.
type Server struct {
	listener net.Listener
	receiver ptscontrol.Receiver
	logger   *slog.Logger

	callMu sync.Mutex
	wg     sync.WaitGroup
	closed atomic.Bool

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// NewServer creates a server for receiver on listener.
func NewServer(listener net.Listener, receiver ptscontrol.Receiver, logger *slog.Logger) *Server {
	return &Server{
		listener: listener,
		receiver: receiver,
		logger:   logger,
		conns:    make(map[net.Conn]struct{}),
	}
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until the listener is closed. It returns nil
// after Close.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.track(conn, true)
		s.wg.Go(func() {
			defer s.track(conn, false)
			s.handleConnection(conn)
		})
	}
}

// Close stops accepting, closes open connections and waits for their
// handlers to return.
func (s *Server) Close() error {
	s.closed.Store(true)
	err := s.listener.Close()

	s.connMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) track(conn net.Conn, add bool) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if add {
		if s.closed.Load() {
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// handleConnection serves requests on conn until the peer disconnects.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.logger.Info("callback connection opened", "remote", remote)
	defer s.logger.Info("callback connection closed", "remote", remote)

	reader := bufio.NewReader(conn)
	for {
		var req Request
		if err := ReadMessage(reader, &req); err != nil {
			if !errors.Is(err, io.EOF) && !s.closed.Load() {
				s.logger.Error("read callback request", "remote", remote, "error", err)
			}
			return
		}

		resp := s.dispatch(req)
		if err := WriteMessage(conn, &resp); err != nil {
			s.logger.Error("write callback response", "remote", remote, "error", err)
			return
		}
	}
}

// dispatch runs one request against the receiver. Receiver errors and
// panics are reported back in the response.
func (s *Server) dispatch(req Request) (resp Response) {
	start := time.Now()
	resp.Seq = req.Seq

	s.callMu.Lock()
	defer s.callMu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			resp.Answer = ""
			resp.Error = fmt.Sprintf("receiver panic: %v", p)
		}
		var err error
		if resp.Error != "" {
			err = errors.New(resp.Error)
			s.logger.Warn("callback request failed", "seq", req.Seq, "method", req.Method, "error", resp.Error)
		}
		observeCall("server", req.Method, start, err)
	}()

	switch req.Method {
	case MethodLog:
		if req.Log == nil {
			resp.Error = "log request without params"
			return resp
		}
		p := req.Log
		if err := s.receiver.Log(pts.LogType(p.Type), p.Label, p.Time, p.Message); err != nil {
			resp.Error = err.Error()
		}
	case MethodImplicitSend:
		if req.ImplicitSend == nil {
			resp.Error = "implicit_send request without params"
			return resp
		}
		answer, err := s.receiver.OnImplicitSend(*req.ImplicitSend)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Answer = answer
		}
	default:
		resp.Error = fmt.Sprintf("unknown method %q", req.Method)
	}
	return resp
}
