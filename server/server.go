// Package server runs the accept loop and the per-connection request
// pipeline on top of any transport.Listener.
package server

import (
	stderrors "errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/nczempin/minhttpd/errors"
	"github.com/nczempin/minhttpd/internal/obs"
	"github.com/nczempin/minhttpd/router"
	"github.com/nczempin/minhttpd/transport"
)

// ErrServerClosed is returned by Serve and ListenAndServe after Close.
var ErrServerClosed = stderrors.New("minhttpd: server closed")

// Server accepts connections and hands each one to a ConnHandler.
//
// By default connections are served one at a time, each to completion before
// the next Accept, so a stalled client blocks everyone behind it. Set
// Concurrent to serve every connection on its own goroutine; the router is
// the only state they share.
type Server struct {
	Addr        string // host:port, ":8080" when empty
	Router      *router.Router
	Logger      obs.Logger
	Meter       obs.Meter
	BufferSize  int
	MaxParams   int
	ReadTimeout time.Duration
	Concurrent  bool

	mu       sync.Mutex
	listener transport.Listener
	closed   bool
	inflight sync.WaitGroup
}

func (s *Server) logger() obs.Logger {
	if s.Logger == nil {
		return obs.NopLogger{}
	}
	return s.Logger
}

func (s *Server) meter() obs.Meter {
	if s.Meter == nil {
		return obs.NopMeter{}
	}
	return s.Meter
}

// Handler returns the ConnHandler configured from s
func (s *Server) Handler() *ConnHandler {
	return &ConnHandler{
		Router:      s.Router,
		Logger:      s.logger(),
		Meter:       s.meter(),
		BufferSize:  s.BufferSize,
		MaxParams:   s.MaxParams,
		ReadTimeout: s.ReadTimeout,
	}
}

// ListenAndServe listens on s.Addr over TCP and calls Serve.
func (s *Server) ListenAndServe() error {
	addr := s.Addr
	if addr == "" {
		addr = ":8080"
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return errors.NewInvalidArgumentError("bad listen address " + addr + ": " + err.Error())
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return errors.NewInvalidArgumentError("bad port in " + addr)
	}

	l := transport.NewTcpListener()
	if err := l.Listen(host, port); err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Close is called or l fails for good.
// Serve takes ownership of l and closes it on return.
func (s *Server) Serve(l transport.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()
	defer l.Close()

	log := s.logger()
	h := s.Handler()
	log.Logf(obs.Info, "server is listening on %s", displayAddr(l.Addr()))

	var tempDelay time.Duration // how long to sleep on accept failure
	for {
		c, err := l.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			if errors.IsTransport(err, errors.TransportErrorConnectionClosed) {
				return err
			}
			s.meter().Counter("minhttpd_accept_errors_total", 1)
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if max := 1 * time.Second; tempDelay > max {
				tempDelay = max
			}
			log.Logf(obs.Error, "accept failed: %v; retrying in %v", err, tempDelay)
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0

		if !s.Concurrent {
			h.ServeConn(c)
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			c.Close()
			return ErrServerClosed
		}
		s.inflight.Add(1)
		s.mu.Unlock()
		go func() {
			defer s.inflight.Done()
			h.ServeConn(c)
		}()
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops the accept loop and waits for connections already being
// served.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	l := s.listener
	s.mu.Unlock()

	var err error
	if l != nil {
		err = l.Close()
	}
	s.inflight.Wait()
	return err
}

// displayAddr turns a bound address into a URL for the startup banner.
// Unix socket paths are returned unchanged.
func displayAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
