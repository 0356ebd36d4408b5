// Package eventloop serves the request pipeline from gnet event loops
// instead of a blocking accept loop.
package eventloop

import (
	"context"
	"os"
	"sync"

	"github.com/panjf2000/gnet/v2"
	"github.com/panjf2000/gnet/v2/pkg/logging"

	"github.com/nczempin/minhttpd/errors"
	"github.com/nczempin/minhttpd/internal/obs"
	"github.com/nczempin/minhttpd/server"
)

// Config holds the event loop options
type Config struct {
	Addr         string // host:port, ":8080" when empty
	Multicore    bool
	NumEventLoop int
	ReusePort    bool
	Logger       obs.Logger
}

// Server implements gnet.EventHandler around a server.ConnHandler.
//
// Every connection gets exactly one OnTraffic call: whatever has arrived is
// treated as the whole request, answered and closed. There is no half-close;
// gnet shuts the connection down in both directions after flushing the reply.
type Server struct {
	gnet.BuiltinEventEngine

	handler *server.ConnHandler
	cfg     Config
	logger  obs.Logger

	mu     sync.Mutex
	engine gnet.Engine
	booted chan struct{}
	once   sync.Once
}

// NewServer creates a Server for h. It does not listen until Start.
func NewServer(h *server.ConnHandler, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = obs.NopLogger{}
	}
	return &Server{
		handler: h,
		cfg:     cfg,
		logger:  logger,
		booted:  make(chan struct{}),
	}
}

// Start runs the event loops and blocks until Stop is called or the engine
// fails to start.
func (s *Server) Start() error {
	if s.handler == nil || s.handler.Router == nil {
		return errors.NewInvalidArgumentError("event loop server needs a handler with a router")
	}
	options := []gnet.Option{
		gnet.WithMulticore(s.cfg.Multicore),
		gnet.WithReusePort(s.cfg.ReusePort),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
		gnet.WithLogger(gnetLogger{s.logger}),
	}
	if s.cfg.NumEventLoop > 0 {
		options = append(options, gnet.WithNumEventLoop(s.cfg.NumEventLoop))
	}

	if err := gnet.Run(s, "tcp://"+s.cfg.Addr, options...); err != nil {
		return errors.NewTransportError(errors.TransportErrorSocketListenFailure, "event loop on "+s.cfg.Addr, err)
	}
	return nil
}

// Booted is closed once the engine accepts connections
func (s *Server) Booted() <-chan struct{} {
	return s.booted
}

// Stop shuts the engine down. It waits for Start to boot first, so it is
// safe to call right after launching Start in a goroutine.
func (s *Server) Stop(ctx context.Context) error {
	select {
	case <-s.booted:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	eng := s.engine
	s.mu.Unlock()
	s.logger.Logf(obs.Info, "stopping event loops on %s", s.cfg.Addr)
	return eng.Stop(ctx)
}

// OnBoot records the engine so Stop can reach it
func (s *Server) OnBoot(eng gnet.Engine) gnet.Action {
	s.mu.Lock()
	s.engine = eng
	s.mu.Unlock()
	s.once.Do(func() { close(s.booted) })
	s.logger.Logf(obs.Info, "server is listening on %s (multicore: %v)", s.cfg.Addr, s.cfg.Multicore)
	return gnet.None
}

func (s *Server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	s.logger.Logf(obs.Debug, "client connected: %s", c.RemoteAddr())
	return nil, gnet.None
}

func (s *Server) OnClose(c gnet.Conn, err error) gnet.Action {
	if err != nil {
		s.logger.Logf(obs.Debug, "connection %s closed: %v", c.RemoteAddr(), err)
	}
	return gnet.None
}

// OnTraffic answers the first chunk of data on c and closes it
func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	buf, err := c.Next(-1)
	if err != nil {
		s.logger.Logf(obs.Error, "receive failed: %v", err)
		return gnet.Close
	}

	res := s.handler.Handle(buf)
	if res.Response == nil {
		return gnet.Close
	}

	peer := c.RemoteAddr().String()
	n, err := c.Write(res.Response)
	if err != nil {
		s.logger.Logf(obs.Error, "send failed: %v", err)
		return gnet.Close
	}
	s.handler.RecordSent(peer, n)
	return gnet.Close
}

// gnetLogger routes gnet's internal logging through obs
type gnetLogger struct {
	l obs.Logger
}

var _ logging.Logger = gnetLogger{}

func (g gnetLogger) Debugf(format string, args ...interface{}) { g.l.Logf(obs.Debug, format, args...) }
func (g gnetLogger) Infof(format string, args ...interface{})  { g.l.Logf(obs.Info, format, args...) }
func (g gnetLogger) Warnf(format string, args ...interface{})  { g.l.Logf(obs.Warn, format, args...) }
func (g gnetLogger) Errorf(format string, args ...interface{}) { g.l.Logf(obs.Error, format, args...) }

func (g gnetLogger) Fatalf(format string, args ...interface{}) {
	g.l.Logf(obs.Error, format, args...)
	os.Exit(1)
}
