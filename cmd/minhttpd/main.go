package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/nczempin/minhttpd/eventloop"
	"github.com/nczempin/minhttpd/examples"
	"github.com/nczempin/minhttpd/internal/obs"
	"github.com/nczempin/minhttpd/router"
	"github.com/nczempin/minhttpd/server"
	"github.com/nczempin/minhttpd/transport"
)

type options struct {
	addr        string
	loopback    bool
	transport   string
	socket      string
	concurrent  bool
	buffer      int
	readTimeout time.Duration
	logLevel    string
	multicore   bool
}

func main() {
	var opts options
	flag.StringVar(&opts.addr, "addr", ":8080", "listen address (host:port)")
	flag.BoolVar(&opts.loopback, "loopback", false, "bind 127.0.0.1 only, keeping the port from -addr")
	flag.StringVar(&opts.transport, "transport", "tcp", "tcp, unix, uring, uring2 or gnet")
	flag.StringVar(&opts.socket, "socket", "/tmp/minhttpd.sock", "socket path for -transport unix")
	flag.BoolVar(&opts.concurrent, "concurrent", false, "serve each connection on its own goroutine")
	flag.IntVar(&opts.buffer, "buffer", server.DefaultBufferSize, "request read buffer in bytes")
	flag.DurationVar(&opts.readTimeout, "read-timeout", 0, "bound on the request read (0 waits forever)")
	flag.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	flag.BoolVar(&opts.multicore, "multicore", false, "run one gnet event loop per CPU")
	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

func run(opts options) error {
	level, err := obs.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logger := obs.StdLogger{L: log.New(os.Stderr, "", log.LstdFlags), Min: level, Pref: "minhttpd "}
	meter := obs.NewMemMeter()
	defer logMetrics(logger, meter)

	r, err := router.New(examples.Routes()...)
	if err != nil {
		return err
	}

	host, port, err := splitAddr(opts.addr)
	if err != nil {
		return err
	}
	if opts.loopback {
		host = "127.0.0.1"
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	if opts.transport == "gnet" {
		for _, name := range ignoredByGnet(opts) {
			logger.Logf(obs.Warn, "-%s has no effect with -transport gnet", name)
		}
		h := &server.ConnHandler{Router: r, Logger: logger, Meter: meter, BufferSize: opts.buffer}
		s := eventloop.NewServer(h, eventloop.Config{
			Addr:      net.JoinHostPort(host, strconv.Itoa(port)),
			Multicore: opts.multicore,
			Logger:    logger,
		})
		go func() {
			<-stop
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Stop(ctx); err != nil {
				logger.Logf(obs.Error, "stop: %v", err)
			}
		}()
		return s.Start()
	}

	l, cleanup, err := listen(opts, host, port)
	if err != nil {
		return err
	}
	defer cleanup()

	s := &server.Server{
		Router:      r,
		Logger:      logger,
		Meter:       meter,
		BufferSize:  opts.buffer,
		ReadTimeout: opts.readTimeout,
		Concurrent:  opts.concurrent,
	}
	go func() {
		<-stop
		logger.Logf(obs.Info, "shutting down")
		s.Close()
	}()

	if err := s.Serve(l); err != server.ErrServerClosed {
		return err
	}
	return nil
}

// listen opens the listener named by opts.transport. cleanup releases
// resources that outlive Close, such as an io_uring instance.
func listen(opts options, host string, port int) (transport.Listener, func(), error) {
	noop := func() {}
	switch opts.transport {
	case "tcp":
		l := transport.NewTcpListener()
		if err := l.Listen(host, port); err != nil {
			return nil, noop, err
		}
		return l, noop, nil
	case "unix":
		l := transport.NewUnixListener()
		if err := l.Listen(opts.socket, 0); err != nil {
			return nil, noop, err
		}
		return l, noop, nil
	case "uring":
		l, err := transport.NewUringListener()
		if err != nil {
			return nil, noop, err
		}
		if err := l.Listen(host, port); err != nil {
			l.Destroy()
			return nil, noop, err
		}
		return l, l.Destroy, nil
	case "uring2":
		l, err := transport.NewUringListenerV2()
		if err != nil {
			return nil, noop, err
		}
		if err := l.Listen(host, port); err != nil {
			l.Destroy()
			return nil, noop, err
		}
		return l, l.Destroy, nil
	default:
		return nil, noop, fmt.Errorf("unknown transport %q", opts.transport)
	}
}

// ignoredByGnet names the flags the event loop front end does not honour.
// gnet never blocks on a read and already serves connections side by side.
func ignoredByGnet(opts options) []string {
	var names []string
	if opts.concurrent {
		names = append(names, "concurrent")
	}
	if opts.readTimeout > 0 {
		names = append(names, "read-timeout")
	}
	return names
}

// logMetrics writes the meter's totals, one line per series, in name order
func logMetrics(logger obs.Logger, meter *obs.MemMeter) {
	snap := meter.Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		logger.Logf(obs.Info, "%s %g", name, snap[name])
	}
}

func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("bad -addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("bad port in -addr %q", addr)
	}
	return host, port, nil
}
