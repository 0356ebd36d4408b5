package transport

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"sync"

	httperrors "github.com/nczempin/minhttpd/errors"
)

// UnixListener implements the Listener interface using Unix domain sockets
type UnixListener struct {
	mu   sync.Mutex
	ln   *net.UnixListener
	path string
}

// NewUnixListener creates a new UnixListener instance
func NewUnixListener() *UnixListener {
	return &UnixListener{
		ln: nil,
	}
}

// Listen binds a Unix domain socket at path.
// The port parameter is ignored for Unix sockets.
// A stale socket file left at path is removed first.
func (l *UnixListener) Listen(path string, port int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return httperrors.NewTransportError(httperrors.TransportErrorSocketListenFailure, "already listening", nil)
	}

	if fi, err := os.Lstat(path); err == nil && fi.Mode()&fs.ModeSocket != 0 {
		os.Remove(path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return httperrors.NewTransportError(httperrors.TransportErrorSocketCreateFailure, "stat "+path, err)
	}

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return classifyListenError(err, path)
	}

	l.ln = ln
	l.path = path
	return nil
}

// Accept waits for the next Unix domain connection
func (l *UnixListener) Accept() (Conn, error) {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()
	if ln == nil {
		return nil, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "not listening", nil)
	}

	conn, err := ln.AcceptUnix()
	if err != nil {
		return nil, acceptError(err)
	}

	return &netConn{conn: conn}, nil
}

// Addr returns the socket path
func (l *UnixListener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// Close stops listening and removes the socket file
func (l *UnixListener) Close() error {
	l.mu.Lock()
	ln := l.ln
	l.ln = nil
	l.mu.Unlock()
	if ln == nil {
		return nil // Idempotent close
	}

	err := ln.Close()

	if err != nil {
		return httperrors.NewTransportError(httperrors.TransportErrorSocketCloseFailure, "close listener", err)
	}

	return nil
}
