package transport

import (
	"net"
	"strconv"
	"sync"

	httperrors "github.com/nczempin/minhttpd/errors"
)

// TcpListener implements the Listener interface using TCP sockets
type TcpListener struct {
	mu sync.Mutex
	ln *net.TCPListener
}

// NewTcpListener creates a new TcpListener instance
func NewTcpListener() *TcpListener {
	return &TcpListener{
		ln: nil,
	}
}

// Listen binds a TCP socket to the specified host and port.
// An empty host binds every interface.
func (l *TcpListener) Listen(host string, port int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return httperrors.NewTransportError(httperrors.TransportErrorSocketListenFailure, "already listening", nil)
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return httperrors.NewTransportError(httperrors.TransportErrorSocketCreateFailure, "resolve "+addr, err)
	}

	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return classifyListenError(err, addr)
	}

	l.ln = ln
	return nil
}

// Accept waits for the next TCP connection
func (l *TcpListener) Accept() (Conn, error) {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()
	if ln == nil {
		return nil, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "not listening", nil)
	}

	conn, err := ln.AcceptTCP()
	if err != nil {
		return nil, acceptError(err)
	}

	// Set TCP_NODELAY so the single response write is not held back
	if err := conn.SetNoDelay(true); err != nil {
		conn.Close()
		return nil, httperrors.NewTransportError(httperrors.TransportErrorSocketCreateFailure, "set TCP_NODELAY", err)
	}

	return &netConn{conn: conn}, nil
}

// Addr returns the bound address
func (l *TcpListener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return ""
	}
	return l.ln.Addr().String()
}

// Close stops listening
func (l *TcpListener) Close() error {
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
