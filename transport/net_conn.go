package transport

import (
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	httperrors "github.com/nczempin/minhttpd/errors"
)

type closeWriter interface {
	CloseWrite() error
}

// netConn adapts a connection from the net package
type netConn struct {
	conn net.Conn
}

// Read receives data from the connection
func (c *netConn) Read(buf []byte) (int, error) {
	if c.conn == nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "not connected", nil)
	}

	n, err := c.conn.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) || (n == 0 && len(buf) > 0) {
			return n, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed by peer", err)
		}
		return n, httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "read failed", err)
	}

	return n, nil
}

// Write sends data over the connection
func (c *netConn) Write(buf []byte) (int, error) {
	if c.conn == nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "not connected", nil)
	}

	n, err := c.conn.Write(buf)
	if err != nil {
		// Check for broken pipe or connection reset
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
			return n, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed during write", err)
		}
		return n, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "write failed", err)
	}

	return n, nil
}

// CloseWrite half-closes the connection when the socket type allows it
func (c *netConn) CloseWrite() error {
	if c.conn == nil {
		return nil
	}
	cw, ok := c.conn.(closeWriter)
	if !ok {
		return nil
	}
	if err := cw.CloseWrite(); err != nil {
		return httperrors.NewTransportError(httperrors.TransportErrorSocketCloseFailure, "shutdown failed", err)
	}
	return nil
}

// Close closes the connection
func (c *netConn) Close() error {
	if c.conn == nil {
		return nil // Idempotent close
	}

	err := c.conn.Close()
	c.conn = nil

	if err != nil {
		return httperrors.NewTransportError(httperrors.TransportErrorSocketCloseFailure, "close failed", err)
	}

	return nil
}

func (c *netConn) RemoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// SetReadDeadline bounds the next Read
func (c *netConn) SetReadDeadline(t time.Time) error {
	if c.conn == nil {
		return nil
	}
	return c.conn.SetReadDeadline(t)
}

// classifyListenError separates address problems from other listen failures
func classifyListenError(err error, addr string) error {
	if errors.Is(err, syscall.EADDRINUSE) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EADDRNOTAVAIL) {
		return httperrors.NewTransportError(httperrors.TransportErrorSocketBindFailure, "bind "+addr, err)
	}
	return httperrors.NewTransportError(httperrors.TransportErrorSocketListenFailure, "listen "+addr, err)
}

func acceptError(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "listener closed", err)
	}
	return httperrors.NewTransportError(httperrors.TransportErrorSocketAcceptFailure, "accept failed", err)
}
