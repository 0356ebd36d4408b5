//go:build linux

package transport

import (
	"sync/atomic"
	"syscall"

	"github.com/iceber/iouring-go"
	httperrors "github.com/nczempin/minhttpd/errors"
)

// UringListener implements Listener with connection I/O submitted to io_uring
type UringListener struct {
	iour   *iouring.IOURing
	fd     int
	addr   string
	closed atomic.Bool
}

// NewUringListener creates a new listener with an io_uring instance
func NewUringListener() (*UringListener, error) {
	// Create io_uring instance with queue depth of 32
	iour, err := iouring.New(32)
	if err != nil {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}

	return &UringListener{
		iour: iour,
		fd:   -1,
	}, nil
}

// Listen binds and listens on host:port
func (l *UringListener) Listen(host string, port int) error {
	if l.fd >= 0 {
		return httperrors.NewTransportError(
			httperrors.TransportErrorSocketListenFailure,
			"already listening",
			nil,
		)
	}

	fd, err := listenSocket(host, port)
	if err != nil {
		return err
	}

	l.fd = fd
	l.addr = boundAddr(fd)
	return nil
}

// Accept waits for a client and returns a ring-backed connection
func (l *UringListener) Accept() (Conn, error) {
	if l.fd < 0 || l.closed.Load() {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorConnectionClosed,
			"not listening",
			nil,
		)
	}

	nfd, peer, err := acceptSocket(l.fd, l.closed.Load)
	if err != nil {
		return nil, err
	}

	return &uringConn{iour: l.iour, fd: nfd, peer: peer}, nil
}

func (l *UringListener) Addr() string {
	return l.addr
}

// Close stops listening. The ring stays usable for connections still in
// flight; call Destroy once they are done.
func (l *UringListener) Close() error {
	if l.fd < 0 || !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return shutdownListener(l.fd)
}

// Destroy cleans up resources including the io_uring instance
func (l *UringListener) Destroy() {
	l.Close()
	if l.iour != nil {
		l.iour.Close()
		l.iour = nil
	}
}

type uringConn struct {
	iour   *iouring.IOURing
	fd     int
	peer   string
	closed bool
}

// Read receives data from the connection using io_uring
func (c *uringConn) Read(buf []byte) (int, error) {
	if c.closed {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorConnectionClosed,
			"connection closed",
			nil,
		)
	}

	ch := make(chan iouring.Result, 1)
	prepReq := iouring.Recv(c.fd, buf, 0)
	if _, err := c.iour.SubmitRequest(prepReq, ch); err != nil {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringSubmit,
			"failed to submit read request",
			err,
		)
	}

	result := <-ch
	n, err := result.ReturnInt()
	if err != nil {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorSocketReadFailure,
			"read failed",
			err,
		)
	}

	if n == 0 && len(buf) > 0 {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorConnectionClosed,
			"connection closed by peer",
			nil,
		)
	}

	return n, nil
}

// Write sends data over the connection using io_uring
func (c *uringConn) Write(buf []byte) (int, error) {
	if c.closed {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorConnectionClosed,
			"connection closed",
			nil,
		)
	}

	totalWritten := 0
	for totalWritten < len(buf) {
		ch := make(chan iouring.Result, 1)
		prepReq := iouring.Send(c.fd, buf[totalWritten:], 0)
		if _, err := c.iour.SubmitRequest(prepReq, ch); err != nil {
			return totalWritten, httperrors.NewTransportError(
				httperrors.TransportErrorIoUringSubmit,
				"failed to submit write request",
				err,
			)
		}

		result := <-ch
		n, err := result.ReturnInt()
		if err != nil {
			return totalWritten, httperrors.NewTransportError(
				httperrors.TransportErrorSocketWriteFailure,
				"write failed",
				err,
			)
		}

		if n <= 0 {
			return totalWritten, httperrors.NewTransportError(
				httperrors.TransportErrorConnectionClosed,
				"connection closed during write",
				nil,
			)
		}

		totalWritten += n
	}

	return totalWritten, nil
}

func (c *uringConn) CloseWrite() error {
	if c.closed {
		return nil
	}
	return halfClose(c.fd)
}

// Close closes the connection
func (c *uringConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := syscall.Close(c.fd); err != nil {
		return httperrors.NewTransportError(
			httperrors.TransportErrorSocketCloseFailure,
			"failed to close socket",
			err,
		)
	}
	c.fd = -1
	return nil
}

func (c *uringConn) RemoteAddr() string {
	return c.peer
}
