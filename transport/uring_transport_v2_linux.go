//go:build linux

package transport

import (
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/godzie44/go-uring/uring"
	httperrors "github.com/nczempin/minhttpd/errors"
)

// connRingEntries is the queue depth of a per-connection ring. A connection
// has at most one operation in flight.
const connRingEntries = 4

// UringListenerV2 implements Listener using godzie44/go-uring for connection I/O.
// Every accepted connection gets its own ring, so a connection waiting on a
// silent peer never holds up another one.
type UringListenerV2 struct {
	fd     int
	addr   string
	closed atomic.Bool

	mu        sync.Mutex
	conns     map[*uringConnV2]struct{}
	destroyed bool
}

// NewUringListenerV2 creates a new listener with io_uring (v2 using godzie44/go-uring).
// It sets up and releases one ring to fail early where io_uring is unavailable.
func NewUringListenerV2() (*UringListenerV2, error) {
	ring, err := newConnRing()
	if err != nil {
		return nil, err
	}
	ring.Close()

	return &UringListenerV2{
		fd:    -1,
		conns: make(map[*uringConnV2]struct{}),
	}, nil
}

func newConnRing() (*uring.Ring, error) {
	ring, err := uring.New(connRingEntries)
	if err != nil {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}
	return ring, nil
}

// Listen binds and listens on host:port
func (l *UringListenerV2) Listen(host string, port int) error {
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

// Accept waits for a client and returns a connection with its own ring
func (l *UringListenerV2) Accept() (Conn, error) {
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

	ring, err := newConnRing()
	if err != nil {
		syscall.Close(nfd)
		return nil, err
	}

	c := &uringConnV2{ring: ring, fd: nfd, peer: peer, owner: l}
	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		ring.Close()
		syscall.Close(nfd)
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorConnectionClosed,
			"listener destroyed",
			nil,
		)
	}
	l.conns[c] = struct{}{}
	l.mu.Unlock()
	return c, nil
}

func (l *UringListenerV2) Addr() string {
	return l.addr
}

// Close stops listening. Connections already accepted stay usable until
// Destroy.
func (l *UringListenerV2) Close() error {
	if l.fd < 0 || !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return shutdownListener(l.fd)
}

// Destroy closes the listener and releases the ring of every connection
// still open. Their pending and later operations fail with ConnectionClosed.
func (l *UringListenerV2) Destroy() {
	l.Close()

	l.mu.Lock()
	l.destroyed = true
	conns := make([]*uringConnV2, 0, len(l.conns))
	for c := range l.conns {
		// Wakes a Read blocked on the ring so its lock is released.
		syscall.Shutdown(c.fd, syscall.SHUT_RDWR)
		conns = append(conns, c)
	}
	l.conns = nil
	l.mu.Unlock()

	for _, c := range conns {
		c.releaseRing()
	}
}

// forget drops c from the live set. It runs before c closes its socket so
// Destroy never shuts down a descriptor number that was reused.
func (l *UringListenerV2) forget(c *uringConnV2) {
	l.mu.Lock()
	delete(l.conns, c)
	l.mu.Unlock()
}

type uringConnV2 struct {
	mu     sync.Mutex // serializes ring use and guards ring and closed
	ring   *uring.Ring
	fd     int
	closed bool
	peer   string
	owner  *UringListenerV2
}

func (c *uringConnV2) releaseRing() {
	c.mu.Lock()
	if c.ring != nil {
		c.ring.Close()
		c.ring = nil
	}
	c.mu.Unlock()
}

// complete queues one operation, submits it and waits for its completion
func (c *uringConnV2) complete(op func(fd uintptr) uring.Operation, what string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ring == nil || c.closed {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorConnectionClosed,
			"connection closed",
			nil,
		)
	}

	if err := c.ring.QueueSQE(op(uintptr(c.fd)), 0, 0); err != nil {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringSubmit,
			"failed to queue "+what+" request",
			err,
		)
	}

	// Submit and wait
	if _, err := c.ring.Submit(); err != nil {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringSubmit,
			"failed to submit "+what+" request",
			err,
		)
	}

	cqe, err := c.ring.WaitCQEvents(1)
	if err != nil {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringSubmit,
			"failed to wait for "+what+" completion",
			err,
		)
	}

	if err := cqe.Error(); err != nil {
		c.ring.SeenCQE(cqe)
		code := httperrors.TransportErrorSocketReadFailure
		if what == "write" {
			code = httperrors.TransportErrorSocketWriteFailure
		}
		return 0, httperrors.NewTransportError(code, what+" operation failed", err)
	}

	n := int(cqe.Res)
	c.ring.SeenCQE(cqe)
	return n, nil
}

// Read receives data from the connection using io_uring
func (c *uringConnV2) Read(buf []byte) (int, error) {
	n, err := c.complete(func(fd uintptr) uring.Operation {
		return uring.Read(fd, buf, 0)
	}, "read")
	if err != nil {
		return 0, err
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
func (c *uringConnV2) Write(buf []byte) (int, error) {
	totalWritten := 0
	for totalWritten < len(buf) {
		rest := buf[totalWritten:]
		n, err := c.complete(func(fd uintptr) uring.Operation {
			return uring.Write(fd, rest, 0)
		}, "write")
		if err != nil {
			return totalWritten, err
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

func (c *uringConnV2) CloseWrite() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	return halfClose(c.fd)
}

// Close releases the ring and closes the socket
func (c *uringConnV2) Close() error {
	c.owner.forget(c)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.ring != nil {
		c.ring.Close()
		c.ring = nil
	}
	if err := syscall.Close(c.fd); err != nil {
		return httperrors.NewTransportError(
			httperrors.TransportErrorSocketCloseFailure,
			"failed to close socket",
			err,
		)
	}
	return nil
}

func (c *uringConnV2) RemoteAddr() string {
	return c.peer
}
