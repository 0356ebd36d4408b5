//go:build linux

package transport

import (
	"errors"
	"net"
	"strconv"
	"syscall"

	httperrors "github.com/nczempin/minhttpd/errors"
)

// listenSocket creates a blocking, listening TCP socket for the io_uring
// listeners. Connection I/O goes through the ring; accept stays a plain
// syscall.
func listenSocket(host string, port int) (int, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return -1, httperrors.NewTransportError(
			httperrors.TransportErrorSocketCreateFailure,
			"failed to resolve "+addr,
			err,
		)
	}

	// Convert to syscall.Sockaddr
	family := syscall.AF_INET
	var sa syscall.Sockaddr
	if ip4 := tcpAddr.IP.To4(); ip4 != nil || tcpAddr.IP == nil {
		sa4 := &syscall.SockaddrInet4{Port: tcpAddr.Port}
		copy(sa4.Addr[:], ip4)
		sa = sa4
	} else {
		family = syscall.AF_INET6
		sa6 := &syscall.SockaddrInet6{Port: tcpAddr.Port}
		copy(sa6.Addr[:], tcpAddr.IP)
		sa = sa6
	}

	fd, err := syscall.Socket(family, syscall.SOCK_STREAM|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, httperrors.NewTransportError(
			httperrors.TransportErrorSocketCreateFailure,
			"failed to create socket",
			err,
		)
	}

	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		syscall.Close(fd)
		return -1, httperrors.NewTransportError(
			httperrors.TransportErrorSocketCreateFailure,
			"failed to set SO_REUSEADDR",
			err,
		)
	}

	if err := syscall.Bind(fd, sa); err != nil {
		syscall.Close(fd)
		return -1, httperrors.NewTransportError(
			httperrors.TransportErrorSocketBindFailure,
			"failed to bind "+addr,
			err,
		)
	}

	if err := syscall.Listen(fd, syscall.SOMAXCONN); err != nil {
		syscall.Close(fd)
		return -1, httperrors.NewTransportError(
			httperrors.TransportErrorSocketListenFailure,
			"failed to listen on "+addr,
			err,
		)
	}

	return fd, nil
}

// acceptSocket blocks in accept(2). closed reports whether the listener was
// shut down, which turns the resulting EINVAL into a clean close.
func acceptSocket(fd int, closed func() bool) (int, string, error) {
	for {
		nfd, sa, err := syscall.Accept4(fd, syscall.SOCK_CLOEXEC)
		if err == nil {
			if err := syscall.SetsockoptInt(nfd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); err != nil {
				syscall.Close(nfd)
				return -1, "", httperrors.NewTransportError(
					httperrors.TransportErrorSocketCreateFailure,
					"failed to set TCP_NODELAY",
					err,
				)
			}
			return nfd, sockaddrString(sa), nil
		}
		if errors.Is(err, syscall.EINTR) {
			continue
		}
		if closed() {
			return -1, "", httperrors.NewTransportError(
				httperrors.TransportErrorConnectionClosed,
				"listener closed",
				err,
			)
		}
		return -1, "", httperrors.NewTransportError(
			httperrors.TransportErrorSocketAcceptFailure,
			"accept failed",
			err,
		)
	}
}

// shutdownListener wakes a blocked accept and releases the socket
func shutdownListener(fd int) error {
	syscall.Shutdown(fd, syscall.SHUT_RDWR)
	if err := syscall.Close(fd); err != nil {
		return httperrors.NewTransportError(
			httperrors.TransportErrorSocketCloseFailure,
			"failed to close socket",
			err,
		)
	}
	return nil
}

func boundAddr(fd int) string {
	sa, err := syscall.Getsockname(fd)
	if err != nil {
		return ""
	}
	return sockaddrString(sa)
}

func sockaddrString(sa syscall.Sockaddr) string {
	switch v := sa.(type) {
	case *syscall.SockaddrInet4:
		return net.JoinHostPort(net.IP(v.Addr[:]).String(), strconv.Itoa(v.Port))
	case *syscall.SockaddrInet6:
		return net.JoinHostPort(net.IP(v.Addr[:]).String(), strconv.Itoa(v.Port))
	default:
		return ""
	}
}

func halfClose(fd int) error {
	if err := syscall.Shutdown(fd, syscall.SHUT_WR); err != nil {
		return httperrors.NewTransportError(
			httperrors.TransportErrorSocketCloseFailure,
			"shutdown failed",
			err,
		)
	}
	return nil
}
