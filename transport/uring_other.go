//go:build !linux

package transport

import (
	"runtime"

	httperrors "github.com/nczempin/minhttpd/errors"
)

func uringUnsupported() error {
	return httperrors.NewTransportError(
		httperrors.TransportErrorIoUringInit,
		"io_uring is not available on "+runtime.GOOS,
		nil,
	)
}

// UringListener is only available on linux
type UringListener struct{ TcpListener }

// NewUringListener always fails outside linux
func NewUringListener() (*UringListener, error) { return nil, uringUnsupported() }

// Destroy is a no-op outside linux
func (l *UringListener) Destroy() {}

// UringListenerV2 is only available on linux
type UringListenerV2 struct{ TcpListener }

// NewUringListenerV2 always fails outside linux
func NewUringListenerV2() (*UringListenerV2, error) { return nil, uringUnsupported() }

// Destroy is a no-op outside linux
func (l *UringListenerV2) Destroy() {}
