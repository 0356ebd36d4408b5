package transport

// Conn is one accepted client connection
type Conn interface {
	// Read receives data from the peer.
	// Returns the number of bytes read.
	Read(buf []byte) (int, error)

	// Write sends data to the peer.
	// Returns the number of bytes written.
	Write(buf []byte) (int, error)

	// CloseWrite signals end of output while leaving the read side open
	CloseWrite() error

	// Close closes the connection
	Close() error

	// RemoteAddr describes the peer, for logging
	RemoteAddr() string
}

// Listener defines the interface for accepting connections.
// Implementations include TCP, Unix domain sockets and io_uring backed sockets.
type Listener interface {
	// Listen binds to the specified host and port.
	// For Unix sockets, the host parameter is the socket path and port is ignored.
	Listen(host string, port int) error

	// Accept blocks until a client connects
	Accept() (Conn, error)

	// Addr returns the bound address, with the real port when 0 was requested
	Addr() string

	// Close stops listening. A blocked Accept returns an error.
	Close() error
}
