package protocol

import (
	"bytes"
	"fmt"

	"github.com/nczempin/minhttpd/errors"
)

const headerTemplate = "HTTP/1.1 200 OK\r\n" +
	"Content-Type: text/html\r\n" +
	"Content-Length: %d\r\n" +
	"\r\n"

const notFound = "HTTP/1.1 404 Not Found\r\n" +
	"Content-Length: 0\r\n" +
	"\r\n"

// Frame wraps an HTML body in a 200 OK response. The result is a single
// buffer holding exactly the header block followed by body.
func Frame(body []byte) ([]byte, error) {
	if body == nil {
		return nil, errors.NewMemoryError("response body is absent", nil)
	}

	var header bytes.Buffer
	if _, err := fmt.Fprintf(&header, headerTemplate, len(body)); err != nil {
		return nil, &errors.ServerError{
			Type:          errors.ErrorProtocol,
			ProtocolErr:   errors.ProtocolErrorFraming,
			Message:       "formatting response header",
			UnderlyingErr: err,
		}
	}

	response := make([]byte, 0, header.Len()+len(body))
	response = append(response, header.Bytes()...)
	response = append(response, body...)
	return response, nil
}

// NotFoundResponse returns the static 404 response. Each call returns a new
// copy with identical bytes.
func NotFoundResponse() []byte {
	return []byte(notFound)
}
