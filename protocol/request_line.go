package protocol

import (
	"bytes"
	"fmt"

	"github.com/nczempin/minhttpd/errors"
)

// Field bounds for a request line. These guard the parser, they are not
// protocol limits.
const (
	MaxMethodLen = 7
	MaxTargetLen = 255
	MaxProtoLen  = 15
)

// ParseRequestLine parses the first line of raw into its three
// whitespace-delimited tokens. Anything other than exactly three tokens, or a
// token longer than its bound, fails the whole line.
func ParseRequestLine(raw []byte) (RequestLine, error) {
	line := raw
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = bytes.TrimSuffix(line, []byte{'\r'})

	fields := bytes.Fields(line)
	if len(fields) != 3 {
		return RequestLine{}, errors.NewProtocolError(
			errors.ProtocolErrorInvalidRequestLine,
			fmt.Sprintf("expected 3 tokens, got %d", len(fields)),
		)
	}

	bounds := [3]struct {
		name string
		max  int
	}{
		{"method", MaxMethodLen},
		{"path", MaxTargetLen},
		{"protocol", MaxProtoLen},
	}
	for i, f := range fields {
		if len(f) > bounds[i].max {
			return RequestLine{}, errors.NewProtocolError(
				errors.ProtocolErrorFieldTooLong,
				fmt.Sprintf("%s longer than %d bytes", bounds[i].name, bounds[i].max),
			)
		}
	}

	return RequestLine{
		Method: string(fields[0]),
		Target: string(fields[1]),
		Proto:  string(fields[2]),
	}, nil
}
