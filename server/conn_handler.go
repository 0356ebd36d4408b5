package server

import (
	"strings"
	"time"

	"github.com/nczempin/minhttpd/errors"
	"github.com/nczempin/minhttpd/internal/obs"
	"github.com/nczempin/minhttpd/protocol"
	"github.com/nczempin/minhttpd/router"
	"github.com/nczempin/minhttpd/transport"
)

// DefaultBufferSize is the read ceiling for one request. Longer requests are
// truncated, not rejected.
const DefaultBufferSize = 512

// Outcome is the terminal state of one connection
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotFound
	OutcomePathTraversal
	OutcomeParseFailure
	OutcomeHandlerFailure
	OutcomeReadFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomePathTraversal:
		return "path_traversal"
	case OutcomeParseFailure:
		return "parse_failure"
	case OutcomeHandlerFailure:
		return "handler_failure"
	case OutcomeReadFailure:
		return "read_failure"
	default:
		return "unknown"
	}
}

// Result describes how one request was handled
type Result struct {
	Outcome Outcome
	Line    protocol.RequestLine
	Path    string // routing path, query stripped
	Params  protocol.Params
	// Response holds the bytes to send; nil means the connection is closed
	// without a reply.
	Response []byte
	// Err explains every outcome except OutcomeOK
	Err error
}

// ConnHandler runs the per-connection pipeline: parse the request line,
// reject traversal, extract parameters, dispatch and frame.
// It holds no per-request state and may be shared between goroutines.
type ConnHandler struct {
	Router     *router.Router
	Logger     obs.Logger
	Meter      obs.Meter
	BufferSize int // 0 means DefaultBufferSize
	MaxParams  int // 0 means protocol.MaxParams

	// ReadTimeout bounds the single request read on connections that
	// support deadlines. Zero waits forever.
	ReadTimeout time.Duration
}

// BufferLimit is the largest request prefix the handler looks at
func (h *ConnHandler) BufferLimit() int {
	if h.BufferSize <= 0 {
		return DefaultBufferSize
	}
	return h.BufferSize
}

func (h *ConnHandler) maxParams() int {
	if h.MaxParams <= 0 {
		return protocol.MaxParams
	}
	return h.MaxParams
}

func (h *ConnHandler) logger() obs.Logger {
	if h.Logger == nil {
		return obs.NopLogger{}
	}
	return h.Logger
}

func (h *ConnHandler) meter() obs.Meter {
	if h.Meter == nil {
		return obs.NopMeter{}
	}
	return h.Meter
}

// Process handles one raw request buffer and reports what to send back.
// It never touches a socket.
func (h *ConnHandler) Process(raw []byte) Result {
	log := h.logger()

	line, err := protocol.ParseRequestLine(raw)
	if err != nil {
		log.Logf(obs.Warn, "failed to parse the request: %v", err)
		return Result{Outcome: OutcomeParseFailure, Err: err}
	}

	if strings.Contains(line.Target, "..") {
		log.Logf(obs.Warn, "illegal path traversal attempt: %s", line.Target)
		return Result{
			Outcome:  OutcomePathTraversal,
			Line:     line,
			Response: protocol.NotFoundResponse(),
			Err:      errors.NewRoutingError(errors.RoutingErrorPathTraversal, line.Target),
		}
	}

	path := line.Target
	var params protocol.Params
	switch line.Kind() {
	case protocol.MethodGet:
		if p, query, ok := protocol.SplitTarget(line.Target); ok {
			path = p
			params = protocol.ParseParams([]byte(query), h.maxParams())
		}
	case protocol.MethodPost:
		if body, ok := protocol.Body(raw); ok {
			params = protocol.ParseParams(body, h.maxParams())
		}
	default:
		log.Logf(obs.Info, "unsupported method: %s", line.Method)
	}
	if len(params) > 0 {
		log.Logf(obs.Debug, "%s %s: %d parameters", line.Method, path, len(params))
	}

	res := Result{Line: line, Path: path, Params: params}

	handler, ok := h.Router.Resolve(path)
	if !ok {
		log.Logf(obs.Info, "unknown endpoint: %s", path)
		res.Outcome = OutcomeNotFound
		res.Response = protocol.NotFoundResponse()
		res.Err = errors.NewRoutingError(errors.RoutingErrorNotFound, path)
		return res
	}

	html, err := handler(params)
	if err != nil {
		log.Logf(obs.Error, "handler for %s produced no body: %v", path, err)
		res.Outcome = OutcomeHandlerFailure
		res.Err = errors.NewMemoryError("handler for "+path+" produced no body", err)
		return res
	}

	response, err := protocol.Frame([]byte(html))
	if err != nil {
		log.Logf(obs.Error, "failed to create response: %v", err)
		res.Outcome = OutcomeHandlerFailure
		res.Err = err
		return res
	}

	res.Outcome = OutcomeOK
	res.Response = response
	return res
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// ServeConn reads one request from c, writes the reply if there is one and
// closes c with a half-close first. The returned error is non-nil only for
// socket failures; routing outcomes are reported through Result.
func (h *ConnHandler) ServeConn(c transport.Conn) (Result, error) {
	log := h.logger()
	meter := h.meter()
	peer := c.RemoteAddr()
	defer func() {
		if err := c.CloseWrite(); err != nil {
			log.Logf(obs.Warn, "half-closing %s: %v", peer, err)
		}
		if err := c.Close(); err != nil {
			log.Logf(obs.Warn, "closing %s: %v", peer, err)
		}
	}()

	log.Logf(obs.Debug, "client connected: %s", peer)

	if h.ReadTimeout > 0 {
		if d, ok := c.(readDeadliner); ok {
			if err := d.SetReadDeadline(time.Now().Add(h.ReadTimeout)); err != nil {
				log.Logf(obs.Warn, "read deadline on %s: %v", peer, err)
			}
		}
	}

	buf := make([]byte, h.BufferLimit())
	n, err := c.Read(buf)
	if err != nil {
		if errors.IsTransport(err, errors.TransportErrorConnectionClosed) {
			log.Logf(obs.Debug, "%s closed before sending a request", peer)
		} else {
			log.Logf(obs.Error, "receive failed: %v", err)
		}
		meter.Counter("minhttpd_requests_total", 1, obs.Label{Key: "outcome", Value: OutcomeReadFailure.String()})
		return Result{Outcome: OutcomeReadFailure, Err: err}, err
	}

	res := h.Handle(buf[:n])
	if res.Response == nil {
		return res, nil
	}

	sent, err := c.Write(res.Response)
	if err != nil {
		log.Logf(obs.Error, "send failed: %v", err)
		return res, err
	}
	h.RecordSent(peer, sent)
	return res, nil
}

// Handle runs Process on at most BufferLimit bytes of raw and counts the
// outcome. Front ends that read on their own use it in place of ServeConn.
func (h *ConnHandler) Handle(raw []byte) Result {
	if limit := h.BufferLimit(); len(raw) > limit {
		raw = raw[:limit]
	}
	res := h.Process(raw)
	h.meter().Counter("minhttpd_requests_total", 1, obs.Label{Key: "outcome", Value: res.Outcome.String()})
	return res
}

// RecordSent accounts for a reply of n bytes written to peer
func (h *ConnHandler) RecordSent(peer string, n int) {
	h.meter().Histogram("minhttpd_response_bytes", float64(n))
	h.logger().Logf(obs.Debug, "sent %d bytes to %s", n, peer)
}
