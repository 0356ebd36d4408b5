package server

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"log"
	"strings"
	"testing"

	"github.com/nczempin/minhttpd/errors"
	"github.com/nczempin/minhttpd/internal/obs"
	"github.com/nczempin/minhttpd/protocol"
	"github.com/nczempin/minhttpd/router"
)

func testRouter(t *testing.T) *router.Router {
	t.Helper()
	r, err := router.New(
		router.Route{Path: "/", Handler: func(protocol.Params) (string, error) {
			return "<h1>index</h1>", nil
		}},
		router.Route{Path: "/about", Handler: func(protocol.Params) (string, error) {
			return "<h1>About us</h1>", nil
		}},
		router.Route{Path: "/greet", Handler: func(p protocol.Params) (string, error) {
			var b strings.Builder
			for _, param := range p {
				fmt.Fprintf(&b, "[%s=%s]", param.Key, param.Value)
			}
			return b.String(), nil
		}},
		router.Route{Path: "/fail", Handler: func(protocol.Params) (string, error) {
			return "", stderrors.New("template missing")
		}},
	)
	if err != nil {
		t.Fatalf("router.New failed: %v", err)
	}
	return r
}

func newHandler(t *testing.T) (*ConnHandler, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	return &ConnHandler{
		Router: testRouter(t),
		Logger: obs.StdLogger{L: log.New(&logs, "", 0), Min: obs.Debug},
	}, &logs
}

func TestConnHandler_GetAbout(t *testing.T) {
	h, _ := newHandler(t)
	res := h.Process([]byte("GET /about HTTP/1.1\r\nHost: localhost\r\n\r\n"))

	if res.Outcome != OutcomeOK {
		t.Fatalf("Expected OK, got %v (%v)", res.Outcome, res.Err)
	}
	want, _ := protocol.Frame([]byte("<h1>About us</h1>"))
	if !bytes.Equal(res.Response, want) {
		t.Errorf("Expected %q, got %q", want, res.Response)
	}
	if res.Line.Method != "GET" || res.Line.Proto != "HTTP/1.1" {
		t.Errorf("Unexpected request line %+v", res.Line)
	}
}

func TestConnHandler_GetQuery(t *testing.T) {
	h, _ := newHandler(t)
	res := h.Process([]byte("GET /greet?name=Ada&lang=go HTTP/1.1\r\n\r\n"))

	if res.Outcome != OutcomeOK {
		t.Fatalf("Expected OK, got %v (%v)", res.Outcome, res.Err)
	}
	if res.Path != "/greet" {
		t.Errorf("Expected routing path /greet, got %q", res.Path)
	}
	if !bytes.HasSuffix(res.Response, []byte("[name=Ada][lang=go]")) {
		t.Errorf("Unexpected response %q", res.Response)
	}
}

func TestConnHandler_PostBody(t *testing.T) {
	h, _ := newHandler(t)
	raw := "POST /greet HTTP/1.1\r\nHost: x\r\nContent-Length: 17\r\n\r\nname=Ada&lang=go&"
	res := h.Process([]byte(raw))

	if res.Outcome != OutcomeOK {
		t.Fatalf("Expected OK, got %v (%v)", res.Outcome, res.Err)
	}
	if len(res.Params) != 2 {
		t.Errorf("Expected 2 params, got %v", res.Params)
	}
	if !bytes.HasSuffix(res.Response, []byte("[name=Ada][lang=go]")) {
		t.Errorf("Unexpected response %q", res.Response)
	}
}

func TestConnHandler_PostIgnoresQuery(t *testing.T) {
	h, _ := newHandler(t)
	res := h.Process([]byte("POST /greet?x=1 HTTP/1.1\r\n\r\na=1"))
	if res.Outcome != OutcomeNotFound {
		t.Errorf("Expected POST target to route unsplit, got %v", res.Outcome)
	}
}

func TestConnHandler_PostWithoutBlankLine(t *testing.T) {
	h, _ := newHandler(t)
	res := h.Process([]byte("POST /greet HTTP/1.1\r\nHost: x\r\n"))
	if res.Outcome != OutcomeOK {
		t.Fatalf("Expected OK, got %v (%v)", res.Outcome, res.Err)
	}
	if len(res.Params) != 0 {
		t.Errorf("Expected no params, got %v", res.Params)
	}
}

func TestConnHandler_UnsupportedMethodStillRoutes(t *testing.T) {
	h, logs := newHandler(t)
	res := h.Process([]byte("PUT /greet?a=1 HTTP/1.1\r\n\r\nb=2"))

	if res.Outcome != OutcomeNotFound {
		t.Errorf("Expected PUT with query to miss /greet, got %v", res.Outcome)
	}
	res = h.Process([]byte("DELETE /greet HTTP/1.1\r\n\r\nb=2"))
	if res.Outcome != OutcomeOK {
		t.Fatalf("Expected OK, got %v (%v)", res.Outcome, res.Err)
	}
	if len(res.Params) != 0 {
		t.Errorf("Expected no params for DELETE, got %v", res.Params)
	}
	if !strings.Contains(logs.String(), "unsupported method: DELETE") {
		t.Errorf("Expected unsupported method log, got %q", logs.String())
	}
}

func TestConnHandler_PathTraversal(t *testing.T) {
	called := false
	r, _ := router.New(router.Route{Path: "/x/../etc", Handler: func(protocol.Params) (string, error) {
		called = true
		return "secret", nil
	}})
	h := &ConnHandler{Router: r}

	res := h.Process([]byte("GET /x/../etc HTTP/1.1\r\n\r\n"))
	if res.Outcome != OutcomePathTraversal {
		t.Fatalf("Expected path traversal, got %v", res.Outcome)
	}
	if !bytes.Equal(res.Response, protocol.NotFoundResponse()) {
		t.Errorf("Expected 404, got %q", res.Response)
	}
	if called {
		t.Error("Handler must not run for a traversal attempt")
	}
	if res.Params != nil {
		t.Errorf("Expected no parameter extraction, got %v", res.Params)
	}
	if !errors.IsRouting(res.Err, errors.RoutingErrorPathTraversal) {
		t.Errorf("Expected traversal error, got %v", res.Err)
	}
}

func TestConnHandler_TraversalInQuery(t *testing.T) {
	h, _ := newHandler(t)
	res := h.Process([]byte("GET /greet?file=../passwd HTTP/1.1\r\n\r\n"))
	if res.Outcome != OutcomePathTraversal {
		t.Errorf("Expected the raw target to be checked, got %v", res.Outcome)
	}
}

func TestConnHandler_NotFoundIdempotent(t *testing.T) {
	h, _ := newHandler(t)
	first := h.Process([]byte("GET /nope HTTP/1.1\r\n\r\n"))
	second := h.Process([]byte("GET /nope HTTP/1.1\r\n\r\n"))

	if first.Outcome != OutcomeNotFound {
		t.Fatalf("Expected not found, got %v", first.Outcome)
	}
	want := "HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n"
	if string(first.Response) != want || string(second.Response) != want {
		t.Errorf("Expected identical 404 bytes, got %q and %q", first.Response, second.Response)
	}
	if !errors.IsRouting(first.Err, errors.RoutingErrorNotFound) {
		t.Errorf("Expected not-found error, got %v", first.Err)
	}
}

func TestConnHandler_MalformedRequestLine(t *testing.T) {
	h, logs := newHandler(t)
	for _, raw := range []string{"GET", "GET\r\n\r\n", "", "GET / HTTP/1.1 x\r\n"} {
		res := h.Process([]byte(raw))
		if res.Outcome != OutcomeParseFailure {
			t.Errorf("%q: expected parse failure, got %v", raw, res.Outcome)
		}
		if res.Response != nil {
			t.Errorf("%q: expected no response bytes, got %q", raw, res.Response)
		}
	}
	if !strings.Contains(logs.String(), "failed to parse the request") {
		t.Errorf("Expected parse failure log, got %q", logs.String())
	}
}

func TestConnHandler_HandlerFailure(t *testing.T) {
	h, _ := newHandler(t)
	res := h.Process([]byte("GET /fail HTTP/1.1\r\n\r\n"))
	if res.Outcome != OutcomeHandlerFailure {
		t.Fatalf("Expected handler failure, got %v", res.Outcome)
	}
	if res.Response != nil {
		t.Errorf("Expected no response bytes, got %q", res.Response)
	}
	if errors.TypeOf(res.Err) != errors.ErrorMemory {
		t.Errorf("Expected memory error, got %v", res.Err)
	}
}

func TestConnHandler_MaxParams(t *testing.T) {
	h, _ := newHandler(t)
	h.MaxParams = 2
	res := h.Process([]byte("GET /greet?a=1&b=2&c=3 HTTP/1.1\r\n\r\n"))
	if len(res.Params) != 2 {
		t.Errorf("Expected 2 params, got %v", res.Params)
	}
}

func TestConnHandler_BufferLimit(t *testing.T) {
	h := &ConnHandler{}
	if h.BufferLimit() != DefaultBufferSize {
		t.Errorf("Expected default %d, got %d", DefaultBufferSize, h.BufferLimit())
	}
	h.BufferSize = 64
	if h.BufferLimit() != 64 {
		t.Errorf("Expected 64, got %d", h.BufferLimit())
	}
}

func TestOutcome_String(t *testing.T) {
	if OutcomeNotFound.String() != "not_found" || Outcome(99).String() != "unknown" {
		t.Error("Unexpected outcome names")
	}
}
