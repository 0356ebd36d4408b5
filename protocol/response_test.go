package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nczempin/minhttpd/errors"
)

func TestFrame_ContentLength(t *testing.T) {
	body := []byte("<h1>hi</h1>")
	resp, err := Frame(body)
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}

	sep := bytes.Index(resp, []byte("\r\n\r\n"))
	if sep < 0 {
		t.Fatal("Expected a blank line after the header block")
	}
	header := string(resp[:sep+4])
	if !strings.Contains(header, "Content-Length: 11\r\n") {
		t.Errorf("Expected Content-Length: 11 in %q", header)
	}
	if len(resp) != len(header)+11 {
		t.Errorf("Expected total length %d, got %d", len(header)+11, len(resp))
	}
	if !bytes.HasSuffix(resp, body) {
		t.Errorf("Expected body at the end of %q", resp)
	}
}

func TestFrame_ExactBytes(t *testing.T) {
	resp, err := Frame([]byte("<p>x</p>"))
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	want := "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\nContent-Length: 8\r\n\r\n<p>x</p>"
	if string(resp) != want {
		t.Errorf("Expected %q, got %q", want, resp)
	}
}

func TestFrame_EmptyBody(t *testing.T) {
	resp, err := Frame([]byte{})
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if !bytes.HasSuffix(resp, []byte("Content-Length: 0\r\n\r\n")) {
		t.Errorf("Unexpected response %q", resp)
	}
}

func TestFrame_ByteLengthNotRuneCount(t *testing.T) {
	resp, err := Frame([]byte("<p>é</p>"))
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if !bytes.Contains(resp, []byte("Content-Length: 9\r\n")) {
		t.Errorf("Expected byte length 9 in %q", resp)
	}
}

func TestFrame_NilBody(t *testing.T) {
	resp, err := Frame(nil)
	if err == nil {
		t.Fatal("Expected error for nil body")
	}
	if resp != nil {
		t.Errorf("Expected no bytes, got %q", resp)
	}
	if errors.TypeOf(err) != errors.ErrorMemory {
		t.Errorf("Expected memory error, got %v", err)
	}
}

func TestNotFoundResponse_Idempotent(t *testing.T) {
	first := NotFoundResponse()
	if string(first) != "HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n" {
		t.Errorf("Unexpected 404 bytes %q", first)
	}
	first[0] = 'X'
	second := NotFoundResponse()
	if !bytes.HasPrefix(second, []byte("HTTP/1.1 404")) {
		t.Errorf("Expected a fresh copy, got %q", second)
	}
}
