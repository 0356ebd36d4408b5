package protocol

import (
	"bytes"
	"strings"
)

// MaxParams bounds the number of parameters taken from one request
const MaxParams = 255

// ParseParams decodes an &/= delimited blob (a query string without the
// leading '?', or a form body) into at most max parameters.
//
// Parsing stops at the first position with no '=' left, so trailing key-less
// input is dropped. Keys and values are copied raw: no percent-decoding and no
// '+' to space conversion.
func ParseParams(data []byte, max int) Params {
	if len(data) == 0 || max <= 0 {
		return Params{}
	}

	capacity := bytes.Count(data, []byte{'='})
	if capacity > max {
		capacity = max
	}
	params := make(Params, 0, capacity)

	pos := 0
	for pos < len(data) && len(params) < max {
		eq := bytes.IndexByte(data[pos:], '=')
		if eq < 0 {
			break
		}
		keyEnd := pos + eq
		valStart := keyEnd + 1

		valEnd := len(data)
		amp := bytes.IndexByte(data[valStart:], '&')
		if amp >= 0 {
			valEnd = valStart + amp
		}

		params = append(params, Param{
			Key:   string(data[pos:keyEnd]),
			Value: string(data[valStart:valEnd]),
		})

		if amp < 0 {
			break
		}
		pos = valEnd + 1
	}

	return params
}

// SplitTarget splits a request target at the first '?'.
func SplitTarget(target string) (path, query string, hasQuery bool) {
	return strings.Cut(target, "?")
}

var headerSeparator = []byte("\r\n\r\n")

// Body returns everything after the first blank line of raw.
func Body(raw []byte) ([]byte, bool) {
	pos := bytes.Index(raw, headerSeparator)
	if pos < 0 {
		return nil, false
	}
	return raw[pos+len(headerSeparator):], true
}
