package protocol

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestParseParams_TwoPairs(t *testing.T) {
	got := ParseParams([]byte("a=1&b=2"), MaxParams)
	want := Params{{"a", "1"}, {"b", "2"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestParseParams_TrailingAmpersand(t *testing.T) {
	got := ParseParams([]byte("a=1&"), MaxParams)
	want := Params{{"a", "1"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestParseParams_NilAndEmpty(t *testing.T) {
	for _, in := range [][]byte{nil, {}} {
		got := ParseParams(in, MaxParams)
		if len(got) != 0 {
			t.Errorf("Expected no params for %q, got %v", in, got)
		}
	}
}

func TestParseParams_NoDecoding(t *testing.T) {
	got := ParseParams([]byte("name=John+Doe&city=New%20York"), MaxParams)
	want := Params{{"name", "John+Doe"}, {"city", "New%20York"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected raw values %v, got %v", want, got)
	}
}

func TestParseParams_DuplicatesKept(t *testing.T) {
	got := ParseParams([]byte("k=1&k=2&k=3"), MaxParams)
	if len(got) != 3 {
		t.Fatalf("Expected 3 params, got %d", len(got))
	}
	if v, _ := got.Get("k"); v != "1" {
		t.Errorf("Expected first value 1, got %q", v)
	}
	if vs := got.Values("k"); !reflect.DeepEqual(vs, []string{"1", "2", "3"}) {
		t.Errorf("Expected all values in order, got %v", vs)
	}
}

func TestParseParams_TrailingGarbageDropped(t *testing.T) {
	got := ParseParams([]byte("a=1&garbage"), MaxParams)
	want := Params{{"a", "1"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestParseParams_EmptyKeyAndValue(t *testing.T) {
	got := ParseParams([]byte("=x&y="), MaxParams)
	want := Params{{"", "x"}, {"y", ""}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestParseParams_KeySpansAmpersandWithoutEquals(t *testing.T) {
	// The key runs from the scan position to the next '=', so a
	// key-less fragment is folded into the following key.
	got := ParseParams([]byte("x&y=1"), MaxParams)
	want := Params{{"x&y", "1"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestParseParams_Cap(t *testing.T) {
	var pairs []string
	for i := 0; i < MaxParams+10; i++ {
		pairs = append(pairs, fmt.Sprintf("k%d=v%d", i, i))
	}
	got := ParseParams([]byte(strings.Join(pairs, "&")), MaxParams)
	if len(got) != MaxParams {
		t.Fatalf("Expected %d params, got %d", MaxParams, len(got))
	}
	last := got[len(got)-1]
	if last.Key != fmt.Sprintf("k%d", MaxParams-1) {
		t.Errorf("Expected last key k%d, got %q", MaxParams-1, last.Key)
	}
}

func TestParseParams_SmallMax(t *testing.T) {
	got := ParseParams([]byte("a=1&b=2&c=3"), 2)
	want := Params{{"a", "1"}, {"b", "2"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if got := ParseParams([]byte("a=1"), 0); len(got) != 0 {
		t.Errorf("Expected no params for max 0, got %v", got)
	}
}

func TestParseParams_OrderAndRawness(t *testing.T) {
	inputs := [][]Param{
		{{"q", "go"}},
		{{"a", "%41"}, {"b", "+"}, {"c", "x=y"}},
		{{"user", "bob"}, {"id", "42"}, {"user", "alice"}},
	}
	for _, want := range inputs {
		var parts []string
		for _, p := range want {
			parts = append(parts, p.Key+"="+p.Value)
		}
		got := ParseParams([]byte(strings.Join(parts, "&")), MaxParams)
		if !reflect.DeepEqual(got, Params(want)) {
			t.Errorf("Expected %v, got %v", want, got)
		}
	}
}

func TestSplitTarget(t *testing.T) {
	tests := []struct {
		target, path, query string
		hasQuery             bool
	}{
		{"/about", "/about", "", false},
		{"/greet?name=x", "/greet", "name=x", true},
		{"/greet?", "/greet", "", true},
		{"/a?b?c", "/a", "b?c", true},
	}
	for _, tt := range tests {
		path, query, ok := SplitTarget(tt.target)
		if path != tt.path || query != tt.query || ok != tt.hasQuery {
			t.Errorf("SplitTarget(%q) = %q, %q, %v", tt.target, path, query, ok)
		}
	}
}

func TestBody(t *testing.T) {
	body, ok := Body([]byte("POST /f HTTP/1.1\r\nHost: x\r\n\r\na=1"))
	if !ok || string(body) != "a=1" {
		t.Errorf("Expected body %q, got %q (found=%v)", "a=1", body, ok)
	}
	if _, ok := Body([]byte("POST /f HTTP/1.1\r\nHost: x\r\n")); ok {
		t.Error("Expected no body without a blank line")
	}
}
