package mcptools

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestServer() *Server {
	return New(nil, zerolog.Nop())
}

func TestServe_Initialize(t *testing.T) {
	s := newTestServer()
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize"}` + "\n")
	var out bytes.Buffer

	if err := s.Serve(in, &out); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("response did not decode as JSON: %v (%q)", err, out.String())
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error in response: %v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result is not an object: %#v", resp.Result)
	}
	if result["serverInfo"] == nil {
		t.Fatal("initialize response missing serverInfo")
	}
}

func TestServe_ToolsList(t *testing.T) {
	s := newTestServer()
	in := strings.NewReader(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n")
	var out bytes.Buffer

	if err := s.Serve(in, &out); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("response did not decode as JSON: %v", err)
	}
	result := resp.Result.(map[string]interface{})
	tools, ok := result["tools"].([]interface{})
	if !ok || len(tools) != 7 {
		t.Fatalf("expected 7 tool definitions, got %#v", result["tools"])
	}
}

func TestServe_UnknownMethod(t *testing.T) {
	s := newTestServer()
	in := strings.NewReader(`{"jsonrpc":"2.0","id":3,"method":"bogus"}` + "\n")
	var out bytes.Buffer

	if err := s.Serve(in, &out); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("response did not decode as JSON: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("expected an error for an unknown method")
	}
}

func TestServe_MalformedLineIsSkippedNotFatal(t *testing.T) {
	s := newTestServer()
	in := strings.NewReader("not json\n" + `{"jsonrpc":"2.0","id":4,"method":"initialize"}` + "\n")
	var out bytes.Buffer

	if err := s.Serve(in, &out); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected exactly one response line (malformed input skipped), got %d: %v", len(lines), lines)
	}
}

func TestServe_ToolsCallUnknownTool(t *testing.T) {
	s := newTestServer()
	in := strings.NewReader(`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"nope","arguments":{}}}` + "\n")
	var out bytes.Buffer

	if err := s.Serve(in, &out); err != nil {
		t.Fatalf("Serve returned error: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("response did not decode as JSON: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("expected an error for an unknown tool")
	}
}
