// Package mcptools exposes the tickets_final_enriched table as a small
// set of read-only Q&A tools, served over a JSON-RPC-over-stdio loop so
// an LLM-driven agent can answer questions about processed tickets. It
// never writes.
package mcptools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/ticketfire/backend/internal/db"
)

// Request is a standard JSON-RPC 2.0 request, one per line on stdin.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a standard JSON-RPC 2.0 response, one per line on stdout.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

// Server holds the read-only store the tools query.
type Server struct {
	store  *db.Store
	logger zerolog.Logger
}

// New builds a Server bound to store.
func New(store *db.Store, logger zerolog.Logger) *Server {
	return &Server{store: store, logger: logger}
}

// Serve reads one JSON-RPC request per line from r and writes one
// response per line to w, until r is exhausted or ctx... (no context
// needed: each call is independent and short-lived, the loop itself
// is cancelled by closing r).
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if len(bytesTrimSpace(line)) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Error().Err(err).Msg("failed to unmarshal mcp request")
			continue
		}
		s.handle(w, req)
	}
}

func (s *Server) handle(w io.Writer, req Request) {
	ctx := context.Background()

	var result interface{}
	var errRes interface{}

	switch req.Method {
	case "initialize":
		result = map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]interface{}{},
			"serverInfo": map[string]interface{}{
				"name":    "ticketfire-mcp",
				"version": "1.0.0",
			},
		}
	case "tools/list":
		result = map[string]interface{}{"tools": toolDefinitions}
	case "tools/call":
		result, errRes = s.callTool(ctx, req.Params)
	default:
		errRes = map[string]interface{}{"code": -32601, "message": fmt.Sprintf("method %s not found", req.Method)}
	}

	resp := Response{JSONRPC: "2.0", ID: req.ID, Result: result, Error: errRes}
	out, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to marshal mcp response")
		return
	}
	out = append(out, '\n')
	if _, err := w.Write(out); err != nil {
		s.logger.Error().Err(err).Msg("failed to write mcp response")
	}
}

func bytesTrimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
