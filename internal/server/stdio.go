// Package server runs the line-delimited JSON request loop. Each stdin line
// is one request {id?, tool, arguments{operation, ...}}; each stdout line is
// the matching response. Logs go to stderr so the protocol stream stays
// clean.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Dhenenjay/earth-engine-mcp/internal/logging"
	"github.com/Dhenenjay/earth-engine-mcp/internal/router"
)

// maxRequestBytes bounds one request line. Inline GeoJSON regions can be
// large, but nothing legitimate approaches this.
const maxRequestBytes = 8 << 20

// maxInFlight caps concurrently handled requests.
const maxInFlight = 8

// Request is one decoded protocol line.
type Request struct {
	ID        string         `json:"id,omitempty"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Response is one protocol reply. Result carries the router's normalized
// response verbatim.
type Response struct {
	ID     string          `json:"id"`
	Result router.Response `json:"result"`
}

// Server pumps requests from in to the router and replies on out.
type Server struct {
	router *router.Router

	mu  sync.Mutex // serializes writes; responses may finish out of order
	out io.Writer
}

// New builds a server over the given streams.
func New(r *router.Router, out io.Writer) *Server {
	return &Server{router: r, out: out}
}

// Run reads requests until EOF or ctx cancellation. Requests are handled
// concurrently; malformed lines get an error response with a generated ID
// rather than killing the loop.
func (s *Server) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxRequestBytes)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		g.Go(func() error {
			s.handleLine(ctx, line)
			return nil
		})
	}

	werr := g.Wait()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("request stream failed: %w", err)
	}
	return werr
}

func (s *Server) handleLine(ctx context.Context, line []byte) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		logging.Warnf(logging.CategoryServer, "malformed request line: %v", err)
		s.write(Response{
			ID:     uuid.NewString(),
			Result: router.Response{"success": false, "error": fmt.Sprintf("malformed request: %v", err)},
		})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	logging.ServerDebug("request %s: tool=%s", req.ID, req.Tool)
	result := s.router.Handle(ctx, req.Tool, req.Arguments)
	s.write(Response{ID: req.ID, Result: result})
}

func (s *Server) write(resp Response) {
	raw, err := json.Marshal(resp)
	if err != nil {
		// A handler put something unencodable in the response.
		logging.Errorf(logging.CategoryServer, "failed to encode response %s: %v", resp.ID, err)
		raw, _ = json.Marshal(Response{
			ID:     resp.ID,
			Result: router.Response{"success": false, "error": "internal encoding error"},
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.out.Write(append(raw, '\n')); err != nil {
		logging.Errorf(logging.CategoryServer, "failed to write response %s: %v", resp.ID, err)
	}
}
