// Package rpcserver implements the newline-delimited JSON stdio loop: one
// request object per line on stdin, one response envelope per line on
// stdout, one request fully handled before the next is read. Stdout is
// reserved exclusively for the protocol stream — all logging goes to the
// file-based logger, keeping stdout/stderr free of anything but the
// wire protocol itself.
package rpcserver

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/repomcp/repomcpd/internal/audit"
	"github.com/repomcp/repomcpd/internal/protocol"
)

func wallClock() int64 { return time.Now().Unix() }

// defaultMaxLineBytes (8 MiB) bounds a single request line read from the
// input; the scanner buffer starts at 64 KiB and grows on demand up to this
// size. It is independent of max_total_bytes_per_response, and response
// lines are not bounded by it.
const defaultMaxLineBytes = 8 * 1024 * 1024

// Server reads requests from r and writes responses to w, dispatching
// through a protocol.Dispatcher and recording one audit event per
// request.
type Server struct {
	dispatcher   *protocol.Dispatcher
	auditLog     *audit.Log
	logger       *slog.Logger
	maxLineBytes int
	now          func() int64
}

// New creates a Server. now lets callers inject a deterministic clock in
// tests; pass nil to use the real wall clock.
func New(dispatcher *protocol.Dispatcher, auditLog *audit.Log, logger *slog.Logger, now func() int64) *Server {
	if now == nil {
		now = wallClock
	}
	return &Server{dispatcher: dispatcher, auditLog: auditLog, logger: logger, maxLineBytes: defaultMaxLineBytes, now: now}
}

// Serve runs the read-dispatch-write loop until r is exhausted, ctx is
// canceled, or a write fails. A malformed request line yields an
// INVALID_PARAMS response rather than terminating the loop.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), s.maxLineBytes)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.handleLine(ctx, line)

		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleLine(ctx context.Context, line []byte) protocol.Response {
	var req protocol.Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Warn("malformed request line", "error", err)
		return protocol.Response{
			OK:    false,
			Error: &protocol.ErrorDetail{Code: protocol.CodeInvalidParams, Message: "malformed request"},
		}
	}

	// A client that omits id still gets a stable audit trail entry; content
	// hashing doesn't apply here since two identical requests are distinct
	// events, so fall back to a random id rather than deriving one.
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	resp := s.dispatcher.Dispatch(ctx, req)

	s.recordAudit(req, resp)
	return resp
}

func (s *Server) recordAudit(req protocol.Request, resp protocol.Response) {
	if s.auditLog == nil {
		return
	}
	event := audit.Event{
		TimestampUnix: s.now(),
		RequestID:     req.ID,
		Tool:          req.Method,
		OK:            resp.OK,
		Blocked:       resp.Blocked,
	}
	if resp.Error != nil {
		event.ErrorCode = resp.Error.Code
	}
	if err := s.auditLog.Record(event); err != nil {
		s.logger.Error("audit record failed", "error", err)
	}
}
