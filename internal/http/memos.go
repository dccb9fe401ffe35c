package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memoforge/internal/assembler"
	"github.com/fyrsmithlabs/memoforge/internal/auth"
	"github.com/fyrsmithlabs/memoforge/internal/logging"
	"github.com/fyrsmithlabs/memoforge/internal/memo"
	"github.com/fyrsmithlabs/memoforge/internal/memoerr"
	"github.com/fyrsmithlabs/memoforge/internal/store"
	"github.com/fyrsmithlabs/memoforge/internal/stream"
)

const mimeEventStream = "text/event-stream"

// ErrorResponse is the JSON body of a non-streaming failure.
type ErrorResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ListResponse is the response body for GET /api/v1/memos.
type ListResponse struct {
	Memos []*memo.Memo `json:"memos"`
}

// LogsResponse is the response body for GET /api/v1/diagnostics/logs.
type LogsResponse struct {
	Entries []logging.BufferedEntry `json:"entries"`
}

func wantsStream(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), mimeEventStream)
}

func startStream(c echo.Context, status int) {
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, mimeEventStream)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(status)
}

// preflight answers a request that failed before generation started: one
// error frame for stream clients, a JSON body otherwise.
func (s *Server) preflight(c echo.Context, status int, err error) error {
	f := stream.Failure(err)
	if !wantsStream(c) {
		return c.JSON(status, ErrorResponse{Code: f.Code, Message: f.Message})
	}
	startStream(c, status)
	w := stream.NewWriter(c.Response(), countFrame)
	return w.Write(c.Request().Context(), f)
}

func (s *Server) rejectUnauthorized(c echo.Context, err error) error {
	return s.preflight(c, http.StatusUnauthorized, err)
}

func (s *Server) handleGenerate(c echo.Context) error {
	ctx := c.Request().Context()

	var req assembler.Request
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(ctx, "invalid generate request", zap.Error(err))
		return s.preflight(c, http.StatusBadRequest, memoerr.Validation("invalid request body", nil))
	}
	req.UserID = auth.FromContext(c)
	requestID := c.Response().Header().Get(echo.HeaderXRequestID)

	observers := []stream.Observer{countFrame}
	if s.deps.Publisher != nil {
		observers = append(observers, s.deps.Publisher.Observer(req.UserID, requestID))
	}
	startStream(c, http.StatusOK)
	w := stream.NewWriter(c.Response(), observers...)

	// A client hanging up must not abort paid model calls; the memo is
	// still saved and NATS subscribers still get the frames.
	genCtx := context.WithoutCancel(ctx)
	if s.deps.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(genCtx, s.deps.GenerationTimeout)
		defer cancel()
	}

	m, err := s.deps.Generator.GenerateStream(genCtx, req, w)
	if err != nil {
		_ = w.Fail(genCtx, err)
		s.logStreamEnd(genCtx, w)
		return nil
	}

	if _, err := s.deps.Store.Save(genCtx, m); err != nil {
		s.logger.Error(genCtx, "failed to save memo", zap.String("memo_id", m.ID), zap.Error(err))
		_ = w.Fail(genCtx, memoerr.Wrap(memoerr.CodeAPI, err, "failed to save memo"))
		s.logStreamEnd(genCtx, w)
		return nil
	}

	_ = w.Complete(logging.WithMemoID(genCtx, m.ID), m)
	s.logStreamEnd(genCtx, w)
	return nil
}

func (s *Server) logStreamEnd(ctx context.Context, w *stream.Writer) {
	if err := w.Err(); err != nil {
		s.logger.Info(ctx, "client left before end of stream", zap.Error(err))
	}
}

func (s *Server) handleList(c echo.Context) error {
	ctx := c.Request().Context()
	memos, err := s.deps.Store.List(ctx, auth.FromContext(c))
	if err != nil {
		s.logger.Error(ctx, "failed to list memos", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "failed to list memos"})
	}
	if memos == nil {
		memos = []*memo.Memo{}
	}
	return c.JSON(http.StatusOK, ListResponse{Memos: memos})
}

func (s *Server) handleGet(c echo.Context) error {
	ctx := c.Request().Context()
	m, err := s.deps.Store.Get(ctx, c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Message: "memo not found"})
	case err != nil:
		s.logger.Error(ctx, "failed to load memo", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "failed to load memo"})
	}
	// Another user's memo is reported as missing.
	if m.UserID != auth.FromContext(c) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Message: "memo not found"})
	}
	return c.JSON(http.StatusOK, m)
}

// handleLogs returns the diagnostics buffer. With tokens configured each
// caller only sees entries tagged with their own user id.
func (s *Server) handleLogs(c echo.Context) error {
	resp := LogsResponse{Entries: []logging.BufferedEntry{}}
	if s.deps.Logs == nil {
		return c.JSON(http.StatusOK, resp)
	}
	entries := s.deps.Logs.Snapshot()
	if !s.deps.Verifier.Enabled() {
		resp.Entries = append(resp.Entries, entries...)
		return c.JSON(http.StatusOK, resp)
	}
	userID := auth.FromContext(c)
	for _, e := range entries {
		if owner, _ := e.Fields[logging.UserIDField].(string); owner == userID {
			resp.Entries = append(resp.Entries, e)
		}
	}
	return c.JSON(http.StatusOK, resp)
}
