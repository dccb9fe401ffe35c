package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/memoforge/internal/assembler"
	"github.com/fyrsmithlabs/memoforge/internal/memo"
	"github.com/fyrsmithlabs/memoforge/internal/stream"
)

// client calls the memoforge HTTP API.
type client struct {
	base  string
	token string
	http  *http.Client
}

func newClient() *client {
	// Generation streams can run for minutes; other calls use request
	// contexts with their own deadlines.
	return &client{
		base:  strings.TrimRight(serverURL, "/"),
		token: token,
		http:  &http.Client{},
	}
}

func (c *client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// Generate posts req and calls onSection for every update frame. It
// returns the memo of the complete frame, or the error frame as an error.
func (c *client) Generate(ctx context.Context, req assembler.Request, onSection func(memo.Section)) (*memo.Memo, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/v1/memos", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	var result *memo.Memo
	err = stream.NewReader(resp.Body).Each(func(f stream.Frame) error {
		switch f.Type {
		case stream.TypeUpdate:
			onSection(*f.Section)
		case stream.TypeComplete:
			result = f.Memo
		case stream.TypeError:
			return streamError(f)
		}
		return nil
	})
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, errors.New("stream ended before the memo was complete")
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("server returned status %d without a memo", resp.StatusCode)
	}
	return result, nil
}

// List returns the caller's memos.
func (c *client) List(ctx context.Context) ([]*memo.Memo, error) {
	var out struct {
		Memos []*memo.Memo `json:"memos"`
	}
	if err := c.getJSON(ctx, "/api/v1/memos", &out); err != nil {
		return nil, err
	}
	return out.Memos, nil
}

// Get returns one memo.
func (c *client) Get(ctx context.Context, id string) (*memo.Memo, error) {
	var m memo.Memo
	if err := c.getJSON(ctx, "/api/v1/memos/"+url.PathEscape(id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Health returns the server's reported status.
func (c *client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "/health", &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *client) getJSON(ctx context.Context, path string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("server returned status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
