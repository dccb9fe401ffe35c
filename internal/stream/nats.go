package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memoforge/internal/logging"
)

// DefaultSubjectPrefix is the first token of every published subject.
const DefaultSubjectPrefix = "memos"

// Publisher mirrors frames to NATS on
//
//	<prefix>.<user_id>.<request_id>.<type>
//
// so other processes can follow a generation without holding the HTTP
// stream.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *logging.Logger
}

// NewPublisher creates a publisher on nc. An empty prefix means
// DefaultSubjectPrefix.
func NewPublisher(nc *nats.Conn, prefix string, logger *logging.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{nc: nc, prefix: prefix, logger: logger.Named("nats")}
}

// Subject returns the subject for one frame type.
func (p *Publisher) Subject(userID, requestID string, t FrameType) string {
	return fmt.Sprintf("%s.%s.%s.%s", p.prefix, token(userID), token(requestID), t)
}

// Wildcard returns the subject matching every frame of one request.
func (p *Publisher) Wildcard(userID, requestID string) string {
	return fmt.Sprintf("%s.%s.%s.*", p.prefix, token(userID), token(requestID))
}

// Publish sends f as JSON.
func (p *Publisher) Publish(userID, requestID string, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", f.Type, err)
	}
	if err := p.nc.Publish(p.Subject(userID, requestID, f.Type), data); err != nil {
		return fmt.Errorf("publish %s frame: %w", f.Type, err)
	}
	return nil
}

// Observer returns a Writer observer publishing every frame of one request.
// Publish failures are logged; they never interrupt the HTTP stream.
func (p *Publisher) Observer(userID, requestID string) Observer {
	return func(ctx context.Context, f Frame) {
		if err := p.Publish(userID, requestID, f); err != nil {
			p.logger.Warn(ctx, "frame not published", zap.String("type", string(f.Type)), zap.Error(err))
			return
		}
		if f.Type.Terminal() {
			if err := p.nc.Flush(); err != nil {
				p.logger.Warn(ctx, "nats flush failed", zap.Error(err))
			}
		}
	}
}

// token makes s usable as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
