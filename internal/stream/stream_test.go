package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/memoforge/internal/memo"
	"github.com/fyrsmithlabs/memoforge/internal/memoerr"
)

func section(t memo.SectionType) memo.Section {
	return memo.Section{Type: t, Contenu: "contenu " + string(t), Couleur: "#000000"}
}

func TestEncode(t *testing.T) {
	data, err := Encode(Update(section(memo.Hook)))
	require.NoError(t, err)

	s := string(data)
	assert.True(t, strings.HasPrefix(s, "data: {"))
	assert.True(t, strings.HasSuffix(s, "}\n\n"))

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(s, "data: "))), &raw))
	assert.Equal(t, "update", raw["type"])
	assert.Contains(t, raw, "section")
	assert.NotContains(t, raw, "memo")
	assert.NotContains(t, raw, "message")
}

func TestFailure_UsesClassifiedMessage(t *testing.T) {
	f := Failure(memoerr.Validation("invalid plan: concepts: must not be empty", nil))
	assert.Equal(t, TypeError, f.Type)
	assert.Equal(t, "invalid plan: concepts: must not be empty", f.Message)
	assert.Equal(t, string(memoerr.CodeValidation), f.Code)

	f = Failure(errors.New("dial tcp: connection refused"))
	assert.Equal(t, string(memoerr.CodeNetwork), f.Code)

	f = Failure(nil)
	assert.NotEmpty(t, f.Message)
}

func TestWriter_SingleTerminalFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec)
	ctx := context.Background()

	w.Emit(ctx, section(memo.Objective))
	w.Emit(ctx, section(memo.Hook))
	require.NoError(t, w.Complete(ctx, &memo.Memo{ID: "m1"}))
	assert.True(t, w.Closed())
	assert.True(t, rec.Flushed)

	assert.ErrorIs(t, w.Complete(ctx, &memo.Memo{ID: "m2"}), ErrClosed)
	assert.ErrorIs(t, w.Fail(ctx, errors.New("late")), ErrClosed)
	assert.ErrorIs(t, w.Write(ctx, Update(section(memo.Story))), ErrClosed)

	assert.Equal(t, 3, strings.Count(rec.Body.String(), "data: "))
	assert.NotContains(t, rec.Body.String(), "m2")
}

func TestWriter_RejectsInvalidFrames(t *testing.T) {
	w := NewWriter(&bytes.Buffer{})
	ctx := context.Background()

	assert.ErrorIs(t, w.Write(ctx, Frame{Type: TypeUpdate}), ErrInvalidFrame)
	assert.ErrorIs(t, w.Write(ctx, Frame{Type: TypeComplete}), ErrInvalidFrame)
	assert.ErrorIs(t, w.Write(ctx, Frame{Type: TypeError}), ErrInvalidFrame)
	assert.ErrorIs(t, w.Write(ctx, Frame{Type: "progress"}), ErrInvalidFrame)
	assert.False(t, w.Closed())
}

type brokenWriter struct{ n int }

func (b *brokenWriter) Write(p []byte) (int, error) {
	b.n++
	return 0, io.ErrClosedPipe
}

func TestWriter_TransportErrorStillObserved(t *testing.T) {
	bw := &brokenWriter{}
	var seen []FrameType
	w := NewWriter(bw, func(_ context.Context, f Frame) { seen = append(seen, f.Type) })
	ctx := context.Background()

	w.Emit(ctx, section(memo.Objective))
	w.Emit(ctx, section(memo.Hook))
	require.NoError(t, w.Complete(ctx, &memo.Memo{ID: "m"}))

	assert.ErrorIs(t, w.Err(), io.ErrClosedPipe)
	assert.Equal(t, 1, bw.n)
	assert.Equal(t, []FrameType{TypeUpdate, TypeUpdate, TypeComplete}, seen)
	assert.True(t, w.Closed())
}

func TestReader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	ctx := context.Background()
	w.Emit(ctx, section(memo.Objective))
	buf.WriteString(": heartbeat\n\n")
	w.Emit(ctx, section(memo.Hook))
	require.NoError(t, w.Fail(ctx, memoerr.New(memoerr.CodeTimeout, "deadline exceeded")))
	buf.WriteString("data: {\"type\":\"update\"}\n\n")

	r := NewReader(&buf)
	var frames []Frame
	require.NoError(t, r.Each(func(f Frame) error {
		frames = append(frames, f)
		return nil
	}))

	require.Len(t, frames, 3)
	assert.Equal(t, memo.Objective, frames[0].Section.Type)
	assert.Equal(t, memo.Hook, frames[1].Section.Type)
	assert.Equal(t, TypeError, frames[2].Type)
	assert.Equal(t, "deadline exceeded", frames[2].Message)

	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReader_TruncatedStream(t *testing.T) {
	r := NewReader(strings.NewReader("data: {\"type\":\"update\",\"section\":{\"type\":\"hook\",\"contenu\":\"x\",\"couleur\":\"#E17055\"}}\n\n"))

	f, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, TypeUpdate, f.Type)

	_, err = r.Next()
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestReader_MultiLineData(t *testing.T) {
	r := NewReader(strings.NewReader("event: x\ndata: {\"type\":\"error\",\ndata: \"message\":\"boom\"}\n\n"))
	f, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "boom", f.Message)
}

func TestReader_BadJSON(t *testing.T) {
	_, err := NewReader(strings.NewReader("data: {nope}\n\n")).Next()
	assert.Error(t, err)
}

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		srv.Shutdown()
		srv.WaitForShutdown()
	})
	return srv
}

func TestPublisher_MirrorsFrames(t *testing.T) {
	srv := startTestNATSServer(t)
	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	p := NewPublisher(nc, "", nil)
	assert.Equal(t, "memos.user_1.req-1.update", p.Subject("user.1", "req-1", TypeUpdate))

	msgs := make(chan *nats.Msg, 10)
	sub, err := nc.ChanSubscribe(p.Wildcard("user.1", "req-1"), msgs)
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()
	require.NoError(t, nc.Flush())

	w := NewWriter(&bytes.Buffer{}, p.Observer("user.1", "req-1"))
	ctx := context.Background()
	w.Emit(ctx, section(memo.Objective))
	require.NoError(t, w.Complete(ctx, &memo.Memo{ID: "m1"}))

	var subjects []string
	for i := 0; i < 2; i++ {
		select {
		case m := <-msgs:
			subjects = append(subjects, m.Subject)
			var f Frame
			require.NoError(t, json.Unmarshal(m.Data, &f))
			require.NoError(t, f.Validate())
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for frames")
		}
	}
	assert.Equal(t, []string{"memos.user_1.req-1.update", "memos.user_1.req-1.complete"}, subjects)
}

func TestToken(t *testing.T) {
	assert.Equal(t, "_", token(""))
	assert.Equal(t, "a_b_c_d", token("a.b*c>d"))
}
