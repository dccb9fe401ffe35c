package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/memoforge/internal/assembler"
	"github.com/fyrsmithlabs/memoforge/internal/auth"
	httpserver "github.com/fyrsmithlabs/memoforge/internal/http"
	"github.com/fyrsmithlabs/memoforge/internal/llm"
	"github.com/fyrsmithlabs/memoforge/internal/logging"
	"github.com/fyrsmithlabs/memoforge/internal/memo"
	"github.com/fyrsmithlabs/memoforge/internal/parser"
	"github.com/fyrsmithlabs/memoforge/internal/plan"
	"github.com/fyrsmithlabs/memoforge/internal/retry"
	"github.com/fyrsmithlabs/memoforge/internal/sections"
	"github.com/fyrsmithlabs/memoforge/internal/store"
)

func startDaemon(t *testing.T, rules []llm.Rule, tokens map[string]string) string {
	t.Helper()
	client := llm.NewStatic(rules...)
	exec := retry.NewExecutor(nil, retry.WithSleep(func(context.Context, time.Duration) error { return nil }))
	asm := assembler.New(plan.NewGenerator(client, exec, nil), sections.New(client, exec, nil), nil)

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "memos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	srv, err := httpserver.NewServer(httpserver.Deps{
		Generator: asm,
		Store:     st,
		Verifier:  auth.NewVerifier(tokens),
	}, logging.NewNop(), nil)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(ts.Close)
	return ts.URL
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	serverURL, token = "", ""
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGenerateListShow(t *testing.T) {
	url := startDaemon(t, sections.DemoRules(), map[string]string{"tok": "alice"})

	out, err := execute(t, "--server", url, "--token", "tok", "generate", "--json", "les", "volcans")
	require.NoError(t, err)
	assert.Contains(t, out, `"content": "les volcans"`)

	out, err = execute(t, "--server", url, "--token", "tok", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "les volcans")
	id := strings.Fields(stripANSI(out))[0]

	out, err = execute(t, "--server", url, "--token", "tok", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "OBJECTIF")
	assert.Contains(t, out, "ATELIER")
}

func TestGenerate_StreamsSections(t *testing.T) {
	url := startDaemon(t, sections.DemoRules(), nil)
	out, err := execute(t, "--server", url, "generate", "la photosynthèse")
	require.NoError(t, err)

	plain := stripANSI(out)
	order := []string{"OBJECTIF", "ACCROCHE", "HISTOIRE", "CONCEPT", "TECHNIQUE", "ATELIER"}
	last := -1
	for _, label := range order {
		i := strings.Index(plain, label)
		require.GreaterOrEqual(t, i, 0, label)
		assert.Greater(t, i, last, label)
		last = i
	}
	assert.Contains(t, plain, "7 sections")
}

func TestGenerate_ErrorFrame(t *testing.T) {
	rules := append([]llm.Rule{{Match: "progression", Reply: `{"progression":{}}`}}, sections.DemoRules()[1:]...)
	url := startDaemon(t, rules, nil)

	_, err := execute(t, "--server", url, "generate", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VALIDATION_ERROR")
}

func TestGenerate_Unauthorized(t *testing.T) {
	url := startDaemon(t, sections.DemoRules(), map[string]string{"tok": "alice"})
	_, err := execute(t, "--server", url, "generate", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")

	_, err = execute(t, "--server", url, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestGenerate_Offline(t *testing.T) {
	out, err := execute(t, "generate", "--offline", "--json", "les fractions")
	require.NoError(t, err)
	assert.Contains(t, out, `"type": "workshop"`)
}

func TestHealth(t *testing.T) {
	url := startDaemon(t, sections.DemoRules(), nil)
	out, err := execute(t, "--server", url, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Server Status: ok")
}

func TestRenderSection(t *testing.T) {
	s := memo.Section{
		Type:    memo.Workshop,
		Titre:   "Maquette",
		Contenu: "Construire un volcan en argile.",
		Couleur: sections.Colors[memo.Workshop],
		Duree:   &parser.Duration{Value: 20, Unit: parser.Minutes},
	}
	plain := stripANSI(renderSection(s))
	assert.Contains(t, plain, "ATELIER · Maquette")
	assert.Contains(t, plain, "Construire un volcan en argile.")
	assert.Contains(t, plain, "20")
}

func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'):
			inEscape = false
		case !inEscape:
			b.WriteRune(r)
		}
	}
	return b.String()
}
