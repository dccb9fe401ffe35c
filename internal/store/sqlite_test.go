package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/memoforge/internal/memo"
	"github.com/fyrsmithlabs/memoforge/internal/parser"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "memos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleMemo(user string, created time.Time) *memo.Memo {
	return &memo.Memo{
		UserID:    user,
		Content:   "les volcans",
		CreatedAt: created,
		Sections: []memo.Section{
			{Type: memo.Objective, Titre: "Objectif", Contenu: "comprendre", Couleur: "#6C5CE7"},
			{Type: memo.Workshop, Titre: "Atelier", Contenu: "maquette", Couleur: "#D63031",
				Duree: &parser.Duration{Value: 2, Unit: parser.Hours}},
		},
		Metadata: memo.Metadata{Topic: "les volcans", Subject: "SVT"},
	}
}

func TestSQLiteStore_SaveGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 5, 4, 12, 30, 0, 123, time.UTC)

	m := sampleMemo("u1", created)
	m.BookID = "book-9"
	id, err := s.Save(ctx, m)
	require.NoError(t, err)
	assert.Len(t, id, 26)
	assert.Equal(t, id, m.ID)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	_, err := newTestStore(t).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListByUserNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, user := range []string{"u1", "u2", "u1", "u1"} {
		m := sampleMemo(user, base.Add(time.Duration(i)*time.Hour))
		m.ID = ""
		_, err := s.Save(ctx, m)
		require.NoError(t, err)
	}

	list, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
	assert.True(t, list[1].CreatedAt.After(list[2].CreatedAt))

	none, err := s.List(ctx, "u3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStore_ListOrdersWithinSecond(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	second := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	memos := []struct {
		id      string
		created time.Time
	}{
		{"C-oldest", second},
		{"B-older", second.Add(500 * time.Millisecond)},
		{"A-newer", second.Add(550 * time.Millisecond)},
	}
	for _, tc := range memos {
		m := sampleMemo("u1", tc.created)
		m.ID = tc.id
		_, err := s.Save(ctx, m)
		require.NoError(t, err)
	}

	list, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "A-newer", list[0].ID)
	assert.Equal(t, "B-older", list[1].ID)
	assert.Equal(t, "C-oldest", list[2].ID)
	assert.True(t, list[0].CreatedAt.Equal(memos[2].created))
}

func TestSQLiteStore_SaveReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := sampleMemo("u1", time.Now().UTC())
	id, err := s.Save(ctx, m)
	require.NoError(t, err)

	m.Content = "les séismes"
	_, err = s.Save(ctx, m)
	require.NoError(t, err)

	list, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, "les séismes", list[0].Content)
}

func TestSQLiteStore_SaveNil(t *testing.T) {
	_, err := newTestStore(t).Save(context.Background(), nil)
	assert.Error(t, err)
}
