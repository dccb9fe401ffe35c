package memo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/memoforge/internal/parser"
)

func TestContext_WithSectionDoesNotMutate(t *testing.T) {
	base := NewContext("le ciel", "physique").WithObjective("comprendre")
	first := base.WithSection(Section{Type: Concept, Titre: "Diffusion", Contenu: "a"})
	second := first.WithSection(Section{Type: Concept, Titre: "Spectre", Contenu: "b"})
	branch := first.WithSection(Section{Type: Technique, Contenu: "c"})

	assert.Empty(t, base.Sections)
	assert.Len(t, first.Sections, 1)
	assert.Len(t, second.Sections, 2)
	assert.Len(t, branch.Sections, 2)
	assert.Equal(t, Technique, branch.Sections[1].Type)
	assert.Equal(t, Concept, second.Sections[1].Type)

	assert.Equal(t, []string{"Diffusion", "Spectre"}, second.Ideas)
	assert.Equal(t, []string{"Diffusion"}, branch.Ideas)
	assert.Equal(t, "comprendre", second.Objective)
}

func TestContext_Last(t *testing.T) {
	c := NewContext("x", "").
		WithSection(Section{Type: Hook, Contenu: "h"}).
		WithSection(Section{Type: Concept, Contenu: "c1"}).
		WithSection(Section{Type: Concept, Contenu: "c2"})

	s, ok := c.Last(Concept)
	require.True(t, ok)
	assert.Equal(t, "c2", s.Contenu)

	_, ok = c.Last(Workshop)
	assert.False(t, ok)
}

func TestSection_JSON(t *testing.T) {
	s := Section{Type: Workshop, Titre: "Atelier", Contenu: "faire", Couleur: "#D63031",
		Duree: &parser.Duration{Value: 30, Unit: parser.Minutes}}

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"workshop","titre":"Atelier","contenu":"faire","couleur":"#D63031","duree":{"value":30,"unit":"min"}}`, string(b))

	b, err = json.Marshal(Section{Type: Hook, Contenu: "x", Couleur: "#E17055"})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "duree")
	assert.NotContains(t, string(b), "titre")
}

func TestMemo_JSONFieldNames(t *testing.T) {
	m := Memo{ID: "01H", UserID: "u", Content: "topic", CreatedAt: time.Unix(0, 0).UTC(),
		Metadata: Metadata{Topic: "topic"}}
	b, err := json.Marshal(m)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	for _, key := range []string{"id", "user_id", "content", "created_at", "sections", "metadata"} {
		assert.Contains(t, raw, key)
	}
	assert.NotContains(t, raw, "book_id")
}

func TestEmitters(t *testing.T) {
	var got []SectionType
	rec := EmitterFunc(func(s Section) { got = append(got, s.Type) })

	Emitters{rec, nil, Discard, rec}.Emit(context.Background(), Section{Type: Story})
	assert.Equal(t, []SectionType{Story, Story}, got)
}

func TestSectionType_Valid(t *testing.T) {
	assert.True(t, Concept.Valid())
	assert.False(t, SectionType("conclusion").Valid())
}
