// Package memo holds the memo document model shared by the generation
// pipeline, the stream protocol and the store.
package memo

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/memoforge/internal/parser"
)

// SectionType identifies a memo section.
type SectionType string

const (
	Objective SectionType = "objective"
	Hook      SectionType = "hook"
	Story     SectionType = "story"
	Concept   SectionType = "concept"
	Technique SectionType = "technique"
	Workshop  SectionType = "workshop"
)

// SectionOrder is the fixed order of section types in a memo. Concept may
// repeat.
var SectionOrder = []SectionType{Objective, Hook, Story, Concept, Technique, Workshop}

// Valid reports whether t is a known section type.
func (t SectionType) Valid() bool {
	for _, known := range SectionOrder {
		if t == known {
			return true
		}
	}
	return false
}

// Section is one generated unit of a memo. It is not modified after its
// generator returns it.
type Section struct {
	Type    SectionType      `json:"type"`
	Titre   string           `json:"titre,omitempty"`
	Contenu string           `json:"contenu"`
	Couleur string           `json:"couleur"`
	Duree   *parser.Duration `json:"duree,omitempty"`
}

// Metadata describes what a memo is about.
type Metadata struct {
	Topic   string `json:"topic"`
	Subject string `json:"subject,omitempty"`
}

// Memo is a fully generated document.
type Memo struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	BookID    string    `json:"book_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Sections  []Section `json:"sections"`
	Metadata  Metadata  `json:"metadata"`
}

// Count returns how many sections of type t the memo holds.
func (m *Memo) Count(t SectionType) int {
	n := 0
	for _, s := range m.Sections {
		if s.Type == t {
			n++
		}
	}
	return n
}

// Emitter receives each section as soon as it is produced, in memo order.
type Emitter interface {
	Emit(ctx context.Context, s Section)
}

// EmitterFunc adapts a plain callback to Emitter.
type EmitterFunc func(s Section)

func (f EmitterFunc) Emit(_ context.Context, s Section) { f(s) }

// Emitters fans a section out to several emitters in order.
type Emitters []Emitter

func (e Emitters) Emit(ctx context.Context, s Section) {
	for _, em := range e {
		if em != nil {
			em.Emit(ctx, s)
		}
	}
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, Section) {}

// Discard is an Emitter that drops every section.
var Discard Emitter = nopEmitter{}
