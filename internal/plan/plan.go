// Package plan produces and validates the blueprint of a memo.
//
// A Plan is only ever constructed from input that passed Validate; there is
// no partially valid Plan.
package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/memoforge/internal/memoerr"
	"github.com/fyrsmithlabs/memoforge/internal/parser"
)

// Branch names under "progression".
const (
	BranchHook      = "hook"
	BranchStory     = "story"
	BranchConcepts  = "concepts"
	BranchTechnique = "technique"
	BranchWorkshop  = "workshop"
	rootKey         = "progression"
)

// Branches lists the required branches in memo order.
var Branches = []string{BranchHook, BranchStory, BranchConcepts, BranchTechnique, BranchWorkshop}

type Hook struct {
	Titre    string   `json:"titre"`
	Type     string   `json:"type"`
	Angle    string   `json:"angle,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

type Story struct {
	Titre string `json:"titre"`
	Type  string `json:"type"`
	Focus string `json:"focus,omitempty"`
}

type Example struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

type Concept struct {
	Titre    string   `json:"titre"`
	Type     string   `json:"type"`
	Focus    string   `json:"focus"`
	Keywords []string `json:"keywords,omitempty"`
	Example  Example  `json:"example"`
}

type Technique struct {
	Titre    string `json:"titre"`
	Type     string `json:"type"`
	Approach string `json:"approach,omitempty"`
}

type Workshop struct {
	Titre string `json:"titre"`
	Type  string `json:"type"`
	Duree string `json:"duree"`
}

// Plan is a validated progression.
type Plan struct {
	Hook      Hook      `json:"hook"`
	Story     Story     `json:"story"`
	Concepts  []Concept `json:"concepts"`
	Technique Technique `json:"technique"`
	Workshop  Workshop  `json:"workshop"`
}

// Validate extracts the JSON object from raw model text and checks it.
// Text without a decodable object is a PARSING_ERROR; a decodable object of
// the wrong shape is a VALIDATION_ERROR.
func Validate(raw string) (Plan, error) {
	return validateText(raw, 0)
}

func validateText(raw string, maxConcepts int) (Plan, error) {
	candidate, ok := parser.ExtractObject(parser.StripFences(raw))
	if !ok {
		return Plan{}, memoerr.New(memoerr.CodeParsing, "plan response contains no JSON object")
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return Plan{}, memoerr.Wrap(memoerr.CodeParsing, err, "plan response is not valid JSON")
	}
	return ValidateObject(obj, maxConcepts)
}

// ValidateObject checks a decoded plan and builds a Plan. maxConcepts <= 0
// means no cap on the number of concepts.
func ValidateObject(obj map[string]any, maxConcepts int) (Plan, error) {
	root, ok := obj[rootKey].(map[string]any)
	if !ok {
		return Plan{}, invalid(rootKey, "missing or not an object")
	}

	for _, b := range Branches {
		if _, present := root[b]; !present {
			return Plan{}, invalid(b, "branch is missing")
		}
	}

	var p Plan
	var err error

	if p.Hook, err = hookFrom(root[BranchHook]); err != nil {
		return Plan{}, err
	}
	if p.Story, err = storyFrom(root[BranchStory]); err != nil {
		return Plan{}, err
	}
	if p.Concepts, err = conceptsFrom(root[BranchConcepts], maxConcepts); err != nil {
		return Plan{}, err
	}
	if p.Technique, err = techniqueFrom(root[BranchTechnique]); err != nil {
		return Plan{}, err
	}
	if p.Workshop, err = workshopFrom(root[BranchWorkshop]); err != nil {
		return Plan{}, err
	}
	return p, nil
}

func invalid(branch, reason string) *memoerr.MemoError {
	return memoerr.Validation(
		fmt.Sprintf("invalid plan: %s: %s", branch, reason),
		map[string]any{"branch": branch},
	)
}

// header reads the titre and type every branch carries.
func header(branch string, v any) (map[string]any, string, string, *memoerr.MemoError) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, "", "", invalid(branch, "not an object")
	}
	titre, typ := str(m, "titre"), str(m, "type")
	if titre == "" {
		return nil, "", "", invalid(branch, "titre is required")
	}
	if typ == "" {
		return nil, "", "", invalid(branch, "type is required")
	}
	return m, titre, typ, nil
}

func hookFrom(v any) (Hook, error) {
	m, titre, typ, err := header(BranchHook, v)
	if err != nil {
		return Hook{}, err
	}
	return Hook{Titre: titre, Type: typ, Angle: str(m, "angle"), Keywords: strs(m, "keywords")}, nil
}

func storyFrom(v any) (Story, error) {
	m, titre, typ, err := header(BranchStory, v)
	if err != nil {
		return Story{}, err
	}
	return Story{Titre: titre, Type: typ, Focus: str(m, "focus")}, nil
}

func conceptsFrom(v any, maxConcepts int) ([]Concept, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, invalid(BranchConcepts, "must be an array")
	}
	if len(list) == 0 {
		return nil, invalid(BranchConcepts, "must not be empty")
	}
	if maxConcepts > 0 && len(list) > maxConcepts {
		return nil, invalid(BranchConcepts, fmt.Sprintf("%d entries exceed the limit of %d", len(list), maxConcepts))
	}

	out := make([]Concept, 0, len(list))
	for i, item := range list {
		m, titre, typ, err := header(BranchConcepts, item)
		if err != nil {
			return nil, err.WithContext(map[string]any{"index": i})
		}
		focus := str(m, "focus")
		if focus == "" {
			return nil, invalid(BranchConcepts, fmt.Sprintf("entry %d: focus is required", i)).
				WithContext(map[string]any{"index": i})
		}
		c := Concept{Titre: titre, Type: typ, Focus: focus, Keywords: strs(m, "keywords")}
		if ex, ok := m["example"].(map[string]any); ok {
			c.Example = Example{Type: str(ex, "type"), Description: str(ex, "description")}
		}
		out = append(out, c)
	}
	return out, nil
}

func techniqueFrom(v any) (Technique, error) {
	m, titre, typ, err := header(BranchTechnique, v)
	if err != nil {
		return Technique{}, err
	}
	return Technique{Titre: titre, Type: typ, Approach: str(m, "approach")}, nil
}

func workshopFrom(v any) (Workshop, error) {
	m, titre, typ, err := header(BranchWorkshop, v)
	if err != nil {
		return Workshop{}, err
	}
	duree := str(m, "duree")
	if duree == "" {
		return Workshop{}, invalid(BranchWorkshop, "duree is required")
	}
	return Workshop{Titre: titre, Type: typ, Duree: duree}, nil
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func strs(m map[string]any, key string) []string {
	list, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
