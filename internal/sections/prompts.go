package sections

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/memoforge/internal/memo"
	"github.com/fyrsmithlabs/memoforge/internal/memoerr"
	"github.com/fyrsmithlabs/memoforge/internal/parser"
	"github.com/fyrsmithlabs/memoforge/internal/plan"
)

const responseFormat = `
Réponds uniquement avec un objet JSON {"titre": "...", "contenu": "..."}.
Le contenu fait au plus 220 caractères.`

// System prompts, one per section type. Each names its section with a word
// no earlier prompt uses, which the static provider relies on.
const (
	ObjectivePrompt = `Tu rédiges l'objectif pédagogique d'un mémo d'apprentissage.
Formule ce que l'apprenant saura faire à la fin, en une phrase qui commence par un verbe d'action.` + responseFormat

	HookPrompt = `Tu rédiges l'accroche d'un mémo d'apprentissage.
Elle éveille la curiosité en suivant le type et l'angle indiqués.` + responseFormat

	StoryPrompt = `Tu racontes une courte histoire qui illustre le sujet d'un mémo d'apprentissage.
Garde l'angle narratif donné et reste concret.` + responseFormat

	ConceptPrompt = `Tu expliques un concept clé d'un mémo d'apprentissage simplement, avec un exemple.
Ne répète pas les idées déjà couvertes.` + responseFormat

	TechniquePrompt = `Tu proposes une technique pour retenir ou appliquer le sujet d'un mémo d'apprentissage.
Suis l'approche indiquée.` + responseFormat

	WorkshopPrompt = `Tu conçois un atelier court qui met en pratique le sujet d'un mémo d'apprentissage.
Réponds uniquement avec un objet JSON {"titre": "...", "contenu": "...", "duree": "30 min"}.
Le contenu fait au plus 220 caractères.`
)

// lines builds the user content of a call; empty values are skipped.
type lines struct {
	b strings.Builder
}

func (l *lines) add(label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if l.b.Len() > 0 {
		l.b.WriteByte('\n')
	}
	l.b.WriteString(label)
	l.b.WriteString(" : ")
	l.b.WriteString(value)
}

func (l *lines) String() string { return l.b.String() }

func baseLines(mc memo.Context) *lines {
	l := &lines{}
	l.add("Sujet", mc.Topic)
	l.add("Matière", mc.Subject)
	l.add("Objectif", mc.Objective)
	return l
}

func (r *Registry) objective(ctx context.Context, mc memo.Context, _ plan.Plan, _ int) (Fields, error) {
	resp, err := r.call(ctx, memo.Objective, 0, ObjectivePrompt, baseLines(mc).String())
	if err != nil {
		return Fields{}, err
	}
	return Fields{Titre: orDefault(resp.Titre, "Objectif"), Contenu: resp.Contenu}, nil
}

func (r *Registry) hook(ctx context.Context, mc memo.Context, p plan.Plan, _ int) (Fields, error) {
	l := baseLines(mc)
	l.add("Titre", p.Hook.Titre)
	l.add("Type", p.Hook.Type)
	l.add("Angle", p.Hook.Angle)
	l.add("Mots-clés", strings.Join(p.Hook.Keywords, ", "))

	resp, err := r.call(ctx, memo.Hook, 0, HookPrompt, l.String())
	if err != nil {
		return Fields{}, err
	}
	return Fields{Titre: orDefault(resp.Titre, p.Hook.Titre), Contenu: resp.Contenu}, nil
}

func (r *Registry) story(ctx context.Context, mc memo.Context, p plan.Plan, _ int) (Fields, error) {
	l := baseLines(mc)
	l.add("Titre", p.Story.Titre)
	l.add("Type", p.Story.Type)
	l.add("Focus", p.Story.Focus)
	l.add("Angle", mc.Angle)
	if hook, ok := mc.Last(memo.Hook); ok {
		l.add("Début du mémo", hook.Contenu)
	}

	resp, err := r.call(ctx, memo.Story, 0, StoryPrompt, l.String())
	if err != nil {
		return Fields{}, err
	}
	return Fields{Titre: orDefault(resp.Titre, p.Story.Titre), Contenu: resp.Contenu}, nil
}

func (r *Registry) concept(ctx context.Context, mc memo.Context, p plan.Plan, index int) (Fields, error) {
	if index < 0 || index >= len(p.Concepts) {
		return Fields{}, memoerr.Validation(
			fmt.Sprintf("concept index %d out of range (%d concepts)", index, len(p.Concepts)),
			map[string]any{"section": string(memo.Concept), "index": index},
		)
	}
	c := p.Concepts[index]

	l := baseLines(mc)
	l.add("Titre", c.Titre)
	l.add("Type", c.Type)
	l.add("Focus", c.Focus)
	l.add("Mots-clés", strings.Join(c.Keywords, ", "))
	if c.Example.Description != "" {
		l.add("Exemple", strings.TrimSpace(c.Example.Type+" "+c.Example.Description))
	}
	l.add("Déjà couvert", strings.Join(mc.Ideas, ", "))
	l.add("Partie", fmt.Sprintf("%d/%d", index+1, len(p.Concepts)))

	resp, err := r.call(ctx, memo.Concept, index, ConceptPrompt, l.String())
	if err != nil {
		return Fields{}, err
	}
	return Fields{Titre: orDefault(resp.Titre, c.Titre), Contenu: resp.Contenu}, nil
}

func (r *Registry) technique(ctx context.Context, mc memo.Context, p plan.Plan, _ int) (Fields, error) {
	l := baseLines(mc)
	l.add("Titre", p.Technique.Titre)
	l.add("Type", p.Technique.Type)
	l.add("Approche", p.Technique.Approach)

	resp, err := r.call(ctx, memo.Technique, 0, TechniquePrompt, l.String())
	if err != nil {
		return Fields{}, err
	}
	return Fields{Titre: orDefault(resp.Titre, p.Technique.Titre), Contenu: resp.Contenu}, nil
}

func (r *Registry) workshop(ctx context.Context, mc memo.Context, p plan.Plan, _ int) (Fields, error) {
	l := baseLines(mc)
	l.add("Titre", p.Workshop.Titre)
	l.add("Type", p.Workshop.Type)
	l.add("Durée prévue", p.Workshop.Duree)

	resp, err := r.call(ctx, memo.Workshop, 0, WorkshopPrompt, l.String())
	if err != nil {
		return Fields{}, err
	}

	duree := resp.Duree
	if duree == nil {
		if d, ok := parser.ParseDuration(p.Workshop.Duree); ok {
			duree = &d
		}
	}
	return Fields{Titre: orDefault(resp.Titre, p.Workshop.Titre), Contenu: resp.Contenu, Duree: duree}, nil
}
