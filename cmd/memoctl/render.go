package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/memoforge/internal/memo"
)

const contentWidth = 78

var (
	contentStyle = lipgloss.NewStyle().Width(contentWidth).PaddingLeft(2)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
)

var sectionLabels = map[memo.SectionType]string{
	memo.Objective: "OBJECTIF",
	memo.Hook:      "ACCROCHE",
	memo.Story:     "HISTOIRE",
	memo.Concept:   "CONCEPT",
	memo.Technique: "TECHNIQUE",
	memo.Workshop:  "ATELIER",
}

// renderSection draws one section with a header in the section's colour.
func renderSection(s memo.Section) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(s.Couleur)).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(lipgloss.Color(s.Couleur))

	label := sectionLabels[s.Type]
	if label == "" {
		label = strings.ToUpper(string(s.Type))
	}
	title := label
	if s.Titre != "" {
		title += " · " + s.Titre
	}
	if s.Duree != nil {
		title += mutedStyle.Render(fmt.Sprintf("  (%s)", s.Duree))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header.Render(title),
		contentStyle.Render(s.Contenu),
		"",
	)
}

func renderFooter(m *memo.Memo) string {
	return mutedStyle.Render(fmt.Sprintf("%d sections · memo ", len(m.Sections))) + idStyle.Render(m.ID)
}

func renderMemo(m *memo.Memo) string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(m.Metadata.Topic))
	if m.Metadata.Subject != "" {
		b.WriteString(mutedStyle.Render(" · " + m.Metadata.Subject))
	}
	b.WriteString("\n\n")
	for _, s := range m.Sections {
		b.WriteString(renderSection(s))
		b.WriteString("\n")
	}
	b.WriteString(renderFooter(m))
	return b.String()
}

func renderListLine(m *memo.Memo) string {
	topic := m.Metadata.Topic
	if topic == "" {
		topic = m.Content
	}
	if r := []rune(topic); len(r) > 50 {
		topic = string(r[:49]) + "…"
	}
	return fmt.Sprintf("%s  %s  %s",
		idStyle.Render(m.ID),
		mutedStyle.Render(m.CreatedAt.Local().Format("2006-01-02 15:04")),
		topic)
}
