package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	missingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	changedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// Render returns the terminal summary of a report: per-section counts,
// then every finding with its field-level detail.
func Render(r *Report) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Schema drift report"))
	b.WriteByte('\n')
	b.WriteString(mutedStyle.Render(fmt.Sprintf("sandbox: %s", r.Sandbox)))
	b.WriteByte('\n')
	b.WriteString(mutedStyle.Render(fmt.Sprintf("dev:     %s", r.Dev)))
	b.WriteString("\n\n")

	for _, s := range r.Tree.Sections {
		if len(s.Added) == 0 && len(s.Missing) == 0 && len(s.Changed) == 0 {
			b.WriteString(fmt.Sprintf("%s %s\n",
				sectionStyle.Render(s.Name),
				mutedStyle.Render(fmt.Sprintf("(%d unchanged)", s.Unchanged))))
			continue
		}

		b.WriteString(sectionStyle.Render(s.Name))
		b.WriteByte('\n')
		for _, key := range s.Missing {
			b.WriteString(missingStyle.Render(fmt.Sprintf("  - missing  %s", key)))
			b.WriteByte('\n')
		}
		for _, key := range s.Added {
			b.WriteString(addedStyle.Render(fmt.Sprintf("  + added    %s", key)))
			b.WriteByte('\n')
		}
		for _, e := range s.Changed {
			b.WriteString(changedStyle.Render(fmt.Sprintf("  ~ changed  %s", e.Key)))
			b.WriteByte('\n')
			for _, fc := range e.Fields {
				b.WriteString(fmt.Sprintf("      %s: %s -> %s\n",
					pathStyle.Render(fc.Path),
					ValueText(fc.Sandbox),
					ValueText(fc.Dev)))
			}
		}
	}

	b.WriteByte('\n')
	if r.Drift {
		b.WriteString(missingStyle.Render("Drift detected."))
	} else {
		b.WriteString(addedStyle.Render("No differences."))
	}
	b.WriteByte('\n')
	return b.String()
}
