// Package browser is an interactive terminal viewer for a comparison
// tree: every finding on one scrollable list, fuzzy filtering, and a
// detail pane showing both sides of the selected change.
package browser

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/sadopc/pgdrift/internal/diff"
	"github.com/sadopc/pgdrift/internal/report"
)

// Finding is one row of the browser: a single added, missing or changed
// schema object, or one field-level change of a changed object.
type Finding struct {
	Section string
	Kind    string // "added", "missing" or "changed"
	Key     string
	Path    string // empty for added/missing
	Sandbox any
	Dev     any
}

// label is the text the fuzzy filter matches against.
func (f Finding) label() string {
	if f.Path == "" {
		return fmt.Sprintf("%s %s %s", f.Section, f.Kind, f.Key)
	}
	return fmt.Sprintf("%s %s %s %s", f.Section, f.Kind, f.Key, f.Path)
}

// Flatten projects a tree into browser rows, one per finding, in tree
// order.
func Flatten(tree *diff.Tree) []Finding {
	var out []Finding
	for _, s := range tree.Sections {
		for _, key := range s.Missing {
			out = append(out, Finding{Section: s.Name, Kind: "missing", Key: key})
		}
		for _, key := range s.Added {
			out = append(out, Finding{Section: s.Name, Kind: "added", Key: key})
		}
		for _, e := range s.Changed {
			for _, fc := range e.Fields {
				out = append(out, Finding{
					Section: s.Name,
					Kind:    "changed",
					Key:     e.Key,
					Path:    fc.Path,
					Sandbox: fc.Sandbox,
					Dev:     fc.Dev,
				})
			}
		}
	}
	return out
}

// findingSource adapts a finding list to the fuzzy matcher.
type findingSource []Finding

func (s findingSource) String(i int) string { return s[i].label() }
func (s findingSource) Len() int            { return len(s) }

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	addedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	missingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	changedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Model is the browser's bubbletea model.
type Model struct {
	sandbox, dev string
	findings     []Finding
	visible      []int // indices into findings after filtering
	cursor       int
	offset       int
	filter       textinput.Model
	filtering    bool
	detail       viewport.Model
	width        int
	height       int
	quitting     bool
}

// New creates a browser over the given tree. sandbox and dev label the
// two sides in the header.
func New(tree *diff.Tree, sandbox, dev string) Model {
	ti := textinput.New()
	ti.Placeholder = "filter findings..."
	ti.Prompt = "/ "

	m := Model{
		sandbox:  sandbox,
		dev:      dev,
		findings: Flatten(tree),
		filter:   ti,
		detail:   viewport.New(0, 0),
	}
	m.applyFilter()
	return m
}

// Run launches the browser in the alternate screen.
func Run(tree *diff.Tree, sandbox, dev string) error {
	_, err := tea.NewProgram(New(tree, sandbox, dev), tea.WithAltScreen()).Run()
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.detail.Width = msg.Width - 2
		m.detail.Height = m.detailHeight()
		m.syncDetail()
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			switch msg.String() {
			case "esc":
				m.filtering = false
				m.filter.Blur()
				m.filter.SetValue("")
				m.applyFilter()
				return m, nil
			case "enter":
				m.filtering = false
				m.filter.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.applyFilter()
			return m, cmd
		}

		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "/":
			m.filtering = true
			m.filter.Focus()
			return m, textinput.Blink
		case "up", "k":
			m.move(-1)
			return m, nil
		case "down", "j":
			m.move(1)
			return m, nil
		case "pgup":
			m.move(-m.listHeight())
			return m, nil
		case "pgdown":
			m.move(m.listHeight())
			return m, nil
		case "home", "g":
			m.cursor = 0
			m.ensureVisible()
			m.syncDetail()
			return m, nil
		case "end", "G":
			m.cursor = len(m.visible) - 1
			if m.cursor < 0 {
				m.cursor = 0
			}
			m.ensureVisible()
			m.syncDetail()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m *Model) move(delta int) {
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.ensureVisible()
	m.syncDetail()
}

func (m *Model) ensureVisible() {
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
}

// applyFilter recomputes the visible rows from the filter text.
func (m *Model) applyFilter() {
	query := strings.TrimSpace(m.filter.Value())
	if query == "" {
		m.visible = make([]int, len(m.findings))
		for i := range m.findings {
			m.visible[i] = i
		}
	} else {
		matches := fuzzy.FindFrom(query, findingSource(m.findings))
		m.visible = make([]int, len(matches))
		for i, match := range matches {
			m.visible[i] = match.Index
		}
	}
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.offset = 0
	m.syncDetail()
}

// syncDetail rebuilds the detail pane for the finding under the cursor.
func (m *Model) syncDetail() {
	f, ok := m.selected()
	if !ok {
		m.detail.SetContent(mutedStyle.Render("no findings"))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", f.Section, f.Key)
	if f.Path != "" {
		fmt.Fprintf(&b, "field: %s\n", f.Path)
	}
	switch f.Kind {
	case "added":
		b.WriteString(addedStyle.Render("only present in dev"))
	case "missing":
		b.WriteString(missingStyle.Render("missing from dev"))
	default:
		fmt.Fprintf(&b, "sandbox: %s\ndev:     %s", sideText(f.Sandbox), sideText(f.Dev))
	}
	m.detail.SetContent(b.String())
	m.detail.GotoTop()
}

func (m Model) selected() (Finding, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return Finding{}, false
	}
	return m.findings[m.visible[m.cursor]], true
}

func sideText(v any) string {
	if v == nil {
		return "(absent)"
	}
	return report.ValueText(v)
}

func (m Model) listHeight() int {
	// header(2) + filter(1) + separator(1) + detail + help(1)
	h := m.height - 5 - m.detailHeight()
	if h < 3 {
		h = 3
	}
	return h
}

func (m Model) detailHeight() int {
	if m.height < 16 {
		return 4
	}
	return 8
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("pgdrift browser"))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %s vs %s", m.sandbox, m.dev)))
	b.WriteByte('\n')
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%d findings", len(m.visible))))
	b.WriteByte('\n')

	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
	}
	b.WriteByte('\n')

	h := m.listHeight()
	end := m.offset + h
	if end > len(m.visible) {
		end = len(m.visible)
	}
	for i := m.offset; i < end; i++ {
		f := m.findings[m.visible[i]]
		line := formatRow(f)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if len(m.visible) == 0 {
		b.WriteString(mutedStyle.Render("  nothing matches"))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	b.WriteString(m.detail.View())
	b.WriteByte('\n')
	b.WriteString(mutedStyle.Render("j/k:move  /:filter  q:quit"))
	return b.String()
}

func formatRow(f Finding) string {
	var marker string
	switch f.Kind {
	case "added":
		marker = addedStyle.Render("+")
	case "missing":
		marker = missingStyle.Render("-")
	default:
		marker = changedStyle.Render("~")
	}
	if f.Path == "" {
		return fmt.Sprintf(" %s %-16s %s", marker, f.Section, f.Key)
	}
	return fmt.Sprintf(" %s %-16s %s  %s", marker, f.Section, f.Key, f.Path)
}
