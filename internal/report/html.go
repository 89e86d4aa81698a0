package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/goccy/go-json"
)

// HTMLWriter renders a Report as a standalone HTML page. SQL-carrying
// field values (view bodies, index definitions, trigger actions) are
// syntax-highlighted with chroma; everything else renders as plain text.
type HTMLWriter struct {
	sqlKeys map[string]bool
}

// NewHTMLWriter creates a writer that highlights string values sitting
// under the named fields.
func NewHTMLWriter(sqlKeys []string) *HTMLWriter {
	keys := make(map[string]bool, len(sqlKeys))
	for _, k := range sqlKeys {
		keys[k] = true
	}
	return &HTMLWriter{sqlKeys: keys}
}

// Write renders the report to path, creating parent directories.
func (w *HTMLWriter) Write(path string, r *Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"cell": w.cell,
	}).Parse(reportHTML)
	if err != nil {
		return fmt.Errorf("parse report template: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, r); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// ValueText turns a field value into display text. Absent sides show
// as a dash so "changed to null" and "not present" read differently.
func ValueText(v any) string {
	if v == nil {
		return "—"
	}
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// cell renders one side of a field change as HTML, highlighting SQL text
// when the field is a known SQL carrier.
func (w *HTMLWriter) cell(path string, v any) template.HTML {
	s, isString := v.(string)
	if !isString || !w.sqlKeys[lastSegment(path)] {
		return template.HTML(template.HTMLEscapeString(ValueText(v)))
	}

	var b strings.Builder
	if err := quick.Highlight(&b, s, "postgresql", "html", "github"); err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(b.String())
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}

const reportHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Schema drift report</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 70rem; color: #1f2328; }
h1 { font-size: 1.4rem; }
h2 { font-size: 1.1rem; border-bottom: 1px solid #d1d9e0; padding-bottom: .3rem; margin-top: 2rem; }
table { border-collapse: collapse; width: 100%; margin: .6rem 0; }
th, td { border: 1px solid #d1d9e0; padding: .35rem .6rem; text-align: left; vertical-align: top; font-size: .9rem; }
th { background: #f6f8fa; }
.meta { color: #59636e; font-size: .85rem; }
.ok { color: #1a7f37; }
.drift { color: #cf222e; }
.added { color: #1a7f37; }
.missing { color: #cf222e; }
code, pre { font-family: ui-monospace, "SF Mono", monospace; font-size: .85rem; }
td pre { margin: 0; white-space: pre-wrap; }
</style>
</head>
<body>
<h1>Schema drift report</h1>
<p class="meta">
sandbox: <code>{{.Sandbox}}</code><br>
dev: <code>{{.Dev}}</code><br>
generated: {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}
</p>
{{if .Drift}}<p class="drift"><strong>Drift detected.</strong></p>{{else}}<p class="ok"><strong>No differences.</strong></p>{{end}}

<h2>Summary</h2>
<table>
<tr><th>Section</th><th>Added</th><th>Missing</th><th>Changed</th><th>Unchanged</th></tr>
{{range .Tree.Summary}}
<tr><td>{{.Name}}</td><td>{{.Added}}</td><td>{{.Missing}}</td><td>{{.Changed}}</td><td>{{.Unchanged}}</td></tr>
{{end}}
</table>

{{range .Tree.Sections}}
{{if or .Added .Missing .Changed}}
<h2>{{.Name}}</h2>
{{if .Added}}
<h3 class="added">Only in dev</h3>
<ul>{{range .Added}}<li><code>{{.}}</code></li>{{end}}</ul>
{{end}}
{{if .Missing}}
<h3 class="missing">Missing from dev</h3>
<ul>{{range .Missing}}<li><code>{{.}}</code></li>{{end}}</ul>
{{end}}
{{range .Changed}}
<h3>Changed: <code>{{.Key}}</code></h3>
<table>
<tr><th>Field</th><th>Sandbox</th><th>Dev</th></tr>
{{range .Fields}}
<tr><td><code>{{.Path}}</code></td><td><pre>{{cell .Path .Sandbox}}</pre></td><td><pre>{{cell .Path .Dev}}</pre></td></tr>
{{end}}
</table>
{{end}}
{{end}}
{{end}}
</body>
</html>
`
