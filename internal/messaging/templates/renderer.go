package templates

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// Built-in template names used for batch summary emails.
const (
	SummarySubject = "summary_subject"
	SummaryBody    = "summary_body"
)

var builtin = map[string]string{
	SummarySubject: `SMS batch {{.Target}}: {{.Succeeded}} sent, {{.Failed}} failed{{if .Stopped}} (stopped){{end}}`,
	SummaryBody: `Job {{.JobID}} ({{.Source}}) finished at {{.FinishedAt}}.
Sender: {{if .Sender}}{{.Sender}}{{else}}default{{end}}

{{.Text}}
`,
}

// SummaryData feeds the summary templates.
type SummaryData struct {
	JobID      string
	Source     string
	Target     string
	Sender     string
	Succeeded  int
	Failed     int
	Skipped    int
	Stopped    bool
	FinishedAt string
	Text       string
}

// Renderer renders small text templates for outbound notifications. Parsed
// templates are cached by name; the zero value is ready to use.
type Renderer struct {
	mu     sync.RWMutex
	parsed map[string]*template.Template
}

// Render compiles the provided template text with strict missing-key semantics.
func (r *Renderer) Render(name, tmpl string, data any) (string, error) {
	if tmpl == "" {
		return "", fmt.Errorf("templates: template text required")
	}
	t, err := template.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("templates: parse: %w", err)
	}
	return execute(t, data)
}

// RenderNamed renders one of the built-in templates.
func (r *Renderer) RenderNamed(name string, data any) (string, error) {
	t, err := r.lookup(name)
	if err != nil {
		return "", err
	}
	return execute(t, data)
}

func (r *Renderer) lookup(name string) (*template.Template, error) {
	r.mu.RLock()
	t, ok := r.parsed[name]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	text, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("templates: unknown template %q", name)
	}
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("templates: parse: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.parsed == nil {
		r.parsed = make(map[string]*template.Template)
	}
	r.parsed[name] = t
	return t, nil
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("templates: execute: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
