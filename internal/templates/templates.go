// Package templates holds the report template registry and the renderer.
package templates

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"time"
)

//go:embed default slim
var builtinFS embed.FS

// ErrUnknownTemplate is returned when a registry key is not found.
var ErrUnknownTemplate = errors.New("unknown template")

// ErrTemplateCycle is returned when template inheritance loops.
var ErrTemplateCycle = errors.New("template inheritance cycle")

// Template describes one report template: the file to render, its on-disk
// asset tree, an optional parent for inheritance, and optional files to
// copy alongside the final report after promotion.
type Template struct {
	Name string

	// Base is the template file executed by the renderer.
	Base string

	// FS is the template's asset tree, rooted at the template directory.
	FS fs.FS

	// Parent is the registry key of the template this one derives from.
	// The parent's tree is staged first; this template's files overlay it.
	Parent string

	// CopyFiles lists file or directory names copied next to the final
	// report after promotion.
	CopyFiles []string
}

// Registry maps template keys to templates.
type Registry struct {
	templates map[string]Template
}

// NewRegistry creates a registry preloaded with the built-in templates.
func NewRegistry() (*Registry, error) {
	defaultFS, err := fs.Sub(builtinFS, "default")
	if err != nil {
		return nil, fmt.Errorf("embed default template: %w", err)
	}

	slimFS, err := fs.Sub(builtinFS, "slim")
	if err != nil {
		return nil, fmt.Errorf("embed slim template: %w", err)
	}

	r := &Registry{templates: make(map[string]Template)}
	r.Register(Template{Name: "default", Base: "base.html", FS: defaultFS, CopyFiles: []string{"assets"}})
	r.Register(Template{Name: "slim", Base: "base.html", FS: slimFS, Parent: "default", CopyFiles: []string{"assets"}})

	return r, nil
}

// Register adds or replaces a template under its name.
func (r *Registry) Register(t Template) {
	r.templates[t.Name] = t
}

// Get returns the template for a registry key.
func (r *Registry) Get(key string) (Template, error) {
	t, ok := r.templates[key]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, key)
	}

	return t, nil
}

// Chain returns the inheritance chain for a key, root ancestor first.
// Staging the chain in order gives child-wins overlay semantics.
func (r *Registry) Chain(key string) ([]Template, error) {
	var chain []Template

	seen := make(map[string]struct{})

	for key != "" {
		if _, looped := seen[key]; looped {
			return nil, fmt.Errorf("%w: %s", ErrTemplateCycle, key)
		}

		seen[key] = struct{}{}

		t, err := r.Get(key)
		if err != nil {
			return nil, err
		}

		chain = append([]Template{t}, chain...)
		key = t.Parent
	}

	return chain, nil
}

// Row is one rendered general-statistics table row.
type Row struct {
	Sample string
	Cells  []string
}

// SourceRow is one rendered data-sources index line.
type SourceRow struct {
	Sample string
	Module string
	Path   string
}

// Context is everything the renderer sees. It is derived from the
// aggregate report and run configuration by the build pipeline.
type Context struct {
	Title         string
	RunID         string
	Version       string
	GeneratedAt   time.Time
	Columns       []string
	Rows          []Row
	Sources       []SourceRow
	FailedModules []string

	// PlotHTML is the pre-rendered overview chart fragment.
	PlotHTML htmltemplate.HTML

	// Data is the raw aggregated table, embedded for client-side filtering.
	Data map[string]map[string]float64
}

// DataJSON returns the embedded data payload as JSON for the report's
// client-side script.
func (c *Context) DataJSON() (htmltemplate.JS, error) {
	payload, err := json.Marshal(map[string]any{
		"run_id": c.RunID,
		"data":   c.Data,
	})
	if err != nil {
		return "", fmt.Errorf("marshal report data: %w", err)
	}

	return htmltemplate.JS(payload), nil //nolint:gosec // payload is json.Marshal output.
}

// Render parses every *.html file in the staged template tree and executes
// the base file with the given context, returning the rendered bytes.
func Render(staged fs.FS, base string, ctx *Context) ([]byte, error) {
	tmpl, err := htmltemplate.ParseFS(staged, "*.html")
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer

	execErr := tmpl.ExecuteTemplate(&buf, base, ctx)
	if execErr != nil {
		return nil, fmt.Errorf("execute template %s: %w", base, execErr)
	}

	return buf.Bytes(), nil
}
