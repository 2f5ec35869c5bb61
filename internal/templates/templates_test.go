package templates_test

import (
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statweave/statweave/internal/templates"
)

func TestRegistry_Builtins(t *testing.T) {
	t.Parallel()

	registry, err := templates.NewRegistry()
	require.NoError(t, err)

	def, err := registry.Get("default")
	require.NoError(t, err)
	assert.Equal(t, "base.html", def.Base)
	assert.Empty(t, def.Parent)

	slim, err := registry.Get("slim")
	require.NoError(t, err)
	assert.Equal(t, "default", slim.Parent)

	_, err = registry.Get("missing")
	require.ErrorIs(t, err, templates.ErrUnknownTemplate)
}

func TestRegistry_Chain(t *testing.T) {
	t.Parallel()

	registry, err := templates.NewRegistry()
	require.NoError(t, err)

	chain, err := registry.Chain("slim")
	require.NoError(t, err)

	require.Len(t, chain, 2)
	assert.Equal(t, "default", chain[0].Name)
	assert.Equal(t, "slim", chain[1].Name)
}

func TestRegistry_ChainCycle(t *testing.T) {
	t.Parallel()

	registry, err := templates.NewRegistry()
	require.NoError(t, err)

	registry.Register(templates.Template{Name: "a", Base: "base.html", Parent: "b"})
	registry.Register(templates.Template{Name: "b", Base: "base.html", Parent: "a"})

	_, err = registry.Chain("a")
	require.ErrorIs(t, err, templates.ErrTemplateCycle)
}

func testContext() *templates.Context {
	return &templates.Context{
		Title:       "Test Run",
		RunID:       "abc123",
		Version:     "dev",
		GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Columns:     []string{"A.reads"},
		Rows: []templates.Row{
			{Sample: "s1", Cells: []string{"100"}},
		},
		Sources: []templates.SourceRow{
			{Sample: "s1", Module: "A", Path: "/logs/s1.txt"},
		},
		Data: map[string]map[string]float64{"s1": {"A.reads": 100}},
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	staged := fstest.MapFS{
		"base.html": &fstest.MapFile{Data: []byte(
			`<html><body data-run-id="{{.RunID}}"><h1>{{.Title}}</h1>` +
				`{{range .Rows}}<tr><td>{{.Sample}}</td></tr>{{end}}` +
				`<script type="application/json">{{.DataJSON}}</script></body></html>`,
		)},
	}

	rendered, err := templates.Render(staged, "base.html", testContext())
	require.NoError(t, err)

	html := string(rendered)
	assert.Contains(t, html, `data-run-id="abc123"`)
	assert.Contains(t, html, "<h1>Test Run</h1>")
	assert.Contains(t, html, "<td>s1</td>")
	assert.Contains(t, html, `"run_id":"abc123"`)
}

func TestRender_MissingBase(t *testing.T) {
	t.Parallel()

	staged := fstest.MapFS{
		"other.html": &fstest.MapFile{Data: []byte("<html></html>")},
	}

	_, err := templates.Render(staged, "base.html", testContext())
	require.Error(t, err)
}

func TestRender_UndefinedReferenceFails(t *testing.T) {
	t.Parallel()

	staged := fstest.MapFS{
		"base.html": &fstest.MapFile{Data: []byte("{{template \"missing\"}}")},
	}

	_, err := templates.Render(staged, "base.html", testContext())
	require.Error(t, err)
}

func TestRender_DefaultTemplateAgainstFullContext(t *testing.T) {
	t.Parallel()

	registry, err := templates.NewRegistry()
	require.NoError(t, err)

	def, err := registry.Get("default")
	require.NoError(t, err)

	rendered, err := templates.Render(def.FS, def.Base, testContext())
	require.NoError(t, err)

	html := string(rendered)
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "Test Run")
	assert.Contains(t, html, "A.reads")
	assert.Contains(t, html, "/logs/s1.txt")
}
