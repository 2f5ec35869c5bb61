// Package build implements the staged report build pipeline: template
// assembly in a temporary workspace, pre-flight conflict checks, rendering,
// and the promote step that materializes the report and data export.
package build

import (
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/statweave/statweave/internal/aggregate"
	"github.com/statweave/statweave/internal/config"
	"github.com/statweave/statweave/internal/plot"
	"github.com/statweave/statweave/internal/templates"
)

// ErrDestinationExists is the pre-flight conflict error: the target report
// or data directory already exists and overwrite was not authorized.
var ErrDestinationExists = errors.New("destination already exists (use --force to overwrite)")

const (
	stagedFileMode = 0o644
	stagedDirMode  = 0o755

	// cellDigits is the number of fraction digits shown in table cells.
	cellDigits = 2
)

// Workspace is the temporary build context. Template files and assets are
// staged under TemplateDir; the data export is staged under DataDir. It is
// guaranteed-removed on every exit path via Close.
type Workspace struct {
	// Dir is the workspace root temporary directory.
	Dir string

	// TemplateDir holds the assembled template tree and staged assets.
	TemplateDir string

	// DataDir holds the staged data export. Empty when export is disabled.
	DataDir string
}

// NewWorkspace creates the temporary build context. When exportData is set,
// the staged data directory is created inside it so partial exports never
// touch the real destination.
func NewWorkspace(exportData bool) (*Workspace, error) {
	dir, err := os.MkdirTemp("", "statweave-build-")
	if err != nil {
		return nil, fmt.Errorf("create build workspace: %w", err)
	}

	ws := &Workspace{Dir: dir, TemplateDir: filepath.Join(dir, "template")}

	mkErr := os.MkdirAll(ws.TemplateDir, stagedDirMode)
	if mkErr != nil {
		_ = os.RemoveAll(dir)

		return nil, fmt.Errorf("create template staging dir: %w", mkErr)
	}

	if exportData {
		ws.DataDir = filepath.Join(dir, "data")

		mkErr = os.MkdirAll(ws.DataDir, stagedDirMode)
		if mkErr != nil {
			_ = os.RemoveAll(dir)

			return nil, fmt.Errorf("create data staging dir: %w", mkErr)
		}
	}

	return ws, nil
}

// StageAsset copies one file into the template tree at its declared
// destination-relative path, creating intermediate directories as needed.
func (ws *Workspace) StageAsset(relPath, srcPath string) error {
	dest := filepath.Join(ws.TemplateDir, filepath.FromSlash(relPath))

	err := os.MkdirAll(filepath.Dir(dest), stagedDirMode)
	if err != nil {
		return fmt.Errorf("create asset dir for %s: %w", relPath, err)
	}

	err = copyFile(srcPath, dest)
	if err != nil {
		return fmt.Errorf("stage asset %s: %w", relPath, err)
	}

	return nil
}

// Close removes the workspace. Safe to call multiple times.
func (ws *Workspace) Close() error {
	if ws.Dir == "" {
		return nil
	}

	err := os.RemoveAll(ws.Dir)
	ws.Dir = ""

	if err != nil {
		return fmt.Errorf("remove build workspace: %w", err)
	}

	return nil
}

// Pipeline drives the build stages for one run.
type Pipeline struct {
	cfg      *config.RunConfig
	registry *templates.Registry
	log      *slog.Logger
	version  string

	// stdout receives the rendered report in stdout mode.
	stdout io.Writer
}

// NewPipeline creates a build pipeline.
func NewPipeline(cfg *config.RunConfig, registry *templates.Registry, log *slog.Logger, version string, stdout io.Writer) *Pipeline {
	return &Pipeline{cfg: cfg, registry: registry, log: log, version: version, stdout: stdout}
}

// AssembleTemplate stages the selected template into the workspace. The
// inheritance chain is copied root ancestor first, so a derived template's
// files win on name collision.
func (p *Pipeline) AssembleTemplate(ws *Workspace) (templates.Template, error) {
	chain, err := p.registry.Chain(p.cfg.Template)
	if err != nil {
		return templates.Template{}, err
	}

	for _, tmpl := range chain {
		copyErr := copyTree(tmpl.FS, ws.TemplateDir)
		if copyErr != nil {
			return templates.Template{}, fmt.Errorf("stage template %s: %w", tmpl.Name, copyErr)
		}
	}

	// The selected template's own contract (base file, copy list) applies.
	return chain[len(chain)-1], nil
}

// Preflight verifies the destinations are writable before anything is
// promoted. On conflict without authorization nothing is mutated.
func (p *Pipeline) Preflight() error {
	if !p.cfg.Stdout {
		err := checkConflict(p.cfg.ReportPath, p.cfg.Force)
		if err != nil {
			return err
		}
	}

	if p.cfg.ExportData {
		err := checkConflict(p.cfg.DataDir, p.cfg.Force)
		if err != nil {
			return err
		}
	}

	return nil
}

// Render executes the staged template against the aggregate report and run
// configuration. A template or context error is fatal and surfaces the
// underlying cause.
func (p *Pipeline) Render(ws *Workspace, tmpl templates.Template, rep *aggregate.Report) ([]byte, error) {
	ctx, err := p.renderContext(rep)
	if err != nil {
		return nil, err
	}

	rendered, renderErr := templates.Render(os.DirFS(ws.TemplateDir), tmpl.Base, ctx)
	if renderErr != nil {
		return nil, renderErr
	}

	return rendered, nil
}

// renderContext flattens the aggregate report into the template context.
func (p *Pipeline) renderContext(rep *aggregate.Report) (*templates.Context, error) {
	table := rep.GeneralStats
	columns := table.Columns()

	columnKeys := make([]string, len(columns))
	for i, col := range columns {
		columnKeys[i] = col.Key()
	}

	rows := make([]templates.Row, 0, len(table.Samples()))

	for _, sample := range table.Samples() {
		cells := make([]string, len(columns))

		for i, col := range columns {
			value, ok := table.Value(sample, col.Key())
			if !ok {
				continue
			}

			cells[i] = humanize.CommafWithDigits(value, cellDigits)
		}

		rows = append(rows, templates.Row{Sample: sample, Cells: cells})
	}

	var sources []templates.SourceRow

	for _, sample := range rep.DataSources.Samples() {
		for _, ref := range rep.DataSources.Refs(sample) {
			sources = append(sources, templates.SourceRow{Sample: sample, Module: ref.ModuleID, Path: ref.Path})
		}
	}

	plotHTML, plotErr := plot.GeneralStatsBar(table)
	if plotErr != nil {
		return nil, plotErr
	}

	data := make(map[string]map[string]float64, len(table.Samples()))
	for _, sample := range table.Samples() {
		data[sample] = table.Row(sample)
	}

	return &templates.Context{
		Title:         p.cfg.Title,
		RunID:         rep.RunID,
		Version:       p.version,
		GeneratedAt:   time.Now(),
		Columns:       columnKeys,
		Rows:          rows,
		Sources:       sources,
		FailedModules: rep.FailedModules(),
		PlotHTML:      htmltemplate.HTML(plotHTML), //nolint:gosec // fragment produced by our own chart renderer.
		Data:          data,
	}, nil
}

// Promote materializes the rendered report and the staged data export at
// their destinations. In stdout mode the report bytes go to standard output
// and filesystem promotion of the report is bypassed entirely.
func (p *Pipeline) Promote(ws *Workspace, tmpl templates.Template, rendered []byte) error {
	if p.cfg.Stdout {
		_, err := p.stdout.Write(rendered)
		if err != nil {
			return fmt.Errorf("write report to stdout: %w", err)
		}
	} else {
		err := p.promoteReport(ws, tmpl, rendered)
		if err != nil {
			return err
		}
	}

	if p.cfg.ExportData {
		err := p.promoteData(ws)
		if err != nil {
			return err
		}
	}

	return nil
}

// promoteReport writes the rendered bytes to the destination and copies the
// template's declared companion files next to it.
func (p *Pipeline) promoteReport(ws *Workspace, tmpl templates.Template, rendered []byte) error {
	dest := p.cfg.ReportPath

	_, statErr := os.Lstat(dest)
	if statErr == nil {
		if !p.cfg.Force {
			return fmt.Errorf("%w: %s", ErrDestinationExists, dest)
		}

		rmErr := os.Remove(dest)
		if rmErr != nil {
			return fmt.Errorf("remove previous report %s: %w", dest, rmErr)
		}
	}

	mkErr := os.MkdirAll(filepath.Dir(dest), stagedDirMode)
	if mkErr != nil {
		return fmt.Errorf("create report dir for %s: %w", dest, mkErr)
	}

	writeErr := os.WriteFile(dest, rendered, stagedFileMode)
	if writeErr != nil {
		return fmt.Errorf("write report %s: %w", dest, writeErr)
	}

	p.log.Info("report written",
		"path", dest,
		"size", humanize.Bytes(uint64(len(rendered))))

	for _, name := range tmpl.CopyFiles {
		copyErr := copyPath(filepath.Join(ws.TemplateDir, name), filepath.Join(filepath.Dir(dest), name))
		if copyErr != nil {
			return fmt.Errorf("copy template companion %s: %w", name, copyErr)
		}
	}

	return nil
}

// promoteData moves the staged data directory into place. The swap is
// remove-destination-then-rename: best-effort atomicity, since the
// filesystem may not offer true atomic directory replacement.
func (p *Pipeline) promoteData(ws *Workspace) error {
	dest := p.cfg.DataDir

	_, statErr := os.Lstat(dest)
	if statErr == nil {
		if !p.cfg.Force {
			return fmt.Errorf("%w: %s", ErrDestinationExists, dest)
		}

		rmErr := os.RemoveAll(dest)
		if rmErr != nil {
			return fmt.Errorf("remove previous data dir %s: %w", dest, rmErr)
		}
	}

	mkErr := os.MkdirAll(filepath.Dir(dest), stagedDirMode)
	if mkErr != nil {
		return fmt.Errorf("create data parent dir for %s: %w", dest, mkErr)
	}

	moveErr := movePath(ws.DataDir, dest)
	if moveErr != nil {
		return fmt.Errorf("promote data dir %s: %w", dest, moveErr)
	}

	p.log.Info("data export written", "path", dest, "format", p.cfg.DataFormat)

	if p.cfg.ZipData {
		archivePath, archiveErr := ArchiveDir(dest)
		if archiveErr != nil {
			return fmt.Errorf("archive data dir %s: %w", dest, archiveErr)
		}

		rmErr := os.RemoveAll(dest)
		if rmErr != nil {
			return fmt.Errorf("remove uncompressed data dir %s: %w", dest, rmErr)
		}

		p.log.Info("data export archived", "path", archivePath)
	}

	return nil
}

// checkConflict returns ErrDestinationExists when path exists without force.
func checkConflict(path string, force bool) error {
	if force {
		return nil
	}

	_, err := os.Lstat(path)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrDestinationExists, path)
	}

	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat destination %s: %w", path, err)
	}

	return nil
}

// copyTree copies every file of src into destDir, preserving structure.
func copyTree(src fs.FS, destDir string) error {
	return fs.WalkDir(src, ".", func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		dest := filepath.Join(destDir, filepath.FromSlash(path))

		if entry.IsDir() {
			return os.MkdirAll(dest, stagedDirMode)
		}

		payload, readErr := fs.ReadFile(src, path)
		if readErr != nil {
			return readErr
		}

		return os.WriteFile(dest, payload, stagedFileMode)
	})
}

// copyPath copies a file or directory tree from src to dest.
func copyPath(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		mkErr := os.MkdirAll(filepath.Dir(dest), stagedDirMode)
		if mkErr != nil {
			return mkErr
		}

		return copyFile(src, dest)
	}

	return copyTree(os.DirFS(src), dest)
}

// movePath renames src to dest, falling back to copy-and-delete when the
// rename crosses filesystems.
func movePath(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}

	copyErr := copyPath(src, dest)
	if copyErr != nil {
		return copyErr
	}

	return os.RemoveAll(src)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, stagedFileMode)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(out, in)

	closeErr := out.Close()
	if copyErr != nil {
		return copyErr
	}

	return closeErr
}
