// Package orchestrator runs the selected extraction modules inside an
// isolation boundary and folds their results into the aggregate report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/statweave/statweave/internal/aggregate"
	"github.com/statweave/statweave/internal/build"
	"github.com/statweave/statweave/internal/config"
	"github.com/statweave/statweave/internal/discovery"
	"github.com/statweave/statweave/internal/module"
)

// tracerName is the default OTel tracer name for the orchestrator.
const tracerName = "statweave"

// ErrNoResults is returned when every module skipped or failed and nothing
// was collected. It is a clean-termination signal, not a crash.
var ErrNoResults = errors.New("no analysis results found")

// ErrModulePanic wraps a panic recovered from a module invocation.
var ErrModulePanic = errors.New("module panicked")

// Orchestrator invokes each module of the run-set exactly once, in order.
// A module error is isolated, logged, and recorded; cancellation is not.
type Orchestrator struct {
	cfg     *config.RunConfig
	log     *slog.Logger
	cleaner *aggregate.Cleaner

	// Tracer is the OTel tracer for per-module spans.
	// When nil, falls back to otel.Tracer("statweave").
	Tracer trace.Tracer
}

// New creates an orchestrator for one run.
func New(cfg *config.RunConfig, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		log:     log,
		cleaner: aggregate.NewCleaner(cfg.SampleNames),
	}
}

func (o *Orchestrator) tracer() trace.Tracer {
	if o.Tracer != nil {
		return o.Tracer
	}

	return otel.Tracer(tracerName)
}

// Run executes every module against the candidate files, merging results
// into a fresh aggregate report and staging declared assets into the
// workspace. Module failures never abort the loop; a cancelled context
// does, immediately, with the context's error.
//
// When no module produced a result, Run returns the (empty) report together
// with ErrNoResults.
func (o *Orchestrator) Run(
	ctx context.Context,
	modules []module.Module,
	files []discovery.CandidateFile,
	ws *build.Workspace,
) (*aggregate.Report, error) {
	report := aggregate.NewReport(o.cfg.Title)

	for _, mod := range modules {
		cancelErr := ctx.Err()
		if cancelErr != nil {
			return report, cancelErr
		}

		id := mod.Descriptor().ID

		spanCtx, span := o.tracer().Start(ctx, "statweave.module."+id,
			trace.WithAttributes(attribute.String("module.id", id)))

		outcome := o.runModule(spanCtx, mod, id, files, report, ws)

		span.SetAttributes(attribute.String("module.outcome", outcome))
		span.End()
	}

	if len(report.Results()) == 0 {
		o.log.Warn("no analysis results found", "modules", len(modules), "files", len(files))

		return report, ErrNoResults
	}

	return report, nil
}

// runModule performs one isolated invocation and returns the outcome label.
func (o *Orchestrator) runModule(
	_ context.Context,
	mod module.Module,
	id string,
	files []discovery.CandidateFile,
	report *aggregate.Report,
	ws *build.Workspace,
) string {
	result, err := invoke(mod, files)

	switch {
	case errors.Is(err, module.ErrNoSamples):
		// Silent skip: the module contributes nothing and no diagnostic
		// is emitted beyond debug level.
		o.log.Debug("module skipped", "module", id)

		return "skip"
	case err != nil:
		o.log.Error("module failed", "module", id, "error", err)
		report.RecordFailure(id)

		return "failed"
	}

	result.ModuleID = id

	stageErr := o.stageAssets(result, ws)
	if stageErr != nil {
		o.log.Error("module asset staging failed", "module", id, "error", stageErr)
		report.RecordFailure(id)

		return "failed"
	}

	report.Add(o.cleaner.CleanResult(result))
	o.log.Info("module finished", "module", id, "samples", len(result.GeneralStats))

	return "ok"
}

// invoke calls Extract with panic containment. A panicking module is a
// failure like any other; the recovered value and stack go into the error.
func invoke(mod module.Module, files []discovery.CandidateFile) (result *module.Result, err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrModulePanic, r, debug.Stack())
		}
	}()

	return mod.Extract(files)
}

// stageAssets copies the module's declared static assets into the build
// workspace at their destination-relative paths. A nil declaration is the
// normal case.
func (o *Orchestrator) stageAssets(result *module.Result, ws *build.Workspace) error {
	for _, assets := range []map[string]string{result.CSS, result.JS} {
		relPaths := make([]string, 0, len(assets))
		for relPath := range assets {
			relPaths = append(relPaths, relPath)
		}

		slices.Sort(relPaths)

		for _, relPath := range relPaths {
			err := ws.StageAsset(relPath, assets[relPath])
			if err != nil {
				return err
			}
		}
	}

	return nil
}
