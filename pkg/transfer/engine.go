// Package transfer implements the transfer-optimization engine: it
// decides, per batch, between a direct store-to-store copy through the
// external bulk tool and a download-then-upload fallback, executes the
// chosen strategy with batching and retries, and reports comparable
// efficiency metrics.
package transfer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"s3transfer/pkg/staging"
	"s3transfer/pkg/tool"
)

// Request is one engine invocation: sources, a destination prefix, the
// requested mode and bounds, plus the environment capabilities the caller
// probed.
type Request struct {
	Sources           []SourceSpec
	DestinationPrefix string
	Mode              Mode
	Capabilities      Capabilities
	DryRun            bool

	Executor  ExecutorConfig
	Generator GeneratorConfig
}

// Outcome is what one invocation hands back to the workflow layer: the
// per-descriptor audit trail and the aggregate report. The engine keeps no
// state between invocations.
type Outcome struct {
	Batch   *TransferBatch
	Results []TransferResult
	Report  EfficiencyReport
	Elapsed time.Duration
}

// Engine wires the pipeline components around an executor.
type Engine struct {
	Runner     tool.Runner
	Classifier tool.LineClassifier
	Store      ObjectStore
	Staging    *staging.Area
	Log        *zap.Logger
	OnEvent    func(Event)
}

// Transfer runs the full pipeline: build descriptors, resolve the mode,
// generate command documents, execute, report. Validation and
// mode-availability errors abort before execution; everything after that
// terminates in a report.
func (e *Engine) Transfer(ctx context.Context, req Request) (*Outcome, error) {
	log := e.Log
	if log == nil {
		log = zap.NewNop()
	}

	descriptors, err := BuildDescriptors(req.Sources, req.DestinationPrefix)
	if err != nil {
		return nil, err
	}

	mode, err := SelectMode(req.Mode, descriptors, req.Capabilities)
	if err != nil {
		return nil, err
	}
	log.Info("transfer mode resolved",
		zap.String("requested", string(req.Mode)),
		zap.String("mode", string(mode)),
		zap.Int("descriptors", len(descriptors)))

	// Default only the unset bounds; explicit choices like disabling the
	// conditional-copy flags or pinning a source region must survive.
	genCfg := req.Generator
	if genCfg.MaxBatchSize <= 0 {
		genCfg.MaxBatchSize = DefaultGeneratorConfig().MaxBatchSize
	}
	if genCfg.PartSizeMB <= 0 {
		genCfg.PartSizeMB = DefaultGeneratorConfig().PartSizeMB
	}
	batch := NewBatch(descriptors, mode, genCfg)

	if len(descriptors) == 0 {
		batch.State = StateCompleted
		return &Outcome{
			Batch:   batch,
			Results: []TransferResult{},
			Report:  BuildReport(batch, nil, 0),
		}, nil
	}

	if req.DryRun {
		// Plan only: descriptors validated, mode resolved, command
		// documents rendered. Nothing moves.
		batch.State = StateModeSelected
		return &Outcome{Batch: batch, Results: []TransferResult{}}, nil
	}

	execCfg := req.Executor
	if execCfg.MaxRetries == 0 && execCfg.WorkerCount == 0 {
		execCfg = DefaultExecutorConfig()
	}
	execCfg.Generator = genCfg

	executor := NewExecutor(e.Runner, e.Classifier, e.Store, e.Staging, execCfg, log)
	executor.OnEvent = e.OnEvent

	start := time.Now()
	results := executor.Execute(ctx, batch)
	elapsed := time.Since(start)

	report := BuildReport(batch, results, elapsed)
	batch.State = report.State
	log.Info("batch finished",
		zap.String("state", string(report.State)),
		zap.String("mode", string(report.Mode)),
		zap.Bool("escalated", report.Escalated),
		zap.Int("objects", report.ObjectCount),
		zap.Int("operations", report.OperationCount),
		zap.Int64("bytes", report.TotalBytes),
		zap.Float64("success_rate", report.SuccessRate))

	return &Outcome{
		Batch:   batch,
		Results: results,
		Report:  report,
		Elapsed: elapsed,
	}, nil
}
