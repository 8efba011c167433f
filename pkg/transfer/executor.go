package transfer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"s3transfer/pkg/pool"
	"s3transfer/pkg/staging"
	"s3transfer/pkg/tool"
)

// ObjectStore is the traditional path's view of the object-store API:
// single-object download and upload via local staging.
type ObjectStore interface {
	Download(ctx context.Context, src ObjectURL, path string) (int64, error)
	Upload(ctx context.Context, path string, dst ObjectURL) (int64, error)
}

// EventType tags executor events for the observability collaborator.
type EventType string

const (
	// EventResult is emitted once per terminal descriptor outcome.
	EventResult EventType = "result"
	// EventModeSwitch is emitted when a tool-level failure escalates the
	// remaining batch to the traditional path.
	EventModeSwitch EventType = "mode_switch"
	// EventRetry is emitted before a retry round.
	EventRetry EventType = "retry"
)

// Event is one executor occurrence worth telling telemetry about.
type Event struct {
	Type       EventType
	Descriptor *TransferDescriptor
	Mode       Mode
	Status     ResultStatus
	Bytes      int64
	Attempt    int
	Detail     string
}

// ExecutorConfig bounds the executor's retries and concurrency.
type ExecutorConfig struct {
	// MaxRetries is how many times a transiently failed descriptor is
	// retried after its first attempt.
	MaxRetries int
	// WorkerCount bounds traditional-path concurrency.
	WorkerCount int
	// BackoffInitial and BackoffMax shape the exponential retry schedule.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Generator      GeneratorConfig
}

// DefaultExecutorConfig returns the defaults used when a request leaves
// options unset.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxRetries:     3,
		WorkerCount:    4,
		BackoffInitial: 500 * time.Millisecond,
		BackoffMax:     30 * time.Second,
		Generator:      DefaultGeneratorConfig(),
	}
}

// Executor owns result accumulation for the lifetime of one batch. It is
// the only component that performs blocking I/O.
type Executor struct {
	runner     tool.Runner
	classifier tool.LineClassifier
	store      ObjectStore
	staging    *staging.Area
	cfg        ExecutorConfig
	log        *zap.Logger

	// OnEvent receives executor events; nil disables emission.
	OnEvent func(Event)
}

// NewExecutor wires an executor. runner and classifier may be nil when the
// batch can only run traditionally.
func NewExecutor(runner tool.Runner, classifier tool.LineClassifier, store ObjectStore, stagingArea *staging.Area, cfg ExecutorConfig, log *zap.Logger) *Executor {
	if classifier == nil {
		classifier = tool.S5cmdClassifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultExecutorConfig().WorkerCount
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = DefaultExecutorConfig().BackoffInitial
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = DefaultExecutorConfig().BackoffMax
	}
	return &Executor{
		runner:     runner,
		classifier: classifier,
		store:      store,
		staging:    stagingArea,
		cfg:        cfg,
		log:        log,
	}
}

// Execute runs the batch to termination. Per-descriptor failures never
// abort the batch; a tool-level failure escalates the remaining
// descriptors to the traditional path. On cancellation, results collected
// so far are returned and never-started descriptors stay absent.
func (e *Executor) Execute(ctx context.Context, batch *TransferBatch) []TransferResult {
	batch.State = StateExecuting
	collector := newResultCollector()

	switch batch.Mode {
	case ModeDirectSync:
		remaining := e.runDirect(ctx, batch, collector)
		if len(remaining) > 0 && ctx.Err() == nil {
			batch.Mode = ModeTraditional
			batch.Escalated = true
			e.emit(Event{Type: EventModeSwitch, Mode: ModeTraditional,
				Detail: fmt.Sprintf("escalating %d remaining descriptors after tool failure", len(remaining))})
			e.log.Warn("escalating batch to traditional path",
				zap.Int("remaining", len(remaining)))
			e.runTraditional(ctx, batch, remaining, collector)
		}
	default:
		indices := make([]int, len(batch.Descriptors))
		for i := range indices {
			indices[i] = i
		}
		e.runTraditional(ctx, batch, indices, collector)
	}

	return collector.ordered()
}

// runDirect drives the bulk tool over the batch's command documents, with
// retry rounds for transiently failed descriptors. The returned indices
// must be escalated to the traditional path; nil means the direct path
// reached a terminal result for everything it was given.
func (e *Executor) runDirect(ctx context.Context, batch *TransferBatch, collector *resultCollector) []int {
	attempts := make(map[int]int, len(batch.Descriptors))
	documents := batch.Documents

	bo := e.newBackoff()
	for round := 1; ; round++ {
		if ctx.Err() != nil {
			return nil
		}
		if round > 1 {
			batch.State = StateRetrying
			e.emit(Event{Type: EventRetry, Mode: ModeDirectSync, Attempt: round})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(bo.NextBackOff()):
			}
		}

		var retry []int
		for docIdx, doc := range documents {
			outcome, runErr := e.runDocument(ctx, doc)

			if ctx.Err() != nil {
				// Cancelled mid-document. The tool may already have moved
				// objects and reported them; those results are terminal and
				// must survive. Only descriptors without a line stay absent.
				e.recordLineOutcomes(batch, doc, outcome, attempts, collector)
				return nil
			}

			if runErr != nil && len(outcome) == 0 {
				// Process-level failure with nothing accomplished:
				// escalate this document's unresolved descriptors, every
				// later document, and anything queued for retry.
				var escalate []int
				escalate = append(escalate, retry...)
				escalate = append(escalate, unresolved(doc, collector)...)
				for _, later := range documents[docIdx+1:] {
					escalate = append(escalate, unresolved(later, collector)...)
				}
				sort.Ints(escalate)
				return escalate
			}

			for _, idx := range doc.Order {
				if collector.has(idx) {
					continue
				}
				attempts[idx]++
				d := batch.Descriptors[idx]

				out, seen := outcome[idx]
				switch {
				case seen && out.failed:
					cerr := ClassifyMessage(out.message)
					if IsTransient(cerr) && attempts[idx] <= e.cfg.MaxRetries {
						retry = append(retry, idx)
						continue
					}
					e.record(collector, idx, TransferResult{
						Descriptor:  d,
						Status:      StatusFailed,
						Mode:        ModeDirectSync,
						ErrorDetail: out.message,
						Attempt:     attempts[idx],
					})
				case seen:
					e.record(collector, idx, e.directSuccess(d, attempts[idx], d.SizeHint))
				case runErr == nil:
					// No result line and a clean exit: the conditional
					// copy found the destination already up to date, so
					// zero bytes moved.
					e.record(collector, idx, e.directSuccess(d, attempts[idx], 0))
				default:
					// Tool reported per-object failures but this object got
					// no line at all; retry it rather than guess.
					if attempts[idx] <= e.cfg.MaxRetries {
						retry = append(retry, idx)
						continue
					}
					e.record(collector, idx, TransferResult{
						Descriptor:  d,
						Status:      StatusFailed,
						Mode:        ModeDirectSync,
						ErrorDetail: "no result line from bulk tool",
						Attempt:     attempts[idx],
					})
				}
			}
		}

		if len(retry) == 0 {
			return nil
		}
		sort.Ints(retry)
		documents = BuildCommandDocuments(batch.Descriptors, retry, e.cfg.Generator)
	}
}

type lineOutcome struct {
	failed  bool
	message string
}

// recordLineOutcomes folds already-classified result lines into the
// collector as terminal results, with no retry consideration. Used when
// cancellation cuts a round short.
func (e *Executor) recordLineOutcomes(batch *TransferBatch, doc CommandDocument, outcome map[int]lineOutcome, attempts map[int]int, collector *resultCollector) {
	for _, idx := range doc.Order {
		out, seen := outcome[idx]
		if !seen || collector.has(idx) {
			continue
		}
		attempts[idx]++
		d := batch.Descriptors[idx]
		if out.failed {
			e.record(collector, idx, TransferResult{
				Descriptor:  d,
				Status:      StatusFailed,
				Mode:        ModeDirectSync,
				ErrorDetail: out.message,
				Attempt:     attempts[idx],
			})
			continue
		}
		e.record(collector, idx, e.directSuccess(d, attempts[idx], d.SizeHint))
	}
}

// runDocument invokes the tool once and correlates its output lines back
// to descriptor indices, by source identifier when the line carries one
// and positionally otherwise. Unmapped lines are logged, never dropped.
func (e *Executor) runDocument(ctx context.Context, doc CommandDocument) (map[int]lineOutcome, error) {
	outcome := make(map[int]lineOutcome)

	// Source URL -> pending descriptor indices, in render order.
	// Duplicated sources resolve first-come first-served.
	pending := make(map[string][]int)
	for i, idx := range doc.Order {
		src := sourceOfLine(doc.Lines[i])
		pending[src] = append(pending[src], idx)
	}
	position := 0

	var mu sync.Mutex
	onLine := func(stream tool.Stream, line string) {
		c := e.classifier.Classify(line)
		if c.Result == tool.LineUnknown {
			if c.Message != "" {
				e.log.Info("unmapped bulk tool output", zap.String("line", c.Message))
			}
			return
		}

		mu.Lock()
		defer mu.Unlock()

		idx, ok := e.correlate(c, doc, pending, &position, outcome)
		if !ok {
			e.log.Warn("bulk tool result line matches no descriptor", zap.String("line", line))
			return
		}
		outcome[idx] = lineOutcome{failed: c.Result == tool.LineFailure, message: c.Message}
	}

	err := e.runner.Run(ctx, doc.Body(), onLine)
	return outcome, err
}

// correlate maps a classified line to a descriptor index.
func (e *Executor) correlate(c tool.Classified, doc CommandDocument, pending map[string][]int, position *int, outcome map[int]lineOutcome) (int, bool) {
	if c.Source != "" {
		queue := pending[c.Source]
		if len(queue) > 0 {
			idx := queue[0]
			pending[c.Source] = queue[1:]
			return idx, true
		}
	}
	// Positional fallback for lines without a usable identifier.
	for *position < len(doc.Order) {
		idx := doc.Order[*position]
		*position++
		if _, seen := outcome[idx]; !seen {
			return idx, true
		}
	}
	return 0, false
}

func (e *Executor) directSuccess(d TransferDescriptor, attempt int, bytes int64) TransferResult {
	status := StatusSuccess
	if attempt > 1 {
		status = StatusRetried
	}
	return TransferResult{
		Descriptor:       d,
		Status:           status,
		Mode:             ModeDirectSync,
		BytesTransferred: bytes,
		Attempt:          attempt,
	}
}

// runTraditional processes the given descriptor indices through the
// download-stage-upload path on a bounded worker pool.
func (e *Executor) runTraditional(ctx context.Context, batch *TransferBatch, indices []int, collector *resultCollector) {
	wp := pool.New(ctx, e.cfg.WorkerCount)
	for _, idx := range indices {
		idx := idx
		if !wp.Submit(func(taskCtx context.Context) error {
			return e.transferOne(taskCtx, batch, idx, collector)
		}) {
			// Pool cancelled: remaining descriptors never start and get
			// no result.
			break
		}
	}
	wp.Wait()
}

// transferOne moves a single descriptor via local staging. Download and
// upload carry separate retry budgets; a staged download is never
// re-fetched just because the upload needs another attempt.
func (e *Executor) transferOne(ctx context.Context, batch *TransferBatch, idx int, collector *resultCollector) error {
	d := batch.Descriptors[idx]

	scope, err := e.staging.Acquire(d.Destination.Key)
	if err != nil {
		e.record(collector, idx, TransferResult{
			Descriptor:  d,
			Status:      StatusFailed,
			Mode:        ModeTraditional,
			ErrorDetail: err.Error(),
			Attempt:     1,
		})
		return err
	}
	defer scope.Release()
	stagePath := scope.Path("object")

	attempt := 0
	var downloaded int64
	err = e.retryOp(ctx, &attempt, func() error {
		var opErr error
		downloaded, opErr = e.store.Download(ctx, d.Source, stagePath)
		return opErr
	})
	if err != nil {
		e.record(collector, idx, TransferResult{
			Descriptor:  d,
			Status:      StatusFailed,
			Mode:        ModeTraditional,
			ErrorDetail: fmt.Sprintf("download: %v", err),
			Attempt:     attempt,
		})
		return err
	}

	var uploaded int64
	uploadAttempt := 0
	err = e.retryOp(ctx, &uploadAttempt, func() error {
		var opErr error
		uploaded, opErr = e.store.Upload(ctx, stagePath, d.Destination)
		return opErr
	})
	attempt += uploadAttempt - 1
	if err != nil {
		e.record(collector, idx, TransferResult{
			Descriptor:       d,
			Status:           StatusFailed,
			Mode:             ModeTraditional,
			BytesTransferred: downloaded,
			ErrorDetail:      fmt.Sprintf("upload: %v", err),
			Attempt:          attempt,
		})
		return err
	}

	status := StatusSuccess
	if attempt > 1 {
		status = StatusRetried
	}
	e.record(collector, idx, TransferResult{
		Descriptor:       d,
		Status:           status,
		Mode:             ModeTraditional,
		BytesTransferred: downloaded + uploaded,
		Attempt:          attempt,
	})
	return nil
}

// retryOp runs op, retrying transient failures on an exponential backoff
// schedule. attempt counts total tries.
func (e *Executor) retryOp(ctx context.Context, attempt *int, op func() error) error {
	bo := e.newBackoff()
	for {
		*attempt++
		err := op()
		if err == nil {
			return nil
		}
		cerr := Classify(err)
		if !IsTransient(cerr) || *attempt > e.cfg.MaxRetries {
			return cerr
		}
		e.emit(Event{Type: EventRetry, Mode: ModeTraditional, Attempt: *attempt, Detail: cerr.Error()})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}
}

func (e *Executor) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.BackoffInitial
	bo.MaxInterval = e.cfg.BackoffMax
	bo.MaxElapsedTime = 0
	return bo
}

func (e *Executor) record(collector *resultCollector, idx int, r TransferResult) {
	if !collector.add(idx, r) {
		return
	}
	e.emit(Event{
		Type:       EventResult,
		Descriptor: &r.Descriptor,
		Mode:       r.Mode,
		Status:     r.Status,
		Bytes:      r.BytesTransferred,
		Attempt:    r.Attempt,
		Detail:     r.ErrorDetail,
	})
}

func (e *Executor) emit(ev Event) {
	if e.OnEvent != nil {
		e.OnEvent(ev)
	}
}

// sourceOfLine pulls the source URL back out of a rendered directive.
// Directives always end with "<source> <destination>".
func sourceOfLine(line string) string {
	fields := splitDirective(line)
	if len(fields) < 2 {
		return ""
	}
	return fields[len(fields)-2]
}

func splitDirective(line string) []string {
	var fields []string
	var cur []rune
	inQuote := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			if len(cur) > 0 {
				fields = append(fields, string(cur))
				cur = cur[:0]
			}
		default:
			cur = append(cur, r)
		}
	}
	if len(cur) > 0 {
		fields = append(fields, string(cur))
	}
	return fields
}

func unresolved(doc CommandDocument, collector *resultCollector) []int {
	var out []int
	for _, idx := range doc.Order {
		if !collector.has(idx) {
			out = append(out, idx)
		}
	}
	return out
}

// resultCollector is the one cross-worker shared structure: one guarded
// append per terminal descriptor, no read-modify-write races.
type resultCollector struct {
	mu      sync.Mutex
	byIndex map[int]TransferResult
}

func newResultCollector() *resultCollector {
	return &resultCollector{byIndex: make(map[int]TransferResult)}
}

// add records a terminal result. The first terminal result for a
// descriptor wins; duplicates are dropped so no descriptor ever carries
// two outcomes.
func (c *resultCollector) add(idx int, r TransferResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byIndex[idx]; ok {
		return false
	}
	c.byIndex[idx] = r
	return true
}

func (c *resultCollector) has(idx int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byIndex[idx]
	return ok
}

// ordered returns results in descriptor order. Descriptors that never
// started (cancellation) are simply absent.
func (c *resultCollector) ordered() []TransferResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	indices := make([]int, 0, len(c.byIndex))
	for idx := range c.byIndex {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	out := make([]TransferResult, 0, len(indices))
	for _, idx := range indices {
		out = append(out, c.byIndex[idx])
	}
	return out
}
