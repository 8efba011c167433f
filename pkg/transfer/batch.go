package transfer

import (
	"fmt"
	"strings"
	"time"
)

// BatchState is the lifecycle state of one transfer batch.
type BatchState string

const (
	StateBuilding        BatchState = "building"
	StateModeSelected    BatchState = "mode_selected"
	StateExecuting       BatchState = "executing"
	StateRetrying        BatchState = "retrying"
	StateCompleted       BatchState = "completed"
	StatePartiallyFailed BatchState = "partially_failed"
)

// GeneratorConfig controls how descriptor pairs are rendered into bulk
// tool command documents.
type GeneratorConfig struct {
	// MaxBatchSize bounds directives per document; the bulk tool chokes on
	// arbitrarily large run files.
	MaxBatchSize int
	// PartSizeMB is the multipart chunk size passed per directive.
	PartSizeMB int
	// Conditional enables skip-if-destination-matches flags so retries are
	// idempotent.
	Conditional bool
	// SourceRegion overrides the region hint for every directive. When
	// empty, the hint derived from each source URL is used.
	SourceRegion string
}

// DefaultGeneratorConfig mirrors the bulk tool's practical limits.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		MaxBatchSize: 1000,
		PartSizeMB:   50,
		Conditional:  true,
	}
}

// CommandDocument is one opaque run document for the bulk tool plus the
// descriptor order used to build it. The order is the positional fallback
// for correlating result lines that carry no identifier.
type CommandDocument struct {
	Lines []string
	// Order holds descriptor indices (into the batch) in render order.
	Order []int
}

// Body renders the document as the tool's stdin payload.
func (d CommandDocument) Body() string {
	return strings.Join(d.Lines, "\n") + "\n"
}

// TransferBatch is one invocation's worth of work: the descriptors, the
// resolved mode, and the generated command documents for direct sync.
// Created per invocation and discarded after it completes.
type TransferBatch struct {
	Descriptors []TransferDescriptor
	Mode        Mode
	State       BatchState
	Documents   []CommandDocument
	// Escalated is set when a tool-level failure switched the batch from
	// direct sync to the traditional path mid-flight.
	Escalated bool
	CreatedAt time.Time
}

// NewBatch assembles a batch for the already-resolved mode. For direct
// sync the command documents are generated up front so a dry run can show
// the exact plan.
func NewBatch(descriptors []TransferDescriptor, mode Mode, cfg GeneratorConfig) *TransferBatch {
	b := &TransferBatch{
		Descriptors: descriptors,
		Mode:        mode,
		State:       StateModeSelected,
		CreatedAt:   time.Now(),
	}
	if mode == ModeDirectSync {
		indices := make([]int, len(descriptors))
		for i := range descriptors {
			indices[i] = i
		}
		b.Documents = BuildCommandDocuments(descriptors, indices, cfg)
	}
	return b
}

// BuildCommandDocuments groups the given descriptors (identified by their
// batch indices) into bounded documents, preserving order.
func BuildCommandDocuments(descriptors []TransferDescriptor, indices []int, cfg GeneratorConfig) []CommandDocument {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultGeneratorConfig().MaxBatchSize
	}

	var docs []CommandDocument
	for start := 0; start < len(indices); start += cfg.MaxBatchSize {
		end := start + cfg.MaxBatchSize
		if end > len(indices) {
			end = len(indices)
		}

		doc := CommandDocument{
			Lines: make([]string, 0, end-start),
			Order: make([]int, 0, end-start),
		}
		for _, idx := range indices[start:end] {
			doc.Lines = append(doc.Lines, renderCopyDirective(descriptors[idx], cfg))
			doc.Order = append(doc.Order, idx)
		}
		docs = append(docs, doc)
	}
	return docs
}

// renderCopyDirective emits one cp line in the bulk tool's run-file
// grammar: conditional-copy flags, multipart part size, source region
// hint, then source and destination URLs.
func renderCopyDirective(d TransferDescriptor, cfg GeneratorConfig) string {
	var sb strings.Builder
	sb.WriteString("cp")

	if cfg.Conditional {
		// Copy only when the destination is missing, differs in size, or
		// the source is newer. This is what makes retries free.
		sb.WriteString(" -n -s -u")
	}
	if cfg.PartSizeMB > 0 {
		fmt.Fprintf(&sb, " -p %d", cfg.PartSizeMB)
	}
	region := cfg.SourceRegion
	if region == "" {
		region = d.Source.Region
	}
	if region != "" {
		fmt.Fprintf(&sb, " --source-region %s", region)
	}

	sb.WriteByte(' ')
	sb.WriteString(quoteArg(d.Source.String()))
	sb.WriteByte(' ')
	sb.WriteString(quoteArg(d.Destination.String()))
	return sb.String()
}

func quoteArg(s string) string {
	if strings.ContainsAny(s, " \t\"") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
