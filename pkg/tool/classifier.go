// Package tool wraps the external bulk-transfer process: invoking it with
// a command document and scraping its per-line results. All output pattern
// matching lives behind LineClassifier so the rules can be swapped without
// touching executor control flow.
package tool

import (
	"encoding/json"
	"regexp"
	"strings"
)

// LineResult classifies one output line of the bulk tool.
type LineResult int

const (
	// LineUnknown is tool chatter that maps to no descriptor. It is logged
	// but never dropped from the audit trail.
	LineUnknown LineResult = iota
	LineSuccess
	LineFailure
)

// Classified is the parsed form of one output line.
type Classified struct {
	Result LineResult
	// Source is the source URL echoed in the line, when present. Empty
	// means the executor must fall back to positional correlation.
	Source  string
	Message string
}

// LineClassifier turns raw tool output lines into classified results.
// The tool's success/failure line shapes are an observed convention, not a
// documented contract, so implementations are pluggable.
type LineClassifier interface {
	Classify(line string) Classified
}

// s5cmd echoes completed operations as `cp src dst` and failures as
// `ERROR "cp src dst": message`.
var (
	successLineRe = regexp.MustCompile(`^cp\s+(\S+)\s+\S+$`)
	failureLineRe = regexp.MustCompile(`^ERROR\s+"cp\s+(\S+)\s+[^"]*":\s*(.*)$`)
)

// S5cmdClassifier parses s5cmd's default text output, and its --json
// output when a line happens to be a JSON object.
type S5cmdClassifier struct{}

// Classify implements LineClassifier.
func (S5cmdClassifier) Classify(line string) Classified {
	line = strings.TrimSpace(line)
	if line == "" {
		return Classified{Result: LineUnknown}
	}

	if strings.HasPrefix(line, "{") {
		return classifyJSONLine(line)
	}

	if m := failureLineRe.FindStringSubmatch(line); m != nil {
		return Classified{Result: LineFailure, Source: m[1], Message: m[2]}
	}
	if m := successLineRe.FindStringSubmatch(line); m != nil {
		return Classified{Result: LineSuccess, Source: m[1]}
	}
	return Classified{Result: LineUnknown, Message: line}
}

type jsonLine struct {
	Operation string `json:"operation"`
	Success   bool   `json:"success"`
	Source    string `json:"source"`
	Error     string `json:"error"`
}

func classifyJSONLine(line string) Classified {
	var jl jsonLine
	if err := json.Unmarshal([]byte(line), &jl); err != nil || jl.Operation == "" {
		return Classified{Result: LineUnknown, Message: line}
	}
	if jl.Success {
		return Classified{Result: LineSuccess, Source: jl.Source}
	}
	return Classified{Result: LineFailure, Source: jl.Source, Message: jl.Error}
}
