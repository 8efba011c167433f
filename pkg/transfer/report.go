package transfer

import "time"

// ResultStatus is the terminal status of one descriptor.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusFailed  ResultStatus = "failed"
	// StatusRetried marks a success that needed more than one attempt.
	StatusRetried ResultStatus = "retried"
)

// TransferResult is the per-descriptor outcome. Exactly one terminal
// result exists per input descriptor once a batch runs to completion.
type TransferResult struct {
	Descriptor       TransferDescriptor
	Status           ResultStatus
	Mode             Mode // mode that actually moved this object
	BytesTransferred int64
	ErrorDetail      string
	Attempt          int
}

// Succeeded reports whether the descriptor reached its destination.
func (r TransferResult) Succeeded() bool {
	return r.Status == StatusSuccess || r.Status == StatusRetried
}

// EfficiencyReport aggregates a completed batch into comparable metrics.
// Derived and read-only; produced once per batch.
type EfficiencyReport struct {
	Mode                 Mode       `json:"mode"`
	State                BatchState `json:"state"`
	Escalated            bool       `json:"escalated"`
	ObjectCount          int        `json:"object_count"`
	OperationCount       int        `json:"operation_count"`
	NetworkTransferCount int        `json:"network_transfer_count"`
	TotalBytes           int64      `json:"total_bytes"`
	ElapsedSeconds       float64    `json:"elapsed_seconds"`
	SuccessRate          float64    `json:"success_rate"`
}

// BuildReport is a pure aggregation over a batch and its results; it
// never mutates its inputs. A direct sync success costs one operation and
// one network transfer; a traditional success costs two of each (download
// plus upload). An empty batch yields a defined zero-valued report, never
// a division by zero.
func BuildReport(batch *TransferBatch, results []TransferResult, elapsed time.Duration) EfficiencyReport {
	report := EfficiencyReport{
		Mode:           batch.Mode,
		Escalated:      batch.Escalated,
		ObjectCount:    len(batch.Descriptors),
		ElapsedSeconds: elapsed.Seconds(),
	}

	successes := 0
	for _, r := range results {
		report.TotalBytes += r.BytesTransferred
		if !r.Succeeded() {
			continue
		}
		successes++
		if r.Mode == ModeTraditional {
			report.OperationCount += 2
			report.NetworkTransferCount += 2
		} else {
			report.OperationCount++
			report.NetworkTransferCount++
		}
	}

	if report.ObjectCount > 0 {
		report.SuccessRate = float64(successes) / float64(report.ObjectCount)
	}

	if successes == report.ObjectCount && len(results) == report.ObjectCount {
		report.State = StateCompleted
	} else {
		report.State = StatePartiallyFailed
	}
	return report
}
