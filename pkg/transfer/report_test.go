package transfer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildReportDirectSuccess(t *testing.T) {
	descriptors := makeDescriptors(t, 3)
	batch := NewBatch(descriptors, ModeDirectSync, DefaultGeneratorConfig())

	results := []TransferResult{
		{Descriptor: descriptors[0], Status: StatusSuccess, Mode: ModeDirectSync, BytesTransferred: 100, Attempt: 1},
		{Descriptor: descriptors[1], Status: StatusRetried, Mode: ModeDirectSync, BytesTransferred: 100, Attempt: 2},
		{Descriptor: descriptors[2], Status: StatusSuccess, Mode: ModeDirectSync, BytesTransferred: 100, Attempt: 1},
	}

	report := BuildReport(batch, results, 2*time.Second)
	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, 3, report.ObjectCount)
	assert.Equal(t, 3, report.OperationCount)
	assert.Equal(t, 3, report.NetworkTransferCount)
	assert.Equal(t, int64(300), report.TotalBytes)
	assert.InDelta(t, 1.0, report.SuccessRate, 1e-9)
	assert.InDelta(t, 2.0, report.ElapsedSeconds, 1e-9)
}

func TestBuildReportTraditionalCostsDouble(t *testing.T) {
	descriptors := makeDescriptors(t, 2)
	batch := NewBatch(descriptors, ModeTraditional, DefaultGeneratorConfig())

	results := []TransferResult{
		{Descriptor: descriptors[0], Status: StatusSuccess, Mode: ModeTraditional, BytesTransferred: 200, Attempt: 1},
		{Descriptor: descriptors[1], Status: StatusSuccess, Mode: ModeTraditional, BytesTransferred: 200, Attempt: 1},
	}

	report := BuildReport(batch, results, time.Second)
	assert.Equal(t, 4, report.OperationCount)
	assert.Equal(t, 4, report.NetworkTransferCount)
}

func TestBuildReportFailuresCountNoOperations(t *testing.T) {
	descriptors := makeDescriptors(t, 2)
	batch := NewBatch(descriptors, ModeDirectSync, DefaultGeneratorConfig())

	results := []TransferResult{
		{Descriptor: descriptors[0], Status: StatusSuccess, Mode: ModeDirectSync, BytesTransferred: 100, Attempt: 1},
		{Descriptor: descriptors[1], Status: StatusFailed, Mode: ModeDirectSync, ErrorDetail: "AccessDenied", Attempt: 1},
	}

	report := BuildReport(batch, results, time.Second)
	assert.Equal(t, StatePartiallyFailed, report.State)
	assert.Equal(t, 1, report.OperationCount)
	assert.InDelta(t, 0.5, report.SuccessRate, 1e-9)
}

func TestBuildReportMixedModesAfterEscalation(t *testing.T) {
	descriptors := makeDescriptors(t, 2)
	batch := NewBatch(descriptors, ModeDirectSync, DefaultGeneratorConfig())
	batch.Mode = ModeTraditional
	batch.Escalated = true

	results := []TransferResult{
		{Descriptor: descriptors[0], Status: StatusSuccess, Mode: ModeDirectSync, BytesTransferred: 100, Attempt: 1},
		{Descriptor: descriptors[1], Status: StatusSuccess, Mode: ModeTraditional, BytesTransferred: 200, Attempt: 1},
	}

	report := BuildReport(batch, results, time.Second)
	assert.True(t, report.Escalated)
	// One direct success plus one staged success.
	assert.Equal(t, 3, report.OperationCount)
	assert.Equal(t, 3, report.NetworkTransferCount)
}

func TestBuildReportDoesNotMutateBatch(t *testing.T) {
	descriptors := makeDescriptors(t, 1)
	batch := NewBatch(descriptors, ModeDirectSync, DefaultGeneratorConfig())
	batch.State = StateExecuting

	BuildReport(batch, []TransferResult{
		{Descriptor: descriptors[0], Status: StatusSuccess, Mode: ModeDirectSync, Attempt: 1},
	}, time.Second)

	assert.Equal(t, StateExecuting, batch.State)
}

func TestBuildReportEmptyBatch(t *testing.T) {
	batch := NewBatch(nil, ModeDirectSync, DefaultGeneratorConfig())

	report := BuildReport(batch, nil, 0)
	assert.Equal(t, StateCompleted, report.State)
	assert.Zero(t, report.ObjectCount)
	assert.Zero(t, report.SuccessRate)
	assert.Zero(t, report.TotalBytes)
}

func TestBuildReportMissingResultsMeanPartialFailure(t *testing.T) {
	// A cancelled batch returns fewer results than descriptors; it must
	// never be reported as completed.
	descriptors := makeDescriptors(t, 3)
	batch := NewBatch(descriptors, ModeTraditional, DefaultGeneratorConfig())

	results := []TransferResult{
		{Descriptor: descriptors[0], Status: StatusSuccess, Mode: ModeTraditional, BytesTransferred: 200, Attempt: 1},
	}

	report := BuildReport(batch, results, time.Second)
	assert.Equal(t, StatePartiallyFailed, report.State)
}
