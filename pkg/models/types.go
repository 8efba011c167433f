package models

import "time"

// SourceItem is one source object in a transfer request, with an optional
// size hint used for progress and byte accounting.
type SourceItem struct {
	URL  string `json:"url"`
	Size int64  `json:"size,omitempty"`
}

// Credentials for object-store access.
type Credentials struct {
	AccessKey    string `json:"access_key,omitempty"`
	SecretKey    string `json:"secret_key,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
	Region       string `json:"region"`
	EndpointURL  string `json:"endpoint_url,omitempty"`
}

// TransferOptions bounds one transfer run. Zero values take server
// defaults.
type TransferOptions struct {
	MaxBatchSize       int    `json:"max_batch_size,omitempty"`
	MaxRetries         int    `json:"max_retries,omitempty"`
	WorkerCount        int    `json:"worker_count,omitempty"`
	PartSizeMB         int    `json:"part_size_mb,omitempty"`
	SourceRegion       string `json:"source_region,omitempty"`
	InvocationTimeout  int    `json:"invocation_timeout_seconds,omitempty"`
	DisableConditional bool   `json:"disable_conditional_copy,omitempty"`
}

// TransferRequest is the inbound contract from the ingestion/workflow
// layer.
type TransferRequest struct {
	Sources           []SourceItem    `json:"sources"`
	DestinationPrefix string          `json:"destination_prefix"`
	Mode              string          `json:"mode"` // auto, direct_sync, traditional
	Options           TransferOptions `json:"options"`
	SourceCredentials *Credentials    `json:"source_credentials,omitempty"`
	DestCredentials   *Credentials    `json:"dest_credentials,omitempty"`
	DryRun            bool            `json:"dry_run"`
}

// TransferResult is the per-object outcome on the wire.
type TransferResult struct {
	Source           string `json:"source"`
	Destination      string `json:"destination"`
	Status           string `json:"status"`
	Mode             string `json:"mode"`
	BytesTransferred int64  `json:"bytes_transferred"`
	ErrorDetail      string `json:"error_detail,omitempty"`
	Attempt          int    `json:"attempt"`
}

// EfficiencyReport is the aggregate metrics record for one batch.
type EfficiencyReport struct {
	Mode                 string  `json:"mode"`
	State                string  `json:"state"`
	Escalated            bool    `json:"escalated"`
	ObjectCount          int     `json:"object_count"`
	OperationCount       int     `json:"operation_count"`
	NetworkTransferCount int     `json:"network_transfer_count"`
	TotalBytes           int64   `json:"total_bytes"`
	ElapsedSeconds       float64 `json:"elapsed_seconds"`
	SuccessRate          float64 `json:"success_rate"`
}

// TaskStatus is the running or terminal state of one transfer task.
type TaskStatus struct {
	TaskID        string            `json:"task_id"`
	Status        string            `json:"status"` // pending, running, completed, partially_failed, failed, cancelled
	Mode          string            `json:"mode"`
	Progress      float64           `json:"progress"`
	DoneObjects   int64             `json:"done_objects"`
	TotalObjects  int64             `json:"total_objects"`
	FailedObjects int64             `json:"failed_objects"`
	SpeedMBps     float64           `json:"speed_mbps"`
	ETA           string            `json:"eta"`
	StartTime     time.Time         `json:"start_time"`
	EndTime       *time.Time        `json:"end_time,omitempty"`
	Error         string            `json:"error,omitempty"`
	DryRun        bool              `json:"dry_run"`
	Plan          []string          `json:"plan,omitempty"` // dry-run command documents
	Report        *EfficiencyReport `json:"report,omitempty"`
	Results       []TransferResult  `json:"results,omitempty"`
}

// ProbeRequest asks which capabilities the environment offers for a
// destination.
type ProbeRequest struct {
	Bucket      string       `json:"bucket"`
	Credentials *Credentials `json:"credentials,omitempty"`
}

// ProbeResponse reports environment capabilities.
type ProbeResponse struct {
	BulkToolAvailable bool   `json:"bulk_tool_available"`
	BucketReachable   bool   `json:"bucket_reachable"`
	Detail            string `json:"detail,omitempty"`
}
