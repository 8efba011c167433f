// Package api exposes the transfer engine over HTTP for the ingestion
// and workflow layers: start a transfer, poll its status, cancel it,
// probe environment capabilities.
package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"s3transfer/pkg/models"
	"s3transfer/pkg/progress"
	"s3transfer/pkg/staging"
	"s3transfer/pkg/storage"
	"s3transfer/pkg/tool"
	"s3transfer/pkg/transfer"
)

// ServerConfig holds the process-level knobs the handlers need.
type ServerConfig struct {
	// ToolPath locates the bulk transfer binary. Empty means look it up
	// on PATH under its default name.
	ToolPath string
	// StagingDir is where traditional-path objects are staged. Empty
	// means the system temp dir.
	StagingDir string
	// ToolTimeout bounds a single bulk tool invocation.
	ToolTimeout time.Duration
	// DefaultRegion applies when a request's credentials omit one.
	DefaultRegion string
}

// Server carries the shared state behind the HTTP handlers.
type Server struct {
	cfg   ServerConfig
	log   *zap.Logger
	tasks *TaskManager
}

// NewServer creates the handler set.
func NewServer(cfg ServerConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:   cfg,
		log:   log,
		tasks: NewTaskManager(),
	}
}

// TaskInfo is the tracked state of one transfer task.
type TaskInfo struct {
	ID        string
	Status    string
	Mode      transfer.Mode
	DryRun    bool
	StartTime time.Time
	EndTime   *time.Time

	cancel  context.CancelFunc
	tracker *progress.Tracker

	mu      sync.Mutex
	outcome *transfer.Outcome
	runErr  error
}

// TaskManager owns the in-memory task registry. Tasks live for the
// process lifetime; there is deliberately no persistence, the workflow
// layer re-submits on restart.
type TaskManager struct {
	mu    sync.RWMutex
	tasks map[string]*TaskInfo
}

// NewTaskManager creates an empty registry.
func NewTaskManager() *TaskManager {
	return &TaskManager{tasks: make(map[string]*TaskInfo)}
}

// Add registers a task.
func (m *TaskManager) Add(t *TaskInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t
}

// Get looks a task up by ID.
func (m *TaskManager) Get(id string) (*TaskInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	return t, ok
}

// List returns all tasks, newest first.
func (m *TaskManager) List() []*TaskInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*TaskInfo, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

// HealthCheck responds to liveness probes.
func (s *Server) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// StartTransfer validates the request, registers a task and launches the
// transfer in the background. Returns 202 with the task ID.
func (s *Server) StartTransfer(c *gin.Context) {
	var req models.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if len(req.Sources) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sources must not be empty"})
		return
	}
	if req.DestinationPrefix == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "destination_prefix is required"})
		return
	}
	mode, err := transfer.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var totalBytes int64
	for _, src := range req.Sources {
		totalBytes += src.Size
	}

	ctx, cancel := context.WithCancel(context.Background())
	task := &TaskInfo{
		ID:        uuid.New().String(),
		Status:    "pending",
		Mode:      mode,
		DryRun:    req.DryRun,
		StartTime: time.Now(),
		cancel:    cancel,
		tracker:   progress.NewTracker(int64(len(req.Sources)), totalBytes),
	}
	s.tasks.Add(task)

	s.log.Info("transfer task accepted",
		zap.String("task_id", task.ID),
		zap.String("mode", string(mode)),
		zap.Int("sources", len(req.Sources)),
		zap.Bool("dry_run", req.DryRun))

	go s.runTransfer(ctx, task, req, mode)

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": task.ID,
		"status":  "pending",
	})
}

func (s *Server) runTransfer(ctx context.Context, task *TaskInfo, req models.TransferRequest, mode transfer.Mode) {
	defer task.cancel()

	log := s.log.With(zap.String("task_id", task.ID))
	task.mu.Lock()
	task.Status = "running"
	task.mu.Unlock()

	outcome, err := s.executeTransfer(ctx, task, req, mode, log)

	now := time.Now()
	task.mu.Lock()
	task.outcome = outcome
	task.runErr = err
	task.EndTime = &now
	switch {
	case ctx.Err() != nil && err == nil && outcomeIncomplete(outcome):
		task.Status = "cancelled"
	case err != nil:
		if ctx.Err() != nil {
			task.Status = "cancelled"
		} else {
			task.Status = "failed"
		}
	case outcome != nil && task.DryRun:
		task.Status = "completed"
	case outcome != nil && outcome.Report.State == transfer.StateCompleted:
		task.Status = "completed"
	default:
		task.Status = "partially_failed"
	}
	status := task.Status
	task.mu.Unlock()

	if err != nil {
		log.Warn("transfer task finished with error", zap.String("status", status), zap.Error(err))
		return
	}
	log.Info("transfer task finished", zap.String("status", status))
}

// executeTransfer wires the engine for one request and runs it.
func (s *Server) executeTransfer(ctx context.Context, task *TaskInfo, req models.TransferRequest, mode transfer.Mode, log *zap.Logger) (*transfer.Outcome, error) {
	srcCreds := req.SourceCredentials
	if srcCreds == nil {
		srcCreds = &models.Credentials{}
	}
	dstCreds := req.DestCredentials

	srcClient, err := storage.NewClient(ctx, s.clientConfig(srcCreds, req.Options))
	if err != nil {
		return nil, err
	}
	dstClient := srcClient
	if dstCreds != nil {
		dstClient, err = storage.NewClient(ctx, s.clientConfig(dstCreds, req.Options))
		if err != nil {
			return nil, err
		}
	}

	runner := tool.NewS5cmdRunner(s.cfg.ToolPath, log)
	runner.EndpointURL = srcCreds.EndpointURL
	runner.NumWorkers = req.Options.WorkerCount
	if req.Options.InvocationTimeout > 0 {
		runner.Timeout = time.Duration(req.Options.InvocationTimeout) * time.Second
	} else if s.cfg.ToolTimeout > 0 {
		runner.Timeout = s.cfg.ToolTimeout
	}

	caps := transfer.Capabilities{
		BulkToolAvailable: runner.Available(ctx),
		CrossAccount:      crossAccount(srcCreds, dstCreds),
	}

	area, err := staging.NewArea(s.cfg.StagingDir)
	if err != nil {
		return nil, err
	}
	defer area.Close()

	engine := &transfer.Engine{
		Runner:     runner,
		Classifier: tool.S5cmdClassifier{},
		Store:      storage.NewBackend(srcClient, dstClient, log),
		Staging:    area,
		Log:        log,
		OnEvent: func(ev transfer.Event) {
			if ev.Type != transfer.EventResult {
				return
			}
			task.tracker.Update(ev.Bytes, ev.Status == transfer.StatusSuccess || ev.Status == transfer.StatusRetried)
		},
	}

	sources := make([]transfer.SourceSpec, 0, len(req.Sources))
	for _, src := range req.Sources {
		sources = append(sources, transfer.SourceSpec{Raw: src.URL, SizeHint: src.Size})
	}

	genCfg := transfer.DefaultGeneratorConfig()
	if req.Options.MaxBatchSize > 0 {
		genCfg.MaxBatchSize = req.Options.MaxBatchSize
	}
	if req.Options.PartSizeMB > 0 {
		genCfg.PartSizeMB = req.Options.PartSizeMB
	}
	genCfg.Conditional = !req.Options.DisableConditional
	genCfg.SourceRegion = req.Options.SourceRegion

	execCfg := transfer.DefaultExecutorConfig()
	if req.Options.MaxRetries > 0 {
		execCfg.MaxRetries = req.Options.MaxRetries
	}
	if req.Options.WorkerCount > 0 {
		execCfg.WorkerCount = req.Options.WorkerCount
	}
	execCfg.Generator = genCfg

	return engine.Transfer(ctx, transfer.Request{
		Sources:           sources,
		DestinationPrefix: req.DestinationPrefix,
		Mode:              mode,
		Capabilities:      caps,
		DryRun:            req.DryRun,
		Executor:          execCfg,
		Generator:         genCfg,
	})
}

// GetStatus returns the current progress or terminal outcome of a task.
func (s *Server) GetStatus(c *gin.Context) {
	task, ok := s.tasks.Get(c.Param("taskID"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, taskStatus(task))
}

// ListTasks returns all known tasks, newest first.
func (s *Server) ListTasks(c *gin.Context) {
	tasks := s.tasks.List()
	out := make([]models.TaskStatus, 0, len(tasks))
	for _, t := range tasks {
		st := taskStatus(t)
		// Listing stays light; per-object results come from GetStatus.
		st.Results = nil
		st.Plan = nil
		out = append(out, st)
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out, "count": len(out)})
}

// CancelTask requests cancellation of a running task. Objects already in
// flight run to their own completion; never-started ones are abandoned.
func (s *Server) CancelTask(c *gin.Context) {
	task, ok := s.tasks.Get(c.Param("taskID"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	task.mu.Lock()
	terminal := task.EndTime != nil
	task.mu.Unlock()
	if terminal {
		c.JSON(http.StatusConflict, gin.H{"error": "task already finished"})
		return
	}

	task.cancel()
	s.log.Info("transfer task cancellation requested", zap.String("task_id", task.ID))
	c.JSON(http.StatusOK, gin.H{"task_id": task.ID, "status": "cancelling"})
}

func taskStatus(task *TaskInfo) models.TaskStatus {
	stats := task.tracker.Snapshot()

	task.mu.Lock()
	defer task.mu.Unlock()

	st := models.TaskStatus{
		TaskID:        task.ID,
		Status:        task.Status,
		Mode:          string(task.Mode),
		Progress:      stats.ProgressPct,
		DoneObjects:   stats.DoneObjects,
		TotalObjects:  stats.TotalObjects,
		FailedObjects: stats.FailedObjects,
		SpeedMBps:     stats.SpeedMBps,
		ETA:           stats.ETA,
		StartTime:     task.StartTime,
		EndTime:       task.EndTime,
		DryRun:        task.DryRun,
	}
	if task.runErr != nil {
		st.Error = task.runErr.Error()
	}
	if task.outcome == nil {
		return st
	}

	st.Mode = string(task.outcome.Batch.Mode)
	if task.DryRun {
		for _, doc := range task.outcome.Batch.Documents {
			st.Plan = append(st.Plan, doc.Body())
		}
	}
	if task.EndTime != nil && !task.DryRun {
		report := wireReport(task.outcome.Report)
		st.Report = &report
		st.Results = wireResults(task.outcome.Results)
	}
	return st
}

func wireReport(r transfer.EfficiencyReport) models.EfficiencyReport {
	return models.EfficiencyReport{
		Mode:                 string(r.Mode),
		State:                string(r.State),
		Escalated:            r.Escalated,
		ObjectCount:          r.ObjectCount,
		OperationCount:       r.OperationCount,
		NetworkTransferCount: r.NetworkTransferCount,
		TotalBytes:           r.TotalBytes,
		ElapsedSeconds:       r.ElapsedSeconds,
		SuccessRate:          r.SuccessRate,
	}
}

func wireResults(results []transfer.TransferResult) []models.TransferResult {
	out := make([]models.TransferResult, 0, len(results))
	for _, r := range results {
		out = append(out, models.TransferResult{
			Source:           r.Descriptor.Source.String(),
			Destination:      r.Descriptor.Destination.String(),
			Status:           string(r.Status),
			Mode:             string(r.Mode),
			BytesTransferred: r.BytesTransferred,
			ErrorDetail:      r.ErrorDetail,
			Attempt:          r.Attempt,
		})
	}
	return out
}

func (s *Server) clientConfig(creds *models.Credentials, opts models.TransferOptions) storage.ClientConfig {
	region := creds.Region
	if region == "" {
		region = s.cfg.DefaultRegion
	}
	return storage.ClientConfig{
		Region:       region,
		EndpointURL:  creds.EndpointURL,
		AccessKey:    creds.AccessKey,
		SecretKey:    creds.SecretKey,
		SessionToken: creds.SessionToken,
		MaxRetries:   opts.MaxRetries,
	}
}

// crossAccount reports whether source and destination need different
// clients, which rules out server-side copy.
func crossAccount(src, dst *models.Credentials) bool {
	if dst == nil {
		return false
	}
	return dst.AccessKey != src.AccessKey || dst.EndpointURL != src.EndpointURL
}

func outcomeIncomplete(o *transfer.Outcome) bool {
	if o == nil {
		return true
	}
	return len(o.Results) < len(o.Batch.Descriptors)
}
