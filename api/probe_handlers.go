package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"s3transfer/pkg/models"
	"s3transfer/pkg/storage"
	"s3transfer/pkg/tool"
)

// Probe reports the capabilities a transfer against the given destination
// would have: whether the bulk tool answers and whether the bucket is
// reachable with the supplied credentials.
func (s *Server) Probe(c *gin.Context) {
	var req models.ProbeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if req.Bucket == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bucket is required"})
		return
	}

	creds := req.Credentials
	if creds == nil {
		creds = &models.Credentials{}
	}

	resp := models.ProbeResponse{}

	runner := tool.NewS5cmdRunner(s.cfg.ToolPath, s.log)
	runner.EndpointURL = creds.EndpointURL
	resp.BulkToolAvailable = runner.Available(c.Request.Context())

	client, err := storage.NewClient(c.Request.Context(), s.clientConfig(creds, models.TransferOptions{}))
	if err != nil {
		resp.Detail = err.Error()
		c.JSON(http.StatusOK, resp)
		return
	}
	reachable, err := storage.BucketReachable(c.Request.Context(), client, req.Bucket)
	if err != nil {
		resp.Detail = err.Error()
	}
	resp.BucketReachable = reachable

	s.log.Info("capability probe",
		zap.String("bucket", req.Bucket),
		zap.Bool("bulk_tool", resp.BulkToolAvailable),
		zap.Bool("bucket_reachable", resp.BucketReachable))
	c.JSON(http.StatusOK, resp)
}
