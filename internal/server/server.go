package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/incidenthq/triage/internal/config"
	"github.com/incidenthq/triage/internal/core"
	"github.com/incidenthq/triage/internal/jira"
	"github.com/incidenthq/triage/internal/source"
)

type Server struct {
	cfg      *config.Config
	triage   *core.Triage
	pipeline *core.Pipeline
	jira     *jira.Client
	logger   *zap.Logger
}

func New(cfg *config.Config, triage *core.Triage, pipeline *core.Pipeline, jiraClient *jira.Client, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		triage:   triage,
		pipeline: pipeline,
		jira:     jiraClient,
		logger:   logger,
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/process_issue", s.ProcessIssue)
	r.POST("/batch_process", s.BatchProcess)
	r.POST("/search", s.Search)
	r.POST("/ingest", s.Ingest)
	r.GET("/test_connection", s.TestConnection)
	r.GET("/config_status", s.ConfigStatus)

	return r
}

type processIssueRequest struct {
	IssueKey  string   `json:"issue_key" binding:"required"`
	Threshold *float64 `json:"threshold"`
}

func (s *Server) ProcessIssue(c *gin.Context) {
	var req processIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "issue_key is required"})
		return
	}

	threshold := s.triage.Threshold()
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	res, err := s.triage.ProcessIssue(c.Request.Context(), req.IssueKey, threshold)
	if err != nil {
		if errors.Is(err, core.ErrInvalidQueryParameter) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("failed to process issue", zap.String("issue_key", req.IssueKey), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process issue"})
		return
	}

	message := "issue processed successfully"
	if !res.Commented {
		message = "no actionable analysis for this issue"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       res.Commented,
		"issue_key":     req.IssueKey,
		"similar_count": len(res.Matches),
		"message":       message,
	})
}

type batchProcessRequest struct {
	IssueKeys []string `json:"issue_keys" binding:"required"`
}

func (s *Server) BatchProcess(c *gin.Context) {
	var req batchProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IssueKeys) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "issue_keys is required"})
		return
	}

	results := s.triage.ProcessBatch(c.Request.Context(), req.IssueKeys)

	successful := 0
	for _, ok := range results {
		if ok {
			successful++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"results":         results,
		"total_processed": len(results),
		"successful":      successful,
		"failed":          len(results) - successful,
	})
}

type searchRequest struct {
	Query     string   `json:"query" binding:"required"`
	Threshold *float64 `json:"threshold"`
	Limit     *int     `json:"limit"`
}

func (s *Server) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	threshold := s.triage.Threshold()
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	limit := s.triage.Limit()
	if req.Limit != nil {
		limit = *req.Limit
	}

	matches, err := s.triage.Search(c.Request.Context(), req.Query, threshold, limit)
	if err != nil {
		if errors.Is(err, core.ErrInvalidQueryParameter) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	type matchView struct {
		ID               string  `json:"id"`
		ShortDescription string  `json:"short_description"`
		Assignee         string  `json:"assignee"`
		Group            string  `json:"group"`
		Score            float64 `json:"score"`
	}
	views := make([]matchView, 0, len(matches))
	for _, m := range matches {
		views = append(views, matchView{
			ID:               m.Incident.ID,
			ShortDescription: m.Incident.ShortDescription,
			Assignee:         m.Incident.Assignee,
			Group:            m.Incident.Group,
			Score:            m.Score,
		})
	}
	c.JSON(http.StatusOK, gin.H{"results": views})
}

type ingestRequest struct {
	Path     string `json:"path" binding:"required"`
	AuditDir string `json:"audit_dir"`
}

func (s *Server) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	batch, err := source.ReadBatch(req.Path)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pipeline := s.pipeline
	if req.AuditDir != "" {
		audit, err := source.NewAuditDir(req.AuditDir)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		pipeline = pipeline.WithAuditWriter(audit)
	}

	report, err := pipeline.Ingest(c.Request.Context(), batch)
	if err != nil {
		s.logger.Error("ingest run failed", zap.Error(err))
		// The report still describes the chunks that committed.
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "report": report})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

func (s *Server) TestConnection(c *gin.Context) {
	if s.jira == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "jira client not configured"})
		return
	}
	title, err := s.jira.ServerInfo(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jira connection failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connection": "ok", "server": title})
}

func (s *Server) ConfigStatus(c *gin.Context) {
	jiraErr := s.cfg.ValidateJira()
	c.JSON(http.StatusOK, gin.H{
		"jira_configured": jiraErr == nil,
		"llm_available":   s.cfg.HasLLM(),
		"db_backend":      s.cfg.Database.Backend,
		"db_path":         s.cfg.Database.Path,
		"jira_base_url":   s.cfg.Jira.BaseURL,
	})
}
