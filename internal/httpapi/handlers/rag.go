package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/common"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/httpapi/middleware"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/rag"
)

type ingestReq struct {
	rag.IngestRequest
	Async bool `json:"async"`
}

// RagIngest serves POST /functions/v1/rag-ingest. With "async": true the work
// is queued and the reply is 202 {job_id}.
func (h *Handler) RagIngest(c *gin.Context) {
	var req ingestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	if req.Async {
		job, err := h.Jobs.Enqueue(c.Request.Context(), req.IngestRequest, c.GetHeader("Idempotency-Key"))
		if err != nil {
			common.FailErr(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": job.Status})
		return
	}

	res, err := h.Ingester.Ingest(c.Request.Context(), req.IngestRequest)
	if err != nil {
		if common.StatusOf(err) >= http.StatusInternalServerError {
			h.logger().Error("ingest failed", "tenant_id", req.TenantID, "error", err)
		}
		common.FailErr(c, err)
		return
	}
	common.OK(c, res)
}

func (h *Handler) GetIngestJob(c *gin.Context) {
	job, err := h.Jobs.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, gin.H{"job": job})
}

type answerReq struct {
	Query       string   `json:"query"`
	K           int      `json:"k"`
	Temperature *float64 `json:"temperature"`
	Citations   bool     `json:"citations"`
}

// RagAnswer serves POST /functions/v1/rag-answer, scoped to the caller's
// tenant.
func (h *Handler) RagAnswer(c *gin.Context) {
	var req answerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		common.Fail(c, http.StatusBadRequest, "Missing query")
		return
	}

	ctx := c.Request.Context()
	profile, err := h.profileOf(ctx, middleware.PrincipalFrom(c))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	var tenantID string
	if profile != nil {
		tenantID = profile.TenantID
	}

	res, err := h.Answerer.Answer(ctx, rag.AnswerRequest{
		TenantID:    tenantID,
		Query:       req.Query,
		K:           req.K,
		Temperature: req.Temperature,
		Citations:   req.Citations || truthy(c.Query("citations")),
	})
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, res)
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
