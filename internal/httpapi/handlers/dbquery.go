package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/common"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/httpapi/middleware"
)

type dbQueryReq struct {
	Question string `json:"question"`
}

// DBQuery serves POST /functions/v1/db-query. Class lookups are narrowed to
// the caller's school when the profile has one.
func (h *Handler) DBQuery(c *gin.Context) {
	var req dbQueryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		common.Fail(c, http.StatusBadRequest, "Missing question")
		return
	}

	ctx := c.Request.Context()
	profile, err := h.profileOf(ctx, middleware.PrincipalFrom(c))
	if err != nil {
		common.FailErr(c, err)
		return
	}
	var schoolID string
	if profile != nil && profile.SchoolID != nil {
		schoolID = *profile.SchoolID
	}

	result, err := h.Bridge.Answer(ctx, req.Question, schoolID)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, gin.H{"result": result})
}
