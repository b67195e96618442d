package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/common"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/routing"
)

type routeReq struct {
	Text                string `json:"text"`
	HasIngestedDocument bool   `json:"has_ingested_document"`
	Requested           string `json:"requested"`
}

// Route reports which strategy the keyword router picks for a turn.
func (h *Handler) Route(c *gin.Context) {
	var req routeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	in := routing.Input{Text: req.Text, HasIngestedDocument: req.HasIngestedDocument}
	if r, ok := routing.ParseChoice(req.Requested); ok {
		in.Requested = r
	}
	choice, rule := routing.Explain(in)
	h.Metrics.ObserveRoute(string(choice))

	common.OK(c, gin.H{"choice": choice, "rule": rule})
}
