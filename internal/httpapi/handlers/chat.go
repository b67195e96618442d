package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/ai"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/chat"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/common"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/httpapi/middleware"
)

const maxImageBytes = 10 << 20

type chatReq struct {
	Messages json.RawMessage `json:"messages"`
	Model    string          `json:"model"`
	Provider string          `json:"provider"`
}

// Chat serves POST /api/chat. The body is JSON, or multipart with messages
// as a JSON string and an optional image file. Messages are validated before
// the credential is checked.
func (h *Handler) Chat(c *gin.Context) {
	req, err := bindChatRequest(c)
	if err != nil {
		common.FailErr(c, err)
		return
	}

	who, err := middleware.Authenticate(c, h.Auth, middleware.MsgBadAuthHeader)
	if err != nil {
		common.FailErr(c, err)
		return
	}

	reply, err := h.ChatSvc.Chat(c.Request.Context(), who, *req)
	if err != nil {
		if common.StatusOf(err) >= http.StatusInternalServerError {
			h.logger().Error("chat failed", "user_id", who.UserID, "provider", req.Provider, "error", err)
		}
		common.FailErr(c, err)
		return
	}
	common.OK(c, gin.H{"reply": reply.Text})
}

func bindChatRequest(c *gin.Context) (*chat.Request, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		return bindMultipartChat(c)
	}

	var body chatReq
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, common.Invalid("invalid json")
	}
	msgs, err := chat.DecodeMessages(body.Messages)
	if err != nil {
		return nil, err
	}
	return &chat.Request{Messages: msgs, Model: body.Model, Provider: body.Provider}, nil
}

func bindMultipartChat(c *gin.Context) (*chat.Request, error) {
	msgs, err := chat.DecodeMessagesString(c.PostForm("messages"))
	if err != nil {
		return nil, err
	}
	req := &chat.Request{
		Messages: msgs,
		Model:    c.PostForm("model"),
		Provider: c.PostForm("provider"),
	}

	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return req, nil
		}
		return nil, common.Invalid("invalid image upload")
	}
	if fh.Size > maxImageBytes {
		return nil, common.Invalid("image too large")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, common.Invalid("invalid image upload")
	}
	defer f.Close()

	img, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
	if err != nil {
		return nil, common.Invalid("invalid image upload")
	}
	req.Image = img
	return req, nil
}

// PplxChat relays the raw body to Perplexity and the answer back verbatim.
func (h *Handler) PplxChat(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || !json.Valid(body) {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}

	status, out, err := h.Pplx.Forward(c.Request.Context(), body)
	if err != nil {
		h.logger().Error("perplexity forward failed", "error", err)
		common.Fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if !json.Valid(out) {
		common.Fail(c, http.StatusInternalServerError, "Perplexity API error: "+ai.StripHTML(string(out)))
		return
	}
	c.Data(status, "application/json", out)
}
