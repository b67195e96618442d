package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/chat"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/identity"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/logger"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/observability"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/rag"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/school"
)

type ChatService interface {
	Chat(ctx context.Context, who *identity.Principal, req chat.Request) (*chat.Reply, error)
}

type IngestService interface {
	Ingest(ctx context.Context, req rag.IngestRequest) (*rag.IngestResult, error)
}

type JobService interface {
	Enqueue(ctx context.Context, req rag.IngestRequest, idempotencyKey string) (*rag.IngestJob, error)
	Get(ctx context.Context, jobID string) (*rag.IngestJob, error)
}

type AnswerService interface {
	Answer(ctx context.Context, req rag.AnswerRequest) (*rag.AnswerResult, error)
}

type QueryBridge interface {
	Answer(ctx context.Context, question, schoolID string) (any, error)
}

// ProfileStore returns gorm.ErrRecordNotFound for unknown users.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*school.Profile, error)
}

type Forwarder interface {
	Forward(ctx context.Context, body []byte) (int, []byte, error)
}

type Handler struct {
	Auth     identity.Authenticator
	ChatSvc  ChatService
	Ingester IngestService
	Jobs     JobService
	Answerer AnswerService
	Bridge   QueryBridge
	Profiles ProfileStore
	Pplx     Forwarder
	Metrics  *observability.Metrics
	Log      *logger.Logger
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// profileOf returns the caller's profile, or nil when there is none.
func (h *Handler) profileOf(ctx context.Context, who *identity.Principal) (*school.Profile, error) {
	if who == nil || h.Profiles == nil {
		return nil, nil
	}
	p, err := h.Profiles.GetProfile(ctx, who.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (h *Handler) logger() *logger.Logger {
	if h.Log == nil {
		return logger.Nop()
	}
	return h.Log
}
