package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/ai"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/chat"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/common"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/config"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/httpapi/handlers"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/identity"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/observability"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/rag"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/school"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuth struct{}

func (fakeAuth) Authenticate(ctx context.Context, token string) (*identity.Principal, error) {
	switch token {
	case "parent-token":
		return &identity.Principal{UserID: "parent-1"}, nil
	case "stranger-token":
		return &identity.Principal{UserID: "stranger"}, nil
	case "outage-token":
		return &identity.Principal{UserID: "outage"}, nil
	}
	return nil, identity.ErrInvalidToken
}

type fakeChat struct {
	last chat.Request
	who  *identity.Principal
	err  error
}

func (f *fakeChat) Chat(ctx context.Context, who *identity.Principal, req chat.Request) (*chat.Reply, error) {
	f.who, f.last = who, req
	if f.err != nil {
		return nil, f.err
	}
	return &chat.Reply{Text: "hello " + who.UserID}, nil
}

type fakeIngest struct {
	last rag.IngestRequest
}

func (f *fakeIngest) Ingest(ctx context.Context, req rag.IngestRequest) (*rag.IngestResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	f.last = req
	return &rag.IngestResult{DocumentID: "doc-1", InsertedChunks: 3}, nil
}

type fakeJobs struct {
	key string
}

func (f *fakeJobs) Enqueue(ctx context.Context, req rag.IngestRequest, key string) (*rag.IngestJob, error) {
	f.key = key
	return &rag.IngestJob{ID: "01JOB", TenantID: req.TenantID, Status: rag.JobQueued}, nil
}

func (f *fakeJobs) Get(ctx context.Context, id string) (*rag.IngestJob, error) {
	if id != "01JOB" {
		return nil, common.NotFound("job not found")
	}
	doc := "doc-1"
	return &rag.IngestJob{ID: id, Status: rag.JobSucceeded, DocumentID: &doc, InsertedChunks: 2}, nil
}

type fakeAnswer struct {
	last rag.AnswerRequest
}

func (f *fakeAnswer) Answer(ctx context.Context, req rag.AnswerRequest) (*rag.AnswerResult, error) {
	f.last = req
	if req.TenantID == "" {
		return nil, common.Forbidden("No tenant is linked to this account.")
	}
	res := &rag.AnswerResult{Text: "answer [1]", Chunks: []rag.RetrievedChunk{{ID: 7, Content: "c"}}}
	if req.Citations {
		res.Citations = map[string]map[string]any{"[1]": {"page": 1}}
	}
	return res, nil
}

type fakeBridge struct {
	schoolID string
}

func (f *fakeBridge) Answer(ctx context.Context, question, schoolID string) (any, error) {
	f.schoolID = schoolID
	if question == "" {
		return nil, common.Invalid("Missing question")
	}
	return []string{"Sam"}, nil
}

type fakeProfiles struct{}

func (fakeProfiles) GetProfile(ctx context.Context, userID string) (*school.Profile, error) {
	if userID == "parent-1" {
		sid := "s1"
		return &school.Profile{UserID: userID, TenantID: "t1", SchoolID: &sid, Role: school.RoleParent}, nil
	}
	if userID == "outage" {
		return nil, errors.New("profiles: connection refused")
	}
	return nil, gorm.ErrRecordNotFound
}

type fakePplx struct {
	body []byte
}

func (f *fakePplx) Forward(ctx context.Context, body []byte) (int, []byte, error) {
	f.body = body
	return http.StatusTooManyRequests, []byte(`{"error":{"message":"slow down"}}`), nil
}

type testServer struct {
	engine *gin.Engine
	chat   *fakeChat
	ingest *fakeIngest
	jobs   *fakeJobs
	answer *fakeAnswer
	bridge *fakeBridge
	pplx   *fakePplx
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := &testServer{
		chat:   &fakeChat{},
		ingest: &fakeIngest{},
		jobs:   &fakeJobs{},
		answer: &fakeAnswer{},
		bridge: &fakeBridge{},
		pplx:   &fakePplx{},
	}
	h := &handlers.Handler{
		Auth:     fakeAuth{},
		ChatSvc:  s.chat,
		Ingester: s.ingest,
		Jobs:     s.jobs,
		Answerer: s.answer,
		Bridge:   s.bridge,
		Profiles: fakeProfiles{},
		Pplx:     s.pplx,
		Metrics:  observability.New(reg),
	}
	cfg := config.Config{AllowedOrigins: []string{"*"}, AdminToken: "admin-secret"}
	s.engine = NewRouter(h, cfg, reg)
	return s
}

func (s *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func bearer(tok string) map[string]string { return map[string]string{"Authorization": "Bearer " + tok} }

func TestPingAndNotFound(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = s.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", decode(t, w)["error"])
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodOptions, "/functions/v1/rag-ingest", "", map[string]string{
		"Origin":                         "https://portal.school.test",
		"Access-Control-Request-Method":  "POST",
		"Access-Control-Request-Headers": "x-admin-token, content-type",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, strings.ToLower(w.Header().Get("Access-Control-Allow-Headers")), "x-admin-token")
}

func TestChat_ValidatesBeforeAuth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/chat", `{"messages":"not json"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Messages must be an array or a valid JSON string.", decode(t, w)["error"])

	w = s.do(http.MethodPost, "/api/chat", `{"messages":{"role":"user"}}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Messages must be an array.", decode(t, w)["error"])

	w = s.do(http.MethodPost, "/api/chat", `{"messages":[]}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Missing or invalid authorization header.", decode(t, w)["error"])

	w = s.do(http.MethodPost, "/api/chat", `{"messages":[]}`, bearer("forged"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid Supabase JWT.", decode(t, w)["error"])
}

func TestChat_JSON(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/chat",
		`{"messages":[{"role":"user","content":"hi"}],"model":"gpt-4o","provider":"openai"}`,
		bearer("parent-token"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{"reply": "hello parent-1"}, decode(t, w))
	assert.Equal(t, "gpt-4o", s.chat.last.Model)
	assert.Equal(t, []ai.Message{{Role: ai.RoleUser, Content: "hi"}}, s.chat.last.Messages)
}

func TestChat_MultipartWithImage(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("messages", `[{"role":"user","content":"what is this?"}]`))
	require.NoError(t, mw.WriteField("provider", "perplexity"))
	fw, err := mw.CreateFormFile("image", "photo.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/chat", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer stranger-token")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "perplexity", s.chat.last.Provider)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, s.chat.last.Image)
	assert.Equal(t, "what is this?", s.chat.last.Messages[0].Content)
}

func TestChat_UpstreamError(t *testing.T) {
	s := newTestServer(t)
	s.chat.err = common.Upstream(errors.New("Perplexity API error: Bad gateway"))

	w := s.do(http.MethodPost, "/api/chat", `{"messages":[]}`, bearer("parent-token"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Perplexity API error: Bad gateway", decode(t, w)["error"])
}

func TestRoute(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/route", `{"text":"summarize the chapter","has_ingested_document":true,"requested":"openai"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"choice": "rag", "rule": "document reference"}, decode(t, w))

	w = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `school_ai_router_choices_total{choice="rag"} 1`)
}

func TestRagIngest(t *testing.T) {
	s := newTestServer(t)
	admin := map[string]string{"x-admin-token": "admin-secret"}

	w := s.do(http.MethodPost, "/functions/v1/rag-ingest", `{"tenantId":"t1","content":"x"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthorized", decode(t, w)["error"])

	w = s.do(http.MethodPost, "/functions/v1/rag-ingest", `{"tenantId":"t1","content":"x"}`, map[string]string{"x-admin-token": "admin-secreT"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/functions/v1/rag-ingest", `{"content":"x"}`, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing tenantId or content/storagePath", decode(t, w)["error"])

	w = s.do(http.MethodPost, "/functions/v1/rag-ingest", `{"tenantId":"t1","title":"Rules","content":"x","metadata":{"k":"v"}}`, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"document_id": "doc-1", "inserted_chunks": float64(3)}, decode(t, w))
	assert.Equal(t, "Rules", s.ingest.last.Title)
	assert.Equal(t, "v", s.ingest.last.Metadata["k"])
}

func TestRagIngest_AsyncAndJobs(t *testing.T) {
	s := newTestServer(t)
	admin := map[string]string{"x-admin-token": "admin-secret", "Idempotency-Key": "abc"}

	w := s.do(http.MethodPost, "/functions/v1/rag-ingest", `{"tenantId":"t1","content":"x","async":true}`, admin)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "01JOB", decode(t, w)["job_id"])
	assert.Equal(t, "abc", s.jobs.key)

	w = s.do(http.MethodGet, "/functions/v1/rag-ingest/jobs/01JOB", "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	job := decode(t, w)["job"].(map[string]any)
	assert.Equal(t, "succeeded", job["status"])
	assert.Equal(t, "doc-1", job["document_id"])

	w = s.do(http.MethodGet, "/functions/v1/rag-ingest/jobs/other", "", admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRagAnswer(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/functions/v1/rag-answer", `{"query":"q"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Missing Authorization header", decode(t, w)["error"])

	w = s.do(http.MethodPost, "/functions/v1/rag-answer", `{}`, bearer("parent-token"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing query", decode(t, w)["error"])

	w = s.do(http.MethodPost, "/functions/v1/rag-answer", `{"query":"q"}`, bearer("stranger-token"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/functions/v1/rag-answer?citations=1", `{"query":"q","k":3}`, bearer("parent-token"))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "answer [1]", body["text"])
	assert.Len(t, body["chunks"], 1)
	assert.Contains(t, body, "citations")
	assert.Equal(t, "t1", s.answer.last.TenantID)
	assert.Equal(t, 3, s.answer.last.K)
	assert.Nil(t, s.answer.last.Temperature)
}

func TestDBQuery(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/functions/v1/db-query", `{"question":"students in class 5"}`, bearer("parent-token"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"result": []any{"Sam"}}, decode(t, w))
	assert.Equal(t, "s1", s.bridge.schoolID)

	w = s.do(http.MethodPost, "/functions/v1/db-query", `{}`, bearer("stranger-token"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "", s.bridge.schoolID)
}

func TestDBQuery_MissingQuestionCheckedBeforeProfile(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/functions/v1/db-query", `{"question":"  "}`, bearer("outage-token"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]any{"error": "Missing question"}, decode(t, w))

	w = s.do(http.MethodPost, "/functions/v1/db-query", `{"question":"students in class 5"}`, bearer("outage-token"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPplxChatRelaysVerbatim(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/functions/v1/pplx-chat", `{"model":"sonar","messages":[]}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":{"message":"slow down"}}`, w.Body.String())
	assert.JSONEq(t, `{"model":"sonar","messages":[]}`, string(s.pplx.body))

	w = s.do(http.MethodPost, "/functions/v1/pplx-chat", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
