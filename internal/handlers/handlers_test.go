package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"example.com/finance-visualizer/backend/internal/ai"
	"example.com/finance-visualizer/backend/internal/analysis"
	"example.com/finance-visualizer/backend/internal/models"
	"example.com/finance-visualizer/backend/internal/notifications"
	"example.com/finance-visualizer/backend/internal/session"
	"example.com/finance-visualizer/backend/internal/transactions"
)

const sampleCSV = "fecha;descripción;ingreso;gasto;categoría\n" +
	"2023-01-05;Sueldo;1500;;\n" +
	"2023-01-10;Super;;120,50;Comida\n" +
	"2023-02-03;Cine;;30;Ocio\n" +
	"2023-02-04;Nada;;;\n"

type testValidator struct {
	validator *validator.Validate
}

func (v testValidator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}

type fakeAIClient struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (f *fakeAIClient) Chat(context.Context, []ai.Message) (string, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", nil, f.err
	}
	return f.reply, []byte(`{}`), nil
}

type fakeUploads struct {
	mu      sync.Mutex
	created []models.Upload
	reset   []uuid.UUID
}

func (f *fakeUploads) Create(_ context.Context, upload models.Upload) (models.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	upload.ID = int64(len(f.created) + 1)
	f.created = append(f.created, upload)
	return upload, nil
}

func (f *fakeUploads) MarkReset(_ context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset = append(f.reset, sessionID)
	return nil
}

func (f *fakeUploads) Overview(context.Context) (models.UploadOverview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.UploadOverview{TotalUploads: len(f.created), TotalIncome: decimal.NewFromInt(1500)}, nil
}

type fakeRequests struct {
	mu   sync.Mutex
	logs []models.AIRequest
}

func (f *fakeRequests) LogRequest(_ context.Context, log models.AIRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, log)
	return nil
}

type testEnv struct {
	e        *echo.Echo
	sessions *session.Store
	uploads  *fakeUploads
	requests *fakeRequests
	sessionH *SessionHandler
}

func newTestEnv(client ai.Client, withDB bool) *testEnv {
	e := echo.New()
	e.Validator = testValidator{validator: validator.New()}

	sessions := session.NewStore(10, time.Hour, 10)
	hub := notifications.NewHub()
	env := &testEnv{e: e, sessions: sessions}

	var uploads UploadStore
	var requests AIRequestLogger
	if withDB {
		env.uploads = &fakeUploads{}
		env.requests = &fakeRequests{}
		uploads = env.uploads
		requests = env.requests
	}

	aiHandler := NewAIHandler(ai.NewService(client), sessions, hub, requests, "fake", "fake-model", time.Second)
	env.sessionH = NewSessionHandler(sessions, uploads, hub, aiHandler, false, 1<<20, "header")
	statsHandler := NewStatsHandler(uploads, sessions)

	e.GET("/health", Health(sessions, withDB))
	api := e.Group("/api/v1")
	api.POST("/sessions", env.sessionH.Create)
	api.GET("/sessions/:id", env.sessionH.Get)
	api.DELETE("/sessions/:id", env.sessionH.Delete)
	api.GET("/sessions/:id/transactions", env.sessionH.Transactions)
	api.GET("/sessions/:id/insights", aiHandler.GetInsights)
	api.POST("/sessions/:id/insights", aiHandler.RegenerateInsights)
	api.POST("/sessions/:id/chat", aiHandler.Chat)
	api.GET("/sessions/:id/chat", aiHandler.History)
	api.GET("/sessions/:id/export/json", env.sessionH.ExportJSON)
	api.GET("/sessions/:id/export/csv", env.sessionH.ExportCSV)
	api.GET("/sessions/:id/export/pdf", env.sessionH.ExportPDF)
	api.GET("/stats/overview", statsHandler.Overview)

	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) upload(t *testing.T, fileName, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	return env.do(t, http.MethodPost, "/api/v1/sessions", buf.Bytes(), writer.FormDataContentType())
}

func (env *testEnv) createSession(t *testing.T) SessionResponse {
	t.Helper()

	rec := env.upload(t, "movimientos.csv", sampleCSV)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var response SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return response
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

// TestCreateSession проверяет загрузку файла и итоги анализа.
func TestCreateSession(t *testing.T) {
	env := newTestEnv(&fakeAIClient{reply: "ok"}, true)
	response := env.createSession(t)

	if response.SessionID == uuid.Nil || response.FileName != "movimientos.csv" {
		t.Fatalf("unexpected session: %+v", response)
	}
	if response.ChatGreeting != ai.ChatGreeting {
		t.Fatalf("expected greeting, got %q", response.ChatGreeting)
	}
	if response.Analysis.TotalIncome != 1500 || response.Analysis.TotalExpenses != 150.5 || response.Analysis.NetBalance != 1349.5 {
		t.Fatalf("unexpected totals: %+v", response.Analysis)
	}
	if len(response.Analysis.IncomeExpenseData) != 2 || response.Analysis.IncomeExpenseData[0].Label != "ene 2023" {
		t.Fatalf("unexpected monthly data: %+v", response.Analysis.IncomeExpenseData)
	}
	if response.Analysis.ExpenseCategoryData[0].Category != "Comida" {
		t.Fatalf("unexpected categories: %+v", response.Analysis.ExpenseCategoryData)
	}
	if response.Report.Separator != ";" || response.Report.DroppedZero != 1 || response.Report.Kept != 3 {
		t.Fatalf("unexpected report: %+v", response.Report)
	}
	if response.Insights.Status != string(session.InsightsIdle) {
		t.Fatalf("expected idle insights, got %s", response.Insights.Status)
	}

	if len(env.uploads.created) != 1 || env.uploads.created[0].SessionID != response.SessionID {
		t.Fatalf("expected upload to be recorded, got %+v", env.uploads.created)
	}
	if env.sessions.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", env.sessions.Len())
	}
}

// TestCreateSessionRejections проверяет ошибки загрузки.
func TestCreateSessionRejections(t *testing.T) {
	env := newTestEnv(&fakeAIClient{reply: "ok"}, false)

	rec := env.upload(t, "datos.txt", sampleCSV)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-csv file, got %d", rec.Code)
	}

	rec = env.upload(t, "datos.csv", "fecha,ingreso\n2023-01-01,10")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing columns, got %d", rec.Code)
	}
	if message := errorMessage(t, rec); !strings.Contains(message, "gasto") {
		t.Fatalf("expected message to name gasto, got %q", message)
	}

	rec = env.upload(t, "datos.csv", "fecha,ingreso,gasto")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for single line, got %d", rec.Code)
	}

	rec = env.upload(t, "datos.csv", "fecha,ingreso,gasto\n2023-01-01,0,0")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty result, got %d", rec.Code)
	}
	if message := errorMessage(t, rec); message != errNoTransactions {
		t.Fatalf("expected %q, got %q", errNoTransactions, message)
	}

	if env.sessions.Len() != 0 {
		t.Fatalf("expected no sessions, got %d", env.sessions.Len())
	}
}

// TestSessionLookupErrors проверяет ответы для неизвестных сессий.
func TestSessionLookupErrors(t *testing.T) {
	env := newTestEnv(&fakeAIClient{reply: "ok"}, false)

	if rec := env.do(t, http.MethodGet, "/api/v1/sessions/not-a-uuid", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/sessions/"+uuid.NewString(), nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

// TestDeleteSession проверяет сброс сессии.
func TestDeleteSession(t *testing.T) {
	env := newTestEnv(&fakeAIClient{reply: "ok"}, true)
	created := env.createSession(t)
	path := "/api/v1/sessions/" + created.SessionID.String()

	if rec := env.do(t, http.MethodDelete, path, nil, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, path, nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after reset, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, path+"/chat", []byte(`{"message":"hola"}`), echo.MIMEApplicationJSON); rec.Code != http.StatusNotFound {
		t.Fatalf("expected chat to be unavailable after reset, got %d", rec.Code)
	}
	if len(env.uploads.reset) != 1 || env.uploads.reset[0] != created.SessionID {
		t.Fatalf("expected upload reset to be recorded, got %v", env.uploads.reset)
	}
}

// TestEvictedSessionCleanup проверяет, что вытесненная лимитом сессия закрывается как при сбросе.
func TestEvictedSessionCleanup(t *testing.T) {
	sessions := session.NewStore(1, time.Hour, 10)
	hub := notifications.NewHub()
	uploads := &fakeUploads{}
	handler := NewSessionHandler(sessions, uploads, hub, nil, false, 1<<20, "header")
	sessions.OnClose(handler.HandleClosed)

	first := sessions.Create("uno.csv", nil, analysis.Aggregate(nil), transactions.Report{})
	events, unsubscribe := hub.Subscribe(first.ID)
	defer unsubscribe()

	sessions.Create("dos.csv", nil, analysis.Aggregate(nil), transactions.Report{})

	if len(uploads.reset) != 1 || uploads.reset[0] != first.ID {
		t.Fatalf("expected evicted upload to be reset, got %v", uploads.reset)
	}

	select {
	case event := <-events:
		if event.Type != notifications.EventSessionClosed {
			t.Fatalf("expected session_closed, got %s", event.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("expected session_closed event")
	}

	if hub.Subscribers(first.ID) != 0 {
		t.Fatal("expected subscribers to be released")
	}
}

// TestTransactionsPagination проверяет постраничную выдачу операций.
func TestTransactionsPagination(t *testing.T) {
	env := newTestEnv(&fakeAIClient{reply: "ok"}, false)
	created := env.createSession(t)
	path := "/api/v1/sessions/" + created.SessionID.String() + "/transactions"

	rec := env.do(t, http.MethodGet, path+"?limit=2&offset=1", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var response TransactionListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Total != 3 || len(response.Transactions) != 2 {
		t.Fatalf("unexpected page: %+v", response)
	}
	if response.Transactions[0].Description != "Super" || response.Transactions[0].Type != "expense" {
		t.Fatalf("unexpected transaction: %+v", response.Transactions[0])
	}

	if rec := env.do(t, http.MethodGet, path+"?limit=0", nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected default limit, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, path+"?limit=5000", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized limit, got %d", rec.Code)
	}
}

// TestChat проверяет ответ модели и историю диалога.
func TestChat(t *testing.T) {
	env := newTestEnv(&fakeAIClient{reply: "Tu mayor gasto fue Comida."}, true)
	created := env.createSession(t)
	path := "/api/v1/sessions/" + created.SessionID.String() + "/chat"

	rec := env.do(t, http.MethodPost, path, []byte(`{"message":"¿Cuál fue mi gasto más grande?"}`), echo.MIMEApplicationJSON)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var reply ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if reply.Reply != "Tu mayor gasto fue Comida." || reply.Fallback {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	rec = env.do(t, http.MethodGet, path, nil, "")
	var history ChatHistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if history.Greeting != ai.ChatGreeting || len(history.Messages) != 2 {
		t.Fatalf("unexpected history: %+v", history)
	}
	if history.Messages[1].Role != ai.RoleAssistant {
		t.Fatalf("expected assistant reply last, got %+v", history.Messages[1])
	}

	if len(env.requests.logs) != 1 || env.requests.logs[0].RequestType != models.AIRequestChat || !env.requests.logs[0].Success {
		t.Fatalf("expected chat request to be logged, got %+v", env.requests.logs)
	}

	if rec := env.do(t, http.MethodPost, path, []byte(`{"message":"   "}`), echo.MIMEApplicationJSON); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty message, got %d", rec.Code)
	}
}

// TestChatFallback проверяет шаблонный ответ при ошибке провайдера.
func TestChatFallback(t *testing.T) {
	env := newTestEnv(&fakeAIClient{err: errors.New("quota exceeded")}, false)
	created := env.createSession(t)
	path := "/api/v1/sessions/" + created.SessionID.String() + "/chat"

	rec := env.do(t, http.MethodPost, path, []byte(`{"message":"hola"}`), echo.MIMEApplicationJSON)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var reply ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if reply.Reply != ai.FallbackChatReply || !reply.Fallback {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	sess, _ := env.sessions.Get(created.SessionID)
	if len(sess.History()) != 0 {
		t.Fatal("expected failed exchange not to be stored")
	}
}

// TestRegenerateInsights проверяет синхронную генерацию и шаблонный отчет.
func TestRegenerateInsights(t *testing.T) {
	client := &fakeAIClient{reply: "## Resumen General\nBien"}
	env := newTestEnv(client, true)
	created := env.createSession(t)
	path := "/api/v1/sessions/" + created.SessionID.String() + "/insights"

	rec := env.do(t, http.MethodPost, path, nil, "")
	var insights InsightsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &insights); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if insights.Status != string(session.InsightsReady) || insights.Text != "## Resumen General\nBien" {
		t.Fatalf("unexpected insights: %+v", insights)
	}

	client.mu.Lock()
	client.err = errors.New("timeout")
	client.mu.Unlock()

	rec = env.do(t, http.MethodPost, path, nil, "")
	if err := json.Unmarshal(rec.Body.Bytes(), &insights); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if insights.Status != string(session.InsightsFailed) || !insights.Fallback || !strings.Contains(insights.Text, "Resumen General") {
		t.Fatalf("unexpected fallback insights: %+v", insights)
	}

	rec = env.do(t, http.MethodGet, path, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(env.requests.logs) != 2 || env.requests.logs[1].Success {
		t.Fatalf("expected two logged requests, got %+v", env.requests.logs)
	}
}

// TestAutoInsights проверяет фоновую генерацию после загрузки.
func TestAutoInsights(t *testing.T) {
	env := newTestEnv(&fakeAIClient{reply: "## Insights"}, false)
	env.sessionH.AutoInsights = true
	created := env.createSession(t)

	sess, ok := env.sessions.Get(created.SessionID)
	if !ok {
		t.Fatal("expected session")
	}

	deadline := time.Now().Add(2 * time.Second)
	for sess.Insights().Status != session.InsightsReady {
		if time.Now().After(deadline) {
			t.Fatalf("expected insights to be ready, got %+v", sess.Insights())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestExports проверяет выгрузки CSV, JSON и PDF.
func TestExports(t *testing.T) {
	env := newTestEnv(&fakeAIClient{reply: "ok"}, false)
	created := env.createSession(t)
	base := "/api/v1/sessions/" + created.SessionID.String() + "/export"

	rec := env.do(t, http.MethodGet, base+"/csv?type=categories&sep=semicolon", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "category;total;share_percent\nComida;120.50;80.1\n") {
		t.Fatalf("unexpected csv:\n%s", rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get(echo.HeaderContentDisposition), "movimientos-") {
		t.Fatalf("unexpected disposition %q", rec.Header().Get(echo.HeaderContentDisposition))
	}

	if rec := env.do(t, http.MethodGet, base+"/csv?type=unknown", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, base+"/json", nil, "")
	var exported ExportJSONResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &exported); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(exported.Transactions) != 3 || exported.SessionID != created.SessionID {
		t.Fatalf("unexpected export: %+v", exported)
	}

	rec = env.do(t, http.MethodGet, base+"/pdf", nil, "")
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected pdf, got %d", rec.Code)
	}
}

// TestStatsOverview проверяет статистику с базой и без нее.
func TestStatsOverview(t *testing.T) {
	env := newTestEnv(&fakeAIClient{reply: "ok"}, false)
	if rec := env.do(t, http.MethodGet, "/api/v1/stats/overview", nil, ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without database, got %d", rec.Code)
	}

	env = newTestEnv(&fakeAIClient{reply: "ok"}, true)
	env.createSession(t)

	rec := env.do(t, http.MethodGet, "/api/v1/stats/overview", nil, "")
	var overview OverviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &overview); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if overview.TotalUploads != 1 || overview.ActiveSessions != 1 || overview.TotalIncome != 1500 {
		t.Fatalf("unexpected overview: %+v", overview)
	}
}

// TestHealth проверяет статус сервиса.
func TestHealth(t *testing.T) {
	env := newTestEnv(&fakeAIClient{reply: "ok"}, false)

	rec := env.do(t, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response %d: %s", rec.Code, rec.Body.String())
	}
}
