package bootstrap_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"resumind/internal/bootstrap"
	"resumind/internal/shared/config"
)

const completionContent = `Sure! {"overallScore":81,"ATS":{"score":70,"tips":[{"type":"good","tip":"Standard headings"}]},"toneAndStyle":{"score":80,"tips":[]},"content":{"score":85,"tips":[]},"structure":{"score":90,"tips":[]},"skills":{"score":75,"tips":[]}}`

func fakeOpenRouter(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, _ := json.Marshal(completionContent)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"openrouter/free","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":` + string(content) + `}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T) config.Config {
	return config.Config{
		Port:            "0",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		LocalStoreDir:   t.TempDir(),
		Env:             "dev",
		ObjectStoreType: "local",
		KVBackend:       "memory",
		LLMProvider:     "openrouter",
	}
}

func build(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	app, err := bootstrap.Build(cfg)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app.Router
}

func TestHealthAndMetrics(t *testing.T) {
	router := build(t, testConfig(t))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"ok":true`) || !strings.Contains(resp.Body.String(), `"kv":true`) {
		t.Fatalf("unexpected health response %d %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "pipeline_started_total") {
		t.Fatalf("unexpected metrics response %d", resp.Code)
	}
}

func TestAnalyzeThroughOpenRouter(t *testing.T) {
	cfg := testConfig(t)
	cfg.OpenRouterAPIKey = "sk-test"
	cfg.OpenRouterBaseURL = fakeOpenRouter(t).URL
	router := build(t, cfg)

	body := `{"resumeText":"Jane Doe, Go developer","jobTitle":"Backend Engineer","jobDescription":"Build APIs"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var fb struct {
		OverallScore int `json:"overallScore"`
		Structure    struct {
			Score int `json:"score"`
		} `json:"structure"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&fb); err != nil {
		t.Fatalf("decode feedback: %v", err)
	}
	if fb.OverallScore != 81 || fb.Structure.Score != 90 {
		t.Fatalf("unexpected feedback %+v", fb)
	}
}

func TestAnalyzeWithoutAPIKeyIsMisconfigured(t *testing.T) {
	router := build(t, testConfig(t))

	body := `{"resumeText":"x","jobTitle":"y","jobDescription":"z"}`
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body)))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", resp.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["error"] != "OPENROUTER_API_KEY environment variable is not configured" {
		t.Fatalf("unexpected error %v", payload["error"])
	}
}

func TestUploadUnreadablePDFFailsAtExtraction(t *testing.T) {
	cfg := testConfig(t)
	cfg.OpenRouterAPIKey = "sk-test"
	cfg.OpenRouterBaseURL = fakeOpenRouter(t).URL
	router := build(t, cfg)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", "cv.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fileWriter.Write([]byte("definitely not a pdf")); err != nil {
		t.Fatalf("write file: %v", err)
	}
	_ = writer.WriteField("jobTitle", "Engineer")
	_ = writer.WriteField("jobDescription", "Go")
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Session-Id", "tab-1")
	req.Header.Set("X-Request-Id", "upload-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "extracting_text") {
		t.Fatalf("expected failing stage in details: %s", resp.Body.String())
	}

	list := httptest.NewRecorder()
	router.ServeHTTP(list, httptest.NewRequest(http.MethodGet, "/api/v1/resumes", nil))
	if strings.TrimSpace(list.Body.String()) != "[]" {
		t.Fatalf("expected no records, got %s", list.Body.String())
	}

	run := httptest.NewRecorder()
	router.ServeHTTP(run, httptest.NewRequest(http.MethodGet, "/api/v1/runs/upload-1", nil))
	if run.Code != http.StatusOK {
		t.Fatalf("expected run projection, got %d: %s", run.Code, run.Body.String())
	}
	if !strings.Contains(run.Body.String(), `"stage":"failed"`) || !strings.Contains(run.Body.String(), `"failed":true`) {
		t.Fatalf("expected failed run, got %s", run.Body.String())
	}
}

func TestUnknownKVBackendIsRejected(t *testing.T) {
	cfg := testConfig(t)
	cfg.KVBackend = "mongo"

	app, err := bootstrap.Build(cfg)
	if err == nil {
		_ = app.Close()
		t.Fatalf("expected an error for an unknown KV backend")
	}
	if !strings.Contains(err.Error(), `unknown KV_BACKEND "mongo"`) {
		t.Fatalf("unexpected error %v", err)
	}
}
