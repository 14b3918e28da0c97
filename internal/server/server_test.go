package server

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/HarshSankhe/behavior-guard-insight/internal/config"
	"github.com/HarshSankhe/behavior-guard-insight/internal/inference"
	"github.com/HarshSankhe/behavior-guard-insight/internal/model"
	"github.com/HarshSankhe/behavior-guard-insight/internal/synth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// writeCheckpoint generates a valid model checkpoint file into dir
func writeCheckpoint(t *testing.T, dir, id string) {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	cp := synth.Checkpoint(synth.Lookup("normal"), 50, 0, 0, rng)
	data, err := cp.Encode()
	if err != nil {
		t.Fatalf("Failed to encode checkpoint: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0o600); err != nil {
		t.Fatalf("Failed to write checkpoint: %v", err)
	}
}

// testConfig returns a minimal config for testing
func testConfig(modelsDir string) *config.Config {
	return &config.Config{
		Port:          "0",
		Env:           "development",
		LogLevel:      "error",
		LogFormat:     "text",
		ModelsDir:     modelsDir,
		GlobalModelID: model.GlobalID,
		RateLimitRPM:  0, // disabled so tests never throttle
	}
}

// newTestServer creates a server with a temp models dir holding a global model
func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	writeCheckpoint(t, dir, model.GlobalID)

	s, err := New(testConfig(dir))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	t.Cleanup(s.cache.Shutdown)
	return s
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}

	checks, ok := resp["checks"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected checks map, got %T", resp["checks"])
	}
	for _, name := range []string{"models_dir", "database", "model_cache"} {
		if checks[name] == nil {
			t.Errorf("Expected %s check in health response", name)
		}
	}
}

func TestHealthEndpoint_MissingModelsDir(t *testing.T) {
	dir := t.TempDir()
	s, err := New(testConfig(filepath.Join(dir, "gone")))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	t.Cleanup(s.cache.Shutdown)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["status"] != "degraded" {
		t.Errorf("Expected status 'degraded', got %v", resp["status"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/live", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/ready", nil)
	s.router.ServeHTTP(w, req)

	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"GET:/health",
		"GET:/health/live",
		"GET:/health/ready",
		"GET:/metrics",
		"GET:/ws",
		"POST:/v1/infer",
		"POST:/v1/test-inference",
		"GET:/v1/models",
		"GET:/v1/models/:id/info",
		"POST:/v1/models/:id/refresh",
		"POST:/v1/models/refresh",
		"DELETE:/v1/models/:id",
		"GET:/v1/assessments/:userId",
		"GET:/v1/high-risk",
		"GET:/v1/stats",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Core route %s not registered", e)
		}
	}
}

// ---------------------------------------------------------------------------
// Inference endpoint tests
// ---------------------------------------------------------------------------

func TestInferEndpoint(t *testing.T) {
	s := newTestServer(t)

	rng := rand.New(rand.NewSource(42))
	body, err := json.Marshal(map[string]interface{}{
		"userId":    "user-1",
		"sessionId": "sess-1",
		"events":    synth.Session(synth.Lookup("normal"), rng),
	})
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/infer", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	score, ok := resp["riskScore"].(float64)
	if !ok {
		t.Fatalf("Expected numeric riskScore, got %T", resp["riskScore"])
	}
	if score < 0 || score > 100 {
		t.Errorf("Risk score %v out of range", score)
	}

	details, ok := resp["details"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected details object, got %T", resp["details"])
	}
	if details["modelUsed"] == "" || details["modelUsed"] == nil {
		t.Error("Expected modelUsed in details")
	}
}

func TestInferEndpoint_EmptyEvents(t *testing.T) {
	s := newTestServer(t)

	body := `{"userId":"user-1","sessionId":"sess-1","events":[]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/infer", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestInferEndpoint_MissingUserID(t *testing.T) {
	s := newTestServer(t)

	body := `{"sessionId":"sess-1","events":[{"type":"keystroke"}]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/infer", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestTestInferenceEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/test-inference?profile=fast_typer", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["riskScore"] == nil {
		t.Error("Expected riskScore in test-inference response")
	}
}

func TestInferEndpoint_ConfiguredGlobalModel(t *testing.T) {
	dir := t.TempDir()
	writeCheckpoint(t, dir, "fleet")

	cfg := testConfig(dir)
	cfg.GlobalModelID = "fleet"
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	t.Cleanup(s.cache.Shutdown)

	rng := rand.New(rand.NewSource(42))
	body, err := json.Marshal(map[string]interface{}{
		"userId":    "user-1",
		"sessionId": "sess-1",
		"events":    synth.Session(synth.Lookup("normal"), rng),
	})
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/infer", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	details, ok := resp["details"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected details object, got %T", resp["details"])
	}
	if details["modelUsed"] != "fleet" {
		t.Errorf("Expected configured global model, got %v", details["modelUsed"])
	}
}

// ---------------------------------------------------------------------------
// Model admin endpoint tests
// ---------------------------------------------------------------------------

func TestModelsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/models", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	count, ok := resp["totalCount"].(float64)
	if !ok || count < 1 {
		t.Errorf("Expected at least one cached model, got %v", resp["totalCount"])
	}
}

func TestModelInfoNotFound(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/models/nope/info", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestModelIDParamValidation(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/models/bad*id/info", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid model id, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Assessment history tests
// ---------------------------------------------------------------------------

func TestAssessmentsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/assessments/user-1", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["assessments"] == nil {
		t.Error("Expected assessments list in response")
	}
}

func TestAssessmentsEndpoint_InvalidUserID(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/assessments/bad*id", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid user id, got %d", w.Code)
	}
}

func TestHighRiskEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/high-risk", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Stats endpoint test
// ---------------------------------------------------------------------------

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/stats", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	models, ok := resp["models"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected models object, got %T", resp["models"])
	}
	loaded, ok := models["loaded"].(float64)
	if !ok || loaded < 1 {
		t.Errorf("Expected at least one loaded model, got %v", models["loaded"])
	}
	if resp["realtime"] == nil {
		t.Error("Expected realtime stats in response")
	}
	if resp["assessments"] == nil {
		t.Error("Expected assessment stats in response")
	}
}

// ---------------------------------------------------------------------------
// Middleware tests
// ---------------------------------------------------------------------------

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "req-abc-123")
	s.router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-abc-123" {
		t.Errorf("Expected request ID passthrough, got %q", got)
	}
}

// ---------------------------------------------------------------------------
// 404 test
// ---------------------------------------------------------------------------

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/nonexistent", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Emitter tests
// ---------------------------------------------------------------------------

func TestHubEmitter_NilHub(t *testing.T) {
	e := &hubEmitter{}
	// Must not panic with no hub attached
	e.AssessmentCompleted(&inference.Assessment{ID: "asm_1", RiskScore: 90})
}
