package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eduquiz/examinsight/internal/i18n"
	"github.com/eduquiz/examinsight/internal/model"
	"github.com/eduquiz/examinsight/internal/narrative"
	"github.com/eduquiz/examinsight/internal/provider"
	"github.com/eduquiz/examinsight/internal/store"
	"github.com/eduquiz/examinsight/internal/worker"
)

const examResultPayload = `{
  "data": {
    "id": 42,
    "exam_id": 7,
    "user_id": 12,
    "exam": {"name": "Midterm Math"},
    "subject_data": {"id": 3, "name": "Mathematics"},
    "rank_data": {"name": "Good"},
    "total_time": 600,
    "total_time_used": 900,
    "total_score": 7.5,
    "total_question": 30,
    "total_question_blank": 2,
    "total_question_true": 20,
    "total_question_false": 10,
    "sections": [
      {
        "question_id": 100,
        "is_correct": true,
        "answer_choosed_data": {"id": 1},
        "question_data": {"id": 100, "labels": [{"name": "Geometry"}]}
      },
      {
        "question_id": 101,
        "is_correct": false,
        "question_data": {"id": 101, "labels": [{"name": "Algebra"}]}
      }
    ]
  }
}`

const llmSuggestions = `{"strengthsAnalysis":"strong geometry","weaknessesAnalysis":"weak algebra","improvementSuggestions":"practice daily","timeAnalysisSuggestions":"pace is slow"}`

type testEnv struct {
	handler  *Handler
	router   http.Handler
	store    *store.Store
	pool     *worker.Pool
	provider *httptest.Server
	llm      *httptest.Server

	providerStatus int
	providerBody   string
	llmStatus      int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}

	env := &testEnv{
		providerStatus: http.StatusOK,
		providerBody:   examResultPayload,
		llmStatus:      http.StatusOK,
	}

	env.provider = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(env.providerStatus)
		_, _ = w.Write([]byte(env.providerBody))
	}))
	t.Cleanup(env.provider.Close)

	env.llm = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if env.llmStatus != http.StatusOK {
			http.Error(w, "model unavailable", env.llmStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		content, _ := json.Marshal(llmSuggestions)
		fmt.Fprintf(w, `{"id":"cmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":%s},"finish_reason":"stop"}],"usage":{"prompt_tokens":100,"completion_tokens":50,"total_tokens":150}}`, content)
	}))
	t.Cleanup(env.llm.Close)

	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	env.store = s

	n, err := narrative.New(env.llm.URL+"/v1", "test-key", "test-model",
		narrative.CostRates{InputPer1K: 0.0025, OutputPer1K: 0.0075})
	if err != nil {
		t.Fatalf("narrative.New: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.pool = worker.NewPool(1, 10, 2, time.Millisecond, logger)
	t.Cleanup(env.pool.Close)

	p := provider.New(env.provider.URL, 5*time.Second)
	env.handler = New(s, p, n, env.pool, model.Thresholds{Strength: 80, Weakness: 50})

	r := chi.NewRouter()
	r.Use(i18n.Middleware("en"))
	env.handler.Routes(r)
	env.router = r
	return env
}

func (env *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) model.AnalysisResult {
	t.Helper()
	var result model.AnalysisResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

func TestAnalyzeExamResult(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/analysis/exam-result/42", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	result := decodeResult(t, rec)
	if result.ExamResultID != "42" || result.UserID != "12" || result.ExamID != "7" {
		t.Errorf("ids = %+v", result)
	}
	if result.Summary.Subject != "Mathematics" || result.Summary.Score != 7.5 {
		t.Errorf("summary = %+v", result.Summary)
	}
	if len(result.TopicAnalysis) != 2 {
		t.Fatalf("topic analysis = %+v", result.TopicAnalysis)
	}
	if len(result.Strengths) != 1 || result.Strengths[0] != "Geometry" {
		t.Errorf("strengths = %v", result.Strengths)
	}
	if len(result.Weaknesses) != 1 || result.Weaknesses[0] != "Algebra" {
		t.Errorf("weaknesses = %v", result.Weaknesses)
	}
	if result.Timing.Direction != model.PaceSlower || result.Timing.DeltaPercentage != 50 {
		t.Errorf("timing = %+v", result.Timing)
	}
	if result.Narrative.StrengthsAnalysis != "strong geometry" {
		t.Errorf("narrative = %+v", result.Narrative)
	}
	if result.Narrative.Usage.TotalTokens != 150 {
		t.Errorf("usage = %+v", result.Narrative.Usage)
	}
	wantCost := 100*0.0025/1000 + 50*0.0075/1000
	if result.Narrative.Usage.TotalCost != wantCost {
		t.Errorf("total cost = %v, want %v", result.Narrative.Usage.TotalCost, wantCost)
	}
	if result.Status != model.StatusCompleted {
		t.Errorf("status = %q", result.Status)
	}

	// The record is persisted and retrievable.
	rec = env.do(t, http.MethodGet, "/api/analysis/"+result.ID, "")
	if rec.Code != http.StatusOK {
		t.Errorf("get persisted analysis: status = %d", rec.Code)
	}
}

func TestAnalyzeExamResult_NarrativeFailureDegrades(t *testing.T) {
	env := newTestEnv(t)
	env.llmStatus = http.StatusInternalServerError

	rec := env.do(t, http.MethodGet, "/api/analysis/exam-result/42", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	result := decodeResult(t, rec)
	if result.Narrative != (model.Narrative{}) {
		t.Errorf("expected empty narrative on model failure, got %+v", result.Narrative)
	}
	// Numeric analysis is unaffected.
	if len(result.TopicAnalysis) != 2 || result.Timing.Direction != model.PaceSlower {
		t.Errorf("numeric analysis degraded: %+v", result)
	}
}

func TestAnalyzeExamResult_InvalidInput(t *testing.T) {
	env := newTestEnv(t)
	env.providerBody = `{"data": {"exam_id": 1, "user_id": 2, "total_question": 0,
		"sections": [{"question_id": 1, "question_data": {"id": 1}}]}}`

	rec := env.do(t, http.MethodGet, "/api/analysis/exam-result/1", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestAnalyzeExamResult_ProviderDown(t *testing.T) {
	env := newTestEnv(t)
	env.providerStatus = http.StatusInternalServerError

	rec := env.do(t, http.MethodGet, "/api/analysis/exam-result/1", "")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestDeferredAnalysis(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/analysis/exam", `{"examResultId":"42"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	result := decodeResult(t, rec)
	if result.Status != model.StatusProcessing {
		t.Errorf("initial status = %q, want processing", result.Status)
	}
	if result.Narrative.StrengthsAnalysis != "" {
		t.Errorf("narrative should not be generated yet: %+v", result.Narrative)
	}

	// The background worker fills in the narrative.
	deadline := time.Now().Add(2 * time.Second)
	for {
		stored, err := env.store.GetAnalysis(result.ID)
		if err != nil {
			t.Fatalf("GetAnalysis: %v", err)
		}
		if stored.Status == model.StatusCompleted {
			if stored.Narrative.StrengthsAnalysis != "strong geometry" {
				t.Errorf("narrative = %+v", stored.Narrative)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("narrative never completed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDeferredAnalysis_BadRequest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/analysis/exam", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListAnalyses(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodGet, "/api/analysis/exam-result/42", "")
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed analysis: status = %d", rec.Code)
		}
	}

	rec := env.do(t, http.MethodGet, "/api/analysis?userId=12&pageSize=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Data     []model.AnalysisResult `json:"data"`
		Total    int                    `json:"total"`
		Page     int                    `json:"page"`
		PageSize int                    `json:"pageSize"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || len(resp.Data) != 1 || resp.PageSize != 1 {
		t.Errorf("list = total %d, len %d", resp.Total, len(resp.Data))
	}

	// A filter with no matches returns an empty array, not null.
	rec = env.do(t, http.MethodGet, "/api/analysis?userId=999", "")
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("empty list body = %s", rec.Body.String())
	}
}

func TestGetAnalysisNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/analysis/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestVietnameseRequestUsesLocalizedFallbacks(t *testing.T) {
	env := newTestEnv(t)
	env.providerBody = `{"data": {"id": 9, "exam_id": 1, "user_id": 2,
		"total_time": 60, "total_time_used": 50, "total_score": 5, "total_question": 10,
		"sections": [{"question_id": 1, "is_correct": true, "answer_choosed_data": {"id": 1},
			"question_data": {"id": 1, "labels": [{"name": "Algebra"}]}}]}}`

	rec := env.do(t, http.MethodGet, "/api/analysis/exam-result/9?language=vi", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	result := decodeResult(t, rec)
	if result.Summary.Subject != "Chưa xác định" {
		t.Errorf("subject fallback = %q", result.Summary.Subject)
	}
	if result.Detail.Rating != "Không xếp hạng" {
		t.Errorf("rating fallback = %q", result.Detail.Rating)
	}
}
