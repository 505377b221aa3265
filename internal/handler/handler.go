package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/eduquiz/examinsight/internal/analysis"
	"github.com/eduquiz/examinsight/internal/i18n"
	"github.com/eduquiz/examinsight/internal/model"
	"github.com/eduquiz/examinsight/internal/narrative"
	"github.com/eduquiz/examinsight/internal/provider"
	"github.com/eduquiz/examinsight/internal/store"
	"github.com/eduquiz/examinsight/internal/worker"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store      *store.Store
	provider   *provider.Client
	narrative  *narrative.Client
	pool       *worker.Pool
	thresholds model.Thresholds
}

// New creates a new Handler.
func New(s *store.Store, p *provider.Client, n *narrative.Client, pool *worker.Pool, th model.Thresholds) *Handler {
	return &Handler{store: s, provider: p, narrative: n, pool: pool, thresholds: th}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/analysis/exam-result/{id}", h.handleAnalyzeExamResult)
	r.Post("/api/analysis/exam", h.handleAnalyzeExamDeferred)
	r.Get("/api/analysis", h.handleListAnalyses)
	r.Get("/api/analysis/{id}", h.handleGetAnalysis)
	r.Get("/healthz", h.handleHealth)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// handleAnalyzeExamResult runs the full pipeline synchronously, narrative
// included, and returns the persisted record.
func (h *Handler) handleAnalyzeExamResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, attempt, err := h.analyze(r.Context(), id)
	if err != nil {
		h.writeAnalysisError(w, id, err)
		return
	}

	result.Narrative = h.generateNarrative(r.Context(), h.narrativeRequest(result, attempt.Language))
	result.Status = model.StatusCompleted

	if err := h.store.SaveAnalysis(*result); err != nil {
		slog.Error("save analysis", "examResult", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save analysis")
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type deferredRequest struct {
	ExamResultID string `json:"examResultId"`
}

// handleAnalyzeExamDeferred persists the numeric analysis immediately and
// hands the narrative off to the background queue. Clients poll the record
// until status flips to completed.
func (h *Handler) handleAnalyzeExamDeferred(w http.ResponseWriter, r *http.Request) {
	var req deferredRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExamResultID == "" {
		writeError(w, http.StatusBadRequest, "examResultId is required")
		return
	}

	result, attempt, err := h.analyze(r.Context(), req.ExamResultID)
	if err != nil {
		h.writeAnalysisError(w, req.ExamResultID, err)
		return
	}
	result.Status = model.StatusProcessing

	// The history window must be read before the record lands, otherwise
	// the attempt would show up as its own prior attempt.
	narrativeReq := h.narrativeRequest(result, attempt.Language)

	if err := h.store.SaveAnalysis(*result); err != nil {
		slog.Error("save analysis", "examResult", req.ExamResultID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save analysis")
		return
	}

	id := result.ID
	if err := h.pool.Submit(id, func(ctx context.Context) error {
		n, err := h.narrative.Generate(ctx, narrativeReq)
		if err != nil {
			return err
		}
		return h.store.UpdateNarrative(id, n)
	}); err != nil {
		slog.Error("enqueue narrative", "analysis", result.ID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "analysis queue full, retry later")
		return
	}

	writeJSON(w, http.StatusAccepted, result)
}

// analyze fetches the exam result and produces everything except the
// narrative. The returned attempt carries the request language for prompt
// selection.
func (h *Handler) analyze(ctx context.Context, examResultID string) (*model.AnalysisResult, *model.Attempt, error) {
	attempt, err := h.provider.FetchExamResult(ctx, examResultID)
	if err != nil {
		return nil, nil, err
	}
	attempt.Language = i18n.FromContext(ctx)

	outcomes := analysis.NormalizeOutcomes(attempt.Sections)
	topics := analysis.CalculateTopicAnalysis(outcomes)
	strengths, weaknesses := analysis.Classify(topics, h.thresholds)

	timing, err := analysis.AnalyzeTiming(attempt.NominalTime, attempt.WorkingTime, attempt.TotalQuestions)
	if err != nil {
		return nil, nil, err
	}

	result := &model.AnalysisResult{
		ID:           uuid.NewString(),
		ExamResultID: attempt.ExamResultID,
		ExamID:       attempt.ExamID,
		UserID:       attempt.UserID,
		SubjectID:    attempt.SubjectID,
		Summary: model.Summary{
			ExamName: attempt.ExamName,
			Subject:  attempt.Subject,
			Score:    attempt.Score,
			Time:     attempt.NominalTime,
		},
		Detail: model.Detail{
			TotalQuestions: attempt.TotalQuestions,
			EmptyAnswers:   attempt.EmptyAnswers,
			CorrectAnswers: attempt.CorrectAnswers,
			WrongAnswers:   attempt.WrongAnswers,
			Rating:         attempt.Rating,
		},
		TopicAnalysis: topics,
		Timing:        timing,
		Strengths:     strengths,
		Weaknesses:    weaknesses,
		Status:        model.StatusCompleted,
		CreatedAt:     time.Now().UTC(),
	}
	return result, attempt, nil
}

// narrativeRequest builds the history trend and packs everything the
// narrative generator needs. Must run before the record is persisted so the
// window only holds prior attempts. A history load failure degrades to
// single-attempt framing.
func (h *Handler) narrativeRequest(result *model.AnalysisResult, lang string) narrative.Request {
	window, err := h.store.HistoryByExam(result.UserID, result.ExamID)
	if err != nil {
		slog.Error("load exam history", "user", result.UserID, "exam", result.ExamID, "error", err)
		window = nil
	}
	if len(window) == 0 && result.SubjectID != "" {
		window, err = h.store.HistoryBySubject(result.UserID, result.SubjectID)
		if err != nil {
			slog.Error("load subject history", "user", result.UserID, "subject", result.SubjectID, "error", err)
			window = nil
		}
	}

	return narrative.Request{
		Subject:    result.Summary.Subject,
		Score:      result.Summary.Score,
		Timing:     result.Timing,
		Strengths:  result.Strengths,
		Weaknesses: result.Weaknesses,
		TopicStats: result.TopicAnalysis,
		History:    analysis.SummarizeHistory(result.TopicAnalysis, window),
		Language:   lang,
	}
}

// generateNarrative asks the language model for suggestions, degrading to
// empty fields on failure; the numeric analysis is never blocked on the
// model.
func (h *Handler) generateNarrative(ctx context.Context, req narrative.Request) model.Narrative {
	n, err := h.narrative.Generate(ctx, req)
	if err != nil {
		slog.Error("generate narrative", "error", err)
		return narrative.Defaults()
	}
	return n
}

func (h *Handler) writeAnalysisError(w http.ResponseWriter, examResultID string, err error) {
	if analysis.IsInvalidInput(err) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	slog.Error("analyze exam result", "examResult", examResultID, "error", err)
	writeError(w, http.StatusBadGateway, "failed to fetch exam result")
}

func (h *Handler) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.store.GetAnalysis(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "analysis not found")
			return
		}
		slog.Error("get analysis", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load analysis")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type listResponse struct {
	Data     []model.AnalysisResult `json:"data"`
	Total    int                    `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"pageSize"`
}

func (h *Handler) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	if pageSize < 1 {
		pageSize = 10
	}

	filter := store.ListFilter{
		UserID:      q.Get("userId"),
		ExamID:      q.Get("examId"),
		SubjectID:   q.Get("subjectId"),
		ExamName:    q.Get("examName"),
		SubjectName: q.Get("subjectName"),
		SortBy:      q.Get("sortBy"),
		SortOrder:   q.Get("sortOrder"),
		Page:        page,
		PageSize:    pageSize,
	}

	results, total, err := h.store.ListAnalyses(filter)
	if err != nil {
		slog.Error("list analyses", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list analyses")
		return
	}
	if results == nil {
		results = []model.AnalysisResult{}
	}
	writeJSON(w, http.StatusOK, listResponse{
		Data:     results,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.CountAnalyses(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
