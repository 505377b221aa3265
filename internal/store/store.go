package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/eduquiz/examinsight/internal/analysis"
	"github.com/eduquiz/examinsight/internal/model"

	_ "modernc.org/sqlite"
)

// Store persists analysis results and serves history-window queries.
// It is opened once at startup and closed at shutdown; handlers receive it
// as an injected dependency.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Single connection: sqlite has one writer, and :memory: databases
	// are per-connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		exam_result_id TEXT NOT NULL DEFAULT '',
		exam_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		subject_id TEXT NOT NULL DEFAULT '',
		exam_name TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		score REAL NOT NULL DEFAULT 0,
		rating TEXT NOT NULL DEFAULT '',
		nominal_time REAL NOT NULL DEFAULT 0,
		working_time REAL NOT NULL DEFAULT 0,
		average_speed REAL NOT NULL DEFAULT 0,
		time_spent REAL NOT NULL DEFAULT 0,
		time_delta_pct REAL NOT NULL DEFAULT 0,
		pace_direction TEXT NOT NULL DEFAULT '',
		total_questions INTEGER NOT NULL DEFAULT 0,
		empty_answers INTEGER NOT NULL DEFAULT 0,
		correct_answers INTEGER NOT NULL DEFAULT 0,
		wrong_answers INTEGER NOT NULL DEFAULT 0,
		topic_analysis TEXT NOT NULL DEFAULT '[]',
		strengths TEXT NOT NULL DEFAULT '[]',
		weaknesses TEXT NOT NULL DEFAULT '[]',
		strengths_analysis TEXT NOT NULL DEFAULT '',
		weaknesses_analysis TEXT NOT NULL DEFAULT '',
		improvement_suggestions TEXT NOT NULL DEFAULT '',
		time_analysis_suggestions TEXT NOT NULL DEFAULT '',
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		input_cost REAL NOT NULL DEFAULT 0,
		output_cost REAL NOT NULL DEFAULT 0,
		total_cost REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'completed',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_user_exam ON analyses(user_id, exam_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_analyses_user_subject ON analyses(user_id, subject_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

const analysisColumns = `id, exam_result_id, exam_id, user_id, subject_id, exam_name, subject,
	score, rating, nominal_time, working_time, average_speed, time_spent, time_delta_pct, pace_direction,
	total_questions, empty_answers, correct_answers, wrong_answers,
	topic_analysis, strengths, weaknesses,
	strengths_analysis, weaknesses_analysis, improvement_suggestions, time_analysis_suggestions,
	input_tokens, output_tokens, total_tokens, input_cost, output_cost, total_cost,
	status, created_at`

// SaveAnalysis inserts one assembled analysis. Write-once: the only later
// mutation allowed is the narrative update for the deferred path.
func (s *Store) SaveAnalysis(a model.AnalysisResult) error {
	topics, err := json.Marshal(a.TopicAnalysis)
	if err != nil {
		return fmt.Errorf("marshal topic analysis: %w", err)
	}
	strengths, err := json.Marshal(a.Strengths)
	if err != nil {
		return fmt.Errorf("marshal strengths: %w", err)
	}
	weaknesses, err := json.Marshal(a.Weaknesses)
	if err != nil {
		return fmt.Errorf("marshal weaknesses: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO analyses (`+analysisColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ExamResultID, a.ExamID, a.UserID, a.SubjectID, a.Summary.ExamName, a.Summary.Subject,
		a.Summary.Score, a.Detail.Rating,
		a.Summary.Time, a.Timing.WorkingTime, a.Timing.AverageSpeed, a.Timing.TimeSpent,
		a.Timing.DeltaPercentage, string(a.Timing.Direction),
		a.Detail.TotalQuestions, a.Detail.EmptyAnswers, a.Detail.CorrectAnswers, a.Detail.WrongAnswers,
		string(topics), string(strengths), string(weaknesses),
		a.Narrative.StrengthsAnalysis, a.Narrative.WeaknessesAnalysis,
		a.Narrative.ImprovementSuggestions, a.Narrative.TimeAnalysisSuggestions,
		a.Narrative.Usage.InputTokens, a.Narrative.Usage.OutputTokens, a.Narrative.Usage.TotalTokens,
		a.Narrative.Usage.InputCost, a.Narrative.Usage.OutputCost, a.Narrative.Usage.TotalCost,
		string(a.Status), a.CreatedAt,
	)
	return err
}

// UpdateNarrative fills in the narrative fields of a processing record and
// marks it completed. The numeric analysis fields are never touched.
func (s *Store) UpdateNarrative(id string, n model.Narrative) error {
	res, err := s.db.Exec(
		`UPDATE analyses SET
			strengths_analysis = ?, weaknesses_analysis = ?,
			improvement_suggestions = ?, time_analysis_suggestions = ?,
			input_tokens = ?, output_tokens = ?, total_tokens = ?,
			input_cost = ?, output_cost = ?, total_cost = ?,
			status = ?
		 WHERE id = ?`,
		n.StrengthsAnalysis, n.WeaknessesAnalysis,
		n.ImprovementSuggestions, n.TimeAnalysisSuggestions,
		n.Usage.InputTokens, n.Usage.OutputTokens, n.Usage.TotalTokens,
		n.Usage.InputCost, n.Usage.OutputCost, n.Usage.TotalCost,
		string(model.StatusCompleted), id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetAnalysis returns an analysis by its own id or by the provider's exam
// result id.
func (s *Store) GetAnalysis(id string) (*model.AnalysisResult, error) {
	row := s.db.QueryRow(
		`SELECT `+analysisColumns+` FROM analyses WHERE id = ? OR exam_result_id = ?`, id, id,
	)
	return scanAnalysis(row)
}

// ListFilter narrows and pages a listing query.
type ListFilter struct {
	UserID      string
	ExamID      string
	SubjectID   string
	ExamName    string
	SubjectName string
	SortBy      string
	SortOrder   string
	Page        int
	PageSize    int
}

// Whitelisted sort keys, API name to column.
var sortColumns = map[string]string{
	"createdAt":   "created_at",
	"score":       "score",
	"workingTime": "working_time",
	"examName":    "exam_name",
	"subject":     "subject",
}

// ListAnalyses returns one page of analyses plus the total match count.
func (s *Store) ListAnalyses(f ListFilter) ([]model.AnalysisResult, int, error) {
	where := ` WHERE 1=1`
	var args []any
	if f.UserID != "" {
		where += ` AND user_id = ?`
		args = append(args, f.UserID)
	}
	if f.ExamID != "" {
		where += ` AND exam_id = ?`
		args = append(args, f.ExamID)
	}
	if f.SubjectID != "" {
		where += ` AND subject_id = ?`
		args = append(args, f.SubjectID)
	}
	if f.ExamName != "" {
		where += ` AND exam_name LIKE ?`
		args = append(args, "%"+f.ExamName+"%")
	}
	if f.SubjectName != "" {
		where += ` AND subject LIKE ?`
		args = append(args, "%"+f.SubjectName+"%")
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM analyses`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortCol, ok := sortColumns[f.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		order = "ASC"
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = 10
	}

	query := `SELECT ` + analysisColumns + ` FROM analyses` + where +
		` ORDER BY ` + sortCol + ` ` + order + ` LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []model.AnalysisResult
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, *a)
	}
	return results, total, rows.Err()
}

// HistoryByExam returns the most recent prior attempt summaries for one user
// and exam, newest first, capped at the trend window size.
func (s *Store) HistoryByExam(userID, examID string) ([]model.AttemptSummary, error) {
	return s.history(`user_id = ? AND exam_id = ?`, userID, examID)
}

// HistoryBySubject is the subject-scoped variant of HistoryByExam.
func (s *Store) HistoryBySubject(userID, subjectID string) ([]model.AttemptSummary, error) {
	return s.history(`user_id = ? AND subject_id = ?`, userID, subjectID)
}

func (s *Store) history(cond string, args ...any) ([]model.AttemptSummary, error) {
	rows, err := s.db.Query(
		`SELECT score, working_time, total_questions, topic_analysis, created_at
		 FROM analyses WHERE `+cond+` ORDER BY created_at DESC LIMIT ?`,
		append(args, analysis.HistoryWindowSize)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var window []model.AttemptSummary
	for rows.Next() {
		var a model.AttemptSummary
		var topics string
		if err := rows.Scan(&a.Score, &a.WorkingTime, &a.TotalQuestions, &topics, &a.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(topics), &a.TopicStats); err != nil {
			return nil, fmt.Errorf("unmarshal topic snapshot: %w", err)
		}
		window = append(window, a)
	}
	return window, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*model.AnalysisResult, error) {
	var a model.AnalysisResult
	var topics, strengths, weaknesses, direction, status string
	var createdAt time.Time

	err := row.Scan(
		&a.ID, &a.ExamResultID, &a.ExamID, &a.UserID, &a.SubjectID, &a.Summary.ExamName, &a.Summary.Subject,
		&a.Summary.Score, &a.Detail.Rating,
		&a.Summary.Time, &a.Timing.WorkingTime, &a.Timing.AverageSpeed, &a.Timing.TimeSpent,
		&a.Timing.DeltaPercentage, &direction,
		&a.Detail.TotalQuestions, &a.Detail.EmptyAnswers, &a.Detail.CorrectAnswers, &a.Detail.WrongAnswers,
		&topics, &strengths, &weaknesses,
		&a.Narrative.StrengthsAnalysis, &a.Narrative.WeaknessesAnalysis,
		&a.Narrative.ImprovementSuggestions, &a.Narrative.TimeAnalysisSuggestions,
		&a.Narrative.Usage.InputTokens, &a.Narrative.Usage.OutputTokens, &a.Narrative.Usage.TotalTokens,
		&a.Narrative.Usage.InputCost, &a.Narrative.Usage.OutputCost, &a.Narrative.Usage.TotalCost,
		&status, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(topics), &a.TopicAnalysis); err != nil {
		return nil, fmt.Errorf("unmarshal topic analysis: %w", err)
	}
	if err := json.Unmarshal([]byte(strengths), &a.Strengths); err != nil {
		return nil, fmt.Errorf("unmarshal strengths: %w", err)
	}
	if err := json.Unmarshal([]byte(weaknesses), &a.Weaknesses); err != nil {
		return nil, fmt.Errorf("unmarshal weaknesses: %w", err)
	}
	a.Timing.Direction = model.PaceDirection(direction)
	a.Status = model.AnalysisStatus(status)
	a.CreatedAt = createdAt
	return &a, nil
}

// ExportAll returns every stored analysis, oldest first.
func (s *Store) ExportAll() ([]model.AnalysisResult, error) {
	rows, err := s.db.Query(`SELECT ` + analysisColumns + ` FROM analyses ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.AnalysisResult
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *a)
	}
	return results, rows.Err()
}

// CountAnalyses returns the number of stored analyses.
func (s *Store) CountAnalyses() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM analyses`).Scan(&count)
	return count, err
}
