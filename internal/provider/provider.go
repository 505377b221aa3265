package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/eduquiz/examinsight/internal/analysis"
	"github.com/eduquiz/examinsight/internal/i18n"
	"github.com/eduquiz/examinsight/internal/model"
)

// Client fetches completed exam results from the EduQuiz exam service.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a provider client for the given API base URL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Wire types for the exam service's result payload. Only the fields the
// analysis needs are mapped.

type examResultEnvelope struct {
	Data examResultData `json:"data"`
}

type examResultData struct {
	ID                 json.Number  `json:"id"`
	ExamID             json.Number  `json:"exam_id"`
	UserID             json.Number  `json:"user_id"`
	Exam               *examInfo    `json:"exam"`
	SubjectData        *subjectData `json:"subject_data"`
	RankData           *rankData    `json:"rank_data"`
	TotalTime          float64      `json:"total_time"`
	TotalTimeUsed      float64      `json:"total_time_used"`
	TotalScore         float64      `json:"total_score"`
	TotalQuestion      int          `json:"total_question"`
	TotalQuestionBlank int          `json:"total_question_blank"`
	TotalQuestionTrue  int          `json:"total_question_true"`
	TotalQuestionFalse int          `json:"total_question_false"`
	Sections           []section    `json:"sections"`
}

type examInfo struct {
	Name string `json:"name"`
}

type subjectData struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
}

type rankData struct {
	Name string `json:"name"`
}

type section struct {
	QuestionID    int64           `json:"question_id"`
	ParentID      int64           `json:"parent_id"`
	IsCorrect     bool            `json:"is_correct"`
	AnswerChoosed json.RawMessage `json:"answer_choosed_data"`
	QuestionData  questionData    `json:"question_data"`
}

type questionData struct {
	ID       int64           `json:"id"`
	Labels   []questionLabel `json:"labels"`
	Children []struct {
		ID int64 `json:"id"`
	} `json:"children_questions"`
}

type questionLabel struct {
	Name string `json:"name"`
}

// FetchExamResult retrieves one completed exam result and maps it into an
// Attempt. Localized fallbacks for missing subject and rating come from the
// context's localizer.
func (c *Client) FetchExamResult(ctx context.Context, id string) (*model.Attempt, error) {
	url := fmt.Sprintf("%s/quizexam/api/v1/exam-results/%s", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build exam result request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch exam result %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch exam result %s: unexpected status %d", id, resp.StatusCode)
	}

	var envelope examResultEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode exam result %s: %w", id, err)
	}

	return mapAttempt(ctx, id, envelope.Data)
}

func mapAttempt(ctx context.Context, resultID string, data examResultData) (*model.Attempt, error) {
	if len(data.Sections) == 0 {
		return nil, &analysis.InvalidInputError{Reason: "missing question tree"}
	}
	if data.TotalQuestion <= 0 {
		return nil, &analysis.InvalidInputError{Reason: "zero questions"}
	}

	subject := i18n.T(ctx, "SubjectUnknown")
	subjectID := ""
	if data.SubjectData != nil {
		if data.SubjectData.Name != "" {
			subject = data.SubjectData.Name
		}
		subjectID = data.SubjectData.ID.String()
	}

	rating := i18n.T(ctx, "RatingNone")
	if data.RankData != nil && data.RankData.Name != "" {
		rating = data.RankData.Name
	}

	examName := ""
	if data.Exam != nil {
		examName = data.Exam.Name
	}

	attempt := &model.Attempt{
		ExamResultID:   resultID,
		ExamID:         data.ExamID.String(),
		UserID:         data.UserID.String(),
		ExamName:       examName,
		Subject:        subject,
		SubjectID:      subjectID,
		Score:          data.TotalScore,
		Rating:         rating,
		NominalTime:    data.TotalTime,
		WorkingTime:    data.TotalTimeUsed,
		TotalQuestions: data.TotalQuestion,
		EmptyAnswers:   data.TotalQuestionBlank,
		CorrectAnswers: data.TotalQuestionTrue,
		WrongAnswers:   data.TotalQuestionFalse,
		Sections:       make([]model.Section, 0, len(data.Sections)),
	}

	for _, s := range data.Sections {
		labels := make([]string, 0, len(s.QuestionData.Labels))
		for _, l := range s.QuestionData.Labels {
			labels = append(labels, l.Name)
		}
		attempt.Sections = append(attempt.Sections, model.Section{
			QuestionID: s.QuestionData.ID,
			ParentID:   s.ParentID,
			Labels:     labels,
			ChildCount: len(s.QuestionData.Children),
			IsCorrect:  s.IsCorrect,
			HasAnswer:  hasAnswer(s.AnswerChoosed),
		})
	}
	return attempt, nil
}

// hasAnswer treats a missing or JSON-null chosen-answer field as blank.
func hasAnswer(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
