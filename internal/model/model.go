package model

import "time"

// Section is one graded entry of the provider's question tree, reduced to the
// fields the normalizer needs. The provider client maps its wire payload into
// this shape so the analysis code never sees provider JSON.
type Section struct {
	QuestionID int64
	ParentID   int64
	Labels     []string
	ChildCount int
	IsCorrect  bool
	HasAnswer  bool
}

// QuestionOutcome is a single scored question with its resolved topic labels.
// Immutable after normalization.
type QuestionOutcome struct {
	ID          int64    `json:"id"`
	TopicLabels []string `json:"labels"`
	IsCorrect   bool     `json:"isCorrect"`
	IsBlank     bool     `json:"isBlank"`
}

// TopicStat holds aggregated per-topic counters and percentages.
// Invariant: CorrectCount + WrongCount == QuestionCount.
type TopicStat struct {
	Topic               string  `json:"topic"`
	QuestionCount       int     `json:"questionCount"`
	CorrectCount        int     `json:"correctCount"`
	WrongCount          int     `json:"wrongCount"`
	BlankCount          int     `json:"blankCount"`
	CorrectPercentage   float64 `json:"correctPercentage"`
	IncorrectPercentage float64 `json:"incorrectPercentage"`
}

// Thresholds is the configurable strength/weakness cutoff pair, in percent.
type Thresholds struct {
	Strength float64
	Weakness float64
}

// PaceDirection tells whether the user worked slower or faster than the
// exam's nominal pacing baseline.
type PaceDirection string

const (
	PaceSlower   PaceDirection = "slower"
	PaceFaster   PaceDirection = "faster"
	PaceOnTarget PaceDirection = "on_target"
)

// Timing holds the per-question pacing comparison for one attempt.
// AverageSpeed and TimeSpent are seconds per question; lower is faster.
type Timing struct {
	WorkingTime     float64       `json:"workingTime"`
	AverageSpeed    float64       `json:"averageSpeed"`
	TimeSpent       float64       `json:"timeSpent"`
	DeltaPercentage float64       `json:"timeDifferencePercentage"`
	Direction       PaceDirection `json:"direction"`
}

// Attempt is one completed, scored exam-taking event as delivered by the
// exam-data provider, before analysis.
type Attempt struct {
	ExamResultID   string
	ExamID         string
	UserID         string
	ExamName       string
	Subject        string
	SubjectID      string
	Score          float64
	Rating         string
	NominalTime    float64
	WorkingTime    float64
	TotalQuestions int
	EmptyAnswers   int
	CorrectAnswers int
	WrongAnswers   int
	Sections       []Section
	Language       string
}

// AttemptSummary is the immutable projection of a prior attempt used for
// trend comparison: score, working time and the per-topic snapshot.
type AttemptSummary struct {
	Score          float64     `json:"score"`
	WorkingTime    float64     `json:"workingTime"`
	TotalQuestions int         `json:"totalQuestions"`
	TopicStats     []TopicStat `json:"topicStats"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// TopicTrend compares the current attempt's percentage for one topic against
// the extremes observed across the history window. HasPrior is false when the
// topic never appeared in any prior attempt; Min/Max are meaningless then.
type TopicTrend struct {
	Topic      string  `json:"topic"`
	Current    float64 `json:"current"`
	HasPrior   bool    `json:"hasPrior"`
	Min        float64 `json:"min"`
	MinAttempt int     `json:"minAttempt"`
	Max        float64 `json:"max"`
	MaxAttempt int     `json:"maxAttempt"`
}

// ScorePoint is one historical score tagged with its attempt ordinal
// (oldest retained attempt = 1).
type ScorePoint struct {
	AttemptNumber int     `json:"attemptNumber"`
	Score         float64 `json:"score"`
}

// PacePoint is one historical per-question working time tagged with its
// attempt ordinal.
type PacePoint struct {
	AttemptNumber int     `json:"attemptNumber"`
	TimeSpent     float64 `json:"timeSpent"`
}

// HistoryTrend is the comparison-ready summary of a user's prior attempts.
// HasHistory distinguishes "no prior attempts" from empty-but-ambiguous
// sequences; downstream framing branches on it.
type HistoryTrend struct {
	HasHistory   bool         `json:"hasHistory"`
	Topics       []TopicTrend `json:"topics"`
	Scores       []ScorePoint `json:"scores"`
	WorkingTimes []PacePoint  `json:"workingTimes"`
}

// Usage is the narrative adapter's token and cost accounting.
type Usage struct {
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	TotalTokens  int     `json:"totalTokens"`
	InputCost    float64 `json:"inputCost"`
	OutputCost   float64 `json:"outputCost"`
	TotalCost    float64 `json:"totalCost"`
}

// Narrative holds the free-text suggestion fields produced by the narrative
// adapter. All fields default to empty strings when generation fails.
type Narrative struct {
	StrengthsAnalysis       string `json:"strengthsAnalysis"`
	WeaknessesAnalysis      string `json:"weaknessesAnalysis"`
	ImprovementSuggestions  string `json:"improvementSuggestions"`
	TimeAnalysisSuggestions string `json:"timeAnalysisSuggestions"`
	Usage                   Usage  `json:"usage"`
}

// AnalysisStatus marks whether the narrative part of a stored analysis has
// been produced yet.
type AnalysisStatus string

const (
	StatusProcessing AnalysisStatus = "processing"
	StatusCompleted  AnalysisStatus = "completed"
)

// Summary is the headline block of an analysis.
type Summary struct {
	ExamName string  `json:"examName"`
	Subject  string  `json:"subject"`
	Score    float64 `json:"score"`
	Time     float64 `json:"time"`
}

// Detail is the raw answer-count block of an analysis.
type Detail struct {
	TotalQuestions int    `json:"totalQuestions"`
	EmptyAnswers   int    `json:"emptyAnswers"`
	CorrectAnswers int    `json:"correctAnswers"`
	WrongAnswers   int    `json:"wrongAnswers"`
	Rating         string `json:"rating"`
}

// AnalysisResult is the full assembled output of one analysis request,
// persisted as the durable record and returned to clients.
type AnalysisResult struct {
	ID            string         `json:"id"`
	ExamResultID  string         `json:"examResultId"`
	ExamID        string         `json:"examId"`
	UserID        string         `json:"userId"`
	SubjectID     string         `json:"subjectId"`
	Summary       Summary        `json:"summary"`
	Detail        Detail         `json:"detailExamResult"`
	TopicAnalysis []TopicStat    `json:"topicAnalysis"`
	Timing        Timing         `json:"workingTimeAnalysis"`
	Strengths     []string       `json:"strengths"`
	Weaknesses    []string       `json:"weaknesses"`
	Narrative     Narrative      `json:"narrative"`
	Status        AnalysisStatus `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
}
