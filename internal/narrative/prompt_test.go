package narrative

import (
	"strings"
	"testing"

	"github.com/eduquiz/examinsight/internal/model"
)

func baseRequest() Request {
	return Request{
		Subject: "Mathematics",
		Score:   7.5,
		Timing: model.Timing{
			AverageSpeed:    20,
			TimeSpent:       30,
			DeltaPercentage: 50,
			Direction:       model.PaceSlower,
		},
		Strengths:  []string{"Geometry"},
		Weaknesses: []string{"Algebra", "Probability"},
		TopicStats: []model.TopicStat{
			{Topic: "Geometry", CorrectPercentage: 100},
			{Topic: "Algebra", CorrectPercentage: 33.33},
			{Topic: "Probability", CorrectPercentage: 40},
		},
		Language: "en",
	}
}

func TestBuildPrompt_WithoutHistory(t *testing.T) {
	prompt, err := BuildPrompt(baseRequest())
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}

	for _, want := range []string{
		"Mathematics",
		"7.5/10",
		"20 seconds/question",
		"30 seconds/question",
		"50% slower",
		"Geometry",
		"Algebra 33.33%",
		"Total weak topics: 2",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "Previous scores") {
		t.Error("prompt without history must not mention previous scores")
	}
	if !strings.Contains(prompt, "do not list individual weak topics") {
		t.Error("prompt should carry the no-history weakness rule")
	}
}

func TestBuildPrompt_WithHistory(t *testing.T) {
	req := baseRequest()
	req.History = model.HistoryTrend{
		HasHistory: true,
		Scores: []model.ScorePoint{
			{AttemptNumber: 1, Score: 4},
			{AttemptNumber: 2, Score: 6},
		},
		WorkingTimes: []model.PacePoint{
			{AttemptNumber: 1, TimeSpent: 45},
			{AttemptNumber: 2, TimeSpent: 35},
		},
		Topics: []model.TopicTrend{
			{Topic: "Algebra", Current: 33.33, HasPrior: true, Min: 20, MinAttempt: 1, Max: 60, MaxAttempt: 2},
			{Topic: "Probability", Current: 40},
		},
	}

	prompt, err := BuildPrompt(req)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}

	for _, want := range []string{
		"Attempt 1: 4/10",
		"Attempt 2: 6/10",
		"Attempt 1: 45s",
		"lowest 20% (attempt 1)",
		"highest 60% (attempt 2)",
		"Probability now 40%, no prior data",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "Topics and correct %:") {
		t.Error("history prompt must not carry the single-attempt topic line")
	}
}

func TestBuildPrompt_Vietnamese(t *testing.T) {
	req := baseRequest()
	req.Language = "vi"

	prompt, err := BuildPrompt(req)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	if !strings.Contains(prompt, "Môn học: Mathematics") {
		t.Error("expected Vietnamese prompt")
	}
	if !strings.Contains(prompt, "chậm hơn") {
		t.Error("expected slower-pace wording in Vietnamese")
	}
}

func TestBuildPrompt_UnknownLanguageFallsBackToEnglish(t *testing.T) {
	req := baseRequest()
	req.Language = "de"

	prompt, err := BuildPrompt(req)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	if !strings.Contains(prompt, "Subject: Mathematics") {
		t.Error("expected English fallback prompt")
	}
}

func TestBuildPrompt_DisplayCap(t *testing.T) {
	req := baseRequest()
	req.Weaknesses = []string{"A", "B", "C", "D", "E"}

	prompt, err := BuildPrompt(req)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	if !strings.Contains(prompt, "Weaknesses: A, B, C\n") {
		t.Error("weakness list must be capped at 3 topics")
	}
	// The full count still reaches the prompt.
	if !strings.Contains(prompt, "Total weak topics: 5") {
		t.Error("full weakness count missing")
	}
}

func TestBuildPrompt_EmptySets(t *testing.T) {
	req := baseRequest()
	req.Strengths = nil
	req.Weaknesses = nil

	prompt, err := BuildPrompt(req)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	if !strings.Contains(prompt, "Strengths: None") {
		t.Error("empty strengths should print None")
	}
	if !strings.Contains(prompt, "Weaknesses: None") {
		t.Error("empty weaknesses should print None")
	}
}

func TestFormatNum(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{20, "20"},
		{33.333333, "33.33"},
		{66.666666, "66.67"},
		{7.5, "7.5"},
		{0, "0"},
	}
	for _, tt := range tests {
		if got := formatNum(tt.in); got != tt.want {
			t.Errorf("formatNum(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
