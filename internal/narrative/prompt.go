package narrative

import (
	"bytes"
	"embed"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"text/template"

	"github.com/eduquiz/examinsight/internal/model"
)

//go:embed prompts/*.txt
var promptFS embed.FS

// displayCap bounds how many strength/weakness topics the prompt names.
// Classification itself is unbounded; this is purely presentation.
const displayCap = 3

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[string]*template.Template
)

var promptFuncs = template.FuncMap{
	"num":  formatNum,
	"join": strings.Join,
}

// formatNum prints a float rounded to two decimals without trailing zeros.
func formatNum(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func loadTemplates() error {
	loadOnce.Do(func() {
		templates = make(map[string]*template.Template)
		for _, lang := range []string{"en", "vi"} {
			name := "prompts/analysis_" + lang + ".txt"
			content, err := promptFS.ReadFile(name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", name, err)
				return
			}
			tmpl, err := template.New("analysis").Funcs(promptFuncs).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			templates[lang] = tmpl
		}
	})
	return loadErr
}

// promptData is the template view of a Request.
type promptData struct {
	Subject         string
	Score           float64
	AverageSpeed    float64
	TimeSpent       float64
	DeltaPercentage float64
	Slower          bool
	Strengths       []string
	Weaknesses      []string
	WeaknessCount   int
	Topics          []model.TopicStat
	HasHistory      bool
	Scores          []model.ScorePoint
	WorkingTimes    []model.PacePoint
	TopicTrends     []model.TopicTrend
}

// BuildPrompt renders the analysis prompt for the request's language,
// falling back to English for anything unsupported.
func BuildPrompt(req Request) (string, error) {
	if err := loadTemplates(); err != nil {
		return "", err
	}
	tmpl, ok := templates[req.Language]
	if !ok {
		tmpl = templates["en"]
	}

	data := promptData{
		Subject:         req.Subject,
		Score:           req.Score,
		AverageSpeed:    req.Timing.AverageSpeed,
		TimeSpent:       req.Timing.TimeSpent,
		DeltaPercentage: req.Timing.DeltaPercentage,
		Slower:          req.Timing.Direction == model.PaceSlower,
		Strengths:       capTopics(req.Strengths),
		Weaknesses:      capTopics(req.Weaknesses),
		WeaknessCount:   len(req.Weaknesses),
		Topics:          req.TopicStats,
		HasHistory:      req.History.HasHistory,
		Scores:          req.History.Scores,
		WorkingTimes:    req.History.WorkingTimes,
		TopicTrends:     req.History.Topics,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func capTopics(topics []string) []string {
	if len(topics) > displayCap {
		return topics[:displayCap]
	}
	return topics
}
