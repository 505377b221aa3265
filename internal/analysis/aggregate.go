package analysis

import (
	"math"

	"github.com/eduquiz/examinsight/internal/model"
)

// CalculateTopicAnalysis folds question outcomes into per-topic statistics.
// An outcome carrying several labels contributes to every one of them
// independently; an outcome with no labels contributes to no topic. Topics
// appear in first-seen order and percentages are rounded to two decimals.
//
// The fold is deterministic: the same input list always produces the same
// output list, values and order.
func CalculateTopicAnalysis(outcomes []model.QuestionOutcome) []model.TopicStat {
	index := make(map[string]int)
	stats := make([]model.TopicStat, 0)

	for _, o := range outcomes {
		for _, label := range o.TopicLabels {
			i, ok := index[label]
			if !ok {
				i = len(stats)
				index[label] = i
				stats = append(stats, model.TopicStat{Topic: label})
			}
			st := &stats[i]
			st.QuestionCount++
			if o.IsCorrect {
				st.CorrectCount++
			} else {
				st.WrongCount++
			}
			// Blank is tracked independently: a blank answer is graded
			// wrong above but still flagged here.
			if o.IsBlank {
				st.BlankCount++
			}
		}
	}

	for i := range stats {
		st := &stats[i]
		// A topic only exists because at least one outcome referenced it,
		// so QuestionCount is never zero here.
		st.CorrectPercentage = round2(float64(st.CorrectCount) / float64(st.QuestionCount) * 100)
		st.IncorrectPercentage = round2(float64(st.WrongCount) / float64(st.QuestionCount) * 100)
	}
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
