package analysis

import "github.com/eduquiz/examinsight/internal/model"

// HistoryWindowSize caps how many prior attempts feed the trend summary.
// The cap bounds both the comparison work and the narrative prompt size.
const HistoryWindowSize = 5

// SummarizeHistory builds the comparison-ready trend summary from the
// current attempt's topic stats and a window of prior attempt projections.
// The window is expected most-recent-first; anything beyond the cap is
// ignored. Attempt ordinals count from the oldest retained attempt as 1.
//
// Per topic, the comparison is against the minimum and maximum correct
// percentage seen across the window, not first-vs-last: the narrative layer
// frames "biggest improvement / biggest regression" off the extremes. A
// topic with no prior observation keeps HasPrior false instead of
// defaulting its extremes to zero.
func SummarizeHistory(current []model.TopicStat, window []model.AttemptSummary) model.HistoryTrend {
	if len(window) > HistoryWindowSize {
		window = window[:HistoryWindowSize]
	}
	if len(window) == 0 {
		return model.HistoryTrend{
			Topics:       []model.TopicTrend{},
			Scores:       []model.ScorePoint{},
			WorkingTimes: []model.PacePoint{},
		}
	}

	n := len(window)
	trend := model.HistoryTrend{
		HasHistory:   true,
		Topics:       make([]model.TopicTrend, 0, len(current)),
		Scores:       make([]model.ScorePoint, 0, n),
		WorkingTimes: make([]model.PacePoint, 0, n),
	}

	// Flat series, oldest first. window[i] is the (n-i)-th attempt.
	for i := n - 1; i >= 0; i-- {
		prior := window[i]
		ordinal := n - i
		trend.Scores = append(trend.Scores, model.ScorePoint{
			AttemptNumber: ordinal,
			Score:         prior.Score,
		})
		if prior.TotalQuestions > 0 {
			trend.WorkingTimes = append(trend.WorkingTimes, model.PacePoint{
				AttemptNumber: ordinal,
				TimeSpent:     round2(prior.WorkingTime / float64(prior.TotalQuestions)),
			})
		}
	}

	for _, cur := range current {
		tt := model.TopicTrend{Topic: cur.Topic, Current: cur.CorrectPercentage}
		for i := n - 1; i >= 0; i-- {
			ordinal := n - i
			pct, ok := topicPercentage(window[i].TopicStats, cur.Topic)
			if !ok {
				continue
			}
			if !tt.HasPrior {
				tt.HasPrior = true
				tt.Min, tt.MinAttempt = pct, ordinal
				tt.Max, tt.MaxAttempt = pct, ordinal
				continue
			}
			if pct < tt.Min {
				tt.Min, tt.MinAttempt = pct, ordinal
			}
			if pct > tt.Max {
				tt.Max, tt.MaxAttempt = pct, ordinal
			}
		}
		trend.Topics = append(trend.Topics, tt)
	}
	return trend
}

func topicPercentage(stats []model.TopicStat, topic string) (float64, bool) {
	for _, st := range stats {
		if st.Topic == topic {
			return st.CorrectPercentage, true
		}
	}
	return 0, false
}
