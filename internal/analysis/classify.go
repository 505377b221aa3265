package analysis

import "github.com/eduquiz/examinsight/internal/model"

// Classify splits topics into strengths (correct percentage at or above the
// strength threshold) and weaknesses (below the weakness threshold). Both
// sets are returned in full; any display cap is a presentation concern of the
// narrative prompt, not of this function.
func Classify(stats []model.TopicStat, th model.Thresholds) (strengths, weaknesses []string) {
	strengths = []string{}
	weaknesses = []string{}
	for _, st := range stats {
		switch {
		case st.CorrectPercentage >= th.Strength:
			strengths = append(strengths, st.Topic)
		case st.CorrectPercentage < th.Weakness:
			weaknesses = append(weaknesses, st.Topic)
		}
	}
	return strengths, weaknesses
}
