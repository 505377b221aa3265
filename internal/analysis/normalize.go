package analysis

import "github.com/eduquiz/examinsight/internal/model"

// NormalizeOutcomes converts the provider's section records into a uniform
// list of question outcomes. It resolves topic labels for sub-questions that
// inherit their parent's labels and drops multi-part container questions
// (more than one child) which are not scored units themselves.
//
// Output order follows input order. Every outcome has a non-nil label slice;
// an empty slice is the floor.
func NormalizeOutcomes(sections []model.Section) []model.QuestionOutcome {
	// First pass over all sections, before any filtering: questions that
	// carry explicit labels may be parents of label-less sub-questions.
	parentLabels := make(map[int64][]string)
	for _, s := range sections {
		if len(s.Labels) > 0 {
			parentLabels[s.QuestionID] = s.Labels
		}
	}

	outcomes := make([]model.QuestionOutcome, 0, len(sections))
	for _, s := range sections {
		// A question with exactly one child is still scorable; only a
		// container with several children is excluded.
		if s.ChildCount > 1 {
			continue
		}

		labels := s.Labels
		if len(labels) == 0 && s.ParentID != 0 {
			if inherited, ok := parentLabels[s.ParentID]; ok {
				labels = inherited
			}
		}
		if labels == nil {
			labels = []string{}
		}

		outcomes = append(outcomes, model.QuestionOutcome{
			ID:          s.QuestionID,
			TopicLabels: labels,
			IsCorrect:   s.IsCorrect,
			IsBlank:     !s.HasAnswer,
		})
	}
	return outcomes
}
