package analysis

import "github.com/eduquiz/examinsight/internal/model"

// AnalyzeTiming computes the exam's built-in pacing baseline (nominal time
// per question), the user's realized pace, and their relative difference.
// DeltaPercentage is the absolute difference in percent, rounded to two
// decimals; the sign of the raw difference survives as Direction since
// downstream narration branches on it. Lower seconds per question is faster.
func AnalyzeTiming(nominalTime, workingTime float64, totalQuestions int) (model.Timing, error) {
	if totalQuestions <= 0 {
		return model.Timing{}, &InvalidInputError{Reason: "zero questions"}
	}

	avg := nominalTime / float64(totalQuestions)
	spent := workingTime / float64(totalQuestions)

	t := model.Timing{
		WorkingTime:  workingTime,
		AverageSpeed: avg,
		TimeSpent:    spent,
		Direction:    model.PaceOnTarget,
	}

	diff := spent - avg
	switch {
	case diff > 0:
		t.Direction = model.PaceSlower
	case diff < 0:
		t.Direction = model.PaceFaster
	}
	if avg != 0 {
		pct := diff / avg * 100
		if pct < 0 {
			pct = -pct
		}
		t.DeltaPercentage = round2(pct)
	}
	return t, nil
}
