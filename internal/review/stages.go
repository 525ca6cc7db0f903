package review

// Stage describes one step of the Ebbinghaus review table. Retention is
// informational only.
type Stage struct {
	Stage             int     `json:"stage"`
	IntervalDays      int     `json:"intervalDays"`
	ExpectedRetention float64 `json:"expectedRetention"`
	Description       string  `json:"description"`
}

// Stages is the standard Ebbinghaus table. A schedule's zero-based Stage
// field indexes into it.
var Stages = []Stage{
	{Stage: 1, IntervalDays: 1, ExpectedRetention: 0.85, Description: "首次复习"},
	{Stage: 2, IntervalDays: 3, ExpectedRetention: 0.75, Description: "短期记忆巩固"},
	{Stage: 3, IntervalDays: 7, ExpectedRetention: 0.65, Description: "中期记忆巩固"},
	{Stage: 4, IntervalDays: 14, ExpectedRetention: 0.55, Description: "长期记忆形成"},
	{Stage: 5, IntervalDays: 30, ExpectedRetention: 0.45, Description: "长期记忆强化"},
	{Stage: 6, IntervalDays: 90, ExpectedRetention: 0.35, Description: "永久记忆巩固"},
}

// StageConfig returns the entry numbered stage (1-6), or the first entry.
func StageConfig(stage int) Stage {
	for _, s := range Stages {
		if s.Stage == stage {
			return s
		}
	}
	return Stages[0]
}

// standardInterval returns the table interval at the zero-based index;
// indexes past the table use the last interval.
func standardInterval(index int) float64 {
	if index < 0 {
		index = 0
	}
	if index >= len(Stages) {
		return float64(Stages[len(Stages)-1].IntervalDays)
	}
	return float64(Stages[index].IntervalDays)
}

// gradeFactor shortens intervals for younger learners.
func gradeFactor(grade int) float64 {
	switch grade {
	case 4:
		return 0.8
	case 5:
		return 1.0
	case 6:
		return 1.2
	default:
		return 1.0
	}
}
