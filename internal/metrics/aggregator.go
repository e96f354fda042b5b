package metrics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
)

const (
	// MinArgumentSample is the minimum number of occurrences before an
	// argument is ranked.
	MinArgumentSample = 5
	// TopArguments is how many arguments each ranking keeps.
	TopArguments = 5
)

// Recompute derives the full metrics record from the corpus. Pending and
// deactivated cases are ignored.
func Recompute(cases []appeal.TrainingCase) appeal.ModelMetrics {
	return RecomputeAt(cases, time.Now().UTC())
}

// RecomputeAt is Recompute with a fixed timestamp.
func RecomputeAt(cases []appeal.TrainingCase, now time.Time) appeal.ModelMetrics {
	m := appeal.ModelMetrics{
		MostSuccessfulArgs:  []appeal.ArgumentStat{},
		LeastSuccessfulArgs: []appeal.ArgumentStat{},
		UpdatedAt:           now,
	}

	var (
		reductionSum, processingSum     float64
		reductionCount, processingCount int
	)
	args := make(map[string]*appeal.ArgumentStat)

	for _, c := range cases {
		if !c.Active || !c.Outcome.Terminal() {
			continue
		}
		m.TotalCases++
		ok := c.Outcome == appeal.OutcomeSuccessful
		if ok {
			m.SuccessfulCases++
		}
		if c.FineReduction != nil {
			reductionSum += *c.FineReduction
			reductionCount++
		}
		if c.ProcessingDays != nil {
			processingSum += float64(*c.ProcessingDays)
			processingCount++
		}
		for _, a := range c.KeyArguments {
			key := strings.ToLower(strings.TrimSpace(a))
			if key == "" {
				continue
			}
			st, found := args[key]
			if !found {
				st = &appeal.ArgumentStat{Argument: key}
				args[key] = st
			}
			st.Occurrences++
			if ok {
				st.Successes++
			}
		}
	}

	if m.TotalCases > 0 {
		m.SuccessRate = float64(m.SuccessfulCases) / float64(m.TotalCases)
	}
	if reductionCount > 0 {
		m.AverageFineReduction = reductionSum / float64(reductionCount)
	}
	if processingCount > 0 {
		m.AverageProcessingDays = processingSum / float64(processingCount)
	}

	ranked := make([]appeal.ArgumentStat, 0, len(args))
	for _, st := range args {
		if st.Occurrences < MinArgumentSample {
			continue
		}
		st.SuccessRate = float64(st.Successes) / float64(st.Occurrences)
		ranked = append(ranked, *st)
	}

	sort.Slice(ranked, func(i, j int) bool { return better(ranked[i], ranked[j]) })
	m.MostSuccessfulArgs = top(ranked)

	sort.Slice(ranked, func(i, j int) bool { return worse(ranked[i], ranked[j]) })
	m.LeastSuccessfulArgs = top(ranked)

	m.ConfidenceScore = Confidence(m.TotalCases, m.SuccessRate, len(m.MostSuccessfulArgs))
	return m
}

// Confidence blends corpus size, success rate and argument coverage.
func Confidence(caseCount int, successRate float64, topArgumentCount int) float64 {
	return 0.4*math.Min(float64(caseCount)/1000, 1) +
		0.4*successRate +
		0.2*(float64(topArgumentCount)/10)
}

// CategorySuccessRate is the success ratio over the active terminal cases given.
func CategorySuccessRate(cases []appeal.TrainingCase) float64 {
	var total, ok int
	for _, c := range cases {
		if !c.Active || !c.Outcome.Terminal() {
			continue
		}
		total++
		if c.Outcome == appeal.OutcomeSuccessful {
			ok++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(ok) / float64(total)
}

// better orders by success rate descending, then sample size, then name.
func better(a, b appeal.ArgumentStat) bool {
	if a.SuccessRate != b.SuccessRate {
		return a.SuccessRate > b.SuccessRate
	}
	if a.Occurrences != b.Occurrences {
		return a.Occurrences > b.Occurrences
	}
	return a.Argument < b.Argument
}

// worse orders by success rate ascending, then sample size, then name.
func worse(a, b appeal.ArgumentStat) bool {
	if a.SuccessRate != b.SuccessRate {
		return a.SuccessRate < b.SuccessRate
	}
	if a.Occurrences != b.Occurrences {
		return a.Occurrences > b.Occurrences
	}
	return a.Argument < b.Argument
}

func top(ranked []appeal.ArgumentStat) []appeal.ArgumentStat {
	n := len(ranked)
	if n > TopArguments {
		n = TopArguments
	}
	out := make([]appeal.ArgumentStat, n)
	copy(out, ranked[:n])
	return out
}
