// Package matcher scores instrument/document pairs and selects matches.
//
// Scoring is a pipeline of strategies. Each strategy compares one side's
// facts with the other's and emits zero or more signals; Aggregate folds
// the signals into one confidence with a single deterministic rule:
//
//	total = max(max exclusive, sum over groups of max additive)
//	total = max(total, min(total+boost, cap))   for each boost
//	total = min(total, 1)
package matcher

import (
	"math"

	"github.com/sells-group/debtlink/internal/model"
)

// Combine declares how a signal participates in aggregation.
type Combine int

const (
	// Additive signals are summed across groups; within a group only the
	// strongest counts.
	Additive Combine = iota
	// Exclusive signals are anchors; only the strongest one counts.
	Exclusive
	// Boost signals raise the combined total but never above their Cap.
	Boost
)

func (c Combine) String() string {
	switch c {
	case Additive:
		return "additive"
	case Exclusive:
		return "exclusive"
	case Boost:
		return "boost"
	default:
		return "unknown"
	}
}

// Signal is a model.MatchSignal plus its aggregation semantics.
type Signal struct {
	model.MatchSignal
	Combine Combine
	Cap     float64
}

// Aggregate combines signals into a confidence in [0, 1] and the dominant
// method. The dominant method comes from the strongest signal on the
// winning side (exclusive anchor vs additive sum); ties go to the earliest
// signal.
func Aggregate(signals []Signal) (float64, model.Method) {
	exclusiveIdx := -1
	groupBest := make(map[string]int)
	var groups []string

	for i, s := range signals {
		switch s.Combine {
		case Exclusive:
			if exclusiveIdx < 0 || s.Confidence > signals[exclusiveIdx].Confidence {
				exclusiveIdx = i
			}
		case Additive:
			j, ok := groupBest[s.Group]
			if !ok {
				groups = append(groups, s.Group)
				groupBest[s.Group] = i
			} else if s.Confidence > signals[j].Confidence {
				groupBest[s.Group] = i
			}
		}
	}

	var sum float64
	additiveIdx := -1
	for _, g := range groups {
		j := groupBest[g]
		sum += signals[j].Confidence
		if additiveIdx < 0 || signals[j].Confidence > signals[additiveIdx].Confidence {
			additiveIdx = j
		}
	}

	var total float64
	dominant := -1
	if exclusiveIdx >= 0 {
		total = signals[exclusiveIdx].Confidence
		dominant = exclusiveIdx
	}
	if additiveIdx >= 0 && (sum > total || (sum == total && additiveIdx < dominant)) {
		total = sum
		dominant = additiveIdx
	}

	for i, s := range signals {
		if s.Combine != Boost {
			continue
		}
		total = math.Max(total, math.Min(total+s.Confidence, s.Cap))
		if dominant < 0 {
			dominant = i
		}
	}

	total = math.Min(math.Max(total, 0), 1)
	if dominant < 0 {
		return total, model.MethodNone
	}
	return total, signals[dominant].Method
}

// modelSignals strips aggregation metadata for the audit trail.
func modelSignals(signals []Signal) []model.MatchSignal {
	if len(signals) == 0 {
		return nil
	}
	out := make([]model.MatchSignal, len(signals))
	for i, s := range signals {
		out[i] = s.MatchSignal
	}
	return out
}
