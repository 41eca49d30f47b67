package kpi

import (
	"fmt"
	"math"
	"sort"
)

const (
	MinMark = 0.0
	MaxMark = 100.0
)

// ValidateMarks checks that marks is non-empty, names only known criteria and
// stays within 0..100.
func ValidateMarks(marks map[string]float64, criteria []string) error {
	if len(marks) == 0 {
		return fmt.Errorf("%w: at least one mark is required", ErrInvalidMarks)
	}
	known := make(map[string]bool, len(criteria))
	for _, c := range criteria {
		known[c] = true
	}
	for criterion, value := range marks {
		if !known[criterion] {
			return fmt.Errorf("%w: %s", ErrUnknownCriterion, criterion)
		}
		if math.IsNaN(value) || value < MinMark || value > MaxMark {
			return fmt.Errorf("%w: %s must be between 0 and 100", ErrInvalidMarks, criterion)
		}
	}
	return nil
}

// SubmissionScore is the mean of the marks, summed in criterion order so the
// result does not depend on map iteration.
func SubmissionScore(marks map[string]float64) float64 {
	if len(marks) == 0 {
		return 0
	}
	keys := make([]string, 0, len(marks))
	for k := range marks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sum := 0.0
	for _, k := range keys {
		sum += marks[k]
	}
	return sum / float64(len(keys))
}

// AggregateWeek folds the submissions of one subject and week into a
// WeeklyScore. The week is complete once requiredMarkers submissions exist
// and each of them covers every criterion.
func AggregateWeek(subjectID, weekKey string, subs []MarkSubmission, criteria []string, requiredMarkers int) WeeklyScore {
	score := WeeklyScore{SubjectID: subjectID, WeekKey: weekKey, Submissions: len(subs)}
	if len(subs) == 0 {
		return score
	}
	ordered := append([]MarkSubmission(nil), subs...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].MarkerID < ordered[j].MarkerID })

	sum := 0.0
	allCriteria := true
	for _, sub := range ordered {
		sum += SubmissionScore(sub.Marks)
		for _, c := range criteria {
			if _, ok := sub.Marks[c]; !ok {
				allCriteria = false
			}
		}
	}
	score.AverageScore = sum / float64(len(ordered))
	score.IsComplete = allCriteria && len(ordered) >= requiredMarkers
	return score
}
