package rules

import (
	"strings"

	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/enums"
	"github.com/Baltyara/boltaiznakomsya-sub000/internal/domain/model"
)

// CompatibilityScore rates two queue entries in [0, 100].
//
// The gender preference is checked in both directions and either declared age
// range must accept the other side's age; any failed filter yields 0. The
// remaining score is interest overlap relative to the larger interest set.
// An empty interest set on either side is defined as 0 so the result is never
// produced by a 0/0 division.
//
// The function is symmetric: CompatibilityScore(a, b) == CompatibilityScore(b, a).
func CompatibilityScore(a, b model.QueueEntry) float64 {
	if !acceptsGender(a.LookingFor, b.Gender) || !acceptsGender(b.LookingFor, a.Gender) {
		return 0
	}
	if !a.AgeRange.Contains(b.Age) || !b.AgeRange.Contains(a.Age) {
		return 0
	}

	if len(a.Interests) == 0 || len(b.Interests) == 0 {
		return 0
	}

	seen := make(map[string]struct{}, len(a.Interests))
	for _, interest := range a.Interests {
		seen[normalizeInterest(interest)] = struct{}{}
	}

	overlap := 0
	counted := make(map[string]struct{}, len(b.Interests))
	for _, interest := range b.Interests {
		key := normalizeInterest(interest)
		if _, dup := counted[key]; dup {
			continue
		}
		counted[key] = struct{}{}
		if _, ok := seen[key]; ok {
			overlap++
		}
	}

	larger := len(seen)
	if len(counted) > larger {
		larger = len(counted)
	}

	return float64(overlap) / float64(larger) * 100
}

func acceptsGender(pref enums.LookingFor, gender enums.Gender) bool {
	if pref == enums.LookingForBoth {
		return true
	}
	return string(pref) == string(gender)
}

func normalizeInterest(interest string) string {
	return strings.ToLower(strings.TrimSpace(interest))
}
