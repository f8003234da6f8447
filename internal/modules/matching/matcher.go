// Package matching selects the most specific section of a structure that
// applies to a policy.
package matching

import (
	"fmt"

	"github.com/aristath/cession/internal/domain"
)

// Match is the section selected for a policy
type Match struct {
	Section     *domain.Section
	Index       int // position in the structure's section list
	Specificity int // number of specified conditions the policy satisfied
}

// Specificity scores one section against a policy's dimension values.
// ok is false when a specified condition rejects the policy. Only the
// program's recognized keys are inspected; absent conditions are wildcards.
func Specificity(section *domain.Section, dimensions map[string]string, keys []string) (score int, ok bool) {
	for _, key := range keys {
		accepted, specified := section.Conditions[key]
		if !specified || len(accepted) == 0 {
			continue
		}
		if !accepted.Contains(dimensions[key]) {
			return 0, false
		}
		score++
	}
	return score, true
}

// Select returns the candidate with the highest specificity, then the highest
// priority. It returns nil without error when no section applies, and
// domain.ErrAmbiguousSection when the best candidates cannot be told apart.
func Select(dimensions map[string]string, sections []domain.Section, keys []string) (*Match, error) {
	var best *Match
	ambiguous := false

	for i := range sections {
		score, ok := Specificity(&sections[i], dimensions, keys)
		if !ok {
			continue
		}
		candidate := &Match{Section: &sections[i], Index: i, Specificity: score}

		switch {
		case best == nil:
			best, ambiguous = candidate, false
		case score > best.Specificity:
			best, ambiguous = candidate, false
		case score == best.Specificity:
			switch {
			case candidate.Section.Priority > best.Section.Priority:
				best, ambiguous = candidate, false
			case candidate.Section.Priority == best.Section.Priority:
				ambiguous = true
			}
		}
	}

	if ambiguous {
		return nil, fmt.Errorf("%w (specificity %d, priority %d, first at section %d)",
			domain.ErrAmbiguousSection, best.Specificity, best.Section.Priority, best.Index)
	}
	return best, nil
}
