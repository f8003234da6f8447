// Package treaty picks the yearly program of a treaty book that covers a
// policy under the book's claim basis.
package treaty

import (
	"fmt"
	"sort"

	"github.com/aristath/cession/internal/domain"
)

// Selector resolves yearly programs from a validated treaty book
type Selector struct {
	book       domain.TreatyBook
	years      []string // sorted ascending
	claimBasis domain.ClaimBasis
}

// NewSelector validates the book and returns a selector for it.
//
// The book must hold at least one program, every program must hold at least
// one structure, and all structures of all years must share one claim basis.
func NewSelector(book domain.TreatyBook) (*Selector, error) {
	basis, err := ClaimBasisOf(book)
	if err != nil {
		return nil, err
	}

	years := make([]string, 0, len(book))
	for year := range book {
		years = append(years, year)
	}
	sort.Strings(years)

	return &Selector{book: book, years: years, claimBasis: basis}, nil
}

// ClaimBasisOf returns the single claim basis shared by every structure of
// the book, or the validation error describing why there is none.
func ClaimBasisOf(book domain.TreatyBook) (domain.ClaimBasis, error) {
	if len(book) == 0 {
		return "", domain.ErrEmptyTreatyBook
	}

	var basis domain.ClaimBasis
	var first string
	for year, program := range book {
		if program == nil || len(program.Structures) == 0 {
			return "", fmt.Errorf("treaty %s: %w", year, domain.ErrEmptyProgram)
		}
		for _, s := range program.Structures {
			if !s.ClaimBasis.Valid() {
				return "", fmt.Errorf("treaty %s, structure %s: %w: %q",
					year, s.Name, domain.ErrUnknownClaimBasis, string(s.ClaimBasis))
			}
			if basis == "" {
				basis, first = s.ClaimBasis, year+"/"+s.Name
				continue
			}
			if s.ClaimBasis != basis {
				return "", fmt.Errorf("%w: %s is %s but %s/%s is %s",
					domain.ErrMixedClaimBasis, first, basis, year, s.Name, s.ClaimBasis)
			}
		}
	}
	return basis, nil
}

// ClaimBasis returns the claim basis shared by the book
func (s *Selector) ClaimBasis() domain.ClaimBasis {
	return s.claimBasis
}

// Years returns the book's year labels in ascending order
func (s *Selector) Years() []string {
	out := make([]string, len(s.years))
	copy(out, s.years)
	return out
}

// SelectTreaty returns the yearly program whose coverage period contains the
// relevant date: the policy inception for risk attaching, the calculation
// date for loss occurring. ok is false when no year covers it, which is an
// expected outcome rather than an error.
//
// When several years cover the date the one with the latest effective date
// wins, then the greatest year label.
func (s *Selector) SelectTreaty(basis domain.ClaimBasis, inception, calculationDate domain.Date) (year string, program *domain.Program, ok bool) {
	date := inception
	if basis == domain.LossOccurring {
		date = calculationDate
	}
	if date.IsZero() {
		return "", nil, false
	}

	var bestStart domain.Date
	for _, y := range s.years {
		p := s.book[y]
		effective, expiry, dated := p.CoveragePeriod()
		if !dated || !date.Within(effective, expiry) {
			continue
		}
		if !ok || !effective.Before(bestStart) {
			year, program, bestStart, ok = y, p, effective, true
		}
	}
	return year, program, ok
}

// Select applies the book's own claim basis to a policy
func (s *Selector) Select(policy *domain.Policy, calculationDate domain.Date) (string, *domain.Program, bool) {
	return s.SelectTreaty(s.claimBasis, policy.Inception, calculationDate)
}
