// Package inuring orders a program's structures along their predecessor
// links and threads a policy's exposure through them.
package inuring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/cession/internal/domain"
)

// Order returns structure indices in an order where every predecessor comes
// before its dependents. Among structures that are ready at the same time the
// lower execution order, then the earlier list position, goes first.
//
// Unknown predecessors, duplicate names and cycles are reported as errors.
func Order(structures []domain.Structure) ([]int, error) {
	byName := make(map[string]int, len(structures))
	for i, s := range structures {
		if _, dup := byName[s.Name]; dup {
			return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateStructure, s.Name)
		}
		byName[s.Name] = i
	}

	dependents := make(map[int][]int, len(structures))
	var ready []int
	for i, s := range structures {
		if s.Predecessor == "" {
			ready = append(ready, i)
			continue
		}
		p, ok := byName[s.Predecessor]
		if !ok {
			return nil, fmt.Errorf("%w: %q references %q", domain.ErrUnknownPredecessor, s.Name, s.Predecessor)
		}
		dependents[p] = append(dependents[p], i)
	}

	less := func(a, b int) bool {
		if structures[a].Order != structures[b].Order {
			return structures[a].Order < structures[b].Order
		}
		return a < b
	}

	order := make([]int, 0, len(structures))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		// Each structure has at most one predecessor, so its dependents are
		// ready as soon as it is emitted.
		ready = append(ready, dependents[next]...)
	}

	if len(order) < len(structures) {
		emitted := make([]bool, len(structures))
		for _, i := range order {
			emitted[i] = true
		}
		var stuck []string
		for i, s := range structures {
			if !emitted[i] {
				stuck = append(stuck, s.Name)
			}
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrPredecessorCycle, strings.Join(stuck, ", "))
	}
	return order, nil
}

// Validate checks a program's structure definitions without running it:
// known participation types and claim bases, conditions only on declared
// dimensions, unique names, and a predecessor forest without cycles.
func Validate(program *domain.Program) error {
	if program == nil || len(program.Structures) == 0 {
		return domain.ErrEmptyProgram
	}
	for _, s := range program.Structures {
		if !s.Type.Valid() {
			return fmt.Errorf("structure %s: %w: %q", s.Name, domain.ErrUnknownParticipationType, string(s.Type))
		}
		if s.ClaimBasis != "" && !s.ClaimBasis.Valid() {
			return fmt.Errorf("structure %s: %w: %q", s.Name, domain.ErrUnknownClaimBasis, string(s.ClaimBasis))
		}
	}
	if err := CheckConditionKeys(program); err != nil {
		return err
	}
	if _, err := Order(program.Structures); err != nil {
		return fmt.Errorf("program %s: %w", program.Name, err)
	}
	return nil
}

// CheckConditionKeys rejects section conditions on keys the program does not
// declare. Matching only walks declared keys, so such a condition would
// otherwise turn its section into a wildcard.
func CheckConditionKeys(program *domain.Program) error {
	declared := make(map[string]bool, len(program.Dimensions))
	for _, d := range program.Dimensions {
		declared[d] = true
	}
	for _, s := range program.Structures {
		for i, section := range s.Sections {
			for key := range section.Conditions {
				if !declared[key] {
					return fmt.Errorf("structure %s, section %d: %w: %q", s.Name, i, domain.ErrUndeclaredDimension, key)
				}
			}
		}
	}
	return nil
}
