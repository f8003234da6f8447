package inuring

import (
	"fmt"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/aristath/cession/internal/domain"
	"github.com/aristath/cession/internal/modules/matching"
	"github.com/aristath/cession/internal/modules/participation"
)

// Options tune one engine run
type Options struct {
	// AsOf is the evaluation date. Loss-occurring structures test their
	// period against it; when zero they fall back to the policy inception.
	AsOf domain.Date
}

// Engine runs a program's structures for one policy
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a new inuring engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("component", "inuring_engine").Logger(),
	}
}

// Run processes every structure of the program exactly once, predecessors
// first. Roots receive the policy's gross exposure; a dependent receives the
// exposure its predecessor retained.
//
// All state lives in this call: nothing is shared across policies.
func (e *Engine) Run(policy *domain.Policy, program *domain.Program, opts Options) (*domain.PolicyResult, error) {
	if !(policy.Exposure >= 0) {
		return nil, fmt.Errorf("policy %s: %w: %v", policy.ID, domain.ErrNegativeExposure, policy.Exposure)
	}

	order, err := Order(program.Structures)
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", program.Name, err)
	}
	if err := CheckConditionKeys(program); err != nil {
		return nil, fmt.Errorf("program %s: %w", program.Name, err)
	}

	byName := make(map[string]int, len(program.Structures))
	for i, s := range program.Structures {
		byName[s.Name] = i
	}

	processed := make([]*domain.StructureResult, len(program.Structures))
	out := make([]domain.StructureResult, 0, len(order))

	for _, idx := range order {
		s := &program.Structures[idx]

		var pred *domain.StructureResult
		input := policy.Exposure
		if s.Predecessor != "" {
			pred = processed[byName[s.Predecessor]]
			input = pred.Retained
		}

		res, err := e.runStructure(policy, program, s, pred, input, opts)
		if err != nil {
			return nil, fmt.Errorf("policy %s, structure %s: %w", policy.ID, s.Name, err)
		}
		processed[idx] = res
		out = append(out, *res)
	}

	return aggregate(policy, program, out), nil
}

func (e *Engine) runStructure(
	policy *domain.Policy,
	program *domain.Program,
	s *domain.Structure,
	pred *domain.StructureResult,
	input float64,
	opts Options,
) (*domain.StructureResult, error) {
	res := &domain.StructureResult{
		StructureName:    s.Name,
		Type:             s.Type,
		PredecessorTitle: s.Predecessor,
		ClaimBasis:       s.ClaimBasis,
		InceptionDate:    s.Effective,
		ExpiryDate:       s.Expiry,
		InputExposure:    input,
		SignedShare:      1.0,
		Retained:         input,
		RetentionPct:     1.0,
	}

	if !s.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownParticipationType, string(s.Type))
	}

	if date := coverageDate(policy, s, opts); !date.IsZero() && !s.Covers(date) {
		res.Reason = domain.ReasonOutsideStructurePeriod
		e.log.Debug().
			Str("policy", policy.ID).
			Str("structure", s.Name).
			Str("date", date.String()).
			Msg("Structure period does not cover policy")
		return res, nil
	}

	match, err := matching.Select(policy.Dimensions, s.Sections, program.Dimensions)
	if err != nil {
		return nil, err
	}
	if match == nil {
		res.Reason = domain.ReasonNoMatchingCondition
		e.log.Debug().Str("policy", policy.ID).Str("structure", s.Name).Msg("No matching section")
		return res, nil
	}

	terms, err := match.Section.Terms(s.Type)
	if err != nil {
		return nil, err
	}

	if layer, ok := terms.(domain.ExcessOfLossTerms); ok && feedsFromQuotaShare(pred) {
		rescaled := layer.Rescale(pred.RetentionPct)
		res.Rescaling = &domain.RescalingInfo{
			PredecessorTitle:   pred.StructureName,
			RetentionFactor:    pred.RetentionPct,
			OriginalAttachment: layer.Attachment,
			OriginalLimit:      layer.Limit,
			RescaledAttachment: rescaled.Attachment,
			RescaledLimit:      rescaled.Limit,
		}
		terms = rescaled
	}

	ceded, err := participation.Cede(input, terms)
	if err != nil {
		return nil, err
	}
	share, err := match.Section.Share()
	if err != nil {
		return nil, err
	}
	toReinsurer, err := participation.ReinsurerShare(ceded, share)
	if err != nil {
		return nil, err
	}

	section := *match.Section
	res.Applied = true
	res.Section = &section
	res.CededToLayer100Pct = ceded
	res.CededToReinsurer = toReinsurer
	res.SignedShare = share
	res.Retained = input - ceded
	res.RetentionPct = participation.RetentionPct(terms)

	e.log.Debug().
		Str("policy", policy.ID).
		Str("structure", s.Name).
		Int("section", match.Index).
		Float64("input", input).
		Float64("ceded", ceded).
		Bool("rescaled", res.Rescaling != nil).
		Msg("Structure applied")

	return res, nil
}

// feedsFromQuotaShare reports whether the immediate predecessor is an applied
// quota share, the only case in which a layer is rescaled.
func feedsFromQuotaShare(pred *domain.StructureResult) bool {
	return pred != nil && pred.Applied && pred.Type == domain.QuotaShare
}

// coverageDate picks the date a structure's period is checked against
func coverageDate(policy *domain.Policy, s *domain.Structure, opts Options) domain.Date {
	if s.ClaimBasis == domain.LossOccurring && !opts.AsOf.IsZero() {
		return opts.AsOf
	}
	return policy.Inception
}

// aggregate sums applied structures only
func aggregate(policy *domain.Policy, program *domain.Program, structures []domain.StructureResult) *domain.PolicyResult {
	layer := make([]float64, 0, len(structures))
	reinsurer := make([]float64, 0, len(structures))
	for _, r := range structures {
		if !r.Applied {
			continue
		}
		layer = append(layer, r.CededToLayer100Pct)
		reinsurer = append(reinsurer, r.CededToReinsurer)
	}

	totalLayer := floats.Sum(layer)
	return &domain.PolicyResult{
		PolicyID:           policy.ID,
		ProgramName:        program.Name,
		Exposure:           policy.Exposure,
		CededToLayer100Pct: totalLayer,
		CededToReinsurer:   floats.Sum(reinsurer),
		RetainedByCedant:   policy.Exposure - totalLayer,
		Structures:         structures,
	}
}
