// Package application applies programs and treaty books to single policies
// and to whole bordereaux.
package application

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/cession/internal/domain"
	"github.com/aristath/cession/internal/modules/inuring"
	"github.com/aristath/cession/internal/modules/treaty"
)

// AugmentedRow is a bordereau row extended with its computed cession
type AugmentedRow struct {
	domain.Policy
	CededToLayer100Pct float64 `json:"ceded_to_layer_100pct"`
	CededToReinsurer   float64 `json:"ceded_to_reinsurer"`
	RetainedByCedant   float64 `json:"retained_by_cedant"`
}

// Service orchestrates the inuring engine over policies and bordereaux
type Service struct {
	engine  *inuring.Engine
	workers int
	log     zerolog.Logger
}

// NewService creates a new application service. workers bounds how many
// bordereau rows are computed concurrently; values below 1 mean one per CPU.
func NewService(engine *inuring.Engine, workers int, log zerolog.Logger) *Service {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Service{
		engine:  engine,
		workers: workers,
		log:     log.With().Str("service", "application").Logger(),
	}
}

// ApplyProgram runs every structure of the program for one policy
func (s *Service) ApplyProgram(policy *domain.Policy, program *domain.Program) (*domain.PolicyResult, error) {
	return s.apply(policy, program, inuring.Options{})
}

func (s *Service) apply(policy *domain.Policy, program *domain.Program, opts inuring.Options) (*domain.PolicyResult, error) {
	if err := checkCurrency(policy, program); err != nil {
		return nil, err
	}
	return s.engine.Run(policy, program, opts)
}

// ApplyProgramToBordereau applies the program to every row. Rows are
// independent and computed concurrently; outputs keep the input order.
func (s *Service) ApplyProgramToBordereau(
	ctx context.Context,
	bordereau domain.Bordereau,
	program *domain.Program,
) ([]AugmentedRow, []*domain.PolicyResult, error) {
	results, err := s.fanOut(ctx, bordereau, func(p *domain.Policy) (*domain.PolicyResult, error) {
		return s.ApplyProgram(p, program)
	})
	if err != nil {
		return nil, nil, err
	}

	rows := make([]AugmentedRow, len(bordereau))
	for i, r := range results {
		rows[i] = AugmentedRow{
			Policy:             bordereau[i],
			CededToLayer100Pct: r.CededToLayer100Pct,
			CededToReinsurer:   r.CededToReinsurer,
			RetainedByCedant:   r.RetainedByCedant,
		}
	}

	s.log.Info().
		Str("program", program.Name).
		Int("policies", len(bordereau)).
		Msg("Program applied to bordereau")

	return rows, results, nil
}

// ApplyTreatyWithClaimBasis selects the yearly program covering the policy
// and applies it. When no year covers the policy the result carries
// coverage_status "no_treaty_found" with the whole exposure retained.
func (s *Service) ApplyTreatyWithClaimBasis(
	policy *domain.Policy,
	book domain.TreatyBook,
	calculationDate domain.Date,
) (*domain.PolicyResult, error) {
	selector, err := treaty.NewSelector(book)
	if err != nil {
		return nil, err
	}
	return s.applyTreaty(policy, selector, calculationDate)
}

// ApplyTreatyManagerToBordereau applies a treaty book to every row, validating
// the book once for the whole bordereau
func (s *Service) ApplyTreatyManagerToBordereau(
	ctx context.Context,
	bordereau domain.Bordereau,
	book domain.TreatyBook,
	calculationDate domain.Date,
) ([]*domain.PolicyResult, error) {
	selector, err := treaty.NewSelector(book)
	if err != nil {
		return nil, err
	}

	results, err := s.fanOut(ctx, bordereau, func(p *domain.Policy) (*domain.PolicyResult, error) {
		return s.applyTreaty(p, selector, calculationDate)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("claim_basis", string(selector.ClaimBasis())).
		Str("calculation_date", calculationDate.String()).
		Int("policies", len(bordereau)).
		Msg("Treaty book applied to bordereau")

	return results, nil
}

func (s *Service) applyTreaty(
	policy *domain.Policy,
	selector *treaty.Selector,
	calculationDate domain.Date,
) (*domain.PolicyResult, error) {
	year, program, ok := selector.Select(policy, calculationDate)
	if !ok {
		s.log.Debug().
			Str("policy", policy.ID).
			Str("claim_basis", string(selector.ClaimBasis())).
			Msg("No treaty covers policy")
		return &domain.PolicyResult{
			PolicyID:         policy.ID,
			Exposure:         policy.Exposure,
			RetainedByCedant: policy.Exposure,
			Structures:       []domain.StructureResult{},
			ClaimBasis:       selector.ClaimBasis(),
			CoverageStatus:   domain.CoverageNoTreatyFound,
			CalculationDate:  calculationDate,
		}, nil
	}

	result, err := s.apply(policy, program, inuring.Options{AsOf: calculationDate})
	if err != nil {
		return nil, fmt.Errorf("treaty %s: %w", year, err)
	}
	result.SelectedTreatyYear = year
	result.ClaimBasis = selector.ClaimBasis()
	result.CoverageStatus = domain.CoverageCovered
	result.CalculationDate = calculationDate
	return result, nil
}

// fanOut computes one result per row with at most s.workers rows in flight.
// Every worker writes only its own slot, so no locking is needed.
func (s *Service) fanOut(
	ctx context.Context,
	bordereau domain.Bordereau,
	fn func(*domain.Policy) (*domain.PolicyResult, error),
) ([]*domain.PolicyResult, error) {
	results := make([]*domain.PolicyResult, len(bordereau))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i := range bordereau {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(&bordereau[i])
			if err != nil {
				return fmt.Errorf("row %d (policy %s): %w", i+1, bordereau[i].ID, err)
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func checkCurrency(policy *domain.Policy, program *domain.Program) error {
	if policy.Currency == "" || program.MainCurrency == "" {
		return nil
	}
	if !strings.EqualFold(policy.Currency, program.MainCurrency) {
		return fmt.Errorf("policy %s: %w: %s vs %s",
			policy.ID, domain.ErrCurrencyMismatch, policy.Currency, program.MainCurrency)
	}
	return nil
}
