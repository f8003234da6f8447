package inuring

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/cession/internal/domain"
)

func newTestEngine() *Engine {
	return NewEngine(zerolog.New(nil).Level(zerolog.Disabled))
}

func quotaShare(name string, order int, pct float64) domain.Structure {
	return domain.Structure{
		Name:       name,
		Type:       domain.QuotaShare,
		Order:      order,
		ClaimBasis: domain.RiskAttaching,
		Sections:   []domain.Section{{CessionPct: domain.Float(pct)}},
	}
}

func excessOfLoss(name string, order int, predecessor string, attachment, limit float64) domain.Structure {
	return domain.Structure{
		Name:        name,
		Type:        domain.ExcessOfLoss,
		Order:       order,
		Predecessor: predecessor,
		ClaimBasis:  domain.RiskAttaching,
		Sections: []domain.Section{{
			Attachment: domain.Float(attachment),
			Limit:      domain.Float(limit),
		}},
	}
}

func policy(exposure float64) *domain.Policy {
	return &domain.Policy{
		ID:         "P-001",
		Exposure:   exposure,
		Inception:  domain.MustParseDate("2024-03-01"),
		Expiry:     domain.MustParseDate("2025-02-28"),
		Dimensions: map[string]string{"country": "FR"},
	}
}

func findResult(t *testing.T, result *domain.PolicyResult, name string) domain.StructureResult {
	t.Helper()
	for _, r := range result.Structures {
		if r.StructureName == name {
			return r
		}
	}
	t.Fatalf("no result for structure %s", name)
	return domain.StructureResult{}
}

func TestRun_RescalesLayerBehindQuotaShare(t *testing.T) {
	program := &domain.Program{
		Name:       "QS then XOL",
		Dimensions: []string{"country"},
		Structures: []domain.Structure{
			quotaShare("QS_50", 1, 0.5),
			excessOfLoss("XOL_1M_xs_2M", 2, "QS_50", 1_000_000, 2_000_000),
		},
	}

	result, err := newTestEngine().Run(policy(10_000_000), program, Options{})
	require.NoError(t, err)

	qs := findResult(t, result, "QS_50")
	assert.True(t, qs.Applied)
	assert.InDelta(t, 5_000_000.0, qs.CededToLayer100Pct, 1e-6)
	assert.InDelta(t, 5_000_000.0, qs.Retained, 1e-6)
	assert.InDelta(t, 0.5, qs.RetentionPct, 1e-12)
	assert.Nil(t, qs.Rescaling)

	xol := findResult(t, result, "XOL_1M_xs_2M")
	assert.True(t, xol.Applied)
	assert.InDelta(t, 5_000_000.0, xol.InputExposure, 1e-6)
	require.NotNil(t, xol.Rescaling)
	assert.Equal(t, "QS_50", xol.Rescaling.PredecessorTitle)
	assert.InDelta(t, 0.5, xol.Rescaling.RetentionFactor, 1e-12)
	assert.InDelta(t, 1_000_000.0, xol.Rescaling.OriginalAttachment, 1e-6)
	assert.InDelta(t, 2_000_000.0, xol.Rescaling.OriginalLimit, 1e-6)
	assert.InDelta(t, 500_000.0, xol.Rescaling.RescaledAttachment, 1e-6)
	assert.InDelta(t, 1_000_000.0, xol.Rescaling.RescaledLimit, 1e-6)
	assert.InDelta(t, 1_000_000.0, xol.CededToLayer100Pct, 1e-6)
	assert.InDelta(t, 4_000_000.0, xol.Retained, 1e-6)

	// The program definition keeps its gross-basis terms.
	assert.Equal(t, 1_000_000.0, *program.Structures[1].Sections[0].Attachment)
	assert.Equal(t, 2_000_000.0, *program.Structures[1].Sections[0].Limit)
	assert.Equal(t, 1_000_000.0, *xol.Section.Attachment)

	assert.InDelta(t, 6_000_000.0, result.CededToLayer100Pct, 1e-6)
	assert.InDelta(t, 4_000_000.0, result.RetainedByCedant, 1e-6)
}

func TestRun_RescalingIsImmediateHopOnly(t *testing.T) {
	program := &domain.Program{
		Name: "QS, XOL, XOL",
		Structures: []domain.Structure{
			quotaShare("QS", 1, 0.5),
			excessOfLoss("XOL_A", 2, "QS", 1_000_000, 1_000_000),
			excessOfLoss("XOL_B", 3, "XOL_A", 1_000_000, 10_000_000),
		},
	}

	result, err := newTestEngine().Run(policy(10_000_000), program, Options{})
	require.NoError(t, err)

	a := findResult(t, result, "XOL_A")
	require.NotNil(t, a.Rescaling)
	assert.InDelta(t, 500_000.0, a.CededToLayer100Pct, 1e-6)

	b := findResult(t, result, "XOL_B")
	assert.Nil(t, b.Rescaling)
	assert.InDelta(t, 4_500_000.0, b.InputExposure, 1e-6)
	assert.InDelta(t, 3_500_000.0, b.CededToLayer100Pct, 1e-6)
}

func TestRun_NoMatchPassesExposureThrough(t *testing.T) {
	qs := quotaShare("QS_DE", 1, 0.3)
	qs.Sections[0].Conditions = map[string]domain.Values{"country": {"DE"}}

	program := &domain.Program{
		Name:       "DE only",
		Dimensions: []string{"country"},
		Structures: []domain.Structure{
			qs,
			excessOfLoss("XOL", 2, "QS_DE", 1_000_000, 2_000_000),
		},
	}

	result, err := newTestEngine().Run(policy(5_000_000), program, Options{})
	require.NoError(t, err)

	first := findResult(t, result, "QS_DE")
	assert.False(t, first.Applied)
	assert.Equal(t, domain.ReasonNoMatchingCondition, first.Reason)
	assert.Zero(t, first.CededToLayer100Pct)
	assert.Zero(t, first.CededToReinsurer)
	assert.Nil(t, first.Section)
	assert.Equal(t, 5_000_000.0, first.Retained)

	second := findResult(t, result, "XOL")
	assert.Equal(t, first.InputExposure, second.InputExposure)
	assert.Nil(t, second.Rescaling, "a predecessor that did not apply does not rescale")
	assert.InDelta(t, 2_000_000.0, second.CededToLayer100Pct, 1e-6)

	assert.InDelta(t, 2_000_000.0, result.CededToLayer100Pct, 1e-6)
}

func TestRun_SignedShare(t *testing.T) {
	qs := quotaShare("QS", 1, 0.4)
	qs.Sections[0].SignedShare = domain.Float(0.25)
	program := &domain.Program{Name: "shared", Structures: []domain.Structure{qs, quotaShare("QS_full", 2, 0.1)}}

	result, err := newTestEngine().Run(policy(1_000_000), program, Options{})
	require.NoError(t, err)

	shared := findResult(t, result, "QS")
	assert.InDelta(t, 400_000.0, shared.CededToLayer100Pct, 1e-6)
	assert.InDelta(t, 0.25, shared.SignedShare, 1e-12)
	assert.InDelta(t, shared.CededToLayer100Pct*shared.SignedShare, shared.CededToReinsurer, 1e-6)

	full := findResult(t, result, "QS_full")
	assert.Equal(t, 1.0, full.SignedShare)
	assert.Equal(t, full.CededToLayer100Pct, full.CededToReinsurer)

	assert.InDelta(t, 200_000.0, result.CededToReinsurer, 1e-6)
}

func TestRun_LinearChainConservesExposure(t *testing.T) {
	program := &domain.Program{
		Name: "chain",
		Structures: []domain.Structure{
			quotaShare("QS", 1, 0.2),
			excessOfLoss("XOL_1", 2, "QS", 500_000, 1_000_000),
			excessOfLoss("XOL_2", 3, "XOL_1", 250_000, 750_000),
			quotaShare("QS_tail", 4, 0.1),
		},
	}
	program.Structures[3].Predecessor = "XOL_2"

	for _, exposure := range []float64{0, 100_000, 1_000_000, 3_000_000, 50_000_000} {
		result, err := newTestEngine().Run(policy(exposure), program, Options{})
		require.NoError(t, err)

		last := result.Structures[len(result.Structures)-1]
		var ceded float64
		for _, r := range result.Structures {
			if r.Applied {
				ceded += r.CededToLayer100Pct
			}
			assert.GreaterOrEqual(t, r.Retained, 0.0)
		}
		assert.InDelta(t, exposure, ceded+last.Retained, 1e-6, "exposure %v", exposure)
		assert.InDelta(t, last.Retained, result.RetainedByCedant, 1e-6)
	}
}

func TestRun_IndependentOfListOrder(t *testing.T) {
	forward := &domain.Program{
		Name: "forward",
		Structures: []domain.Structure{
			quotaShare("QS", 1, 0.3),
			excessOfLoss("XOL", 2, "QS", 100_000, 400_000),
		},
	}
	reversed := &domain.Program{
		Name:       "reversed",
		Structures: []domain.Structure{forward.Structures[1], forward.Structures[0]},
	}

	a, err := newTestEngine().Run(policy(2_000_000), forward, Options{})
	require.NoError(t, err)
	b, err := newTestEngine().Run(policy(2_000_000), reversed, Options{})
	require.NoError(t, err)

	assert.Equal(t, a.CededToLayer100Pct, b.CededToLayer100Pct)
	assert.Equal(t, names(forward.Structures, []int{0, 1}), []string{b.Structures[0].StructureName, b.Structures[1].StructureName})
}

func TestRun_OutsideStructurePeriod(t *testing.T) {
	qs := quotaShare("QS_2023", 1, 0.5)
	qs.Effective = domain.MustParseDate("2023-01-01")
	qs.Expiry = domain.MustParseDate("2023-12-31")
	program := &domain.Program{Name: "2023", Structures: []domain.Structure{qs}}

	result, err := newTestEngine().Run(policy(1_000), program, Options{})
	require.NoError(t, err)

	r := result.Structures[0]
	assert.False(t, r.Applied)
	assert.Equal(t, domain.ReasonOutsideStructurePeriod, r.Reason)
	assert.Equal(t, 1_000.0, result.RetainedByCedant)
}

func TestRun_LossOccurringChecksAsOfDate(t *testing.T) {
	qs := quotaShare("QS_LO", 1, 0.5)
	qs.ClaimBasis = domain.LossOccurring
	qs.Effective = domain.MustParseDate("2025-01-01")
	qs.Expiry = domain.MustParseDate("2025-12-31")
	program := &domain.Program{Name: "LO", Structures: []domain.Structure{qs}}

	result, err := newTestEngine().Run(policy(1_000), program, Options{AsOf: domain.MustParseDate("2025-06-15")})
	require.NoError(t, err)
	assert.True(t, result.Structures[0].Applied)

	result, err = newTestEngine().Run(policy(1_000), program, Options{})
	require.NoError(t, err)
	assert.False(t, result.Structures[0].Applied, "without an as-of date the policy inception is used")
}

func TestRun_ValidationErrors(t *testing.T) {
	missingPct := quotaShare("QS", 1, 0)
	missingPct.Sections[0].CessionPct = nil

	badPct := quotaShare("QS", 1, 1.5)

	missingLimit := excessOfLoss("XOL", 1, "", 1, 1)
	missingLimit.Sections[0].Limit = nil

	negativeAttachment := excessOfLoss("XOL", 1, "", -5, 1)

	badShare := quotaShare("QS", 1, 0.5)
	badShare.Sections[0].SignedShare = domain.Float(2)

	unknownType := quotaShare("X", 1, 0.5)
	unknownType.Type = "stop_loss"

	tests := []struct {
		name      string
		structure domain.Structure
		expected  error
	}{
		{"missing cession pct", missingPct, domain.ErrMissingParameter},
		{"cession pct out of range", badPct, domain.ErrInvalidCessionPct},
		{"missing limit", missingLimit, domain.ErrMissingParameter},
		{"negative attachment", negativeAttachment, domain.ErrNegativeAttachment},
		{"signed share out of range", badShare, domain.ErrInvalidSignedShare},
		{"unknown participation type", unknownType, domain.ErrUnknownParticipationType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program := &domain.Program{Name: "bad", Structures: []domain.Structure{tt.structure}}
			result, err := newTestEngine().Run(policy(1_000), program, Options{})
			assert.ErrorIs(t, err, tt.expected)
			assert.Nil(t, result)
		})
	}
}

func TestRun_CycleFailsFast(t *testing.T) {
	program := &domain.Program{
		Name: "cyclic",
		Structures: []domain.Structure{
			excessOfLoss("A", 1, "B", 1, 1),
			excessOfLoss("B", 2, "A", 1, 1),
		},
	}

	_, err := newTestEngine().Run(policy(1_000), program, Options{})
	assert.ErrorIs(t, err, domain.ErrPredecessorCycle)
}

func TestRun_NegativeExposure(t *testing.T) {
	program := &domain.Program{Name: "p", Structures: []domain.Structure{quotaShare("QS", 1, 0.5)}}
	_, err := newTestEngine().Run(policy(-1), program, Options{})
	assert.ErrorIs(t, err, domain.ErrNegativeExposure)
}

func TestRun_NaNExposure(t *testing.T) {
	program := &domain.Program{Name: "p", Structures: []domain.Structure{quotaShare("QS", 1, 0.5)}}
	result, err := newTestEngine().Run(policy(math.NaN()), program, Options{})
	assert.ErrorIs(t, err, domain.ErrNegativeExposure)
	assert.Nil(t, result)
}

func TestRun_RejectsUndeclaredConditionKey(t *testing.T) {
	qs := quotaShare("QS_FR", 1, 0.3)
	qs.Sections[0].Conditions = map[string]domain.Values{"contry": {"DE"}}

	program := &domain.Program{
		Name:       "typo",
		Dimensions: []string{"country"},
		Structures: []domain.Structure{qs},
	}

	result, err := newTestEngine().Run(policy(1_000), program, Options{})
	assert.ErrorIs(t, err, domain.ErrUndeclaredDimension)
	assert.Contains(t, err.Error(), "contry")
	assert.Nil(t, result)
}
