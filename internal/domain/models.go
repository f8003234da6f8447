// Package domain provides core reinsurance domain models and types.
package domain

import "fmt"

// ParticipationType identifies how a structure takes its share of exposure
type ParticipationType string

const (
	// QuotaShare cedes a fixed percentage of exposure, optionally capped
	QuotaShare ParticipationType = "quota_share"
	// ExcessOfLoss cedes exposure above an attachment point, capped by a limit
	ExcessOfLoss ParticipationType = "excess_of_loss"
)

// Valid reports whether t is one of the known participation types
func (t ParticipationType) Valid() bool {
	switch t {
	case QuotaShare, ExcessOfLoss:
		return true
	}
	return false
}

// UnmarshalText rejects unknown participation types at decode time. An empty
// value decodes to the zero type and is left to program validation.
func (t *ParticipationType) UnmarshalText(text []byte) error {
	v := ParticipationType(text)
	if v != "" && !v.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownParticipationType, string(text))
	}
	*t = v
	return nil
}

// ClaimBasis decides which underwriting year's treaty covers a policy
type ClaimBasis string

const (
	// RiskAttaching binds a policy to the treaty in force at policy inception
	RiskAttaching ClaimBasis = "risk_attaching"
	// LossOccurring binds a policy to the treaty in force at the evaluation date
	LossOccurring ClaimBasis = "loss_occurring"
)

// Valid reports whether b is a known claim basis
func (b ClaimBasis) Valid() bool {
	return b == RiskAttaching || b == LossOccurring
}

// UnmarshalText rejects unknown claim bases at decode time. Structures may
// leave the basis empty.
func (b *ClaimBasis) UnmarshalText(text []byte) error {
	v := ClaimBasis(text)
	if v != "" && !v.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownClaimBasis, string(text))
	}
	*b = v
	return nil
}

// Program is a named set of reinsurance structures sharing one dimension vocabulary
type Program struct {
	Name         string      `json:"name" yaml:"name"`
	MainCurrency string      `json:"main_currency,omitempty" yaml:"main_currency"`
	Dimensions   []string    `json:"dimensions" yaml:"dimensions"`
	Structures   []Structure `json:"structures" yaml:"structures"`
}

// Structure returns the structure with the given name, or nil
func (p *Program) Structure(name string) *Structure {
	for i := range p.Structures {
		if p.Structures[i].Name == name {
			return &p.Structures[i]
		}
	}
	return nil
}

// CoveragePeriod returns the earliest effective and latest expiry date across
// all structures. ok is false when no structure carries both dates.
func (p *Program) CoveragePeriod() (effective, expiry Date, ok bool) {
	for _, s := range p.Structures {
		if s.Effective.IsZero() || s.Expiry.IsZero() {
			continue
		}
		if !ok || s.Effective.Before(effective) {
			effective = s.Effective
		}
		if !ok || s.Expiry.After(expiry) {
			expiry = s.Expiry
		}
		ok = true
	}
	return effective, expiry, ok
}

// Structure is one reinsurance agreement of a program
type Structure struct {
	Name        string            `json:"name" yaml:"name"`
	Type        ParticipationType `json:"type_of_participation" yaml:"type_of_participation"`
	Order       int               `json:"order" yaml:"order"`
	Predecessor string            `json:"predecessor_title,omitempty" yaml:"predecessor_title"`
	ClaimBasis  ClaimBasis        `json:"claim_basis" yaml:"claim_basis"`
	Effective   Date              `json:"inception_date,omitempty" yaml:"inception_date"`
	Expiry      Date              `json:"expiry_date,omitempty" yaml:"expiry_date"`
	Sections    []Section         `json:"sections" yaml:"sections"`
}

// Covers reports whether d falls inside the structure's period. Structures
// without both dates cover every date.
func (s *Structure) Covers(d Date) bool {
	if s.Effective.IsZero() || s.Expiry.IsZero() {
		return true
	}
	return d.Within(s.Effective, s.Expiry)
}

// Section is a priced condition of a structure. Conditions absent from the
// map are wildcards.
type Section struct {
	Conditions  map[string]Values `json:"conditions,omitempty" yaml:"conditions"`
	CessionPct  *float64          `json:"cession_pct,omitempty" yaml:"cession_pct"`
	Attachment  *float64          `json:"attachment,omitempty" yaml:"attachment"`
	Limit       *float64          `json:"limit,omitempty" yaml:"limit"`
	SignedShare *float64          `json:"signed_share,omitempty" yaml:"signed_share"`
	Priority    int               `json:"priority,omitempty" yaml:"priority"`
}

// Policy is one bordereau row
type Policy struct {
	ID         string            `json:"policy_id"`
	Exposure   float64           `json:"exposure"`
	Inception  Date              `json:"inception_date"`
	Expiry     Date              `json:"expiry_date"`
	Currency   string            `json:"currency,omitempty"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
}

// Bordereau is an ordered listing of policies
type Bordereau []Policy

// RescalingInfo records how an excess-of-loss layer was rescaled behind a
// quota-share predecessor
type RescalingInfo struct {
	PredecessorTitle   string  `json:"predecessor_title"`
	RetentionFactor    float64 `json:"retention_factor"`
	OriginalAttachment float64 `json:"original_attachment"`
	OriginalLimit      float64 `json:"original_limit"`
	RescaledAttachment float64 `json:"rescaled_attachment"`
	RescaledLimit      float64 `json:"rescaled_limit"`
}

// Non-applied reasons
const (
	ReasonNoMatchingCondition    = "no_matching_condition"
	ReasonOutsideStructurePeriod = "outside_structure_period"
)

// StructureResult is the outcome of one structure for one policy
type StructureResult struct {
	StructureName      string            `json:"structure_name"`
	Type               ParticipationType `json:"type_of_participation"`
	PredecessorTitle   string            `json:"predecessor_title,omitempty"`
	ClaimBasis         ClaimBasis        `json:"claim_basis,omitempty"`
	InceptionDate      Date              `json:"inception_date,omitempty"`
	ExpiryDate         Date              `json:"expiry_date,omitempty"`
	Applied            bool              `json:"applied"`
	Reason             string            `json:"reason,omitempty"`
	InputExposure      float64           `json:"input_exposure"`
	CededToLayer100Pct float64           `json:"ceded_to_layer_100pct"`
	CededToReinsurer   float64           `json:"ceded_to_reinsurer"`
	SignedShare        float64           `json:"signed_share"`
	Retained           float64           `json:"retained"`
	RetentionPct       float64           `json:"retention_pct"`
	Section            *Section          `json:"section"`
	Rescaling          *RescalingInfo    `json:"rescaling"`
}

// Coverage statuses of a treaty application
const (
	CoverageCovered       = "covered"
	CoverageNoTreatyFound = "no_treaty_found"
)

// PolicyResult aggregates the structure outcomes for one policy
type PolicyResult struct {
	PolicyID           string            `json:"policy_id"`
	ProgramName        string            `json:"program_name,omitempty"`
	Exposure           float64           `json:"exposure"`
	CededToLayer100Pct float64           `json:"ceded_to_layer_100pct"`
	CededToReinsurer   float64           `json:"ceded_to_reinsurer"`
	RetainedByCedant   float64           `json:"retained_by_cedant"`
	Structures         []StructureResult `json:"structures"`

	// Set only when the result comes from a treaty book
	SelectedTreatyYear string     `json:"selected_treaty_year,omitempty"`
	ClaimBasis         ClaimBasis `json:"claim_basis,omitempty"`
	CoverageStatus     string     `json:"coverage_status,omitempty"`
	CalculationDate    Date       `json:"calculation_date,omitempty"`
}

// TreatyBook maps an underwriting year label to its program
type TreatyBook map[string]*Program
