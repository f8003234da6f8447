package domain

import (
	"encoding/json"
	"fmt"
)

// Values is the set of dimension values a section condition accepts.
// It decodes from either a single scalar or a list.
type Values []string

// Contains reports whether v accepts value
func (v Values) Contains(value string) bool {
	for _, candidate := range v {
		if candidate == value {
			return true
		}
	}
	return false
}

// UnmarshalJSON accepts "FR" as well as ["FR", "DE"]
func (v *Values) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*v = Values{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("condition must be a string or a list of strings: %w", err)
	}
	*v = Values(list)
	return nil
}

// UnmarshalYAML accepts a scalar as well as a sequence
func (v *Values) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*v = Values{single}
		return nil
	}
	var list []string
	if err := unmarshal(&list); err != nil {
		return fmt.Errorf("condition must be a scalar or a sequence: %w", err)
	}
	*v = Values(list)
	return nil
}

// Terms is the closed set of parameter shapes a matched section resolves to.
// Only QuotaShareTerms and ExcessOfLossTerms implement it.
type Terms interface {
	Type() ParticipationType
	terms()
}

// QuotaShareTerms are the validated parameters of a quota-share section
type QuotaShareTerms struct {
	CessionPct float64
	Limit      *float64
}

// ExcessOfLossTerms are the validated parameters of an excess-of-loss section
type ExcessOfLossTerms struct {
	Attachment float64
	Limit      float64
}

func (QuotaShareTerms) Type() ParticipationType   { return QuotaShare }
func (ExcessOfLossTerms) Type() ParticipationType { return ExcessOfLoss }
func (QuotaShareTerms) terms()                    {}
func (ExcessOfLossTerms) terms()                  {}

// Rescale returns a copy of the layer expressed on a reduced exposure basis.
// The receiver is left untouched.
func (t ExcessOfLossTerms) Rescale(factor float64) ExcessOfLossTerms {
	return ExcessOfLossTerms{
		Attachment: t.Attachment * factor,
		Limit:      t.Limit * factor,
	}
}

// Terms resolves the section's parameters for the given participation type.
// Missing required parameters and out-of-range values are validation errors.
func (s *Section) Terms(t ParticipationType) (Terms, error) {
	switch t {
	case QuotaShare:
		if s.CessionPct == nil {
			return nil, fmt.Errorf("%w: cession_pct is required for %s", ErrMissingParameter, t)
		}
		if !(*s.CessionPct >= 0 && *s.CessionPct <= 1) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCessionPct, *s.CessionPct)
		}
		if s.Limit != nil && !(*s.Limit >= 0) {
			return nil, fmt.Errorf("%w: %v", ErrNegativeLimit, *s.Limit)
		}
		return QuotaShareTerms{CessionPct: *s.CessionPct, Limit: s.Limit}, nil
	case ExcessOfLoss:
		if s.Attachment == nil {
			return nil, fmt.Errorf("%w: attachment is required for %s", ErrMissingParameter, t)
		}
		if s.Limit == nil {
			return nil, fmt.Errorf("%w: limit is required for %s", ErrMissingParameter, t)
		}
		if !(*s.Attachment >= 0) {
			return nil, fmt.Errorf("%w: %v", ErrNegativeAttachment, *s.Attachment)
		}
		if !(*s.Limit >= 0) {
			return nil, fmt.Errorf("%w: %v", ErrNegativeLimit, *s.Limit)
		}
		return ExcessOfLossTerms{Attachment: *s.Attachment, Limit: *s.Limit}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownParticipationType, string(t))
	}
}

// Share returns the signed share, defaulting to 1.0
func (s *Section) Share() (float64, error) {
	if s.SignedShare == nil {
		return 1.0, nil
	}
	share := *s.SignedShare
	if !(share >= 0 && share <= 1) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSignedShare, share)
	}
	return share, nil
}

// Float returns a pointer to v, for building optional section parameters
func Float(v float64) *float64 {
	return &v
}
