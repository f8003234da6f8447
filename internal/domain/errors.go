package domain

import "errors"

// Validation errors. Each rejects its input outright; no partial result is produced.
var (
	ErrInvalidCessionPct        = errors.New("cession_pct must be within [0, 1]")
	ErrInvalidSignedShare       = errors.New("signed_share must be within [0, 1]")
	ErrNegativeAttachment       = errors.New("attachment must not be negative")
	ErrNegativeLimit            = errors.New("limit must not be negative")
	ErrMissingParameter         = errors.New("missing required section parameter")
	ErrUnknownParticipationType = errors.New("unknown participation type")
	ErrUnknownClaimBasis        = errors.New("unknown claim basis")
	ErrAmbiguousSection         = errors.New("several sections match with equal specificity and priority")
	ErrUndeclaredDimension      = errors.New("condition key is not a declared program dimension")

	ErrDuplicateStructure = errors.New("duplicate structure name")
	ErrUnknownPredecessor = errors.New("predecessor is not a structure of the program")
	ErrPredecessorCycle   = errors.New("predecessor links form a cycle")

	ErrEmptyTreatyBook  = errors.New("treaty book has no treaties")
	ErrEmptyProgram     = errors.New("program has no structures")
	ErrMixedClaimBasis  = errors.New("structures do not share a single claim basis")
	ErrCurrencyMismatch = errors.New("policy currency differs from program main currency")
	ErrNegativeExposure = errors.New("exposure must not be negative")
)

// IsValidation reports whether err stems from invalid program or policy input
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidCessionPct, ErrInvalidSignedShare, ErrNegativeAttachment,
		ErrNegativeLimit, ErrMissingParameter, ErrUnknownParticipationType,
		ErrUnknownClaimBasis, ErrAmbiguousSection, ErrUndeclaredDimension,
		ErrDuplicateStructure,
		ErrUnknownPredecessor, ErrPredecessorCycle, ErrEmptyTreatyBook,
		ErrEmptyProgram, ErrMixedClaimBasis, ErrCurrencyMismatch,
		ErrNegativeExposure,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
