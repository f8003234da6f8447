// Package participation provides the pure cession-amount functions for each
// participation type.
package participation

import (
	"fmt"
	"math"

	"github.com/aristath/cession/internal/domain"
)

// QuotaShare cedes cessionPct of exposure, capped at limit when one is given
func QuotaShare(exposure, cessionPct float64, limit *float64) (float64, error) {
	if !(cessionPct >= 0 && cessionPct <= 1) {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidCessionPct, cessionPct)
	}
	ceded := exposure * cessionPct
	if limit != nil {
		if !(*limit >= 0) {
			return 0, fmt.Errorf("%w: %v", domain.ErrNegativeLimit, *limit)
		}
		ceded = math.Min(ceded, *limit)
	}
	return ceded, nil
}

// ExcessOfLoss cedes the exposure above attachment, capped at limit
func ExcessOfLoss(exposure, attachment, limit float64) (float64, error) {
	if !(attachment >= 0) {
		return 0, fmt.Errorf("%w: %v", domain.ErrNegativeAttachment, attachment)
	}
	if !(limit >= 0) {
		return 0, fmt.Errorf("%w: %v", domain.ErrNegativeLimit, limit)
	}
	if exposure <= attachment {
		return 0, nil
	}
	return math.Min(exposure-attachment, limit), nil
}

// Cede applies resolved terms to exposure
func Cede(exposure float64, terms domain.Terms) (float64, error) {
	switch t := terms.(type) {
	case domain.QuotaShareTerms:
		return QuotaShare(exposure, t.CessionPct, t.Limit)
	case domain.ExcessOfLossTerms:
		return ExcessOfLoss(exposure, t.Attachment, t.Limit)
	default:
		return 0, fmt.Errorf("%w: %T", domain.ErrUnknownParticipationType, terms)
	}
}

// RetentionPct is the share of its input a structure leaves to the next one
// for rescaling purposes: 1 - cession_pct for quota share, 1.0 otherwise.
func RetentionPct(terms domain.Terms) float64 {
	if qs, ok := terms.(domain.QuotaShareTerms); ok {
		return 1 - qs.CessionPct
	}
	return 1.0
}

// ReinsurerShare converts a layer's 100% cession into the reinsurer's part
func ReinsurerShare(cededToLayer, signedShare float64) (float64, error) {
	if !(signedShare >= 0 && signedShare <= 1) {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidSignedShare, signedShare)
	}
	return cededToLayer * signedShare, nil
}
