// Package underwriting decides whether an application proceeds to issuance.
package underwriting

import (
	"lifeshield/internal/rating"
	"lifeshield/internal/session"
)

// Decision is the underwriting outcome for an application.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionRefer   Decision = "refer"
	DecisionDecline Decision = "decline"
)

// Policy decides an application given the collected profile and the quote
// being bought. Implementations must be deterministic for the same inputs.
type Policy interface {
	Decide(profile session.ApplicantProfile, quote rating.Quote) (Decision, string)
}

// RiskScoring is the automatic underwriting policy: a small additive risk
// score over the declared profile, with hard stops for overinsurance.
type RiskScoring struct {
	// MaxIncomeMultiple caps sum assured as a multiple of annual income.
	MaxIncomeMultiple int64
	ReferScore        int
	DeclineScore      int
}

func NewRiskScoring() *RiskScoring {
	return &RiskScoring{
		MaxIncomeMultiple: 25,
		ReferScore:        4,
		DeclineScore:      6,
	}
}

func (p *RiskScoring) Decide(profile session.ApplicantProfile, quote rating.Quote) (Decision, string) {
	if profile.AnnualIncome > 0 && quote.SumAssured > profile.AnnualIncome*p.MaxIncomeMultiple {
		return DecisionDecline, "requested cover exceeds the income-based limit"
	}

	score := 0
	if profile.Age > 55 {
		score += 2
	}
	if profile.TobaccoUser != nil && *profile.TobaccoUser {
		score += 2
	}
	switch profile.OccupationClass {
	case 3:
		score++
	case 4:
		score += 3
	}
	if quote.SumAssured >= 50_000_000 {
		score++
	}

	switch {
	case score >= p.DeclineScore:
		return DecisionDecline, "combined risk profile is outside acceptance limits"
	case score >= p.ReferScore:
		return DecisionRefer, "application referred for manual review"
	default:
		return DecisionApprove, ""
	}
}
