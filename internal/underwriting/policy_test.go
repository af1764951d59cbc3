package underwriting

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"lifeshield/internal/rating"
	"lifeshield/internal/session"
)

type RiskScoringSuite struct {
	suite.Suite
	policy *RiskScoring
}

func (s *RiskScoringSuite) SetupTest() {
	s.policy = NewRiskScoring()
}

func TestRiskScoringSuite(t *testing.T) {
	suite.Run(t, new(RiskScoringSuite))
}

func boolPtr(v bool) *bool { return &v }

func (s *RiskScoringSuite) TestDecisions() {
	tests := []struct {
		name    string
		profile session.ApplicantProfile
		quote   rating.Quote
		want    Decision
	}{
		{
			name: "clean profile approves",
			profile: session.ApplicantProfile{
				Age: 35, OccupationClass: 1,
				TobaccoUser: boolPtr(false), AnnualIncome: 1_200_000,
			},
			quote: rating.Quote{SumAssured: 10_000_000},
			want:  DecisionApprove,
		},
		{
			name: "overinsurance declines regardless of score",
			profile: session.ApplicantProfile{
				Age: 30, OccupationClass: 1,
				TobaccoUser: boolPtr(false), AnnualIncome: 300_000,
			},
			quote: rating.Quote{SumAssured: 10_000_000},
			want:  DecisionDecline,
		},
		{
			name: "older smoker refers",
			profile: session.ApplicantProfile{
				Age: 58, OccupationClass: 1,
				TobaccoUser: boolPtr(true), AnnualIncome: 2_000_000,
			},
			quote: rating.Quote{SumAssured: 10_000_000},
			want:  DecisionRefer,
		},
		{
			name: "hazardous occupation plus smoking plus age declines",
			profile: session.ApplicantProfile{
				Age: 58, OccupationClass: 4,
				TobaccoUser: boolPtr(true), AnnualIncome: 5_000_000,
			},
			quote: rating.Quote{SumAssured: 10_000_000},
			want:  DecisionDecline,
		},
		{
			name: "large cover alone stays approved",
			profile: session.ApplicantProfile{
				Age: 40, OccupationClass: 1,
				TobaccoUser: boolPtr(false), AnnualIncome: 4_000_000,
			},
			quote: rating.Quote{SumAssured: 60_000_000},
			want:  DecisionApprove,
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			got, reason := s.policy.Decide(tc.profile, tc.quote)
			s.Equal(tc.want, got)
			if got != DecisionApprove {
				s.NotEmpty(reason)
			}
		})
	}
}

func (s *RiskScoringSuite) TestDeterminism() {
	profile := session.ApplicantProfile{
		Age: 58, OccupationClass: 3,
		TobaccoUser: boolPtr(true), AnnualIncome: 2_000_000,
	}
	quote := rating.Quote{SumAssured: 10_000_000}

	first, _ := s.policy.Decide(profile, quote)
	for range 10 {
		again, _ := s.policy.Decide(profile, quote)
		s.Equal(first, again)
	}
}
