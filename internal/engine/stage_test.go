package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lifeshield/internal/session"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name    string
		from    session.Stage
		to      session.Stage
		allowed bool
	}{
		{"onboarding to eligibility", session.StageOnboarding, session.StageEligibilityCheck, true},
		{"onboarding cannot skip to quoting", session.StageOnboarding, session.StageQuoteGeneration, false},
		{"onboarding cannot jump to active policy", session.StageOnboarding, session.StageActivePolicy, false},
		{"eligibility may decline", session.StageEligibilityCheck, session.StageDeclined, true},
		{"quoting to documents", session.StageQuoteGeneration, session.StageDocumentCollection, true},
		{"quoting cannot decline", session.StageQuoteGeneration, session.StageDeclined, false},
		{"underwriting may decline", session.StageUnderwriting, session.StageDeclined, true},
		{"issuance to active policy", session.StagePolicyIssuance, session.StageActivePolicy, true},
		{"active policy to premium holiday", session.StageActivePolicy, session.StagePremiumHoliday, true},
		{"premium holiday back to active", session.StagePremiumHoliday, session.StageActivePolicy, true},
		{"premium holiday cannot reach claims", session.StagePremiumHoliday, session.StageClaimsProcessing, false},
		{"declined goes nowhere", session.StageDeclined, session.StageOnboarding, false},
		{"declined cannot reactivate", session.StageDeclined, session.StageActivePolicy, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, canTransition(tc.from, tc.to))
		})
	}
}
