// Package responder produces the conversational reply text for a turn.
// The stage engine treats it as best-effort: transitions and persistence
// never depend on a reply arriving.
package responder

import (
	"context"

	"lifeshield/internal/session"
)

// Responder generates reply prose for a stage given the applicant snapshot
// and a short instruction hint from the engine.
type Responder interface {
	Reply(ctx context.Context, stage session.Stage, profile session.ApplicantProfile, hint string) (string, error)
}

// Static serves a deterministic per-stage reply. It backs the engine's
// degraded mode and is the full responder in tests.
type Static struct{}

func NewStatic() *Static { return &Static{} }

var staticReplies = map[session.Stage]string{
	session.StageOnboarding:         "Welcome to LifeShield. I can help you find the right term life cover. Let's start with a few details about you.",
	session.StageEligibilityCheck:   "Thanks. I need a little more about your work and lifestyle to check which plans you qualify for.",
	session.StageQuoteGeneration:    "Here are the plans available for you, with premiums worked out from your details. Pick the one that suits you best.",
	session.StageDocumentCollection: "To proceed with your application, please upload the required documents.",
	session.StageUnderwriting:       "Your application is with our underwriting team. This usually takes just a moment.",
	session.StagePolicyIssuance:     "Your application is approved. Complete the payment to activate your policy.",
	session.StageActivePolicy:       "Your policy is active. You can view your policy, request a premium holiday, or start a claim.",
	session.StagePremiumHoliday:     "Your premium holiday request has been registered. Your cover continues as per policy terms.",
	session.StageClaimsProcessing:   "Your claim request has been registered. Our claims team will reach out with the next steps.",
	session.StageDeclined:           "We are sorry, but we are unable to offer you a policy at this time. Thank you for considering LifeShield.",
}

func (s *Static) Reply(_ context.Context, stage session.Stage, _ session.ApplicantProfile, _ string) (string, error) {
	if reply, ok := staticReplies[stage]; ok {
		return reply, nil
	}
	return "Thank you. Let's continue with your application.", nil
}
