package engine

import (
	"lifeshield/internal/session"
	"lifeshield/pkg/platform/strings"
)

// descriptor declares what a stage needs before it can be exited and where
// it may go next. One generic transition loop interprets the table;
// per-stage behavior lives in the advance hooks, not in subtypes.
type descriptor struct {
	requiredFields []string
	allowedNext    []session.Stage
	hint           string
}

var descriptors = map[session.Stage]descriptor{
	session.StageOnboarding: {
		requiredFields: []string{"full_name", "email", "mobile_number", "date_of_birth", "gender", "pin_code"},
		allowedNext:    []session.Stage{session.StageEligibilityCheck},
		hint:           "Collect the applicant's basic contact and identity details.",
	},
	session.StageEligibilityCheck: {
		requiredFields: []string{"annual_income", "occupation", "tobacco_user"},
		allowedNext:    []session.Stage{session.StageQuoteGeneration, session.StageDeclined},
		hint:           "Collect income, occupation and lifestyle details to check eligibility.",
	},
	session.StageQuoteGeneration: {
		requiredFields: []string{"sum_assured", "policy_term"},
		allowedNext:    []session.Stage{session.StageDocumentCollection},
		hint:           "Present the computed plan options and help the applicant choose.",
	},
	session.StageDocumentCollection: {
		allowedNext: []session.Stage{session.StageUnderwriting},
		hint:        "Ask the applicant to upload the outstanding documents.",
	},
	session.StageUnderwriting: {
		allowedNext: []session.Stage{session.StagePolicyIssuance, session.StageDeclined},
		hint:        "Explain that the application is being reviewed.",
	},
	session.StagePolicyIssuance: {
		allowedNext: []session.Stage{session.StageActivePolicy},
		hint:        "Guide the applicant to complete the payment.",
	},
	session.StageActivePolicy: {
		allowedNext: []session.Stage{session.StageActivePolicy, session.StagePremiumHoliday, session.StageClaimsProcessing},
		hint:        "Help the policyholder with servicing options.",
	},
	session.StagePremiumHoliday: {
		allowedNext: []session.Stage{session.StageActivePolicy},
		hint:        "Confirm the premium holiday request and how to resume.",
	},
	session.StageClaimsProcessing: {
		allowedNext: []session.Stage{session.StageActivePolicy},
		hint:        "Confirm the claim registration and next steps.",
	},
	session.StageDeclined: {
		hint: "Politely explain that no policy can be offered.",
	},
}

// canTransition reports whether the descriptor table allows the move.
func canTransition(from, to session.Stage) bool {
	for _, next := range descriptors[from].allowedNext {
		if next == to {
			return true
		}
	}
	return false
}

// missingFields lists the current stage's required fields the profile has
// not collected yet. A field submitted and validated once is never re-asked;
// the list may only shrink as the conversation proceeds.
func missingFields(sess *session.Session) []string {
	var missing []string
	for _, name := range descriptors[sess.Stage].requiredFields {
		if _, collected := sess.Profile.Fields[name]; !collected {
			missing = append(missing, name)
		}
	}
	return strings.DedupeAndTrim(missing)
}

func stageHint(stage session.Stage) string {
	return descriptors[stage].hint
}
