package session

import (
	"time"

	"github.com/mssola/useragent"

	"lifeshield/internal/rating"
	id "lifeshield/pkg/domain"
)

// Stage is the conversation lifecycle position. Transitions only move
// through the engine; stores persist whatever stage they are given.
type Stage string

const (
	StageOnboarding         Stage = "onboarding"
	StageEligibilityCheck   Stage = "eligibility_check"
	StageQuoteGeneration    Stage = "quote_generation"
	StageDocumentCollection Stage = "document_collection"
	StageUnderwriting       Stage = "underwriting"
	StagePolicyIssuance     Stage = "policy_issuance"
	StageActivePolicy       Stage = "active_policy"
	StagePremiumHoliday     Stage = "premium_holiday"
	StageClaimsProcessing   Stage = "claims_processing"
	StageDeclined           Stage = "declined"
)

func (s Stage) String() string { return string(s) }

// Terminal stages accept no further transitions.
func (s Stage) IsTerminal() bool { return s == StageDeclined }

// ParseStage validates an inbound stage value.
func ParseStage(v string) (Stage, bool) {
	switch Stage(v) {
	case StageOnboarding, StageEligibilityCheck, StageQuoteGeneration,
		StageDocumentCollection, StageUnderwriting, StagePolicyIssuance,
		StageActivePolicy, StagePremiumHoliday, StageClaimsProcessing,
		StageDeclined:
		return Stage(v), true
	}
	return "", false
}

// TurnRole distinguishes who produced a conversation entry.
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// ConversationTurn is one utterance in the session transcript. Fallback
// marks assistant turns produced from the static response table rather
// than the language model.
type ConversationTurn struct {
	Role     TurnRole  `json:"role"`
	Content  string    `json:"content"`
	Fallback bool      `json:"fallback,omitempty"`
	At       time.Time `json:"at"`
}

// StageTransition records one lifecycle move, for audit and replay.
type StageTransition struct {
	From      Stage     `json:"from"`
	To        Stage     `json:"to"`
	At        time.Time `json:"at"`
	RequestID string    `json:"request_id,omitempty"`
}

// DocumentRef tracks an uploaded document by external reference. The
// document bytes themselves never enter the session store.
type DocumentRef struct {
	Type       string    `json:"type"`
	Reference  string    `json:"reference"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// DeviceInfo is a summarized view of the applicant's user agent, captured
// at session start.
type DeviceInfo struct {
	UserAgent string `json:"user_agent,omitempty"`
	Browser   string `json:"browser,omitempty"`
	OS        string `json:"os,omitempty"`
	Mobile    bool   `json:"mobile,omitempty"`
}

// SummarizeDevice parses a raw User-Agent header into DeviceInfo.
func SummarizeDevice(raw string) DeviceInfo {
	if raw == "" {
		return DeviceInfo{}
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	browser := name
	if version != "" {
		browser = name + " " + version
	}
	return DeviceInfo{
		UserAgent: raw,
		Browser:   browser,
		OS:        ua.OS(),
		Mobile:    ua.Mobile(),
	}
}

// ApplicantProfile accumulates collected facts across stages. Typed fields
// hold validated values; Fields keeps the raw submissions so a stage can be
// replayed or audited. TobaccoUser is a pointer because "not asked yet" and
// "answered no" must stay distinct.
type ApplicantProfile struct {
	FullName        string        `json:"full_name,omitempty"`
	Email           string        `json:"email,omitempty"`
	MobileNumber    string        `json:"mobile_number,omitempty"`
	DateOfBirth     time.Time     `json:"date_of_birth,omitempty"`
	Age             int           `json:"age,omitempty"`
	Gender          rating.Gender `json:"gender,omitempty"`
	PinCode         string        `json:"pin_code,omitempty"`
	AnnualIncome    int64         `json:"annual_income,omitempty"`
	Occupation      string        `json:"occupation,omitempty"`
	OccupationClass int           `json:"occupation_class,omitempty"`
	TobaccoUser     *bool         `json:"tobacco_user,omitempty"`
	SumAssured      int64         `json:"sum_assured,omitempty"`
	TermYears       int           `json:"term_years,omitempty"`
	FirstTimeBuyer  bool          `json:"first_time_buyer,omitempty"`

	Fields map[string]string `json:"fields,omitempty"`
}

// SetField records a raw submission alongside whatever typed field the
// validator populated.
func (p *ApplicantProfile) SetField(name, value string) {
	if p.Fields == nil {
		p.Fields = make(map[string]string)
	}
	p.Fields[name] = value
}

// Session is the unit of persistence: one applicant's conversation, profile,
// quotes and policy progress. Version supports optimistic concurrency in
// stores that need it.
type Session struct {
	ID      id.SessionID     `json:"id"`
	Stage   Stage            `json:"stage"`
	Profile ApplicantProfile `json:"profile"`

	Quotes             []rating.Quote `json:"quotes,omitempty"`
	SelectedQuoteID    id.QuoteID     `json:"selected_quote_id,omitempty"`
	SupersededQuoteIDs []id.QuoteID   `json:"superseded_quote_ids,omitempty"`

	Documents []DocumentRef `json:"documents,omitempty"`

	PaymentID     id.PaymentID `json:"payment_id,omitempty"`
	PaymentURL    string       `json:"payment_url,omitempty"`
	PaymentDone   bool         `json:"payment_done,omitempty"`
	PolicyNumber  string       `json:"policy_number,omitempty"`
	DeclineReason string       `json:"decline_reason,omitempty"`

	History     []ConversationTurn `json:"history,omitempty"`
	Transitions []StageTransition  `json:"transitions,omitempty"`

	Device DeviceInfo `json:"device,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// New creates a fresh session in the onboarding stage.
func New(device DeviceInfo, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id.NewSessionID(),
		Stage:     StageOnboarding,
		Device:    device,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the session's TTL has lapsed at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// SelectedQuote returns the quote the applicant accepted, if any.
func (s *Session) SelectedQuote() (rating.Quote, bool) {
	if s.SelectedQuoteID.IsZero() {
		return rating.Quote{}, false
	}
	for _, q := range s.Quotes {
		if q.ID == s.SelectedQuoteID {
			return q, true
		}
	}
	return rating.Quote{}, false
}

// AppendTurn adds a transcript entry and bumps the update time.
func (s *Session) AppendTurn(turn ConversationTurn) {
	s.History = append(s.History, turn)
	s.UpdatedAt = turn.At
}

// RecordTransition appends a lifecycle move and switches the stage.
func (s *Session) RecordTransition(to Stage, at time.Time, requestID string) StageTransition {
	t := StageTransition{From: s.Stage, To: to, At: at, RequestID: requestID}
	s.Transitions = append(s.Transitions, t)
	s.Stage = to
	s.UpdatedAt = at
	return t
}

// Clone deep-copies the session so in-memory stores can hand out snapshots
// without sharing mutable slices or maps.
func (s *Session) Clone() *Session {
	c := *s
	if s.Profile.Fields != nil {
		c.Profile.Fields = make(map[string]string, len(s.Profile.Fields))
		for k, v := range s.Profile.Fields {
			c.Profile.Fields[k] = v
		}
	}
	if s.Profile.TobaccoUser != nil {
		v := *s.Profile.TobaccoUser
		c.Profile.TobaccoUser = &v
	}
	c.Quotes = append([]rating.Quote(nil), s.Quotes...)
	c.SupersededQuoteIDs = append([]id.QuoteID(nil), s.SupersededQuoteIDs...)
	c.Documents = append([]DocumentRef(nil), s.Documents...)
	c.History = append([]ConversationTurn(nil), s.History...)
	c.Transitions = append([]StageTransition(nil), s.Transitions...)
	return &c
}
