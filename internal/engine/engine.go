// Package engine is the conversation state machine: it applies submitted
// fields to the session, decides the next stage, and emits at most one UI
// action per turn. It is the only writer of session state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lifeshield/internal/audit"
	"lifeshield/internal/documents"
	"lifeshield/internal/payment"
	"lifeshield/internal/platform/metrics"
	"lifeshield/internal/platform/middleware"
	"lifeshield/internal/rating"
	"lifeshield/internal/responder"
	"lifeshield/internal/session"
	"lifeshield/internal/underwriting"
	id "lifeshield/pkg/domain"
	dErrors "lifeshield/pkg/domain-errors"
	"lifeshield/pkg/platform/sentinel"
	lsstrings "lifeshield/pkg/platform/strings"
)

// Deps carries the engine's collaborators. All are required except
// Responder; a nil Responder runs every turn on the static table.
type Deps struct {
	Store      session.Store
	Calculator *rating.Calculator
	Responder  responder.Responder
	Policy     underwriting.Policy
	Documents  *documents.Service
	Gateway    payment.Gateway
	Publisher  audit.Publisher
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	SessionTTL time.Duration
}

// Engine serializes turns per session and drives the stage table.
type Engine struct {
	store   session.Store
	calc    *rating.Calculator
	llm     responder.Responder
	static  *responder.Static
	policy  underwriting.Policy
	docs    *documents.Service
	gateway payment.Gateway
	audit   audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	ttl     time.Duration

	locksMu sync.Mutex
	locks   map[id.SessionID]*sessionLock
}

// sessionLock is refcounted so the locks map only holds entries for
// sessions with a turn in flight.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func New(deps Deps) *Engine {
	return &Engine{
		store:   deps.Store,
		calc:    deps.Calculator,
		llm:     deps.Responder,
		static:  responder.NewStatic(),
		policy:  deps.Policy,
		docs:    deps.Documents,
		gateway: deps.Gateway,
		audit:   deps.Publisher,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		ttl:     deps.SessionTTL,
		locks:   make(map[id.SessionID]*sessionLock),
	}
}

// TurnInput is one inbound applicant turn. Message, FormData and ActionData
// are all optional; an empty input re-evaluates the current stage.
type TurnInput struct {
	SessionID  id.SessionID
	Message    string
	FormData   map[string]string
	ActionData map[string]string
}

// TurnResult is the engine's structured answer for one turn.
type TurnResult struct {
	SessionID     id.SessionID   `json:"session_id"`
	Stage         session.Stage  `json:"stage"`
	Reply         string         `json:"reply"`
	Fallback      bool           `json:"fallback"`
	Action        Action         `json:"-"`
	MissingFields []string       `json:"missing_fields,omitempty"`
	Quotes        []rating.Quote `json:"quotes,omitempty"`
}

// Mapping is the read-only snapshot served by GetMapping.
type Mapping struct {
	SessionID     id.SessionID             `json:"session_id"`
	Stage         session.Stage            `json:"stage"`
	Profile       session.ApplicantProfile `json:"profile"`
	MissingFields []string                 `json:"missing_fields,omitempty"`
	Quotes        []rating.Quote           `json:"quotes,omitempty"`
	SelectedQuote *rating.Quote            `json:"selected_quote,omitempty"`
	Documents     []session.DocumentRef    `json:"documents,omitempty"`
	PolicyNumber  string                   `json:"policy_number,omitempty"`
	DeclineReason string                   `json:"decline_reason,omitempty"`
}

// turnState accumulates what the advance loop decides before the reply is
// generated. Audit events queue here and publish only after the turn
// persists, so a failed save never leaves a trail for state that was lost.
type turnState struct {
	action        Action
	missing       []string
	quotes        []rating.Quote
	replyOverride string
	hint          string
	events        []pendingEvent
}

type pendingEvent struct {
	transition session.StageTransition
	reason     string
}

// StartSession creates a session at onboarding and returns the greeting
// turn with the first form.
func (e *Engine) StartSession(ctx context.Context, userAgent string) (TurnResult, error) {
	sess := session.New(session.SummarizeDevice(userAgent), e.ttl)

	st := &turnState{}
	e.evaluateStage(ctx, sess, st, middleware.GetRequestID(ctx))

	reply, fallback := e.reply(ctx, sess, st)
	sess.AppendTurn(session.ConversationTurn{
		Role: session.RoleAssistant, Content: reply, Fallback: fallback, At: time.Now().UTC(),
	})

	if err := e.store.Create(ctx, sess); err != nil {
		return TurnResult{}, storeErr(err)
	}
	e.flushEvents(ctx, sess.ID, st)
	e.metrics.SessionsStarted.Inc()

	return e.result(sess, st, reply, fallback), nil
}

// ProcessTurn applies one applicant turn under the per-session lock.
func (e *Engine) ProcessTurn(ctx context.Context, in TurnInput) (TurnResult, error) {
	start := time.Now()
	defer func() { e.metrics.TurnDuration.Observe(time.Since(start).Seconds()) }()

	unlock := e.lock(in.SessionID)
	defer unlock()

	sess, err := e.getSession(ctx, in.SessionID)
	if err != nil {
		return TurnResult{}, err
	}

	requestID := middleware.GetRequestID(ctx)
	now := time.Now().UTC()
	if in.Message != "" {
		sess.AppendTurn(session.ConversationTurn{Role: session.RoleUser, Content: in.Message, At: now})
	}

	st := &turnState{}
	if sess.Stage.IsTerminal() {
		// Declined is final: acknowledge, never mutate the profile.
		st.hint = stageHint(sess.Stage)
	} else {
		if verr := e.applyForm(sess, in.FormData, st); verr == nil {
			if aerr := e.applyAction(ctx, sess, in.ActionData, st, requestID); aerr != nil {
				return TurnResult{}, aerr
			}
			e.evaluateStage(ctx, sess, st, requestID)
		}
	}

	reply, fallback := e.reply(ctx, sess, st)
	sess.AppendTurn(session.ConversationTurn{
		Role: session.RoleAssistant, Content: reply, Fallback: fallback, At: time.Now().UTC(),
	})

	if err := e.saveSession(ctx, sess); err != nil {
		return TurnResult{}, err
	}
	e.flushEvents(ctx, sess.ID, st)
	e.metrics.TurnsProcessed.Inc()

	return e.result(sess, st, reply, fallback), nil
}

// GetMapping returns the profile and stage snapshot without mutating state.
func (e *Engine) GetMapping(ctx context.Context, sessionID id.SessionID) (Mapping, error) {
	sess, err := e.getSession(ctx, sessionID)
	if err != nil {
		return Mapping{}, err
	}

	m := Mapping{
		SessionID:     sess.ID,
		Stage:         sess.Stage,
		Profile:       sess.Profile,
		MissingFields: missingFields(sess),
		Quotes:        sess.Quotes,
		Documents:     sess.Documents,
		PolicyNumber:  sess.PolicyNumber,
		DeclineReason: sess.DeclineReason,
	}
	if q, ok := sess.SelectedQuote(); ok {
		m.SelectedQuote = &q
	}
	return m, nil
}

// ResetSession discards all progress and returns the session to onboarding.
// The explicit reset is the one sanctioned way out of any stage, Declined
// included.
func (e *Engine) ResetSession(ctx context.Context, sessionID id.SessionID) (TurnResult, error) {
	unlock := e.lock(sessionID)
	defer unlock()

	sess, err := e.getSession(ctx, sessionID)
	if err != nil {
		return TurnResult{}, err
	}

	requestID := middleware.GetRequestID(ctx)
	now := time.Now().UTC()

	sess.Profile = session.ApplicantProfile{}
	sess.Quotes = nil
	sess.SelectedQuoteID = id.QuoteID{}
	sess.SupersededQuoteIDs = nil
	sess.Documents = nil
	sess.PaymentID = id.PaymentID{}
	sess.PaymentURL = ""
	sess.PaymentDone = false
	sess.PolicyNumber = ""
	sess.DeclineReason = ""
	// Reset is the sanctioned escape from any stage, Declined included, so
	// it bypasses the descriptor table's transition guard.
	transition := sess.RecordTransition(session.StageOnboarding, now, requestID)
	sess.ExpiresAt = now.Add(e.ttl)

	st := &turnState{}
	st.events = append(st.events, pendingEvent{transition: transition, reason: "session reset"})
	e.evaluateStage(ctx, sess, st, requestID)

	reply, fallback := e.reply(ctx, sess, st)
	sess.AppendTurn(session.ConversationTurn{
		Role: session.RoleAssistant, Content: reply, Fallback: fallback, At: time.Now().UTC(),
	})

	if err := e.saveSession(ctx, sess); err != nil {
		return TurnResult{}, err
	}
	e.flushEvents(ctx, sess.ID, st)
	return e.result(sess, st, reply, fallback), nil
}

// RegisterDocument records an uploaded document reference and reports the
// remaining requirements. Content checks belong to the document service;
// only the reference is tracked.
func (e *Engine) RegisterDocument(ctx context.Context, sessionID id.SessionID, docType, reference string) (DocumentStatus, error) {
	if docType == "" || reference == "" {
		return DocumentStatus{}, dErrors.New(dErrors.CodeValidation, "document type and reference are required")
	}
	if !e.docs.Accepts(docType) {
		return DocumentStatus{}, dErrors.Newf(dErrors.CodeValidation, "unknown document type %q", docType)
	}

	unlock := e.lock(sessionID)
	defer unlock()

	sess, err := e.getSession(ctx, sessionID)
	if err != nil {
		return DocumentStatus{}, err
	}
	if sess.Stage.IsTerminal() {
		return DocumentStatus{}, dErrors.New(dErrors.CodeConflict, "this application has been declined")
	}

	// Re-registering a type replaces the earlier reference.
	replaced := false
	now := time.Now().UTC()
	for i, doc := range sess.Documents {
		if doc.Type == docType {
			sess.Documents[i] = session.DocumentRef{Type: docType, Reference: reference, UploadedAt: now}
			replaced = true
			break
		}
	}
	if !replaced {
		sess.Documents = append(sess.Documents, session.DocumentRef{Type: docType, Reference: reference, UploadedAt: now})
	}
	sess.UpdatedAt = now

	if err := e.saveSession(ctx, sess); err != nil {
		return DocumentStatus{}, err
	}

	return DocumentStatus{
		SessionID: sess.ID,
		Required:  e.docs.Required(),
		Satisfied: e.docs.Satisfied(sess),
		Missing:   e.docs.Missing(sess),
		Complete:  e.docs.HasRequiredDocuments(sess),
	}, nil
}

// DocumentStatus reports collection progress after a registration.
type DocumentStatus struct {
	SessionID id.SessionID `json:"session_id"`
	Required  []string     `json:"required"`
	Satisfied []string     `json:"satisfied,omitempty"`
	Missing   []string     `json:"missing,omitempty"`
	Complete  bool         `json:"complete"`
}

// PaymentConfirmed consumes the gateway's webhook: it advances the session
// from issuance to an active policy. Replays of the same confirmation are
// no-ops.
func (e *Engine) PaymentConfirmed(ctx context.Context, sessionID id.SessionID, paymentID id.PaymentID) error {
	unlock := e.lock(sessionID)
	defer unlock()

	sess, err := e.getSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if sess.PaymentDone && sess.PaymentID == paymentID {
		return nil
	}
	if sess.Stage != session.StagePolicyIssuance {
		return dErrors.Newf(dErrors.CodeConflict, "session is in %s, not awaiting payment", sess.Stage)
	}
	if sess.PaymentID != paymentID {
		return dErrors.New(dErrors.CodeConflict, "payment does not match this session")
	}

	now := time.Now().UTC()
	sess.PaymentDone = true
	sess.PolicyNumber = policyNumber(sess)

	st := &turnState{}
	if !e.advance(sess, session.StageActivePolicy, now, middleware.GetRequestID(ctx), "payment confirmed", st) {
		return dErrors.New(dErrors.CodeInternal, "the conversation cannot move forward")
	}

	if err := e.saveSession(ctx, sess); err != nil {
		return err
	}
	e.flushEvents(ctx, sess.ID, st)
	e.metrics.PoliciesIssued.Inc()
	e.logger.Info("policy issued",
		slog.String("session_id", sess.ID.String()),
		slog.String("policy_number", sess.PolicyNumber))
	return nil
}

// applyForm validates and stores submitted fields. The first invalid field
// stops the turn: the engine re-asks for it plus whatever is still missing,
// and the stage holds.
func (e *Engine) applyForm(sess *session.Session, form map[string]string, st *turnState) error {
	if len(form) == 0 {
		return nil
	}
	// Descriptor order first so re-asks list fields in the order the form
	// presented them; leftover keys follow.
	for _, name := range descriptors[sess.Stage].requiredFields {
		value, ok := form[name]
		if !ok {
			continue
		}
		if err := e.applyOne(sess, name, value, st); err != nil {
			return err
		}
		delete(form, name)
	}
	for name, value := range form {
		if err := e.applyOne(sess, name, value, st); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) applyOne(sess *session.Session, name, value string, st *turnState) error {
	err := applyField(&sess.Profile, name, value)
	if err == nil {
		return nil
	}

	fields := lsstrings.DedupeAndTrim(append([]string{name}, missingFields(sess)...))
	st.action = formFor(fields)
	st.missing = fields
	st.replyOverride = dErrors.MessageOf(err)
	st.hint = fmt.Sprintf("Re-ask for %s: %s", name, dErrors.MessageOf(err))
	return err
}

// applyAction handles structured selections: a variant pick during quoting
// or a servicing option on an active policy.
func (e *Engine) applyAction(ctx context.Context, sess *session.Session, action map[string]string, st *turnState, requestID string) error {
	if len(action) == 0 {
		return nil
	}

	if variant, ok := action["variant"]; ok {
		return e.selectVariant(sess, variant, st)
	}
	if option, ok := action["option"]; ok {
		return e.selectOption(ctx, sess, option, st, requestID)
	}
	return nil
}

/// selectVariant is idempotent: re-picking the selected variant changes
// nothing; picking another supersedes the old quote and re-rates.
func (e *Engine) selectVariant(sess *session.Session, variant string, st *turnState) error {
	if sess.Stage != session.StageQuoteGeneration && sess.Stage != session.StageDocumentCollection {
		return dErrors.Newf(dErrors.CodeConflict, "cannot choose a plan during %s", sess.Stage)
	}

	current, hadSelection := sess.SelectedQuote()
	if hadSelection && current.Variant == variant {
		return nil
	}

	input, err := e.ratingInput(sess)
	if err != nil {
		return err
	}
	quotes, err := e.calc.ComputeAll(input)
	if err != nil {
		// The previous selection stays valid; nothing is superseded until
		// a new quote binds.
		return e.holdOnRatingError(err, st)
	}

	for _, q := range quotes {
		if q.Variant == variant {
			if hadSelection {
				sess.SupersededQuoteIDs = append(sess.SupersededQuoteIDs, current.ID)
			}
			sess.Quotes = quotes
			sess.SelectedQuoteID = q.ID
			e.metrics.QuotesComputed.Add(float64(len(quotes)))
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeValidation, "%q is not one of the offered plans", variant)
}

func (e *Engine) selectOption(ctx context.Context, sess *session.Session, option string, st *turnState, requestID string) error {
	now := time.Now().UTC()

	switch sess.Stage {
	case session.StageActivePolicy:
		switch option {
		case "premium_holiday":
			if !e.advance(sess, session.StagePremiumHoliday, now, requestID, "premium holiday requested", st) {
				return dErrors.New(dErrors.CodeInternal, "the conversation cannot move forward")
			}
			st.action = ConfirmationAction{
				Title:        "Premium holiday registered",
				Message:      "Your premiums are paused as per your policy terms.",
				PolicyNumber: sess.PolicyNumber,
			}
		case "claims_processing":
			if !e.advance(sess, session.StageClaimsProcessing, now, requestID, "claim started", st) {
				return dErrors.New(dErrors.CodeInternal, "the conversation cannot move forward")
			}
			st.action = ConfirmationAction{
				Title:        "Claim registered",
				Message:      "Our claims team will contact you with the next steps.",
				PolicyNumber: sess.PolicyNumber,
			}
		case "view_policy":
			st.action = ConfirmationAction{
				Title:        "Your policy",
				PolicyNumber: sess.PolicyNumber,
			}
		default:
			return dErrors.Newf(dErrors.CodeValidation, "unknown option %q", option)
		}

	case session.StagePremiumHoliday, session.StageClaimsProcessing:
		if option != "resume" {
			return dErrors.Newf(dErrors.CodeValidation, "unknown option %q", option)
		}
		if !e.advance(sess, session.StageActivePolicy, now, requestID, "returned to active policy", st) {
			return dErrors.New(dErrors.CodeInternal, "the conversation cannot move forward")
		}

	default:
		return dErrors.Newf(dErrors.CodeConflict, "no options to choose during %s", sess.Stage)
	}
	return nil
}

// evaluateStage runs the advance loop: move forward while the current
// stage's gate is satisfied, then set the action the applicant sees.
func (e *Engine) evaluateStage(ctx context.Context, sess *session.Session, st *turnState, requestID string) {
	// An action chosen by applyAction (confirmations) wins the turn.
	if st.action != nil {
		st.hint = stageHint(sess.Stage)
		return
	}

	for {
		now := time.Now().UTC()

		switch sess.Stage {
		case session.StageOnboarding:
			if missing := missingFields(sess); len(missing) > 0 {
				st.action = formFor(missing)
				st.missing = missing
				st.hint = stageHint(sess.Stage)
				return
			}
			if !e.advance(sess, session.StageEligibilityCheck, now, requestID, "onboarding complete", st) {
				st.hint = stageHint(sess.Stage)
				return
			}

		case session.StageEligibilityCheck:
			// Age is known from onboarding; an out-of-range applicant is
			// declined before being asked anything further.
			table := e.calc.Table()
			if sess.Profile.Age < table.MinAge() || sess.Profile.Age > table.MaxAge() {
				e.decline(sess,
					fmt.Sprintf("entry age must be between %d and %d", table.MinAge(), table.MaxAge()),
					requestID, st)
				st.hint = stageHint(sess.Stage)
				return
			}
			if missing := missingFields(sess); len(missing) > 0 {
				st.action = formFor(missing)
				st.missing = missing
				st.hint = stageHint(sess.Stage)
				return
			}
			if sess.Profile.AnnualIncome < incomeFloor {
				e.decline(sess, "annual income is below the minimum for a term policy", requestID, st)
				st.hint = stageHint(sess.Stage)
				return
			}
			if !e.advance(sess, session.StageQuoteGeneration, now, requestID, "eligibility confirmed", st) {
				st.hint = stageHint(sess.Stage)
				return
			}

		case session.StageQuoteGeneration:
			if missing := missingFields(sess); len(missing) > 0 {
				st.action = formFor(missing)
				st.missing = missing
				st.hint = stageHint(sess.Stage)
				return
			}
			if !sess.SelectedQuoteID.IsZero() {
				if !e.advance(sess, session.StageDocumentCollection, now, requestID, "plan selected", st) {
					st.hint = stageHint(sess.Stage)
					return
				}
				continue
			}
			if len(sess.Quotes) == 0 {
				input, err := e.ratingInput(sess)
				if err == nil {
					var quotes []rating.Quote
					quotes, err = e.calc.ComputeAll(input)
					if err == nil {
						sess.Quotes = quotes
						e.metrics.QuotesComputed.Add(float64(len(quotes)))
					}
				}
				if err != nil {
					_ = e.holdOnRatingError(err, st)
					return
				}
			}
			st.action = QuoteDisplayAction{Quotes: sess.Quotes}
			st.quotes = sess.Quotes
			st.hint = stageHint(sess.Stage)
			return

		case session.StageDocumentCollection:
			if !e.docs.HasRequiredDocuments(sess) {
				st.action = DocumentRequestAction{
					Required:  e.docs.Required(),
					Satisfied: e.docs.Satisfied(sess),
					Missing:   e.docs.Missing(sess),
				}
				st.hint = stageHint(sess.Stage)
				return
			}
			if !e.advance(sess, session.StageUnderwriting, now, requestID, "documents complete", st) {
				st.hint = stageHint(sess.Stage)
				return
			}

		case session.StageUnderwriting:
			quote, ok := sess.SelectedQuote()
			if !ok {
				// Should not happen: quote selection gates entry.
				e.logger.Error("underwriting without a selected quote",
					slog.String("session_id", sess.ID.String()))
				st.hint = stageHint(sess.Stage)
				return
			}
			decision, reason := e.policy.Decide(sess.Profile, quote)
			switch decision {
			case underwriting.DecisionApprove:
				if !e.advance(sess, session.StagePolicyIssuance, now, requestID, "underwriting approved", st) {
					st.hint = stageHint(sess.Stage)
					return
				}
			case underwriting.DecisionRefer:
				st.action = ConfirmationAction{Title: "Application under review", Message: reason}
				st.hint = stageHint(sess.Stage)
				return
			case underwriting.DecisionDecline:
				e.decline(sess, reason, requestID, st)
				st.hint = stageHint(sess.Stage)
				return
			}

		case session.StagePolicyIssuance:
			quote, ok := sess.SelectedQuote()
			if !ok {
				st.hint = stageHint(sess.Stage)
				return
			}
			if sess.PaymentID.IsZero() {
				order, err := e.gateway.Initiate(ctx, sess.ID, quote.AnnualPremium)
				if err != nil {
					st.replyOverride = "We could not reach the payment service just now. Please try again in a moment."
					st.hint = stageHint(sess.Stage)
					return
				}
				sess.PaymentID = order.PaymentID
				sess.PaymentURL = order.RedirectURL
			}
			st.action = PaymentRedirectAction{
				PaymentID:   sess.PaymentID,
				RedirectURL: sess.PaymentURL,
				Amount:      quote.AnnualPremium,
				Currency:    "INR",
			}
			st.hint = stageHint(sess.Stage)
			return

		case session.StageActivePolicy:
			st.action = OptionsSelectionAction{
				Prompt: "What would you like to do?",
				Options: []Option{
					{Value: "view_policy", Label: "View my policy"},
					{Value: "premium_holiday", Label: "Request a premium holiday"},
					{Value: "claims_processing", Label: "Start a claim"},
				},
			}
			st.hint = stageHint(sess.Stage)
			return

		case session.StagePremiumHoliday, session.StageClaimsProcessing:
			st.action = OptionsSelectionAction{
				Prompt: "Anything else?",
				Options: []Option{
					{Value: "resume", Label: "Back to my policy"},
				},
			}
			st.hint = stageHint(sess.Stage)
			return

		default:
			st.hint = stageHint(sess.Stage)
			return
		}
	}
}

func (e *Engine) decline(sess *session.Session, reason, requestID string, st *turnState) {
	if !e.advance(sess, session.StageDeclined, time.Now().UTC(), requestID, reason, st) {
		return
	}
	sess.DeclineReason = reason
	e.metrics.SessionsDeclined.Inc()
	e.logger.Info("session declined",
		slog.String("session_id", sess.ID.String()),
		slog.String("reason", reason))
}

// holdOnRatingError turns a calculator rejection into a user-facing
// explanation; the stage does not advance.
func (e *Engine) holdOnRatingError(err error, st *turnState) error {
	reason := rating.ReasonOf(err)
	if reason == "" {
		return err
	}
	e.metrics.RatingErrors.WithLabelValues(string(reason)).Inc()

	detail := "we could not compute a premium for those details"
	var re *rating.Error
	if errors.As(err, &re) {
		detail = re.Detail
	}
	st.replyOverride = fmt.Sprintf("We could not prepare a quote: %s. You can adjust the cover amount or term and try again.", detail)
	st.hint = "Explain why the quote failed and suggest adjusting the inputs."
	return nil
}

func (e *Engine) ratingInput(sess *session.Session) (rating.Input, error) {
	p := sess.Profile
	if p.TobaccoUser == nil {
		return rating.Input{}, dErrors.New(dErrors.CodeValidation, "tobacco use has not been answered")
	}
	return rating.Input{
		Age:             p.Age,
		Gender:          p.Gender,
		TobaccoUser:     *p.TobaccoUser,
		OccupationClass: p.OccupationClass,
		SumAssured:      p.SumAssured,
		TermYears:       p.TermYears,
		OnlinePurchase:  true, // this channel is always online direct
		FirstTimeBuyer:  p.FirstTimeBuyer,
	}, nil
}

// reply asks the responder for prose; on failure the static table answers
// and the turn is marked as a fallback. Overrides (rating explanations,
// validation re-asks) skip the responder entirely.
func (e *Engine) reply(ctx context.Context, sess *session.Session, st *turnState) (string, bool) {
	if st.replyOverride != "" {
		return st.replyOverride, false
	}
	if e.llm != nil {
		text, err := e.llm.Reply(ctx, sess.Stage, sess.Profile, st.hint)
		if err == nil {
			return text, false
		}
		e.logger.Warn("responder unavailable, using static reply",
			slog.String("session_id", sess.ID.String()),
			slog.String("error", err.Error()))
	}
	e.metrics.ResponderFallbacks.Inc()
	text, _ := e.static.Reply(ctx, sess.Stage, sess.Profile, st.hint)
	return text, true
}

// getSession and saveSession translate storage sentinels into coded errors
// so the transport layer maps them to proper statuses.
func (e *Engine) getSession(ctx context.Context, sessionID id.SessionID) (*session.Session, error) {
	sess, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, storeErr(err)
	}
	return sess, nil
}

func (e *Engine) saveSession(ctx context.Context, sess *session.Session) error {
	return storeErr(e.store.Update(ctx, sess))
}

func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(dErrors.CodeNotFound, "session not found", err)
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.Wrap(dErrors.CodeNotFound, "session has expired", err)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(dErrors.CodeConflict, "session was updated concurrently, please retry", err)
	default:
		return err
	}
}

func (e *Engine) result(sess *session.Session, st *turnState, reply string, fallback bool) TurnResult {
	return TurnResult{
		SessionID:     sess.ID,
		Stage:         sess.Stage,
		Reply:         reply,
		Fallback:      fallback,
		Action:        st.action,
		MissingFields: st.missing,
		Quotes:        st.quotes,
	}
}

// advance moves the session forward, enforcing the descriptor table's
// allowed transitions. A move the table does not declare is a programming
// error: it is logged and the stage holds. The explicit session reset is
// the one move that bypasses this guard.
func (e *Engine) advance(sess *session.Session, to session.Stage, now time.Time, requestID, reason string, st *turnState) bool {
	if !canTransition(sess.Stage, to) {
		e.logger.Error("stage transition not declared",
			slog.String("session_id", sess.ID.String()),
			slog.String("from", sess.Stage.String()),
			slog.String("to", to.String()))
		return false
	}
	t := sess.RecordTransition(to, now, requestID)
	st.events = append(st.events, pendingEvent{transition: t, reason: reason})
	return true
}

// flushEvents publishes the turn's queued audit events. Call only after
// the session persisted.
func (e *Engine) flushEvents(ctx context.Context, sessionID id.SessionID, st *turnState) {
	for _, ev := range st.events {
		e.publishTransition(ctx, sessionID, ev.transition, ev.reason)
	}
	st.events = nil
}

func (e *Engine) publishTransition(ctx context.Context, sessionID id.SessionID, t session.StageTransition, reason string) {
	e.audit.Publish(ctx, audit.Event{
		SessionID: sessionID,
		From:      t.From.String(),
		To:        t.To.String(),
		At:        t.At,
		RequestID: t.RequestID,
		Reason:    reason,
	})
}

// lock serializes turns for one session; distinct sessions proceed in
// parallel.
func (e *Engine) lock(sessionID id.SessionID) func() {
	e.locksMu.Lock()
	l, ok := e.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		e.locks[sessionID] = l
	}
	l.refs++
	e.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, sessionID)
		}
		e.locksMu.Unlock()
	}
}

func policyNumber(sess *session.Session) string {
	quote, _ := sess.SelectedQuote()
	return fmt.Sprintf("LS-%s-%s", quote.TableVersion, sess.ID.Short())
}

