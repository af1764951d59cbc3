package httptransport

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"lifeshield/internal/audit"
	"lifeshield/internal/documents"
	"lifeshield/internal/engine"
	"lifeshield/internal/payment"
	"lifeshield/internal/platform/logger"
	"lifeshield/internal/platform/metrics"
	"lifeshield/internal/rating"
	"lifeshield/internal/responder"
	"lifeshield/internal/session"
	"lifeshield/internal/underwriting"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	table, err := rating.LoadDefault()
	if err != nil {
		t.Fatalf("load rate table: %v", err)
	}

	log := logger.New("error")
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	eng := engine.New(engine.Deps{
		Store:      session.NewInMemory(),
		Calculator: rating.NewCalculator(table),
		Responder:  responder.NewStatic(),
		Policy:     underwriting.NewRiskScoring(),
		Documents:  documents.NewService(),
		Gateway:    payment.NewMock(),
		Publisher:  audit.NewInMemoryStore(),
		Metrics:    m,
		Logger:     log,
		SessionTTL: time.Hour,
	})

	return NewRouter(NewHandler(eng, log), log, m, reg)
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeTurn(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var turn map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&turn); err != nil {
		t.Fatalf("decode turn response: %v", err)
	}
	return turn
}

func startSession(t *testing.T, router http.Handler) string {
	t.Helper()

	rec := postJSON(t, router, "/api/chat/session/start", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 starting session, got %d: %s", rec.Code, rec.Body.String())
	}
	turn := decodeTurn(t, rec)
	sid, _ := turn["session_id"].(string)
	if sid == "" {
		t.Fatalf("expected session_id in start response")
	}
	return sid
}

func TestStartSessionReturnsForm(t *testing.T) {
	router := newTestRouter(t)

	rec := postJSON(t, router, "/api/chat/session/start", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	turn := decodeTurn(t, rec)
	if turn["stage"] != "onboarding" {
		t.Fatalf("expected stage onboarding, got %v", turn["stage"])
	}
	if turn["reply"] == "" {
		t.Fatalf("expected a non-empty reply")
	}
	action, ok := turn["action"].(map[string]any)
	if !ok {
		t.Fatalf("expected an action envelope, got %T", turn["action"])
	}
	if action["type"] != "form" {
		t.Fatalf("expected a form action, got %v", action["type"])
	}
}

func TestMessageAdvancesStage(t *testing.T) {
	router := newTestRouter(t)
	sid := startSession(t, router)

	dob := time.Now().UTC().AddDate(-35, 0, -1).Format("2006-01-02")
	rec := postJSON(t, router, "/api/chat/message", map[string]any{
		"session_id": sid,
		"form_data": map[string]string{
			"full_name":     "Rahul Verma",
			"email":         "rahul.verma@example.com",
			"mobile_number": "9876543210",
			"date_of_birth": dob,
			"gender":        "male",
			"pin_code":      "560001",
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	turn := decodeTurn(t, rec)
	if turn["stage"] != "eligibility_check" {
		t.Fatalf("expected stage eligibility_check, got %v", turn["stage"])
	}
}

func TestMessageValidation(t *testing.T) {
	router := newTestRouter(t)

	rec := postJSON(t, router, "/api/chat/message", map[string]any{
		"session_id": "not-a-uuid",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed session_id, got %d", rec.Code)
	}

	rec = postJSON(t, router, "/api/chat/message", map[string]any{
		"session_id": uuid.New().String(),
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", rec.Code)
	}
}

func TestGetSessionMapping(t *testing.T) {
	router := newTestRouter(t)
	sid := startSession(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/session/"+sid, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var mapping map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&mapping); err != nil {
		t.Fatalf("decode mapping: %v", err)
	}
	if mapping["session_id"] != sid {
		t.Fatalf("expected session_id %s, got %v", sid, mapping["session_id"])
	}
	if mapping["stage"] != "onboarding" {
		t.Fatalf("expected stage onboarding, got %v", mapping["stage"])
	}
}

func TestResetSession(t *testing.T) {
	router := newTestRouter(t)
	sid := startSession(t, router)

	rec := postJSON(t, router, "/api/chat/session/"+sid+"/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 resetting, got %d: %s", rec.Code, rec.Body.String())
	}
	turn := decodeTurn(t, rec)
	if turn["stage"] != "onboarding" {
		t.Fatalf("expected stage onboarding after reset, got %v", turn["stage"])
	}
}

func TestRegisterDocumentRejectsUnknownType(t *testing.T) {
	router := newTestRouter(t)
	sid := startSession(t, router)

	rec := postJSON(t, router, "/api/documents/"+sid, map[string]string{
		"type":      "vehicle_registration",
		"reference": "doc-1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown document type, got %d", rec.Code)
	}
}

func TestPaymentConfirmOutOfStage(t *testing.T) {
	router := newTestRouter(t)
	sid := startSession(t, router)

	rec := postJSON(t, router, "/api/payment/confirm", map[string]string{
		"session_id": sid,
		"payment_id": uuid.New().String(),
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 confirming payment during onboarding, got %d", rec.Code)
	}
}

func TestContentTypeGuard(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/message", bytes.NewBufferString("session_id=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415 for non-JSON body, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", rec.Code)
	}
}
