package httptransport

import (
	"strings"

	id "lifeshield/pkg/domain"
	dErrors "lifeshield/pkg/domain-errors"
)

const maxFieldValueLen = 512

// MessageRequest is the HTTP request body for POST /api/chat/message.
type MessageRequest struct {
	SessionID  string            `json:"session_id"`
	Message    string            `json:"message,omitempty"`
	FormData   map[string]string `json:"form_data,omitempty"`
	ActionData map[string]string `json:"action_data,omitempty"`

	parsedSessionID id.SessionID
}

// Validate checks and parses the request. Implements httputil.Validatable.
func (r *MessageRequest) Validate() error {
	sid, err := id.ParseSessionID(strings.TrimSpace(r.SessionID))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "session_id must be a valid UUID")
	}
	r.parsedSessionID = sid

	if len(r.Message) > 4000 {
		return dErrors.New(dErrors.CodeValidation, "message must be at most 4000 characters")
	}
	for name, value := range r.FormData {
		if len(name) > 64 || len(value) > maxFieldValueLen {
			return dErrors.Newf(dErrors.CodeValidation, "form field %q is too long", name)
		}
	}
	for name, value := range r.ActionData {
		if len(name) > 64 || len(value) > maxFieldValueLen {
			return dErrors.Newf(dErrors.CodeValidation, "action field %q is too long", name)
		}
	}
	return nil
}

// DocumentRequest is the HTTP request body for POST /api/documents/{sessionID}.
type DocumentRequest struct {
	Type      string `json:"type"`
	Reference string `json:"reference"`
}

func (r *DocumentRequest) Validate() error {
	r.Type = strings.TrimSpace(r.Type)
	r.Reference = strings.TrimSpace(r.Reference)
	if r.Type == "" {
		return dErrors.New(dErrors.CodeValidation, "type is required")
	}
	if r.Reference == "" || len(r.Reference) > maxFieldValueLen {
		return dErrors.New(dErrors.CodeValidation, "reference is required and must be short")
	}
	return nil
}

// PaymentConfirmRequest is the gateway webhook body for POST /api/payment/confirm.
type PaymentConfirmRequest struct {
	SessionID string `json:"session_id"`
	PaymentID string `json:"payment_id"`

	parsedSessionID id.SessionID
	parsedPaymentID id.PaymentID
}

func (r *PaymentConfirmRequest) Validate() error {
	sid, err := id.ParseSessionID(strings.TrimSpace(r.SessionID))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "session_id must be a valid UUID")
	}
	pid, err := id.ParsePaymentID(strings.TrimSpace(r.PaymentID))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "payment_id must be a valid UUID")
	}
	r.parsedSessionID = sid
	r.parsedPaymentID = pid
	return nil
}
