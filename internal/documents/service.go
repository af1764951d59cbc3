// Package documents tracks which KYC document references a session has
// registered. Content validation and storage belong to the external
// document service; only presence matters here.
package documents

import "lifeshield/internal/session"

// RequiredTypes is the document set every application must register before
// underwriting.
var RequiredTypes = []string{"identity_proof", "address_proof", "income_proof"}

// Service answers document-gating questions against a session's registered
// references.
type Service struct {
	required []string
}

func NewService() *Service {
	return &Service{required: RequiredTypes}
}

// Required returns the configured document-type list.
func (s *Service) Required() []string {
	return append([]string(nil), s.required...)
}

// Satisfied returns the required types the session has a reference for.
func (s *Service) Satisfied(sess *session.Session) []string {
	have := make(map[string]bool, len(sess.Documents))
	for _, doc := range sess.Documents {
		have[doc.Type] = true
	}
	var satisfied []string
	for _, t := range s.required {
		if have[t] {
			satisfied = append(satisfied, t)
		}
	}
	return satisfied
}

// Missing returns the required types the session still lacks.
func (s *Service) Missing(sess *session.Session) []string {
	have := make(map[string]bool, len(sess.Documents))
	for _, doc := range sess.Documents {
		have[doc.Type] = true
	}
	var missing []string
	for _, t := range s.required {
		if !have[t] {
			missing = append(missing, t)
		}
	}
	return missing
}

// HasRequiredDocuments reports whether every required type is registered.
func (s *Service) HasRequiredDocuments(sess *session.Session) bool {
	return len(s.Missing(sess)) == 0
}

// Accepts reports whether a document type belongs to the required list.
func (s *Service) Accepts(docType string) bool {
	for _, t := range s.required {
		if t == docType {
			return true
		}
	}
	return false
}
