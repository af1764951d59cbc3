package engine

import (
	"github.com/shopspring/decimal"

	"lifeshield/internal/rating"
	id "lifeshield/pkg/domain"
)

// ActionType tags the single UI action a turn may request.
type ActionType string

const (
	ActionForm             ActionType = "form"
	ActionQuoteDisplay     ActionType = "quote_display"
	ActionDocumentRequest  ActionType = "document_request"
	ActionPaymentRedirect  ActionType = "payment_redirect"
	ActionOptionsSelection ActionType = "options_selection"
	ActionConfirmation     ActionType = "confirmation"
)

// Action is a closed union: the transport layer switches exhaustively on
// Type and renders the payload for that tag. At most one action is emitted
// per processed turn.
type Action interface {
	Type() ActionType
	isAction()
}

// FormField describes one input the UI should collect.
type FormField struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Kind    string   `json:"kind"`
	Options []string `json:"options,omitempty"`
}

// FormAction asks for exactly the listed fields, never one the applicant
// already answered.
type FormAction struct {
	Fields []FormField `json:"fields"`
}

func (FormAction) Type() ActionType { return ActionForm }
func (FormAction) isAction()        {}

// QuoteDisplayAction presents one quote per eligible variant for
// side-by-side comparison.
type QuoteDisplayAction struct {
	Quotes []rating.Quote `json:"quotes"`
}

func (QuoteDisplayAction) Type() ActionType { return ActionQuoteDisplay }
func (QuoteDisplayAction) isAction()        {}

// DocumentRequestAction reports document-collection progress.
type DocumentRequestAction struct {
	Required  []string `json:"required"`
	Satisfied []string `json:"satisfied,omitempty"`
	Missing   []string `json:"missing"`
}

func (DocumentRequestAction) Type() ActionType { return ActionDocumentRequest }
func (DocumentRequestAction) isAction()        {}

// PaymentRedirectAction sends the applicant to the payment gateway.
type PaymentRedirectAction struct {
	PaymentID   id.PaymentID    `json:"payment_id"`
	RedirectURL string          `json:"redirect_url"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

func (PaymentRedirectAction) Type() ActionType { return ActionPaymentRedirect }
func (PaymentRedirectAction) isAction()        {}

// Option is one choice in an OptionsSelectionAction.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// OptionsSelectionAction offers a closed set of next steps.
type OptionsSelectionAction struct {
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
}

func (OptionsSelectionAction) Type() ActionType { return ActionOptionsSelection }
func (OptionsSelectionAction) isAction()        {}

// ConfirmationAction acknowledges a completed or pending step.
type ConfirmationAction struct {
	Title        string `json:"title"`
	Message      string `json:"message,omitempty"`
	PolicyNumber string `json:"policy_number,omitempty"`
}

func (ConfirmationAction) Type() ActionType { return ActionConfirmation }
func (ConfirmationAction) isAction()        {}

// fieldCatalog defines every collectible field once; FormActions reference
// these definitions so the UI renders consistently across stages.
var fieldCatalog = map[string]FormField{
	"full_name":        {Name: "full_name", Label: "Full name", Kind: "text"},
	"email":            {Name: "email", Label: "Email address", Kind: "email"},
	"mobile_number":    {Name: "mobile_number", Label: "Mobile number", Kind: "tel"},
	"date_of_birth":    {Name: "date_of_birth", Label: "Date of birth", Kind: "date"},
	"gender":           {Name: "gender", Label: "Gender", Kind: "select", Options: []string{"male", "female"}},
	"pin_code":         {Name: "pin_code", Label: "PIN code", Kind: "text"},
	"annual_income":    {Name: "annual_income", Label: "Annual income (INR)", Kind: "number"},
	"occupation":       {Name: "occupation", Label: "Occupation", Kind: "text"},
	"tobacco_user":     {Name: "tobacco_user", Label: "Do you use tobacco?", Kind: "select", Options: []string{"yes", "no"}},
	"first_time_buyer": {Name: "first_time_buyer", Label: "Is this your first life insurance policy?", Kind: "select", Options: []string{"yes", "no"}},
	"sum_assured":      {Name: "sum_assured", Label: "Sum assured (INR)", Kind: "number"},
	"policy_term":      {Name: "policy_term", Label: "Policy term (years)", Kind: "number"},
}

// formFor builds a FormAction for the named fields, in the given order.
func formFor(fields []string) FormAction {
	action := FormAction{Fields: make([]FormField, 0, len(fields))}
	for _, name := range fields {
		if def, ok := fieldCatalog[name]; ok {
			action.Fields = append(action.Fields, def)
		} else {
			action.Fields = append(action.Fields, FormField{Name: name, Label: name, Kind: "text"})
		}
	}
	return action
}
