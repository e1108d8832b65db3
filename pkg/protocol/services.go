package protocol

import "context"

// Downstream business services. The engine defines only the contract those
// services must satisfy; it does not implement them.

// EmailMessage is one outbound email request.
type EmailMessage struct {
	ContactID  string         `json:"contact_id"`
	AccountID  string         `json:"account_id"`
	TemplateID string         `json:"template_id"`
	Subject    string         `json:"subject,omitempty"`
	Variables  map[string]any `json:"variables,omitempty"`
}

// EmailSender delivers workflow emails.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) (messageID string, err error)
}

// SMSMessage is one outbound SMS request.
type SMSMessage struct {
	ContactID string `json:"contact_id"`
	AccountID string `json:"account_id"`
	Body      string `json:"body"`
}

// SMSSender delivers workflow SMS messages.
type SMSSender interface {
	Send(ctx context.Context, msg SMSMessage) (messageID string, err error)
}

// CRMService mutates contacts on behalf of CRM actions.
type CRMService interface {
	AddTag(ctx context.Context, accountID, contactID, tag string) error
	RemoveTag(ctx context.Context, accountID, contactID, tag string) error
	UpdateContact(ctx context.Context, accountID, contactID string, fields map[string]any) error
}
