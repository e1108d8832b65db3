package models

import "time"

// EngagementKind distinguishes email engagement event lists on a contact.
type EngagementKind string

const (
	EngagementOpened  EngagementKind = "opened"
	EngagementClicked EngagementKind = "clicked"
)

// EngagementEvent is one recorded email interaction for a contact.
type EngagementEvent struct {
	EmailID    string    `json:"email_id"`
	CampaignID string    `json:"campaign_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Contact is the read-model snapshot the engine evaluates conditions against.
// The engine never mutates contacts directly; CRM mutation goes through the
// action executor contract.
type Contact struct {
	ID        string `json:"id"         validate:"required"`
	AccountID string `json:"account_id" validate:"required"`
	Email     string `json:"email"`
	OptedOut  bool   `json:"opted_out"`

	Data           map[string]any               `json:"data,omitempty"`            // Standard fields (name, company, ...)
	Tags           []string                     `json:"tags,omitempty"`
	PipelineStages map[string]string            `json:"pipeline_stages,omitempty"` // pipeline id -> stage id
	CustomFields   map[string]any               `json:"custom_fields,omitempty"`
	Engagement     map[EngagementKind][]EngagementEvent `json:"engagement,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TagSet returns the contact's tags as a set for evaluator membership checks.
func (c *Contact) TagSet() map[string]bool {
	set := make(map[string]bool, len(c.Tags))
	for _, tag := range c.Tags {
		set[tag] = true
	}

	return set
}

// HasEngaged reports whether the contact has an engagement event of the given
// kind for the email id. An empty email id matches any event of that kind.
func (c *Contact) HasEngaged(kind EngagementKind, emailID string) bool {
	for _, event := range c.Engagement[kind] {
		if emailID == "" || event.EmailID == emailID {
			return true
		}
	}

	return false
}
