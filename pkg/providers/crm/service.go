// Package crm implements the CRM service contract against the local contact
// store. Deployments with an external CRM replace this with an API-backed
// implementation; the executors only see the interface.
package crm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/persistence"
	"github.com/driftline/journey/pkg/protocol"
)

// Service mutates contacts in the contact repository.
type Service struct {
	contacts persistence.ContactRepository
	logger   *slog.Logger
}

// NewService creates a contact-store backed CRM service.
func NewService(logger *slog.Logger, contacts persistence.ContactRepository) *Service {
	return &Service{
		contacts: contacts,
		logger:   logger.With("module", "crm"),
	}
}

var _ protocol.CRMService = (*Service)(nil)

// AddTag appends the tag to the contact if not already present.
func (s *Service) AddTag(ctx context.Context, accountID, contactID, tag string) error {
	return s.update(ctx, accountID, contactID, func(contact *models.Contact) {
		if contact.TagSet()[tag] {
			return
		}

		contact.Tags = append(contact.Tags, tag)
	})
}

// RemoveTag drops the tag from the contact. Removing an absent tag is a no-op.
func (s *Service) RemoveTag(ctx context.Context, accountID, contactID, tag string) error {
	return s.update(ctx, accountID, contactID, func(contact *models.Contact) {
		kept := contact.Tags[:0]

		for _, t := range contact.Tags {
			if t != tag {
				kept = append(kept, t)
			}
		}

		contact.Tags = kept
	})
}

// UpdateContact merges the given fields into the contact's custom fields.
func (s *Service) UpdateContact(ctx context.Context, accountID, contactID string, fields map[string]any) error {
	return s.update(ctx, accountID, contactID, func(contact *models.Contact) {
		if contact.CustomFields == nil {
			contact.CustomFields = make(map[string]any, len(fields))
		}

		for name, value := range fields {
			contact.CustomFields[name] = value
		}
	})
}

func (s *Service) update(ctx context.Context, accountID, contactID string, mutate func(*models.Contact)) error {
	contact, err := s.contacts.GetByID(ctx, contactID)
	if err != nil {
		return err
	}

	if contact.AccountID != accountID {
		return fmt.Errorf("contact %s does not belong to account %s", contactID, accountID)
	}

	mutate(contact)
	contact.UpdatedAt = time.Now().UTC()

	if err := s.contacts.Save(ctx, contact); err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "Contact updated", "contact_id", contactID)

	return nil
}
