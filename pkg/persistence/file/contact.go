package file

import (
	"context"

	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/persistence"
)

// ContactRepository stores contact snapshots one file per contact.
type ContactRepository struct {
	store *store[models.Contact]
}

// NewContactRepository creates a file-backed contact repository.
func NewContactRepository(root string) *ContactRepository {
	return &ContactRepository{store: newStore[models.Contact](root, "contacts")}
}

// Save writes the contact snapshot.
func (cr *ContactRepository) Save(ctx context.Context, contact *models.Contact) error {
	if err := cr.store.write(contact.ID, contact); err != nil {
		return persistence.NewRepositoryError("Save", "contact", contact.ID, err)
	}

	return nil
}

// GetByID retrieves a contact snapshot by its ID.
func (cr *ContactRepository) GetByID(ctx context.Context, id string) (*models.Contact, error) {
	contact, err := cr.store.read(id)
	if err != nil {
		if isNotExist(err) {
			return nil, persistence.NewRepositoryError("GetByID", "contact", id, persistence.ErrContactNotFound)
		}

		return nil, persistence.NewRepositoryError("GetByID", "contact", id, err)
	}

	return contact, nil
}
