package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/driftline/journey/pkg/models"
	"github.com/driftline/journey/pkg/persistence"
)

// ContactRepository handles contact snapshot database operations.
type ContactRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewContactRepository creates a new contact repository.
func NewContactRepository(db *sql.DB, logger *slog.Logger) *ContactRepository {
	return &ContactRepository{db: db, logger: logger}
}

// Save upserts the contact snapshot.
func (cr *ContactRepository) Save(ctx context.Context, contact *models.Contact) error {
	dataJSON, err := json.Marshal(contact.Data)
	if err != nil {
		return persistence.NewRepositoryError("Save", "contact", contact.ID, fmt.Errorf("failed to marshal data: %w", err))
	}

	tagsJSON, err := json.Marshal(contact.Tags)
	if err != nil {
		return persistence.NewRepositoryError("Save", "contact", contact.ID, fmt.Errorf("failed to marshal tags: %w", err))
	}

	stagesJSON, err := json.Marshal(contact.PipelineStages)
	if err != nil {
		return persistence.NewRepositoryError("Save", "contact", contact.ID, fmt.Errorf("failed to marshal pipeline stages: %w", err))
	}

	customFieldsJSON, err := json.Marshal(contact.CustomFields)
	if err != nil {
		return persistence.NewRepositoryError("Save", "contact", contact.ID, fmt.Errorf("failed to marshal custom fields: %w", err))
	}

	engagementJSON, err := json.Marshal(contact.Engagement)
	if err != nil {
		return persistence.NewRepositoryError("Save", "contact", contact.ID, fmt.Errorf("failed to marshal engagement: %w", err))
	}

	query := `
		INSERT INTO contacts (
			id, account_id, email, opted_out, data, tags,
			pipeline_stages, custom_fields, engagement, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			email = EXCLUDED.email,
			opted_out = EXCLUDED.opted_out,
			data = EXCLUDED.data,
			tags = EXCLUDED.tags,
			pipeline_stages = EXCLUDED.pipeline_stages,
			custom_fields = EXCLUDED.custom_fields,
			engagement = EXCLUDED.engagement,
			updated_at = EXCLUDED.updated_at
	`

	_, err = cr.db.ExecContext(ctx, query,
		contact.ID,
		contact.AccountID,
		contact.Email,
		contact.OptedOut,
		dataJSON,
		tagsJSON,
		stagesJSON,
		customFieldsJSON,
		engagementJSON,
		contact.CreatedAt,
		contact.UpdatedAt,
	)
	if err != nil {
		return persistence.NewRepositoryError("Save", "contact", contact.ID, err)
	}

	return nil
}

// GetByID retrieves a contact snapshot by its ID.
func (cr *ContactRepository) GetByID(ctx context.Context, id string) (*models.Contact, error) {
	query := `
		SELECT id, account_id, email, opted_out, data, tags,
			   pipeline_stages, custom_fields, engagement, created_at, updated_at
		FROM contacts
		WHERE id = $1
	`

	var (
		contact                                                        models.Contact
		dataJSON, tagsJSON, stagesJSON, customFieldsJSON, engagementJSON []byte
	)

	err := cr.db.QueryRowContext(ctx, query, id).Scan(
		&contact.ID,
		&contact.AccountID,
		&contact.Email,
		&contact.OptedOut,
		&dataJSON,
		&tagsJSON,
		&stagesJSON,
		&customFieldsJSON,
		&engagementJSON,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRepositoryError("GetByID", "contact", id, persistence.ErrContactNotFound)
		}

		return nil, persistence.NewRepositoryError("GetByID", "contact", id, err)
	}

	fields := []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"data", dataJSON, &contact.Data},
		{"tags", tagsJSON, &contact.Tags},
		{"pipeline_stages", stagesJSON, &contact.PipelineStages},
		{"custom_fields", customFieldsJSON, &contact.CustomFields},
		{"engagement", engagementJSON, &contact.Engagement},
	}

	for _, field := range fields {
		if len(field.raw) == 0 {
			continue
		}

		if err := json.Unmarshal(field.raw, field.dst); err != nil {
			return nil, persistence.NewRepositoryError("GetByID", "contact", id,
				fmt.Errorf("failed to unmarshal %s: %w", field.name, err))
		}
	}

	return &contact, nil
}
