package db

import (
	"context"

	"daypass/internal/types"
)

// TemplateRepository reads system email templates from email_templates.
type TemplateRepository struct {
	db DBTX
}

// NewTemplateRepository creates a TemplateRepository.
func NewTemplateRepository(db DBTX) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Get returns the template stored under key, or ErrCodeNotFoundTemplate.
func (r *TemplateRepository) Get(ctx context.Context, key types.TemplateKey) (*types.EmailTemplate, error) {
	var t types.EmailTemplate
	err := r.db.QueryRow(ctx,
		`SELECT subject, body_html FROM email_templates WHERE key = $1`,
		key,
	).Scan(&t.Subject, &t.BodyHTML)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundTemplate, "email template not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load email template", err)
	}
	return &t, nil
}
