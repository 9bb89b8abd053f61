package db

import (
	"context"

	"daypass/internal/types"
)

// ConfigurationRepository reads seller pass configurations and seller
// attribution data. Configurations are authored elsewhere; this service never
// writes them.
type ConfigurationRepository struct {
	db DBTX
}

// NewConfigurationRepository creates a ConfigurationRepository.
func NewConfigurationRepository(db DBTX) *ConfigurationRepository {
	return &ConfigurationRepository{db: db}
}

// GetByID loads a configuration. The JSONB sections are decoded into the
// typed config structs; fields this service does not use are ignored.
func (r *ConfigurationRepository) GetByID(ctx context.Context, id string) (*types.PassConfiguration, error) {
	var c types.PassConfiguration
	err := r.db.QueryRow(ctx,
		`SELECT id, seller_id, pricing, delivery, templates, renewal
		 FROM pass_configurations WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.SellerID, &c.Pricing, &c.Delivery, &c.Templates, &c.Renewal)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundConfiguration, "pass configuration not found", err,
				map[string]any{"configuration_id": id})
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load pass configuration", err)
	}
	return &c, nil
}

// GetSeller loads the attribution fields for a seller.
func (r *ConfigurationRepository) GetSeller(ctx context.Context, id string) (*types.Seller, error) {
	var s types.Seller
	err := r.db.QueryRow(ctx,
		`SELECT id, name, COALESCE(location_id, ''), COALESCE(distributor_id, '') FROM sellers WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Name, &s.LocationID, &s.DistributorID)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundConfiguration, "seller not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load seller", err)
	}
	return &s, nil
}
