package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
)

// PreferenceRepository persists notification preferences. Preferences are
// read from the database on every dispatch so toggles apply across all
// instances without coordination.
type PreferenceRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPreferenceRepository creates a new preference repository
func NewPreferenceRepository(db *sqlx.DB, logger *zap.Logger) *PreferenceRepository {
	return &PreferenceRepository{db: db, logger: logger}
}

// GetByUserID returns the user's preferences, defaulting to all alerts on
// for users who never saved any
func (r *PreferenceRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*entities.NotificationPreference, error) {
	pref := &entities.NotificationPreference{}
	err := r.db.GetContext(ctx, pref,
		`SELECT * FROM notification_preferences WHERE user_id = $1`, userID)
	if err == sql.ErrNoRows {
		return &entities.NotificationPreference{
			UserID:           userID,
			AutoSaveAlerts:   true,
			InvestmentAlerts: true,
			KYCAlerts:        true,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return pref, nil
}

// Upsert stores the user's preferences
func (r *PreferenceRepository) Upsert(ctx context.Context, pref *entities.NotificationPreference) error {
	query := `
		INSERT INTO notification_preferences (user_id, auto_save_alerts, investment_alerts, kyc_alerts, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET auto_save_alerts = EXCLUDED.auto_save_alerts,
		    investment_alerts = EXCLUDED.investment_alerts,
		    kyc_alerts = EXCLUDED.kyc_alerts,
		    updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		pref.UserID, pref.AutoSaveAlerts, pref.InvestmentAlerts, pref.KYCAlerts, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
