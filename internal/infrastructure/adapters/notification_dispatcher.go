package adapters

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanchay-service/sanchay_service/internal/domain/entities"
)

// NotificationKind selects which preference toggle gates a notification
type NotificationKind string

const (
	NotificationAutoSave   NotificationKind = "AUTO_SAVE"
	NotificationInvestment NotificationKind = "INVESTMENT"
	NotificationKYC        NotificationKind = "KYC"
)

// preferenceReader is the slice of the preference repository the dispatcher
// needs
type preferenceReader interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*entities.NotificationPreference, error)
}

// NotificationDispatcher delivers user notifications. Dispatch is
// fire-and-forget: a delivery failure is logged and never propagates into
// the business operation that triggered it.
type NotificationDispatcher struct {
	logger *zap.Logger
	prefs  preferenceReader
}

// NewNotificationDispatcher creates a new notification dispatcher
func NewNotificationDispatcher(logger *zap.Logger, prefs preferenceReader) *NotificationDispatcher {
	return &NotificationDispatcher{logger: logger, prefs: prefs}
}

// Dispatch sends a notification if the user's preferences allow it
func (d *NotificationDispatcher) Dispatch(userID uuid.UUID, kind NotificationKind, message string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pref, err := d.prefs.GetByUserID(ctx, userID)
		if err != nil {
			d.logger.Warn("Failed to load notification preferences",
				zap.String("user_id", userID.String()), zap.Error(err))
			return
		}

		enabled := false
		switch kind {
		case NotificationAutoSave:
			enabled = pref.AutoSaveAlerts
		case NotificationInvestment:
			enabled = pref.InvestmentAlerts
		case NotificationKYC:
			enabled = pref.KYCAlerts
		}
		if !enabled {
			return
		}

		// Push delivery goes through the mobile app's channel; here we log
		// the dispatch for observability
		d.logger.Info("Notification dispatched",
			zap.String("user_id", userID.String()),
			zap.String("kind", string(kind)),
			zap.String("message", message))
	}()
}
