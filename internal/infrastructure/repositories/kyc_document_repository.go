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
	"github.com/sanchay-service/sanchay_service/internal/infrastructure/database"
	"github.com/sanchay-service/sanchay_service/pkg/errors"
)

// KYCDocumentRepository persists per-user verification facts. Each fact
// update is atomic: the single fact, the re-derived level and the re-derived
// status land in one transaction, so a failed verification never leaves a
// partially updated document.
type KYCDocumentRepository struct {
	db       *sqlx.DB
	userRepo *UserRepository
	logger   *zap.Logger
}

// NewKYCDocumentRepository creates a new KYC document repository
func NewKYCDocumentRepository(db *sqlx.DB, userRepo *UserRepository, logger *zap.Logger) *KYCDocumentRepository {
	return &KYCDocumentRepository{db: db, userRepo: userRepo, logger: logger}
}

// EnsureForUser returns the user's KYC document, creating an empty one on
// first access
func (r *KYCDocumentRepository) EnsureForUser(ctx context.Context, userID uuid.UUID) (*entities.KYCDocument, error) {
	doc := &entities.KYCDocument{}
	err := r.db.GetContext(ctx, doc, `SELECT * FROM kyc_documents WHERE user_id = $1`, userID)
	if err == nil {
		return doc, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get kyc document: %w", err)
	}

	now := time.Now()
	doc = &entities.KYCDocument{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	query := `
		INSERT INTO kyc_documents (id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, doc.ID, doc.UserID, now, now); err != nil {
		return nil, fmt.Errorf("failed to create kyc document: %w", err)
	}

	// Re-read in case of a concurrent insert
	if err := r.db.GetContext(ctx, doc, `SELECT * FROM kyc_documents WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("failed to reload kyc document: %w", err)
	}
	return doc, nil
}

// GetByUserID retrieves the document for a user
func (r *KYCDocumentRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*entities.KYCDocument, error) {
	doc := &entities.KYCDocument{}
	err := r.db.GetContext(ctx, doc, `SELECT * FROM kyc_documents WHERE user_id = $1`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("kyc document")
		}
		return nil, fmt.Errorf("failed to get kyc document: %w", err)
	}
	return doc, nil
}

// FindUserByPAN returns the user already holding a verified PAN, if any
func (r *KYCDocumentRepository) FindUserByPAN(ctx context.Context, pan string) (uuid.UUID, bool, error) {
	var userID uuid.UUID
	err := r.db.GetContext(ctx, &userID,
		`SELECT user_id FROM kyc_documents WHERE pan_number = $1 AND pan_verified = TRUE`, pan)
	if err == sql.ErrNoRows {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to look up pan: %w", err)
	}
	return userID, true, nil
}

// FindUserByAadhaarFingerprint returns the user already holding a verified
// Aadhaar, if any. Aadhaar numbers are stored encrypted, so uniqueness is
// checked against the fingerprint column.
func (r *KYCDocumentRepository) FindUserByAadhaarFingerprint(ctx context.Context, fingerprint string) (uuid.UUID, bool, error) {
	var userID uuid.UUID
	err := r.db.GetContext(ctx, &userID,
		`SELECT user_id FROM kyc_documents WHERE aadhaar_fingerprint = $1 AND aadhaar_verified = TRUE`, fingerprint)
	if err == sql.ErrNoRows {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to look up aadhaar: %w", err)
	}
	return userID, true, nil
}

// applyFact runs a single fact mutation plus the level/status recomputation
// in one transaction.
func (r *KYCDocumentRepository) applyFact(ctx context.Context, userID uuid.UUID, mutate func(tx *sqlx.Tx) error) (*entities.KYCDocument, error) {
	var updated entities.KYCDocument

	err := database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := mutate(tx); err != nil {
			return err
		}

		if err := tx.GetContext(ctx, &updated,
			`SELECT * FROM kyc_documents WHERE user_id = $1 FOR UPDATE`, userID); err != nil {
			return fmt.Errorf("failed to reload kyc document: %w", err)
		}

		level := updated.DeriveKYCLevel()
		status := updated.DeriveKYCStatus()
		return r.userRepo.UpdateKYCTx(ctx, tx, userID, level, status)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetPANFact records a verified PAN and recomputes level/status
func (r *KYCDocumentRepository) SetPANFact(ctx context.Context, userID uuid.UUID, pan string) (*entities.KYCDocument, error) {
	return r.applyFact(ctx, userID, func(tx *sqlx.Tx) error {
		query := `
			UPDATE kyc_documents
			SET pan_number = $2, pan_verified = TRUE, updated_at = $3
			WHERE user_id = $1`
		_, err := tx.ExecContext(ctx, query, userID, pan, time.Now())
		if err != nil {
			return fmt.Errorf("failed to set pan fact: %w", err)
		}
		return nil
	})
}

// SetAadhaarFact records a verified Aadhaar (ciphertext + fingerprint) and
// recomputes level/status
func (r *KYCDocumentRepository) SetAadhaarFact(ctx context.Context, userID uuid.UUID, encrypted, fingerprint string) (*entities.KYCDocument, error) {
	return r.applyFact(ctx, userID, func(tx *sqlx.Tx) error {
		query := `
			UPDATE kyc_documents
			SET aadhaar_encrypted = $2, aadhaar_fingerprint = $3, aadhaar_verified = TRUE, updated_at = $4
			WHERE user_id = $1`
		_, err := tx.ExecContext(ctx, query, userID, encrypted, fingerprint, time.Now())
		if err != nil {
			return fmt.Errorf("failed to set aadhaar fact: %w", err)
		}
		return nil
	})
}

// SetLivenessFact records the liveness score, verification flag and face
// match result, then recomputes level/status
func (r *KYCDocumentRepository) SetLivenessFact(ctx context.Context, userID uuid.UUID, score float64, verified, faceMatched bool) (*entities.KYCDocument, error) {
	return r.applyFact(ctx, userID, func(tx *sqlx.Tx) error {
		query := `
			UPDATE kyc_documents
			SET liveness_score = $2, liveness_verified = $3, face_matched = $4, updated_at = $5
			WHERE user_id = $1`
		_, err := tx.ExecContext(ctx, query, userID, score, verified, faceMatched, time.Now())
		if err != nil {
			return fmt.Errorf("failed to set liveness fact: %w", err)
		}
		return nil
	})
}

// SetBankFact records that a bank account passed penny-drop verification
func (r *KYCDocumentRepository) SetBankFact(ctx context.Context, userID uuid.UUID) (*entities.KYCDocument, error) {
	return r.applyFact(ctx, userID, func(tx *sqlx.Tx) error {
		query := `
			UPDATE kyc_documents
			SET bank_verified = TRUE, updated_at = $2
			WHERE user_id = $1`
		_, err := tx.ExecContext(ctx, query, userID, time.Now())
		if err != nil {
			return fmt.Errorf("failed to set bank fact: %w", err)
		}
		return nil
	})
}

// ResetFacts clears all verification facts, recording the admin-supplied
// rejection reason. This is the only sanctioned path by which a user's KYC
// level decreases.
func (r *KYCDocumentRepository) ResetFacts(ctx context.Context, userID uuid.UUID, reason string) (*entities.KYCDocument, error) {
	return r.applyFact(ctx, userID, func(tx *sqlx.Tx) error {
		query := `
			UPDATE kyc_documents
			SET pan_verified = FALSE, aadhaar_verified = FALSE,
			    liveness_verified = FALSE, face_matched = FALSE,
			    bank_verified = FALSE, rejection_reason = $2, updated_at = $3
			WHERE user_id = $1`
		_, err := tx.ExecContext(ctx, query, userID, reason, time.Now())
		if err != nil {
			return fmt.Errorf("failed to reset kyc facts: %w", err)
		}
		return nil
	})
}
