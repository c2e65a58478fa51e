package billing

import (
	"errors"
	"time"

	"github.com/sumin-dev/Magpie/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service. The ledger
// is append-only: there is deliberately no update or delete for
// PaymentLedgerEntry rows.
type Repository interface {
	AppendEntry(entry *models.PaymentLedgerEntry) error
	ListEntriesByUser(userID string) ([]models.PaymentLedgerEntry, error)
	LatestEntryByTransactionKey(transactionKey string) (*models.PaymentLedgerEntry, error)
	FindEntryByUserAndTransactionKey(userID, transactionKey string) (*models.PaymentLedgerEntry, error)
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) AppendEntry(entry *models.PaymentLedgerEntry) error {
	return r.db.Create(entry).Error
}

// ListEntriesByUser returns all ledger rows for a user, newest first. The
// per-user dataset is one row per billing event, small enough to sort in SQL.
func (r *gormRepository) ListEntriesByUser(userID string) ([]models.PaymentLedgerEntry, error) {
	var entries []models.PaymentLedgerEntry
	err := r.db.
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&entries).Error
	return entries, err
}

func (r *gormRepository) LatestEntryByTransactionKey(transactionKey string) (*models.PaymentLedgerEntry, error) {
	var entry models.PaymentLedgerEntry
	err := r.db.
		Where("transaction_key = ?", transactionKey).
		Order("created_at DESC, id DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoLedgerEntry
		}
		return nil, err
	}
	return &entry, nil
}

// FindEntryByUserAndTransactionKey scopes the lookup to the owning user, so
// a caller guessing another user's transaction key gets the same ErrNotFound
// as a key that never existed.
func (r *gormRepository) FindEntryByUserAndTransactionKey(userID, transactionKey string) (*models.PaymentLedgerEntry, error) {
	var entry models.PaymentLedgerEntry
	err := r.db.
		Where("user_id = ? AND transaction_key = ?", userID, transactionKey).
		Order("created_at DESC, id DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "payment_id"},
			{Name: "status"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("payment_id = ? AND status = ?", event.PaymentID, event.Status).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
