package services

import (
	"fmt"
	"log"

	"progression-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdjustmentResult pairs the ledger outcome with the audit row that recorded it.
type AdjustmentResult struct {
	AwardResult
	LogID string `json:"log_id"`
}

// AdjustmentService is the only legitimate path for administrative XP mutation.
// The mutation and its audit row commit in one transaction: an unaudited admin
// XP change is a compliance gap, so if the audit insert fails the mutation
// rolls back with it.
type AdjustmentService struct {
	DB      *gorm.DB
	Accrual *AccrualService
}

func NewAdjustmentService(db *gorm.DB, accrual *AccrualService) *AdjustmentService {
	return &AdjustmentService{DB: db, Accrual: accrual}
}

// AdjustUserXP validates, mutates, and audits. The audit row stores the
// requested amount even when the applied delta was clamped at the zero floor.
func (s *AdjustmentService) AdjustUserXP(userID string, amount int64, reason string, adjType models.AdjustmentType, adminID string) (*AdjustmentResult, error) {
	switch {
	case userID == "":
		return nil, fmt.Errorf("%w: user_id", ErrMissingParameter)
	case reason == "":
		return nil, fmt.Errorf("%w: reason", ErrMissingParameter)
	case adminID == "":
		return nil, fmt.Errorf("%w: admin_id", ErrMissingParameter)
	}
	switch adjType {
	case models.AdjustmentAdd, models.AdjustmentSubtract, models.AdjustmentSet:
	default:
		return nil, fmt.Errorf("%w: adjustment_type %q", ErrMissingParameter, adjType)
	}
	if adjType == models.AdjustmentAdd && amount < 0 {
		return nil, fmt.Errorf("%w: add of %d (use subtract)", ErrInvalidAmount, amount)
	}

	var result *AdjustmentResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		award, err := s.Accrual.ApplyTx(tx, userID, amount, adjType)
		if err != nil {
			return err
		}

		entry := models.AdjustmentLog{
			ID:             uuid.NewString(),
			ExternalUserID: userID,
			Amount:         amount,
			Reason:         reason,
			AdjustmentType: adjType,
			AdminID:        adminID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to write adjustment log: %w", err)
		}

		result = &AdjustmentResult{AwardResult: *award, LogID: entry.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🛠️ XP adjusted: %s %s %d by admin %s (reason: %s) → XP=%d clamped=%t",
		userID, adjType, amount, adminID, reason, result.NewXP, result.Clamped)
	return result, nil
}

// GetAdjustmentLogs pages the audit trail, newest first. An empty userID
// returns logs across all users. The secondary id ordering keeps pagination
// stable when rows share a created_at.
func (s *AdjustmentService) GetAdjustmentLogs(userID string, limit, offset int) ([]models.AdjustmentLog, int64, error) {
	if limit < 1 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}

	query := func() *gorm.DB {
		q := s.DB.Model(&models.AdjustmentLog{})
		if userID != "" {
			q = q.Where("external_user_id = ?", userID)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.AdjustmentLog
	err := query().Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
