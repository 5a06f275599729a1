package models

import "time"

type AdjustmentType string

const (
	AdjustmentAdd      AdjustmentType = "add"
	AdjustmentSubtract AdjustmentType = "subtract"
	AdjustmentSet      AdjustmentType = "set"
)

// AdjustmentLog is the append-only audit trail for every administrative XP change.
// Rows are never updated or deleted; Amount records the requested value even when
// the applied mutation was clamped.
type AdjustmentLog struct {
	ID             string         `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string         `gorm:"index;not null" json:"external_user_id"`
	Amount         int64          `json:"amount"` // signed, as requested by the admin
	Reason         string         `gorm:"not null" json:"reason"`
	AdjustmentType AdjustmentType `gorm:"type:varchar(16);not null" json:"adjustment_type"`
	AdminID        string         `gorm:"index;not null" json:"admin_id"`
	CreatedAt      time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}
