package models

// ActionType identifies the external domain action that produced an XP event.
// Collaborators may send types beyond the predefined set; paths simply have no
// multiplier entry for them.
type ActionType string

const (
	ActionPostCreated   ActionType = "post_created"
	ActionTipSent       ActionType = "tip_sent"
	ActionTradeClosed   ActionType = "trade_closed"
	ActionDailyLogin    ActionType = "daily_login"
	ActionAdminAdjusted ActionType = "admin_adjusted"
)

// Path: admin-configured progression track ("Trader", "Poster", ...).
// Each path scores the same action stream through its own multipliers.
type Path struct {
	PathID        string                 `gorm:"primaryKey" json:"path_id"` // slug of Name
	Name          string                 `gorm:"not null" json:"name"`
	XPMultipliers map[ActionType]float64 `gorm:"serializer:json" json:"xp_multipliers"`
	IsActive      bool                   `gorm:"default:true" json:"is_active"`

	Timestamps
}

// UserPath: per-user enrollment in a path (composite key), created lazily on
// first path award or on equip.
type UserPath struct {
	ExternalUserID string `gorm:"primaryKey" json:"external_user_id"`
	PathID         string `gorm:"primaryKey" json:"path_id"`

	Primary   bool  `gorm:"column:is_primary;default:false" json:"primary"` // at most one true per user
	PathLevel int   `gorm:"default:1" json:"path_level"`
	PathXP    int64 `gorm:"default:0" json:"path_xp"`

	Timestamps
}
