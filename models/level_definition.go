package models

import "time"

// LevelDefinition: admin-configured level table (loaded from DB, cached in memory)
// Levels form a contiguous key sequence starting at 1 with strictly increasing min_xp.
type LevelDefinition struct {
	Level          int    `gorm:"primaryKey" json:"level"`
	MinXP          int64  `gorm:"not null" json:"min_xp"`
	Name           string `gorm:"not null" json:"name"` // "Newcomer", "Regular", ...
	RewardCurrency int64  `gorm:"default:0" json:"reward_currency"`
	RewardTitleRef string `json:"reward_title_ref"`
	CosmeticUnlock string `gorm:"type:text" json:"cosmetic_unlock"` // e.g., {"frame": "gold_border"}

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// LevelRewards is the transition payload handed to the notification/reward collaborator.
// The core signals the level-up; granting currency/titles is owned elsewhere.
type LevelRewards struct {
	Level          int    `json:"level"`
	Currency       int64  `json:"currency"`
	TitleRef       string `json:"title_ref,omitempty"`
	CosmeticUnlock string `json:"cosmetic_unlock,omitempty"`
}
