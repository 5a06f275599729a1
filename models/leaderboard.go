package models

import "time"

// ScopeGlobal is the leaderboard scope covering the primary ledger; any other
// scope value is a path_id.
const ScopeGlobal = "global"

// LeaderboardEntry — materialized ranking projection, rebuilt by the ranker.
// Never authoritative: always reconstructible from UserProgress/UserPath.
type LeaderboardEntry struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	Scope       string    `gorm:"index:idx_lb_scope_rank,priority:1;not null" json:"scope"` // "global" or a path_id
	UserID      string    `gorm:"index" json:"user_id"`                                     // ✅ stores the external_user_id
	XP          int64     `json:"xp"`
	Level       int       `json:"level"`
	Rank        int64     `gorm:"index:idx_lb_scope_rank,priority:2" json:"rank"`
	RefreshedAt time.Time `json:"refreshed_at"`
}
