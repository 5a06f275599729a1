package services

import (
	"errors"
	"fmt"
	"log"

	"progression-service/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Paths level on their own closed-form curve, independent of the global
// LevelDefinition table: level = 1 + floor(pathXp / 1000).
const PathXPPerLevel = 1000

func PathLevelForXP(pathXP int64) int {
	if pathXP < 0 {
		return 1
	}
	return 1 + int(pathXP/PathXPPerLevel)
}

// PathAwardResult reports a path-scoped accrual outcome.
type PathAwardResult struct {
	UserID       string `json:"user_id"`
	PathID       string `json:"path_id"`
	NewPathXP    int64  `json:"new_path_xp"`
	NewPathLevel int    `json:"new_path_level"`
	LeveledUp    bool   `json:"leveled_up"`
}

// PathTrackerService scores the action stream through each path's multipliers.
// UserPath rows are created lazily; mutations hold a row lock like the primary
// ledger so concurrent awards to the same (user, path) never lose updates.
type PathTrackerService struct {
	DB    *gorm.DB
	Paths *PathService
}

func NewPathTrackerService(db *gorm.DB, paths *PathService) *PathTrackerService {
	return &PathTrackerService{DB: db, Paths: paths}
}

// AwardToPath applies rawAmount × the path's multiplier for actionType. The
// multiply runs in decimal and floors to whole XP, so 100 × 1.5 is exactly 150.
// Action types without a configured multiplier score at 1.0.
func (s *PathTrackerService) AwardToPath(userID, pathID string, rawAmount int64, actionType models.ActionType) (*PathAwardResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id", ErrMissingParameter)
	}
	if rawAmount < 0 {
		return nil, fmt.Errorf("%w: path award of %d", ErrInvalidAmount, rawAmount)
	}

	path, err := s.Paths.GetActive(pathID)
	if err != nil {
		return nil, err
	}

	multiplier := 1.0
	if m, ok := path.XPMultipliers[actionType]; ok {
		multiplier = m
	}
	delta := decimal.NewFromInt(rawAmount).
		Mul(decimal.NewFromFloat(multiplier)).
		Floor().
		IntPart()

	var result *PathAwardResult
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		up, err := s.lockedUserPath(tx, userID, pathID)
		if err != nil {
			return err
		}

		prevLevel := up.PathLevel
		up.PathXP += delta
		up.PathLevel = PathLevelForXP(up.PathXP)

		if err := tx.Save(up).Error; err != nil {
			return fmt.Errorf("failed to save user path %s/%s: %w", userID, pathID, err)
		}

		result = &PathAwardResult{
			UserID:       userID,
			PathID:       pathID,
			NewPathXP:    up.PathXP,
			NewPathLevel: up.PathLevel,
			LeveledUp:    up.PathLevel > prevLevel,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🛤️ Path XP: %s +%d on %s (%s ×%.2f) → XP=%d, Lvl=%d",
		userID, delta, pathID, actionType, multiplier, result.NewPathXP, result.NewPathLevel)
	return result, nil
}

// AwardToPrimary routes an organic award into the user's equipped path, if any.
// Users without a primary path are a silent no-op.
func (s *PathTrackerService) AwardToPrimary(userID string, rawAmount int64, actionType models.ActionType) (*PathAwardResult, error) {
	var up models.UserPath
	err := s.DB.Where("external_user_id = ? AND is_primary = ?", userID, true).First(&up).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.AwardToPath(userID, up.PathID, rawAmount, actionType)
}

// SetPrimaryPath equips a path: clear the primary flag on all of the user's
// rows, then set it on the target, creating the row if absent. Idempotent.
func (s *PathTrackerService) SetPrimaryPath(userID, pathID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user_id", ErrMissingParameter)
	}
	if _, err := s.Paths.GetActive(pathID); err != nil {
		return err
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.UserPath{}).
			Where("external_user_id = ?", userID).
			Update("is_primary", false).Error; err != nil {
			return err
		}

		up, err := s.lockedUserPath(tx, userID, pathID)
		if err != nil {
			return err
		}
		up.Primary = true
		return tx.Save(up).Error
	})
}

// PrimaryPath returns the user's equipped path row, or nil when unset.
func (s *PathTrackerService) PrimaryPath(userID string) (*models.UserPath, error) {
	var up models.UserPath
	err := s.DB.Where("external_user_id = ? AND is_primary = ?", userID, true).First(&up).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &up, nil
}

// UserPaths lists all path enrollments for a user.
func (s *PathTrackerService) UserPaths(userID string) ([]models.UserPath, error) {
	var ups []models.UserPath
	err := s.DB.Where("external_user_id = ?", userID).Order("path_id ASC").Find(&ups).Error
	return ups, err
}

func (s *PathTrackerService) lockedUserPath(tx *gorm.DB, userID, pathID string) (*models.UserPath, error) {
	var up models.UserPath
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_user_id = ? AND path_id = ?", userID, pathID).
		First(&up).Error
	if err == nil {
		return &up, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	up = models.UserPath{
		ExternalUserID: userID,
		PathID:         pathID,
		PathLevel:      1,
		PathXP:         0,
	}
	if createErr := tx.Create(&up).Error; createErr != nil {
		if lockErr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("external_user_id = ? AND path_id = ?", userID, pathID).
			First(&up).Error; lockErr != nil {
			return nil, fmt.Errorf("%w: create failed (%v) and re-read failed: %v", ErrConcurrencyConflict, createErr, lockErr)
		}
	}
	return &up, nil
}
