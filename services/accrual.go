package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"progression-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AwardResult reports an accrual outcome: the post-mutation ledger state plus
// the level-transition signal for the reward/notification collaborators. The
// engine never grants currency/titles itself.
type AwardResult struct {
	UserID    string               `json:"user_id"`
	NewXP     int64                `json:"new_xp"`
	NewLevel  int                  `json:"new_level"`
	LeveledUp bool                 `json:"leveled_up"`
	Clamped   bool                 `json:"clamped"` // subtract/set hit the zero floor
	Rewards   *models.LevelRewards `json:"rewards,omitempty"`
}

// AccrualService is the only component permitted to mutate raw XP totals.
// Every mutation runs in a transaction holding a row lock on the user's
// UserProgress row, so concurrent awards serialize per user and the level
// transition is computed once, after the full amount is applied.
type AccrualService struct {
	DB     *gorm.DB
	Levels *LevelService

	// LazyCreate provisions a UserProgress row on first award; when disabled,
	// awards to unknown users fail with ErrUnknownUser.
	LazyCreate bool
}

func NewAccrualService(db *gorm.DB, levels *LevelService, lazyCreate bool) *AccrualService {
	return &AccrualService{DB: db, Levels: levels, LazyCreate: lazyCreate}
}

// Award applies an organic XP gain. Negative organic amounts are a programming
// error in the calling domain — admin subtractions go through the adjustment
// service instead.
func (s *AccrualService) Award(userID string, amount int64, actionType models.ActionType) (*AwardResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id", ErrMissingParameter)
	}
	if amount < 0 {
		return nil, fmt.Errorf("%w: organic award of %d", ErrInvalidAmount, amount)
	}

	var result *AwardResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.ApplyTx(tx, userID, amount, models.AdjustmentAdd)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🎮 XP awarded: %s +%d (%s) → XP=%d, Lvl=%d", userID, amount, actionType, result.NewXP, result.NewLevel)
	return result, nil
}

// Adjust applies a non-organic mutation in its own transaction. Admin callers
// must use the adjustment service, which pairs this with an audit row.
func (s *AccrualService) Adjust(userID string, amount int64, mode models.AdjustmentType) (*AwardResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id", ErrMissingParameter)
	}

	var result *AwardResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.ApplyTx(tx, userID, amount, mode)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyTx performs the single ledger mutation inside the caller's transaction.
// The adjustment service calls this directly so the audit insert and the
// mutation commit or roll back as one unit.
//
// Semantics per mode:
//   - add:      totalXp += amount
//   - subtract: totalXp -= |amount|, clamped at zero
//   - set:      totalXp = max(amount, 0)
func (s *AccrualService) ApplyTx(tx *gorm.DB, userID string, amount int64, mode models.AdjustmentType) (*AwardResult, error) {
	prog, err := s.lockedProgress(tx, userID)
	if err != nil {
		return nil, err
	}

	prevLevel := prog.Level
	clamped := false

	switch mode {
	case models.AdjustmentAdd:
		prog.TotalXP += amount
	case models.AdjustmentSubtract:
		delta := amount
		if delta < 0 {
			delta = -delta
		}
		prog.TotalXP -= delta
		if prog.TotalXP < 0 {
			prog.TotalXP = 0
			clamped = true
		}
	case models.AdjustmentSet:
		target := amount
		if target < 0 {
			target = 0
			clamped = true
		}
		prog.TotalXP = target
	default:
		return nil, fmt.Errorf("%w: adjustment_type %q", ErrMissingParameter, mode)
	}

	// Level resolution happens after the full amount is applied, under the row
	// lock, so a threshold crossing is reported exactly once.
	def, err := s.Levels.ResolveLevel(prog.TotalXP)
	if err != nil {
		return nil, err
	}
	leveledUp := def.Level > prevLevel
	prog.Level = def.Level
	if leveledUp {
		now := time.Now()
		prog.LastLevelUpAt = &now
	}

	if err := tx.Save(prog).Error; err != nil {
		return nil, fmt.Errorf("failed to save progress for %s: %w", userID, err)
	}

	result := &AwardResult{
		UserID:    userID,
		NewXP:     prog.TotalXP,
		NewLevel:  prog.Level,
		LeveledUp: leveledUp,
		Clamped:   clamped,
	}
	if leveledUp {
		result.Rewards = &models.LevelRewards{
			Level:          def.Level,
			Currency:       def.RewardCurrency,
			TitleRef:       def.RewardTitleRef,
			CosmeticUnlock: def.CosmeticUnlock,
		}
	}
	return result, nil
}

// GetProgress returns the current ledger row for a user.
func (s *AccrualService) GetProgress(userID string) (*models.UserProgress, error) {
	var prog models.UserProgress
	if err := s.DB.Where("external_user_id = ?", userID).First(&prog).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
		}
		return nil, err
	}
	return &prog, nil
}

// lockedProgress selects the user's row FOR UPDATE, provisioning it first when
// lazy creation is enabled. A create racing another create loses on the unique
// index and falls back to locking the winner's row.
func (s *AccrualService) lockedProgress(tx *gorm.DB, userID string) (*models.UserProgress, error) {
	var prog models.UserProgress
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_user_id = ?", userID).
		First(&prog).Error
	if err == nil {
		return &prog, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if !s.LazyCreate {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}

	prog = models.UserProgress{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		TotalXP:        0,
		Level:          1,
	}
	if createErr := tx.Create(&prog).Error; createErr != nil {
		// Lost a create race — lock the existing row instead.
		if lockErr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("external_user_id = ?", userID).
			First(&prog).Error; lockErr != nil {
			return nil, fmt.Errorf("%w: create failed (%v) and re-read failed: %v", ErrConcurrencyConflict, createErr, lockErr)
		}
	}
	return &prog, nil
}
