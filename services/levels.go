package services

import (
	"fmt"
	"sort"
	"sync"

	"progression-service/models"

	"gorm.io/gorm"
)

// LevelService owns the LevelDefinition table: admin CRUD with ordering
// validation, plus a read-mostly in-memory cache for hot-path level resolution.
// The cache is invalidated on every admin edit.
type LevelService struct {
	DB *gorm.DB

	mu    sync.RWMutex
	cache []models.LevelDefinition // sorted by Level asc
}

func NewLevelService(db *gorm.DB) *LevelService {
	return &LevelService{DB: db}
}

// LoadCache (re)reads the full level table into memory. Called at startup and
// after every write.
func (s *LevelService) LoadCache() error {
	var defs []models.LevelDefinition
	if err := s.DB.Order("level ASC").Find(&defs).Error; err != nil {
		return fmt.Errorf("failed to load level table: %w", err)
	}
	s.mu.Lock()
	s.cache = defs
	s.mu.Unlock()
	return nil
}

// Definitions returns a snapshot of the cached level table.
func (s *LevelService) Definitions() []models.LevelDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.LevelDefinition, len(s.cache))
	copy(out, s.cache)
	return out
}

// ResolveLevel returns the greatest level whose MinXP <= totalXP.
func (s *LevelService) ResolveLevel(totalXP int64) (models.LevelDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.cache) == 0 {
		return models.LevelDefinition{}, ErrUnknownLevel
	}
	// cache is sorted by level asc == min_xp asc
	idx := sort.Search(len(s.cache), func(i int) bool {
		return s.cache[i].MinXP > totalXP
	})
	if idx == 0 {
		// totalXP below the lowest threshold — a misconfigured table
		return models.LevelDefinition{}, fmt.Errorf("%w: no level covers %d XP", ErrUnknownLevel, totalXP)
	}
	return s.cache[idx-1], nil
}

// CreateLevel appends a level definition. Levels must stay contiguous from 1
// and min_xp must be strictly increasing — violating inserts are rejected, not
// silently reordered.
func (s *LevelService) CreateLevel(def models.LevelDefinition) error {
	if def.Level < 1 || def.MinXP < 0 || def.Name == "" {
		return fmt.Errorf("%w: level, min_xp and name are required", ErrMissingParameter)
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var prev models.LevelDefinition
		err := tx.Order("level DESC").First(&prev).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			if def.Level != 1 || def.MinXP != 0 {
				return fmt.Errorf("%w: first level must be level 1 with min_xp 0", ErrUnknownLevel)
			}
		case err != nil:
			return err
		default:
			if def.Level != prev.Level+1 {
				return fmt.Errorf("%w: expected level %d, got %d (no gaps allowed)", ErrUnknownLevel, prev.Level+1, def.Level)
			}
			if def.MinXP <= prev.MinXP {
				return fmt.Errorf("%w: min_xp %d must exceed level %d's %d", ErrUnknownLevel, def.MinXP, prev.Level, prev.MinXP)
			}
		}
		return tx.Create(&def).Error
	})
	if err != nil {
		return err
	}
	return s.LoadCache()
}

// UpdateLevel edits an existing definition in place, re-checking ordering
// against both neighbours.
func (s *LevelService) UpdateLevel(level int, minXP int64, name string, rewardCurrency int64, rewardTitleRef, cosmeticUnlock string) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var def models.LevelDefinition
		if err := tx.First(&def, "level = ?", level).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: level %d", ErrUnknownLevel, level)
			}
			return err
		}

		var below models.LevelDefinition
		if err := tx.Where("level < ?", level).Order("level DESC").First(&below).Error; err == nil {
			if minXP <= below.MinXP {
				return fmt.Errorf("%w: min_xp %d must exceed level %d's %d", ErrUnknownLevel, minXP, below.Level, below.MinXP)
			}
		} else if err != gorm.ErrRecordNotFound {
			return err
		} else if minXP != 0 {
			return fmt.Errorf("%w: level 1 must keep min_xp 0", ErrUnknownLevel)
		}

		var above models.LevelDefinition
		if err := tx.Where("level > ?", level).Order("level ASC").First(&above).Error; err == nil {
			if minXP >= above.MinXP {
				return fmt.Errorf("%w: min_xp %d must stay below level %d's %d", ErrUnknownLevel, minXP, above.Level, above.MinXP)
			}
		} else if err != gorm.ErrRecordNotFound {
			return err
		}

		def.MinXP = minXP
		if name != "" {
			def.Name = name
		}
		def.RewardCurrency = rewardCurrency
		def.RewardTitleRef = rewardTitleRef
		def.CosmeticUnlock = cosmeticUnlock
		return tx.Save(&def).Error
	})
	if err != nil {
		return err
	}
	return s.LoadCache()
}

// DeleteLevel removes the highest level only — deleting from the middle would
// leave a gap in the key sequence.
func (s *LevelService) DeleteLevel(level int) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var top models.LevelDefinition
		if err := tx.Order("level DESC").First(&top).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: level %d", ErrUnknownLevel, level)
			}
			return err
		}
		if top.Level != level {
			return fmt.Errorf("%w: only the highest level (%d) can be deleted", ErrUnknownLevel, top.Level)
		}
		return tx.Delete(&models.LevelDefinition{}, "level = ?", level).Error
	})
	if err != nil {
		return err
	}
	return s.LoadCache()
}
