package services

import (
	"fmt"
	"sync"

	"progression-service/models"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// PathService owns the Path registry: admin CRUD plus a cached lookup used on
// every path award. Path IDs are slugs derived from the display name
// ("Market Trader" → "market-trader").
type PathService struct {
	DB *gorm.DB

	mu    sync.RWMutex
	cache map[string]models.Path
}

func NewPathService(db *gorm.DB) *PathService {
	return &PathService{DB: db, cache: map[string]models.Path{}}
}

func (s *PathService) LoadCache() error {
	var paths []models.Path
	if err := s.DB.Find(&paths).Error; err != nil {
		return fmt.Errorf("failed to load path registry: %w", err)
	}
	byID := make(map[string]models.Path, len(paths))
	for _, p := range paths {
		byID[p.PathID] = p
	}
	s.mu.Lock()
	s.cache = byID
	s.mu.Unlock()
	return nil
}

// GetActive resolves an active path or fails with ErrUnknownPath. Inactive
// paths are treated as unknown for scoring purposes.
func (s *PathService) GetActive(pathID string) (models.Path, error) {
	s.mu.RLock()
	p, ok := s.cache[pathID]
	s.mu.RUnlock()
	if !ok || !p.IsActive {
		return models.Path{}, fmt.Errorf("%w: %s", ErrUnknownPath, pathID)
	}
	return p, nil
}

// ActivePaths lists active paths (used by the leaderboard refresh to enumerate scopes).
func (s *PathService) ActivePaths() []models.Path {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Path, 0, len(s.cache))
	for _, p := range s.cache {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out
}

// CreatePath registers a new progression path.
func (s *PathService) CreatePath(name string, multipliers map[models.ActionType]float64) (*models.Path, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name", ErrMissingParameter)
	}
	for action, m := range multipliers {
		if m < 0 {
			return nil, fmt.Errorf("%w: multiplier for %s is negative", ErrInvalidAmount, action)
		}
	}

	path := models.Path{
		PathID:        slug.Make(name),
		Name:          name,
		XPMultipliers: multipliers,
		IsActive:      true,
	}
	if err := s.DB.Create(&path).Error; err != nil {
		return nil, fmt.Errorf("failed to create path %s: %w", path.PathID, err)
	}
	if err := s.LoadCache(); err != nil {
		return nil, err
	}
	return &path, nil
}

// UpdatePath edits multipliers and/or the active flag. A nil multipliers map
// leaves the existing one untouched.
func (s *PathService) UpdatePath(pathID string, multipliers map[models.ActionType]float64, isActive *bool) (*models.Path, error) {
	var path models.Path
	if err := s.DB.First(&path, "path_id = ?", pathID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPath, pathID)
		}
		return nil, err
	}
	if multipliers != nil {
		for action, m := range multipliers {
			if m < 0 {
				return nil, fmt.Errorf("%w: multiplier for %s is negative", ErrInvalidAmount, action)
			}
		}
		path.XPMultipliers = multipliers
	}
	if isActive != nil {
		path.IsActive = *isActive
	}
	if err := s.DB.Save(&path).Error; err != nil {
		return nil, err
	}
	if err := s.LoadCache(); err != nil {
		return nil, err
	}
	return &path, nil
}

// DeletePath retires a path entirely. UserPath enrollments are kept as
// history; the caller is responsible for purging the path's leaderboard scope.
func (s *PathService) DeletePath(pathID string) error {
	res := s.DB.Delete(&models.Path{}, "path_id = ?", pathID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete path %s: %w", pathID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPath, pathID)
	}
	return s.LoadCache()
}
