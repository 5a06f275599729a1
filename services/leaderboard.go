package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"progression-service/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LeaderboardPage is a ranked slice of a scope plus the staleness bound of the
// projection it was read from. RefreshedAt is zero when the scope has never
// been refreshed.
type LeaderboardPage struct {
	Scope       string                    `json:"scope"`
	Entries     []models.LeaderboardEntry `json:"entries"`
	RefreshedAt time.Time                 `json:"refreshed_at"`
}

// LeaderboardService derives ranked views from the ledger. Reads are served
// from the materialized leaderboard_entries projection only — never from
// UserProgress on the hot path. Ties are broken by ascending user_id, so equal
// scores order deterministically.
type LeaderboardService struct {
	DB    *gorm.DB
	Paths *PathService

	mu          sync.Mutex
	scopeLocks  map[string]*sync.Mutex
	lastRefresh map[string]time.Time
}

func NewLeaderboardService(db *gorm.DB, paths *PathService) *LeaderboardService {
	return &LeaderboardService{
		DB:          db,
		Paths:       paths,
		scopeLocks:  map[string]*sync.Mutex{},
		lastRefresh: map[string]time.Time{},
	}
}

// GetPage reads a ranked page for a scope from the projection.
func (s *LeaderboardService) GetPage(scope string, limit, offset int) (*LeaderboardPage, error) {
	if limit < 1 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}

	var entries []models.LeaderboardEntry
	err := s.DB.Where("scope = ?", scope).
		Order("rank ASC").
		Limit(limit).Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard %s: %w", scope, err)
	}

	return &LeaderboardPage{
		Scope:       scope,
		Entries:     entries,
		RefreshedAt: s.refreshedAt(scope, entries),
	}, nil
}

// GetUserRank returns a user's rank in a scope, or nil for a user who has
// never scored there.
func (s *LeaderboardService) GetUserRank(userID, scope string) (*int64, error) {
	var entry models.LeaderboardEntry
	err := s.DB.Where("scope = ? AND user_id = ?", scope, userID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rank := entry.Rank
	return &rank, nil
}

// Refresh rebuilds one scope's projection in a single transaction: delete the
// scope's rows, reinsert ranked by xp DESC, user_id ASC. Only one refresh may
// run per scope; a refresh arriving while one is in flight is skipped, not
// queued, and reports ErrRefreshInFlight so forced refreshes can tell a skip
// from a rebuild.
func (s *LeaderboardService) Refresh(scope string) error {
	lock := s.scopeLock(scope)
	if !lock.TryLock() {
		return fmt.Errorf("%w: scope %s", ErrRefreshInFlight, scope)
	}
	defer lock.Unlock()

	entries, err := s.computeEntries(scope)
	if err != nil {
		return err
	}

	now := time.Now()
	for i := range entries {
		entries[i].ID = uuid.NewString()
		entries[i].Scope = scope
		entries[i].Rank = int64(i + 1)
		entries[i].RefreshedAt = now
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("scope = ?", scope).Delete(&models.LeaderboardEntry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.CreateInBatches(&entries, 500).Error
	})
	if err != nil {
		return fmt.Errorf("failed to rebuild leaderboard %s: %w", scope, err)
	}

	s.mu.Lock()
	s.lastRefresh[scope] = now
	s.mu.Unlock()

	log.Printf("🏆 Leaderboard refreshed: scope=%s entries=%d", scope, len(entries))
	return nil
}

// RefreshAll rebuilds the global scope plus every active path scope, then
// drops projection rows left behind by scopes no longer refreshable (retired
// paths). Scopes with a refresh already in flight are reported, not retried.
func (s *LeaderboardService) RefreshAll() error {
	scopes := []string{models.ScopeGlobal}
	for _, p := range s.Paths.ActivePaths() {
		scopes = append(scopes, p.PathID)
	}

	var skipped []string
	for _, scope := range scopes {
		err := s.Refresh(scope)
		switch {
		case errors.Is(err, ErrRefreshInFlight):
			skipped = append(skipped, scope)
		case err != nil:
			return err
		}
	}

	if err := s.DB.Where("scope NOT IN ?", scopes).Delete(&models.LeaderboardEntry{}).Error; err != nil {
		return fmt.Errorf("failed to drop retired leaderboard scopes: %w", err)
	}

	if len(skipped) > 0 {
		return fmt.Errorf("%w: %s", ErrRefreshInFlight, strings.Join(skipped, ", "))
	}
	return nil
}

// PurgeScope drops a scope's projection rows immediately, used when a path is
// deactivated or deleted. Waits for any in-flight refresh of the scope.
func (s *LeaderboardService) PurgeScope(scope string) error {
	lock := s.scopeLock(scope)
	lock.Lock()
	defer lock.Unlock()

	if err := s.DB.Where("scope = ?", scope).Delete(&models.LeaderboardEntry{}).Error; err != nil {
		return fmt.Errorf("failed to purge leaderboard %s: %w", scope, err)
	}
	s.mu.Lock()
	delete(s.lastRefresh, scope)
	s.mu.Unlock()
	log.Printf("[Leaderboard] Purged projection for scope %s", scope)
	return nil
}

// StartRefreshScheduler runs RefreshAll on a fixed cadence.
func (s *LeaderboardService) StartRefreshScheduler(interval time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := s.RefreshAll(); err != nil {
				log.Printf("[Leaderboard] Scheduled refresh failed: %v", err)
			}
		}),
	)
}

func (s *LeaderboardService) computeEntries(scope string) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry

	if scope == models.ScopeGlobal {
		var rows []models.UserProgress
		if err := s.DB.Order("total_xp DESC, external_user_id ASC").Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			entries = append(entries, models.LeaderboardEntry{
				UserID: r.ExternalUserID,
				XP:     r.TotalXP,
				Level:  r.Level,
			})
		}
		return entries, nil
	}

	if _, err := s.Paths.GetActive(scope); err != nil {
		return nil, err
	}
	var rows []models.UserPath
	if err := s.DB.Where("path_id = ?", scope).
		Order("path_xp DESC, external_user_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		entries = append(entries, models.LeaderboardEntry{
			UserID: r.ExternalUserID,
			XP:     r.PathXP,
			Level:  r.PathLevel,
		})
	}
	return entries, nil
}

func (s *LeaderboardService) scopeLock(scope string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.scopeLocks[scope]
	if !ok {
		lock = &sync.Mutex{}
		s.scopeLocks[scope] = lock
	}
	return lock
}

// refreshedAt prefers the in-process refresh time; after a restart it falls
// back to the timestamp stamped on the projection rows.
func (s *LeaderboardService) refreshedAt(scope string, entries []models.LeaderboardEntry) time.Time {
	s.mu.Lock()
	ts, ok := s.lastRefresh[scope]
	s.mu.Unlock()
	if ok {
		return ts
	}
	if len(entries) > 0 {
		return entries[0].RefreshedAt
	}
	return time.Time{}
}
