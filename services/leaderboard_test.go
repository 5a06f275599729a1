package services

import (
	"testing"

	"progression-service/models"
	"progression-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type leaderboardFixture struct {
	accrual     *AccrualService
	tracker     *PathTrackerService
	leaderboard *LeaderboardService
}

func newLeaderboardFixture(t *testing.T) *leaderboardFixture {
	t.Helper()
	db := testutil.OpenTestDB(t)

	levels := NewLevelService(db)
	seedLevels(t, levels, map[int]int64{1: 0, 2: 1000, 3: 2500})

	paths := NewPathService(db)
	require.NoError(t, paths.LoadCache())
	_, err := paths.CreatePath("Trader", map[models.ActionType]float64{models.ActionTradeClosed: 1.5})
	require.NoError(t, err)

	return &leaderboardFixture{
		accrual:     NewAccrualService(db, levels, true),
		tracker:     NewPathTrackerService(db, paths),
		leaderboard: NewLeaderboardService(db, paths),
	}
}

func TestGetUserRank_NeverScoredIsNil(t *testing.T) {
	f := newLeaderboardFixture(t)

	rank, err := f.leaderboard.GetUserRank("nobody", models.ScopeGlobal)
	require.NoError(t, err)
	assert.Nil(t, rank)

	_, err = f.accrual.Award("user-a", 100, models.ActionPostCreated)
	require.NoError(t, err)

	// still nil until a refresh materializes the projection
	rank, err = f.leaderboard.GetUserRank("user-a", models.ScopeGlobal)
	require.NoError(t, err)
	assert.Nil(t, rank)

	require.NoError(t, f.leaderboard.Refresh(models.ScopeGlobal))
	rank, err = f.leaderboard.GetUserRank("user-a", models.ScopeGlobal)
	require.NoError(t, err)
	require.NotNil(t, rank)
	assert.Equal(t, int64(1), *rank)
}

func TestRefresh_RanksByXPThenUserID(t *testing.T) {
	f := newLeaderboardFixture(t)

	for user, xp := range map[string]int64{
		"carol": 300,
		"alice": 500,
		"bob":   500,
		"dave":  100,
	} {
		_, err := f.accrual.Award(user, xp, models.ActionPostCreated)
		require.NoError(t, err)
	}
	require.NoError(t, f.leaderboard.Refresh(models.ScopeGlobal))

	page, err := f.leaderboard.GetPage(models.ScopeGlobal, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Entries, 4)
	assert.False(t, page.RefreshedAt.IsZero())

	// equal XP ties break on ascending user id
	assert.Equal(t, "alice", page.Entries[0].UserID)
	assert.Equal(t, "bob", page.Entries[1].UserID)
	assert.Equal(t, "carol", page.Entries[2].UserID)
	assert.Equal(t, "dave", page.Entries[3].UserID)
	for i, e := range page.Entries {
		assert.Equal(t, int64(i+1), e.Rank)
	}
}

func TestGetPage_Pagination(t *testing.T) {
	f := newLeaderboardFixture(t)

	users := []string{"u1", "u2", "u3", "u4", "u5"}
	for i, u := range users {
		_, err := f.accrual.Award(u, int64(100*(len(users)-i)), models.ActionPostCreated)
		require.NoError(t, err)
	}
	require.NoError(t, f.leaderboard.Refresh(models.ScopeGlobal))

	first, err := f.leaderboard.GetPage(models.ScopeGlobal, 2, 0)
	require.NoError(t, err)
	second, err := f.leaderboard.GetPage(models.ScopeGlobal, 2, 2)
	require.NoError(t, err)

	require.Len(t, first.Entries, 2)
	require.Len(t, second.Entries, 2)
	assert.Equal(t, int64(1), first.Entries[0].Rank)
	assert.Equal(t, int64(3), second.Entries[0].Rank)
	assert.Equal(t, "u1", first.Entries[0].UserID)
	assert.Equal(t, "u3", second.Entries[0].UserID)
}

func TestRefresh_PathScope(t *testing.T) {
	f := newLeaderboardFixture(t)

	_, err := f.tracker.AwardToPath("alice", "trader", 200, models.ActionTradeClosed)
	require.NoError(t, err)
	_, err = f.tracker.AwardToPath("bob", "trader", 100, models.ActionTradeClosed)
	require.NoError(t, err)

	require.NoError(t, f.leaderboard.RefreshAll())

	page, err := f.leaderboard.GetPage("trader", 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "alice", page.Entries[0].UserID)
	assert.Equal(t, int64(300), page.Entries[0].XP)

	rank, err := f.leaderboard.GetUserRank("bob", "trader")
	require.NoError(t, err)
	require.NotNil(t, rank)
	assert.Equal(t, int64(2), *rank)

	// a global score does not leak into the path scope
	rank, err = f.leaderboard.GetUserRank("carol", "trader")
	require.NoError(t, err)
	assert.Nil(t, rank)
}

func TestRefresh_InFlightSkipIsReported(t *testing.T) {
	f := newLeaderboardFixture(t)

	_, err := f.accrual.Award("alice", 100, models.ActionPostCreated)
	require.NoError(t, err)

	// hold the scope lock as an in-flight refresh would
	lock := f.leaderboard.scopeLock(models.ScopeGlobal)
	lock.Lock()
	defer lock.Unlock()

	err = f.leaderboard.Refresh(models.ScopeGlobal)
	assert.ErrorIs(t, err, ErrRefreshInFlight)

	// RefreshAll reports the skip but still rebuilds the other scopes
	_, err = f.tracker.AwardToPath("bob", "trader", 100, models.ActionTradeClosed)
	require.NoError(t, err)
	err = f.leaderboard.RefreshAll()
	assert.ErrorIs(t, err, ErrRefreshInFlight)

	rank, err := f.leaderboard.GetUserRank("bob", "trader")
	require.NoError(t, err)
	require.NotNil(t, rank)
	assert.Equal(t, int64(1), *rank)
}

func TestRefreshAll_DropsRetiredScopes(t *testing.T) {
	f := newLeaderboardFixture(t)

	_, err := f.tracker.AwardToPath("alice", "trader", 200, models.ActionTradeClosed)
	require.NoError(t, err)
	require.NoError(t, f.leaderboard.RefreshAll())

	page, err := f.leaderboard.GetPage("trader", 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)

	inactive := false
	_, err = f.tracker.Paths.UpdatePath("trader", nil, &inactive)
	require.NoError(t, err)
	require.NoError(t, f.leaderboard.RefreshAll())

	page, err = f.leaderboard.GetPage("trader", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Entries, "retired scope projection dropped")

	rank, err := f.leaderboard.GetUserRank("alice", "trader")
	require.NoError(t, err)
	assert.Nil(t, rank)
}

func TestPurgeScope_RemovesProjection(t *testing.T) {
	f := newLeaderboardFixture(t)

	_, err := f.tracker.AwardToPath("alice", "trader", 200, models.ActionTradeClosed)
	require.NoError(t, err)
	require.NoError(t, f.leaderboard.Refresh("trader"))

	require.NoError(t, f.leaderboard.PurgeScope("trader"))

	page, err := f.leaderboard.GetPage("trader", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
	assert.True(t, page.RefreshedAt.IsZero())
}

func TestRefresh_UnknownScope(t *testing.T) {
	f := newLeaderboardFixture(t)
	err := f.leaderboard.Refresh("no-such-path")
	assert.ErrorIs(t, err, ErrUnknownPath)
}

func TestRefresh_ReplacesStaleEntries(t *testing.T) {
	f := newLeaderboardFixture(t)

	_, err := f.accrual.Award("alice", 100, models.ActionPostCreated)
	require.NoError(t, err)
	_, err = f.accrual.Award("bob", 200, models.ActionPostCreated)
	require.NoError(t, err)
	require.NoError(t, f.leaderboard.Refresh(models.ScopeGlobal))

	_, err = f.accrual.Award("alice", 500, models.ActionPostCreated)
	require.NoError(t, err)
	require.NoError(t, f.leaderboard.Refresh(models.ScopeGlobal))

	page, err := f.leaderboard.GetPage(models.ScopeGlobal, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Entries, 2, "old projection rows fully replaced")
	assert.Equal(t, "alice", page.Entries[0].UserID)
	assert.Equal(t, int64(600), page.Entries[0].XP)
}
