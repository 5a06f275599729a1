package services

import (
	"sync"
	"testing"

	"progression-service/models"
	"progression-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrackerFixture(t *testing.T) (*PathTrackerService, *PathService) {
	t.Helper()
	db := testutil.OpenTestDB(t)
	paths := NewPathService(db)
	require.NoError(t, paths.LoadCache())

	_, err := paths.CreatePath("Trader", map[models.ActionType]float64{
		models.ActionTradeClosed: 1.5,
		models.ActionTipSent:     0.5,
	})
	require.NoError(t, err)
	_, err = paths.CreatePath("Poster", map[models.ActionType]float64{
		models.ActionPostCreated: 2.0,
	})
	require.NoError(t, err)

	return NewPathTrackerService(db, paths), paths
}

func TestAwardToPath_AppliesMultiplier(t *testing.T) {
	tracker, _ := newTrackerFixture(t)

	res, err := tracker.AwardToPath("user-a", "trader", 100, models.ActionTradeClosed)
	require.NoError(t, err)
	assert.Equal(t, int64(150), res.NewPathXP)
	assert.Equal(t, 1, res.NewPathLevel)
	assert.False(t, res.LeveledUp)
}

func TestAwardToPath_MultiplierFloorsAndDefaults(t *testing.T) {
	tracker, _ := newTrackerFixture(t)

	// 0.5 × 25 = 12.5 → 12
	res, err := tracker.AwardToPath("user-a", "trader", 25, models.ActionTipSent)
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.NewPathXP)

	// unconfigured action type scores at 1.0
	res, err = tracker.AwardToPath("user-a", "trader", 30, models.ActionDailyLogin)
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.NewPathXP)
}

func TestAwardToPath_OwnLevelCurve(t *testing.T) {
	tracker, _ := newTrackerFixture(t)

	// 700 × 1.5 = 1050 crosses the 1000-per-level curve
	res, err := tracker.AwardToPath("user-b", "trader", 700, models.ActionTradeClosed)
	require.NoError(t, err)
	assert.Equal(t, int64(1050), res.NewPathXP)
	assert.Equal(t, 2, res.NewPathLevel)
	assert.True(t, res.LeveledUp)
}

func TestAwardToPath_ConcurrentSumsWithoutLostUpdates(t *testing.T) {
	tracker, _ := newTrackerFixture(t)

	const workers = 20
	const perWorker = int64(10) // ×1.5 multiplier → 15 each

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tracker.AwardToPath("user-z", "trader", perWorker, models.ActionTradeClosed)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ups, err := tracker.UserPaths("user-z")
	require.NoError(t, err)
	require.Len(t, ups, 1)
	assert.Equal(t, int64(workers)*15, ups[0].PathXP)
	assert.Equal(t, PathLevelForXP(ups[0].PathXP), ups[0].PathLevel)
}

func TestAwardToPath_UnknownOrInactivePath(t *testing.T) {
	tracker, paths := newTrackerFixture(t)

	_, err := tracker.AwardToPath("user-a", "ghost-path", 10, models.ActionTipSent)
	assert.ErrorIs(t, err, ErrUnknownPath)

	inactive := false
	_, err = paths.UpdatePath("poster", nil, &inactive)
	require.NoError(t, err)

	_, err = tracker.AwardToPath("user-a", "poster", 10, models.ActionPostCreated)
	assert.ErrorIs(t, err, ErrUnknownPath)
}

func TestDeletePath_RemovesFromRegistry(t *testing.T) {
	tracker, paths := newTrackerFixture(t)

	require.NoError(t, paths.DeletePath("poster"))
	_, err := tracker.AwardToPath("user-a", "poster", 10, models.ActionPostCreated)
	assert.ErrorIs(t, err, ErrUnknownPath)

	err = paths.DeletePath("ghost")
	assert.ErrorIs(t, err, ErrUnknownPath)
}

func TestSetPrimaryPath_IdempotentSinglePrimary(t *testing.T) {
	tracker, _ := newTrackerFixture(t)

	require.NoError(t, tracker.SetPrimaryPath("user-c", "trader"))
	require.NoError(t, tracker.SetPrimaryPath("user-c", "trader"))
	require.NoError(t, tracker.SetPrimaryPath("user-c", "poster"))

	ups, err := tracker.UserPaths("user-c")
	require.NoError(t, err)
	require.Len(t, ups, 2)

	primaries := 0
	for _, up := range ups {
		if up.Primary {
			primaries++
			assert.Equal(t, "poster", up.PathID)
		}
	}
	assert.Equal(t, 1, primaries)
}

func TestSetPrimaryPath_CreatesRowWithDefaults(t *testing.T) {
	tracker, _ := newTrackerFixture(t)

	require.NoError(t, tracker.SetPrimaryPath("user-d", "trader"))

	primary, err := tracker.PrimaryPath("user-d")
	require.NoError(t, err)
	require.NotNil(t, primary)
	assert.Equal(t, "trader", primary.PathID)
	assert.Equal(t, 1, primary.PathLevel)
	assert.Equal(t, int64(0), primary.PathXP)
}

func TestAwardToPrimary_NoPrimaryIsNoop(t *testing.T) {
	tracker, _ := newTrackerFixture(t)

	res, err := tracker.AwardToPrimary("user-e", 100, models.ActionTradeClosed)
	require.NoError(t, err)
	assert.Nil(t, res)

	require.NoError(t, tracker.SetPrimaryPath("user-e", "trader"))
	res, err = tracker.AwardToPrimary("user-e", 100, models.ActionTradeClosed)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, int64(150), res.NewPathXP)
}

func TestPathLevelForXP(t *testing.T) {
	cases := []struct {
		xp   int64
		want int
	}{
		{0, 1},
		{999, 1},
		{1000, 2},
		{2999, 3},
		{10_000, 11},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, PathLevelForXP(tc.xp), "xp=%d", tc.xp)
	}
}
