package services

import (
	"testing"

	"progression-service/models"
	"progression-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLevels(t *testing.T, svc *LevelService, thresholds map[int]int64) {
	t.Helper()
	for level := 1; ; level++ {
		minXP, ok := thresholds[level]
		if !ok {
			break
		}
		require.NoError(t, svc.CreateLevel(models.LevelDefinition{
			Level: level,
			MinXP: minXP,
			Name:  "L" + string(rune('0'+level)),
		}))
	}
}

func TestResolveLevel(t *testing.T) {
	svc := NewLevelService(testutil.OpenTestDB(t))
	seedLevels(t, svc, map[int]int64{1: 0, 2: 1000, 3: 2500, 4: 5000})

	cases := []struct {
		xp   int64
		want int
	}{
		{0, 1},
		{999, 1},
		{1000, 2},
		{2500, 3},
		{4999, 3},
		{5000, 4},
		{1_000_000, 4},
	}
	for _, tc := range cases {
		def, err := svc.ResolveLevel(tc.xp)
		require.NoError(t, err)
		assert.Equal(t, tc.want, def.Level, "xp=%d", tc.xp)
	}
}

func TestResolveLevel_EmptyTable(t *testing.T) {
	svc := NewLevelService(testutil.OpenTestDB(t))
	require.NoError(t, svc.LoadCache())

	_, err := svc.ResolveLevel(100)
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestCreateLevel_RejectsGapsAndReordering(t *testing.T) {
	svc := NewLevelService(testutil.OpenTestDB(t))

	require.NoError(t, svc.CreateLevel(models.LevelDefinition{Level: 1, MinXP: 0, Name: "Newcomer"}))
	require.NoError(t, svc.CreateLevel(models.LevelDefinition{Level: 2, MinXP: 1000, Name: "Regular"}))

	// gap in the level key
	err := svc.CreateLevel(models.LevelDefinition{Level: 4, MinXP: 5000, Name: "Veteran"})
	assert.ErrorIs(t, err, ErrUnknownLevel)

	// min_xp not strictly increasing
	err = svc.CreateLevel(models.LevelDefinition{Level: 3, MinXP: 1000, Name: "Veteran"})
	assert.ErrorIs(t, err, ErrUnknownLevel)

	// first level must anchor the table at zero
	empty := NewLevelService(testutil.OpenTestDB(t))
	err = empty.CreateLevel(models.LevelDefinition{Level: 1, MinXP: 500, Name: "Newcomer"})
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestUpdateLevel_OrderingEnforcedAndCacheInvalidated(t *testing.T) {
	svc := NewLevelService(testutil.OpenTestDB(t))
	seedLevels(t, svc, map[int]int64{1: 0, 2: 1000, 3: 2500})

	// would collide with level 3's threshold
	err := svc.UpdateLevel(2, 2500, "Regular", 0, "", "")
	assert.ErrorIs(t, err, ErrUnknownLevel)

	require.NoError(t, svc.UpdateLevel(2, 1500, "Regular", 50, "title.regular", ""))

	def, err := svc.ResolveLevel(1200)
	require.NoError(t, err)
	assert.Equal(t, 1, def.Level, "cache must reflect the raised threshold")

	def, err = svc.ResolveLevel(1500)
	require.NoError(t, err)
	assert.Equal(t, 2, def.Level)
	assert.Equal(t, int64(50), def.RewardCurrency)
}

func TestDeleteLevel_OnlyHighest(t *testing.T) {
	svc := NewLevelService(testutil.OpenTestDB(t))
	seedLevels(t, svc, map[int]int64{1: 0, 2: 1000, 3: 2500})

	err := svc.DeleteLevel(2)
	assert.ErrorIs(t, err, ErrUnknownLevel)

	require.NoError(t, svc.DeleteLevel(3))
	def, err := svc.ResolveLevel(10_000)
	require.NoError(t, err)
	assert.Equal(t, 2, def.Level)
}
