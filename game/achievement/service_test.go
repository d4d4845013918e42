package achievement

import (
	"context"
	"testing"

	"github.com/emberveil/companion-server/membership"
	"github.com/emberveil/companion-server/model"
	"github.com/emberveil/companion-server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func earnedKeys(list []Achievement) map[string]bool {
	out := make(map[string]bool)
	for _, a := range list {
		if a.Earned {
			out[a.Key] = true
		}
	}
	return out
}

func TestForProfile_FreshProfileEarnsNothing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewService(db)
	p := testutil.SeedProfile(t, db, "rookie")

	list, err := svc.ForProfile(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, list, 10)
	assert.Empty(t, earnedKeys(list))
}

func TestForProfile_LevelAndGold(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewService(db)
	p := testutil.SeedProfile(t, db, "veteran")
	require.NoError(t, db.Model(p).Updates(map[string]interface{}{
		"level": 6, "gold": 600,
	}).Error)
	p.Level, p.Gold = 6, 600

	earned := earnedKeys(mustList(t, svc, p))
	assert.True(t, earned["first_steps"])
	assert.True(t, earned["seasoned"])
	assert.False(t, earned["legend"])
	assert.True(t, earned["wealthy"])
}

func TestForProfile_GuildBadges(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	ms := membership.NewService(db, zap.NewNop())
	founder := testutil.SeedProfile(t, db, "founder")
	member := testutil.SeedProfile(t, db, "member")

	guild, err := ms.CreateGuild(ctx, founder.ID, "Ember Watch", "", "")
	require.NoError(t, err)
	require.NoError(t, ms.JoinGuild(ctx, member.ID, guild.ID))

	f, err := ms.GetProfile(ctx, founder.ID)
	require.NoError(t, err)
	m, err := ms.GetProfile(ctx, member.ID)
	require.NoError(t, err)

	fEarned := earnedKeys(mustList(t, svc, f))
	assert.True(t, fEarned["guilded"])
	assert.True(t, fEarned["founder"])

	mEarned := earnedKeys(mustList(t, svc, m))
	assert.True(t, mEarned["guilded"])
	assert.False(t, mEarned["founder"])
}

func TestForProfile_QuestCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewService(db)
	p := testutil.SeedProfile(t, db, "quester")
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, db.Create(&model.QuestProgress{
			ProfileID: p.ID,
			QuestID:   i,
			Status:    model.QuestStatusCompleted,
		}).Error)
	}

	earned := earnedKeys(mustList(t, svc, p))
	assert.True(t, earned["quest_taker"])
	assert.True(t, earned["quest_master"])
}

func TestStatusColor(t *testing.T) {
	assert.Equal(t, "green", StatusColor("online"))
	assert.Equal(t, "yellow", StatusColor("away"))
	assert.Equal(t, "red", StatusColor("busy"))
	assert.Equal(t, "gray", StatusColor("offline"))
	assert.Equal(t, "gray", StatusColor("something else"))
}

func mustList(t *testing.T, svc *Service, p *model.Profile) []Achievement {
	t.Helper()
	list, err := svc.ForProfile(context.Background(), p)
	require.NoError(t, err)
	return list
}
