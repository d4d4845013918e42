package quest

import (
	"context"
	"testing"

	"github.com/emberveil/companion-server/game/progression"
	"github.com/emberveil/companion-server/model"
	"github.com/emberveil/companion-server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	prog := progression.NewService(db, zap.NewNop())
	return NewService(db, prog, zap.NewNop()), db
}

func seedQuest(t *testing.T, db *gorm.DB, title string, xp, gold int64) *model.Quest {
	t.Helper()
	q := &model.Quest{Title: title, XPReward: xp, GoldReward: gold}
	require.NoError(t, db.Create(q).Error)
	return q
}

func TestAcceptAndComplete(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	p := testutil.SeedProfile(t, db, "hero") // level 1, 100 gold
	q := seedQuest(t, db, "Slay Slimes", 130, 40)

	qp, err := svc.Accept(ctx, p.ID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuestStatusInProgress, qp.Status)

	after, err := svc.Complete(ctx, p.ID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Level) // 130 XP crosses the level 1 threshold
	assert.Equal(t, int64(30), after.CurrentXP)
	assert.Equal(t, int64(140), after.Gold)

	n, err := svc.CompletedCount(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAccept_Twice(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	p := testutil.SeedProfile(t, db, "hero")
	q := seedQuest(t, db, "Slay Slimes", 10, 0)

	_, err := svc.Accept(ctx, p.ID, q.ID)
	require.NoError(t, err)
	_, err = svc.Accept(ctx, p.ID, q.ID)
	assert.ErrorIs(t, err, ErrAlreadyAccepted)
}

func TestComplete_DoubleSubmitPaysOnce(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	p := testutil.SeedProfile(t, db, "hero")
	q := seedQuest(t, db, "Slay Slimes", 10, 40)

	_, err := svc.Accept(ctx, p.ID, q.ID)
	require.NoError(t, err)
	_, err = svc.Complete(ctx, p.ID, q.ID)
	require.NoError(t, err)

	_, err = svc.Complete(ctx, p.ID, q.ID)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	var after model.Profile
	require.NoError(t, db.First(&after, p.ID).Error)
	assert.Equal(t, int64(140), after.Gold)
}

func TestComplete_NotAccepted(t *testing.T) {
	svc, db := newTestService(t)
	p := testutil.SeedProfile(t, db, "hero")
	q := seedQuest(t, db, "Slay Slimes", 10, 0)

	_, err := svc.Complete(context.Background(), p.ID, q.ID)
	assert.ErrorIs(t, err, ErrNotAccepted)
}

func TestBoard_FoldsInStatus(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	p := testutil.SeedProfile(t, db, "hero")
	accepted := seedQuest(t, db, "Accepted", 10, 0)
	seedQuest(t, db, "Untouched", 10, 0)

	_, err := svc.Accept(ctx, p.ID, accepted.ID)
	require.NoError(t, err)

	board, err := svc.Board(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, board, 2)

	byTitle := make(map[string]BoardEntry)
	for _, e := range board {
		byTitle[e.Title] = e
	}
	require.NotNil(t, byTitle["Accepted"].Status)
	assert.Equal(t, model.QuestStatusInProgress, *byTitle["Accepted"].Status)
	assert.Nil(t, byTitle["Untouched"].Status)
}

func TestSeedBoard_Idempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SeedBoard(ctx))
	board, err := svc.Board(ctx, 1)
	require.NoError(t, err)
	first := len(board)
	require.NotZero(t, first)

	require.NoError(t, svc.SeedBoard(ctx))
	board, err = svc.Board(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, board, first)
}

func TestSeedQuests_CustomBoardWins(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	custom := []model.Quest{
		{Title: "Beacon Run", Description: "Light the harbor beacon.", XPReward: 80, GoldReward: 20},
	}
	require.NoError(t, svc.SeedQuests(ctx, custom))
	require.NoError(t, svc.SeedBoard(ctx))

	board, err := svc.Board(ctx, 1)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "Beacon Run", board[0].Title)
}
