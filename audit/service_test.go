package audit

import (
	"context"
	"testing"

	"github.com/emberveil/companion-server/model"
	"github.com/emberveil/companion-server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLog_EnqueuedAndFlushed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())

	profileID := int64(7)
	svc.Log(Entry{
		TraceID:    "trace-123",
		ProfileID:  &profileID,
		Action:     ActionGuildJoin,
		Request:    map[string]int64{"guild_id": 3},
		Response:   map[string]bool{"ok": true},
		IP:         "127.0.0.1",
		DurationMs: 42,
	})

	// Stop flushes remaining entries.
	svc.Stop(context.Background())

	var logs []model.AuditLog
	db.Find(&logs)
	require.Len(t, logs, 1)
	assert.Equal(t, "trace-123", logs[0].TraceID)
	assert.Equal(t, ActionGuildJoin, logs[0].Action)
	assert.Equal(t, "127.0.0.1", logs[0].IP)
	assert.Equal(t, 42, logs[0].DurationMs)
	require.NotNil(t, logs[0].ProfileID)
	assert.Equal(t, profileID, *logs[0].ProfileID)
}

func TestLog_BatchFlush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())

	// 100 entries trigger an immediate batch flush inside the worker.
	for i := 0; i < 100; i++ {
		svc.Log(Entry{Action: ActionChatSend})
	}
	svc.Stop(context.Background())

	var count int64
	db.Model(&model.AuditLog{}).Count(&count)
	assert.GreaterOrEqual(t, count, int64(100))
}

func TestLog_NilProfileID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())

	svc.Log(Entry{Action: ActionRegister})
	svc.Stop(context.Background())

	var logs []model.AuditLog
	db.Find(&logs)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].ProfileID)
}

func TestStop_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, zap.NewNop())
	svc.Stop(context.Background())
	svc.Stop(context.Background()) // must not panic
}
