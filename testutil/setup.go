package testutil

import (
	"fmt"
	"testing"

	"github.com/emberveil/companion-server/cache"
	"github.com/emberveil/companion-server/config"
	dbadapter "github.com/emberveil/companion-server/db"
	"github.com/emberveil/companion-server/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB creates an in-memory SQLite database and runs AutoMigrate.
// Each call gets its own shared-cache database name so parallel tests
// never see each other's tables, and pooled connections within one test
// all reach the same in-memory store.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode:       dbadapter.ModeSQLite,
		SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	return db
}

// SetupTestCache creates LocalCache and LocalPubSub (no Redis required).
func SetupTestCache(t *testing.T) (cache.Cache, cache.PubSub) {
	t.Helper()
	cfg := cache.CacheConfig{} // empty RedisAddr → LocalCache
	c, err := cache.NewCache(cfg)
	require.NoError(t, err, "SetupTestCache: NewCache")
	ps, err := cache.NewPubSub(cfg)
	require.NoError(t, err, "SetupTestCache: NewPubSub")
	return c, ps
}

// SeedProfile inserts a minimal profile and returns it.
func SeedProfile(t *testing.T, db *gorm.DB, username string) *model.Profile {
	t.Helper()
	p := &model.Profile{
		Username:     username,
		PasswordHash: "x",
		Class:        "Adventurer",
		Level:        1,
		Gold:         100,
	}
	require.NoError(t, db.Create(p).Error, "SeedProfile")
	return p
}
