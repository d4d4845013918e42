package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/emberveil/companion-server/api/rest"
	"github.com/emberveil/companion-server/audit"
	"github.com/emberveil/companion-server/cache"
	"github.com/emberveil/companion-server/config"
	"github.com/emberveil/companion-server/game/achievement"
	"github.com/emberveil/companion-server/game/chat"
	"github.com/emberveil/companion-server/game/progression"
	"github.com/emberveil/companion-server/game/quest"
	"github.com/emberveil/companion-server/game/ranking"
	"github.com/emberveil/companion-server/game/shop"
	"github.com/emberveil/companion-server/membership"
	mw "github.com/emberveil/companion-server/middleware"
	"github.com/emberveil/companion-server/scheduler"
	"github.com/emberveil/companion-server/storage"
	"github.com/emberveil/companion-server/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testAdminKey = "test-admin-key"

// testServer bundles the full wired router and its backing services.
type testServer struct {
	r     *gin.Engine
	db    *gorm.DB
	cache cache.Cache
	shop  *shop.Service
	quest *quest.Service
}

// newTestServer wires every handler onto a router the way main does.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	logger := zap.NewNop()
	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: 72 * time.Hour}
	game := config.GameConfig{ChatHistory: 50, ChatMaxLen: 500, RankingTop: 100, StartingGold: 100}

	auditor := audit.New(db, logger)
	t.Cleanup(func() { auditor.Stop(context.Background()) })
	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)

	store, err := storage.New(t.TempDir(), "/uploads", 64, logger)
	require.NoError(t, err)

	members := membership.NewService(db, logger)
	prog := progression.NewService(db, logger)
	shopSvc := shop.NewService(db, logger)
	questSvc := quest.NewService(db, prog, logger)
	rankingSvc := ranking.NewService(db, c, game.RankingTop, logger)
	chatSvc := chat.NewService(db, c, ps, game.ChatHistory, game.ChatMaxLen, logger)
	achSvc := achievement.NewService(db)

	authH := rest.NewAuthHandler(db, c, sec, game, auditor)
	profileH := rest.NewProfileHandler(db, members, store, auditor)
	guildH := rest.NewGuildHandler(members, store, auditor)
	chatH := rest.NewChatHandler(chatSvc, members, auditor)
	shopH := rest.NewShopHandler(shopSvc, auditor)
	questH := rest.NewQuestHandler(questSvc, rankingSvc, auditor)
	rankingH := rest.NewRankingHandler(rankingSvc)
	achH := rest.NewAchievementHandler(achSvc, members)
	adminH := rest.NewAdminHandler(db, c, rankingSvc, sched, auditor, logger)

	r := gin.New()
	r.POST("/api/auth/register", authH.Register)
	r.POST("/api/auth/login", authH.Login)

	authed := r.Group("/api", mw.Auth(sec, c))
	authed.POST("/auth/logout", authH.Logout)
	authed.POST("/auth/refresh", authH.Refresh)
	authed.GET("/auth/me", authH.Me)

	authed.GET("/profiles", profileH.List)
	authed.GET("/profiles/:id", profileH.Get)
	authed.PUT("/profiles/:id", profileH.Update)
	authed.POST("/profiles/avatar", profileH.UploadAvatar)
	authed.GET("/profiles/:id/achievements", achH.ForProfile)

	authed.GET("/guilds", guildH.List)
	authed.POST("/guilds", guildH.Create)
	authed.GET("/guilds/:id", guildH.Detail)
	authed.PUT("/guilds/:id", guildH.Update)
	authed.POST("/guilds/:id/join", guildH.Join)
	authed.POST("/guilds/leave", guildH.Leave)
	authed.POST("/guilds/:id/avatar", guildH.UploadAvatar)

	authed.GET("/chat/:channel/messages", chatH.History)
	authed.POST("/chat/:channel/messages", chatH.Send)

	authed.GET("/shop/items", shopH.ListItems)
	authed.POST("/shop/items/:id/buy", shopH.Buy)
	authed.GET("/inventory", shopH.Inventory)

	authed.GET("/quests", questH.Board)
	authed.POST("/quests/:id/accept", questH.Accept)
	authed.POST("/quests/:id/complete", questH.Complete)

	authed.GET("/ranking/players", rankingH.Players)
	authed.GET("/ranking/guilds", rankingH.Guilds)
	authed.GET("/achievements", achH.Mine)

	admin := r.Group("/api/admin", rest.AdminAuth(testAdminKey))
	admin.GET("/metrics", adminH.Metrics)
	admin.POST("/profiles/:id/ban", adminH.BanProfile)
	admin.POST("/ranking/refresh", adminH.RefreshRanking)
	admin.GET("/scheduler", adminH.ListSchedulerTasks)
	admin.GET("/audit", adminH.AuditTrail)

	return &testServer{r: r, db: db, cache: c, shop: shopSvc, quest: questSvc}
}

// register creates a profile through the API and returns its id and token.
func (ts *testServer) register(t *testing.T, username string) (int64, string) {
	t.Helper()
	w := postJSON(ts.r, "/api/auth/register", map[string]string{
		"username": username,
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Token   string `json:"token"`
		Profile struct {
			ID int64 `json:"id"`
		} `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Profile.ID, resp.Token
}

func postJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func putJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getReq(r *gin.Engine, path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func bearer(token string) []string { return []string{"Authorization", "Bearer " + token} }
