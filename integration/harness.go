package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apirest "github.com/emberveil/companion-server/api/rest"
	"github.com/emberveil/companion-server/api/sse"
	"github.com/emberveil/companion-server/audit"
	"github.com/emberveil/companion-server/cache"
	"github.com/emberveil/companion-server/config"
	"github.com/emberveil/companion-server/events"
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
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const AdminKey = "integration-admin-key"

// TestServer wraps a real HTTP server with every subsystem wired together.
type TestServer struct {
	DB      *gorm.DB
	Cache   cache.Cache
	PubSub  cache.PubSub
	Shop    *shop.Service
	Quest   *quest.Service
	Ranking *ranking.Service
	Server  *httptest.Server
	URL     string
	Sec     config.SecurityConfig
}

// NewTestServer creates a fully wired companion server for integration
// testing. It mirrors the dependency wiring in main.go.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// ---- Infrastructure ----
	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		JWTTTLH:        72 * time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}
	game := config.GameConfig{
		ChatHistory:  50,
		ChatMaxLen:   500,
		RankingTop:   100,
		StartingGold: 100,
	}

	auditSvc := audit.New(db, logger)
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })
	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)

	store, err := storage.New(t.TempDir(), "/uploads", 64, logger)
	require.NoError(t, err)

	// ---- Services ----
	hub := events.NewHub()
	members := membership.NewService(db, logger)
	members.UseHub(hub)
	prog := progression.NewService(db, logger)
	prog.UseHub(hub)
	shopSvc := shop.NewService(db, logger)
	questSvc := quest.NewService(db, prog, logger)
	rankingSvc := ranking.NewService(db, c, game.RankingTop, logger)
	chatSvc := chat.NewService(db, c, pubsub, game.ChatHistory, game.ChatMaxLen, logger)
	achSvc := achievement.NewService(db)

	// ---- Gin HTTP Server (mirrors main.go) ----
	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst))

	authH := apirest.NewAuthHandler(db, c, sec, game, auditSvc)
	profileH := apirest.NewProfileHandler(db, members, store, auditSvc)
	guildH := apirest.NewGuildHandler(members, store, auditSvc)
	chatH := apirest.NewChatHandler(chatSvc, members, auditSvc)
	shopH := apirest.NewShopHandler(shopSvc, auditSvc)
	questH := apirest.NewQuestHandler(questSvc, rankingSvc, auditSvc)
	rankingH := apirest.NewRankingHandler(rankingSvc)
	achH := apirest.NewAchievementHandler(achSvc, members)
	adminH := apirest.NewAdminHandler(db, c, rankingSvc, sched, auditSvc, logger)

	api := r.Group("/api")
	{
		api.POST("/auth/register", authH.Register)
		api.POST("/auth/login", authH.Login)

		authed := api.Group("", mw.Auth(sec, c))
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

		adminG := api.Group("/admin", apirest.AdminAuth(AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/profiles/:id/ban", adminH.BanProfile)
		adminG.POST("/ranking/refresh", adminH.RefreshRanking)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
		adminG.GET("/audit", adminH.AuditTrail)
	}

	// SSE plus the announce listeners main.go registers.
	sseH := sse.NewHandler(pubsub, c, members, sec, logger)
	r.GET("/sse", sseH.ServeSSE)

	hub.Register(events.ProfileLevelUp, 0, "announce", func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		if lv, ok := data.(events.LevelUp); ok {
			msg, _ := json.Marshal(gin.H{"kind": "level_up", "username": lv.Username, "level": lv.Level})
			_ = sseH.Announce(ctx, string(msg))
		}
		return data, nil
	})
	hub.Register(events.GuildCreated, 0, "announce", func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		if gc, ok := data.(events.GuildChange); ok {
			msg, _ := json.Marshal(gin.H{"kind": "guild_created", "name": gc.GuildName})
			_ = sseH.Announce(ctx, string(msg))
		}
		return data, nil
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &TestServer{
		DB:      db,
		Cache:   c,
		PubSub:  pubsub,
		Shop:    shopSvc,
		Quest:   questSvc,
		Ranking: rankingSvc,
		Server:  server,
		URL:     server.URL,
		Sec:     sec,
	}
}

// Close shuts the HTTP server down.
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// --- HTTP helpers ---

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequest("POST", ts.URL+path, bodyReader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest("GET", ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Put sends a PUT request with JSON body and optional Bearer token.
func (ts *TestServer) Put(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest("PUT", ts.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// --- Auth helpers ---

// Register creates an account and returns the token and profile ID.
func (ts *TestServer) Register(t *testing.T, username, password string) (token string, profileID int64) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/register", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result struct {
		Token   string `json:"token"`
		Profile struct {
			ID int64 `json:"id"`
		} `json:"profile"`
	}
	ReadJSON(t, resp, &result)
	return result.Token, result.Profile.ID
}

// Login logs in and returns the token.
func (ts *TestServer) Login(t *testing.T, username, password string) string {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Token string `json:"token"`
	}
	ReadJSON(t, resp, &result)
	return result.Token
}

// --- SSE client ---

// SSEEvent is one parsed server-sent event.
type SSEEvent struct {
	Name string
	Data string
}

// SSEClient reads a /sse stream in a background goroutine.
type SSEClient struct {
	resp   *http.Response
	cancel context.CancelFunc
	events chan SSEEvent
	t      *testing.T
}

// ConnectSSE opens the event stream with the given token and waits for the
// initial connected event before returning.
func (ts *TestServer) ConnectSSE(t *testing.T, token string) *SSEClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/sse?token="+token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sc := &SSEClient{resp: resp, cancel: cancel, events: make(chan SSEEvent, 64), t: t}
	go sc.readLoop()
	sc.RecvEvent("connected", 5*time.Second)
	return sc
}

func (sc *SSEClient) readLoop() {
	defer close(sc.events)
	scanner := bufio.NewScanner(sc.resp.Body)
	var ev SSEEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.Data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if ev.Name != "" || ev.Data != "" {
				sc.events <- ev
				ev = SSEEvent{}
			}
		}
	}
}

// RecvEvent reads events until one with the given name arrives.
func (sc *SSEClient) RecvEvent(name string, timeout time.Duration) SSEEvent {
	sc.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-sc.events:
			if !ok {
				sc.t.Fatalf("stream closed while waiting for event %q", name)
			}
			if ev.Name == name {
				return ev
			}
		case <-deadline:
			sc.t.Fatalf("timed out waiting for event %q", name)
		}
	}
}

// Close tears the stream down.
func (sc *SSEClient) Close() {
	sc.cancel()
	sc.resp.Body.Close()
}

// UniqueID returns a short unique string suitable for usernames.
var testCounter uint64

func UniqueID(prefix string) string {
	n := atomic.AddUint64(&testCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano()%100000, n)
}
