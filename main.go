package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	apirest "github.com/emberveil/companion-server/api/rest"
	"github.com/emberveil/companion-server/api/sse"
	"github.com/emberveil/companion-server/audit"
	"github.com/emberveil/companion-server/cache"
	"github.com/emberveil/companion-server/config"
	"github.com/emberveil/companion-server/content"
	dbadapter "github.com/emberveil/companion-server/db"
	"github.com/emberveil/companion-server/events"
	"github.com/emberveil/companion-server/game/achievement"
	"github.com/emberveil/companion-server/game/chat"
	"github.com/emberveil/companion-server/game/progression"
	"github.com/emberveil/companion-server/game/quest"
	"github.com/emberveil/companion-server/game/ranking"
	"github.com/emberveil/companion-server/game/shop"
	"github.com/emberveil/companion-server/membership"
	mw "github.com/emberveil/companion-server/middleware"
	"github.com/emberveil/companion-server/model"
	"github.com/emberveil/companion-server/scheduler"
	"github.com/emberveil/companion-server/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Avatar Storage ----
	store, err := storage.New(cfg.Storage.Root, cfg.Storage.PublicPath, cfg.Storage.MaxUploadKB, logger)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- Services ----
	hub := events.NewHub()
	members := membership.NewService(db, logger)
	members.UseHub(hub)
	prog := progression.NewService(db, logger)
	prog.UseHub(hub)
	shopSvc := shop.NewService(db, logger)
	questSvc := quest.NewService(db, prog, logger)
	rankingSvc := ranking.NewService(db, c, cfg.Game.RankingTop, logger)
	chatSvc := chat.NewService(db, c, pubsub, cfg.Game.ChatHistory, cfg.Game.ChatMaxLen, logger)
	achSvc := achievement.NewService(db)

	// ---- Seed Content ----
	// Content files override the built-in catalog and quest board.
	if cfg.Game.ContentDir != "" {
		loader := content.NewLoader(cfg.Game.ContentDir, logger)
		if err := loader.Load(); err != nil {
			logger.Warn("content load failed, using defaults", zap.Error(err))
		} else {
			if err := shopSvc.SeedItems(context.Background(), loader.Items); err != nil {
				logger.Warn("shop content seed failed", zap.Error(err))
			}
			if err := questSvc.SeedQuests(context.Background(), loader.Quests); err != nil {
				logger.Warn("quest content seed failed", zap.Error(err))
			}
		}
	}
	if err := shopSvc.SeedCatalog(context.Background()); err != nil {
		logger.Warn("shop catalog seed failed", zap.Error(err))
	}
	if err := questSvc.SeedBoard(context.Background()); err != nil {
		logger.Warn("quest board seed failed", zap.Error(err))
	}

	// ---- Periodic Scheduler Tasks ----
	refreshEvery := time.Duration(cfg.Game.RankingRefreshS) * time.Second
	sched.AddTicker("ranking_refresh", refreshEvery, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := rankingSvc.Refresh(ctx); err != nil {
			logger.Warn("ranking refresh failed", zap.Error(err))
		}
	})
	// Warm the leaderboard so the first request does not hit the DB fallback.
	if err := rankingSvc.Refresh(context.Background()); err != nil {
		logger.Warn("initial ranking refresh failed", zap.Error(err))
	}

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security, cfg.Game, auditSvc)
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

		authed := api.Group("", mw.Auth(cfg.Security, c))
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

		adminG := api.Group("/admin", apirest.AdminAuth(cfg.Server.AdminKey))
		if len(cfg.Security.AdminIPs) > 0 {
			adminG.Use(mw.IPWhitelist(cfg.Security.AdminIPs))
		}
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/profiles/:id/ban", adminH.BanProfile)
		adminG.POST("/ranking/refresh", adminH.RefreshRanking)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
		adminG.GET("/audit", adminH.AuditTrail)
	}

	// ---- SSE ----
	sseH := sse.NewHandler(pubsub, c, members, cfg.Security, logger)
	r.GET("/sse", sseH.ServeSSE)

	// Broadcast level-ups and new guilds to every connected client.
	hub.Register(events.ProfileLevelUp, 0, "announce", func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		lv, ok := data.(events.LevelUp)
		if !ok {
			return data, nil
		}
		msg, _ := json.Marshal(gin.H{
			"kind":     "level_up",
			"username": lv.Username,
			"level":    lv.Level,
		})
		if err := sseH.Announce(ctx, string(msg)); err != nil {
			logger.Warn("level up announce failed", zap.Error(err))
		}
		return data, nil
	})
	hub.Register(events.GuildCreated, 0, "announce", func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		gc, ok := data.(events.GuildChange)
		if !ok {
			return data, nil
		}
		msg, _ := json.Marshal(gin.H{
			"kind": "guild_created",
			"name": gc.GuildName,
		})
		if err := sseH.Announce(ctx, string(msg)); err != nil {
			logger.Warn("guild announce failed", zap.Error(err))
		}
		return data, nil
	})

	// ---- Uploaded avatars ----
	r.Static(cfg.Storage.PublicPath, cfg.Storage.Root)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
