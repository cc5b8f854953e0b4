package main

import (
	"context"
	"fmt"
	"os"

	"github.com/arvind-28/codeorbit/internal/access"
	"github.com/arvind-28/codeorbit/internal/ai"
	"github.com/arvind-28/codeorbit/internal/api"
	"github.com/arvind-28/codeorbit/internal/config"
	"github.com/arvind-28/codeorbit/internal/db"
	"github.com/arvind-28/codeorbit/internal/middleware"
	"github.com/arvind-28/codeorbit/internal/observ"
	"github.com/arvind-28/codeorbit/internal/realtime"
	"github.com/arvind-28/codeorbit/internal/repository/postgres"
	"github.com/arvind-28/codeorbit/internal/runner"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// Startup has no deadline; requests get their own contexts later.
	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	rdb, err := db.NewRedis(context.Background(), cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer rdb.Close()

	pool := database.Pool()
	userRepo := postgres.NewUserStore(pool)
	workspaceRepo := postgres.NewWorkspaceStore(pool)
	memberRepo := postgres.NewMemberStore(pool)
	folderRepo := postgres.NewFolderStore(pool)
	fileRepo := postgres.NewFileStore(pool)
	messageRepo := postgres.NewMessageStore(pool)

	gate := access.NewGate(memberRepo)
	hub := realtime.NewHub(rdb, logger)
	presence := realtime.NewPresence(rdb, cfg.CursorIdleTimeout, cfg.CursorMinInterval, logger)
	aiClient := ai.NewClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, cfg.AITimeout, logger)
	runnerClient := runner.NewClient(cfg.RunnerBaseURL, cfg.RunnerTimeout, logger)

	authHandler := api.NewAuthHandler(userRepo, cfg.JWTSecret, logger)
	userHandler := api.NewUserHandler(userRepo, logger)
	workspaceHandler := api.NewWorkspaceHandler(workspaceRepo, memberRepo, userRepo, gate, hub, presence, logger)
	memberHandler := api.NewMemberHandler(memberRepo, userRepo, workspaceRepo, gate, hub, logger)
	folderHandler := api.NewFolderHandler(folderRepo, fileRepo, workspaceRepo, gate, hub, logger)
	fileHandler := api.NewFileHandler(fileRepo, folderRepo, workspaceRepo, gate, hub, logger)
	messageHandler := api.NewMessageHandler(messageRepo, userRepo, workspaceRepo, gate, hub, cfg.ChatWindow, logger)
	assistHandler := api.NewAssistHandler(aiClient, gate, logger)
	runHandler := api.NewRunHandler(runnerClient, workspaceRepo, gate, logger)
	wsHandler := api.NewWSHandler(
		workspaceRepo, memberRepo, folderRepo, fileRepo, messageRepo,
		presence, hub,
		cfg.JWTSecret, cfg.SaveDebounce, cfg.ChatWindow,
		logger,
	)

	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())

	logger.Info("starting codeorbit",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	// Public: load balancers health-check without credentials.
	srv.GET("/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	srv.POST("/v1/auth/register", authHandler.Register)
	srv.POST("/v1/auth/login", authHandler.Login)
	srv.POST("/v1/auth/reset-request", authHandler.RequestReset)
	srv.POST("/v1/auth/reset", authHandler.Reset)

	// The websocket dial carries its token in the query string, so it
	// sits outside the header-auth group and verifies on its own.
	srv.GET("/v1/workspaces/:id/ws", wsHandler.Handle)

	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	v1.GET("/users/me", userHandler.GetMe)
	v1.GET("/users/me/invites", memberHandler.ListInvites)
	v1.GET("/users", userHandler.Search)

	v1.POST("/workspaces", workspaceHandler.Create)
	v1.GET("/workspaces", workspaceHandler.List)
	v1.GET("/workspaces/:id", workspaceHandler.GetByID)
	v1.DELETE("/workspaces/:id", workspaceHandler.Delete)
	v1.POST("/workspaces/:id/leave", memberHandler.Leave)

	v1.GET("/workspaces/:id/members", memberHandler.List)
	v1.POST("/workspaces/:id/invites", memberHandler.Invite)
	v1.POST("/invites/:workspaceId/accept", memberHandler.Accept)
	v1.POST("/invites/:workspaceId/decline", memberHandler.Decline)

	v1.POST("/workspaces/:id/folders", folderHandler.Create)
	v1.GET("/workspaces/:id/tree", folderHandler.Tree)
	v1.PATCH("/workspaces/:id/folders/:folderId", folderHandler.Move)
	v1.DELETE("/workspaces/:id/folders/:folderId", folderHandler.Delete)

	v1.POST("/workspaces/:id/files", fileHandler.Create)
	v1.GET("/workspaces/:id/files", fileHandler.List)
	v1.GET("/workspaces/:id/files/:fileId", fileHandler.Get)
	v1.PUT("/workspaces/:id/files/:fileId", fileHandler.Save)
	v1.DELETE("/workspaces/:id/files/:fileId", fileHandler.Delete)

	v1.POST("/workspaces/:id/messages", messageHandler.Send)
	v1.GET("/workspaces/:id/messages", messageHandler.List)
	v1.DELETE("/workspaces/:id/messages", messageHandler.Clear)

	v1.POST("/workspaces/:id/assist/docs", assistHandler.Docs)
	v1.POST("/workspaces/:id/assist/complete", assistHandler.Complete)
	v1.POST("/workspaces/:id/assist/fix", assistHandler.Fix)

	v1.POST("/workspaces/:id/run", runHandler.Run)

	return srv.Run(":" + cfg.Port)
}
