// main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/hisaab-app/hisaab-backend/internal/api/handlers"
	"github.com/hisaab-app/hisaab-backend/internal/api/middleware"
	"github.com/hisaab-app/hisaab-backend/internal/config"
	"github.com/hisaab-app/hisaab-backend/internal/cron"
	"github.com/hisaab-app/hisaab-backend/internal/db"
	"github.com/hisaab-app/hisaab-backend/internal/gateway"
	"github.com/hisaab-app/hisaab-backend/internal/notification"
	"github.com/hisaab-app/hisaab-backend/internal/seed"
	"github.com/hisaab-app/hisaab-backend/internal/service"
	"github.com/hisaab-app/hisaab-backend/internal/socket"
	"github.com/hisaab-app/hisaab-backend/internal/store"
	synclayer "github.com/hisaab-app/hisaab-backend/internal/sync"
	"github.com/hisaab-app/hisaab-backend/internal/workflow"
	"github.com/hisaab-app/hisaab-backend/pkg/logger"
)

func main() {
	// ============================================
	// Load environment variables
	// ============================================
	// No .env file is fine, plain environment variables work too.
	_ = godotenv.Load()

	// ============================================
	// Load configuration
	// ============================================
	cfg := config.Load()
	logger.Init(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	// ============================================
	// Set Gin mode
	// ============================================
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// ============================================
	// Initialize Document Gateway
	// ============================================
	gw, cleanup := buildGateway(cfg)
	defer cleanup()

	// ============================================
	// Initialize Entity Cache + Sync
	// ============================================
	ctx := context.Background()

	st := store.New()
	syncer := synclayer.New(gw, st)
	if err := syncer.Start(ctx); err != nil {
		logger.L().Fatalw("sync start failed", "error", err)
	}
	defer syncer.Close()

	// ============================================
	// Initialize WebSocket Hub
	// ============================================
	hub := socket.NewHub()
	hub.SetJoinPolicy(func(mobile, groupID string) bool {
		g, ok := st.Group(groupID)
		return ok && g.HasMember(mobile)
	})
	go hub.Run()
	broadcaster := socket.NewBroadcaster(hub)

	cancelRelay := broadcaster.Relay(st)
	defer cancelRelay()

	// ============================================
	// Initialize Notification Service + Workflow Engine
	// ============================================
	notifier := notification.NewService(gw, broadcaster)
	engine := workflow.New(gw, notifier)

	// ============================================
	// Seed Data (for development)
	// ============================================
	if cfg.Environment != "production" && cfg.GatewayDriver == "memory" {
		seed.SeedData(ctx, gw)
	}

	// ============================================
	// Initialize Services
	// ============================================
	authService := service.NewAuthService(cfg, gw)
	userService := service.NewUserService(gw, engine)
	groupService := service.NewGroupService(gw, engine, notifier)
	recordService := service.NewRecordService(gw, engine)
	settlementService := service.NewSettlementService(gw, engine, recordService)

	// ============================================
	// Initialize Handlers
	// ============================================
	h := handlers.NewHandlers(authService, userService, groupService, recordService, settlementService)
	wsHandler := socket.NewHandler(hub, authService)

	// ============================================
	// Initialize Cron Scheduler
	// ============================================
	if cfg.CronEnabled {
		scheduler := cron.NewScheduler(gw, notifier)
		scheduler.Start()
		defer scheduler.Stop()
	}

	// ============================================
	// Create Gin Router
	// ============================================
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	// Configure CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173", "*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"timestamp":  time.Now(),
			"gateway":    cfg.GatewayDriver,
			"ws_clients": hub.GetConnectedClientsCount(),
		})
	})

	// API routes
	api := r.Group("/api")
	{
		// ============================================
		// Public routes (no auth required)
		// ============================================
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/recover", h.Auth.Recover)
			auth.POST("/logout", h.Auth.Logout)
			auth.POST("/verify-session", h.Auth.VerifySession)
		}

		// WebSocket route
		api.GET("/ws", wsHandler.HandleWebSocket)

		// ============================================
		// Protected routes (require auth middleware)
		// ============================================
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(authService))
		{
			// User routes
			users := protected.Group("/users")
			{
				users.GET("", h.User.List)
				users.GET("/me", h.User.GetCurrentUser)
				users.POST("", h.User.Save)
				users.POST("/me/requests/update", h.User.RequestUpdate)
				users.POST("/me/requests/delete", h.User.RequestDelete)
				users.POST("/:mobile/reset-login-code", h.User.ResetLoginCode)
				users.POST("/:mobile/requests/:kind/approve", h.User.ApproveRequest)
				users.POST("/:mobile/requests/:kind/reject", h.User.RejectRequest)
			}

			// Group routes
			groups := protected.Group("/groups")
			{
				groups.GET("", h.Group.List)
				groups.POST("", h.Group.Create)
				groups.GET("/:id", h.Group.Get)
				groups.PATCH("/:id", h.Group.UpdateInfo)
				groups.POST("/:id/requests", h.Group.Propose)
				groups.POST("/:id/requests/:kind/approve", h.Group.Approve)
				groups.POST("/:id/requests/:kind/reject", h.Group.Reject)
				groups.DELETE("/:id/notifications/:nid", h.Group.DismissNotification)

				// Settlement
				groups.GET("/:id/settlement/:month", h.Settlement.Compute)
				groups.POST("/:id/settlement", h.Settlement.Request)
				groups.POST("/:id/settlement/approve", h.Settlement.Approve)
				groups.POST("/:id/settlement/reject", h.Settlement.Reject)
			}

			// Record routes: root is payments, loans or personal-loans and
			// scope is a group id or "global"
			records := protected.Group("/records/:root/:scope")
			{
				records.GET("/months", h.Record.Months)
				records.GET("/:month", h.Record.List)
				records.POST("/:month", h.Record.Create)
				records.GET("/:month/:id", h.Record.Get)
				records.POST("/:month/:id/requests/delete", h.Record.RequestDelete)
				records.POST("/:month/:id/requests/update", h.Record.RequestUpdate)
				records.POST("/:month/:id/requests/:kind/approve", h.Record.ApproveRequest)
				records.POST("/:month/:id/requests/:kind/reject", h.Record.RejectRequest)
			}
		}
	}

	// ============================================
	// Start HTTP Server with Graceful Shutdown
	// ============================================
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.L().Infow("server listening", "port", cfg.Port, "gateway", cfg.GatewayDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.L().Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L().Errorw("shutdown failed", "error", err)
	}
}

// buildGateway selects and connects the configured document store driver.
func buildGateway(cfg *config.Config) (gateway.Gateway, func()) {
	switch cfg.GatewayDriver {
	case "redis":
		gw, err := gateway.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.L().Fatalw("redis gateway failed", "error", err)
		}
		return gw, func() { gw.Close() }

	case "postgres":
		if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			logger.L().Fatalw("migrations failed", "error", err)
		}
		pool, err := db.NewPool(cfg.DatabaseURL)
		if err != nil {
			logger.L().Fatalw("postgres pool failed", "error", err)
		}
		gw, err := gateway.NewPostgres(pool)
		if err != nil {
			logger.L().Fatalw("postgres gateway failed", "error", err)
		}
		return gw, func() {
			gw.Close()
			pool.Close()
		}

	default:
		return gateway.NewMemory(), func() {}
	}
}
