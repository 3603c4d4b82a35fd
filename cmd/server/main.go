package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	emw "github.com/labstack/echo/v4/middleware"

	"github.com/skillswap/backend/internal/auth"
	"github.com/skillswap/backend/internal/comments"
	"github.com/skillswap/backend/internal/config"
	"github.com/skillswap/backend/internal/credits"
	"github.com/skillswap/backend/internal/db"
	"github.com/skillswap/backend/internal/messaging"
	appmw "github.com/skillswap/backend/internal/middleware"
	"github.com/skillswap/backend/internal/orders"
	"github.com/skillswap/backend/internal/posts"
	"github.com/skillswap/backend/internal/profile"
	"github.com/skillswap/backend/internal/proposals"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("connected to postgres")

	e := echo.New()
	e.HideBanner = true
	e.Use(emw.Recover())
	e.Use(emw.Logger())
	e.Use(emw.CORS())

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "skillswap"})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if err := pool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	authHandler := auth.NewHandler(pool, []byte(cfg.JWTSecret))
	creditsHandler := credits.NewHandler(pool)
	postsHandler := posts.NewHandler(pool)
	proposalsHandler := proposals.NewHandler(pool, cfg.UploadDir)
	ordersHandler := orders.NewHandler(pool, cfg.UploadDir)
	commentsHandler := comments.NewHandler(pool)
	messagingHandler := messaging.NewHandler(pool)
	profileHandler := profile.NewHandler(pool)

	// Public routes; signup/login are rate limited per IP.
	pub := e.Group("")
	pub.Use(emw.RateLimiter(emw.NewRateLimiterMemoryStore(20)))
	pub.POST("/register", authHandler.Register)
	pub.POST("/login", authHandler.Login)

	e.GET("/posts", postsHandler.List)
	e.GET("/posts/:id", postsHandler.Get)
	e.GET("/comments/:postId", commentsHandler.List)
	e.GET("/profile/:username", profileHandler.Public)

	// Authenticated routes
	api := e.Group("")
	api.Use(appmw.JWT([]byte(cfg.JWTSecret)))

	api.GET("/auth/me", authHandler.Me)

	api.GET("/credits/balance", creditsHandler.Balance)
	api.GET("/credits/history", creditsHandler.History)

	api.POST("/posts", postsHandler.Create)

	api.POST("/proposals/:postId", proposalsHandler.Create)
	api.GET("/proposals/seller", proposalsHandler.ListForSeller)
	api.POST("/proposals/:id/accept", proposalsHandler.Accept)
	api.POST("/proposals/:id/reject", proposalsHandler.Reject)

	api.GET("/orders", ordersHandler.List)
	api.POST("/orders/:id/deliver", ordersHandler.Deliver)
	api.POST("/orders/:id/confirm", ordersHandler.Confirm)

	api.POST("/comments/:postId", commentsHandler.Create)

	api.POST("/messages/conversations", messagingHandler.OpenConversation)
	api.GET("/messages/conversations", messagingHandler.ListConversations)
	api.GET("/messages/conversations/:id/messages", messagingHandler.ListMessages)
	api.POST("/messages/conversations/:id/messages", messagingHandler.Send)

	api.GET("/profile/me", profileHandler.Me)
	api.PUT("/profile/me", profileHandler.Update)

	if err := e.Start(":" + cfg.Port); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
