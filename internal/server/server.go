// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "civicpulse/docs" // swagger docs
	"civicpulse/internal/cache"
	"civicpulse/internal/config"
	"civicpulse/internal/database"
	"civicpulse/internal/featureflags"
	"civicpulse/internal/middleware"
	"civicpulse/internal/models"
	"civicpulse/internal/notifications"
	"civicpulse/internal/repository"
	"civicpulse/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	apiVersion = "1.0.0"

	// FlagTestNotifications exposes POST /notifications/test in production.
	FlagTestNotifications = "test_notifications"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	userRepo       repository.UserRepository
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager
	uploads        *service.UploadService

	authService         *service.AuthService
	postService         *service.PostService
	commentService      *service.CommentService
	userService         *service.UserService
	searchService       *service.SearchService
	topicService        *service.TopicService
	notificationService *service.NotificationService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// The bootstrap layer owns the DB and Redis handles; redisClient may be nil,
// which disables caching, revocation, rate limiting and live delivery.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("server requires config and database")
	}

	c := cache.New(redisClient)
	userRepo := repository.NewUserRepository(db, c)
	postRepo := repository.NewPostRepository(db, c)
	commentRepo := repository.NewCommentRepository(db, c)
	topicRepo := repository.NewTopicRepository(db)
	locationRepo := repository.NewLocationRepository(db)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("civicpulse-api"),
		userRepo:       userRepo,
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		uploads:        service.NewUploadService(cfg),
	}
	server.hub.OnLastDisconnect = server.recordLastActive

	tokens := service.NewTokenService(cfg.JWTSecret, cfg.RefreshTokenSecret, redisClient)
	server.notificationService = service.NewNotificationService(repository.NewNotificationRepository(db), server.notifier)
	server.authService = service.NewAuthService(userRepo, tokens)
	server.postService = service.NewPostService(postRepo, server.uploads, server.notificationService)
	server.commentService = service.NewCommentService(commentRepo, postRepo, server.notificationService)
	server.userService = service.NewUserService(userRepo, server.uploads, c, server.notificationService)
	server.searchService = service.NewSearchService(postRepo, userRepo, topicRepo, locationRepo)
	server.topicService = service.NewTopicService(topicRepo, locationRepo)

	return server, nil
}

// NewApp returns a fiber app with the server's error handler and body limit.
func (s *Server) NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:   "CivicPulse API",
		BodyLimit: int(s.config.MaxUploadBytes()) + 1<<20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if errors.Is(err, fiber.ErrRequestEntityTooLarge) {
				return respondError(c, models.NewValidationError(
					fmt.Sprintf("File too large (max %dMB)", s.config.MaxUploadSizeMB)))
			}
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			return respondError(c, models.NewInternalError(err))
		},
	})
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Uploaded images are embedded by the frontend origin.
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry CORS headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Origins(),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
				"code":  "RATE_LIMITED",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	if !s.config.IsProduction() {
		app.Static("/uploads", s.uploads.Dir(), fiber.Static{MaxAge: 3600})
	}

	api := app.Group("/api/v1")
	api.Get("/test", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Backend is working!"})
	})
	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(s.redis, middleware.RegisterLimit), s.Register)
	auth.Post("/login", middleware.RateLimit(s.redis, middleware.LoginLimit), s.Login)
	auth.Get("/verify", s.Verify)
	auth.Post("/refresh", s.Refresh)
	auth.Post("/logout", s.Logout)

	posts := api.Group("/posts")
	posts.Get("/", s.OptionalAuth(), s.GetPosts)
	posts.Post("/", s.AuthRequired(), middleware.RateLimit(s.redis, middleware.PostLimit), s.CreatePost)
	posts.Post("/:postId/comments", s.AuthRequired(),
		middleware.RateLimit(s.redis, middleware.CommentLimit), s.CreateComment)
	posts.Post("/:postId/comments/:commentId/like", s.AuthRequired(), s.LikeComment)
	posts.Post("/:id/vote", s.AuthRequired(), s.VotePost)
	posts.Post("/:id/like", s.AuthRequired(), s.LikePost)
	posts.Post("/:id/share", s.AuthRequired(), s.SharePost)
	posts.Get("/:id", s.OptionalAuth(), s.GetPost)

	// Specific /profile routes before the generic /:username ones.
	users := api.Group("/users")
	users.Get("/top-contributors", s.GetTopContributors)
	users.Get("/profile", s.AuthRequired(), s.GetMyProfile)
	users.Put("/profile", s.AuthRequired(), s.UpdateMyProfile)
	users.Get("/profile/:username", s.GetUserProfile)
	users.Post("/:username/follow", s.AuthRequired(), s.FollowUser)
	users.Delete("/:username/follow", s.AuthRequired(), s.UnfollowUser)

	topics := api.Group("/topics")
	topics.Get("/", s.GetTopics)
	topics.Post("/", s.AuthRequired(), s.AdminRequired(), s.CreateTopic)
	topics.Post("/:slug/follow", s.AuthRequired(), s.FollowTopic)
	topics.Delete("/:slug/follow", s.AuthRequired(), s.UnfollowTopic)

	locations := api.Group("/locations")
	locations.Get("/", s.GetLocations)
	locations.Post("/", s.AuthRequired(), s.AdminRequired(), s.CreateLocation)

	search := api.Group("/search", middleware.RateLimit(s.redis, middleware.SearchLimit))
	search.Get("/", s.Search)
	search.Get("/suggestions", s.SearchSuggestions)

	notifs := api.Group("/notifications")
	notifs.Get("/ws", s.StreamAuth(), s.NotificationStream())
	notifs.Use(s.AuthRequired())
	notifs.Get("/", s.GetNotifications)
	notifs.Get("/unread/count", s.GetUnreadCount)
	notifs.Patch("/read/all", s.MarkAllNotificationsRead)
	notifs.Put("/read/all", s.MarkAllNotificationsRead)
	notifs.Patch("/:id/read", s.MarkNotificationRead)
	notifs.Put("/:id/read", s.MarkNotificationRead)
	notifs.Delete("/:id", s.DeleteNotification)
	notifs.Post("/test", s.CreateTestNotification)

	admin := api.Group("/admin", s.AuthRequired(), s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// HealthCheck reports overall status with store connectivity.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	checks, healthy := s.storeChecks(c.UserContext())
	status := "healthy"
	if !healthy {
		status = "degraded"
	}
	return c.JSON(fiber.Map{
		"status":      status,
		"version":     apiVersion,
		"environment": s.config.Env,
		"timestamp":   time.Now().UTC(),
		"checks":      checks,
	})
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now().UTC(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	checks, healthy := s.storeChecks(c.UserContext())
	status := fiber.StatusOK
	overall := "ready"
	if !healthy {
		status = fiber.StatusServiceUnavailable
		overall = "unavailable"
	}
	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": checks,
		"time":   time.Now().UTC(),
	})
}

// storeChecks pings the database and, when configured, Redis. A server
// running without Redis is still healthy.
func (s *Server) storeChecks(parent context.Context) (fiber.Map, bool) {
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()

	healthy := true
	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
		healthy = false
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
			healthy = false
		}
	}

	return fiber.Map{"database": dbStatus, "redis": redisStatus}, healthy
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := middleware.BearerToken(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		return s.authenticate(c, token)
	}
}

// StreamAuth authenticates websocket upgrades, which cannot always set
// headers, from the bearer header or the token query parameter.
func (s *Server) StreamAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := middleware.BearerToken(c)
		if !ok {
			token = c.Query("token")
		}
		if token == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		return s.authenticate(c, token)
	}
}

func (s *Server) authenticate(c *fiber.Ctx, token string) error {
	user, err := s.authService.Authenticate(c.UserContext(), token)
	if err != nil {
		return respondError(c, err)
	}
	middleware.SetAuthenticatedUser(c, user.ID)
	c.Locals("user", user)
	return c.Next()
}

// OptionalAuth resolves the caller when a valid bearer token is present and
// never rejects the request.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := middleware.BearerToken(c)
		if !ok {
			return c.Next()
		}
		if user, err := s.authService.Authenticate(c.UserContext(), token); err == nil {
			middleware.SetAuthenticatedUser(c, user.ID)
			c.Locals("user", user)
		}
		return c.Next()
	}
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that the user is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := currentUser(c)
		if user == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		if !user.IsAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

func (s *Server) recordLastActive(userID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.userRepo.TouchLastActive(ctx, userID); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to record last activity",
			slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
}

// Start builds the app, wires live delivery and listens on the configured port.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.NewApp()
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	if s.notifier.Enabled() {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start notification wiring", slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port), slog.String("env", s.config.Env))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down notification hub", slog.String("error", err.Error()))
	}

	if err := database.Close(s.db); err != nil {
		middleware.Logger.Error("error closing database", slog.String("error", err.Error()))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
