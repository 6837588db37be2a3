// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"log"
	"strconv"
	"time"

	_ "blogshive/docs" // swagger docs
	"blogshive/internal/cache"
	"blogshive/internal/config"
	"blogshive/internal/featureflags"
	"blogshive/internal/middleware"
	"blogshive/internal/models"
	"blogshive/internal/notifications"
	"blogshive/internal/repository"
	"blogshive/internal/service"

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

const accessTokenTTL = 7 * 24 * time.Hour

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo     repository.UserRepository
	hub          *notifications.Hub
	featureFlags *featureflags.Manager

	userService         *service.UserService
	relationshipService *service.RelationshipService
	notificationService *service.NotificationService
	postService         *service.PostService
	commentService      *service.CommentService
	bookmarkService     *service.BookmarkService
	settingsService     *service.SettingsService
	newsletterService   *service.NewsletterService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding. redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	relationshipRepo := repository.NewRelationshipRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	bookmarkRepo := repository.NewBookmarkRepository(db)

	hub := notifications.NewHub(redisClient, notifications.HubConfig{
		MaxConnsPerUser: cfg.WSMaxConnsPerUser,
		MaxTotalConns:   cfg.WSMaxTotalConns,
	})

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("blogshive-api"),
		userRepo:       userRepo,
		hub:            hub,
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	s.notificationService = service.NewNotificationService(notificationRepo, userRepo, postRepo, hub)
	s.relationshipService = service.NewRelationshipService(relationshipRepo, userRepo, s.notificationService)
	s.postService = service.NewPostService(postRepo, bookmarkRepo, userRepo, s.notificationService)
	s.commentService = service.NewCommentService(commentRepo, postRepo, userRepo, s.notificationService)
	s.userService = service.NewUserService(userRepo, s.relationshipService)
	s.bookmarkService = service.NewBookmarkService(bookmarkRepo, postRepo, userRepo)
	s.settingsService = service.NewSettingsService(repository.NewSettingsRepository(db))
	s.newsletterService = service.NewNewsletterService(repository.NewNewsletterRepository(db))

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Propagate request ID and user ID into the user context
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS must run before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
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
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api.Get("/swagger/*", swagger.HandlerDefault)
	api.Get("/feature-flags", s.GetFeatureFlags)

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)
	api.Get("/ws", s.AuthRequired(), s.WebsocketHandler())

	// Specific /me routes before generic /:username
	users := api.Group("/users")
	users.Get("/me", s.AuthRequired(), s.GetMyProfile)
	users.Put("/me", s.AuthRequired(), s.UpdateMyProfile)
	users.Delete("/me", s.AuthRequired(), s.DeleteMyAccount)
	users.Get("/me/saved", s.AuthRequired(), s.GetSavedPosts)
	users.Get("/:id<int>/posts", s.GetUserPosts)
	users.Get("/:username", s.GetUserProfile)

	rel := api.Group("/relationships", s.AuthRequired())
	rel.Get("/blocked", s.GetBlockedUsers)
	rel.Post("/:userId/follow", middleware.RateLimit(
		s.redis, 30, time.Minute, "follow"), s.FollowUser)
	rel.Delete("/:userId/follow", s.UnfollowUser)
	rel.Post("/:userId/block", s.BlockUser)
	rel.Delete("/:userId/block", s.UnblockUser)
	rel.Get("/:userId/followers", s.GetFollowers)
	rel.Get("/:userId/following", s.GetFollowing)
	rel.Get("/:userId/stats", s.GetFollowStats)
	rel.Get("/:userId/status", s.GetRelationshipStatus)

	notif := api.Group("/notifications", s.AuthRequired())
	notif.Get("/", s.GetNotifications)
	notif.Get("/unread-count", s.GetUnreadCount)
	notif.Post("/read", s.MarkNotificationsRead)
	notif.Delete("/:id", s.DeleteNotification)

	posts := api.Group("/posts")
	posts.Get("/", s.GetFeed)
	posts.Post("/", s.AuthRequired(), middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/:id<int>/comments", s.GetComments)
	posts.Post("/:id<int>/comments", s.AuthRequired(), middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Post("/:id<int>/publish", s.AuthRequired(), s.PublishPost)
	posts.Post("/:id<int>/unpublish", s.AuthRequired(), s.UnpublishPost)
	posts.Post("/:id<int>/clap", s.AuthRequired(), s.ClapPost)
	posts.Post("/:id<int>/save", s.AuthRequired(), s.SavePost)
	posts.Delete("/:id<int>/save", s.AuthRequired(), s.UnsavePost)
	posts.Post("/:id<int>/hide", s.AuthRequired(), s.HidePost)
	posts.Delete("/:id<int>/hide", s.AuthRequired(), s.UnhidePost)
	posts.Put("/:id<int>", s.AuthRequired(), s.UpdatePost)
	posts.Delete("/:id<int>", s.AuthRequired(), s.DeletePost)
	// Generic /:slug route must be last
	posts.Get("/:slug", s.GetPost)

	comments := api.Group("/comments", s.AuthRequired())
	comments.Put("/:id", s.UpdateComment)
	comments.Delete("/:id", s.DeleteComment)
	comments.Post("/:id/visibility", s.SetCommentVisibility)

	settings := api.Group("/settings", s.AuthRequired())
	settings.Get("/", s.GetSettings)
	settings.Put("/", s.UpdateSettings)

	newsletter := api.Group("/newsletter", s.FeatureRequired(FlagNewsletter))
	newsletter.Post("/subscribe", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "newsletter"), s.Subscribe)
	newsletter.Post("/unsubscribe", s.Unsubscribe)

	admin := api.Group("/admin", s.AuthRequired(), s.AdminRequired())
	admin.Post("/notifications", s.SendSystemNotification)
	admin.Put("/users/:id/membership", s.SetMembership)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports 503 unless both the database and Redis answer a ping.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database":    dbStatus,
			"redis":       redisStatus,
			"connections": s.hub.ConnectionCount(),
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)

		user, err := s.userRepo.GetByID(c.UserContext(), userID)
		if err != nil {
			return s.respondError(c, err)
		}
		if !user.IsAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}

		return c.Next()
	}
}

// AuthRequired accepts a single-use WebSocket ticket on /api/ws and a bearer
// token everywhere else. Revoked tokens are rejected.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ticket := c.Query("ticket"); ticket != "" && c.Path() == "/api/ws" {
			userID, ok := s.consumeWSTicket(c.UserContext(), ticket)
			if !ok {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			middleware.WithUserID(c, userID)
			return c.Next()
		}

		claims, err := middleware.ParseAccessToken(s.config.JWTSecret, middleware.BearerToken(c))
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(capitalize(err.Error())))
		}

		if claims.JTI != "" && s.redis != nil {
			revoked, err := s.redis.Exists(c.UserContext(), cache.BlacklistKey(claims.JTI)).Result()
			if err == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		c.Locals("jti", claims.JTI)
		c.Locals("tokenExpiresAt", claims.ExpiresAt)
		middleware.WithUserID(c, claims.UserID)
		return c.Next()
	}
}

func (s *Server) consumeWSTicket(ctx context.Context, ticket string) (uint, bool) {
	if s.redis == nil {
		return 0, false
	}
	raw, err := s.redis.GetDel(ctx, cache.WSTicketKey(ticket)).Result()
	if err != nil {
		return 0, false
	}
	userID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || userID == 0 {
		return 0, false
	}
	return uint(userID), true
}

// optionalUserID extracts the caller from a bearer token without enforcing it.
// Revoked or malformed tokens are treated as anonymous.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	claims, err := middleware.ParseAccessToken(s.config.JWTSecret, middleware.BearerToken(c))
	if err != nil {
		return 0
	}
	if claims.JTI != "" && s.redis != nil {
		if n, err := s.redis.Exists(c.UserContext(), cache.BlacklistKey(claims.JTI)).Result(); err == nil && n > 0 {
			return 0
		}
	}
	middleware.WithUserID(c, claims.UserID)
	return claims.UserID
}

// App builds the fiber app with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName: "BlogsHive API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	go func() {
		if err := s.hub.StartWiring(s.shutdownCtx); err != nil {
			log.Printf("failed to start %s wiring: %v", s.hub.Name(), err)
		}
	}()

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		log.Printf("error shutting down %s: %v", s.hub.Name(), err)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
