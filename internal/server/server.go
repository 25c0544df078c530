package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mehmetcc/todolist-authentication-service/internal/authentication"
	"github.com/mehmetcc/todolist-authentication-service/internal/person"
	"github.com/mehmetcc/todolist-authentication-service/internal/todo"
	"github.com/mehmetcc/todolist-authentication-service/internal/utils"
)

const shutdownTimeout = 10 * time.Second

// Dependencies are the process-wide collaborators the router is built from.
type Dependencies struct {
	Config *utils.Config
	DB     *gorm.DB
	Hasher utils.PasswordHasher
	Logger *zap.Logger
	// Redis is optional; without it the failed-login lockout is disabled.
	Redis redis.UniversalClient
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&person.Person{}, &authentication.RefreshToken{}, &todo.Todo{})
}

// NewRouter wires services and handlers onto a fresh gin engine.
func NewRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	logger := deps.Logger

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	//
	// SWAGGER (protected by Basic Auth, not JWT)
	//
	if cfg.Admin.Username != "" {
		swaggerGroup := router.Group("/swagger", gin.BasicAuth(gin.Accounts{
			cfg.Admin.Username: cfg.Admin.Password,
		}))
		swaggerGroup.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	//
	// WIRE UP SERVICES
	//
	personRepo := person.NewPersonRepository(deps.DB)
	personService := person.NewPersonService(personRepo, deps.Hasher, logger)

	codec := utils.NewTokenCodec(cfg.Token.Secret, cfg.Token.AccessTokenTTL, cfg.Token.RefreshTokenTTL)
	store := authentication.NewRefreshTokenStore(deps.DB, cfg.Token.RefreshTokenTTL)

	var limiter authentication.LoginLimiter
	if deps.Redis != nil {
		limiter = authentication.NewRedisLoginLimiter(deps.Redis, authentication.LockoutConfig{
			Threshold: cfg.Security.LockoutThreshold,
			Window:    cfg.Security.LockoutWindow,
		})
	} else {
		limiter = authentication.NewNoopLoginLimiter()
	}

	authService := authentication.NewAuthenticationService(
		personService,
		store,
		codec,
		deps.Hasher,
		limiter,
		logger,
		authentication.ServiceOptions{
			InvalidateSessionsOnPasswordChange: cfg.Security.InvalidateSessionsOnPasswordChange,
		},
	)

	todoService := todo.NewTodoService(todo.NewTodoRepository(deps.DB), logger)

	api := router.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	public := api.Group("/")
	if cfg.Security.RateLimitPerSecond > 0 {
		public.Use(authentication.RateLimitMiddleware(authentication.NewRateLimiter(cfg.Security.RateLimitPerSecond)))
	}

	protected := api.Group("/")
	protected.Use(authentication.AuthMiddleware(authService, logger))

	authentication.NewAuthHandler(public, protected, authService, authentication.CookieSettings{
		MaxAge: cfg.Token.CookieMaxAge,
		Secure: cfg.Token.CookieSecure,
	}, logger)
	person.NewPersonHandler(protected, personService, logger)
	todo.NewTodoHandler(protected, todoService, logger)

	return router
}

// Run serves handler on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}
