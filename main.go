package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/mehmetcc/todolist-authentication-service/docs"
	"github.com/mehmetcc/todolist-authentication-service/internal/server"
	"github.com/mehmetcc/todolist-authentication-service/internal/utils"
)

// @title           Todolist Authentication Service API
// @version         1.0
// @description     Access/refresh token authentication and a per-user to-do list.
//
// @BasePath  /api
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	// load config
	cfg, err := utils.LoadConfig(".env")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// init logger
	var logger *zap.Logger
	if cfg.Server.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		gin.SetMode(gin.ReleaseMode)
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	// init database
	db, err := utils.InitDatabase(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		logger.Fatal("failed to connect to the database", zap.Error(err))
	}
	if err := server.Migrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	var redisClient redis.UniversalClient
	if cfg.Security.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Security.RedisAddr})
		defer redisClient.Close()
	}

	router := server.NewRouter(server.Dependencies{
		Config: cfg,
		DB:     db,
		Hasher: utils.NewBcryptHasher(bcrypt.DefaultCost),
		Logger: logger,
		Redis:  redisClient,
	})

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	if err := server.Run(ctx, addr, router, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}
