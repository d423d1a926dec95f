package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/keyforge/keyforge/internal/config"
	"github.com/keyforge/keyforge/internal/db"
	"github.com/keyforge/keyforge/internal/filestore"
	"github.com/keyforge/keyforge/internal/handler"
	"github.com/keyforge/keyforge/internal/job"
	"github.com/keyforge/keyforge/internal/middleware"
	"github.com/keyforge/keyforge/internal/realtime"
	"github.com/keyforge/keyforge/internal/repo"
	"github.com/keyforge/keyforge/internal/schedule"
	"github.com/keyforge/keyforge/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "keyforge",
		Short: "keyforge backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run keyforge server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_path", cfg.DBPath),
		zap.String("file_store", cfg.FileStore.Type),
	)

	userRepo := repo.NewUserRepo(database)
	layoutRepo := repo.NewLayoutRepo(database)
	shareRepo := repo.NewShareLinkRepo(database)

	userLookup := service.NewUserLookup(userRepo,
		cfg.UserCache.Size, time.Duration(cfg.UserCache.TTLSeconds)*time.Second)
	shareService := service.NewShareService(shareRepo, layoutRepo, userLookup, service.NewTokenIssuer())
	layoutService := service.NewLayoutService(layoutRepo)

	registry := realtime.NewRegistry()
	gateway := realtime.NewGateway(shareRepo, layoutRepo, userLookup, registry)

	store, err := filestore.New(cfg.FileStore.Type, cfg.FileStore.Data)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	deps := handler.RouterDeps{
		Shares:          handler.NewShareHandler(shareService),
		Layouts:         handler.NewLayoutHandler(layoutService),
		Realtime:        handler.NewRealtimeHandler(gateway, cfg.Realtime.SendQueueSize, cfg.Realtime.AllowedOrigins),
		Files:           handler.NewFileHandler(store),
		JWTSecret:       []byte(cfg.JWTSecret),
		RateLimitWindow: time.Duration(cfg.RateLimitWindowMS) * time.Millisecond,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.Realtime.AllowedOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening",
		zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if cfg.Cleanup.Enable {
		retention := job.NewShareRetentionJob(shareRepo, cfg.Cleanup.RetentionDays)
		if err := scheduler.AddJob(retention, cfg.Cleanup.Spec); err != nil {
			return fmt.Errorf("schedule retention job: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
