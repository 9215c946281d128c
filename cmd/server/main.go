// Command vsp-server starts the video upload and streaming server.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/and161185/vsp-server/internal/blobstore"
	"github.com/and161185/vsp-server/internal/config"
	"github.com/and161185/vsp-server/internal/limiter"
	"github.com/and161185/vsp-server/internal/migrate"
	"github.com/and161185/vsp-server/internal/repository"
	"github.com/and161185/vsp-server/internal/repository/filestore"
	"github.com/and161185/vsp-server/internal/repository/postgres"
	"github.com/and161185/vsp-server/internal/server/tcpserver"
	"github.com/and161185/vsp-server/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, opens storage and serves until SIGINT/SIGTERM.
func main() {
	// Flags override file and environment settings when set.
	cfgPath := flag.String("config", os.Getenv("VSP_CONFIG"), "path to YAML or TOML config")
	addr := flag.String("addr", "", "listen address")
	dataDir := flag.String("data-dir", "", "directory for uploads, videos and catalogs")
	jwtKey := flag.String("jwt-key", "", "HS256 signing key")
	dsn := flag.String("dsn", "", "PostgreSQL DSN for accounts and login limits (optional)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *jwtKey != "" {
		cfg.JWTKey = *jwtKey
	}
	if *dsn != "" {
		cfg.DSN = *dsn
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.ListenAddr),
		zap.String("dataDir", cfg.DataDir),
		zap.Bool("postgres", cfg.DSN != ""),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Accounts and login limits: PostgreSQL when a DSN is given, files and memory otherwise.
	var (
		users repository.UserRepository
		lim   limiter.Limiter
	)
	if cfg.DSN != "" {
		if err := migrate.Up(ctx, cfg.DSN); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			logger.Fatal("postgres", zap.Error(err))
		}
		defer db.Close()
		users = postgres.NewUserRepo(db)
		lim = limiter.NewPG(db.Pool, cfg.LimiterPolicy())
	} else {
		users = filestore.NewUserRepo(cfg.UsersPath())
		lim = limiter.NewMemory(cfg.LimiterPolicy())
	}

	blobs, err := blobstore.New(cfg.UploadsDir(), cfg.VideosDir())
	if err != nil {
		logger.Fatal("blobstore", zap.Error(err))
	}
	catalog := filestore.NewCatalogRepo(cfg.CatalogPath())

	// Services
	authSvc := service.NewAuthService(users, []byte(cfg.JWTKey), cfg.AccessTTL, lim, cfg.AutoRegister)
	uploadSvc := service.NewUploadService(filestore.NewSessionRepo(cfg.UploadsDir()), catalog, blobs, logger)
	videoSvc := service.NewVideoService(catalog, blobs, logger)

	srv := tcpserver.New(authSvc, uploadSvc, videoSvc, logger, cfg.MaxBodyBytes)

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	// Serve returns once ctx is cancelled and in-flight connections have finished.
	if err := srv.Serve(ctx, lis); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
