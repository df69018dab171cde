package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"itemsim/internal/config"
	"itemsim/internal/handler"
	"itemsim/internal/infrastructure/cache"
	"itemsim/internal/infrastructure/database"
	"itemsim/internal/infrastructure/lock"
	"itemsim/internal/infrastructure/mq"
	"itemsim/internal/job"
	"itemsim/internal/service"
	"itemsim/pkg/idgen"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", os.Getenv("ITEMSIM_CONFIG"), "path to the YAML config file")
	nodeID := flag.Int64("node", 1, "snowflake node id")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, *nodeID, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, nodeID int64, log *zap.Logger) error {
	idgen.Init(nodeID)

	db, err := database.Open(&cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	// left nil without Redis; the row lock alone still serializes writers
	var locker service.CharacterLocker
	if cfg.Redis.Enabled() {
		redisClient, err := cache.InitRedis(&cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = redisClient.Close() }()
		locker = lock.NewCharacterLocker(redisClient, cfg.Redis.LockTTL, cfg.Redis.LockRetryInterval, cfg.Redis.LockMaxRetries)
		log.Info("redis character lock enabled", zap.String("addr", redisClient.Options().Addr))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Kafka.Enabled() {
		producer, err := mq.NewProducer(&cfg.Kafka)
		if err != nil {
			return err
		}
		publisher := mq.NewPublisher(producer)
		defer func() { _ = publisher.Close() }()

		outboxSender := job.NewOutboxSender(db, publisher, cfg, log)
		go outboxSender.Start(ctx)
		defer outboxSender.Stop()

		redriver, err := job.NewOutboxRedriver(db, cfg, log)
		if err != nil {
			return err
		}
		redriver.Start()
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer stopCancel()
			redriver.Stop(stopCtx)
		}()
		log.Info("kafka outbox enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	router := handler.SetupRouter(db, locker, cfg, log)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
