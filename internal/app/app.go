package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/readyornot/sync-server/internal/controller"
	"github.com/readyornot/sync-server/internal/decision"
	"github.com/readyornot/sync-server/internal/realtime"
	"github.com/readyornot/sync-server/internal/repository/connection/inmemory"
	"github.com/readyornot/sync-server/internal/repository/session/redis"
	sessionservice "github.com/readyornot/sync-server/internal/service/session"
	"github.com/readyornot/sync-server/internal/syncer"
	"github.com/readyornot/sync-server/pkg/broadcast"
	"github.com/readyornot/sync-server/pkg/ctxlogger"
	"github.com/readyornot/sync-server/pkg/redisclient"
)

type AppConfig struct {
	Host             string `json:"host"`
	Port             int    `json:"port"`
	LogLevel         string `json:"log_level"`
	JoinCodeLength   int    `json:"join_code_length"`
	ProbeIntervalMs  int    `json:"probe_interval_ms"`
	ReplyTimeoutMs   int    `json:"reply_timeout_ms"`
	DriftCorrection  bool   `json:"drift_correction"`
	DriftThresholdMs int    `json:"drift_threshold_ms"`
	RedisPort        int    `json:"redis_port"`
	RedisHost        string `json:"redis_host"`
	RedisPassword    string `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Port < 1 {
		return fmt.Errorf("port must be greater than 0")
	}
	if cfg.JoinCodeLength < 4 {
		return fmt.Errorf("join code length must be at least 4")
	}
	if cfg.ProbeIntervalMs < 1 {
		return fmt.Errorf("probe interval must be greater than 0")
	}
	if cfg.ReplyTimeoutMs <= cfg.ProbeIntervalMs {
		return fmt.Errorf("reply timeout must exceed probe interval")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		log.Fatal(err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	logger := slog.New(&h)

	rc, err := redisclient.NewRedisClient(&redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	clock := clockwork.NewRealClock()

	sessionRepo := redis.NewRepo(rc, logger)
	connectionRepo := inmemory.NewRepo(logger)
	sessionService := sessionservice.NewService(sessionRepo, connectionRepo, logger, cfg.JoinCodeLength)

	channels := broadcast.NewRegistry(logger)

	monitorCfg := syncer.MonitorConfig{
		ProbeInterval: time.Duration(cfg.ProbeIntervalMs) * time.Millisecond,
		ReplyTimeout:  time.Duration(cfg.ReplyTimeoutMs) * time.Millisecond,
	}
	receiverCfg := syncer.DefaultReceiverConfig()
	receiverCfg.Monitor = monitorCfg
	receiverCfg.DriftCorrection = cfg.DriftCorrection
	if cfg.DriftThresholdMs > 0 {
		receiverCfg.DriftThreshold = float64(cfg.DriftThresholdMs) / 1000
	}

	syncers := syncer.NewRegistry(channels, clock, monitorCfg, receiverCfg, logger)
	decisions := decision.NewRegistry(clock, logger)

	publisher := realtime.NewPublisher(rc, logger)
	relay := realtime.NewRelay(publisher, sessionService, logger)

	ctrl := controller.NewController(sessionService, syncers, decisions, publisher, relay, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: ctrl.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		syncers.Shutdown()
		decisions.Shutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
