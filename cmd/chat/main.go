package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/AlibekovAA/chat-presence-hub/internal/chat/authn"
	"github.com/AlibekovAA/chat-presence-hub/internal/chat/domain"
	"github.com/AlibekovAA/chat-presence-hub/internal/chat/events"
	chathttp "github.com/AlibekovAA/chat-presence-hub/internal/chat/http"
	"github.com/AlibekovAA/chat-presence-hub/internal/chat/presence"
	"github.com/AlibekovAA/chat-presence-hub/internal/chat/repository/postgres"
	"github.com/AlibekovAA/chat-presence-hub/internal/chat/repository/sqlite"
	"github.com/AlibekovAA/chat-presence-hub/internal/chat/websocket"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/clock"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/config"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/constants"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/db"
	commonhttp "github.com/AlibekovAA/chat-presence-hub/internal/common/http"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/jwtverify"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/logger"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/resilience"
	srv "github.com/AlibekovAA/chat-presence-hub/internal/common/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadChatConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{
		Dir:         cfg.LogDir,
		ServiceName: "chat",
		Level:       cfg.LogLevel,
		ToStdout:    true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if err := run(cfg, log); err != nil {
		log.Fatalf("chat service failed: %v", err)
	}
}

func run(cfg config.ChatConfig, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.NewRealClock()
	checks := make(map[string]commonhttp.HealthCheck)

	stores, err := openStores(ctx, cfg, clk, log, checks)
	if err != nil {
		return err
	}
	defer stores.close()

	messages := stores.messages
	if cfg.MessageEventsEnabled() {
		publishing := events.NewPublishingStore(messages, events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaMessageTopic, log), log)
		defer publishing.Close()
		messages = publishing
		log.Infof("message events: kafka topic %s", cfg.KafkaMessageTopic)
	}

	hubCfg := websocket.HubConfig{SendTimeout: cfg.WebSocketSendTimeout}

	var mirror *presence.RedisMirror
	if cfg.PresenceMirrorEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		mirror = presence.NewRedisMirror(rdb, cfg.RedisPresenceTTL, clk, log)
		hubCfg.Mirror = mirror
		checks["redis"] = mirror.Ping
	}

	hub := websocket.NewHub(log, hubCfg)
	if mirror != nil {
		go mirror.Run(ctx, hub.OnlineUsers)
	}

	verifier := jwtverify.NewVerifier(cfg.JWTSecret)
	protocol := websocket.NewProtocolHandler(hub, authn.NewJWTAuthenticator(verifier, stores.revoked), messages, websocket.ProtocolHandlerConfig{
		FramesPerSecond: cfg.WebSocketFramesPerSec,
		FrameBurst:      cfg.WebSocketFrameBurst,
		StoreTimeout:    cfg.StoreTimeout,
	}, log)

	upgradeLimiter := commonhttp.NewRateLimiter(constants.WebSocketUpgradesPerSecond, constants.WebSocketUpgradeBurst)
	defer upgradeLimiter.Stop()

	handler := chathttp.NewHandler(chathttp.Options{
		Hub:      hub,
		Protocol: protocol,
		Verifier: verifier,
		Client: websocket.ClientConfig{
			WriteWait:      cfg.WebSocketWriteWait,
			PongWait:       cfg.WebSocketPongWait,
			PingPeriod:     cfg.WebSocketPingPeriod,
			MaxMessageSize: cfg.WebSocketMaxMsgSize,
			SendBufferSize: cfg.WebSocketSendBufSize,
		},
		HealthChecks:   checks,
		UpgradeLimiter: upgradeLimiter,
	}, log)

	server := srv.New(srv.DefaultConfig(cfg.HTTPPort), handler)

	return srv.Run(ctx, server, log, "chat", []srv.ShutdownHook{
		func(ctx context.Context) error {
			hubCtx, cancel := context.WithTimeout(ctx, constants.WebSocketShutdownNotificationTimeout)
			defer cancel()
			return hub.Shutdown(hubCtx)
		},
	})
}

type storeSet struct {
	messages domain.MessageStore
	revoked  authn.RevocationList
	close    func()
}

func openStores(ctx context.Context, cfg config.ChatConfig, clk clock.Clock, log *logger.Logger, checks map[string]commonhttp.HealthCheck) (storeSet, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath, clk)
		if err != nil {
			return storeSet{}, fmt.Errorf("open sqlite store: %w", err)
		}
		checks["database"] = store.Ping
		log.Infof("message store: sqlite at %s", cfg.SQLitePath)
		return storeSet{
			messages: store,
			close:    func() { _ = store.Close() },
		}, nil

	default:
		pool, err := db.NewPool(ctx, log, cfg.DatabaseURL)
		if err != nil {
			return storeSet{}, fmt.Errorf("open postgres pool: %w", err)
		}
		db.StartPoolMetrics(ctx, pool, constants.DBPoolMetricsInterval)
		checks["database"] = pool.Ping

		breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Threshold:  int32(cfg.CircuitBreakerThreshold),
			Timeout:    cfg.CircuitBreakerTimeout,
			ResetAfter: cfg.CircuitBreakerReset,
			Name:       "message_store",
			Clock:      clk,
			Logger:     log,
		})

		revoked := postgres.NewRevokedTokens(pool)
		go authn.StartRevokedTokenCleanup(ctx, revoked, constants.RevokedTokenCleanupInterval, log)

		log.Infof("message store: postgres")
		return storeSet{
			messages: postgres.NewMessageStore(pool, breaker, clk, log),
			revoked:  revoked,
			close:    pool.Close,
		}, nil
	}
}
