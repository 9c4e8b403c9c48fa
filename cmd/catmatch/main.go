package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	appsync "catmatch/internal/app/sync"
	"catmatch/internal/domain/chat"
	"catmatch/internal/infra/config"
	"catmatch/internal/infra/feed/kafka"
	"catmatch/internal/infra/gateway"
	ginserver "catmatch/internal/infra/http/gin"
	"catmatch/internal/infra/http/ws"
	"catmatch/internal/infra/obs"
	"catmatch/internal/infra/presence/natsgroup"
	"catmatch/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: func() error { return nil },
	}, app.handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		app.shutdown(shutdownCtx)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "session_user", cfg.SessionUserID)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	logger   *slog.Logger

	chatHandler *ginserver.ChatHandler
	tracker     *appsync.Tracker
	typing      *appsync.Coordinator
	inboxSub    *appsync.Subscription
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	sessionUser := chat.UserID(cfg.SessionUserID)

	gatewayClient, err := gateway.NewClient(gateway.Config{
		BaseURL:     cfg.GatewayBaseURL,
		Token:       cfg.GatewayToken,
		CallTimeout: cfg.GatewayTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("gateway client: %w", err)
	}

	cache := memory.NewCache(cfg.CacheTTL, cacheLoader(gatewayClient, sessionUser), logger)

	hub := ws.NewHub(logger)
	go hub.Run()
	cache.OnInvalidate = hub.NotifyInvalidated

	feed := kafka.NewFeed(cfg.KafkaBrokers, cfg.ClientID, cfg.KafkaTopicPrefix, logger)
	subscriber := appsync.NewSubscriber(feed, cache, appsync.DefaultTopics, logger)

	// The inbox channel stays open for the whole session; per-conversation
	// message channels come and go with watch/unwatch.
	inboxSub, err := subscriber.SubscribeConversations(sessionUser)
	if err != nil {
		logger.Warn("inbox feed unavailable, serving cached data", "error", err)
	}

	conn, err := natsgroup.Dial(cfg.NATSServers, cfg.ClientID, logger)
	if err != nil {
		return nil, fmt.Errorf("presence transport: %w", err)
	}
	group := natsgroup.NewGroup(conn, cfg.PresenceSubject, natsgroup.Options{
		Heartbeat: cfg.PresenceHeartbeat,
		Expiry:    cfg.PresenceExpiry,
	}, logger)
	tracker := appsync.NewTracker(group, logger)
	tracker.OnChange = hub.NotifyPresence
	tracker.Track(ctx, sessionUser)

	messenger := appsync.NewMessenger(gatewayClient, cache, logger)
	resolver := appsync.NewResolver(gatewayClient, cache, messenger, logger)
	reads := appsync.NewReadState(gatewayClient, cache, logger)
	typing := appsync.NewCoordinator(gatewayClient, logger)

	chatHandler := &ginserver.ChatHandler{
		Cache:     cache,
		Gateway:   gatewayClient,
		Messenger: messenger,
		Resolver:  resolver,
		Reads:     reads,
		Typing:    typing,
		Subs:      subscriber,
		Presence:  tracker,
		Logger:    logger,
	}

	return &application{
		handlers: ginserver.Handlers{
			Chat:     chatHandler,
			Presence: &ginserver.PresenceHandler{Tracker: tracker},
			Notices:  hub,
		},
		logger:      logger,
		chatHandler: chatHandler,
		tracker:     tracker,
		typing:      typing,
		inboxSub:    inboxSub,
	}, nil
}

func (a *application) shutdown(ctx context.Context) {
	a.typing.Stop()
	a.chatHandler.CloseWatches()
	if a.inboxSub != nil {
		if err := a.inboxSub.Close(); err != nil {
			a.logger.Warn("inbox feed close failed", "error", err)
		}
	}
	a.tracker.Stop(ctx)
}

// cacheLoader routes a stale key back to the gateway call that originally
// filled it. Only first pages are cached, so refetches use first-page sizes.
func cacheLoader(client *gateway.Client, sessionUser chat.UserID) memory.Loader {
	return func(ctx context.Context, key string) (any, error) {
		prefix, id := appsync.SplitKey(key)
		switch prefix {
		case appsync.ConversationsPrefix:
			return client.ListConversations(ctx, chat.UserID(id), 1, 20)
		case appsync.MessagesPrefix:
			return client.ListMessages(ctx, sessionUser, chat.ConversationID(id), 1, 50)
		case appsync.UnreadPrefix:
			return client.GetUnreadCount(ctx, chat.UserID(id))
		default:
			return nil, fmt.Errorf("unknown cache key %q", key)
		}
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
