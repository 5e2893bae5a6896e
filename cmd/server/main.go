package main

import (
	"context"

	"github.com/webmatcha/matcha-go/internal/api"
	"github.com/webmatcha/matcha-go/internal/app"
	"github.com/webmatcha/matcha-go/internal/cache"
	"github.com/webmatcha/matcha-go/internal/config"
	"github.com/webmatcha/matcha-go/internal/db"
	"github.com/webmatcha/matcha-go/internal/logger"
	"github.com/webmatcha/matcha-go/internal/presence"
	"github.com/webmatcha/matcha-go/internal/server"
	"github.com/webmatcha/matcha-go/internal/service/auth"
	"github.com/webmatcha/matcha-go/internal/service/fame"
	"github.com/webmatcha/matcha-go/internal/service/messaging"
	"github.com/webmatcha/matcha-go/internal/service/notification"
	"github.com/webmatcha/matcha-go/internal/service/profile"
	"github.com/webmatcha/matcha-go/internal/service/relationship"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	appCtx := app.New(database, redisCache, log, cfg)

	// Realtime hub first; the notification and messaging services push
	// through it.
	hub := presence.NewHub(appCtx)

	scorer := fame.NewScorer(appCtx)
	notifier := notification.NewService(appCtx, hub)
	relationships := relationship.NewService(appCtx, notifier, scorer)
	messages := messaging.NewService(appCtx, notifier, hub)
	profiles := profile.NewService(appCtx, notifier, scorer)
	accounts := auth.NewService(appCtx, nil)

	// inbound websocket chat frames go to the messaging gate
	hub.SetMessageSender(messages)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	registrars := []server.Registrar{
		api.NewAuthHandler(appCtx, accounts),
		api.NewProfileHandler(appCtx, profiles),
		api.NewRelationshipHandler(appCtx, relationships),
		api.NewMessagingHandler(appCtx, messages),
		api.NewNotificationHandler(appCtx, notifier),
		api.NewWSHandler(appCtx, hub),
	}

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server", "addr", addr)

	if err := server.StartHTTPServer(cfg, registrars...); err != nil {
		log.Error("failed to start HTTP server", "err", err)
	}
}
