package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dm-chat/internal/auth"
	"dm-chat/internal/chat"
	"dm-chat/internal/config"
	"dm-chat/internal/db"
	"dm-chat/internal/logger"
	"dm-chat/internal/message"
	"dm-chat/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newServeCmd(envFile *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "http service address (overrides ADDR)")
	return cmd
}

func newMigrateCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the message schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			if cfg.DatabaseDSN == "" {
				return errors.New("DB_DSN is not set")
			}
			database, err := db.NewDatabase(cfg.DatabaseDSN)
			if err != nil {
				return fmt.Errorf("connect to DB: %w", err)
			}
			defer database.Conn.Close()

			if err := database.AutoMigrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Database Schema Initialized")
			return nil
		},
	}
}

func newTokenCmd(envFile *string) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a dev identity token for a user id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			token, err := auth.NewService(cfg.JWTSecret, cfg.JWTIssuer).Issue(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to put in the token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// serve wires the platform layer, then the chat feature, then HTTP, and
// blocks until ctx is canceled.
func serve(ctx context.Context, cfg config.Config) error {
	log := logger.New(cfg.LogLevel, os.Stdout)
	m := metrics.NewMetrics()

	// 1. Message Store (Platform Layer)
	var (
		store  message.Store
		checks []healthCheck
	)
	if cfg.DatabaseDSN != "" {
		database, err := db.NewDatabase(cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("connect to DB: %w", err)
		}
		log.Info("db.connected")
		if err := database.AutoMigrate(ctx); err != nil {
			_ = database.Conn.Close()
			return err
		}
		store = message.NewPostgresStore(database.Conn)
		checks = append(checks, healthCheck{name: "postgres", ping: database.Ping})
	} else {
		log.Warn("db.disabled", "reason", "DB_DSN not set, messages are kept in memory")
		store = message.NewMemoryStore()
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("store.close.fail", "err", err)
		}
	}()

	// 2. Presence fan-out, optionally mirrored to Redis
	hub := chat.NewHub(log, m)
	go hub.Run(ctx)

	var broadcaster chat.Broadcaster = hub
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to Redis: %w", err)
		}
		log.Info("redis.connected", "addr", cfg.RedisAddr, "channel", cfg.RedisChannel)

		mirror := chat.NewRedisMirror(hub, redisClient, cfg.RedisChannel, log)
		go mirror.Run(ctx)
		broadcaster = mirror
		checks = append(checks, healthCheck{name: "redis", ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	// 3. Chat core
	registry := chat.NewRegistry(broadcaster, m)
	router := chat.NewRouter(store, registry, log, m)
	reconciler := chat.NewReconciler(store, registry, log, m)
	dispatcher := chat.NewDispatcher(registry, router, reconciler, log, m)
	chatHandler := chat.NewHandler(hub, dispatcher, store, log, chat.HandlerOptions{
		SendQueueSize:  cfg.SendQueueSize,
		MaxMessageSize: cfg.MaxMessageSize,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	tokens := auth.NewService(cfg.JWTSecret, cfg.JWTIssuer)

	// 4. HTTP
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(chatHandler, tokens, checks),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http.listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("http.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
