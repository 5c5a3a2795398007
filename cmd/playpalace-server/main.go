// Command playpalace-server runs the session and table orchestration
// server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/James-Trimble/PlayPalace11/internal/auth"
	"github.com/James-Trimble/PlayPalace11/internal/game"
	"github.com/James-Trimble/PlayPalace11/internal/games/pig"
	"github.com/James-Trimble/PlayPalace11/internal/games/uno"
	"github.com/James-Trimble/PlayPalace11/internal/history"
	"github.com/James-Trimble/PlayPalace11/internal/i18n"
	"github.com/James-Trimble/PlayPalace11/internal/motd"
	"github.com/James-Trimble/PlayPalace11/internal/registry"
	"github.com/James-Trimble/PlayPalace11/internal/server"
	"github.com/James-Trimble/PlayPalace11/internal/store"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("could not load .env")
	}

	cfg, err := server.FromEnv()
	if err != nil {
		log.WithError(err).Fatal("bad configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("store init failed")
	}
	defer st.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, history disabled")
			rdb = nil
		}
	}
	historian := history.NewPublisher(rdb, log)

	games := game.NewRegistry()
	for _, desc := range []game.Descriptor{pig.Descriptor(), uno.Descriptor()} {
		if err := games.Register(desc); err != nil {
			log.WithError(err).Fatal("game registration failed")
		}
	}

	motdProv, err := loadMotd(cfg)
	if err != nil {
		log.WithError(err).Fatal("motd load failed")
	}

	render := i18n.Default()
	authMgr := auth.New(st, cfg.JWTSecret, cfg.TokenTTL, log)
	reg := registry.New(games, st, render, historian, log)
	srv := server.New(cfg, authMgr, games, reg, motdProv, render, log)

	httpSrv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  0, // websockets hold the read side open
		WriteTimeout: 0,
	}

	go func() {
		log.WithField("addr", cfg.Addr).Info("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown incomplete")
	}
}

// openStore picks Postgres when DATABASE_URL is set, the in-memory store
// otherwise.
func openStore(ctx context.Context, cfg server.Config, log *logrus.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("no DATABASE_URL, state will not survive a restart")
		return store.NewMemory(), nil
	}
	return store.NewPostgres(ctx, cfg.DatabaseURL)
}

func loadMotd(cfg server.Config) (motd.Provider, error) {
	if cfg.MotdFile == "" {
		return motd.None(), nil
	}
	p, err := motd.FromFile(cfg.MotdFile)
	if err != nil {
		return nil, err
	}
	return p, nil
}
