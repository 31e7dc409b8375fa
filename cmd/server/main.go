package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-ordering-server/auth"
	"github.com/jrsteele09/go-ordering-server/internal/config"
	"github.com/jrsteele09/go-ordering-server/internal/metrics"
	"github.com/jrsteele09/go-ordering-server/server"
	"github.com/jrsteele09/go-ordering-server/token"
	"github.com/jrsteele09/go-ordering-server/token/replay"
	"github.com/jrsteele09/go-ordering-server/users"
	"github.com/jrsteele09/go-ordering-server/users/mongorepo"
	fakeuserrepo "github.com/jrsteele09/go-ordering-server/users/repofake"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	shutdownTimeout = 5 * time.Second
	connectTimeout  = 10 * time.Second
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if err := run(configPath); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run(configPath string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogger(c.GetEnv())
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder()
	var opts []server.Option

	userRepo, closeUsers, err := openUserRepo(ctx, c)
	if err != nil {
		return err
	}
	defer closeUsers()
	if pinger, ok := userRepo.(interface{ Ping(context.Context) error }); ok {
		opts = append(opts, server.WithHealthCheck("users", pinger.Ping))
	}

	guard, closeGuard, err := openReplayGuard(ctx, c)
	if err != nil {
		return err
	}
	defer closeGuard()
	if redisGuard, ok := guard.(*replay.RedisGuard); ok {
		opts = append(opts, server.WithHealthCheck("replay", redisGuard.Ping))
	}

	tokens, err := token.NewManager(c)
	if err != nil {
		return err
	}
	authService, err := auth.NewService(userRepo, tokens, guard)
	if err != nil {
		return err
	}

	srv, err := server.New(c, authService, userRepo, append(opts, server.WithMetrics(recorder))...)
	if err != nil {
		return err
	}

	sweeper := replay.NewSweeper(guard, c.GetReplaySweepInterval(), replay.OnSweep(recorder.Swept))
	go sweeper.Run(ctx)

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           srv,
		ReadHeaderTimeout: c.GetRequestTimeout(),
		WriteTimeout:      2 * c.GetRequestTimeout(),
	}

	errs := make(chan error, 1)
	go func() {
		errs <- listenAndServe(httpServer)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	return shutdown(httpServer)
}

// openUserRepo connects to Mongo when DATABASE_URL is set, otherwise it uses
// an in-memory store. Either way the bootstrap admin is ensured.
func openUserRepo(ctx context.Context, c config.Config) (users.UserRepo, func(), error) {
	var (
		repo    users.UserRepo
		closeFn = func() {}
	)

	if uri := c.GetDatabaseURL(); uri != "" {
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		mongoRepo, err := mongorepo.New(connectCtx, uri)
		if err != nil {
			return nil, nil, fmt.Errorf("connect users store: %w", err)
		}
		log.Info().Msg("Users store: mongodb")
		repo = mongoRepo
		closeFn = func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := mongoRepo.Close(closeCtx); err != nil {
				log.Err(err).Msg("Failed to close users store")
			}
		}
	} else {
		log.Warn().Msg("DATABASE_URL not set, users are kept in memory")
		repo = fakeuserrepo.NewFakeUserRepo()
	}

	generatedPassword, err := server.BootstrapAdmin(ctx, repo, c.GetAdminEmail(), c.GetAdminPassword())
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	if generatedPassword != "" && c.GetAdminPassword() == "" {
		log.Info().Str("email", c.GetAdminEmail()).Str("password", generatedPassword).Msg("Admin account created")
	}
	return repo, closeFn, nil
}

// openReplayGuard uses Redis when REDIS_URL is set, so redeemed challenges are
// shared across instances; otherwise an in-process guard.
func openReplayGuard(ctx context.Context, c config.Config) (replay.Guard, func(), error) {
	if url := c.GetRedisURL(); url != "" {
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		guard, err := replay.NewRedisGuardFromURL(connectCtx, url, c.GetReplayKeyPrefix())
		if err != nil {
			return nil, nil, fmt.Errorf("connect replay guard: %w", err)
		}
		log.Info().Msg("Replay guard: redis")
		return guard, func() {
			if err := guard.Close(); err != nil {
				log.Err(err).Msg("Failed to close replay guard")
			}
		}, nil
	}
	log.Info().Msg("Replay guard: memory")
	return replay.NewMemoryGuard(token.ExpiryOf), func() {}, nil
}

func setupLogger(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
