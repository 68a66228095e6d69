package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/webfolio/authd/internal/config"
	"github.com/webfolio/authd/internal/crypto"
	"github.com/webfolio/authd/internal/idp"
	"github.com/webfolio/authd/internal/log"
	"github.com/webfolio/authd/internal/server"
	"github.com/webfolio/authd/internal/storage"
	"golang.org/x/sync/errgroup"
)

var BuildVersion = "dev"

const cleanupInterval = 5 * time.Minute

func main() {
	version := flag.Bool("version", false, "print version and exit")
	hashToken := flag.String("hash-admin-token", "", "print the bcrypt hash of an admin token and exit")
	flag.Parse()

	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *hashToken != "" {
		hash, err := crypto.HashAdminToken(*hashToken)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to hash token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(hash))
		return
	}

	if err := run(); err != nil {
		log.LogError("Fatal: %v", err)
		os.Exit(1)
	}
}

func run() error {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	providers := map[string]idp.Provider{
		"google": idp.NewGoogleProvider(cfg.GoogleClientID, string(cfg.GoogleClientSecret), cfg.GoogleRedirectURI),
	}

	handler := server.NewRouter(cfg, providers, store, crypto.NewTokenSource(nil))
	httpServer := server.NewHTTPServer(handler, cfg.Addr)

	cleanup := storage.NewCleanupManager(store, cleanupInterval)
	cleanup.Start(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(httpServer.Start)
	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cleanup.Stop()
		return httpServer.Stop(shutdownCtx)
	})

	log.LogInfoWithFields("main", "authd started", map[string]any{
		"version": BuildVersion,
		"addr":    cfg.Addr,
		"storage": string(cfg.Storage),
	})

	return g.Wait()
}

func newStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.Storage {
	case config.StorageFirestore:
		return storage.NewFirestoreStore(ctx, cfg.FirestoreProjectID, cfg.FirestoreDatabase, cfg.FirestoreCollection)
	default:
		log.LogWarn("Using in-memory storage; sessions will not survive a restart")
		return storage.NewMemoryStore(), nil
	}
}
