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

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/sharevault/internal/adapter/driven/memory"
	"github.com/ericfisherdev/sharevault/internal/adapter/driven/secrets"
	"github.com/ericfisherdev/sharevault/internal/adapter/driven/session"
	sqliteadapter "github.com/ericfisherdev/sharevault/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/sharevault/internal/adapter/driving/http"
	"github.com/ericfisherdev/sharevault/internal/application"
	"github.com/ericfisherdev/sharevault/internal/config"
	"github.com/ericfisherdev/sharevault/internal/domain/password"
	"github.com/ericfisherdev/sharevault/internal/domain/port/driven"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "keygen" {
		if err := keygen(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// keygen prints a fresh seal key for SHAREVAULT_SEAL_KEY.
func keygen() error {
	key, err := secrets.GenerateSealKey()
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}

// stores groups the driven adapters selected by SHAREVAULT_STORAGE.
type stores struct {
	accounts    driven.AccountStore
	credentials driven.CredentialStore
	shares      driven.ShareStore
	accessLogs  driven.AccessLogStore
	revocations driven.RevocationStore
	ping        func(context.Context) error
	close       func() error
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"storage", cfg.Storage,
		"db_path", cfg.DBPath,
		"session_ttl", cfg.SessionTTL,
		"purge_interval", cfg.PurgeInterval,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open storage.
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.close(); closeErr != nil {
			slog.Error("error closing storage", "error", closeErr)
		}
	}()

	// 4. Wire secrets and sessions.
	hasher := secrets.NewBcryptHasher(0)
	gateway, err := session.NewJWTGateway(cfg.SessionKey, cfg.SessionTTL, st.accounts, st.revocations)
	if err != nil {
		return err
	}

	// 5. Create services.
	accountSvc := application.NewAccountService(st.accounts, hasher, password.Default(cfg.PasswordMinLength), logger)
	authSvc := application.NewAuthService(st.accounts, hasher, gateway, gateway, logger)
	vaultSvc := application.NewVaultService(st.credentials, st.shares, st.accessLogs, st.accounts, logger)

	// 6. Start the revocation janitor.
	janitor := application.NewJanitorService(gateway, cfg.PurgeInterval, logger)
	go janitor.Start(ctx)

	// 7. Create HTTP handler.
	opts := []httphandler.Option{httphandler.WithRateLimit(cfg.RateLimit)}
	if st.ping != nil {
		opts = append(opts, httphandler.WithHealthCheck(st.ping))
	}
	apiHandler := httphandler.NewHandler(accountSvc, authSvc, vaultSvc, logger, opts...)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	slog.Info("sharevault started", "listen_addr", cfg.ListenAddr, "storage", cfg.Storage)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 9. Graceful shutdown with 10s timeout to drain in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Storage == config.StorageMemory {
		slog.Warn("using in-memory storage, all data is lost on exit")
		return &stores{
			accounts:    memory.NewAccountStore(),
			credentials: memory.NewCredentialStore(),
			shares:      memory.NewShareStore(),
			accessLogs:  memory.NewAccessLogStore(),
			revocations: memory.NewRevocationStore(),
			close:       func() error { return nil },
		}, nil
	}

	sealer, err := secrets.NewAgeSealer(cfg.SealKey)
	if err != nil {
		return nil, fmt.Errorf("load seal key: %w", err)
	}

	// Dual reader/writer with WAL mode.
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "path", cfg.DBPath)

	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("migrations complete", "schema_version", version)

	return &stores{
		accounts:    sqliteadapter.NewAccountRepo(db),
		credentials: sqliteadapter.NewCredentialRepo(db, sealer),
		shares:      sqliteadapter.NewShareRepo(db),
		accessLogs:  sqliteadapter.NewAccessLogRepo(db),
		revocations: sqliteadapter.NewRevocationRepo(db),
		ping:        db.Ping,
		close:       db.Close,
	}, nil
}
