package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/api/option"

	"github.com/jredh-dev/waypost/config"
	"github.com/jredh-dev/waypost/internal/backend"
	"github.com/jredh-dev/waypost/internal/confirm"
	"github.com/jredh-dev/waypost/internal/database"
	"github.com/jredh-dev/waypost/internal/geocode"
	"github.com/jredh-dev/waypost/internal/session"
	"github.com/jredh-dev/waypost/internal/telemetry"
	"github.com/jredh-dev/waypost/internal/token"
	"github.com/jredh-dev/waypost/internal/web/handlers"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("port", "", "listen port (overrides server.port)")
	_ = v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     version,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	if cfg.Firebase.UseEmulator {
		// The Firebase and Firestore SDKs only read the emulator hosts from the environment.
		os.Setenv("FIREBASE_AUTH_EMULATOR_HOST", cfg.Firebase.EmulatorAuthHost)
		os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Firebase.EmulatorFirestoreHost)
		logger.Info("using firebase emulators",
			"auth", cfg.Firebase.EmulatorAuthHost,
			"firestore", cfg.Firebase.EmulatorFirestoreHost,
		)
	}
	var clientOpts []option.ClientOption
	if cfg.Firebase.CredentialsPath != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.Firebase.CredentialsPath))
	}

	authClient := firebaseAuth(ctx, cfg, logger, clientOpts)

	store, ledger, closeStores, err := openStores(ctx, cfg, clientOpts)
	if err != nil {
		return err
	}
	defer closeStores()

	signingKey := cfg.JWT.SigningKey
	if signingKey == "" {
		logger.Warn("jwt.signing_key is empty, generating an ephemeral key; sessions will not survive a restart")
		if signingKey, err = token.GenerateSigningKey(); err != nil {
			return err
		}
	}
	tokens := token.New(signingKey, cfg.JWT.Issuer, authClient)

	api := backend.New(cfg.Backend.BaseURL, backend.WithTimeout(cfg.Backend.Timeout))
	geocoder := geocode.NewNominatim(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent,
		geocode.WithRate(cfg.Geocoder.RatePerSecond),
		geocode.WithLimit(cfg.Geocoder.Limit),
	)
	sessions := session.New(store, tokens, api,
		time.Duration(cfg.Session.CookieMaxAge)*time.Second, logger)

	h := handlers.New(handlers.Deps{
		Sessions:      sessions,
		Tokens:        tokens,
		Backend:       api,
		Geocoder:      geocoder,
		Ledger:        ledger,
		Logger:        logger,
		Location:      loc,
		CookieMaxAge:  cfg.Session.CookieMaxAge,
		SecureCookies: cfg.IsProduction(),
		Resolver: []geocode.ResolverOption{
			geocode.WithDebounce(cfg.Geocoder.Debounce),
			geocode.WithMinQueryLen(cfg.Geocoder.MinQueryLen),
		},
	})
	defer h.Close()
	go h.RunSweeper(ctx, time.Minute)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	h.Mount(r)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(r, "waypost"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("waypost starting", "addr", addr, "env", cfg.Server.Env, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// firebaseAuth returns the Firebase Auth client, or nil when it cannot be
// initialised. Without it every sign-in is rejected.
func firebaseAuth(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts []option.ClientOption) *auth.Client {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Firebase.ProjectID}, opts...)
	if err != nil {
		logger.Error("firebase init failed, sign-in disabled", "error", err)
		return nil
	}
	client, err := app.Auth(ctx)
	if err != nil {
		logger.Error("firebase auth init failed, sign-in disabled", "error", err)
		return nil
	}
	return client
}

// openStores picks the session store and reconciliation ledger.
func openStores(ctx context.Context, cfg *config.Config, opts []option.ClientOption) (session.Store, confirm.Ledger, func(), error) {
	if cfg.Session.Store != "firestore" {
		return session.NewMemoryStore(), confirm.NewMemoryLedger(), func() {}, nil
	}
	db, err := database.New(ctx, cfg.Firebase.ProjectID, cfg.Firebase.FirestoreDatabase, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			slog.Warn("close firestore", "error", err)
		}
	}
	return db.Sessions(), db.Ledger(), closeDB, nil
}
