package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/oauth2"

	"yt_multi_account/config"
	"yt_multi_account/internal/delivery/cli"
	"yt_multi_account/internal/delivery/cron"
	"yt_multi_account/internal/delivery/httpapi"
	"yt_multi_account/internal/domain"
	"yt_multi_account/internal/infrastructure/browser"
	httpclient "yt_multi_account/internal/infrastructure/http"
	"yt_multi_account/internal/infrastructure/youtube"
	"yt_multi_account/internal/logger"
	"yt_multi_account/internal/metrics"
	"yt_multi_account/internal/repository/filestore"
	memoryrepo "yt_multi_account/internal/repository/memory"
	sqliterepo "yt_multi_account/internal/repository/sqlite"
	"yt_multi_account/internal/usecase"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (default: config.yaml or config/config.yaml)")
	serveMode := flag.Bool("serve", false, "Run the REST API and scheduled batches instead of the interactive menu")
	signIn := flag.String("sign-in", "", "Open a visible browser to sign in the profile of the named account, then exit")
	flag.Parse()

	if *configPath != "" {
		config.UseManager(config.NewManager(*configPath))
	}

	// Load configuration from YAML file
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Info lines stay out of the terminal while the menu owns it
	if _, err := logger.Initialize(logger.OptionsFromConfig(cfg, *serveMode)); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer func() {
		if err := logger.Close(); err != nil {
			log.Printf("Failed to close log files: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize HTTP client
	httpClient := httpclient.NewHTTPClient(cfg)

	oauthCfg := loadOAuth(cfg)

	// Initialize stores
	creds, err := filestore.NewCredentialStore(cfg.TokensDir)
	if err != nil {
		logger.Error().Fatalf("Failed to open credential store: %v", err)
	}
	profiles, err := filestore.NewProfileStore(cfg.ProfilesDir)
	if err != nil {
		logger.Error().Fatalf("Failed to open profile store: %v", err)
	}

	journal, closeJournal := openJournal(cfg)
	defer closeJournal()

	// Initialize services
	youtubeService := youtube.NewService(oauthCfg, httpClient)
	browserFactory := browser.ChromeFactory(browser.ChromeConfigFromConfig(cfg))
	likeExecutor := usecase.NewLikeExecutor(browserFactory, usecase.LikeTimeoutsFromConfig(cfg))
	recorder := metrics.NewRecorder()

	// Initialize use cases
	accountManager := usecase.NewAccountManager(
		creds,
		profiles,
		youtube.NewAuthorizer(oauthCfg, httpClient),
		browserFactory,
		cfg.SignInTimeout,
	)
	runner := usecase.NewBatchRunner(
		creds,
		profiles,
		youtubeService,
		likeExecutor,
		usecase.WithJournal(journal),
		usecase.WithMetrics(recorder),
		usecase.WithRetry(usecase.RetryPolicyFromConfig(cfg)),
	)
	batchService := usecase.NewBatchService(runner, accountManager, domain.PacingPolicy{
		Delay:  cfg.PacingDelay,
		Jitter: cfg.PacingJitter,
	})

	switch {
	case *signIn != "":
		if err := accountManager.LinkBrowserSession(ctx, *signIn); err != nil {
			logger.Error().Fatalf("Sign-in failed: %v", err)
		}
		logger.Info().Printf("Browser session for %s saved.", *signIn)
	case *serveMode:
		serve(ctx, cfg, accountManager, batchService, journal, recorder)
	default:
		menu := cli.NewMenu(os.Stdin, os.Stdout, accountManager, batchService)
		if err := menu.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Printf("Menu stopped: %v", err)
		}
	}
}

func loadOAuth(cfg *config.Config) *oauth2.Config {
	oauthCfg, err := youtube.LoadOAuthConfig(cfg.ClientSecretsPath)
	if err != nil {
		// Stored accounts keep working until their access tokens expire
		logger.Error().Printf("OAuth client unavailable (%v); authorization and token refresh are disabled", err)
		return nil
	}
	return oauthCfg
}

func openJournal(cfg *config.Config) (domain.RunRepository, func()) {
	if cfg.DatabaseURL == config.MemoryDatabase {
		logger.Info().Println("Run journal kept in memory")
		return memoryrepo.NewRunRepository(), func() {}
	}

	db, err := sqliterepo.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error().Fatalf("Failed to open database: %v", err)
	}
	return sqliterepo.NewRunRepository(db), func() {
		if err := db.Close(); err != nil {
			logger.Error().Printf("Failed to close database: %v", err)
		}
	}
}

func serve(
	ctx context.Context,
	cfg *config.Config,
	accountManager *usecase.AccountManager,
	batchService *usecase.BatchService,
	journal domain.RunRepository,
	recorder *metrics.Recorder,
) {
	// Initialize and start cron scheduler
	scheduler := cron.NewScheduler(cfg, batchService)
	if err := scheduler.Start(); err != nil {
		logger.Error().Fatalf("Failed to start scheduler: %v", err)
	}

	// Start HTTP API server for runtime management
	apiServer := httpapi.NewServer(cfg, accountManager, batchService, journal, recorder.Handler())
	if err := apiServer.Start(); err != nil {
		logger.Error().Fatalf("Failed to start HTTP API server: %v", err)
	}

	logger.Info().Println("Application started. Press Ctrl+C to stop.")
	<-ctx.Done()

	// Graceful shutdown
	logger.Info().Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	scheduler.Stop()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Printf("HTTP API shutdown error: %v", err)
	}
	logger.Info().Println("Application stopped.")
}
