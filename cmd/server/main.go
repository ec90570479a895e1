package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "workblix/internal/adapter/http"
	repo "workblix/internal/adapter/repository"
	"workblix/internal/billing"
	"workblix/internal/cvtemplate"
	"workblix/internal/infrastructure/migration"
	"workblix/internal/usecase"
	infra "workblix/pkg/infrastructure"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		bootLog := infra.NewLogger("production")
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewProfilesPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	defer pool.Close()

	if err := migration.RunMigrations(ctx, pool, log); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	templates := cvtemplate.NewStore(cvtemplate.StoreConfig{
		PrimaryURL:  cfg.TemplatePrimaryURL,
		FallbackURL: cfg.TemplateFallbackURL,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
		Logger:      log.With().Str("component", "templates").Logger(),
	})

	profiles := repo.NewProfilesRepo(pool)
	exporter := usecase.NewExporter(infra.NewChromedpRasterizer(cfg), cfg.WatermarkText)
	processor := usecase.NewProcessor(templates, exporter, profiles, log)

	deps := httpadapter.Deps{
		CV:            processor,
		Catalog:       templates,
		Profiles:      profiles,
		WebhookSecret: cfg.StripeWebhookSecret,
		AppBaseURL:    cfg.AppBaseURL,
		Log:           log,
	}
	if cfg.StripeSecretKey != "" {
		gateway := billing.NewStripeGateway(cfg.StripeSecretKey, cfg.StripePriceID, nil)
		notifier := billing.NewNotifier(cfg.SendGridAPIKey, cfg.MailFrom, cfg.MailFromName, cfg.AppBaseURL, log)
		deps.Gateway = gateway
		deps.Events = billing.NewReconciler(profiles, gateway, notifier, log.With().Str("component", "billing").Logger())
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY not set, billing endpoints disabled")
		deps.Events = billing.NewReconciler(profiles, nil, nil, log.With().Str("component", "billing").Logger())
	}

	app := httpadapter.NewApp(log)
	httpadapter.Register(app,
		httpadapter.NewHandler(deps),
		httpadapter.NewHealthHandler(pool),
		httpadapter.NewAuthMiddleware(cfg.JWTSecret),
	)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
