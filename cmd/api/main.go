package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/devmarket/marketplace-api/internal/config"
	"github.com/devmarket/marketplace-api/internal/domain/project"
	"github.com/devmarket/marketplace-api/internal/domain/purchase"
	"github.com/devmarket/marketplace-api/internal/domain/realtime"
	"github.com/devmarket/marketplace-api/internal/domain/settlement"
	"github.com/devmarket/marketplace-api/internal/domain/sitesetting"
	"github.com/devmarket/marketplace-api/internal/domain/user"
	"github.com/devmarket/marketplace-api/internal/middleware"
	"github.com/devmarket/marketplace-api/internal/pkg/cardpay"
	"github.com/devmarket/marketplace-api/internal/pkg/database"
	"github.com/devmarket/marketplace-api/internal/pkg/email"
	"github.com/devmarket/marketplace-api/internal/pkg/jwt"
	"github.com/devmarket/marketplace-api/internal/pkg/logger"
	"github.com/devmarket/marketplace-api/internal/pkg/paytabs"
	pkgresponse "github.com/devmarket/marketplace-api/internal/pkg/response"
	"github.com/devmarket/marketplace-api/internal/pkg/storage"
)

const (
	localUploadDir    = "./uploads"
	localUploadPrefix = "/uploads"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Marketplace API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if cfg.RunMigrations {
		if err := database.RunMigrations(db.DB); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
	}

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessTTL)

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	projectRepo := project.NewRepository(db)
	purchaseRepo := purchase.NewRepository(db)
	settlementRepo := settlement.NewRepository(db)
	settingsRepo := sitesetting.NewRepository(db)

	// ---------- Services ----------
	settlementEngine := settlement.NewEngine(settlementRepo)
	settingsService := sitesetting.NewService(settingsRepo, redis, cfg.SettingsCacheTTL, cfg.DefaultTaxPercent)

	emailService := email.NewService(email.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.EmailFrom,
		FromName:  cfg.EmailFromName,
	})
	defer emailService.Close()

	wsHub := realtime.NewHub(redis)
	go wsHub.Run()
	defer wsHub.Shutdown()

	deps := purchase.Deps{
		UoW:       purchase.NewUnitOfWork(db),
		Purchases: purchaseRepo,
		Projects:  projectRepo,
		Users:     userRepo,
		Tax:       settingsService,
		Mailer:    emailService,
		Events:    realtime.NewPurchaseEvents(wsHub),
		Config: purchase.Config{
			DefaultCurrency: cfg.DefaultCurrency,
			FrontendURL:     cfg.FrontendURL,
			BackendURL:      cfg.BackendURL,
			AttachmentTTL:   cfg.AttachmentUploadTTL,
			VerifyCallbacks: cfg.PayTabsVerifyCallbacks,
		},
	}

	if client := newPayTabs(cfg); client != nil {
		deps.Redirect = client
		deps.Verifier = client.Signer()
	}
	var mockCard http.Handler
	if card := newCardGateway(cfg); card != nil {
		deps.Card = card
		if card.IsMock() {
			mockCard = card.MockRoutes()
		}
	}

	var uploads http.Handler
	if r2, err := storage.NewR2Storage(context.Background(), storage.R2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		AccessKeySecret: cfg.R2AccessKeySecret,
		BucketName:      cfg.R2BucketName,
		PublicURL:       cfg.R2PublicURL,
	}); err == nil {
		deps.Storage = r2
	} else {
		log.Warn().Err(err).Msg("R2 not configured, storing attachments on local disk")
		local, err := storage.NewLocalStorage(localUploadDir, strings.TrimRight(cfg.BackendURL, "/")+localUploadPrefix)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare local attachment storage")
		}
		deps.Storage = local
		uploads = local.UploadHandler()
	}

	purchaseService := purchase.NewService(deps)

	// ---------- Handlers ----------
	r := newRouter(cfg, routes{
		auth:      middleware.Auth(jwtService),
		purchases: purchase.NewHandler(purchaseService),
		earnings:  settlement.NewHandler(settlementEngine),
		settings:  sitesetting.NewHandler(settingsService),
		realtime:  realtime.NewHandler(wsHub, cfg.AllowedOrigins),
		uploads:   uploads,
		mockCard:  mockCard,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

// routes groups the handlers mounted by newRouter. A nil uploads handler
// means attachments are served by R2; mockCard is only set when card
// payments are simulated.
type routes struct {
	auth      func(http.Handler) http.Handler
	purchases *purchase.Handler
	earnings  *settlement.Handler
	settings  *sitesetting.Handler
	realtime  *realtime.Handler
	uploads   http.Handler
	mockCard  http.Handler
}

func newRouter(cfg *config.Config, h routes) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	// Websocket upgrades must not sit behind the request timeout.
	r.With(h.auth).Get("/ws", h.realtime.WebSocket)

	if h.uploads != nil {
		r.Mount(localUploadPrefix, http.StripPrefix(localUploadPrefix, h.uploads))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Route("/api/v1", func(r chi.Router) {
			r.Mount("/purchases", h.purchases.Routes(h.auth))
			r.Mount("/earnings", h.earnings.Routes(h.auth))
		})

		r.Mount("/webhooks", h.purchases.WebhookRoutes())
		if h.mockCard != nil {
			r.Mount("/dev/mercadopago", h.mockCard)
		}

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(h.auth)
			r.Use(middleware.RequireAdmin())
			r.Mount("/settings", h.settings.Routes())
			r.Mount("/", h.purchases.AdminRoutes())
		})
	})

	return r
}

func setupLogger(cfg *config.Config) {
	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		LogFile:     cfg.LogFile,
	}); err != nil {
		log.Error().Err(err).Msg("Failed to configure logger")
	}
}

// newPayTabs returns nil when no merchant credentials are set.
func newPayTabs(cfg *config.Config) *paytabs.Client {
	if cfg.PayTabsServerKey == "" || cfg.PayTabsProfileID == "" {
		log.Warn().Msg("PayTabs not configured, redirect payments disabled")
		return nil
	}
	algo, err := paytabs.NormalizeHashAlgorithm(cfg.PayTabsHashAlgo)
	if err != nil {
		log.Warn().Err(err).Str("algo", cfg.PayTabsHashAlgo).Msg("Unknown PayTabs hash algorithm, using SHA256")
		algo = paytabs.HashSHA256
	}
	return paytabs.NewClient(paytabs.Config{
		BaseURL:   cfg.PayTabsBaseURL,
		ProfileID: cfg.PayTabsProfileID,
		ServerKey: cfg.PayTabsServerKey,
		HashAlgo:  algo,
		Timeout:   cfg.PayTabsTimeout,
	})
}

// newCardGateway returns nil when MercadoPago cannot be initialised.
func newCardGateway(cfg *config.Config) *cardpay.Gateway {
	card, err := cardpay.New(cardpay.Config{
		AccessToken: cfg.MercadoPagoAccessToken,
		Mock:        cfg.MercadoPagoMock,
		Timeout:     cfg.MercadoPagoTimeout,
		Currency:    cfg.MercadoPagoCurrency,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Card payments disabled")
		return nil
	}
	return card
}
