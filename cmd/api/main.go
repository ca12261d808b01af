package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/gameweek"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/middleware"
	"server/internal/providers/billing"
	"server/internal/providers/predict"
	"server/internal/providers/stats"
	"server/internal/quota"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	var countries geoip.CountryResolver
	if cfg.GeoIPDBPath != "" {
		countries, err = geoip.NewResolver(cfg.GeoIPDBPath)
		if err != nil {
			logger.Warn().Err(err).Msg("geoip disabled")
		}
	}

	var limiter middleware.Limiter
	if cfg.RedisAddr != "" {
		rl, err := middleware.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RateLimitPerMin, time.Minute, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("redis limiter unavailable, falling back to memory")
			limiter = middleware.NewMemoryLimiter(cfg.RateLimitPerMin, time.Minute)
		} else {
			limiter = rl
		}
	} else {
		limiter = middleware.NewMemoryLimiter(cfg.RateLimitPerMin, time.Minute)
	}

	statsClient := stats.NewClient(stats.Options{
		APIKey:  cfg.FootballAPIKey,
		BaseURL: cfg.FootballBaseURL,
		League:  cfg.FootballLeague,
		Season:  cfg.FootballSeason,
	})

	var predictor predict.Predictor = predict.NewFormPredictor()
	if cfg.OpenAIAPIKey != "" {
		p, err := predict.NewOpenAIPredictor(predict.OpenAIOptions{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Org:     cfg.OpenAIOrg,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("openai predictor init failed")
		}
		predictor = p
	} else {
		logger.Warn().Msg("OPENAI_API_KEY not set, serving form-based predictions only")
	}

	var biller billing.Biller
	if cfg.StripeSecretKey != "" && cfg.StripePriceID != "" {
		b, err := billing.NewStripeBiller(billing.StripeOptions{
			SecretKey:     cfg.StripeSecretKey,
			PriceID:       cfg.StripePriceID,
			WebhookSecret: cfg.StripeWebhookSecret,
			SuccessURL:    cfg.AppURL + "/billing/success",
			CancelURL:     cfg.AppURL + "/billing/cancel",
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("stripe biller init failed")
		}
		biller = b
	} else {
		logger.Warn().Msg("stripe not configured, billing endpoints disabled")
	}

	users := repo.NewUserRepository(dbpool)
	ledger := repo.NewSlotRepository(dbpool, cfg.ReserveTTL)

	app := handlers.NewApp(handlers.App{
		Logger:    logger,
		Users:     users,
		Ledger:    ledger,
		Gate:      quota.NewGate(users, ledger),
		Stats:     statsClient,
		Predictor: predictor,
		Biller:    biller,
		Gameweeks: gameweek.NewCalculator(gameweek.Config{
			SeasonStart: cfg.SeasonStart,
			WeekLength:  cfg.GameweekLength(),
			MinWeek:     cfg.GameweekMin,
			MaxWeek:     cfg.GameweekMax,
			Prefix:      cfg.GameweekPrefix,
		}),
		DB:        dbpool,
		JWTSecret: cfg.JWTSecret,
		JWTTTL:    cfg.JWTTTL,
	})

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Limiter:            limiter,
		Countries:          countries,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
