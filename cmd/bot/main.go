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

	"salonbook/internal/auth"
	"salonbook/internal/booking"
	"salonbook/internal/bot"
	"salonbook/internal/catalog"
	"salonbook/internal/config"
	"salonbook/internal/db"
	"salonbook/internal/events"
	"salonbook/internal/httpapi"
	"salonbook/internal/metrics"
	"salonbook/internal/salonapi"
	"salonbook/shared/access"
	"salonbook/shared/audit"
	"salonbook/shared/reminders"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	// .env is optional; it only feeds ${VAR} placeholders in the config.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Msg("failed to read .env")
	}

	cfg, err := config.Load(os.Getenv("SALON_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		logger = logger.Level(level)
	} else {
		logger.Warn().Str("level", cfg.Logging.Level).Msg("unknown log level, using info")
		logger = logger.Level(zerolog.InfoLevel)
	}

	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Fatal().Msg("set telegram.bot_token in config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()
	if err := database.SyncManagers(ctx, cfg.Managers); err != nil {
		logger.Fatal().Err(err).Msg("sync managers")
	}

	client := salonapi.New(cfg.API.BaseURL, cfg.API.APIKey, cfg.APITimeout())
	client.SetLocation(cfg.Location())
	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if cfg.API.CacheTTLSeconds > 0 {
			client.UseRedisCache(rdb, cfg.CacheTTL(), cfg.TakenCacheTTL())
		}
	}
	if cfg.API.RatePerSecond > 0 {
		client.UseRateLimit(cfg.API.RatePerSecond, cfg.API.Burst)
	}

	hours, err := cfg.LoadHours()
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Booking.HoursPath).Msg("load business hours")
	}
	holder := config.NewHoursHolder(hours)
	if _, statErr := os.Stat(cfg.Booking.HoursPath); statErr == nil {
		err := config.WatchHours(ctx, cfg.Booking.HoursPath, 30*time.Second, holder, func(h *config.HoursConfig, err error) {
			if err != nil {
				logger.Error().Err(err).Msg("business hours reload failed, keeping previous hours")
				return
			}
			logger.Info().Str("hours", h.String()).Msg("business hours loaded")
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("watch business hours")
		}
	} else {
		logger.Info().Str("hours", hours.String()).Msg("no hours file, using default week")
	}

	flow := booking.NewFlow(booking.FlowConfig{
		Schedule:   holder,
		Policy:     cfg.ConflictPolicy(),
		Location:   cfg.Location(),
		MaxAdvance: cfg.BookingMaxAdvance(),
	})
	styles := catalog.New(client, cfg.CacheTTL())

	bus := events.NewEventBus()
	bus.Subscribe(events.BookingCreated, database.RecordEvent)
	bus.Subscribe(events.BookingCancelled, database.RecordEvent)
	for _, t := range []string{events.SignedIn, events.SignedOut} {
		bus.Subscribe(t, func(e events.Event) error {
			logger.Info().Str("event", e.Type).Int64("user_id", e.TelegramID).Msg("auth state changed")
			return nil
		})
	}

	accessSvc := access.NewService(database, database, logger)

	b, err := bot.New(cfg.Telegram.BotToken, bot.Deps{
		Backend:  bot.ClientBackend(client),
		Styles:   styles,
		Store:    database,
		Access:   accessSvc,
		Events:   bus,
		Auth:     auth.NewRegistry(client),
		Flow:     flow,
		Sessions: booking.NewSessionStore(cfg.SessionTimeout()),
		Salon:    cfg.Salon,
		Logger:   &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create bot error")
	}

	auditLog := zerologAdapter{l: logger.With().Str("component", "audit").Logger()}
	auditSvc := audit.NewService(&audit.Config{
		RetentionDays: cfg.Audit.RetentionDays,
		SalonName:     cfg.Salon.Name,
		Location:      cfg.Location(),
	}, database, nil, b, database, auditLog)
	b.UseReporter(auditSvc)
	if cfg.Audit.Enabled {
		auditSvc.Start()
		defer auditSvc.Stop()
	}

	if cfg.Reminders.Enabled {
		remindLog := zerologAdapter{l: logger.With().Str("component", "reminders").Logger()}
		var reg prometheus.Registerer = prometheus.NewRegistry()
		if cfg.Monitoring.PrometheusEnabled {
			reg = prometheus.DefaultRegisterer
		}
		rm := reminders.NewMetrics("salonbook", reg)
		sender := reminders.NewSender(b, database, reminders.DefaultSenderConfig(), rm, remindLog)
		remindSvc := reminders.NewService(&reminders.Config{
			CheckInterval: time.Duration(cfg.Reminders.CheckIntervalMinutes) * time.Minute,
			HoursBefore:   cfg.Reminders.HoursBefore,
		}, database, sender, rm, remindLog)
		remindSvc.Start()
		defer remindSvc.Stop()
	}

	if cfg.Backup.Enabled {
		interval := time.Duration(cfg.Backup.IntervalHours) * time.Hour
		retention := time.Duration(cfg.Backup.RetentionDays) * 24 * time.Hour
		go database.BackupLoop(ctx, cfg.Backup.Path, interval, retention, &logger)
	}

	checks := map[string]httpapi.Check{"db": database.PingContext}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, checks, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.HTTP.Enabled {
		api := httpapi.New(httpapi.Options{
			Styles: styles,
			Feeds:  httpapi.ClientFeeds{Client: client},
			Flow:   flow,
			Checks: checks,
			Logger: logger.With().Str("component", "http").Logger(),
			Count:  metrics.IncHTTP,
		})
		go serve(ctx, "http api", cfg.HTTP.Port, api.Handler(), &logger)
	}

	logger.Info().Str("salon", cfg.Salon.Name).Str("policy", string(cfg.ConflictPolicy())).Msg("Salon bot started")
	b.Start(ctx)
	logger.Info().Msg("Salon bot stopped")
}

func startHealthServer(ctx context.Context, port int, checks map[string]httpapi.Check, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		for name, check := range checks {
			if err := check(ctxPing); err != nil {
				http.Error(w, name+" not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	serve(ctx, "health server", port, mux, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	serve(ctx, "metrics server", port, mux, logger)
}

// serve runs h on port until ctx is done.
func serve(ctx context.Context, name string, port int, h http.Handler, logger *zerolog.Logger) {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Int("port", port).Msgf("%s listening", name)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msgf("%s error", name)
	}
}

// zerologAdapter satisfies the key/value Logger of the reminder and audit
// services.
type zerologAdapter struct {
	l zerolog.Logger
}

func (a zerologAdapter) Info(msg string, fields ...interface{}) {
	a.l.Info().Fields(fields).Msg(msg)
}

func (a zerologAdapter) Error(msg string, fields ...interface{}) {
	a.l.Error().Fields(fields).Msg(msg)
}

func (a zerologAdapter) Debug(msg string, fields ...interface{}) {
	a.l.Debug().Fields(fields).Msg(msg)
}
