package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"reading-gate/gate"
	"reading-gate/gate/application"
	"reading-gate/gate/domain"
	"reading-gate/gate/infra"
	"reading-gate/internal/config"
	"reading-gate/internal/logger"
)

type stores interface {
	domain.TokenStore
	domain.CounterStore
	domain.MarkStore
}

func main() {
	// .env é opcional; variáveis do ambiente têm precedência
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	secret, err := signingSecret(cfg, log)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Store.Backend == "redis" || cfg.Stats.Redis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	var st stores
	switch cfg.Store.Backend {
	case "redis":
		st = infra.NewRedisStore(rdb, infra.WithKeyPrefix(cfg.Redis.Prefix))
	default:
		mem := infra.NewMemoryStore(infra.WithSweepEvery(cfg.Store.SweepEvery))
		mem.StartJanitor(ctx)
		st = mem
	}

	leads, closeLeads, err := openLeads(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLeads()

	signer, err := infra.NewJWTSigner(infra.DeriveKey(secret, infra.PurposeSigning))
	if err != nil {
		return err
	}
	hasher := infra.NewKeyedHasher(infra.DeriveKey(secret, infra.PurposeStoreKeys))

	var (
		stats   infra.MultiStats
		metrics http.Handler
	)
	if cfg.Stats.Prometheus {
		prom, err := infra.NewPrometheusStatsStore(prometheus.DefaultRegisterer)
		if err != nil {
			return err
		}
		stats = append(stats, prom)
		metrics = promhttp.Handler()
	}
	if cfg.Stats.Redis {
		stats = append(stats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
		))
	}

	tokens := application.TokenService{Store: st}
	settings := gateSettings(cfg.Gate)

	h := gate.NewHandler(gate.Options{
		Pipeline: &application.Pipeline{
			Tokens:      tokens,
			Limiter:     application.NewRateLimiter(st, hasher),
			Dedup:       application.Deduplicator{Store: st, Hasher: hasher},
			Leads:       leads,
			Credentials: signer,
			Stats:       stats,
			Logger:      log.Named("pipeline"),
			RequireTLS:  cfg.App.HTTPSAvailable,
			UnlockTTL:   cfg.Gate.UnlockTTL(),
		},
		Tokens:      tokens,
		Nonces:      signer,
		Credentials: signer,
		Eligibility: application.RuleEligibility{
			Enabled:     cfg.Gate.Enabled,
			ExcludeURLs: cfg.Gate.ExcludeURLs,
		},
		Settings:    settings,
		Stats:       stats,
		Logger:      log.Named("http"),
		OperatorKey: cfg.App.OperatorKey,
		TrustProxy:  cfg.App.TrustXFF,
	})

	var throttleStore domain.BucketStore
	if cfg.Throttle.Enabled {
		ts := infra.NewThrottleStore(endpointRates(cfg.Throttle), infra.WithIdleTTL(cfg.Throttle.IdleTTL))
		ts.StartJanitor(ctx)
		throttleStore = ts
	}

	handler := h.Routes(gate.RouteOptions{
		Throttle: gate.ThrottleOptions{
			Store:              throttleStore,
			Stats:              stats,
			TrustXForwardedFor: cfg.App.TrustXFF,
		},
		Concurrency: gate.ConcurrencyOptions{
			Max:            cfg.Concurrency.Max,
			AcquireTimeout: cfg.Concurrency.Timeout,
			Stats:          stats,
		},
		Logger:  log.Named("access"),
		Metrics: metrics,
	})

	srv := &http.Server{
		Addr:              cfg.App.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("gate listening",
		zap.String("addr", cfg.App.ListenAddr),
		zap.String("env", cfg.App.Env),
		zap.String("store", cfg.Store.Backend),
		zap.String("leads", cfg.Leads.Driver),
		zap.Bool("https_available", cfg.App.HTTPSAvailable),
	)
	log.Info("throttle",
		zap.Bool("enabled", cfg.Throttle.Enabled),
		zap.Any("config", cfg.Throttle.Config),
		zap.Any("token", cfg.Throttle.Token),
		zap.Any("submit", cfg.Throttle.Submit),
		zap.Int("concurrency_max", cfg.Concurrency.Max),
		zap.Duration("concurrency_timeout", cfg.Concurrency.Timeout),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func openLeads(ctx context.Context, cfg *config.Config) (domain.LeadStore, func(), error) {
	if cfg.Leads.Driver == "memory" {
		return infra.NewMemoryLeadStore(), func() {}, nil
	}
	db, err := infra.OpenLeadDB(ctx, cfg.Leads.Driver, cfg.Leads.DSN)
	if err != nil {
		return nil, nil, err
	}
	store := infra.NewSQLLeadStore(db, cfg.Leads.Driver)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, closer(db), nil
}

func closer(db *sql.DB) func() {
	return func() { _ = db.Close() }
}

// signingSecret usa GATE_APP_SECRET; em desenvolvimento, sem segredo, sorteia
// um por processo (nonces e credenciais não sobrevivem a restart).
func signingSecret(cfg *config.Config, log *zap.Logger) ([]byte, error) {
	if cfg.App.Secret != "" {
		return []byte(cfg.App.Secret), nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	log.Warn("GATE_APP_SECRET not set, using an ephemeral secret")
	return b, nil
}

func endpointRates(t config.ThrottleSettings) map[domain.Endpoint]domain.Rate {
	rate := func(r config.EndpointRate) domain.Rate {
		return domain.Rate{PerSecond: r.RPS, Burst: r.Burst}
	}
	return map[domain.Endpoint]domain.Rate{
		domain.EndpointConfig: rate(t.Config),
		domain.EndpointToken:  rate(t.Token),
		domain.EndpointSubmit: rate(t.Submit),
	}
}

func gateSettings(g config.GateSettings) domain.Settings {
	return domain.Settings{
		DelayBackstop:            g.DelayBackstop,
		DelayMax:                 g.DelayMax,
		ScrollDepthPercent:       g.ScrollDepthPercent,
		MinMeaningfulScrollCount: g.MinMeaningfulScrollCount,
		ContentSelector:          g.ContentSelector,
		CookieDurationDays:       g.CookieDurationDays,
		PrivacyPolicyURL:         g.PrivacyPolicyURL,
	}
}
