package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppSettings         `mapstructure:"app"`
	Gate        GateSettings        `mapstructure:"gate"`
	Store       StoreSettings       `mapstructure:"store"`
	Redis       RedisSettings       `mapstructure:"redis"`
	Leads       LeadSettings        `mapstructure:"leads"`
	Throttle    ThrottleSettings    `mapstructure:"throttle"`
	Concurrency ConcurrencySettings `mapstructure:"concurrency"`
	Stats       StatsSettings       `mapstructure:"stats"`
}

type AppSettings struct {
	Env        string `mapstructure:"env"`
	ListenAddr string `mapstructure:"listen_addr"`
	// HTTPSAvailable: o deploy serve HTTPS; submissões em HTTP puro são rejeitadas.
	HTTPSAvailable bool   `mapstructure:"https_available"`
	TrustXFF       bool   `mapstructure:"trust_xff"`
	Secret         string `mapstructure:"secret"`
	OperatorKey    string `mapstructure:"operator_key"`
}

// GateSettings são as configurações que o detector de engajamento recebe.
type GateSettings struct {
	Enabled                  bool          `mapstructure:"enabled"`
	DelayBackstop            time.Duration `mapstructure:"delay_backstop"`
	DelayMax                 time.Duration `mapstructure:"delay_max"`
	ScrollDepthPercent       int           `mapstructure:"scroll_depth_percent"`
	MinMeaningfulScrollCount int           `mapstructure:"min_meaningful_scroll_count"`
	ContentSelector          string        `mapstructure:"content_selector"`
	CookieDurationDays       int           `mapstructure:"cookie_duration_days"`
	PrivacyPolicyURL         string        `mapstructure:"privacy_policy_url"`
	ExcludeURLs              []string      `mapstructure:"exclude_urls"`
}

type StoreSettings struct {
	// Backend: "memory" ou "redis".
	Backend    string        `mapstructure:"backend"`
	SweepEvery time.Duration `mapstructure:"sweep_every"`
}

type RedisSettings struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type LeadSettings struct {
	// Driver: "sqlite", "postgres" ou "memory".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// ThrottleSettings tem um orçamento por endpoint. RPS ou Burst zero deixa o
// endpoint sem throttle.
type ThrottleSettings struct {
	Enabled bool          `mapstructure:"enabled"`
	Config  EndpointRate  `mapstructure:"config"`
	Token   EndpointRate  `mapstructure:"token"`
	Submit  EndpointRate  `mapstructure:"submit"`
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

type EndpointRate struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type ConcurrencySettings struct {
	Max     int           `mapstructure:"max"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StatsSettings struct {
	Redis      bool          `mapstructure:"redis"`
	Prometheus bool          `mapstructure:"prometheus"`
	TTL        time.Duration `mapstructure:"ttl"`
	Bucket     string        `mapstructure:"bucket"`
}

var keys = []string{
	"app.env",
	"app.listen_addr",
	"app.https_available",
	"app.trust_xff",
	"app.secret",
	"app.operator_key",
	"gate.enabled",
	"gate.delay_backstop",
	"gate.delay_max",
	"gate.scroll_depth_percent",
	"gate.min_meaningful_scroll_count",
	"gate.content_selector",
	"gate.cookie_duration_days",
	"gate.privacy_policy_url",
	"gate.exclude_urls",
	"store.backend",
	"store.sweep_every",
	"redis.addr",
	"redis.password",
	"redis.db",
	"redis.prefix",
	"leads.driver",
	"leads.dsn",
	"throttle.enabled",
	"throttle.config.rps",
	"throttle.config.burst",
	"throttle.token.rps",
	"throttle.token.burst",
	"throttle.submit.rps",
	"throttle.submit.burst",
	"throttle.idle_ttl",
	"concurrency.max",
	"concurrency.timeout",
	"stats.redis",
	"stats.prometheus",
	"stats.ttl",
	"stats.bucket",
}

// Load lê defaults + variáveis GATE_* (ex: GATE_REDIS_ADDR) e valida.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	if err := bindEnvs(v, keys); err != nil {
		return nil, err
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Gate.ExcludeURLs = splitList(cfg.Gate.ExcludeURLs)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.listen_addr", ":8080")
	v.SetDefault("app.https_available", false)
	v.SetDefault("app.trust_xff", false)
	v.SetDefault("app.secret", "")
	v.SetDefault("app.operator_key", "")

	v.SetDefault("gate.enabled", true)
	v.SetDefault("gate.delay_backstop", "12s")
	v.SetDefault("gate.delay_max", "20s")
	v.SetDefault("gate.scroll_depth_percent", 30)
	v.SetDefault("gate.min_meaningful_scroll_count", 2)
	v.SetDefault("gate.content_selector", "")
	v.SetDefault("gate.cookie_duration_days", 30)
	v.SetDefault("gate.privacy_policy_url", "")
	v.SetDefault("gate.exclude_urls", []string{})

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.sweep_every", "1m")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "gate")

	v.SetDefault("leads.driver", "sqlite")
	v.SetDefault("leads.dsn", "file:gate-leads.db")

	// throttle grosso por endpoint, independente dos contadores de abuso.
	// config é lido a cada página vista; submit só quando o modal aparece.
	v.SetDefault("throttle.enabled", true)
	v.SetDefault("throttle.config.rps", 5)
	v.SetDefault("throttle.config.burst", 30)
	v.SetDefault("throttle.token.rps", 1)
	v.SetDefault("throttle.token.burst", 10)
	v.SetDefault("throttle.submit.rps", 0.5)
	v.SetDefault("throttle.submit.burst", 5)
	v.SetDefault("throttle.idle_ttl", "15m")

	v.SetDefault("concurrency.max", 100)
	v.SetDefault("concurrency.timeout", "2s")

	v.SetDefault("stats.redis", false)
	v.SetDefault("stats.prometheus", true)
	v.SetDefault("stats.ttl", "24h")
	v.SetDefault("stats.bucket", "minute")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "GATE_"+envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// splitList aceita tanto lista quanto string separada por vírgula/quebra de linha
// (GATE_GATE_EXCLUDE_URLS="/checkout,/account").
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.FieldsFunc(item, func(r rune) bool { return r == ',' || r == '\n' }) {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.App.Env != "development" && strings.TrimSpace(c.App.Secret) == "" {
		return errors.New("GATE_APP_SECRET is required outside development")
	}
	switch c.Store.Backend {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return errors.New("GATE_REDIS_ADDR is required when GATE_STORE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Stats.Redis && strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("GATE_REDIS_ADDR is required when GATE_STATS_REDIS=true")
	}
	switch c.Leads.Driver {
	case "memory":
	case "sqlite", "postgres":
		if strings.TrimSpace(c.Leads.DSN) == "" {
			return errors.New("GATE_LEADS_DSN is required")
		}
	default:
		return fmt.Errorf("unknown leads driver %q", c.Leads.Driver)
	}
	if c.Throttle.Enabled {
		for name, r := range map[string]EndpointRate{
			"CONFIG": c.Throttle.Config,
			"TOKEN":  c.Throttle.Token,
			"SUBMIT": c.Throttle.Submit,
		} {
			if r.RPS < 0 || r.Burst < 0 {
				return fmt.Errorf("GATE_THROTTLE_%s_RPS and GATE_THROTTLE_%s_BURST must be >= 0", name, name)
			}
		}
	}
	if c.Concurrency.Max < 0 {
		return errors.New("GATE_CONCURRENCY_MAX must be >= 0")
	}
	if c.Gate.DelayBackstop <= 0 || c.Gate.DelayMax <= 0 {
		return errors.New("gate delays must be > 0")
	}
	if c.Gate.ScrollDepthPercent < 1 || c.Gate.ScrollDepthPercent > 100 {
		return errors.New("GATE_GATE_SCROLL_DEPTH_PERCENT must be within 1..100")
	}
	if c.Gate.MinMeaningfulScrollCount < 1 {
		return errors.New("GATE_GATE_MIN_MEANINGFUL_SCROLL_COUNT must be >= 1")
	}
	if c.Gate.CookieDurationDays < 1 {
		return errors.New("GATE_GATE_COOKIE_DURATION_DAYS must be >= 1")
	}
	return nil
}

// UnlockTTL é a duração da credencial de desbloqueio.
func (g GateSettings) UnlockTTL() time.Duration {
	return time.Duration(g.CookieDurationDays) * 24 * time.Hour
}
