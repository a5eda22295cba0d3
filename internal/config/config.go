package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Alerts   AlertsConfig
	Ingest   IngestConfig
	Worker   WorkerConfig
	Mimir    MimirConfig
}

type ServerConfig struct {
	Port       string
	Mode       string
	APIVersion string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdleConns   int
	MigrateOnStart bool
}

type RedisConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret    string
	TokenTTL     time.Duration
	BcryptRounds int
}

// AlertsConfig holds the thresholds used when deriving alerts from telemetry.
type AlertsConfig struct {
	MaxLoadTimeSeconds     float64
	MinPHPMemoryLimitMB    float64
	LatestWordPressVersion string
	MaxMinorReleasesBehind int
}

type IngestConfig struct {
	RatePerMinute int
	Burst         int
}

type WorkerConfig struct {
	Interval         time.Duration
	Retention        time.Duration
	ProbeConcurrency int
}

type MimirConfig struct {
	URL           string
	TenantHeader  string
	TenantID      string
	BatchSize     int
	FlushInterval time.Duration
	AuthToken     string
}

func Load() (*Config, error) {
	// .env is optional; real environment variables always win.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("MANTENAPP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Override with environment variables
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Redis.URL = url
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if url := os.Getenv("MIMIR_URL"); url != "" {
		cfg.Mimir.URL = url
	}
	if token := os.Getenv("MIMIR_AUTH_TOKEN"); token != "" {
		cfg.Mimir.AuthToken = token
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3001")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.apiversion", "v1")
	v.SetDefault("database.maxconnections", 25)
	v.SetDefault("database.maxidleconns", 5)
	v.SetDefault("database.migrateonstart", false)
	v.SetDefault("auth.jwtsecret", "dev-secret-key-change-in-production")
	v.SetDefault("auth.tokenttl", "168h")
	v.SetDefault("auth.bcryptrounds", 12)
	v.SetDefault("alerts.maxloadtimeseconds", 3.0)
	v.SetDefault("alerts.minphpmemorylimitmb", 256.0)
	v.SetDefault("alerts.latestwordpressversion", "6.8")
	v.SetDefault("alerts.maxminorreleasesbehind", 2)
	v.SetDefault("ingest.rateperminute", 30)
	v.SetDefault("ingest.burst", 5)
	v.SetDefault("worker.interval", "10m")
	v.SetDefault("worker.retention", "720h")
	v.SetDefault("worker.probeconcurrency", 2)
	v.SetDefault("mimir.tenantheader", "X-Scope-OrgID")
	v.SetDefault("mimir.tenantid", "mantenapp")
	v.SetDefault("mimir.batchsize", 1000)
	v.SetDefault("mimir.flushinterval", "30s")
}
