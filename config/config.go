package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

const (
	StoreDriverUpstream = "upstream"
	StoreDriverPostgres = "postgres"
)

type Config struct {
	Mode   string `mapstructure:"mode"`
	Dotenv string `mapstructure:"dotenv"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Store struct {
		Driver string `mapstructure:"driver"`
	} `mapstructure:"store"`
	Upstream      UpstreamConfig      `mapstructure:"upstream"`
	Autosave      AutosaveConfig      `mapstructure:"autosave"`
	Sessions      SessionsConfig      `mapstructure:"sessions"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Generation    GenerationConfig    `mapstructure:"generation"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// UpstreamConfig points at the travel-booking REST backend that stores itineraries.
type UpstreamConfig struct {
	BaseURL           string        `mapstructure:"baseURL"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requestsPerSecond"`
	Burst             int           `mapstructure:"burst"`
}

type AutosaveConfig struct {
	Window        time.Duration `mapstructure:"window"`
	StatusDisplay time.Duration `mapstructure:"statusDisplay"`
	SaveTimeout   time.Duration `mapstructure:"saveTimeout"`
}

type SessionsConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanupInterval"`
}

type JWTConfig struct {
	SecretKey string `mapstructure:"secretKey"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
}

type GenerationConfig struct {
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"apiKey"`
	Temperature float32 `mapstructure:"temperature"`
}

type ObservabilityConfig struct {
	ServiceName string `mapstructure:"serviceName"`
	MetricsPort string `mapstructure:"metricsPort"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// UPSTREAM_BASEURL, JWT_SECRETKEY, GENERATION_APIKEY, ...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	if err = config.Validate(); err != nil {
		return Config{}, err
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

// Validate checks the settings the service cannot start without.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverUpstream:
		if c.Upstream.BaseURL == "" {
			return fmt.Errorf("upstream.baseURL is required for the %q store driver", StoreDriverUpstream)
		}
	case StoreDriverPostgres:
		if c.Repositories.Postgres.Host == "" {
			return fmt.Errorf("repositories.postgres.host is required for the %q store driver", StoreDriverPostgres)
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.JWT.SecretKey == "" {
		return fmt.Errorf("jwt.secretKey is required")
	}
	return nil
}
