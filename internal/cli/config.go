package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	goVolunteer "github.com/MrEthical07/goVolunteer"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "VOLUNTEERHUB"
	configName     = "volunteerhub"
	viteAPIURLEnv  = "VITE_API_URL"
	defaultEnvFile = ".env"
)

// fileConfig mirrors the configuration file layout.
type fileConfig struct {
	API struct {
		BaseURL   string        `mapstructure:"base_url"`
		Timeout   time.Duration `mapstructure:"timeout"`
		Language  string        `mapstructure:"language"`
		UserAgent string        `mapstructure:"user_agent"`
	} `mapstructure:"api"`
	Persistence struct {
		Backend     string `mapstructure:"backend"`
		Path        string `mapstructure:"path"`
		RedisAddr   string `mapstructure:"redis_addr"`
		RedisPrefix string `mapstructure:"redis_prefix"`
	} `mapstructure:"persistence"`
	Session struct {
		ExpiryLeeway          time.Duration `mapstructure:"expiry_leeway"`
		HydrateTimeout        time.Duration `mapstructure:"hydrate_timeout"`
		CheckCredentialExpiry bool          `mapstructure:"check_credential_expiry"`
	} `mapstructure:"session"`
	Guard struct {
		LandingRoute string `mapstructure:"landing_route"`
	} `mapstructure:"guard"`
	Audit struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"audit"`
	Metrics struct {
		Enabled           bool `mapstructure:"enabled"`
		LatencyHistograms bool `mapstructure:"latency_histograms"`
	} `mapstructure:"metrics"`
}

// LoadOptions locates the configuration sources.
type LoadOptions struct {
	// ConfigFile is an explicit config path. When empty, volunteerhub.yaml
	// is looked up in the working directory and the user config dir.
	ConfigFile string
	// EnvFile is loaded with godotenv when it exists. Empty means ".env".
	EnvFile string
	// Overrides are applied last, keyed like the config file ("api.base_url").
	Overrides map[string]any
}

// LoadConfig builds the client configuration. Precedence, lowest first:
// built-in defaults, VITE_API_URL, the config file, VOLUNTEERHUB_* env
// vars, then Overrides.
func LoadConfig(opts LoadOptions) (goVolunteer.Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return goVolunteer.Config{}, err
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(dir + string(os.PathSeparator) + configName)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return goVolunteer.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	for k, val := range opts.Overrides {
		v.Set(k, val)
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return goVolunteer.Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg := goVolunteer.DefaultConfig()
	cfg.API.BaseURL = fc.API.BaseURL
	cfg.API.Timeout = fc.API.Timeout
	cfg.API.Language = fc.API.Language
	cfg.API.UserAgent = fc.API.UserAgent
	cfg.Persistence.Backend = fc.Persistence.Backend
	cfg.Persistence.Path = fc.Persistence.Path
	cfg.Persistence.RedisAddr = fc.Persistence.RedisAddr
	cfg.Persistence.RedisPrefix = fc.Persistence.RedisPrefix
	cfg.Session.ExpiryLeeway = fc.Session.ExpiryLeeway
	cfg.Session.HydrateTimeout = fc.Session.HydrateTimeout
	cfg.Session.CheckCredentialExpiry = fc.Session.CheckCredentialExpiry
	cfg.Guard.LandingRoute = fc.Guard.LandingRoute
	cfg.Audit.Enabled = fc.Audit.Enabled
	cfg.Metrics.Enabled = fc.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = fc.Metrics.LatencyHistograms

	if err := cfg.Validate(); err != nil {
		return goVolunteer.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("env file %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := goVolunteer.DefaultConfig()

	baseURL := d.API.BaseURL
	if vite := os.Getenv(viteAPIURLEnv); vite != "" {
		baseURL = vite
	}
	v.SetDefault("api.base_url", baseURL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.language", d.API.Language)
	v.SetDefault("api.user_agent", "volunteerhub-cli")

	v.SetDefault("persistence.backend", d.Persistence.Backend)
	v.SetDefault("persistence.path", d.Persistence.Path)
	v.SetDefault("persistence.redis_addr", d.Persistence.RedisAddr)
	v.SetDefault("persistence.redis_prefix", d.Persistence.RedisPrefix)

	v.SetDefault("session.expiry_leeway", d.Session.ExpiryLeeway)
	v.SetDefault("session.hydrate_timeout", d.Session.HydrateTimeout)
	v.SetDefault("session.check_credential_expiry", d.Session.CheckCredentialExpiry)

	v.SetDefault("guard.landing_route", d.Guard.LandingRoute)
	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.latency_histograms", d.Metrics.EnableLatencyHistograms)
}
