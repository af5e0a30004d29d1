package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "E2E"

const (
	DefaultBaseURL  = "http://127.0.0.1:5000"
	DefaultTimeout  = 10 * time.Second
	DefaultFixtures = "e2e/testdata/users.json"
)

type Config struct {
	BaseURL  string        `mapstructure:"base_url"`
	Headless bool          `mapstructure:"headless"`
	SlowMo   time.Duration `mapstructure:"slow_mo"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// Screenshots saves a page capture for every failed test.
	Screenshots   bool   `mapstructure:"screenshots"`
	ScreenshotDir string `mapstructure:"screenshot_dir"`
	// Preinstalled skips the driver and browser download.
	Preinstalled bool   `mapstructure:"playwright_preinstalled"`
	Fixtures     string `mapstructure:"fixtures"`
	// ResetURL, when set, is POSTed to restore the application's seed
	// accounts before order dependent groups.
	ResetURL string `mapstructure:"reset_url"`
	// Embedded starts the login app in process on a free port and points
	// BaseURL and ResetURL at it.
	Embedded bool `mapstructure:"embedded"`
}

// ConfigFromEnv reads E2E_* variables on top of the defaults.
func ConfigFromEnv() (Config, error) {
	v := viper.New()
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("headless", true)
	v.SetDefault("slow_mo", time.Duration(0))
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("screenshots", true)
	v.SetDefault("screenshot_dir", "test-results/screenshots")
	v.SetDefault("playwright_preinstalled", false)
	v.SetDefault("fixtures", DefaultFixtures)
	v.SetDefault("reset_url", "")
	v.SetDefault("embedded", false)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("viper.Unmarshal: %w", err)
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		return Config{}, fmt.Errorf("%s_BASE_URL must not be empty", EnvPrefix)
	}

	if cfg.Timeout <= 0 {
		return Config{}, fmt.Errorf("%s_TIMEOUT must be positive, got %s", EnvPrefix, cfg.Timeout)
	}

	return cfg, nil
}
