// Package config loads suitectl settings from an optional YAML file, SUITE_*
// environment variables and command flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/robotomize/loginsuite/internal/logging"
)

const EnvPrefix = "SUITE"

type Config struct {
	Runner RunnerConfig    `mapstructure:"runner"`
	Report ReportConfig    `mapstructure:"report"`
	Mail   MailConfig      `mapstructure:"mail"`
	App    AppConfig       `mapstructure:"app"`
	Log    logging.Options `mapstructure:"log"`
}

type RunnerConfig struct {
	Dir         string        `mapstructure:"dir"`
	GoBin       string        `mapstructure:"go_bin"`
	Packages    []string      `mapstructure:"packages"`
	Tags        []string      `mapstructure:"tags"`
	Run         string        `mapstructure:"run"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ArtifactDir string        `mapstructure:"artifact_dir"`
	ForwardLog  bool          `mapstructure:"forward_log"`
	Suite       string        `mapstructure:"suite"`
}

type ReportConfig struct {
	ArtifactDir  string `mapstructure:"artifact_dir"`
	Pattern      string `mapstructure:"pattern"`
	MergedPath   string `mapstructure:"merged_path"`
	HTMLDir      string `mapstructure:"html_dir"`
	HTMLFilename string `mapstructure:"html_filename"`
	Title        string `mapstructure:"title"`
	// Strict makes a mail failure fail the pipeline.
	Strict bool `mapstructure:"strict"`
}

// MailConfig carries SMTP settings. Username and password are expected from
// the environment (SUITE_MAIL_USERNAME, SUITE_MAIL_PASSWORD).
type MailConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Service     string        `mapstructure:"service"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	ImplicitTLS bool          `mapstructure:"implicit_tls"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	From        string        `mapstructure:"from"`
	To          []string      `mapstructure:"to"`
	Subject     string        `mapstructure:"subject"`
	Body        string        `mapstructure:"body"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Sender returns From, falling back to the login name.
func (m MailConfig) Sender() string {
	if m.From != "" {
		return m.From
	}

	return m.Username
}

type AppConfig struct {
	Addr           string        `mapstructure:"addr"`
	Secret         string        `mapstructure:"secret"`
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
	RememberFor    time.Duration `mapstructure:"remember_for"`
	FailureDelay   time.Duration `mapstructure:"failure_delay"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	AllowReset     bool          `mapstructure:"allow_reset"`
	SeedFile       string        `mapstructure:"seed_file"`
}

func defaults() map[string]any {
	return map[string]any{
		"runner.dir":          ".",
		"runner.go_bin":       "go",
		"runner.packages":     []string{"./e2e/..."},
		"runner.tags":         []string{"e2e"},
		"runner.run":          "",
		"runner.timeout":      10 * time.Minute,
		"runner.artifact_dir": "reports",
		"runner.forward_log":  false,
		"runner.suite":        "login",

		"report.artifact_dir":  "reports",
		"report.pattern":       "*-result.json",
		"report.merged_path":   "reports/merged-report.json",
		"report.html_dir":      "reports",
		"report.html_filename": "final-report",
		"report.title":         "Login Suite Test Report",
		"report.strict":        false,

		"mail.enabled":      true,
		"mail.service":      "gmail",
		"mail.host":         "",
		"mail.port":         0,
		"mail.implicit_tls": false,
		"mail.username":     "",
		"mail.password":     "",
		"mail.from":         "",
		"mail.to":           []string{},
		"mail.subject":      "Login Suite Test Report",
		"mail.body":         "Please find attached the login suite test report.",
		"mail.timeout":      30 * time.Second,

		"app.addr":            "127.0.0.1:5000",
		"app.secret":          "",
		"app.session_timeout": 5 * time.Minute,
		"app.remember_for":    30 * 24 * time.Hour,
		"app.failure_delay":   time.Duration(0),
		"app.max_attempts":    3,
		"app.allow_reset":     false,
		"app.seed_file":       "",

		"log.level":        "info",
		"log.format":       logging.FormatConsole,
		"log.output_paths": []string{"stderr"},
	}
}

// New returns a viper instance with defaults and environment overrides.
// Callers bind flags on it before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads pth when given, then unmarshals and validates the result.
func Load(v *viper.Viper, pth string) (*Config, error) {
	if pth != "" {
		v.SetConfigFile(pth)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", pth, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Mail.To = splitList(cfg.Mail.To)
	cfg.Runner.Tags = splitList(cfg.Runner.Tags)
	cfg.Runner.Packages = splitList(cfg.Runner.Packages)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// splitList flattens comma separated entries, as they arrive from env vars.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}

func (c *Config) Validate() error {
	var errs []error

	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Runner.Timeout < 0 {
		errs = append(errs, errors.New("runner.timeout must not be negative"))
	}

	if len(c.Runner.Packages) == 0 {
		errs = append(errs, errors.New("runner.packages must not be empty"))
	}

	if c.Report.MergedPath == "" || c.Report.HTMLFilename == "" {
		errs = append(errs, errors.New("report.merged_path and report.html_filename are required"))
	}

	if c.Mail.Port < 0 || c.Mail.Port > 65535 {
		errs = append(errs, fmt.Errorf("mail.port %d out of range", c.Mail.Port))
	}

	if c.Mail.Enabled && c.Mail.Host == "" && c.Mail.Service == "" {
		errs = append(errs, errors.New("mail.host or mail.service is required when mail is enabled"))
	}

	if c.Mail.Timeout <= 0 {
		errs = append(errs, errors.New("mail.timeout must be positive"))
	}

	if c.App.MaxAttempts <= 0 {
		errs = append(errs, errors.New("app.max_attempts must be positive"))
	}

	if c.App.SessionTimeout <= 0 {
		errs = append(errs, errors.New("app.session_timeout must be positive"))
	}

	return errors.Join(errs...)
}
