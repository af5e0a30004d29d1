// Package logging builds the zap logger shared by the commands.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Options struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// OutputPaths defaults to stderr so stdout stays free for command output.
	OutputPaths []string `mapstructure:"output_paths"`
}

func NewOptions() Options {
	return Options{
		Level:       zapcore.InfoLevel.String(),
		Format:      FormatConsole,
		OutputPaths: []string{"stderr"},
	}
}

func (o Options) Validate() error {
	if _, err := zapcore.ParseLevel(o.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	switch strings.ToLower(o.Format) {
	case FormatConsole, FormatJSON:
	default:
		return fmt.Errorf("log format %q: want %s or %s", o.Format, FormatConsole, FormatJSON)
	}

	return nil
}

// New builds a logger from opts.
func New(opts Options) (*zap.Logger, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	level, _ := zapcore.ParseLevel(opts.Level)

	cfg := zap.NewProductionConfig()
	if strings.ToLower(opts.Format) == FormatConsole {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = strings.ToLower(opts.Format)
	cfg.DisableStacktrace = level > zapcore.DebugLevel
	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("zap.Config.Build: %w", err)
	}

	return logger, nil
}
