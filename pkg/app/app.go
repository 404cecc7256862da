// Package app loads configuration and sets up the process wide logger.
package app

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Load reads configuration from, in increasing precedence, the defaults, the
// optional YAML file at configPath, environment variables and any flags that
// were explicitly set. Flags are bound by replacing '-' with '_' in their
// names.
func Load(configPath string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	bindEnv(v)

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if _, ok := envBindings[key]; !ok || !f.Changed {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = errors.Wrapf(err, "failed to bind flag %s", f.Name)
			}
		})
		if bindErr != nil {
			return Config{}, bindErr
		}
	}

	// viper.ReadInConfig only returns ConfigFileNotFoundError if it has to search
	// for a default config file because one hasn't been explicitly set. That is,
	// if we explicitly set a config file, and it does not exist, viper will not
	// return a ConfigFileNotFoundError, so we check ourselves.
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, errors.Wrap(err, "failed to load config")
			}
		} else if !os.IsNotExist(err) {
			return Config{}, errors.Wrap(err, "failed to check if config exists")
		}
	}

	config := defaultConfig
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal config")
	}

	return config, nil
}

// ConfigureLogger sets the standard logger's format and level. Logs go to
// stderr so command output on stdout stays machine readable.
func ConfigureLogger(config Config) {
	switch strings.ToLower(config.LogFormat) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(os.Stderr)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
