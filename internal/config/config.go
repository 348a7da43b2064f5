package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultPort        = 3578
	DefaultSettleDelay = 3 * time.Second
	DefaultLogLevel    = "warn"
	DefaultCommandRate = 4.0

	envPrefix = "CASTCLI_"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the runtime settings of a casting session.
type Config struct {
	Port        int           `json:"port" mapstructure:"port"`
	DataDir     string        `json:"data_dir" mapstructure:"data_dir"`
	SettleDelay time.Duration `json:"settle_delay" mapstructure:"settle_delay"`
	LogLevel    string        `json:"log_level" mapstructure:"log_level"`
	CommandRate float64       `json:"command_rate" mapstructure:"command_rate"`
}

// envKeys maps environment variables to config keys.
var envKeys = map[string]string{
	envPrefix + "PORT":         "port",
	envPrefix + "DIR":          "data_dir",
	envPrefix + "SETTLE":       "settle_delay",
	envPrefix + "LOG_LEVEL":    "log_level",
	envPrefix + "COMMAND_RATE": "command_rate",
}

// Swapped in tests.
var (
	lookupEnv           = os.LookupEnv
	defaultSettingsPath = appPath
	userCacheDir        = os.UserCacheDir
)

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Port:        DefaultPort,
		DataDir:     DefaultDataDir(),
		SettleDelay: DefaultSettleDelay,
		LogLevel:    DefaultLogLevel,
		CommandRate: DefaultCommandRate,
	}
}

// Load builds the configuration from defaults, the optional settings file at
// path, CASTCLI_* environment variables and the overrides map, in that order.
// An empty path means the default settings file, which may be absent.
func Load(path string, overrides map[string]any) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := defaultSettingsPath()
		if err == nil {
			path = p
		}
	}

	merged := make(map[string]any)

	if path != "" {
		fromFile, err := readSettings(path)
		switch {
		case err == nil:
			mergeInto(merged, fromFile)
		case os.IsNotExist(errors.Cause(err)) && !explicit:
		default:
			return nil, errors.Wrap(err, "config load")
		}
	}

	for env, key := range envKeys {
		if v, ok := lookupEnv(env); ok && strings.TrimSpace(v) != "" {
			merged[key] = strings.TrimSpace(v)
		}
	}

	mergeInto(merged, overrides)

	conf := Default()
	if err := decode(merged, &conf); err != nil {
		return nil, errors.Wrap(err, "config decode")
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return &conf, nil
}

// Validate reports the first setting that can't be used.
func (c *Config) Validate() error {
	switch {
	case c.Port < 1 || c.Port > 65535:
		return errors.Wrapf(ErrInvalidConfig, "port %d out of range", c.Port)
	case strings.TrimSpace(c.DataDir) == "":
		return errors.Wrap(ErrInvalidConfig, "data dir is empty")
	case c.SettleDelay < 0:
		return errors.Wrapf(ErrInvalidConfig, "negative settle delay %s", c.SettleDelay)
	case c.CommandRate <= 0:
		return errors.Wrapf(ErrInvalidConfig, "command rate must be positive, got %v", c.CommandRate)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "log level %q", c.LogLevel)
	}

	return nil
}

// Level returns the parsed zerolog level, falling back to warn.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.WarnLevel
	}
	return lvl
}

func readSettings(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	settings := make(map[string]any)
	if err := json.Unmarshal(b, &settings); err != nil {
		return nil, fmt.Errorf("readSettings: failed to decode %s: %w", path, err)
	}

	return settings, nil
}

func decode(input map[string]any, out *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHook(),
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}

	return dec.Decode(input)
}

// secondsToDurationHook lets settle_delay be written as a plain number of
// seconds in JSON, where numbers always arrive as float64.
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		}

		return data, nil
	}
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}

// DefaultDataDir is the staging directory owned by castcli, next to the
// other per user caches. It never resolves against the working directory.
func DefaultDataDir() string {
	cache, err := userCacheDir()
	if err != nil || cache == "" {
		cache = os.TempDir()
	}

	return filepath.Join(cache, "castcli", "data")
}

func appPath() (string, error) {
	oscfg, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("appPath: failed to get config dir: %w", err)
	}

	return filepath.Join(oscfg, "castcli", "settings.json"), nil
}
