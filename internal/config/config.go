package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bnema/taskwatch/internal/application"
)

const (
	configDirName  = ".taskwatch"
	configFileName = "config.toml"
	envPrefix      = "TASKWATCH"
)

const (
	KeyServerBaseURL    = "server.base_url"
	KeyServerTimeout    = "server.timeout"
	KeyLoginPath        = "server.login_path"
	KeyRefreshPath      = "server.refresh_path"
	KeyActiveTaskPath   = "server.active_task_path"
	KeyIngestPath       = "server.ingest_path"
	KeyTaskInfoPath     = "server.task_info_path"
	KeyExtensionOrigin  = "extension.origin"
	KeyExtensionHomeURL = "extension.home_url"
	KeyMaxRetries       = "pipeline.max_retries"
	KeyRetryDelay       = "pipeline.retry_delay"
	KeyPollInterval     = "schedule.poll_interval"
	KeyFlushInterval    = "schedule.flush_interval"
	KeySweepInterval    = "schedule.sweep_interval"
	KeyScheduleJitter   = "schedule.jitter"
	KeyRunTimeout       = "schedule.run_timeout"
	KeyStoreDSN         = "store.dsn"
	KeyOutboxTTL        = "outbox.ttl"
	KeyScriptsRoot      = "scripts.root"
	KeyListenAddr       = "listen.addr"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
)

type Config struct {
	Dir string

	ServerBaseURL string
	ServerTimeout time.Duration
	Endpoints     application.Endpoints

	ExtensionOrigin string
	HomeURL         string

	Pipeline application.PipelineConfig

	PollInterval  time.Duration
	FlushInterval time.Duration
	SweepInterval time.Duration
	Scheduler     application.SchedulerConfig

	StoreDSN    string
	OutboxTTL   time.Duration
	ScriptsRoot string
	ListenAddr  string

	LogLevel  slog.Level
	LogFormat string
}

// DefaultPath is ~/.taskwatch/config.toml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(homeDir, configDirName, configFileName), nil
}

// Load reads the TOML config at path, or the default location when path is
// empty. A missing file is not an error. TASKWATCH_* variables override file
// values, with dots in keys replaced by underscores.
func Load(path string) (Config, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		defaultPath, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}
	dir := filepath.Dir(path)

	v := viper.New()
	setDefaults(v, dir)
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if explicit || !isNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return fromViper(v, dir)
}

func setDefaults(v *viper.Viper, dir string) {
	endpoints := application.DefaultEndpoints()

	v.SetDefault(KeyServerBaseURL, "http://127.0.0.1:8000")
	v.SetDefault(KeyServerTimeout, 30*time.Second)
	v.SetDefault(KeyLoginPath, endpoints.Login)
	v.SetDefault(KeyRefreshPath, endpoints.Refresh)
	v.SetDefault(KeyActiveTaskPath, endpoints.ActiveTask)
	v.SetDefault(KeyIngestPath, endpoints.Ingest)
	v.SetDefault(KeyTaskInfoPath, endpoints.TaskInfo)
	v.SetDefault(KeyExtensionOrigin, "")
	v.SetDefault(KeyExtensionHomeURL, "")
	v.SetDefault(KeyMaxRetries, application.DefaultMaxRetries)
	v.SetDefault(KeyRetryDelay, application.DefaultRetryDelay)
	v.SetDefault(KeyPollInterval, 5*time.Second)
	v.SetDefault(KeyFlushInterval, 30*time.Second)
	v.SetDefault(KeySweepInterval, time.Hour)
	v.SetDefault(KeyScheduleJitter, 0.2)
	v.SetDefault(KeyRunTimeout, application.DefaultRunTimeout)
	v.SetDefault(KeyStoreDSN, "file://"+filepath.Join(dir, "state.toml"))
	v.SetDefault(KeyOutboxTTL, 7*24*time.Hour)
	v.SetDefault(KeyScriptsRoot, filepath.Join(dir, "scripts"))
	v.SetDefault(KeyListenAddr, "127.0.0.1:7878")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
}

func fromViper(v *viper.Viper, dir string) (Config, error) {
	cfg := Config{
		Dir:           dir,
		ServerBaseURL: strings.TrimRight(strings.TrimSpace(v.GetString(KeyServerBaseURL)), "/"),
		ServerTimeout: v.GetDuration(KeyServerTimeout),
		Endpoints: application.Endpoints{
			Login:      v.GetString(KeyLoginPath),
			Refresh:    v.GetString(KeyRefreshPath),
			ActiveTask: v.GetString(KeyActiveTaskPath),
			Ingest:     v.GetString(KeyIngestPath),
			TaskInfo:   v.GetString(KeyTaskInfoPath),
		},
		ExtensionOrigin: strings.TrimSpace(v.GetString(KeyExtensionOrigin)),
		HomeURL:         strings.TrimSpace(v.GetString(KeyExtensionHomeURL)),
		Pipeline: application.PipelineConfig{
			MaxRetries: v.GetInt(KeyMaxRetries),
			RetryDelay: v.GetDuration(KeyRetryDelay),
		},
		PollInterval:  v.GetDuration(KeyPollInterval),
		FlushInterval: v.GetDuration(KeyFlushInterval),
		SweepInterval: v.GetDuration(KeySweepInterval),
		Scheduler: application.SchedulerConfig{
			Jitter:     v.GetFloat64(KeyScheduleJitter),
			RunTimeout: v.GetDuration(KeyRunTimeout),
		},
		StoreDSN:    strings.TrimSpace(v.GetString(KeyStoreDSN)),
		OutboxTTL:   v.GetDuration(KeyOutboxTTL),
		ScriptsRoot: expandHome(v.GetString(KeyScriptsRoot)),
		ListenAddr:  strings.TrimSpace(v.GetString(KeyListenAddr)),
		LogFormat:   strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
	}

	if cfg.ServerBaseURL == "" {
		return Config{}, errors.New("server.base_url must not be empty")
	}
	if cfg.Pipeline.MaxRetries < 1 {
		return Config{}, fmt.Errorf("pipeline.max_retries must be at least 1, got %d", cfg.Pipeline.MaxRetries)
	}
	if cfg.Pipeline.RetryDelay <= 0 {
		return Config{}, fmt.Errorf("pipeline.retry_delay must be positive, got %s", cfg.Pipeline.RetryDelay)
	}
	if cfg.HomeURL == "" {
		cfg.HomeURL = cfg.ServerBaseURL + "/"
	}

	level, err := ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("log.format must be text or json, got %q", cfg.LogFormat)
	}

	return cfg, nil
}

func ParseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", raw, err)
	}
	return level, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

func expandHome(path string) string {
	path = strings.TrimSpace(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}
