package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"` // json, console
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	TraceStdout    bool   `yaml:"trace_stdout"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind         string   `yaml:"bind"`
	Port         int      `yaml:"port"`
	AllowOrigins []string `yaml:"allow_origins"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Capture     CaptureConfig   `yaml:"capture"`
	STT         STTConfig       `yaml:"stt"`
	Playback    PlaybackConfig  `yaml:"playback"`
	Catalog     CatalogConfig   `yaml:"catalog"`
	Session     SessionConfig   `yaml:"session"`
	Bill        BillConfig      `yaml:"bill"`
	Archive     ArchiveConfig   `yaml:"archive"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type CaptureConfig struct {
	Source            string  `yaml:"source"` // microphone, scripted
	SampleRate        int     `yaml:"sample_rate"`
	Channels          int     `yaml:"channels"`
	CalibrationMS     int     `yaml:"calibration_ms"`
	PhraseTimeLimitMS int     `yaml:"phrase_time_limit_ms"`
	RetryBackoffMS    int     `yaml:"retry_backoff_ms"`
	SilenceMS         int     `yaml:"silence_ms"`
	SpeechTimeoutMS   int     `yaml:"speech_timeout_ms"`
	ThresholdFloor    float64 `yaml:"threshold_floor"`
}

type STTConfig struct {
	Mode      string   `yaml:"mode"` // mock, exec, openai
	Command   string   `yaml:"command"`
	ModelPath string   `yaml:"model_path"`
	Language  string   `yaml:"language"`
	APIKey    string   `yaml:"api_key"`
	Model     string   `yaml:"model"`
	BaseURL   string   `yaml:"base_url"`
	Proxy     string   `yaml:"proxy"`
	TimeoutMS int      `yaml:"timeout_ms"`
	Script    []string `yaml:"script"`
}

type PlaybackConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Mode      string `yaml:"mode"` // noop, exec, bus
	Command   string `yaml:"command"`
	Voice     string `yaml:"voice"`
	Target    string `yaml:"target"`
	QueueSize int    `yaml:"queue_size"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type CatalogConfig struct {
	Path        string  `yaml:"path"`
	MatchCutoff float64 `yaml:"match_cutoff"`
}

type SessionConfig struct {
	TickMS      int `yaml:"tick_ms"`
	LogCapacity int `yaml:"log_capacity"`
}

type BillConfig struct {
	StoreName   string       `yaml:"store_name"`
	OutputDir   string       `yaml:"output_dir"`
	OpenCommand string       `yaml:"open_command"`
	Upload      UploadConfig `yaml:"upload"`
}

type UploadConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region"`
	Bucket        string `yaml:"bucket"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	PublicBaseURL string `yaml:"public_base_url"`
	Prefix        string `yaml:"prefix"`
}

type ArchiveConfig struct {
	Driver        string `yaml:"driver"` // ephemeral, sqlite, postgres
	Path          string `yaml:"path"`
	DSN           string `yaml:"dsn"`
	RetentionDays int    `yaml:"retention_days"`
	MaxBills      int    `yaml:"max_bills"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

func Default() Config {
	return Config{
		RuntimeName: "loqa-till",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind:         "127.0.0.1",
			Port:         8050,
			AllowOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Capture: CaptureConfig{
			Source:            "microphone",
			SampleRate:        16000,
			Channels:          1,
			CalibrationMS:     1000,
			PhraseTimeLimitMS: 5000,
			RetryBackoffMS:    1000,
			SilenceMS:         600,
			SpeechTimeoutMS:   5000,
			ThresholdFloor:    0.015,
		},
		STT: STTConfig{
			Mode:      "mock",
			Language:  "en",
			Model:     "whisper-1",
			TimeoutMS: 30000,
		},
		Playback: PlaybackConfig{
			Enabled:   true,
			Mode:      "noop",
			Voice:     "en-US",
			Target:    "default",
			QueueSize: 4,
			TimeoutMS: 10000,
		},
		Catalog: CatalogConfig{
			MatchCutoff: 0.6,
		},
		Session: SessionConfig{
			TickMS:      1000,
			LogCapacity: 20,
		},
		Bill: BillConfig{
			StoreName: "ASB Cafeteria",
			OutputDir: "./bills",
			Upload: UploadConfig{
				Region: "auto",
			},
		},
		Archive: ArchiveConfig{
			Driver:        "sqlite",
			Path:          "./data/loqa-till.db",
			RetentionDays: 90,
			MaxBills:      10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "LOQA_TILL_RUNTIME_NAME")
	overrideString(&cfg.Environment, "LOQA_TILL_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "LOQA_TILL_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LOQA_TILL_HTTP_PORT")
	overrideStringSlice(&cfg.HTTP.AllowOrigins, "LOQA_TILL_HTTP_ALLOW_ORIGINS")
	overrideString(&cfg.Telemetry.LogLevel, "LOQA_TILL_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.LogFormat, "LOQA_TILL_TELEMETRY_LOG_FORMAT")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LOQA_TILL_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LOQA_TILL_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Telemetry.TraceStdout, "LOQA_TILL_TELEMETRY_TRACE_STDOUT")
	overrideString(&cfg.Telemetry.PrometheusBind, "LOQA_TILL_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "LOQA_TILL_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "LOQA_TILL_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LOQA_TILL_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "LOQA_TILL_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "LOQA_TILL_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LOQA_TILL_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LOQA_TILL_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LOQA_TILL_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LOQA_TILL_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LOQA_TILL_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Capture.Source, "LOQA_TILL_CAPTURE_SOURCE")
	overrideInt(&cfg.Capture.SampleRate, "LOQA_TILL_CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Capture.Channels, "LOQA_TILL_CAPTURE_CHANNELS")
	overrideInt(&cfg.Capture.CalibrationMS, "LOQA_TILL_CAPTURE_CALIBRATION_MS")
	overrideInt(&cfg.Capture.PhraseTimeLimitMS, "LOQA_TILL_CAPTURE_PHRASE_TIME_LIMIT_MS")
	overrideInt(&cfg.Capture.RetryBackoffMS, "LOQA_TILL_CAPTURE_RETRY_BACKOFF_MS")
	overrideInt(&cfg.Capture.SilenceMS, "LOQA_TILL_CAPTURE_SILENCE_MS")
	overrideInt(&cfg.Capture.SpeechTimeoutMS, "LOQA_TILL_CAPTURE_SPEECH_TIMEOUT_MS")
	overrideFloat(&cfg.Capture.ThresholdFloor, "LOQA_TILL_CAPTURE_THRESHOLD_FLOOR")
	overrideString(&cfg.STT.Mode, "LOQA_TILL_STT_MODE")
	overrideString(&cfg.STT.Command, "LOQA_TILL_STT_COMMAND")
	overrideString(&cfg.STT.ModelPath, "LOQA_TILL_STT_MODEL_PATH")
	overrideString(&cfg.STT.Language, "LOQA_TILL_STT_LANGUAGE")
	overrideString(&cfg.STT.APIKey, "OPENAI_API_KEY")
	overrideString(&cfg.STT.APIKey, "LOQA_TILL_STT_API_KEY")
	overrideString(&cfg.STT.Model, "LOQA_TILL_STT_MODEL")
	overrideString(&cfg.STT.BaseURL, "LOQA_TILL_STT_BASE_URL")
	overrideString(&cfg.STT.Proxy, "LOQA_TILL_STT_PROXY")
	overrideInt(&cfg.STT.TimeoutMS, "LOQA_TILL_STT_TIMEOUT_MS")
	overrideBool(&cfg.Playback.Enabled, "LOQA_TILL_PLAYBACK_ENABLED")
	overrideString(&cfg.Playback.Mode, "LOQA_TILL_PLAYBACK_MODE")
	overrideString(&cfg.Playback.Command, "LOQA_TILL_PLAYBACK_COMMAND")
	overrideString(&cfg.Playback.Voice, "LOQA_TILL_PLAYBACK_VOICE")
	overrideInt(&cfg.Playback.QueueSize, "LOQA_TILL_PLAYBACK_QUEUE_SIZE")
	overrideString(&cfg.Catalog.Path, "LOQA_TILL_CATALOG_PATH")
	overrideFloat(&cfg.Catalog.MatchCutoff, "LOQA_TILL_CATALOG_MATCH_CUTOFF")
	overrideInt(&cfg.Session.TickMS, "LOQA_TILL_SESSION_TICK_MS")
	overrideInt(&cfg.Session.LogCapacity, "LOQA_TILL_SESSION_LOG_CAPACITY")
	overrideString(&cfg.Bill.StoreName, "LOQA_TILL_BILL_STORE_NAME")
	overrideString(&cfg.Bill.OutputDir, "LOQA_TILL_BILL_OUTPUT_DIR")
	overrideString(&cfg.Bill.OpenCommand, "LOQA_TILL_BILL_OPEN_COMMAND")
	overrideBool(&cfg.Bill.Upload.Enabled, "LOQA_TILL_BILL_UPLOAD_ENABLED")
	overrideString(&cfg.Bill.Upload.Endpoint, "LOQA_TILL_BILL_UPLOAD_ENDPOINT")
	overrideString(&cfg.Bill.Upload.Region, "LOQA_TILL_BILL_UPLOAD_REGION")
	overrideString(&cfg.Bill.Upload.Bucket, "LOQA_TILL_BILL_UPLOAD_BUCKET")
	overrideString(&cfg.Bill.Upload.AccessKey, "LOQA_TILL_BILL_UPLOAD_ACCESS_KEY")
	overrideString(&cfg.Bill.Upload.SecretKey, "LOQA_TILL_BILL_UPLOAD_SECRET_KEY")
	overrideString(&cfg.Bill.Upload.PublicBaseURL, "LOQA_TILL_BILL_UPLOAD_PUBLIC_BASE_URL")
	overrideString(&cfg.Archive.Driver, "LOQA_TILL_ARCHIVE_DRIVER")
	overrideString(&cfg.Archive.Path, "LOQA_TILL_ARCHIVE_PATH")
	overrideString(&cfg.Archive.DSN, "LOQA_TILL_ARCHIVE_DSN")
	overrideInt(&cfg.Archive.RetentionDays, "LOQA_TILL_ARCHIVE_RETENTION_DAYS")
	overrideInt(&cfg.Archive.MaxBills, "LOQA_TILL_ARCHIVE_MAX_BILLS")
	overrideBool(&cfg.Archive.VacuumOnStart, "LOQA_TILL_ARCHIVE_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	switch cfg.Telemetry.LogFormat {
	case "json", "console":
	default:
		return errors.New("telemetry.log_format must be one of json|console")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Capture.Source {
	case "microphone", "scripted":
	default:
		return errors.New("capture.source must be one of microphone|scripted")
	}
	if cfg.Capture.SampleRate <= 0 {
		return errors.New("capture.sample_rate must be positive")
	}
	if cfg.Capture.Channels <= 0 {
		return errors.New("capture.channels must be positive")
	}
	if cfg.Capture.PhraseTimeLimitMS <= 0 {
		return errors.New("capture.phrase_time_limit_ms must be positive")
	}
	if cfg.Capture.CalibrationMS < 0 {
		return errors.New("capture.calibration_ms must be >= 0")
	}
	if cfg.Capture.RetryBackoffMS < 0 {
		return errors.New("capture.retry_backoff_ms must be >= 0")
	}
	switch cfg.STT.Mode {
	case "mock", "exec", "openai":
	default:
		return errors.New("stt.mode must be one of mock|exec|openai")
	}
	if cfg.STT.Mode == "exec" && cfg.STT.Command == "" {
		return errors.New("stt.command must be set when mode=exec")
	}
	if cfg.STT.Mode == "openai" && cfg.STT.APIKey == "" {
		return errors.New("stt.api_key (or OPENAI_API_KEY) must be set when mode=openai")
	}
	if cfg.Playback.Enabled {
		switch cfg.Playback.Mode {
		case "noop", "exec", "bus":
		default:
			return errors.New("playback.mode must be one of noop|exec|bus")
		}
		if cfg.Playback.Mode == "exec" && cfg.Playback.Command == "" {
			return errors.New("playback.command must be set when mode=exec")
		}
		if cfg.Playback.Mode == "bus" && !cfg.Bus.Enabled {
			return errors.New("playback.mode=bus requires bus.enabled")
		}
		if cfg.Playback.QueueSize <= 0 {
			return errors.New("playback.queue_size must be >= 1")
		}
	}
	if cfg.Catalog.MatchCutoff <= 0 || cfg.Catalog.MatchCutoff > 1 {
		return errors.New("catalog.match_cutoff must be in (0, 1]")
	}
	if cfg.Session.TickMS <= 0 {
		return errors.New("session.tick_ms must be positive")
	}
	if cfg.Session.LogCapacity <= 0 {
		return errors.New("session.log_capacity must be >= 1")
	}
	if cfg.Bill.OutputDir == "" {
		return errors.New("bill.output_dir must not be empty")
	}
	if cfg.Bill.Upload.Enabled && cfg.Bill.Upload.Bucket == "" {
		return errors.New("bill.upload.bucket must be set when upload is enabled")
	}
	switch cfg.Archive.Driver {
	case "ephemeral":
	case "sqlite":
		if cfg.Archive.Path == "" {
			return errors.New("archive.path must not be empty when driver=sqlite")
		}
	case "postgres":
		if cfg.Archive.DSN == "" {
			return errors.New("archive.dsn must be set when driver=postgres")
		}
	default:
		return errors.New("archive.driver must be one of ephemeral|sqlite|postgres")
	}
	if cfg.Archive.RetentionDays < 0 {
		return errors.New("archive.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}
