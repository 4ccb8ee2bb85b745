package configs

import (
	"fmt"
	"time"

	"github.com/hansol-oss/intrachat/internal/infrastructure/env"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	HTTP        HTTPConfig        `koanf:"http"`
	Database    DatabaseConfig    `koanf:"database"`
	Chat        ChatConfig        `koanf:"chat"`
	Upload      UploadConfig      `koanf:"upload"`
	RateLimiter RateLimiterConfig `koanf:"rateLimiter"`
	Logging     LoggingConfig     `koanf:"logging"`
}

type HTTPConfig struct {
	Host           string        `koanf:"host"`
	Port           uint16        `koanf:"port"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type ChatConfig struct {
	// UnreadWindow bounds every unread-count query; older messages never
	// contribute to a badge.
	UnreadWindow time.Duration `koanf:"unread_window"`
	// PingInterval is the SSE keep-alive cadence.
	PingInterval time.Duration `koanf:"ping_interval"`
	// PollInterval is advertised to clients as the fallback refresh cadence.
	PollInterval time.Duration `koanf:"poll_interval"`
	// StreamBuffer is the per-subscription event buffer size.
	StreamBuffer int `koanf:"stream_buffer"`
	// MaxContentLength truncates message text on write.
	MaxContentLength int `koanf:"max_content_length"`
}

type UploadConfig struct {
	Dir         string   `koanf:"dir"`
	MaxFileMB   int64    `koanf:"max_file_mb"`
	AllowedExts []string `koanf:"allowed_exts"`
}

type RateLimiterConfig struct {
	RequestsPerTimeFrame int           `koanf:"requestsPerTimeFrame"`
	TimeFrame            time.Duration `koanf:"timeFrame"`
}

type LoggingConfig struct {
	FilePath   string `koanf:"file_path"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	setDefault(k, "http.host", "0.0.0.0")
	setDefault(k, "http.port", 8080)
	setDefault(k, "http.read_timeout", 10*time.Second)
	// long write timeouts: SSE responses stay open for the connection lifetime
	setDefault(k, "http.write_timeout", 0*time.Second)
	setDefault(k, "http.allowed_origins", []string{"*"})

	setDefault(k, "database.dsn", "host=localhost user=intrachat password=intrachat dbname=intrachat port=5432 sslmode=disable")
	setDefault(k, "database.max_open_conns", 25)
	setDefault(k, "database.max_idle_conns", 5)
	setDefault(k, "database.conn_max_lifetime", time.Hour)

	setDefault(k, "chat.unread_window", 7*24*time.Hour)
	setDefault(k, "chat.ping_interval", 25*time.Second)
	setDefault(k, "chat.poll_interval", 30*time.Second)
	setDefault(k, "chat.stream_buffer", 64)
	setDefault(k, "chat.max_content_length", 2000)

	setDefault(k, "upload.dir", "./uploads")
	setDefault(k, "upload.max_file_mb", 150)
	setDefault(k, "upload.allowed_exts", []string{})

	setDefault(k, "rateLimiter.requestsPerTimeFrame", 100)
	setDefault(k, "rateLimiter.timeFrame", 5*time.Second)

	setDefault(k, "logging.file_path", "")
	setDefault(k, "logging.max_size_mb", 100)
	setDefault(k, "logging.max_backups", 5)
	setDefault(k, "logging.max_age_days", 30)
}

func applyEnvOverrides(k *koanf.Koanf) {
	if host := env.GetString("HTTP_HOST", ""); host != "" {
		k.Set("http.host", host)
	}
	if port := env.GetInt("HTTP_PORT", 0); port > 0 {
		k.Set("http.port", port)
	}
	if dsn := env.GetString("DATABASE_DSN", ""); dsn != "" {
		k.Set("database.dsn", dsn)
	}
	if days := env.GetInt("CHAT_UNREAD_WINDOW_DAYS", 0); days > 0 {
		k.Set("chat.unread_window", time.Duration(days)*24*time.Hour)
	}
	if ping := env.GetInt("CHAT_PING_INTERVAL_SECONDS", 0); ping > 0 {
		k.Set("chat.ping_interval", time.Duration(ping)*time.Second)
	}
	if poll := env.GetInt("CHAT_POLL_INTERVAL_SECONDS", 0); poll > 0 {
		k.Set("chat.poll_interval", time.Duration(poll)*time.Second)
	}
	if dir := env.GetString("UPLOAD_DIR", ""); dir != "" {
		k.Set("upload.dir", dir)
	}
	if maxMB := env.GetInt("UPLOAD_MAX_FILE_MB", 0); maxMB > 0 {
		k.Set("upload.max_file_mb", maxMB)
	}
	if logPath := env.GetString("LOG_FILE_PATH", ""); logPath != "" {
		k.Set("logging.file_path", logPath)
	}
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value interface{}) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}

// UnreadWindowDays is handed to clients so the polling fallback requests the
// same message window the unread badges are computed over.
func (c ChatConfig) UnreadWindowDays() int {
	d := int(c.UnreadWindow / (24 * time.Hour))
	if d < 1 {
		d = 1
	}
	return d
}
