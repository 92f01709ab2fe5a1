// Package config предоставляет управление конфигурацией приложения
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Переменные окружения, переопределяющие файл конфигурации.
const (
	EnvAPIToken      = "TREE_SUM_API_TOKEN"
	EnvAPIBaseURL    = "TREE_SUM_API_BASE_URL"
	EnvLogLevel      = "LOG_LEVEL"
	EnvServerPort    = "SERVER_PORT"
	EnvTelegramID    = "TELEGRAM_API_ID"
	EnvTelegramHash  = "TELEGRAM_API_HASH"
	EnvTelegramPhone = "TELEGRAM_PHONE_NUMBER"
)

// DefaultConfigFile — файл конфигурации, используемый без флага -config.
const DefaultConfigFile = "config.yml"

// ErrMissingToken — токен публичного API не задан ни в файле, ни в окружении.
var ErrMissingToken = errors.New(EnvAPIToken + " is not set")

// API содержит параметры подключения к промежуточному сервису
type API struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Token   string        `json:"-" yaml:"token"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// ReplayFile — файл с записанными ответами; если задан, сеть не используется.
	// "-" означает stdin.
	ReplayFile string `json:"replay_file" yaml:"replay_file"`
}

// Sync содержит параметры синхронизации
type Sync struct {
	Window               time.Duration `json:"window" yaml:"window"`
	Retries              int           `json:"retries" yaml:"retries"`
	RetryInitialInterval time.Duration `json:"retry_initial_interval" yaml:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `json:"retry_max_interval" yaml:"retry_max_interval"`
}

// Reconcile содержит параметры сверки папок
type Reconcile struct {
	FolderLimit    int  `json:"folder_limit" yaml:"folder_limit"`
	IncludeChatIDs bool `json:"include_chat_ids" yaml:"include_chat_ids"`
	Concurrency    int  `json:"concurrency" yaml:"concurrency"`
}

// Messages содержит параметры выгрузки сообщений
type Messages struct {
	PageSize int `json:"page_size" yaml:"page_size"`
	MaxItems int `json:"max_items" yaml:"max_items"` // 0 - без ограничений
}

// Server содержит конфигурацию сервера
type Server struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
}

// Processing содержит конфигурацию фоновых прогонов
type Processing struct {
	TaskTimeout time.Duration `json:"task_timeout" yaml:"task_timeout"` // 0 - без ограничений
	CacheTTL    time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
}

// TelegramAPI содержит конфигурацию прямого MTProto-подключения к Telegram.
// Используется только для чтения состава папок.
type TelegramAPI struct {
	Enabled             bool          `json:"enabled" yaml:"enabled"`
	APIID               int           `json:"api_id" yaml:"api_id"`
	APIHash             string        `json:"-" yaml:"api_hash"`
	PhoneNumber         string        `json:"phone_number" yaml:"phone_number"`
	SessionFile         string        `json:"session_file" yaml:"session_file"`
	HealthCheckInterval time.Duration `json:"health_check_interval" yaml:"health_check_interval"`
}

// Logging содержит конфигурацию логирования
type Logging struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// Config содержит конфигурацию приложения
type Config struct {
	API         API         `json:"api" yaml:"api"`
	Sync        Sync        `json:"sync" yaml:"sync"`
	Reconcile   Reconcile   `json:"reconcile" yaml:"reconcile"`
	Messages    Messages    `json:"messages" yaml:"messages"`
	Server      Server      `json:"server" yaml:"server"`
	Processing  Processing  `json:"processing" yaml:"processing"`
	TelegramAPI TelegramAPI `json:"telegram_api" yaml:"telegram_api"`
	Logging     Logging     `json:"logging" yaml:"logging"`
}

// defaultConfig возвращает конфигурацию со значениями по умолчанию
func defaultConfig() *Config {
	return &Config{
		API: API{
			BaseURL: DefaultAPIBaseURL,
			Timeout: DefaultAPITimeout,
		},
		Sync: Sync{
			Window:               DefaultSyncWindow,
			Retries:              DefaultSyncRetries,
			RetryInitialInterval: DefaultSyncRetryInitial,
			RetryMaxInterval:     DefaultSyncRetryMaxInterval,
		},
		Reconcile: Reconcile{
			FolderLimit:    DefaultFolderLimit,
			IncludeChatIDs: DefaultIncludeChatIDs,
			Concurrency:    DefaultConcurrency,
		},
		Messages: Messages{
			PageSize: DefaultMessagePageSize,
			MaxItems: DefaultMaxMessages,
		},
		Server: Server{
			Host:            DefaultServerHost,
			Port:            DefaultServerPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			CleanupInterval: DefaultCleanupInterval,
		},
		Processing: Processing{
			TaskTimeout: DefaultTaskTimeout,
			CacheTTL:    DefaultCacheTTL,
		},
		TelegramAPI: TelegramAPI{
			SessionFile:         DefaultSessionFile,
			HealthCheckInterval: DefaultHealthCheckInterval,
		},
		Logging: Logging{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// LoadConfig загружает конфигурацию: значения по умолчанию, затем файл path
// (пустой путь означает config.yml), затем .env и переменные окружения.
// Проверка значений выполняется отдельно через Validate.
func LoadConfig(path string) (*Config, error) {
	// Файла .env может не быть
	_ = godotenv.Load()

	if path == "" {
		path = DefaultConfigFile
	}

	cfg := defaultConfig()
	if err := loadFromYAML(path, cfg); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("не удалось применить переменные окружения: %w", err)
	}

	return cfg, nil
}

// loadFromYAML накладывает YAML-файл поверх cfg. Отсутствующий файл не считается ошибкой.
func loadFromYAML(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("не удалось разобрать YAML конфигурацию: %w", err)
	}

	return nil
}

// applyEnv переопределяет значения из переменных окружения
func applyEnv(cfg *Config) error {
	if v := getEnv(EnvAPIToken, ""); v != "" {
		cfg.API.Token = v
	}
	if v := getEnv(EnvAPIBaseURL, ""); v != "" {
		cfg.API.BaseURL = v
	}
	if v := getEnv(EnvLogLevel, ""); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := getEnv(EnvServerPort, ""); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("недопустимый %s: %w", EnvServerPort, err)
		}
		cfg.Server.Port = port
	}
	if v := getEnv(EnvTelegramID, ""); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("недопустимый %s: %w", EnvTelegramID, err)
		}
		cfg.TelegramAPI.APIID = id
	}
	if v := getEnv(EnvTelegramHash, ""); v != "" {
		cfg.TelegramAPI.APIHash = v
	}
	if v := getEnv(EnvTelegramPhone, ""); v != "" {
		cfg.TelegramAPI.PhoneNumber = v
	}
	return nil
}

// Address возвращает адрес сервера в формате "host:port"
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Secrets возвращает значения, которые нельзя выводить в логи
func (c *Config) Secrets() []string {
	var secrets []string
	if c.API.Token != "" {
		secrets = append(secrets, c.API.Token)
	}
	if c.TelegramAPI.APIHash != "" {
		secrets = append(secrets, c.TelegramAPI.APIHash)
	}
	return secrets
}

// Validate проверяет, являются ли значения конфигурации допустимыми
func (c *Config) Validate() error {
	if c.API.ReplayFile == "" {
		if strings.TrimSpace(c.API.Token) == "" {
			return ErrMissingToken
		}
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("api.base_url должен быть абсолютным URL, получено %q", c.API.BaseURL)
		}
	}

	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout должен быть положительным")
	}

	if c.Sync.Window <= 0 {
		return fmt.Errorf("sync.window должно быть положительным")
	}

	if c.Sync.Retries < 0 {
		return fmt.Errorf("sync.retries должно быть неотрицательным")
	}

	if c.Reconcile.FolderLimit <= 0 {
		return fmt.Errorf("reconcile.folder_limit должно быть положительным целым числом")
	}

	if c.Reconcile.Concurrency <= 0 {
		return fmt.Errorf("reconcile.concurrency должно быть положительным")
	}

	if c.Messages.PageSize <= 0 {
		return fmt.Errorf("messages.page_size должно быть положительным")
	}

	if c.Messages.MaxItems < 0 {
		return fmt.Errorf("messages.max_items должно быть неотрицательным (0 для отсутствия ограничений)")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port должен быть действительным номером порта (1-65535)")
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout должно быть положительным")
	}

	if c.Processing.TaskTimeout < 0 {
		return fmt.Errorf("processing.task_timeout должно быть неотрицательным (0 для отсутствия ограничений)")
	}

	if c.Processing.CacheTTL <= 0 {
		return fmt.Errorf("processing.cache_ttl должно быть положительным")
	}

	if c.TelegramAPI.Enabled {
		if c.TelegramAPI.APIID <= 0 {
			return fmt.Errorf("telegram_api.api_id должно быть положительным целым числом")
		}
		if c.TelegramAPI.APIHash == "" {
			return fmt.Errorf("telegram_api.api_hash не может быть пустым")
		}
		if c.TelegramAPI.PhoneNumber == "" {
			return fmt.Errorf("telegram_api.phone_number не может быть пустым")
		}
		if c.TelegramAPI.HealthCheckInterval <= 0 {
			return fmt.Errorf("telegram_api.health_check_interval должно быть положительным")
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// all good
	default:
		return fmt.Errorf("logging.level должен быть одним из: debug, info, warn, error")
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format должен быть одним из: json, text")
	}

	return nil
}

// getEnv извлекает значение переменной окружения или возвращает значение по умолчанию, если она не установлена
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
