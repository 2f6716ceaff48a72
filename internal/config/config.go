package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Exchange ExchangeConfig
	Monitor  MonitorConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД (audit sink)
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// EncryptionKey - ключ AES-256 для расшифровки API ключей биржи
	EncryptionKey string
	// DebugTokenHash - bcrypt-хеш токена для debug/ops эндпоинтов
	DebugTokenHash string
}

// ExchangeConfig - настройки подключения к бирже
type ExchangeConfig struct {
	// API ключи хранятся зашифрованными (AES-GCM, base64)
	APIKeyEncrypted    string
	APISecretEncrypted string
	RESTBaseURL        string
	WSPrivateURL       string

	// WebSocket настройки (event-driven фид)
	WSReconnectDelay time.Duration
	WSPingInterval   time.Duration
	WSReadTimeout    time.Duration

	// Retry только для транспортных ошибок REST
	MaxRetries   int
	RetryBackoff time.Duration

	// Rate limit исходящих REST запросов
	RateLimitPerSecond int
}

// Режимы работы монитора
const (
	ModeEvent = "event" // синхронная реакция на push-события
	ModePoll  = "poll"  // фоновый цикл с опросом биржи
)

// MonitorConfig - политики монитора позиций
type MonitorConfig struct {
	InstanceID string
	Mode       string        // event, poll
	PollInterval time.Duration

	// Лестница подтяжки стопа по RR. Пороги строго возрастают.
	TighteningSteps []TighteningStep

	TPProximity     TPProximityConfig
	AgeTightening   AgeTighteningConfig
	AgeCancellation AgeCancellationConfig

	// Таймаут ожидания второй ноги spread-пары
	PartialFillTimeout time.Duration

	// Таймаут ожидания выхода poll-цикла при Stop()
	StopJoinTimeout time.Duration
}

// TighteningStep - одна ступень лестницы: при достижении Threshold (RR)
// стоп переносится на уровень SLPosition (тоже в единицах RR от входа)
type TighteningStep struct {
	Threshold  float64
	SLPosition float64
}

// TPProximityConfig - trailing при приближении к тейк-профиту
type TPProximityConfig struct {
	ThresholdPct float64 // остаток пути до TP в процентах, при котором включается trailing
	TrailingPct  float64 // отступ стопа от текущей цены в процентах
}

// AgeTighteningConfig - подтяжка "отстающих" позиций по возрасту
type AgeTighteningConfig struct {
	MinProfitThreshold float64        // RR, выше которого позиция не считается отстающей
	MaxTighteningPct   float64        // на сколько процентов риска стоп сдвигается к входу
	BarThresholds      map[string]int // таймфрейм -> возраст в барах
}

// AgeCancellationConfig - отмена зависших ордеров по возрасту
//
// MaxAgeSeconds имеет приоритет над MaxAgeBars. 0 = порог отключён.
type AgeCancellationConfig struct {
	MaxAgeSeconds int
	MaxAgeBars    map[string]int // таймфрейм -> возраст в барах
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	steps, err := parseTighteningSteps(getEnv("TIGHTENING_STEPS", "1.0:0.3,2.0:1.2,3.0:2.0"))
	if err != nil {
		return nil, err
	}

	ageBars, err := parseBarMap(getEnv("AGE_TIGHTENING_BARS", "5:36,15:24,60:12,240:6,D:3"))
	if err != nil {
		return nil, fmt.Errorf("AGE_TIGHTENING_BARS: %w", err)
	}

	cancelBars, err := parseBarMap(getEnv("ORDER_MAX_AGE_BARS", ""))
	if err != nil {
		return nil, fmt.Errorf("ORDER_MAX_AGE_BARS: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "tradebot"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
			DebugTokenHash: getEnv("DEBUG_TOKEN_HASH", ""),
		},
		Exchange: ExchangeConfig{
			APIKeyEncrypted:    getEnv("EXCHANGE_API_KEY", ""),
			APISecretEncrypted: getEnv("EXCHANGE_API_SECRET", ""),
			RESTBaseURL:        getEnv("EXCHANGE_REST_URL", "https://api.bybit.com"),
			WSPrivateURL:       getEnv("EXCHANGE_WS_URL", "wss://stream.bybit.com/v5/private"),

			WSReconnectDelay: getEnvAsDuration("WS_RECONNECT_DELAY", 1*time.Second),
			WSPingInterval:   getEnvAsDuration("WS_PING_INTERVAL", 15*time.Second),
			WSReadTimeout:    getEnvAsDuration("WS_READ_TIMEOUT", 30*time.Second),

			MaxRetries:   getEnvAsInt("MAX_RETRIES", 4),
			RetryBackoff: getEnvAsDuration("RETRY_BACKOFF", 500*time.Millisecond),

			RateLimitPerSecond: getEnvAsInt("RATE_LIMIT_PER_SECOND", 10),
		},
		Monitor: MonitorConfig{
			InstanceID:   getEnv("INSTANCE_ID", "default"),
			Mode:         getEnv("MONITOR_MODE", ModeEvent),
			PollInterval: getEnvAsDuration("POLL_INTERVAL", 10*time.Second),

			TighteningSteps: steps,

			TPProximity: TPProximityConfig{
				ThresholdPct: getEnvAsFloat("TP_PROXIMITY_THRESHOLD_PCT", 5.0),
				TrailingPct:  getEnvAsFloat("TP_PROXIMITY_TRAILING_PCT", 1.0),
			},
			AgeTightening: AgeTighteningConfig{
				MinProfitThreshold: getEnvAsFloat("AGE_TIGHTENING_MIN_RR", 0.5),
				MaxTighteningPct:   getEnvAsFloat("AGE_TIGHTENING_MAX_PCT", 50.0),
				BarThresholds:      ageBars,
			},
			AgeCancellation: AgeCancellationConfig{
				MaxAgeSeconds: getEnvAsInt("ORDER_MAX_AGE_SECONDS", 0),
				MaxAgeBars:    cancelBars,
			},

			PartialFillTimeout: getEnvAsDuration("PARTIAL_FILL_TIMEOUT", 60*time.Second),
			StopJoinTimeout:    getEnvAsDuration("STOP_JOIN_TIMEOUT", 5*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Валидация критичных параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов и политик монитора
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_KEY обязателен для расшифровки API ключей биржи
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for decrypting exchange API keys")
	}

	if len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Exchange.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES cannot be negative, got %d", c.Exchange.MaxRetries)
	}

	if c.Exchange.MaxRetries > 10 {
		return fmt.Errorf("MAX_RETRIES should not exceed 10, got %d", c.Exchange.MaxRetries)
	}

	if c.Exchange.WSReadTimeout <= 0 {
		return fmt.Errorf("WS_READ_TIMEOUT must be positive, got %v", c.Exchange.WSReadTimeout)
	}

	if c.Exchange.RateLimitPerSecond < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_SECOND must be at least 1, got %d", c.Exchange.RateLimitPerSecond)
	}

	return c.Monitor.Validate()
}

// Validate проверяет политики монитора
func (m *MonitorConfig) Validate() error {
	if m.Mode != ModeEvent && m.Mode != ModePoll {
		return fmt.Errorf("MONITOR_MODE must be %q or %q, got %q", ModeEvent, ModePoll, m.Mode)
	}

	if m.Mode == ModePoll && m.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive in poll mode, got %v", m.PollInterval)
	}

	// Пороги лестницы строго возрастают - иначе ступени применялись бы
	// вне очереди
	for i, step := range m.TighteningSteps {
		if step.Threshold <= 0 {
			return fmt.Errorf("TIGHTENING_STEPS: threshold must be positive, got %v at index %d", step.Threshold, i)
		}
		if i > 0 && step.Threshold <= m.TighteningSteps[i-1].Threshold {
			return fmt.Errorf("TIGHTENING_STEPS: thresholds must be strictly ascending, got %v after %v",
				step.Threshold, m.TighteningSteps[i-1].Threshold)
		}
	}

	if m.TPProximity.ThresholdPct < 0 || m.TPProximity.ThresholdPct > 100 {
		return fmt.Errorf("TP_PROXIMITY_THRESHOLD_PCT must be between 0 and 100, got %v", m.TPProximity.ThresholdPct)
	}

	if m.TPProximity.TrailingPct < 0 || m.TPProximity.TrailingPct > 100 {
		return fmt.Errorf("TP_PROXIMITY_TRAILING_PCT must be between 0 and 100, got %v", m.TPProximity.TrailingPct)
	}

	// Стоп сдвигается к входу, но не дальше него
	if m.AgeTightening.MaxTighteningPct < 0 || m.AgeTightening.MaxTighteningPct > 100 {
		return fmt.Errorf("AGE_TIGHTENING_MAX_PCT must be between 0 and 100, got %v", m.AgeTightening.MaxTighteningPct)
	}

	if m.AgeCancellation.MaxAgeSeconds < 0 {
		return fmt.Errorf("ORDER_MAX_AGE_SECONDS cannot be negative, got %d", m.AgeCancellation.MaxAgeSeconds)
	}

	if m.PartialFillTimeout <= 0 {
		return fmt.Errorf("PARTIAL_FILL_TIMEOUT must be positive, got %v", m.PartialFillTimeout)
	}

	return nil
}

// parseTighteningSteps разбирает лестницу вида "1.0:0.3,2.0:1.2,3.0:2.0"
// (порог RR : целевой уровень стопа в RR)
func parseTighteningSteps(raw string) ([]TighteningStep, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	steps := make([]TighteningStep, 0, len(parts))

	for _, part := range parts {
		pair := strings.Split(strings.TrimSpace(part), ":")
		if len(pair) != 2 {
			return nil, fmt.Errorf("TIGHTENING_STEPS: invalid step %q, expected threshold:sl_position", part)
		}

		threshold, err := strconv.ParseFloat(strings.TrimSpace(pair[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("TIGHTENING_STEPS: invalid threshold %q: %w", pair[0], err)
		}

		slPos, err := strconv.ParseFloat(strings.TrimSpace(pair[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("TIGHTENING_STEPS: invalid sl_position %q: %w", pair[1], err)
		}

		steps = append(steps, TighteningStep{Threshold: threshold, SLPosition: slPos})
	}

	return steps, nil
}

// parseBarMap разбирает карту вида "5:36,60:12,D:3" (таймфрейм : бары)
func parseBarMap(raw string) (map[string]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	result := make(map[string]int)
	for _, part := range strings.Split(raw, ",") {
		pair := strings.Split(strings.TrimSpace(part), ":")
		if len(pair) != 2 {
			return nil, fmt.Errorf("invalid entry %q, expected timeframe:bars", part)
		}

		bars, err := strconv.Atoi(strings.TrimSpace(pair[1]))
		if err != nil || bars < 1 {
			return nil, fmt.Errorf("invalid bar count %q for timeframe %q", pair[1], pair[0])
		}

		result[strings.TrimSpace(pair[0])] = bars
	}

	return result, nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
