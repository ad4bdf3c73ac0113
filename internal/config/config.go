package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"github.com/skalibog/mprofile/internal/profile"
	"gopkg.in/yaml.v2"
)

// ErrInvalidConfig возвращается Validate для некорректных значений
var ErrInvalidConfig = errors.New("некорректная конфигурация")

// EnvPrefix префикс переменных окружения
const EnvPrefix = "MPROFILE"

// Значения для полей, которые не заданы в файле. Явный 0 в файле сохраняется.
const (
	DefaultTick         = 1.0
	DefaultValueArea    = 0.70
	DefaultMaxRetries   = 3
	DefaultStrongFactor = 2
)

// DefaultTickSizes размер тика по умолчанию для известных активов
var DefaultTickSizes = map[string]float64{
	"BTC":  100,
	"ETH":  3,
	"XRP":  0.005,
	"SOL":  0.15,
	"BNB":  1,
	"PAXG": 5,
}

// Config представляет полную конфигурацию приложения
type Config struct {
	Binance  BinanceConfig  `yaml:"binance"`
	Trading  TradingConfig  `yaml:"trading"`
	Profile  ProfileConfig  `yaml:"profile"`
	Control  ControlConfig  `yaml:"control"`
	Daily    DailyConfig    `yaml:"daily"`
	POC      POCConfig      `yaml:"poc"`
	Storage  StorageConfig  `yaml:"storage"`
	UI       UIConfig       `yaml:"ui"`
	Log      LogConfig      `yaml:"log"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey     string `yaml:"api_key"`
	APISecret  string `yaml:"api_secret"`
	Testnet    bool   `yaml:"testnet"`
	Market     string `yaml:"market"` // spot | futures
	PageLimit  int    `yaml:"page_limit"`
	MaxRetries *int   `yaml:"max_retries"` // 0 отключает повторы
	RetryMinMS int    `yaml:"retry_min_ms"`
	RetryMaxMS int    `yaml:"retry_max_ms"`
}

// TradingConfig содержит список символов и параметры периода
type TradingConfig struct {
	Symbols       []string `yaml:"symbols"`
	Interval      string   `yaml:"interval"`
	BracketPeriod string   `yaml:"bracket_period"`
	Days          int      `yaml:"days"`
}

// ProfileConfig настройки построения профиля
type ProfileConfig struct {
	TickSizes         map[string]float64 `yaml:"tick_sizes"`
	DefaultTick       *float64           `yaml:"default_tick"`
	ValueAreaFraction *float64           `yaml:"value_area"`
}

// ControlConfig настройки сканирования контроля рынка
type ControlConfig struct {
	Timeframes   []string `yaml:"timeframes"`
	DateRanges   []int    `yaml:"date_ranges"`
	StrongFactor *int     `yaml:"strong_factor"`
	Parallelism  int      `yaml:"parallelism"`
}

// DailyConfig настройки дневного анализа
type DailyConfig struct {
	Timeframes     []string `yaml:"timeframes"`
	VolumeLookback int      `yaml:"volume_lookback"`
}

// POCConfig настройки отслеживания POC
type POCConfig struct {
	Days int    `yaml:"days"`
	Mode string `yaml:"mode"` // days | today
}

// StorageConfig настройки хранения данных
type StorageConfig struct {
	Type         string `yaml:"type"` // influxdb | sqlite | none
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
	SQLitePath   string `yaml:"sqlite_path"`
}

// UIConfig настройки пользовательского интерфейса
type UIConfig struct {
	RefreshRate     int `yaml:"refresh_rate_ms"`
	IntervalSeconds int `yaml:"analysis_interval_seconds"`
	LogLines        int `yaml:"log_lines"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Dir    string `yaml:"dir"`
	Level  string `yaml:"level"`
	Stdout bool   `yaml:"stdout"`
}

// ScheduleConfig расписание для serve
type ScheduleConfig struct {
	AnalysisCron string `yaml:"analysis_cron"`
	DailyCron    string `yaml:"daily_cron"`
	RunOnStart   bool   `yaml:"run_on_start"`
}

// MetricsConfig настройки экспорта метрик
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// envOverrides секреты и пути, которые можно задать через окружение
type envOverrides struct {
	APIKey       string `envconfig:"BINANCE_API_KEY"`
	APISecret    string `envconfig:"BINANCE_API_SECRET"`
	StorageType  string `envconfig:"STORAGE_TYPE"`
	StorageURL   string `envconfig:"STORAGE_URL"`
	StorageToken string `envconfig:"STORAGE_TOKEN"`
	SQLitePath   string `envconfig:"SQLITE_PATH"`
	LogLevel     string `envconfig:"LOG_LEVEL"`
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load загружает конфигурацию из файла и применяет переменные окружения
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("ошибка чтения переменных окружения: %w", err)
	}

	if env.APIKey != "" {
		c.Binance.APIKey = env.APIKey
	}
	if env.APISecret != "" {
		c.Binance.APISecret = env.APISecret
	}
	if env.StorageType != "" {
		c.Storage.Type = env.StorageType
	}
	if env.StorageURL != "" {
		c.Storage.URL = env.StorageURL
	}
	if env.StorageToken != "" {
		c.Storage.Token = env.StorageToken
	}
	if env.SQLitePath != "" {
		c.Storage.SQLitePath = env.SQLitePath
	}
	if env.LogLevel != "" {
		c.Log.Level = env.LogLevel
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Binance.Market == "" {
		c.Binance.Market = "spot"
	}
	if c.Binance.PageLimit == 0 {
		c.Binance.PageLimit = 1000
	}
	if c.Binance.MaxRetries == nil {
		c.Binance.MaxRetries = intPtr(DefaultMaxRetries)
	}
	if c.Binance.RetryMinMS == 0 {
		c.Binance.RetryMinMS = 500
	}
	if c.Binance.RetryMaxMS == 0 {
		c.Binance.RetryMaxMS = 10000
	}

	if len(c.Trading.Symbols) == 0 {
		c.Trading.Symbols = []string{"BTCUSDT"}
	}
	if c.Trading.Interval == "" {
		c.Trading.Interval = "30m"
	}
	if c.Trading.BracketPeriod == "" {
		c.Trading.BracketPeriod = c.Trading.Interval
	}
	if c.Trading.Days == 0 {
		c.Trading.Days = 7
	}

	if c.Profile.DefaultTick == nil {
		c.Profile.DefaultTick = floatPtr(DefaultTick)
	}
	if c.Profile.ValueAreaFraction == nil {
		c.Profile.ValueAreaFraction = floatPtr(DefaultValueArea)
	}

	if len(c.Control.Timeframes) == 0 {
		c.Control.Timeframes = []string{"30m", "1h", "4h"}
	}
	if len(c.Control.DateRanges) == 0 {
		c.Control.DateRanges = []int{7, 30, 60}
	}
	if c.Control.StrongFactor == nil {
		c.Control.StrongFactor = intPtr(DefaultStrongFactor)
	}
	if c.Control.Parallelism == 0 {
		c.Control.Parallelism = 3
	}

	if len(c.Daily.Timeframes) == 0 {
		c.Daily.Timeframes = []string{"30m", "1h", "4h"}
	}
	if c.Daily.VolumeLookback == 0 {
		c.Daily.VolumeLookback = 7
	}

	if c.POC.Days == 0 {
		c.POC.Days = 7
	}
	if c.POC.Mode == "" {
		c.POC.Mode = "days"
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "none"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/mprofile.db"
	}

	if c.UI.RefreshRate == 0 {
		c.UI.RefreshRate = 1000
	}
	if c.UI.IntervalSeconds == 0 {
		c.UI.IntervalSeconds = 300
	}
	if c.UI.LogLines == 0 {
		c.UI.LogLines = 10
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Schedule.AnalysisCron == "" {
		c.Schedule.AnalysisCron = "0 5 * * * *"
	}
	if c.Schedule.DailyCron == "" {
		c.Schedule.DailyCron = "0 10 0 * * *"
	}

	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9102
	}
}

// Validate проверяет значения конфигурации
func (c *Config) Validate() error {
	if _, err := profile.ParsePeriod(c.Trading.Interval); err != nil {
		return fmt.Errorf("trading.interval: %v: %w", err, ErrInvalidConfig)
	}
	if _, err := profile.ParsePeriod(c.Trading.BracketPeriod); err != nil {
		return fmt.Errorf("trading.bracket_period: %v: %w", err, ErrInvalidConfig)
	}
	if c.Trading.Days <= 0 {
		return fmt.Errorf("trading.days должен быть положительным: %w", ErrInvalidConfig)
	}
	if c.Profile.Tick() <= 0 {
		return fmt.Errorf("profile.default_tick должен быть положительным: %w", ErrInvalidConfig)
	}
	for asset, tick := range c.Profile.TickSizes {
		if tick <= 0 {
			return fmt.Errorf("profile.tick_sizes[%s] должен быть положительным: %w", asset, ErrInvalidConfig)
		}
	}
	if f := c.Profile.Fraction(); f <= 0 || f > 1 {
		return fmt.Errorf("profile.value_area должен быть в (0, 1]: %w", ErrInvalidConfig)
	}
	for _, tf := range append(append([]string{}, c.Control.Timeframes...), c.Daily.Timeframes...) {
		if _, err := profile.ParsePeriod(tf); err != nil {
			return fmt.Errorf("таймфрейм %q: %v: %w", tf, err, ErrInvalidConfig)
		}
	}
	for _, days := range c.Control.DateRanges {
		if days <= 0 {
			return fmt.Errorf("control.date_ranges должны быть положительными: %w", ErrInvalidConfig)
		}
	}
	if c.Control.Factor() < 0 || c.Control.Parallelism < 0 {
		return fmt.Errorf("control.strong_factor и control.parallelism не могут быть отрицательными: %w", ErrInvalidConfig)
	}
	if c.Daily.VolumeLookback < 0 {
		return fmt.Errorf("daily.volume_lookback не может быть отрицательным: %w", ErrInvalidConfig)
	}
	if c.POC.Days <= 0 {
		return fmt.Errorf("poc.days должен быть положительным: %w", ErrInvalidConfig)
	}
	switch c.POC.Mode {
	case "days", "today":
	default:
		return fmt.Errorf("неизвестный режим poc.mode %q: %w", c.POC.Mode, ErrInvalidConfig)
	}
	switch c.Binance.Market {
	case "spot", "futures":
	default:
		return fmt.Errorf("неизвестный рынок binance.market %q: %w", c.Binance.Market, ErrInvalidConfig)
	}
	if c.Binance.Retries() < 0 {
		return fmt.Errorf("binance.max_retries не может быть отрицательным: %w", ErrInvalidConfig)
	}
	switch c.Storage.Type {
	case "influxdb", "sqlite", "none":
	default:
		return fmt.Errorf("неизвестный тип хранилища %q: %w", c.Storage.Type, ErrInvalidConfig)
	}
	return nil
}

// BracketMinutes длина брекета в минутах
func (c *Config) BracketMinutes() int {
	minutes, err := profile.ParsePeriod(c.Trading.BracketPeriod)
	if err != nil {
		return 30
	}
	return minutes
}

// Coin возвращает базовый актив символа (BTCUSDT -> BTC)
func Coin(symbol string) string {
	return strings.TrimSuffix(strings.ToUpper(symbol), "USDT")
}

// TickSize возвращает размер тика для символа
func (c *Config) TickSize(symbol string) decimal.Decimal {
	coin := Coin(symbol)
	if tick, ok := c.Profile.TickSizes[coin]; ok && tick > 0 {
		return decimal.NewFromFloat(tick)
	}
	if tick, ok := DefaultTickSizes[coin]; ok {
		return decimal.NewFromFloat(tick)
	}
	return decimal.NewFromFloat(c.Profile.Tick())
}

// ValueAreaFraction доля зоны стоимости в виде decimal
func (c *Config) ValueAreaFraction() decimal.Decimal {
	return decimal.NewFromFloat(c.Profile.Fraction())
}

// NewBuilder создает построитель профиля для символа с брекетом длины period
func (c *Config) NewBuilder(symbol, period string) (*profile.Builder, error) {
	minutes, err := profile.ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	grid, err := profile.NewTickGrid(c.TickSize(symbol))
	if err != nil {
		return nil, fmt.Errorf("тик для %s: %w", symbol, err)
	}
	return profile.NewBuilder(grid, minutes, c.ValueAreaFraction())
}

// Tick размер тика по умолчанию
func (p ProfileConfig) Tick() float64 {
	if p.DefaultTick == nil {
		return DefaultTick
	}
	return *p.DefaultTick
}

// Fraction доля зоны стоимости
func (p ProfileConfig) Fraction() float64 {
	if p.ValueAreaFraction == nil {
		return DefaultValueArea
	}
	return *p.ValueAreaFraction
}

// Retries число повторов запроса страницы свечей
func (b BinanceConfig) Retries() int {
	if b.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *b.MaxRetries
}

// Factor порог сильного контроля на одну сессию
func (c ControlConfig) Factor() int {
	if c.StrongFactor == nil {
		return DefaultStrongFactor
	}
	return *c.StrongFactor
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
