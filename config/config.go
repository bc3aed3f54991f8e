package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the briefing bot.
type Config struct {
	General  GeneralConfig  `mapstructure:"general"`
	Lark     LarkConfig     `mapstructure:"lark"`
	LLM      LLMConfig      `mapstructure:"llm"`
	NewsAPI  NewsAPIConfig  `mapstructure:"newsapi"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Briefing BriefingConfig `mapstructure:"briefing"`
	Ops      OpsConfig      `mapstructure:"ops"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Listen   string `mapstructure:"listen"`
	Timezone string `mapstructure:"timezone"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// Location resolves the configured fixed time zone. Every calendar-day
// computation in the system (cache keys, scheduler, handlers) goes through
// this one zone.
func (g GeneralConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(g.Timezone)
	if name == "" {
		name = "Asia/Shanghai"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid general.timezone %q: %w", name, err)
	}
	return loc, nil
}

// LarkConfig contains chat-platform credentials and endpoints.
type LarkConfig struct {
	AppID             string        `mapstructure:"app_id"`
	AppSecret         string        `mapstructure:"app_secret"`
	VerificationToken string        `mapstructure:"verification_token"`
	APIBase           string        `mapstructure:"api_base"`
	Timeout           time.Duration `mapstructure:"timeout"`
	WikiToken         string        `mapstructure:"wiki_token"` // archive target document
}

func (l LarkConfig) Validate() error {
	if strings.TrimSpace(l.AppID) == "" {
		return fmt.Errorf("lark.app_id required")
	}
	if strings.TrimSpace(l.AppSecret) == "" {
		return fmt.Errorf("lark.app_secret required")
	}
	return nil
}

// LLMConfig contains the generation/classification capability settings.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key required")
	}
	return nil
}

// NewsAPIConfig contains the external article search settings.
type NewsAPIConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	Timeout     time.Duration `mapstructure:"timeout"`
	WindowHours int           `mapstructure:"window_hours"`
}

func (n NewsAPIConfig) Validate() error {
	if strings.TrimSpace(n.Endpoint) == "" {
		return fmt.Errorf("newsapi.endpoint required")
	}
	return nil
}

// Window returns the trailing fetch window applied to every article search.
func (n NewsAPIConfig) Window() time.Duration {
	h := n.WindowHours
	if h <= 0 {
		h = 24
	}
	return time.Duration(h) * time.Hour
}

// StorageConfig contains storage and persistence settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a postgres connection string from the configured parts.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

// ScheduleConfig drives the two background jobs.
type ScheduleConfig struct {
	GenerateCron string        `mapstructure:"generate_cron"`
	PushCron     string        `mapstructure:"push_cron"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
	Categories   []string      `mapstructure:"categories"`
}

func (s ScheduleConfig) Validate() error {
	if len(s.Categories) == 0 {
		return fmt.Errorf("schedule.categories must list at least one category")
	}
	return nil
}

// BriefingConfig bounds the synthesis output and the engine bookkeeping.
type BriefingConfig struct {
	HeadlineCount int           `mapstructure:"headline_count"`
	SummaryMaxLen int           `mapstructure:"summary_max_len"`
	HistoryWindow int           `mapstructure:"history_window"`
	DedupWindow   time.Duration `mapstructure:"dedup_window"`
	DedupCapacity int           `mapstructure:"dedup_capacity"`
	WorkerCount   int           `mapstructure:"worker_count"`
	QueueSize     int           `mapstructure:"queue_size"`
}

// Normalize applies defaults for unset briefing values.
func (b BriefingConfig) Normalize() BriefingConfig {
	if b.HeadlineCount <= 0 {
		b.HeadlineCount = 5
	}
	if b.SummaryMaxLen <= 0 {
		b.SummaryMaxLen = 80
	}
	if b.HistoryWindow <= 0 {
		b.HistoryWindow = 10
	}
	if b.DedupWindow <= 0 {
		b.DedupWindow = 5 * time.Second
	}
	if b.DedupCapacity <= 0 {
		b.DedupCapacity = 1024
	}
	if b.WorkerCount <= 0 {
		b.WorkerCount = 4
	}
	if b.QueueSize <= 0 {
		b.QueueSize = 16 * b.WorkerCount
	}
	return b
}

// OpsConfig secures the operational endpoints.
type OpsConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LoadConfig loads config from file, falling back to BRIEFBOT_* env vars.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.listen", ":36000")
	viper.SetDefault("general.timezone", "Asia/Shanghai")
	viper.SetDefault("lark.api_base", "https://open.feishu.cn/open-apis")
	viper.SetDefault("lark.timeout", 10*time.Second)
	viper.SetDefault("llm.timeout", 60*time.Second)
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("newsapi.timeout", 10*time.Second)
	viper.SetDefault("newsapi.window_hours", 24)
	viper.SetDefault("schedule.generate_cron", "0 9 * * *")
	viper.SetDefault("schedule.push_cron", "0 10 * * *")
	viper.SetDefault("schedule.startup_delay", 30*time.Second)
	viper.SetDefault("schedule.categories", []string{"AI", "GAMES", "MUSIC"})

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("BRIEFBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Briefing = config.Briefing.Normalize()

	if err := config.Lark.Validate(); err != nil {
		panic(err)
	}
	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.NewsAPI.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}
	if err := config.Schedule.Validate(); err != nil {
		panic(err)
	}
	return &config
}
