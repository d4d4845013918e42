package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Security SecurityConfig `mapstructure:"security"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
	BaseURL  string `mapstructure:"base_url"` // public base URL used to build avatar links
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type StorageConfig struct {
	Root        string `mapstructure:"root"`          // directory for uploaded files
	MaxUploadKB int    `mapstructure:"max_upload_kb"` // per-file size cap
	PublicPath  string `mapstructure:"public_path"`   // URL prefix the root is served at
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AdminIPs restricts admin endpoints to the listed client IPs.
	// Empty means no IP restriction (the admin key still applies).
	AdminIPs []string `mapstructure:"admin_ips"`
}

type GameConfig struct {
	ChatHistory     int `mapstructure:"chat_history"`      // messages kept per chat channel
	ChatMaxLen      int `mapstructure:"chat_max_len"`      // max message length in runes
	RankingTop      int `mapstructure:"ranking_top"`       // size of the cached leaderboard
	RankingRefreshS int `mapstructure:"ranking_refresh_s"` // leaderboard rebuild interval
	StartingGold    int `mapstructure:"starting_gold"`
	// ContentDir points at a directory of JSON content files (items.json,
	// quests.json). Empty means the built-in defaults are used.
	ContentDir string `mapstructure:"content_dir"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/companion.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("storage.root", "./data/uploads")
	v.SetDefault("storage.max_upload_kb", 2048)
	v.SetDefault("storage.public_path", "/uploads")
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("game.chat_history", 50)
	v.SetDefault("game.chat_max_len", 500)
	v.SetDefault("game.ranking_top", 100)
	v.SetDefault("game.ranking_refresh_s", 300)
	v.SetDefault("game.starting_gold", 100)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
