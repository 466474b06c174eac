package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver" validate:"required|in:memory,postgres"`
	PostgresDSN string `yaml:"postgresDSN"`
}

type Persistence struct {
	FilePath     string        `yaml:"filePath" validate:"required|unixPath"`
	SaveInterval time.Duration `yaml:"saveInterval" validate:"required|min:1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type CounterConfig struct {
	DailyRetentionDays     int `yaml:"dailyRetentionDays"`
	WeeklyRetentionWeeks   int `yaml:"weeklyRetentionWeeks"`
	MonthlyRetentionMonths int `yaml:"monthlyRetentionMonths"`
}

type RankingConfig struct {
	DefaultMaxEntries int `yaml:"defaultMaxEntries" validate:"min:0"`
	MaxEntriesCeiling int `yaml:"maxEntriesCeiling"`
}

type BBSConfig struct {
	PageSize    int  `yaml:"pageSize" validate:"required|min:1"`
	MaxBodyLen  int  `yaml:"maxBodyLen"`
	MaxMessages int  `yaml:"maxMessages"`
	NewestFirst bool `yaml:"newestFirst"`
}

type WidgetsConfig struct {
	SweepInterval time.Duration `yaml:"sweepInterval" validate:"required|min:1"`
	DedupWindow   time.Duration `yaml:"dedupWindow" validate:"required|min:1"`
	Counter       CounterConfig `yaml:"counter"`
	Ranking       RankingConfig `yaml:"ranking"`
	BBS           BBSConfig     `yaml:"bbs"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	WebServer   Server        `yaml:"webServer"`
	Storage     StorageConfig `yaml:"storage"`
	Persistence Persistence   `yaml:"persistence"`
	Logger      LoggerConfig  `yaml:"logger"`
	Widgets     WidgetsConfig `yaml:"widgets"`
	Cache       CacheConfig   `yaml:"cache"`
	Metrics     MetricsConfig `yaml:"metrics"`
}
