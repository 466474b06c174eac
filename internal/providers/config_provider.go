package providers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"widgetd/internal/structures"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.BindEnv("logger.level", "WIDGETD_LOG_LEVEL")
	viper.BindEnv("storage.driver", "WIDGETD_STORAGE_DRIVER")
	viper.BindEnv("storage.postgresDSN", "WIDGETD_POSTGRES_DSN")
	viper.BindEnv("persistence.saveInterval", "WIDGETD_SAVE_INTERVAL")
	viper.BindEnv("widgets.dedupWindow", "WIDGETD_DEDUP_WINDOW")
	viper.BindEnv("cache.enabled", "WIDGETD_CACHE_ENABLED")
	viper.BindEnv("cache.size", "WIDGETD_CACHE_SIZE")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "WidgetDaemon"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
