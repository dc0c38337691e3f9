package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	API     APIConfig     `mapstructure:"api"`
	State   StateConfig   `mapstructure:"state"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Debug   bool          `mapstructure:"debug"`
}

type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type StateConfig struct {
	Dir string `mapstructure:"dir"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

func Load() (*Config, error) {
	viper.AddConfigPath("./configs")
	if configDir, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(filepath.Join(configDir, "klient-plikow"))
	}
	viper.SetConfigName("settings")
	viper.SetConfigType("yml")

	viper.SetDefault("api.base_url", "http://localhost:8000/api")
	viper.SetDefault("state.dir", defaultStateDir())

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaultStateDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(configDir, "klient-plikow")
}
