package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/spf13/viper"

	"github.com/furrysalamander/ansicraft/internal/logging"
)

var log = logging.L("config")

// Config holds the gateway configuration.
type Config struct {
	// SSH surface
	ListenAddr  string `mapstructure:"listen_addr" yaml:"listen_addr"`
	HostKeyPath string `mapstructure:"host_key_path" yaml:"host_key_path"`

	// Admission
	MaxSessions int `mapstructure:"max_sessions" yaml:"max_sessions"`

	// Game display geometry and launch
	GameWidth     int    `mapstructure:"game_width" yaml:"game_width"`
	GameHeight    int    `mapstructure:"game_height" yaml:"game_height"`
	LaunchScript  string `mapstructure:"launch_script" yaml:"launch_script"`
	ServerAddress string `mapstructure:"server_address" yaml:"server_address"`

	// External tools
	FFmpegBinary  string `mapstructure:"ffmpeg_binary" yaml:"ffmpeg_binary"`
	XdotoolBinary string `mapstructure:"xdotool_binary" yaml:"xdotool_binary"`
	FrameRate     int    `mapstructure:"frame_rate" yaml:"frame_rate"`

	// Monitor endpoint ("" = disabled)
	MonitorAddr string `mapstructure:"monitor_addr" yaml:"monitor_addr"`

	// Logging
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat     string `mapstructure:"log_format" yaml:"log_format"`
	LogFile       string `mapstructure:"log_file" yaml:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups" yaml:"log_max_backups"`

	// Game teardown
	KillGraceSeconds  int `mapstructure:"kill_grace_seconds" yaml:"kill_grace_seconds"`
	ReaperConcurrency int `mapstructure:"reaper_concurrency" yaml:"reaper_concurrency"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr:  "0.0.0.0:2222",
		HostKeyPath: "ssh_server_key",

		MaxSessions: 2,

		GameWidth:    1280,
		GameHeight:   720,
		LaunchScript: "/root/launch_minecraft.py",

		FFmpegBinary:  "ffmpeg",
		XdotoolBinary: "xdotool",
		FrameRate:     30,

		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSizeMB:  50,
		LogMaxBackups: 3,

		KillGraceSeconds:  5,
		ReaperConcurrency: 4,
	}
}

// Load reads the config file (explicit path, or ansicraft.yaml in the config
// dir / working dir), applies ANSICRAFT_* env overrides, and validates.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ansicraft")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ANSICRAFT")
	// Unmarshal only sees keys viper already knows, so every field's env var
	// is bound explicitly; keys absent from the config file still override.
	cfgType := reflect.TypeOf(*cfg)
	for i := 0; i < cfgType.NumField(); i++ {
		if key := cfgType.Field(i).Tag.Get("mapstructure"); key != "" {
			viper.BindEnv(key)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// Fatals block startup, warnings are logged and continue.
	result := cfg.Validate()
	for _, err := range result.Warnings {
		log.Warn("config validation", "error", err)
	}
	if len(result.Fatals) > 0 {
		for _, err := range result.Fatals {
			log.Error("config validation fatal", "error", err)
		}
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "ansicraft")
	}
	return "."
}
