package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattsolo1/grove-core/util/pathutil"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mattsolo1/grove-mdpad/pkg/repository"
	"github.com/mattsolo1/grove-mdpad/pkg/service"
)

var cfgFlag *pflag.Flag

func InitConfig() {
	if cfgFlag != nil && cfgFlag.Value.String() != "" {
		viper.SetConfigFile(cfgFlag.Value.String())
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configDir := filepath.Join(home, ".config", "mdpad")
		viper.AddConfigPath(configDir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("MDPAD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	SetDefaults(viper.GetViper())

	// A missing config file is fine, everything has a default.
	_ = viper.ReadInConfig()
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	home := os.Getenv("HOME")
	v.SetDefault("home_dir", filepath.Join(home, "mdpad"))
	v.SetDefault("data_dir", filepath.Join(home, ".local", "share", "mdpad"))
	v.SetDefault("extensions", repository.DefaultExtensions)
	v.SetDefault("excluded_dirs", repository.DefaultExcludedDirs)
	v.SetDefault("autosave_delay", "1s")
	v.SetDefault("editor_debounce", "500ms")
	v.SetDefault("listen_addr", "127.0.0.1:7357")
	v.SetDefault("log_level", "warn")
	v.SetDefault("watch", true)
}

// Load decodes the settings in v into a service configuration.
func Load(v *viper.Viper) (*service.Config, error) {
	var cfg service.Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	var err error
	if cfg.HomeDir, err = pathutil.Expand(cfg.HomeDir); err != nil {
		return nil, fmt.Errorf("expand home_dir: %w", err)
	}
	if cfg.DataDir, err = pathutil.Expand(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("expand data_dir: %w", err)
	}
	return &cfg, nil
}

func AddGlobalFlags(cmd *cobra.Command) {
	// The standard root command may already define --config.
	if cmd.PersistentFlags().Lookup("config") == nil {
		cmd.PersistentFlags().String("config", "", "config file (default is $HOME/.config/mdpad/config.yaml)")
	}
	cfgFlag = cmd.PersistentFlags().Lookup("config")
	cmd.PersistentFlags().String("home", "", "notes directory")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("home_dir", cmd.PersistentFlags().Lookup("home"))
	_ = viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
}
