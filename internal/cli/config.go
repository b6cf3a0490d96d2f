package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "QUARRY"

/*
loadConfig back-fills the executed command's flags from the environment
and from an optional config file. A flag given on the command line always
wins; otherwise the matching QUARRY_* variable is consulted, then the
config file. Back-filled flags count as set, so required flags can be
satisfied from any source.
*/
func loadConfig(cmd *cobra.Command, opts *RootOptions) error {
	v := viper.New()

	configFile := opts.Config
	if configFile == "" {
		configFile = os.Getenv(envPrefix + "_CONFIG")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("quarry")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "quarry"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var failed error
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if flag.Changed || !v.IsSet(flag.Name) {
			return
		}
		if err := cmd.Flags().Set(flag.Name, fmt.Sprintf("%v", v.Get(flag.Name))); err != nil && failed == nil {
			failed = fmt.Errorf("apply %s from config: %w", flag.Name, err)
		}
	})
	return failed
}
