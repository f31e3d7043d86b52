// Copyright © 2018 One Concern

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultLogLevel = "warn"

// CLIConfig describes the CLI configuration.
type CLIConfig struct {
	Device     string `json:"device" yaml:"device"`         // Device image holding the volume
	LogLevel   string `json:"loglevel" yaml:"loglevel"`     // Logging level
	CacheSlots int    `json:"cacheslots" yaml:"cacheslots"` // Sector buffers in the cache
}

func newConfig() (*CLIConfig, error) {
	var config CLIConfig
	err := viper.Unmarshal(&config)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// setParams fills in flags left unset on the command line
func (c *CLIConfig) setParams(flags *flagsT) {
	if flags.root.device == "" {
		flags.root.device = c.Device
	}
	if flags.root.logLevel == "" {
		flags.root.logLevel = c.LogLevel
	}
	if flags.root.logLevel == "" {
		flags.root.logLevel = defaultLogLevel
	}
	if flags.root.cacheSlots <= 0 {
		flags.root.cacheSlots = c.CacheSlots
	}
}

// configCmd represents the config related commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Commands to manage a config",
	Long: `Commands to manage the sectorfs CLI config.

Configuration holds the flags common to most commands, such as the device image to work with.
Flags given on the command line take precedence over SECTORFS_* environment variables,
which take precedence over the config file.`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
