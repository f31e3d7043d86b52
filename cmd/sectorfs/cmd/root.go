// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sectorfs",
	Short: "sectorfs manages files on a single block device",
	Long: `sectorfs stores files on a device image made of 512 bytes sectors.

Each file is an inode numbered after its sector. Files are written with "put",
read back with "get" and removed with "rm". All transfers go through a buffer cache,
flushed to the device when the command is done.
`,
	SilenceUsage: true,
}

var (
	config *CLIConfig

	// appFs holds device images and configuration files
	appFs = afero.NewOsFs()
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		osExit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)

	addDeviceFlag(rootCmd)
	addLogLevel(rootCmd)
	addCacheSlotsFlag(rootCmd)
	addMetricsFlag(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetFs(appFs)
	if os.Getenv("SECTORFS_CONFIG") != "" {
		viper.SetConfigFile(os.Getenv("SECTORFS_CONFIG"))
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.sectorfs")
		viper.AddConfigPath("/etc/sectorfs")
		viper.SetConfigName("sectorfs")
	}

	viper.SetDefault("device", "")
	viper.SetDefault("loglevel", "")
	viper.SetDefault("cacheslots", 0)
	viper.SetEnvPrefix("sectorfs")
	viper.AutomaticEnv() // SECTORFS_DEVICE, SECTORFS_LOGLEVEL, SECTORFS_CACHESLOTS
	if err := viper.ReadInConfig(); err == nil {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}

	var err error
	config, err = newConfig()
	if err != nil {
		logFatalln(err)
		return
	}
	config.setParams(&sectorfsFlags)
}
