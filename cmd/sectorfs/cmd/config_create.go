// Copyright © 2018 One Concern

package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

var configCreate = &cobra.Command{
	Use:   "create",
	Short: "Create a config",
	Long:  "Create a config to use for sectorfs. Config file will be placed in $HOME/.sectorfs/sectorfs.yaml",
	Run: func(cmd *cobra.Command, args []string) {
		home, err := os.UserHomeDir()
		if err != nil {
			wrapFatalln("could not get home directory for user", err)
			return
		}
		o, err := yaml.Marshal(CLIConfig{
			Device:     sectorfsFlags.root.device,
			LogLevel:   sectorfsFlags.root.logLevel,
			CacheSlots: sectorfsFlags.root.cacheSlots,
		})
		if err != nil {
			wrapFatalln("serialize config to yaml", err)
			return
		}
		dir := filepath.Join(home, ".sectorfs")
		if err = appFs.MkdirAll(dir, 0700); err != nil {
			wrapFatalln("create config directory", err)
			return
		}
		target := filepath.Join(dir, "sectorfs.yaml")
		if err = afero.WriteFile(appFs, target, o, 0600); err != nil {
			wrapFatalln("write config file", err)
			return
		}
		infoLogger.Println("config written to", target)
	},
}

func init() {
	configCmd.AddCommand(configCreate)
}
