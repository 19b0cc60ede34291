// This file is part of cvforge-backup
//
// Copyright (C) 2024  CVForge
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cvforge/cvforge-backup/pkg/backup"
	"github.com/cvforge/cvforge-backup/pkg/lockfile"
	"github.com/cvforge/cvforge-backup/pkg/registry"
)

const (
	defaultPort = 9000
	httpPrefix  = "http://"
	localhost   = "127.0.0.1"

	lockFileName = ".cvforge-backup.lock"
	lockTimeout  = 30 * time.Second
)

var (
	cfgFile string
	addr    string
	debug   bool
	logger  *zap.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cvforge-backup",
	Short: "CVForge backup agent.",
	Long:  `CVForge backup agent is a CLI application that protects the CVForge data artifacts with verified, compressed, retained backups.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.Help(); err != nil {
			fmt.Println(err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if debug {
			logger.Error(err.Error())
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cvforge-backup.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug (default is false)")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "listening address of agent server.")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	newLogger := zap.NewProduction
	if debug {
		newLogger = zap.NewDevelopment
	}
	var err error
	if logger, err = newLogger(); err != nil {
		panic(err)
	}

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}

		// Search config in home directory with name ".cvforge-backup" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".cvforge-backup")
	}

	// Set default value for config
	viper.SetDefault("port", defaultPort)
	viper.SetDefault("root_dir", ".")
	viper.SetDefault("backup_dir", "backups")
	viper.SetDefault("compression", true)
	viper.SetDefault("compression_threshold", backup.DefaultCompressionThreshold)
	viper.SetDefault("verification", true)

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		logger.Info("Using config file: " + viper.ConfigFileUsed())
	}

	if addr == "" {
		addr = httpPrefix + strings.Join([]string{localhost, viper.GetString("port")}, ":")
	}
}

// newEngine builds the backup engine from the effective configuration.
func newEngine() (*backup.Engine, error) {
	policies := backup.DefaultPolicies()
	var keep map[string]int
	if err := viper.UnmarshalKey("retention", &keep); err == nil {
		for t, k := range keep {
			policies[t] = registry.RetentionPolicy{Keep: k}
		}
	}

	cfg := backup.Config{
		RootDir:              viper.GetString("root_dir"),
		BackupDir:            viper.GetString("backup_dir"),
		Sources:              viper.GetStringSlice("sources"),
		Policies:             policies,
		CompressionEnabled:   viper.GetBool("compression"),
		CompressionThreshold: viper.GetInt64("compression_threshold"),
		VerificationEnabled:  viper.GetBool("verification"),
		MaxStorageBytes:      viper.GetInt64("max_storage_bytes"),
	}
	return backup.New(cfg, backup.WithLogger(logger))
}

// acquireLock takes the cross-process advisory lock all mutating commands
// hold for their whole invocation.
func acquireLock() (*lockfile.Lock, error) {
	l := lockfile.New(filepath.Join(viper.GetString("backup_dir"), lockFileName))
	if err := l.Acquire(lockTimeout); err != nil {
		return nil, fmt.Errorf("another backup or restore is in progress: %w", err)
	}
	return l, nil
}

// healthExitCode maps a health score to the process exit code.
func healthExitCode(score int) int {
	if score >= backup.HealthyScore {
		return 0
	}
	return 1
}
