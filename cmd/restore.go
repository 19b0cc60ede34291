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

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	backupID   string
	restoreDir string
)

// restoreCmd represents the restore command
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a backup.",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(doRestore())
	},
}

func doRestore() int {
	engine, err := newEngine()
	if err != nil {
		logger.Error("failed to create backup engine", zap.Error(err))
		return 1
	}
	lock, err := acquireLock()
	if err != nil {
		logger.Error(err.Error())
		return 1
	}
	defer lock.Release()

	if err := engine.Restore(backupID, restoreDir); err != nil {
		fmt.Fprintln(os.Stderr, "restore failed:", err)
		return 1
	}
	fmt.Println("restored backup", backupID)
	return 0
}

func init() {
	restoreCmd.PersistentFlags().StringVar(&backupID, "backup-id", "", "The ID of the backup to restore")
	restoreCmd.PersistentFlags().StringVar(&restoreDir, "dest-directory", "", "The destination directory to restore to (default is the configured root)")
	_ = restoreCmd.MarkPersistentFlagRequired("backup-id")
	rootCmd.AddCommand(restoreCmd)
}
