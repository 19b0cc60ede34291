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

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove backups beyond the retention policy.",
	Run: func(cmd *cobra.Command, args []string) {
		engine, err := newEngine()
		if err != nil {
			logger.Error("failed to create backup engine", zap.Error(err))
			os.Exit(1)
		}
		lock, err := acquireLock()
		if err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
		result, err := engine.Cleanup()
		_ = lock.Release()
		if err != nil {
			fmt.Fprintln(os.Stderr, "cleanup failed:", err)
			os.Exit(1)
		}
		fmt.Printf("removed %d backups, reclaimed %s\n",
			result.RemovedCount, humanize.Bytes(uint64(result.ReclaimedBytes)))
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}
