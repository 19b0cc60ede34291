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

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full maintenance pipeline: backup, recovery point, cleanup, report.",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(doRun())
	},
}

func doRun() int {
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

	report, err := engine.Run()
	if err != nil {
		logger.Error("maintenance run failed", zap.Error(err))
		return 1
	}

	fmt.Printf("Health score: %d\n", report.HealthScore)
	fmt.Printf("Backups: %d (%d failed)\n", report.Metrics.TotalBackups, report.Metrics.Failed)
	fmt.Printf("Storage: %s stored, %s saved by compression\n",
		humanize.Bytes(uint64(report.Storage.CompressedBytes)),
		humanize.Bytes(uint64(report.Storage.SavedBytes)))
	for _, rec := range report.Recommendations {
		fmt.Println(" -", rec)
	}
	return healthExitCode(report.HealthScore)
}

func init() {
	rootCmd.AddCommand(runCmd)
}
