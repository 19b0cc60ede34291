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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reportJSON bool

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate the backup health report.",
	Run: func(cmd *cobra.Command, args []string) {
		engine, err := newEngine()
		if err != nil {
			logger.Error("failed to create backup engine", zap.Error(err))
			os.Exit(1)
		}
		report, err := engine.GenerateReport()
		if err != nil {
			fmt.Fprintln(os.Stderr, "report failed:", err)
			os.Exit(1)
		}

		if reportJSON {
			buf, _ := json.MarshalIndent(report, "", "  ")
			fmt.Println(string(buf))
			return
		}
		fmt.Printf("Health score: %d\n", report.HealthScore)
		fmt.Printf("Backups: %d total, %d completed, %d failed\n",
			report.Metrics.TotalBackups, report.Metrics.Completed, report.Metrics.Failed)
		fmt.Printf("Recovery points: %d\n", report.Metrics.RecoveryPoints)
		for _, rec := range report.Recommendations {
			fmt.Println(" -", rec)
		}
	},
}

func init() {
	reportCmd.PersistentFlags().BoolVar(&reportJSON, "json", false, "print the full report as JSON")
	rootCmd.AddCommand(reportCmd)
}
