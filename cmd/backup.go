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
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	listBackupHeaders         = []string{"ID", "Type", "Status", "Files", "Size", "Created"}
	listRecoveryPointsHeaders = []string{"ID", "Backup ID", "Verified", "Created", "Description"}
	backupType                string
)

// backupCmd represents the backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Perform backup tasks.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.Help(); err != nil {
			logger.Error(err.Error())
		}
	},
}

// backupRunCmd represents the backup run command
var backupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backup immediately.",
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
		rec, err := engine.CreateBackup(backupType)
		_ = lock.Release()
		if err != nil {
			fmt.Fprintln(os.Stderr, "backup failed:", err)
			os.Exit(1)
		}
		fmt.Printf("created backup %s: %d files, %s stored\n",
			rec.ID, len(rec.Files), humanize.Bytes(uint64(rec.CompressedSize)))
	},
}

// backupListCmd represents the backup list command
var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all current backups.",
	Run: func(cmd *cobra.Command, args []string) {
		engine, err := newEngine()
		if err != nil {
			logger.Error("failed to create backup engine", zap.Error(err))
			os.Exit(1)
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader(listBackupHeaders)
		for _, rec := range engine.ListBackups() {
			table.Append([]string{
				rec.ID,
				rec.Type,
				rec.Status,
				strconv.Itoa(len(rec.Files)),
				humanize.Bytes(uint64(rec.CompressedSize)),
				rec.Timestamp.Format("2006-01-02 15:04:05"),
			})
		}
		table.Render()
	},
}

var backupListRecoveryPointCmd = &cobra.Command{
	Use:   "list-recovery-points",
	Short: "List all recovery points.",
	Run: func(cmd *cobra.Command, args []string) {
		engine, err := newEngine()
		if err != nil {
			logger.Error("failed to create backup engine", zap.Error(err))
			os.Exit(1)
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader(listRecoveryPointsHeaders)
		for _, rp := range engine.ListRecoveryPoints() {
			table.Append([]string{
				rp.ID,
				rp.BackupID,
				strconv.FormatBool(rp.Verified),
				rp.Timestamp.Format("2006-01-02 15:04:05"),
				rp.Description,
			})
		}
		table.Render()
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupRunCmd.PersistentFlags().StringVar(&backupType, "type", "manual", "The backup type to record")
	backupCmd.AddCommand(backupRunCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupListRecoveryPointCmd)
}
