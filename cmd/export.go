/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cafe-inventory/server/config"
	"github.com/cafe-inventory/server/internal/db"
	"github.com/cafe-inventory/server/internal/export"
	"github.com/cafe-inventory/server/internal/storage"
	"github.com/cafe-inventory/server/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var exportKey string

// exportCmd groups the history snapshot commands.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Manage inventory history snapshots in object storage",
}

var exportHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Upload the inventory history as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		objects, err := storage.Open(cmd.Context(), cfg.Storage)
		if err != nil {
			return err
		}
		defer objects.Close()

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		exporter := export.NewExporter(store.NewInventoryLogRepository(conn), objects)
		key, rows, err := exporter.ExportHistory(cmd.Context(), exportKey)
		if err != nil {
			return err
		}

		logger.Info("history exported",
			zap.String("bucket", objects.Bucket()),
			zap.String("key", key),
			zap.Int("rows", rows))
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

var exportGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Write a stored snapshot to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		objects, err := storage.Open(cmd.Context(), cfg.Storage)
		if err != nil {
			return err
		}
		defer objects.Close()

		rc, err := objects.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer rc.Close()

		_, err = io.Copy(cmd.OutOrStdout(), rc)
		return err
	},
}

var exportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		objects, err := storage.Open(cmd.Context(), cfg.Storage)
		if err != nil {
			return err
		}
		defer objects.Close()

		infos, err := objects.List(cmd.Context(), export.KeyPrefix)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tSIZE\tMODIFIED")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%d\t%s\n", info.Key, info.Size, info.LastModified.UTC().Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var exportDeleteCmd = &cobra.Command{
	Use:   "delete KEY",
	Short: "Remove a stored snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		objects, err := storage.Open(cmd.Context(), cfg.Storage)
		if err != nil {
			return err
		}
		defer objects.Close()
		if err := objects.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "deleted %s/%s\n", objects.Bucket(), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportHistoryCmd.Flags().StringVar(&exportKey, "key", "", "object key (default history/inventory-log-<timestamp>.csv)")
	exportCmd.AddCommand(exportHistoryCmd)
	exportCmd.AddCommand(exportListCmd)
	exportCmd.AddCommand(exportGetCmd)
	exportCmd.AddCommand(exportDeleteCmd)
}
