/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/cafe-inventory/server/config"
	"github.com/cafe-inventory/server/internal/mq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// eventsCmd groups the stock event commands.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect stock events published by the server",
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Log stock events as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is not set")
		}
		defer queue.Close()

		logger.Info("watching stock events", zap.String("backend", cfg.MQ.Backend), zap.String("topic", cfg.MQ.Topic))
		err = queue.Watch(ctx, func(ctx context.Context, event mq.TransactionEvent) error {
			fields := []zap.Field{
				zap.Int("log_id", event.LogID),
				zap.Int("product_id", event.ProductID),
				zap.Int("user_id", event.UserID),
				zap.String("action", string(event.Action)),
				zap.Int("change", event.Change),
				zap.String("outcome", event.Outcome),
				zap.Time("recorded_at", event.RecordedAt),
			}
			if event.Quantity != nil {
				fields = append(fields, zap.Int("quantity", *event.Quantity))
			}
			logger.Info("stock event", fields...)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsWatchCmd)
}
