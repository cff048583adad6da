/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/jjudge-oj/authserver/internal/events"
	"github.com/jjudge-oj/authserver/internal/mq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect account events on the message broker",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log account events as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer func() { _ = broker.Close() }()

		logger.Info("tailing events", zap.String("channel", cfg.MQ.Channel))
		err = broker.Subscribe(ctx, cfg.MQ.Channel, func(_ context.Context, msg mq.Message) error {
			event, err := events.Decode(msg)
			if err != nil {
				logger.Warn("skipping message", zap.String("id", msg.ID), zap.Error(err))
				return nil
			}
			logger.Info(event.Type,
				zap.String("id", msg.ID),
				zap.Int("user_id", event.UserID),
				zap.String("username", event.Username),
				zap.String("role", event.Role),
				zap.Time("occurred_at", event.OccurredAt),
			)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
