package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"confessions/internal/cache"
	"confessions/internal/config"
	"confessions/internal/notifications"

	"github.com/spf13/cobra"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect moderation reports",
}

// reportsTailCmd prints report notices as they are published.
var reportsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print moderation reports until interrupted",
	RunE:  runReportsTail,
}

func init() {
	reportsCmd.AddCommand(reportsTailCmd)
}

func loadConfigOnly() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runReportsTail(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigOnly()
	if err != nil {
		return err
	}
	if cfg.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is not set")
	}

	dialCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	rdb, err := cache.Connect(dialCtx, cfg.RedisURL)
	cancel()
	if err != nil {
		return err
	}
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	err = notifications.NewNotifier(rdb).StartReportSubscriber(ctx, func(r notifications.Report) {
		if jsonOut {
			_ = enc.Encode(r)
			return
		}
		fmt.Printf("%s  %-10s %s  reported by %s\n",
			r.ReportedAt.Format(time.RFC3339), r.Target, r.TargetID, r.ReporterID)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Listening on %s (Ctrl+C to stop)\n", notifications.ModerationChannel)
	<-ctx.Done()
	return nil
}
