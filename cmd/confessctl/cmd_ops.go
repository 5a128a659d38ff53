package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"confessions/internal/cache"
	"confessions/internal/config"
	"confessions/internal/database"
	"confessions/internal/middleware"
	"confessions/internal/models"
	"confessions/internal/repository"
	"confessions/internal/retention"

	"github.com/spf13/cobra"
)

var pruneDays int

// pruneCmd runs one retention sweep outside the server schedule.
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete confessions older than the retention window",
	RunE:  runPrune,
}

// migrateCmd applies the schema. Production servers never migrate on start.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

var tokenTTL time.Duration

// tokenCmd issues a bearer token for local testing.
var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a bearer token for a user id",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	pruneCmd.Flags().IntVar(&pruneDays, "days", 0, "Override RETENTION_DAYS")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, db, err := connect()
	if err != nil {
		return err
	}
	defer closeDB(db)

	days := cfg.RetentionDays
	if pruneDays > 0 {
		days = pruneDays
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	sweeper := retention.NewSweeper(
		repository.NewPruner[models.Confession](db),
		repository.NewPruner[models.Comment](db),
		repository.NewPruner[models.Reaction](db),
		feedCache(cmd, cfg),
		time.Duration(days)*24*time.Hour,
	)
	res, err := sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(res)
	}
	fmt.Printf("Removed %d confessions, %d comments, %d reactions older than %s\n",
		res.Confessions, res.Comments, res.Reactions, res.Cutoff.Format(time.RFC3339))
	return nil
}

// feedInvalidator drops the server's cached feed after a manual prune.
type feedInvalidator struct {
	cache *cache.Client
	limit int
}

func (f feedInvalidator) InvalidateFeed(ctx context.Context) {
	f.cache.Invalidate(ctx, cache.FeedKey(f.limit))
}

// feedCache connects to Redis when configured. Without it the cached feed
// simply expires on its own TTL.
func feedCache(cmd *cobra.Command, cfg *config.Config) retention.FeedInvalidator {
	if cfg.RedisURL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: redis unavailable, cached feed will expire on its own:", err)
		return nil
	}
	return feedInvalidator{cache: cache.New(rdb), limit: cfg.FeedLimit}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	_, db, err := connect()
	if err != nil {
		return err
	}
	defer closeDB(db)

	if err := database.Migrate(db); err != nil {
		return err
	}
	fmt.Println("Schema is up to date")
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigOnly()
	if err != nil {
		return err
	}
	if cfg.IsProduction() {
		return fmt.Errorf("refusing to issue tokens in production")
	}

	token, err := middleware.IssueToken(args[0], cfg.JWTSecret, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
