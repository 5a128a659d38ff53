package main

import (
	"encoding/json"
	"fmt"
	"os"

	"confessions/internal/seed"

	"github.com/spf13/cobra"
)

var (
	seedOpts    seed.Options
	seedFixture string
	seedClear   bool
)

// seedCmd fills the database with demo data.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with demo users, confessions and interactions",
	Long: `Seed writes demo data through the same code paths the API uses, so
every counter matches its records.

With --fixtures the given YAML file is applied instead of random data.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedOpts.Users, "users", 20, "Number of users")
	seedCmd.Flags().IntVar(&seedOpts.Posts, "posts", 60, "Number of confessions")
	seedCmd.Flags().IntVar(&seedOpts.CommentsPerPost, "comments", 3, "Comments per confession")
	seedCmd.Flags().IntVar(&seedOpts.FollowsPerUser, "follows", 4, "Follow attempts per user")
	seedCmd.Flags().IntVar(&seedOpts.MaxDays, "days", 25, "Spread confession dates over this many days")
	seedCmd.Flags().Int64Var(&seedOpts.Seed, "seed", 0, "Random seed (0 picks one)")
	seedCmd.Flags().StringVar(&seedFixture, "fixtures", "", "YAML fixture file")
	seedCmd.Flags().BoolVar(&seedClear, "clear", false, "Delete existing data first")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, db, err := connect()
	if err != nil {
		return err
	}
	defer closeDB(db)

	if cfg.IsProduction() {
		return fmt.Errorf("refusing to seed a production database")
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	seeder := seed.NewSeeder(db)
	if seedClear {
		if err := seeder.ClearAll(); err != nil {
			return err
		}
	}

	var sum seed.Summary
	if seedFixture != "" {
		f, err := seed.LoadFixturesFile(seedFixture)
		if err != nil {
			return err
		}
		sum, err = seeder.Apply(ctx, f)
		if err != nil {
			return err
		}
	} else {
		sum, err = seeder.Random(seedOpts)
		if err != nil {
			return err
		}
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(sum)
	}
	fmt.Printf("Seeded %d users, %d confessions, %d reactions, %d comments, %d follows\n",
		sum.Users, sum.Posts, sum.Reactions, sum.Comments, sum.Follows)
	return nil
}
