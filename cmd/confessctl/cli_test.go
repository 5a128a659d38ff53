package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "confessctl.db"))
	t.Setenv("JWT_SECRET", "confessctl-test-secret")
	t.Setenv("REDIS_URL", miniredis.RunT(t).Addr())
}

func testCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"seed"}, {"prune"}, {"migrate"}, {"token"}, {"reports", "tail"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestMigrateSeedPrune(t *testing.T) {
	sqliteEnv(t)

	require.NoError(t, runMigrate(testCommand(), nil))

	seedFixture = filepath.Join("..", "..", "internal", "seed", "testdata", "campus.yml")
	t.Cleanup(func() { seedFixture = "" })
	require.NoError(t, runSeed(testCommand(), nil))

	pruneDays = 1
	t.Cleanup(func() { pruneDays = 0 })
	require.NoError(t, runPrune(testCommand(), nil))
}

func TestTokenArgs(t *testing.T) {
	assert.Error(t, tokenCmd.Args(tokenCmd, nil))
	assert.NoError(t, tokenCmd.Args(tokenCmd, []string{"user-1"}))

	sqliteEnv(t)
	require.NoError(t, runToken(testCommand(), []string{"user-1"}))
}
