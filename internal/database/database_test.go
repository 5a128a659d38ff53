package database

import (
	"testing"

	"confessions/internal/config"
	"confessions/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_SQLiteMigrates(t *testing.T) {
	cfg := &config.Config{
		Env:        "test",
		DBDriver:   "sqlite",
		SQLitePath: ":memory:",
	}

	db, err := Connect(cfg)
	require.NoError(t, err)

	for _, m := range PersistentModels() {
		assert.True(t, db.Migrator().HasTable(m), "missing table for %T", m)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestConfigurePool(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestMigrate_UsernameUniqueOnlyWhenSet(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	// Fresh sign-ins have no username and must not collide.
	require.NoError(t, db.Create(&models.User{}).Error)
	require.NoError(t, db.Create(&models.User{}).Error)

	require.NoError(t, db.Create(&models.User{Username: "night_owl"}).Error)
	assert.Error(t, db.Create(&models.User{Username: "night_owl"}).Error)
}

func TestPostgresDSN(t *testing.T) {
	dsn := postgresDSN(&config.Config{
		DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "confessions",
	})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=confessions sslmode=disable", dsn)
}
