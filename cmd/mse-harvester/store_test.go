package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmethakanbesel/mse-harvester/internal/config"
	"github.com/ahmethakanbesel/mse-harvester/internal/entity"
)

func TestOpenStore_SQLite(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "mse.db"),
	}}

	repo, closeStore, err := openStore(context.Background(), cfg)
	require.NoError(t, err)
	defer closeStore()

	ctx := context.Background()
	require.NoError(t, repo.UpsertEntity(ctx, "ALK", entity.NeverUpdated))
	all, err := repo.ListEntities(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: "mysql", DSN: "x"}}
	_, _, err := openStore(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestRootCommand_Flags(t *testing.T) {
	f := rootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, f)
	assert.Empty(t, f.DefValue)
	assert.Equal(t, "mse-harvester", rootCmd.Use)
}
