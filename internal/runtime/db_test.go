package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/searchbrief/config"
)

func TestBuildPostgresDSN(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Postgres = config.PostgresConfig{URL: "postgres://explicit/db"}
	dsn, err := BuildPostgresDSN(cfg)
	require.NoError(t, err)
	assert.Equal(t, "postgres://explicit/db", dsn)

	cfg.Storage.Postgres = config.PostgresConfig{Host: "db", User: "brief", Password: "p@ss/word", DBName: "searchbrief", Timeout: 5 * time.Second}
	dsn, err = BuildPostgresDSN(cfg)
	require.NoError(t, err)
	assert.Equal(t, "postgres://brief:p%40ss%2Fword@db:5432/searchbrief?connect_timeout=5&sslmode=disable", dsn)
	assert.True(t, PostgresConfigured(cfg))

	cfg.Storage.Postgres = config.PostgresConfig{Host: "db"}
	_, err = BuildPostgresDSN(cfg)
	assert.Error(t, err)
	assert.False(t, PostgresConfigured(cfg))

	_, err = BuildPostgresDSN(nil)
	assert.Error(t, err)
}
