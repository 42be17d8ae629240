package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/samples?sslmode=disable", DSN(ClientConfig{
		Host: "db", Database: "samples", User: "u", Password: "p",
	}))
	assert.Equal(t, "postgres://u:p@db:6543/x?sslmode=require", DSN(ClientConfig{
		Host: "db", Port: 6543, Database: "x", User: "u", Password: "p", SSLMode: "require",
	}))
	assert.Equal(t, "postgres://explicit", DSN(ClientConfig{DSN: "postgres://explicit", Host: "ignored"}))
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.True(t, strings.HasPrefix(names[0], "001_"))

	data, err := migrationsFS.ReadFile("migrations/" + names[0])
	require.NoError(t, err)
	sql := string(data)
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS transactions_summary",
		"CREATE TABLE IF NOT EXISTS optimal_transactions",
		"run_length_ms",
		"transaction_type",
	} {
		assert.Contains(t, sql, want)
	}
}
