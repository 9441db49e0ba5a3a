package config

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadDefaults verifies the values used when no environment variables are set.
func TestLoadDefaults(t *testing.T) {
	t.Setenv("DBUSER", "dirk")
	t.Setenv("DBPWD", "bullo92")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverMySQL, cfg.DBDriver)
	assert.Equal(t, FlashCookie, cfg.FlashStore)
	assert.True(t, cfg.RequestLogging())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "dirk:bullo92@tcp(localhost:3306)/test?parseTime=true&clientFoundRows=true", cfg.DSN())
}

// TestLoadOverrides verifies that environment variables override the defaults.
func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("GIN_LOGGING", "OFF")
	t.Setenv("DBDRIVER", "postgres")
	t.Setenv("DBHOST", "db:5432")
	t.Setenv("DBUSER", "contacts")
	t.Setenv("DBPWD", "secret")
	t.Setenv("DBNAME", "contacts")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.RequestLogging())
	assert.Equal(t, "postgres://contacts:secret@db:5432/contacts?sslmode=disable", cfg.DSN())
}

// TestDSNOverride verifies that an explicit DBDSN wins over the individual settings.
func TestDSNOverride(t *testing.T) {
	cfg := Config{DBDriver: DriverSQLite, DBName: "contacts", DBDSN: "file::memory:"}
	assert.Equal(t, "file::memory:", cfg.DSN())
	cfg.DBDSN = ""
	assert.Equal(t, "contacts.db", cfg.DSN())
}

// TestLoadInvalid verifies that unsupported values are rejected.
func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"DBDRIVER":    "oracle",
		"FLASH_STORE": "memcached",
		"PORT":        "0",
		"RATE_LIMIT":  "-1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

// TestMySQLDSNCountsMatchedRows verifies that the MySQL driver reports matched rather than changed
// rows, so that an update within the same microsecond still finds its contact.
func TestMySQLDSNCountsMatchedRows(t *testing.T) {
	t.Setenv("DBUSER", "dirk")
	t.Setenv("DBPWD", "bullo92")

	cfg, err := Load()
	require.NoError(t, err)
	parsed, err := mysql.ParseDSN(cfg.DSN())
	require.NoError(t, err)
	assert.True(t, parsed.ClientFoundRows)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, "localhost:3306", parsed.Addr)
}
