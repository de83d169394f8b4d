package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flexschema/internal/backend/memory"
	"github.com/roach88/flexschema/internal/backend/sqlite"
)

// chdir isolates the search for flexschema.yaml from the developer's
// working directory and home.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", dir)
	return dir
}

func TestDefaults(t *testing.T) {
	chdir(t)
	c, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, c.Backend)
	assert.Equal(t, "flexschema.db", c.SQLite.Path)
	assert.Equal(t, "flexschema", c.Mongo.Database)
	assert.Equal(t, "schemas", c.Schemas)
	assert.Equal(t, 10, c.PageSize)
	assert.False(t, c.DocumentGuard)

	level, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestConfigFileDiscovered(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flexschema.yaml"), []byte(
		"backend: memory\npage_size: 25\nlog_level: debug\nsqlite:\n  path: other.db\n"), 0o644))

	c, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, c.Backend)
	assert.Equal(t, 25, c.PageSize)
	assert.Equal(t, "other.db", c.SQLite.Path)

	level, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestExplicitFileMustExist(t *testing.T) {
	dir := chdir(t)
	_, err := Load(New(), filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestPrecedence(t *testing.T) {
	dir := chdir(t)
	file := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte("backend: memory\npage_size: 25\nmongo:\n  database: fromfile\n"), 0o644))

	t.Setenv("FLEXSCHEMA_PAGE_SIZE", "30")
	t.Setenv("FLEXSCHEMA_MONGO_DATABASE", "fromenv")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Int("page-size", 0, "")
	require.NoError(t, cmd.Flags().Set("page-size", "40"))

	v := New()
	require.NoError(t, v.BindPFlag("page_size", cmd.Flags().Lookup("page-size")))

	c, err := Load(v, file)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, c.Backend, "file beats default")
	assert.Equal(t, "fromenv", c.Mongo.Database, "env beats file")
	assert.Equal(t, 40, c.PageSize, "flag beats env")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"unknown backend", Config{Backend: "redis", LogLevel: "info"}, "unknown backend"},
		{"sqlite without path", Config{Backend: BackendSQLite, LogLevel: "info"}, "sqlite.path"},
		{"mongo without uri", Config{Backend: BackendMongo, Mongo: MongoConfig{Database: "x"}, LogLevel: "info"}, "mongo.uri"},
		{"negative page size", Config{Backend: BackendMemory, PageSize: -1, LogLevel: "info"}, "page_size"},
		{"bad log level", Config{Backend: BackendMemory, LogLevel: "loud"}, "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	c := Config{Backend: BackendMemory, LogLevel: "warn"}
	require.NoError(t, c.Validate())
	assert.Equal(t, 10, c.PageSize, "zero page size means the default")
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	c := Config{Backend: BackendMemory}
	b, err := c.OpenBackend(ctx)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, b)
	require.NoError(t, b.Close())

	c = Config{Backend: BackendSQLite, SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "cfg.db")}}
	b, err = c.OpenBackend(ctx)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, b)
	require.NoError(t, b.Close())

	c = Config{Backend: "redis"}
	_, err = c.OpenBackend(ctx)
	assert.Error(t, err)
}

func TestORMOptions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Len(t, (&Config{}).ORMOptions(logger), 1)
	assert.Len(t, (&Config{DocumentGuard: true}).ORMOptions(logger), 2)
}
