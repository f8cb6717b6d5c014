package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, 10, cfg.Records.DefaultPageSize)
	assert.Equal(t, 300*time.Millisecond, cfg.Records.SearchDebounce)
	assert.Equal(t, InventorySnapshotCurrent, cfg.Reports.InventorySnapshot)
	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
}

func TestLoadInventorySnapshotFallsBackToCurrent(t *testing.T) {
	chdirTemp(t)
	t.Setenv("REPORTS_INVENTORY_SNAPSHOT", "yesterday")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, InventorySnapshotCurrent, cfg.Reports.InventorySnapshot)
}

func TestLoadReadsEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("MAIL_REPORT_RECIPIENTS", "jefa@escuela.mx, direccion@escuela.mx ,")
	t.Setenv("REPORTS_INVENTORY_SNAPSHOT", "windowed")
	t.Setenv("RECORDS_SEARCH_DEBOUNCE", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"jefa@escuela.mx", "direccion@escuela.mx"}, cfg.Mail.Recipients)
	assert.Equal(t, InventorySnapshotWindowed, cfg.Reports.InventorySnapshot)
	assert.Equal(t, 300*time.Millisecond, cfg.Records.SearchDebounce)
}

func chdirTemp(t *testing.T) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
