package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMigrationFilesOrdering(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000002_second.up.sql", "000002_second.down.sql",
		"000001_first.up.sql", "000001_first.down.sql",
		"000003_third.up.sql", "000003_third.down.sql",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600))
	}

	up, err := GetMigrationFiles(dir, "up")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "000001_first.up.sql"),
		filepath.Join(dir, "000002_second.up.sql"),
		filepath.Join(dir, "000003_third.up.sql"),
	}, up)

	// Down migrations unwind newest first.
	down, err := GetMigrationFiles(dir, "down")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "000003_third.down.sql"),
		filepath.Join(dir, "000002_second.down.sql"),
		filepath.Join(dir, "000001_first.down.sql"),
	}, down)
}

func TestGetMigrationFilesEmptyDir(t *testing.T) {
	files, err := GetMigrationFiles(t.TempDir(), "up")
	require.NoError(t, err)
	assert.Empty(t, files)
}
