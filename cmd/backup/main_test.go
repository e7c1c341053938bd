package main

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	config "supermart-analytics/configs"
	"supermart-analytics/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBacksUpAndArchives(t *testing.T) {
	root := t.TempDir()
	t.Setenv("DATA_DIR", root)
	cfg := config.LoadConfig()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "cmd", "server"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "cmd", "server", "main.go"), []byte("package main"), 0o644))
	require.NoError(t, os.WriteFile(cfg.FeaturesPath, []byte(`["year"]`), 0o644))

	out := filepath.Join(root, "project.zip")
	require.NoError(t, run(cfg, root, out, logger.Nop()))

	assert.FileExists(t, filepath.Join(root, backupDirName, "main.go.bak"))
	assert.FileExists(t, filepath.Join(root, backupDirName, "feature_columns.json.bak"))

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"cmd/server/main.go", "feature_columns.json"}, names)
}
