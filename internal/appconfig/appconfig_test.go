package appconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmptyPathReturnsZeroValue(t *testing.T) {
	f, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, File{}, f)
}

func TestLoad_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netwatchd.yaml")
	contents := "interface: eth0\nport: 9090\npromiscuous: true\nbuffer_size_mb: 128\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "eth0", f.Interface)
	assert.Equal(t, 9090, f.Port)
	assert.True(t, f.Promiscuous)
	assert.Equal(t, 128, f.BufferSizeMB)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
