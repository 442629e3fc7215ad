package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/antgroup/zit/signing"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Core.ConflictMarkerLength)
	require.Equal(t, 8, cfg.Core.SnapshotConcurrency)
	mode, err := cfg.Signing.ParseMode()
	require.NoError(t, err)
	require.Equal(t, signing.ModeKeep, mode)
}

func TestLoadOverlaysFileOnDefault(t *testing.T) {
	dir := t.TempDir()
	contents := `
[user]
name = "Ada Lovelace"
email = "ada@example.com"

[signing]
backend = "gpg"
mode = "force"
key = "ABCDEF"

[core]
conflictMarkerLength = 9
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(contents), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", cfg.User.Name)
	require.Equal(t, "ada@example.com", cfg.User.Email)
	require.Equal(t, "gpg", cfg.Signing.Backend)
	require.Equal(t, "ABCDEF", cfg.Signing.Key)
	require.Equal(t, 9, cfg.Core.ConflictMarkerLength)
	// Untouched by the file, so the default survives the overlay.
	require.Equal(t, 8, cfg.Core.SnapshotConcurrency)

	mode, err := cfg.Signing.ParseMode()
	require.NoError(t, err)
	require.Equal(t, signing.ModeForce, mode)
}

func TestSigningParseModeRejectsUnknownValue(t *testing.T) {
	s := Signing{Mode: "nonsense"}
	_, err := s.ParseMode()
	require.Error(t, err)
	require.True(t, IsBadConfigKey(err))
}

func TestSaveRoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.User.Name = "Grace Hopper"
	cfg.User.Email = "grace@example.com"
	require.NoError(t, Save(dir, cfg))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "Grace Hopper", loaded.User.Name)
	require.Equal(t, "grace@example.com", loaded.User.Email)
}
