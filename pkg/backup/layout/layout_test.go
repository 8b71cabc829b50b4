// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later

package layout_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/savewarden/savewarden/pkg/backup/layout"
	"github.com/savewarden/savewarden/pkg/strictpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriveFolderNameAssignsAndReuses(t *testing.T) {
	t.Parallel()

	m := layout.NewMapping("Example Game")
	first := m.DriveFolderName("C:")
	second := m.DriveFolderName("C:")
	assert.Equal(t, first, second)
	assert.Equal(t, "drive-C", first)

	assert.Equal(t, "drive-0", m.DriveFolderName(""))
}

func TestGameFileResolvesUnderBackupDir(t *testing.T) {
	t.Parallel()

	m := layout.NewMapping("Example Game")
	base := strictpath.New("/backups/Example Game")
	original := strictpath.New(`C:\Users\me\save.dat`)

	resolved := m.GameFile(base, original, "backup-20260730T120000Z")
	assert.Equal(t, "/backups/Example Game/backup-20260730T120000Z/drive-C/Users/me/save.dat", resolved.Rendered())
}

func TestMappingSaveAndLoadRoundTrips(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := strictpath.New(filepath.Join(dir, "mapping.yaml"))

	m := layout.NewMapping("Example Game")
	m.DriveFolderName("C:")
	m.Backups = append(m.Backups, &layout.FullBackup{
		Name:  "backup-20260730T120000Z",
		When:  time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC),
		Files: map[string]layout.FileEntry{"drive-C/save.dat": {Hash: "abc123", Size: 42}},
	})
	require.NoError(t, m.Save(file))

	loaded, err := layout.LoadMapping(file)
	require.NoError(t, err)
	assert.Equal(t, "Example Game", loaded.Name)
	assert.Equal(t, "C:", loaded.Drives["drive-C"])
	require.Len(t, loaded.Backups, 1)
	assert.Equal(t, "abc123", loaded.Backups[0].Files["drive-C/save.dat"].Hash)
}

func TestGameLayoutFindByID(t *testing.T) {
	t.Parallel()

	m := layout.NewMapping("Example Game")
	full := &layout.FullBackup{Name: "backup-1", When: time.Now()}
	diff := &layout.DifferentialBackup{Name: "backup-2", When: time.Now()}
	full.Children = append(full.Children, diff)
	m.Backups = append(m.Backups, full)

	g := layout.NewGameLayout(strictpath.New(t.TempDir()), m)

	latestFull, latestDiff, ok := g.FindByID(layout.Latest())
	require.True(t, ok)
	assert.Equal(t, full, latestFull)
	assert.Equal(t, diff, latestDiff)

	foundFull, foundDiff, ok := g.FindByID(layout.Named("backup-2"))
	require.True(t, ok)
	assert.Equal(t, full, foundFull)
	assert.Equal(t, diff, foundDiff)

	_, _, ok = g.FindByID(layout.Named("does-not-exist"))
	assert.False(t, ok)

	assert.Equal(t, layout.Latest(), g.VerifyID(layout.Named("does-not-exist")))
	assert.Equal(t, layout.Named("backup-2"), g.VerifyID(layout.Named("backup-2")))
}

func TestGameLayoutRemoveBackupDropsChildren(t *testing.T) {
	t.Parallel()

	m := layout.NewMapping("Example Game")
	full := &layout.FullBackup{Name: "backup-1", When: time.Now()}
	full.Children = append(full.Children, &layout.DifferentialBackup{Name: "backup-2", When: time.Now()})
	m.Backups = append(m.Backups, full)

	g := layout.NewGameLayout(strictpath.New(t.TempDir()), m)
	assert.True(t, g.RemoveBackup("backup-1"))
	assert.False(t, g.HasBackups())
}

func TestLayoutGameFolderEscapesUnsafeNames(t *testing.T) {
	t.Parallel()

	base := strictpath.New(t.TempDir())
	l := layout.New(base)

	folder := l.GameFolder(`Weird: Game/Name?`)
	assert.NotContains(t, folder.Rendered(), ":")
	assert.NotContains(t, folder.Rendered(), "?")
}

func TestLayoutDiscoversExistingGameFolders(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	gameDir := filepath.Join(base, "Example Game")
	require.NoError(t, os.MkdirAll(gameDir, 0o755))

	m := layout.NewMapping("Example Game")
	require.NoError(t, m.Save(strictpath.New(filepath.Join(gameDir, "mapping.yaml"))))

	l := layout.New(strictpath.New(base))
	assert.True(t, l.Contains("Example Game"))
	assert.Contains(t, l.RestorableGames(), "Example Game")
}
