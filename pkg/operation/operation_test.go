// Zaparoo Core
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later

package operation_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savewarden/savewarden/pkg/backup/layout"
	"github.com/savewarden/savewarden/pkg/changeclass"
	"github.com/savewarden/savewarden/pkg/config"
	"github.com/savewarden/savewarden/pkg/duplicate"
	"github.com/savewarden/savewarden/pkg/installdir"
	"github.com/savewarden/savewarden/pkg/manifest"
	"github.com/savewarden/savewarden/pkg/operation"
	"github.com/savewarden/savewarden/pkg/platform"
	"github.com/savewarden/savewarden/pkg/roots"
	"github.com/savewarden/savewarden/pkg/strictpath"
)

const gameName = "Example Game"

func newConfig(t *testing.T, backupBase string, retention config.Retention, onlyConstructive bool) *config.Instance {
	t.Helper()
	dir := t.TempDir()
	vals := config.BaseDefaults
	vals.BackupBase = backupBase
	vals.Retention = retention
	vals.OnlyConstructive = onlyConstructive
	vals.Manifest.Path = filepath.Join(dir, "manifest.yaml")
	cfg, err := config.NewConfig(dir, vals)
	require.NoError(t, err)
	return cfg
}

func newDriver(t *testing.T, root roots.Root, cfg *config.Instance, backupBase string) (*operation.Driver, manifest.Manifest) {
	t.Helper()
	ranking := installdir.New()
	ranking.Add(root.Path, root.Store, gameName, nil)

	m := manifest.Manifest{
		gameName: {Files: map[string]manifest.FileEntry{"<base>/save.dat": {}}},
	}

	return operation.New(
		cfg,
		m,
		layout.New(strictpath.New(backupBase)),
		nil,
		[]roots.Root{root},
		nil,
		ranking,
		nil,
	), m
}

func writeLiveFile(t *testing.T, root roots.Root, content string) *strictpath.StrictPath {
	t.Helper()
	gameDir := filepath.Join(root.Path.Interpreted(), gameName)
	require.NoError(t, os.MkdirAll(gameDir, 0o755))
	path := filepath.Join(gameDir, "save.dat")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return strictpath.New(path)
}

func setupRoot(t *testing.T) roots.Root {
	t.Helper()
	return roots.Root{Path: strictpath.New(t.TempDir()), Store: platform.OtherHome}
}

func TestBackupGameWritesSoloBackupOnFirstRun(t *testing.T) {
	t.Parallel()

	root := setupRoot(t)
	writeLiveFile(t, root, "save-v1")
	backupBase := t.TempDir()
	cfg := newConfig(t, backupBase, config.Retention{Full: 1}, false)
	driver, _ := newDriver(t, root, cfg, backupBase)

	scan, info, err := driver.BackupGame(gameName, true, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Empty(t, info.FailedFiles)
	require.Len(t, scan.FoundFiles, 1)
	for _, f := range scan.FoundFiles {
		assert.Equal(t, changeclass.New, f.Change)
	}

	g, ok := driver.Layout.TryGameLayout(gameName)
	require.True(t, ok)
	assert.True(t, g.HasBackups())
	assert.True(t, g.Mapping().HasBackup(layout.Solo))
}

func TestBackupGameSecondRunRecordsDifferential(t *testing.T) {
	t.Parallel()

	root := setupRoot(t)
	writeLiveFile(t, root, "save-v1")
	backupBase := t.TempDir()
	cfg := newConfig(t, backupBase, config.Retention{Full: 1, Differential: 3}, false)
	driver, _ := newDriver(t, root, cfg, backupBase)

	_, _, err := driver.BackupGame(gameName, true, nil, nil)
	require.NoError(t, err)

	writeLiveFile(t, root, "save-v2")
	scan, info, err := driver.BackupGame(gameName, true, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Empty(t, info.FailedFiles)
	for _, f := range scan.FoundFiles {
		assert.Equal(t, changeclass.Different, f.Change)
	}

	g, ok := driver.Layout.TryGameLayout(gameName)
	require.True(t, ok)
	full, diff := g.Mapping().LatestBackup()
	require.NotNil(t, full)
	require.NotNil(t, diff, "a second backup with Differential retention available should record a differential child")
}

func TestBackupGameOnlyConstructiveSkipsUnchangedRescan(t *testing.T) {
	t.Parallel()

	root := setupRoot(t)
	writeLiveFile(t, root, "save-v1")
	backupBase := t.TempDir()
	cfg := newConfig(t, backupBase, config.Retention{Full: 1, Differential: 3}, true)
	driver, _ := newDriver(t, root, cfg, backupBase)

	_, info, err := driver.BackupGame(gameName, true, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, info)

	// nothing changed on disk between runs, and only_constructive_backups
	// is set: the second call should plan nothing at all.
	scan, info, err := driver.BackupGame(gameName, true, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, info)
	for _, f := range scan.FoundFiles {
		assert.Equal(t, changeclass.Same, f.Change)
	}

	g, ok := driver.Layout.TryGameLayout(gameName)
	require.True(t, ok)
	full, diff := g.Mapping().LatestBackup()
	require.NotNil(t, full)
	assert.Nil(t, diff)
}

func TestRestoreGameWritesLatestBackupContentBack(t *testing.T) {
	t.Parallel()

	root := setupRoot(t)
	live := writeLiveFile(t, root, "save-v1")
	backupBase := t.TempDir()
	cfg := newConfig(t, backupBase, config.Retention{Full: 1, Differential: 3}, false)
	driver, _ := newDriver(t, root, cfg, backupBase)

	_, _, err := driver.BackupGame(gameName, true, nil, nil)
	require.NoError(t, err)

	writeLiveFile(t, root, "save-v2")
	_, _, err = driver.BackupGame(gameName, true, nil, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(live.Interpreted(), []byte("corrupted"), 0o644))

	scan, info, err := driver.RestoreGame(gameName, layout.Latest(), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Empty(t, info.FailedFiles)
	assert.NotEmpty(t, scan.FoundFiles)

	restored, err := os.ReadFile(live.Interpreted())
	require.NoError(t, err)
	assert.Equal(t, "save-v2", string(restored))
}

func TestRestoreGameRejectsUnknownBackupID(t *testing.T) {
	t.Parallel()

	root := setupRoot(t)
	writeLiveFile(t, root, "save-v1")
	backupBase := t.TempDir()
	cfg := newConfig(t, backupBase, config.Retention{Full: 1}, false)
	driver, _ := newDriver(t, root, cfg, backupBase)

	_, _, err := driver.BackupGame(gameName, true, nil, nil)
	require.NoError(t, err)

	_, _, err = driver.RestoreGame(gameName, layout.Named("does-not-exist"), nil, nil)
	require.ErrorIs(t, err, layout.ErrUnknownBackup)
}

func TestRestoreGameOnGameWithNoBackupsFails(t *testing.T) {
	t.Parallel()

	root := setupRoot(t)
	backupBase := t.TempDir()
	cfg := newConfig(t, backupBase, config.Retention{Full: 1}, false)
	driver, _ := newDriver(t, root, cfg, backupBase)

	_, _, err := driver.RestoreGame(gameName, layout.Latest(), nil, nil)
	require.Error(t, err)
}

func TestBackupAllAppliesSerializedAndReportsEveryGame(t *testing.T) {
	t.Parallel()

	root := setupRoot(t)
	backupBase := t.TempDir()
	cfg := newConfig(t, backupBase, config.Retention{Full: 1}, false)

	ranking := installdir.New()
	ranking.Add(root.Path, root.Store, "Game A", nil)
	ranking.Add(root.Path, root.Store, "Game B", nil)

	for _, name := range []string{"Game A", "Game B"} {
		gameDir := filepath.Join(root.Path.Interpreted(), name)
		require.NoError(t, os.MkdirAll(gameDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(gameDir, "save.dat"), []byte("progress"), 0o644))
	}

	m := manifest.Manifest{
		"Game A": {Files: map[string]manifest.FileEntry{"<base>/save.dat": {}}},
		"Game B": {Files: map[string]manifest.FileEntry{"<base>/save.dat": {}}},
	}
	driver := operation.New(cfg, m, layout.New(strictpath.New(backupBase)), nil, []roots.Root{root}, nil, ranking, nil)

	var results []operation.BatchResult
	err := driver.BackupAll(context.Background(), []string{"Game A", "Game B"}, nil, func(r operation.BatchResult) {
		results = append(results, r)
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, name := range []string{"Game A", "Game B"} {
		g, ok := driver.Layout.TryGameLayout(name)
		require.True(t, ok, "expected a persisted mapping for %s", name)
		assert.True(t, g.HasBackups())
	}
}

func TestBackupAllTracksDuplicatesAcrossGamesClaimingTheSamePath(t *testing.T) {
	t.Parallel()

	root := setupRoot(t)
	gameDir := filepath.Join(root.Path.Interpreted(), "Shared")
	require.NoError(t, os.MkdirAll(gameDir, 0o755))
	shared := filepath.Join(gameDir, "save.dat")
	require.NoError(t, os.WriteFile(shared, []byte("progress"), 0o644))

	backupBase := t.TempDir()
	cfg := newConfig(t, backupBase, config.Retention{Full: 1}, false)

	ranking := installdir.New()
	ranking.Add(root.Path, root.Store, "Game A", nil)
	ranking.Add(root.Path, root.Store, "Game B", nil)

	// both games' manifest entries resolve to the same absolute path: the
	// template names the "Shared" folder under the one root directly, with
	// no install-dir placeholder in it.
	claimTemplate := map[string]manifest.FileEntry{"<root>/Shared/save.dat": {}}
	m := manifest.Manifest{
		"Game A": {Files: claimTemplate},
		"Game B": {Files: claimTemplate},
	}
	driver := operation.New(cfg, m, layout.New(strictpath.New(backupBase)), nil, []roots.Root{root}, nil, ranking, nil)

	enabled := map[string]bool{"Game A": true, "Game B": true}
	err := driver.BackupAll(context.Background(), []string{"Game A", "Game B"}, enabled, nil)
	require.NoError(t, err)

	assert.Equal(t, duplicate.Duplicate, driver.Duplicates.IsGameDuplicated("Game A"))
	assert.Equal(t, duplicate.Duplicate, driver.Duplicates.IsGameDuplicated("Game B"))
}

func TestBackupGameDisabledStillTracksDuplicatesButSkipsWrite(t *testing.T) {
	t.Parallel()

	root := setupRoot(t)
	writeLiveFile(t, root, "save-v1")
	backupBase := t.TempDir()
	cfg := newConfig(t, backupBase, config.Retention{Full: 1}, false)
	driver, _ := newDriver(t, root, cfg, backupBase)

	_, info, err := driver.BackupGame(gameName, false, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, info)

	_, ok := driver.Layout.TryGameLayout(gameName)
	assert.False(t, ok, "a disabled game's scan must not be persisted")
}

func TestRestoreAllRestoresEveryGameIndependently(t *testing.T) {
	t.Parallel()

	root := setupRoot(t)
	backupBase := t.TempDir()
	cfg := newConfig(t, backupBase, config.Retention{Full: 1}, false)

	ranking := installdir.New()
	ranking.Add(root.Path, root.Store, "Game A", nil)
	ranking.Add(root.Path, root.Store, "Game B", nil)

	live := make(map[string]string)
	for _, name := range []string{"Game A", "Game B"} {
		gameDir := filepath.Join(root.Path.Interpreted(), name)
		require.NoError(t, os.MkdirAll(gameDir, 0o755))
		path := filepath.Join(gameDir, "save.dat")
		require.NoError(t, os.WriteFile(path, []byte(name+"-progress"), 0o644))
		live[name] = path
	}

	m := manifest.Manifest{
		"Game A": {Files: map[string]manifest.FileEntry{"<base>/save.dat": {}}},
		"Game B": {Files: map[string]manifest.FileEntry{"<base>/save.dat": {}}},
	}
	driver := operation.New(cfg, m, layout.New(strictpath.New(backupBase)), nil, []roots.Root{root}, nil, ranking, nil)

	require.NoError(t, driver.BackupAll(context.Background(), []string{"Game A", "Game B"}, nil, nil))

	for _, path := range live {
		require.NoError(t, os.WriteFile(path, []byte("corrupted"), 0o644))
	}

	var results []operation.BatchResult
	err := driver.RestoreAll(context.Background(), []string{"Game A", "Game B"}, layout.Latest(), func(r operation.BatchResult) {
		results = append(results, r)
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for name, path := range live {
		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, name+"-progress", string(content))
	}
}

func TestBackupAllRespectsCancellation(t *testing.T) {
	t.Parallel()

	root := setupRoot(t)
	writeLiveFile(t, root, "save-v1")
	backupBase := t.TempDir()
	cfg := newConfig(t, backupBase, config.Retention{Full: 1}, false)
	driver, _ := newDriver(t, root, cfg, backupBase)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := driver.BackupAll(ctx, []string{gameName}, nil, nil)
	require.ErrorIs(t, err, context.Canceled)
}
