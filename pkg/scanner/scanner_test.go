// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later

package scanner_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/savewarden/savewarden/pkg/changeclass"
	"github.com/savewarden/savewarden/pkg/installdir"
	"github.com/savewarden/savewarden/pkg/manifest"
	"github.com/savewarden/savewarden/pkg/platform"
	"github.com/savewarden/savewarden/pkg/roots"
	"github.com/savewarden/savewarden/pkg/scanner"
	"github.com/savewarden/savewarden/pkg/strictpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gameName = "Example Game"

func setupRoot(t *testing.T) roots.Root {
	t.Helper()
	dir := t.TempDir()
	gameDir := filepath.Join(dir, gameName)
	require.NoError(t, os.MkdirAll(gameDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(gameDir, "save.dat"), []byte("progress"), 0o644))
	return roots.Root{Path: strictpath.New(dir), Store: platform.OtherHome}
}

func baseParams(t *testing.T, root roots.Root) scanner.Params {
	t.Helper()
	ranking := installdir.New()
	ranking.Add(root.Path, root.Store, gameName, nil)

	return scanner.Params{
		Roots:       []roots.Root{root},
		ManifestDir: strictpath.New(t.TempDir()),
		Ranking:     ranking,
		Platform:    platform.Linux,
	}
}

func exampleGame() manifest.Game {
	return manifest.Game{
		Files: map[string]manifest.FileEntry{
			"<base>/save.dat": {},
		},
	}
}

func TestScanGameForBackupFindsNewFile(t *testing.T) {
	t.Parallel()

	root := setupRoot(t)
	scan := scanner.ScanGameForBackup(gameName, exampleGame(), baseParams(t, root))

	require.Len(t, scan.FoundFiles, 1)
	for _, f := range scan.FoundFiles {
		assert.Equal(t, changeclass.New, f.Change)
		assert.False(t, f.Ignored)
		assert.NotEmpty(t, f.Hash)
	}
	assert.True(t, scan.FoundAnything())
	assert.True(t, scan.FoundConstructive())
}

func TestScanGameForBackupClassifiesSameAgainstPrevious(t *testing.T) {
	t.Parallel()

	root := setupRoot(t)
	params := baseParams(t, root)

	saved := strictpath.New(filepath.Join(root.Path.Interpreted(), gameName, "save.dat"))
	hash, err := saved.Sha1()
	require.NoError(t, err)

	params.Previous = &scanner.PreviousSnapshot{
		FileHashes: map[string]string{saved.Rendered(): hash},
	}

	scan := scanner.ScanGameForBackup(gameName, exampleGame(), params)

	require.Len(t, scan.FoundFiles, 1)
	for _, f := range scan.FoundFiles {
		assert.Equal(t, changeclass.Same, f.Change)
	}
	assert.False(t, scan.FoundConstructive())
}

func TestScanGameForBackupHonorsFilterExclude(t *testing.T) {
	t.Parallel()

	root := setupRoot(t)
	params := baseParams(t, root)
	params.Filter = scanner.Filter{ExcludePathContains: []string{"save.dat"}}

	scan := scanner.ScanGameForBackup(gameName, exampleGame(), params)

	require.Len(t, scan.FoundFiles, 1)
	for _, f := range scan.FoundFiles {
		assert.True(t, f.Ignored)
	}
}

func TestScanGameForBackupSynthesizesRemovedFile(t *testing.T) {
	t.Parallel()

	root := setupRoot(t)
	params := baseParams(t, root)

	missing := strictpath.New(filepath.Join(root.Path.Interpreted(), gameName, "old-save.dat"))
	params.Previous = &scanner.PreviousSnapshot{
		FileHashes: map[string]string{missing.Rendered(): "deadbeef"},
	}

	scan := scanner.ScanGameForBackup(gameName, exampleGame(), params)

	require.Len(t, scan.FoundFiles, 2)
	removed, ok := scan.FoundFiles[missing.Rendered()]
	require.True(t, ok)
	assert.Equal(t, changeclass.Removed, removed.Change)
	assert.Equal(t, int64(0), removed.Size)
}

func TestScanGameForBackupSkipsIneligibleOsConstraint(t *testing.T) {
	t.Parallel()

	root := setupRoot(t)
	params := baseParams(t, root)
	params.Platform = platform.Windows

	windowsOnly := manifest.OsWindows
	game := manifest.Game{
		Files: map[string]manifest.FileEntry{
			"<base>/save.dat": {When: []manifest.FileConstraint{{Os: &windowsOnly}}},
		},
	}

	scan := scanner.ScanGameForBackup(gameName, game, params)
	assert.Len(t, scan.FoundFiles, 1)

	macOnly := manifest.OsMac
	game2 := manifest.Game{
		Files: map[string]manifest.FileEntry{
			"<base>/save.dat": {When: []manifest.FileConstraint{{Os: &macOnly}}},
		},
	}
	scan2 := scanner.ScanGameForBackup(gameName, game2, params)
	assert.Empty(t, scan2.FoundFiles)
}
