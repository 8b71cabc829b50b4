// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later

package launcherhints_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/savewarden/savewarden/pkg/launcherhints"
	"github.com/savewarden/savewarden/pkg/platform"
	"github.com/savewarden/savewarden/pkg/roots"
	"github.com/savewarden/savewarden/pkg/strictpath"
	"github.com/savewarden/savewarden/pkg/titlefinder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanFindsNothingWhenDirectoryDoesNotExist(t *testing.T) {
	t.Parallel()

	root := roots.Root{Path: strictpath.New(filepath.Join(t.TempDir(), "nonexistent")), Store: platform.Heroic}
	legendary := strictpath.New(filepath.Join(t.TempDir(), "nonexistent"))

	src := launcherhints.Scan(root, titlefinder.New(), legendary)
	_, ok := src.InstallDir("anything")
	assert.False(t, ok)
}

func TestScanFindsLegendaryGame(t *testing.T) {
	t.Parallel()

	heroicDir := t.TempDir()
	legendaryDir := t.TempDir()
	writeFile(t, filepath.Join(legendaryDir, "installed.json"), `{
		"windows-game-app": {
			"app_name": "windows-game-app",
			"title": "windows-game",
			"platform": "Windows",
			"install_path": "C:\\Users\\me\\Games\\Heroic\\windows-game"
		}
	}`)
	writeFile(t, filepath.Join(heroicDir, "GamesConfig", "windows-game-app.json"), `{
		"windows-game-app": {
			"winePrefix": "/home/me/Games/Heroic/Prefixes/windows-game",
			"wineVersion": {"type": "wine"}
		}
	}`)

	finder := titlefinder.New()
	finder.Add("windows-game", nil, nil, true, true)

	root := roots.Root{Path: strictpath.New(heroicDir), Store: platform.Heroic}
	src := launcherhints.Scan(root, finder, strictpath.New(legendaryDir))

	dir, ok := src.InstallDir("windows-game")
	require.True(t, ok)
	assert.Equal(t, `C:\Users\me\Games\Heroic\windows-game`, dir.Raw())

	prefix, ok := src.WinePrefix("windows-game")
	require.True(t, ok)
	assert.Equal(t, "/home/me/Games/Heroic/Prefixes/windows-game", prefix.Raw())
}

func TestScanFindsGogProtonGame(t *testing.T) {
	t.Parallel()

	heroicDir := t.TempDir()
	writeFile(t, filepath.Join(heroicDir, "gog_store", "library.json"), `{
		"games": [{"app_name": "12345", "title": "proton-game"}]
	}`)
	writeFile(t, filepath.Join(heroicDir, "gog_store", "installed.json"), `{
		"installed": [{"appName": "12345", "platform": "windows", "install_path": "/home/root/Games/proton-game"}]
	}`)
	writeFile(t, filepath.Join(heroicDir, "GamesConfig", "12345.json"), `{
		"12345": {
			"winePrefix": "/home/root/Games/Heroic/Prefixes/proton-game",
			"wineVersion": {"type": "proton"}
		}
	}`)

	finder := titlefinder.New()
	finder.Add("proton-game", nil, nil, true, true)

	root := roots.Root{Path: strictpath.New(heroicDir), Store: platform.Heroic}
	src := launcherhints.Scan(root, finder, strictpath.New(filepath.Join(t.TempDir(), "nonexistent")))

	dir, ok := src.InstallDir("proton-game")
	require.True(t, ok)
	assert.Equal(t, "/home/root/Games/proton-game", dir.Raw())

	prefix, ok := src.WinePrefix("proton-game")
	require.True(t, ok)
	assert.Equal(t, "/home/root/Games/Heroic/Prefixes/proton-game/pfx", prefix.Raw())
}

func TestScanMemorizesUnrecognizedTitleVerbatim(t *testing.T) {
	t.Parallel()

	heroicDir := t.TempDir()
	writeFile(t, filepath.Join(heroicDir, "gog_store", "library.json"), `{
		"games": [{"app_name": "1", "title": "Mystery Game"}]
	}`)
	writeFile(t, filepath.Join(heroicDir, "gog_store", "installed.json"), `{
		"installed": [{"appName": "1", "platform": "linux", "install_path": "/home/root/Games/mystery"}]
	}`)

	root := roots.Root{Path: strictpath.New(heroicDir), Store: platform.Heroic}
	src := launcherhints.Scan(root, titlefinder.New(), strictpath.New(filepath.Join(t.TempDir(), "nonexistent")))

	_, ok := src.InstallDir("Mystery Game")
	assert.True(t, ok, "unrecognized titles are memorized verbatim rather than dropped")
}
