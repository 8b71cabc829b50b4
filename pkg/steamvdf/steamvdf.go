// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Core.
//
// Zaparoo Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Core.  If not, see <http://www.gnu.org/licenses/>.

// Package steamvdf reads Steam's app manifests and shortcuts.vdf, adapting
// the teacher's pkg/platforms/shared/steam (text VDF via andygrunwald/vdf)
// and internal/vdfbinary (binary VDF) to the Steam-id/shortcut-index shapes
// pkg/scanner and pkg/placeholder need (spec.md §4.5, §4.2 Steam shortcut
// start_dir substitution).
package steamvdf

import (
	"fmt"
	"os"
	"strconv"

	"github.com/andygrunwald/vdf"
	"github.com/rs/zerolog/log"
	"github.com/savewarden/savewarden/internal/vdfbinary"
	"github.com/savewarden/savewarden/pkg/placeholder"
	"github.com/savewarden/savewarden/pkg/strictpath"
)

// AppManifest is the subset of a Steam appmanifest_<id>.acf this system
// needs: the install directory name recorded at install time.
type AppManifest struct {
	AppID      uint32
	Name       string
	InstallDir string
}

// ReadAppManifest parses steamAppsDir/appmanifest_<appID>.acf.
func ReadAppManifest(steamAppsDir *strictpath.StrictPath, appID uint32) (AppManifest, bool) {
	manifestPath := steamAppsDir.Joined(fmt.Sprintf("appmanifest_%d.acf", appID))

	f, err := os.Open(manifestPath.Interpreted()) //nolint:gosec // Steam manifest files, not user input
	if err != nil {
		return AppManifest{}, false
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing app manifest")
		}
	}()

	p := vdf.NewParser(f)
	m, err := p.Parse()
	if err != nil {
		log.Warn().Err(err).Uint32("appID", appID).Msg("failed to parse app manifest")
		return AppManifest{}, false
	}

	appState, ok := m["AppState"].(map[string]any)
	if !ok {
		return AppManifest{}, false
	}
	name, _ := appState["name"].(string)
	installDir, _ := appState["installdir"].(string)

	return AppManifest{AppID: appID, Name: name, InstallDir: installDir}, true
}

// ShortcutIndex resolves a non-Steam game added via Steam's "Add a Non-Steam
// Game" shortcuts.vdf to its AppID and start directory, by game name.
type ShortcutIndex struct {
	byName map[string]placeholder.SteamShortcut
}

// LoadShortcutIndex parses shortcutsVDFPath (Steam's userdata/<id>/config/shortcuts.vdf).
func LoadShortcutIndex(shortcutsVDFPath *strictpath.StrictPath) (ShortcutIndex, error) {
	f, err := os.Open(shortcutsVDFPath.Interpreted()) //nolint:gosec // Steam config file, not user input
	if err != nil {
		return ShortcutIndex{}, fmt.Errorf("open shortcuts.vdf: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing shortcuts.vdf")
		}
	}()

	shortcuts, err := vdfbinary.ParseShortcuts(f)
	if err != nil {
		return ShortcutIndex{}, fmt.Errorf("parse shortcuts.vdf: %w", err)
	}

	byName := make(map[string]placeholder.SteamShortcut, len(shortcuts))
	for _, s := range shortcuts {
		var startDir *strictpath.StrictPath
		if s.StartDir != "" {
			startDir = strictpath.New(s.StartDir)
		}
		byName[s.AppName] = placeholder.SteamShortcut{
			ID:       s.AppID,
			StartDir: startDir,
		}
	}
	return ShortcutIndex{byName: byName}, nil
}

// Lookup returns the shortcut registered under gameName, if any.
func (idx ShortcutIndex) Lookup(gameName string) (placeholder.SteamShortcut, bool) {
	s, ok := idx.byName[gameName]
	return s, ok
}

// AppIDString renders a Steam AppID the way manifest templates (and VDF
// string maps) expect it: plain decimal, no leading zeros.
func AppIDString(appID uint32) string {
	return strconv.FormatUint(uint64(appID), 10)
}
