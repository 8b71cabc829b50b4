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

package layout

import (
	"encoding/base64"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/savewarden/savewarden/pkg/strictpath"
)

// Layout is the directory of per-game GameLayout folders under one backup
// base path (spec.md §3/§4.6 BackupLayout).
type Layout struct {
	Base  *strictpath.StrictPath
	games map[string]*strictpath.StrictPath // game name -> folder
}

// New indexes base by reading every immediate subdirectory's mapping.yaml,
// the same discovery pass the original performs on startup.
func New(base *strictpath.StrictPath) *Layout {
	return &Layout{Base: base, games: discoverGames(base)}
}

func discoverGames(base *strictpath.StrictPath) map[string]*strictpath.StrictPath {
	games := make(map[string]*strictpath.StrictPath)

	names, err := base.ReadDirNames()
	if err != nil {
		return games
	}

	for _, name := range names {
		gameDir := base.Joined(name)
		if !gameDir.IsDir() {
			continue
		}
		mapping, err := LoadMapping(mappingFile(gameDir))
		if err != nil {
			log.Warn().Err(err).Str("path", mappingFile(gameDir).Interpreted()).Msg("ignoring unloadable mapping")
			continue
		}
		games[mapping.Name] = gameDir
	}

	return games
}

func generateTotalRename(originalName string) string {
	encoded := strings.ReplaceAll(base64.StdEncoding.EncodeToString([]byte(originalName)), "/", safeChar)
	return "backup-renamed-" + encoded
}

// GameFolder resolves gameName's backup directory: its already-known folder
// if one exists, or a freshly escaped (and, if that collapses to nothing
// readable, totally renamed) folder name under Base.
func (l *Layout) GameFolder(gameName string) *strictpath.StrictPath {
	if existing, ok := l.games[gameName]; ok {
		return existing
	}

	safeName := escapeFolderName(gameName)
	if strings.Count(safeName, safeChar) == len(safeName) {
		safeName = generateTotalRename(gameName)
	}
	return l.Base.Joined(safeName)
}

// Contains reports whether name has a known on-disk backup folder.
func (l *Layout) Contains(name string) bool {
	_, ok := l.games[name]
	return ok
}

// GameLayout resolves name's GameLayout, creating a fresh empty mapping if
// the game has never been backed up. If a game's manifest title changed
// but its on-disk mapping still carries the old name, the mapping's name
// field is updated in place so it doesn't show up as a brand-new game.
func (l *Layout) GameLayout(name string) *GameLayout {
	path := l.GameFolder(name)

	loaded, err := Load(path)
	if err != nil {
		return &GameLayout{Path: path, mapping: NewMapping(name)}
	}
	if loaded.mapping.Name != name {
		log.Info().Str("from", loaded.mapping.Name).Str("to", name).Msg("updating renamed game")
		loaded.mapping.Name = name
	}
	return loaded
}

// TryGameLayout resolves name's GameLayout only if a mapping already exists
// on disk for it.
func (l *Layout) TryGameLayout(name string) (*GameLayout, bool) {
	path := l.GameFolder(name)
	loaded, err := Load(path)
	if err != nil {
		return nil, false
	}
	if loaded.mapping.Name != name {
		loaded.mapping.Name = name
	}
	return loaded, true
}

// RestorableGames lists, sorted by name, every game whose folder holds a
// loadable mapping.yaml (or that Remember recorded). A mapping with no
// recorded backups is still listed.
func (l *Layout) RestorableGames() []string {
	out := make([]string, 0, len(l.games))
	for name := range l.games {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Forget removes gameName from the in-memory index (its on-disk folder is
// left for the caller to delete, if that's what was requested).
func (l *Layout) Forget(gameName string) {
	delete(l.games, gameName)
}

// Remember records gameName's folder, called after a first-ever backup for
// a game creates path.
func (l *Layout) Remember(gameName string, path *strictpath.StrictPath) {
	l.games[gameName] = path
}
