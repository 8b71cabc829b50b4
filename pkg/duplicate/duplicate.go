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

// Package duplicate tracks which files and registry entries appear in more
// than one game's scan, so the UI/operation layer can flag duplicates
// (spec.md §4.7).
package duplicate

import (
	"github.com/savewarden/savewarden/pkg/helpers/syncutil"
	"github.com/savewarden/savewarden/pkg/scaninfo"
)

// Status is a claim's duplication state.
type Status int

const (
	// Unique means fewer than two games claim this item.
	Unique Status = iota
	// Resolved means multiple games claim it but at most one has it enabled.
	Resolved
	// Duplicate means more than one enabled game claims it.
	Duplicate
)

func evaluate(claims map[string]bool) Status {
	if len(claims) < 2 {
		return Unique
	}
	enabled := 0
	for _, e := range claims {
		if e {
			enabled++
		}
	}
	if enabled <= 1 {
		return Resolved
	}
	return Duplicate
}

type count struct {
	nonUnique int
	resolved  int
}

func (c count) evaluate() Status {
	switch {
	case c.nonUnique == 0:
		return Unique
	case c.nonUnique == c.resolved:
		return Resolved
	default:
		return Duplicate
	}
}

func (c *count) add(other count) {
	c.nonUnique += other.nonUnique
	c.resolved += other.resolved
}

// registryValueKey identifies one named value within a registry key.
type registryValueKey struct {
	key   string
	value string
}

// Detector is the inverted-index duplicate tracker. Construct it with New:
// the zero value's index maps are nil and AddGame would panic on them.
// Safe for concurrent use.
type Detector struct {
	mu syncutil.RWMutex

	files          map[string]map[string]bool // rendered path -> game -> enabled
	registryKeys   map[string]map[string]bool // registry key -> game -> enabled
	registryValues map[registryValueKey]map[string]bool

	gameFiles          map[string]map[string]bool // game -> set of rendered paths it claims
	gameRegistryKeys   map[string]map[string]bool
	gameRegistryValues map[string]map[registryValueKey]bool

	gameCounts map[string]count
}

// New returns an empty Detector.
func New() *Detector {
	return &Detector{
		files:              make(map[string]map[string]bool),
		registryKeys:       make(map[string]map[string]bool),
		registryValues:     make(map[registryValueKey]map[string]bool),
		gameFiles:          make(map[string]map[string]bool),
		gameRegistryKeys:   make(map[string]map[string]bool),
		gameRegistryValues: make(map[string]map[registryValueKey]bool),
		gameCounts:         make(map[string]count),
	}
}

// filePath picks the key a scanned file claims: its pre-redirect
// original path when the scan came from a restoration pass, or its plain
// path otherwise, so two games backing up the same underlying save are
// flagged as duplicates even when their redirects differ.
func filePath(f scaninfo.ScannedFile) string {
	if f.OriginalPath != nil {
		return f.OriginalPath.Rendered()
	}
	return f.Path.Rendered()
}

// AddGame records scan's claims for gameName and returns the set of other
// games whose duplication status may have changed as a result, so callers
// can refresh their display for exactly those games.
func (d *Detector) AddGame(scan scaninfo.ScanInfo, gameEnabled bool) map[string]bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	stale := d.removeGameLocked(scan.GameName)
	stale[scan.GameName] = true

	claimedFiles := make(map[string]bool, len(scan.FoundFiles))
	for _, f := range scan.FoundFiles {
		path := filePath(f)
		if games, ok := d.files[path]; ok && len(games) == 1 {
			for g := range games {
				stale[g] = true
			}
		}
		if d.files[path] == nil {
			d.files[path] = make(map[string]bool)
		}
		d.files[path][scan.GameName] = gameEnabled && !f.Ignored
		claimedFiles[path] = true
	}
	d.gameFiles[scan.GameName] = claimedFiles

	claimedKeys := make(map[string]bool, len(scan.FoundRegistryKeys))
	claimedValues := make(map[registryValueKey]bool)
	for keyPath, reg := range scan.FoundRegistryKeys {
		if games, ok := d.registryKeys[keyPath]; ok && len(games) == 1 {
			for g := range games {
				stale[g] = true
			}
		}
		if d.registryKeys[keyPath] == nil {
			d.registryKeys[keyPath] = make(map[string]bool)
		}
		d.registryKeys[keyPath][scan.GameName] = gameEnabled && !reg.Ignored
		claimedKeys[keyPath] = true

		for name, value := range reg.Values {
			rvk := registryValueKey{key: keyPath, value: name}
			if games, ok := d.registryValues[rvk]; ok && len(games) == 1 {
				for g := range games {
					stale[g] = true
				}
			}
			if d.registryValues[rvk] == nil {
				d.registryValues[rvk] = make(map[string]bool)
			}
			d.registryValues[rvk][scan.GameName] = gameEnabled && !value.Ignored
			claimedValues[rvk] = true
		}
	}
	d.gameRegistryKeys[scan.GameName] = claimedKeys
	d.gameRegistryValues[scan.GameName] = claimedValues

	for g := range stale {
		d.gameCounts[g] = d.countDuplicatedItemsForLocked(g)
	}

	delete(stale, scan.GameName)
	return stale
}

// RemoveGame drops gameName's claims entirely and returns the set of other
// games whose duplication status may have changed.
func (d *Detector) RemoveGame(gameName string) map[string]bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	stale := d.removeGameLocked(gameName)
	for g := range stale {
		d.gameCounts[g] = d.countDuplicatedItemsForLocked(g)
	}
	return stale
}

func (d *Detector) removeGameLocked(gameName string) map[string]bool {
	stale := make(map[string]bool)
	delete(d.gameCounts, gameName)

	for path := range d.gameFiles[gameName] {
		if games, ok := d.files[path]; ok {
			delete(games, gameName)
			for g := range games {
				stale[g] = true
			}
		}
	}
	delete(d.gameFiles, gameName)

	for keyPath := range d.gameRegistryKeys[gameName] {
		if games, ok := d.registryKeys[keyPath]; ok {
			delete(games, gameName)
			for g := range games {
				stale[g] = true
			}
		}
	}
	delete(d.gameRegistryKeys, gameName)

	for rvk := range d.gameRegistryValues[gameName] {
		if games, ok := d.registryValues[rvk]; ok {
			delete(games, gameName)
			for g := range games {
				stale[g] = true
			}
		}
	}
	delete(d.gameRegistryValues, gameName)

	return stale
}

func (d *Detector) countDuplicatedItemsForLocked(gameName string) count {
	var c count
	tally := func(claims map[string]bool) {
		if _, ok := claims[gameName]; !ok || len(claims) < 2 {
			return
		}
		c.nonUnique++
		if evaluate(claims) != Duplicate {
			c.resolved++
		}
	}
	for _, games := range d.files {
		tally(games)
	}
	for _, games := range d.registryKeys {
		tally(games)
	}
	for _, games := range d.registryValues {
		tally(games)
	}
	return c
}

// IsFileDuplicated reports file's duplication status, resolving its key
// through the same original-path rule AddGame uses.
func (d *Detector) IsFileDuplicated(f scaninfo.ScannedFile) Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return evaluate(d.files[filePath(f)])
}

// IsRegistryKeyDuplicated reports keyPath's duplication status.
func (d *Detector) IsRegistryKeyDuplicated(keyPath string) Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return evaluate(d.registryKeys[keyPath])
}

// IsRegistryValueDuplicated reports the duplication status of one named
// value under keyPath.
func (d *Detector) IsRegistryValueDuplicated(keyPath, valueName string) Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return evaluate(d.registryValues[registryValueKey{key: keyPath, value: valueName}])
}

// IsGameDuplicated reports gameName's overall duplication status, from the
// cached per-game tally AddGame/RemoveGame maintain.
func (d *Detector) IsGameDuplicated(gameName string) Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.gameCounts[gameName].evaluate()
}

// Overall reports the aggregate duplication status across every game the
// detector currently knows about.
func (d *Detector) Overall() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var total count
	for _, c := range d.gameCounts {
		total.add(c)
	}
	return total.evaluate()
}
