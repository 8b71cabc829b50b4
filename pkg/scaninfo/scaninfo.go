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

// Package scaninfo holds the result shape shared by pkg/scanner and
// pkg/restore (spec.md §3 ScannedFile/ScannedRegistry/ScanInfo), kept apart
// from both so neither package has to import the other just for types.
package scaninfo

import (
	"github.com/savewarden/savewarden/pkg/changeclass"
	"github.com/savewarden/savewarden/pkg/registryitem"
	"github.com/savewarden/savewarden/pkg/strictpath"
)

// ScannedFile is one file belonging to a game's scan.
type ScannedFile struct {
	Path         *strictpath.StrictPath
	Size         int64
	Hash         string
	OriginalPath *strictpath.StrictPath // pre-redirect target, set only when reading a prior backup
	Redirected   bool
	Ignored      bool
	Change       changeclass.Change
	Container    string // non-empty when the file lives inside a zip, the container's path
	Failure      error
}

// RegistryValue is one value's classification within a ScannedRegistry key.
type RegistryValue struct {
	Entry   registryitem.Entry
	Change  changeclass.Change
	Ignored bool
}

// ScannedRegistry is one registry key belonging to a game's scan.
type ScannedRegistry struct {
	Path    registryitem.Item
	Ignored bool
	Change  changeclass.Change
	Values  map[string]RegistryValue
}

// ScanInfo is one game's scan result.
type ScanInfo struct {
	GameName               string
	FoundFiles             map[string]ScannedFile // keyed by rendered path
	FoundRegistryKeys      map[string]ScannedRegistry // keyed by registry key string
	AvailableBackups       []string
	Backup                 string // the backup id this scan targets/produced, "" if none yet
	HasBackups             bool
	OnlyConstructiveBackups bool
}

// FoundAnything reports whether the scan recorded at least one non-ignored
// entry whose change isn't Removed.
func (s ScanInfo) FoundAnything() bool {
	for _, f := range s.FoundFiles {
		if !f.Ignored && f.Change != changeclass.Removed {
			return true
		}
	}
	for _, r := range s.FoundRegistryKeys {
		if !r.Ignored && r.Change != changeclass.Removed {
			return true
		}
	}
	return false
}

// FoundConstructive reports whether the scan recorded at least one file or
// registry value classified New or Different.
func (s ScanInfo) FoundConstructive() bool {
	isConstructive := func(c changeclass.Change) bool {
		return c == changeclass.New || c == changeclass.Different
	}
	for _, f := range s.FoundFiles {
		if isConstructive(f.Change) {
			return true
		}
	}
	for _, r := range s.FoundRegistryKeys {
		if isConstructive(r.Change) {
			return true
		}
		for _, v := range r.Values {
			if isConstructive(v.Change) {
				return true
			}
		}
	}
	return false
}
