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

// Package registryprovider abstracts Windows registry I/O behind a narrow
// interface (spec.md §1 "all Windows registry I/O primitives treated as an
// abstract RegistryProvider"), so pkg/scanner and pkg/restore never touch
// golang.org/x/sys/windows/registry directly. The windows build reads/writes
// the real registry; every other OS gets a no-op that reports nothing found.
package registryprovider

import "github.com/savewarden/savewarden/pkg/registryitem"

// Provider reads and writes registry keys on the active host.
type Provider interface {
	// ReadKey returns every value under item, or ok=false if the key
	// doesn't exist or can't be opened. Individual value read failures are
	// skipped, not surfaced as an error, matching the scanner's
	// log-and-skip failure model for registry access.
	ReadKey(item registryitem.Item) (registryitem.Key, bool)

	// WriteKey writes every value in key to item, creating the key if
	// absent. ignoredValues names values to skip.
	WriteKey(item registryitem.Item, key registryitem.Key, ignoredValues map[string]bool) error

	// Expand32And64BitAliases returns item plus any Wow6432Node/VirtualStore
	// variant the scanner should probe alongside it (spec.md §4.5 step 6).
	Expand32And64BitAliases(item registryitem.Item) []registryitem.Item

	// Subkeys lists the direct child key names under item, or ok=false if
	// the key doesn't exist or can't be opened. The scanner uses this to
	// walk a registry template recursively.
	Subkeys(item registryitem.Item) (names []string, ok bool)
}
