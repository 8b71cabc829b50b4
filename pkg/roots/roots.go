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

// Package roots holds a user-configured Root: a filesystem location a game
// store installs into, tagged with which store it belongs to (spec.md §3).
package roots

import (
	"fmt"
	"strings"

	"github.com/savewarden/savewarden/pkg/config"
	"github.com/savewarden/savewarden/pkg/platform"
	"github.com/savewarden/savewarden/pkg/strictpath"
)

// Root is a configured store root.
type Root struct {
	Path        *strictpath.StrictPath
	Store       platform.Store
	Credentials SMBCredentials
}

// IsSMB reports whether Path names a UNC/SMB location rather than a local
// filesystem path.
func (r Root) IsSMB() bool {
	if r.Path == nil {
		return false
	}
	raw := r.Path.Raw()
	return strings.HasPrefix(raw, `\\`) || strings.HasPrefix(raw, "smb://") || strings.HasPrefix(raw, "//")
}

// InterpretedPath satisfies pkg/placeholder.RootLike.
func (r Root) InterpretedPath() string {
	return r.Path.Interpreted()
}

// StoreValue satisfies pkg/placeholder.RootLike.
func (r Root) StoreValue() platform.Store {
	return r.Store
}

// FromConfig resolves a slice of config.RootConfig into Roots, tolerating
// an unrecognized store string by falling back to platform.OtherStore
// rather than failing the whole list. Root configuration also accepts the
// synthetic root-only store names (otherHome, otherWine, ...) that a
// manifest constraint never names directly.
func FromConfig(entries []config.RootConfig) []Root {
	roots := make([]Root, 0, len(entries))
	for _, e := range entries {
		roots = append(roots, Root{
			Path:        strictpath.New(e.Path),
			Store:       parseStore(e.Store),
			Credentials: SMBCredentials{Username: e.Username, Password: e.Password},
		})
	}
	return roots
}

func parseStore(raw string) platform.Store {
	switch platform.Store(raw) {
	case platform.Steam, platform.Gog, platform.GogGalaxy, platform.Epic,
		platform.Heroic, platform.Legendary, platform.Lutris, platform.Microsoft,
		platform.Origin, platform.Ea, platform.Prime, platform.Uplay,
		platform.OtherHome, platform.OtherWine, platform.OtherWindows,
		platform.OtherLinux, platform.OtherMac:
		return platform.Store(raw)
	default:
		return platform.OtherStore
	}
}

// SMBTarget is the parsed form of a root's SMB/UNC path, ready to dial.
type SMBTarget struct {
	Server    string
	ShareName string
	FilePath  string
}

// ParseSMBTarget splits a UNC path like `\\server\share\sub\dir` (or its
// forward-slash equivalent) into dial target components, the same
// segmentation the teacher's DownloadSMBFile applies to a smb:// URL path.
func ParseSMBTarget(raw string) (SMBTarget, error) {
	normalized := strings.ReplaceAll(raw, "\\", "/")
	normalized = strings.TrimPrefix(normalized, "smb://")
	normalized = strings.TrimPrefix(normalized, "//")

	parts := strings.SplitN(normalized, "/", 3)
	if len(parts) < 2 {
		return SMBTarget{}, fmt.Errorf("invalid SMB root format: %s", raw)
	}

	target := SMBTarget{Server: parts[0], ShareName: parts[1]}
	if len(parts) == 3 {
		target.FilePath = parts[2]
	}
	return target, nil
}
