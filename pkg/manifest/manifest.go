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

// Package manifest holds the community-maintained per-game declaration
// (spec.md §3 Manifest model): where save files and registry entries may
// live, under which OS/store constraints, plus identifiers used by
// pkg/titlefinder.
package manifest

import (
	"fmt"

	"github.com/savewarden/savewarden/pkg/platform"
	"gopkg.in/yaml.v3"
)

// Os names an operating-system constraint. Unrecognized values decode as
// OsOther rather than failing manifest parsing, mirroring the original's
// #[serde(other)] fallback.
type Os string

const (
	OsWindows Os = "windows"
	OsLinux   Os = "linux"
	OsMac     Os = "mac"
	OsOther   Os = "other"
)

// Matches reports whether a game file/registry entry constrained to os is
// eligible to scan on host.
func (o Os) Matches(host platform.OS) bool {
	switch o {
	case OsWindows:
		return host == platform.Windows
	case OsLinux:
		return host == platform.Linux
	case OsMac:
		return host == platform.Mac
	default:
		return true
	}
}

// UnmarshalYAML implements the #[serde(other)] fallback: any value the
// manifest author didn't anticipate decodes as OsOther instead of erroring
// out the whole file.
func (o *Os) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode os constraint: %w", err)
	}
	switch Os(raw) {
	case OsWindows, OsLinux, OsMac:
		*o = Os(raw)
	default:
		*o = OsOther
	}
	return nil
}

// Store is an alias of platform.Store: manifest file/registry constraints
// name the same store identifiers a Root is configured with, so the two
// layers share one enum rather than keeping parallel lists in sync.
type Store = platform.Store

// storeDecode is the set of store names a manifest constraint may name
// directly; the synthetic root-only stores (OtherHome, OtherWine, ...) never
// appear in a manifest file and fall back to platform.OtherStore like any
// other unrecognized value.
var storeDecode = map[platform.Store]bool{
	platform.Steam: true, platform.Gog: true, platform.GogGalaxy: true, platform.Epic: true,
	platform.Heroic: true, platform.Legendary: true, platform.Lutris: true, platform.Microsoft: true,
	platform.Origin: true, platform.Ea: true, platform.Prime: true, platform.Uplay: true,
}

// decodeStoreYAML applies the other-tolerant fallback shared by Os and Tag
// to a raw store string, used by FileConstraint/RegistryConstraint below.
func decodeStoreYAML(value *yaml.Node) (Store, error) {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return "", fmt.Errorf("decode store constraint: %w", err)
	}
	if storeDecode[platform.Store(raw)] {
		return platform.Store(raw), nil
	}
	return platform.OtherStore, nil
}

// Tag classifies what kind of data a file/registry entry carries.
type Tag string

const (
	TagSave   Tag = "save"
	TagConfig Tag = "config"
	TagOther  Tag = "other"
)

// UnmarshalYAML applies the other-tolerant fallback.
func (t *Tag) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode tag: %w", err)
	}
	switch Tag(raw) {
	case TagSave, TagConfig:
		*t = Tag(raw)
	default:
		*t = TagOther
	}
	return nil
}

// FileConstraint limits a GameFileEntry's eligibility to an OS and/or store.
// A nil pointer field means "unconstrained on this axis".
type FileConstraint struct {
	Os    *Os
	Store *Store
}

// UnmarshalYAML decodes Store through decodeStoreYAML's other-tolerant
// fallback; Store can't carry its own UnmarshalYAML method since it's an
// alias of platform.Store, a type this package doesn't own.
func (c *FileConstraint) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Os    *Os        `yaml:"os"`
		Store *yaml.Node `yaml:"store"`
	}
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode file constraint: %w", err)
	}
	c.Os = raw.Os
	if raw.Store != nil {
		store, err := decodeStoreYAML(raw.Store)
		if err != nil {
			return err
		}
		c.Store = &store
	}
	return nil
}

// RegistryConstraint limits a GameRegistryEntry's eligibility to a store.
type RegistryConstraint struct {
	Store *Store
}

// UnmarshalYAML mirrors FileConstraint.UnmarshalYAML.
func (c *RegistryConstraint) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Store *yaml.Node `yaml:"store"`
	}
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode registry constraint: %w", err)
	}
	if raw.Store != nil {
		store, err := decodeStoreYAML(raw.Store)
		if err != nil {
			return err
		}
		c.Store = &store
	}
	return nil
}

// FileEntry is one path-template's metadata within a Game.
type FileEntry struct {
	Tags []Tag            `yaml:"tags,omitempty"`
	When []FileConstraint `yaml:"when,omitempty"`
}

// RegistryEntry is one key-template's metadata within a Game.
type RegistryEntry struct {
	Tags []Tag                `yaml:"tags,omitempty"`
	When []RegistryConstraint `yaml:"when,omitempty"`
}

// InstallDirEntry is presently an empty marker: the key's presence in the
// map is the hint, matching the original's GameInstallDirEntry struct.
type InstallDirEntry struct{}

// SteamMetadata carries the game's Steam AppID, when known.
type SteamMetadata struct {
	ID *uint32 `yaml:"id,omitempty"`
}

// GogMetadata carries the game's GOG product id, when known. Added relative
// to the distilled spec's Game shape per SPEC_FULL.md's identifier
// supplement.
type GogMetadata struct {
	ID *uint32 `yaml:"id,omitempty"`
}

// Game is one manifest entry.
type Game struct {
	Files      map[string]FileEntry       `yaml:"files,omitempty"`
	InstallDir map[string]InstallDirEntry `yaml:"installDir,omitempty"`
	Registry   map[string]RegistryEntry   `yaml:"registry,omitempty"`
	Steam      *SteamMetadata             `yaml:"steam,omitempty"`
	Gog        *GogMetadata               `yaml:"gog,omitempty"`
	Aliases    []string                   `yaml:"aliases,omitempty"`
}

// Manifest maps game name to Game.
type Manifest map[string]Game

// FromCustomGame builds a Game from a user-declared custom game (no
// per-entry tags/constraints, matching the original's From<CustomGame>).
func FromCustomGame(name string, files, registryKeys []string) (string, Game) {
	fileEntries := make(map[string]FileEntry, len(files))
	for _, f := range files {
		fileEntries[f] = FileEntry{}
	}
	registryEntries := make(map[string]RegistryEntry, len(registryKeys))
	for _, r := range registryKeys {
		registryEntries[r] = RegistryEntry{}
	}
	return name, Game{Files: fileEntries, Registry: registryEntries}
}

// LoadFromString parses manifest YAML content, isolated from file I/O so
// tests and in-memory fixtures don't need a filesystem.
func LoadFromString(content string) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal([]byte(content), &m); err != nil {
		return nil, fmt.Errorf("manifest invalid: %w", err)
	}
	if m == nil {
		m = Manifest{}
	}
	return m, nil
}
