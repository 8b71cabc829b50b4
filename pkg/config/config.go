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

// Package config holds the engine's on-disk configuration: store roots,
// retention policy, backup format, path redirects, and manifest location.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml/v2"
	deadlock "github.com/sasha-s/go-deadlock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RootConfig is a user-configured store root as it appears on disk, before
// being resolved into pkg/roots.Root (Store stays a plain string here;
// pkg/roots.FromConfig maps an unrecognized one to platform.OtherStore
// rather than failing the whole list).
type RootConfig struct {
	Path  string `toml:"path"`
	Store string `toml:"store"`

	// Username and Password authenticate a UNC/SMB root (pkg/roots.Root.IsSMB);
	// both are empty for a local path, which falls back to anonymous/guest
	// access if the path does turn out to name a share.
	Username string `toml:"username,omitempty"`
	Password string `toml:"password,omitempty"`
}

// RedirectKind selects whether a RedirectConfig applies during backup,
// restore, or both.
type RedirectKind string

const (
	RedirectBidirectional RedirectKind = "bidirectional"
	RedirectBackup        RedirectKind = "backup"
	RedirectRestore       RedirectKind = "restore"
)

// RedirectConfig rewrites a source prefix to a target prefix, per spec.md
// §4.6 restoration scan / scenario 4.
type RedirectConfig struct {
	Source string       `toml:"source"`
	Target string       `toml:"target"`
	Kind   RedirectKind `toml:"kind"`
}

// Retention mirrors spec.md §3's Retention value.
type Retention struct {
	Full          uint8 `toml:"full"`
	Differential  uint8 `toml:"differential"`
	ForceNewFull  bool  `toml:"force_new_full"`
}

// BackupFormat selects directory-tree or zip-archive storage.
type BackupFormat string

const (
	FormatSimple BackupFormat = "simple"
	FormatZip    BackupFormat = "zip"
)

// Compression selects the zip compression method. Only None and Deflate are
// implemented by pkg/archivefmt; see DESIGN.md for why Bzip2/Zstd are
// recognized config values that fail fast instead of silently downgrading.
type Compression string

const (
	CompressionNone    Compression = "none"
	CompressionDeflate Compression = "deflate"
	CompressionBzip2   Compression = "bzip2"
	CompressionZstd    Compression = "zstd"
)

// IgnoreConfig is the user-maintained BackupFilter (spec.md §4.5, supplement
// #5 in SPEC_FULL.md): glob excludes plus substring-in-path excludes.
type IgnoreConfig struct {
	ExcludeGlobs           []string `toml:"exclude_globs,omitempty,multiline"`
	ExcludePathContains    []string `toml:"exclude_path_contains,omitempty,multiline"`
	ExcludeStoreScreenshots bool    `toml:"exclude_store_screenshots"`
}

// CustomGame lets a user declare an ad hoc game outside the community
// manifest (SPEC_FULL.md supplement #2).
type CustomGame struct {
	Name     string   `toml:"name"`
	Files    []string `toml:"files,omitempty,multiline"`
	Registry []string `toml:"registry,omitempty,multiline"`
}

// ManifestConfig records where the manifest came from and its last ETag, so
// a future refresh (owned by the excluded HTTP collaborator) can send a
// conditional request; this engine only ever reads the field back.
type ManifestConfig struct {
	Path string `toml:"path"`
	URL  string `toml:"url,omitempty"`
	ETag string `toml:"etag,omitempty"`
}

// Values is the full on-disk config shape.
type Values struct {
	ConfigSchema int              `toml:"config_schema"`
	DeviceID     string           `toml:"device_id"`
	DebugLogging bool             `toml:"debug_logging"`
	WorkerCount  int              `toml:"worker_count,omitempty"`
	OnlyConstructive bool         `toml:"only_constructive_backups"`
	BackupBase   string           `toml:"backup_base"`
	Format       BackupFormat     `toml:"format"`
	Compression  Compression      `toml:"compression"`
	Retention    Retention        `toml:"retention"`
	Manifest     ManifestConfig   `toml:"manifest"`
	Roots        []RootConfig     `toml:"roots,omitempty"`
	Redirects    []RedirectConfig `toml:"redirects,omitempty"`
	Ignore       IgnoreConfig     `toml:"ignore"`
	CustomGames  []CustomGame     `toml:"custom_games,omitempty"`
	DisabledGames []string        `toml:"disabled_games,omitempty,multiline"`
}

// BaseDefaults is the config written the first time the engine runs,
// mirroring the teacher's BaseDefaults package var.
var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Format:       FormatSimple,
	Compression:  CompressionDeflate,
	Retention: Retention{
		Full:         1,
		Differential: 0,
	},
	Manifest: ManifestConfig{
		Path: ManifestFile,
	},
}

// Instance is the loaded, mutation-guarded config handle passed around the
// engine, mirroring the teacher's pkg/config.Instance.
type Instance struct {
	cfgPath string
	vals    Values
	mu      deadlock.RWMutex
}

// NewConfig loads (or creates, with defaults) the config file under
// configDir, following the teacher's NewConfig flow.
//
//nolint:gocritic // config struct copied for immutability, as in the teacher
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		cfgPath: cfgPath,
		vals:    defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Str("path", cfgPath).Msg("saving new default config to disk")

		if err := os.MkdirAll(filepath.Dir(cfgPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	}

	if err := cfg.Load(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Load re-reads the config file from disk.
func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var newVals Values
	if err := toml.Unmarshal(data, &newVals); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().
			Int("got", newVals.ConfigSchema).
			Int("want", SchemaVersion).
			Msg("config schema version mismatch")
		return errors.New("schema version mismatch")
	}

	c.vals = newVals
	return nil
}

// Save writes the current config to disk, generating a device id on first
// save the same way the teacher's Service.DeviceID is generated.
func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	if c.vals.DeviceID == "" {
		c.vals.DeviceID = uuid.New().String()
		log.Info().Str("deviceID", c.vals.DeviceID).Msg("generated new device id")
	}

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Values returns a copy of the currently loaded config.
func (c *Instance) Values() Values {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals
}

// DebugLogging reports the current debug-logging flag.
func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

// SetDebugLogging flips debug logging, adjusting the global zerolog level to
// match the way the teacher's SetDebugLogging does.
func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// WorkerCount returns the configured worker-pool size, or 0 to mean "use the
// platform default" (host logical CPU count, resolved by pkg/operation).
func (c *Instance) WorkerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.WorkerCount
}

// OnlyConstructiveBackups reports whether backups with no constructive
// change should be skipped (spec.md §4.5 / Open Question in §9).
func (c *Instance) OnlyConstructiveBackups() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.OnlyConstructive
}
