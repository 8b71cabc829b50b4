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

// Package layout implements the on-disk backup directory structure (spec.md
// §3/§4.6): one folder per game under a backup base, a mapping.yaml
// recording drive-folder assignments and the ordered history of full and
// differential backups, and the escaping rules that keep a game's folder
// name filesystem-safe.
package layout

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/savewarden/savewarden/pkg/config"
	"github.com/savewarden/savewarden/pkg/strictpath"
	"gopkg.in/yaml.v3"
)

// Solo is the sentinel backup name used when retention keeps only a single,
// un-timestamped generation per game (spec.md §3 FullBackup.name).
const Solo = "."

const safeChar = "_"

var invalidFolderChars = []string{`\`, "/", ":", "*", "?", `"`, "<", ">", "|"}

// escapeFolderName makes name safe to use as a single path segment: leading
// and trailing dots are replaced (hidden files on Unix, a Windows Explorer
// bug with trailing dots), then every filesystem-reserved character.
func escapeFolderName(name string) string {
	escaped := name
	if strings.HasPrefix(escaped, ".") {
		escaped = safeChar + escaped[1:]
	}
	if strings.HasSuffix(escaped, ".") {
		escaped = escaped[:len(escaped)-1] + safeChar
	}
	for _, c := range invalidFolderChars {
		escaped = strings.ReplaceAll(escaped, c, safeChar)
	}
	return escaped
}

// FileEntry is the hash/size recorded for one stored file (spec.md §3
// FullBackup.files / DifferentialBackup.files value type).
type FileEntry struct {
	Hash string `yaml:"hash"`
	Size int64  `yaml:"size"`
}

// RegistryEntry is the hash recorded for a backup's registry dump, if any.
type RegistryEntry struct {
	Hash string `yaml:"hash,omitempty"`
}

// FullBackup is one full-backup generation plus its ordered differential
// children (spec.md §3).
type FullBackup struct {
	Name     string                `yaml:"name"`
	When     time.Time             `yaml:"when"`
	OS       string                `yaml:"os,omitempty"`
	Comment  string                `yaml:"comment,omitempty"`
	Locked   bool                  `yaml:"locked,omitempty"`
	Files    map[string]FileEntry  `yaml:"files"`
	Registry RegistryEntry         `yaml:"registry"`
	Children []*DifferentialBackup `yaml:"children"`
}

// DifferentialBackup is one differential generation layered on a parent
// full backup. A nil file entry means the parent's file was deleted as of
// this differential; a missing key means "inherit from parent unchanged".
type DifferentialBackup struct {
	Name     string                `yaml:"name"`
	When     time.Time             `yaml:"when"`
	OS       string                `yaml:"os,omitempty"`
	Comment  string                `yaml:"comment,omitempty"`
	Locked   bool                  `yaml:"locked,omitempty"`
	Files    map[string]*FileEntry `yaml:"files"`
	Registry *RegistryEntry        `yaml:"registry,omitempty"`
}

// Inclusion is how a differential backup relates to one file's state.
type Inclusion int

const (
	Inherited Inclusion = iota
	Included
	Excluded
)

// FileInclusion reports how this differential treats a rendered file path.
func (d *DifferentialBackup) FileInclusion(renderedPath string) Inclusion {
	entry, present := d.Files[renderedPath]
	if !present {
		return Inherited
	}
	if entry == nil {
		return Excluded
	}
	return Included
}

// OmitsRegistry reports whether this differential records that the
// registry dump was dropped relative to its parent.
func (d *DifferentialBackup) OmitsRegistry() bool {
	return d.Registry != nil && d.Registry.Hash == ""
}

func isZipName(name string) bool {
	return strings.HasSuffix(name, ".zip")
}

// Label renders when in the local zone the way the UI displays a backup's
// timestamp.
func label(when time.Time) string {
	return when.Local().Format("2006-01-02T15:04:05")
}

func (f *FullBackup) Label() string { return label(f.When) }
func (d *DifferentialBackup) Label() string { return label(d.When) }

// Format reports whether this generation is stored as a directory tree or
// as a zip archive, inferred from its name's suffix.
func (f *FullBackup) Format() config.BackupFormat {
	if isZipName(f.Name) {
		return config.FormatZip
	}
	return config.FormatSimple
}

// Format reports whether this differential generation is stored as a
// directory tree or as a zip archive.
func (d *DifferentialBackup) Format() config.BackupFormat {
	if isZipName(d.Name) {
		return config.FormatZip
	}
	return config.FormatSimple
}

// Mapping is the persisted per-game state stored as mapping.yaml under the
// game's backup folder (spec.md §3 IndividualMapping).
type Mapping struct {
	Name    string                 `yaml:"name"`
	Drives  map[string]string      `yaml:"drives"`
	Backups []*FullBackup          `yaml:"backups"`
}

// NewMapping returns an empty mapping for a game that has never been
// backed up before.
func NewMapping(name string) *Mapping {
	return &Mapping{Name: name, Drives: make(map[string]string)}
}

func (m *Mapping) reversedDrives() map[string]string {
	reversed := make(map[string]string, len(m.Drives))
	for folder, drive := range m.Drives {
		reversed[drive] = folder
	}
	return reversed
}

func newDriveFolderName(drive string) string {
	if drive == "" {
		return "drive-0"
	}
	return "drive-" + escapeFolderName(strings.ReplaceAll(drive, ":", ""))
}

// DriveFolderName returns the folder name assigned to drive, assigning and
// recording a new one if this is the first time it's been seen.
func (m *Mapping) DriveFolderName(drive string) string {
	if m.Drives == nil {
		m.Drives = make(map[string]string)
	}
	if folder, ok := m.reversedDrives()[drive]; ok {
		return folder
	}
	folder := newDriveFolderName(drive)
	m.Drives[folder] = drive
	return folder
}

// DriveFolderNameImmutable previews the folder name drive would be assigned
// without recording it.
func (m *Mapping) DriveFolderNameImmutable(drive string) string {
	if folder, ok := m.reversedDrives()[drive]; ok {
		return folder
	}
	return newDriveFolderName(drive)
}

// GameFile resolves originalFile's on-disk location within a given backup
// generation's directory-format storage, assigning a drive folder if
// needed.
func (m *Mapping) GameFile(base *strictpath.StrictPath, originalFile *strictpath.StrictPath, backupName string) *strictpath.StrictPath {
	drive, plain := originalFile.SplitDrive()
	driveFolder := m.DriveFolderName(drive)
	return strictpath.Relative(fmt.Sprintf("%s/%s/%s", backupName, driveFolder, plain), base.Interpreted())
}

// GameFileImmutable previews GameFile's result without assigning a new
// drive folder.
func (m *Mapping) GameFileImmutable(base *strictpath.StrictPath, originalFile *strictpath.StrictPath, backupName string) *strictpath.StrictPath {
	drive, plain := originalFile.SplitDrive()
	driveFolder := m.DriveFolderNameImmutable(drive)
	return strictpath.Relative(fmt.Sprintf("%s/%s/%s", backupName, driveFolder, plain), base.Interpreted())
}

// GameFileForZip resolves originalFile's entry name within a zip-format
// backup, assigning a drive folder if needed.
func (m *Mapping) GameFileForZip(originalFile *strictpath.StrictPath) string {
	drive, plain := originalFile.SplitDrive()
	driveFolder := m.DriveFolderName(drive)
	return strings.ReplaceAll(driveFolder+"/"+plain, `\`, "/")
}

// GameFileForZipImmutable previews GameFileForZip's result without
// assigning a new drive folder, for pkg/restore reading an existing
// mapping rather than building a new generation.
func (m *Mapping) GameFileForZipImmutable(originalFile *strictpath.StrictPath) string {
	drive, plain := originalFile.SplitDrive()
	driveFolder := m.DriveFolderNameImmutable(drive)
	return strings.ReplaceAll(driveFolder+"/"+plain, `\`, "/")
}

// LatestBackup returns the most recent full backup and, if present, its
// most recent differential child.
func (m *Mapping) LatestBackup() (*FullBackup, *DifferentialBackup) {
	if len(m.Backups) == 0 {
		return nil, nil
	}
	full := m.Backups[len(m.Backups)-1]
	var diff *DifferentialBackup
	if len(full.Children) > 0 {
		diff = full.Children[len(full.Children)-1]
	}
	return full, diff
}

// HasBackup reports whether name identifies any full or differential
// backup this mapping knows about.
func (m *Mapping) HasBackup(name string) bool {
	for _, full := range m.Backups {
		if full.Name == name {
			return true
		}
		for _, diff := range full.Children {
			if diff.Name == name {
				return true
			}
		}
	}
	return false
}

// Serialize renders the mapping as YAML, the same shape Save writes.
func (m *Mapping) Serialize() (string, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Save writes the mapping to file, skipping the write entirely if the
// content on disk already matches (mapping.yaml otherwise gets a new mtime
// on every backup run even when nothing about the game's history changed).
func (m *Mapping) Save(file *strictpath.StrictPath) error {
	newContent, err := m.Serialize()
	if err != nil {
		return err
	}

	if old, err := os.ReadFile(file.Interpreted()); err == nil && string(old) == newContent {
		return nil
	}

	if err := file.CreateParentDir(); err != nil {
		return err
	}
	return os.WriteFile(file.Interpreted(), []byte(newContent), 0o644)
}

// LoadMapping reads and parses a mapping.yaml file.
func LoadMapping(file *strictpath.StrictPath) (*Mapping, error) {
	if !file.IsFile() {
		return nil, fmt.Errorf("mapping file does not exist: %s", file.Interpreted())
	}
	raw, err := os.ReadFile(file.Interpreted())
	if err != nil {
		return nil, fmt.Errorf("reading mapping file: %w", err)
	}

	var m Mapping
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing mapping file: %w", err)
	}

	// Legacy solo backups predating timestamped names carry a zero When;
	// fall back to the mapping file's own mtime so sort order stays sane.
	for _, full := range m.Backups {
		if full.Name == Solo && full.When.IsZero() {
			if info, err := os.Stat(file.Interpreted()); err == nil {
				full.When = info.ModTime().UTC()
			}
		}
	}

	return &m, nil
}
