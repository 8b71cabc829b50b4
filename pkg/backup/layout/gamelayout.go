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
	"errors"
	"time"

	"github.com/savewarden/savewarden/pkg/strictpath"
)

// ErrNoBackups is returned by ValidateID when BackupID.Latest is requested
// but the game has no backups at all.
var ErrNoBackups = errors.New("no save data found")

// ErrUnknownBackup is returned by ValidateID for a named id that doesn't
// exist.
var ErrUnknownBackup = errors.New("backup id not found")

// BackupID selects either the most recent generation or one by exact name.
type BackupID struct {
	name string
}

// Latest identifies the most recent full or differential backup.
func Latest() BackupID { return BackupID{} }

// Named identifies an exact backup generation by its stored name.
func Named(name string) BackupID { return BackupID{name: name} }

// IsLatest reports whether this id means "the most recent generation".
func (b BackupID) IsLatest() bool { return b.name == "" }

// Name returns the backup's literal name; empty for Latest.
func (b BackupID) Name() string { return b.name }

// Backup is a flattened view of either a FullBackup or a DifferentialBackup,
// for callers that only need the common summary fields.
type Backup struct {
	Name    string
	When    time.Time
	OS      string
	Comment string
	Locked  bool
	Full    bool
}

func flattenFull(f *FullBackup) Backup {
	return Backup{Name: f.Name, When: f.When, OS: f.OS, Comment: f.Comment, Locked: f.Locked, Full: true}
}

func flattenDiff(d *DifferentialBackup) Backup {
	return Backup{Name: d.Name, When: d.When, OS: d.OS, Comment: d.Comment, Locked: d.Locked, Full: false}
}

// GameLayout is one game's backup folder: its mapping.yaml plus the
// directory it lives in (spec.md §3 IndividualMapping, §4.6).
type GameLayout struct {
	Path    *strictpath.StrictPath
	mapping *Mapping
}

// NewGameLayout wraps an already-resolved mapping for path.
func NewGameLayout(path *strictpath.StrictPath, mapping *Mapping) *GameLayout {
	return &GameLayout{Path: path, mapping: mapping}
}

func mappingFile(path *strictpath.StrictPath) *strictpath.StrictPath {
	return path.Joined("mapping.yaml")
}

// Load reads path's mapping.yaml.
func Load(path *strictpath.StrictPath) (*GameLayout, error) {
	mapping, err := LoadMapping(mappingFile(path))
	if err != nil {
		return nil, err
	}
	return &GameLayout{Path: path, mapping: mapping}, nil
}

// Save persists the mapping back to path/mapping.yaml.
func (g *GameLayout) Save() error {
	return g.mapping.Save(mappingFile(g.Path))
}

// Mapping exposes the underlying persisted state for pkg/backup/planner,
// pkg/backup/executor, pkg/backup/retention and pkg/restore to read and
// mutate directly.
func (g *GameLayout) Mapping() *Mapping { return g.mapping }

// HasBackups reports whether this game has any recorded generation.
func (g *GameLayout) HasBackups() bool { return len(g.mapping.Backups) > 0 }

// VerifyID resolves id to itself if it names an existing generation,
// falling back to Latest for an unknown named id (spec.md: a stale
// selection shouldn't hard-fail a scan, just re-target the newest backup).
func (g *GameLayout) VerifyID(id BackupID) BackupID {
	if id.IsLatest() {
		return id
	}
	if _, _, ok := g.FindByID(id); ok {
		return id
	}
	return Latest()
}

// ValidateID reports whether id resolves to an existing generation.
func (g *GameLayout) ValidateID(id BackupID) error {
	if _, _, ok := g.FindByID(id); ok {
		return nil
	}
	if id.IsLatest() {
		return ErrNoBackups
	}
	return ErrUnknownBackup
}

// FindByID resolves id to its full backup and, if id names a differential,
// that differential too.
func (g *GameLayout) FindByID(id BackupID) (*FullBackup, *DifferentialBackup, bool) {
	if id.IsLatest() {
		full, diff := g.mapping.LatestBackup()
		if full == nil {
			return nil, nil, false
		}
		return full, diff, true
	}

	for _, full := range g.mapping.Backups {
		if full.Name == id.name {
			return full, nil, true
		}
		for _, diff := range full.Children {
			if diff.Name == id.name {
				return full, diff, true
			}
		}
	}
	return nil, nil, false
}

// FindByIDFlattened resolves id the same way FindByID does, but returns the
// single most-specific generation (the differential if id names one, else
// the full) as a flattened Backup summary.
func (g *GameLayout) FindByIDFlattened(id BackupID) (Backup, bool) {
	full, diff, ok := g.FindByID(id)
	if !ok {
		return Backup{}, false
	}
	if diff != nil {
		return flattenDiff(diff), true
	}
	return flattenFull(full), true
}

// RestorableBackupsFlattened lists every full and differential generation,
// in chronological order, as flattened summaries.
func (g *GameLayout) RestorableBackupsFlattened() []Backup {
	var out []Backup
	for _, full := range g.mapping.Backups {
		out = append(out, flattenFull(full))
		for _, diff := range full.Children {
			out = append(out, flattenDiff(diff))
		}
	}
	return out
}

// InsertBackup appends a newly executed full backup, keeping the ordered
// backups slice intact.
func (g *GameLayout) InsertBackup(full *FullBackup) {
	g.mapping.Backups = append(g.mapping.Backups, full)
}

// InsertDifferential appends a newly executed differential backup as the
// latest full backup's newest child. The caller (BackupPlanner) is
// responsible for having planned it against that same full backup.
func (g *GameLayout) InsertDifferential(diff *DifferentialBackup) error {
	if len(g.mapping.Backups) == 0 {
		return errors.New("cannot insert a differential backup with no full backup to attach to")
	}
	full := g.mapping.Backups[len(g.mapping.Backups)-1]
	full.Children = append(full.Children, diff)
	return nil
}

// RemoveBackup deletes the full or differential generation named name,
// along with any differential children if name identifies a full backup.
// Used by pkg/backup/retention.
func (g *GameLayout) RemoveBackup(name string) bool {
	for i, full := range g.mapping.Backups {
		if full.Name == name {
			g.mapping.Backups = append(g.mapping.Backups[:i], g.mapping.Backups[i+1:]...)
			return true
		}
		for j, diff := range full.Children {
			if diff.Name == name {
				full.Children = append(full.Children[:j], full.Children[j+1:]...)
				return true
			}
		}
	}
	return false
}

// SetComment edits the comment on the generation named by id.
func (g *GameLayout) SetComment(id BackupID, comment string) bool {
	full, diff, ok := g.FindByID(id)
	if !ok {
		return false
	}
	if diff != nil {
		diff.Comment = comment
	} else {
		full.Comment = comment
	}
	return true
}

// SetLocked edits the locked flag on the generation named by id.
func (g *GameLayout) SetLocked(id BackupID, locked bool) bool {
	full, diff, ok := g.FindByID(id)
	if !ok {
		return false
	}
	if diff != nil {
		diff.Locked = locked
	} else {
		full.Locked = locked
	}
	return true
}

// IrrelevantParents lists drive-* and backup-* subdirectories under the
// game's folder that no longer correspond to any generation this mapping
// records, plus (when the game isn't in solo mode) any leftover registry
// dump files at the game root. pkg/backup/executor's solo-mode cleanup and
// pkg/operation's post-retention sweep both call this after mutating the
// mapping.
func (g *GameLayout) IrrelevantParents(registryDumpNames []string) []*strictpath.StrictPath {
	var irrelevant []*strictpath.StrictPath

	relevant := make(map[string]bool)
	for _, full := range g.mapping.Backups {
		relevant[full.Name] = true
		for _, diff := range full.Children {
			relevant[diff.Name] = true
		}
	}

	solo := g.mapping.HasBackup(Solo)
	if !solo {
		for _, name := range registryDumpNames {
			irrelevant = append(irrelevant, g.Path.Joined(name))
		}
	}

	names, err := g.Path.ReadDirNames()
	if err != nil {
		return irrelevant
	}
	for _, name := range names {
		switch {
		case len(name) > len("drive-") && name[:len("drive-")] == "drive-" && !solo:
			irrelevant = append(irrelevant, g.Path.Joined(name))
		case len(name) > len("backup-") && name[:len("backup-")] == "backup-" && !relevant[name]:
			irrelevant = append(irrelevant, g.Path.Joined(name))
		}
	}
	return irrelevant
}
