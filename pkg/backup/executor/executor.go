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

// Package executor realizes a planned FullBackup or DifferentialBackup on
// disk, as either a directory tree or a single zip archive (spec.md §4.6
// execution), copying or archiving every file the plan marked included and
// writing a registry.reg dump alongside it when the plan carries one.
package executor

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/savewarden/savewarden/pkg/archivefmt"
	"github.com/savewarden/savewarden/pkg/backup/layout"
	"github.com/savewarden/savewarden/pkg/backup/planner"
	"github.com/savewarden/savewarden/pkg/config"
	"github.com/savewarden/savewarden/pkg/registryitem"
	"github.com/savewarden/savewarden/pkg/scaninfo"
	"github.com/savewarden/savewarden/pkg/strictpath"
)

// RegistryDumpName is the fixed filename a registry dump is stored under,
// both as a file in a directory-format backup and as an entry in a
// zip-format one.
const RegistryDumpName = "registry.reg"

// Info records per-file failures from one Execute call, mirroring the
// original's BackupInfo so pkg/operation can prune them from the planned
// record before it's inserted into the mapping.
type Info struct {
	FailedFiles    map[string]error
	FailedRegistry bool
}

func newInfo() *Info {
	return &Info{FailedFiles: make(map[string]error)}
}

// generation is the common shape Execute needs from either a FullBackup or
// a DifferentialBackup: its name and which scan keys it includes.
type generation struct {
	name                     string
	includesFile             func(key string) bool
	includesRegistry         bool
	onlyInheritsAndOverrides bool
}

func fromFull(f *layout.FullBackup) generation {
	return generation{
		name: f.Name,
		includesFile: func(key string) bool {
			_, ok := f.Files[key]
			return ok
		},
		includesRegistry: f.Registry.Hash != "",
	}
}

func fromDifferential(d *layout.DifferentialBackup) generation {
	onlyInheritsAndOverrides := d.Registry == nil
	if onlyInheritsAndOverrides {
		for _, entry := range d.Files {
			if entry != nil {
				onlyInheritsAndOverrides = false
				break
			}
		}
	}
	return generation{
		name: d.Name,
		includesFile: func(key string) bool {
			entry, ok := d.Files[key]
			return ok && entry != nil
		},
		includesRegistry:         d.Registry != nil && d.Registry.Hash != "",
		onlyInheritsAndOverrides: onlyInheritsAndOverrides,
	}
}

// mappingKeyFor must stay identical to pkg/backup/planner's private
// mapping-key rule, since Execute has to ask the exact same question the
// plan's Files map was built against: does this scan key's entry belong in
// this generation.
func mappingKeyFor(scanKey string, file scaninfo.ScannedFile) string {
	if file.Container != "" {
		return file.Container
	}
	return scanKey
}

// Execute realizes full or diff (exactly one must be non-nil, as planned by
// pkg/backup/planner.Plan) under g's folder, in the given format and
// compression.
func Execute(g *layout.GameLayout, scan scaninfo.ScanInfo, format config.BackupFormat, compression config.Compression, full *layout.FullBackup, diff *layout.DifferentialBackup) *Info {
	var gen generation
	switch {
	case full != nil:
		gen = fromFull(full)
	case diff != nil:
		gen = fromDifferential(diff)
	default:
		return newInfo()
	}

	if gen.onlyInheritsAndOverrides {
		// Every file is either unchanged (inherited) or explicitly dropped,
		// and there's no new registry dump: only the mapping needs updating,
		// no directory or archive entries to write.
		return newInfo()
	}

	switch format {
	case config.FormatZip:
		return executeZip(g, scan, gen, compression)
	default:
		return executeSimple(g, scan, gen)
	}
}

func executeSimple(g *layout.GameLayout, scan scaninfo.ScanInfo, gen generation) *Info {
	info := newInfo()
	var writtenFiles []*strictpath.StrictPath

	for scanKey, file := range scan.FoundFiles {
		key := mappingKeyFor(scanKey, file)
		if !gen.includesFile(key) {
			continue
		}

		target := g.Mapping().GameFile(g.Path, file.Path, gen.name)
		if file.Path.SameContent(target) {
			writtenFiles = append(writtenFiles, target)
			continue
		}
		if err := file.Path.CopyToPath(target); err != nil {
			log.Error().Err(err).Str("game", g.Mapping().Name).Str("file", scanKey).Msg("backup copy failed")
			info.FailedFiles[scanKey] = err
			continue
		}
		writtenFiles = append(writtenFiles, target)
	}

	if gen.includesRegistry {
		target := g.Path.Joined(gen.name).Joined(RegistryDumpName)
		hives := planner.RegistryContent(scan)
		if err := writeRegistryDump(target, hives); err != nil {
			log.Error().Err(err).Str("game", g.Mapping().Name).Msg("registry dump failed")
			info.FailedRegistry = true
		} else {
			writtenFiles = append(writtenFiles, target)
		}
	}

	if gen.name == layout.Solo {
		pruneSoloLeftovers(g, writtenFiles)
	}

	return info
}

func executeZip(g *layout.GameLayout, scan scaninfo.ScanInfo, gen generation, compression config.Compression) *Info {
	archivePath := g.Path.Joined(gen.name)
	if err := archivePath.CreateParentDir(); err != nil {
		return failAll(scan, err)
	}

	w, err := archivefmt.NewWriter(archivePath.Interpreted(), archiveCompression(compression))
	if err != nil {
		log.Error().Err(err).Str("game", g.Mapping().Name).Msg("unable to create zip file")
		return failAll(scan, err)
	}

	info := newInfo()
	for scanKey, file := range scan.FoundFiles {
		key := mappingKeyFor(scanKey, file)
		if !gen.includesFile(key) {
			continue
		}

		entryName := g.Mapping().GameFileForZip(file.Path)
		if err := appendZipEntry(w, entryName, file); err != nil {
			log.Error().Err(err).Str("game", g.Mapping().Name).Str("file", scanKey).Msg("zip entry failed")
			info.FailedFiles[scanKey] = err
		}
	}

	if gen.includesRegistry {
		hives := planner.RegistryContent(scan)
		if err := w.WriteString(RegistryDumpName, hives.RegExport(), time.Now()); err != nil {
			log.Error().Err(err).Str("game", g.Mapping().Name).Msg("registry dump failed")
			info.FailedRegistry = true
		}
	}

	if err := w.Close(); err != nil {
		return failAll(scan, err)
	}

	return info
}

func archiveCompression(c config.Compression) archivefmt.Compression {
	switch c {
	case config.CompressionNone:
		return archivefmt.None
	case config.CompressionBzip2:
		return archivefmt.Bzip2
	case config.CompressionZstd:
		return archivefmt.Zstd
	default:
		return archivefmt.Deflate
	}
}

func appendZipEntry(w *archivefmt.Writer, entryName string, file scaninfo.ScannedFile) error {
	mtimeUnix, err := file.Path.GetMtimeZip()
	if err != nil {
		return fmt.Errorf("reading mtime: %w", err)
	}

	handle, err := os.Open(file.Path.Interpreted()) //nolint:gosec // path is a scanned save file, not user-controlled input
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer func() { _ = handle.Close() }()

	info, err := handle.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	return w.WriteFile(entryName, handle, info.Size(), time.Unix(mtimeUnix, 0), info.Mode())
}

func writeRegistryDump(target *strictpath.StrictPath, hives registryitem.Hives) error {
	if err := target.CreateParentDir(); err != nil {
		return err
	}
	if err := os.WriteFile(target.Interpreted(), []byte(hives.RegExport()), 0o644); err != nil {
		return fmt.Errorf("writing registry dump: %w", err)
	}
	return nil
}

func failAll(scan scaninfo.ScanInfo, cause error) *Info {
	info := newInfo()
	for scanKey := range scan.FoundFiles {
		info.FailedFiles[scanKey] = cause
	}
	info.FailedRegistry = true
	return info
}

// pruneSoloLeftovers runs after a solo-mode backup and removes the backup-*
// folders under the game folder that the mapping no longer records,
// skipping any path this run just wrote. Files that earlier solo runs left
// in drive-* folders are not removed, and empty drive-* folders are left in
// place.
func pruneSoloLeftovers(g *layout.GameLayout, written []*strictpath.StrictPath) {
	relevant := make(map[string]bool, len(written))
	for _, w := range written {
		relevant[w.Rendered()] = true
	}

	for _, stale := range g.IrrelevantParents([]string{RegistryDumpName}) {
		if relevant[stale.Rendered()] {
			continue
		}
		if err := stale.Remove(); err != nil {
			log.Warn().Err(err).Str("path", stale.Interpreted()).Msg("unable to remove stale backup entry")
		}
	}
}
