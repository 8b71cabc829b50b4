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

// Package restore builds a restoration ScanInfo against a chosen backup
// generation and then writes it back to the game's live locations (spec.md
// §4.6 restoration). Scan composites a full backup with its differential
// child the same way the stored generations layer on disk; Restore realizes
// that composite, skipping anything unchanged or toggled off.
package restore

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/savewarden/savewarden/pkg/archivefmt"
	"github.com/savewarden/savewarden/pkg/backup/executor"
	"github.com/savewarden/savewarden/pkg/backup/layout"
	"github.com/savewarden/savewarden/pkg/changeclass"
	"github.com/savewarden/savewarden/pkg/config"
	"github.com/savewarden/savewarden/pkg/registryitem"
	"github.com/savewarden/savewarden/pkg/registryprovider"
	"github.com/savewarden/savewarden/pkg/roots"
	"github.com/savewarden/savewarden/pkg/scaninfo"
	"github.com/savewarden/savewarden/pkg/scanner"
	"github.com/savewarden/savewarden/pkg/strictpath"
)

// Scan resolves id against g, then builds the composite ScanInfo a restore
// against that generation would apply: every file the full backup recorded,
// overridden or dropped by id's differential where one applies, each
// classified against what's currently on disk at its (possibly redirected)
// restoration target. knownRoots supplies SMB credentials for a redirected
// target that falls under a configured UNC/share root; a target outside
// every known SMB root is always checked against the local filesystem.
func Scan(g *layout.GameLayout, id layout.BackupID, redirects []config.RedirectConfig, knownRoots []roots.Root, toggledPaths scanner.ToggledPaths, toggledRegistry scanner.ToggledRegistry, provider registryprovider.Provider) scaninfo.ScanInfo {
	scan := scaninfo.ScanInfo{
		GameName:          g.Mapping().Name,
		FoundFiles:        make(map[string]scaninfo.ScannedFile),
		FoundRegistryKeys: make(map[string]scaninfo.ScannedRegistry),
		AvailableBackups:  flattenedNames(g.RestorableBackupsFlattened()),
		HasBackups:        g.HasBackups(),
	}

	resolved := g.VerifyID(id)
	full, diff, ok := g.FindByID(resolved)
	if !ok {
		return scan
	}
	if flattened, ok := g.FindByIDFlattened(resolved); ok {
		scan.Backup = flattened.Name
	}

	for mappingKey, file := range restorableFiles(g, full, diff, redirects, knownRoots, toggledPaths) {
		scan.FoundFiles[mappingKey] = file
	}

	if provider != nil {
		if hives, ok := RegistryContentFor(g, full, diff); ok {
			for item, key := range liveCompare(hives, provider, g.Mapping().Name, toggledRegistry) {
				scan.FoundRegistryKeys[item] = key
			}
		}
	}

	return scan
}

func flattenedNames(backups []layout.Backup) []string {
	names := make([]string, len(backups))
	for i, b := range backups {
		names[i] = b.Name
	}
	return names
}

// restorableFiles composites full's files with diff's overrides: a
// differential entry that's present and non-nil overrides its parent's, a
// nil entry drops the parent's file from this restore, and an absent key
// means the differential inherited the full's file unchanged.
func restorableFiles(g *layout.GameLayout, full *layout.FullBackup, diff *layout.DifferentialBackup, redirects []config.RedirectConfig, knownRoots []roots.Root, toggledPaths scanner.ToggledPaths) map[string]scaninfo.ScannedFile {
	out := make(map[string]scaninfo.ScannedFile)

	if diff != nil {
		for mappingKey, entry := range diff.Files {
			if entry == nil {
				continue
			}
			addRestorable(out, g, diff.Name, diff.Format(), mappingKey, *entry, redirects, knownRoots, toggledPaths)
		}
	}

	for mappingKey, entry := range full.Files {
		if diff != nil && diff.FileInclusion(mappingKey) != layout.Inherited {
			continue
		}
		addRestorable(out, g, full.Name, full.Format(), mappingKey, entry, redirects, knownRoots, toggledPaths)
	}

	return out
}

// addRestorable records one stored file as a restoration candidate, keyed
// by its mapping key (the original path's rendered form). Its Path is where
// the file is found within generationName: the stored file under the
// generation's directory for a directory-format generation, the zip entry
// name for a zip-format one.
func addRestorable(out map[string]scaninfo.ScannedFile, g *layout.GameLayout, generationName string, format config.BackupFormat, mappingKey string, entry layout.FileEntry, redirects []config.RedirectConfig, knownRoots []roots.Root, toggledPaths scanner.ToggledPaths) {
	originalPath := strictpath.New(mappingKey)
	redirected := scanner.ApplyRedirect(originalPath, redirects, true)

	var source *strictpath.StrictPath
	var container string

	switch format {
	case config.FormatZip:
		entryName := g.Mapping().GameFileForZipImmutable(originalPath)
		// source carries only the raw zip entry name; its Interpreted form
		// is meaningless here and must never be used for this file.
		source = strictpath.New(entryName)
		container = g.Path.Joined(generationName).Rendered()
	default:
		source = g.Mapping().GameFileImmutable(g.Path, originalPath, generationName)
	}

	targetExists, targetHash := statRestorationTarget(redirected, knownRoots)

	out[mappingKey] = scaninfo.ScannedFile{
		Path:         source,
		Size:         entry.Size,
		Hash:         entry.Hash,
		OriginalPath: originalPath,
		Redirected:   !originalPath.Equal(redirected),
		Ignored:      toggledPaths[redirected.Rendered()],
		Change:       changeclass.EvaluateRestore(targetExists, targetHash, entry.Hash),
		Container:    container,
	}
}

// statRestorationTarget checks a restoration target's existence and content
// hash, routing through SMB when target falls under one of knownRoots' UNC
// share paths, and through the local filesystem otherwise.
func statRestorationTarget(target *strictpath.StrictPath, knownRoots []roots.Root) (exists bool, hash string) {
	root, smbTarget, ok := matchingSMBRoot(target, knownRoots)
	if !ok {
		if !target.IsFile() {
			return false, ""
		}
		h, _ := target.Sha1()
		return true, h
	}

	share, err := roots.DialShare(context.Background(), smbTarget, root.Credentials)
	if err != nil {
		return false, ""
	}
	defer func() { _ = share.Close() }()

	h, _, err := share.Sha1(smbTarget.FilePath)
	if err != nil {
		return false, ""
	}
	return true, h
}

// matchingSMBRoot finds the configured SMB root target falls under, if any.
func matchingSMBRoot(target *strictpath.StrictPath, knownRoots []roots.Root) (roots.Root, roots.SMBTarget, bool) {
	for _, root := range knownRoots {
		if !root.IsSMB() {
			continue
		}
		if !strings.HasPrefix(target.Rendered(), root.Path.Rendered()) {
			continue
		}
		parsed, err := roots.ParseSMBTarget(target.Raw())
		if err != nil {
			continue
		}
		return root, parsed, true
	}
	return roots.Root{}, roots.SMBTarget{}, false
}

// RegistryContentFor loads whichever backup's registry dump applies to id's
// resolved generation: the differential's own dump if it wrote one, the
// differential's declared absence of one (meaning the full's is stale and
// shouldn't be applied), or the full's dump otherwise. Exported so
// pkg/operation can build a PreviousSnapshot for the next scan's change
// classification against the same generation a restore would read.
func RegistryContentFor(g *layout.GameLayout, full *layout.FullBackup, diff *layout.DifferentialBackup) (registryitem.Hives, bool) {
	if diff != nil {
		if hives, ok := LoadRegistryDump(g, diff.Name, diff.Format()); ok {
			return hives, true
		}
		if diff.OmitsRegistry() {
			return nil, false
		}
	}
	return LoadRegistryDump(g, full.Name, full.Format())
}

// LoadRegistryDump reads and parses the registry dump stored alongside
// generationName, in whichever format that generation uses.
func LoadRegistryDump(g *layout.GameLayout, generationName string, format config.BackupFormat) (registryitem.Hives, bool) {
	switch format {
	case config.FormatZip:
		r, err := archivefmt.OpenReader(g.Path.Joined(generationName).Interpreted())
		if err != nil {
			return nil, false
		}
		defer func() { _ = r.Close() }()

		rc, _, err := r.Open(executor.RegistryDumpName)
		if err != nil {
			return nil, false
		}
		defer func() { _ = rc.Close() }()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, false
		}
		hives, err := registryitem.ParseReg(string(data))
		if err != nil {
			return nil, false
		}
		return hives, true
	default:
		target := g.Path.Joined(generationName).Joined(executor.RegistryDumpName)
		if !target.IsFile() {
			return nil, false
		}
		data, err := os.ReadFile(target.Interpreted()) //nolint:gosec // backup-local path, not user-controlled input
		if err != nil {
			return nil, false
		}
		hives, err := registryitem.ParseReg(string(data))
		if err != nil {
			return nil, false
		}
		return hives, true
	}
}

// liveCompare classifies every key/value a stored dump carries against
// what's actually in the live registry right now, the same shape
// pkg/scanner's forward scan produces so the rest of the pipeline (ignore
// toggles, change counts) treats a restoration scan identically to a
// backup one.
func liveCompare(hives registryitem.Hives, provider registryprovider.Provider, gameName string, toggled scanner.ToggledRegistry) map[string]scaninfo.ScannedRegistry {
	out := make(map[string]scaninfo.ScannedRegistry, len(hives))

	for rendered, stored := range hives {
		item := registryitem.New(rendered)
		liveKey, exists := provider.ReadKey(item)

		allValuesIgnored := true
		values := make(map[string]scaninfo.RegistryValue, len(stored.Values))
		for name, entry := range stored.Values {
			ignored := toggled[rendered+"\x00"+name]
			if !ignored {
				allValuesIgnored = false
			}
			values[name] = scaninfo.RegistryValue{
				Entry:   entry,
				Ignored: ignored,
				Change:  valueChange(exists, liveKey, name, entry),
			}
		}

		keyChange := changeclass.New
		if exists {
			keyChange = changeclass.Same
		}

		out[rendered] = scaninfo.ScannedRegistry{
			Path:    item,
			Ignored: toggled[rendered] && allValuesIgnored,
			Change:  keyChange,
			Values:  values,
		}
	}

	return out
}

func valueChange(keyExists bool, liveKey registryitem.Key, name string, stored registryitem.Entry) changeclass.Change {
	if !keyExists {
		return changeclass.New
	}
	live, ok := liveKey.Values[name]
	if !ok {
		return changeclass.New
	}
	if entryEqual(live, stored) {
		return changeclass.Same
	}
	return changeclass.Different
}

func entryEqual(a, b registryitem.Entry) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case registryitem.KindSz, registryitem.KindExpandSz, registryitem.KindMultiSz:
		return a.Str == b.Str
	case registryitem.KindDword:
		return a.Dword == b.Dword
	case registryitem.KindQword:
		return a.Qword == b.Qword
	case registryitem.KindBinary:
		return string(a.Binary) == string(b.Binary)
	case registryitem.KindRaw:
		return a.RawKind == b.RawKind && string(a.RawData) == string(b.RawData)
	default:
		return false
	}
}
