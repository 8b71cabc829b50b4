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

package executor_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/savewarden/savewarden/pkg/archivefmt"
	"github.com/savewarden/savewarden/pkg/backup/executor"
	"github.com/savewarden/savewarden/pkg/backup/layout"
	"github.com/savewarden/savewarden/pkg/changeclass"
	"github.com/savewarden/savewarden/pkg/config"
	"github.com/savewarden/savewarden/pkg/registryitem"
	"github.com/savewarden/savewarden/pkg/scaninfo"
	"github.com/savewarden/savewarden/pkg/strictpath"
)

func writeSourceFile(t *testing.T, dir, name, content string) *strictpath.StrictPath {
	t.Helper()
	full := filepath.Join(dir, name)
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("writing source file: %v", err)
	}
	return strictpath.New(full)
}

func newGameLayout(t *testing.T) *layout.GameLayout {
	t.Helper()
	return layout.NewGameLayout(strictpath.New(t.TempDir()), layout.NewMapping("Example Game"))
}

func TestExecuteSimpleCopiesIncludedFile(t *testing.T) {
	srcDir := t.TempDir()
	src := writeSourceFile(t, srcDir, "save.dat", "hello")

	g := newGameLayout(t)
	scan := scaninfo.ScanInfo{
		GameName: "Example Game",
		FoundFiles: map[string]scaninfo.ScannedFile{
			src.Rendered(): {Path: src, Size: 5, Hash: "deadbeef", Change: changeclass.New},
		},
	}

	full := &layout.FullBackup{
		Name: "backup-20260730T000000Z",
		Files: map[string]layout.FileEntry{
			src.Rendered(): {Hash: "deadbeef", Size: 5},
		},
	}

	info := executor.Execute(g, scan, config.FormatSimple, config.CompressionNone, full, nil)
	if len(info.FailedFiles) != 0 {
		t.Fatalf("unexpected failures: %v", info.FailedFiles)
	}

	drive, plain := src.SplitDrive()
	driveFolder := g.Mapping().DriveFolderNameImmutable(drive)
	target := filepath.Join(g.Path.Interpreted(), full.Name, driveFolder, plain)
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("reading copied file: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("copied content = %q, want %q", got, "hello")
	}
}

func TestExecuteSimpleSkipsFileWithSameContent(t *testing.T) {
	srcDir := t.TempDir()
	src := writeSourceFile(t, srcDir, "save.dat", "hello")

	g := newGameLayout(t)
	scan := scaninfo.ScanInfo{
		FoundFiles: map[string]scaninfo.ScannedFile{
			src.Rendered(): {Path: src, Size: 5, Hash: "deadbeef", Change: changeclass.Same},
		},
	}
	full := &layout.FullBackup{
		Name:  "backup-20260730T000000Z",
		Files: map[string]layout.FileEntry{src.Rendered(): {Hash: "deadbeef", Size: 5}},
	}

	drive, plain := src.SplitDrive()
	driveFolder := g.Mapping().DriveFolderName(drive)
	target := filepath.Join(g.Path.Interpreted(), full.Name, driveFolder, plain)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(target, []byte("hello"), 0o644); err != nil {
		t.Fatalf("seed target: %v", err)
	}
	before, err := os.Stat(target)
	if err != nil {
		t.Fatalf("stat target: %v", err)
	}

	info := executor.Execute(g, scan, config.FormatSimple, config.CompressionNone, full, nil)
	if len(info.FailedFiles) != 0 {
		t.Fatalf("unexpected failures: %v", info.FailedFiles)
	}

	after, err := os.Stat(target)
	if err != nil {
		t.Fatalf("stat target after: %v", err)
	}
	if !before.ModTime().Equal(after.ModTime()) {
		t.Fatalf("expected target to be left untouched, mtime changed from %v to %v", before.ModTime(), after.ModTime())
	}
}

func TestExecuteSimpleWritesRegistryDump(t *testing.T) {
	g := newGameLayout(t)
	regKey := registryitem.New(`HKEY_CURRENT_USER\Software\Game`)
	scan := scaninfo.ScanInfo{
		FoundRegistryKeys: map[string]scaninfo.ScannedRegistry{
			regKey.Rendered(): {
				Path:   regKey,
				Change: changeclass.New,
				Values: map[string]scaninfo.RegistryValue{
					"Level": {Entry: registryitem.Dword(3), Change: changeclass.New},
				},
			},
		},
	}
	full := &layout.FullBackup{
		Name:     "backup-20260730T000000Z",
		Registry: layout.RegistryEntry{Hash: "anything-non-empty"},
	}

	info := executor.Execute(g, scan, config.FormatSimple, config.CompressionNone, full, nil)
	if info.FailedRegistry {
		t.Fatalf("unexpected registry failure")
	}

	dump, err := os.ReadFile(filepath.Join(g.Path.Interpreted(), full.Name, executor.RegistryDumpName))
	if err != nil {
		t.Fatalf("reading registry dump: %v", err)
	}
	if len(dump) == 0 {
		t.Fatalf("registry dump is empty")
	}
}

func TestExecuteSimpleSoloPrunesStaleEntries(t *testing.T) {
	g := newGameLayout(t)

	staleDrive := filepath.Join(g.Path.Interpreted(), "drive-0")
	if err := os.MkdirAll(staleDrive, 0o755); err != nil {
		t.Fatalf("mkdir stale drive: %v", err)
	}
	staleBackup := filepath.Join(g.Path.Interpreted(), "backup-20250101T000000Z")
	if err := os.MkdirAll(staleBackup, 0o755); err != nil {
		t.Fatalf("mkdir stale backup: %v", err)
	}

	srcDir := t.TempDir()
	src := writeSourceFile(t, srcDir, "save.dat", "hello")
	scan := scaninfo.ScanInfo{
		FoundFiles: map[string]scaninfo.ScannedFile{
			src.Rendered(): {Path: src, Size: 5, Hash: "deadbeef", Change: changeclass.New},
		},
	}
	full := &layout.FullBackup{
		Name:  layout.Solo,
		Files: map[string]layout.FileEntry{src.Rendered(): {Hash: "deadbeef", Size: 5}},
	}
	g.InsertBackup(full)

	executor.Execute(g, scan, config.FormatSimple, config.CompressionNone, full, nil)

	if _, err := os.Stat(staleDrive); !os.IsNotExist(err) {
		t.Fatalf("expected stale drive-0 to be pruned, stat err = %v", err)
	}
	if _, err := os.Stat(staleBackup); !os.IsNotExist(err) {
		t.Fatalf("expected stale backup-* to be pruned, stat err = %v", err)
	}
}

func TestExecuteZipWritesReadableArchive(t *testing.T) {
	srcDir := t.TempDir()
	src := writeSourceFile(t, srcDir, "save.dat", "hello zip")

	g := newGameLayout(t)
	scan := scaninfo.ScanInfo{
		FoundFiles: map[string]scaninfo.ScannedFile{
			src.Rendered(): {Path: src, Size: 9, Hash: "deadbeef", Change: changeclass.New},
		},
	}
	full := &layout.FullBackup{
		Name:  "backup-20260730T000000Z.zip",
		Files: map[string]layout.FileEntry{src.Rendered(): {Hash: "deadbeef", Size: 9}},
	}

	info := executor.Execute(g, scan, config.FormatZip, config.CompressionDeflate, full, nil)
	if len(info.FailedFiles) != 0 {
		t.Fatalf("unexpected failures: %v", info.FailedFiles)
	}

	r, err := archivefmt.OpenReader(g.Path.Joined(full.Name).Interpreted())
	if err != nil {
		t.Fatalf("opening written archive: %v", err)
	}
	defer func() { _ = r.Close() }()

	entryName := g.Mapping().GameFileForZip(src)
	rc, _, err := r.Open(entryName)
	if err != nil {
		t.Fatalf("opening entry %q: %v", entryName, err)
	}
	defer func() { _ = rc.Close() }()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading entry: %v", err)
	}
	if string(got) != "hello zip" {
		t.Fatalf("entry content = %q, want %q", got, "hello zip")
	}
}

func TestExecuteZipWritesRegistryDump(t *testing.T) {
	g := newGameLayout(t)
	regKey := registryitem.New(`HKEY_CURRENT_USER\Software\Game`)
	scan := scaninfo.ScanInfo{
		FoundRegistryKeys: map[string]scaninfo.ScannedRegistry{
			regKey.Rendered(): {
				Path:   regKey,
				Change: changeclass.New,
				Values: map[string]scaninfo.RegistryValue{
					"Level": {Entry: registryitem.Dword(3), Change: changeclass.New},
				},
			},
		},
	}
	full := &layout.FullBackup{
		Name:     "backup-20260730T000000Z.zip",
		Registry: layout.RegistryEntry{Hash: "anything-non-empty"},
	}

	info := executor.Execute(g, scan, config.FormatZip, config.CompressionNone, full, nil)
	if info.FailedRegistry {
		t.Fatalf("unexpected registry failure")
	}

	r, err := archivefmt.OpenReader(g.Path.Joined(full.Name).Interpreted())
	if err != nil {
		t.Fatalf("opening written archive: %v", err)
	}
	defer func() { _ = r.Close() }()

	rc, _, err := r.Open(executor.RegistryDumpName)
	if err != nil {
		t.Fatalf("opening registry entry: %v", err)
	}
	defer func() { _ = rc.Close() }()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading registry entry: %v", err)
	}
	if len(got) == 0 {
		t.Fatalf("registry entry is empty")
	}
}

func TestExecuteDifferentialOnlyInheritsAndOverridesWritesNothing(t *testing.T) {
	g := newGameLayout(t)
	scan := scaninfo.ScanInfo{}
	diff := &layout.DifferentialBackup{
		Name:  "backup-20260730T000000Z-diff",
		Files: map[string]*layout.FileEntry{"some/path": nil},
	}

	info := executor.Execute(g, scan, config.FormatSimple, config.CompressionNone, nil, diff)
	if len(info.FailedFiles) != 0 || info.FailedRegistry {
		t.Fatalf("expected no work done, got %+v", info)
	}
	if _, err := os.Stat(g.Path.Joined(diff.Name).Interpreted()); !os.IsNotExist(err) {
		t.Fatalf("expected no directory to be created for an inherits-only differential")
	}
}

func TestExecuteDifferentialWritesOnlyOverriddenFile(t *testing.T) {
	srcDir := t.TempDir()
	changed := writeSourceFile(t, srcDir, "changed.dat", "new content")
	unchangedSrc := writeSourceFile(t, srcDir, "unchanged.dat", "old content")

	g := newGameLayout(t)
	scan := scaninfo.ScanInfo{
		FoundFiles: map[string]scaninfo.ScannedFile{
			changed.Rendered():   {Path: changed, Size: 11, Hash: "newhash", Change: changeclass.Different},
			unchangedSrc.Rendered(): {Path: unchangedSrc, Size: 11, Hash: "oldhash", Change: changeclass.Same},
		},
	}
	diff := &layout.DifferentialBackup{
		Name: "backup-20260730T000000Z-diff",
		Files: map[string]*layout.FileEntry{
			changed.Rendered(): {Hash: "newhash", Size: 11},
			// unchangedSrc intentionally absent: inherited from the parent full.
		},
	}

	info := executor.Execute(g, scan, config.FormatSimple, config.CompressionNone, nil, diff)
	if len(info.FailedFiles) != 0 {
		t.Fatalf("unexpected failures: %v", info.FailedFiles)
	}

	drive, plain := changed.SplitDrive()
	driveFolder := g.Mapping().DriveFolderNameImmutable(drive)
	target := filepath.Join(g.Path.Interpreted(), diff.Name, driveFolder, plain)
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected overridden file to be written: %v", err)
	}

	unchangedDrive, unchangedPlain := unchangedSrc.SplitDrive()
	unchangedFolder := g.Mapping().DriveFolderNameImmutable(unchangedDrive)
	unchangedTarget := filepath.Join(g.Path.Interpreted(), diff.Name, unchangedFolder, unchangedPlain)
	if _, err := os.Stat(unchangedTarget); !os.IsNotExist(err) {
		t.Fatalf("expected inherited file to be left unwritten in the differential, stat err = %v", err)
	}
}

func TestExecuteSimpleRecordsCopyFailure(t *testing.T) {
	g := newGameLayout(t)
	missing := strictpath.New(filepath.Join(t.TempDir(), "does-not-exist.dat"))
	scan := scaninfo.ScanInfo{
		FoundFiles: map[string]scaninfo.ScannedFile{
			missing.Rendered(): {Path: missing, Size: 1, Hash: "x", Change: changeclass.New},
		},
	}
	full := &layout.FullBackup{
		Name:  "backup-20260730T000000Z",
		Files: map[string]layout.FileEntry{missing.Rendered(): {Hash: "x", Size: 1}},
	}

	info := executor.Execute(g, scan, config.FormatSimple, config.CompressionNone, full, nil)
	if len(info.FailedFiles) != 1 {
		t.Fatalf("expected exactly one failed file, got %v", info.FailedFiles)
	}
	if _, ok := info.FailedFiles[missing.Rendered()]; !ok {
		t.Fatalf("expected failure recorded under the scan key %q", missing.Rendered())
	}
}
