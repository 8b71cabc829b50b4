// Zaparoo Core
// Copyright (c) 2026 The Zaparoo Project Contributors.
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

// Package operation wires every collaborator a backup or restore pass needs
// and schedules per-game work across them: bounded parallel scanning, a
// single serialized apply phase per backup, and cooperative cancellation
// (spec.md §4.9 OperationDriver, §5 concurrency model).
package operation

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/savewarden/savewarden/pkg/backup/executor"
	"github.com/savewarden/savewarden/pkg/backup/layout"
	"github.com/savewarden/savewarden/pkg/backup/planner"
	"github.com/savewarden/savewarden/pkg/backup/retention"
	"github.com/savewarden/savewarden/pkg/config"
	"github.com/savewarden/savewarden/pkg/duplicate"
	"github.com/savewarden/savewarden/pkg/installdir"
	"github.com/savewarden/savewarden/pkg/manifest"
	"github.com/savewarden/savewarden/pkg/platform"
	"github.com/savewarden/savewarden/pkg/registryprovider"
	"github.com/savewarden/savewarden/pkg/restore"
	"github.com/savewarden/savewarden/pkg/roots"
	"github.com/savewarden/savewarden/pkg/scaninfo"
	"github.com/savewarden/savewarden/pkg/scanner"
	"github.com/savewarden/savewarden/pkg/steamvdf"
	"github.com/savewarden/savewarden/pkg/strictpath"
)

// maxInFlight bounds every batch pass regardless of config, mirroring the
// original's fixed 100-task dispatch ceiling.
const maxInFlight = 100

// Driver wires every collaborator a scan needs and schedules per-game work
// across them. The zero value isn't usable; construct with New.
type Driver struct {
	Config         *config.Instance
	Manifest       manifest.Manifest
	Layout         *layout.Layout
	Registry       registryprovider.Provider
	Roots          []roots.Root
	LauncherHints  []scanner.LauncherHint
	Ranking        *installdir.Ranking
	SteamShortcuts steamvdf.ShortcutIndex
	Duplicates     *duplicate.Detector

	// Clock stamps every new backup generation planner.Plan records. Real by
	// default; tests inject a clockwork.FakeClock to assert on exact names
	// and retention ordering without depending on wall-clock time.
	Clock clockwork.Clock

	// WinePrefixOverride is the CLI-level Wine prefix override applied to
	// every game's scan, when the caller doesn't rely on per-game launcher
	// hints or the host's own layout to find one.
	WinePrefixOverride *strictpath.StrictPath
}

// New builds a Driver from its already-resolved collaborators, with a fresh
// duplicate detector and the real wall clock.
func New(
	cfg *config.Instance,
	m manifest.Manifest,
	l *layout.Layout,
	provider registryprovider.Provider,
	r []roots.Root,
	hints []scanner.LauncherHint,
	ranking *installdir.Ranking,
	shortcuts steamvdf.ShortcutIndex,
) *Driver {
	return &Driver{
		Config:         cfg,
		Manifest:       m,
		Layout:         l,
		Registry:       provider,
		Roots:          r,
		LauncherHints:  hints,
		Ranking:        ranking,
		SteamShortcuts: shortcuts,
		Duplicates:     duplicate.New(),
		Clock:          clockwork.NewRealClock(),
	}
}

// BatchResult is one game's outcome from BackupAll or RestoreAll, delivered
// to Progress as soon as that game finishes.
type BatchResult struct {
	GameName string
	Scan     scaninfo.ScanInfo
	Err      error
	// Stale lists other games whose duplicate status may have changed as a
	// result of this one; only ever populated by BackupAll.
	Stale map[string]bool
}

// Progress is called once per completed game. BackupAll calls it from its
// own goroutine, already serialized; RestoreAll may call it concurrently
// from multiple workers, so a Progress that touches shared state must
// synchronize itself in that case.
type Progress func(BatchResult)

// workerLimit resolves config's configured pool size, falling back to the
// host's logical CPU count when unset, capped at maxInFlight either way.
func workerLimit(cfg *config.Instance) int {
	n := cfg.WorkerCount()
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n < 1 {
		n = 1
	}
	if n > maxInFlight {
		n = maxInFlight
	}
	return n
}

// scanParams builds the scanner.Params shared by every game's scan, from
// the Driver's collaborators and the config snapshot vals.
func (d *Driver) scanParams(
	vals config.Values,
	previous *scanner.PreviousSnapshot,
	toggledPaths scanner.ToggledPaths,
	toggledRegistry scanner.ToggledRegistry,
) scanner.Params {
	return scanner.Params{
		Roots:         d.Roots,
		ManifestDir:   strictpath.New(filepath.Dir(vals.Manifest.Path)),
		LauncherHints: d.LauncherHints,
		Filter: scanner.Filter{
			ExcludeGlobs:            vals.Ignore.ExcludeGlobs,
			ExcludePathContains:     vals.Ignore.ExcludePathContains,
			ExcludeStoreScreenshots: vals.Ignore.ExcludeStoreScreenshots,
		},
		WinePrefixOverride: d.WinePrefixOverride,
		Ranking:            d.Ranking,
		ToggledPaths:       toggledPaths,
		ToggledRegistry:    toggledRegistry,
		Previous:           previous,
		Redirects:          vals.Redirects,
		SteamShortcuts:     d.SteamShortcuts,
		OnlyConstructive:   vals.OnlyConstructive,
		Registry:           d.Registry,
		Platform:           platform.Host(),
	}
}

// previousSnapshot composites g's latest full backup with its differential
// child into the shape scanner.ScanGameForBackup compares this pass
// against: every stored file hash, overridden or dropped per the
// differential, and whichever generation's registry dump currently applies
// (reusing pkg/restore's own answer to that question, since a restore
// against the latest backup must read the exact same content a backup
// scan should compare itself to).
func previousSnapshot(g *layout.GameLayout, redirects []config.RedirectConfig) *scanner.PreviousSnapshot {
	full, diff := g.Mapping().LatestBackup()
	if full == nil {
		return nil
	}

	hashes := make(map[string]string, len(full.Files))
	for path, entry := range full.Files {
		hashes[redirectedKey(path, redirects)] = entry.Hash
	}
	if diff != nil {
		for path, entry := range diff.Files {
			key := redirectedKey(path, redirects)
			if entry == nil {
				delete(hashes, key)
				continue
			}
			hashes[key] = entry.Hash
		}
	}

	snapshot := &scanner.PreviousSnapshot{FileHashes: hashes}

	if hives, ok := restore.RegistryContentFor(g, full, diff); ok {
		snapshot.Registry = make(map[string]map[string]string, len(hives))
		for key, regKey := range hives {
			values := make(map[string]string, len(regKey.Values))
			for name, entry := range regKey.Values {
				values[name] = entry.RegFormat()
			}
			snapshot.Registry[key] = values
		}
	}

	return snapshot
}

// redirectedKey recovers the key pkg/scanner's recordFile looks a prior
// hash up under: a stored file's mapping key is the live path exactly as
// it was scanned, before any redirect, but recordFile compares against
// that path's redirected form. Mirrors pkg/restore's addRestorable, which
// faces the same translation in the opposite direction.
func redirectedKey(mappingKey string, redirects []config.RedirectConfig) string {
	return scanner.ApplyRedirect(strictpath.New(mappingKey), redirects, false).Rendered()
}

// mappingKeyFor must stay identical to pkg/backup/planner's and
// pkg/backup/executor's private copies of the same rule: the key a scanned
// file is recorded, planned and executed under.
func mappingKeyFor(scanKey string, file scaninfo.ScannedFile) string {
	if file.Container != "" {
		return file.Container
	}
	return scanKey
}

// pruneFailed drops any file Execute failed to write from the record about
// to be inserted, and clears a failed registry dump's hash, so a persisted
// mapping never claims something that isn't actually on disk.
func pruneFailed(scan scaninfo.ScanInfo, full *layout.FullBackup, diff *layout.DifferentialBackup, info *executor.Info) {
	for scanKey := range info.FailedFiles {
		key := mappingKeyFor(scanKey, scan.FoundFiles[scanKey])
		if full != nil {
			delete(full.Files, key)
		}
		if diff != nil {
			delete(diff.Files, key)
		}
	}
	if info.FailedRegistry {
		if full != nil {
			full.Registry = layout.RegistryEntry{}
		}
		if diff != nil {
			diff.Registry = nil
		}
	}
}

// sweepIrrelevant removes whatever backup-*/drive-* folders and leftover
// registry dumps no longer correspond to any generation g's mapping
// records, after a mutation (new generation, retention prune) left them
// orphaned.
func sweepIrrelevant(g *layout.GameLayout) {
	for _, stale := range g.IrrelevantParents([]string{executor.RegistryDumpName}) {
		if err := stale.Remove(); err != nil {
			log.Warn().Err(err).Str("path", stale.Interpreted()).Msg("unable to remove stale backup entry")
		}
	}
}

// scanForBackup resolves gameName's manifest entry and GameLayout and runs
// its forward scan. Read-only against shared state beyond the filesystem
// itself, so BackupAll runs it concurrently across games.
func (d *Driver) scanForBackup(gameName string, toggledPaths scanner.ToggledPaths, toggledRegistry scanner.ToggledRegistry) (*layout.GameLayout, scaninfo.ScanInfo, error) {
	game, ok := d.Manifest[gameName]
	if !ok {
		return nil, scaninfo.ScanInfo{}, fmt.Errorf("unknown game: %s", gameName)
	}

	g := d.Layout.GameLayout(gameName)
	vals := d.Config.Values()
	params := d.scanParams(vals, previousSnapshot(g, vals.Redirects), toggledPaths, toggledRegistry)
	scan := scanner.ScanGameForBackup(gameName, game, params)
	return g, scan, nil
}

// applyBackup folds scan's result into g's mapping: duplicate tracking,
// planning, execution, retention and the stale-entry sweep, then persists.
// Must only ever run on one goroutine at a time per Driver, since it
// mutates the shared duplicate detector and a game's mapping file
// (spec.md §5: both are main-thread-only, applied one game at a time).
func (d *Driver) applyBackup(g *layout.GameLayout, scan scaninfo.ScanInfo, enabled bool) (*executor.Info, map[string]bool, error) {
	stale := d.Duplicates.AddGame(scan, enabled)

	if !enabled {
		return nil, stale, nil
	}

	vals := d.Config.Values()
	if vals.OnlyConstructive && !scan.FoundConstructive() {
		log.Info().Str("game", scan.GameName).Msg("skipping backup: no constructive change found")
		return nil, stale, nil
	}

	kind, full, diff, planned := planner.Plan(g.Mapping(), scan, d.Clock.Now(), vals.Format, vals.Retention)
	if !planned {
		return nil, stale, nil
	}

	info := executor.Execute(g, scan, vals.Format, vals.Compression, full, diff)
	pruneFailed(scan, full, diff, info)

	switch kind {
	case planner.Differential:
		if err := g.InsertDifferential(diff); err != nil {
			return info, stale, err
		}
	default:
		g.InsertBackup(full)
	}

	retention.Enforce(g.Mapping(), vals.Retention)
	sweepIrrelevant(g)

	if err := g.Save(); err != nil {
		return info, stale, fmt.Errorf("saving mapping for %s: %w", scan.GameName, err)
	}
	d.Layout.Remember(scan.GameName, g.Path)

	return info, stale, nil
}

// BackupGame runs the full scan-then-apply pipeline for one game: useful
// standalone, outside a batch, for a single "back up this game" request.
func (d *Driver) BackupGame(
	gameName string,
	enabled bool,
	toggledPaths scanner.ToggledPaths,
	toggledRegistry scanner.ToggledRegistry,
) (scaninfo.ScanInfo, *executor.Info, error) {
	g, scan, err := d.scanForBackup(gameName, toggledPaths, toggledRegistry)
	if err != nil {
		return scaninfo.ScanInfo{}, nil, err
	}
	info, _, err := d.applyBackup(g, scan, enabled)
	return scan, info, err
}

// BackupAll scans every named game concurrently, bounded by workerLimit,
// then folds each result into its mapping one at a time on this call's own
// goroutine, so scanning parallelizes while every mapping write and
// duplicate-detector update stays single-threaded. enabledGames marks
// which games are planned and executed after scanning (a nil map enables
// every game); with a non-nil map, a name absent from it, or present and
// false, is still scanned (so duplicate claims across
// the whole set stay accurate) but never written to disk. Cancelling ctx
// stops dispatching new scans; scans already running finish and their
// results are still applied.
func (d *Driver) BackupAll(ctx context.Context, games []string, enabledGames map[string]bool, progress Progress) error {
	type scanned struct {
		name string
		g    *layout.GameLayout
		scan scaninfo.ScanInfo
		err  error
	}

	out := make(chan scanned)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workerLimit(d.Config))

	for _, name := range games {
		eg.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			g, scan, err := d.scanForBackup(name, nil, nil)
			// The receive loop below drains out until it is closed, so this
			// send always completes and a finished scan is never dropped.
			out <- scanned{name: name, g: g, scan: scan, err: err}
			return nil
		})
	}
	go func() {
		_ = eg.Wait()
		close(out)
	}()

	for s := range out {
		if s.err != nil {
			if progress != nil {
				progress(BatchResult{GameName: s.name, Err: s.err})
			}
			continue
		}

		enabled := enabledGames == nil || enabledGames[s.name]
		_, stale, err := d.applyBackup(s.g, s.scan, enabled)
		if progress != nil {
			progress(BatchResult{GameName: s.name, Scan: s.scan, Err: err, Stale: stale})
		}
	}

	return ctx.Err()
}

// RestoreGame scans gameName's chosen backup generation against its live
// locations and restores every changed, non-ignored hit. Unlike a backup,
// id is validated up front: a caller that named an exact generation wants
// an error when it doesn't exist, not a silent fall-back to the latest one.
func (d *Driver) RestoreGame(
	gameName string,
	id layout.BackupID,
	toggledPaths scanner.ToggledPaths,
	toggledRegistry scanner.ToggledRegistry,
) (scaninfo.ScanInfo, *restore.Info, error) {
	g, ok := d.Layout.TryGameLayout(gameName)
	if !ok {
		return scaninfo.ScanInfo{}, nil, layout.ErrNoBackups
	}
	if err := g.ValidateID(id); err != nil {
		return scaninfo.ScanInfo{}, nil, err
	}

	vals := d.Config.Values()
	scan := restore.Scan(g, id, vals.Redirects, d.Roots, toggledPaths, toggledRegistry, d.Registry)
	info := restore.Restore(scan, vals.Redirects, toggledRegistry, d.Registry)
	return scan, info, nil
}

// RestoreAll restores every named game's chosen backup generation, up to
// workerLimit concurrently. Unlike BackupAll, a restore never mutates a
// game's mapping, so there's no serialized apply phase: every game's
// RestoreGame call is fully independent.
func (d *Driver) RestoreAll(ctx context.Context, games []string, id layout.BackupID, progress Progress) error {
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workerLimit(d.Config))

	var mu sync.Mutex

	for _, name := range games {
		eg.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			scan, _, err := d.RestoreGame(name, id, nil, nil)
			if progress != nil {
				mu.Lock()
				progress(BatchResult{GameName: name, Scan: scan, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}

	_ = eg.Wait()
	return ctx.Err()
}
