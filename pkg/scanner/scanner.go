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

// Package scanner implements scan_game_for_backup (spec.md §4.5): for one
// game, resolve every candidate path across every configured root, glob and
// walk what exists, hash it, and classify each hit against a prior backup
// snapshot.
package scanner

import (
	"context"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
	"github.com/savewarden/savewarden/pkg/changeclass"
	"github.com/savewarden/savewarden/pkg/config"
	"github.com/savewarden/savewarden/pkg/installdir"
	"github.com/savewarden/savewarden/pkg/manifest"
	"github.com/savewarden/savewarden/pkg/placeholder"
	"github.com/savewarden/savewarden/pkg/platform"
	"github.com/savewarden/savewarden/pkg/registryprovider"
	"github.com/savewarden/savewarden/pkg/roots"
	"github.com/savewarden/savewarden/pkg/scaninfo"
	"github.com/savewarden/savewarden/pkg/steamvdf"
	"github.com/savewarden/savewarden/pkg/strictpath"
)

// maxWalkDepth bounds recursive directory walks and registry key walks,
// mirroring spec.md §4.5 step 4's "max depth 100".
const maxWalkDepth = 100

// Filter is the user-maintained BackupFilter (SPEC_FULL.md supplement #5):
// glob excludes plus a substring-in-path exclude list, beyond the per-item
// toggled ignore a caller passes in separately.
type Filter struct {
	ExcludeGlobs            []string
	ExcludePathContains     []string
	ExcludeStoreScreenshots bool
}

// Excludes reports whether renderedPath is dropped by this filter.
func (f Filter) Excludes(renderedPath string) bool {
	for _, frag := range f.ExcludePathContains {
		if strings.Contains(renderedPath, frag) {
			return true
		}
	}
	for _, pattern := range f.ExcludeGlobs {
		if ok, err := doublestar.Match(pattern, renderedPath); err == nil && ok {
			return true
		}
	}
	return false
}

// LauncherHint is an optional per-game install-dir/Wine-prefix source that
// bypasses InstallDirRanking fuzzy matching when a launcher already states
// the exact path (SPEC_FULL.md supplement #6); pkg/launcherhints implements
// this for Heroic and Legendary.
type LauncherHint interface {
	InstallDir(gameName string) (*strictpath.StrictPath, bool)
	WinePrefix(gameName string) (*strictpath.StrictPath, bool)
}

// ToggledPaths maps a candidate's rendered path to whether the user has
// manually toggled it to be ignored.
type ToggledPaths map[string]bool

// ToggledRegistry maps a registry item's rendered key, or "key\x00value"
// for one value within it, to whether the user has toggled it ignored.
type ToggledRegistry map[string]bool

// PreviousSnapshot is what the prior backup recorded for this game, used to
// classify this scan's hits as New/Same/Different/Removed.
type PreviousSnapshot struct {
	FileHashes map[string]string            // rendered post-redirect path -> sha1
	Registry   map[string]map[string]string // rendered key -> value name -> RegFormat()
}

// Params bundles everything ScanGameForBackup needs beyond the game itself.
type Params struct {
	Roots              []roots.Root
	ManifestDir        *strictpath.StrictPath
	LauncherHints      []LauncherHint
	Filter             Filter
	WinePrefixOverride *strictpath.StrictPath
	Ranking            *installdir.Ranking
	ToggledPaths       ToggledPaths
	ToggledRegistry    ToggledRegistry
	Previous           *PreviousSnapshot
	Redirects          []config.RedirectConfig
	SteamShortcuts     steamvdf.ShortcutIndex
	OnlyConstructive   bool
	Registry           registryprovider.Provider
	Platform           platform.OS
}

// candidateKey identifies one merged candidate across roots/templates.
type candidateKey struct {
	rendered      string
	caseSensitive bool
}

// ScanGameForBackup runs the full algorithm in spec.md §4.5 and returns the
// resulting ScanInfo. It never returns an error: individual failures are
// recorded per-entry in the returned ScanInfo instead (spec.md's failure
// model).
func ScanGameForBackup(gameName string, game manifest.Game, params Params) scaninfo.ScanInfo {
	scan := scaninfo.ScanInfo{
		GameName:                gameName,
		FoundFiles:              make(map[string]scaninfo.ScannedFile),
		FoundRegistryKeys:       make(map[string]scaninfo.ScannedRegistry),
		OnlyConstructiveBackups: params.OnlyConstructive,
	}

	scanRoots := seedRoots(gameName, params)

	candidates := make(map[candidateKey]placeholder.Candidate)
	candidateRoots := make(map[candidateKey]roots.Root)
	for _, root := range scanRoots {
		installDir, fullInstallDir := installDirFor(gameName, root, params)

		for template, entry := range game.Files {
			if !fileEligible(entry, params.Platform, root.Store) {
				continue
			}
			resolveInto(candidates, candidateRoots, template, gameName, root, installDir, fullInstallDir, game, params)
		}
	}

	addSteamProbes(candidates, game, scanRoots, params)

	for key, candidate := range candidates {
		scanCandidate(&scan, key, candidate, candidateRoots[key], params)
	}

	synthesizeRemovedFiles(&scan, params)

	if params.Platform == platform.Windows && params.Registry != nil {
		scanRegistry(&scan, game, params)
	}

	return scan
}

// seedRoots builds the roots-to-check list per step 1: a dummy SKIP root
// for templates that don't need <root>, every configured root, the CLI
// wine-prefix override (as OtherWine), and any Heroic-discovered prefix
// (also as OtherWine).
func seedRoots(gameName string, params Params) []roots.Root {
	out := make([]roots.Root, 0, len(params.Roots)+2)
	out = append(out, roots.Root{Path: strictpath.New("SKIP"), Store: platform.OtherStore})
	out = append(out, params.Roots...)

	if params.WinePrefixOverride != nil {
		out = append(out, roots.Root{Path: params.WinePrefixOverride, Store: platform.OtherWine})
	}

	for _, hint := range params.LauncherHints {
		if prefix, ok := hint.WinePrefix(gameName); ok {
			out = append(out, roots.Root{Path: prefix, Store: platform.OtherWine})
		}
	}

	return out
}

// installDirFor resolves a root's install directory name for gameName,
// preferring an exact launcher hint over InstallDirRanking's fuzzy match.
func installDirFor(gameName string, root roots.Root, params Params) (name string, full *strictpath.StrictPath) {
	for _, hint := range params.LauncherHints {
		if dir, ok := hint.InstallDir(gameName); ok {
			return dir.Interpreted(), dir
		}
	}
	if params.Ranking != nil {
		if dir, ok := params.Ranking.Get(root.Path, gameName); ok {
			return dir, nil
		}
	}
	return "", nil
}

func fileEligible(entry manifest.FileEntry, host platform.OS, store platform.Store) bool {
	if len(entry.When) == 0 {
		return true
	}
	for _, c := range entry.When {
		if c.Os != nil && !c.Os.Matches(host) {
			continue
		}
		if c.Store != nil && *c.Store != store {
			continue
		}
		return true
	}
	return false
}

func registryEligible(entry manifest.RegistryEntry, store platform.Store) bool {
	if len(entry.When) == 0 {
		return true
	}
	for _, c := range entry.When {
		if c.Store != nil && *c.Store != store {
			continue
		}
		return true
	}
	return false
}

func resolveInto(
	candidates map[candidateKey]placeholder.Candidate,
	candidateRoots map[candidateKey]roots.Root,
	template string,
	gameName string,
	root roots.Root,
	installDir string,
	fullInstallDir *strictpath.StrictPath,
	game manifest.Game,
	params Params,
) {
	var steamID *uint32
	if game.Steam != nil {
		steamID = game.Steam.ID
	}
	var shortcut *placeholder.SteamShortcut
	if s, ok := lookupShortcut(params.SteamShortcuts, gameName, game.Aliases); ok {
		shortcut = &s
	}

	resolved := placeholder.Resolve(template, placeholder.Params{
		Root:           root,
		InstallDir:     installDir,
		FullInstallDir: fullInstallDir,
		SteamID:        steamID,
		ManifestDir:    params.ManifestDir,
		SteamShortcut:  shortcut,
		Platform:       params.Platform,
	})

	for _, c := range resolved {
		key := candidateKey{rendered: c.Path.Rendered(), caseSensitive: c.CaseSensitive}
		candidates[key] = c
		candidateRoots[key] = root
	}
}

// lookupShortcut tries gameName then each alias against the Steam shortcut
// index, since a non-Steam game's shortcut entry may be registered under an
// alternate name the user typed when adding it.
func lookupShortcut(idx steamvdf.ShortcutIndex, gameName string, aliases []string) (placeholder.SteamShortcut, bool) {
	if s, ok := idx.Lookup(gameName); ok {
		return s, true
	}
	for _, alias := range aliases {
		if s, ok := idx.Lookup(alias); ok {
			return s, true
		}
	}
	return placeholder.SteamShortcut{}, false
}

// addSteamProbes implements step 3: for Steam roots with a known Steam id,
// probe cloud-save and screenshot paths, and (on Linux) Proton-managed .reg
// dumps when the game has registry entries.
func addSteamProbes(candidates map[candidateKey]placeholder.Candidate, game manifest.Game, scanRoots []roots.Root, params Params) {
	if game.Steam == nil || game.Steam.ID == nil {
		return
	}
	appID := steamvdf.AppIDString(*game.Steam.ID)

	for _, root := range scanRoots {
		if root.Store != platform.Steam {
			continue
		}

		addGlobCandidates(candidates, root.Path.Joined(fmt.Sprintf("userdata/*/%s/remote", appID)))

		if !params.Filter.ExcludeStoreScreenshots {
			addGlobCandidates(candidates, root.Path.Joined(fmt.Sprintf("userdata/*/%s/screenshots", appID)))
		}

		if params.Platform == platform.Linux && len(game.Registry) > 0 {
			protonRegGlob := root.Path.Joined(fmt.Sprintf("steamapps/compatdata/%s/pfx/*.reg", appID))
			addGlobCandidates(candidates, protonRegGlob)
		}
	}
}

func addGlobCandidates(candidates map[candidateKey]placeholder.Candidate, pattern *strictpath.StrictPath) {
	matches, err := pattern.Glob()
	if err != nil {
		return
	}
	for _, m := range matches {
		p := strictpath.New(m)
		key := candidateKey{rendered: p.Rendered(), caseSensitive: false}
		candidates[key] = placeholder.Candidate{Path: p, CaseSensitive: false}
	}
}

// scanCandidate globs one resolved candidate and records every hit: a file
// hit directly, a directory hit via a recursive walk. A candidate whose root
// is a UNC/SMB share is read over the network instead, since StrictPath's
// glob/walk/hash all assume a local filesystem.
func scanCandidate(scan *scaninfo.ScanInfo, key candidateKey, candidate placeholder.Candidate, root roots.Root, params Params) {
	if root.IsSMB() {
		scanSMBCandidate(scan, candidate, root, params)
		return
	}

	var (
		matches []string
		err     error
	)
	if candidate.CaseSensitive {
		matches, err = candidate.Path.GlobCaseSensitive(true)
	} else {
		matches, err = candidate.Path.Glob()
	}
	if err != nil {
		log.Warn().Err(err).Str("pattern", key.rendered).Msg("failed to glob scan candidate")
		return
	}

	for _, m := range matches {
		hit := strictpath.New(m)
		if hit.IsDir() {
			for _, filePath := range walkDir(hit.Interpreted(), maxWalkDepth) {
				recordFile(scan, strictpath.New(filePath), params)
			}
			continue
		}
		if hit.IsFile() {
			recordFile(scan, hit, params)
		}
	}
}

// scanSMBCandidate dials root's share once and walks/hashes candidate's
// resolved path over it, recording every file it finds the same way
// recordFile does for a local hit.
func scanSMBCandidate(scan *scaninfo.ScanInfo, candidate placeholder.Candidate, root roots.Root, params Params) {
	target, err := roots.ParseSMBTarget(candidate.Path.Raw())
	if err != nil {
		log.Warn().Err(err).Str("path", candidate.Path.Raw()).Msg("failed to parse SMB scan candidate")
		return
	}

	share, err := roots.DialShare(context.Background(), target, root.Credentials)
	if err != nil {
		log.Warn().Err(err).Str("server", target.Server).Msg("failed to reach SMB share for scan candidate")
		return
	}
	defer func() {
		if closeErr := share.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing SMB share after scan")
		}
	}()

	info, err := share.Stat(target.FilePath)
	if err != nil {
		return
	}

	if info.IsDir() {
		for _, filePath := range share.WalkFiles(target.FilePath, maxWalkDepth) {
			recordSMBFile(scan, share, target.Server, target.ShareName, filePath, params)
		}
		return
	}
	recordSMBFile(scan, share, target.Server, target.ShareName, target.FilePath, params)
}

// recordSMBFile mirrors recordFile for a hit found over an SMB share: hash
// and size come from the share itself rather than a local os.Stat/os.Open.
func recordSMBFile(scan *scaninfo.ScanInfo, share *roots.SMBShare, server, shareName, filePath string, params Params) {
	path := strictpath.New(fmt.Sprintf(`\\%s\%s\%s`, server, shareName, filePath))
	rendered := path.Rendered()
	if _, already := scan.FoundFiles[rendered]; already {
		return
	}

	postRedirect := ApplyRedirect(path, params.Redirects, false)

	hash, size, failure := share.Sha1(filePath)

	var previousHash *string
	if params.Previous != nil {
		if h, ok := params.Previous.FileHashes[postRedirect.Rendered()]; ok {
			previousHash = &h
		}
	}

	ignored := params.Filter.Excludes(rendered) || params.ToggledPaths[rendered]

	scan.FoundFiles[rendered] = scaninfo.ScannedFile{
		Path:    path,
		Size:    size,
		Hash:    hash,
		Ignored: ignored,
		Change:  changeclass.EvaluateBackup(hash, previousHash),
		Failure: failure,
	}
}

func recordFile(scan *scaninfo.ScanInfo, path *strictpath.StrictPath, params Params) {
	rendered := path.Rendered()
	if _, already := scan.FoundFiles[rendered]; already {
		return
	}

	postRedirect := ApplyRedirect(path, params.Redirects, false)

	var failure error
	hash, err := path.Sha1()
	if err != nil {
		failure = err
	}
	size, err := path.Size()
	if err != nil && failure == nil {
		failure = err
	}

	var previousHash *string
	if params.Previous != nil {
		if h, ok := params.Previous.FileHashes[postRedirect.Rendered()]; ok {
			previousHash = &h
		}
	}

	ignored := params.Filter.Excludes(rendered) || params.ToggledPaths[rendered]

	scan.FoundFiles[rendered] = scaninfo.ScannedFile{
		Path:    path,
		Size:    size,
		Hash:    hash,
		Ignored: ignored,
		Change:  changeclass.EvaluateBackup(hash, previousHash),
		Failure: failure,
	}
}

// synthesizeRemovedFiles implements step 5: any file the previous snapshot
// recorded that this scan didn't touch is recorded as Removed with size 0
// and an empty hash.
func synthesizeRemovedFiles(scan *scaninfo.ScanInfo, params Params) {
	if params.Previous == nil {
		return
	}

	found := make(map[string]bool, len(scan.FoundFiles))
	for _, f := range scan.FoundFiles {
		found[ApplyRedirect(f.Path, params.Redirects, false).Rendered()] = true
	}

	for renderedPrev := range params.Previous.FileHashes {
		if found[renderedPrev] {
			continue
		}
		if _, already := scan.FoundFiles[renderedPrev]; already {
			continue
		}
		scan.FoundFiles[renderedPrev] = scaninfo.ScannedFile{
			Path:    strictpath.New(renderedPrev),
			Change:  changeclass.Removed,
			Ignored: params.ToggledPaths[renderedPrev],
		}
	}
}
