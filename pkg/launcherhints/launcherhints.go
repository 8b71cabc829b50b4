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

// Package launcherhints discovers exact install directories and Wine
// prefixes straight from Heroic and Legendary's own bookkeeping files
// (SPEC_FULL.md supplement #6), bypassing pkg/installdir's fuzzy ranking
// for any game those launchers already know about precisely.
package launcherhints

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/savewarden/savewarden/pkg/roots"
	"github.com/savewarden/savewarden/pkg/strictpath"
	"github.com/savewarden/savewarden/pkg/titlefinder"
)

type legendaryInstalledGame struct {
	AppName     string `json:"app_name"`
	Title       string `json:"title"`
	Platform    string `json:"platform"`
	InstallPath string `json:"install_path"`
}

type gogLibraryGame struct {
	AppName string `json:"app_name"`
	Title   string `json:"title"`
}

type gogLibrary struct {
	Games []gogLibraryGame `json:"games"`
}

type heroicInstalledGame struct {
	AppName     string `json:"appName"`
	Platform    string `json:"platform"`
	InstallPath string `json:"install_path"`
}

type heroicInstalled struct {
	Installed []heroicInstalledGame `json:"installed"`
}

// gamesConfigEntry mirrors one value of Heroic's GamesConfig/<app>.json,
// which is either a real wine/proton config or an unrelated shape we ignore.
type gamesConfigEntry struct {
	WinePrefix string `json:"winePrefix"`
	WineVersion struct {
		Type string `json:"type"`
	} `json:"wineVersion"`
}

type memorized struct {
	installDir *strictpath.StrictPath
	winePrefix *strictpath.StrictPath
}

// Source answers scanner.LauncherHint for every game a Heroic or Legendary
// install directory was found for under one root.
type Source struct {
	games map[string]memorized
}

// Scan builds a Source for root, which must be a Heroic store root. It
// inspects Legendary's installed.json (searched in the given legendaryDir,
// falling back to "../legendary" next to root and "~/.config/legendary")
// and Heroic's own gog_store/{library,installed}.json plus per-game
// GamesConfig/<app>.json for Proton/Wine prefixes, resolving each found
// title through finder the same way a manifest candidate name would be.
func Scan(root roots.Root, finder *titlefinder.Finder, legendaryDir *strictpath.StrictPath) *Source {
	src := &Source{games: make(map[string]memorized)}
	src.detectLegendary(root, finder, legendaryDir)
	src.detectGog(root, finder)
	return src
}

func (s *Source) detectLegendary(root roots.Root, finder *titlefinder.Finder, legendaryDir *strictpath.StrictPath) {
	var candidates []*strictpath.StrictPath
	if legendaryDir != nil {
		candidates = []*strictpath.StrictPath{legendaryDir}
	} else {
		candidates = []*strictpath.StrictPath{
			strictpath.Relative("../legendary", root.Path.Interpreted()),
			strictpath.New("~/.config/legendary"),
		}
	}

	for _, dir := range candidates {
		if !dir.IsDir() {
			continue
		}

		installedPath := dir.Joined("installed.json")
		raw, err := os.ReadFile(installedPath.Interpreted())
		if err != nil {
			log.Trace().Err(err).Str("path", installedPath.Interpreted()).
				Msg("legendary probably not used yet, skipping")
			continue
		}

		var installed map[string]legendaryInstalledGame
		if err := json.Unmarshal(raw, &installed); err != nil {
			log.Warn().Err(err).Str("path", installedPath.Interpreted()).Msg("could not parse legendary installed.json")
			continue
		}

		for _, game := range installed {
			prefix := s.findPrefix(root.Path, strings.ToLower(game.Platform), game.AppName)
			s.memorize(finder, game.Title, strictpath.New(game.InstallPath), prefix)
		}
	}
}

func (s *Source) detectGog(root roots.Root, finder *titlefinder.Finder) {
	libraryPath := root.Path.Joined("gog_store").Joined("library.json")
	raw, err := os.ReadFile(libraryPath.Interpreted())
	if err != nil {
		log.Trace().Err(err).Str("path", libraryPath.Interpreted()).Msg("no Heroic GOG library found")
		return
	}

	var library gogLibrary
	if err := json.Unmarshal(raw, &library); err != nil {
		log.Warn().Err(err).Str("path", libraryPath.Interpreted()).Msg("could not parse Heroic gog_store/library.json")
		return
	}

	titles := make(map[string]string, len(library.Games))
	for _, game := range library.Games {
		titles[game.AppName] = game.Title
	}

	installedPath := root.Path.Joined("gog_store").Joined("installed.json")
	raw, err = os.ReadFile(installedPath.Interpreted())
	if err != nil {
		log.Trace().Err(err).Str("path", installedPath.Interpreted()).Msg("no Heroic GOG installed.json found")
		return
	}

	var installed heroicInstalled
	if err := json.Unmarshal(raw, &installed); err != nil {
		log.Warn().Err(err).Str("path", installedPath.Interpreted()).Msg("could not parse Heroic gog_store/installed.json")
		return
	}

	for _, game := range installed.Installed {
		title, ok := titles[game.AppName]
		if !ok {
			continue
		}
		prefix := s.findPrefix(root.Path, game.Platform, game.AppName)

		var gogID *uint32
		if id, ok := appIDAsUint32(game.AppName); ok {
			gogID = &id
		}
		s.memorizeWithGogID(finder, title, gogID, strictpath.New(game.InstallPath), prefix)
	}
}

// findPrefix reads GamesConfig/<appName>.json for a Windows game and
// translates its wine/proton configuration into the prefix directory that
// pkg/scanner adds as an extra OtherWine root for the game: a plain wine
// prefix is used as-is, a Proton prefix needs its "/pfx" subdirectory
// appended.
func (s *Source) findPrefix(heroicPath *strictpath.StrictPath, platformName, appName string) *strictpath.StrictPath {
	if platformName != "windows" {
		return nil
	}

	configPath := heroicPath.Joined("GamesConfig").Joined(fmt.Sprintf("%s.json", appName))
	raw, err := os.ReadFile(configPath.Interpreted())
	if err != nil {
		return nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil
	}

	entryRaw, ok := wrapper[appName]
	if !ok {
		return nil
	}

	var entry gamesConfigEntry
	if err := json.Unmarshal(entryRaw, &entry); err != nil {
		return nil
	}

	switch entry.WineVersion.Type {
	case "wine":
		return strictpath.New(entry.WinePrefix)
	case "proton":
		return strictpath.New(entry.WinePrefix).Joined("pfx")
	default:
		return nil
	}
}

func (s *Source) memorize(finder *titlefinder.Finder, launcherTitle string, installDir, winePrefix *strictpath.StrictPath) {
	s.memorizeWithGogID(finder, launcherTitle, nil, installDir, winePrefix)
}

func (s *Source) memorizeWithGogID(
	finder *titlefinder.Finder, launcherTitle string, gogID *uint32, installDir, winePrefix *strictpath.StrictPath,
) {
	resolved := finder.Find([]string{launcherTitle}, nil, gogID, true, true, false)
	title := launcherTitle
	if len(resolved) > 0 {
		title = resolved[0]
	} else {
		log.Info().Str("title", launcherTitle).Msg("unrecognized launcher game, keeping its launcher title")
	}

	s.games[title] = memorized{installDir: installDir, winePrefix: winePrefix}
}

// InstallDir satisfies scanner.LauncherHint.
func (s *Source) InstallDir(gameName string) (*strictpath.StrictPath, bool) {
	g, ok := s.games[gameName]
	if !ok || g.installDir == nil {
		return nil, false
	}
	return g.installDir, true
}

// WinePrefix satisfies scanner.LauncherHint.
func (s *Source) WinePrefix(gameName string) (*strictpath.StrictPath, bool) {
	g, ok := s.games[gameName]
	if !ok || g.winePrefix == nil {
		return nil, false
	}
	return g.winePrefix, true
}

// appIDAsUint32 mirrors the original's best-effort GOG app id parse used
// only to pick a gog id hint for the title finder; an unparseable id simply
// yields no numeric hint rather than an error.
func appIDAsUint32(raw string) (uint32, bool) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}
