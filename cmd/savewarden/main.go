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

// Command savewarden is the CLI entrypoint: back up or restore every game a
// configured root and manifest can find, mirroring the teacher's per-platform
// cmd/<platform>/main.go shape (flags, zerolog console writer, signal-driven
// shutdown) adapted to a one-shot batch tool instead of a long-running
// service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/savewarden/savewarden/pkg/applog"
	"github.com/savewarden/savewarden/pkg/backup/layout"
	"github.com/savewarden/savewarden/pkg/config"
	"github.com/savewarden/savewarden/pkg/installdir"
	"github.com/savewarden/savewarden/pkg/launcherhints"
	"github.com/savewarden/savewarden/pkg/manifest"
	"github.com/savewarden/savewarden/pkg/operation"
	"github.com/savewarden/savewarden/pkg/platform"
	"github.com/savewarden/savewarden/pkg/registryprovider"
	"github.com/savewarden/savewarden/pkg/roots"
	"github.com/savewarden/savewarden/pkg/scanner"
	"github.com/savewarden/savewarden/pkg/steamvdf"
	"github.com/savewarden/savewarden/pkg/strictpath"
	"github.com/savewarden/savewarden/pkg/titlefinder"
)

func main() {
	sigs := make(chan os.Signal, 1)
	defer close(sigs)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	restoreCmd := flag.Bool("restore", false, "restore instead of backing up")
	gameName := flag.String("game", "", "only process this one game (default: every manifest game)")
	backupID := flag.String("backup", "", "named backup generation to restore (default: latest)")
	configDir := flag.String("config-dir", "", "directory holding config.toml (default: XDG config dir)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	dir := *configDir
	if dir == "" {
		dir = filepath.Join(xdg.ConfigHome, config.AppName)
	}

	cfg, err := config.NewConfig(dir, config.BaseDefaults)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := applog.Init(dir, *debug || cfg.DebugLogging(), zerolog.ConsoleWriter{Out: os.Stderr}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sigs
		log.Info().Msg("received interrupt, cancelling in-flight work")
		cancel()
	}()

	if err := run(ctx, dir, cfg, *restoreCmd, *gameName, *backupID); err != nil {
		log.Error().Err(err).Msg("savewarden failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, dir string, cfg *config.Instance, restoreMode bool, onlyGame, backupIDName string) error {
	vals := cfg.Values()

	m, err := manifest.Load(vals.Manifest.Path)
	if err != nil {
		log.Warn().Err(err).Str("path", vals.Manifest.Path).Msg("no manifest loaded, continuing with custom games only")
		m = manifest.Manifest{}
	}
	customs := make(map[string]manifest.Game, len(vals.CustomGames))
	for _, c := range vals.CustomGames {
		name, game := manifest.FromCustomGame(c.Name, c.Files, c.Registry)
		customs[name] = game
	}
	m = manifest.MergeCustomGames(m, customs)

	disabled := make(map[string]bool, len(vals.DisabledGames))
	for _, name := range vals.DisabledGames {
		disabled[name] = true
	}

	storeRoots := roots.FromConfig(vals.Roots)

	ranking := installdir.New()
	finder := titlefinder.New()
	for name, game := range m {
		var steamID, gogID *uint32
		if game.Steam != nil {
			steamID = game.Steam.ID
		}
		if game.Gog != nil {
			gogID = game.Gog.ID
		}
		finder.Add(name, steamID, gogID, true, true)
	}
	for _, root := range storeRoots {
		for name, game := range m {
			hints := make([]string, 0, len(game.InstallDir))
			for hint := range game.InstallDir {
				hints = append(hints, hint)
			}
			ranking.Add(root.Path, root.Store, name, hints)
		}
	}

	var launcherHints []scanner.LauncherHint
	for _, root := range storeRoots {
		if root.Store != platform.Heroic {
			continue
		}
		launcherHints = append(launcherHints, launcherhints.Scan(root, finder, nil))
	}

	var shortcuts steamvdf.ShortcutIndex
	for _, root := range storeRoots {
		if root.Store != platform.Steam {
			continue
		}
		idx, scanErr := steamvdf.LoadShortcutIndex(root.Path.Joined("userdata"))
		if scanErr != nil {
			log.Debug().Err(scanErr).Msg("no steam shortcuts found")
			continue
		}
		shortcuts = idx
		break
	}

	backupBase := vals.BackupBase
	if backupBase == "" {
		backupBase = filepath.Join(dir, "backups")
	}
	driver := operation.New(cfg, m, layout.New(strictpath.New(backupBase)),
		registryprovider.New(), storeRoots, launcherHints, ranking, shortcuts)

	games := make([]string, 0, len(m))
	if onlyGame != "" {
		if _, ok := m[onlyGame]; !ok {
			return fmt.Errorf("unknown game: %s", onlyGame)
		}
		games = append(games, onlyGame)
	} else {
		for name := range m {
			games = append(games, name)
		}
	}

	id := layout.Latest()
	if backupIDName != "" {
		id = layout.Named(backupIDName)
	}

	progress := func(r operation.BatchResult) {
		if r.Err != nil {
			log.Error().Err(r.Err).Str("game", r.GameName).Msg("failed")
			return
		}
		log.Info().Str("game", r.GameName).Int("files", len(r.Scan.FoundFiles)).Msg("done")
	}

	if restoreMode {
		return driver.RestoreAll(ctx, games, id, progress)
	}

	enabled := make(map[string]bool, len(games))
	for _, name := range games {
		enabled[name] = !disabled[name]
	}
	return driver.BackupAll(ctx, games, enabled, progress)
}
