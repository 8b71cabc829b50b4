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

package restore

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/savewarden/savewarden/pkg/archivefmt"
	"github.com/savewarden/savewarden/pkg/changeclass"
	"github.com/savewarden/savewarden/pkg/config"
	"github.com/savewarden/savewarden/pkg/registryitem"
	"github.com/savewarden/savewarden/pkg/registryprovider"
	"github.com/savewarden/savewarden/pkg/scaninfo"
	"github.com/savewarden/savewarden/pkg/scanner"
	"github.com/savewarden/savewarden/pkg/strictpath"
)

// Info records per-file and registry write-back failures from one Restore
// call, the restoration counterpart to pkg/backup/executor.Info.
type Info struct {
	FailedFiles    map[string]error
	FailedRegistry map[string]error
}

func newInfo() *Info {
	return &Info{FailedFiles: make(map[string]error), FailedRegistry: make(map[string]error)}
}

// Restore writes every changed, non-ignored file in scan back to its
// (possibly redirected) restoration target, and writes the scan's registry
// content back through provider. A zip container is opened once and reused
// across every entry it holds; a container that fails to open fails every
// file that would have read from it, without aborting the rest of the
// restore. redirects must be the same list Scan was called with, so the
// target recomputed here matches what Scan classified the file against.
func Restore(scan scaninfo.ScanInfo, redirects []config.RedirectConfig, toggledRegistry scanner.ToggledRegistry, provider registryprovider.Provider) *Info {
	info := newInfo()

	containers := make(map[string]*archivefmt.Reader)
	failedContainers := make(map[string]error)
	defer func() {
		for _, r := range containers {
			_ = r.Close()
		}
	}()

	for scanKey, file := range scan.FoundFiles {
		if file.Ignored || file.Change == changeclass.Same {
			continue
		}

		target := restorationTarget(file, redirects)

		if file.Container == "" {
			if err := file.Path.CopyToPath(target); err != nil {
				log.Error().Err(err).Str("game", scan.GameName).Str("file", scanKey).Msg("restore copy failed")
				info.FailedFiles[scanKey] = err
			}
			continue
		}

		if err, failed := failedContainers[file.Container]; failed {
			info.FailedFiles[scanKey] = err
			continue
		}

		r, ok := containers[file.Container]
		if !ok {
			opened, err := archivefmt.OpenReader(file.Container)
			if err != nil {
				log.Error().Err(err).Str("game", scan.GameName).Str("container", file.Container).Msg("failed to open backup archive")
				failedContainers[file.Container] = err
				info.FailedFiles[scanKey] = err
				continue
			}
			containers[file.Container] = opened
			r = opened
		}

		if err := restoreFromZip(r, file, target); err != nil {
			log.Error().Err(err).Str("game", scan.GameName).Str("file", scanKey).Msg("restore from archive failed")
			info.FailedFiles[scanKey] = err
		}
	}

	if len(scan.FoundRegistryKeys) > 0 && provider != nil {
		for name, err := range restoreRegistry(scan, toggledRegistry, provider) {
			info.FailedRegistry[name] = err
		}
	}

	return info
}

// restorationTarget is where a scanned restoration candidate gets written:
// OriginalPath passed back through the same redirect rule Scan classified
// it against.
func restorationTarget(file scaninfo.ScannedFile, redirects []config.RedirectConfig) *strictpath.StrictPath {
	return scanner.ApplyRedirect(file.OriginalPath, redirects, true)
}

func restoreFromZip(r *archivefmt.Reader, file scaninfo.ScannedFile, target *strictpath.StrictPath) error {
	if err := target.CreateParentDir(); err != nil {
		return fmt.Errorf("creating parent dir: %w", err)
	}

	rc, header, err := r.Open(file.Path.Raw())
	if err != nil {
		return fmt.Errorf("opening archive entry: %w", err)
	}
	defer func() { _ = rc.Close() }()

	out, err := createTargetFile(target)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("copying archive entry: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("closing restored file: %w", err)
	}
	if err := target.SetMtimeZip(header.ModTime().Unix()); err != nil {
		return fmt.Errorf("setting mtime: %w", err)
	}
	return nil
}

func createTargetFile(target *strictpath.StrictPath) (*os.File, error) {
	out, err := os.Create(target.Interpreted()) //nolint:gosec // restoration target, already resolved through ApplyRedirect
	if err != nil {
		return nil, fmt.Errorf("creating restored file: %w", err)
	}
	return out, nil
}

func restoreRegistry(scan scaninfo.ScanInfo, toggled scanner.ToggledRegistry, provider registryprovider.Provider) map[string]error {
	failed := make(map[string]error)

	for rendered, reg := range scan.FoundRegistryKeys {
		if reg.Ignored {
			continue
		}

		ignoredValues := make(map[string]bool, len(reg.Values))
		for name, v := range reg.Values {
			ignoredValues[name] = v.Ignored || toggled[rendered+"\x00"+name]
		}

		values := make(map[string]registryitem.Entry, len(reg.Values))
		for name, v := range reg.Values {
			values[name] = v.Entry
		}

		if err := provider.WriteKey(reg.Path, registryitem.Key{Values: values}, ignoredValues); err != nil {
			failed[rendered] = err
		}
	}

	return failed
}
