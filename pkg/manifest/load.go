// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later

package manifest

import (
	"errors"
	"fmt"
	"os"
)

// ErrManifestCannotBeUpdated names the refresh failure from spec.md §7's
// error taxonomy. Fetching a fresh manifest over HTTP is an excluded
// external collaborator; Load only ever reads what's already on disk.
var ErrManifestCannotBeUpdated = errors.New("manifest cannot be updated")

// Load reads the manifest file at path. If it is absent, that is reported
// as ErrManifestCannotBeUpdated rather than ManifestInvalid, since refresh
// is the only thing that could have produced it.
func Load(path string) (Manifest, error) {
	content, err := os.ReadFile(path) //nolint:gosec // engine-controlled config path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrManifestCannotBeUpdated
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return LoadFromString(string(content))
}

// MergeCustomGames layers user-declared custom games over the loaded
// manifest, custom entries winning on name collision (SPEC_FULL.md
// supplement #2).
func MergeCustomGames(m Manifest, customs map[string]Game) Manifest {
	merged := make(Manifest, len(m)+len(customs))
	for name, game := range m {
		merged[name] = game
	}
	for name, game := range customs {
		merged[name] = game
	}
	return merged
}
