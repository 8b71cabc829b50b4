// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later

package scanner

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/charlievieth/fastwalk"
	"github.com/rs/zerolog/log"
)

// walkDir recursively lists every regular file under root, following
// symlinks and deduplicating by resolved realpath so a symlink cycle can't
// loop forever, bounded to maxDepth levels (spec.md §4.5 step 4).
func walkDir(root string, maxDepth int) []string {
	var files []string
	seenReal := make(map[string]bool)

	conf := fastwalk.Config{Follow: true}
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping unreadable entry during scan walk")
			return nil
		}

		depth := strings.Count(strings.TrimPrefix(path, root), string(filepath.Separator))
		if d.IsDir() {
			if depth > maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if depth > maxDepth {
			return nil
		}

		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			real = path
		}
		if seenReal[real] {
			return nil
		}
		seenReal[real] = true

		files = append(files, path)
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("root", root).Msg("directory walk failed")
	}
	return files
}
