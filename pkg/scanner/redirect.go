// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later

package scanner

import (
	"strings"

	"github.com/savewarden/savewarden/pkg/config"
	"github.com/savewarden/savewarden/pkg/strictpath"
)

// ApplyRedirect rewrites path's rendered form through the first matching
// redirect whose source prefixes it, honoring which phase (backup/restore)
// a redirect applies to. Exported so pkg/restore's restoration scan can
// apply the same rule when resolving a stored file's write target.
func ApplyRedirect(path *strictpath.StrictPath, redirects []config.RedirectConfig, restoring bool) *strictpath.StrictPath {
	rendered := path.Rendered()
	for _, r := range redirects {
		if restoring && r.Kind == config.RedirectBackup {
			continue
		}
		if !restoring && r.Kind == config.RedirectRestore {
			continue
		}
		if strings.HasPrefix(rendered, r.Source) {
			return strictpath.New(r.Target + strings.TrimPrefix(rendered, r.Source))
		}
	}
	return path
}
