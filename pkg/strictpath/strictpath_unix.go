// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !windows

package strictpath

import (
	"fmt"
	"os"
	"time"
)

// clearReadOnly is a no-op outside Windows: Unix permissions don't gate
// deletion the same way, and os.RemoveAll already handles it via the parent
// directory's write bit.
func clearReadOnly(string) error {
	return nil
}

func setMtime(path string, unixSeconds int64) error {
	t := time.Unix(unixSeconds, 0)
	if err := os.Chtimes(path, t, t); err != nil {
		return fmt.Errorf("set mtime on %s: %w", path, err)
	}
	return nil
}
