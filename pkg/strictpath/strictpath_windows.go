// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build windows

package strictpath

import (
	"fmt"
	"os"
	"time"

	"github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"
)

// clearReadOnly drops FILE_ATTRIBUTE_READONLY before deletion or overwrite.
// Restored save files are routinely marked read-only by their owning game,
// which otherwise makes a later backup/restore pass fail with "access is
// denied".
func clearReadOnly(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s to clear read-only attribute: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := winio.GetFileBasicInfo(f)
	if err != nil {
		return fmt.Errorf("get file attributes for %s: %w", path, err)
	}
	if info.FileAttributes&windows.FILE_ATTRIBUTE_READONLY == 0 {
		return nil
	}
	info.FileAttributes &^= windows.FILE_ATTRIBUTE_READONLY
	if err := winio.SetFileBasicInfo(f, info); err != nil {
		return fmt.Errorf("clear read-only attribute on %s: %w", path, err)
	}
	return nil
}

func setMtime(path string, unixSeconds int64) error {
	t := time.Unix(unixSeconds, 0)
	if err := os.Chtimes(path, t, t); err != nil {
		return fmt.Errorf("set mtime on %s: %w", path, err)
	}
	return nil
}
