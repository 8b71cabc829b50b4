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

// Package strictpath implements StrictPath (spec.md §4.1): an OS-agnostic
// path value with a raw form (as entered), an interpreted form (absolute,
// tilde-expanded, memoized), and a rendered form (interpreted with
// forward slashes, used for equality/hashing/persistence).
package strictpath

import (
	"crypto/sha1" //nolint:gosec // SHA-1 is the manifest's content-addressing hash, not a security boundary
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// caseSensitiveHost is true on hosts whose filesystem is case-sensitive by
// default. It only affects equality/hashing of the rendered form.
var caseSensitiveHost = runtime.GOOS == "linux"

// StrictPath is a path value with three representations. The zero value is
// not meaningful; construct with New or Relative.
type StrictPath struct {
	raw string

	mu          sync.Mutex
	interpreted string
	hasCache    bool
}

// New constructs a StrictPath from a raw path string, which may contain a
// leading "~" or environment-style placeholders already expanded by the
// caller (pkg/placeholder does that expansion before calling New).
func New(raw string) *StrictPath {
	return &StrictPath{raw: raw}
}

// Relative joins base and raw unless raw is already absolute.
func Relative(raw, base string) *StrictPath {
	if raw == "" {
		return New(base)
	}
	if filepath.IsAbs(raw) {
		return New(raw)
	}
	return New(filepath.Join(base, raw))
}

// Raw returns the path exactly as constructed.
func (p *StrictPath) Raw() string {
	return p.raw
}

// Interpreted returns the absolute, tilde-expanded form, computed once and
// memoized. Call InvalidateCache after mutating any field that the
// interpretation depends on (home directory override, environment).
func (p *StrictPath) Interpreted() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hasCache {
		return p.interpreted
	}

	interpreted := expandTilde(p.raw)
	switch {
	case isWindowsStyleAbs(interpreted):
		// A drive-letter or UNC path recorded against a Windows store root
		// (or a Proton/Wine prefix entry) stays in its native form even
		// when the engine runs on a non-Windows host: it names a location
		// inside a prefix, not a path on the host filesystem directly.
		interpreted = cleanWindowsStyle(interpreted)
	case !filepath.IsAbs(interpreted):
		if abs, err := filepath.Abs(interpreted); err == nil {
			interpreted = abs
		}
		interpreted = filepath.Clean(interpreted)
	default:
		interpreted = filepath.Clean(interpreted)
	}

	p.interpreted = interpreted
	p.hasCache = true
	return interpreted
}

// InvalidateCache discards the memoized interpreted form.
func (p *StrictPath) InvalidateCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hasCache = false
	p.interpreted = ""
}

// Rendered returns the interpreted form with forward slashes, the canonical
// form used for equality, hashing, and persistence in mapping.yaml.
func (p *StrictPath) Rendered() string {
	return toForwardSlash(p.Interpreted())
}

// Render is an alias of Rendered kept for parity with spec.md's naming.
func (p *StrictPath) Render() string {
	return p.Rendered()
}

// Key returns the form used for map keys and equality comparisons: the
// rendered form, lowercased when the host filesystem is case-insensitive.
func (p *StrictPath) Key() string {
	r := p.Rendered()
	if !caseSensitiveHost {
		return strings.ToLower(r)
	}
	return r
}

// Equal reports whether two StrictPaths denote the same location, per the
// host's case sensitivity.
func (p *StrictPath) Equal(other *StrictPath) bool {
	if other == nil {
		return false
	}
	return p.Key() == other.Key()
}

func toForwardSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// isWindowsStyleAbs reports whether raw is already an absolute Windows-style
// path (drive letter or UNC), regardless of the host OS.
func isWindowsStyleAbs(raw string) bool {
	if strings.HasPrefix(raw, `\\`) || strings.HasPrefix(raw, `//`) {
		return true
	}
	if len(raw) >= 3 && raw[1] == ':' && (raw[2] == '\\' || raw[2] == '/') {
		c := raw[0]
		return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
	}
	return false
}

// cleanWindowsStyle collapses redundant separators without routing through
// filepath.Clean, whose separator handling follows the host OS rather than
// the path's own notation.
func cleanWindowsStyle(raw string) string {
	forward := toForwardSlash(raw)
	isUNC := strings.HasPrefix(forward, "//")
	segments := strings.Split(forward, "/")
	var kept []string
	for i, seg := range segments {
		if seg == "" && i != 0 {
			continue
		}
		kept = append(kept, seg)
	}
	rebuilt := strings.ReplaceAll(strings.Join(kept, "/"), "/", `\`)
	if isUNC {
		return `\\` + strings.TrimPrefix(rebuilt, `\`)
	}
	return rebuilt
}

func expandTilde(raw string) string {
	if raw == "~" || strings.HasPrefix(raw, "~/") || strings.HasPrefix(raw, "~\\") {
		home, err := os.UserHomeDir()
		if err != nil {
			return raw
		}
		if raw == "~" {
			return home
		}
		return filepath.Join(home, raw[2:])
	}
	return raw
}

// SplitDrive splits the interpreted path into a drive component and the
// remaining tail. On every host, a drive-letter path yields its "C:"
// prefix as the drive and a UNC-style path its `\\server\share` prefix;
// any other path has an empty drive (spec.md §4.1).
func (p *StrictPath) SplitDrive() (drive, tail string) {
	interp := p.Interpreted()

	if strings.HasPrefix(interp, `\\`) || strings.HasPrefix(interp, `//`) {
		rest := strings.TrimPrefix(strings.TrimPrefix(interp, `\\`), `//`)
		parts := strings.SplitN(toForwardSlash(rest), "/", 3)
		switch len(parts) {
		case 0:
			return "", interp
		case 1:
			return `\\` + parts[0], ""
		default:
			drive = `\\` + parts[0] + `\` + parts[1]
			tail = strings.Join(parts[2:], "/")
			return drive, tail
		}
	}

	if len(interp) >= 2 && interp[1] == ':' {
		isLetter := (interp[0] >= 'A' && interp[0] <= 'Z') || (interp[0] >= 'a' && interp[0] <= 'z')
		if isLetter {
			drive = interp[:2]
			tail = strings.TrimPrefix(toForwardSlash(interp[2:]), "/")
			return drive, tail
		}
	}

	return "", toForwardSlash(interp)
}

// Joined returns a new StrictPath for tail resolved relative to p.
func (p *StrictPath) Joined(tail string) *StrictPath {
	return New(filepath.Join(p.Interpreted(), tail))
}

// Exists, IsFile, and IsDir treat absence as a value, never an error.
func (p *StrictPath) Exists() bool {
	_, err := os.Stat(p.Interpreted())
	return err == nil
}

func (p *StrictPath) IsFile() bool {
	info, err := os.Stat(p.Interpreted())
	return err == nil && info.Mode().IsRegular()
}

func (p *StrictPath) IsDir() bool {
	info, err := os.Stat(p.Interpreted())
	return err == nil && info.IsDir()
}

// ReadDirNames lists the direct child directory names under p, skipping
// files. Used by pkg/installdir to enumerate actual install-dir candidates
// under a store's install parent.
func (p *StrictPath) ReadDirNames() ([]string, error) {
	entries, err := os.ReadDir(p.Interpreted())
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", p.Interpreted(), err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Size returns the file size in bytes, or 0 with an error if the path is
// not a readable regular file.
func (p *StrictPath) Size() (int64, error) {
	info, err := os.Stat(p.Interpreted())
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", p.Interpreted(), err)
	}
	return info.Size(), nil
}

// Metadata returns the underlying os.FileInfo.
func (p *StrictPath) Metadata() (os.FileInfo, error) {
	info, err := os.Stat(p.Interpreted())
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", p.Interpreted(), err)
	}
	return info, nil
}

// Sha1 streams the file and returns its lowercase hex SHA-1 digest.
func (p *StrictPath) Sha1() (string, error) {
	f, err := os.Open(p.Interpreted()) //nolint:gosec // path is engine-controlled, not raw user input
	if err != nil {
		return "", fmt.Errorf("open %s: %w", p.Interpreted(), err)
	}
	defer func() { _ = f.Close() }()

	h := sha1.New() //nolint:gosec // content-addressing, not a security boundary
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", p.Interpreted(), err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// SameContent reports whether both paths exist as regular files with equal
// size and equal SHA-1.
func (p *StrictPath) SameContent(other *StrictPath) bool {
	if !p.IsFile() || !other.IsFile() {
		return false
	}
	sizeA, err := p.Size()
	if err != nil {
		return false
	}
	sizeB, err := other.Size()
	if err != nil || sizeA != sizeB {
		return false
	}
	hashA, err := p.Sha1()
	if err != nil {
		return false
	}
	hashB, err := other.Sha1()
	if err != nil {
		return false
	}
	return hashA == hashB
}

// Glob expands the interpreted path as a glob pattern, using the host's
// default case sensitivity.
func (p *StrictPath) Glob() ([]string, error) {
	return p.globWithCase(caseSensitiveHost)
}

// GlobCaseSensitive expands the interpreted path as a glob pattern,
// overriding the host default for this one call (pkg/scanner uses it for
// the candidates pkg/placeholder marks case-sensitive).
func (p *StrictPath) GlobCaseSensitive(caseSensitive bool) ([]string, error) {
	return p.globWithCase(caseSensitive)
}

func (p *StrictPath) globWithCase(caseSensitive bool) ([]string, error) {
	pattern := toForwardSlash(p.Interpreted())
	if !caseSensitive {
		pattern = caseInsensitiveGlobPattern(pattern)
	}
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	return matches, nil
}

// caseInsensitiveGlobPattern rewrites each alphabetic rune outside of glob
// metacharacters into a [Aa] class so doublestar matches regardless of case.
func caseInsensitiveGlobPattern(pattern string) string {
	var b strings.Builder
	inClass := false
	for _, r := range pattern {
		switch {
		case r == '[':
			inClass = true
			b.WriteRune(r)
		case r == ']':
			inClass = false
			b.WriteRune(r)
		case inClass:
			b.WriteRune(r)
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			lower := r | 0x20
			upper := r &^ 0x20
			fmt.Fprintf(&b, "[%c%c]", upper, lower)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CopyToPath copies p's content to dst, creating parent directories. It
// does not preserve mtime, and neither pkg/backup/executor nor pkg/restore
// sets one afterward on a file copied this way.
func (p *StrictPath) CopyToPath(dst *StrictPath) error {
	if err := dst.CreateParentDir(); err != nil {
		return err
	}

	src, err := os.Open(p.Interpreted()) //nolint:gosec // engine-controlled path
	if err != nil {
		return fmt.Errorf("open source %s: %w", p.Interpreted(), err)
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dst.Interpreted()) //nolint:gosec // engine-controlled path
	if err != nil {
		return fmt.Errorf("create destination %s: %w", dst.Interpreted(), err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("copy %s -> %s: %w", p.Interpreted(), dst.Interpreted(), err)
	}
	return nil
}

// CreateParentDir ensures the parent directory of p exists.
func (p *StrictPath) CreateParentDir() error {
	dir := filepath.Dir(p.Interpreted())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create parent dir %s: %w", dir, err)
	}
	return nil
}

// Remove deletes the file or directory tree at p. Absence is not an error.
func (p *StrictPath) Remove() error {
	if err := clearReadOnly(p.Interpreted()); err != nil {
		return err
	}
	if err := os.RemoveAll(p.Interpreted()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", p.Interpreted(), err)
	}
	return nil
}

// GetMtimeZip and SetMtimeZip are used by the zip backup/restore path to
// preserve modification times across an archive round trip; they operate on
// the interpreted filesystem path, not an archive entry, and are named to
// mirror spec.md §4.1's interface.
func (p *StrictPath) GetMtimeZip() (int64, error) {
	info, err := p.Metadata()
	if err != nil {
		return 0, err
	}
	return info.ModTime().Unix(), nil
}

func (p *StrictPath) SetMtimeZip(unixSeconds int64) error {
	return setMtime(p.Interpreted(), unixSeconds)
}
