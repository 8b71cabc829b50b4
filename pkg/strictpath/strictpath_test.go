// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later

package strictpath_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/savewarden/savewarden/pkg/strictpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderedUsesForwardSlashes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := strictpath.New(filepath.Join(dir, "a", "b"))
	assert.NotContains(t, p.Rendered(), `\`)
}

func TestRelativeJoinsAgainstBaseUnlessAbsolute(t *testing.T) {
	t.Parallel()

	base := t.TempDir()

	rel := strictpath.Relative("saves/slot1.dat", base)
	assert.Equal(t, filepath.Join(base, "saves", "slot1.dat"), rel.Interpreted())

	abs := strictpath.Relative(filepath.Join(base, "elsewhere"), base)
	assert.Equal(t, filepath.Join(base, "elsewhere"), abs.Interpreted())
}

func TestExistsIsFileIsDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	filePath := filepath.Join(dir, "save.dat")
	require.NoError(t, os.WriteFile(filePath, []byte("data"), 0o600))

	file := strictpath.New(filePath)
	assert.True(t, file.Exists())
	assert.True(t, file.IsFile())
	assert.False(t, file.IsDir())

	folder := strictpath.New(dir)
	assert.True(t, folder.IsDir())
	assert.False(t, folder.IsFile())

	missing := strictpath.New(filepath.Join(dir, "nope"))
	assert.False(t, missing.Exists())
}

func TestSha1AndSameContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a.dat")
	b := filepath.Join(dir, "b.dat")
	c := filepath.Join(dir, "c.dat")
	require.NoError(t, os.WriteFile(a, []byte("same bytes"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("same bytes"), 0o600))
	require.NoError(t, os.WriteFile(c, []byte("different"), 0o600))

	pa := strictpath.New(a)
	pb := strictpath.New(b)
	pc := strictpath.New(c)

	hashA, err := pa.Sha1()
	require.NoError(t, err)
	hashB, err := pb.Sha1()
	require.NoError(t, err)
	assert.Equal(t, hashA, hashB)

	assert.True(t, pa.SameContent(pb))
	assert.False(t, pa.SameContent(pc))
}

func TestCopyToPathCreatesParentDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.dat")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o600))

	dst := strictpath.New(filepath.Join(dir, "nested", "deep", "dst.dat"))
	require.NoError(t, strictpath.New(src).CopyToPath(dst))

	assert.True(t, dst.IsFile())
	got, err := os.ReadFile(dst.Interpreted())
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestRemoveIsNotAnErrorWhenAbsent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := strictpath.New(filepath.Join(dir, "never-existed"))
	assert.NoError(t, p.Remove())
}

func TestSplitDrive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		wantDrive string
		wantTail  string
	}{
		{
			name:      "windows_drive_letter",
			raw:       `C:\Users\player\saves`,
			wantDrive: "C:",
			wantTail:  "Users/player/saves",
		},
		{
			name:      "unc_path",
			raw:       `\\nas01\shares\saves`,
			wantDrive: `\\nas01\shares`,
			wantTail:  "saves",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := strictpath.New(tt.raw)
			drive, tail := p.SplitDrive()
			assert.Equal(t, tt.wantDrive, drive)
			assert.Equal(t, tt.wantTail, tail)
		})
	}
}

func TestGetAndSetMtimeZipRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	filePath := filepath.Join(dir, "save.dat")
	require.NoError(t, os.WriteFile(filePath, []byte("data"), 0o600))

	p := strictpath.New(filePath)
	require.NoError(t, p.SetMtimeZip(1_700_000_000))

	got, err := p.GetMtimeZip()
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000), got)
}

func TestInvalidateCacheRecomputesInterpreted(t *testing.T) {
	t.Parallel()

	p := strictpath.New("relative/path")
	first := p.Interpreted()
	p.InvalidateCache()
	second := p.Interpreted()
	assert.Equal(t, first, second, "interpretation should be stable across invalidation with unchanged raw input")
}
