// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later

package placeholder_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/savewarden/savewarden/pkg/placeholder"
	"github.com/savewarden/savewarden/pkg/platform"
	"github.com/savewarden/savewarden/pkg/roots"
	"github.com/savewarden/savewarden/pkg/strictpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func root(store platform.Store, path string) roots.Root {
	return roots.Root{Path: strictpath.New(path), Store: store}
}

func paramsFor(r roots.Root) placeholder.Params {
	return placeholder.Params{
		Root:        r,
		InstallDir:  "Example Game",
		ManifestDir: strictpath.New(os.TempDir()),
		Platform:    platform.Linux,
	}
}

func rendered(t *testing.T, candidates []placeholder.Candidate) []string {
	t.Helper()
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Path.Rendered()
	}
	return out
}

// TestResolveOtherHomeIdentityMapsHomeToRoot is the regression test for the
// OtherHome/OtherStore mixup: an OtherHome root (a bare, store-less "this is
// just a home directory" root) must expand <home> to the root itself, not to
// the resolving machine's actual home directory.
func TestResolveOtherHomeIdentityMapsHomeToRoot(t *testing.T) {
	t.Parallel()

	r := root(platform.OtherHome, "/mnt/saves/otherhome-game")
	candidates := placeholder.Resolve("<home>/save.dat", paramsFor(r))

	want := strictpath.New("/mnt/saves/otherhome-game/save.dat").Rendered()
	assert.Contains(t, rendered(t, candidates), want)
}

// TestResolveOtherStoreDoesNotIdentityMapHome confirms the OtherHome
// identity-mapping branch does not also fire for the unrelated OtherStore
// (an unrecognized/generic store), which has no special <home> handling and
// falls back to the resolving machine's real home directory instead.
func TestResolveOtherStoreDoesNotIdentityMapHome(t *testing.T) {
	t.Parallel()

	r := root(platform.OtherStore, "/mnt/saves/mystery-game")
	candidates := placeholder.Resolve("<home>/save.dat", paramsFor(r))

	identityMapped := strictpath.New("/mnt/saves/mystery-game/save.dat").Rendered()
	assert.NotContains(t, rendered(t, candidates), identityMapped)
}

func TestResolveBaseTokenPerStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		store platform.Store
		want  string
	}{
		{"steam", platform.Steam, "/roots/steam/steamapps/common/Example Game/save.dat"},
		{"otherHome", platform.OtherHome, "/roots/otherHome/Example Game/save.dat"},
		{"otherStore", platform.OtherStore, "/roots/otherStore/Example Game/save.dat"},
		{"gog", platform.Gog, "/roots/gog/Example Game/save.dat"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := root(tc.store, fmt.Sprintf("/roots/%s", tc.name))
			candidates := placeholder.Resolve("<base>/save.dat", paramsFor(r))

			assert.Contains(t, rendered(t, candidates), strictpath.New(tc.want).Rendered())
		})
	}
}

func TestResolveGogLinuxAddsGameSubfolder(t *testing.T) {
	t.Parallel()
	if platform.Host() != platform.Linux {
		t.Skip("GOG's Linux 'game' subfolder variant only fires on a Linux host")
	}

	r := root(platform.Gog, "/roots/gog")
	candidates := placeholder.Resolve("<base>/save.dat", paramsFor(r))

	assert.Contains(t, rendered(t, candidates), strictpath.New("/roots/gog/Example Game/game/save.dat").Rendered())
}

func TestResolveHeroicUsesFullInstallDir(t *testing.T) {
	t.Parallel()

	r := root(platform.Heroic, "/roots/heroic")
	params := paramsFor(r)
	params.FullInstallDir = strictpath.New("/library/example-game")

	candidates := placeholder.Resolve("<base>/save.dat", params)

	assert.Contains(t, rendered(t, candidates), strictpath.New("/library/example-game/save.dat").Rendered())
}

func TestResolveHeroicWithoutFullInstallDirSkipsCandidate(t *testing.T) {
	t.Parallel()

	r := root(platform.Heroic, "/roots/heroic")
	candidates := placeholder.Resolve("<base>/save.dat", paramsFor(r))

	assert.Empty(t, candidates)
}

func TestResolveSteamShortcutUsesStartDir(t *testing.T) {
	t.Parallel()

	r := root(platform.Steam, "/roots/steam")
	params := paramsFor(r)
	params.SteamShortcut = &placeholder.SteamShortcut{
		ID:       12345,
		StartDir: strictpath.New("/home/user/nonsteam/example"),
	}

	candidates := placeholder.Resolve("<base>/save.dat", params)

	assert.Contains(t, rendered(t, candidates), strictpath.New("/home/user/nonsteam/example/save.dat").Rendered())
}

func TestResolveSteamProtonVariants(t *testing.T) {
	t.Parallel()
	if platform.Host() != platform.Linux {
		t.Skip("Proton prefix variants only fire when the engine itself runs on Linux")
	}

	r := root(platform.Steam, "/roots/steam")
	params := paramsFor(r)
	id := uint32(100200300)
	params.SteamID = &id

	candidates := placeholder.Resolve("<winDocuments>/save.dat", params)
	got := rendered(t, candidates)

	modern := strictpath.New("/roots/steam/steamapps/compatdata/100200300/pfx/drive_c/users/steamuser/Documents/save.dat").Rendered()
	legacy := strictpath.New("/roots/steam/steamapps/compatdata/100200300/pfx/drive_c/users/steamuser/My Documents/save.dat").Rendered()

	assert.Contains(t, got, modern)
	assert.Contains(t, got, legacy)
}

func TestResolveOtherWineEnumeratesPrefixes(t *testing.T) {
	t.Parallel()

	r := root(platform.OtherWine, "/roots/wine")
	candidates := placeholder.Resolve("<winDocuments>/save.dat", paramsFor(r))
	got := rendered(t, candidates)

	modern := strictpath.New("/roots/wine/drive_*/users/*/Documents/save.dat").Rendered()
	legacy := strictpath.New("/roots/wine/drive_*/users/*/My Documents/save.dat").Rendered()

	assert.Contains(t, got, modern)
	assert.Contains(t, got, legacy)
}

func TestResolveCaseSensitivityFollowsPlatform(t *testing.T) {
	t.Parallel()

	r := root(platform.OtherHome, "/roots/home")

	linuxParams := paramsFor(r)
	linuxParams.Platform = platform.Linux
	linuxCandidates := placeholder.Resolve("<base>/save.dat", linuxParams)
	require.NotEmpty(t, linuxCandidates)
	assert.True(t, linuxCandidates[0].CaseSensitive)

	windowsParams := paramsFor(r)
	windowsParams.Platform = platform.Windows
	windowsCandidates := placeholder.Resolve("<base>/save.dat", windowsParams)
	require.NotEmpty(t, windowsCandidates)
	assert.False(t, windowsCandidates[0].CaseSensitive)
}

func TestResolveDropsCandidatesWithUnresolvedTokens(t *testing.T) {
	t.Parallel()

	r := root(platform.OtherStore, "/roots/mystery")
	candidates := placeholder.Resolve("<unknownToken>/save.dat", paramsFor(r))

	assert.Empty(t, candidates)
}
