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

// Package placeholder expands a manifest path template against a Root and
// the active platform into a set of concrete path candidates (spec.md
// §4.2). Every recognized token is replaced; a candidate still containing
// an unresolved "<...>" token after substitution is unusable and dropped.
package placeholder

import (
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/adrg/xdg"
	"github.com/savewarden/savewarden/pkg/platform"
	"github.com/savewarden/savewarden/pkg/strictpath"
)

// skip is the sentinel substituted for a token that cannot resolve on the
// current host/store combination; any candidate that still contains it (or
// any other unresolved "<...>" token) after all replacements is discarded.
const skip = "SKIP"

// Token names, matching the manifest grammar verbatim.
const (
	tokenRoot           = "<root>"
	tokenGame           = "<game>"
	tokenBase           = "<base>"
	tokenHome           = "<home>"
	tokenStoreUserID    = "<storeUserId>"
	tokenOSUserName     = "<osUserName>"
	tokenWinAppData     = "<winAppData>"
	tokenWinLocalAppData = "<winLocalAppData>"
	tokenWinDocuments   = "<winDocuments>"
	tokenWinPublic      = "<winPublic>"
	tokenWinProgramData = "<winProgramData>"
	tokenWinDir         = "<winDir>"
	tokenXdgData        = "<xdgData>"
	tokenXdgConfig      = "<xdgConfig>"
)

// SteamShortcut is a non-Steam game added to Steam via shortcuts.vdf
// (pkg/steamvdf supplies these).
type SteamShortcut struct {
	ID       uint32
	StartDir *strictpath.StrictPath
}

// Candidate is one resolved path plus whether matching against it should be
// case-sensitive.
type Candidate struct {
	Path          *strictpath.StrictPath
	CaseSensitive bool
}

// Params bundles everything Resolve needs for one (template, root) pair.
type Params struct {
	Root              RootLike
	InstallDir        string // "" if unknown
	FullInstallDir    *strictpath.StrictPath
	SteamID           *uint32
	ManifestDir       *strictpath.StrictPath
	SteamShortcut     *SteamShortcut
	Platform          platform.OS
}

// RootLike is the subset of roots.Root that placeholder depends on, kept
// narrow so this package doesn't import pkg/roots (which would create an
// import cycle once pkg/roots starts consuming scan results).
type RootLike interface {
	InterpretedPath() string
	StoreValue() platform.Store
}

func isCaseSensitive(p platform.OS) bool {
	return p == platform.Linux
}

// Resolve expands template against params into the full candidate set,
// applying every host/store-specific variant the original describes:
// VirtualStore shadowing, GOG Linux "game" subfolder, Heroic flatpak data
// dirs, OtherHome identity mapping, Steam shortcut start dir, Steam Proton
// prefixes (modern + legacy), and Wine prefix enumeration.
func Resolve(template string, p Params) []Candidate {
	raw := make(map[string]bool)

	rootInterpreted := p.Root.InterpretedPath()
	store := p.Root.StoreValue()

	installDir := p.InstallDir
	if installDir == "" {
		installDir = skip
	}

	dataDir := checkPath(crossPlatformDataDir())
	dataLocalDir := checkPath(crossPlatformDataLocalDir())
	configDir := checkPath(crossPlatformConfigDir())

	base := baseFor(store, rootInterpreted, installDir, p.FullInstallDir)

	primary := strings.NewReplacer(
		tokenRoot, rootInterpreted,
		tokenGame, installDir,
		tokenBase, base,
		tokenHome, homeDirOr(skip),
		tokenStoreUserID, "*",
		tokenOSUserName, osUserName(),
		tokenWinAppData, checkWindowsPathStr(dataDir),
		tokenWinLocalAppData, checkWindowsPathStr(dataLocalDir),
		tokenWinDocuments, checkWindowsPathStr(documentsDir()),
		tokenWinPublic, checkWindowsPathStr(publicDir()),
		tokenWinProgramData, checkWindowsPathStr("C:/ProgramData"),
		tokenWinDir, checkWindowsPathStr("C:/Windows"),
		tokenXdgData, checkNonWindowsPathStr(dataDir),
		tokenXdgConfig, checkNonWindowsPathStr(configDir),
	).Replace(template)
	raw[primary] = isCaseSensitive(p.Platform)

	if platform.Host() == platform.Windows {
		raw[virtualStoreVariant(primary, dataLocalDir)] = isCaseSensitive(p.Platform)
	}

	if store == platform.Gog && platform.Host() == platform.Linux {
		gog := strings.NewReplacer(
			tokenGame, installDir+"/game",
			tokenBase, fmt.Sprintf("%s/%s/game", rootInterpreted, installDir),
		).Replace(template)
		raw[gog] = isCaseSensitive(p.Platform)
	}

	if store == platform.Heroic && platform.Host() == platform.Linux &&
		strings.HasSuffix(rootInterpreted, ".var/app/com.heroicgameslauncher.hgl/config/heroic") {
		heroic := strings.NewReplacer(
			tokenXdgData, checkNonWindowsPathStr(rootInterpreted+"/../../data"),
			tokenXdgConfig, checkNonWindowsPathStr(rootInterpreted+"/../../config"),
			tokenStoreUserID, "*",
		).Replace(template)
		raw[heroic] = isCaseSensitive(p.Platform)
	}

	if store == platform.OtherHome {
		otherHome := strings.NewReplacer(
			tokenRoot, rootInterpreted,
			tokenGame, installDir,
			tokenBase, fmt.Sprintf("%s/%s", rootInterpreted, installDir),
			tokenStoreUserID, skip,
			tokenOSUserName, osUserName(),
			tokenWinAppData, checkWindowsPathStr("<home>/AppData/Roaming"),
			tokenWinLocalAppData, checkWindowsPathStr("<home>/AppData/Local"),
			tokenWinDocuments, checkWindowsPathStr("<home>/Documents"),
			tokenWinPublic, checkWindowsPathStr(publicDir()),
			tokenWinProgramData, checkWindowsPathStr("C:/ProgramData"),
			tokenWinDir, checkWindowsPathStr("C:/Windows"),
			tokenXdgData, checkNonWindowsPathStr("<home>/.local/share"),
			tokenXdgConfig, checkNonWindowsPathStr("<home>/.config"),
			tokenHome, rootInterpreted,
		).Replace(template)
		raw[otherHome] = isCaseSensitive(p.Platform)
	}

	if store == platform.Steam && p.SteamShortcut != nil && p.SteamShortcut.StartDir != nil {
		shortcutVariant := strings.ReplaceAll(template, tokenBase, p.SteamShortcut.StartDir.Interpreted())
		raw[shortcutVariant] = isCaseSensitive(p.Platform)
	}

	if store == platform.Steam && platform.Host() == platform.Linux {
		addSteamProtonVariants(raw, template, rootInterpreted, installDir, p)
	}

	if store == platform.OtherWine {
		addWinePrefixVariants(raw, template, rootInterpreted, installDir)
	}

	out := make([]Candidate, 0, len(raw))
	for text, caseSensitive := range raw {
		if strings.Contains(text, skip) || containsUnresolvedToken(text) {
			continue
		}
		out = append(out, Candidate{
			Path:          strictpath.Relative(text, p.ManifestDir.Interpreted()),
			CaseSensitive: caseSensitive,
		})
	}
	return out
}

func baseFor(store platform.Store, rootInterpreted, installDir string, fullInstallDir *strictpath.StrictPath) string {
	switch store {
	case platform.Steam:
		return fmt.Sprintf("%s/steamapps/common/%s", rootInterpreted, installDir)
	case platform.Heroic:
		if fullInstallDir != nil {
			return fullInstallDir.Interpreted()
		}
		return skip
	default:
		return fmt.Sprintf("%s/%s", rootInterpreted, installDir)
	}
}

func addSteamProtonVariants(raw map[string]bool, template, rootInterpreted, installDir string, p Params) {
	var ids []uint32
	if p.SteamID != nil {
		ids = append(ids, *p.SteamID)
	}
	if p.SteamShortcut != nil {
		ids = append(ids, p.SteamShortcut.ID)
	}

	for _, id := range ids {
		prefix := fmt.Sprintf("%s/steamapps/compatdata/%d/pfx/drive_c", rootInterpreted, id)
		common := strings.NewReplacer(
			tokenRoot, rootInterpreted,
			tokenGame, installDir,
			tokenBase, fmt.Sprintf("%s/steamapps/common/%s", rootInterpreted, installDir),
			tokenHome, fmt.Sprintf("%s/users/steamuser", prefix),
			tokenStoreUserID, "*",
			tokenOSUserName, "steamuser",
			tokenWinPublic, fmt.Sprintf("%s/users/Public", prefix),
			tokenWinProgramData, fmt.Sprintf("%s/ProgramData", prefix),
			tokenWinDir, fmt.Sprintf("%s/windows", prefix),
			tokenXdgData, checkNonWindowsPathStr(xdg.DataHome),
			tokenXdgConfig, checkNonWindowsPathStr(xdg.ConfigHome),
		).Replace(template)

		modern := strings.NewReplacer(
			tokenWinDocuments, fmt.Sprintf("%s/users/steamuser/Documents", prefix),
			tokenWinAppData, fmt.Sprintf("%s/users/steamuser/AppData/Roaming", prefix),
			tokenWinLocalAppData, fmt.Sprintf("%s/users/steamuser/AppData/Local", prefix),
		).Replace(common)
		raw[modern] = false

		legacy := strings.NewReplacer(
			tokenWinDocuments, fmt.Sprintf("%s/users/steamuser/My Documents", prefix),
			tokenWinAppData, fmt.Sprintf("%s/users/steamuser/Application Data", prefix),
			tokenWinLocalAppData, fmt.Sprintf("%s/users/steamuser/Local Settings/Application Data", prefix),
		).Replace(common)
		raw[legacy] = false
	}
}

func addWinePrefixVariants(raw map[string]bool, template, rootInterpreted, installDir string) {
	prefix := rootInterpreted + "/drive_*"
	common := strings.NewReplacer(
		tokenRoot, rootInterpreted,
		tokenGame, installDir,
		tokenBase, fmt.Sprintf("%s/%s", rootInterpreted, installDir),
		tokenHome, prefix+"/users/*",
		tokenStoreUserID, "*",
		tokenOSUserName, "*",
		tokenWinPublic, prefix+"/users/Public",
		tokenWinProgramData, prefix+"/ProgramData",
		tokenWinDir, prefix+"/windows",
		tokenXdgData, checkNonWindowsPathStr(xdg.DataHome),
		tokenXdgConfig, checkNonWindowsPathStr(xdg.ConfigHome),
	).Replace(template)

	modern := strings.NewReplacer(
		tokenWinDocuments, prefix+"/users/*/Documents",
		tokenWinAppData, prefix+"/users/*/AppData/Roaming",
		tokenWinLocalAppData, prefix+"/users/*/AppData/Local",
	).Replace(common)
	raw[modern] = false

	legacy := strings.NewReplacer(
		tokenWinDocuments, prefix+"/users/*/My Documents",
		tokenWinAppData, prefix+"/users/*/Application Data",
		tokenWinLocalAppData, prefix+"/users/*/Local Settings/Application Data",
	).Replace(common)
	raw[legacy] = false
}

// virtualStoreVariant rewrites writes under the protected Program Files /
// Windows / ProgramData trees to their VirtualStore shadow, the way UAC
// redirects unprivileged writes on real Windows hosts.
func virtualStoreVariant(resolved, dataLocalDir string) string {
	out := resolved
	for _, virtualized := range []string{"Program Files (x86)", "Program Files", "Windows", "ProgramData"} {
		for _, sep := range []string{"/", `\`} {
			out = strings.ReplaceAll(out, "C:"+sep+virtualized, fmt.Sprintf("%s/VirtualStore/%s", dataLocalDir, virtualized))
		}
	}
	return out
}

func checkPath(p string) string {
	if p == "" {
		return skip
	}
	return p
}

func checkWindowsPathStr(p string) string {
	if platform.Host() == platform.Windows {
		return p
	}
	return skip
}

func checkNonWindowsPathStr(p string) string {
	if platform.Host() == platform.Windows {
		return skip
	}
	return checkPath(p)
}

func homeDirOr(fallback string) string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return fallback
}

func osUserName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return skip
}

func documentsDir() string {
	if platform.Host() != platform.Windows {
		return skip
	}
	home := homeDirOr("")
	if home == "" {
		return skip
	}
	return home + "/Documents"
}

func publicDir() string {
	if platform.Host() != platform.Windows {
		return skip
	}
	return "C:/Users/Public"
}

// crossPlatformDataDir, crossPlatformDataLocalDir, and crossPlatformConfigDir
// mirror the original's dirs::data_dir()/data_local_dir()/config_dir(): one
// OS-aware function each, reused for both the Windows-side token (when the
// host is actually Windows) and the XDG-side token (otherwise), rather than
// one function per token per OS.
func crossPlatformDataDir() string {
	if platform.Host() == platform.Windows {
		return os.Getenv("APPDATA")
	}
	return xdg.DataHome
}

func crossPlatformDataLocalDir() string {
	if platform.Host() == platform.Windows {
		return os.Getenv("LOCALAPPDATA")
	}
	return xdg.DataHome
}

func crossPlatformConfigDir() string {
	if platform.Host() == platform.Windows {
		return os.Getenv("APPDATA")
	}
	return xdg.ConfigHome
}

func containsUnresolvedToken(s string) bool {
	start := strings.IndexByte(s, '<')
	if start < 0 {
		return false
	}
	end := strings.IndexByte(s[start:], '>')
	return end >= 0
}
