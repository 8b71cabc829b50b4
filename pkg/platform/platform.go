// Package platform holds the small set of enums shared by the manifest,
// root, and placeholder layers: the host operating system and the game
// store/launcher a root belongs to.
package platform

import "runtime"

// OS identifies a target operating system for a manifest constraint or a
// scan. Host reports OtherOS for a runtime.GOOS it does not recognize
// rather than failing.
type OS string

const (
	Windows OS = "windows"
	Linux   OS = "linux"
	Mac     OS = "mac"
	OtherOS OS = "other"
)

// Host returns the OS of the machine running the engine.
func Host() OS {
	switch runtime.GOOS {
	case "windows":
		return Windows
	case "linux":
		return Linux
	case "darwin":
		return Mac
	default:
		return OtherOS
	}
}

// Store identifies the game store/launcher that installed a game under a
// given Root. It determines how <base> and Wine-prefix placeholders expand.
type Store string

const (
	Steam        Store = "steam"
	Epic         Store = "epic"
	Gog          Store = "gog"
	GogGalaxy    Store = "gogGalaxy"
	Heroic       Store = "heroic"
	Legendary    Store = "legendary"
	Lutris       Store = "lutris"
	Microsoft    Store = "microsoft"
	Origin       Store = "origin"
	Ea           Store = "ea"
	Prime        Store = "prime"
	Uplay        Store = "uplay"
	OtherHome    Store = "otherHome"
	OtherWine    Store = "otherWine"
	OtherWindows Store = "otherWindows"
	OtherLinux   Store = "otherLinux"
	OtherMac     Store = "otherMac"
	OtherStore   Store = "other"
)

// IsWindowsLike reports whether files under this store live in a Windows
// (or Windows-emulated, i.e. Wine/Proton) filesystem layout regardless of
// the host OS the engine itself runs on.
func (s Store) IsWindowsLike(host OS) bool {
	switch s {
	case OtherWine:
		return true
	case OtherWindows:
		return true
	case Steam:
		// Steam roots are Windows-layout on a Windows host, and on every
		// other host too, because non-Windows Steam runs games under Proton.
		return true
	default:
		return host == Windows
	}
}

// IsWine reports whether this store's games run under a Wine/Proton
// compatibility prefix rather than natively.
func (s Store) IsWine(host OS) bool {
	if s == OtherWine {
		return true
	}
	return s == Steam && host == Linux
}
