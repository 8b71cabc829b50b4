// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
//go:build !windows

package registryprovider

import "github.com/savewarden/savewarden/pkg/registryitem"

// noopProvider is the Provider used on hosts with no Windows registry.
// Registry entries in a manifest simply never resolve, the same as the
// original treating registry scanning as Windows-only.
type noopProvider struct{}

// New returns the platform's Provider: a no-op everywhere but Windows.
func New() Provider {
	return noopProvider{}
}

func (noopProvider) ReadKey(registryitem.Item) (registryitem.Key, bool) {
	return registryitem.Key{}, false
}

func (noopProvider) WriteKey(registryitem.Item, registryitem.Key, map[string]bool) error {
	return nil
}

func (noopProvider) Expand32And64BitAliases(item registryitem.Item) []registryitem.Item {
	return []registryitem.Item{item}
}

func (noopProvider) Subkeys(registryitem.Item) ([]string, bool) {
	return nil, false
}
