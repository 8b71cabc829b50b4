// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
//go:build windows

package registryprovider

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/savewarden/savewarden/pkg/registryitem"
	"golang.org/x/sys/windows/registry"
)

// windowsProvider is the real registryprovider.Provider backed by
// golang.org/x/sys/windows/registry, grounded on the teacher's
// steamtracker.RegistryWatcher's OpenKey/GetIntegerValue call shapes.
type windowsProvider struct{}

// New returns the platform's Provider: the real registry on Windows.
func New() Provider {
	return windowsProvider{}
}

var rootKeys = map[string]registry.Key{
	"HKCR": registry.CLASSES_ROOT,
	"HKCU": registry.CURRENT_USER,
	"HKLM": registry.LOCAL_MACHINE,
	"HKU":  registry.USERS,
	"HKCC": registry.CURRENT_CONFIG,
}

func (windowsProvider) ReadKey(item registryitem.Item) (registryitem.Key, bool) {
	hive, subkey := item.SplitHive()
	root, ok := rootKeys[hive]
	if !ok {
		return registryitem.Key{}, false
	}

	k, err := registry.OpenKey(root, subkey, registry.QUERY_VALUE)
	if err != nil {
		return registryitem.Key{}, false
	}
	defer func() { _ = k.Close() }()

	names, err := k.ReadValueNames(-1)
	if err != nil {
		return registryitem.Key{}, false
	}

	values := make(map[string]registryitem.Entry, len(names))
	for _, name := range names {
		entry, err := readValue(k, name)
		if err != nil {
			log.Warn().Err(err).Str("value", name).Str("key", item.Rendered()).
				Msg("skipping unreadable registry value")
			continue
		}
		values[name] = entry
	}
	return registryitem.Key{Values: values}, true
}

func readValue(k registry.Key, name string) (registryitem.Entry, error) {
	_, valType, err := k.GetValue(name, nil)
	if err != nil {
		return registryitem.Entry{}, err
	}
	switch valType {
	case registry.SZ:
		s, _, err := k.GetStringValue(name)
		if err != nil {
			return registryitem.Entry{}, err
		}
		return registryitem.Sz(s), nil
	case registry.EXPAND_SZ:
		s, _, err := k.GetStringValue(name)
		if err != nil {
			return registryitem.Entry{}, err
		}
		return registryitem.ExpandSz(s), nil
	case registry.MULTI_SZ:
		s, _, err := k.GetStringsValue(name)
		if err != nil {
			return registryitem.Entry{}, err
		}
		return registryitem.MultiSz(strings.Join(s, "\x00")), nil
	case registry.DWORD:
		v, _, err := k.GetIntegerValue(name)
		if err != nil {
			return registryitem.Entry{}, err
		}
		return registryitem.Dword(uint32(v)), nil //nolint:gosec // DWORD is 32-bit by definition
	case registry.QWORD:
		v, _, err := k.GetIntegerValue(name)
		if err != nil {
			return registryitem.Entry{}, err
		}
		return registryitem.Qword(v), nil
	case registry.BINARY:
		b, _, err := k.GetBinaryValue(name)
		if err != nil {
			return registryitem.Entry{}, err
		}
		return registryitem.Binary(b), nil
	default:
		b, _, err := k.GetBinaryValue(name)
		if err != nil {
			return registryitem.Entry{}, err
		}
		return registryitem.Raw(valType, b), nil
	}
}

func (windowsProvider) WriteKey(item registryitem.Item, key registryitem.Key, ignoredValues map[string]bool) error {
	hive, subkey := item.SplitHive()
	root, ok := rootKeys[hive]
	if !ok {
		return nil
	}

	k, _, err := registry.CreateKey(root, subkey, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer func() { _ = k.Close() }()

	for name, entry := range key.Values {
		if ignoredValues[name] {
			continue
		}
		if err := writeValue(k, name, entry); err != nil {
			log.Warn().Err(err).Str("value", name).Str("key", item.Rendered()).
				Msg("failed writing registry value")
		}
	}
	return nil
}

func writeValue(k registry.Key, name string, entry registryitem.Entry) error {
	switch entry.Kind {
	case registryitem.KindSz:
		return k.SetStringValue(name, entry.Str)
	case registryitem.KindExpandSz:
		return k.SetExpandStringValue(name, entry.Str)
	case registryitem.KindMultiSz:
		return k.SetStringsValue(name, strings.Split(entry.Str, "\x00"))
	case registryitem.KindDword:
		return k.SetDWordValue(name, entry.Dword)
	case registryitem.KindQword:
		return k.SetQWordValue(name, entry.Qword)
	case registryitem.KindBinary:
		return k.SetBinaryValue(name, entry.Binary)
	default:
		return k.SetBinaryValue(name, entry.RawData)
	}
}

// Expand32And64BitAliases mirrors spec.md §4.5 step 6: a Software key under
// HKLM also needs checking under the Wow6432Node redirection target, and a
// HKCU classes key also needs checking under its VirtualStore shadow.
func (windowsProvider) Expand32And64BitAliases(item registryitem.Item) []registryitem.Item {
	out := []registryitem.Item{item}
	hive, key := item.SplitHive()

	const softwarePrefix = `Software\`
	if hive == "HKLM" && strings.HasPrefix(key, softwarePrefix) {
		out = append(out, registryitem.New(hive+`\Software\Wow6432Node\`+strings.TrimPrefix(key, softwarePrefix)))
	}

	const classesPrefix = `Software\Classes\`
	if hive == "HKCU" && strings.HasPrefix(key, classesPrefix) {
		out = append(out, registryitem.New(
			hive+`\Software\Classes\VirtualStore\`+strings.TrimPrefix(key, classesPrefix)))
	}

	return out
}

func (windowsProvider) Subkeys(item registryitem.Item) ([]string, bool) {
	hive, subkey := item.SplitHive()
	root, ok := rootKeys[hive]
	if !ok {
		return nil, false
	}

	k, err := registry.OpenKey(root, subkey, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, false
	}
	defer func() { _ = k.Close() }()

	names, err := k.ReadSubKeyNames(-1)
	if err != nil {
		return nil, false
	}
	return names, true
}
