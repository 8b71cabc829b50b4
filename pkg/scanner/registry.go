// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later

package scanner

import (
	"github.com/savewarden/savewarden/pkg/changeclass"
	"github.com/savewarden/savewarden/pkg/manifest"
	"github.com/savewarden/savewarden/pkg/platform"
	"github.com/savewarden/savewarden/pkg/registryitem"
	"github.com/savewarden/savewarden/pkg/scaninfo"
)

// scanRegistry implements step 6: expand each eligible registry template to
// its 32/64-bit aliases, walk each recursively, and classify keys/values
// against the previous snapshot.
func scanRegistry(scan *scaninfo.ScanInfo, game manifest.Game, params Params) {
	for template, entry := range game.Registry {
		if !registryEligible(entry, storeHint(params)) {
			continue
		}
		item := registryitem.New(template)
		for _, expanded := range params.Registry.Expand32And64BitAliases(item) {
			walkRegistryKey(scan, expanded, params, 0)
		}
	}
}

// storeHint picks a representative store to evaluate RegistryConstraint
// against: the first configured root's store, whatever kind, since registry
// entries aren't tied to a specific root the way file templates are.
func storeHint(params Params) platform.Store {
	for _, r := range params.Roots {
		return r.Store
	}
	return platform.OtherStore
}

func walkRegistryKey(scan *scaninfo.ScanInfo, item registryitem.Item, params Params, depth int) {
	if depth > maxWalkDepth {
		return
	}

	key, ok := params.Registry.ReadKey(item)
	rendered := item.Rendered()
	if !ok {
		return
	}

	values := make(map[string]scaninfo.RegistryValue, len(key.Values))
	var count changeclass.Count
	prevValues := previousValuesFor(params, rendered)

	for name, entryVal := range key.Values {
		var previousHash *string
		if h, has := prevValues[name]; has {
			previousHash = &h
		}
		ignored := params.ToggledRegistry[rendered+"\x00"+name]
		change := changeclass.EvaluateBackup(entryVal.RegFormat(), previousHash)
		count.Add(change)
		values[name] = scaninfo.RegistryValue{Entry: entryVal, Change: change, Ignored: ignored}
	}

	for name := range prevValues {
		if _, present := key.Values[name]; present {
			continue
		}
		values[name] = scaninfo.RegistryValue{Change: changeclass.Removed}
		count.Add(changeclass.Removed)
	}

	scan.FoundRegistryKeys[rendered] = scaninfo.ScannedRegistry{
		Path:    item,
		Ignored: params.ToggledRegistry[rendered],
		Change:  count.Overall(),
		Values:  values,
	}

	if names, ok := params.Registry.Subkeys(item); ok {
		for _, name := range names {
			walkRegistryKey(scan, item.Joined(name), params, depth+1)
		}
	}
}

func previousValuesFor(params Params, renderedKey string) map[string]string {
	if params.Previous == nil {
		return nil
	}
	return params.Previous.Registry[renderedKey]
}
