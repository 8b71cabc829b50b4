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

package retention_test

import (
	"testing"

	"github.com/savewarden/savewarden/pkg/backup/layout"
	"github.com/savewarden/savewarden/pkg/backup/retention"
	"github.com/savewarden/savewarden/pkg/config"
)

func namedFull(name string) *layout.FullBackup {
	return &layout.FullBackup{Name: name}
}

func namedDiff(name string) *layout.DifferentialBackup {
	return &layout.DifferentialBackup{Name: name}
}

func fullNames(m *layout.Mapping) []string {
	var out []string
	for _, f := range m.Backups {
		out = append(out, f.Name)
	}
	return out
}

func TestEnforceDropsOldestUnlockedFullsBeyondLimit(t *testing.T) {
	m := layout.NewMapping("Example Game")
	m.Backups = []*layout.FullBackup{namedFull("a"), namedFull("b"), namedFull("c")}

	retention.Enforce(m, config.Retention{Full: 2})

	got := fullNames(m)
	want := []string{"b", "c"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("fulls = %v, want %v", got, want)
	}
}

func TestEnforceNeverDropsLockedFull(t *testing.T) {
	m := layout.NewMapping("Example Game")
	locked := namedFull("keep-me")
	locked.Locked = true
	m.Backups = []*layout.FullBackup{namedFull("a"), locked, namedFull("c"), namedFull("d")}

	retention.Enforce(m, config.Retention{Full: 1})

	found := false
	for _, f := range m.Backups {
		if f.Name == "keep-me" {
			found = true
		}
	}
	if !found {
		t.Fatalf("locked full was removed: %v", fullNames(m))
	}
	if len(m.Backups) != 2 {
		t.Fatalf("expected one locked full kept plus one unlocked within the limit, got %v", fullNames(m))
	}
}

func TestEnforceFullWithLockedChildCountsAsLocked(t *testing.T) {
	m := layout.NewMapping("Example Game")
	protectedParent := namedFull("protected-parent")
	lockedChild := namedDiff("locked-child")
	lockedChild.Locked = true
	protectedParent.Children = []*layout.DifferentialBackup{lockedChild}

	m.Backups = []*layout.FullBackup{namedFull("a"), protectedParent, namedFull("c")}

	retention.Enforce(m, config.Retention{Full: 1})

	for _, f := range m.Backups {
		if f.Name == "protected-parent" {
			if len(f.Children) != 1 {
				t.Fatalf("expected the locked child to survive, got %d children", len(f.Children))
			}
			return
		}
	}
	t.Fatalf("full with a locked child was removed: %v", fullNames(m))
}

func TestEnforceDropsOldestUnlockedDifferentials(t *testing.T) {
	m := layout.NewMapping("Example Game")
	full := namedFull("only-full")
	full.Children = []*layout.DifferentialBackup{
		namedDiff("d1"), namedDiff("d2"), namedDiff("d3"),
	}
	m.Backups = []*layout.FullBackup{full}

	retention.Enforce(m, config.Retention{Full: 1, Differential: 1})

	if len(full.Children) != 1 || full.Children[0].Name != "d3" {
		names := make([]string, len(full.Children))
		for i, d := range full.Children {
			names[i] = d.Name
		}
		t.Fatalf("children = %v, want [d3]", names)
	}
}

func TestEnforceKeepsLockedDifferentialAmongDropped(t *testing.T) {
	m := layout.NewMapping("Example Game")
	full := namedFull("only-full")
	locked := namedDiff("d2-locked")
	locked.Locked = true
	full.Children = []*layout.DifferentialBackup{namedDiff("d1"), locked, namedDiff("d3")}
	m.Backups = []*layout.FullBackup{full}

	retention.Enforce(m, config.Retention{Full: 1, Differential: 1})

	names := make(map[string]bool, len(full.Children))
	for _, d := range full.Children {
		names[d.Name] = true
	}
	if !names["d2-locked"] {
		t.Fatalf("locked differential was removed: children = %v", full.Children)
	}
}

func TestEnforceNoLimitExceededIsNoop(t *testing.T) {
	m := layout.NewMapping("Example Game")
	m.Backups = []*layout.FullBackup{namedFull("a"), namedFull("b")}

	retention.Enforce(m, config.Retention{Full: 5, Differential: 5})

	if len(m.Backups) != 2 {
		t.Fatalf("expected no removals, got %v", fullNames(m))
	}
}
