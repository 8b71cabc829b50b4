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

// Package retention trims a game's backup history down to what config.Retention
// allows, after a new generation has been inserted (spec.md §4.6 retention).
// A locked full or differential, and any full that still has a locked child,
// is never counted against the limit or removed.
package retention

import (
	"github.com/savewarden/savewarden/pkg/backup/layout"
	"github.com/savewarden/savewarden/pkg/config"
)

type excess struct {
	full int
	diff int // -1 means the full backup itself, not one of its children
}

// Enforce drops the oldest unlocked generations past retention's limits from
// m, in place. Fulls are selected for removal before their own differential
// children are considered, matching the original's pass: a full counted as
// excess still has its surviving (locked) children's limit checked
// independently, since removing the full only happens after this pass
// collects every index to drop.
func Enforce(m *layout.Mapping, retention config.Retention) {
	var toRemove []excess

	var unlockedFulls int
	for _, full := range m.Backups {
		if !full.Locked && allChildrenUnlocked(full) {
			unlockedFulls++
		}
	}
	excessFulls := saturatingSub(unlockedFulls, int(retention.Full))

	for i, full := range m.Backups {
		locked := full.Locked || anyChildLocked(full)
		if !locked && excessFulls > 0 {
			toRemove = append(toRemove, excess{full: i, diff: -1})
			excessFulls--
		}

		var unlockedDiffs int
		for _, diff := range full.Children {
			if !diff.Locked {
				unlockedDiffs++
			}
		}
		excessDiffs := saturatingSub(unlockedDiffs, int(retention.Differential))

		for j, diff := range full.Children {
			if !diff.Locked && excessDiffs > 0 {
				toRemove = append(toRemove, excess{full: i, diff: j})
				excessDiffs--
			}
		}
	}

	if len(toRemove) == 0 {
		return
	}

	// Remove from the highest index to the lowest, in both dimensions, so
	// that earlier removals never shift the index of one still pending.
	sortDescending(toRemove)
	for _, e := range toRemove {
		if e.diff >= 0 {
			full := m.Backups[e.full]
			full.Children = append(full.Children[:e.diff], full.Children[e.diff+1:]...)
		} else {
			m.Backups = append(m.Backups[:e.full], m.Backups[e.full+1:]...)
		}
	}
}

func allChildrenUnlocked(full *layout.FullBackup) bool {
	for _, diff := range full.Children {
		if diff.Locked {
			return false
		}
	}
	return true
}

func anyChildLocked(full *layout.FullBackup) bool {
	return !allChildrenUnlocked(full)
}

func saturatingSub(a, b int) int {
	if a < b {
		return 0
	}
	return a - b
}

// sortDescending orders toRemove so the largest (full, diff) pair comes
// first: full descending, then within equal fulls, diff descending with the
// full-backup-itself marker (-1) sorting last so a full's children are
// always dropped before the full that holds them.
func sortDescending(toRemove []excess) {
	for i := 1; i < len(toRemove); i++ {
		for j := i; j > 0 && less(toRemove[j], toRemove[j-1]); j-- {
			toRemove[j], toRemove[j-1] = toRemove[j-1], toRemove[j]
		}
	}
}

// less reports whether a sorts before b in descending (full, diff) order.
func less(a, b excess) bool {
	if a.full != b.full {
		return a.full > b.full
	}
	return a.diff > b.diff
}
