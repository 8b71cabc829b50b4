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

// Package changeclass classifies how a scanned file or registry value
// relates to what a prior backup or the live filesystem holds (spec.md
// §4.8), and aggregates per-file classifications into one overall verdict
// for a backup or restore pass.
package changeclass

// Change is the per-file/per-value classification.
type Change int

const (
	Same Change = iota
	New
	Different
	Removed
)

func (c Change) String() string {
	switch c {
	case Same:
		return "Same"
	case New:
		return "New"
	case Different:
		return "Different"
	case Removed:
		return "Removed"
	default:
		return "Unknown"
	}
}

// EvaluateBackup classifies a file being captured into a new backup against
// its hash in the prior composite (absent previousHash means the file is
// new to the game).
func EvaluateBackup(currentHash string, previousHash *string) Change {
	if previousHash == nil {
		return New
	}
	if currentHash == *previousHash {
		return Same
	}
	return Different
}

// EvaluateRestore classifies a file being written back against what's
// already on disk at the redirected target.
func EvaluateRestore(targetExists bool, targetHash, storedHash string) Change {
	if !targetExists {
		return New
	}
	if targetHash == storedHash {
		return Same
	}
	return Different
}

// Normalize folds an ignore toggle into the raw classification, per
// spec.md's restoring/backing-up branch: during restore, an ignored
// Different collapses to Same (the ignored file is left untouched, which
// looks unchanged from the restore's perspective); during backup, an
// ignored Different or Same becomes Removed (the file is dropped from this
// backup generation), while an ignored New becomes Same (never having been
// backed up, dropping it changes nothing).
func Normalize(c Change, ignored, restoring bool) Change {
	if !ignored {
		return c
	}
	if restoring {
		if c == Different {
			return Same
		}
		return c
	}
	switch c {
	case Different, Same:
		return Removed
	case New:
		return Same
	default:
		return c
	}
}

// Count tallies per-file Change values for one backup/restore pass.
type Count struct {
	Same      int
	New       int
	Different int
	Removed   int
}

// Add tallies one more classification.
func (c *Count) Add(change Change) {
	switch change {
	case Same:
		c.Same++
	case New:
		c.New++
	case Different:
		c.Different++
	case Removed:
		c.Removed++
	}
}

// Overall folds the tally into a single classification: all-New wins if
// there are no other kinds present, all-Removed likewise; any mix
// containing New/Different/Removed alongside something else is Different;
// otherwise everything is Same.
func (c Count) Overall() Change {
	total := c.Same + c.New + c.Different + c.Removed
	if total == 0 {
		return Same
	}
	if c.New == total {
		return New
	}
	if c.Removed == total {
		return Removed
	}
	if c.New > 0 || c.Different > 0 || c.Removed > 0 {
		return Different
	}
	return Same
}
