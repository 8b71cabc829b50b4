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

// Package installdir fuzzy-matches a root's actual install subdirectories
// to a game's manifest install-dir hints (spec.md §4.3), resolving ties when
// more than one game's best match lands on the same subdirectory.
package installdir

import (
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/savewarden/savewarden/pkg/platform"
	"github.com/savewarden/savewarden/pkg/strictpath"
)

// idealThreshold is the fraction of a hint's self-match score a candidate
// subdirectory must clear to count as a match.
const idealThreshold = 0.75

// Ranking computes, per root, which actual subdirectory belongs to which
// game, resolving cross-game ties in favor of the higher-scoring game.
type Ranking struct {
	// winners maps rootKey -> subdirectory name -> game name that claimed it.
	winners map[string]map[string]claim
}

type claim struct {
	game  string
	score float32
}

// New builds an empty Ranking. Call Add once per (root, game) pair before
// any Get calls, then Get resolves the final assignment.
func New() *Ranking {
	return &Ranking{winners: make(map[string]map[string]claim)}
}

// installParent returns the directory under which a store unpacks installed
// titles: steamapps/common for Steam, the root itself otherwise.
func installParent(root *strictpath.StrictPath, store platform.Store) *strictpath.StrictPath {
	if store == platform.Steam {
		return root.Joined("steamapps/common")
	}
	return root
}

// normalize lowercases, folds `_`/`-` to spaces, strips characters invalid
// in filenames, and collapses runs of spaces, matching spec.md's rule set
// exactly so two differently-cased/punctuated names compare equal.
func normalize(name string) string {
	lower := strings.ToLower(name)
	var b strings.Builder
	b.Grow(len(lower))
	lastSpace := false
	for _, r := range lower {
		switch {
		case r == '_' || r == '-' || r == ' ':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case strings.ContainsRune(`<>:"/\|?*`, r):
			// invalid-in-filename characters are dropped, not spaced
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

// score returns the Jaro-Winkler similarity between two normalized names.
func score(a, b string) float32 {
	if a == b {
		return 1
	}
	return edlib.JaroWinklerSimilarity(a, b)
}

// Add evaluates every direct subdirectory of root's install parent against
// game's hinted install-dir names plus its own title, recording whichever
// subdirectory scores highest for this game (if any clears the 75%-of-ideal
// threshold). Call once per (root, game); later calls for the same root may
// displace an earlier game's claim if they score higher on the same subdir.
func (r *Ranking) Add(root *strictpath.StrictPath, store platform.Store, gameName string, hints []string) {
	parent := installParent(root, store)
	subdirs, err := parent.ReadDirNames()
	if err != nil || len(subdirs) == 0 {
		return
	}

	candidates := append([]string{gameName}, hints...)

	rootKey := root.Key()
	bucket := r.winners[rootKey]
	if bucket == nil {
		bucket = make(map[string]claim)
		r.winners[rootKey] = bucket
	}

	var bestSubdir string
	var bestScore float32 = -1

	for _, subdir := range subdirs {
		normSubdir := normalize(subdir)
		for _, hint := range candidates {
			normHint := normalize(hint)
			ideal := score(normHint, normHint)
			s := score(normHint, normSubdir)
			if s < ideal*idealThreshold {
				continue
			}
			if s > bestScore {
				bestScore = s
				bestSubdir = subdir
			}
		}
	}

	if bestScore < 0 {
		return
	}

	existing, ok := bucket[bestSubdir]
	if !ok || bestScore > existing.score {
		bucket[bestSubdir] = claim{game: gameName, score: bestScore}
	}
}

// Get returns the subdirectory name assigned to game under root, if any.
// A game that lost a tie to a higher-scoring rival gets no install dir for
// this root.
func (r *Ranking) Get(root *strictpath.StrictPath, gameName string) (string, bool) {
	bucket := r.winners[root.Key()]
	for subdir, c := range bucket {
		if c.game == gameName {
			return subdir, true
		}
	}
	return "", false
}
