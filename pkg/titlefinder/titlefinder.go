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

// Package titlefinder maps external identifiers (Steam/GOG id, verbatim or
// normalized title) to a manifest's canonical game titles (spec.md §4.4).
package titlefinder

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Lower(language.Und)

var (
	trailingYear      = regexp.MustCompile(`\(\d{4}\)\s*$`)
	editionColon      = regexp.MustCompile(`:\s*[^:]*\bedition\b\s*$`)
	editionDash       = regexp.MustCompile(`-\s*[^-]*\bedition\b\s*$`)
	editionMark       = regexp.MustCompile(`[™®©]\s*[^™®©]*\bedition\b\s*$`)
	gameOfTheYear     = regexp.MustCompile(`\bgame of the year edition\b`)
	singleWordEdition = regexp.MustCompile(`\b\w+\s+edition\s*$`)
	markPunct         = regexp.MustCompile(`[™®©:\-]`)
	multiSpace        = regexp.MustCompile(`\s+`)
)

// NormalizeTitle applies spec.md's title-normalization rule set: lowercase,
// strip a trailing "(YYYY)", strip punctuated edition suffixes, strip the
// known "game of the year edition" phrase, strip a single trailing word
// before "Edition", fold remaining mark punctuation to spaces, and collapse
// whitespace.
func NormalizeTitle(title string) string {
	t := titleCaser.String(title)
	t = trailingYear.ReplaceAllString(t, "")
	t = editionColon.ReplaceAllString(t, "")
	t = editionDash.ReplaceAllString(t, "")
	t = editionMark.ReplaceAllString(t, "")
	t = gameOfTheYear.ReplaceAllString(t, "")
	t = singleWordEdition.ReplaceAllString(t, "")
	t = markPunct.ReplaceAllString(t, " ")
	t = multiSpace.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// Finder resolves external identifiers and candidate names to the canonical
// manifest titles eligible for backup/restore.
type Finder struct {
	allGames   map[string]bool
	canBackup  map[string]bool
	canRestore map[string]bool
	steamIDs   map[uint32]string
	gogIDs     map[uint32]string
	normalized map[string]string
}

// New builds an empty Finder; call Add once per manifest game before any
// Find calls.
func New() *Finder {
	return &Finder{
		allGames:   make(map[string]bool),
		canBackup:  make(map[string]bool),
		canRestore: make(map[string]bool),
		steamIDs:   make(map[uint32]string),
		gogIDs:     make(map[uint32]string),
		normalized: make(map[string]string),
	}
}

// Add registers title as a known game, indexed by its Steam/GOG ids (when
// present) and its normalized form. canBackup/canRestore record whether the
// game currently has any backup-eligible or restore-eligible data, queried
// by Find's backupRequired/restoreRequired filters.
func (f *Finder) Add(title string, steamID, gogID *uint32, canBackup, canRestore bool) {
	f.allGames[title] = true
	if canBackup {
		f.canBackup[title] = true
	}
	if canRestore {
		f.canRestore[title] = true
	}
	if steamID != nil {
		f.steamIDs[*steamID] = title
	}
	if gogID != nil {
		f.gogIDs[*gogID] = title
	}
	f.normalized[NormalizeTitle(title)] = title
}

func (f *Finder) eligible(title string, backupRequired, restoreRequired bool) bool {
	if !f.allGames[title] {
		return false
	}
	if backupRequired && !f.canBackup[title] {
		return false
	}
	if restoreRequired && !f.canRestore[title] {
		return false
	}
	return true
}

// Find resolves a title per spec.md §4.4's lookup order: steam id, then gog
// id, then a verbatim candidate match, then (if normalization is enabled) a
// normalized candidate match. Each step short-circuits the rest once it
// yields an eligible title.
func (f *Finder) Find(
	candidateNames []string,
	steamID, gogID *uint32,
	normalizeEnabled, backupRequired, restoreRequired bool,
) []string {
	if steamID != nil {
		if title, ok := f.steamIDs[*steamID]; ok && f.eligible(title, backupRequired, restoreRequired) {
			return []string{title}
		}
	}

	if gogID != nil {
		if title, ok := f.gogIDs[*gogID]; ok && f.eligible(title, backupRequired, restoreRequired) {
			return []string{title}
		}
	}

	for _, candidate := range candidateNames {
		if f.eligible(candidate, backupRequired, restoreRequired) {
			return []string{candidate}
		}
	}

	if !normalizeEnabled {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, candidate := range candidateNames {
		title, ok := f.normalized[NormalizeTitle(candidate)]
		if !ok || !f.eligible(title, backupRequired, restoreRequired) || seen[title] {
			continue
		}
		seen[title] = true
		out = append(out, title)
	}
	return out
}
