// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later

package registryitem

import (
	"crypto/sha1" //nolint:gosec // content-addressing, not a security boundary
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the shape of a registry Entry. Unknown kinds round-trip as Raw
// rather than being dropped, per SUPPLEMENTED FEATURES #4.
type Kind string

const (
	KindSz       Kind = "sz"
	KindExpandSz Kind = "expandSz"
	KindMultiSz  Kind = "multiSz"
	KindDword    Kind = "dword"
	KindQword    Kind = "qword"
	KindBinary   Kind = "binary"
	KindRaw      Kind = "raw"
)

// Entry is one registry value. Exactly one of the typed fields is
// meaningful, selected by Kind; RawKind/RawData are set only when Kind ==
// KindRaw.
type Entry struct {
	Kind    Kind
	Str     string
	Dword   uint32
	Qword   uint64
	Binary  []byte
	RawKind uint32
	RawData []byte
}

func Sz(s string) Entry       { return Entry{Kind: KindSz, Str: s} }
func ExpandSz(s string) Entry { return Entry{Kind: KindExpandSz, Str: s} }
func MultiSz(s string) Entry  { return Entry{Kind: KindMultiSz, Str: s} }
func Dword(v uint32) Entry    { return Entry{Kind: KindDword, Dword: v} }
func Qword(v uint64) Entry    { return Entry{Kind: KindQword, Qword: v} }
func Binary(b []byte) Entry   { return Entry{Kind: KindBinary, Binary: b} }
func Raw(rawKind uint32, data []byte) Entry {
	return Entry{Kind: KindRaw, RawKind: rawKind, RawData: data}
}

// RegFormat renders the value in Windows registry export (.reg) syntax, per
// spec.md's "registry dump format" table.
func (e Entry) RegFormat() string {
	switch e.Kind {
	case KindSz:
		return fmt.Sprintf("%q", e.Str)
	case KindExpandSz:
		return "hex(2):" + hexEncodeUTF16LE(e.Str)
	case KindMultiSz:
		return "hex(7):" + hexEncodeUTF16LE(e.Str)
	case KindDword:
		return fmt.Sprintf("dword:%08x", e.Dword)
	case KindQword:
		return "hex(b):" + hexEncodeLEBytes(e.Qword)
	case KindBinary:
		return "hex:" + hexJoin(e.Binary)
	case KindRaw:
		return fmt.Sprintf("hex(%d):", e.RawKind) + hexJoin(e.RawData)
	default:
		return ""
	}
}

func hexJoin(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = hex.EncodeToString([]byte{v})
	}
	return strings.Join(parts, ",")
}

func hexEncodeLEBytes(v uint64) string {
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
	return hexJoin(b)
}

func hexEncodeUTF16LE(s string) string {
	var b []byte
	for _, r := range s {
		if r <= 0xFFFF {
			b = append(b, byte(r), byte(r>>8))
		} else {
			r -= 0x10000
			hi := 0xD800 + (r >> 10)
			lo := 0xDC00 + (r & 0x3FF)
			b = append(b, byte(hi), byte(hi>>8), byte(lo), byte(lo>>8))
		}
	}
	b = append(b, 0, 0)
	return hexJoin(b)
}

// Key is one registry key: its direct values plus subkey existence (a key
// with no values still needs to round-trip so it can be recreated).
type Key struct {
	Values map[string]Entry
}

// Hives is the full captured registry snapshot for a game: hive+key path
// (rendered via Item.Rendered) to Key. It is the unit that gets hashed for
// FullBackup/DifferentialBackup's registry field and serialized as
// registry.reg.
type Hives map[string]Key

// Hash computes a stable SHA-1 over the canonical serialization of h, used
// to detect registry changes between scans without storing the full dump
// inline in mapping.yaml.
func (h Hives) Hash() string {
	sum := sha1.Sum([]byte(h.canonical())) //nolint:gosec // content-addressing
	return hex.EncodeToString(sum[:])
}

// canonical renders keys and values in sorted order so that Hash is
// independent of map iteration order.
func (h Hives) canonical() string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString("[")
		b.WriteString(k)
		b.WriteString("]\n")

		names := make([]string, 0, len(h[k].Values))
		for n := range h[k].Values {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			b.WriteString(strconv.Quote(n))
			b.WriteString("=")
			b.WriteString(h[k].Values[n].RegFormat())
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RegExport renders h as a Windows Registry Editor Version 5.00 .reg file.
func (h Hives) RegExport() string {
	var b strings.Builder
	b.WriteString("Windows Registry Editor Version 5.00\n\n")

	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		b.WriteString("[")
		b.WriteString(k)
		b.WriteString("]\n")

		names := make([]string, 0, len(h[k].Values))
		for n := range h[k].Values {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			if n == "" {
				b.WriteString("@=")
			} else {
				b.WriteString(strconv.Quote(n))
				b.WriteString("=")
			}
			b.WriteString(h[k].Values[n].RegFormat())
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}
