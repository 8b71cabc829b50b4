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

// Package applog wires the engine's single logging sink: zerolog writing to
// a rotated log file plus whatever extra writers the caller (CLI or GUI
// shell) supplies.
package applog

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the rotated log file written under the app's state dir.
const LogFileName = "savewarden.log"

// Init points the global zerolog logger at a rotated file under stateDir
// plus any extra writers (e.g. a GUI console pane). Safe to call more than
// once; the most recent call wins.
func Init(stateDir string, debug bool, extra ...io.Writer) error {
	if err := os.MkdirAll(stateDir, 0o750); err != nil {
		return err
	}

	writers := []io.Writer{&lumberjack.Logger{
		Filename:   filepath.Join(stateDir, LogFileName),
		MaxSize:    5,
		MaxBackups: 3,
	}}
	writers = append(writers, extra...)

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	log.Logger = zerolog.New(io.MultiWriter(writers...)).
		Level(level).
		With().Timestamp().Caller().Logger()

	return nil
}
