// Package rlog is the runtime's own internal logger: leveled and
// cheap. By default it writes warnings and errors to stderr; Info
// lines appear only after SetLevel(LevelInfo). It is not a
// general-purpose logging facility for embedders.
/*
 * Copyright (c) 2024, the project authors. All rights reserved.
 */
package rlog

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

type Level int32

const (
	LevelErr Level = iota
	LevelWarn
	LevelInfo
)

var level atomic.Int32

func init() { level.Store(int32(LevelWarn)) }

// SetLevel changes the minimum level that gets written. Tests that
// want a quiet run set this to LevelErr.
func SetLevel(l Level) { level.Store(int32(l)) }

func enabled(l Level) bool { return int32(l) <= level.Load() }

func write(tag string, format string, args ...any) {
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(os.Stderr, "%s %s %s\n", ts, tag, fmt.Sprintf(format, args...))
}

func Infof(format string, args ...any) {
	if enabled(LevelInfo) {
		write("I", format, args...)
	}
}

func Warnf(format string, args ...any) {
	if enabled(LevelWarn) {
		write("W", format, args...)
	}
}

func Errf(format string, args ...any) {
	if enabled(LevelErr) {
		write("E", format, args...)
	}
}
