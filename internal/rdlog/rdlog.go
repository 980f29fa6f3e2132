// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package rdlog wraps github.com/go-kratos/kratos/v2/log the way the
// teacher's file.go builds a *log.Helper from Options.Logger: every
// component gets a named helper filtered to warning level by default, so
// the CSDL loader's non-fatal reference-resolution warnings (§7) don't
// require every caller to wire up their own logger.
package rdlog

import (
	"os"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
)

// Component is a named logging handle, analogous to the teacher's
// *log.Helper embedded in File.
type Component = log.Helper

var (
	mu      sync.Mutex
	base    log.Logger
	filterV = log.LevelWarn
)

// SetOutput redirects every Component's output, for CLI front ends that
// want to route core-library warnings to their own writer instead of the
// package default of os.Stderr.
func SetOutput(w *os.File) {
	mu.Lock()
	defer mu.Unlock()
	base = log.NewStdLogger(w)
}

// SetLevel adjusts the minimum level every Component logs at.
func SetLevel(level log.Level) {
	mu.Lock()
	defer mu.Unlock()
	filterV = level
}

func currentBase() log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if base == nil {
		base = log.NewStdLogger(os.Stderr)
	}
	return base
}

// Named returns a Component tagged with the given package/subsystem name,
// the way the teacher tags file.go's helper per *File instance.
func Named(component string) *Component {
	filtered := log.NewFilter(currentBase(), log.FilterLevel(filterV))
	return log.NewHelper(log.With(filtered, "component", component))
}
