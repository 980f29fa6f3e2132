// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"path/filepath"

	"github.com/saferwall/rde/internal/cliutil"
)

// dirSearch looks up a file by base name across a list of directories, the
// shared lookup both the CSDL loader's FileProvider and the URL resolver's
// SchemaProvider adapt to their own interface shape.
type dirSearch struct {
	dirs []string
}

func (d dirSearch) find(baseName string) (data []byte, path string, ok bool) {
	for _, dir := range d.dirs {
		candidate := filepath.Join(dir, baseName)
		if data, err := cliutil.ReadFile(candidate); err == nil {
			return data, candidate, true
		}
	}
	return nil, "", false
}

// csdlProvider adapts dirSearch to csdl.FileProvider.
type csdlProvider struct{ dirSearch }

func (p csdlProvider) Resolve(uri string) (name string, data []byte, ok bool) {
	base := filepath.Base(uri)
	data, _, ok = p.find(base)
	return base, data, ok
}

// schemaProvider adapts dirSearch to urlresolve.SchemaProvider.
type schemaProvider struct{ dirSearch }

func (p schemaProvider) Resolve(filename string) (data []byte, ok bool) {
	data, _, ok = p.find(filename)
	return data, ok
}
