// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	yaml "github.com/goccy/go-yaml"
	json "github.com/goccy/go-json"

	"github.com/saferwall/rde/internal/cliutil"
)

// Config is the generate_dictionaries config file (§6): Copyright is
// appended as the trailing block of every dictionary; DoNotWrite names
// CSDL files to skip entirely; ExplicitEntities overrides the natural
// root-entity-per-file convention, mapping a CSDL file name to a set of
// "Namespace.Entity" -> output-basename pairs.
type Config struct {
	Copyright        string                       `json:"Copyright" yaml:"Copyright"`
	DoNotWrite       []string                     `json:"DoNotWrite" yaml:"DoNotWrite"`
	ExplicitEntities map[string]map[string]string `json:"ExplicitEntities" yaml:"ExplicitEntities"`
}

// loadConfig reads path as JSON or YAML, chosen by its extension — the CLI
// accepts either.
func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := cliutil.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("generate_dictionaries: reading config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("generate_dictionaries: malformed config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) skips(fileName string) bool {
	for _, skip := range c.DoNotWrite {
		if skip == fileName {
			return true
		}
	}
	return false
}
