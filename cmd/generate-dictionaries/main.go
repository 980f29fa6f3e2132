// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Command generate_dictionaries reads CSDL schemas and JSON Schema
// annotation documents and emits binary dictionaries plus their
// human-readable .map dumps (§6).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/saferwall/rde/builder"
	"github.com/saferwall/rde/csdl"
	"github.com/saferwall/rde/dictionary"
	"github.com/saferwall/rde/entity"
	"github.com/saferwall/rde/internal/cliutil"
	"github.com/saferwall/rde/urlresolve"
)

var versionSuffix = regexp.MustCompile(`(?i)_v\d+(_\d+)*$`)

func addDirFlag(fs *pflag.FlagSet, p *[]string, name, shorthand, usage string) {
	fs.StringArrayVarP(p, name, shorthand, nil, usage)
}

func main() {
	var csdlDirs, jsonDirs, outDirs []string
	var configPath string

	root := &cobra.Command{
		Use:   "generate_dictionaries",
		Short: "Build RDE binary dictionaries from CSDL and JSON Schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(csdlDirs, jsonDirs, outDirs, configPath)
		},
	}

	addDirFlag(root.Flags(), &csdlDirs, "csdl-dir", "x", "directory to search for CSDL XML schemas (repeatable)")
	addDirFlag(root.Flags(), &jsonDirs, "json-dir", "j", "directory to search for JSON Schema documents (repeatable)")
	addDirFlag(root.Flags(), &outDirs, "out-dir", "o", "directory to write dictionaries to (repeatable)")
	root.Flags().StringVarP(&configPath, "config", "c", "", "config file (JSON or YAML)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(csdlDirs, jsonDirs, outDirs []string, configPath string) error {
	if len(csdlDirs) == 0 || len(outDirs) == 0 {
		return fmt.Errorf("generate_dictionaries: at least one -x and one -o are required")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	csdlFiles, err := listFiles(csdlDirs, ".xml")
	if err != nil {
		return err
	}
	jsonFiles, err := listFiles(jsonDirs, ".json")
	if err != nil {
		return err
	}

	provider := csdlProvider{dirSearch{dirs: csdlDirs}}
	schemaProv := schemaProvider{dirSearch{dirs: jsonDirs}}
	resolver := urlresolve.NewResolver(schemaProv)

	for _, csdlFile := range csdlFiles {
		base := filepath.Base(csdlFile)
		if cfg.skips(base) {
			continue
		}
		if err := processCSDLFile(csdlFile, base, provider, resolver, cfg, outDirs); err != nil {
			return err
		}
	}

	return writeAnnotationDictionary(jsonFiles, cfg, outDirs)
}

func processCSDLFile(path, base string, provider csdlProvider, resolver *urlresolve.Resolver, cfg Config, outDirs []string) error {
	data, err := cliutil.ReadFile(path)
	if err != nil {
		return fmt.Errorf("generate_dictionaries: reading %s: %w", path, err)
	}

	repo := entity.NewRepository()
	loader := csdl.NewLoader(repo)
	if err := loader.LoadAll(base, data, provider); err != nil {
		return fmt.Errorf("generate_dictionaries: loading %s: %w", base, err)
	}
	if err := loader.Build(); err != nil {
		return fmt.Errorf("generate_dictionaries: building %s: %w", base, err)
	}

	targets := explicitTargets(cfg, base)
	if len(targets) == 0 {
		targets = naturalRootEntities(base, loader.EntityNames())
	}
	if len(targets) == 0 {
		return nil // nothing in this file maps to a dictionary root; not fatal
	}

	for entityName, outBase := range targets {
		rows, err := builder.New(repo).Build(entityName)
		if err != nil {
			return fmt.Errorf("generate_dictionaries: building dictionary for %s: %w", entityName, err)
		}
		if err := writeDictionary(outBase, rows, cfg, resolver, entityName, outDirs); err != nil {
			return err
		}
	}
	return nil
}

// explicitTargets returns the ExplicitEntities override for base, if any:
// "Namespace.Entity" -> output basename.
func explicitTargets(cfg Config, base string) map[string]string {
	return cfg.ExplicitEntities[base]
}

// naturalRootEntities matches entity names whose local segment equals the
// CSDL file's stem (version suffix stripped), the default convention used
// when ExplicitEntities doesn't override it.
func naturalRootEntities(base string, names []string) map[string]string {
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = versionSuffix.ReplaceAllString(stem, "")

	out := make(map[string]string)
	for _, n := range names {
		idx := strings.LastIndexByte(n, '.')
		local := n
		if idx >= 0 {
			local = n[idx+1:]
		}
		if strings.EqualFold(local, stem) {
			out[n] = local
		}
	}
	return out
}

func writeDictionary(outBase string, rows []dictionary.Row, cfg Config, resolver *urlresolve.Resolver, entityName string, outDirs []string) error {
	w := dictionary.NewWriter()
	if cfg.Copyright != "" {
		w.SetCopyright(cfg.Copyright)
	}

	namespace, version := splitQualifiedName(entityName)
	ver32, err := urlresolve.Ver32(version)
	if err != nil {
		ver32 = 0xFFFFFFFF
	}

	bin, err := w.Serialize(rows, ver32, false)
	if err != nil {
		return fmt.Errorf("generate_dictionaries: serializing %s: %w", outBase, err)
	}

	summary, err := resolver.BuildSummary(namespace, version, localName(entityName), bin)
	if err != nil {
		return fmt.Errorf("generate_dictionaries: resolving schema URL for %s: %w", outBase, err)
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	return writeToOutDirs(outDirs, outBase, bin, rows, summaryJSON)
}

func writeToOutDirs(outDirs []string, outBase string, bin []byte, rows []dictionary.Row, summaryJSON []byte) error {
	for _, dir := range outDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		binPath := filepath.Join(dir, outBase+".bin")
		if err := os.WriteFile(binPath, bin, 0o644); err != nil {
			return err
		}

		mapPath := filepath.Join(dir, outBase+".map")
		mf, err := os.Create(mapPath)
		if err != nil {
			return err
		}
		err = dictionary.WriteMap(mf, rows)
		mf.Close()
		if err != nil {
			return err
		}

		summaryPath := filepath.Join(dir, outBase+".summary.json")
		if err := os.WriteFile(summaryPath, summaryJSON, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func writeAnnotationDictionary(jsonFiles []string, cfg Config, outDirs []string) error {
	var schemas []builder.AnnotationSchema
	for _, path := range jsonFiles {
		version, ok := annotationFileVersion(filepath.Base(path))
		if !ok {
			continue
		}
		data, err := cliutil.ReadFile(path)
		if err != nil {
			return fmt.Errorf("generate_dictionaries: reading %s: %w", path, err)
		}
		schema, err := builder.ParseAnnotationSchema(version, data)
		if err != nil {
			return fmt.Errorf("generate_dictionaries: %s: %w", path, err)
		}
		schemas = append(schemas, schema)
	}
	if len(schemas) == 0 {
		return nil
	}

	rows, err := builder.BuildAnnotationDictionary(schemas)
	if err != nil {
		return fmt.Errorf("generate_dictionaries: building annotation dictionary: %w", err)
	}

	w := dictionary.NewWriter()
	if cfg.Copyright != "" {
		w.SetCopyright(cfg.Copyright)
	}
	bin, err := w.Serialize(rows, 0xFFFFFFFF, false)
	if err != nil {
		return fmt.Errorf("generate_dictionaries: serializing annotation dictionary: %w", err)
	}

	for _, dir := range outDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, "annotation.bin"), bin, 0o644); err != nil {
			return err
		}
		mf, err := os.Create(filepath.Join(dir, "annotation.map"))
		if err != nil {
			return err
		}
		err = dictionary.WriteMap(mf, rows)
		mf.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

var annotationFileRE = regexp.MustCompile(`redfish-payload-annotations\.(v[\d_]+)\.json$`)

func annotationFileVersion(base string) (string, bool) {
	m := annotationFileRE.FindStringSubmatch(base)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// splitQualifiedName splits a repository-qualified entity name into its
// namespace and the version segment, if any. The CSDL loader always
// registers entities with the version segment already stripped (stripVersion),
// so version here is "" in practice; this exists so a future ExplicitEntities
// extension that names a still-versioned qualified name keeps working.
func splitQualifiedName(qname string) (namespace, version string) {
	parts := strings.Split(qname, ".")
	namespace = parts[0]
	if len(parts) >= 3 && looksLikeVersion(parts[len(parts)-2]) {
		version = parts[len(parts)-2]
	}
	return namespace, version
}

func looksLikeVersion(s string) bool {
	_, err := urlresolve.Ver32(s)
	return err == nil && s != ""
}

func localName(qname string) string {
	idx := strings.LastIndexByte(qname, '.')
	if idx < 0 {
		return qname
	}
	return qname[idx+1:]
}

func listFiles(dirs []string, ext string) ([]string, error) {
	var out []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("generate_dictionaries: reading directory %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || strings.ToLower(filepath.Ext(e.Name())) != ext {
				continue
			}
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
