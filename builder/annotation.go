// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package builder

import (
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/saferwall/rde/dictionary"
	"github.com/saferwall/rde/sflv"
)

// AnnotationSchema is one parsed redfish-payload-annotations.vX_Y_Z.json
// document: just the subset of JSON Schema the annotation dictionary
// builder needs (§4.G).
type AnnotationSchema struct {
	Version    string // "vX_Y_Z", parsed from the file name by the caller
	Properties map[string]annotationSchemaType `json:"properties"`
	Patterns   map[string]annotationSchemaType `json:"patternProperties"`
}

type annotationSchemaType struct {
	Type string `json:"type"`
	Ref  string `json:"$ref"`
}

// ParseAnnotationSchema decodes one redfish-payload-annotations document.
func ParseAnnotationSchema(version string, data []byte) (AnnotationSchema, error) {
	var raw struct {
		Properties map[string]annotationSchemaType `json:"properties"`
		Patterns   map[string]annotationSchemaType `json:"patternProperties"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return AnnotationSchema{}, fmt.Errorf("builder: malformed annotation schema %s: %w", version, err)
	}
	return AnnotationSchema{Version: version, Properties: raw.Properties, Patterns: raw.Patterns}, nil
}

// BuildAnnotationDictionary merges every schema in schemas — ascending by
// Version, newest-no-greater-than-requested already filtered by the
// caller — into the annotation dictionary's flat row table (§4.G). Each
// `properties`/`patternProperties` key is stripped to its `@...` form and
// assigned a BEJ format from its JSON Schema `type`. The newer design named
// in §9's open questions (a single merged table, not the legacy 4-entry
// odata/Message/Redfish/reserved split) is the one implemented here.
func BuildAnnotationDictionary(schemas []AnnotationSchema) ([]dictionary.Row, error) {
	sorted := append([]AnnotationSchema(nil), schemas...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return versionLess(sorted[i].Version, sorted[j].Version)
	})

	merged := map[string]sflv.Format{}
	var order []string
	add := func(key string, t annotationSchemaType) error {
		name := annotationKey(key)
		format, err := annotationFormat(t)
		if err != nil {
			return fmt.Errorf("builder: annotation %q: %w", key, err)
		}
		if _, seen := merged[name]; !seen {
			order = append(order, name)
		}
		merged[name] = format
		return nil
	}

	for _, s := range sorted {
		keys := make([]string, 0, len(s.Properties)+len(s.Patterns))
		for k := range s.Properties {
			keys = append(keys, k)
		}
		for k := range s.Patterns {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t, ok := s.Properties[k]
			if !ok {
				t = s.Patterns[k]
			}
			if err := add(k, t); err != nil {
				return nil, err
			}
		}
	}

	sort.Strings(order)
	rows := make([]dictionary.Row, 0, len(order))
	for i, name := range order {
		row := dictionary.Row{
			Seq:    uint16(i),
			Name:   name,
			Format: merged[name],
		}
		if row.IsContainerFormat() {
			// This merge only ever produces a flat key->format table (§4.G
			// describes no further nesting for annotation properties), so a
			// Set/Array-typed annotation still has no children to point at.
			row.Offset = dictionary.Resolved(0)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// annotationKey strips a trailing "$" (patternProperties regex anchor) and
// normalizes the result to its "@..." wire form.
func annotationKey(key string) string {
	key = strings.TrimSuffix(key, "$")
	if !strings.HasPrefix(key, "@") {
		key = "@" + key
	}
	return key
}

func annotationFormat(t annotationSchemaType) (sflv.Format, error) {
	if t.Ref != "" {
		return sflv.FormatSet, nil
	}
	switch t.Type {
	case "string":
		return sflv.FormatString, nil
	case "integer", "number":
		return sflv.FormatInteger, nil
	case "object":
		return sflv.FormatSet, nil
	case "array":
		return sflv.FormatArray, nil
	case "boolean":
		return sflv.FormatBoolean, nil
	default:
		return 0, fmt.Errorf("unrecognized JSON Schema type %q", t.Type)
	}
}

// versionLess orders "vMAJOR_MINOR_ERRATA" strings ascending, the same way
// entity.compareRevisions orders CSDL Redfish.Revisions versions.
func versionLess(a, b string) bool {
	av, aok := splitVersion(a)
	bv, bok := splitVersion(b)
	if !aok || !bok {
		return a < b
	}
	for i := 0; i < 3; i++ {
		if av[i] != bv[i] {
			return av[i] < bv[i]
		}
	}
	return false
}

func splitVersion(v string) ([3]int, bool) {
	var out [3]int
	v = strings.TrimPrefix(v, "v")
	parts := strings.SplitN(v, "_", 3)
	if len(parts) != 3 {
		return out, false
	}
	for i, p := range parts {
		n := 0
		for _, r := range p {
			if r < '0' || r > '9' {
				return out, false
			}
			n = n*10 + int(r-'0')
		}
		out[i] = n
	}
	return out, true
}
