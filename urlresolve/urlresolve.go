// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package urlresolve maps entity/version tuples to published Redfish schema
// URLs (§2 component K) by walking a versioned JSON-Schema "anyOf" list, and
// assembles the JSON dictionary summary document a generate-dictionaries run
// emits alongside each binary dictionary (§6 output 2).
package urlresolve

import (
	"fmt"
	"hash/crc32"
	"regexp"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/mod/semver"
)

// SchemaProvider resolves a JSON Schema document's file name to its bytes,
// mirroring csdl.FileProvider so a CLI can back both loaders with the same
// on-disk or embedded schema tree.
type SchemaProvider interface {
	Resolve(filename string) (data []byte, ok bool)
}

// Ref is one parsed JSON-Schema $ref, e.g.
// "http://redfish.dmtf.org/schemas/swordfish/v1/Volume.v1_0_0.json#/definitions/Volume".
type Ref struct {
	Namespace string
	Version   string // "" for an unversioned ref
	Entity    string
	Raw       string
}

var refPattern = regexp.MustCompile(`.*/(\w+)\.?(\w*)\.json$`)

// ParseRef splits a fragment $ref into its namespace, version and entity
// parts.
func ParseRef(ref string) (Ref, error) {
	parts := strings.SplitN(ref, "#", 2)
	if len(parts) != 2 {
		return Ref{}, fmt.Errorf("urlresolve: %q is not a fragment $ref", ref)
	}
	schemaURL, fragment := parts[0], parts[1]
	entity := fragment[strings.LastIndexByte(fragment, '/')+1:]

	m := refPattern.FindStringSubmatch(schemaURL)
	if m == nil {
		return Ref{}, fmt.Errorf("urlresolve: %q does not match the schema URL naming convention", schemaURL)
	}
	return Ref{Namespace: m[1], Version: m[2], Entity: entity, Raw: ref}, nil
}

// Resolver finds the published schema URL for an entity/version pair.
type Resolver struct {
	provider SchemaProvider
}

// NewResolver returns a Resolver backed by provider.
func NewResolver(provider SchemaProvider) *Resolver {
	return &Resolver{provider: provider}
}

type schemaDocument struct {
	ID          string                 `json:"$id"`
	Definitions map[string]definitionT `json:"definitions"`
}

type definitionT struct {
	AnyOf []anyOfEntry `json:"anyOf"`
}

type anyOfEntry struct {
	Ref string `json:"$ref"`
}

// FindSchemaURL returns the published URL for namespace/version/entity by
// reading "<namespace>.json" and walking definitions[entity].anyOf for a
// matching versioned $ref (§2 component K). version == "" asks for the
// unversioned schema's own $id. If no exact match exists, the closest
// older-or-equal version present is returned with its version substituted
// for the requested one — the toolchain's "close enough" fallback for
// versions the JSON Schema hasn't caught up to yet. Returns "" with no
// error when the namespace or entity is simply absent; a malformed schema
// document is the only fatal case.
func (r *Resolver) FindSchemaURL(namespace, version, entity string) (string, error) {
	data, ok := r.provider.Resolve(namespace + ".json")
	if !ok {
		return "", nil
	}
	var doc schemaDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("urlresolve: malformed schema %s.json: %w", namespace, err)
	}

	if version == "" && doc.ID != "" {
		return doc.ID, nil
	}

	def, ok := doc.Definitions[entity]
	if !ok {
		return "", nil
	}

	var closestURL, closestVer string
	for _, candidate := range def.AnyOf {
		if candidate.Ref == "" {
			continue
		}
		ref, err := ParseRef(candidate.Ref)
		if err != nil {
			continue // a malformed anyOf entry is skipped, not fatal (§7)
		}
		if ref.Namespace != namespace || ref.Entity != entity {
			continue
		}
		if ref.Version == version {
			return ref.Raw, nil
		}
		if compareVersions(ref.Version, version) < 0 && (closestURL == "" || compareVersions(ref.Version, closestVer) > 0) {
			closestURL = ref.Raw
			closestVer = ref.Version
		}
	}

	if closestURL == "" {
		return "", nil
	}
	return strings.Replace(closestURL, closestVer, version, 1), nil
}

// compareVersions orders two Redfish "vMAJOR_MINOR_ERRATA" version strings.
// "v0_0_0" is the sentinel the toolchain uses for a deliberately
// unversioned ref; Ver32 maps it to the all-Fs "latest" placeholder, so it
// is treated here as sorting after every real version for consistency.
func compareVersions(a, b string) int {
	if a == "v0_0_0" && b == "v0_0_0" {
		return 0
	}
	if a == "v0_0_0" {
		return 1
	}
	if b == "v0_0_0" {
		return -1
	}
	return semver.Compare(toSemver(a), toSemver(b))
}

func toSemver(v string) string {
	return strings.ReplaceAll(v, "_", ".")
}

// Ver32 converts a Redfish "vMAJOR_MINOR_ERRATA" version string to its PLDM
// ver32 numeric form: each component is OR'd with 0xF0 and packed
// big-endian into the top three bytes, with the low byte left zero. The
// unversioned sentinel "v0_0_0" (and "") map to 0xFFFFFFFF.
func Ver32(version string) (uint32, error) {
	if version == "" || version == "v0_0_0" {
		return 0xFFFFFFFF, nil
	}
	parts := strings.SplitN(strings.TrimPrefix(version, "v"), "_", 3)
	if len(parts) != 3 {
		return 0, fmt.Errorf("urlresolve: %q is not a vMAJOR_MINOR_ERRATA version", version)
	}
	var nums [3]uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("urlresolve: %q is not a vMAJOR_MINOR_ERRATA version: %w", version, err)
		}
		nums[i] = uint32(n) | 0xF0
	}
	return nums[0]<<24 | nums[1]<<16 | nums[2]<<8, nil
}

// Summary is the JSON dictionary summary document generate_dictionaries
// emits alongside every binary dictionary (§6 output 2).
type Summary struct {
	SchemaName                  string `json:"schema_name"`
	SchemaVersion               uint32 `json:"schema_version"`
	SchemaURL                   string `json:"schema_url"`
	SchemaDictionaryLengthBytes int    `json:"schema_dictionary_length_bytes"`
	SchemaDictionaryCRC32       uint32 `json:"schema_dictionary_crc_32"`

	// SchemaDictionaryBytes is []int, not []byte: §6 requires
	// schema_dictionary_bytes to marshal as a JSON array of byte values,
	// matching the original's dictionary_byte_array int list. A []byte
	// field marshals as a base64 string under encoding/json-compatible
	// encoders (goccy/go-json included), which isn't that shape.
	SchemaDictionaryBytes []int `json:"schema_dictionary_bytes"`
}

// BuildSummary assembles the JSON dictionary summary for one serialized
// dictionary, resolving its schema URL through r.
func (r *Resolver) BuildSummary(namespace, version, entity string, dict []byte) (Summary, error) {
	url, err := r.FindSchemaURL(namespace, version, entity)
	if err != nil {
		return Summary{}, err
	}
	ver32, err := Ver32(version)
	if err != nil {
		return Summary{}, err
	}
	dictBytes := make([]int, len(dict))
	for i, b := range dict {
		dictBytes[i] = int(b)
	}
	return Summary{
		SchemaName:                  namespace,
		SchemaVersion:               ver32,
		SchemaURL:                   url,
		SchemaDictionaryLengthBytes: len(dict),
		SchemaDictionaryCRC32:       crc32.ChecksumIEEE(dict),
		SchemaDictionaryBytes:       dictBytes,
	}, nil
}
