// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package entity implements the in-memory entity repository: the only
// stateful intermediate between CSDL parsing and dictionary emission (§4.D).
package entity

import (
	"sort"
	"strconv"
	"strings"

	"github.com/saferwall/rde/sflv"
)

// Kind tags whether an entity is a Set (struct-like) or Enum.
type Kind int

const (
	KindSet Kind = iota
	KindEnum
)

// Property is one (seq, name, format, flags, ref) tuple of a Set entity.
type Property struct {
	Seq    int
	Name   string
	Format sflv.Format
	Flags  uint8

	// Ref names the qualified entity this property points at, for formats
	// that reference another entity (Set, Array element, Enum, Choice).
	Ref string

	// IsArray marks a Collection(T) property; Ref names strip_version(T).
	IsArray bool

	// AutoExpandRef marks a navigation property collection without
	// OData.AutoExpand (§4.E.4): the dictionary builder still expands it,
	// but the CSDL loader records the hint for callers that care.
	AutoExpandRef bool
}

// EnumMember is one (seq, name) pair of an Enum entity.
type EnumMember struct {
	Seq  int
	Name string
}

// Entity is one repository entry, keyed by qualified name ("Namespace.Entity").
type Entity struct {
	Name string
	Kind Kind

	properties []Property
	propIndex  map[string]int // lower(name) -> index into properties

	enumGroups      map[string][]string // revision -> member names, insertion order
	enumGroupOrder  []string            // revisions in first-seen order
	Members         []EnumMember        // populated by AssignSequences
}

func newEntity(name string, kind Kind) *Entity {
	return &Entity{
		Name:       name,
		Kind:       kind,
		propIndex:  make(map[string]int),
		enumGroups: make(map[string][]string),
	}
}

// AddProperty appends p unless an entity property of the same name
// (case-insensitive) already exists, in which case the existing one is
// retained (§3 invariant: base-type entries win over same-named derived
// entries, enforced by the loader adding base-type properties first).
// It reports whether p was added.
func (e *Entity) AddProperty(p Property) bool {
	key := strings.ToLower(p.Name)
	if _, exists := e.propIndex[key]; exists {
		return false
	}
	e.propIndex[key] = len(e.properties)
	e.properties = append(e.properties, p)
	return true
}

// Property looks up a Set property by name.
func (e *Entity) Property(name string) (Property, bool) {
	idx, ok := e.propIndex[strings.ToLower(name)]
	if !ok {
		return Property{}, false
	}
	return e.properties[idx], true
}

// Properties returns the Set's properties in their assigned sequence order.
func (e *Entity) Properties() []Property {
	return e.properties
}

// AddEnumMember records name as added in the given CSDL revision ("Added"
// annotation Version, or "" if the member carries none).
func (e *Entity) AddEnumMember(revision, name string) {
	if _, seen := e.enumGroups[revision]; !seen {
		e.enumGroupOrder = append(e.enumGroupOrder, revision)
	}
	e.enumGroups[revision] = append(e.enumGroups[revision], name)
}

// AssignSequences assigns dense, gap-free sequence numbers starting at 0.
// For a Set, properties sort case-insensitive alphabetically by name. For
// an Enum, revision buckets sort ascending and within a bucket members sort
// case-insensitive alphabetically (§3).
func (e *Entity) AssignSequences() {
	switch e.Kind {
	case KindSet:
		sort.SliceStable(e.properties, func(i, j int) bool {
			return strings.ToLower(e.properties[i].Name) < strings.ToLower(e.properties[j].Name)
		})
		for i := range e.properties {
			e.properties[i].Seq = i
		}
		e.propIndex = make(map[string]int, len(e.properties))
		for i, p := range e.properties {
			e.propIndex[strings.ToLower(p.Name)] = i
		}

	case KindEnum:
		revisions := append([]string(nil), e.enumGroupOrder...)
		sort.SliceStable(revisions, func(i, j int) bool {
			return compareRevisions(revisions[i], revisions[j]) < 0
		})
		var members []EnumMember
		seq := 0
		for _, rev := range revisions {
			names := append([]string(nil), e.enumGroups[rev]...)
			sort.SliceStable(names, func(i, j int) bool {
				return strings.ToLower(names[i]) < strings.ToLower(names[j])
			})
			for _, n := range names {
				members = append(members, EnumMember{Seq: seq, Name: n})
				seq++
			}
		}
		e.Members = members
	}
}

// compareRevisions orders CSDL "Redfish.Revisions" Version strings
// ("v1_0_0", ...), treating the empty/un-revisioned bucket as earliest.
func compareRevisions(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}
	av, aok := parseRevision(a)
	bv, bok := parseRevision(b)
	if aok && bok {
		for i := 0; i < 3; i++ {
			if av[i] != bv[i] {
				return av[i] - bv[i]
			}
		}
		return 0
	}
	return strings.Compare(a, b)
}

func parseRevision(v string) ([3]int, bool) {
	var out [3]int
	v = strings.TrimPrefix(v, "v")
	parts := strings.SplitN(v, "_", 3)
	if len(parts) != 3 {
		return out, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return out, false
		}
		out[i] = n
	}
	return out, true
}

// FilterProperties keeps only the Set properties whose lower-cased name is
// present in keep, used by the profile pruner (§4.H) to restrict an
// entity's properties to a profile's PropertyRequirements. Sequence numbers
// are left stale; call Repository.AssignSequences afterward to re-derive a
// dense 0..n-1 numbering over the filtered set.
func (e *Entity) FilterProperties(keep map[string]bool) {
	filtered := make([]Property, 0, len(e.properties))
	for _, p := range e.properties {
		if keep[strings.ToLower(p.Name)] {
			filtered = append(filtered, p)
		}
	}
	e.properties = filtered
	e.propIndex = make(map[string]int, len(filtered))
	for i, p := range filtered {
		e.propIndex[strings.ToLower(p.Name)] = i
	}
}

// FilterEnumMembers keeps only the enum member names present in keep. It
// filters the per-revision source groups AssignSequences derives Members
// from, rather than Members itself, so a later AssignSequences call
// produces a correctly renumbered, still revision-ordered Members list
// instead of reverting the restriction.
func (e *Entity) FilterEnumMembers(keep map[string]bool) {
	for rev, names := range e.enumGroups {
		filtered := make([]string, 0, len(names))
		for _, n := range names {
			if keep[n] {
				filtered = append(filtered, n)
			}
		}
		e.enumGroups[rev] = filtered
	}
}

// Repository is the entity collection built by the CSDL loader and
// consumed by the dictionary builder. A new build must use a fresh
// Repository (§5): it is never shared across concurrent builds.
type Repository struct {
	entities map[string]*Entity
}

// NewRepository returns an empty Repository.
func NewRepository() *Repository {
	return &Repository{entities: make(map[string]*Entity)}
}

// Set returns the named Set entity, creating it if absent.
func (r *Repository) Set(name string) *Entity {
	if e, ok := r.entities[name]; ok {
		return e
	}
	e := newEntity(name, KindSet)
	r.entities[name] = e
	return e
}

// Enum returns the named Enum entity, creating it if absent.
func (r *Repository) Enum(name string) *Entity {
	if e, ok := r.entities[name]; ok {
		return e
	}
	e := newEntity(name, KindEnum)
	r.entities[name] = e
	return e
}

// Get returns the named entity without creating it.
func (r *Repository) Get(name string) (*Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// Names returns every entity name currently in the repository.
func (r *Repository) Names() []string {
	names := make([]string, 0, len(r.entities))
	for n := range r.entities {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AssignSequences finalizes sequence numbers for every entity. The CSDL
// loader calls this once, after all schema files have been indexed (§4.E.8).
func (r *Repository) AssignSequences() {
	for _, e := range r.entities {
		e.AssignSequences()
	}
}

// GraftOEM adds a property named propertyName on hostEntity pointing at
// oemEntity, used to attach a vendor OEM extension schema onto a standard
// entity's "Oem" sub-object (SPEC_FULL.md "OEM extension grafting").
func (r *Repository) GraftOEM(hostEntity, propertyName, oemEntity string) {
	host := r.Set(hostEntity)
	host.AddProperty(Property{
		Name:   propertyName,
		Format: sflv.FormatSet,
		Flags:  0,
		Ref:    oemEntity,
	})
}
