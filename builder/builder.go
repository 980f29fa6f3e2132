// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package builder implements the dictionary builder (§4.F): it walks an
// entity.Repository starting from one root entity and produces the flat
// []dictionary.Row table the dictionary package serializes.
package builder

import (
	"fmt"
	"strings"

	"github.com/saferwall/rde/dictionary"
	"github.com/saferwall/rde/entity"
	"github.com/saferwall/rde/sflv"
)

// ErrUnresolvedReference is returned when a dictionary row names an entity
// the repository never built, a dangling CSDL reference the loader's own
// pass should have already rejected.
var ErrUnresolvedReference = fmt.Errorf("builder: entity referenced but not found in repository")

// cacheEntry is the single entity-offset map entry §4.F describes: offset/
// childCount cache a direct (Set- or Enum-typed property) reference to the
// entity's already-expanded sub-tree; arrayOffset/hasArray additionally
// cache the anonymous dummy header row created the first time that same
// entity is used as an Array element, so one entity referenced both
// directly and as an array element still expands its sub-tree exactly once
// (ported from the original builder's single entity_offset_map, which keys
// an EntityOffsetMapTuple(offset, offset_to_array) by entity name).
type cacheEntry struct {
	offset      uint32
	childCount  int
	arrayOffset uint32
	hasArray    bool
}

// arrayPending records what an Array row's still-unresolved single element
// entry must describe, since a dictionary.Row has nowhere else to carry an
// element's format/ref once the Array row itself has been appended.
type arrayPending struct {
	elemFormat sflv.Format
	elemRef    string
}

// Builder owns the working row list and entity-offset caches for exactly
// one dictionary build (§5: these structures are exclusive to a single
// build and must not be shared across concurrent builds).
type Builder struct {
	repo *entity.Repository
	rows []dictionary.Row

	// cache is the entity-offset map: entity name -> its cached direct and
	// array-element offsets (see cacheEntry).
	cache map[string]*cacheEntry

	// primitiveArrayCache resolves a primitive (non-Set/Enum) array
	// element format to its shared anonymous header row. Primitive
	// elements have no entity name to key the main cache under, so the
	// original builder keys this case by the primitive type name instead;
	// here the sflv.Format itself serves the same purpose.
	primitiveArrayCache map[sflv.Format]cacheEntry

	// arrayMeta carries the pending element descriptor for each Array row,
	// keyed by its index in rows, until resolveOnePass resolves it.
	arrayMeta map[int]arrayPending
}

// New returns a Builder that reads entities from repo.
func New(repo *entity.Repository) *Builder {
	return &Builder{
		repo:                repo,
		cache:               make(map[string]*cacheEntry),
		primitiveArrayCache: make(map[sflv.Format]cacheEntry),
		arrayMeta:           make(map[int]arrayPending),
	}
}

// Build returns the dictionary row table for rootEntity, fully resolved.
func (b *Builder) Build(rootEntity string) ([]dictionary.Row, error) {
	root, ok := b.repo.Get(rootEntity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedReference, rootEntity)
	}

	rootFormat := sflv.FormatSet
	if root.Kind == entity.KindEnum {
		rootFormat = sflv.FormatEnum
	}
	b.rows = []dictionary.Row{{
		Seq:    0,
		Name:   leafName(rootEntity),
		Format: rootFormat,
		Offset: dictionary.Pending(rootEntity),
	}}

	for {
		progressed, err := b.resolveOnePass()
		if err != nil {
			return nil, err
		}
		if !progressed {
			break
		}
	}

	for i, r := range b.rows {
		if r.IsContainerFormat() && r.Offset.IsPending() {
			return nil, fmt.Errorf("builder: row %d (%q) never resolved", i, r.Name)
		}
	}
	return b.rows, nil
}

// resolveOnePass scans the rows appended by every prior pass (a snapshot
// taken before this pass starts appending) and resolves every pending
// Set/Enum/Array row it finds. Rows appended during this pass are left for
// the next call, which is what makes repeated calls a fixed-point
// iteration (§4.F.3) rather than a single recursive walk.
func (b *Builder) resolveOnePass() (bool, error) {
	progressed := false
	n := len(b.rows)
	for i := 0; i < n; i++ {
		r := b.rows[i]
		if !r.IsContainerFormat() {
			continue
		}

		switch r.Format {
		case sflv.FormatArray:
			meta, ok := b.arrayMeta[i]
			if !ok {
				continue // already resolved in an earlier pass
			}
			offset, childCount, err := b.resolveArrayElement(meta)
			if err != nil {
				return false, err
			}
			b.rows[i].Offset = dictionary.Resolved(offset)
			b.rows[i].ChildCount = childCount
			delete(b.arrayMeta, i)
			progressed = true

		case sflv.FormatSet, sflv.FormatEnum:
			if !r.Offset.IsPending() {
				continue
			}
			offset, childCount, err := b.resolveSet(r.Offset.EntityName())
			if err != nil {
				return false, err
			}
			b.rows[i].Offset = dictionary.Resolved(offset)
			b.rows[i].ChildCount = childCount
			progressed = true
		}
	}
	return progressed, nil
}

// resolveSet expands entityName's sub-tree (or reuses a prior expansion,
// whether that expansion was triggered by an earlier direct reference or by
// an earlier Array-element reference) and returns the (offset, child_count)
// its referencing row should record.
func (b *Builder) resolveSet(entityName string) (uint32, int, error) {
	if cached, ok := b.cache[entityName]; ok {
		return cached.offset, cached.childCount, nil
	}

	e, ok := b.repo.Get(entityName)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnresolvedReference, entityName)
	}

	offset := dictionary.RowByteOffset(len(b.rows))
	childCount, err := b.addEntries(e)
	if err != nil {
		return 0, 0, err
	}
	b.cache[entityName] = &cacheEntry{offset: offset, childCount: childCount}
	return offset, childCount, nil
}

// resolveArrayElement expands (or reuses) the anonymous single-element
// header row an Array row's Offset points at (§4.F.2), sharing the entity-
// offset map with resolveSet so an entity used both directly and as an
// array element anywhere in the build expands its sub-tree exactly once.
func (b *Builder) resolveArrayElement(meta arrayPending) (uint32, int, error) {
	if meta.elemFormat != sflv.FormatSet && meta.elemFormat != sflv.FormatEnum {
		return b.resolvePrimitiveArrayElement(meta)
	}

	if cached, ok := b.cache[meta.elemRef]; ok {
		if cached.hasArray {
			return cached.arrayOffset, 1, nil
		}
		// The entity was already expanded for a direct reference; add the
		// dummy anonymous header in front of its cached sub-tree and
		// remember it so a later array reference reuses this row too.
		offset := dictionary.RowByteOffset(len(b.rows))
		b.rows = append(b.rows, dictionary.Row{
			Seq:        0,
			Name:       arrayElementName(meta),
			Format:     meta.elemFormat,
			Offset:     dictionary.Resolved(cached.offset),
			ChildCount: cached.childCount,
		})
		cached.arrayOffset = offset
		cached.hasArray = true
		return offset, 1, nil
	}

	e, ok := b.repo.Get(meta.elemRef)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnresolvedReference, meta.elemRef)
	}

	offset := dictionary.RowByteOffset(len(b.rows))
	idx := len(b.rows)
	b.rows = append(b.rows, dictionary.Row{
		Seq:    0,
		Name:   arrayElementName(meta),
		Format: meta.elemFormat,
	})

	childOffset := dictionary.RowByteOffset(len(b.rows))
	childCount, err := b.addEntries(e)
	if err != nil {
		return 0, 0, err
	}
	b.rows[idx].Offset = dictionary.Resolved(childOffset)
	b.rows[idx].ChildCount = childCount

	b.cache[meta.elemRef] = &cacheEntry{
		offset:      childOffset,
		childCount:  childCount,
		arrayOffset: offset,
		hasArray:    true,
	}
	return offset, 1, nil
}

// resolvePrimitiveArrayElement expands (or reuses) the anonymous header row
// for an array of a primitive (non-Set/Enum) format, keyed by format alone
// since there is no entity name to share the main cache's key space with.
func (b *Builder) resolvePrimitiveArrayElement(meta arrayPending) (uint32, int, error) {
	if cached, ok := b.primitiveArrayCache[meta.elemFormat]; ok {
		return cached.offset, 1, nil
	}
	offset := dictionary.RowByteOffset(len(b.rows))
	b.rows = append(b.rows, dictionary.Row{
		Seq:    0,
		Name:   arrayElementName(meta),
		Format: meta.elemFormat,
	})
	b.primitiveArrayCache[meta.elemFormat] = cacheEntry{offset: offset}
	return offset, 1, nil
}

func arrayElementName(meta arrayPending) string {
	if meta.elemRef == "" {
		return ""
	}
	return leafName(meta.elemRef)
}

// addEntries appends one row per property (Set) or member (Enum) of e,
// returning the child count its caller should record.
func (b *Builder) addEntries(e *entity.Entity) (int, error) {
	switch e.Kind {
	case entity.KindEnum:
		for _, m := range e.Members {
			b.rows = append(b.rows, dictionary.Row{
				Seq:    uint16(m.Seq),
				Name:   m.Name,
				Format: sflv.FormatString,
			})
		}
		return len(e.Members), nil

	default: // entity.KindSet
		// Tie-break (§4.F.5): when two CSDL documents define overlapping
		// entities, the entity.Repository's first-definition-wins rule
		// (entity.Entity.AddProperty) has already deduplicated properties by
		// name, so the builder only ever sees one definition here.
		for _, p := range e.Properties() {
			row, meta, err := b.propertyRow(p)
			if err != nil {
				return 0, err
			}
			idx := len(b.rows)
			b.rows = append(b.rows, row)
			if meta != nil {
				b.arrayMeta[idx] = *meta
			}
		}
		return len(e.Properties()), nil
	}
}

func (b *Builder) propertyRow(p entity.Property) (dictionary.Row, *arrayPending, error) {
	if p.IsArray {
		row := dictionary.Row{
			Seq:        uint16(p.Seq),
			Name:       p.Name,
			Format:     sflv.FormatArray,
			Flags:      p.Flags,
			ChildCount: 1, // §4.F.4: always 1; the writer serializes 0xFFFF regardless.
		}
		return row, &arrayPending{elemFormat: p.Format, elemRef: p.Ref}, nil
	}

	row := dictionary.Row{
		Seq:    uint16(p.Seq),
		Name:   p.Name,
		Format: p.Format,
		Flags:  p.Flags,
	}
	if p.Format == sflv.FormatSet || p.Format == sflv.FormatEnum {
		if p.Ref == "" {
			return dictionary.Row{}, nil, fmt.Errorf("builder: property %q has container format %s with no entity reference", p.Name, p.Format)
		}
		row.Offset = dictionary.Pending(p.Ref)
	}
	return row, nil, nil
}

func leafName(qualifiedName string) string {
	idx := strings.LastIndexByte(qualifiedName, '.')
	if idx < 0 {
		return qualifiedName
	}
	return qualifiedName[idx+1:]
}
