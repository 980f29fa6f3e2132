// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package dictionary implements the binary schema-dictionary wire format:
// a fixed header, a table of fixed-size entry records, a deduplicated name
// heap, and an optional trailing copyright block.
package dictionary

import "github.com/saferwall/rde/sflv"

// Wire layout sizes, see §3 of the specification.
const (
	// HeaderSize is the byte size of the fixed dictionary header.
	HeaderSize = 1 + 1 + 2 + 4 + 4

	// EntrySize is the byte size of a single fixed entry record.
	EntrySize = 1 + 2 + 2 + 2 + 1 + 2

	// VersionTag is the only value VersionTag may hold in a dictionary this
	// package writes.
	VersionTag = 0x00

	// UnboundedChildCount is the serialized ChildCount sentinel for Array
	// rows, whose element count is conceptually infinite.
	UnboundedChildCount = 0xFFFF
)

// DictionaryFlags bits.
const (
	// FlagTruncated marks a dictionary restricted by a profile (§4.H).
	FlagTruncated uint8 = 1 << 0
)

// Entry flag bits, stored in the low nibble of a row's FormatByte.
const (
	// FlagReadOnly marks a property as OData.Permissions=Read.
	FlagReadOnly uint8 = 1 << 2

	// FlagNullable marks a property as Nullable (the CSDL default).
	FlagNullable uint8 = 1 << 3
)

// Offset is a tagged variant: during construction a dictionary row's child
// pointer is either an already-resolved byte offset, or the name of an
// entity repository entry still awaiting expansion. This replaces the
// source's runtime type check of a string-or-int field with an explicit
// sum type (§9 "Recursive name-to-offset graphs").
type Offset struct {
	resolved bool
	value    uint32
	pending  string
}

// Pending returns an Offset awaiting expansion of the named entity.
func Pending(entityName string) Offset {
	return Offset{pending: entityName}
}

// Resolved returns an Offset that already points at an absolute byte offset.
func Resolved(value uint32) Offset {
	return Offset{resolved: true, value: value}
}

// IsPending reports whether the offset still names an unresolved entity.
func (o Offset) IsPending() bool { return !o.resolved }

// EntityName returns the pending entity name. Only meaningful when
// IsPending is true.
func (o Offset) EntityName() string { return o.pending }

// Value returns the resolved byte offset. Only meaningful when IsPending
// is false.
func (o Offset) Value() uint32 { return o.value }

// Row is the in-memory form of one dictionary entry (§3 "Dictionary row").
type Row struct {
	Seq uint16

	Format sflv.Format
	Flags  uint8

	Name string

	// ChildCount is the number of direct children for Set/Enum rows, or 1
	// for Array rows (the single shared element entry). It is meaningless
	// for primitive rows.
	ChildCount int

	// Offset locates the first child row's byte offset, once resolved.
	// Meaningless for primitive (non-container, non-enum) rows.
	Offset Offset
}

// IsContainerFormat reports whether this row's format carries children via
// Offset/ChildCount (Set, Array, Enum).
func (r Row) IsContainerFormat() bool {
	switch r.Format {
	case sflv.FormatSet, sflv.FormatArray, sflv.FormatEnum:
		return true
	default:
		return false
	}
}

// Header is the decoded fixed dictionary header.
type Header struct {
	VersionTag      uint8
	DictionaryFlags uint8
	EntryCount      uint16
	SchemaVersion   uint32
	DictionarySize  uint32
}

// Truncated reports whether this dictionary was restricted by a profile.
func (h Header) Truncated() bool {
	return h.DictionaryFlags&FlagTruncated != 0
}
