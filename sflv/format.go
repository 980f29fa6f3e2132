// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package sflv implements the BEJ Sequence-Format-Length-Value element
// codec: the quadruple that every encoded property, in both the major
// schema and annotation dictionaries, is packed into.
package sflv

// Format identifies the shape of an SFLV value, stored in the high nibble
// of its FormatByte and mirrored in the FormatByte of the driving
// dictionary row.
type Format uint8

// Format codes. The high four bits of a dictionary entry's FormatByte and
// of an SFLV FormatByte both carry one of these.
const (
	FormatSet Format = iota
	FormatArray
	FormatNull
	FormatInteger
	FormatEnum
	FormatString
	FormatReal
	FormatBoolean
	FormatChoice
	FormatPropertyAnnotation
	FormatResourceLink
)

// String implements fmt.Stringer for debug output and .map dictionary dumps.
func (f Format) String() string {
	switch f {
	case FormatSet:
		return "Set"
	case FormatArray:
		return "Array"
	case FormatNull:
		return "Null"
	case FormatInteger:
		return "Integer"
	case FormatEnum:
		return "Enum"
	case FormatString:
		return "String"
	case FormatReal:
		return "Real"
	case FormatBoolean:
		return "Boolean"
	case FormatChoice:
		return "Choice"
	case FormatPropertyAnnotation:
		return "PropertyAnnotation"
	case FormatResourceLink:
		return "ResourceLink"
	default:
		return "Unknown"
	}
}

// IsContainer reports whether values of this format nest further SFLV
// children (Set, Array, PropertyAnnotation) rather than a primitive value.
func (f Format) IsContainer() bool {
	switch f {
	case FormatSet, FormatArray, FormatPropertyAnnotation:
		return true
	default:
		return false
	}
}

// Flag bits carried in the low nibble of an SFLV FormatByte.
const (
	// FlagDeferredBinding marks a String value containing %<kind><n> tokens
	// that must be substituted from a bindings map at decode time.
	FlagDeferredBinding uint8 = 1 << 0

	// FlagTopLevelAnnotation is an implementation hint marking an
	// annotation element ("@Namespace.Term" key) packed directly into its
	// enclosing Set without a PropertyAnnotation wrapper.
	FlagTopLevelAnnotation uint8 = 1 << 1
)

// FormatByte packs a format code and flag nibble into a single wire byte.
func FormatByte(f Format, flags uint8) byte {
	return byte(f)<<4 | (flags & 0x0F)
}

// SplitFormatByte is the inverse of FormatByte.
func SplitFormatByte(b byte) (f Format, flags uint8) {
	return Format(b >> 4), b & 0x0F
}

// Selector distinguishes which dictionary a Seq value's sequence number
// indexes into.
type Selector uint8

const (
	// SelectorMajor selects the major-schema (or error-schema) dictionary.
	SelectorMajor Selector = 0

	// SelectorAnnotation selects the annotation dictionary.
	SelectorAnnotation Selector = 1
)

// PackSeq composes the wire Seq value from a dictionary sequence number and
// selector bit.
func PackSeq(seq uint64, sel Selector) uint64 {
	return seq<<1 | uint64(sel&1)
}

// SplitSeq is the inverse of PackSeq.
func SplitSeq(v uint64) (seq uint64, sel Selector) {
	return v >> 1, Selector(v & 1)
}
