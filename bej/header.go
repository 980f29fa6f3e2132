// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package bej implements the BEJ (Binary Encoded JSON) encoder and decoder
// (§4.I, §4.J): the recursive JSON-tree <-> SFLV-stream codec driven by a
// pair of binary dictionaries (major/error schema and annotation).
package bej

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the byte size of the fixed BEJ stream header.
const HeaderSize = 4 + 2 + 1

// SchemaClass selects which dictionary a BEJ stream's top-level Set is
// driven by.
type SchemaClass uint8

const (
	// SchemaClassMajor drives decoding with the major schema dictionary.
	SchemaClassMajor SchemaClass = 0x00

	// SchemaClassError drives decoding with an error-schema dictionary.
	SchemaClassError SchemaClass = 0x04
)

// DefaultVersion is the BEJ version magic this package writes: DSP0218's
// encoding version 0xF1F0F000 (major 0xF1, minor 0xF0, "format is fixed",
// no reserved bits set).
const DefaultVersion uint32 = 0xF1F0F000

// Errors returned while unpacking a BEJ header.
var (
	ErrTruncatedHeader = errors.New("bej: truncated header")
	ErrBadSchemaClass  = errors.New("bej: unrecognized schema class")
)

// Header is the fixed 7-byte preamble of a BEJ stream.
type Header struct {
	Version uint32
	Flags   uint16
	Class   SchemaClass
}

// Pack encodes h to its 7-byte wire form.
func (h Header) Pack() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Version)
	binary.LittleEndian.PutUint16(buf[4:6], h.Flags)
	buf[6] = byte(h.Class)
	return buf
}

// UnpackHeader decodes and validates the fixed header at the front of buf.
func UnpackHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrTruncatedHeader
	}
	h := Header{
		Version: binary.LittleEndian.Uint32(buf[0:4]),
		Flags:   binary.LittleEndian.Uint16(buf[4:6]),
		Class:   SchemaClass(buf[6]),
	}
	if h.Class != SchemaClassMajor && h.Class != SchemaClassError {
		return Header{}, ErrBadSchemaClass
	}
	return h, nil
}
