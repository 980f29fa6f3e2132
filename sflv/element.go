// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package sflv

import (
	"errors"

	"github.com/saferwall/rde/nnint"
)

// Errors returned while unpacking an SFLV element.
var (
	// ErrTruncated is returned when the buffer ends before a declared field.
	ErrTruncated = errors.New("sflv: truncated buffer")

	// ErrLengthMismatch is returned when a container's declared Length does
	// not match the number of bytes its children actually consumed.
	ErrLengthMismatch = errors.New("sflv: container length mismatch")
)

// Element is a decoded SFLV quadruple. Value holds the raw Length bytes:
// for primitives this is the primitive's own encoding, for containers this
// is "nnint count | <count child SFLVs>".
type Element struct {
	SeqRaw uint64 // (dictionary sequence number << 1) | selector bit
	Format Format
	Flags  uint8
	Value  []byte
}

// Seq splits SeqRaw into its dictionary sequence number and selector bit.
func (e Element) Seq() (seq uint64, sel Selector) {
	return SplitSeq(e.SeqRaw)
}

// Pack appends the wire encoding of an SFLV element to dst.
func Pack(dst []byte, seq uint64, sel Selector, format Format, flags uint8, value []byte) []byte {
	dst = nnint.Pack(dst, PackSeq(seq, sel))
	dst = append(dst, FormatByte(format, flags))
	dst = nnint.Pack(dst, uint64(len(value)))
	dst = append(dst, value...)
	return dst
}

// Unpack reads one SFLV element from the front of buf, returning the
// element and the number of bytes consumed.
func Unpack(buf []byte) (Element, int, error) {
	seqRaw, n1, err := nnint.Unpack(buf)
	if err != nil {
		return Element{}, 0, err
	}
	off := n1
	if off >= len(buf) {
		return Element{}, 0, ErrTruncated
	}
	format, flags := SplitFormatByte(buf[off])
	off++

	length, n2, err := nnint.Unpack(buf[off:])
	if err != nil {
		return Element{}, 0, err
	}
	off += n2

	if uint64(len(buf)-off) < length {
		return Element{}, 0, ErrTruncated
	}
	value := buf[off : off+int(length)]
	off += int(length)

	return Element{
		SeqRaw: seqRaw,
		Format: format,
		Flags:  flags,
		Value:  value,
	}, off, nil
}
