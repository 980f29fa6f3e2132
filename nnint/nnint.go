// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package nnint implements the BEJ non-negative integer encoding: a single
// length byte followed by that many little-endian value bytes.
package nnint

import "errors"

// Errors returned by Unpack.
var (
	// ErrTruncated is returned when the buffer is shorter than the length
	// byte declares.
	ErrTruncated = errors.New("nnint: truncated buffer")

	// ErrEmpty is returned when Unpack is called on a zero-length buffer.
	ErrEmpty = errors.New("nnint: empty buffer")

	// ErrZeroLength is returned when the length byte is zero; even the value
	// zero is encoded with one value byte.
	ErrZeroLength = errors.New("nnint: zero length byte")
)

// byteLen returns the minimum number of little-endian bytes needed to hold v,
// with zero itself requiring one byte.
func byteLen(v uint64) int {
	n := 1
	for v >= 1<<8 {
		v >>= 8
		n++
	}
	return n
}

// Pack appends the nnint encoding of v to dst and returns the extended slice.
func Pack(dst []byte, v uint64) []byte {
	n := byteLen(v)
	dst = append(dst, byte(n))
	for i := 0; i < n; i++ {
		dst = append(dst, byte(v))
		v >>= 8
	}
	return dst
}

// Size returns the number of bytes Pack(v) would produce.
func Size(v uint64) int {
	return 1 + byteLen(v)
}

// Unpack reads a single nnint from the front of buf, returning the decoded
// value and the number of bytes consumed.
func Unpack(buf []byte) (value uint64, consumed int, err error) {
	if len(buf) == 0 {
		return 0, 0, ErrEmpty
	}
	n := int(buf[0])
	if n == 0 {
		return 0, 0, ErrZeroLength
	}
	if len(buf) < 1+n {
		return 0, 0, ErrTruncated
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[1+i])
	}
	return v, 1 + n, nil
}
